// Package orchestrator 驱动多处理器会话：路由、执行、工作流跳转
// 与持久化，一轮用户输入可能触发多跳处理器接力。
package orchestrator

import (
	"context"
	"strings"
	"time"

	xerrors "SwiftyBank/internal/errors"
	"SwiftyBank/internal/handler"
	"SwiftyBank/internal/observability/alerting"
	"SwiftyBank/internal/observability/metrics"
	"SwiftyBank/internal/session"
	"SwiftyBank/internal/transcript"
	"SwiftyBank/pkg/logger"
)

// 单轮内处理器接力的最大跳数，防止工作流成环空转。
const maxHops = 5

// Options 配置编排器的可选依赖。
type Options struct {
	Workflow   Workflow
	Transcript transcript.Publisher
	Alerts     alerting.Dispatcher
}

// Orchestrator 是会话编排器。所有状态经 session.Store 持久化，
// 实例本身无状态，可安全并发使用。
type Orchestrator struct {
	registry   handler.Registry
	sessions   session.Store
	workflow   Workflow
	transcript transcript.Publisher
	alerter    alerting.Dispatcher
}

// TurnResult 是一轮编排的产出。Messages 按生成顺序排列，
// 包含转接话术与处理器回复。
type TurnResult struct {
	SessionID string            `json:"session_id"`
	Response  string            `json:"response"`
	Messages  []session.Message `json:"messages"`
	Data      map[string]any    `json:"data"`
}

// New 创建编排器。
func New(registry handler.Registry, sessions session.Store, opts Options) *Orchestrator {
	workflow := opts.Workflow
	if workflow == nil {
		workflow = DefaultWorkflow()
	}
	publisher := opts.Transcript
	if publisher == nil {
		publisher = transcript.NopPublisher{}
	}
	return &Orchestrator{
		registry:   registry,
		sessions:   sessions,
		workflow:   workflow,
		transcript: publisher,
		alerter:    opts.Alerts,
	}
}

// Handle 处理一轮用户输入。会话不存在时自动创建；手机号变更
// 视为新客，重建会话状态。
func (o *Orchestrator) Handle(ctx context.Context, sessionID, mobile, customerID, input string) (*TurnResult, error) {
	sess, err := o.sessions.Get(ctx, sessionID)
	if err != nil || (mobile != "" && sess.Mobile != mobile) {
		sess = session.New(mobile, customerID)
		if sessionID != "" {
			sess.ID = sessionID
		}
	}
	if customerID != "" {
		sess.CustomerID = customerID
	}
	sess.LastActive = time.Now()

	// 全局中断优先于既有流程。
	if IsGlobalInterrupt(input) {
		if sess.ActiveAgent != "SupportAgent" && sess.ActiveAgent != "" {
			logger.Audit().Info("会话被全局中断接管",
				"session_id", sess.ID,
				"from", sess.ActiveAgent)
		}
		sess.ActiveAgent = "SupportAgent"
	}

	var batch []session.Message
	turnComplete := false

	for hop := 0; !turnComplete && hop < maxHops; hop++ {
		// 路由：无主会话按关键词分派，路由即产生转接话术。
		target := sess.ActiveAgent
		if target == "" {
			target = Route(input, sess.Data)
			sess.ActiveAgent = target
			if msg, ok := transferMessages[target]; ok {
				batch = append(batch, session.Message{
					Sender:    "bot",
					Text:      msg,
					AgentType: "Orchestrator",
					Timestamp: time.Now(),
				})
			}
		}

		impl, ok := o.registry[sess.ActiveAgent]
		if !ok {
			impl = o.registry["SalesAgent"]
			sess.ActiveAgent = "SalesAgent"
		}

		// 第二跳起处理器拿到的是接管信号而不是用户原话。
		handlerInput := input
		if hop > 0 {
			handlerInput = handler.StartSession
		}

		turn := &handler.Turn{
			SessionID:  sess.ID,
			Mobile:     sess.Mobile,
			CustomerID: sess.CustomerID,
			Data:       sess.Data,
		}

		started := time.Now()
		result, runErr := impl.Run(ctx, handlerInput, turn)
		if runErr != nil {
			logger.L().Error("处理器执行失败",
				"session_id", sess.ID,
				"handler", sess.ActiveAgent,
				"error", runErr)
			o.emitAlert(ctx, sess.ID, sess.ActiveAgent, xerrors.CodeInferenceFailure, runErr)
			result = handler.Result{
				Response: "Something went wrong on our side. Please try again.",
				Status:   handler.StatusAwaitingInput,
			}
		}
		if result.Status == handler.StatusDegraded {
			o.emitAlert(ctx, sess.ID, sess.ActiveAgent, xerrors.CodeInferenceDegraded, nil)
		}
		metrics.ObserveTurn(sess.ActiveAgent, string(result.Status), time.Since(started))

		sess.Merge(result.Data)

		batch = append(batch, session.Message{
			Sender:    "bot",
			Text:      result.Response,
			AgentType: sess.ActiveAgent,
			Timestamp: time.Now(),
		})

		// 工作流跳转：查表命中则接力，否则本轮终止。
		transition, found := o.workflow[sess.ActiveAgent][result.Status]
		if found {
			if transition.Msg != "" {
				batch = append(batch, session.Message{
					Sender:    "bot",
					Text:      transition.Msg,
					AgentType: "Orchestrator",
					Timestamp: time.Now(),
				})
			}
			metrics.ObserveHandoff(sess.ActiveAgent, transition.Next)
			logger.Audit().Info("工作流跳转",
				"session_id", sess.ID,
				"from", sess.ActiveAgent,
				"to", transition.Next,
				"status", string(result.Status))
			sess.ActiveAgent = transition.Next
			if sess.ActiveAgent == "" {
				turnComplete = true
			}
		} else {
			turnComplete = true
		}
	}

	// 用户消息与本轮所有产出一并入库。
	userMsg := session.Message{
		Sender:    "user",
		Text:      input,
		Timestamp: time.Now(),
	}
	sess.Append(userMsg)
	for _, msg := range batch {
		sess.Append(msg)
	}

	if err := o.sessions.Save(ctx, sess); err != nil {
		logger.L().Error("会话持久化失败", "session_id", sess.ID, "error", err)
	}
	o.publish(ctx, sess.ID, append([]session.Message{userMsg}, batch...))

	texts := make([]string, 0, len(batch))
	for _, msg := range batch {
		texts = append(texts, msg.Text)
	}

	return &TurnResult{
		SessionID: sess.ID,
		Response:  strings.Join(texts, "\n\n"),
		Messages:  batch,
		Data:      sess.Data,
	}, nil
}

// emitAlert 按事件等级广播告警。未配置通知器时直接跳过。
func (o *Orchestrator) emitAlert(ctx context.Context, sessionID, handlerName string, code xerrors.Code, cause error) {
	if o == nil || o.alerter == nil {
		return
	}
	attrs := xerrors.AttributesOf(code)
	message := attrs.Message
	metadata := map[string]string{}
	if cause != nil {
		message = cause.Error()
		metadata["cause"] = cause.Error()
	}
	event := alerting.Event{
		Code:       code,
		Message:    message,
		Severity:   attrs.Severity,
		SessionID:  sessionID,
		Handler:    handlerName,
		Metadata:   metadata,
		OccurredAt: time.Now(),
	}
	if err := o.alerter.Notify(ctx, event); err != nil {
		logger.L().Error("告警通知失败",
			"session_id", sessionID,
			"handler", handlerName,
			"error", err)
	}
}

// publish 把本轮消息投递给下游。投递失败只记日志。
func (o *Orchestrator) publish(ctx context.Context, sessionID string, messages []session.Message) {
	for _, msg := range messages {
		event := transcript.Event{
			SessionID: sessionID,
			Sender:    msg.Sender,
			AgentType: msg.AgentType,
			Text:      msg.Text,
			Timestamp: msg.Timestamp,
		}
		if err := o.transcript.Publish(ctx, event); err != nil {
			logger.L().Warn("对话事件投递失败", "session_id", sessionID, "error", err)
		}
	}
}
