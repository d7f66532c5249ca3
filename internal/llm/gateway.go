package llm

import (
	"context"
	"log/slog"
	"time"

	"SwiftyBank/pkg/logger"
)

// DegradedReply 是推理服务不可用时返回的兜底回复。
const DegradedReply = "System is experiencing high traffic. Please try again."

// Gateway 在 Client 之上提供有限重试与降级能力。
// 调用方拿到的永远是一段可用的回复文本：重试耗尽后返回固定的
// 致歉回复并通过 degraded 标记区分，而不是向上传播错误。
type Gateway struct {
	client  Client
	retries int
	backoff time.Duration
	timeout time.Duration
	onDrop  func(attempts int, cause error)
}

// GatewayOption 定义可选的 Gateway 配置。
type GatewayOption func(*Gateway)

// WithRetries 设置调用失败后的最大重试次数。
func WithRetries(retries int) GatewayOption {
	return func(g *Gateway) {
		if retries >= 0 {
			g.retries = retries
		}
	}
}

// WithBackoff 设置重试前的固定等待时间。
func WithBackoff(backoff time.Duration) GatewayOption {
	return func(g *Gateway) {
		if backoff > 0 {
			g.backoff = backoff
		}
	}
}

// WithAttemptTimeout 设置单次调用的超时时间。
func WithAttemptTimeout(timeout time.Duration) GatewayOption {
	return func(g *Gateway) {
		if timeout > 0 {
			g.timeout = timeout
		}
	}
}

// WithDegradeHook 注册降级回调，便于上层统计与告警。
func WithDegradeHook(hook func(attempts int, cause error)) GatewayOption {
	return func(g *Gateway) {
		g.onDrop = hook
	}
}

// NewGateway 构造推理网关。
func NewGateway(client Client, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		client:  client,
		retries: 1,
		backoff: 1500 * time.Millisecond,
		timeout: 60 * time.Second,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// Invoke 执行一次推理调用。degraded 为 true 时说明重试已耗尽，
// 返回的文本是兜底回复而非真实推理结果。
func (g *Gateway) Invoke(ctx context.Context, messages []Message, temperature float64) (text string, degraded bool) {
	if g == nil || g.client == nil {
		return DegradedReply, true
	}

	attempts := g.retries + 1
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		attemptCtx := ctx
		var cancel context.CancelFunc
		if g.timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, g.timeout)
		}
		start := time.Now()
		reply, err := g.client.Chat(attemptCtx, ChatRequest{
			Messages:    messages,
			Temperature: temperature,
			Stop:        DefaultStop,
		})
		if cancel != nil {
			cancel()
		}
		if err == nil {
			logger.L().Debug("推理调用成功",
				slog.Int("attempt", attempt),
				slog.Duration("elapsed", time.Since(start)),
			)
			return reply, false
		}
		lastErr = err
		if attempt < attempts {
			logger.L().Warn("推理调用失败，准备重试",
				slog.Int("attempt", attempt),
				slog.Int("remaining", attempts-attempt),
				slog.Any("error", err),
			)
			select {
			case <-ctx.Done():
				attempt = attempts
			case <-time.After(g.backoff):
			}
		}
	}

	logger.L().Error("推理服务不可用，返回降级回复", slog.Any("error", lastErr))
	if g.onDrop != nil {
		g.onDrop(attempts, lastErr)
	}
	return DegradedReply, true
}
