package handler

import (
	"context"
	"fmt"
	"math"
	"strings"

	"SwiftyBank/internal/llm"
	"SwiftyBank/internal/loan"
	"SwiftyBank/internal/nlu"
)

// Inferencer 是处理器所需的推理网关能力。
type Inferencer interface {
	Invoke(ctx context.Context, messages []llm.Message, temperature float64) (text string, degraded bool)
}

// 贷款产品意图关键词表，按顺序首个命中者胜出。
var salesIntentRules = []nlu.IntentRule{
	{Keyword: "car", Category: "CAR"},
	{Keyword: "auto", Category: "CAR"},
	{Keyword: "vehicle", Category: "CAR"},
	{Keyword: "personal", Category: "PERSONAL"},
	{Keyword: "cash", Category: "PERSONAL"},
	{Keyword: "travel", Category: "PERSONAL"},
	{Keyword: "home", Category: "HOME"},
	{Keyword: "house", Category: "HOME"},
	{Keyword: "flat", Category: "HOME"},
}

// 协商机内部状态，会话间通过数据袋平铺持久化。
const (
	negotiationActive   = "NEGOTIATING"
	negotiationLocking  = "OFFER_ACCEPTED"
	negotiationLocked   = "LOCKED"
	negotiationComplete = "COMPLETED"
)

// salesEntities 是销售处理器的实体抽取结果。
type salesEntities struct {
	Intent           string
	Amount           float64
	TargetRate       float64
	TargetEMI        float64
	TenureMonths     int
	AskTotalInterest bool
	CurrencyMismatch bool
}

// negotiationState 是协商机的类型化状态。读写时与会话数据袋的
// 平铺键互转，处理器内部不直接操作 map。
type negotiationState struct {
	Product           string
	Amount            float64
	Rate              float64
	Tenure            int
	Collateral        string
	PendingCollateral string
	AppID             string
	Rounds            int
	FloorHitCount     int
	Status            string
}

// SalesHandler 负责贷款条款的发现、报价与锁定。
type SalesHandler struct {
	gateway Inferencer
}

// NewSalesHandler 构造销售处理器。
func NewSalesHandler(gateway Inferencer) *SalesHandler {
	return &SalesHandler{gateway: gateway}
}

// Name 实现 Handler 接口。
func (h *SalesHandler) Name() string { return "SalesAgent" }

func extractSalesEntities(text string) salesEntities {
	e := salesEntities{
		Intent: nlu.MatchIntent(text, salesIntentRules),
	}

	if nlu.HasCurrencyMismatch(text) {
		e.CurrencyMismatch = true
		return e
	}

	e.TargetRate = nlu.ExtractTargetRate(text)
	e.TargetEMI = nlu.ExtractTargetEMI(text)
	e.TenureMonths = nlu.ExtractTenureMonths(text)

	lower := strings.ToLower(text)
	if strings.Contains(lower, "total interest") || strings.Contains(lower, "how much interest") || strings.Contains(lower, "paying") {
		e.AskTotalInterest = true
	}

	if e.TargetEMI == 0 {
		e.Amount = nlu.ExtractAmount(text, 100)
	}
	return e
}

func loadNegotiationState(turn *Turn) negotiationState {
	return negotiationState{
		Product:           turn.String("productType"),
		Amount:            turn.Float("requestedAmount"),
		Rate:              turn.Float("currentOfferedRate"),
		Tenure:            turn.Int("requestedTenure"),
		Collateral:        turn.String("collateral"),
		PendingCollateral: turn.String("pendingCollateral"),
		AppID:             turn.String("applicationId"),
		Rounds:            turn.Int("negotiationRounds"),
		FloorHitCount:     turn.Int("floorHitCount"),
		Status:            turn.String("negotiationStatus"),
	}
}

func (s negotiationState) toPatch() map[string]any {
	var agreedRate any
	if s.Status == negotiationLocked {
		agreedRate = s.Rate
	}
	return map[string]any{
		"productType":        s.Product,
		"requestedAmount":    s.Amount,
		"currentOfferedRate": s.Rate,
		"requestedTenure":    s.Tenure,
		"collateral":         s.Collateral,
		"pendingCollateral":  s.PendingCollateral,
		"agreedRate":         agreedRate,
		"applicationId":      s.AppID,
		"negotiationRounds":  s.Rounds,
		"floorHitCount":      s.FloorHitCount,
		"negotiationStatus":  s.Status,
	}
}

// Run 实现 Handler 接口。单轮内依次执行：全局短路 → 状态水合 →
// 金额边界收敛 → 协商策略 → 指令编译 → 推理生成。
func (h *SalesHandler) Run(ctx context.Context, input string, turn *Turn) (Result, error) {
	lower := strings.ToLower(input)
	ent := extractSalesEntities(input)

	// 用户抱怨且没有给出新金额时，以致歉话术重启流程。
	if nlu.HasInsult(input) && ent.Amount == 0 {
		return Result{
			Response: "I apologize if I caused confusion. I am an AI still learning nuances. Please tell me the **Loan Amount** you need so I can restart properly.",
			Status:   StatusNegotiating,
			Data:     map[string]any{"negotiationStatus": negotiationActive},
		}, nil
	}

	// 道别视为结束，回报申请编号。
	if strings.Contains(lower, "thank") || strings.Contains(lower, "bye") || strings.Contains(lower, "done") {
		appID := turn.String("applicationId")
		if appID == "" {
			appID = "N/A"
		}
		return Result{
			Response: "You're welcome! Ref ID: " + appID,
			Status:   StatusCompleted,
			Data:     map[string]any{"negotiationStatus": negotiationComplete},
		}, nil
	}

	// 非本币请求立即拒绝，不改动任何状态。
	if ent.CurrencyMismatch {
		return Result{
			Response: "We only process loans in INR. Please state amount in Lakhs.",
			Status:   StatusNegotiating,
			Data:     map[string]any{},
		}, nil
	}

	state := loadNegotiationState(turn)

	// 全新协商：换产品、无申请编号或上一单已完结时整体重置。
	if (ent.Intent != "" && ent.Intent != state.Product) || state.AppID == "" || state.Status == negotiationComplete {
		product := ent.Intent
		if product == "" {
			product = "PERSONAL"
		}
		cfg := loan.ProductOf(product)
		state = negotiationState{
			Product: product,
			AppID:   loan.NewApplicationID(product),
			Rate:    cfg.ListRate,
			Tenure:  cfg.DefaultTenure,
			Amount:  ent.Amount,
			Status:  negotiationActive,
		}
	} else {
		if ent.Amount > 0 {
			state.Amount = ent.Amount
		}
		if ent.TenureMonths > 0 {
			state.Tenure = ent.TenureMonths
		}
	}

	cfg := loan.ProductOf(state.Product)
	if state.Rate == 0 {
		state.Rate = cfg.ListRate
	}
	if state.Tenure == 0 {
		state.Tenure = cfg.DefaultTenure
	}
	floorRate := cfg.FloorRate

	// 金额边界收敛：越界值纠正而非拒绝，并在回复中附带提示。
	var clampNote string
	if state.Amount > 0 {
		if state.Amount < cfg.MinAmount {
			state.Amount = cfg.MinAmount
			clampNote = fmt.Sprintf(" (Note: %s starts at %s, so I've adjusted the amount.)", cfg.Name, loan.FormatINR(cfg.MinAmount))
		}
		if state.Amount > cfg.MaxAmount {
			state.Amount = cfg.MaxAmount
			clampNote = fmt.Sprintf(" (Note: %s caps at %s, so I've adjusted the amount.)", cfg.Name, loan.FormatINR(cfg.MaxAmount))
		}
	}

	tactic := "standard"
	instruction := ""

	summary := loan.Summarize(state.Amount, state.Rate, state.Tenure)
	years := math.Round(float64(state.Tenure)/12*10) / 10

	switch {
	// 发现阶段：金额未知，先问需求。
	case state.Amount == 0:
		tactic = "discovery"
		instruction = fmt.Sprintf(`New App %s. Ask "How much funds do you require?"`, state.AppID)

	// 抵押物采集：需要两步确认，避免把无关闲聊误收为抵押物。
	case cfg.RequiresCollateral && state.Collateral == "":
		asset := "property location"
		if state.Product == "CAR" {
			asset = "car model"
		}
		switch {
		case state.PendingCollateral != "" && nlu.HasConfirmation(input):
			state.Collateral = state.PendingCollateral
			state.PendingCollateral = ""
			tactic = "standard"
			instruction = fmt.Sprintf("Collateral '%s' noted. Offer: %s at %.2f%%. Ask to proceed.",
				state.Collateral, loan.FormatINR(state.Amount), state.Rate)
		case state.PendingCollateral != "":
			state.PendingCollateral = ""
			tactic = "request_collateral"
			instruction = fmt.Sprintf(`Collateral not confirmed. Ask again: "Which %s are you purchasing?"`, asset)
		case len(input) > 3 && ent.Amount == 0 && ent.Intent == "" && input != StartSession:
			state.PendingCollateral = input
			tactic = "confirm_collateral"
			instruction = fmt.Sprintf(`Ask: "Just to confirm, is '%s' the %s you are pledging? (Yes/No)"`, input, asset)
		default:
			tactic = "request_collateral"
			instruction = fmt.Sprintf(`Acknowledge amount %s. Ask: "Which %s are you purchasing?"`,
				loan.FormatINR(state.Amount), asset)
		}

	// 用户询问总利息：用摊还口径作答。
	case ent.AskTotalInterest:
		tactic = "math_explanation"
		instruction = fmt.Sprintf(
			`User asked interest. State: "For %s @ %.2f%% (%.1f yrs): Monthly EMI: %s, Total Interest: %s". Ask to proceed.`,
			loan.FormatINR(state.Amount), state.Rate, years,
			loan.FormatINR(summary.EMI), loan.FormatINR(summary.TotalInterest))

	// 活跃协商：处理还价、锁价与确认。
	case state.Status != negotiationLocked:
		resistance := ent.TargetRate > 0 || strings.Contains(lower, "lower") || strings.Contains(lower, "expensive")

		switch {
		case resistance:
			// 锁定确认阶段出现还价时降级回报价阶段，同轮继续处理。
			if state.Status == negotiationLocking {
				state.Status = negotiationActive
			}
			state.Rounds++

			if ent.TargetRate > 0 {
				if ent.TargetRate >= floorRate {
					state.Rate = ent.TargetRate
					tactic = "accept_target"
				} else {
					state.Rate = floorRate
					state.FloorHitCount++
					tactic = "hard_floor"
				}
			} else {
				step := 0.25
				if state.Rate-floorRate > 1.0 {
					step = 0.5
				}
				state.Rate = math.Max(floorRate, state.Rate-step)
				if state.Rate <= floorRate {
					tactic = "hard_floor"
				} else {
					tactic = "step_down"
				}
			}

		case nlu.HasLockSignal(input):
			state.Status = negotiationLocked
			tactic = "closing"

		case nlu.HasConfirmation(input):
			if state.Status != negotiationLocking {
				state.Status = negotiationLocking
				tactic = "ask_confirmation"
			} else {
				state.Status = negotiationLocked
				tactic = "closing"
			}

		default:
			instruction = fmt.Sprintf("Offer: %s at %.2f%% for %.1f years. EMI: %s. Ask if this fits.",
				loan.FormatINR(state.Amount), state.Rate, years, loan.FormatINR(summary.EMI))
		}

	default:
		instruction = "Deal locked. Transferring..."
	}

	// 策略已定但话术未定时，按策略补全指令。
	summary = loan.Summarize(state.Amount, state.Rate, state.Tenure)
	if instruction == "" {
		emi := loan.FormatINR(summary.EMI)
		switch tactic {
		case "accept_target":
			instruction = fmt.Sprintf("Agreed. Matching %.2f%% for %.1f years. EMI: %s. Lock?", state.Rate, years, emi)
		case "step_down":
			instruction = fmt.Sprintf("Special rate: %.2f%% for %.1f years. EMI: %s. Better?", state.Rate, years, emi)
		case "hard_floor":
			instruction = fmt.Sprintf("%.2f%% is floor. EMI: %s. Proceed?", state.Rate, emi)
		case "ask_confirmation":
			instruction = fmt.Sprintf(`Say: "Excellent! Locked %.2f%% for %s (%.1f yrs, EMI: %s). Documentation?"`,
				state.Rate, loan.FormatINR(state.Amount), years, emi)
		case "closing":
			instruction = fmt.Sprintf(`Say: "Perfect. Initiating verification for App ID %s..."`, state.AppID)
		}
	}

	rule2 := "Mention Tenure."
	if tactic == "request_collateral" || tactic == "confirm_collateral" {
		rule2 = "Ask for collateral details."
	}
	systemPrompt := fmt.Sprintf(`ROLE: Loan Officer
DATA: Rate=%.2f%%, Tenure=%.1f yrs, EMI=%s, Collateral=%s
INSTRUCTION: %s

RULES:
1. Concise.
2. %s
3. If "ask_confirmation", end with "Shall we get down to documentation?".
4. OUTPUT VALID JSON ONLY.

OUTPUT: { "response": "text", "status": "NEGOTIATING" | "AMOUNT_AGREED" }`,
		state.Rate, years, loan.FormatINR(summary.EMI), orNA(state.Collateral), instruction, rule2)

	raw, degraded := h.gateway.Invoke(ctx, []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: input},
	}, 0.2)

	reply, ok := llm.ParseStructured(raw)
	if !ok && llm.LooksLikePromptEcho(reply.Response) {
		reply.Response = "Offer updated. Proceed?"
	}
	if strings.TrimSpace(reply.Response) == "" {
		reply.Response = "Let's discuss terms."
	}

	status := StatusNegotiating
	switch {
	case state.Status == negotiationLocked:
		status = StatusAmountAgreed
	case degraded:
		status = StatusDegraded
	}

	response := reply.Response + clampNote
	if !strings.Contains(response, "||FILTER") && state.Amount > 0 && state.Status != negotiationLocked {
		response += fmt.Sprintf(" ||FILTER:%s||", state.Product)
	}

	return Result{
		Response: response,
		Status:   status,
		Data:     state.toPatch(),
	}, nil
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

var _ Handler = (*SalesHandler)(nil)
