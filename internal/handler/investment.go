package handler

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"SwiftyBank/internal/crm"
	"SwiftyBank/internal/llm"
	"SwiftyBank/internal/nlu"
)

// InvestmentProduct 描述一款理财产品。
type InvestmentProduct struct {
	ID        string
	Name      string
	Rate      string
	MinTenure int
	Risk      string
	Desc      string
}

// InvestmentCatalog 是内置理财产品目录。
var InvestmentCatalog = map[string]InvestmentProduct{
	"FD": {
		ID: "inv_fd_001", Name: "SteadyGrowth FD", Rate: "7.10",
		MinTenure: 12, Risk: "Low",
		Desc: "Guaranteed Returns +0.5% Senior",
	},
	"BOND": {
		ID: "inv_sgb_007", Name: "Sovereign Gold Bond", Rate: "2.50",
		MinTenure: 96, Risk: "Medium",
		Desc: "Interest on Gold + No Making Charges",
	},
	"SIP": {
		ID: "inv_mf_eq_005", Name: "Alpha Aggressive Mutual Fund", Rate: "12-15%",
		MinTenure: 60, Risk: "High",
		Desc: "High Growth, Beat Inflation",
	},
}

// 理财意图关键词，首个命中者胜出。
var investmentIntentRules = []nlu.IntentRule{
	{Keyword: "save", Category: "FD"},
	{Keyword: "fd", Category: "FD"},
	{Keyword: "fixed", Category: "FD"},
	{Keyword: "safe", Category: "FD"},
	{Keyword: "bond", Category: "BOND"},
	{Keyword: "gold", Category: "BOND"},
	{Keyword: "sgb", Category: "BOND"},
	{Keyword: "growth", Category: "BOND"},
	{Keyword: "market", Category: "SIP"},
	{Keyword: "mutual", Category: "SIP"},
	{Keyword: "sip", Category: "SIP"},
	{Keyword: "equity", Category: "SIP"},
}

var investYearPattern = regexp.MustCompile(`(?i)(\d+)\s*(year|yr)`)

// investmentState 是理财建议流程的类型化状态。
type investmentState struct {
	Product string
	Amount  float64
	Tenure  int
	Goal    string
	Step    string
}

// InvestmentHandler 负责理财目标发现与配置建议。建议策略
// 结合客户实时余额：超额刹车、闲置资金加码、期限锁定。
type InvestmentHandler struct {
	gateway Inferencer
	crm     crm.Provider
}

// NewInvestmentHandler 构造理财处理器。
func NewInvestmentHandler(gateway Inferencer, provider crm.Provider) *InvestmentHandler {
	return &InvestmentHandler{gateway: gateway, crm: provider}
}

// Name 实现 Handler 接口。
func (h *InvestmentHandler) Name() string { return "InvestmentAgent" }

// extractInvestmentEntities 是理财侧的确定性抽取。
func extractInvestmentEntities(text string) (intent string, amount float64, tenure int, goal string) {
	lower := strings.ToLower(text)
	intent = nlu.MatchIntent(text, investmentIntentRules)

	if !strings.Contains(lower, "%") {
		amount = nlu.ExtractAmount(text, 500)
	}
	if m := investYearPattern.FindStringSubmatch(text); m != nil {
		if years, err := strconv.Atoi(m[1]); err == nil {
			tenure = years * 12
		}
	}

	switch {
	case strings.Contains(lower, "retire"):
		goal = "Retirement"
	case strings.Contains(lower, "child") || strings.Contains(lower, "edu"):
		goal = "Child Education"
	case strings.Contains(lower, "house") || strings.Contains(lower, "home"):
		goal = "Buying a Home"
	case strings.Contains(lower, "wealth") || strings.Contains(lower, "rich"):
		goal = "Wealth Creation"
	}
	return intent, amount, tenure, goal
}

// Run 实现 Handler 接口。
func (h *InvestmentHandler) Run(ctx context.Context, input string, turn *Turn) (Result, error) {
	intent, amount, tenure, goal := extractInvestmentEntities(input)

	profile := crm.ProfileOr(h.crm, turn.CustomerID)
	balance := profile.Balance
	acctTail := last4(profile.AccountID)

	state := investmentState{
		Product: turn.String("productType"),
		Amount:  turn.Float("invAmount"),
		Tenure:  turn.Int("invTenure"),
		Goal:    turn.String("invGoal"),
		Step:    turn.String("invStep"),
	}
	if state.Product == "" {
		state.Product = "FD"
	}
	if state.Step == "" {
		state.Step = "DISCOVERY"
	}
	if intent != "" {
		state.Product = intent
	}
	if amount > 0 {
		state.Amount = amount
	}
	if tenure > 0 {
		state.Tenure = tenure
	}
	if goal != "" {
		state.Goal = goal
	}

	product, ok := InvestmentCatalog[state.Product]
	if !ok {
		product = InvestmentCatalog["FD"]
		state.Product = "FD"
	}

	var strategy string
	switch {
	// 目标未知时先问目标，不急着报数字。
	case state.Goal == "":
		strategy = fmt.Sprintf(`User hasn't stated a goal. Do not pitch numbers yet.
Ask: "To give you the best advice, I need to know what you are saving for. Is this for Retirement, a Dream Home, or an Emergency Fund?"
Mention: "I see you have a healthy balance in account ..%s, let's put it to work."`, acctTail)
		state.Step = "DISCOVERY"

	case state.Step != "LOCKED":
		switch {
		// 超额刹车：投资额不能超出可用余额。
		case state.Amount > 0 && state.Amount > balance:
			safe := math.Floor(balance * 0.8)
			strategy = fmt.Sprintf(`CRITICAL: User wants to invest ₹%.0f but only has ₹%.0f in Account ..%s.
Politely correct them: "I checked your Savings Account, and the available balance is ₹%.0f. Shall we adjust the investment to ₹%.0f to keep some liquidity?"`,
				state.Amount, balance, acctTail, balance, safe)
			state.Amount = safe

		// 闲置资金加码：投资额不足余额两成时建议加仓。
		case state.Amount > 0 && state.Amount < balance*0.2:
			upsell := math.Floor(balance * 0.5)
			strategy = fmt.Sprintf(`OPPORTUNITY: User is investing ₹%.0f, but has ₹%.0f sitting idle.
Say: "I noticed you have ₹%.0f in your savings earning low interest. To reach your goal of %s faster, I recommend investing ₹%.0f instead. The compounding effect will be significant."
Push for the %s at %s%%.`,
				state.Amount, balance, balance, state.Goal, upsell, product.Name, product.Rate)
			state.Step = "UPSELL"

		// 期限不足产品最短锁定期时建议拉长。
		case state.Tenure == 0 || state.Tenure < product.MinTenure:
			years := int(math.Ceil(float64(product.MinTenure) / 12))
			strategy = fmt.Sprintf(`User tenure is too short.
Say: "For %s, short-term volatility is a risk. I strongly recommend locking this for %d years to guarantee the %s%% return."`,
				state.Goal, years, product.Rate)
			state.Step = "UPSELL"

		default:
			strategy = fmt.Sprintf(`Plan is solid.
Confirm: ₹%.0f in %s for %d Years.
Action: Ask to "Create Portfolio".`, state.Amount, product.Name, state.Tenure/12)
			state.Step = "LOCKED"
		}

	default:
		strategy = `Plan already locked. Confirm and move to KYC verification.`
	}

	goalLabel := state.Goal
	if goalLabel == "" {
		goalLabel = "Unknown"
	}
	systemPrompt := fmt.Sprintf(`ROLE: Senior Wealth Manager (Data-Driven, Empathic)
PRODUCT: %s (Rate: %s)
CATALOG EXCERPT: %s

FINANCIAL CONTEXT:
- A/C Balance: ₹%.0f
- User Goal: %s

STRATEGY: %s

RULES:
1. **Use the Data**: Mention "I checked your balance..." or "Account ..%s".
2. **Sell the Dream**: Tie money back to Goal (%s).
3. Length: Under 50 words.

OUTPUT JSON: { "response": "text", "status": "NEGOTIATING" | "COMPLETED" }`,
		product.Name, product.Rate, product.Desc, balance, goalLabel, strategy, acctTail, goalLabel)

	raw, degraded := h.gateway.Invoke(ctx, []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: input},
	}, 0.3)

	reply, parsedOK := llm.ParseStructured(raw)
	if !parsedOK && llm.LooksLikePromptEcho(reply.Response) {
		reply.Response = "I can help with that."
	}
	if strings.TrimSpace(reply.Response) == "" {
		reply.Response = "I can help with that."
	}

	status := StatusNegotiating
	switch {
	case degraded:
		status = StatusDegraded
	case strings.EqualFold(reply.Status, string(StatusCompleted)) && state.Step == "LOCKED":
		status = StatusCompleted
	}

	response := reply.Response
	if (state.Step == "DISCOVERY" || !strings.Contains(response, "||FILTER")) && state.Product != "" {
		response += fmt.Sprintf(" ||FILTER:%s||", state.Product)
	}

	return Result{
		Response: response,
		Status:   status,
		Data: map[string]any{
			"productType": state.Product,
			"invAmount":   state.Amount,
			"invTenure":   state.Tenure,
			"invGoal":     state.Goal,
			"invStep":     state.Step,
		},
	}, nil
}

var _ Handler = (*InvestmentHandler)(nil)
