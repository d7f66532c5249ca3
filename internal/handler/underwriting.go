package handler

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"SwiftyBank/internal/bureau"
	"SwiftyBank/internal/loan"
)

// underwritingStep 取值。
const (
	uwInit          = "INIT"
	uwWaitingAssent = "WAITING_CONSENT"
	uwCheckIncome   = "CHECK_INCOME"
	uwCompleted     = "COMPLETED"
	uwRejected      = "REJECTED"
)

// 授信硬性门槛。
const (
	minCreditScore   = 700
	minMonthlyIncome = 15_000
	maxDTI           = 0.60
	// 粗估月供占本金比例，用于收入压力测试。
	estEMIRatio = 0.02
)

var salaryPattern = regexp.MustCompile(`(?i)(\d+(\.\d+)?)\s*(k|l|lakh)?`)

// UnderwritingHandler 负责信用分与收入审核。软查询需要用户
// 明确授权后才访问征信档案。
type UnderwritingHandler struct {
	bureau bureau.Provider
}

// NewUnderwritingHandler 构造授信处理器。
func NewUnderwritingHandler(provider bureau.Provider) *UnderwritingHandler {
	return &UnderwritingHandler{bureau: provider}
}

// Name 实现 Handler 接口。
func (h *UnderwritingHandler) Name() string { return "UnderwritingAgent" }

// Run 实现 Handler 接口。决策顺序固定：先信用分，后收入，
// 最后 DTI。DTI 超限不直接拒绝，而是退回协商降额。
func (h *UnderwritingHandler) Run(ctx context.Context, input string, turn *Turn) (Result, error) {
	step := turn.String("underwritingStep")
	if step == "" {
		step = uwInit
	}
	lower := strings.ToLower(input)
	score := bureau.ScoreFor(h.bureau, turn.String("pan"))

	if step == uwInit || input == StartSession {
		return Result{
			Response: "To process your loan, I need to check your **CIBIL Score** and **Income Eligibility**.\n\nThis will be a \"Soft Inquiry\". Do I have your permission?",
			Status:   StatusAwaitingInput,
			Data:     map[string]any{"underwritingStep": uwWaitingAssent},
		}, nil
	}

	if step == uwWaitingAssent {
		if !strings.Contains(lower, "yes") && !strings.Contains(lower, "ok") && !strings.Contains(lower, "go") {
			return Result{
				Response: "I cannot proceed without permission.",
				Status:   StatusCompleted,
				Data:     map[string]any{},
			}, nil
		}

		if score < minCreditScore {
			return Result{
				Response: fmt.Sprintf("I found your score is **%d**, which is below our threshold of %d. Unfortunately, we cannot proceed.", score, minCreditScore),
				Status:   StatusRejected,
				Data:     map[string]any{"underwritingStep": uwRejected},
			}, nil
		}
		return Result{
			Response: fmt.Sprintf("**CIBIL Score:** %d (Excellent)\n\nOne last check: What is your **Monthly Net Salary**?", score),
			Status:   StatusAwaitingInput,
			Data:     map[string]any{"underwritingStep": uwCheckIncome},
		}, nil
	}

	if step == uwCheckIncome {
		salary, ok := parseSalary(input)
		if !ok {
			return Result{
				Response: "Please enter a valid monthly salary (e.g. 50000).",
				Status:   StatusAwaitingInput,
				Data:     map[string]any{},
			}, nil
		}

		amount := turn.Float("requestedAmount")
		if amount == 0 {
			amount = 500_000
		}
		estimatedEMI := amount * estEMIRatio
		dti := estimatedEMI / salary

		if salary < minMonthlyIncome {
			return Result{
				Response: fmt.Sprintf("I'm sorry. Based on the declared income of ₹%.0f, you do not meet the minimum income criteria (%s). Application Rejected.", salary, loan.FormatINR(minMonthlyIncome)),
				Status:   StatusRejected,
				Data:     map[string]any{"underwritingStep": uwCompleted},
			}, nil
		}

		if dti > maxDTI {
			return Result{
				Response: fmt.Sprintf("Risk Alert: The estimated EMI for %s is too high for your reported income.\n\nI am sending you back to Sales to **reduce the loan amount**.", loan.FormatINR(amount)),
				Status:   StatusNegotiationReopened,
				Data:     map[string]any{"underwritingStep": uwInit},
			}, nil
		}

		return Result{
			Response: fmt.Sprintf("**Financial Analysis Passed**\n- CIBIL: %d\n- Income Verified: ₹%.0f\n- Risk: Low\n\nGenerating Sanction Letter...", score, salary),
			Status:   StatusApprovedInstant,
			Data: map[string]any{
				"underwritingStep": uwCompleted,
				"verifiedIncome":   salary,
			},
		}, nil
	}

	return Result{Response: "Verifying...", Status: StatusAwaitingInput, Data: map[string]any{}}, nil
}

// parseSalary 解析口语化的月薪表达。单位倍率互斥，
// "40L" 只按 Lakh 放大一次。
func parseSalary(input string) (float64, bool) {
	m := salaryPattern.FindStringSubmatch(input)
	if m == nil || m[1] == "" {
		return 0, false
	}
	salary, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	switch strings.ToLower(m[3]) {
	case "l", "lakh":
		salary *= 100_000
	case "k":
		salary *= 1_000
	}
	return salary, true
}

var _ Handler = (*UnderwritingHandler)(nil)
