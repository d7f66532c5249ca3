package orchestrator

import (
	"strings"

	"SwiftyBank/internal/handler"
)

// Transition 描述一次工作流跳转。Next 为空串表示本轮结束。
type Transition struct {
	Next string
	Msg  string
}

// Workflow 是 (处理器, 完成状态) → 跳转 的静态路由表。
// 表中没有的组合一律视为本轮终止。
type Workflow map[string]map[handler.Status]Transition

// DefaultWorkflow 返回贷款与理财业务的标准工作流。
func DefaultWorkflow() Workflow {
	return Workflow{
		"SalesAgent": {
			handler.StatusAmountAgreed: {Next: "VerificationAgent", Msg: "_Deal Locked. Moving to Verification..._"},
		},
		"VerificationAgent": {
			handler.StatusVerified:            {Next: "UnderwritingAgent", Msg: "_Identity Confirmed. Analyzing Credit..._"},
			handler.StatusNegotiationReopened: {Next: "SalesAgent", Msg: "_Reopening Application..._"},
		},
		"UnderwritingAgent": {
			handler.StatusApprovedInstant:     {Next: "SanctionAgent", Msg: "_Credit Approved! Preparing Offer..._"},
			handler.StatusNegotiationReopened: {Next: "SalesAgent", Msg: "_Reopening Application..._"},
			handler.StatusRejected:            {Next: "", Msg: "_Application Closed._"},
		},
		"SanctionAgent": {
			handler.StatusCompleted:           {Next: ""},
			handler.StatusNegotiationReopened: {Next: "SalesAgent", Msg: "_Reopening Application..._"},
		},
		"InvestmentAgent": {
			handler.StatusCompleted: {Next: "VerificationAgent", Msg: "_Investment Plan Ready. Verifying KYC..._"},
		},
	}
}

// transferMessages 是路由到各处理器时的开场转接话术。
var transferMessages = map[string]string{
	"SalesAgent":        "Sure, let me transfer you to a Loan Specialist.",
	"InvestmentAgent":   "Connecting you to our Wealth Manager...",
	"SupportAgent":      "Connecting you to Client Support...",
	"VerificationAgent": "I need to verify your identity first.",
	"SanctionAgent":     "Connecting to Sanctioning Desk...",
}

// interruptKeywords 命中即无条件切到客服处理器，无论当前
// 流程停在哪一步。
var interruptKeywords = []string{
	"balance", "complaint", "talk to human", "wrong transaction", "stop", "support",
}

// IsGlobalInterrupt 判断输入是否触发全局中断。
func IsGlobalInterrupt(input string) bool {
	lower := strings.ToLower(input)
	for _, kw := range interruptKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// 关键词路由表，按组顺序匹配，组内任一关键词命中即路由。
var routeGroups = []struct {
	target   string
	keywords []string
}{
	{"InvestmentAgent", []string{"invest", "fd", "sip", "mutual", "taxshield", "save"}},
	{"SalesAgent", []string{"loan", "borrow", "money", "personal", "car"}},
	{"VerificationAgent", []string{"kyc", "document", "upload"}},
	{"SanctionAgent", []string{"sanction", "letter", "download", "pdf"}},
	{"SupportAgent", []string{"status", "application", "block", "lost"}},
	{"SupportAgent", []string{"dispute", "fraud", "wrong", "email"}},
	{"SupportAgent", []string{"address", "update", "balance", "complaint"}},
}

// 理财产品代码，用于上下文回退路由。
var investmentProducts = map[string]bool{"FD": true, "BOND": true, "SIP": true}

// Route 根据关键词为无主会话选择处理器。关键词全不命中时
// 按会话里已有的产品类型回退，最终默认销售。
func Route(message string, data map[string]any) string {
	lower := strings.ToLower(message)
	for _, group := range routeGroups {
		for _, kw := range group.keywords {
			if strings.Contains(lower, kw) {
				return group.target
			}
		}
	}

	if product, ok := data["productType"].(string); ok && product != "" {
		if investmentProducts[product] {
			return "InvestmentAgent"
		}
		return "SalesAgent"
	}
	return "SalesAgent"
}
