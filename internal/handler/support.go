package handler

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"SwiftyBank/internal/crm"
	xerrors "SwiftyBank/internal/errors"
	"SwiftyBank/internal/loan"
	"SwiftyBank/internal/nlu"
)

// supportStep 取值。
const (
	supInit           = "INIT"
	supConfirmBalance = "CONFIRM_BALANCE"
	supConfirmBlock   = "CONFIRM_BLOCK"
	supConfirmDispute = "CONFIRM_DISPUTE"
	supWaitingEmail   = "WAITING_EMAIL"
	supConfirmOTP     = "CONFIRM_OTP_EMAIL"
)

// SupportHandler 处理余额、挂失、争议、邮箱变更与申请状态查询。
// 敏感操作一律二次确认。
type SupportHandler struct {
	crm   crm.Provider
	loans loan.Store
}

// NewSupportHandler 构造客服处理器。
func NewSupportHandler(provider crm.Provider, loans loan.Store) *SupportHandler {
	return &SupportHandler{crm: provider, loans: loans}
}

// Name 实现 Handler 接口。
func (h *SupportHandler) Name() string { return "SupportAgent" }

// Run 实现 Handler 接口。
func (h *SupportHandler) Run(ctx context.Context, input string, turn *Turn) (Result, error) {
	step := turn.String("supportStep")
	if step == "" {
		step = supInit
	}
	lower := strings.ToLower(input)
	account := crm.ProfileOr(h.crm, turn.CustomerID)

	// 人工升级优先于一切意图。
	if strings.Contains(lower, "manager") || strings.Contains(lower, "human") || strings.Contains(lower, "complaint") {
		return Result{
			Response: "I understand this requires human attention. I am connecting you to a Senior Relationship Manager. Current wait time: 2 minutes. ||WIDGET:CONNECTING_ANIMATION||",
			Status:   StatusHandoverToHuman,
			Data:     map[string]any{},
		}, nil
	}

	// 申请状态查询：有编号直接查核心系统，没有就先要编号。
	appRef := nlu.ExtractAppRef(input)
	if strings.Contains(lower, "status") || appRef != "" {
		if appRef != "" {
			return h.loanStatus(ctx, appRef)
		}
		if step == supInit && !strings.Contains(lower, "balance") {
			return Result{
				Response: "Please provide your **Application Reference Number** (e.g. PL-123456).",
				Status:   StatusAwaitingInput,
				Data:     map[string]any{},
			}, nil
		}
	}

	if step == supInit && (strings.Contains(lower, "balance") || strings.Contains(lower, "how much")) {
		return Result{
			Response: fmt.Sprintf("I can show your balance. Just to be safe, please confirm you want to view the balance for: **%s Account (..%s)**?", account.AccountType, last4(account.AccountID)),
			Status:   StatusAwaitingInput,
			Data:     map[string]any{"supportStep": supConfirmBalance},
		}, nil
	}
	if step == supConfirmBalance {
		if strings.Contains(lower, "yes") || strings.Contains(lower, "ok") {
			return Result{
				Response: fmt.Sprintf("Your Balance: **%s**", loan.FormatINR(account.Balance)),
				Status:   StatusCompleted,
				Data:     map[string]any{"supportStep": supInit},
			}, nil
		}
		return Result{
			Response: "Okay, balance hidden.",
			Status:   StatusCompleted,
			Data:     map[string]any{"supportStep": supInit},
		}, nil
	}

	if step == supInit && (strings.Contains(lower, "block") || strings.Contains(lower, "lost") || strings.Contains(lower, "stolen")) {
		card := account.CardLast4
		if card == "" {
			card = "XXXX"
		}
		return Result{
			Response: fmt.Sprintf("**Emergency Mode**: Do you want to permanently BLOCK your Debit Card ending in **%s**? This cannot be undone. Type 'Yes' to confirm.", card),
			Status:   StatusAwaitingInput,
			Data:     map[string]any{"supportStep": supConfirmBlock},
		}, nil
	}
	if step == supConfirmBlock {
		if strings.Contains(lower, "yes") || strings.Contains(lower, "block") {
			return Result{
				Response: fmt.Sprintf("Your card has been **BLOCKED** immediately. A replacement will be mailed to your registered address within 5 working days. Reference: BLK-%d", rand.Intn(10_000)),
				Status:   StatusCompleted,
				Data:     map[string]any{"supportStep": supInit},
			}, nil
		}
		return Result{
			Response: "Card block cancelled. Your card is still active.",
			Status:   StatusCompleted,
			Data:     map[string]any{"supportStep": supInit},
		}, nil
	}

	if step == supInit && (strings.Contains(lower, "dispute") || strings.Contains(lower, "fraud") || strings.Contains(lower, "wrong transaction")) {
		txn := crm.Transaction{Amount: 0, Desc: "Unknown"}
		if len(account.Transactions) > 0 {
			txn = account.Transactions[0]
		}
		return Result{
			Response: fmt.Sprintf("I can help raise a dispute. Are you referring to the last transaction: **₹%.0f at %s**?", txn.Amount, txn.Desc),
			Status:   StatusAwaitingInput,
			Data:     map[string]any{"supportStep": supConfirmDispute},
		}, nil
	}
	if step == supConfirmDispute {
		if strings.Contains(lower, "yes") {
			return Result{
				Response: fmt.Sprintf("Dispute Ticket **#DSP-%04d** raised. The amount will be temporarily credited back within 48 hours pending investigation.", rand.Intn(10_000)),
				Status:   StatusCompleted,
				Data:     map[string]any{"supportStep": supInit},
			}, nil
		}
		return Result{
			Response: "Please contact the branch for older transactions.",
			Status:   StatusCompleted,
			Data:     map[string]any{"supportStep": supInit},
		}, nil
	}

	if step == supInit && (strings.Contains(lower, "update email") || strings.Contains(lower, "change email")) {
		return Result{
			Response: "To update your email, please type the **New Email Address**.",
			Status:   StatusAwaitingInput,
			Data:     map[string]any{"supportStep": supWaitingEmail},
		}, nil
	}
	if step == supWaitingEmail {
		email := nlu.ExtractEmail(input)
		if email != "" {
			return Result{
				Response: fmt.Sprintf("I've sent an OTP to your mobile to confirm changing email to **%s**. Please type the OTP (Mock: 1234).", email),
				Status:   StatusAwaitingInput,
				Data:     map[string]any{"supportStep": supConfirmOTP, "newEmail": email},
			}, nil
		}
		return Result{
			Response: "That didn't look like a valid email. Try again.",
			Status:   StatusAwaitingInput,
			Data:     map[string]any{"supportStep": supWaitingEmail},
		}, nil
	}
	if step == supConfirmOTP {
		if strings.Contains(input, "1234") {
			return Result{
				Response: fmt.Sprintf("Success! Your email has been updated to **%s**.", turn.String("newEmail")),
				Status:   StatusCompleted,
				Data:     map[string]any{"supportStep": supInit},
			}, nil
		}
		return Result{
			Response: "Incorrect OTP. Update cancelled.",
			Status:   StatusCompleted,
			Data:     map[string]any{"supportStep": supInit},
		}, nil
	}

	return Result{
		Response: "I can help with **Balance**, **Blocking Cards**, **Disputes**, or **Updating Email**. What do you need?",
		Status:   StatusAwaitingInput,
		Data:     map[string]any{"supportStep": supInit},
	}, nil
}

func (h *SupportHandler) loanStatus(ctx context.Context, appID string) (Result, error) {
	record, err := h.loans.Find(ctx, appID)
	if err != nil {
		if xerrors.CodeOf(err) == xerrors.CodeNotFound {
			return Result{
				Response: fmt.Sprintf("I couldn't find application **%s**. Please check the ID.", appID),
				Status:   StatusCompleted,
				Data:     map[string]any{},
			}, nil
		}
		return Result{Response: "System Error.", Status: StatusCompleted, Data: map[string]any{}}, nil
	}

	msg := fmt.Sprintf("**App:** %s\n**Status:** %s", appID, record.Status)
	if record.Status == loan.StatusDisbursed {
		msg += fmt.Sprintf("\n**Disbursed:** %s", record.DisbursalDate.Format("02/01/2006"))
	} else {
		msg += "\n**Pending:** Underwriting"
	}
	return Result{Response: msg, Status: StatusCompleted, Data: map[string]any{}}, nil
}

func last4(s string) string {
	if len(s) <= 4 {
		return s
	}
	return s[len(s)-4:]
}

var _ Handler = (*SupportHandler)(nil)
