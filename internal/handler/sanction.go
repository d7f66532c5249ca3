package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"SwiftyBank/internal/loan"
	"SwiftyBank/pkg/logger"
)

// sanctionStep 取值。
const (
	sanctionInit         = "INIT"
	sanctionLetterIssued = "LETTER_ISSUED"
	sanctionCompleted    = "COMPLETED"
)

// SanctionHandler 负责出具批贷函并在客户接受后落账。
type SanctionHandler struct {
	loans loan.Store
	now   func() time.Time
}

// NewSanctionHandler 构造批贷处理器。
func NewSanctionHandler(loans loan.Store) *SanctionHandler {
	return &SanctionHandler{loans: loans, now: time.Now}
}

// Name 实现 Handler 接口。
func (h *SanctionHandler) Name() string { return "SanctionAgent" }

// Run 实现 Handler 接口。落账按申请编号幂等，重复接受不会
// 生成第二笔贷款；落账失败时函件仍视为已接受，仅提示故障。
func (h *SanctionHandler) Run(ctx context.Context, input string, turn *Turn) (Result, error) {
	step := turn.String("sanctionStep")
	if step == "" {
		step = sanctionInit
	}
	lower := strings.ToLower(input)

	// 批贷阶段仍允许反悔回到协商。
	if strings.Contains(lower, "change amount") || strings.Contains(lower, "renegotiate") || strings.Contains(lower, "go back") {
		return Result{
			Response: "Understood. Sending you back to the Loan Specialist to revisit the terms.",
			Status:   StatusNegotiationReopened,
			Data:     map[string]any{"sanctionStep": sanctionInit},
		}, nil
	}

	amount := turn.Float("requestedAmount")
	if amount == 0 {
		amount = 500_000
	}
	rate := turn.Float("agreedRate")
	if rate == 0 {
		rate = 12.0
	}
	tenure := turn.Int("requestedTenure")
	if tenure == 0 {
		tenure = 60
	}
	product := turn.String("productType")
	if product == "" {
		product = "PERSONAL"
	}
	appID := turn.String("applicationId")
	if appID == "" {
		appID = fmt.Sprintf("TEMP-%d", h.now().UnixMilli())
	}

	emi := loan.EMI(amount, rate, tenure)

	if step == sanctionLetterIssued {
		if strings.Contains(lower, "done") || strings.Contains(lower, "accept") ||
			strings.Contains(lower, "thanks") || strings.Contains(lower, "close") {

			userID := turn.Mobile
			if userID == "" {
				userID = "GUEST"
			}
			err := h.loans.Book(ctx, loan.Record{
				ApplicationID: appID,
				UserID:        userID,
				ProductType:   product,
				Amount:        amount,
				InterestRate:  rate,
				TenureMonths:  tenure,
				EMI:           emi,
				Status:        loan.StatusActive,
				DisbursalDate: h.now(),
			})
			if err != nil {
				logger.L().Error("贷款落账失败",
					"application_id", appID,
					"session_id", turn.SessionID,
					"error", err)
				return Result{
					Response: "The letter is accepted, but I had a glitch connecting to the core system. Tech support has been notified.",
					Status:   StatusCompleted,
					Data:     map[string]any{"sanctionStep": sanctionCompleted},
				}, nil
			}

			return Result{
				Response: fmt.Sprintf("Success! The loan (Ref: %s) has been booked in our core banking system. Funds will be credited shortly. ||WIDGET:CLOSE||", appID),
				Status:   StatusCompleted,
				Data:     map[string]any{"sanctionStep": sanctionCompleted, "loanBooked": true},
			}, nil
		}
	}

	name := turn.String("userName")
	if name == "" {
		name = "Valued Customer"
	}

	return Result{
		Response: "The letter is ready. Download it or say **'I accept'** to finish. ||WIDGET:SANCTION_LETTER||",
		Status:   StatusAwaitingInput,
		Data: map[string]any{
			"sanctionStep": sanctionLetterIssued,
			"sanctionDetails": map[string]any{
				"amount": loan.FormatINR(amount),
				"rate":   rate,
				"emi":    loan.FormatINR(emi),
				"name":   name,
				"date":   h.now().Format("02/01/2006"),
			},
		},
	}, nil
}

var _ Handler = (*SanctionHandler)(nil)
