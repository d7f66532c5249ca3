package handler

import (
	"context"
	"fmt"
	"strings"

	"SwiftyBank/internal/nlu"
)

// kycStep 取值。
const (
	kycInit            = "INIT"
	kycAwaitingDocs    = "AWAITING_DOCS"
	kycConfirmIdentity = "CONFIRM_IDENTITY"
	kycCheckBank       = "CHECK_BANK"
	kycCompleted       = "COMPLETED"
)

// VerificationHandler 负责身份与银行账户核验。纯确定性状态机，
// 不经过推理网关。
type VerificationHandler struct{}

// NewVerificationHandler 构造核验处理器。
func NewVerificationHandler() *VerificationHandler {
	return &VerificationHandler{}
}

// Name 实现 Handler 接口。
func (h *VerificationHandler) Name() string { return "VerificationAgent" }

// Run 实现 Handler 接口。核验过程中用户要求改贷款条款时，
// 以 NEGOTIATION_REOPENED 状态交还编排器重开协商。
func (h *VerificationHandler) Run(ctx context.Context, input string, turn *Turn) (Result, error) {
	step := turn.String("kycStep")
	if step == "" {
		step = kycInit
	}
	lower := strings.ToLower(input)

	// 逃生通道：用户要回去改条款。
	if strings.Contains(lower, "wrong") || strings.Contains(lower, "change amount") || strings.Contains(lower, "go back") {
		return Result{
			Response: "I understand. Sending you back to the Loan Specialist to adjust the terms.",
			Status:   StatusNegotiationReopened,
			Data:     map[string]any{"kycStep": kycInit},
		}, nil
	}

	if step == kycInit || input == StartSession {
		if turn.Bool("digiLockerLinked") {
			name := turn.String("userName")
			if name == "" {
				name = "Mahesh Kumar"
			}
			pan := turn.String("pan")
			if pan == "" {
				pan = "ABCDE1234F"
			}
			return Result{
				Response: fmt.Sprintf("I've fetched your details from DigiLocker.\n\n**Name:** %s\n**PAN:** %s\n\nIs this correct? (Yes/No)", name, pan),
				Status:   StatusAwaitingInput,
				Data:     map[string]any{"kycStep": kycConfirmIdentity},
			}, nil
		}
		return Result{
			Response: "I see your **DigiLocker is not linked**.\n\nTo proceed, please either:\n1. **Link DigiLocker** in your profile settings.\n2. Or manually type your **PAN Number** and **Aadhaar Number** here.",
			Status:   StatusAwaitingInput,
			Data:     map[string]any{"kycStep": kycAwaitingDocs},
		}, nil
	}

	if step == kycAwaitingDocs {
		if strings.Contains(lower, "linked") || strings.Contains(lower, "done") || strings.Contains(lower, "connected") {
			return Result{
				Response: "Great! Retrieving details... Success!\n\n**Name:** Mahesh Kumar\n**Verified via:** DigiLocker\n\nProceeding to Bank Verification...",
				Status:   StatusAwaitingInput,
				Data: map[string]any{
					"kycStep":          kycCheckBank,
					"digiLockerLinked": true,
					"userName":         "Mahesh Kumar",
				},
			}, nil
		}

		pan := nlu.ExtractPAN(input)
		aadhaar := nlu.ExtractAadhaar(input)

		switch {
		case pan != "" && aadhaar != "":
			return Result{
				Response: fmt.Sprintf("Thanks. Verifying **PAN %s** and **Aadhaar ending in %s**...\n\nIdentity Verified: **Mahesh Kumar**.\n\nNow, checking bank details...", pan, aadhaar[len(aadhaar)-4:]),
				Status:   StatusAwaitingInput,
				Data: map[string]any{
					"kycStep":  kycCheckBank,
					"pan":      pan,
					"aadhaar":  aadhaar,
					"userName": "Mahesh Kumar",
				},
			}, nil
		case pan != "":
			return Result{
				Response: "Got the PAN. Now please enter your **12-digit Aadhaar Number**.",
				Status:   StatusAwaitingInput,
				Data:     map[string]any{"pan": pan},
			}, nil
		case aadhaar != "":
			return Result{
				Response: "Got the Aadhaar. Now please enter your **PAN Number**.",
				Status:   StatusAwaitingInput,
				Data:     map[string]any{"aadhaar": aadhaar},
			}, nil
		default:
			return Result{
				Response: "I couldn't detect valid details. Please enter a valid **PAN** (e.g. ABCDE1234F) and **Aadhaar** (12 digits), or say 'Linked' if you connected DigiLocker.",
				Status:   StatusAwaitingInput,
				Data:     map[string]any{},
			}, nil
		}
	}

	if step == kycConfirmIdentity {
		if strings.Contains(lower, "yes") || strings.Contains(lower, "correct") {
			return Result{
				Response: "Identity confirmed. Now checking bank connectivity...",
				Status:   StatusAwaitingInput,
				Data:     map[string]any{"kycStep": kycCheckBank},
			}, nil
		}
		return Result{
			Response: "Apologies. Please manually enter your **PAN** and **Aadhaar** to correct the record.",
			Status:   StatusAwaitingInput,
			Data:     map[string]any{"kycStep": kycAwaitingDocs},
		}, nil
	}

	if step == kycCheckBank {
		if turn.Bool("bankLinked") {
			return Result{
				Response: "Active Bank Account found ending in **XX89**. Verification Complete! Sending to Underwriting.",
				Status:   StatusVerified,
				Data:     map[string]any{"kycStep": kycCompleted},
			}, nil
		}
		if strings.Contains(lower, "done") || strings.Contains(lower, "linked") || strings.Contains(lower, "connected") {
			return Result{
				Response: "Searching for bank account... **Success!** Found HDFC Bank Account linked to your PAN.\n\nVerification Complete! Sending to Underwriting.",
				Status:   StatusVerified,
				Data:     map[string]any{"kycStep": kycCompleted, "bankLinked": true},
			}, nil
		}
		return Result{
			Response: "**No Bank Account Linked**\n\nTo receive the loan funds, we need a valid bank account. Please **Connect your Bank Account** in the Profile section.\n\nType **\"Done\"** once you have linked it.",
			Status:   StatusAwaitingInput,
			Data:     map[string]any{"kycStep": kycCheckBank},
		}, nil
	}

	return Result{Response: "Verifying...", Status: StatusAwaitingInput, Data: map[string]any{}}, nil
}

var _ Handler = (*VerificationHandler)(nil)
