package handler

import (
	"context"
	"strings"
	"testing"

	"SwiftyBank/internal/crm"
)

func investmentCRM() crm.Provider {
	return crm.NewStaticProvider([]crm.Profile{{
		CustomerID:  "CUST-1001",
		AccountType: "Savings",
		AccountID:   "501100247810",
		Balance:     100_000,
	}})
}

func TestInvestmentAsksForGoalFirst(t *testing.T) {
	stub := &stubGateway{}
	h := NewInvestmentHandler(stub, investmentCRM())
	turn := &Turn{CustomerID: "CUST-1001", Data: map[string]any{}}

	result, err := h.Run(context.Background(), "I want to invest in a fd", turn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := result.Data["invStep"].(string); got != "DISCOVERY" {
		t.Fatalf("step = %q, want DISCOVERY", got)
	}
	if result.Data["productType"].(string) != "FD" {
		t.Fatalf("product = %v", result.Data["productType"])
	}
	if !strings.Contains(stub.lastSystem, "hasn't stated a goal") {
		t.Fatalf("discovery strategy not fed to model: %q", stub.lastSystem)
	}
	if !strings.Contains(result.Response, "||FILTER:FD||") {
		t.Fatalf("filter tag missing: %q", result.Response)
	}
}

func TestInvestmentBrakesWhenAmountExceedsBalance(t *testing.T) {
	stub := &stubGateway{}
	h := NewInvestmentHandler(stub, investmentCRM())
	turn := &Turn{CustomerID: "CUST-1001", Data: map[string]any{
		"productType": "FD",
		"invGoal":     "Retirement",
	}}

	result, err := h.Run(context.Background(), "invest 2 lakh", turn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := result.Data["invAmount"].(float64); got != 80_000 {
		t.Fatalf("amount = %v, want brake to 80%% of balance", got)
	}
	if !strings.Contains(stub.lastSystem, "CRITICAL") {
		t.Fatalf("brake strategy not fed to model: %q", stub.lastSystem)
	}
}

func TestInvestmentUpsellsIdleCash(t *testing.T) {
	stub := &stubGateway{}
	h := NewInvestmentHandler(stub, investmentCRM())
	turn := &Turn{CustomerID: "CUST-1001", Data: map[string]any{
		"productType": "FD",
		"invGoal":     "Retirement",
	}}

	result, err := h.Run(context.Background(), "put in 5000", turn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := result.Data["invStep"].(string); got != "UPSELL" {
		t.Fatalf("step = %q, want UPSELL", got)
	}
	if !strings.Contains(stub.lastSystem, "OPPORTUNITY") {
		t.Fatalf("upsell strategy not fed to model: %q", stub.lastSystem)
	}
	// 加码只建议，不自动改额。
	if got := result.Data["invAmount"].(float64); got != 5_000 {
		t.Fatalf("amount = %v, upsell must not force the amount", got)
	}
}

func TestInvestmentLocksCompletePlan(t *testing.T) {
	stub := &stubGateway{reply: `{"response": "Portfolio created.", "status": "COMPLETED"}`}
	h := NewInvestmentHandler(stub, investmentCRM())
	turn := &Turn{CustomerID: "CUST-1001", Data: map[string]any{
		"productType": "FD",
		"invGoal":     "Retirement",
		"invAmount":   50_000.0,
	}}

	result, err := h.Run(context.Background(), "lock it for 3 years", turn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := result.Data["invStep"].(string); got != "LOCKED" {
		t.Fatalf("step = %q, want LOCKED", got)
	}
	if got := result.Data["invTenure"].(int); got != 36 {
		t.Fatalf("tenure = %v, want 36", got)
	}
	if result.Status != StatusCompleted {
		t.Fatalf("status = %v, want COMPLETED", result.Status)
	}
}

func TestInvestmentCompletedNeedsLockedStep(t *testing.T) {
	stub := &stubGateway{reply: `{"response": "Done.", "status": "COMPLETED"}`}
	h := NewInvestmentHandler(stub, investmentCRM())
	turn := &Turn{CustomerID: "CUST-1001", Data: map[string]any{}}

	result, err := h.Run(context.Background(), "I want a gold bond", turn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status == StatusCompleted {
		t.Fatalf("model cannot complete before the plan is locked")
	}
	if result.Data["productType"].(string) != "BOND" {
		t.Fatalf("product = %v", result.Data["productType"])
	}
}

func TestInvestmentDegradedKeepsState(t *testing.T) {
	stub := &stubGateway{degraded: true, reply: "I'm having trouble connecting. One moment."}
	h := NewInvestmentHandler(stub, investmentCRM())
	turn := &Turn{CustomerID: "CUST-1001", Data: map[string]any{
		"productType": "SIP",
		"invGoal":     "Wealth Creation",
		"invAmount":   50_000.0,
	}}

	result, err := h.Run(context.Background(), StartSession, turn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != StatusDegraded {
		t.Fatalf("status = %v, want DEGRADED", result.Status)
	}
	if result.Data["invAmount"].(float64) != 50_000 {
		t.Fatalf("state lost on degraded turn: %#v", result.Data)
	}
}
