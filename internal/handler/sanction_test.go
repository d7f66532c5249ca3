package handler

import (
	"context"
	"strings"
	"testing"
	"time"

	"SwiftyBank/internal/loan"
)

func sanctionTurn() *Turn {
	return &Turn{
		SessionID: "sess-1",
		Mobile:    "9876543210",
		Data: map[string]any{
			"productType":     "PERSONAL",
			"applicationId":   "PL-654321",
			"requestedAmount": 500_000.0,
			"agreedRate":      11.5,
			"requestedTenure": 48,
			"userName":        "Mahesh Kumar",
		},
	}
}

func TestSanctionIssuesLetterFirst(t *testing.T) {
	h := NewSanctionHandler(loan.NewMemoryStore())
	h.now = func() time.Time { return time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC) }

	result, err := h.Run(context.Background(), StartSession, sanctionTurn())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != StatusAwaitingInput {
		t.Fatalf("status = %v, want AWAITING_INPUT", result.Status)
	}
	if !strings.Contains(result.Response, "||WIDGET:SANCTION_LETTER||") {
		t.Fatalf("letter widget missing: %q", result.Response)
	}
	details, ok := result.Data["sanctionDetails"].(map[string]any)
	if !ok {
		t.Fatalf("sanctionDetails missing: %#v", result.Data)
	}
	if details["amount"] != "₹5,00,000" {
		t.Fatalf("amount = %v", details["amount"])
	}
	if details["date"] != "10/05/2024" {
		t.Fatalf("date = %v", details["date"])
	}
}

func TestSanctionAcceptBooksLoan(t *testing.T) {
	loans := loan.NewMemoryStore()
	h := NewSanctionHandler(loans)
	turn := sanctionTurn()
	turn.Data["sanctionStep"] = "LETTER_ISSUED"

	result, err := h.Run(context.Background(), "I accept", turn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != StatusCompleted {
		t.Fatalf("status = %v, want COMPLETED", result.Status)
	}
	if !strings.Contains(result.Response, "PL-654321") || !strings.Contains(result.Response, "||WIDGET:CLOSE||") {
		t.Fatalf("unexpected close reply: %q", result.Response)
	}
	if result.Data["loanBooked"] != true {
		t.Fatalf("loanBooked not set: %#v", result.Data)
	}

	record, err := loans.Find(context.Background(), "PL-654321")
	if err != nil {
		t.Fatalf("booked loan missing: %v", err)
	}
	if record.Amount != 500_000 || record.InterestRate != 11.5 || record.Status != loan.StatusActive {
		t.Fatalf("booked record wrong: %+v", record)
	}
	if record.UserID != "9876543210" {
		t.Fatalf("user id = %q", record.UserID)
	}
}

func TestSanctionBookIsIdempotent(t *testing.T) {
	loans := loan.NewMemoryStore()
	if err := loans.Book(context.Background(), loan.Record{
		ApplicationID: "PL-654321",
		Amount:        500_000,
		Status:        loan.StatusActive,
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	h := NewSanctionHandler(loans)
	turn := sanctionTurn()
	turn.Data["sanctionStep"] = "LETTER_ISSUED"
	turn.Data["agreedRate"] = 99.0

	if _, err := h.Run(context.Background(), "done", turn); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	record, err := loans.Find(context.Background(), "PL-654321")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if record.InterestRate != 0 {
		t.Fatalf("duplicate accept overwrote record: %+v", record)
	}
}

func TestSanctionAllowsReopen(t *testing.T) {
	h := NewSanctionHandler(loan.NewMemoryStore())
	turn := sanctionTurn()
	turn.Data["sanctionStep"] = "LETTER_ISSUED"

	result, err := h.Run(context.Background(), "actually I want to change amount", turn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != StatusNegotiationReopened {
		t.Fatalf("status = %v, want NEGOTIATION_REOPENED", result.Status)
	}
}
