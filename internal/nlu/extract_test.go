package nlu

import "testing"

func TestMatchIntentFirstHitWins(t *testing.T) {
	rules := []IntentRule{
		{Keyword: "car", Category: "CAR"},
		{Keyword: "personal", Category: "PERSONAL"},
	}
	if got := MatchIntent("I need a car and a personal loan", rules); got != "CAR" {
		t.Fatalf("expected CAR, got %q", got)
	}
	if got := MatchIntent("hello there", rules); got != "" {
		t.Fatalf("expected empty intent, got %q", got)
	}
}

func TestHasCurrencyMismatch(t *testing.T) {
	if !HasCurrencyMismatch("I want 5000 dollars") {
		t.Fatalf("expected dollar to trigger mismatch")
	}
	if HasCurrencyMismatch("I want 5 lakh rupees") {
		t.Fatalf("rupees should not trigger mismatch")
	}
}

func TestParseRawNumber(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"5l", 500_000},
		{"5 lakh", 500_000},
		{"50k", 50_000},
		{"1cr", 10_000_000},
		{"20000", 20_000},
		{"", 0},
	}
	for _, tc := range cases {
		if got := ParseRawNumber(tc.in); got != tc.want {
			t.Fatalf("ParseRawNumber(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestExtractAmount(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"I need 5 lakh", 500_000},
		{"give me 50k fast", 50_000},
		{"loan of 200000", 200_000},
		{"2 lakh or maybe 5 lakh", 500_000},
		{"my number is 99", 0},
		{"just chatting", 0},
	}
	for _, tc := range cases {
		if got := ExtractAmount(tc.in, 100); got != tc.want {
			t.Fatalf("ExtractAmount(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestExtractTargetRateNeedsContext(t *testing.T) {
	if got := ExtractTargetRate("can you do 9% interest"); got != 9 {
		t.Fatalf("expected 9, got %v", got)
	}
	// 没有利率语境时百分数不算还价。
	if got := ExtractTargetRate("I am 90% sure"); got != 0 {
		t.Fatalf("expected 0 without rate context, got %v", got)
	}
}

func TestExtractTargetEMI(t *testing.T) {
	if got := ExtractTargetEMI("I can pay 15k per month"); got != 15_000 {
		t.Fatalf("expected 15000, got %v", got)
	}
	if got := ExtractTargetEMI("I can pay 15000"); got != 0 {
		t.Fatalf("expected 0 without monthly context, got %v", got)
	}
	// 超出月供可信上限视为误判。
	if got := ExtractTargetEMI("emi of 600000"); got != 0 {
		t.Fatalf("expected 0 for implausible emi, got %v", got)
	}
}

func TestExtractTenureMonths(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"over 5 years", 60},
		{"for 36 months", 36},
		{"a couple of years", 24},
		{"half a decade in years", 60},
		{"a couple of things", 0},
	}
	for _, tc := range cases {
		if got := ExtractTenureMonths(tc.in); got != tc.want {
			t.Fatalf("ExtractTenureMonths(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestIdentityExtractors(t *testing.T) {
	if got := ExtractPAN("my pan is abcde1234f"); got != "ABCDE1234F" {
		t.Fatalf("unexpected PAN %q", got)
	}
	if got := ExtractAadhaar("aadhaar 123456789012 here"); got != "123456789012" {
		t.Fatalf("unexpected aadhaar %q", got)
	}
	if got := ExtractAppRef("status of pl-123456 please"); got != "PL-123456" {
		t.Fatalf("unexpected app ref %q", got)
	}
	if got := ExtractEmail("reach me at dev@example.co.in"); got != "dev@example.co.in" {
		t.Fatalf("unexpected email %q", got)
	}
}

func TestSignalDetectors(t *testing.T) {
	if !HasConfirmation("yes please") || HasConfirmation("never") {
		t.Fatalf("confirmation detection broken")
	}
	if !HasLockSignal("lock the deal") || HasLockSignal("looking around") {
		t.Fatalf("lock detection broken")
	}
	if !HasInsult("your math is wrong") || HasInsult("all good") {
		t.Fatalf("insult detection broken")
	}
}
