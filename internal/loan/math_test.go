package loan

import (
	"math"
	"strings"
	"testing"
)

func TestEMIKnownValue(t *testing.T) {
	// 5L @ 12% for 48 months.
	got := EMI(500_000, 12.0, 48)
	if got != 13_167 {
		t.Fatalf("EMI = %v, want 13167", got)
	}
}

func TestEMIZeroInputs(t *testing.T) {
	if EMI(0, 12, 48) != 0 || EMI(500000, 0, 48) != 0 || EMI(500000, 12, 0) != 0 {
		t.Fatalf("expected 0 for missing inputs")
	}
}

func TestSummarizeIdentity(t *testing.T) {
	s := Summarize(500_000, 10.5, 48)
	// 总利息恒等于 月供×月数−本金。
	want := s.EMI*48 - 500_000
	if math.Abs(s.TotalInterest-want) > 1e-9 {
		t.Fatalf("TotalInterest = %v, want %v", s.TotalInterest, want)
	}
	if s.TotalPayable != s.EMI*48 {
		t.Fatalf("TotalPayable = %v, want %v", s.TotalPayable, s.EMI*48)
	}
}

func TestMaxPrincipalForEMIRoundTrip(t *testing.T) {
	for _, target := range []float64{10_000, 15_000, 42_000} {
		principal := MaxPrincipalForEMI(target, 10.5, 48)
		back := EMI(principal, 10.5, 48)
		if math.Abs(back-target) > 1 {
			t.Fatalf("round trip for %v drifted: principal %v gives emi %v", target, principal, back)
		}
	}
}

func TestProductCatalog(t *testing.T) {
	p := ProductOf("CAR")
	if p.FloorRate != 8.50 || p.ListRate != 9.50 || p.DefaultTenure != 60 {
		t.Fatalf("unexpected CAR product: %+v", p)
	}
	if !p.RequiresCollateral {
		t.Fatalf("CAR loans must require collateral")
	}
	if ProductOf("UNKNOWN").Code != "PERSONAL" {
		t.Fatalf("unknown product must fall back to PERSONAL")
	}
}

func TestNewApplicationID(t *testing.T) {
	id := NewApplicationID("HOME")
	if !strings.HasPrefix(id, "HL-") || len(id) != len("HL-123456") {
		t.Fatalf("unexpected application id %q", id)
	}
}

func TestFormatINR(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{500_000, "₹5,00,000"},
		{12_34_567, "₹12,34,567"},
		{999, "₹999"},
		{0, "Unknown"},
	}
	for _, tc := range cases {
		if got := FormatINR(tc.in); got != tc.want {
			t.Fatalf("FormatINR(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
