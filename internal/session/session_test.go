package session

import (
	"context"
	"testing"
	"time"

	xerrors "SwiftyBank/internal/errors"
)

func TestNewSessionDefaults(t *testing.T) {
	s := New("", "")
	if s.Mobile != "GUEST" {
		t.Fatalf("mobile = %q, want GUEST", s.Mobile)
	}
	if s.ID == "" {
		t.Fatal("session id must be assigned")
	}
	if s.Data["mobile"] != "GUEST" {
		t.Fatalf("data bag mobile = %v", s.Data["mobile"])
	}
}

func TestMergeShallow(t *testing.T) {
	s := New("9876543210", "")
	s.Data["requestedAmount"] = 500_000.0
	s.Merge(map[string]any{"requestedAmount": 700_000.0, "agreedRate": 11.5})

	if s.Data["requestedAmount"] != 700_000.0 {
		t.Fatalf("amount = %v", s.Data["requestedAmount"])
	}
	if s.Data["agreedRate"] != 11.5 {
		t.Fatalf("rate = %v", s.Data["agreedRate"])
	}
	if s.Data["mobile"] != "9876543210" {
		t.Fatalf("untouched key lost: %v", s.Data["mobile"])
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	s := New("9876543210", "CUST-1001")
	s.ActiveAgent = "SalesAgent"
	s.Data["requestedTenure"] = 48
	s.Append(Message{Sender: "user", Text: "hi"})
	if err := store.Save(ctx, s); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := store.Get(ctx, s.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ActiveAgent != "SalesAgent" || got.Mobile != "9876543210" {
		t.Fatalf("session fields lost: %+v", got)
	}
	if len(got.History) != 1 || got.History[0].Text != "hi" {
		t.Fatalf("history lost: %#v", got.History)
	}
	// 与 JSON 持久化口径一致，整数读出为 float64。
	if got.Data["requestedTenure"] != 48.0 {
		t.Fatalf("tenure = %#v", got.Data["requestedTenure"])
	}
}

func TestMemoryStoreGetReturnsIsolatedCopy(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	s := New("9876543210", "")
	if err := store.Save(ctx, s); err != nil {
		t.Fatalf("save: %v", err)
	}

	first, err := store.Get(ctx, s.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	first.Data["requestedAmount"] = 999.0
	first.ActiveAgent = "mutated"

	second, err := store.Get(ctx, s.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if _, ok := second.Data["requestedAmount"]; ok {
		t.Fatal("caller mutation leaked into the store")
	}
	if second.ActiveAgent != "" {
		t.Fatalf("active agent = %q", second.ActiveAgent)
	}
}

func TestMemoryStoreMissingSession(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.Get(context.Background(), "nope")
	if err == nil {
		t.Fatal("expected error for missing session")
	}
	if xerrors.CodeOf(err) != xerrors.CodeNotFound {
		t.Fatalf("code = %v, want NotFound", xerrors.CodeOf(err))
	}

	if err := store.Touch(context.Background(), "nope", time.Now()); err == nil {
		t.Fatal("touch on missing session must fail")
	}
}

func TestMemoryStoreTouch(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	s := New("9876543210", "")
	if err := store.Save(ctx, s); err != nil {
		t.Fatalf("save: %v", err)
	}

	at := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	if err := store.Touch(ctx, s.ID, at); err != nil {
		t.Fatalf("touch: %v", err)
	}
	got, err := store.Get(ctx, s.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.LastActive.Equal(at) {
		t.Fatalf("last active = %v, want %v", got.LastActive, at)
	}
}
