package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"SwiftyBank/internal/bureau"
	"SwiftyBank/internal/handler"
	"SwiftyBank/internal/orchestrator"
	"SwiftyBank/internal/session"
)

type echoHandler struct{}

func (echoHandler) Name() string { return "SalesAgent" }

func (echoHandler) Run(_ context.Context, input string, _ *handler.Turn) (handler.Result, error) {
	return handler.Result{
		Response: "echo: " + input,
		Status:   handler.StatusAwaitingInput,
		Data:     map[string]any{},
	}, nil
}

func newTestServer() (*Server, session.Store) {
	store := session.NewMemoryStore()
	engine := orchestrator.New(handler.Registry{"SalesAgent": echoHandler{}}, store, orchestrator.Options{})
	provider := bureau.NewStaticProvider([]bureau.Record{
		{PAN: "ABCDE1234F", Score: 780, History: []string{"HDFC Credit Card - Paid on time"}},
	})
	return NewServer(":0", engine, store, provider), store
}

func TestHandleCreateSession(t *testing.T) {
	server, store := newTestServer()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions",
		strings.NewReader(`{"mobile": "9876543210", "customer_id": "CUST-1001"}`))
	rec := httptest.NewRecorder()

	server.handleCreateSession(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("unexpected status code: got %d want %d", rec.Code, http.StatusCreated)
	}

	var resp createSessionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.SessionID == "" {
		t.Fatal("session id missing from response")
	}
	if !strings.Contains(resp.Message, "Swifty") {
		t.Fatalf("welcome message = %q", resp.Message)
	}

	sess, err := store.Get(context.Background(), resp.SessionID)
	if err != nil {
		t.Fatalf("session not stored: %v", err)
	}
	if sess.Mobile != "9876543210" || sess.CustomerID != "CUST-1001" {
		t.Fatalf("session fields wrong: %+v", sess)
	}
	if len(sess.History) != 1 || sess.History[0].Sender != "bot" {
		t.Fatalf("welcome not recorded: %#v", sess.History)
	}
}

func TestHandleCreateSessionErrors(t *testing.T) {
	server, _ := newTestServer()

	t.Run("invalid method", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions", nil)
		rec := httptest.NewRecorder()

		server.handleCreateSession(rec, req)

		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
		}
	})

	t.Run("bad body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", strings.NewReader("{not json"))
		rec := httptest.NewRecorder()

		server.handleCreateSession(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
		}
	})
}

func TestHandleGetSession(t *testing.T) {
	server, store := newTestServer()

	sess := session.New("9876543210", "CUST-1001")
	if err := store.Save(context.Background(), sess); err != nil {
		t.Fatalf("seed session: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+sess.ID, nil)
	rec := httptest.NewRecorder()

	server.handleGetSession(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status code: got %d want %d", rec.Code, http.StatusOK)
	}

	var got session.Session
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.ID != sess.ID || got.Mobile != "9876543210" {
		t.Fatalf("unexpected session: %+v", got)
	}
}

func TestHandleGetSessionNotFound(t *testing.T) {
	server, _ := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/nope", nil)
	rec := httptest.NewRecorder()

	server.handleGetSession(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestHandleMessage(t *testing.T) {
	server, _ := newTestServer()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/messages",
		strings.NewReader(`{"mobile": "9876543210", "message": "I need a loan"}`))
	rec := httptest.NewRecorder()

	server.handleMessage(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status code: got %d want %d", rec.Code, http.StatusOK)
	}

	var result orchestrator.TurnResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.SessionID == "" {
		t.Fatal("session id missing from turn result")
	}
	if !strings.Contains(result.Response, "echo: I need a loan") {
		t.Fatalf("handler reply missing: %q", result.Response)
	}
}

func TestHandleMessageRejectsEmpty(t *testing.T) {
	server, _ := newTestServer()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/messages",
		strings.NewReader(`{"mobile": "9876543210", "message": "  "}`))
	rec := httptest.NewRecorder()

	server.handleMessage(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
}

func TestHandleCIBIL(t *testing.T) {
	server, _ := newTestServer()

	t.Run("known pan", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/cibil?pan=ABCDE1234F", nil)
		rec := httptest.NewRecorder()

		server.handleCIBIL(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("unexpected status code: %d", rec.Code)
		}
		var record bureau.Record
		if err := json.Unmarshal(rec.Body.Bytes(), &record); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if record.Score != 780 {
			t.Fatalf("score = %d, want 780", record.Score)
		}
	})

	t.Run("unknown pan gets demo default", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/cibil?pan=ZZZZZ9999Z", nil)
		rec := httptest.NewRecorder()

		server.handleCIBIL(rec, req)

		var record bureau.Record
		if err := json.Unmarshal(rec.Body.Bytes(), &record); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if record.Score != 720 {
			t.Fatalf("score = %d, want 720", record.Score)
		}
	})

	t.Run("missing pan", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/cibil", nil)
		rec := httptest.NewRecorder()

		server.handleCIBIL(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
		}
	})
}
