// Package swifty provides a small Go client for the SwiftyBank
// conversation REST API.
package swifty

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"
)

// DefaultHTTPTimeout defines the timeout used by clients created without a
// custom http.Client. It is intentionally short to avoid hanging network calls.
const DefaultHTTPTimeout = 90 * time.Second

// Client wraps the HTTP interactions with the SwiftyBank REST API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// Message is a single entry of a conversation transcript.
type Message struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	AgentType string    `json:"agent_type,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is the full server-side view of a conversation.
type Session struct {
	ID          string         `json:"id"`
	Mobile      string         `json:"mobile"`
	CustomerID  string         `json:"customer_id"`
	ActiveAgent string         `json:"active_agent"`
	Data        map[string]any `json:"data"`
	History     []Message      `json:"history"`
	CreatedAt   time.Time      `json:"created_at"`
	LastActive  time.Time      `json:"last_active"`
}

// TurnResult is the reply batch produced by one user message.
type TurnResult struct {
	SessionID string         `json:"session_id"`
	Response  string         `json:"response"`
	Messages  []Message      `json:"messages"`
	Data      map[string]any `json:"data"`
}

// CreditRecord is a bureau lookup result.
type CreditRecord struct {
	PAN         string   `json:"pan"`
	Score       int      `json:"score"`
	LastUpdated string   `json:"last_updated"`
	History     []string `json:"history"`
}

// APIError represents server side validation or internal errors.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("swifty api error (%d): %s", e.StatusCode, e.Message)
}

// NewClient instantiates a client for the SwiftyBank API. When httpClient is
// nil, a default client with a sensible timeout is used.
func NewClient(rawURL string, httpClient *http.Client) (*Client, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &Client{baseURL: parsed, httpClient: httpClient}, nil
}

// CreateSession opens a new conversation session.
func (c *Client) CreateSession(ctx context.Context, mobile, customerID string) (string, error) {
	payload := map[string]string{"mobile": mobile, "customer_id": customerID}
	var out struct {
		SessionID string `json:"session_id"`
	}
	if err := c.post(ctx, "/api/v1/sessions", payload, &out); err != nil {
		return "", err
	}
	return out.SessionID, nil
}

// GetSession fetches the full session state by identifier.
func (c *Client) GetSession(ctx context.Context, sessionID string) (Session, error) {
	var sess Session
	if err := c.get(ctx, "/api/v1/sessions/"+url.PathEscape(sessionID), &sess); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// SendMessage submits one user utterance and returns the reply batch.
func (c *Client) SendMessage(ctx context.Context, sessionID, mobile, customerID, message string) (TurnResult, error) {
	payload := map[string]string{
		"session_id":  sessionID,
		"mobile":      mobile,
		"customer_id": customerID,
		"message":     message,
	}
	var result TurnResult
	if err := c.post(ctx, "/api/v1/messages", payload, &result); err != nil {
		return TurnResult{}, err
	}
	return result, nil
}

// CreditScore looks up the bureau record for a PAN.
func (c *Client) CreditScore(ctx context.Context, pan string) (CreditRecord, error) {
	var record CreditRecord
	endpoint := "/api/v1/cibil?pan=" + url.QueryEscape(pan)
	if err := c.get(ctx, endpoint, &record); err != nil {
		return CreditRecord{}, err
	}
	return record, nil
}

func (c *Client) post(ctx context.Context, endpoint string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Request, error) {
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}
	rel := &url.URL{Path: path.Join(c.baseURL.Path, parsed.Path), RawQuery: parsed.RawQuery}
	u := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("read error response: %w", readErr)
		}
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(bytes.TrimSpace(data)),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
