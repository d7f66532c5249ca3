// Package session 管理对话会话的生命周期与持久化。
package session

import (
	"context"
	"time"

	"github.com/google/uuid"

	xerrors "SwiftyBank/internal/errors"
)

// Message 是会话记录中的一条消息。
type Message struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	AgentType string    `json:"agent_type,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Session 表示一个活跃的对话会话。
// Data 是跨处理器共享的数据袋，键的语义类型在会话生命周期内不变。
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

// ErrSessionNotFound 表示会话不存在。
var ErrSessionNotFound = xerrors.New(xerrors.CodeNotFound, "session not found")

// Store 抽象会话的持久化。Save 必须整体替换会话状态，
// 消息追加由调用方先合并进 History。
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Touch(ctx context.Context, id string, at time.Time) error
}

// New 创建一个新会话。mobile 为空时记为 GUEST。
func New(mobile, customerID string) *Session {
	if mobile == "" {
		mobile = "GUEST"
	}
	now := time.Now()
	return &Session{
		ID:         uuid.NewString(),
		Mobile:     mobile,
		CustomerID: customerID,
		Data:       map[string]any{"mobile": mobile},
		CreatedAt:  now,
		LastActive: now,
	}
}

// Merge 将处理器返回的增量补丁浅合并进数据袋。
func (s *Session) Merge(patch map[string]any) {
	if len(patch) == 0 {
		return
	}
	if s.Data == nil {
		s.Data = make(map[string]any, len(patch))
	}
	for k, v := range patch {
		s.Data[k] = v
	}
}

// Append 追加一条消息到会话历史。
func (s *Session) Append(msg Message) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	s.History = append(s.History, msg)
}
