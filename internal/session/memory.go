package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// MemoryStore 在进程内存中保存会话，主要用于开发与测试。
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewMemoryStore 创建 MemoryStore。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Session)}
}

// Get 实现 Store 接口。返回深拷贝，避免调用方与存储互相污染。
func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return cloneSession(s)
}

// Save 实现 Store 接口。
func (m *MemoryStore) Save(_ context.Context, s *Session) error {
	clone, err := cloneSession(s)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = clone
	return nil
}

// Touch 实现 Store 接口。
func (m *MemoryStore) Touch(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	s.LastActive = at
	return nil
}

// cloneSession 经 JSON 往返做深拷贝，与持久化存储的序列化
// 口径保持一致（数字统一为 float64）。
func cloneSession(s *Session) (*Session, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var clone Session
	if err := json.Unmarshal(raw, &clone); err != nil {
		return nil, err
	}
	return &clone, nil
}

var _ Store = (*MemoryStore)(nil)
