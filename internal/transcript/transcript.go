// Package transcript 将对话消息异步投递给下游审计与分析系统。
package transcript

import (
	"context"
	"time"
)

// Event 是一条待投递的对话消息事件。
type Event struct {
	SessionID string    `json:"session_id"`
	Sender    string    `json:"sender"`
	AgentType string    `json:"agent_type,omitempty"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher 抽象消息事件的投递。实现必须容忍下游短暂不可用，
// 投递失败不允许影响对话主流程。
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NopPublisher 丢弃所有事件，用于未配置消息通道的部署。
type NopPublisher struct{}

// Publish 实现 Publisher 接口。
func (NopPublisher) Publish(context.Context, Event) error { return nil }

// Close 实现 Publisher 接口。
func (NopPublisher) Close() error { return nil }

var _ Publisher = NopPublisher{}
