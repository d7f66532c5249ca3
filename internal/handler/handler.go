package handler

import (
	"context"
)

// Status 是处理器返回的完成状态，编排器据此查询工作流表。
type Status string

const (
	StatusNegotiating         Status = "NEGOTIATING"
	StatusAmountAgreed        Status = "AMOUNT_AGREED"
	StatusAwaitingInput       Status = "AWAITING_INPUT"
	StatusVerified            Status = "VERIFIED"
	StatusApprovedInstant     Status = "APPROVED_INSTANT"
	StatusRejected            Status = "REJECTED"
	StatusNegotiationReopened Status = "NEGOTIATION_REOPENED"
	StatusCompleted           Status = "COMPLETED"
	StatusHandoverToHuman     Status = "HANDOVER_TO_HUMAN"
	StatusDegraded            Status = "DEGRADED"
)

// StartSession 是编排器在同一轮次第二跳之后传给处理器的合成输入，
// 表示"由你接管，向用户开场"，而不是用户的真实话语。
const StartSession = "START_SESSION"

// Result 是每个处理器必须返回的契约。Data 是增量补丁，
// 由编排器浅合并进会话数据袋；同一个键的语义类型在整个
// 会话生命周期内不允许改变。
type Result struct {
	Response string
	Status   Status
	Data     map[string]any
}

// Turn 携带一次处理器调用可见的会话上下文。
type Turn struct {
	SessionID  string
	Mobile     string
	CustomerID string
	Data       map[string]any
}

// String 读取数据袋中的字符串值。
func (t *Turn) String(key string) string {
	if t == nil || t.Data == nil {
		return ""
	}
	if v, ok := t.Data[key].(string); ok {
		return v
	}
	return ""
}

// Float 读取数据袋中的数值。JSON 反序列化后数字统一为 float64。
func (t *Turn) Float(key string) float64 {
	if t == nil || t.Data == nil {
		return 0
	}
	switch v := t.Data[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

// Int 读取数据袋中的整数值。
func (t *Turn) Int(key string) int {
	return int(t.Float(key))
}

// Bool 读取数据袋中的布尔值。
func (t *Turn) Bool(key string) bool {
	if t == nil || t.Data == nil {
		return false
	}
	if v, ok := t.Data[key].(bool); ok {
		return v
	}
	return false
}

// Handler 是业务处理器的统一能力接口。实现必须保证：
// 任何输入都能得到一个合法的 Result，失败路径也要产出
// 面向用户的文本，而不是让错误中断整轮对话。
type Handler interface {
	Name() string
	Run(ctx context.Context, input string, turn *Turn) (Result, error)
}

// Registry 是处理器名称到实例的映射。在进程启动时显式构建
// 并注入编排器，而不是进程级单例。
type Registry map[string]Handler
