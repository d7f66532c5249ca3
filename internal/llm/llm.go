package llm

import "context"

// Message 表示推理请求中的一条带角色标签的消息。
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest 描述一次推理调用的完整输入。
type ChatRequest struct {
	Messages    []Message
	Temperature float64
	Stop        []string
}

// Client 定义了调用推理服务的统一接口。
type Client interface {
	Chat(ctx context.Context, req ChatRequest) (string, error)
}

// 默认的停止序列，防止模型续写多轮对话或泄露指令标签。
var DefaultStop = []string{"User:", "System:", "Swifty:", "Bot:", "||WIDGET", "<|eot_id|>"}
