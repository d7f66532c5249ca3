package llm

import (
	"encoding/json"
	"strings"
)

// StructuredReply 是推理输出约定的结构化格式。
type StructuredReply struct {
	Response string `json:"response"`
	Status   string `json:"status"`
}

// ParseStructured 从模型输出中宽容地提取结构化回复。
// 模型经常把 JSON 包在 Markdown 代码块里，或者在前后追加闲聊文本，
// 因此先剥掉围栏，再截取第一个 '{' 到最后一个 '}' 之间的内容解析；
// 找不到合法 JSON 时将整段文本视为回复正文，ok 返回 false。
func ParseStructured(raw string) (reply StructuredReply, ok bool) {
	clean := strings.ReplaceAll(raw, "```json", "")
	clean = strings.ReplaceAll(clean, "```", "")
	clean = strings.TrimSpace(clean)

	first := strings.Index(clean, "{")
	last := strings.LastIndex(clean, "}")
	if first != -1 && last > first {
		candidate := clean[first : last+1]
		if err := json.Unmarshal([]byte(candidate), &reply); err == nil && strings.TrimSpace(reply.Response) != "" {
			return reply, true
		}
	}

	reply.Response = clean
	return reply, false
}

// LooksLikePromptEcho 判断输出是否把系统指令原样吐了回来。
func LooksLikePromptEcho(text string) bool {
	return strings.Contains(text, "ROLE:") || strings.Contains(text, "INSTRUCTION:")
}
