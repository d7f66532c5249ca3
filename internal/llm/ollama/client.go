package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"SwiftyBank/internal/llm"
)

const (
	defaultEndpoint  = "http://127.0.0.1:11434/api/chat"
	defaultModelName = "llama3.2:3b"
	defaultTimeout   = 60 * time.Second
)

// Config 描述调用 Ollama chat 接口所需的信息。
type Config struct {
	Endpoint string
	Model    string
	Timeout  time.Duration
}

// Client 通过 HTTP 调用本地或远端的 Ollama 服务。
type Client struct {
	endpoint   string
	model      string
	httpClient *http.Client
}

// NewClient 根据配置创建 Ollama 客户端。
func NewClient(cfg Config) (*Client, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = defaultEndpoint
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModelName
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		endpoint: endpoint,
		model:    model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// Chat 调用 Ollama 生成回复文本。
func (c *Client) Chat(ctx context.Context, req llm.ChatRequest) (string, error) {
	payload, err := c.buildPayload(req)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("构建推理请求失败: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("请求推理服务失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("推理服务返回错误状态 %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("解析推理响应失败: %w", err)
	}

	content := strings.TrimSpace(decoded.Message.Content)
	if content == "" {
		return "", errors.New("推理响应内容为空")
	}
	return content, nil
}

func (c *Client) buildPayload(req llm.ChatRequest) ([]byte, error) {
	stop := req.Stop
	if len(stop) == 0 {
		stop = llm.DefaultStop
	}

	body := map[string]any{
		"model":    c.model,
		"messages": req.Messages,
		"stream":   false,
		"options": map[string]any{
			"temperature": req.Temperature,
		},
		"stop": stop,
	}

	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("序列化推理请求失败: %w", err)
	}
	return encoded, nil
}

var _ llm.Client = (*Client)(nil)
