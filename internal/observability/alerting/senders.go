package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/smtp"
	"strings"
	"time"
)

// SlackWebhookSender 通过 Incoming Webhook 投递消息。
type SlackWebhookSender struct {
	WebhookURL string
	Client     *http.Client
}

// Send 实现 SlackSender 接口。
func (s *SlackWebhookSender) Send(ctx context.Context, channel, content string) error {
	if s == nil || strings.TrimSpace(s.WebhookURL) == "" {
		return fmt.Errorf("Slack Webhook 地址未配置")
	}

	payload, err := json.Marshal(map[string]string{
		"channel": channel,
		"text":    content,
	})
	if err != nil {
		return fmt.Errorf("序列化 Slack 消息失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("构造 Slack 请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("发送 Slack 消息失败: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("Slack 返回异常状态码: %d", resp.StatusCode)
	}
	return nil
}

// SMTPSender 通过 SMTP 服务器发送告警邮件。
type SMTPSender struct {
	Addr     string
	From     string
	Username string
	Password string
}

// Send 实现 EmailSender 接口。
func (s *SMTPSender) Send(_ context.Context, subject, content string, to []string) error {
	if s == nil || strings.TrimSpace(s.Addr) == "" {
		return fmt.Errorf("SMTP 地址未配置")
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", s.From)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n")
	msg.WriteString(content)

	var auth smtp.Auth
	if s.Username != "" {
		host := s.Addr
		if idx := strings.Index(host, ":"); idx >= 0 {
			host = host[:idx]
		}
		auth = smtp.PlainAuth("", s.Username, s.Password, host)
	}
	if err := smtp.SendMail(s.Addr, auth, s.From, to, msg.Bytes()); err != nil {
		return fmt.Errorf("发送告警邮件失败: %w", err)
	}
	return nil
}

var (
	_ SlackSender = (*SlackWebhookSender)(nil)
	_ EmailSender = (*SMTPSender)(nil)
)
