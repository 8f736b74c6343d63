package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// SMSConfig 短信网关配置
type SMSConfig struct {
	GatewayURL string
	Sender     string
	APIKey     string
	Timeout    time.Duration
}

// SMSChannel 通过 HTTP 短信网关发送
type SMSChannel struct {
	cfg    SMSConfig
	client *http.Client
}

// smsRequest 网关请求体
type smsRequest struct {
	To      string `json:"to"`
	From    string `json:"from,omitempty"`
	Message string `json:"message"`
}

// NewSMSChannel 创建短信通道
func NewSMSChannel(cfg SMSConfig) *SMSChannel {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &SMSChannel{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

func (c *SMSChannel) Name() string { return ChannelSMS }

// Send POST JSON 到网关，非 2xx 视为失败
func (c *SMSChannel) Send(ctx context.Context, to Recipient, msg Message) error {
	if to.Mobile == "" {
		return ErrNoRecipient
	}

	body, err := json.Marshal(smsRequest{To: to.Mobile, From: c.cfg.Sender, Message: msg.Body})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.GatewayURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("sms gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sms gateway returned %d: %s", resp.StatusCode, bytes.TrimSpace(detail))
	}
	return nil
}
