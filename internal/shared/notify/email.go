package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wneessen/go-mail"
)

const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
	ChannelLog   = "log"
)

// SMTPConfig 邮件通道配置
type SMTPConfig struct {
	Host     string
	Port     int
	From     string
	Username string
	Password string
	Timeout  time.Duration // 连接与单次读写超时，默认 10s
}

// EmailChannel 通过 SMTP 发送邮件
type EmailChannel struct {
	cfg  SMTPConfig
	send func(ctx context.Context, m *mail.Msg) error
	now  func() time.Time
}

// NewEmailChannel 创建邮件通道
func NewEmailChannel(cfg SMTPConfig) *EmailChannel {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	c := &EmailChannel{cfg: cfg, now: time.Now}
	c.send = c.dialAndSend
	return c
}

func (c *EmailChannel) Name() string { return ChannelEmail }

// Send 组装邮件并发送，ctx 取消或超时时立即返回
func (c *EmailChannel) Send(ctx context.Context, to Recipient, msg Message) error {
	if to.Email == "" {
		return ErrNoRecipient
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m, err := c.buildMessage(to.Email, msg)
	if err != nil {
		return err
	}
	return c.send(ctx, m)
}

func (c *EmailChannel) buildMessage(to string, msg Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(c.cfg.From); err != nil {
		return nil, fmt.Errorf("invalid sender address: %w", err)
	}
	if err := m.To(to); err != nil {
		return nil, fmt.Errorf("invalid recipient address: %w", err)
	}
	m.Subject(sanitizeHeader(msg.Subject))
	m.SetDateWithValue(c.now())
	m.SetMessageID()
	m.SetBodyString(mail.TypeTextPlain, msg.Body)
	return m, nil
}

// dialAndSend 建立 SMTP 会话并投递
// 客户端在后台协程中运行，残留连接由 Timeout 回收
func (c *EmailChannel) dialAndSend(ctx context.Context, m *mail.Msg) error {
	opts := []mail.Option{
		mail.WithPort(c.cfg.Port),
		mail.WithTimeout(c.cfg.Timeout),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if c.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(c.cfg.Username),
			mail.WithPassword(c.cfg.Password),
		)
	}
	client, err := mail.NewClient(c.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- client.DialAndSendWithContext(ctx, m)
	}()
	select {
	case err := <-done:
		if err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// sanitizeHeader 去掉换行，避免头注入
func sanitizeHeader(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}
