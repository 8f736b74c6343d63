package notify

import (
	"context"

	"cadre-portal/pkg/logging"
)

// LogChannel 开发环境通道：把消息写入日志而不真正发送
type LogChannel struct {
	log *logging.Logger
}

// NewLogChannel 创建日志通道
func NewLogChannel(log *logging.Logger) *LogChannel {
	return &LogChannel{log: log}
}

func (c *LogChannel) Name() string { return ChannelLog }

func (c *LogChannel) Send(ctx context.Context, to Recipient, msg Message) error {
	c.log.Info("notification (dev only, not delivered)",
		"to_email", to.Email, "to_mobile", to.Mobile, "subject", msg.Subject, "body", msg.Body)
	return nil
}
