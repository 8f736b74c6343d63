// Package notify 验证码等通知的多通道投递
//
// Dispatcher 依次尝试所有通道：单个通道失败只记录日志，
// 全部通道失败时返回 ErrUndelivered。
package notify

import (
	"context"
	"errors"
	"fmt"

	"cadre-portal/pkg/logging"
)

var (
	// ErrNoRecipient 通道缺少对应地址（例如用户没有手机号）
	ErrNoRecipient = errors.New("notify: recipient has no address for this channel")

	// ErrUndelivered 没有任何通道投递成功
	ErrUndelivered = errors.New("notify: message was not delivered on any channel")
)

// Recipient 收件人
type Recipient struct {
	Email  string
	Mobile string
}

// Message 通知内容
type Message struct {
	Subject string
	Body    string
}

// Channel 投递通道
type Channel interface {
	Name() string
	Send(ctx context.Context, to Recipient, msg Message) error
}

// Notifier 通知发送接口（OTP 服务依赖此接口）
type Notifier interface {
	Notify(ctx context.Context, to Recipient, msg Message) error
}

// Dispatcher 多通道分发器
type Dispatcher struct {
	channels []Channel
	log      *logging.Logger
}

var _ Notifier = (*Dispatcher)(nil)

// NewDispatcher 创建分发器
func NewDispatcher(log *logging.Logger, channels ...Channel) *Dispatcher {
	if log == nil {
		log = logging.Default("notify")
	}
	return &Dispatcher{channels: channels, log: log}
}

// Channels 返回已配置的通道名
func (d *Dispatcher) Channels() []string {
	names := make([]string, 0, len(d.channels))
	for _, c := range d.channels {
		names = append(names, c.Name())
	}
	return names
}

// Notify 向所有通道投递，至少一个成功即返回 nil
func (d *Dispatcher) Notify(ctx context.Context, to Recipient, msg Message) error {
	if len(d.channels) == 0 {
		return fmt.Errorf("%w: no channels configured", ErrUndelivered)
	}

	delivered := 0
	var errs []error
	for _, c := range d.channels {
		err := c.Send(ctx, to, msg)
		d.log.DeliveryLog(c.Name(), recipientLabel(c.Name(), to), err)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c.Name(), err))
			continue
		}
		delivered++
	}
	if delivered == 0 {
		return fmt.Errorf("%w: %w", ErrUndelivered, errors.Join(errs...))
	}
	return nil
}

func recipientLabel(channel string, to Recipient) string {
	if channel == ChannelSMS {
		return to.Mobile
	}
	return to.Email
}
