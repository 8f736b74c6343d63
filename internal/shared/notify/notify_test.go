package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"

	"cadre-portal/pkg/logging"
)

// stubChannel 记录调用并返回预设错误
type stubChannel struct {
	name  string
	err   error
	calls int
}

func (s *stubChannel) Name() string { return s.name }

func (s *stubChannel) Send(ctx context.Context, to Recipient, msg Message) error {
	s.calls++
	return s.err
}

func TestDispatcher_Notify(t *testing.T) {
	to := Recipient{Email: "user@example.com", Mobile: "+911234567890"}
	msg := Message{Subject: "code", Body: "123456"}

	t.Run("所有通道成功", func(t *testing.T) {
		a, b := &stubChannel{name: ChannelEmail}, &stubChannel{name: ChannelSMS}
		d := NewDispatcher(logging.Discard(), a, b)
		require.NoError(t, d.Notify(context.Background(), to, msg))
		assert.Equal(t, 1, a.calls)
		assert.Equal(t, 1, b.calls)
	})

	t.Run("部分通道失败仍成功", func(t *testing.T) {
		a := &stubChannel{name: ChannelEmail, err: errors.New("smtp down")}
		b := &stubChannel{name: ChannelSMS}
		d := NewDispatcher(logging.Discard(), a, b)
		require.NoError(t, d.Notify(context.Background(), to, msg))
		assert.Equal(t, 1, b.calls)
	})

	t.Run("全部失败", func(t *testing.T) {
		a := &stubChannel{name: ChannelEmail, err: errors.New("smtp down")}
		b := &stubChannel{name: ChannelSMS, err: ErrNoRecipient}
		d := NewDispatcher(logging.Discard(), a, b)
		err := d.Notify(context.Background(), to, msg)
		require.ErrorIs(t, err, ErrUndelivered)
		assert.ErrorIs(t, err, ErrNoRecipient)
		assert.Contains(t, err.Error(), "smtp down")
	})

	t.Run("没有通道", func(t *testing.T) {
		d := NewDispatcher(logging.Discard())
		assert.ErrorIs(t, d.Notify(context.Background(), to, msg), ErrUndelivered)
	})
}

func TestDispatcher_Channels(t *testing.T) {
	d := NewDispatcher(nil, NewEmailChannel(SMTPConfig{Host: "localhost"}), NewSMSChannel(SMSConfig{}))
	assert.Equal(t, []string{ChannelEmail, ChannelSMS}, d.Channels())
}

func TestEmailChannel_Send(t *testing.T) {
	c := NewEmailChannel(SMTPConfig{Host: "mail.local", Port: 1025, From: "noreply@portal.local", Username: "u", Password: "p"})
	c.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }

	var got *mail.Msg
	c.send = func(ctx context.Context, m *mail.Msg) error {
		got = m
		return nil
	}

	err := c.Send(context.Background(), Recipient{Email: "user@example.com"},
		Message{Subject: "Your code\r\nBcc: evil@x", Body: "Code: 123456\nValid 10 minutes"})
	require.NoError(t, err)
	require.NotNil(t, got)

	to := got.GetToString()
	require.NoError(t, err)
	assert.Equal(t, []string{"<user@example.com>"}, to)
	assert.Equal(t, []string{"Your code  Bcc: evil@x"}, got.GetGenHeader(mail.HeaderSubject))
	assert.NotEmpty(t, got.GetGenHeader(mail.HeaderMessageID))

	var buf bytes.Buffer
	_, err = got.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Code: 123456")
	assert.NotContains(t, buf.String(), "\r\nBcc:")
}

func TestEmailChannel_NoAddress(t *testing.T) {
	c := NewEmailChannel(SMTPConfig{Host: "mail.local", From: "noreply@portal.local"})
	c.send = func(context.Context, *mail.Msg) error {
		t.Fatal("should not send")
		return nil
	}
	assert.ErrorIs(t, c.Send(context.Background(), Recipient{Mobile: "1"}, Message{}), ErrNoRecipient)
}

func TestEmailChannel_InvalidSender(t *testing.T) {
	c := NewEmailChannel(SMTPConfig{Host: "mail.local", From: "not an address"})
	c.send = func(context.Context, *mail.Msg) error {
		t.Fatal("should not send")
		return nil
	}
	err := c.Send(context.Background(), Recipient{Email: "user@example.com"}, Message{Body: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid sender address")
}

// 服务器接受连接但不发送问候语时，Send 必须在 ctx 截止后返回
func TestEmailChannel_SilentServerHonoursDeadline(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	var mu sync.Mutex
	var conns []net.Conn
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, conn)
			mu.Unlock()
		}
	}()
	t.Cleanup(func() {
		ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			c.Close()
		}
	})

	port := ln.Addr().(*net.TCPAddr).Port
	c := NewEmailChannel(SMTPConfig{Host: "127.0.0.1", Port: port, From: "noreply@portal.local", Timeout: time.Minute})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	err = c.Send(ctx, Recipient{Email: "user@example.com"}, Message{Subject: "code", Body: "123456"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestEmailChannel_CanceledContext(t *testing.T) {
	c := NewEmailChannel(SMTPConfig{Host: "mail.local", From: "noreply@portal.local"})
	c.send = func(context.Context, *mail.Msg) error {
		t.Fatal("should not send")
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, c.Send(ctx, Recipient{Email: "user@example.com"}, Message{}), context.Canceled)
}

func TestSMSChannel_Send(t *testing.T) {
	var got smsRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := NewSMSChannel(SMSConfig{GatewayURL: srv.URL, Sender: "PORTAL", APIKey: "k1"})
	err := c.Send(context.Background(), Recipient{Mobile: "+911234567890"}, Message{Body: "Code: 123456"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer k1", auth)
	assert.Equal(t, smsRequest{To: "+911234567890", From: "PORTAL", Message: "Code: 123456"}, got)
}

func TestSMSChannel_GatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewSMSChannel(SMSConfig{GatewayURL: srv.URL})
	err := c.Send(context.Background(), Recipient{Mobile: "1"}, Message{Body: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
	assert.Contains(t, err.Error(), "quota exceeded")

	assert.ErrorIs(t, c.Send(context.Background(), Recipient{Email: "a@b"}, Message{}), ErrNoRecipient)
}
