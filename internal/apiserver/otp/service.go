// Package otp 一次性验证码流程：找回密码与注册验证
//
// 每个用户同一时刻只有一组 (code, expiry)。签发覆盖旧码；
// 校验通过单条条件 UPDATE 完成，未命中任何行即视为错误或过期。
package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"cadre-portal/internal/apiserver/auth"
	"cadre-portal/internal/shared/cache"
	"cadre-portal/internal/shared/model"
	"cadre-portal/internal/shared/notify"
	"cadre-portal/internal/shared/storage"
	"cadre-portal/pkg/logging"
)

// Purpose 验证码用途
type Purpose string

const (
	PurposeSignup Purpose = "signup"
	PurposeReset  Purpose = "reset"
)

// DefaultTTL 验证码有效期
const DefaultTTL = 600 * time.Second

const (
	codeMin   = 100000
	codeRange = 900000
)

var codePattern = regexp.MustCompile(`^\d{6}$`)

var (
	// ErrInvalidOrExpired 验证码错误或已过期
	ErrInvalidOrExpired = errors.New("invalid or expired otp")
	// ErrDelivery 所有投递通道都失败（验证码仍然有效）
	ErrDelivery = errors.New("failed to deliver otp")
	// ErrTooManyAttempts 尝试次数超过上限
	ErrTooManyAttempts = errors.New("too many otp attempts")
	// ErrResetNotGranted 未通过找回密码验证或授权已过期
	ErrResetNotGranted = errors.New("password reset not verified or expired")
	// ErrInvalidIdentifier 标识既不是邮箱也不是员工编号
	ErrInvalidIdentifier = errors.New("identifier must be an email or employee id")
	// ErrAlreadyVerified 账号已验证，无需再发送注册验证码
	ErrAlreadyVerified = errors.New("account already verified")
	// ErrInvalidPassword 新密码不符合要求
	ErrInvalidPassword = errors.New("password must be at least 8 characters")
)

// Store 验证码流程所需的存储接口
type Store interface {
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByEmployeeID(ctx context.Context, employeeID string) (*model.User, error)
	storage.OTPStore
}

// Config 服务配置
type Config struct {
	TTL      time.Duration // 验证码有效期
	GrantTTL time.Duration // 找回密码验证通过后允许重置的时长
}

// Service 验证码服务
type Service struct {
	store    Store
	notifier notify.Notifier
	limiter  cache.OTPAttemptLimiter
	cfg      Config
	log      *logging.Logger

	now      func() time.Time
	generate func() (string, error)
}

// NewService 创建验证码服务，limiter 为 nil 时不限制尝试次数
func NewService(store Store, notifier notify.Notifier, limiter cache.OTPAttemptLimiter, cfg Config, log *logging.Logger) *Service {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.GrantTTL <= 0 {
		cfg.GrantTTL = cfg.TTL
	}
	if limiter == nil {
		limiter = cache.NewNoOpCache()
	}
	if log == nil {
		log = logging.Default("otp")
	}
	return &Service{
		store:    store,
		notifier: notifier,
		limiter:  limiter,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
		generate: GenerateCode,
	}
}

// GenerateCode 生成 [100000, 999999] 内均匀分布的 6 位数字验证码
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeRange))
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+codeMin), nil
}

// resolve 按邮箱或员工编号查找用户
func (s *Service) resolve(ctx context.Context, identifier string) (*model.User, error) {
	identifier = strings.TrimSpace(identifier)

	var (
		user *model.User
		err  error
	)
	switch {
	case model.IsEmployeeIdentifier(identifier):
		user, err = s.store.GetUserByEmployeeID(ctx, identifier)
	case strings.Contains(identifier, "@"):
		user, err = s.store.GetUserByEmail(ctx, strings.ToLower(identifier))
	default:
		return nil, ErrInvalidIdentifier
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if user == nil {
		return nil, storage.ErrNotFound
	}
	return user, nil
}

// Issue 签发验证码并投递
//
// 验证码先持久化再投递；投递全部失败返回 ErrDelivery，但验证码保持有效。
// 每个用户的签发次数受限流器约束，超限返回 ErrTooManyAttempts。
func (s *Service) Issue(ctx context.Context, identifier string, purpose Purpose) error {
	user, err := s.resolve(ctx, identifier)
	if err != nil {
		return err
	}
	if purpose == PurposeSignup && user.IsVerified {
		return ErrAlreadyVerified
	}
	if !s.allow(ctx, issueKey(user.ID), user.ID) {
		s.log.OTPEventLog("issue", user.ID, string(purpose), ErrTooManyAttempts)
		return ErrTooManyAttempts
	}

	code, err := s.generate()
	if err != nil {
		return err
	}
	expiry := s.now().Add(s.cfg.TTL)
	// 签发不清零校验计数
	if err := s.store.SetOTP(ctx, user.ID, string(purpose), code, expiry); err != nil {
		s.log.OTPEventLog("issue", user.ID, string(purpose), err)
		return fmt.Errorf("store otp: %w", err)
	}

	err = s.notifier.Notify(ctx, notify.Recipient{Email: user.Email, Mobile: user.MobileNumber}, message(purpose, code, s.cfg.TTL))
	s.log.OTPEventLog("issue", user.ID, string(purpose), err)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDelivery, err)
	}
	return nil
}

// Resend 重新签发，旧验证码随之失效
func (s *Service) Resend(ctx context.Context, identifier string, purpose Purpose) error {
	return s.Issue(ctx, identifier, purpose)
}

// SendSignupCode 注册后发送账号验证码
func (s *Service) SendSignupCode(ctx context.Context, email string) error {
	return s.Issue(ctx, email, PurposeSignup)
}

// Verify 校验验证码，成功时在同一条 UPDATE 中清空验证码并执行用途对应的副作用
func (s *Service) Verify(ctx context.Context, identifier, code string, purpose Purpose) error {
	user, err := s.resolve(ctx, identifier)
	if err != nil {
		return err
	}

	// 两种用途共用一组验证码，计数只按用户
	key := verifyKey(user.ID)
	if !s.allow(ctx, key, user.ID) {
		s.log.OTPEventLog("verify", user.ID, string(purpose), ErrTooManyAttempts)
		return ErrTooManyAttempts
	}

	code = strings.TrimSpace(code)
	if !codePattern.MatchString(code) {
		s.log.OTPEventLog("verify", user.ID, string(purpose), ErrInvalidOrExpired)
		return ErrInvalidOrExpired
	}

	now := s.now()
	var effect storage.OTPEffect
	switch purpose {
	case PurposeSignup:
		effect.MarkVerified = true
	case PurposeReset:
		until := now.Add(s.cfg.GrantTTL)
		effect.GrantResetUntil = &until
	default:
		return fmt.Errorf("unknown otp purpose %q", purpose)
	}

	ok, err := s.store.ConsumeOTP(ctx, user.ID, string(purpose), code, now, effect)
	if err != nil {
		s.log.OTPEventLog("verify", user.ID, string(purpose), err)
		return fmt.Errorf("consume otp: %w", err)
	}
	if !ok {
		s.log.OTPEventLog("verify", user.ID, string(purpose), ErrInvalidOrExpired)
		return ErrInvalidOrExpired
	}

	if err := s.limiter.Reset(ctx, key); err != nil {
		s.log.WithUserID(user.ID).WithError(err).Warn("reset otp attempt counter failed")
	}
	s.log.OTPEventLog("verify", user.ID, string(purpose), nil)
	return nil
}

// ResetPassword 在找回密码验证通过后设置新密码，授权只能使用一次
func (s *Service) ResetPassword(ctx context.Context, identifier, password string) error {
	user, err := s.resolve(ctx, identifier)
	if err != nil {
		return err
	}
	if len(password) < auth.MinPasswordLength {
		return ErrInvalidPassword
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	ok, err := s.store.ResetPasswordWithGrant(ctx, user.ID, hash, s.now())
	if err != nil {
		s.log.OTPEventLog("reset", user.ID, string(PurposeReset), err)
		return fmt.Errorf("reset password: %w", err)
	}
	if !ok {
		s.log.OTPEventLog("reset", user.ID, string(PurposeReset), ErrResetNotGranted)
		return ErrResetNotGranted
	}
	s.log.OTPEventLog("reset", user.ID, string(PurposeReset), nil)
	return nil
}

// allow 记录一次尝试，限流器不可用时放行
func (s *Service) allow(ctx context.Context, key, userID string) bool {
	allowed, err := s.limiter.Allow(ctx, key)
	if err != nil {
		s.log.WithUserID(userID).WithError(err).Warn("otp attempt limiter unavailable")
		return true
	}
	return allowed
}

func verifyKey(userID string) string { return "verify:" + userID }

func issueKey(userID string) string { return "issue:" + userID }

func message(purpose Purpose, code string, ttl time.Duration) notify.Message {
	minutes := int(ttl.Minutes())
	switch purpose {
	case PurposeSignup:
		return notify.Message{
			Subject: "Verify your account",
			Body:    fmt.Sprintf("Your account verification code is %s. It expires in %d minutes.", code, minutes),
		}
	default:
		return notify.Message{
			Subject: "Password reset code",
			Body: fmt.Sprintf("Your password reset code is %s. It expires in %d minutes. "+
				"If you did not request this, ignore this message.", code, minutes),
		}
	}
}
