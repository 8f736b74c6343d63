package otp

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cadre-portal/internal/apiserver/auth"
	"cadre-portal/internal/shared/model"
	"cadre-portal/internal/shared/notify"
	"cadre-portal/internal/shared/storage"
	"cadre-portal/internal/shared/storage/factory"
	"cadre-portal/internal/shared/storage/repository"
	"cadre-portal/pkg/logging"
)

// recordingNotifier 记录投递的消息
type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Message
	to   []notify.Recipient
	err  error
}

func (n *recordingNotifier) Notify(ctx context.Context, to notify.Recipient, msg notify.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	n.to = append(n.to, to)
	return n.err
}

// fakeLimiter 内存计数限流器
type fakeLimiter struct {
	mu     sync.Mutex
	max    int
	counts map[string]int
	err    error
}

func (l *fakeLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.counts[key]++
	return l.counts[key] <= l.max, nil
}

func (l *fakeLimiter) Reset(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.counts, key)
	return nil
}

type fixture struct {
	svc      *Service
	store    *repository.Store
	notifier *recordingNotifier
	now      time.Time
	codes    []string
}

// newFixture 创建使用 SQLite 内存库、固定时钟和可预测验证码的服务
func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := factory.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	f := &fixture{
		store:    store,
		notifier: &recordingNotifier{},
		now:      time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
	f.svc = NewService(store, f.notifier, nil, Config{}, logging.Discard())
	f.svc.now = func() time.Time { return f.now }

	seq := 123456
	f.svc.generate = func() (string, error) {
		code := strconv.Itoa(seq)
		seq++
		f.codes = append(f.codes, code)
		return code, nil
	}
	return f
}

func (f *fixture) advance(d time.Duration) { f.now = f.now.Add(d) }

func (f *fixture) lastCode() string { return f.codes[len(f.codes)-1] }

func (f *fixture) seedUser(t *testing.T, email string) *model.User {
	t.Helper()
	u := &model.User{
		ID: "u-" + email, Username: email, Email: email, PasswordHash: "x", MobileNumber: "9000000001",
		Role: model.UserRoleEmployee, VerificationStatus: model.VerificationPending,
		CreatedAt: f.now, UpdatedAt: f.now,
	}
	require.NoError(t, f.store.CreateUser(context.Background(), u))
	return u
}

func (f *fixture) user(t *testing.T, email string) *model.User {
	t.Helper()
	u, err := f.store.GetUserByEmail(context.Background(), email)
	require.NoError(t, err)
	require.NotNil(t, u)
	return u
}

func TestGenerateCode(t *testing.T) {
	for i := 0; i < 2000; i++ {
		code, err := GenerateCode()
		require.NoError(t, err)
		require.Regexp(t, `^\d{6}$`, code)
		n, _ := strconv.Atoi(code)
		require.GreaterOrEqual(t, n, 100000)
		require.LessOrEqual(t, n, 999999)
	}
}

func TestIssueVerify_UserExampleScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, "user@example.com")

	require.NoError(t, f.svc.Issue(ctx, "user@example.com", PurposeReset))
	code := f.lastCode()
	assert.Len(t, code, 6)

	u := f.user(t, "user@example.com")
	require.NotNil(t, u.OTPCode)
	assert.Equal(t, code, *u.OTPCode)
	assert.WithinDuration(t, f.now.Add(600*time.Second), *u.OTPExpiry, time.Second)

	require.Len(t, f.notifier.sent, 1)
	assert.Contains(t, f.notifier.sent[0].Body, code)
	assert.Equal(t, "user@example.com", f.notifier.to[0].Email)
	assert.Equal(t, "9000000001", f.notifier.to[0].Mobile)

	f.advance(5 * time.Minute)
	require.NoError(t, f.svc.Verify(ctx, "user@example.com", code, PurposeReset))

	u = f.user(t, "user@example.com")
	assert.Nil(t, u.OTPCode)
	assert.Nil(t, u.OTPExpiry)

	err := f.svc.Verify(ctx, "user@example.com", code, PurposeReset)
	assert.ErrorIs(t, err, ErrInvalidOrExpired)
}

func TestVerify_Expiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, "late@example.com")

	require.NoError(t, f.svc.Issue(ctx, "late@example.com", PurposeSignup))
	code := f.lastCode()

	f.advance(600 * time.Second)
	assert.ErrorIs(t, f.svc.Verify(ctx, "late@example.com", code, PurposeSignup), ErrInvalidOrExpired)

	// 过期校验不修改状态
	u := f.user(t, "late@example.com")
	require.NotNil(t, u.OTPCode)
	assert.False(t, u.IsVerified)
}

func TestVerify_JustBeforeExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, "edge@example.com")

	require.NoError(t, f.svc.Issue(ctx, "edge@example.com", PurposeSignup))
	f.advance(599 * time.Second)
	require.NoError(t, f.svc.Verify(ctx, "edge@example.com", f.lastCode(), PurposeSignup))
}

func TestResend_InvalidatesPrevious(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, "again@example.com")

	require.NoError(t, f.svc.Issue(ctx, "again@example.com", PurposeSignup))
	first := f.lastCode()
	require.NoError(t, f.svc.Resend(ctx, "again@example.com", PurposeSignup))
	second := f.lastCode()
	require.NotEqual(t, first, second)

	assert.ErrorIs(t, f.svc.Verify(ctx, "again@example.com", first, PurposeSignup), ErrInvalidOrExpired)
	require.NoError(t, f.svc.Verify(ctx, "again@example.com", second, PurposeSignup))
}

func TestVerify_SignupMarksVerified(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, "new@example.com")

	require.NoError(t, f.svc.SendSignupCode(ctx, "new@example.com"))
	require.NoError(t, f.svc.Verify(ctx, "NEW@example.com", f.lastCode(), PurposeSignup))

	u := f.user(t, "new@example.com")
	assert.True(t, u.IsVerified)
	assert.Equal(t, model.VerificationVerified, u.VerificationStatus)
	assert.Nil(t, u.ResetGrantedUntil)

	assert.ErrorIs(t, f.svc.Issue(ctx, "new@example.com", PurposeSignup), ErrAlreadyVerified)
}

func TestIdentifierResolution(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.seedUser(t, "emp@example.com")
	uid := u.ID
	require.NoError(t, f.store.CreateEmployee(ctx, &model.Employee{
		ID: "e-1", UserID: &uid, EmployeeID: "2024/IAS/17", FirstName: "E", CreatedAt: f.now, UpdatedAt: f.now,
	}))

	require.NoError(t, f.svc.Issue(ctx, "2024/IAS/17", PurposeReset))
	assert.Equal(t, "emp@example.com", f.notifier.to[0].Email)
	require.NoError(t, f.svc.Verify(ctx, " 2024/IAS/17 ", f.lastCode(), PurposeReset))

	assert.ErrorIs(t, f.svc.Issue(ctx, "2024/IPS/1", PurposeReset), storage.ErrNotFound)
	assert.ErrorIs(t, f.svc.Issue(ctx, "ghost@example.com", PurposeReset), storage.ErrNotFound)
	assert.ErrorIs(t, f.svc.Verify(ctx, "ghost@example.com", "123456", PurposeReset), storage.ErrNotFound)
	assert.ErrorIs(t, f.svc.Issue(ctx, "2024/ias/17", PurposeReset), ErrInvalidIdentifier)
	assert.ErrorIs(t, f.svc.Issue(ctx, "just-a-name", PurposeReset), ErrInvalidIdentifier)
}

func TestVerify_WrongOrMalformedCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, "typo@example.com")
	require.NoError(t, f.svc.Issue(ctx, "typo@example.com", PurposeReset))

	for _, code := range []string{"000000", "12345", "1234567", "abcdef", ""} {
		assert.ErrorIs(t, f.svc.Verify(ctx, "typo@example.com", code, PurposeReset), ErrInvalidOrExpired, code)
	}
	// 错误尝试不影响正确验证码
	require.NoError(t, f.svc.Verify(ctx, "typo@example.com", f.lastCode(), PurposeReset))
}

func TestVerify_NoCodeIssued(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "idle@example.com")
	assert.ErrorIs(t, f.svc.Verify(context.Background(), "idle@example.com", "123456", PurposeSignup), ErrInvalidOrExpired)
}

func TestIssue_DeliveryFailureKeepsCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, "offline@example.com")
	f.notifier.err = fmt.Errorf("%w: all down", notify.ErrUndelivered)

	err := f.svc.Issue(ctx, "offline@example.com", PurposeReset)
	require.ErrorIs(t, err, ErrDelivery)

	require.NoError(t, f.svc.Verify(ctx, "offline@example.com", f.lastCode(), PurposeReset))
}

func TestVerify_ConcurrentConsumeOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, "race@example.com")
	require.NoError(t, f.svc.Issue(ctx, "race@example.com", PurposeSignup))
	code := f.lastCode()

	const workers = 8
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- f.svc.Verify(ctx, "race@example.com", code, PurposeSignup)
		}()
	}
	wg.Wait()
	close(results)

	success := 0
	for err := range results {
		if err == nil {
			success++
		} else {
			assert.ErrorIs(t, err, ErrInvalidOrExpired)
		}
	}
	assert.Equal(t, 1, success)
}

func TestVerify_AttemptLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, "brute@example.com")
	limiter := &fakeLimiter{max: 3, counts: map[string]int{}}
	f.svc.limiter = limiter

	require.NoError(t, f.svc.Issue(ctx, "brute@example.com", PurposeReset))
	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, f.svc.Verify(ctx, "brute@example.com", "000000", PurposeReset), ErrInvalidOrExpired)
	}
	assert.ErrorIs(t, f.svc.Verify(ctx, "brute@example.com", f.lastCode(), PurposeReset), ErrTooManyAttempts)

	// 重新签发不清零校验计数
	require.NoError(t, f.svc.Issue(ctx, "brute@example.com", PurposeReset))
	assert.ErrorIs(t, f.svc.Verify(ctx, "brute@example.com", f.lastCode(), PurposeReset), ErrTooManyAttempts)

	// 窗口过期后恢复
	require.NoError(t, limiter.Reset(ctx, verifyKey(f.user(t, "brute@example.com").ID)))
	require.NoError(t, f.svc.Verify(ctx, "brute@example.com", f.lastCode(), PurposeReset))
}

func TestVerify_AttemptLimitSharedAcrossPurposes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, "both@example.com")
	f.svc.limiter = &fakeLimiter{max: 4, counts: map[string]int{}}

	require.NoError(t, f.svc.Issue(ctx, "both@example.com", PurposeReset))
	for i := 0; i < 2; i++ {
		assert.ErrorIs(t, f.svc.Verify(ctx, "both@example.com", "000000", PurposeReset), ErrInvalidOrExpired)
		assert.ErrorIs(t, f.svc.Verify(ctx, "both@example.com", "000000", PurposeSignup), ErrInvalidOrExpired)
	}
	assert.ErrorIs(t, f.svc.Verify(ctx, "both@example.com", f.lastCode(), PurposeSignup), ErrTooManyAttempts)
	assert.ErrorIs(t, f.svc.Verify(ctx, "both@example.com", f.lastCode(), PurposeReset), ErrTooManyAttempts)
}

func TestVerify_PurposeMismatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, "cross@example.com")

	// 找回密码的验证码不能完成注册验证
	require.NoError(t, f.svc.Issue(ctx, "cross@example.com", PurposeReset))
	code := f.lastCode()
	assert.ErrorIs(t, f.svc.Verify(ctx, "cross@example.com", code, PurposeSignup), ErrInvalidOrExpired)
	u := f.user(t, "cross@example.com")
	assert.False(t, u.IsVerified)
	require.NotNil(t, u.OTPCode)

	require.NoError(t, f.svc.Verify(ctx, "cross@example.com", code, PurposeReset))

	// 注册验证码也不能换取重置授权
	require.NoError(t, f.svc.Issue(ctx, "cross@example.com", PurposeSignup))
	code = f.lastCode()
	assert.ErrorIs(t, f.svc.Verify(ctx, "cross@example.com", code, PurposeReset), ErrInvalidOrExpired)
	require.NoError(t, f.svc.Verify(ctx, "cross@example.com", code, PurposeSignup))
	assert.True(t, f.user(t, "cross@example.com").IsVerified)
}

func TestIssue_RateLimited(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, "spam@example.com")
	f.svc.limiter = &fakeLimiter{max: 2, counts: map[string]int{}}

	require.NoError(t, f.svc.Issue(ctx, "spam@example.com", PurposeReset))
	require.NoError(t, f.svc.Resend(ctx, "spam@example.com", PurposeReset))
	assert.ErrorIs(t, f.svc.Issue(ctx, "spam@example.com", PurposeReset), ErrTooManyAttempts)

	// 被拒绝的签发不覆盖已有验证码，也不投递
	assert.Len(t, f.codes, 2)
	assert.Len(t, f.notifier.sent, 2)
	require.NoError(t, f.svc.Verify(ctx, "spam@example.com", f.lastCode(), PurposeReset))
}

func TestVerify_LimiterFailsOpen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, "open@example.com")
	f.svc.limiter = &fakeLimiter{err: errors.New("redis down"), counts: map[string]int{}}

	require.NoError(t, f.svc.Issue(ctx, "open@example.com", PurposeReset))
	require.NoError(t, f.svc.Verify(ctx, "open@example.com", f.lastCode(), PurposeReset))
}

func TestResetPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, "forgot@example.com")

	// 未验证不能重置
	assert.ErrorIs(t, f.svc.ResetPassword(ctx, "forgot@example.com", "brand-new-pass"), ErrResetNotGranted)

	require.NoError(t, f.svc.Issue(ctx, "forgot@example.com", PurposeReset))
	require.NoError(t, f.svc.Verify(ctx, "forgot@example.com", f.lastCode(), PurposeReset))

	assert.ErrorIs(t, f.svc.ResetPassword(ctx, "forgot@example.com", "short"), ErrInvalidPassword)
	require.NoError(t, f.svc.ResetPassword(ctx, "forgot@example.com", "brand-new-pass"))
	assert.True(t, auth.CheckPassword("brand-new-pass", f.user(t, "forgot@example.com").PasswordHash))

	// 授权只能使用一次
	assert.ErrorIs(t, f.svc.ResetPassword(ctx, "forgot@example.com", "another-pass"), ErrResetNotGranted)
	assert.ErrorIs(t, f.svc.ResetPassword(ctx, "ghost@example.com", "another-pass"), storage.ErrNotFound)
}

func TestResetPassword_GrantExpires(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, "slow@example.com")

	require.NoError(t, f.svc.Issue(ctx, "slow@example.com", PurposeReset))
	require.NoError(t, f.svc.Verify(ctx, "slow@example.com", f.lastCode(), PurposeReset))

	f.advance(DefaultTTL + time.Second)
	assert.ErrorIs(t, f.svc.ResetPassword(ctx, "slow@example.com", "brand-new-pass"), ErrResetNotGranted)
}

func TestSignupVerifyDoesNotGrantReset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, "mix@example.com")

	require.NoError(t, f.svc.Issue(ctx, "mix@example.com", PurposeSignup))
	require.NoError(t, f.svc.Verify(ctx, "mix@example.com", f.lastCode(), PurposeSignup))
	assert.ErrorIs(t, f.svc.ResetPassword(ctx, "mix@example.com", "brand-new-pass"), ErrResetNotGranted)
}

func TestMessage(t *testing.T) {
	m := message(PurposeSignup, "012345", DefaultTTL)
	assert.Contains(t, m.Body, "012345")
	assert.Contains(t, m.Body, "10 minutes")
	assert.Equal(t, "Password reset code", message(PurposeReset, "1", DefaultTTL).Subject)
}
