package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cadre-portal/internal/shared/model"
	"cadre-portal/internal/shared/storage/factory"
	"cadre-portal/internal/shared/storage/repository"
)

type recordingSender struct {
	emails []string
	err    error
}

func (s *recordingSender) SendSignupCode(ctx context.Context, email string) error {
	s.emails = append(s.emails, email)
	return s.err
}

type testEnv struct {
	store  *repository.Store
	codec  *TokenCodec
	sender *recordingSender
	mux    http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store, err := factory.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	codec := NewTokenCodec("handler-secret", time.Hour)
	sender := &recordingSender{}
	mux := http.NewServeMux()
	NewHandler(store, codec, sender, HandlerConfig{}).RegisterRoutes(mux)

	return &testEnv{
		store:  store,
		codec:  codec,
		sender: sender,
		mux:    NewGate(codec, GateConfig{}).Middleware(mux),
	}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) seedUser(t *testing.T, email string, role model.UserRole, verified bool) *model.User {
	t.Helper()
	hash, err := HashPassword("password123")
	require.NoError(t, err)
	now := time.Now()
	u := &model.User{
		ID: "u-" + email, Email: email, Username: email, PasswordHash: hash, Role: role,
		IsVerified: verified, VerificationStatus: model.VerificationPending, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, e.store.CreateUser(context.Background(), u))
	return u
}

func (e *testEnv) tokenFor(t *testing.T, u *model.User) string {
	t.Helper()
	token, _, err := e.codec.Issue(u)
	require.NoError(t, err)
	return token
}

func TestRegister(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email": " New@Example.com ", "username": "newbie", "password": "password123", "mobile_number": "9876543210",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp registerResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.OTPSent)
	assert.Equal(t, "new@example.com", resp.User.Email)
	assert.Equal(t, model.UserRoleEmployee, resp.User.Role)
	assert.False(t, resp.User.IsVerified)
	assert.Equal(t, []string{"new@example.com"}, env.sender.emails)

	rec = env.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email": "new@example.com", "username": "dup", "password": "password123",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRegister_Validation(t *testing.T) {
	env := newTestEnv(t)
	cases := []map[string]string{
		{"email": "", "username": "a", "password": "password123"},
		{"email": "not-an-email", "username": "a", "password": "password123"},
		{"email": "a@example.com", "username": "a", "password": "short"},
	}
	for _, body := range cases {
		rec := env.do(t, http.MethodPost, "/api/v1/auth/register", "", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestRegister_DeliveryFailureStillCreates(t *testing.T) {
	env := newTestEnv(t)
	env.sender.err = errors.New("smtp down")

	rec := env.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email": "late@example.com", "username": "late", "password": "password123",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var resp registerResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.OTPSent)

	u, err := env.store.GetUserByEmail(context.Background(), "late@example.com")
	require.NoError(t, err)
	assert.NotNil(t, u)
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "pending@example.com", model.UserRoleEmployee, false)
	env.seedUser(t, "ok@example.com", model.UserRoleCM, true)

	rec := env.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "ok@example.com", "password": "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "nobody@example.com", "password": "password123"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "pending@example.com", "password": "password123"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "OK@example.com", "password": "password123"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp loginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	id, err := env.codec.Decode(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, model.UserRoleCM, id.Role)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, DefaultCookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, resp.AccessToken, cookies[0].Value)
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/v1/auth/logout", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Empty(t, cookies[0].Value)
	assert.Less(t, cookies[0].MaxAge, 0)
}

func TestMe(t *testing.T) {
	env := newTestEnv(t)
	u := env.seedUser(t, "me@example.com", model.UserRoleEmployee, true)
	uid := u.ID
	now := time.Now()
	require.NoError(t, env.store.CreateEmployee(context.Background(), &model.Employee{
		ID: "e-1", UserID: &uid, EmployeeID: "2024/IAS/1", FirstName: "Me", CreatedAt: now, UpdatedAt: now,
	}))

	rec := env.do(t, http.MethodGet, "/api/v1/me", "", nil)
	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/me", env.tokenFor(t, u), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp meResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "me@example.com", resp.User.Email)
	require.NotNil(t, resp.Employee)
	assert.Equal(t, "2024/IAS/1", resp.Employee.EmployeeID)
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t)
	self := env.seedUser(t, "self@example.com", model.UserRoleDOP, true)
	env.seedUser(t, "other@example.com", model.UserRoleEmployee, true)
	admin := env.seedUser(t, "admin@example.com", model.UserRoleAdmin, true)

	path := "/api/v1/auth/change-password"

	rec := env.do(t, http.MethodPost, path, env.tokenFor(t, self), map[string]string{"email": "self@example.com"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, path, env.tokenFor(t, self), map[string]string{"email": "other@example.com", "newPassword": "newpassword1"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodPost, path, env.tokenFor(t, self), map[string]string{"email": "self@example.com", "newPassword": "newpassword1"})
	require.Equal(t, http.StatusOK, rec.Code)
	u, err := env.store.GetUserByEmail(context.Background(), "self@example.com")
	require.NoError(t, err)
	assert.True(t, CheckPassword("newpassword1", u.PasswordHash))

	rec = env.do(t, http.MethodPost, path, env.tokenFor(t, admin), map[string]string{"email": "other@example.com", "newPassword": "adminset123"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, path, env.tokenFor(t, admin), map[string]string{"email": "ghost@example.com", "newPassword": "adminset123"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, path, "", map[string]string{"email": "self@example.com", "newPassword": "newpassword1"})
	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
}

func TestEnsureAdminUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, EnsureAdminUser(ctx, env.store, "", ""))

	require.NoError(t, EnsureAdminUser(ctx, env.store, "Root@Example.com", "adminpass1"))
	u, err := env.store.GetUserByEmail(ctx, "root@example.com")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, model.UserRoleAdmin, u.Role)
	assert.True(t, u.IsVerified)

	// 幂等
	require.NoError(t, EnsureAdminUser(ctx, env.store, "root@example.com", "adminpass1"))

	// 已存在的普通用户被提升
	env.seedUser(t, "boss@example.com", model.UserRoleEmployee, false)
	require.NoError(t, EnsureAdminUser(ctx, env.store, "boss@example.com", "whatever1"))
	u, err = env.store.GetUserByEmail(ctx, "boss@example.com")
	require.NoError(t, err)
	assert.Equal(t, model.UserRoleAdmin, u.Role)
	assert.True(t, u.IsVerified)
	assert.Equal(t, model.VerificationVerified, u.VerificationStatus)
}
