package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"cadre-portal/internal/shared/model"
	"cadre-portal/internal/shared/storage"
)

// UserStore 认证所需的用户存储接口
type UserStore interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	UpdateUser(ctx context.Context, user *model.User) error
	UpdateUserPassword(ctx context.Context, id, passwordHash string) error
	GetEmployeeByUserID(ctx context.Context, userID string) (*model.Employee, error)
}

// SignupCodeSender 注册后发送账号验证码（由 otp 包实现）
type SignupCodeSender interface {
	SendSignupCode(ctx context.Context, email string) error
}

// HandlerConfig 会话 Cookie 配置
type HandlerConfig struct {
	CookieName   string
	CookieSecure bool
}

// Handler 认证 HTTP 处理器
type Handler struct {
	store  UserStore
	codec  *TokenCodec
	signup SignupCodeSender
	cfg    HandlerConfig
}

// NewHandler 创建认证处理器
func NewHandler(store UserStore, codec *TokenCodec, signup SignupCodeSender, cfg HandlerConfig) *Handler {
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultCookieName
	}
	return &Handler{store: store, codec: codec, signup: signup, cfg: cfg}
}

// RegisterRoutes 注册认证相关路由
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/auth/register", h.Register)
	mux.HandleFunc("POST /api/v1/auth/login", h.Login)
	mux.HandleFunc("POST /api/v1/auth/logout", h.Logout)
	mux.HandleFunc("POST /api/v1/auth/change-password", h.ChangePassword)
	mux.HandleFunc("GET /api/v1/me", h.Me)
}

// ============================================================================
// 请求/响应类型
// ============================================================================

type registerRequest struct {
	Email        string `json:"email"`
	Username     string `json:"username"`
	Password     string `json:"password"`
	MobileNumber string `json:"mobile_number"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	Email       string `json:"email"`
	NewPassword string `json:"newPassword"`
}

type loginResponse struct {
	User        *model.User `json:"user"`
	AccessToken string      `json:"access_token"`
	ExpiresAt   time.Time   `json:"expires_at"`
}

type registerResponse struct {
	User    *model.User `json:"user"`
	OTPSent bool        `json:"otp_sent"`
	Message string      `json:"message"`
}

type meResponse struct {
	User     *model.User     `json:"user"`
	Employee *model.Employee `json:"employee,omitempty"`
}

// MinPasswordLength 密码最小长度
const MinPasswordLength = 8

// ============================================================================
// Handlers
// ============================================================================

// Register 注册：创建未验证的 EMPLOYEE 用户并发送验证码
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Email = normalizeEmail(req.Email)
	if req.Email == "" || req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email, username, password are required")
		return
	}
	if !IsValidEmail(req.Email) {
		writeError(w, http.StatusBadRequest, "invalid email format")
		return
	}
	if len(req.Password) < MinPasswordLength {
		writeError(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		log.Printf("[auth.register] HashPassword error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	now := time.Now()
	user := &model.User{
		ID:                 uuid.NewString(),
		Email:              req.Email,
		Username:           req.Username,
		PasswordHash:       hash,
		MobileNumber:       req.MobileNumber,
		Role:               model.UserRoleEmployee,
		VerificationStatus: model.VerificationPending,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := h.store.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			writeError(w, http.StatusConflict, "email already registered")
			return
		}
		log.Printf("[auth.register] CreateUser error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	resp := registerResponse{User: user, OTPSent: true, Message: "verification code sent"}
	if h.signup != nil {
		if err := h.signup.SendSignupCode(r.Context(), user.Email); err != nil {
			log.Printf("[auth.register] SendSignupCode for %s failed: %v", user.ID, err)
			resp.OTPSent = false
			resp.Message = "account created; verification code could not be delivered, request a new one"
		}
	}

	log.Printf("[auth] User registered: %s (%s)", user.Email, user.ID)
	writeJSON(w, http.StatusCreated, resp)
}

// Login 登录：校验密码，签发令牌并写入会话 Cookie
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Email = normalizeEmail(req.Email)
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := h.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		log.Printf("[auth.login] GetUserByEmail error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if user == nil || !CheckPassword(req.Password, user.PasswordHash) {
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}
	if !user.IsVerified {
		writeError(w, http.StatusForbidden, "account is not verified")
		return
	}

	token, expiresAt, err := h.codec.Issue(user)
	if err != nil {
		log.Printf("[auth.login] Issue token error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	http.SetCookie(w, h.sessionCookie(token, expiresAt))
	log.Printf("[auth] User logged in: %s", user.Email)
	writeJSON(w, http.StatusOK, loginResponse{User: user, AccessToken: token, ExpiresAt: expiresAt})
}

// Logout 清除会话 Cookie
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	c := h.sessionCookie("", time.Unix(0, 0))
	c.MaxAge = -1
	http.SetCookie(w, c)
	writeJSON(w, http.StatusOK, map[string]string{"message": "signed out"})
}

// Me 当前用户及其员工档案
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	id := IdentityFromContext(r.Context())
	if id == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	user, err := h.store.GetUserByID(r.Context(), id.ID)
	if err != nil {
		log.Printf("[auth.me] GetUserByID error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	emp, err := h.store.GetEmployeeByUserID(r.Context(), user.ID)
	if err != nil {
		log.Printf("[auth.me] GetEmployeeByUserID error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, meResponse{User: user, Employee: emp})
}

// ChangePassword 修改密码：只能修改自己的密码，管理员可修改任何人
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	id := IdentityFromContext(r.Context())
	if id == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = normalizeEmail(req.Email)
	if req.Email == "" || req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "email and newPassword are required")
		return
	}
	if len(req.NewPassword) < MinPasswordLength {
		writeError(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}
	if !id.IsAdmin() && !strings.EqualFold(req.Email, id.Email) {
		writeError(w, http.StatusForbidden, "cannot change another user's password")
		return
	}

	user, err := h.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		log.Printf("[auth.change-password] GetUserByEmail error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	hash, err := HashPassword(req.NewPassword)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if err := h.store.UpdateUserPassword(r.Context(), user.ID, hash); err != nil {
		log.Printf("[auth.change-password] UpdateUserPassword error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to update password")
		return
	}

	log.Printf("[auth] Password changed for %s by %s", user.ID, id.ID)
	writeJSON(w, http.StatusOK, map[string]string{"message": "password updated"})
}

func (h *Handler) sessionCookie(value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     h.cfg.CookieName,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}

// ============================================================================
// Admin Bootstrap
// ============================================================================

// EnsureAdminUser 确保管理员用户存在（启动时调用）
// 已存在但不是 ADMIN 时提升角色；新建的管理员直接标记为已验证
func EnsureAdminUser(ctx context.Context, store UserStore, adminEmail, adminPassword string) error {
	adminEmail = normalizeEmail(adminEmail)
	if adminEmail == "" || adminPassword == "" {
		return nil
	}

	existing, err := store.GetUserByEmail(ctx, adminEmail)
	if err != nil {
		return fmt.Errorf("check admin user: %w", err)
	}
	if existing != nil {
		if existing.Role != model.UserRoleAdmin || !existing.IsVerified {
			log.Printf("[auth] Upgrading user %s to verified admin", adminEmail)
			existing.Role = model.UserRoleAdmin
			existing.IsVerified = true
			existing.VerificationStatus = model.VerificationVerified
			existing.UpdatedAt = time.Now()
			if err := store.UpdateUser(ctx, existing); err != nil {
				return fmt.Errorf("upgrade admin user: %w", err)
			}
		}
		log.Printf("[auth] Admin user already exists: %s (%s)", adminEmail, existing.ID)
		return nil
	}

	hash, err := HashPassword(adminPassword)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	now := time.Now()
	user := &model.User{
		ID:                 uuid.NewString(),
		Email:              adminEmail,
		Username:           "Admin",
		PasswordHash:       hash,
		Role:               model.UserRoleAdmin,
		IsVerified:         true,
		VerificationStatus: model.VerificationVerified,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := store.CreateUser(ctx, user); err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}
	log.Printf("[auth] Created admin user: %s (%s)", adminEmail, user.ID)
	return nil
}

// ============================================================================
// 工具函数
// ============================================================================

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// IsValidEmail 邮箱格式校验
func IsValidEmail(email string) bool {
	return emailRegex.MatchString(email)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
