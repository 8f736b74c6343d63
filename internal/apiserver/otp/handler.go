package otp

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"cadre-portal/internal/shared/storage"
)

// Handler 验证码相关 HTTP 接口（均为公开路由）
type Handler struct {
	svc *Service
}

// NewHandler 创建验证码处理器
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/auth/forgot-password", h.ForgotPassword)
	mux.HandleFunc("POST /api/v1/auth/verify-reset-otp", h.VerifyResetOTP)
	mux.HandleFunc("POST /api/v1/auth/reset-password", h.ResetPassword)
	mux.HandleFunc("POST /api/v1/auth/verify-otp", h.VerifySignupOTP)
	mux.HandleFunc("POST /api/v1/auth/resend-otp", h.ResendSignupOTP)
}

type identifierRequest struct {
	Identifier string `json:"identifier"`
	OTP        string `json:"otp"`
	Password   string `json:"password"`
}

type emailRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

// ForgotPassword 发送找回密码验证码
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req identifierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Identifier == "" {
		writeError(w, http.StatusBadRequest, "identifier is required")
		return
	}
	if err := h.svc.Issue(r.Context(), req.Identifier, PurposeReset); err != nil {
		h.fail(w, "forgot-password", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "OTP sent"})
}

// VerifyResetOTP 校验找回密码验证码，成功后允许在有效期内重置密码
func (h *Handler) VerifyResetOTP(w http.ResponseWriter, r *http.Request) {
	var req identifierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Identifier == "" || req.OTP == "" {
		writeError(w, http.StatusBadRequest, "identifier and otp are required")
		return
	}
	if err := h.svc.Verify(r.Context(), req.Identifier, req.OTP, PurposeReset); err != nil {
		h.fail(w, "verify-reset-otp", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "OTP verified"})
}

// ResetPassword 设置新密码
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req identifierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Identifier == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "identifier and password are required")
		return
	}
	if err := h.svc.ResetPassword(r.Context(), req.Identifier, req.Password); err != nil {
		h.fail(w, "reset-password", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "password reset successful"})
}

// VerifySignupOTP 校验注册验证码并标记账号已验证
func (h *Handler) VerifySignupOTP(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.OTP == "" {
		writeError(w, http.StatusBadRequest, "email and otp are required")
		return
	}
	if err := h.svc.Verify(r.Context(), req.Email, req.OTP, PurposeSignup); err != nil {
		h.fail(w, "verify-otp", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "account verified"})
}

// ResendSignupOTP 重新发送注册验证码
func (h *Handler) ResendSignupOTP(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}
	if err := h.svc.Resend(r.Context(), req.Email, PurposeSignup); err != nil {
		h.fail(w, "resend-otp", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "OTP sent"})
}

// fail 将服务错误映射为 HTTP 状态码，内部错误不暴露细节
func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "user not found")
	case errors.Is(err, ErrInvalidOrExpired):
		writeError(w, http.StatusBadRequest, "invalid or expired OTP")
	case errors.Is(err, ErrInvalidIdentifier):
		writeError(w, http.StatusBadRequest, "identifier must be an email or employee id")
	case errors.Is(err, ErrResetNotGranted):
		writeError(w, http.StatusBadRequest, "OTP verification required before resetting password")
	case errors.Is(err, ErrInvalidPassword):
		writeError(w, http.StatusBadRequest, ErrInvalidPassword.Error())
	case errors.Is(err, ErrAlreadyVerified):
		writeError(w, http.StatusBadRequest, "account already verified")
	case errors.Is(err, ErrTooManyAttempts):
		writeError(w, http.StatusTooManyRequests, "too many attempts, try again later")
	case errors.Is(err, ErrDelivery):
		log.Printf("[otp.%s] delivery failed: %v", op, err)
		writeError(w, http.StatusInternalServerError, "failed to send OTP")
	default:
		log.Printf("[otp.%s] error: %v", op, err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
