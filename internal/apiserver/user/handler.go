// Package user 用户管理接口（仅 ADMIN，由访问控制网关保证）
package user

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"cadre-portal/internal/apiserver/auth"
	"cadre-portal/internal/shared/model"
	"cadre-portal/internal/shared/storage"
)

// Handler 用户 HTTP 处理器
type Handler struct {
	store storage.UserStore
}

// NewHandler 创建用户处理器
func NewHandler(store storage.UserStore) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/users", h.List)
	mux.HandleFunc("POST /api/v1/users", h.Create)
	mux.HandleFunc("GET /api/v1/users/{id}", h.Get)
	mux.HandleFunc("PATCH /api/v1/users/{id}", h.Update)
	mux.HandleFunc("DELETE /api/v1/users/{id}", h.Delete)
}

type createRequest struct {
	Email        string `json:"email"`
	Username     string `json:"username"`
	Password     string `json:"password"`
	MobileNumber string `json:"mobile_number"`
	Role         string `json:"role"`
}

type updateRequest struct {
	Username     *string `json:"username"`
	MobileNumber *string `json:"mobile_number"`
	Role         *string `json:"role"`
	IsVerified   *bool   `json:"is_verified"`
}

// List 列出所有用户
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		log.Printf("[user.list] ListUsers error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if users == nil {
		users = []*model.User{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"users": users, "count": len(users)})
}

// Get 获取用户
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	u, err := h.store.GetUserByID(r.Context(), r.PathValue("id"))
	if err != nil {
		log.Printf("[user.get] GetUserByID error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if u == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// Create 管理员创建用户（直接标记为已验证）
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Username == "" || req.Password == "" || req.Role == "" {
		writeError(w, http.StatusBadRequest, "email, username, password, role are required")
		return
	}
	if !auth.IsValidEmail(req.Email) {
		writeError(w, http.StatusBadRequest, "invalid email format")
		return
	}
	if len(req.Password) < auth.MinPasswordLength {
		writeError(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}
	role, ok := model.ParseUserRole(req.Role)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown role")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		log.Printf("[user.create] HashPassword error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	now := time.Now()
	u := &model.User{
		ID:                 uuid.NewString(),
		Username:           req.Username,
		Email:              req.Email,
		PasswordHash:       hash,
		MobileNumber:       req.MobileNumber,
		Role:               role,
		IsVerified:         true,
		VerificationStatus: model.VerificationVerified,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := h.store.CreateUser(r.Context(), u); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			writeError(w, http.StatusConflict, "email already registered")
			return
		}
		log.Printf("[user.create] CreateUser error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	log.Printf("[user] Created %s (%s) with role %s", u.Email, u.ID, u.Role)
	writeJSON(w, http.StatusCreated, u)
}

// Update 部分更新用户名、手机号、角色、验证状态
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	u, err := h.store.GetUserByID(r.Context(), r.PathValue("id"))
	if err != nil {
		log.Printf("[user.update] GetUserByID error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if u == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	if req.Username != nil {
		if *req.Username == "" {
			writeError(w, http.StatusBadRequest, "username must not be empty")
			return
		}
		u.Username = *req.Username
	}
	if req.MobileNumber != nil {
		u.MobileNumber = *req.MobileNumber
	}
	if req.Role != nil {
		role, ok := model.ParseUserRole(*req.Role)
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown role")
			return
		}
		caller := auth.IdentityFromContext(r.Context())
		if caller != nil && caller.ID == u.ID && role != u.Role {
			writeError(w, http.StatusBadRequest, "cannot change your own role")
			return
		}
		u.Role = role
	}
	if req.IsVerified != nil {
		u.IsVerified = *req.IsVerified
		u.VerificationStatus = model.VerificationPending
		if u.IsVerified {
			u.VerificationStatus = model.VerificationVerified
		}
	}
	u.UpdatedAt = time.Now()

	if err := h.store.UpdateUser(r.Context(), u); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		log.Printf("[user.update] UpdateUser error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to update user")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// Delete 删除用户（不能删除自己）
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if caller := auth.IdentityFromContext(r.Context()); caller != nil && caller.ID == id {
		writeError(w, http.StatusBadRequest, "cannot delete yourself")
		return
	}
	if err := h.store.DeleteUser(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		log.Printf("[user.delete] DeleteUser error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to delete user")
		return
	}
	log.Printf("[user] Deleted %s", id)
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
