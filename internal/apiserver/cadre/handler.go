// Package cadre Cadre 管理接口
//
// 创建/删除需要不受限范围（ADMIN）；Cadre 主管可以查看和编辑自己主管的 Cadre，
// 但不能转移主管人。
package cadre

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"cadre-portal/internal/apiserver/auth"
	"cadre-portal/internal/apiserver/employee"
	"cadre-portal/internal/shared/model"
	"cadre-portal/internal/shared/storage"
)

// Store Cadre 接口所需的存储
type Store interface {
	storage.CadreStore
	ListEmployees(ctx context.Context, filter model.EmployeeFilter) ([]*model.Employee, error)
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}

// Handler Cadre HTTP 处理器
type Handler struct {
	store Store
}

// NewHandler 创建 Cadre 处理器
func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/cadres", h.List)
	mux.HandleFunc("POST /api/v1/cadres", h.Create)
	mux.HandleFunc("GET /api/v1/cadres/{id}", h.Get)
	mux.HandleFunc("PUT /api/v1/cadres/{id}", h.Update)
	mux.HandleFunc("DELETE /api/v1/cadres/{id}", h.Delete)
}

type cadreRequest struct {
	Name                  string  `json:"name"`
	Code                  string  `json:"code"`
	ControllingAuthority  string  `json:"controlling_authority"`
	ControllingDepartment *string `json:"controlling_department"`
	ControllingUserID     *string `json:"controlling_user_id"`
}

func (h *Handler) scope(r *http.Request) (employee.Scope, error) {
	return employee.ResolveScope(r.Context(), h.store, auth.IdentityFromContext(r.Context()))
}

// List 列出可见的 Cadre
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFromContext(r.Context())
	scope, err := h.scope(r)
	if err != nil {
		log.Printf("[cadre.list] resolve scope error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	var cadres []*model.Cadre
	switch {
	case scope.All():
		cadres, err = h.store.ListCadres(r.Context())
	case scope.Empty() || id == nil:
		cadres = []*model.Cadre{}
	default:
		cadres, err = h.store.ListCadresByControllingUser(r.Context(), id.ID)
	}
	if err != nil {
		log.Printf("[cadre.list] list error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if cadres == nil {
		cadres = []*model.Cadre{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"cadres": cadres, "count": len(cadres)})
}

// Get 获取 Cadre 及其成员
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	c, ok := h.loadScoped(w, r, "cadre.get")
	if !ok {
		return
	}
	members, err := h.store.ListEmployees(r.Context(), model.EmployeeFilter{CadreID: c.ID})
	if err != nil {
		log.Printf("[cadre.get] ListEmployees error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if members == nil {
		members = []*model.Employee{}
	}
	c.Employees = members
	writeJSON(w, http.StatusOK, c)
}

// Create 创建 Cadre
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	scope, err := h.scope(r)
	if err != nil {
		log.Printf("[cadre.create] resolve scope error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !scope.All() {
		writeError(w, http.StatusForbidden, "only administrators can create cadres")
		return
	}

	var req cadreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	now := time.Now()
	c := &model.Cadre{ID: uuid.NewString(), CreatedAt: now, UpdatedAt: now}
	if status, msg := h.apply(r.Context(), &req, c, true); status != 0 {
		writeError(w, status, msg)
		return
	}

	if err := h.store.CreateCadre(r.Context(), c); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			writeError(w, http.StatusConflict, "cadre name or code already exists")
			return
		}
		log.Printf("[cadre.create] CreateCadre error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create cadre")
		return
	}
	log.Printf("[cadre] Created %s (%s)", c.Code, c.ID)
	writeJSON(w, http.StatusCreated, c)
}

// Update 更新 Cadre 基本信息
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	c, ok := h.loadScoped(w, r, "cadre.update")
	if !ok {
		return
	}
	scope, err := h.scope(r)
	if err != nil {
		log.Printf("[cadre.update] resolve scope error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	var req cadreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if status, msg := h.apply(r.Context(), &req, c, scope.All()); status != 0 {
		writeError(w, status, msg)
		return
	}
	c.UpdatedAt = time.Now()

	if err := h.store.UpdateCadre(r.Context(), c); err != nil {
		switch {
		case errors.Is(err, storage.ErrDuplicate):
			writeError(w, http.StatusConflict, "cadre name or code already exists")
		case errors.Is(err, storage.ErrNotFound):
			writeError(w, http.StatusNotFound, "cadre not found")
		default:
			log.Printf("[cadre.update] UpdateCadre error: %v", err)
			writeError(w, http.StatusInternalServerError, "failed to update cadre")
		}
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// Delete 删除 Cadre，成员员工变为未分配
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	scope, err := h.scope(r)
	if err != nil {
		log.Printf("[cadre.delete] resolve scope error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !scope.All() {
		writeError(w, http.StatusForbidden, "only administrators can delete cadres")
		return
	}

	id := r.PathValue("id")
	if err := h.store.DeleteCadre(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "cadre not found")
			return
		}
		log.Printf("[cadre.delete] DeleteCadre error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to delete cadre")
		return
	}
	log.Printf("[cadre] Deleted %s", id)
	w.WriteHeader(http.StatusNoContent)
}

// apply 校验请求并写入 c；canAssign 为 false 时不允许修改主管人
func (h *Handler) apply(ctx context.Context, req *cadreRequest, c *model.Cadre, canAssign bool) (int, string) {
	req.Name = strings.TrimSpace(req.Name)
	req.Code = strings.ToUpper(strings.TrimSpace(req.Code))
	if req.Name == "" || req.Code == "" || strings.TrimSpace(req.ControllingAuthority) == "" {
		return http.StatusBadRequest, "name, code, controlling_authority are required"
	}
	if !model.ValidCadreCode(req.Code) {
		return http.StatusBadRequest, "code must contain only letters"
	}

	controller := req.ControllingUserID
	if controller != nil && *controller == "" {
		controller = nil
	}
	if !sameID(controller, c.ControllingUserID) {
		if !canAssign {
			return http.StatusForbidden, "only administrators can change the controlling user"
		}
		if controller != nil {
			u, err := h.store.GetUserByID(ctx, *controller)
			if err != nil {
				log.Printf("[cadre] GetUserByID error: %v", err)
				return http.StatusInternalServerError, "internal error"
			}
			if u == nil {
				return http.StatusBadRequest, "controlling user does not exist"
			}
			if u.Role != model.UserRoleCadreControllingAuthority && u.Role != model.UserRoleAdmin {
				return http.StatusBadRequest, "controlling user must be a cadre controlling authority or admin"
			}
		}
	}

	c.Name = req.Name
	c.Code = req.Code
	c.ControllingAuthority = strings.TrimSpace(req.ControllingAuthority)
	c.ControllingDepartment = req.ControllingDepartment
	if c.ControllingDepartment != nil && strings.TrimSpace(*c.ControllingDepartment) == "" {
		c.ControllingDepartment = nil
	}
	c.ControllingUserID = controller
	return 0, ""
}

// loadScoped 读取路径中的 Cadre 并检查可见范围，失败时已写入响应
func (h *Handler) loadScoped(w http.ResponseWriter, r *http.Request, op string) (*model.Cadre, bool) {
	c, err := h.store.GetCadre(r.Context(), r.PathValue("id"))
	if err != nil {
		log.Printf("[%s] GetCadre error: %v", op, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return nil, false
	}
	if c == nil {
		writeError(w, http.StatusNotFound, "cadre not found")
		return nil, false
	}
	scope, err := h.scope(r)
	if err != nil {
		log.Printf("[%s] resolve scope error: %v", op, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return nil, false
	}
	if !scope.AllowsCadre(&c.ID) {
		writeError(w, http.StatusForbidden, "cadre is outside your authority")
		return nil, false
	}
	return c, true
}

func sameID(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
