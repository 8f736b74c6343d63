// Package employee 员工档案接口与 Cadre 主管可见范围
package employee

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"cadre-portal/internal/apiserver/auth"
	"cadre-portal/internal/shared/model"
	"cadre-portal/internal/shared/storage"
)

// Store 员工接口所需的存储
type Store interface {
	storage.EmployeeStore
	CadreLister
	GetCadre(ctx context.Context, id string) (*model.Cadre, error)
	NextCadreSequence(ctx context.Context, id string) (int64, error)
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}

// Handler 员工 HTTP 处理器
type Handler struct {
	store Store
	now   func() time.Time
}

// NewHandler 创建员工处理器
func NewHandler(store Store) *Handler {
	return &Handler{store: store, now: time.Now}
}

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/employees", h.List)
	mux.HandleFunc("POST /api/v1/employees", h.Create)
	mux.HandleFunc("GET /api/v1/employees/{id}", h.Get)
	mux.HandleFunc("PUT /api/v1/employees/{id}", h.Update)
	mux.HandleFunc("DELETE /api/v1/employees/{id}", h.Delete)
	mux.HandleFunc("GET /api/v1/departments", h.ListDepartments)
}

func (h *Handler) scope(r *http.Request) (Scope, error) {
	return ResolveScope(r.Context(), h.store, auth.IdentityFromContext(r.Context()))
}

// List 列出员工（按可见范围过滤）
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := ParseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	scope, err := h.scope(r)
	if err != nil {
		log.Printf("[employee.list] resolve scope error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	employees, err := List(r.Context(), h.store, scope, filter)
	if err != nil {
		log.Printf("[employee.list] ListEmployees error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"employees": employees,
		"count":     len(employees),
	})
}

// List 在可见范围内查询员工（导出接口复用）
func List(ctx context.Context, store storage.EmployeeStore, scope Scope, filter model.EmployeeFilter) ([]*model.Employee, error) {
	if scope.Empty() {
		return []*model.Employee{}, nil
	}
	scope.Restrict(&filter)
	employees, err := store.ListEmployees(ctx, filter)
	if err != nil {
		return nil, err
	}
	if employees == nil {
		employees = []*model.Employee{}
	}
	return employees, nil
}

// Get 获取单个员工
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	e, ok := h.loadScoped(w, r, "employee.get")
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// Create 创建员工；未提供编号时从所属 Cadre 的序号生成
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in employeeInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	now := h.now()
	e := &model.Employee{ID: uuid.NewString(), CreatedAt: now, UpdatedAt: now}
	if err := in.apply(e); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	scope, err := h.scope(r)
	if err != nil {
		log.Printf("[employee.create] resolve scope error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !scope.AllowsCadre(e.CadreID) {
		writeError(w, http.StatusForbidden, "cadre is outside your authority")
		return
	}

	cadre, status, msg := h.checkReferences(r.Context(), e)
	if status != 0 {
		writeError(w, status, msg)
		return
	}

	if e.EmployeeID == "" {
		if cadre == nil {
			writeError(w, http.StatusBadRequest, "employee_id is required when no cadre is set")
			return
		}
		seq, err := h.store.NextCadreSequence(r.Context(), cadre.ID)
		if err != nil {
			log.Printf("[employee.create] NextCadreSequence error: %v", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		year := now.Year()
		if e.DateOfJoining != nil {
			year = e.DateOfJoining.Year()
		}
		e.EmployeeID = model.FormatEmployeeID(year, cadre.Code, seq)
	}

	if err := h.store.CreateEmployee(r.Context(), e); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			writeError(w, http.StatusConflict, "employee_id or user already linked to another employee")
			return
		}
		log.Printf("[employee.create] CreateEmployee error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create employee")
		return
	}

	log.Printf("[employee] Created %s (%s)", e.EmployeeID, e.ID)
	writeJSON(w, http.StatusCreated, e)
}

// Update 更新员工（整体替换可编辑字段）
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.loadScoped(w, r, "employee.update")
	if !ok {
		return
	}

	var in employeeInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	updated := *existing
	if err := in.apply(&updated); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if updated.EmployeeID == "" {
		updated.EmployeeID = existing.EmployeeID
	}

	scope, err := h.scope(r)
	if err != nil {
		log.Printf("[employee.update] resolve scope error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !scope.AllowsCadre(updated.CadreID) {
		writeError(w, http.StatusForbidden, "cadre is outside your authority")
		return
	}
	if _, status, msg := h.checkReferences(r.Context(), &updated); status != 0 {
		writeError(w, status, msg)
		return
	}

	updated.UpdatedAt = h.now()
	if err := h.store.UpdateEmployee(r.Context(), &updated); err != nil {
		switch {
		case errors.Is(err, storage.ErrDuplicate):
			writeError(w, http.StatusConflict, "employee_id or user already linked to another employee")
		case errors.Is(err, storage.ErrNotFound):
			writeError(w, http.StatusNotFound, "employee not found")
		default:
			log.Printf("[employee.update] UpdateEmployee error: %v", err)
			writeError(w, http.StatusInternalServerError, "failed to update employee")
		}
		return
	}
	writeJSON(w, http.StatusOK, &updated)
}

// Delete 删除员工
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	e, ok := h.loadScoped(w, r, "employee.delete")
	if !ok {
		return
	}
	if err := h.store.DeleteEmployee(r.Context(), e.ID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "employee not found")
			return
		}
		log.Printf("[employee.delete] DeleteEmployee error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to delete employee")
		return
	}
	log.Printf("[employee] Deleted %s (%s)", e.EmployeeID, e.ID)
	w.WriteHeader(http.StatusNoContent)
}

// ListDepartments 去重后的部门列表
func (h *Handler) ListDepartments(w http.ResponseWriter, r *http.Request) {
	departments, err := h.store.ListDepartments(r.Context())
	if err != nil {
		log.Printf("[employee.departments] ListDepartments error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if departments == nil {
		departments = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"departments": departments})
}

// loadScoped 读取路径中的员工并检查可见范围，失败时已写入响应
func (h *Handler) loadScoped(w http.ResponseWriter, r *http.Request, op string) (*model.Employee, bool) {
	id := r.PathValue("id")
	e, err := h.store.GetEmployee(r.Context(), id)
	if err != nil {
		log.Printf("[%s] GetEmployee error: %v", op, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return nil, false
	}
	if e == nil {
		writeError(w, http.StatusNotFound, "employee not found")
		return nil, false
	}

	scope, err := h.scope(r)
	if err != nil {
		log.Printf("[%s] resolve scope error: %v", op, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return nil, false
	}
	if !scope.Allows(e) {
		writeError(w, http.StatusForbidden, "employee is outside your authority")
		return nil, false
	}
	return e, true
}

// checkReferences 校验关联的 Cadre 与用户存在，返回 Cadre（可能为 nil）
// status 非 0 表示校验失败
func (h *Handler) checkReferences(ctx context.Context, e *model.Employee) (*model.Cadre, int, string) {
	var cadre *model.Cadre
	if e.CadreID != nil {
		c, err := h.store.GetCadre(ctx, *e.CadreID)
		if err != nil {
			log.Printf("[employee] GetCadre error: %v", err)
			return nil, http.StatusInternalServerError, "internal error"
		}
		if c == nil {
			return nil, http.StatusBadRequest, fmt.Sprintf("cadre %s does not exist", *e.CadreID)
		}
		cadre = c
	}
	if e.UserID != nil {
		u, err := h.store.GetUserByID(ctx, *e.UserID)
		if err != nil {
			log.Printf("[employee] GetUserByID error: %v", err)
			return nil, http.StatusInternalServerError, "internal error"
		}
		if u == nil {
			return nil, http.StatusBadRequest, fmt.Sprintf("user %s does not exist", *e.UserID)
		}
	}
	return cadre, 0, ""
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
