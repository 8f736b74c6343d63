// Package server 各角色仪表盘 HTTP API
//
// 数据聚合逻辑位于 dashboard_data.go。授权只由访问控制网关负责，
// 这里不再检查角色。
//
// API 端点：
//   - GET /dashboard                 - 管理员总览
//   - GET /cm/dashboard              - CM 总览
//   - GET /dop/dashboard             - DOP 总览
//   - GET /cs/dashboard              - CS 总览
//   - GET /cadre-authority/dashboard - Cadre 主管视图
//   - GET /employee/dashboard        - 员工个人视图
package server

import (
	"log"
	"net/http"

	"cadre-portal/internal/apiserver/auth"
	"cadre-portal/internal/shared/model"
)

// UserCounts 用户统计
type UserCounts struct {
	Total      int `json:"total"`
	Unverified int `json:"unverified"`
}

// Overview 全局总览（ADMIN / CM / DOP / CS）
type Overview struct {
	Role        model.UserRole     `json:"role"`
	Users       *UserCounts        `json:"users,omitempty"` // 只有 ADMIN 可见
	Employees   int                `json:"employees"`
	Cadres      int                `json:"cadres"`
	Unassigned  int                `json:"unassigned"` // 未分配 Cadre 的员工
	ByCadre     []model.CadreCount `json:"by_cadre"`
	Departments []string           `json:"departments"`
}

// AuthorityView Cadre 主管视图
type AuthorityView struct {
	Cadres    []model.CadreCount `json:"cadres"`
	Employees int                `json:"employees"`
}

// EmployeeView 员工个人视图
type EmployeeView struct {
	User     *model.User     `json:"user"`
	Employee *model.Employee `json:"employee"`
	Cadre    *model.Cadre    `json:"cadre"`
}

// registerDashboards 注册仪表盘路由
func (h *Handler) registerDashboards(mux *http.ServeMux) {
	mux.HandleFunc("GET /dashboard", h.AdminDashboard)
	mux.HandleFunc("GET /cm/dashboard", h.officeDashboard(model.UserRoleCM))
	mux.HandleFunc("GET /dop/dashboard", h.officeDashboard(model.UserRoleDOP))
	mux.HandleFunc("GET /cs/dashboard", h.officeDashboard(model.UserRoleCS))
	mux.HandleFunc("GET /cadre-authority/dashboard", h.AuthorityDashboard)
	mux.HandleFunc("GET /employee/dashboard", h.EmployeeDashboard)
}

// AdminDashboard 管理员总览，同时刷新记录数量指标
func (h *Handler) AdminDashboard(w http.ResponseWriter, r *http.Request) {
	ov, err := h.overview(r.Context(), model.UserRoleAdmin, true)
	if err != nil {
		log.Printf("[dashboard.admin] error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.metrics.SetRecordCounts(ov.Users.Total, ov.Employees, ov.Cadres)
	writeJSON(w, http.StatusOK, ov)
}

func (h *Handler) officeDashboard(role model.UserRole) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ov, err := h.overview(r.Context(), role, false)
		if err != nil {
			log.Printf("[dashboard.%s] error: %v", role, err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, ov)
	}
}

// AuthorityDashboard Cadre 主管只看到自己主管的 Cadre
func (h *Handler) AuthorityDashboard(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFromContext(r.Context())
	if id == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	view, err := h.authorityView(r.Context(), id.ID)
	if err != nil {
		log.Printf("[dashboard.authority] error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// EmployeeDashboard 员工个人档案
func (h *Handler) EmployeeDashboard(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFromContext(r.Context())
	if id == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	view, err := h.employeeView(r.Context(), id.ID)
	if err != nil {
		log.Printf("[dashboard.employee] error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if view == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, view)
}
