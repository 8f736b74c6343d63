// Package server 仪表盘数据聚合
//
// 从存储层收集计数并组装成各角色的视图模型。
package server

import (
	"context"
	"fmt"

	"cadre-portal/internal/shared/model"
)

// overview 全局统计；withUsers 为 false 时不查询用户数量
func (h *Handler) overview(ctx context.Context, role model.UserRole, withUsers bool) (*Overview, error) {
	ov := &Overview{Role: role}

	if withUsers {
		total, unverified, err := h.store.CountUsers(ctx)
		if err != nil {
			return nil, fmt.Errorf("count users: %w", err)
		}
		ov.Users = &UserCounts{Total: total, Unverified: unverified}
	}

	employees, err := h.store.CountEmployees(ctx)
	if err != nil {
		return nil, fmt.Errorf("count employees: %w", err)
	}
	ov.Employees = employees

	byCadre, err := h.store.CountEmployeesByCadre(ctx)
	if err != nil {
		return nil, fmt.Errorf("count by cadre: %w", err)
	}
	if byCadre == nil {
		byCadre = []model.CadreCount{}
	}
	ov.ByCadre = byCadre
	ov.Cadres = len(byCadre)
	ov.Unassigned = employees - sumCounts(byCadre)

	departments, err := h.store.ListDepartments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	if departments == nil {
		departments = []string{}
	}
	ov.Departments = departments
	return ov, nil
}

// authorityView 只保留 userID 主管的 Cadre
func (h *Handler) authorityView(ctx context.Context, userID string) (*AuthorityView, error) {
	controlled, err := h.store.ListCadresByControllingUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list controlled cadres: %w", err)
	}
	view := &AuthorityView{Cadres: []model.CadreCount{}}
	if len(controlled) == 0 {
		return view, nil
	}

	mine := make(map[string]bool, len(controlled))
	for _, c := range controlled {
		mine[c.ID] = true
	}
	counts, err := h.store.CountEmployeesByCadre(ctx)
	if err != nil {
		return nil, fmt.Errorf("count by cadre: %w", err)
	}
	for _, cc := range counts {
		if mine[cc.CadreID] {
			view.Cadres = append(view.Cadres, cc)
		}
	}
	view.Employees = sumCounts(view.Cadres)
	return view, nil
}

// employeeView 用户、关联员工档案及所属 Cadre；用户不存在时返回 nil
func (h *Handler) employeeView(ctx context.Context, userID string) (*EmployeeView, error) {
	u, err := h.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if u == nil {
		return nil, nil
	}
	view := &EmployeeView{User: u}

	e, err := h.store.GetEmployeeByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get employee: %w", err)
	}
	view.Employee = e
	if e != nil && e.CadreID != nil {
		c, err := h.store.GetCadre(ctx, *e.CadreID)
		if err != nil {
			return nil, fmt.Errorf("get cadre: %w", err)
		}
		view.Cadre = c
	}
	return view, nil
}

func sumCounts(counts []model.CadreCount) int {
	n := 0
	for _, cc := range counts {
		n += cc.Employees
	}
	return n
}
