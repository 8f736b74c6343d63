package employee

import (
	"context"
	"fmt"
	"slices"

	"cadre-portal/internal/apiserver/auth"
	"cadre-portal/internal/shared/model"
)

// CadreLister 查询调用方主管的 Cadre
type CadreLister interface {
	ListCadresByControllingUser(ctx context.Context, userID string) ([]*model.Cadre, error)
}

// Scope 调用方可见的员工范围
//
// ADMIN、CM、DOP、CS 不受限；Cadre 主管只能看到自己主管的 Cadre 内的员工；
// 其他情况（未认证、EMPLOYEE）为空范围。
type Scope struct {
	all      bool
	cadreIDs []string
}

// Unrestricted 不受限范围
func Unrestricted() Scope {
	return Scope{all: true}
}

// ResolveScope 根据调用方身份计算可见范围
func ResolveScope(ctx context.Context, cadres CadreLister, id *auth.Identity) (Scope, error) {
	if id == nil {
		return Scope{}, nil
	}
	switch id.Role {
	case model.UserRoleAdmin, model.UserRoleCM, model.UserRoleDOP, model.UserRoleCS:
		return Unrestricted(), nil
	case model.UserRoleCadreControllingAuthority:
		list, err := cadres.ListCadresByControllingUser(ctx, id.ID)
		if err != nil {
			return Scope{}, fmt.Errorf("list controlled cadres: %w", err)
		}
		ids := make([]string, 0, len(list))
		for _, c := range list {
			ids = append(ids, c.ID)
		}
		return Scope{cadreIDs: ids}, nil
	default:
		return Scope{}, nil
	}
}

// All 是否不受限
func (s Scope) All() bool { return s.all }

// CadreIDs 受限时可见的 Cadre
func (s Scope) CadreIDs() []string { return s.cadreIDs }

// Empty 范围内不可能有任何员工
func (s Scope) Empty() bool { return !s.all && len(s.cadreIDs) == 0 }

// AllowsCadre 是否可以访问该 Cadre（nil 表示未分配 Cadre，只有不受限范围可见）
func (s Scope) AllowsCadre(cadreID *string) bool {
	if s.all {
		return true
	}
	return cadreID != nil && slices.Contains(s.cadreIDs, *cadreID)
}

// Allows 是否可以访问该员工
func (s Scope) Allows(e *model.Employee) bool {
	return s.AllowsCadre(e.CadreID)
}

// Restrict 将范围写入列表过滤条件
func (s Scope) Restrict(f *model.EmployeeFilter) {
	if !s.all {
		f.CadreIDs = s.cadreIDs
	}
}
