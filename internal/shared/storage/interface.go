// Package storage 定义持久化存储层抽象接口
//
// 设计原则：依赖倒置 (DIP)
//   - 调用方只依赖接口，不知道具体实现
//   - 具体实现在子包中：repository/（SQL：postgres、sqlite）、mongostore/
//   - 初始化时通过 factory 包按配置选择实现并注入
//
// 约定：Get* 查询未找到时返回 (nil, nil)；Update*/Delete* 未命中返回 ErrNotFound。
package storage

import (
	"context"
	"time"

	"cadre-portal/internal/shared/model"
)

// ============================================================================
// 用户
// ============================================================================

// UserStore 用户存储接口
type UserStore interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	// GetUserByEmployeeID 通过员工编号（employees.employee_id）查找关联用户
	GetUserByEmployeeID(ctx context.Context, employeeID string) (*model.User, error)
	ListUsers(ctx context.Context) ([]*model.User, error)
	UpdateUser(ctx context.Context, user *model.User) error
	UpdateUserPassword(ctx context.Context, id, passwordHash string) error
	DeleteUser(ctx context.Context, id string) error
	CountUsers(ctx context.Context) (total int, unverified int, err error)
}

// OTPEffect 验证码校验成功时在同一条 UPDATE 中附带执行的副作用
type OTPEffect struct {
	MarkVerified    bool       // 注册验证：is_verified = true
	GrantResetUntil *time.Time // 找回密码：允许在该时间之前重置密码
}

// OTPStore 验证码存储接口
//
// 所有方法都是单行原子更新：code 与 expiry 同时写入或同时清空。
type OTPStore interface {
	// SetOTP 写入新的验证码及其用途，覆盖旧值
	SetOTP(ctx context.Context, userID, purpose, code string, expiry time.Time) error
	// ConsumeOTP 条件更新：用途与 code 都相同且 now < expiry 时清空验证码并执行 effect
	// 返回 false 表示验证码错误、用途不符或已过期（未修改任何行）
	ConsumeOTP(ctx context.Context, userID, purpose, code string, now time.Time, effect OTPEffect) (bool, error)
	// ResetPasswordWithGrant 条件更新：reset_granted_until > now 时写入新密码并消费授权
	ResetPasswordWithGrant(ctx context.Context, userID, passwordHash string, now time.Time) (bool, error)
}

// ============================================================================
// 员工与 Cadre
// ============================================================================

// EmployeeStore 员工存储接口
type EmployeeStore interface {
	CreateEmployee(ctx context.Context, e *model.Employee) error
	GetEmployee(ctx context.Context, id string) (*model.Employee, error)
	GetEmployeeByUserID(ctx context.Context, userID string) (*model.Employee, error)
	GetEmployeeByEmployeeID(ctx context.Context, employeeID string) (*model.Employee, error)
	ListEmployees(ctx context.Context, filter model.EmployeeFilter) ([]*model.Employee, error)
	UpdateEmployee(ctx context.Context, e *model.Employee) error
	DeleteEmployee(ctx context.Context, id string) error
	// ListDepartments 返回去重后的非空部门列表
	ListDepartments(ctx context.Context) ([]string, error)
	CountEmployees(ctx context.Context) (int, error)
}

// CadreStore Cadre 存储接口
type CadreStore interface {
	CreateCadre(ctx context.Context, c *model.Cadre) error
	GetCadre(ctx context.Context, id string) (*model.Cadre, error)
	ListCadres(ctx context.Context) ([]*model.Cadre, error)
	ListCadresByControllingUser(ctx context.Context, userID string) ([]*model.Cadre, error)
	UpdateCadre(ctx context.Context, c *model.Cadre) error
	// DeleteCadre 删除 Cadre，成员员工的 cadre_id 置空
	DeleteCadre(ctx context.Context, id string) error
	// NextCadreSequence 原子递增序号并返回递增后的值
	NextCadreSequence(ctx context.Context, id string) (int64, error)
	CountEmployeesByCadre(ctx context.Context) ([]model.CadreCount, error)
}

// ============================================================================
// 组合接口
// ============================================================================

// PersistentStore 持久化存储组合接口
type PersistentStore interface {
	UserStore
	OTPStore
	EmployeeStore
	CadreStore
	Close() error
}
