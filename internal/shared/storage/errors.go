// Package storage 定义存储层领域错误
//
// 这些错误用于隔离业务层与底层存储引擎的错误类型，
// 各驱动实现（repository/mongostore）负责将底层错误转换为这些领域错误。
package storage

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound 实体不存在
	// 替代 sql.ErrNoRows / mongo.ErrNoDocuments
	ErrNotFound = errors.New("entity not found")

	// ErrConflict 状态冲突（例如删除仍被引用的记录）
	ErrConflict = errors.New("conflict: entity is still referenced")

	// ErrDuplicate 唯一键冲突（重复邮箱、重复员工编号等）
	ErrDuplicate = errors.New("duplicate: entity already exists")
)

// IsUniqueViolation 识别 SQL 唯一约束错误
// pgx 返回 SQLSTATE 23505；sqlite 只能按错误信息匹配
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
