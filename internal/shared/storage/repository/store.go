// Package repository 数据库无关的业务逻辑存储层
//
// 通过 dbutil.Dialect 接口屏蔽不同数据库的 SQL 差异，
// 所有 SQL 以 PostgreSQL 风格编写，运行时由 Dialect.Rebind() 转换。
//
// 时间参数统一以 UTC 绑定：SQLite 以文本存储时间，只有同一时区的文本比较才有意义。
package repository

import (
	"context"
	"database/sql"
	"time"

	"cadre-portal/internal/shared/storage"
	"cadre-portal/internal/shared/storage/dbutil"
)

// Store 通用存储实现
// 实现了 storage.PersistentStore 接口
type Store struct {
	db      *sql.DB
	dialect dbutil.Dialect
}

var _ storage.PersistentStore = (*Store)(nil)

// NewStore 创建通用存储
func NewStore(db *sql.DB, dialect dbutil.Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

// Close 关闭数据库连接
func (s *Store) Close() error {
	return s.db.Close()
}

// DB 返回底层数据库连接（仅用于测试）
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect 返回当前方言
func (s *Store) Dialect() dbutil.Dialect {
	return s.dialect
}

// rebind 快捷方法：将 PG 风格 SQL 转换为当前方言
func (s *Store) rebind(query string) string {
	return s.dialect.Rebind(query)
}

// exec 执行写语句并返回影响行数
func (s *Store) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(query), args...)
	if err != nil {
		if storage.IsUniqueViolation(err) {
			return 0, storage.ErrDuplicate
		}
		return 0, err
	}
	return res.RowsAffected()
}

// execOne 执行写语句，未命中任何行时返回 ErrNotFound
func (s *Store) execOne(ctx context.Context, query string, args ...any) error {
	n, err := s.exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// utc 去掉单调时钟读数并转换为 UTC
func utc(t time.Time) time.Time {
	return t.UTC()
}

// utcPtr 可空时间的 utc 版本
func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}

// nullString 空字符串指针写为 NULL
func nullString(p *string) any {
	if p == nil || *p == "" {
		return nil
	}
	return *p
}

// stringPtr sql.NullString 转指针
func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

// timePtr sql.NullTime 转指针
func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	v := nt.Time
	return &v
}

// utcNow 当前 UTC 时间
func utcNow() time.Time {
	return time.Now().UTC()
}
