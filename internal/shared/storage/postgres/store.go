// Package postgres PostgreSQL 存储实现
//
// 本包是 repository.Store + driver/postgres.Dialect 的组合：
// 打开连接后执行内嵌迁移，返回可直接使用的 Store。
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	pgdriver "cadre-portal/internal/shared/storage/driver/postgres"
	"cadre-portal/internal/shared/storage/repository"
)

// Store PostgreSQL 存储
// 内部委托给 repository.Store
type Store = repository.Store

// NewStore 创建 PostgreSQL 存储并迁移到最新 Schema
func NewStore(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := pgdriver.Open(databaseURL)
	if err != nil {
		return nil, err
	}
	if err := pgdriver.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres migrate failed: %w", err)
	}
	return repository.NewStore(db, pgdriver.NewDialect()), nil
}

// NewStoreFromDB 从已有的 *sql.DB 创建 PostgreSQL 存储（不执行迁移）
func NewStoreFromDB(db *sql.DB) *Store {
	return repository.NewStore(db, pgdriver.NewDialect())
}
