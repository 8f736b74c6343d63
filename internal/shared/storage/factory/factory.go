// Package factory 按配置选择持久化存储实现
//
// 支持的驱动：postgres（goose 迁移）、sqlite（内置建表）、mongodb。
// 独立成包以避免 storage 与其实现包之间的循环引用。
package factory

import (
	"context"
	"fmt"

	"cadre-portal/internal/shared/storage"
	"cadre-portal/internal/shared/storage/dbutil"
	sqlitedriver "cadre-portal/internal/shared/storage/driver/sqlite"
	"cadre-portal/internal/shared/storage/mongostore"
	"cadre-portal/internal/shared/storage/postgres"
	"cadre-portal/internal/shared/storage/repository"
)

// Options 存储初始化参数
type Options struct {
	Driver        dbutil.DriverType
	DSN           string // postgres URL / sqlite DSN / mongodb URI
	MongoDatabase string // 仅 mongodb 使用
}

// NewSQLiteStore 创建 SQLite 存储（含自动建表）
func NewSQLiteStore(dsn string) (*repository.Store, error) {
	db, err := sqlitedriver.Open(dsn)
	if err != nil {
		return nil, err
	}
	dialect := sqlitedriver.NewDialect()
	if err := dialect.AutoMigrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite auto-migrate failed: %w", err)
	}
	return repository.NewStore(db, dialect), nil
}

// NewPersistentStore 根据驱动类型创建持久化存储
func NewPersistentStore(ctx context.Context, opts Options) (storage.PersistentStore, error) {
	if opts.DSN == "" {
		return nil, fmt.Errorf("database dsn is empty for driver %s", opts.Driver)
	}
	switch opts.Driver {
	case dbutil.DriverPostgres:
		return postgres.NewStore(ctx, opts.DSN)
	case dbutil.DriverSQLite:
		return NewSQLiteStore(opts.DSN)
	case dbutil.DriverMongoDB:
		dbName := opts.MongoDatabase
		if dbName == "" {
			dbName = "cadre_portal"
		}
		return mongostore.NewStore(opts.DSN, dbName)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", opts.Driver)
	}
}
