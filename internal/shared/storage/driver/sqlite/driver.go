// Package sqlite SQLite 数据库驱动
//
// 提供 SQLite 连接管理、方言实现和自动 Schema 迁移。
// 适用于开发、测试和轻量级部署场景。
package sqlite

import (
	"database/sql"
	"fmt"

	"cadre-portal/internal/shared/storage/dbutil"

	_ "modernc.org/sqlite"
)

// Dialect SQLite 方言实现
type Dialect struct{}

var _ dbutil.Dialect = (*Dialect)(nil)

func (d *Dialect) DriverType() dbutil.DriverType {
	return dbutil.DriverSQLite
}

func (d *Dialect) Rebind(query string) string {
	return dbutil.StripPgCasts(dbutil.RebindToQuestion(query))
}

func (d *Dialect) AutoMigrate(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return err
	}
	// 早于 otp_purpose 的库文件：补列并清空无用途的验证码
	added, err := ensureColumn(db, "users", "otp_purpose", "VARCHAR(16)")
	if err != nil {
		return err
	}
	if added {
		_, err = db.Exec(`UPDATE users SET otp_code = NULL, otp_expiry = NULL`)
	}
	return err
}

// ensureColumn 列不存在时追加，返回是否新增
func ensureColumn(db *sql.DB, table, column, ddl string) (bool, error) {
	rows, err := db.Query(fmt.Sprintf("SELECT name FROM pragma_table_info('%s')", table))
	if err != nil {
		return false, fmt.Errorf("inspect %s: %w", table, err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return false, err
		}
		if name == column {
			return false, nil
		}
	}
	if err := rows.Err(); err != nil {
		return false, err
	}
	rows.Close()
	if _, err := db.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, ddl)); err != nil {
		return false, fmt.Errorf("add %s.%s: %w", table, column, err)
	}
	return true, nil
}

// Open 创建 SQLite 数据库连接
// dsn 示例: "file:portal.db?cache=shared&mode=rwc" 或 ":memory:"
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	// :memory: 每个连接是独立数据库，限制为单连接
	db.SetMaxOpenConns(1)

	// SQLite 优化设置
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %s: %w", p, err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite: %w", err)
	}

	return db, nil
}

// NewDialect 创建 SQLite 方言
func NewDialect() *Dialect {
	return &Dialect{}
}

// schema SQLite 完整建表语句（等价于 PostgreSQL 迁移文件）
const schema = `
-- users
CREATE TABLE IF NOT EXISTS users (
    id VARCHAR(64) PRIMARY KEY,
    username VARCHAR(100) NOT NULL,
    email VARCHAR(255) NOT NULL UNIQUE,
    password_hash VARCHAR(255) NOT NULL,
    mobile_number VARCHAR(32) NOT NULL DEFAULT '',
    role VARCHAR(40) NOT NULL DEFAULT 'EMPLOYEE',
    is_verified BOOLEAN NOT NULL DEFAULT 0,
    verification_status VARCHAR(16) NOT NULL DEFAULT 'PENDING',
    otp_code VARCHAR(6),
    otp_expiry DATETIME,
    otp_purpose VARCHAR(16),
    reset_granted_until DATETIME,
    created_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL,
    CHECK ((otp_code IS NULL) = (otp_expiry IS NULL))
);

-- cadres
CREATE TABLE IF NOT EXISTS cadres (
    id VARCHAR(64) PRIMARY KEY,
    name VARCHAR(200) NOT NULL UNIQUE,
    code VARCHAR(16) NOT NULL UNIQUE,
    controlling_authority VARCHAR(200) NOT NULL DEFAULT '',
    controlling_department VARCHAR(200),
    controlling_user_id VARCHAR(64) REFERENCES users(id) ON DELETE SET NULL,
    sequence INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL
);

-- employees
CREATE TABLE IF NOT EXISTS employees (
    id VARCHAR(64) PRIMARY KEY,
    user_id VARCHAR(64) UNIQUE REFERENCES users(id) ON DELETE SET NULL,
    employee_id VARCHAR(64) NOT NULL UNIQUE,
    cadre_id VARCHAR(64) REFERENCES cadres(id) ON DELETE SET NULL,
    first_name VARCHAR(100) NOT NULL,
    middle_name VARCHAR(100) NOT NULL DEFAULT '',
    last_name VARCHAR(100) NOT NULL DEFAULT '',
    father_name VARCHAR(200) NOT NULL DEFAULT '',
    gender VARCHAR(16) NOT NULL DEFAULT '',
    date_of_birth DATETIME,
    date_of_joining DATETIME,
    date_of_retirement DATETIME,
    designation VARCHAR(200) NOT NULL DEFAULT '',
    department VARCHAR(200) NOT NULL DEFAULT '',
    pay_level VARCHAR(32) NOT NULL DEFAULT '',
    current_posting VARCHAR(200) NOT NULL DEFAULT '',
    place_of_posting VARCHAR(200) NOT NULL DEFAULT '',
    district VARCHAR(100) NOT NULL DEFAULT '',
    state VARCHAR(100) NOT NULL DEFAULT '',
    address_line1 VARCHAR(255) NOT NULL DEFAULT '',
    address_line2 VARCHAR(255) NOT NULL DEFAULT '',
    city VARCHAR(100) NOT NULL DEFAULT '',
    pin_code VARCHAR(16) NOT NULL DEFAULT '',
    mobile_number VARCHAR(32) NOT NULL DEFAULT '',
    email VARCHAR(255) NOT NULL DEFAULT '',
    category VARCHAR(32) NOT NULL DEFAULT '',
    qualification VARCHAR(200) NOT NULL DEFAULT '',
    home_district VARCHAR(100) NOT NULL DEFAULT '',
    remarks TEXT NOT NULL DEFAULT '',
    created_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_employees_cadre ON employees(cadre_id);
CREATE INDEX IF NOT EXISTS idx_employees_department ON employees(department);
CREATE INDEX IF NOT EXISTS idx_cadres_controlling_user ON cadres(controlling_user_id);
`
