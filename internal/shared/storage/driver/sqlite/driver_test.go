package sqlite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRebind(t *testing.T) {
	d := NewDialect()
	assert.Equal(t, "SELECT * FROM users WHERE id = ? AND role = ?",
		d.Rebind("SELECT * FROM users WHERE id = $1 AND role = $2::varchar"))
}

func TestAutoMigrate_Idempotent(t *testing.T) {
	db, err := Open(":memory:")
	require.NoError(t, err)
	defer db.Close()

	d := NewDialect()
	require.NoError(t, d.AutoMigrate(db))
	require.NoError(t, d.AutoMigrate(db))

	added, err := ensureColumn(db, "users", "otp_purpose", "VARCHAR(16)")
	require.NoError(t, err)
	assert.False(t, added)
}

// 旧库文件缺少 otp_purpose 列时补列，遗留验证码被清空
func TestAutoMigrate_AddsOTPPurpose(t *testing.T) {
	db, err := Open(":memory:")
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE users (
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
		reset_granted_until DATETIME,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO users (id, username, email, password_hash, otp_code, otp_expiry, created_at, updated_at)
		VALUES ('u-1', 'u', 'u@example.com', 'h', '123456', '2030-01-01', '2024-01-01', '2024-01-01')`)
	require.NoError(t, err)

	require.NoError(t, NewDialect().AutoMigrate(db))

	var code, purpose *string
	require.NoError(t, db.QueryRow(`SELECT otp_code, otp_purpose FROM users WHERE id = 'u-1'`).Scan(&code, &purpose))
	assert.Nil(t, code)
	assert.Nil(t, purpose)
}
