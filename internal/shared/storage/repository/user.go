package repository

import (
	"context"
	"database/sql"
	"errors"

	"cadre-portal/internal/shared/model"
)

const userColumns = `u.id, u.username, u.email, u.password_hash, u.mobile_number, u.role,
	u.is_verified, u.verification_status, u.otp_code, u.otp_expiry, u.otp_purpose, u.reset_granted_until,
	u.created_at, u.updated_at`

// scanUser 扫描一行用户记录
func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	u := &model.User{}
	var otpCode, otpPurpose sql.NullString
	var otpExpiry, resetUntil sql.NullTime
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.MobileNumber, &u.Role,
		&u.IsVerified, &u.VerificationStatus, &otpCode, &otpExpiry, &otpPurpose, &resetUntil,
		&u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.OTPCode = stringPtr(otpCode)
	u.OTPExpiry = timePtr(otpExpiry)
	u.OTPPurpose = stringPtr(otpPurpose)
	u.ResetGrantedUntil = timePtr(resetUntil)
	return u, nil
}

// getUser 单行查询，未找到返回 (nil, nil)
func (s *Store) getUser(ctx context.Context, query string, args ...any) (*model.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, s.rebind(query), args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return u, err
}

// CreateUser 创建用户
func (s *Store) CreateUser(ctx context.Context, user *model.User) error {
	_, err := s.exec(ctx,
		`INSERT INTO users (id, username, email, password_hash, mobile_number, role,
			is_verified, verification_status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		user.ID, user.Username, user.Email, user.PasswordHash, user.MobileNumber, string(user.Role),
		user.IsVerified, string(user.VerificationStatus), utc(user.CreatedAt), utc(user.UpdatedAt),
	)
	return err
}

// GetUserByID 通过 ID 查找用户
func (s *Store) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return s.getUser(ctx, `SELECT `+userColumns+` FROM users u WHERE u.id = $1`, id)
}

// GetUserByEmail 通过邮箱查找用户
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.getUser(ctx, `SELECT `+userColumns+` FROM users u WHERE u.email = $1`, email)
}

// GetUserByEmployeeID 通过员工编号查找关联用户
func (s *Store) GetUserByEmployeeID(ctx context.Context, employeeID string) (*model.User, error) {
	return s.getUser(ctx,
		`SELECT `+userColumns+` FROM users u
		 JOIN employees e ON e.user_id = u.id
		 WHERE e.employee_id = $1`, employeeID)
}

// ListUsers 列出所有用户
func (s *Store) ListUsers(ctx context.Context) ([]*model.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users u ORDER BY u.created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UpdateUser 更新用户资料（不含密码和验证码）
func (s *Store) UpdateUser(ctx context.Context, user *model.User) error {
	return s.execOne(ctx,
		`UPDATE users SET username = $1, email = $2, mobile_number = $3, role = $4,
			is_verified = $5, verification_status = $6, updated_at = $7
		 WHERE id = $8`,
		user.Username, user.Email, user.MobileNumber, string(user.Role),
		user.IsVerified, string(user.VerificationStatus), utc(user.UpdatedAt), user.ID,
	)
}

// UpdateUserPassword 更新用户密码
func (s *Store) UpdateUserPassword(ctx context.Context, id, passwordHash string) error {
	return s.execOne(ctx,
		`UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3`,
		passwordHash, utcNow(), id,
	)
}

// DeleteUser 删除用户，关联员工档案与 Cadre 主管字段由外键置空
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	return s.execOne(ctx, `DELETE FROM users WHERE id = $1`, id)
}

// CountUsers 统计用户总数与未验证用户数
func (s *Store) CountUsers(ctx context.Context) (int, int, error) {
	var total, unverified int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN is_verified THEN 0 ELSE 1 END), 0) FROM users`,
	).Scan(&total, &unverified)
	return total, unverified, err
}
