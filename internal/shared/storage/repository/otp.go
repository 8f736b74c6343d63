package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cadre-portal/internal/shared/model"
	"cadre-portal/internal/shared/storage"
)

// SetOTP 写入新的验证码，旧验证码随之失效
func (s *Store) SetOTP(ctx context.Context, userID, purpose, code string, expiry time.Time) error {
	return s.execOne(ctx,
		`UPDATE users SET otp_code = $1, otp_expiry = $2, otp_purpose = $3, updated_at = $4 WHERE id = $5`,
		code, utc(expiry), purpose, utcNow(), userID,
	)
}

// ConsumeOTP 单条条件 UPDATE 完成校验与消费
//
// 匹配条件用途与 code 相同且 otp_expiry > now；命中后清空验证码并按 effect 更新状态。
// 并发校验同一验证码时至多一个请求能影响到行。
func (s *Store) ConsumeOTP(ctx context.Context, userID, purpose, code string, now time.Time, effect storage.OTPEffect) (bool, error) {
	sets := []string{"otp_code = NULL", "otp_expiry = NULL", "otp_purpose = NULL", "updated_at = $1"}
	args := []any{utc(now)}

	if effect.MarkVerified {
		args = append(args, true, string(model.VerificationVerified))
		sets = append(sets,
			fmt.Sprintf("is_verified = $%d", len(args)-1),
			fmt.Sprintf("verification_status = $%d", len(args)))
	}
	if effect.GrantResetUntil != nil {
		args = append(args, utc(*effect.GrantResetUntil))
		sets = append(sets, fmt.Sprintf("reset_granted_until = $%d", len(args)))
	}

	n := len(args)
	query := fmt.Sprintf(
		`UPDATE users SET %s WHERE id = $%d AND otp_purpose = $%d AND otp_code = $%d AND otp_expiry > $%d`,
		strings.Join(sets, ", "), n+1, n+2, n+3, n+4)
	args = append(args, userID, purpose, code, utc(now))

	affected, err := s.exec(ctx, query, args...)
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// ResetPasswordWithGrant 存在未过期的重置授权时写入新密码，授权一次性消费
func (s *Store) ResetPasswordWithGrant(ctx context.Context, userID, passwordHash string, now time.Time) (bool, error) {
	affected, err := s.exec(ctx,
		`UPDATE users SET password_hash = $1, reset_granted_until = NULL, updated_at = $2
		 WHERE id = $3 AND reset_granted_until IS NOT NULL AND reset_granted_until > $4`,
		passwordHash, utc(now), userID, utc(now),
	)
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}
