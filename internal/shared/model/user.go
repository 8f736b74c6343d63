package model

import (
	"strings"
	"time"
)

// UserRole 用户角色
type UserRole string

const (
	UserRoleAdmin                     UserRole = "ADMIN"
	UserRoleEmployee                  UserRole = "EMPLOYEE"
	UserRoleCM                        UserRole = "CM"
	UserRoleDOP                       UserRole = "DOP"
	UserRoleCS                        UserRole = "CS"
	UserRoleCadreControllingAuthority UserRole = "CADRE_CONTROLLING_AUTHORITY"
)

// AllRoles 全部角色（闭集）
var AllRoles = []UserRole{
	UserRoleAdmin,
	UserRoleEmployee,
	UserRoleCM,
	UserRoleDOP,
	UserRoleCS,
	UserRoleCadreControllingAuthority,
}

// ParseUserRole 解析角色字符串，大小写不敏感；未知角色返回 false
func ParseUserRole(s string) (UserRole, bool) {
	r := UserRole(strings.ToUpper(strings.TrimSpace(s)))
	if r.Valid() {
		return r, true
	}
	return "", false
}

// Valid 是否为已知角色
func (r UserRole) Valid() bool {
	for _, known := range AllRoles {
		if r == known {
			return true
		}
	}
	return false
}

// VerificationStatus 账号验证状态
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "PENDING"
	VerificationVerified VerificationStatus = "VERIFIED"
)

// User 用户
type User struct {
	ID                 string             `json:"id" db:"id" bson:"_id"`
	Username           string             `json:"username" db:"username" bson:"username"`
	Email              string             `json:"email" db:"email" bson:"email"`
	PasswordHash       string             `json:"-" db:"password_hash" bson:"password_hash"` // never expose in JSON
	MobileNumber       string             `json:"mobile_number" db:"mobile_number" bson:"mobile_number"`
	Role               UserRole           `json:"role" db:"role" bson:"role"`
	IsVerified         bool               `json:"is_verified" db:"is_verified" bson:"is_verified"`
	VerificationStatus VerificationStatus `json:"verification_status" db:"verification_status" bson:"verification_status"`
	OTPCode            *string            `json:"-" db:"otp_code" bson:"otp_code"`
	OTPExpiry          *time.Time         `json:"-" db:"otp_expiry" bson:"otp_expiry"`
	OTPPurpose         *string            `json:"-" db:"otp_purpose" bson:"otp_purpose"` // signup | reset
	ResetGrantedUntil  *time.Time         `json:"-" db:"reset_granted_until" bson:"reset_granted_until"`
	CreatedAt          time.Time          `json:"created_at" db:"created_at" bson:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at" db:"updated_at" bson:"updated_at"`
}

// HasPendingOTP 是否存在尚未过期的验证码
func (u *User) HasPendingOTP(now time.Time) bool {
	return u.OTPCode != nil && u.OTPExpiry != nil && now.Before(*u.OTPExpiry)
}
