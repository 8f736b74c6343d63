// Package auth 用户认证：JWT 令牌编解码、密码哈希、访问控制网关
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"cadre-portal/internal/shared/model"
	"cadre-portal/pkg/logging"
)

// contextKey context 键类型
type contextKey string

const ctxKeyIdentity contextKey = "identity"

// tokenTypeAccess 访问令牌类型
const tokenTypeAccess = "access"

// bcryptCost 密码哈希强度
const bcryptCost = 12

// Identity 从令牌解码出的调用方信息（请求作用域）
type Identity struct {
	ID    string
	Email string
	Role  model.UserRole
}

// IsAdmin 是否管理员
func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == model.UserRoleAdmin
}

// ============================================================================
// 密码哈希
// ============================================================================

// HashPassword 使用 bcrypt 哈希密码
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	return string(bytes), err
}

// CheckPassword 验证密码
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ============================================================================
// JWT Token
// ============================================================================

// Claims JWT 声明
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	Type  string `json:"type,omitempty"`
}

// TokenCodec HS256 访问令牌编解码器
type TokenCodec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenCodec 创建编解码器
func NewTokenCodec(secret string, ttl time.Duration) *TokenCodec {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &TokenCodec{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// TTL 令牌有效期
func (c *TokenCodec) TTL() time.Duration {
	return c.ttl
}

// Issue 为用户签发访问令牌，返回令牌与过期时间
func (c *TokenCodec) Issue(user *model.User) (string, time.Time, error) {
	now := c.now()
	expiresAt := now.Add(c.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Email: user.Email,
		Role:  string(user.Role),
		Type:  tokenTypeAccess,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Decode 解析并验证令牌
// 任何失败（签名、过期、类型、未知角色）都返回错误，调用方按“无角色”处理
func (c *TokenCodec) Decode(tokenString string) (*Identity, error) {
	if tokenString == "" {
		return nil, errors.New("empty token")
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.secret, nil
	}, jwt.WithTimeFunc(c.now))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.Type != tokenTypeAccess {
		return nil, fmt.Errorf("invalid token type %q", claims.Type)
	}
	role, ok := model.ParseUserRole(claims.Role)
	if !ok {
		return nil, fmt.Errorf("unknown role %q", claims.Role)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("token has no subject")
	}
	return &Identity{ID: claims.Subject, Email: claims.Email, Role: role}, nil
}

// ============================================================================
// Context 辅助函数
// ============================================================================

// WithIdentity 将调用方身份注入 context（同时写入日志上下文键）
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	ctx = context.WithValue(ctx, ctxKeyIdentity, id)
	ctx = context.WithValue(ctx, logging.UserIDKey, id.ID)
	return context.WithValue(ctx, logging.RoleKey, string(id.Role))
}

// IdentityFromContext 从 context 获取调用方身份，未认证返回 nil
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(ctxKeyIdentity).(*Identity)
	return id
}
