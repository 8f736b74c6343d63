// Package cache 缓存层常量定义
package cache

import (
	"time"
)

// ============================================================================
// Redis Key 前缀与默认值
// ============================================================================

const (
	// KeyOTPAttempts 验证码尝试计数 key 前缀
	KeyOTPAttempts = "portal:otp:attempts:"

	// DefaultOTPMaxAttempts 窗口内允许的最大尝试次数
	DefaultOTPMaxAttempts = 5

	// DefaultOTPAttemptWindow 计数窗口
	DefaultOTPAttemptWindow = 10 * time.Minute
)

// LimiterConfig 尝试次数限制配置
type LimiterConfig struct {
	MaxAttempts int
	Window      time.Duration
}

// WithDefaults 补全未设置的字段
func (c LimiterConfig) WithDefaults() LimiterConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultOTPMaxAttempts
	}
	if c.Window <= 0 {
		c.Window = DefaultOTPAttemptWindow
	}
	return c
}
