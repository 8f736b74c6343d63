// Package cache 缓存层抽象接口
//
// 提供临时状态和计数器的存取能力，当前由 Redis 实现。
// 缓存不可用时调用方应放行（fail open），持久化状态始终以数据库为准。
package cache

import (
	"context"
)

// ============================================================================
// 缓存接口定义
// ============================================================================

// OTPAttemptLimiter 验证码尝试次数限制接口
//
// key 通常是用户 ID 或邮箱；窗口内超过上限后 Allow 返回 false。
type OTPAttemptLimiter interface {
	// Allow 记录一次尝试并返回是否仍在上限内
	Allow(ctx context.Context, key string) (bool, error)
	// Reset 清除计数（验证成功后调用）
	Reset(ctx context.Context, key string) error
}

// ============================================================================
// 组合接口
// ============================================================================

// Cache 缓存组合接口
type Cache interface {
	OTPAttemptLimiter
	Close() error
}
