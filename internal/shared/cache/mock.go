// Package cache 缓存层 mock 实现
package cache

import (
	"context"
)

// ============================================================================
// NoOpCache - 空操作的 Cache 实现（未配置 Redis 或测试时使用）
// ============================================================================

// NoOpCache 是一个不做任何限制的 Cache 实现
type NoOpCache struct{}

// NewNoOpCache 创建 NoOpCache 实例
func NewNoOpCache() *NoOpCache {
	return &NoOpCache{}
}

// Close 关闭缓存
func (c *NoOpCache) Close() error {
	return nil
}

// Allow 始终放行
func (c *NoOpCache) Allow(ctx context.Context, key string) (bool, error) {
	return true, nil
}

// Reset 无操作
func (c *NoOpCache) Reset(ctx context.Context, key string) error {
	return nil
}

var _ Cache = (*NoOpCache)(nil)
