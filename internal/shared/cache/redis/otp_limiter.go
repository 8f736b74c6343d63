// Package redis 验证码尝试计数
package redis

import (
	"context"

	"cadre-portal/internal/shared/cache"
)

// Allow INCR 计数，首次计数时设置窗口过期
func (s *Store) Allow(ctx context.Context, key string) (bool, error) {
	k := cache.KeyOTPAttempts + key

	n, err := s.client.Incr(ctx, k).Result()
	if err != nil {
		return false, err
	}
	if n == 1 {
		if err := s.client.Expire(ctx, k, s.limiter.Window).Err(); err != nil {
			return false, err
		}
	}
	return n <= int64(s.limiter.MaxAttempts), nil
}

// Reset 删除计数
func (s *Store) Reset(ctx context.Context, key string) error {
	return s.client.Del(ctx, cache.KeyOTPAttempts+key).Err()
}
