// Package infra 基础设施聚合层
//
// 提供统一的基础设施初始化和依赖注入，包括：
//   - Storage：持久化存储（PostgreSQL / SQLite / MongoDB）
//   - Cache：验证码尝试次数限制（Redis，可选）
//   - Archive：导出文件归档（MinIO，可选）
//   - Notifier：验证码投递（邮件、短信）
package infra

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cadre-portal/internal/config"
	"cadre-portal/internal/shared/cache"
	"cadre-portal/internal/shared/cache/redis"
	"cadre-portal/internal/shared/notify"
	"cadre-portal/internal/shared/objstore"
	"cadre-portal/internal/shared/storage"
	"cadre-portal/internal/shared/storage/dbutil"
	"cadre-portal/internal/shared/storage/factory"
	"cadre-portal/pkg/logging"
)

// Infrastructure 基础设施聚合结构
type Infrastructure struct {
	// Storage 持久化存储
	Storage storage.PersistentStore

	// Cache 缓存（Redis）；未配置时为 NoOpCache
	Cache cache.Cache

	// Archive 导出归档；未配置 MinIO 时为 nil
	Archive *objstore.Client

	// Notifier 验证码投递
	Notifier *notify.Dispatcher
}

// New 按配置初始化全部基础设施
//
// 数据库连接失败直接返回错误；Redis/MinIO 连接失败只记录日志并降级。
func New(ctx context.Context, cfg *config.Config, log *logging.Logger) (*Infrastructure, error) {
	driver, err := dbutil.ParseDriverType(cfg.DatabaseDriver)
	if err != nil {
		return nil, err
	}
	dsn := cfg.DatabaseURL
	if driver == dbutil.DriverSQLite {
		dsn = strings.TrimPrefix(dsn, "sqlite:")
	}
	store, err := factory.NewPersistentStore(ctx, factory.Options{
		Driver:        driver,
		DSN:           dsn,
		MongoDatabase: cfg.DatabaseDBName,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", driver, err)
	}

	i := &Infrastructure{
		Storage:  store,
		Cache:    cache.NewNoOpCache(),
		Notifier: NewNotifier(cfg, log),
	}

	if cfg.RedisEnabled() {
		rs, err := redis.NewStoreFromURL(cfg.RedisURL, cache.LimiterConfig{
			MaxAttempts: cfg.OTP.MaxAttempts,
			Window:      cfg.OTP.AttemptWindow,
		})
		if err != nil {
			log.WithError(err).Warn("Redis unavailable, OTP attempt limiting disabled")
		} else {
			i.Cache = rs
		}
	}

	if cfg.MinIOEnabled() {
		client, err := objstore.NewClient(cfg.MinIO)
		if err == nil {
			err = client.EnsureBucket(ctx)
		}
		if err != nil {
			log.WithError(err).Warn("MinIO unavailable, export archiving disabled")
		} else {
			i.Archive = client
		}
	}
	return i, nil
}

// NewNotifier 按配置组装投递通道
//
// 没有任何通道时，非生产环境退回到日志通道以便本地调试；生产环境保持为空，
// 投递会失败并返回 ErrDelivery。
func NewNotifier(cfg *config.Config, log *logging.Logger) *notify.Dispatcher {
	var channels []notify.Channel
	if smtp := cfg.Notify.SMTP; smtp.Host != "" {
		channels = append(channels, notify.NewEmailChannel(notify.SMTPConfig{
			Host:     smtp.Host,
			Port:     smtp.Port,
			From:     smtp.From,
			Username: smtp.Username,
			Password: smtp.Password,
			Timeout:  smtp.Timeout,
		}))
	}
	if sms := cfg.Notify.SMS; sms.GatewayURL != "" {
		channels = append(channels, notify.NewSMSChannel(notify.SMSConfig{
			GatewayURL: sms.GatewayURL,
			Sender:     sms.Sender,
			APIKey:     sms.APIKey,
			Timeout:    sms.Timeout,
		}))
	}
	if len(channels) == 0 && cfg.Env != config.EnvProduction {
		channels = append(channels, notify.NewLogChannel(log))
	}
	return notify.NewDispatcher(log, channels...)
}

// Archiver 返回可选的归档接口（未配置时为 nil 接口值）
func (i *Infrastructure) Archiver() objstore.Archiver {
	if i.Archive == nil {
		return nil
	}
	return i.Archive
}

// Close 关闭所有基础设施连接
func (i *Infrastructure) Close() error {
	var errs []error
	if i.Storage != nil {
		if err := i.Storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if i.Cache != nil {
		if err := i.Cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("cache: %w", err))
		}
	}
	return errors.Join(errs...)
}

// NewNoOpInfrastructure 创建空操作的基础设施（用于测试）
func NewNoOpInfrastructure(store storage.PersistentStore, log *logging.Logger) *Infrastructure {
	return &Infrastructure{
		Storage:  store,
		Cache:    cache.NewNoOpCache(),
		Notifier: notify.NewDispatcher(log, notify.NewLogChannel(log)),
	}
}
