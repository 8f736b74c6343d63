// Package objstore 封装 MinIO 对象存储客户端，用于归档导出文件
package objstore

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"cadre-portal/internal/config"
)

// DefaultBucket 未配置 bucket 时使用
const DefaultBucket = "cadre-portal"

// Archiver 导出文件归档接口
type Archiver interface {
	// Archive 保存一份导出文件并返回对象 key
	Archive(ctx context.Context, ext, contentType string, data []byte) (string, error)
}

// Client MinIO 客户端封装
type Client struct {
	mc     *minio.Client
	bucket string
	now    func() time.Time
}

var _ Archiver = (*Client)(nil)

// NewClient 创建 MinIO 客户端
func NewClient(cfg config.MinIOConfig) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("minio access_key and secret_key are required")
	}

	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	bucket := cfg.Bucket
	if bucket == "" {
		bucket = DefaultBucket
	}

	return &Client{mc: mc, bucket: bucket, now: time.Now}, nil
}

// Bucket 返回目标 bucket
func (c *Client) Bucket() string {
	return c.bucket
}

// EnsureBucket 确保 bucket 存在
func (c *Client) EnsureBucket(ctx context.Context) error {
	exists, err := c.mc.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := c.mc.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket: %w", err)
		}
		log.Printf("[minio] Created bucket: %s", c.bucket)
	}
	return nil
}

// Archive 上传导出文件到 exports/<yyyy>/<mm>/<uuid>.<ext>
func (c *Client) Archive(ctx context.Context, ext, contentType string, data []byte) (string, error) {
	key := ArchiveKey(c.now(), uuid.NewString(), ext)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := c.mc.PutObject(ctx, c.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return key, nil
}

// ArchiveKey 生成归档对象 key（按 UTC 年月分目录）
func ArchiveKey(t time.Time, id, ext string) string {
	t = t.UTC()
	name := id
	if ext = strings.TrimPrefix(ext, "."); ext != "" {
		name += "." + ext
	}
	return path.Join("exports", fmt.Sprintf("%04d", t.Year()), fmt.Sprintf("%02d", int(t.Month())), name)
}
