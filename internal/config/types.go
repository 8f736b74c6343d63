// Package config 统一配置管理
//
// 配置加载优先级（高→低）：
//  1. 环境变量（通过 .env 文件或 shell/systemd 注入）
//  2. YAML 配置文件（{env}.yaml，如 dev.yaml、test.yaml、prod.yaml）
//  3. 代码硬编码默认值
//
// 凭据单一数据源：
//
//	密码/密钥只存在 .env 文件或进程环境中（YAML 中不存储任何密码）。
//
// 配置路径确定策略：
//  1. --config 命令行参数（显式路径）
//  2. CONFIG_DIR 环境变量
//  3. 按 APP_ENV 选择默认路径：
//     - prod → /etc/cadre-portal/
//     - dev/test → ./configs/
package config

import "time"

// Environment 环境类型
type Environment string

const (
	EnvProduction  Environment = "prod"
	EnvTest        Environment = "test"
	EnvDevelopment Environment = "dev"
)

// YAMLConfig YAML 配置文件结构
type YAMLConfig struct {
	APIServer APIServerConfig `yaml:"api_server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	MinIO     MinIOConfig     `yaml:"minio"`
	Auth      AuthConfig      `yaml:"auth"`
	OTP       OTPConfig       `yaml:"otp"`
	Notify    NotifyConfig    `yaml:"notify"`
	Access    AccessConfig    `yaml:"access"`
}

// APIServerConfig API Server 配置
type APIServerConfig struct {
	Port        string   `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"` // 允许的跨域来源，空表示不开启 CORS
}

type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // "postgres", "sqlite", or "mongodb"（默认 postgres）
	Path     string `yaml:"path"`   // SQLite 文件路径
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"-"` // 只从环境变量读取（DB_PASSWORD）
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
	URI      string `yaml:"uri"` // MongoDB 连接 URI（优先于 host/port）
}

// RedisConfig Redis 配置，Host 和 URL 均为空时不启用
type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	DB       int    `yaml:"db"`
	Password string `yaml:"-"` // 只从 REDIS_PASSWORD 环境变量读取
	URL      string `yaml:"url"`
}

// MinIOConfig MinIO 对象存储配置，Endpoint 为空时不归档导出文件
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"` // 例如 localhost:9000
	AccessKey string `yaml:"-"`        // 只从 MINIO_ROOT_USER 环境变量读取
	SecretKey string `yaml:"-"`        // 只从 MINIO_ROOT_PASSWORD 环境变量读取
	UseSSL    bool   `yaml:"use_ssl"`
	Bucket    string `yaml:"bucket"`
}

// AuthConfig 认证配置
// 注意：JWTSecret/AdminEmail/AdminPassword 只从环境变量读取，不存储在 YAML 中
type AuthConfig struct {
	JWTSecret      string `yaml:"-"`                // 只从 JWT_SECRET 环境变量读取
	AccessTokenTTL string `yaml:"access_token_ttl"` // 例如 "12h"
	CookieName     string `yaml:"cookie_name"`
	CookieSecure   bool   `yaml:"cookie_secure"`
	AdminEmail     string `yaml:"-"` // 只从 ADMIN_EMAIL 环境变量读取
	AdminPassword  string `yaml:"-"` // 只从 ADMIN_PASSWORD 环境变量读取
}

// OTPConfig 验证码配置
type OTPConfig struct {
	TTL           time.Duration `yaml:"ttl"`            // 验证码有效期，默认 10m
	MaxAttempts   int           `yaml:"max_attempts"`   // 窗口内最大尝试次数（需要 Redis）
	AttemptWindow time.Duration `yaml:"attempt_window"` // 计数窗口
}

// NotifyConfig 验证码投递通道配置
type NotifyConfig struct {
	SMTP SMTPConfig `yaml:"smtp"`
	SMS  SMSConfig  `yaml:"sms"`
}

// SMTPConfig 邮件通道，Host 为空时不启用
type SMTPConfig struct {
	Host     string        `yaml:"host"`
	Port     int           `yaml:"port"`
	From     string        `yaml:"from"`
	Username string        `yaml:"username"`
	Timeout  time.Duration `yaml:"timeout"`
	Password string        `yaml:"-"` // 只从 SMTP_PASSWORD 环境变量读取
}

// SMSConfig 短信网关通道，GatewayURL 为空时不启用
type SMSConfig struct {
	GatewayURL string        `yaml:"gateway_url"`
	Sender     string        `yaml:"sender"`
	Timeout    time.Duration `yaml:"timeout"`
	APIKey     string        `yaml:"-"` // 只从 SMS_API_KEY 环境变量读取
}

// AccessConfig 访问控制配置
type AccessConfig struct {
	SigninPath string      `yaml:"signin_path"` // 拒绝时的重定向目标，默认 /auth/signin
	Routes     []RouteRule `yaml:"routes"`      // 非空时整体替换内置路由表（顺序保留）
}

// RouteRule 路由前缀与允许角色
type RouteRule struct {
	Prefix string   `yaml:"prefix"`
	Roles  []string `yaml:"roles"`
}

// Config 应用配置（最终使用的配置）
type Config struct {
	Env            Environment
	DatabaseDriver string // "postgres", "sqlite", or "mongodb"
	DatabaseURL    string
	DatabaseDBName string // MongoDB 数据库名称
	RedisURL       string // 空表示未启用 Redis
	APIPort        string
	CORSOrigins    []string
	Auth           AuthConfig
	OTP            OTPConfig
	Notify         NotifyConfig
	MinIO          MinIOConfig
	Access         AccessConfig
	ConfigFilePath string // 实际加载的配置文件路径
}

// yamlConfigInternal 内部包装，记录配置文件来源（不参与 YAML 序列化）
type yamlConfigInternal struct {
	YAMLConfig `yaml:",inline"`
	loadedFrom string
}
