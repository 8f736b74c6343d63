package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load 加载配置
// 1. 加载 .env（敏感信息 + APP_ENV）
// 2. 根据 APP_ENV 加载 configs/{env}.yaml
// 3. 环境变量覆盖并构建最终配置
func Load() (*Config, error) {
	env := parseEnv(getEnv("APP_ENV", "dev"))
	loadEnvFiles(env)
	// .env 可能设置了 APP_ENV
	env = parseEnv(getEnv("APP_ENV", string(env)))

	yamlCfg, err := loadYAMLConfig(env)
	if err != nil {
		return nil, err
	}
	return build(env, yamlCfg)
}

// defaultYAMLConfig 代码内置默认值
func defaultYAMLConfig() YAMLConfig {
	return YAMLConfig{
		APIServer: APIServerConfig{Port: "8080"},
		Database:  DatabaseConfig{Driver: "postgres", Host: "localhost", Port: 5432, User: "portal", Name: "cadre_portal", SSLMode: "disable"},
		MinIO:     MinIOConfig{Bucket: "cadre-portal"},
		Auth:      AuthConfig{AccessTokenTTL: "12h", CookieName: "portal_session"},
		OTP:       OTPConfig{TTL: 10 * time.Minute, MaxAttempts: 5, AttemptWindow: 10 * time.Minute},
		Notify: NotifyConfig{
			SMTP: SMTPConfig{Port: 587},
			SMS:  SMSConfig{Timeout: 10 * time.Second},
		},
		Access: AccessConfig{SigninPath: "/auth/signin"},
	}
}

// loadYAMLConfig 加载 YAML 配置文件
// 加载顺序：默认值 → {env}.yaml；文件不存在时只使用默认值
func loadYAMLConfig(env Environment) (*yamlConfigInternal, error) {
	cfg := &yamlConfigInternal{YAMLConfig: defaultYAMLConfig()}

	path := findConfigFile(env)
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg.YAMLConfig); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.loadedFrom = path
	return cfg, nil
}

// build 合并 YAML 与环境变量，生成最终配置
func build(env Environment, y *yamlConfigInternal) (*Config, error) {
	db := y.Database
	db.Password = firstEnv("DB_PASSWORD", "MONGO_ROOT_PASSWORD")

	databaseURL := getEnv("DATABASE_URL", "")
	driver := detectDatabaseDriver(getEnv("DB_DRIVER", db.Driver), databaseURL)
	db.Driver = driver
	if databaseURL == "" {
		databaseURL = buildDatabaseURL(db, db.Password)
	}

	redisCfg := y.Redis
	redisCfg.Password = os.Getenv("REDIS_PASSWORD")
	redisURL := getEnv("REDIS_URL", buildRedisURL(redisCfg))

	auth := y.Auth
	auth.JWTSecret = os.Getenv("JWT_SECRET")
	auth.AdminEmail = os.Getenv("ADMIN_EMAIL")
	auth.AdminPassword = os.Getenv("ADMIN_PASSWORD")

	minio := y.MinIO
	minio.AccessKey = os.Getenv("MINIO_ROOT_USER")
	minio.SecretKey = os.Getenv("MINIO_ROOT_PASSWORD")

	notify := y.Notify
	notify.SMTP.Password = os.Getenv("SMTP_PASSWORD")
	notify.SMS.APIKey = os.Getenv("SMS_API_KEY")

	port := getEnv("API_PORT", y.APIServer.Port)
	if _, err := strconv.Atoi(port); err != nil {
		return nil, fmt.Errorf("invalid api port %q", port)
	}

	cfg := &Config{
		Env:            env,
		DatabaseDriver: driver,
		DatabaseURL:    databaseURL,
		DatabaseDBName: db.Name,
		RedisURL:       redisURL,
		APIPort:        port,
		CORSOrigins:    y.APIServer.CORSOrigins,
		Auth:           auth,
		OTP:            y.OTP,
		Notify:         notify,
		MinIO:          minio,
		Access:         y.Access,
		ConfigFilePath: y.loadedFrom,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 校验关键配置
func (c *Config) Validate() error {
	var errs []error
	if c.Env == EnvProduction && c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required in production"))
	}
	if _, err := c.AccessTokenTTL(); err != nil {
		errs = append(errs, fmt.Errorf("auth.access_token_ttl: %w", err))
	}
	if c.OTP.TTL <= 0 {
		errs = append(errs, errors.New("otp.ttl must be positive"))
	}
	for i, r := range c.Access.Routes {
		if !strings.HasPrefix(r.Prefix, "/") {
			errs = append(errs, fmt.Errorf("access.routes[%d]: prefix %q must start with /", i, r.Prefix))
		}
	}
	return errors.Join(errs...)
}

// AccessTokenTTL 解析访问令牌有效期
func (c *Config) AccessTokenTTL() (time.Duration, error) {
	if c.Auth.AccessTokenTTL == "" {
		return 12 * time.Hour, nil
	}
	return time.ParseDuration(c.Auth.AccessTokenTTL)
}

// RedisEnabled 是否配置了 Redis
func (c *Config) RedisEnabled() bool {
	return c.RedisURL != ""
}

// MinIOEnabled 是否配置了对象存储
func (c *Config) MinIOEnabled() bool {
	return c.MinIO.Endpoint != ""
}
