// Package sysconfig 运行配置查看 API
//
// 只读输出当前生效的配置摘要（密码已隐藏），供管理员排查部署问题。
package sysconfig

import (
	"encoding/json"
	"net/http"

	"cadre-portal/internal/apiserver/auth"
	"cadre-portal/internal/config"
)

// Handler 配置查看处理器
type Handler struct {
	cfg      *config.Config
	routes   []auth.RouteRule
	channels []string
}

// NewHandler 创建配置查看处理器
// routes 为网关实际使用的路由表，channels 为已启用的投递通道
func NewHandler(cfg *config.Config, routes []auth.RouteRule, channels []string) *Handler {
	return &Handler{cfg: cfg, routes: routes, channels: channels}
}

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /admin/config", h.GetConfig)
}

// Summary GET /admin/config 响应
type Summary struct {
	Env            string           `json:"env"`
	ConfigFile     string           `json:"config_file,omitempty"`
	DatabaseDriver string           `json:"database_driver"`
	DatabaseURL    string           `json:"database_url"`
	RedisURL       string           `json:"redis_url,omitempty"`
	ArchiveBucket  string           `json:"archive_bucket,omitempty"`
	AccessTokenTTL string           `json:"access_token_ttl"`
	OTP            config.OTPConfig `json:"otp"`
	NotifyChannels []string         `json:"notify_channels"`
	SigninPath     string           `json:"signin_path"`
	Routes         []routeView      `json:"routes"`
}

type routeView struct {
	Prefix string   `json:"prefix"`
	Roles  []string `json:"roles"`
}

// Build 生成配置摘要
func (h *Handler) Build() Summary {
	s := Summary{
		Env:            string(h.cfg.Env),
		ConfigFile:     h.cfg.ConfigFilePath,
		DatabaseDriver: h.cfg.DatabaseDriver,
		DatabaseURL:    h.cfg.SafeDatabaseURL(),
		RedisURL:       h.cfg.SafeRedisURL(),
		AccessTokenTTL: h.cfg.Auth.AccessTokenTTL,
		OTP:            h.cfg.OTP,
		NotifyChannels: h.channels,
		SigninPath:     h.cfg.Access.SigninPath,
		Routes:         make([]routeView, 0, len(h.routes)),
	}
	if h.cfg.MinIOEnabled() {
		s.ArchiveBucket = h.cfg.MinIO.Bucket
	}
	if s.NotifyChannels == nil {
		s.NotifyChannels = []string{}
	}
	for _, r := range h.routes {
		roles := make([]string, 0, len(r.Roles))
		for _, role := range r.Roles {
			roles = append(roles, string(role))
		}
		s.Routes = append(s.Routes, routeView{Prefix: r.Prefix, Roles: roles})
	}
	return s
}

// GetConfig GET /admin/config
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.Build())
}
