// Package server API Server 路由装配与公共基础设施
//
// 文件组织：
//   - common.go: Handler 定义、依赖注入、通用响应函数
//   - handler.go: 路由与中间件链
//   - dashboard.go / dashboard_data.go: 各角色仪表盘
//   - metrics.go: Prometheus 指标
package server

import (
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"cadre-portal/internal/apiserver/auth"
	"cadre-portal/internal/apiserver/openapi"
	"cadre-portal/internal/apiserver/otp"
	"cadre-portal/internal/config"
	"cadre-portal/internal/shared/objstore"
	"cadre-portal/internal/shared/storage"
	"cadre-portal/pkg/logging"
)

// Deps Handler 依赖
//
// Store、Codec、Gate、OTP 必填；其余为可选组件。
type Deps struct {
	Store    storage.PersistentStore
	Codec    *auth.TokenCodec
	Gate     *auth.Gate
	OTP      *otp.Service
	Archiver objstore.Archiver  // nil 表示不归档导出文件
	Spec     *openapi.Validator // nil 表示不做请求校验
	Registry *prometheus.Registry

	CORSOrigins  []string
	CookieName   string
	CookieSecure bool
	Logger       *logging.Logger

	// Config 非空时提供 GET /admin/config
	Config         *config.Config
	NotifyChannels []string
}

// Handler API 处理器
//
// Handler 是所有 HTTP API 的入口，负责：
//   - 把请求分发到各领域包（auth/otp/user/employee/cadre/export）
//   - 组装中间件链（CORS → 指标 → 访问日志 → 访问控制 → 请求校验）
//   - 提供仪表盘与健康检查
type Handler struct {
	store    storage.PersistentStore
	codec    *auth.TokenCodec
	gate     *auth.Gate
	otp      *otp.Service
	archiver objstore.Archiver
	spec     *openapi.Validator

	corsOrigins  []string
	cookieName   string
	cookieSecure bool

	cfg      *config.Config
	channels []string

	metrics *Metrics
	log     *logging.Logger
}

// NewHandler 创建 Handler 实例
func NewHandler(d Deps) *Handler {
	if d.Registry == nil {
		d.Registry = prometheus.NewRegistry()
	}
	if d.Logger == nil {
		d.Logger = logging.Default("apiserver")
	}
	return &Handler{
		store:        d.Store,
		codec:        d.Codec,
		gate:         d.Gate,
		otp:          d.OTP,
		archiver:     d.Archiver,
		spec:         d.Spec,
		corsOrigins:  d.CORSOrigins,
		cookieName:   d.CookieName,
		cookieSecure: d.CookieSecure,
		cfg:          d.Config,
		channels:     d.NotifyChannels,
		metrics:      NewMetrics("portal", d.Registry),
		log:          d.Logger,
	}
}

// GetMetrics 返回指标实例
func (h *Handler) GetMetrics() *Metrics {
	return h.metrics
}

// writeJSON 将数据以 JSON 格式写入 HTTP 响应
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError 将错误信息以 JSON 格式写入 HTTP 响应
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// Health 健康检查接口
//
// 路由: GET /health
//
// 用于负载均衡器和监控系统检查服务状态。
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
