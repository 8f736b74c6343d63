// Package server 路由配置与中间件链
//
// 本文件定义 HTTP API 路由，将请求分发到各领域独立包。
package server

import (
	"context"
	"net"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"cadre-portal/internal/apiserver/auth"
	"cadre-portal/internal/apiserver/cadre"
	"cadre-portal/internal/apiserver/employee"
	"cadre-portal/internal/apiserver/export"
	"cadre-portal/internal/apiserver/otp"
	"cadre-portal/internal/apiserver/sysconfig"
	"cadre-portal/internal/apiserver/user"
	"cadre-portal/pkg/logging"
)

// Router 返回配置好的 HTTP 路由
//
// 路由规则：
//
// 公共:
//   - GET /health            - 服务健康检查
//   - GET /metrics           - Prometheus 指标
//   - GET /api/openapi.yaml  - OpenAPI 规范
//
// 认证 (auth / otp):
//   - POST /api/v1/auth/register | login | logout | change-password
//   - POST /api/v1/auth/forgot-password | verify-reset-otp | reset-password
//   - POST /api/v1/auth/verify-otp | resend-otp
//   - GET  /api/v1/me
//
// 记录管理:
//   - /api/v1/users[/{id}]      - 用户（ADMIN）
//   - /api/v1/employees[/{id}]  - 员工
//   - /api/v1/cadres[/{id}]     - Cadre
//   - GET /api/v1/departments   - 部门列表
//   - GET /api/v1/export/employees.{csv,pdf}
//
// 仪表盘:
//   - GET /dashboard, /{cm,dop,cs,cadre-authority,employee}/dashboard
//   - GET /admin/config      - 运行配置摘要
//
// 中间件顺序（外→内）：CORS → 指标 → 访问日志 → 访问控制 → 请求校验 → ServeMux
func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()

	// 健康检查
	mux.HandleFunc("GET /health", h.Health)

	// Prometheus 指标端点
	mux.Handle("GET /metrics", h.metrics.Handler())

	if h.spec != nil {
		mux.HandleFunc("GET /api/openapi.yaml", h.spec.ServeSpec)
	}

	// 认证与验证码
	otpHandler := otp.NewHandler(h.otp)
	otpHandler.RegisterRoutes(mux)

	authHandler := auth.NewHandler(h.store, h.codec, h.otp, auth.HandlerConfig{
		CookieName:   h.cookieName,
		CookieSecure: h.cookieSecure,
	})
	authHandler.RegisterRoutes(mux)

	// 记录管理
	user.NewHandler(h.store).RegisterRoutes(mux)
	employee.NewHandler(h.store).RegisterRoutes(mux)
	cadre.NewHandler(h.store).RegisterRoutes(mux)
	export.NewHandler(h.store, h.archiver).RegisterRoutes(mux)

	h.registerDashboards(mux)

	// 运行配置（/admin 前缀仅 ADMIN）
	if h.cfg != nil {
		sysconfig.NewHandler(h.cfg, h.gate.Routes(), h.channels).RegisterRoutes(mux)
	}

	var handler http.Handler = mux
	if h.spec != nil {
		handler = h.spec.Middleware(handler)
	}
	handler = h.gate.Middleware(handler)
	handler = h.accessLog(handler)
	handler = h.metrics.MetricsMiddleware(handler)
	return corsMiddleware(h.corsOrigins, handler)
}

// accessLog 分配请求 ID，并在每个请求结束后输出一条结构化访问日志
func (h *Handler) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)
		r = r.WithContext(context.WithValue(r.Context(), logging.RequestIDKey, requestID))

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		h.log.WithContext(r.Context()).HTTPRequestLog(r.Method, r.URL.Path, wrapped.statusCode, time.Since(start), clientIP(r))
	})
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		ip, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(ip)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// corsMiddleware 添加 CORS 头支持跨域请求
//
// origins 为空时不输出任何 CORS 头；包含 "*" 时允许任意来源（不携带凭据）。
func corsMiddleware(origins []string, next http.Handler) http.Handler {
	if len(origins) == 0 {
		return next
	}
	wildcard := slices.Contains(origins, "*")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		switch {
		case wildcard:
			w.Header().Set("Access-Control-Allow-Origin", "*")
		case origin != "" && slices.Contains(origins, origin):
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
