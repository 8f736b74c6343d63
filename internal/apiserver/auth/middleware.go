package auth

import (
	"fmt"
	"log"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"cadre-portal/internal/config"
	"cadre-portal/internal/shared/model"
)

// DefaultSigninPath 拒绝访问时的重定向目标
const DefaultSigninPath = "/auth/signin"

// DefaultCookieName 会话 Cookie 名称
const DefaultCookieName = "portal_session"

// RouteRule 受保护的路径前缀及允许的角色
type RouteRule struct {
	Prefix string
	Roles  []model.UserRole
}

// DefaultRoutes 内置路由表（按声明顺序检查）
var DefaultRoutes = []RouteRule{
	{"/dashboard", []model.UserRole{model.UserRoleAdmin}},
	{"/admin", []model.UserRole{model.UserRoleAdmin}},
	{"/employee", []model.UserRole{model.UserRoleEmployee}},
	{"/cm", []model.UserRole{model.UserRoleCM}},
	{"/dop", []model.UserRole{model.UserRoleDOP}},
	{"/cs", []model.UserRole{model.UserRoleCS}},
	{"/cadre-authority", []model.UserRole{model.UserRoleCadreControllingAuthority}},
	{"/api/v1/users", []model.UserRole{model.UserRoleAdmin}},
	{"/api/v1/employees", []model.UserRole{model.UserRoleAdmin, model.UserRoleCadreControllingAuthority}},
	{"/api/v1/cadres", []model.UserRole{model.UserRoleAdmin, model.UserRoleCadreControllingAuthority}},
	{"/api/v1/departments", []model.UserRole{model.UserRoleAdmin, model.UserRoleCadreControllingAuthority,
		model.UserRoleCM, model.UserRoleDOP, model.UserRoleCS}},
	{"/api/v1/export", []model.UserRole{model.UserRoleAdmin, model.UserRoleCadreControllingAuthority,
		model.UserRoleCM, model.UserRoleDOP, model.UserRoleCS}},
	{"/api/v1/me", model.AllRoles},
	{"/api/v1/auth/change-password", model.AllRoles},
}

// RoutesFromConfig 将 YAML 路由表转换为 RouteRule，未知角色或非法前缀返回错误
func RoutesFromConfig(rules []config.RouteRule) ([]RouteRule, error) {
	out := make([]RouteRule, 0, len(rules))
	for _, r := range rules {
		if !strings.HasPrefix(r.Prefix, "/") {
			return nil, fmt.Errorf("route prefix %q must start with /", r.Prefix)
		}
		rule := RouteRule{Prefix: r.Prefix}
		for _, s := range r.Roles {
			role, ok := model.ParseUserRole(s)
			if !ok {
				return nil, fmt.Errorf("route %s: unknown role %q", r.Prefix, s)
			}
			rule.Roles = append(rule.Roles, role)
		}
		out = append(out, rule)
	}
	return out, nil
}

// GateConfig 网关配置
type GateConfig struct {
	Routes     []RouteRule // 为空时使用 DefaultRoutes
	SigninPath string
	CookieName string
}

// Gate 访问控制网关
//
// 对每个请求：解码令牌得到角色（失败视为无角色），
// 按声明顺序检查所有前缀匹配的条目，任一条目不允许该角色即重定向到登录页。
// 网关不读写任何持久化状态。
type Gate struct {
	codec      *TokenCodec
	routes     []RouteRule
	signinPath string
	cookieName string
}

// NewGate 创建访问控制网关
func NewGate(codec *TokenCodec, cfg GateConfig) *Gate {
	g := &Gate{
		codec:      codec,
		routes:     cfg.Routes,
		signinPath: cfg.SigninPath,
		cookieName: cfg.CookieName,
	}
	if len(g.routes) == 0 {
		g.routes = DefaultRoutes
	}
	if g.signinPath == "" {
		g.signinPath = DefaultSigninPath
	}
	if g.cookieName == "" {
		g.cookieName = DefaultCookieName
	}
	return g
}

// Routes 返回生效的路由表
func (g *Gate) Routes() []RouteRule {
	return g.routes
}

// Allowed 判断角色能否访问路径（空角色表示未认证）
func (g *Gate) Allowed(path string, role model.UserRole) bool {
	for _, rule := range g.routes {
		if !strings.HasPrefix(path, rule.Prefix) {
			continue
		}
		if role == "" || !slices.Contains(rule.Roles, role) {
			return false
		}
	}
	return true
}

// Middleware 返回网关中间件
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var role model.UserRole
		ctx := r.Context()

		if token := g.tokenFromRequest(r); token != "" {
			id, err := g.codec.Decode(token)
			if err != nil {
				log.Printf("[auth] token rejected on %s: %v", r.URL.Path, err)
			} else {
				role = id.Role
				ctx = WithIdentity(ctx, id)
			}
		}

		if !g.Allowed(r.URL.Path, role) {
			http.Redirect(w, r, g.signinURL(r.URL.Path), http.StatusTemporaryRedirect)
			return
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// tokenFromRequest 优先读取 Bearer Token，其次读取会话 Cookie
func (g *Gate) tokenFromRequest(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	if c, err := r.Cookie(g.cookieName); err == nil {
		return c.Value
	}
	return ""
}

func (g *Gate) signinURL(path string) string {
	return g.signinPath + "?callbackUrl=" + url.QueryEscape(path)
}
