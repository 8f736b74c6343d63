// Package main API Server 入口
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cadre-portal/api"
	"cadre-portal/internal/apiserver/auth"
	"cadre-portal/internal/apiserver/openapi"
	"cadre-portal/internal/apiserver/otp"
	"cadre-portal/internal/apiserver/server"
	"cadre-portal/internal/config"
	"cadre-portal/internal/shared/infra"
	"cadre-portal/pkg/logging"
)

func main() {
	// 加载配置（.env → configs/{APP_ENV}.yaml → 环境变量）
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logging.New(logging.Config{
		Level:     os.Getenv("LOG_LEVEL"),
		Format:    os.Getenv("LOG_FORMAT"),
		Component: "api-server",
	})

	log.Printf("Starting API Server... [env=%s]", cfg.Env)
	log.Printf("Config: %s", cfg.String())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 初始化存储、缓存、归档与投递通道
	inf, err := infra.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to initialize infrastructure: %v", err)
	}
	defer inf.Close()
	log.Printf("Connected to %s; notify channels: %v", cfg.DatabaseDriver, inf.Notifier.Channels())

	if err := auth.EnsureAdminUser(ctx, inf.Storage, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword); err != nil {
		log.Fatalf("Failed to ensure admin user: %v", err)
	}

	h, err := newHandler(cfg, inf, logger)
	if err != nil {
		log.Fatalf("Failed to build handler: %v", err)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      h.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // PDF 导出可能较慢
		IdleTimeout:  60 * time.Second,
	}

	// 优雅关闭
	go func() {
		<-ctx.Done()
		log.Println("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	log.Printf("API Server listening on :%s", cfg.APIPort)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server error: %v", err)
	}

	fmt.Println("Server stopped")
}

// newHandler 组装令牌、访问控制网关、验证码服务与请求校验
func newHandler(cfg *config.Config, inf *infra.Infrastructure, logger *logging.Logger) (*server.Handler, error) {
	secret := cfg.Auth.JWTSecret
	if secret == "" {
		// 仅非生产环境会走到这里（Validate 已拦截生产环境）
		secret = "dev-insecure-secret"
		log.Println("WARNING: JWT_SECRET not set, using an insecure development secret")
	}
	ttl, err := cfg.AccessTokenTTL()
	if err != nil {
		return nil, err
	}
	codec := auth.NewTokenCodec(secret, ttl)

	routes := auth.DefaultRoutes
	if len(cfg.Access.Routes) > 0 {
		routes, err = auth.RoutesFromConfig(cfg.Access.Routes)
		if err != nil {
			return nil, fmt.Errorf("access.routes: %w", err)
		}
	}
	gate := auth.NewGate(codec, auth.GateConfig{
		Routes:     routes,
		SigninPath: cfg.Access.SigninPath,
		CookieName: cfg.Auth.CookieName,
	})

	otpSvc := otp.NewService(inf.Storage, inf.Notifier, inf.Cache, otp.Config{TTL: cfg.OTP.TTL}, logging.Default("otp"))

	spec, err := openapi.Load(api.OpenAPIFS, api.SpecFile)
	if err != nil {
		return nil, err
	}

	return server.NewHandler(server.Deps{
		Store:        inf.Storage,
		Codec:        codec,
		Gate:         gate,
		OTP:          otpSvc,
		Archiver:     inf.Archiver(),
		Spec:         spec,
		CORSOrigins:  cfg.CORSOrigins,
		CookieName:   cfg.Auth.CookieName,
		CookieSecure: cfg.Auth.CookieSecure,
		Logger:       logger,

		Config:         cfg,
		NotifyChannels: inf.Notifier.Channels(),
	}), nil
}
