package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	accountrepo "blog-platform/auth-service/internal/account/repository"
	"blog-platform/auth-service/internal/audit"
	auditrepo "blog-platform/auth-service/internal/audit/repository"
	authhandler "blog-platform/auth-service/internal/auth/handler"
	"blog-platform/auth-service/internal/auth/service"
	"blog-platform/auth-service/internal/config"
	"blog-platform/auth-service/internal/db"
	"blog-platform/auth-service/internal/health"
	"blog-platform/auth-service/internal/jobs/cleanup"
	"blog-platform/auth-service/internal/logger"
	"blog-platform/auth-service/internal/ratelimit"
	"blog-platform/auth-service/internal/security"
	"blog-platform/auth-service/internal/server"
	sessionrepo "blog-platform/auth-service/internal/session/repository"
	"blog-platform/auth-service/internal/telemetry"
	otelx "blog-platform/auth-service/internal/telemetry/otel"
)

const serviceName = "auth-service"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	zlog, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	providers, err := otelx.NewProviders(ctx, cfg.OTLPEndpoint, serviceName, cfg.OTLPInsecure)
	if err != nil {
		zlog.Fatal("telemetry", zap.Error(err))
	}
	providers.SetGlobal()

	metrics, err := telemetry.NewMetrics(providers.MeterProvider.Meter(serviceName))
	if err != nil {
		zlog.Fatal("metrics", zap.Error(err))
	}
	tracer := providers.TracerProvider.Tracer(serviceName)

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		zlog.Fatal("postgres", zap.Error(err))
	}
	defer pool.Close()

	var redisClient *goredis.Client
	var limiter service.LoginLimiter
	if cfg.RedisAddr != "" {
		redisClient = goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer func() { _ = redisClient.Close() }()
		limiter = ratelimit.NewLimiter(ratelimit.NewRedisStore(redisClient), cfg.LoginRatePerMinute)
	} else {
		zlog.Warn("REDIS_ADDR not set, login throttling disabled")
	}

	signer, err := security.ParsePrivateKey(cfg.JWTPrivateKey)
	if err != nil {
		zlog.Fatal("jwt private key", zap.Error(err))
	}
	publicKey, err := security.ParsePublicKey(cfg.JWTPublicKey)
	if err != nil {
		zlog.Fatal("jwt public key", zap.Error(err))
	}
	tokens := security.NewTokenProvider(signer, publicKey,
		cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL(), cfg.SessionTTL())

	accounts := accountrepo.NewPostgresRepository(pool)
	sessions := sessionrepo.NewPostgresRepository(pool)
	auditLogs := auditrepo.NewPostgresRepository(pool)

	auditor := audit.Fanout{
		audit.NewLogger(auditLogs, server.ClientIP, zlog),
		otelx.NewAuditEmitter(providers.LoggerProvider),
	}

	svc := service.NewAuthService(accounts, sessions,
		security.NewHasher(cfg.BcryptCost), tokens, limiter, auditor, cfg.SessionTTL())

	router := server.NewRouter(server.Deps{
		Auth:   authhandler.NewAuthHandler(svc, zlog, metrics),
		Health: health.NewHandler(pool),
		Tokens: tokens,
		Logger: zlog,
		Tracer: tracer,
	})

	job := cleanup.New(sessions, cfg.CleanupEvery(), zlog)
	go job.Start(ctx)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zlog.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("serve", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zlog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zlog.Warn("http shutdown", zap.Error(err))
	}
	if err := providers.Shutdown(shutdownCtx); err != nil {
		zlog.Warn("telemetry shutdown", zap.Error(err))
	}
	zlog.Info("stopped")
}
