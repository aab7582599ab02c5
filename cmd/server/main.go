// Package main runs the Q&A dashboard HTTP server with WebSocket push and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/qa-dashboard/backend/config"
	"github.com/qa-dashboard/backend/internal/auth"
	"github.com/qa-dashboard/backend/internal/lifecycle"
	"github.com/qa-dashboard/backend/internal/middleware"
	"github.com/qa-dashboard/backend/internal/notify"
	"github.com/qa-dashboard/backend/internal/questions"
	"github.com/qa-dashboard/backend/internal/realtime"
	"github.com/qa-dashboard/backend/internal/store/memory"
	"github.com/qa-dashboard/backend/pkg/database"
	"github.com/qa-dashboard/backend/pkg/redis"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	clock := clockwork.NewRealClock()

	var (
		userStore     auth.Store
		questionStore lifecycle.QuestionStore
		ping          func(context.Context) error
	)
	switch cfg.Store.Driver {
	case config.StoreDriverMemory:
		mem := memory.New()
		userStore, questionStore = mem, mem
		logger.Warn("using in-memory store; data is lost on restart")
	default:
		pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
		if err != nil {
			logger.Fatal("database", zap.Error(err))
		}
		defer pool.Close()
		if err := database.Migrate(ctx, pool, logger); err != nil {
			logger.Fatal("migrate", zap.Error(err))
		}
		userStore = auth.NewRepository(pool)
		questionStore = questions.NewRepository(pool)
		ping = pool.Ping
	}

	var limiter middleware.Limiter
	if cfg.Redis.Addr != "" && cfg.RateLimit.PerMinute > 0 {
		rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			logger.Warn("redis unavailable, rate limiting disabled", zap.Error(err))
		} else {
			defer rdb.Close()
			limiter = redis.NewWindowLimiter(rdb, clock, "rate_limit:submit", cfg.RateLimit.PerMinute, time.Minute)
		}
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	if err := auth.EnsureAdmin(ctx, userStore, cfg.Admin.Username, cfg.Admin.Email, cfg.Admin.Password, logger); err != nil {
		logger.Warn("seed default admin", zap.Error(err))
	}

	hub := realtime.NewHub(logger)
	dispatcher := notify.NewDispatcher(notify.Config{
		URL:             cfg.Webhook.URL,
		Timeout:         time.Duration(cfg.Webhook.TimeoutSec) * time.Second,
		BreakerFailures: cfg.Webhook.BreakerFailures,
		BreakerOpen:     time.Duration(cfg.Webhook.BreakerOpenSec) * time.Second,
	}, nil, logger)
	if !dispatcher.Enabled() {
		logger.Info("WEBHOOK_URL not set, webhook notifications disabled")
	}

	engine := lifecycle.NewEngine(questionStore, userStore, hub, dispatcher, clock, logger)

	router := newRouter(routerDeps{
		CORSOrigins: cfg.Server.CORSAllowedOrigins,
		Auth:        auth.NewHandler(userStore, jwtService, logger),
		Questions:   questions.NewHandler(engine, logger),
		JWT:         jwtService,
		Hub:         hub,
		Limiter:     limiter,
		Ping:        ping,
		Logger:      logger,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port), zap.String("store", cfg.Store.Driver))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	hub.Close()
	if err := dispatcher.Wait(shutdownCtx); err != nil {
		logger.Warn("webhook deliveries still in flight at shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if os.Getenv("LOG_LEVEL") == "debug" {
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	logger, _ := config.Build()
	return logger
}
