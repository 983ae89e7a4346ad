package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pitchmatch/backend/internal/api/handler"
	"pitchmatch/backend/internal/auth"
	"pitchmatch/backend/internal/chathub"
	"pitchmatch/backend/internal/config"
	"pitchmatch/backend/internal/notify"
	"pitchmatch/backend/internal/presence"
	"pitchmatch/backend/internal/storage"
	"pitchmatch/backend/internal/telegram"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "pitchmatch:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(cfg, log)
	if err != nil {
		return err
	}

	jwtResolver := auth.NewJWTResolver(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL)
	resolvers := auth.Chain{jwtResolver}

	var (
		registry presence.Registry
		hub      chathub.Hub
	)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer func() { _ = rdb.Close() }()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}

		redisHub := chathub.NewRedisHub(rdb, log)
		if err := redisHub.Start(ctx); err != nil {
			return err
		}
		defer func() { _ = redisHub.Close() }()

		registry = presence.NewRedisRegistry(rdb)
		hub = redisHub
		resolvers = append(resolvers, auth.NewRedisTokenResolver(rdb, store))
		log.Info("redis presence and broadcaster enabled", zap.String("addr", cfg.RedisAddr))
	} else {
		registry = presence.NewMemoryRegistry()
		hub = chathub.NewManagerService(log)
		log.Warn("REDIS_ADDR not set; presence and broadcasts are local to this process")
	}

	var pusher notify.Pusher
	if cfg.TelegramBotToken != "" {
		bot, err := telegram.NewBotService(cfg.TelegramBotToken, resolvers, store, log)
		if err != nil {
			return err
		}
		go bot.Run(ctx)
		pusher = bot.Pusher()
	}

	deps := chathub.Deps{
		Messages: store,
		Matches:  store,
		Presence: registry,
		Hub:      hub,
		Notifier: notify.NewService(store, store, registry, hub, pusher, log),
		Log:      log,
	}

	if !cfg.Development() {
		gin.SetMode(gin.ReleaseMode)
	}
	h := handler.NewHandler(resolvers, store, deps, handler.Options{
		SendBuffer:     cfg.SendBuffer,
		PageMax:        cfg.MessagePageMax,
		AllowedOrigins: cfg.CORSOrigins,
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.NewRouter(h),
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20,
		// Sockets outlive Shutdown; cancelling ctx ends their sessions.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		log.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	// Sockets close once ctx is cancelled; their presence teardown still needs
	// Redis, which the deferred closes above release on return.
	if err := h.Drain(shutdownCtx); err != nil {
		return fmt.Errorf("drain sessions: %w", err)
	}
	log.Info("shutdown complete")
	return nil
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	zcfg := zap.NewProductionConfig()
	if cfg.Development() {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}

// openStore connects to PostgreSQL when DATABASE_DSN is set and falls back to
// process memory otherwise.
func openStore(cfg config.Config, log *zap.Logger) (storage.Storage, error) {
	if cfg.DatabaseDSN == "" {
		log.Warn("DATABASE_DSN not set; messages are kept in memory")
		return storage.NewMemoryStore(), nil
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	svc := storage.NewStorageService(db)
	if err := svc.Migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	log.Info("database connected, migrations complete")
	return svc, nil
}
