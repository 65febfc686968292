package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"chat_backend/internal/cache"
	"chat_backend/internal/config"
	"chat_backend/internal/handler"
	"chat_backend/internal/middleware"
	"chat_backend/internal/repository"
	"chat_backend/internal/service"
	"chat_backend/internal/ws"
	"chat_backend/pkg/logger"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger := logger.New(cfg.Log.Level)

	// Подключение к PostgreSQL
	poolCfg, err := pgxpool.ParseConfig(cfg.Database.DSN)
	if err != nil {
		appLogger.Fatal("Invalid database DSN", "error", err)
	}
	poolCfg.MaxConns = int32(cfg.Database.MaxConnections)
	poolCfg.MaxConnIdleTime = cfg.Database.MaxIdleTime
	poolCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime

	dbPool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		appLogger.Fatal("Failed to connect to database", "error", err)
	}
	if err := dbPool.Ping(context.Background()); err != nil {
		appLogger.Fatal("Failed to ping database", "error", err)
	}
	appLogger.Info("Database connection established")

	if err := repository.Migrate(context.Background(), dbPool); err != nil {
		appLogger.Fatal("Failed to migrate database schema", "error", err)
	}

	// Подключение к Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		appLogger.Fatal("Failed to connect to Redis", "error", err)
	}
	appLogger.Info("Redis connection established")

	repos := repository.NewRepositories(dbPool, rdb, appLogger)
	roomCache := cache.NewRedisCache(rdb, cfg.Cache.Prefix, cfg.Cache.TTL, appLogger)
	services := service.NewServices(repos, roomCache, cfg, appLogger)

	hub := ws.NewHub(services.Message, services.Receipt, services.RateLimit, services.Auth, cfg.Chat, appLogger)

	authMiddleware := middleware.NewAuthMiddleware(services.Auth, appLogger)
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(services.RateLimit, appLogger)
	handlers := handler.NewHandlers(services, hub, appLogger)
	router := handler.NewRouter(handlers, authMiddleware, rateLimitMiddleware, cfg, appLogger)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		appLogger.Info("Starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal("Failed to start server", "error", err)
		}
	}()

	purgeCtx, stopPurge := context.WithCancel(context.Background())
	go purgeExpired(purgeCtx, services.Message, cfg.Chat.PurgeInterval, appLogger)

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.Server.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"http-server": func(ctx context.Context) error {
				appLogger.Info("Shutting down server...")
				stopPurge()
				if err := srv.Shutdown(ctx); err != nil {
					return err
				}
				return hub.Shutdown(ctx)
			},
		},
	)

	exitCode := <-wait

	// хранилища закрываются после остановки сервера и хаба
	if err := rdb.Close(); err != nil {
		appLogger.Warn("Failed to close Redis client", "error", err)
	}
	dbPool.Close()

	appLogger.Info("Server exited", "code", exitCode)
	os.Exit(exitCode)
}

// purgeExpired периодически удаляет истекшие VOLATILE-сообщения
func purgeExpired(ctx context.Context, messages service.MessageService, interval time.Duration, log logger.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := messages.PurgeExpired(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Warn("Failed to purge expired messages", "error", err)
			}
		}
	}
}
