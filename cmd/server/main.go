package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"notehub-backend/internal/auth"
	"notehub-backend/internal/cache"
	"notehub-backend/internal/config"
	"notehub-backend/internal/events"
	"notehub-backend/internal/handlers"
	appmw "notehub-backend/internal/middleware"
	"notehub-backend/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Logger error: %v", err)
	}
	defer logger.Sync()

	// Database connection (with retries)
	var db *sqlx.DB
	for i := 0; i < 10; i++ {
		db, err = sqlx.Connect("postgres", cfg.DatabaseURL)
		if err == nil {
			break
		}
		logger.Warn("db connection attempt failed", zap.Int("attempt", i+1), zap.Error(err))
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("connected to database")

	// Redis is optional; without it login rate limiting is disabled.
	var redisClient cache.Client
	if cfg.RedisURL != "" {
		rc, err := cache.NewRedisClient(cfg.RedisURL)
		if err != nil {
			logger.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer rc.Close()
		redisClient = rc
	} else {
		logger.Warn("REDIS_URL not set; login rate limiting disabled")
	}

	// NATS is optional; without it lifecycle events are not published.
	var bus *events.Publisher
	if cfg.NATSURL != "" {
		bus, err = events.Connect(cfg.NATSURL, logger)
		if err != nil {
			logger.Fatal("failed to connect to NATS", zap.Error(err))
		}
		defer bus.Close()
	} else {
		logger.Warn("NATS_URL not set; event publishing disabled")
	}

	store := storage.NewStorage(db)

	tokens, err := auth.NewTokens([]byte(cfg.JWTSecret))
	if err != nil {
		logger.Fatal("token setup failed", zap.Error(err))
	}
	hasher := auth.NewHasher(cfg.BcryptCost)

	authMW := auth.NewMiddleware(tokens, logger)
	authHandler := auth.NewHandler(store, store, tokens, hasher, logger)
	h := handlers.New(store, store, store, bus, logger)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	h.RegisterRoutes(r, authMW, authHandler, appmw.RateLimitLogin(redisClient))

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("server starting", zap.String("addr", server.Addr))
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}
	return cfg.Build()
}
