/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the receive reconciliation server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, environment, then flags)
  2. Build the zap logger
  3. Initialize SQLite store (schema is migrated on open)
  4. Choose the shipment locker: Redis when REDIS_ADDR is set, else in-process
  5. Create reconcile service, API handler and router
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS (override the environment):
  -port    HTTP server port
  -db      SQLite database path
           Use ":memory:" for in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close Redis and database connections
  4. Exit

EXAMPLES:
  # Single instance, file database
  ./server -db="./data/receive.db"

  # Several instances sharing locks
  REDIS_ADDR=localhost:6379 AUTH_TOKENS=t1:alice ./server

SEE ALSO:
  - config/config.go: Environment variables
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/warp/receive-engine/api"
	"github.com/warp/receive-engine/config"
	"github.com/warp/receive-engine/lock"
	"github.com/warp/receive-engine/reconcile"
	"github.com/warp/receive-engine/store/sqlite"
)

func main() {
	cfg, err := config.LoadEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	// Flags
	port := flag.Int("port", cfg.Server.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.DB.Path, "SQLite database path")
	flag.Parse()

	logger, err := config.NewLogger(cfg.Logger, cfg.IsDevelopment())
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.String("path", *dbPath), zap.Error(err))
	}
	defer store.Close()

	locker, closeLocker := newLocker(cfg.Redis, logger)
	defer closeLocker()

	svc := reconcile.NewService(store, locker, logger)
	handler := api.NewHandler(svc, logger, store.Ping)
	router := api.NewRouter(handler, api.RouterOptions{
		Auth:        api.NewStaticTokens(cfg.Auth.Tokens),
		CORSOrigins: cfg.Server.CORSOrigins,
		Logger:      logger,
	})
	if len(cfg.Auth.Tokens) == 0 {
		logger.Warn("AUTH_TOKENS not set, requests are recorded as anonymous")
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting",
			zap.Int("port", *port),
			zap.String("env", cfg.Server.AppEnv),
			zap.String("db", *dbPath))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
		return
	}

	logger.Info("server stopped")
}

// newLocker returns the Redis locker when an address is configured, the
// in-process one otherwise. A configured Redis that does not answer is fatal.
func newLocker(cfg config.RedisConfig, logger *zap.Logger) (reconcile.Locker, func()) {
	if cfg.Addr == "" {
		logger.Info("using in-process shipment locks")
		return lock.NewLocal(), func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Fatal("failed to reach redis", zap.String("addr", cfg.Addr), zap.Error(err))
	}

	logger.Info("using redis shipment locks",
		zap.String("addr", cfg.Addr),
		zap.Duration("ttl", cfg.LockTTL))
	return lock.NewRedis(client, cfg.LockTTL, logger), func() { client.Close() }
}
