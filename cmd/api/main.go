package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/logger"
	"storefront/internal/repository/memory"
	"storefront/internal/server"
	"storefront/migrations"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func gracefulShutdown(apiServer *server.Server, logger *zap.Logger, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	logger.Info("Shutting down gracefully, press Ctrl+C again to force")
	stop() // Allow Ctrl+C to force shutdown

	// in-flight requests get 30 seconds to finish
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := apiServer.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	if err := apiServer.Close(); err != nil {
		logger.Error("Error closing server resources", zap.Error(err))
	}

	logger.Info("Server exiting")

	done <- true
}

// openBackend connects the configured storage and brings its schema up to date
func openBackend(cfg *config.Config, log *zap.Logger, statusOnly bool) (server.Backend, error) {
	if cfg.Database.Driver == "memory" {
		log.Warn("Using in-memory storage; all data is lost on restart")
		return server.MemoryBackend(memory.NewStore()), nil
	}

	dbService, err := database.New(cfg.Database, log)
	if err != nil {
		return server.Backend{}, err
	}

	if statusOnly {
		defer dbService.Close()
		return server.Backend{}, database.GetMigrationStatus(dbService.DB(), migrations.FS)
	}

	health := dbService.Health(context.Background())
	log.Info("Database health check", zap.Any("health", health))

	if err := database.RunMigrations(dbService.DB(), migrations.FS, log); err != nil {
		dbService.Close()
		return server.Backend{}, err
	}

	return server.PostgresBackend(dbService), nil
}

// openRedis returns nil when rate limiting is disabled or redis is unreachable
func openRedis(cfg *config.Config, log *zap.Logger) *redis.Client {
	if !cfg.Redis.Enabled {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("Redis unavailable, auth rate limiting disabled", zap.Error(err), zap.String("addr", cfg.Redis.Addr()))
		client.Close()
		return nil
	}

	log.Info("Connected to redis", zap.String("addr", cfg.Redis.Addr()))
	return client
}

func main() {
	migrateStatus := flag.Bool("migrate-status", false, "print migration status and exit")
	flag.Parse()

	cfg := config.Load()

	log, err := logger.New(cfg.Server.Env, cfg.Server.LogLevel)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	if cfg.JWT.Secret == "" {
		log.Fatal("JWT_SECRET must be set")
	}

	backend, err := openBackend(cfg, log, *migrateStatus)
	if err != nil {
		log.Fatal("Failed to prepare storage", zap.Error(err))
	}
	if *migrateStatus {
		return
	}

	log.Info("Starting storefront API",
		zap.String("env", cfg.Server.Env),
		zap.String("port", cfg.Server.Port),
		zap.String("storage", cfg.Database.Driver),
		zap.Bool("strict_transitions", cfg.Checkout.StrictTransitions),
	)

	srv := server.NewServer(cfg, log, backend, openRedis(cfg, log))

	if cfg.Admin.Email != "" && cfg.Admin.Password != "" {
		admin, created, err := srv.Users.EnsureAdmin(context.Background(), cfg.Admin.Email, cfg.Admin.Nickname, cfg.Admin.Password)
		if err != nil {
			log.Fatal("Failed to bootstrap admin account", zap.Error(err))
		}
		log.Info("Admin account ready", zap.String("user_id", admin.ID.String()), zap.Bool("created", created))
	}

	done := make(chan bool, 1)
	go gracefulShutdown(srv, log, done)

	log.Info("Server listening", zap.String("addr", srv.Addr))

	err = srv.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		log.Fatal("HTTP server error", zap.Error(err))
	}

	<-done
	log.Info("Graceful shutdown complete")
}
