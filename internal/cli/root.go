package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/zerodaysoftware/storekit/internal/client"
	"github.com/zerodaysoftware/storekit/internal/core/config"
	"github.com/zerodaysoftware/storekit/internal/infra/api"
	"github.com/zerodaysoftware/storekit/internal/infra/cache"
	"github.com/zerodaysoftware/storekit/internal/infra/network"
	"github.com/zerodaysoftware/storekit/internal/infra/queue"
	"github.com/zerodaysoftware/storekit/internal/infra/storage"
	"github.com/zerodaysoftware/storekit/internal/infra/storage/memory"
	redisstore "github.com/zerodaysoftware/storekit/internal/infra/storage/redis"
	"github.com/zerodaysoftware/storekit/internal/infra/storage/sqlite"
)

var (
	cfgPath string
	isDebug bool
)

var rootCmd = &cobra.Command{
	Use:   "storekit",
	Short: "Storekit offline-first API client",
	Long:  `Storekit is a resilient storefront API client with offline caching, a durable mutation queue, and automatic endpoint failover.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "config file (default is config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
}

// loadConfig loads .env, the YAML config, and initializes logging.
func loadConfig() *config.AppConfig {
	_ = godotenv.Load()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		initLogger(&config.LoggingConfig{})
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	if isDebug {
		cfg.Logging.Level = "debug"
	}
	initLogger(&cfg.Logging)
	return cfg
}

func initLogger(cfg *config.LoggingConfig) {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: time.RFC3339,
		})
	}
	slog.SetDefault(slog.New(handler))
}

// buildClient assembles the full client stack from config.
func buildClient(ctx context.Context, cfg *config.AppConfig) (*client.Client, error) {
	store, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}

	log := slog.Default()
	exec := api.NewExecutor(cfg.API)
	monitor := network.NewMonitor(exec, cfg.Monitor, log)
	cacheMgr := cache.NewManager(store.Cache(), cfg.Cache, log)
	q := queue.NewQueue(store.Queue(), log)

	return client.New(exec, cacheMgr, q, monitor, store, cfg.Retry, log), nil
}

func openStore(ctx context.Context, cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Driver {
	case "", "memory":
		return memory.NewMemoryStore(), nil
	case "sqlite":
		return sqlite.NewStore(ctx, cfg.SQLite)
	case "redis":
		return redisstore.NewStore(cfg.Redis)
	default:
		return nil, fmt.Errorf("unknown storage driver: %q", cfg.Driver)
	}
}
