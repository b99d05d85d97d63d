package config

import (
	"github.com/zerodaysoftware/storekit/internal/client"
	"github.com/zerodaysoftware/storekit/internal/infra/api"
	"github.com/zerodaysoftware/storekit/internal/infra/cache"
	"github.com/zerodaysoftware/storekit/internal/infra/network"
	redisstore "github.com/zerodaysoftware/storekit/internal/infra/storage/redis"
	"github.com/zerodaysoftware/storekit/internal/infra/storage/sqlite"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server  ServerConfig   `yaml:"server"`
	API     api.Config     `yaml:"api"`
	Monitor network.Config `yaml:"monitor"`
	Cache   cache.Config   `yaml:"cache"`
	Retry   client.Config  `yaml:"retry"`
	Storage StorageConfig  `yaml:"storage"`
	Logging LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds the metrics endpoint settings for watch mode.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// StorageConfig selects and configures the durable store.
type StorageConfig struct {
	Driver string            `yaml:"driver"` // memory, sqlite, redis
	SQLite sqlite.Config     `yaml:"sqlite"`
	Redis  redisstore.Config `yaml:"redis"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}
