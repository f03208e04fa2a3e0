package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/redis/go-redis/v9"

	"github.com/keylinehq/keyline/pkg/cache"
)

// Cache backend names accepted in the config file.
const (
	backendFile  = "file"
	backendRedis = "redis"
	backendNone  = "none"
)

// Config is the CLI configuration, read from a TOML file.
//
// Example:
//
//	[remote]
//	base_url = "https://api.keyline.example/v1"
//	token = "..."
//
//	[data]
//	base_url = "https://data.keyline.example/v1"
//
//	[cache]
//	backend = "file"
type Config struct {
	Remote RemoteConfig `toml:"remote"`
	Data   DataConfig   `toml:"data"`
	Cache  CacheConfig  `toml:"cache"`
}

// RemoteConfig locates the entity store API.
type RemoteConfig struct {
	BaseURL string `toml:"base_url"`
	Token   string `toml:"token"`
}

// DataConfig locates the external data API used for bindings. An empty
// base URL disables hydration; templates then serve cached data only.
type DataConfig struct {
	BaseURL string `toml:"base_url"`
	Token   string `toml:"token"`
}

// CacheConfig selects the local cache backend.
type CacheConfig struct {
	// Backend is "file" (default), "redis", or "none".
	Backend string `toml:"backend"`

	// Dir overrides the file backend's directory.
	Dir string `toml:"dir"`

	// RedisAddr is the redis host:port, required for the redis backend.
	RedisAddr string `toml:"redis_addr"`
}

// DefaultConfig returns the configuration used when no file exists: a
// local dev store and a file cache.
func DefaultConfig() Config {
	return Config{
		Remote: RemoteConfig{BaseURL: "http://localhost:8090"},
		Cache:  CacheConfig{Backend: backendFile},
	}
}

// LoadConfig reads the TOML config at path, or the default location when
// path is empty. A missing file is not an error; defaults apply.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		def, err := defaultConfigPath()
		if err != nil {
			return cfg, nil
		}
		path = def
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return cfg, nil
		}
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (cfg Config) validate() error {
	switch cfg.Cache.Backend {
	case "", backendFile, backendNone:
	case backendRedis:
		if cfg.Cache.RedisAddr == "" {
			return fmt.Errorf("cache backend %q requires redis_addr", backendRedis)
		}
	default:
		return fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
	if cfg.Remote.BaseURL == "" {
		return fmt.Errorf("remote.base_url is required")
	}
	return nil
}

// defaultConfigPath returns the config location using the XDG standard
// (~/.config/keyline/config.toml).
func defaultConfigPath() (string, error) {
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, appName, "config.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName, "config.toml"), nil
}

// newCacheBackend opens the configured local cache backend.
func (c *CLI) newCacheBackend(ctx context.Context) (cache.Cache, error) {
	switch c.Config.Cache.Backend {
	case backendNone:
		return cache.NewNullCache(), nil
	case backendRedis:
		return cache.NewRedisCache(ctx, &redis.Options{Addr: c.Config.Cache.RedisAddr})
	default:
		dir, err := c.cacheDir()
		if err != nil {
			return cache.NewNullCache(), nil
		}
		return cache.NewFileCache(dir)
	}
}
