package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type APIConfig struct {
	BaseURL string
	Timeout time.Duration
}

// ProviderConfig points at the federated identity provider's REST surface.
type ProviderConfig struct {
	BaseURL  string // account endpoints (custom token exchange, password sign-in)
	TokenURL string // token refresh endpoint
	AuthURL  string // browser consent page for federated sign-in
	APIKey   string
	Timeout  time.Duration
}

type SessionConfig struct {
	SafetyMargin    time.Duration
	RefreshAttempts int
}

type StorageConfig struct {
	DataDir     string
	DocumentsDB string
	Disabled    bool
	Passphrase  string
}

type LogConfig struct {
	Level string
}

type Config struct {
	Environment string
	API         APIConfig
	Provider    ProviderConfig
	Session     SessionConfig
	Storage     StorageConfig
	Log         LogConfig
}

// DocumentsPath resolves the sqlite file for the local document cache.
func (c *Config) DocumentsPath() string {
	if c.Storage.DocumentsDB == "" {
		return ""
	}
	if filepath.IsAbs(c.Storage.DocumentsDB) {
		return c.Storage.DocumentsDB
	}
	return filepath.Join(c.Storage.DataDir, c.Storage.DocumentsDB)
}

// Load reads config.yaml (current dir, ./config, or $HOME/.medilink) merged
// with MEDILINK_* environment variables over the built-in defaults.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("$HOME/.medilink")

	v.SetEnvPrefix("MEDILINK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		// environment overrides arrive as strings
		dc.WeaklyTypedInput = true
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
		)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.Storage.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve data dir: %w", err)
		}
		cfg.Storage.DataDir = filepath.Join(home, ".medilink")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("api.baseurl", "http://localhost:5000/api")
	v.SetDefault("api.timeout", "30s")

	v.SetDefault("provider.baseurl", "https://identity.example.com/v1")
	v.SetDefault("provider.tokenurl", "https://identity.example.com/v1/token")
	v.SetDefault("provider.authurl", "https://identity.example.com/authorize")
	v.SetDefault("provider.apikey", "")
	v.SetDefault("provider.timeout", "15s")

	v.SetDefault("session.safetymargin", "5m")
	v.SetDefault("session.refreshattempts", 2)

	v.SetDefault("storage.datadir", "")
	v.SetDefault("storage.documentsdb", "documents.db")
	v.SetDefault("storage.disabled", false)
	v.SetDefault("storage.passphrase", "")

	v.SetDefault("log.level", "info")
}
