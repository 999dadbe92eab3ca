package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/models"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Uploads    UploadsConfig    `yaml:"uploads"`
	Redis      RedisConfig      `yaml:"redis"`
	Backup     BackupConfig     `yaml:"backup"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	API        APIConfig        `yaml:"api"`
	Sync       SyncConfig       `yaml:"sync"`
	Google     GoogleConfig     `yaml:"google"`
	Telegram   TelegramConfig   `yaml:"telegram"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type UploadsConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	Port      int                `yaml:"port"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	HeaderExtra  string         `yaml:"header_extra"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Extra       string   `yaml:"extra"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// SyncConfig tunes the synchronization engine: job queues, retry and
// breaker behavior, gateway pacing and the conflict policy. Duration
// fields are strings ("30s", "1h"); consumers parse them through
// Duration with a fallback.
type SyncConfig struct {
	Jobs     JobsConfig     `yaml:"jobs"`
	Retry    RetryConfig    `yaml:"retry"`
	Breaker  BreakerConfig  `yaml:"breaker"`
	Gateway  GatewayConfig  `yaml:"gateway"`
	Conflict ConflictConfig `yaml:"conflict"`
}

type JobsConfig struct {
	MaxAttempts   int    `yaml:"max_attempts"`
	Retention     string `yaml:"retention"`
	SweepInterval string `yaml:"sweep_interval"`
}

type RetryConfig struct {
	MaxAttempts int     `yaml:"max_attempts"`
	BaseDelay   string  `yaml:"base_delay"`
	MaxDelay    string  `yaml:"max_delay"`
	Multiplier  float64 `yaml:"multiplier"`
	Jitter      bool    `yaml:"jitter"`
}

type BreakerConfig struct {
	FailureThreshold int    `yaml:"failure_threshold"`
	ResetTimeout     string `yaml:"reset_timeout"`
	CallTimeout      string `yaml:"call_timeout"`
}

type GatewayConfig struct {
	InterCallDelay string `yaml:"inter_call_delay"`
	RetryBase      string `yaml:"retry_base"`
	MaxRetries     int    `yaml:"max_retries"`
}

type ConflictConfig struct {
	Precedence      string   `yaml:"precedence"`
	MandatoryFields []string `yaml:"mandatory_fields"`
	VendorFields    []string `yaml:"vendor_fields"`
	RemoteFields    []string `yaml:"remote_fields"`
}

type GoogleConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
}

type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   int64  `yaml:"chat_id"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional; environment variables referenced in the YAML
	// may come from the real environment instead.
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	if c.API.Enabled && c.API.Auth.Enabled && len(c.API.Auth.APIKeys) == 0 {
		return errors.New("api auth is enabled but no api keys are configured")
	}

	if m := c.Sync.Retry.Multiplier; m != 0 && m < 1 {
		return fmt.Errorf("sync.retry.multiplier must be >= 1, got %v", m)
	}

	switch c.Sync.Conflict.Precedence {
	case "", "local", "vendor":
	default:
		return fmt.Errorf("sync.conflict.precedence must be local or vendor, got %q", c.Sync.Conflict.Precedence)
	}

	if c.Telegram.BotToken != "" && c.Telegram.ChatID == 0 {
		return errors.New("telegram.chat_id is required when a bot token is set")
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "vendorsync"
	}
	if c.API.Port == 0 {
		c.API.Port = 8080
	}
	// auth enabled by default when API is enabled
	if c.API.Enabled && !c.API.Auth.Enabled {
		c.API.Auth.Enabled = true
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.Auth.HeaderExtra == "" {
		c.API.Auth.HeaderExtra = "x-api-extra"
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Uploads.Path == "" {
		c.Uploads.Path = "./data/uploads"
	}

	if c.Sync.Jobs.MaxAttempts == 0 {
		c.Sync.Jobs.MaxAttempts = models.DefaultJobMaxAttempts
	}
	if c.Sync.Retry.MaxAttempts == 0 {
		c.Sync.Retry.MaxAttempts = 5
	}
	if c.Sync.Retry.Multiplier == 0 {
		c.Sync.Retry.Multiplier = 2
	}
	if c.Sync.Breaker.FailureThreshold == 0 {
		c.Sync.Breaker.FailureThreshold = 10
	}
	if c.Sync.Gateway.MaxRetries == 0 {
		c.Sync.Gateway.MaxRetries = 3
	}
}

// Duration parses a config duration string, returning fallback when the
// value is empty or malformed.
func Duration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// Catalog is the seed file shape: the vendors and stores the daemon
// ensures exist at startup.
type Catalog struct {
	Vendors []models.Vendor `yaml:"vendors"`
	Stores  []models.Store  `yaml:"stores"`
}

// ValidateCatalog checks a seed catalog before it is applied.
func ValidateCatalog(cat *Catalog) error {
	codes := make(map[string]bool)
	for _, v := range cat.Vendors {
		if v.Name == "" {
			return errors.New("catalog vendor with empty name")
		}
		if v.Code == "" {
			return fmt.Errorf("vendor %q has no code", v.Name)
		}
		if codes[v.Code] {
			return fmt.Errorf("duplicate vendor code: %s", v.Code)
		}
		codes[v.Code] = true
	}
	for _, s := range cat.Stores {
		if s.Name == "" {
			return errors.New("catalog store with empty name")
		}
		if s.BaseURL == "" {
			return fmt.Errorf("store %q has no base_url", s.Name)
		}
	}
	return nil
}
