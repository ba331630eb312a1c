package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// DatabaseConfig is the durable alarm store connection.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslMode"`
	MaxConns int    `yaml:"maxConns"`
	MaxIdle  int    `yaml:"maxIdle"`
}

// GetDSN builds the lib/pq connection string.
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// RedisConfig is the notification stream connection.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// NSPConfig covers authentication and the notification subscription against
// the management platform. Disabled deployments consume an externally-fed
// stream and skip the subscription lifecycle entirely.
type NSPConfig struct {
	Enabled      bool   `yaml:"enabled"`
	BaseURL      string `yaml:"baseURL"`
	AuthURL      string `yaml:"authURL"`
	RevokeURL    string `yaml:"revokeURL"`
	ClientID     string `yaml:"clientID"`
	ClientSecret string `yaml:"clientSecret"`
	TokenFile    string `yaml:"tokenFile"`
	// Seconds of remaining validity below which the token is refreshed
	RefreshBefore int `yaml:"refreshBefore"`
	// Seconds between subscription renewals
	RenewInterval      int  `yaml:"renewInterval"`
	InsecureSkipVerify bool `yaml:"insecureSkipVerify"`
}

// ConsumerConfig is the stream consumer identity.
type ConsumerConfig struct {
	Stream    string `yaml:"stream"`
	Group     string `yaml:"group"`
	Name      string `yaml:"name"`
	BatchSize int    `yaml:"batchSize"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is the alarm correlator service configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	NSP      NSPConfig      `yaml:"nsp"`
	Consumer ConsumerConfig `yaml:"consumer"`
	Log      LogConfig      `yaml:"log"`
}

// Load builds the configuration from environment variables, then overlays
// the optional YAML file named by CONFIG_FILE.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnvInt("DB_PORT", 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "nsp")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 10)
	cfg.Database.MaxIdle = getEnvInt("DB_MAX_IDLE", 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = 0

	cfg.NSP.Enabled = getEnv("NSP_ENABLED", "false") == "true"
	cfg.NSP.BaseURL = getEnv("NSP_BASE_URL", "")
	cfg.NSP.AuthURL = getEnv("NSP_AUTH_URL", "")
	cfg.NSP.RevokeURL = getEnv("NSP_REVOKE_URL", "")
	cfg.NSP.ClientID = getEnv("NSP_CLIENT_ID", "")
	cfg.NSP.ClientSecret = getEnv("NSP_CLIENT_SECRET", "")
	cfg.NSP.TokenFile = getEnv("NSP_TOKEN_FILE", "/var/run/nsp_token.json")
	cfg.NSP.RefreshBefore = getEnvInt("NSP_REFRESH_BEFORE", 300)
	cfg.NSP.RenewInterval = getEnvInt("NSP_RENEW_INTERVAL", 1800)
	cfg.NSP.InsecureSkipVerify = getEnv("NSP_INSECURE_SKIP_VERIFY", "false") == "true"

	cfg.Consumer.Stream = getEnv("ALARM_EVENT_STREAM", "nsp:alarm-notifications")
	cfg.Consumer.Group = getEnv("ALARM_CONSUMER_GROUP", "alarm-correlator-group")
	cfg.Consumer.Name = getEnv("ALARM_CONSUMER_NAME", "alarm-correlator-1")
	cfg.Consumer.BatchSize = getEnvInt("ALARM_CONSUMER_BATCH_SIZE", 10)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.Atoi(value); err == nil {
			return v
		}
	}
	return defaultValue
}
