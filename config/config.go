package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Log        LogConfig        `mapstructure:"log"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Admin      AdminConfig      `mapstructure:"admin"`
	Gateway    GatewayConfig    `mapstructure:"gateway"`
	Settlement SettlementConfig `mapstructure:"settlement"`
	Pricing    PricingConfig    `mapstructure:"pricing"`
	Ledger     LedgerConfig     `mapstructure:"ledger"`
	RateLimit  RateLimitConfig  `mapstructure:"ratelimit"`
	Webhook    WebhookConfig    `mapstructure:"webhook"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // debug, release, test
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // trace, debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// StorageConfig selects the ledger backend.
type StorageConfig struct {
	Driver      string `mapstructure:"driver"` // memory, postgres
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

// AuthConfig configures wallet credential verification.
type AuthConfig struct {
	JWTSecret    string        `mapstructure:"jwt_secret"`
	TokenExpiry  time.Duration `mapstructure:"token_expiry"`
	Issuer       string        `mapstructure:"issuer"`
	Audience     string        `mapstructure:"audience"`
	MasterSecret string        `mapstructure:"master_secret"` // HKDF input for per-source HMAC secrets
	MaxClockSkew time.Duration `mapstructure:"max_clock_skew"`
	NonceTTL     time.Duration `mapstructure:"nonce_ttl"`
}

// AdminConfig protects the funding source management API.
type AdminConfig struct {
	APIKeyHash string `mapstructure:"api_key_hash"` // argon2id encoded hash; empty disables the admin API
}

type GatewayConfig struct {
	Name             string        `mapstructure:"name"`
	Version          string        `mapstructure:"version"`
	PayeeID          string        `mapstructure:"payee_id"`
	OperationTimeout time.Duration `mapstructure:"operation_timeout"`
	MaxBodyBytes     int64         `mapstructure:"max_body_bytes"`
}

type SettlementConfig struct {
	Timeout         time.Duration `mapstructure:"timeout"`
	MaxRetries      int           `mapstructure:"max_retries"`
	RefundOnFailure bool          `mapstructure:"refund_on_failure"`
	CacheTTL        time.Duration `mapstructure:"cache_ttl"`
}

// PriceEntry is one row of the price table. Price is a decimal string.
type PriceEntry struct {
	Name        string `mapstructure:"name"`
	Description string `mapstructure:"description"`
	Price       string `mapstructure:"price"`
	Free        bool   `mapstructure:"free"`
}

type PricingConfig struct {
	Operations []PriceEntry `mapstructure:"operations"`
}

// FundingSourceSeed provisions a funding source at startup.
type FundingSourceSeed struct {
	ID      string `mapstructure:"id"`
	Balance string `mapstructure:"balance"`
}

type LedgerConfig struct {
	AutoProvision  bool                `mapstructure:"auto_provision"`
	InitialBalance string              `mapstructure:"initial_balance"`
	Provision      []FundingSourceSeed `mapstructure:"provision"`
}

type RateLimitConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Limit   int           `mapstructure:"limit"`
	Window  time.Duration `mapstructure:"window"`
}

// WebhookConfig configures settlement notifications. An empty URL disables them.
type WebhookConfig struct {
	URL        string        `mapstructure:"url"`
	Secret     string        `mapstructure:"secret"`
	MaxRetries int           `mapstructure:"max_retries"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: PAYGATE_.
// Nested keys use underscore: PAYGATE_DATABASE_HOST, PAYGATE_AUTH_JWT_SECRET, etc.
func Load(path string) (*Config, error) {
	v, err := read(path)
	if err != nil {
		return nil, err
	}
	return decode(v)
}

// LoadAndWatch loads the configuration and calls onChange with the fresh
// configuration every time the config file is rewritten. Without a config
// file nothing is watched.
func LoadAndWatch(path string, onChange func(*Config), onError func(error)) (*Config, error) {
	v, err := read(path)
	if err != nil {
		return nil, err
	}
	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}

	if v.ConfigFileUsed() != "" {
		v.OnConfigChange(func(_ fsnotify.Event) {
			next, err := decode(v)
			if err != nil {
				if onError != nil {
					onError(err)
				}
				return
			}
			onChange(next)
		})
		v.WatchConfig()
	}

	return cfg, nil
}

func read(path string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("PAYGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required: env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	return v, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "paygate")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("storage.driver", "memory")
	v.SetDefault("storage.auto_migrate", true)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_expiry", "24h")
	v.SetDefault("auth.issuer", "paygate")
	v.SetDefault("auth.audience", "paygate-mcp")
	v.SetDefault("auth.master_secret", "")
	v.SetDefault("auth.max_clock_skew", "60s")
	v.SetDefault("auth.nonce_ttl", "120s")
	v.SetDefault("admin.api_key_hash", "")
	v.SetDefault("gateway.name", "paygate")
	v.SetDefault("gateway.version", "1.0.0")
	v.SetDefault("gateway.payee_id", "provider")
	v.SetDefault("gateway.operation_timeout", "30s")
	v.SetDefault("gateway.max_body_bytes", 1<<20)
	v.SetDefault("settlement.timeout", "5s")
	v.SetDefault("settlement.max_retries", 3)
	v.SetDefault("settlement.refund_on_failure", false)
	v.SetDefault("settlement.cache_ttl", "24h")
	v.SetDefault("ledger.auto_provision", false)
	v.SetDefault("ledger.initial_balance", "0")
	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.limit", 120)
	v.SetDefault("ratelimit.window", "1m")
	v.SetDefault("webhook.url", "")
	v.SetDefault("webhook.max_retries", 3)
	v.SetDefault("webhook.timeout", "10s")
}

// Validate rejects configurations the gateway cannot run with.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "memory", "postgres":
	default:
		return fmt.Errorf("storage.driver must be memory or postgres, got %q", c.Storage.Driver)
	}
	if c.Gateway.PayeeID == "" {
		return errors.New("gateway.payee_id is required")
	}
	if c.Settlement.Timeout <= 0 {
		return errors.New("settlement.timeout must be positive")
	}
	if c.Settlement.MaxRetries < 0 {
		return errors.New("settlement.max_retries must not be negative")
	}
	seen := make(map[string]struct{}, len(c.Pricing.Operations))
	for _, op := range c.Pricing.Operations {
		if op.Name == "" {
			return errors.New("pricing.operations: name is required")
		}
		if _, dup := seen[op.Name]; dup {
			return fmt.Errorf("pricing.operations: duplicate operation %q", op.Name)
		}
		seen[op.Name] = struct{}{}
	}
	return nil
}
