// Package config defines the top-level configuration for the foresight
// market simulator and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by FORESIGHT_* environment
// variables.
type Config struct {
	Engine   EngineConfig   `toml:"engine"`
	Database DatabaseConfig `toml:"database"`
	Redis    RedisConfig    `toml:"redis"`
	Archive  ArchiveConfig  `toml:"archive"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// EngineConfig holds the market-engine tunables.
type EngineConfig struct {
	// DailySpendCap is the maximum Insight Points a user may commit across
	// all markets in any trailing 24-hour window.
	DailySpendCap float64 `toml:"daily_spend_cap"`
	// SlippageBound caps the fractional price impact of a single CPMM or
	// LMSR trade.
	SlippageBound float64 `toml:"slippage_bound"`
	// StartingBalance is the Insight Points balance granted to new users.
	StartingBalance float64 `toml:"starting_balance"`
	// SeedLiquidity seeds both reserves of a new CPMM market. Must be
	// positive: a zero reserve is undefined for the constant-product rule.
	SeedLiquidity float64 `toml:"seed_liquidity"`
	// LMSRLiquidity is the default liquidity parameter b for LMSR markets
	// created without an explicit value.
	LMSRLiquidity float64 `toml:"lmsr_liquidity"`
	// TopicDenylist lists market categories that are refused at creation and
	// trade time. Matching is exact and case-insensitive.
	TopicDenylist []string `toml:"topic_denylist"`
	// LockTTL bounds how long a per-market lock may be held.
	LockTTL duration `toml:"lock_ttl"`
	// LockRetries is how many times a contended trade is retried before
	// surfacing unavailability.
	LockRetries int `toml:"lock_retries"`
	// CloseInterval is how often the deadline closer sweeps for expired
	// markets.
	CloseInterval duration `toml:"close_interval"`
}

// DatabaseConfig holds PostgreSQL connection parameters. Driver "memory"
// selects the in-process store for demos and tests.
type DatabaseConfig struct {
	Driver        string `toml:"driver"` // "postgres" or "memory"
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters. When disabled, locking and
// price caching fall back to in-process implementations.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// ArchiveConfig holds S3-compatible object storage parameters for ledger
// archival of settled markets.
type ArchiveConfig struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	RetentionDays  int    `toml:"retention_days"`
}

// ServerConfig holds HTTP server parameters. AdminKey (or its bcrypt hash)
// guards the settlement and market-administration endpoints.
type ServerConfig struct {
	Port         int      `toml:"port"`
	CORSOrigins  []string `toml:"cors_origins"`
	AdminKey     string   `toml:"admin_key"`
	AdminKeyHash string   `toml:"admin_key_hash"`
}

// NotifyConfig holds operator alert channels. Senders with empty credentials
// are not registered; Events limits which engine events are forwarded (empty
// forwards all).
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// DefaultDenylist is the sensitive-topic taxonomy refused by default.
var DefaultDenylist = []string{
	"politics",
	"judicial",
	"national_security",
	"public_health_emergency",
	"stock_price",
	"derivatives",
	"individual_private",
	"sports_betting",
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Engine: EngineConfig{
			DailySpendCap:   500,
			SlippageBound:   0.005,
			StartingBalance: 1000,
			SeedLiquidity:   100,
			LMSRLiquidity:   100,
			TopicDenylist:   append([]string(nil), DefaultDenylist...),
			LockTTL:         duration{10 * time.Second},
			LockRetries:     3,
			CloseInterval:   duration{time.Minute},
		},
		Database: DatabaseConfig{
			Driver:        "postgres",
			Host:          "localhost",
			Port:          5432,
			Database:      "foresight",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
		},
		Archive: ArchiveConfig{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "foresight-ledger",
			UseSSL:         false,
			ForcePathStyle: true,
			RetentionDays:  90,
		},
		Server: ServerConfig{
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Mode:     "server",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"server":  true,
	"archive": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, archive)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Engine
	if c.Engine.DailySpendCap <= 0 {
		errs = append(errs, "engine: daily_spend_cap must be > 0")
	}
	if c.Engine.SlippageBound <= 0 || c.Engine.SlippageBound >= 1 {
		errs = append(errs, "engine: slippage_bound must be in (0, 1)")
	}
	if c.Engine.StartingBalance < 0 {
		errs = append(errs, "engine: starting_balance must be >= 0")
	}
	if c.Engine.SeedLiquidity <= 0 {
		errs = append(errs, "engine: seed_liquidity must be > 0 (a zero CPMM reserve is degenerate)")
	}
	if c.Engine.LMSRLiquidity <= 0 {
		errs = append(errs, "engine: lmsr_liquidity must be > 0")
	}
	if c.Engine.LockTTL.Duration <= 0 {
		errs = append(errs, "engine: lock_ttl must be > 0")
	}
	if c.Engine.LockRetries < 1 {
		errs = append(errs, "engine: lock_retries must be >= 1")
	}

	// Database
	switch c.Database.Driver {
	case "memory":
		// no connection parameters required
	case "postgres":
		if strings.TrimSpace(c.Database.DSN) == "" {
			if c.Database.Host == "" {
				errs = append(errs, "database: host must not be empty (or set database.dsn)")
			}
			if c.Database.Port <= 0 || c.Database.Port > 65535 {
				errs = append(errs, fmt.Sprintf("database: port must be 1-65535, got %d", c.Database.Port))
			}
			if c.Database.Database == "" {
				errs = append(errs, "database: database must not be empty")
			}
		}
		if c.Database.PoolMaxConns < 1 {
			errs = append(errs, "database: pool_max_conns must be >= 1")
		}
		if c.Database.PoolMinConns < 0 {
			errs = append(errs, "database: pool_min_conns must be >= 0")
		}
		if c.Database.PoolMinConns > c.Database.PoolMaxConns {
			errs = append(errs, "database: pool_min_conns must not exceed pool_max_conns")
		}
	default:
		errs = append(errs, fmt.Sprintf("database: unknown driver %q (valid: postgres, memory)", c.Database.Driver))
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty when enabled")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// Archive
	if c.Archive.Enabled {
		if c.Archive.Endpoint == "" {
			errs = append(errs, "archive: endpoint must not be empty when enabled")
		}
		if c.Archive.Bucket == "" {
			errs = append(errs, "archive: bucket must not be empty when enabled")
		}
		if c.Archive.Region == "" {
			errs = append(errs, "archive: region must not be empty when enabled")
		}
	}
	if c.Mode == "archive" && !c.Archive.Enabled {
		errs = append(errs, "archive mode requires archive.enabled = true")
	}

	// Server
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.AdminKey != "" && c.Server.AdminKeyHash != "" {
		errs = append(errs, "server: set admin_key or admin_key_hash, not both")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
