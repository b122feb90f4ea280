package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies FORESIGHT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load. A missing file is not an
// error: defaults plus environment overrides apply.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known FORESIGHT_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Engine ──
	setFloat64(&cfg.Engine.DailySpendCap, "FORESIGHT_ENGINE_DAILY_SPEND_CAP")
	setFloat64(&cfg.Engine.SlippageBound, "FORESIGHT_ENGINE_SLIPPAGE_BOUND")
	setFloat64(&cfg.Engine.StartingBalance, "FORESIGHT_ENGINE_STARTING_BALANCE")
	setFloat64(&cfg.Engine.SeedLiquidity, "FORESIGHT_ENGINE_SEED_LIQUIDITY")
	setFloat64(&cfg.Engine.LMSRLiquidity, "FORESIGHT_ENGINE_LMSR_LIQUIDITY")
	setStringSlice(&cfg.Engine.TopicDenylist, "FORESIGHT_ENGINE_TOPIC_DENYLIST")
	setDuration(&cfg.Engine.LockTTL, "FORESIGHT_ENGINE_LOCK_TTL")
	setInt(&cfg.Engine.LockRetries, "FORESIGHT_ENGINE_LOCK_RETRIES")
	setDuration(&cfg.Engine.CloseInterval, "FORESIGHT_ENGINE_CLOSE_INTERVAL")

	// ── Database ──
	setStr(&cfg.Database.Driver, "FORESIGHT_DATABASE_DRIVER")
	setStr(&cfg.Database.DSN, "FORESIGHT_DATABASE_DSN")
	setStr(&cfg.Database.Host, "FORESIGHT_DATABASE_HOST")
	setInt(&cfg.Database.Port, "FORESIGHT_DATABASE_PORT")
	setStr(&cfg.Database.Database, "FORESIGHT_DATABASE_DATABASE")
	setStr(&cfg.Database.User, "FORESIGHT_DATABASE_USER")
	setStr(&cfg.Database.Password, "FORESIGHT_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "FORESIGHT_DATABASE_SSL_MODE")
	setInt(&cfg.Database.PoolMaxConns, "FORESIGHT_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "FORESIGHT_DATABASE_POOL_MIN_CONNS")
	setBool(&cfg.Database.RunMigrations, "FORESIGHT_DATABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "FORESIGHT_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "FORESIGHT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "FORESIGHT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "FORESIGHT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "FORESIGHT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "FORESIGHT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "FORESIGHT_REDIS_TLS_ENABLED")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "FORESIGHT_ARCHIVE_ENABLED")
	setStr(&cfg.Archive.Endpoint, "FORESIGHT_ARCHIVE_ENDPOINT")
	setStr(&cfg.Archive.Region, "FORESIGHT_ARCHIVE_REGION")
	setStr(&cfg.Archive.Bucket, "FORESIGHT_ARCHIVE_BUCKET")
	setStr(&cfg.Archive.AccessKey, "FORESIGHT_ARCHIVE_ACCESS_KEY")
	setStr(&cfg.Archive.SecretKey, "FORESIGHT_ARCHIVE_SECRET_KEY")
	setBool(&cfg.Archive.UseSSL, "FORESIGHT_ARCHIVE_USE_SSL")
	setBool(&cfg.Archive.ForcePathStyle, "FORESIGHT_ARCHIVE_FORCE_PATH_STYLE")
	setInt(&cfg.Archive.RetentionDays, "FORESIGHT_ARCHIVE_RETENTION_DAYS")

	// ── Server ──
	setInt(&cfg.Server.Port, "FORESIGHT_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "FORESIGHT_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.AdminKey, "FORESIGHT_SERVER_ADMIN_KEY")
	setStr(&cfg.Server.AdminKeyHash, "FORESIGHT_SERVER_ADMIN_KEY_HASH")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "FORESIGHT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "FORESIGHT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "FORESIGHT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "FORESIGHT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "FORESIGHT_MODE")
	setStr(&cfg.LogLevel, "FORESIGHT_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
