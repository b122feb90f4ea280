package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/foresightlabs/foresight/internal/blob/s3"
	"github.com/foresightlabs/foresight/internal/cache/local"
	"github.com/foresightlabs/foresight/internal/cache/redis"
	"github.com/foresightlabs/foresight/internal/config"
	"github.com/foresightlabs/foresight/internal/domain"
	"github.com/foresightlabs/foresight/internal/notify"
	"github.com/foresightlabs/foresight/internal/service"
	"github.com/foresightlabs/foresight/internal/store/memory"
	"github.com/foresightlabs/foresight/internal/store/postgres"
)

// Dependencies bundles every concrete implementation the application modes
// need. It is constructed by Wire and torn down by the returned cleanup
// function.
type Dependencies struct {
	// Persistence
	Tx     domain.Transactor
	Stores domain.TxStores

	// Coordination
	Locks      domain.LockManager
	PriceCache domain.PriceCache
	Bus        domain.SignalBus

	// Ledger archival (nil unless archive storage is enabled)
	Archiver domain.Archiver

	// Operator alerts
	Notifier *notify.Notifier

	// Services
	Risk        *service.RiskService
	Markets     *service.MarketService
	Trades      *service.TradeService
	Settlements *service.SettlementService
	Users       *service.UserService
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Persistence: postgres or in-process memory ---
	switch cfg.Database.Driver {
	case "postgres":
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Database.DSN,
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			Database: cfg.Database.Database,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			SSLMode:  cfg.Database.SSLMode,
			MaxConns: cfg.Database.PoolMaxConns,
			MinConns: cfg.Database.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Database.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.Tx = postgres.NewTransactor(pool)
		deps.Stores = postgres.Stores(pool)

	case "memory":
		store := memory.New()
		deps.Tx = store
		deps.Stores = store.Stores()

	default:
		cleanup()
		return nil, nil, fmt.Errorf("wire: unknown database driver %q", cfg.Database.Driver)
	}

	// --- Coordination: redis or in-process fallbacks ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.Locks = redis.NewLockManager(redisClient)
		deps.PriceCache = redis.NewPriceCache(redisClient)
		deps.Bus = redis.NewSignalBus(redisClient)
	} else {
		deps.Locks = local.NewLockManager()
		deps.PriceCache = local.NewPriceCache()
		deps.Bus = local.NewSignalBus()
	}

	// --- Object storage for ledger archival ---
	if cfg.Archive.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.Archive.Endpoint,
			Region:         cfg.Archive.Region,
			Bucket:         cfg.Archive.Bucket,
			AccessKey:      cfg.Archive.AccessKey,
			SecretKey:      cfg.Archive.SecretKey,
			UseSSL:         cfg.Archive.UseSSL,
			ForcePathStyle: cfg.Archive.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: archive storage: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.Archiver = s3blob.NewArchiver(
			s3blob.NewWriter(s3Client),
			s3blob.NewReader(s3Client),
			deps.Stores.Trades,
			deps.Stores.Reputation,
			deps.Stores.Markets,
			deps.Stores.Settlements,
			deps.Stores.Audit,
		)
	}

	// --- Operator alerts ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- Services ---
	deps.Risk = service.NewRiskService(service.RiskConfig{
		DailySpendCap: cfg.Engine.DailySpendCap,
		TopicDenylist: cfg.Engine.TopicDenylist,
	}, logger)

	deps.Markets = service.NewMarketService(
		deps.Tx, deps.Stores, deps.Risk, deps.PriceCache, deps.Bus,
		service.MarketConfig{
			SeedLiquidity: cfg.Engine.SeedLiquidity,
			LMSRLiquidity: cfg.Engine.LMSRLiquidity,
			SlippageBound: cfg.Engine.SlippageBound,
		}, logger)

	deps.Trades = service.NewTradeService(
		deps.Tx, deps.Stores, deps.Locks, deps.Risk, deps.PriceCache, deps.Bus,
		service.TradeConfig{
			SlippageBound: cfg.Engine.SlippageBound,
			LockTTL:       cfg.Engine.LockTTL.Duration,
			LockRetries:   cfg.Engine.LockRetries,
		}, logger)

	deps.Settlements = service.NewSettlementService(
		deps.Tx, deps.Stores, deps.Locks, deps.PriceCache, deps.Bus,
		service.SettlementConfig{
			SlippageBound: cfg.Engine.SlippageBound,
			LockTTL:       cfg.Engine.LockTTL.Duration,
			LockRetries:   cfg.Engine.LockRetries,
		}, logger)

	deps.Users = service.NewUserService(
		deps.Tx, deps.Stores, deps.Risk,
		service.UserConfig{
			StartingBalance: cfg.Engine.StartingBalance,
		}, logger)

	return deps, cleanup, nil
}
