package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/foresightlabs/foresight/internal/cache/local"
	"github.com/foresightlabs/foresight/internal/domain"
	"github.com/foresightlabs/foresight/internal/store/memory"
)

// testEnv wires the full service stack against the in-memory store and
// in-process lock/cache/bus implementations.
type testEnv struct {
	store       *memory.Store
	stores      domain.TxStores
	locks       domain.LockManager
	cache       domain.PriceCache
	bus         domain.SignalBus
	risk        *RiskService
	markets     *MarketService
	trades      *TradeService
	settlements *SettlementService
	users       *UserService
}

func newTestEnv(t *testing.T, riskCfg RiskConfig) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store := memory.New()
	stores := store.Stores()
	locks := local.NewLockManager()
	cache := local.NewPriceCache()
	bus := local.NewSignalBus()

	risk := NewRiskService(riskCfg, logger)
	marketCfg := MarketConfig{SeedLiquidity: 100, LMSRLiquidity: 100, SlippageBound: 0.005}
	tradeCfg := TradeConfig{
		SlippageBound:  0.005,
		LockTTL:        5 * time.Second,
		LockRetries:    50,
		LockRetryDelay: time.Millisecond,
	}
	settleCfg := SettlementConfig{
		SlippageBound:  0.005,
		LockTTL:        5 * time.Second,
		LockRetries:    50,
		LockRetryDelay: time.Millisecond,
	}

	return &testEnv{
		store:       store,
		stores:      stores,
		locks:       locks,
		cache:       cache,
		bus:         bus,
		risk:        risk,
		markets:     NewMarketService(store, stores, risk, cache, bus, marketCfg, logger),
		trades:      NewTradeService(store, stores, locks, risk, cache, bus, tradeCfg, logger),
		settlements: NewSettlementService(store, stores, locks, cache, bus, settleCfg, logger),
		users:       NewUserService(store, stores, risk, UserConfig{StartingBalance: 1000}, logger),
	}
}

func (e *testEnv) newUser(t *testing.T, username string) domain.User {
	t.Helper()
	u, err := e.users.Register(context.Background(), username)
	require.NoError(t, err)
	return u
}

func (e *testEnv) newMarket(t *testing.T, req CreateMarketRequest) domain.Market {
	t.Helper()
	m, err := e.markets.Create(context.Background(), req)
	require.NoError(t, err)
	return m
}

// seedMarket inserts a market directly, bypassing creation-time policy, for
// tests that exercise trade-time guards.
func (e *testEnv) seedMarket(t *testing.T, m domain.Market) domain.Market {
	t.Helper()
	now := time.Now().UTC()
	m.CreatedAt, m.UpdatedAt = now, now
	require.NoError(t, e.stores.Markets.Create(context.Background(), m))
	return m
}

func binaryParimutuel(t *testing.T, e *testEnv) domain.Market {
	t.Helper()
	return e.newMarket(t, CreateMarketRequest{
		Title:     "Will it rain tomorrow?",
		Category:  "weather",
		Outcomes:  []string{"Yes", "No"},
		Mechanism: "parimutuel",
	})
}
