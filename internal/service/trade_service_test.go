package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foresightlabs/foresight/internal/domain"
)

func TestTradeExecuteParimutuel(t *testing.T) {
	e := newTestEnv(t, RiskConfig{DailySpendCap: 500})
	ctx := context.Background()

	user := e.newUser(t, "alice")
	market := binaryParimutuel(t, e)

	res, err := e.trades.Execute(ctx, user.ID, market.ID, 0, 50)
	require.NoError(t, err)

	assert.Equal(t, 50.0, res.Trade.Cost)
	assert.Equal(t, 50.0, res.Trade.Quantity)
	assert.Equal(t, 950.0, res.NewBalance)
	assert.Equal(t, []float64{50, 0}, res.Holdings)

	got, err := e.markets.Get(ctx, market.ID)
	require.NoError(t, err)
	assert.Equal(t, []float64{50, 0}, got.Pool)

	u, err := e.users.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 950.0, u.Balance)
}

func TestTradeExecuteRejectsInvalidRequests(t *testing.T) {
	e := newTestEnv(t, RiskConfig{DailySpendCap: 500})
	ctx := context.Background()

	user := e.newUser(t, "alice")
	market := binaryParimutuel(t, e)

	_, err := e.trades.Execute(ctx, user.ID, market.ID, 0, -5)
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	_, err = e.trades.Execute(ctx, user.ID, market.ID, 7, 10)
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	_, err = e.trades.Execute(ctx, user.ID, "no-such-market", 0, 10)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTradeExecuteInsufficientBalanceLeavesStateUnchanged(t *testing.T) {
	e := newTestEnv(t, RiskConfig{DailySpendCap: 5000})
	ctx := context.Background()

	user := e.newUser(t, "alice")
	market := binaryParimutuel(t, e)

	_, err := e.trades.Execute(ctx, user.ID, market.ID, 0, 2000)
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)

	got, err := e.markets.Get(ctx, market.ID)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0}, got.Pool, "pool must be untouched by a rejected trade")

	u, err := e.users.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1000.0, u.Balance, "balance must be untouched by a rejected trade")

	_, err = e.stores.Positions.Get(ctx, user.ID, market.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound, "no position may be created by a rejected trade")

	trades, err := e.users.Trades(ctx, user.ID, domain.ListOpts{})
	require.NoError(t, err)
	assert.Empty(t, trades, "no trade may be appended by a rejected trade")
}

func TestTradeExecuteRejectsClosedMarket(t *testing.T) {
	e := newTestEnv(t, RiskConfig{DailySpendCap: 500})
	ctx := context.Background()

	user := e.newUser(t, "alice")
	market := binaryParimutuel(t, e)
	_, err := e.markets.Close(ctx, market.ID)
	require.NoError(t, err)

	_, err = e.trades.Execute(ctx, user.ID, market.ID, 0, 10)
	assert.ErrorIs(t, err, domain.ErrMarketNotOpen)
}

func TestTradeExecuteDailySpendCap(t *testing.T) {
	e := newTestEnv(t, RiskConfig{DailySpendCap: 100})
	ctx := context.Background()

	user := e.newUser(t, "alice")
	market := binaryParimutuel(t, e)

	_, err := e.trades.Execute(ctx, user.ID, market.ID, 0, 80)
	require.NoError(t, err)

	_, err = e.trades.Execute(ctx, user.ID, market.ID, 1, 30)
	require.ErrorIs(t, err, domain.ErrLimitExceeded)

	got, err := e.markets.Get(ctx, market.ID)
	require.NoError(t, err)
	assert.Equal(t, []float64{80, 0}, got.Pool)

	// Exactly reaching the cap is allowed.
	_, err = e.trades.Execute(ctx, user.ID, market.ID, 1, 20)
	assert.NoError(t, err)
}

func TestTradeExecuteComplianceRejected(t *testing.T) {
	e := newTestEnv(t, RiskConfig{DailySpendCap: 500, TopicDenylist: []string{"politics"}})
	ctx := context.Background()

	user := e.newUser(t, "alice")
	// Seeded directly: a denylisted market could predate a denylist change.
	market := e.seedMarket(t, domain.Market{
		ID:        "m-politics",
		Title:     "Election winner",
		Category:  "Politics",
		Outcomes:  []string{"A", "B"},
		Mechanism: domain.MechanismParimutuel,
		Pool:      []float64{0, 0},
		Status:    domain.MarketStatusOpen,
	})

	_, err := e.trades.Execute(ctx, user.ID, market.ID, 0, 10)
	assert.ErrorIs(t, err, domain.ErrComplianceRejected)
}

func TestTradeExecuteSlippageExceededCPMM(t *testing.T) {
	e := newTestEnv(t, RiskConfig{DailySpendCap: 500})
	ctx := context.Background()

	user := e.newUser(t, "alice")
	market := e.newMarket(t, CreateMarketRequest{
		Title:     "Binary AMM",
		Outcomes:  []string{"Yes", "No"},
		Mechanism: "cpmm",
	})

	// 100/100 reserves: a 10-point buy moves the price far past 0.5%.
	_, err := e.trades.Execute(ctx, user.ID, market.ID, 0, 10)
	require.ErrorIs(t, err, domain.ErrSlippageExceeded)

	got, err := e.markets.Get(ctx, market.ID)
	require.NoError(t, err)
	assert.Equal(t, []float64{100, 100}, got.Pool)

	// A small enough buy stays inside the bound.
	res, err := e.trades.Execute(ctx, user.ID, market.ID, 0, 0.4)
	require.NoError(t, err)
	assert.Greater(t, res.Trade.Quantity, 0.0)
}

func TestTradeExecuteConcurrentTradesSerialize(t *testing.T) {
	e := newTestEnv(t, RiskConfig{DailySpendCap: 500})
	ctx := context.Background()

	alice := e.newUser(t, "alice")
	bob := e.newUser(t, "bob")
	market := e.newMarket(t, CreateMarketRequest{
		Title:     "Binary AMM",
		Outcomes:  []string{"Yes", "No"},
		Mechanism: "cpmm",
	})

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, userID := range []string{alice.ID, bob.ID} {
		wg.Add(1)
		go func(i int, userID string) {
			defer wg.Done()
			_, errs[i] = e.trades.Execute(ctx, userID, market.ID, 0, 0.4)
		}(i, userID)
	}
	wg.Wait()
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	// Serialized execution preserves the product invariant across both
	// trades; two quotes against the same stale state would not.
	got, err := e.markets.Get(ctx, market.ID)
	require.NoError(t, err)
	require.Len(t, got.Pool, 2)

	expected := 100.0 * 100.0
	step1Yes := 100.0 + 0.4
	step1No := expected / step1Yes
	step2Yes := step1Yes + 0.4
	step2No := (step1Yes * step1No) / step2Yes

	assert.InDelta(t, step2Yes, got.Pool[0], 1e-9)
	assert.InDelta(t, step2No, got.Pool[1], 1e-9)
}

func TestTradeExecuteLMSRChargesCostFunction(t *testing.T) {
	e := newTestEnv(t, RiskConfig{DailySpendCap: 500})
	ctx := context.Background()

	user := e.newUser(t, "alice")
	market := e.newMarket(t, CreateMarketRequest{
		Title:      "Three-way",
		Outcomes:   []string{"A", "B", "C"},
		Mechanism:  "lmsr",
		LiquidityB: 100,
	})

	res, err := e.trades.Execute(ctx, user.ID, market.ID, 1, 0.5)
	require.NoError(t, err)
	assert.Equal(t, 0.5, res.Trade.Quantity)
	assert.Greater(t, res.Trade.Cost, 0.0)
	assert.Less(t, res.Trade.Cost, 0.5, "lmsr cost at ~1/3 probability is well under 1 point per share")

	got, err := e.markets.Get(ctx, market.ID)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0.5, 0}, got.Pool)
}

func TestTradeQuoteDoesNotMutate(t *testing.T) {
	e := newTestEnv(t, RiskConfig{DailySpendCap: 500})
	ctx := context.Background()

	market := binaryParimutuel(t, e)

	q, err := e.trades.Quote(ctx, market.ID, 0, 25)
	require.NoError(t, err)
	assert.Equal(t, 25.0, q.Cost)

	got, err := e.markets.Get(ctx, market.ID)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0}, got.Pool)
}
