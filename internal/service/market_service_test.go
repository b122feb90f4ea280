package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foresightlabs/foresight/internal/domain"
)

func TestCreateMarketSeedsMechanismState(t *testing.T) {
	e := newTestEnv(t, RiskConfig{})
	ctx := context.Background()

	pm := e.newMarket(t, CreateMarketRequest{
		Title:     "Parimutuel",
		Outcomes:  []string{"A", "B", "C"},
		Mechanism: "parimutuel",
	})
	assert.Equal(t, []float64{0, 0, 0}, pm.Pool)
	assert.Equal(t, domain.MarketStatusOpen, pm.Status)

	amm := e.newMarket(t, CreateMarketRequest{
		Title:     "AMM",
		Outcomes:  []string{"Yes", "No"},
		Mechanism: "cpmm",
	})
	assert.Equal(t, []float64{100, 100}, amm.Pool, "cpmm reserves are seeded, never zero")

	lmsr := e.newMarket(t, CreateMarketRequest{
		Title:     "LMSR",
		Outcomes:  []string{"A", "B"},
		Mechanism: "lmsr",
	})
	assert.Equal(t, 100.0, lmsr.LiquidityB, "liquidity b falls back to the configured default")

	_, err := e.markets.Create(ctx, CreateMarketRequest{
		Title:      "Explicit b",
		Outcomes:   []string{"A", "B"},
		Mechanism:  "lmsr",
		LiquidityB: 250,
	})
	require.NoError(t, err)
}

func TestCreateMarketValidation(t *testing.T) {
	e := newTestEnv(t, RiskConfig{TopicDenylist: []string{"politics"}})
	ctx := context.Background()

	cases := []struct {
		name string
		req  CreateMarketRequest
		want error
	}{
		{"missing title", CreateMarketRequest{Outcomes: []string{"A", "B"}, Mechanism: "parimutuel"}, domain.ErrInvalidRequest},
		{"single outcome", CreateMarketRequest{Title: "t", Outcomes: []string{"A"}, Mechanism: "parimutuel"}, domain.ErrInvalidRequest},
		{"unknown mechanism", CreateMarketRequest{Title: "t", Outcomes: []string{"A", "B"}, Mechanism: "vickrey"}, domain.ErrInvalidRequest},
		{"cpmm with three outcomes", CreateMarketRequest{Title: "t", Outcomes: []string{"A", "B", "C"}, Mechanism: "cpmm"}, domain.ErrInvalidRequest},
		{"negative lmsr b", CreateMarketRequest{Title: "t", Outcomes: []string{"A", "B"}, Mechanism: "lmsr", LiquidityB: -1}, domain.ErrInvalidRequest},
		{"denylisted topic", CreateMarketRequest{Title: "t", Category: "Politics", Outcomes: []string{"A", "B"}, Mechanism: "parimutuel"}, domain.ErrComplianceRejected},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.markets.Create(ctx, tc.req)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestMarketCloseTransitions(t *testing.T) {
	e := newTestEnv(t, RiskConfig{})
	ctx := context.Background()

	market := binaryParimutuel(t, e)

	closed, err := e.markets.Close(ctx, market.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MarketStatusClosed, closed.Status)

	// Closing again is a no-op.
	again, err := e.markets.Close(ctx, market.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MarketStatusClosed, again.Status)

	_, err = e.settlements.Settle(ctx, market.ID, 0)
	require.NoError(t, err)

	// Settled is terminal: no regression to closed.
	_, err = e.markets.Close(ctx, market.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestCloseExpiredSweepsPastDeadlines(t *testing.T) {
	e := newTestEnv(t, RiskConfig{})
	ctx := context.Background()

	past := time.Now().UTC().Add(-time.Hour)
	future := time.Now().UTC().Add(time.Hour)

	expired := e.newMarket(t, CreateMarketRequest{
		Title:     "Expired",
		Outcomes:  []string{"A", "B"},
		Mechanism: "parimutuel",
		ClosesAt:  &past,
	})
	open := e.newMarket(t, CreateMarketRequest{
		Title:     "Still open",
		Outcomes:  []string{"A", "B"},
		Mechanism: "parimutuel",
		ClosesAt:  &future,
	})

	n, err := e.markets.CloseExpired(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	m, err := e.markets.Get(ctx, expired.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MarketStatusClosed, m.Status)

	m, err = e.markets.Get(ctx, open.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MarketStatusOpen, m.Status)
}

func TestMarketPricesServedAndCached(t *testing.T) {
	e := newTestEnv(t, RiskConfig{DailySpendCap: 500})
	ctx := context.Background()

	user := e.newUser(t, "alice")
	market := binaryParimutuel(t, e)

	probs, _, err := e.markets.Prices(ctx, market.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, probs[0], 1e-9, "empty parimutuel pool is uniform")

	_, err = e.trades.Execute(ctx, user.ID, market.ID, 0, 10)
	require.NoError(t, err)

	probs, _, err = e.markets.Prices(ctx, market.ID)
	require.NoError(t, err)
	assert.Greater(t, probs[0], 0.9, "trade execution refreshes the cached vector")

	var sum float64
	for _, p := range probs {
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestMarketListFiltersByStatus(t *testing.T) {
	e := newTestEnv(t, RiskConfig{})
	ctx := context.Background()

	a := binaryParimutuel(t, e)
	b := e.newMarket(t, CreateMarketRequest{
		Title:     "Second",
		Outcomes:  []string{"A", "B"},
		Mechanism: "parimutuel",
	})
	_, err := e.markets.Close(ctx, b.ID)
	require.NoError(t, err)

	open, err := e.markets.List(ctx, domain.MarketStatusOpen, domain.ListOpts{})
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, a.ID, open[0].ID)

	all, err := e.markets.List(ctx, "", domain.ListOpts{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestMarketDetailIncludesParimutuelPayouts(t *testing.T) {
	e := newTestEnv(t, RiskConfig{DailySpendCap: 1000})
	ctx := context.Background()

	m := binaryParimutuel(t, e)
	u := e.newUser(t, "alice")
	_, err := e.trades.Execute(ctx, u.ID, m.ID, 0, 30)
	require.NoError(t, err)
	_, err = e.trades.Execute(ctx, u.ID, m.ID, 1, 10)
	require.NoError(t, err)

	detail, err := e.markets.Detail(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, m.ID, detail.Market.ID)
	require.Len(t, detail.Probs, 2)
	assert.Greater(t, detail.Probs[0], detail.Probs[1])

	// Pool [30, 10]: a point on Yes returns 40/30, on No 40/10.
	require.Len(t, detail.PayoutPerPoint, 2)
	assert.InDelta(t, 40.0/30.0, detail.PayoutPerPoint[0], 1e-9)
	assert.InDelta(t, 4.0, detail.PayoutPerPoint[1], 1e-9)
}

func TestMarketDetailOmitsPayoutsForLMSR(t *testing.T) {
	e := newTestEnv(t, RiskConfig{})
	ctx := context.Background()

	m := e.newMarket(t, CreateMarketRequest{
		Title:     "Which team wins?",
		Outcomes:  []string{"A", "B", "C"},
		Mechanism: "lmsr",
	})

	detail, err := e.markets.Detail(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, detail.Probs, 3)
	assert.Nil(t, detail.PayoutPerPoint)
}
