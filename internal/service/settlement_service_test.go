package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foresightlabs/foresight/internal/domain"
)

func TestSettleParimutuelPaysWinnersAndScoresEveryone(t *testing.T) {
	e := newTestEnv(t, RiskConfig{DailySpendCap: 500})
	ctx := context.Background()

	alice := e.newUser(t, "alice")
	bob := e.newUser(t, "bob")
	carol := e.newUser(t, "carol")
	market := binaryParimutuel(t, e)

	// Pool ends [150, 100]: alice and bob back Yes, carol backs No.
	_, err := e.trades.Execute(ctx, alice.ID, market.ID, 0, 100)
	require.NoError(t, err)
	_, err = e.trades.Execute(ctx, bob.ID, market.ID, 0, 50)
	require.NoError(t, err)
	_, err = e.trades.Execute(ctx, carol.ID, market.ID, 1, 100)
	require.NoError(t, err)

	rec, err := e.settlements.Settle(ctx, market.ID, 0)
	require.NoError(t, err)

	assert.Equal(t, 0, rec.Outcome)
	assert.Equal(t, 250.0, rec.TotalPool)
	require.Len(t, rec.Payouts, 2, "only the two Yes holders are paid")

	// multiplier = 250/150; floor(100*5/3)=166, floor(50*5/3)=83.
	assert.Equal(t, 166.0, payoutFor(rec, alice.ID))
	assert.Equal(t, 83.0, payoutFor(rec, bob.ID))
	assert.Equal(t, 249.0, rec.TotalPaid)
	assert.LessOrEqual(t, rec.TotalPaid, rec.TotalPool, "settlement redistributes, never creates value")

	a, err := e.users.Get(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 1000.0-100+166, a.Balance)

	c, err := e.users.Get(ctx, carol.ID)
	require.NoError(t, err)
	assert.Equal(t, 900.0, c.Balance, "losers are not paid")

	// Every holder is scored, losers included.
	for _, id := range []string{alice.ID, bob.ID, carol.ID} {
		u, err := e.users.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, int64(1), u.ReputationCount)
		hist, err := e.users.ReputationHistory(ctx, id, domain.ListOpts{})
		require.NoError(t, err)
		require.Len(t, hist, 1)
		assert.Equal(t, hist[0].Delta, u.Reputation)
	}

	m, err := e.markets.Get(ctx, market.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MarketStatusSettled, m.Status)
	require.NotNil(t, m.ResolvedOutcome)
	assert.Equal(t, 0, *m.ResolvedOutcome)

	// Winners carry realized profit; the loser's position stays unprofited.
	pa, err := e.stores.Positions.Get(ctx, alice.ID, market.ID)
	require.NoError(t, err)
	require.NotNil(t, pa.RealizedProfit)
	assert.Equal(t, 66.0, *pa.RealizedProfit)
}

func TestSettleIsIdempotent(t *testing.T) {
	e := newTestEnv(t, RiskConfig{DailySpendCap: 500})
	ctx := context.Background()

	alice := e.newUser(t, "alice")
	market := binaryParimutuel(t, e)
	_, err := e.trades.Execute(ctx, alice.ID, market.ID, 0, 100)
	require.NoError(t, err)

	first, err := e.settlements.Settle(ctx, market.ID, 0)
	require.NoError(t, err)

	balanceAfterFirst, err := e.users.Get(ctx, alice.ID)
	require.NoError(t, err)

	// Retry with a different outcome index: the stored record wins.
	second, err := e.settlements.Settle(ctx, market.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Outcome, second.Outcome)
	assert.Equal(t, first.TotalPaid, second.TotalPaid)

	u, err := e.users.Get(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, balanceAfterFirst.Balance, u.Balance, "retried settlement never double-pays")
	assert.Equal(t, int64(1), u.ReputationCount, "retried settlement never double-scores")
}

func TestSettleLMSRPaysOnePointPerShare(t *testing.T) {
	e := newTestEnv(t, RiskConfig{DailySpendCap: 500})
	ctx := context.Background()

	alice := e.newUser(t, "alice")
	market := e.newMarket(t, CreateMarketRequest{
		Title:      "Binary scoring rule",
		Outcomes:   []string{"Yes", "No"},
		Mechanism:  "lmsr",
		LiquidityB: 200,
	})

	res, err := e.trades.Execute(ctx, alice.ID, market.ID, 0, 0.5)
	require.NoError(t, err)

	rec, err := e.settlements.Settle(ctx, market.ID, 0)
	require.NoError(t, err)
	require.Len(t, rec.Payouts, 1)
	assert.Equal(t, 0.5, rec.Payouts[0].Amount, "lmsr shares pay 1:1, unfloored")

	u, err := e.users.Get(ctx, alice.ID)
	require.NoError(t, err)
	assert.InDelta(t, 1000.0-res.Trade.Cost+0.5, u.Balance, 1e-9)
}

func TestSettleWinningPoolEmptyForfeitsStake(t *testing.T) {
	e := newTestEnv(t, RiskConfig{DailySpendCap: 500})
	ctx := context.Background()

	alice := e.newUser(t, "alice")
	market := binaryParimutuel(t, e)
	_, err := e.trades.Execute(ctx, alice.ID, market.ID, 1, 100)
	require.NoError(t, err)

	// Nobody backed outcome 0; all stake is forfeit.
	rec, err := e.settlements.Settle(ctx, market.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, rec.Payouts)
	assert.Equal(t, 0.0, rec.TotalPaid)

	u, err := e.users.Get(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 900.0, u.Balance)
	assert.Equal(t, int64(1), u.ReputationCount, "forfeited holders are still scored")
}

func TestSettleRejectsOutOfRangeOutcome(t *testing.T) {
	e := newTestEnv(t, RiskConfig{DailySpendCap: 500})
	ctx := context.Background()

	market := binaryParimutuel(t, e)
	_, err := e.settlements.Settle(ctx, market.ID, 5)
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	m, err := e.markets.Get(ctx, market.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MarketStatusOpen, m.Status, "rejected settlement leaves the market untouched")
}

func TestSettleClosedMarket(t *testing.T) {
	e := newTestEnv(t, RiskConfig{DailySpendCap: 500})
	ctx := context.Background()

	alice := e.newUser(t, "alice")
	market := binaryParimutuel(t, e)
	_, err := e.trades.Execute(ctx, alice.ID, market.ID, 0, 40)
	require.NoError(t, err)
	_, err = e.markets.Close(ctx, market.ID)
	require.NoError(t, err)

	rec, err := e.settlements.Settle(ctx, market.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 40.0, rec.TotalPaid)
}

func payoutFor(rec domain.SettlementRecord, userID string) float64 {
	for _, p := range rec.Payouts {
		if p.UserID == userID {
			return p.Amount
		}
	}
	return -1
}
