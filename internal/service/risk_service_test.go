package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foresightlabs/foresight/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTopicAllowed(t *testing.T) {
	risk := NewRiskService(RiskConfig{
		TopicDenylist: []string{"politics", "National_Security"},
	}, discardLogger())

	assert.True(t, risk.TopicAllowed("weather"))
	assert.True(t, risk.TopicAllowed(""), "uncategorized markets are allowed")
	assert.False(t, risk.TopicAllowed("politics"))
	assert.False(t, risk.TopicAllowed("POLITICS"), "matching is case-insensitive")
	assert.False(t, risk.TopicAllowed("national_security"))
	assert.True(t, risk.TopicAllowed("political"), "matching is exact, not substring")
}

func TestCheckSpendWindow(t *testing.T) {
	e := newTestEnv(t, RiskConfig{DailySpendCap: 100})
	ctx := context.Background()
	now := time.Now().UTC()

	// One trade well inside the window, one just outside it.
	require.NoError(t, e.stores.Trades.Create(ctx, domain.Trade{
		ID: "t1", UserID: "u1", MarketID: "m1", Cost: 60,
		CreatedAt: now.Add(-1 * time.Hour),
	}))
	require.NoError(t, e.stores.Trades.Create(ctx, domain.Trade{
		ID: "t2", UserID: "u1", MarketID: "m1", Cost: 90,
		CreatedAt: now.Add(-25 * time.Hour),
	}))

	// 60 in-window + 30 is under the cap; the 25h-old trade does not count.
	assert.NoError(t, e.risk.CheckSpend(ctx, e.stores.Trades, "u1", 30, now))

	// 60 + 50 crosses it.
	err := e.risk.CheckSpend(ctx, e.stores.Trades, "u1", 50, now)
	assert.ErrorIs(t, err, domain.ErrLimitExceeded)

	spent, remaining, err := e.risk.DailySpend(ctx, e.stores.Trades, "u1", now)
	require.NoError(t, err)
	assert.Equal(t, 60.0, spent)
	assert.Equal(t, 40.0, remaining)
}

func TestCheckSpendDisabledCap(t *testing.T) {
	e := newTestEnv(t, RiskConfig{DailySpendCap: 0})
	ctx := context.Background()
	assert.NoError(t, e.risk.CheckSpend(ctx, e.stores.Trades, "u1", 1e9, time.Now().UTC()))
}
