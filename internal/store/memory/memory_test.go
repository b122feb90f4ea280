package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foresightlabs/foresight/internal/domain"
)

func testMarket(id string) domain.Market {
	now := time.Now().UTC()
	return domain.Market{
		ID:        id,
		Title:     "Will it rain tomorrow?",
		Outcomes:  []string{"Yes", "No"},
		Mechanism: domain.MechanismParimutuel,
		Pool:      []float64{0, 0},
		Status:    domain.MarketStatusOpen,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestWithinTxCommitsOnNil(t *testing.T) {
	ctx := context.Background()
	store := New()

	err := store.WithinTx(ctx, func(tx domain.TxStores) error {
		return tx.Markets.Create(ctx, testMarket("m1"))
	})
	require.NoError(t, err)

	got, err := store.Stores().Markets.GetByID(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "m1", got.ID)
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := New()
	boom := errors.New("boom")

	err := store.WithinTx(ctx, func(tx domain.TxStores) error {
		require.NoError(t, tx.Markets.Create(ctx, testMarket("m1")))
		require.NoError(t, tx.Users.Create(ctx, domain.User{ID: "u1", Username: "alice", Balance: 100}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	stores := store.Stores()
	_, err = stores.Markets.GetByID(ctx, "m1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = stores.Users.GetByID(ctx, "u1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMarketCreateRejectsDuplicate(t *testing.T) {
	ctx := context.Background()
	stores := New().Stores()

	require.NoError(t, stores.Markets.Create(ctx, testMarket("m1")))
	err := stores.Markets.Create(ctx, testMarket("m1"))
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestMarketUpdateMissing(t *testing.T) {
	ctx := context.Background()
	stores := New().Stores()

	err := stores.Markets.Update(ctx, testMarket("nope"))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMarketReadsDoNotAliasStoredState(t *testing.T) {
	ctx := context.Background()
	stores := New().Stores()
	require.NoError(t, stores.Markets.Create(ctx, testMarket("m1")))

	got, err := stores.Markets.GetByID(ctx, "m1")
	require.NoError(t, err)
	got.Pool[0] = 999

	again, err := stores.Markets.GetByID(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, 0.0, again.Pool[0])
}

func TestMarketListFiltersAndPaginates(t *testing.T) {
	ctx := context.Background()
	stores := New().Stores()

	for _, id := range []string{"m1", "m2", "m3"} {
		m := testMarket(id)
		m.CreatedAt = m.CreatedAt.Add(time.Duration(len(id)) * time.Second)
		require.NoError(t, stores.Markets.Create(ctx, m))
	}
	closed := testMarket("m4")
	closed.Status = domain.MarketStatusClosed
	require.NoError(t, stores.Markets.Create(ctx, closed))

	open, err := stores.Markets.List(ctx, domain.MarketStatusOpen, domain.ListOpts{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, open, 3)

	all, err := stores.Markets.List(ctx, "", domain.ListOpts{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	count, err := stores.Markets.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)
}

func TestListExpiredFindsPastDeadlines(t *testing.T) {
	ctx := context.Background()
	stores := New().Stores()
	now := time.Now().UTC()

	past := testMarket("past")
	deadline := now.Add(-time.Minute)
	past.ClosesAt = &deadline
	require.NoError(t, stores.Markets.Create(ctx, past))

	future := testMarket("future")
	later := now.Add(time.Hour)
	future.ClosesAt = &later
	require.NoError(t, stores.Markets.Create(ctx, future))

	open := testMarket("open-ended")
	require.NoError(t, stores.Markets.Create(ctx, open))

	expired, err := stores.Markets.ListExpired(ctx, now)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, "past", expired[0].ID)
}

func TestPositionUpsert(t *testing.T) {
	ctx := context.Background()
	stores := New().Stores()

	pos := domain.Position{UserID: "u1", MarketID: "m1", Holdings: []float64{10, 0}}
	require.NoError(t, stores.Positions.Upsert(ctx, pos))

	pos.Holdings = []float64{25, 5}
	require.NoError(t, stores.Positions.Upsert(ctx, pos))

	got, err := stores.Positions.Get(ctx, "u1", "m1")
	require.NoError(t, err)
	assert.Equal(t, []float64{25, 5}, got.Holdings)

	byMarket, err := stores.Positions.ListByMarket(ctx, "m1")
	require.NoError(t, err)
	assert.Len(t, byMarket, 1)
}

func TestTradeSumCostSince(t *testing.T) {
	ctx := context.Background()
	stores := New().Stores()
	now := time.Now().UTC()

	mk := func(id string, cost float64, at time.Time) domain.Trade {
		return domain.Trade{ID: id, UserID: "u1", MarketID: "m1", Cost: cost, CreatedAt: at}
	}
	require.NoError(t, stores.Trades.Create(ctx, mk("t1", 40, now.Add(-2*time.Hour))))
	require.NoError(t, stores.Trades.Create(ctx, mk("t2", 25, now.Add(-30*time.Minute))))
	require.NoError(t, stores.Trades.Create(ctx, mk("t3", 100, now.Add(-48*time.Hour))))
	require.NoError(t, stores.Trades.Create(ctx, domain.Trade{
		ID: "t4", UserID: "someone-else", MarketID: "m1", Cost: 500, CreatedAt: now,
	}))

	sum, err := stores.Trades.SumCostSince(ctx, "u1", now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 65.0, sum)
}

func TestTradeListBeforeIsStrict(t *testing.T) {
	ctx := context.Background()
	stores := New().Stores()
	cutoff := time.Now().UTC()

	require.NoError(t, stores.Trades.Create(ctx, domain.Trade{ID: "old", UserID: "u1", CreatedAt: cutoff.Add(-time.Hour)}))
	require.NoError(t, stores.Trades.Create(ctx, domain.Trade{ID: "exact", UserID: "u1", CreatedAt: cutoff}))

	before, err := stores.Trades.ListBefore(ctx, cutoff)
	require.NoError(t, err)
	require.Len(t, before, 1)
	assert.Equal(t, "old", before[0].ID)
}

func TestSettlementOnePerMarket(t *testing.T) {
	ctx := context.Background()
	stores := New().Stores()

	rec := domain.SettlementRecord{ID: "s1", MarketID: "m1", Outcome: 0, SettledAt: time.Now().UTC()}
	require.NoError(t, stores.Settlements.Create(ctx, rec))

	err := stores.Settlements.Create(ctx, domain.SettlementRecord{ID: "s2", MarketID: "m1", Outcome: 1})
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	got, err := stores.Settlements.GetByMarket(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "s1", got.ID)
}

func TestUserListTopOrdersByReputation(t *testing.T) {
	ctx := context.Background()
	stores := New().Stores()

	require.NoError(t, stores.Users.Create(ctx, domain.User{ID: "a", Username: "alice", Reputation: 1.5}))
	require.NoError(t, stores.Users.Create(ctx, domain.User{ID: "b", Username: "bob", Reputation: 4.2}))
	require.NoError(t, stores.Users.Create(ctx, domain.User{ID: "c", Username: "carol", Reputation: -2}))

	top, err := stores.Users.ListTop(ctx, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "b", top[0].ID)
	assert.Equal(t, "a", top[1].ID)
}

func TestAuditLogAssignsSequence(t *testing.T) {
	ctx := context.Background()
	stores := New().Stores()

	require.NoError(t, stores.Audit.Log(ctx, "market.created", map[string]any{"market_id": "m1"}))
	require.NoError(t, stores.Audit.Log(ctx, "market.closed", map[string]any{"market_id": "m1"}))

	entries, err := stores.Audit.List(ctx, domain.ListOpts{Limit: 10})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	// Newest first.
	assert.Equal(t, "market.closed", entries[0].Event)
	assert.Greater(t, entries[0].ID, entries[1].ID)
}
