package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// MarketStore persists markets and their pool state.
type MarketStore interface {
	Create(ctx context.Context, m Market) error
	Update(ctx context.Context, m Market) error
	GetByID(ctx context.Context, id string) (Market, error)
	List(ctx context.Context, status MarketStatus, opts ListOpts) ([]Market, error)
	// ListExpired returns open markets whose ClosesAt deadline has passed.
	ListExpired(ctx context.Context, asOf time.Time) ([]Market, error)
	Count(ctx context.Context) (int64, error)
}

// UserStore persists predictor balances and reputation.
type UserStore interface {
	Create(ctx context.Context, u User) error
	Update(ctx context.Context, u User) error
	GetByID(ctx context.Context, id string) (User, error)
	// ListTop returns users ordered by reputation, highest first.
	ListTop(ctx context.Context, limit int) ([]User, error)
}

// PositionStore persists per-(user, market) holdings.
type PositionStore interface {
	Upsert(ctx context.Context, p Position) error
	Get(ctx context.Context, userID, marketID string) (Position, error)
	ListByMarket(ctx context.Context, marketID string) ([]Position, error)
	ListByUser(ctx context.Context, userID string) ([]Position, error)
}

// TradeStore persists the append-only trade ledger.
type TradeStore interface {
	Create(ctx context.Context, t Trade) error
	ListByMarket(ctx context.Context, marketID string, opts ListOpts) ([]Trade, error)
	ListByUser(ctx context.Context, userID string, opts ListOpts) ([]Trade, error)
	// SumCostSince returns the user's total trade cost since the given time.
	// Trade execution calls this inside its transaction so the daily-limit
	// accounting and the trade append share one snapshot.
	SumCostSince(ctx context.Context, userID string, since time.Time) (float64, error)
	// ListBefore returns trades created strictly before the cutoff, for
	// ledger archival.
	ListBefore(ctx context.Context, before time.Time) ([]Trade, error)
}

// ReputationStore persists the append-only scoring trail.
type ReputationStore interface {
	Create(ctx context.Context, r ReputationRecord) error
	ListByUser(ctx context.Context, userID string, opts ListOpts) ([]ReputationRecord, error)
	ListBefore(ctx context.Context, before time.Time) ([]ReputationRecord, error)
}

// SettlementStore persists settlement records and their payouts.
type SettlementStore interface {
	Create(ctx context.Context, rec SettlementRecord) error
	// GetByMarket returns ErrNotFound when the market has not been settled.
	GetByMarket(ctx context.Context, marketID string) (SettlementRecord, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64          `json:"id"`
	Event     string         `json:"event"`
	Detail    map[string]any `json:"detail,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}

// TxStores bundles the stores that participate in one atomic commit. Inside
// a transaction every store reads the same snapshot and all writes commit or
// roll back together.
type TxStores struct {
	Markets     MarketStore
	Users       UserStore
	Positions   PositionStore
	Trades      TradeStore
	Reputation  ReputationStore
	Settlements SettlementStore
	Audit       AuditStore
}

// Transactor runs fn with transaction-scoped stores. A nil return commits;
// any error rolls everything back, leaving no partial state visible.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(tx TxStores) error) error
}
