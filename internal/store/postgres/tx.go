package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/foresightlabs/foresight/internal/domain"
)

// Querier is the query surface shared by *pgxpool.Pool and pgx.Tx, so every
// store works identically inside and outside a transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Stores builds the store bundle over any querier.
func Stores(q Querier) domain.TxStores {
	return domain.TxStores{
		Markets:     NewMarketStore(q),
		Users:       NewUserStore(q),
		Positions:   NewPositionStore(q),
		Trades:      NewTradeStore(q),
		Reputation:  NewReputationStore(q),
		Settlements: NewSettlementStore(q),
		Audit:       NewAuditStore(q),
	}
}

// Transactor implements domain.Transactor over a pgx connection pool.
type Transactor struct {
	pool *pgxpool.Pool
}

// NewTransactor creates a Transactor.
func NewTransactor(pool *pgxpool.Pool) *Transactor {
	return &Transactor{pool: pool}
}

// WithinTx runs fn with transaction-scoped stores. A nil return commits; any
// error rolls the whole transaction back.
func (t *Transactor) WithinTx(ctx context.Context, fn func(tx domain.TxStores) error) error {
	pgxTx, err := t.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}
	defer func() { _ = pgxTx.Rollback(ctx) }()

	if err := fn(Stores(pgxTx)); err != nil {
		return err
	}
	if err := pgxTx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit tx: %w", err)
	}
	return nil
}
