package domain

import (
	"context"
	"time"
)

// PriceCache provides fast access to the latest probability vector per market.
type PriceCache interface {
	SetPrices(ctx context.Context, marketID string, probs []float64, ts time.Time) error
	GetPrices(ctx context.Context, marketID string) ([]float64, time.Time, error)
	Invalidate(ctx context.Context, marketID string) error
}

// LockManager provides per-market locking. Trade execution and settlement
// acquire the market's lock for their whole duration so quotes are never
// computed from state that is stale relative to the commit.
type LockManager interface {
	// Acquire returns an unlock function on success, or ErrLockHeld when the
	// lock is already taken by another party.
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// SignalBus provides pub/sub fan-out of engine events (trades, settlements,
// market lifecycle) to interested consumers such as the WebSocket hub.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}
