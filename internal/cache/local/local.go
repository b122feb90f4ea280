// Package local provides in-process implementations of the cache, lock and
// signal-bus ports for single-node deployments where Redis is disabled.
package local

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/foresightlabs/foresight/internal/domain"
)

// LockManager implements domain.LockManager with a keyed mutex table. TTLs
// still apply so a leaked lock cannot wedge a market forever.
type LockManager struct {
	mu    sync.Mutex
	locks map[string]time.Time // key -> expiry
}

func NewLockManager() *LockManager {
	return &LockManager{locks: make(map[string]time.Time)}
}

func (l *LockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if exp, held := l.locks[key]; held && exp.After(now) {
		return nil, fmt.Errorf("local: lock %s: %w", key, domain.ErrLockHeld)
	}
	l.locks[key] = now.Add(ttl)

	expiry := l.locks[key]
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		// Only release if we still own it; a TTL takeover must not be undone.
		if exp, held := l.locks[key]; held && exp.Equal(expiry) {
			delete(l.locks, key)
		}
	}, nil
}

type priceEntry struct {
	probs []float64
	ts    time.Time
}

// PriceCache implements domain.PriceCache with a plain map.
type PriceCache struct {
	mu      sync.RWMutex
	entries map[string]priceEntry
}

func NewPriceCache() *PriceCache {
	return &PriceCache{entries: make(map[string]priceEntry)}
}

func (c *PriceCache) SetPrices(ctx context.Context, marketID string, probs []float64, ts time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[marketID] = priceEntry{probs: append([]float64(nil), probs...), ts: ts}
	return nil
}

func (c *PriceCache) GetPrices(ctx context.Context, marketID string) ([]float64, time.Time, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[marketID]
	if !ok {
		return nil, time.Time{}, fmt.Errorf("local: prices for %s: %w", marketID, domain.ErrNotFound)
	}
	return append([]float64(nil), e.probs...), e.ts, nil
}

func (c *PriceCache) Invalidate(ctx context.Context, marketID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, marketID)
	return nil
}

// SignalBus implements domain.SignalBus with buffered channel fan-out.
// Publish never blocks: slow subscribers drop messages rather than stall
// trade execution.
type SignalBus struct {
	mu   sync.RWMutex
	subs map[string][]chan []byte
}

func NewSignalBus() *SignalBus {
	return &SignalBus{subs: make(map[string][]chan []byte)}
}

func (b *SignalBus) Publish(ctx context.Context, channel string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs[channel] {
		select {
		case ch <- payload:
		default:
		}
	}
	return nil
}

func (b *SignalBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte, 64)
	b.mu.Lock()
	b.subs[channel] = append(b.subs[channel], ch)
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subs[channel]
		for i, c := range subs {
			if c == ch {
				b.subs[channel] = append(subs[:i], subs[i+1:]...)
				close(c)
				return
			}
		}
	}()
	return ch, nil
}
