package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/foresightlabs/foresight/internal/domain"
)

// priceTTL bounds staleness if an invalidation is ever lost.
const priceTTL = time.Hour

// PriceCache implements domain.PriceCache using Redis hashes. Each market's
// probability vector is stored at key "prices:{marketID}" with fields
// "probs" (JSON array) and "ts" (Unix nanosecond timestamp).
type PriceCache struct {
	rdb *redis.Client
}

// NewPriceCache creates a PriceCache backed by the given Client.
func NewPriceCache(c *Client) *PriceCache {
	return &PriceCache{rdb: c.Underlying()}
}

func priceKey(marketID string) string {
	return "prices:" + marketID
}

// SetPrices stores the latest probability vector for a market.
func (pc *PriceCache) SetPrices(ctx context.Context, marketID string, probs []float64, ts time.Time) error {
	encoded, err := json.Marshal(probs)
	if err != nil {
		return fmt.Errorf("redis: marshal probs %s: %w", marketID, err)
	}

	key := priceKey(marketID)
	fields := map[string]interface{}{
		"probs": encoded,
		"ts":    strconv.FormatInt(ts.UnixNano(), 10),
	}
	pipe := pc.rdb.Pipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, priceTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set prices %s: %w", marketID, err)
	}
	return nil
}

// GetPrices retrieves the latest probability vector for a market. It returns
// domain.ErrNotFound when the key does not exist.
func (pc *PriceCache) GetPrices(ctx context.Context, marketID string) ([]float64, time.Time, error) {
	vals, err := pc.rdb.HGetAll(ctx, priceKey(marketID)).Result()
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("redis: get prices %s: %w", marketID, err)
	}
	if len(vals) == 0 {
		return nil, time.Time{}, domain.ErrNotFound
	}

	encoded, ok := vals["probs"]
	if !ok {
		return nil, time.Time{}, domain.ErrNotFound
	}
	var probs []float64
	if err := json.Unmarshal([]byte(encoded), &probs); err != nil {
		return nil, time.Time{}, fmt.Errorf("redis: unmarshal probs %s: %w", marketID, err)
	}

	tsStr, ok := vals["ts"]
	if !ok {
		return nil, time.Time{}, domain.ErrNotFound
	}
	tsNano, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("redis: parse ts %s: %w", marketID, err)
	}

	return probs, time.Unix(0, tsNano), nil
}

// Invalidate drops the cached vector for a market.
func (pc *PriceCache) Invalidate(ctx context.Context, marketID string) error {
	if err := pc.rdb.Del(ctx, priceKey(marketID)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate prices %s: %w", marketID, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.PriceCache = (*PriceCache)(nil)
