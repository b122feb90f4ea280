package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/foresightlabs/foresight/internal/domain"
)

// Signal bus channels. The WebSocket hub subscribes to all three and fans
// events out to connected clients.
const (
	ChannelMarkets     = "foresight:markets"
	ChannelTrades      = "foresight:trades"
	ChannelSettlements = "foresight:settlements"
)

// Event is the envelope published on the signal bus after a committed state
// change. Payloads are emitted post-commit and best-effort: a publish
// failure is logged, never surfaced to the caller.
type Event struct {
	Type     string          `json:"type"`
	MarketID string          `json:"market_id"`
	At       time.Time       `json:"at"`
	Data     json.RawMessage `json:"data,omitempty"`
}

func publishEvent(ctx context.Context, bus domain.SignalBus, logger *slog.Logger, channel, typ, marketID string, data any) {
	if bus == nil {
		return
	}
	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			logger.WarnContext(ctx, "service: marshal event payload",
				slog.String("type", typ), slog.String("error", err.Error()))
			return
		}
		raw = b
	}
	payload, err := json.Marshal(Event{Type: typ, MarketID: marketID, At: time.Now().UTC(), Data: raw})
	if err != nil {
		return
	}
	if err := bus.Publish(ctx, channel, payload); err != nil {
		logger.WarnContext(ctx, "service: publish event",
			slog.String("channel", channel),
			slog.String("type", typ),
			slog.String("error", err.Error()),
		)
	}
}
