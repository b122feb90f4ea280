package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/foresightlabs/foresight/internal/domain"
	"github.com/foresightlabs/foresight/internal/service"
)

// MarketService defines the methods the market handler requires from the
// service layer. It is declared locally so the handler package does not
// depend on the concrete service implementation.
type MarketService interface {
	Create(ctx context.Context, req service.CreateMarketRequest) (domain.Market, error)
	Detail(ctx context.Context, id string) (service.MarketDetail, error)
	List(ctx context.Context, status domain.MarketStatus, opts domain.ListOpts) ([]domain.Market, error)
	Count(ctx context.Context) (int64, error)
	Prices(ctx context.Context, marketID string) ([]float64, time.Time, error)
	Trades(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.Trade, error)
	Close(ctx context.Context, marketID string) (domain.Market, error)
}

// MarketHandler serves market lifecycle and pricing endpoints.
type MarketHandler struct {
	markets MarketService
	logger  *slog.Logger
}

// NewMarketHandler creates a MarketHandler with the given service and logger.
func NewMarketHandler(markets MarketService, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		markets: markets,
		logger:  logger,
	}
}

// CreateMarket opens a new market. Admin only.
// POST /api/markets
func (h *MarketHandler) CreateMarket(w http.ResponseWriter, r *http.Request) {
	var req service.CreateMarketRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	market, err := h.markets.Create(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, market)
}

// listMarketsResponse wraps the list endpoint output with metadata.
type listMarketsResponse struct {
	Markets []domain.Market `json:"markets"`
	Total   int64           `json:"total"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
}

// ListMarkets returns markets with pagination, optionally filtered by status.
// GET /api/markets?status=open&limit=50&offset=0
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	status := domain.MarketStatus(r.URL.Query().Get("status"))
	markets, err := h.markets.List(r.Context(), status, opts)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	total, err := h.markets.Count(r.Context())
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, listMarketsResponse{
		Markets: markets,
		Total:   total,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
	})
}

// GetMarket returns a single market with its current odds. Parimutuel
// markets additionally carry the payout-per-point vector.
// GET /api/markets/{id}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "market id is required")
		return
	}

	detail, err := h.markets.Detail(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// pricesResponse carries the implied probability vector for a market.
type pricesResponse struct {
	MarketID string    `json:"market_id"`
	Probs    []float64 `json:"probs"`
	AsOf     time.Time `json:"as_of"`
}

// GetPrices returns the market's implied probability vector.
// GET /api/markets/{id}/prices
func (h *MarketHandler) GetPrices(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	probs, asOf, err := h.markets.Prices(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, pricesResponse{MarketID: id, Probs: probs, AsOf: asOf})
}

// ListMarketTrades returns a market's trade history, newest first.
// GET /api/markets/{id}/trades
func (h *MarketHandler) ListMarketTrades(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	opts := parseListOpts(r)

	trades, err := h.markets.Trades(r.Context(), id, opts)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"market_id": id,
		"trades":    trades,
		"limit":     opts.Limit,
		"offset":    opts.Offset,
	})
}

// CloseMarket transitions a market from open to closed. Admin only.
// POST /api/markets/{id}/close
func (h *MarketHandler) CloseMarket(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	market, err := h.markets.Close(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, market)
}
