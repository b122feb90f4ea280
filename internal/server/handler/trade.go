package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/foresightlabs/foresight/internal/domain"
	"github.com/foresightlabs/foresight/internal/pricing"
)

// TradeService defines what the trade handler needs from the service layer.
type TradeService interface {
	Execute(ctx context.Context, userID, marketID string, outcome int, amount float64) (domain.TradeResult, error)
	Quote(ctx context.Context, marketID string, outcome int, amount float64) (pricing.Quote, error)
}

// TradeHandler serves trade execution and quoting endpoints.
type TradeHandler struct {
	trades TradeService
	logger *slog.Logger
}

// NewTradeHandler creates a TradeHandler with the given service and logger.
func NewTradeHandler(trades TradeService, logger *slog.Logger) *TradeHandler {
	return &TradeHandler{
		trades: trades,
		logger: logger,
	}
}

type executeTradeRequest struct {
	UserID   string  `json:"user_id"`
	MarketID string  `json:"market_id"`
	Outcome  int     `json:"outcome"`
	Amount   float64 `json:"amount"`
}

// ExecuteTrade runs the full trade pipeline: quoting, risk checks, balance
// debit and position update, all atomically.
// POST /api/trades
func (h *TradeHandler) ExecuteTrade(w http.ResponseWriter, r *http.Request) {
	var req executeTradeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" || req.MarketID == "" {
		writeError(w, http.StatusBadRequest, "user_id and market_id are required")
		return
	}

	result, err := h.trades.Execute(r.Context(), req.UserID, req.MarketID, req.Outcome, req.Amount)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// quoteResponse mirrors the mechanism quote plus the inputs it priced.
type quoteResponse struct {
	MarketID    string    `json:"market_id"`
	Outcome     int       `json:"outcome"`
	Amount      float64   `json:"amount"`
	Cost        float64   `json:"cost"`
	Shares      float64   `json:"shares"`
	PriceImpact float64   `json:"price_impact"`
	NewPool     []float64 `json:"new_pool"`
}

// QuoteTrade prices a hypothetical trade without mutating any state.
// GET /api/markets/{id}/quote?outcome=0&amount=25
func (h *TradeHandler) QuoteTrade(w http.ResponseWriter, r *http.Request) {
	marketID := pathParam(r, "id")

	outcome, ok := queryInt(r, "outcome")
	if !ok {
		writeError(w, http.StatusBadRequest, "outcome query parameter is required")
		return
	}
	amount, ok := queryFloat(r, "amount")
	if !ok {
		writeError(w, http.StatusBadRequest, "amount query parameter is required")
		return
	}

	quote, err := h.trades.Quote(r.Context(), marketID, outcome, amount)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, quoteResponse{
		MarketID:    marketID,
		Outcome:     outcome,
		Amount:      amount,
		Cost:        quote.Cost,
		Shares:      quote.Shares,
		PriceImpact: quote.PriceImpact,
		NewPool:     quote.NewPool,
	})
}
