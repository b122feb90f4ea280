package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/foresightlabs/foresight/internal/domain"
)

// SettlementService defines what the settlement handler needs from the
// service layer.
type SettlementService interface {
	Settle(ctx context.Context, marketID string, outcome int) (domain.SettlementRecord, error)
	Record(ctx context.Context, marketID string) (domain.SettlementRecord, error)
}

// SettlementHandler serves market resolution endpoints.
type SettlementHandler struct {
	settlements SettlementService
	logger      *slog.Logger
}

// NewSettlementHandler creates a SettlementHandler with the given service and
// logger.
func NewSettlementHandler(settlements SettlementService, logger *slog.Logger) *SettlementHandler {
	return &SettlementHandler{
		settlements: settlements,
		logger:      logger,
	}
}

type settleMarketRequest struct {
	Outcome int `json:"outcome"`
}

// SettleMarket resolves a market to an outcome, paying out winners and
// scoring every holder. Re-settling returns the original record unchanged.
// Admin only.
// POST /api/markets/{id}/settle
func (h *SettlementHandler) SettleMarket(w http.ResponseWriter, r *http.Request) {
	marketID := pathParam(r, "id")

	var req settleMarketRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	record, err := h.settlements.Settle(r.Context(), marketID, req.Outcome)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// GetSettlement returns the stored settlement record for a market.
// GET /api/markets/{id}/settlement
func (h *SettlementHandler) GetSettlement(w http.ResponseWriter, r *http.Request) {
	marketID := pathParam(r, "id")

	record, err := h.settlements.Record(r.Context(), marketID)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}
