package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/foresightlabs/foresight/internal/domain"
)

// UserService defines what the user handler needs from the service layer.
type UserService interface {
	Register(ctx context.Context, username string) (domain.User, error)
	Get(ctx context.Context, id string) (domain.User, error)
	Leaderboard(ctx context.Context, limit int) ([]domain.User, error)
	Positions(ctx context.Context, userID string) ([]domain.Position, error)
	Trades(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Trade, error)
	ReputationHistory(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.ReputationRecord, error)
	SpendStatus(ctx context.Context, userID string) (spent, remaining float64, err error)
}

// UserHandler serves account, portfolio and reputation endpoints.
type UserHandler struct {
	users  UserService
	logger *slog.Logger
}

// NewUserHandler creates a UserHandler with the given service and logger.
func NewUserHandler(users UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		users:  users,
		logger: logger,
	}
}

type registerUserRequest struct {
	Username string `json:"username"`
}

// RegisterUser creates an account with the configured starting balance.
// POST /api/users
func (h *UserHandler) RegisterUser(w http.ResponseWriter, r *http.Request) {
	var req registerUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.users.Register(r.Context(), req.Username)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// GetUser returns one account by ID.
// GET /api/users/{id}
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	user, err := h.users.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// ListPositions returns the user's open and settled positions, optionally
// narrowed to a single market.
// GET /api/users/{id}/positions?market={marketID}
func (h *UserHandler) ListPositions(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	positions, err := h.users.Positions(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	if marketID := r.URL.Query().Get("market"); marketID != "" {
		filtered := positions[:0]
		for _, p := range positions {
			if p.MarketID == marketID {
				filtered = append(filtered, p)
			}
		}
		positions = filtered
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":   id,
		"positions": positions,
	})
}

// ListTrades returns the user's trade history, newest first.
// GET /api/users/{id}/trades
func (h *UserHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	opts := parseListOpts(r)

	trades, err := h.users.Trades(r.Context(), id, opts)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id": id,
		"trades":  trades,
		"limit":   opts.Limit,
		"offset":  opts.Offset,
	})
}

// ListReputation returns the user's per-settlement reputation deltas.
// GET /api/users/{id}/reputation
func (h *UserHandler) ListReputation(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	opts := parseListOpts(r)

	records, err := h.users.ReputationHistory(r.Context(), id, opts)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id": id,
		"records": records,
		"limit":   opts.Limit,
		"offset":  opts.Offset,
	})
}

// GetSpend reports the user's rolling 24h spend against the daily cap.
// GET /api/users/{id}/spend
func (h *UserHandler) GetSpend(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	spent, remaining, err := h.users.SpendStatus(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":   id,
		"spent":     spent,
		"remaining": remaining,
	})
}

// Leaderboard returns the top accounts by average reputation score.
// GET /api/leaderboard?limit=20
func (h *UserHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if n, ok := queryInt(r, "limit"); ok {
		limit = n
	}

	users, err := h.users.Leaderboard(r.Context(), limit)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}
