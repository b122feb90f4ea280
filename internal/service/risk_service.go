package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/foresightlabs/foresight/internal/domain"
)

// spendWindow is the trailing window for the per-user spend cap.
const spendWindow = 24 * time.Hour

// RiskConfig holds the tunable parameters for pre-trade risk checks.
type RiskConfig struct {
	// DailySpendCap is the maximum points a user may commit across all
	// markets in any trailing 24-hour window. Zero disables the cap.
	DailySpendCap float64
	// TopicDenylist lists categories refused at market creation and trade
	// time. Matching is exact and case-insensitive.
	TopicDenylist []string
}

// RiskService guards trade execution and market creation. Its checks are
// pure or query-based; it never mutates state itself.
type RiskService struct {
	cfg    RiskConfig
	denied map[string]struct{}
	logger *slog.Logger
}

// NewRiskService creates a RiskService with the denylist pre-indexed.
func NewRiskService(cfg RiskConfig, logger *slog.Logger) *RiskService {
	denied := make(map[string]struct{}, len(cfg.TopicDenylist))
	for _, topic := range cfg.TopicDenylist {
		denied[strings.ToLower(strings.TrimSpace(topic))] = struct{}{}
	}
	return &RiskService{cfg: cfg, denied: denied, logger: logger}
}

// TopicAllowed reports whether a market category is eligible. An empty
// category is always allowed.
func (s *RiskService) TopicAllowed(category string) bool {
	if category == "" {
		return true
	}
	_, blocked := s.denied[strings.ToLower(strings.TrimSpace(category))]
	return !blocked
}

// CheckTopic rejects denylisted categories with ErrComplianceRejected.
func (s *RiskService) CheckTopic(ctx context.Context, category string) error {
	if s.TopicAllowed(category) {
		return nil
	}
	s.logger.WarnContext(ctx, "risk_service: denylisted topic rejected",
		slog.String("category", category),
	)
	return fmt.Errorf("risk_service: category %q: %w", category, domain.ErrComplianceRejected)
}

// CheckSpend rejects a trade whose cost would push the user's trailing
// 24-hour spend past the cap. The trade store must be transaction-scoped:
// the limit accounting and the trade append have to share one snapshot, or
// two concurrent trades can both pass the check before either commits.
func (s *RiskService) CheckSpend(ctx context.Context, trades domain.TradeStore, userID string, cost float64, now time.Time) error {
	if s.cfg.DailySpendCap <= 0 {
		return nil
	}
	spent, err := trades.SumCostSince(ctx, userID, now.Add(-spendWindow))
	if err != nil {
		return fmt.Errorf("risk_service: sum recent spend: %w", err)
	}
	if spent+cost > s.cfg.DailySpendCap {
		s.logger.WarnContext(ctx, "risk_service: daily spend cap exceeded",
			slog.String("user_id", userID),
			slog.Float64("spent", spent),
			slog.Float64("cost", cost),
			slog.Float64("cap", s.cfg.DailySpendCap),
		)
		return fmt.Errorf("risk_service: spend %.2f + cost %.2f exceeds cap %.2f: %w",
			spent, cost, s.cfg.DailySpendCap, domain.ErrLimitExceeded)
	}
	return nil
}

// DailySpend returns the user's committed points in the trailing 24-hour
// window and the remaining headroom under the cap. A zero cap reports zero
// headroom and never blocks.
func (s *RiskService) DailySpend(ctx context.Context, trades domain.TradeStore, userID string, now time.Time) (spent, remaining float64, err error) {
	spent, err = trades.SumCostSince(ctx, userID, now.Add(-spendWindow))
	if err != nil {
		return 0, 0, fmt.Errorf("risk_service: sum recent spend: %w", err)
	}
	if s.cfg.DailySpendCap <= 0 {
		return spent, 0, nil
	}
	remaining = s.cfg.DailySpendCap - spent
	if remaining < 0 {
		remaining = 0
	}
	return spent, remaining, nil
}
