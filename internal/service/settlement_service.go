package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/foresightlabs/foresight/internal/domain"
	"github.com/foresightlabs/foresight/internal/pricing"
	"github.com/foresightlabs/foresight/internal/reputation"
)

// SettlementConfig holds the settlement tunables.
type SettlementConfig struct {
	SlippageBound  float64
	LockTTL        time.Duration
	LockRetries    int
	LockRetryDelay time.Duration
}

// SettlementService resolves markets. Settlement is idempotent: the
// SettlementRecord is the durable marker, checked and written inside the
// same transaction as every payout, so a retried settlement can never pay
// twice and a crashed one never leaves partial credits visible.
type SettlementService struct {
	tx     domain.Transactor
	stores domain.TxStores
	locks  domain.LockManager
	cache  domain.PriceCache
	bus    domain.SignalBus
	cfg    SettlementConfig
	logger *slog.Logger
}

// NewSettlementService creates a SettlementService with all required
// dependencies.
func NewSettlementService(
	tx domain.Transactor,
	stores domain.TxStores,
	locks domain.LockManager,
	cache domain.PriceCache,
	bus domain.SignalBus,
	cfg SettlementConfig,
	logger *slog.Logger,
) *SettlementService {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 10 * time.Second
	}
	if cfg.LockRetryDelay <= 0 {
		cfg.LockRetryDelay = 50 * time.Millisecond
	}
	return &SettlementService{
		tx: tx, stores: stores, locks: locks,
		cache: cache, bus: bus, cfg: cfg, logger: logger,
	}
}

// Settle resolves a market to the given outcome, pays every winning
// position from the pool, and scores reputation for every position holder.
// Re-invoking on a settled market returns the stored record unchanged.
func (s *SettlementService) Settle(ctx context.Context, marketID string, outcome int) (domain.SettlementRecord, error) {
	unlock, err := acquireLock(ctx, s.locks, "market:"+marketID, s.cfg.LockTTL, s.cfg.LockRetries, s.cfg.LockRetryDelay)
	if err != nil {
		return domain.SettlementRecord{}, err
	}
	defer unlock()

	var (
		record  domain.SettlementRecord
		already bool
	)
	err = s.tx.WithinTx(ctx, func(tx domain.TxStores) error {
		if existing, err := tx.Settlements.GetByMarket(ctx, marketID); err == nil {
			record, already = existing, true
			return nil
		} else if !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		market, err := tx.Markets.GetByID(ctx, marketID)
		if err != nil {
			return err
		}
		if market.Status == domain.MarketStatusSettled {
			return fmt.Errorf("settlement_service: market %s settled without record: %w",
				marketID, domain.ErrInvalidState)
		}
		if !market.OutcomeInRange(outcome) {
			return fmt.Errorf("settlement_service: outcome %d out of range for market %s: %w",
				outcome, marketID, domain.ErrInvalidRequest)
		}

		mech, err := pricing.ForMarket(market, pricing.Options{SlippageBound: s.cfg.SlippageBound})
		if err != nil {
			return err
		}
		finalProbs, err := mech.Prices(market.Pool)
		if err != nil {
			return err
		}

		positions, err := tx.Positions.ListByMarket(ctx, marketID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		totalPool := market.TotalPool()
		payouts, totalPaid, err := s.applyPayouts(ctx, tx, market, positions, outcome, totalPool, now)
		if err != nil {
			return err
		}

		if err := s.scoreHolders(ctx, tx, marketID, positions, finalProbs, outcome, now); err != nil {
			return err
		}

		market.Status = domain.MarketStatusSettled
		market.ResolvedOutcome = &outcome
		market.UpdatedAt = now
		if err := tx.Markets.Update(ctx, market); err != nil {
			return fmt.Errorf("settlement_service: mark settled: %w", err)
		}

		record = domain.SettlementRecord{
			ID:        uuid.NewString(),
			MarketID:  marketID,
			Outcome:   outcome,
			TotalPool: totalPool,
			TotalPaid: totalPaid,
			Payouts:   payouts,
			SettledAt: now,
		}
		if err := tx.Settlements.Create(ctx, record); err != nil {
			return fmt.Errorf("settlement_service: create record: %w", err)
		}
		return tx.Audit.Log(ctx, "market.settled", map[string]any{
			"market_id":  marketID,
			"outcome":    outcome,
			"total_paid": totalPaid,
			"positions":  len(positions),
		})
	})
	if err != nil {
		return domain.SettlementRecord{}, err
	}
	if already {
		return record, nil
	}

	s.logger.InfoContext(ctx, "settlement_service: market settled",
		slog.String("market_id", marketID),
		slog.Int("outcome", outcome),
		slog.Float64("total_paid", record.TotalPaid),
		slog.Int("payouts", len(record.Payouts)),
	)
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, marketID); err != nil {
			s.logger.WarnContext(ctx, "settlement_service: invalidate price cache",
				slog.String("market_id", marketID), slog.String("error", err.Error()))
		}
	}
	publishEvent(ctx, s.bus, s.logger, ChannelSettlements, "market.settled", marketID, record)
	return record, nil
}

// applyPayouts credits winners and records realized profit per position.
//
// Pool markets (parimutuel, CPMM) redistribute the collected pool:
// payout = floor(holding * totalPool / winningPool), with winningPool the
// total winning-outcome holdings across positions so the sum of payouts can
// never exceed the pool. winningPool == 0 forfeits all stake; that is a
// documented edge case, not an error. LMSR shares are already denominated
// in payout units and pay 1:1, unfloored.
func (s *SettlementService) applyPayouts(
	ctx context.Context,
	tx domain.TxStores,
	market domain.Market,
	positions []domain.Position,
	outcome int,
	totalPool float64,
	now time.Time,
) ([]domain.Payout, float64, error) {
	lmsr := market.Mechanism == domain.MechanismLMSR

	var winningPool float64
	for _, pos := range positions {
		winningPool += pos.Holding(outcome)
	}

	var (
		payouts   []domain.Payout
		totalPaid float64
	)
	for i := range positions {
		pos := &positions[i]
		holding := pos.Holding(outcome)
		if holding <= 0 {
			continue
		}

		var payout float64
		if lmsr {
			payout = holding
		} else {
			payout = math.Floor(holding * totalPool / winningPool)
		}

		if payout > 0 {
			user, err := tx.Users.GetByID(ctx, pos.UserID)
			if err != nil {
				return nil, 0, err
			}
			user.Balance += payout
			user.UpdatedAt = now
			if err := tx.Users.Update(ctx, user); err != nil {
				return nil, 0, fmt.Errorf("settlement_service: credit payout: %w", err)
			}
		}

		profit := payout - holding
		pos.RealizedProfit = &profit
		pos.UpdatedAt = now
		if err := tx.Positions.Upsert(ctx, *pos); err != nil {
			return nil, 0, fmt.Errorf("settlement_service: record realized profit: %w", err)
		}

		payouts = append(payouts, domain.Payout{
			PositionID: pos.ID,
			UserID:     pos.UserID,
			Amount:     payout,
		})
		totalPaid += payout
	}
	return payouts, totalPaid, nil
}

// scoreHolders updates reputation for every position holder, winners and
// losers alike: the score measures forecast accuracy, not reward. The Brier
// score comes from the market's final probability vector against the
// resolved outcome.
func (s *SettlementService) scoreHolders(
	ctx context.Context,
	tx domain.TxStores,
	marketID string,
	positions []domain.Position,
	finalProbs []float64,
	outcome int,
	now time.Time,
) error {
	brier := reputation.BrierScore(finalProbs, outcome)
	delta := reputation.DeltaFromBrier(brier)

	for _, pos := range positions {
		user, err := tx.Users.GetByID(ctx, pos.UserID)
		if err != nil {
			return err
		}
		user.Reputation, user.ReputationCount = reputation.UpdateAverage(
			user.Reputation, user.ReputationCount, delta)
		user.UpdatedAt = now
		if err := tx.Users.Update(ctx, user); err != nil {
			return fmt.Errorf("settlement_service: update reputation: %w", err)
		}

		rec := domain.ReputationRecord{
			ID:        uuid.NewString(),
			UserID:    pos.UserID,
			MarketID:  marketID,
			Brier:     brier,
			Delta:     delta,
			CreatedAt: now,
		}
		if err := tx.Reputation.Create(ctx, rec); err != nil {
			return fmt.Errorf("settlement_service: append reputation record: %w", err)
		}
	}
	return nil
}

// Record returns the settlement record for a market, or ErrNotFound when it
// has not been settled.
func (s *SettlementService) Record(ctx context.Context, marketID string) (domain.SettlementRecord, error) {
	return s.stores.Settlements.GetByMarket(ctx, marketID)
}
