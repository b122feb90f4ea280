package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/foresightlabs/foresight/internal/domain"
	"github.com/foresightlabs/foresight/internal/pricing"
)

// TradeConfig holds the trade-execution tunables.
type TradeConfig struct {
	// SlippageBound caps the fractional price impact of a single CPMM or
	// LMSR trade. Zero disables the check.
	SlippageBound float64
	// LockTTL bounds how long the per-market lock may be held.
	LockTTL time.Duration
	// LockRetries is how many times a contended execution is retried
	// before surfacing ErrUnavailable.
	LockRetries int
	// LockRetryDelay is the pause between lock attempts.
	LockRetryDelay time.Duration
}

// TradeService executes bets. Every execution holds the market's lock for
// its whole duration so the quote is never computed from state that is
// stale relative to the commit, and all mutations (trade append, position
// update, pool update, balance debit) land in one transaction.
type TradeService struct {
	tx     domain.Transactor
	stores domain.TxStores
	locks  domain.LockManager
	risk   *RiskService
	cache  domain.PriceCache
	bus    domain.SignalBus
	cfg    TradeConfig
	logger *slog.Logger
}

// NewTradeService creates a TradeService with all required dependencies.
func NewTradeService(
	tx domain.Transactor,
	stores domain.TxStores,
	locks domain.LockManager,
	risk *RiskService,
	cache domain.PriceCache,
	bus domain.SignalBus,
	cfg TradeConfig,
	logger *slog.Logger,
) *TradeService {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 10 * time.Second
	}
	if cfg.LockRetryDelay <= 0 {
		cfg.LockRetryDelay = 50 * time.Millisecond
	}
	return &TradeService{
		tx: tx, stores: stores, locks: locks, risk: risk,
		cache: cache, bus: bus, cfg: cfg, logger: logger,
	}
}

// Execute places amount on the given outcome of a market for a user. For
// parimutuel and CPMM markets amount is the points staked; for LMSR it is
// the share quantity to buy. Any rejection leaves all state unchanged.
func (s *TradeService) Execute(ctx context.Context, userID, marketID string, outcome int, amount float64) (domain.TradeResult, error) {
	if amount <= 0 {
		return domain.TradeResult{}, fmt.Errorf("trade_service: amount must be positive, got %v: %w",
			amount, domain.ErrInvalidRequest)
	}

	unlock, err := acquireLock(ctx, s.locks, "market:"+marketID, s.cfg.LockTTL, s.cfg.LockRetries, s.cfg.LockRetryDelay)
	if err != nil {
		if errors.Is(err, domain.ErrUnavailable) {
			s.logger.WarnContext(ctx, "trade_service: market lock contended",
				slog.String("market_id", marketID))
		}
		return domain.TradeResult{}, err
	}
	defer unlock()

	var (
		result domain.TradeResult
		probs  []float64
	)
	err = s.tx.WithinTx(ctx, func(tx domain.TxStores) error {
		market, err := tx.Markets.GetByID(ctx, marketID)
		if err != nil {
			return err
		}
		if !market.Tradeable() {
			return fmt.Errorf("trade_service: market %s is %s: %w",
				marketID, market.Status, domain.ErrMarketNotOpen)
		}
		if !market.OutcomeInRange(outcome) {
			return fmt.Errorf("trade_service: outcome %d out of range for market %s: %w",
				outcome, marketID, domain.ErrInvalidRequest)
		}

		mech, err := pricing.ForMarket(market, pricing.Options{SlippageBound: s.cfg.SlippageBound})
		if err != nil {
			return err
		}
		quote, err := mech.Quote(market.Pool, outcome, amount)
		if err != nil {
			return err
		}
		if bound := mech.SlippageBound(); bound > 0 && quote.PriceImpact > bound {
			return fmt.Errorf("trade_service: price impact %.4f exceeds bound %.4f: %w",
				quote.PriceImpact, bound, domain.ErrSlippageExceeded)
		}

		now := time.Now().UTC()
		if err := s.risk.CheckTopic(ctx, market.Category); err != nil {
			return err
		}
		if err := s.risk.CheckSpend(ctx, tx.Trades, userID, quote.Cost, now); err != nil {
			return err
		}

		user, err := tx.Users.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		if user.Balance < quote.Cost {
			return fmt.Errorf("trade_service: balance %.2f < cost %.2f: %w",
				user.Balance, quote.Cost, domain.ErrInsufficientBalance)
		}

		trade := domain.Trade{
			ID:        uuid.NewString(),
			UserID:    userID,
			MarketID:  marketID,
			Outcome:   outcome,
			Quantity:  quote.Shares,
			Cost:      quote.Cost,
			CreatedAt: now,
		}
		if err := tx.Trades.Create(ctx, trade); err != nil {
			return fmt.Errorf("trade_service: append trade: %w", err)
		}

		pos, err := tx.Positions.Get(ctx, userID, marketID)
		if errors.Is(err, domain.ErrNotFound) {
			pos = domain.Position{
				ID:        uuid.NewString(),
				UserID:    userID,
				MarketID:  marketID,
				Holdings:  make([]float64, len(market.Outcomes)),
				CreatedAt: now,
			}
		} else if err != nil {
			return err
		}
		for len(pos.Holdings) < len(market.Outcomes) {
			pos.Holdings = append(pos.Holdings, 0)
		}
		pos.Holdings[outcome] += quote.Shares
		pos.UpdatedAt = now
		if err := tx.Positions.Upsert(ctx, pos); err != nil {
			return fmt.Errorf("trade_service: upsert position: %w", err)
		}

		market.Pool = quote.NewPool
		market.UpdatedAt = now
		if err := tx.Markets.Update(ctx, market); err != nil {
			return fmt.Errorf("trade_service: update market pool: %w", err)
		}

		user.Balance -= quote.Cost
		user.UpdatedAt = now
		if err := tx.Users.Update(ctx, user); err != nil {
			return fmt.Errorf("trade_service: debit balance: %w", err)
		}

		if err := tx.Audit.Log(ctx, "trade.executed", map[string]any{
			"trade_id":  trade.ID,
			"user_id":   userID,
			"market_id": marketID,
			"outcome":   outcome,
			"cost":      quote.Cost,
		}); err != nil {
			return err
		}

		probs, _ = mech.Prices(market.Pool)
		result = domain.TradeResult{
			Trade:      trade,
			NewBalance: user.Balance,
			Holdings:   append([]float64(nil), pos.Holdings...),
		}
		return nil
	})
	if err != nil {
		return domain.TradeResult{}, err
	}

	s.logger.InfoContext(ctx, "trade_service: trade executed",
		slog.String("trade_id", result.Trade.ID),
		slog.String("user_id", userID),
		slog.String("market_id", marketID),
		slog.Int("outcome", outcome),
		slog.Float64("cost", result.Trade.Cost),
		slog.Float64("shares", result.Trade.Quantity),
	)
	if s.cache != nil && probs != nil {
		if err := s.cache.SetPrices(ctx, marketID, probs, result.Trade.CreatedAt); err != nil {
			s.logger.WarnContext(ctx, "trade_service: cache prices",
				slog.String("market_id", marketID), slog.String("error", err.Error()))
		}
	}
	publishEvent(ctx, s.bus, s.logger, ChannelTrades, "trade.executed", marketID, result)
	return result, nil
}

// Quote prices a hypothetical trade without committing anything.
func (s *TradeService) Quote(ctx context.Context, marketID string, outcome int, amount float64) (pricing.Quote, error) {
	market, err := s.stores.Markets.GetByID(ctx, marketID)
	if err != nil {
		return pricing.Quote{}, err
	}
	if !market.Tradeable() {
		return pricing.Quote{}, fmt.Errorf("trade_service: market %s is %s: %w",
			marketID, market.Status, domain.ErrMarketNotOpen)
	}
	mech, err := pricing.ForMarket(market, pricing.Options{SlippageBound: s.cfg.SlippageBound})
	if err != nil {
		return pricing.Quote{}, err
	}
	return mech.Quote(market.Pool, outcome, amount)
}
