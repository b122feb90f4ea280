package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/foresightlabs/foresight/internal/domain"
	"github.com/foresightlabs/foresight/internal/pricing"
)

// MarketConfig holds market-creation defaults.
type MarketConfig struct {
	// SeedLiquidity seeds both reserves of a new CPMM market. The
	// constant-product rule is undefined at zero, so creation rejects
	// non-positive seeds.
	SeedLiquidity float64
	// LMSRLiquidity is the default liquidity parameter b when a new LMSR
	// market does not specify one.
	LMSRLiquidity float64
	// SlippageBound is passed through to the pricing mechanism.
	SlippageBound float64
}

// CreateMarketRequest carries the caller-supplied fields for a new market.
type CreateMarketRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Category    string     `json:"category"`
	Outcomes    []string   `json:"outcomes"`
	Mechanism   string     `json:"mechanism"`
	LiquidityB  float64    `json:"liquidity_b"`
	ClosesAt    *time.Time `json:"closes_at"`
}

// MarketService owns the market lifecycle: creation, listing, pricing reads
// and the open -> closed transition. Settlement lives in SettlementService.
type MarketService struct {
	tx     domain.Transactor
	stores domain.TxStores
	risk   *RiskService
	cache  domain.PriceCache
	bus    domain.SignalBus
	cfg    MarketConfig
	logger *slog.Logger
}

// NewMarketService creates a MarketService with all required dependencies.
// stores serves plain reads; tx serves atomic writes. cache and bus may be
// nil; pricing reads then always recompute.
func NewMarketService(
	tx domain.Transactor,
	stores domain.TxStores,
	risk *RiskService,
	cache domain.PriceCache,
	bus domain.SignalBus,
	cfg MarketConfig,
	logger *slog.Logger,
) *MarketService {
	return &MarketService{tx: tx, stores: stores, risk: risk, cache: cache, bus: bus, cfg: cfg, logger: logger}
}

// Create validates the request, seeds the mechanism-specific pool state and
// persists the new market atomically with its audit entry.
func (s *MarketService) Create(ctx context.Context, req CreateMarketRequest) (domain.Market, error) {
	m, err := s.buildMarket(req)
	if err != nil {
		return domain.Market{}, err
	}
	if err := s.risk.CheckTopic(ctx, m.Category); err != nil {
		return domain.Market{}, err
	}

	err = s.tx.WithinTx(ctx, func(tx domain.TxStores) error {
		if err := tx.Markets.Create(ctx, m); err != nil {
			return fmt.Errorf("market_service: create market: %w", err)
		}
		return tx.Audit.Log(ctx, "market.created", map[string]any{
			"market_id": m.ID,
			"mechanism": string(m.Mechanism),
			"category":  m.Category,
		})
	})
	if err != nil {
		return domain.Market{}, err
	}

	s.logger.InfoContext(ctx, "market_service: market created",
		slog.String("market_id", m.ID),
		slog.String("mechanism", string(m.Mechanism)),
		slog.Int("outcomes", len(m.Outcomes)),
	)
	s.cachePrices(ctx, m)
	publishEvent(ctx, s.bus, s.logger, ChannelMarkets, "market.created", m.ID, m)
	return m, nil
}

func (s *MarketService) buildMarket(req CreateMarketRequest) (domain.Market, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return domain.Market{}, fmt.Errorf("market_service: title required: %w", domain.ErrInvalidRequest)
	}
	if len(req.Outcomes) < 2 {
		return domain.Market{}, fmt.Errorf("market_service: need at least 2 outcomes, got %d: %w",
			len(req.Outcomes), domain.ErrInvalidRequest)
	}
	for i, o := range req.Outcomes {
		if strings.TrimSpace(o) == "" {
			return domain.Market{}, fmt.Errorf("market_service: empty outcome label at %d: %w",
				i, domain.ErrInvalidRequest)
		}
	}

	mech := domain.MechanismType(strings.ToLower(strings.TrimSpace(req.Mechanism)))
	if !mech.Valid() {
		return domain.Market{}, fmt.Errorf("market_service: unknown mechanism %q: %w",
			req.Mechanism, domain.ErrInvalidRequest)
	}

	now := time.Now().UTC()
	m := domain.Market{
		ID:          uuid.NewString(),
		Title:       title,
		Description: strings.TrimSpace(req.Description),
		Category:    strings.TrimSpace(req.Category),
		Outcomes:    append([]string(nil), req.Outcomes...),
		Mechanism:   mech,
		Pool:        make([]float64, len(req.Outcomes)),
		Status:      domain.MarketStatusOpen,
		ClosesAt:    req.ClosesAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	switch mech {
	case domain.MechanismCPMM:
		if len(req.Outcomes) != 2 {
			return domain.Market{}, fmt.Errorf("market_service: cpmm requires exactly 2 outcomes, got %d: %w",
				len(req.Outcomes), domain.ErrInvalidRequest)
		}
		if s.cfg.SeedLiquidity <= 0 {
			return domain.Market{}, fmt.Errorf("market_service: cpmm seed liquidity must be positive, got %v: %w",
				s.cfg.SeedLiquidity, domain.ErrInvalidState)
		}
		m.Pool[0], m.Pool[1] = s.cfg.SeedLiquidity, s.cfg.SeedLiquidity
	case domain.MechanismLMSR:
		m.LiquidityB = req.LiquidityB
		if m.LiquidityB == 0 {
			m.LiquidityB = s.cfg.LMSRLiquidity
		}
		if m.LiquidityB <= 0 {
			return domain.Market{}, fmt.Errorf("market_service: lmsr liquidity b must be positive, got %v: %w",
				m.LiquidityB, domain.ErrInvalidRequest)
		}
	}

	// Selecting the mechanism now surfaces degenerate configuration at
	// creation instead of at first trade.
	if _, err := pricing.ForMarket(m, pricing.Options{SlippageBound: s.cfg.SlippageBound}); err != nil {
		return domain.Market{}, err
	}
	return m, nil
}

// Get returns one market by ID.
func (s *MarketService) Get(ctx context.Context, id string) (domain.Market, error) {
	return s.stores.Markets.GetByID(ctx, id)
}

// List returns markets filtered by status; an empty status lists all.
func (s *MarketService) List(ctx context.Context, status domain.MarketStatus, opts domain.ListOpts) ([]domain.Market, error) {
	return s.stores.Markets.List(ctx, status, opts)
}

// MarketDetail is a market together with its current implied probabilities
// and, for parimutuel markets, the payout multiplier per outcome.
type MarketDetail struct {
	Market         domain.Market `json:"market"`
	Probs          []float64     `json:"probs"`
	PayoutPerPoint []float64     `json:"payout_per_point,omitempty"`
}

// Detail returns one market with its probability vector. Parimutuel markets
// additionally carry the payout-per-point vector implied by the current pool.
func (s *MarketService) Detail(ctx context.Context, id string) (MarketDetail, error) {
	m, err := s.stores.Markets.GetByID(ctx, id)
	if err != nil {
		return MarketDetail{}, err
	}
	mech, err := pricing.ForMarket(m, pricing.Options{SlippageBound: s.cfg.SlippageBound})
	if err != nil {
		return MarketDetail{}, err
	}
	probs, err := mech.Prices(m.Pool)
	if err != nil {
		return MarketDetail{}, err
	}

	detail := MarketDetail{Market: m, Probs: probs}
	if m.Mechanism == domain.MechanismParimutuel {
		payouts, err := pricing.Parimutuel{}.PayoutPerPoint(m.Pool)
		if err != nil {
			return MarketDetail{}, err
		}
		detail.PayoutPerPoint = payouts
	}
	return detail, nil
}

// Trades returns the market's trade history, newest first.
func (s *MarketService) Trades(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.Trade, error) {
	if _, err := s.stores.Markets.GetByID(ctx, marketID); err != nil {
		return nil, err
	}
	return s.stores.Trades.ListByMarket(ctx, marketID, opts)
}

// Count reports the total number of markets.
func (s *MarketService) Count(ctx context.Context) (int64, error) {
	return s.stores.Markets.Count(ctx)
}

// Prices returns the market's current implied probability vector, serving
// from the price cache when possible.
func (s *MarketService) Prices(ctx context.Context, marketID string) ([]float64, time.Time, error) {
	if s.cache != nil {
		if probs, ts, err := s.cache.GetPrices(ctx, marketID); err == nil {
			return probs, ts, nil
		}
	}

	m, err := s.Get(ctx, marketID)
	if err != nil {
		return nil, time.Time{}, err
	}
	mech, err := pricing.ForMarket(m, pricing.Options{SlippageBound: s.cfg.SlippageBound})
	if err != nil {
		return nil, time.Time{}, err
	}
	probs, err := mech.Prices(m.Pool)
	if err != nil {
		return nil, time.Time{}, err
	}

	ts := time.Now().UTC()
	if s.cache != nil {
		if err := s.cache.SetPrices(ctx, marketID, probs, ts); err != nil {
			s.logger.WarnContext(ctx, "market_service: cache prices",
				slog.String("market_id", marketID), slog.String("error", err.Error()))
		}
	}
	return probs, ts, nil
}

// Close transitions an open market to closed. Closing an already-closed
// market is a no-op; closing a settled market is rejected.
func (s *MarketService) Close(ctx context.Context, marketID string) (domain.Market, error) {
	var m domain.Market
	err := s.tx.WithinTx(ctx, func(tx domain.TxStores) error {
		var err error
		m, err = tx.Markets.GetByID(ctx, marketID)
		if err != nil {
			return err
		}
		switch m.Status {
		case domain.MarketStatusClosed:
			return nil
		case domain.MarketStatusSettled:
			return fmt.Errorf("market_service: market %s already settled: %w",
				marketID, domain.ErrInvalidState)
		}
		m.Status = domain.MarketStatusClosed
		m.UpdatedAt = time.Now().UTC()
		if err := tx.Markets.Update(ctx, m); err != nil {
			return fmt.Errorf("market_service: close market: %w", err)
		}
		return tx.Audit.Log(ctx, "market.closed", map[string]any{"market_id": m.ID})
	})
	if err != nil {
		return domain.Market{}, err
	}

	s.logger.InfoContext(ctx, "market_service: market closed", slog.String("market_id", m.ID))
	publishEvent(ctx, s.bus, s.logger, ChannelMarkets, "market.closed", m.ID, m)
	return m, nil
}

// CloseExpired sweeps open markets whose deadline has passed and closes
// them. It returns the number of markets closed; per-market failures are
// logged and do not stop the sweep.
func (s *MarketService) CloseExpired(ctx context.Context, asOf time.Time) (int, error) {
	expired, err := s.stores.Markets.ListExpired(ctx, asOf)
	if err != nil {
		return 0, fmt.Errorf("market_service: list expired: %w", err)
	}

	closed := 0
	for _, m := range expired {
		if _, err := s.Close(ctx, m.ID); err != nil {
			if errors.Is(err, domain.ErrInvalidState) {
				continue // settled by a concurrent actor between list and close
			}
			s.logger.WarnContext(ctx, "market_service: close expired market",
				slog.String("market_id", m.ID), slog.String("error", err.Error()))
			continue
		}
		closed++
	}
	return closed, nil
}

func (s *MarketService) cachePrices(ctx context.Context, m domain.Market) {
	if s.cache == nil {
		return
	}
	mech, err := pricing.ForMarket(m, pricing.Options{SlippageBound: s.cfg.SlippageBound})
	if err != nil {
		return
	}
	probs, err := mech.Prices(m.Pool)
	if err != nil {
		return
	}
	if err := s.cache.SetPrices(ctx, m.ID, probs, time.Now().UTC()); err != nil {
		s.logger.WarnContext(ctx, "market_service: cache prices",
			slog.String("market_id", m.ID), slog.String("error", err.Error()))
	}
}
