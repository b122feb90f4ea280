package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/foresightlabs/foresight/internal/domain"
)

type marketStore struct{ v view }

func (s *marketStore) Create(ctx context.Context, m domain.Market) error {
	return s.v.write(func(d *dataset) error {
		if _, ok := d.markets[m.ID]; ok {
			return fmt.Errorf("memory: create market %s: %w", m.ID, domain.ErrInvalidState)
		}
		d.markets[m.ID] = cloneMarket(m)
		return nil
	})
}

func (s *marketStore) Update(ctx context.Context, m domain.Market) error {
	return s.v.write(func(d *dataset) error {
		if _, ok := d.markets[m.ID]; !ok {
			return fmt.Errorf("memory: update market %s: %w", m.ID, domain.ErrNotFound)
		}
		d.markets[m.ID] = cloneMarket(m)
		return nil
	})
}

func (s *marketStore) GetByID(ctx context.Context, id string) (domain.Market, error) {
	var out domain.Market
	err := s.v.read(func(d *dataset) error {
		m, ok := d.markets[id]
		if !ok {
			return fmt.Errorf("memory: market %s: %w", id, domain.ErrNotFound)
		}
		out = cloneMarket(m)
		return nil
	})
	return out, err
}

func (s *marketStore) List(ctx context.Context, status domain.MarketStatus, opts domain.ListOpts) ([]domain.Market, error) {
	var out []domain.Market
	err := s.v.read(func(d *dataset) error {
		for _, m := range d.markets {
			if status != "" && m.Status != status {
				continue
			}
			out = append(out, cloneMarket(m))
		}
		sort.Slice(out, func(i, j int) bool {
			if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
				return out[i].CreatedAt.After(out[j].CreatedAt)
			}
			return out[i].ID < out[j].ID
		})
		out = paginate(out, opts)
		return nil
	})
	return out, err
}

func (s *marketStore) ListExpired(ctx context.Context, asOf time.Time) ([]domain.Market, error) {
	var out []domain.Market
	err := s.v.read(func(d *dataset) error {
		for _, m := range d.markets {
			if m.Status != domain.MarketStatusOpen || m.ClosesAt == nil {
				continue
			}
			if !m.ClosesAt.After(asOf) {
				out = append(out, cloneMarket(m))
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
		return nil
	})
	return out, err
}

func (s *marketStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.v.read(func(d *dataset) error {
		n = int64(len(d.markets))
		return nil
	})
	return n, err
}

type userStore struct{ v view }

func (s *userStore) Create(ctx context.Context, u domain.User) error {
	return s.v.write(func(d *dataset) error {
		if _, ok := d.users[u.ID]; ok {
			return fmt.Errorf("memory: create user %s: %w", u.ID, domain.ErrInvalidState)
		}
		d.users[u.ID] = u
		return nil
	})
}

func (s *userStore) Update(ctx context.Context, u domain.User) error {
	return s.v.write(func(d *dataset) error {
		if _, ok := d.users[u.ID]; !ok {
			return fmt.Errorf("memory: update user %s: %w", u.ID, domain.ErrNotFound)
		}
		d.users[u.ID] = u
		return nil
	})
}

func (s *userStore) GetByID(ctx context.Context, id string) (domain.User, error) {
	var out domain.User
	err := s.v.read(func(d *dataset) error {
		u, ok := d.users[id]
		if !ok {
			return fmt.Errorf("memory: user %s: %w", id, domain.ErrNotFound)
		}
		out = u
		return nil
	})
	return out, err
}

func (s *userStore) ListTop(ctx context.Context, limit int) ([]domain.User, error) {
	var out []domain.User
	err := s.v.read(func(d *dataset) error {
		for _, u := range d.users {
			out = append(out, u)
		}
		sort.Slice(out, func(i, j int) bool {
			if out[i].Reputation != out[j].Reputation {
				return out[i].Reputation > out[j].Reputation
			}
			return out[i].ID < out[j].ID
		})
		if limit > 0 && len(out) > limit {
			out = out[:limit]
		}
		return nil
	})
	return out, err
}

type positionStore struct{ v view }

func (s *positionStore) Upsert(ctx context.Context, p domain.Position) error {
	return s.v.write(func(d *dataset) error {
		d.positions[positionKey(p.UserID, p.MarketID)] = clonePosition(p)
		return nil
	})
}

func (s *positionStore) Get(ctx context.Context, userID, marketID string) (domain.Position, error) {
	var out domain.Position
	err := s.v.read(func(d *dataset) error {
		p, ok := d.positions[positionKey(userID, marketID)]
		if !ok {
			return fmt.Errorf("memory: position %s/%s: %w", userID, marketID, domain.ErrNotFound)
		}
		out = clonePosition(p)
		return nil
	})
	return out, err
}

func (s *positionStore) ListByMarket(ctx context.Context, marketID string) ([]domain.Position, error) {
	var out []domain.Position
	err := s.v.read(func(d *dataset) error {
		for _, p := range d.positions {
			if p.MarketID == marketID {
				out = append(out, clonePosition(p))
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
		return nil
	})
	return out, err
}

func (s *positionStore) ListByUser(ctx context.Context, userID string) ([]domain.Position, error) {
	var out []domain.Position
	err := s.v.read(func(d *dataset) error {
		for _, p := range d.positions {
			if p.UserID == userID {
				out = append(out, clonePosition(p))
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].MarketID < out[j].MarketID })
		return nil
	})
	return out, err
}

type tradeStore struct{ v view }

func (s *tradeStore) Create(ctx context.Context, t domain.Trade) error {
	return s.v.write(func(d *dataset) error {
		d.trades = append(d.trades, t)
		return nil
	})
}

func (s *tradeStore) ListByMarket(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.Trade, error) {
	var out []domain.Trade
	err := s.v.read(func(d *dataset) error {
		for _, t := range d.trades {
			if t.MarketID == marketID && inWindow(t.CreatedAt, opts) {
				out = append(out, t)
			}
		}
		reverseTrades(out)
		out = paginate(out, opts)
		return nil
	})
	return out, err
}

func (s *tradeStore) ListByUser(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Trade, error) {
	var out []domain.Trade
	err := s.v.read(func(d *dataset) error {
		for _, t := range d.trades {
			if t.UserID == userID && inWindow(t.CreatedAt, opts) {
				out = append(out, t)
			}
		}
		reverseTrades(out)
		out = paginate(out, opts)
		return nil
	})
	return out, err
}

func (s *tradeStore) SumCostSince(ctx context.Context, userID string, since time.Time) (float64, error) {
	var sum float64
	err := s.v.read(func(d *dataset) error {
		for _, t := range d.trades {
			if t.UserID == userID && !t.CreatedAt.Before(since) {
				sum += t.Cost
			}
		}
		return nil
	})
	return sum, err
}

func (s *tradeStore) ListBefore(ctx context.Context, before time.Time) ([]domain.Trade, error) {
	var out []domain.Trade
	err := s.v.read(func(d *dataset) error {
		for _, t := range d.trades {
			if t.CreatedAt.Before(before) {
				out = append(out, t)
			}
		}
		return nil
	})
	return out, err
}

type reputationStore struct{ v view }

func (s *reputationStore) Create(ctx context.Context, r domain.ReputationRecord) error {
	return s.v.write(func(d *dataset) error {
		d.reputation = append(d.reputation, r)
		return nil
	})
}

func (s *reputationStore) ListByUser(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.ReputationRecord, error) {
	var out []domain.ReputationRecord
	err := s.v.read(func(d *dataset) error {
		for _, r := range d.reputation {
			if r.UserID == userID && inWindow(r.CreatedAt, opts) {
				out = append(out, r)
			}
		}
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
		out = paginate(out, opts)
		return nil
	})
	return out, err
}

func (s *reputationStore) ListBefore(ctx context.Context, before time.Time) ([]domain.ReputationRecord, error) {
	var out []domain.ReputationRecord
	err := s.v.read(func(d *dataset) error {
		for _, r := range d.reputation {
			if r.CreatedAt.Before(before) {
				out = append(out, r)
			}
		}
		return nil
	})
	return out, err
}

type settlementStore struct{ v view }

func (s *settlementStore) Create(ctx context.Context, rec domain.SettlementRecord) error {
	return s.v.write(func(d *dataset) error {
		if _, ok := d.settlements[rec.MarketID]; ok {
			return fmt.Errorf("memory: settlement for market %s exists: %w", rec.MarketID, domain.ErrInvalidState)
		}
		d.settlements[rec.MarketID] = cloneSettlement(rec)
		return nil
	})
}

func (s *settlementStore) GetByMarket(ctx context.Context, marketID string) (domain.SettlementRecord, error) {
	var out domain.SettlementRecord
	err := s.v.read(func(d *dataset) error {
		rec, ok := d.settlements[marketID]
		if !ok {
			return fmt.Errorf("memory: settlement for market %s: %w", marketID, domain.ErrNotFound)
		}
		out = cloneSettlement(rec)
		return nil
	})
	return out, err
}

type auditStore struct{ v view }

func (s *auditStore) Log(ctx context.Context, event string, detail map[string]any) error {
	return s.v.write(func(d *dataset) error {
		d.auditSeq++
		d.audit = append(d.audit, domain.AuditEntry{
			ID:        d.auditSeq,
			Event:     event,
			Detail:    detail,
			CreatedAt: time.Now().UTC(),
		})
		return nil
	})
}

func (s *auditStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	var out []domain.AuditEntry
	err := s.v.read(func(d *dataset) error {
		for _, e := range d.audit {
			if inWindow(e.CreatedAt, opts) {
				out = append(out, e)
			}
		}
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
		out = paginate(out, opts)
		return nil
	})
	return out, err
}

func inWindow(ts time.Time, opts domain.ListOpts) bool {
	if opts.Since != nil && ts.Before(*opts.Since) {
		return false
	}
	if opts.Until != nil && !ts.Before(*opts.Until) {
		return false
	}
	return true
}

func paginate[T any](items []T, opts domain.ListOpts) []T {
	if opts.Offset > 0 {
		if opts.Offset >= len(items) {
			return nil
		}
		items = items[opts.Offset:]
	}
	if opts.Limit > 0 && len(items) > opts.Limit {
		items = items[:opts.Limit]
	}
	return items
}

func reverseTrades(ts []domain.Trade) {
	for i, j := 0, len(ts)-1; i < j; i, j = i+1, j-1 {
		ts[i], ts[j] = ts[j], ts[i]
	}
}
