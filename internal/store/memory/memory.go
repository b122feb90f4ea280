// Package memory implements the domain store interfaces with in-process
// maps. It backs the "memory" database driver for demos and provides
// deterministic storage for unit tests of the trading and settlement
// engines, which receive their stores by injection.
package memory

import (
	"context"
	"sync"

	"github.com/foresightlabs/foresight/internal/domain"
)

// dataset is the full mutable state. Transactions clone it, mutate the
// clone, and swap it in on commit, so a failed transaction leaves no
// partial state visible.
type dataset struct {
	markets     map[string]domain.Market
	users       map[string]domain.User
	positions   map[string]domain.Position // keyed userID + "/" + marketID
	trades      []domain.Trade
	reputation  []domain.ReputationRecord
	settlements map[string]domain.SettlementRecord // keyed by market ID
	audit       []domain.AuditEntry
	auditSeq    int64
}

func newDataset() *dataset {
	return &dataset{
		markets:     make(map[string]domain.Market),
		users:       make(map[string]domain.User),
		positions:   make(map[string]domain.Position),
		settlements: make(map[string]domain.SettlementRecord),
	}
}

func (d *dataset) clone() *dataset {
	c := newDataset()
	for k, v := range d.markets {
		c.markets[k] = cloneMarket(v)
	}
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.positions {
		c.positions[k] = clonePosition(v)
	}
	c.trades = append(c.trades, d.trades...)
	c.reputation = append(c.reputation, d.reputation...)
	for k, v := range d.settlements {
		c.settlements[k] = cloneSettlement(v)
	}
	c.audit = append(c.audit, d.audit...)
	c.auditSeq = d.auditSeq
	return c
}

// Store is the root in-memory store. It satisfies domain.Transactor and
// exposes the per-entity stores.
type Store struct {
	mu   sync.RWMutex
	data *dataset
}

// New creates an empty Store.
func New() *Store {
	return &Store{data: newDataset()}
}

// Stores returns the non-transactional store bundle, each store serialized
// by the Store's mutex.
func (s *Store) Stores() domain.TxStores {
	return txStores(&lockedView{s: s})
}

// WithinTx implements domain.Transactor. The whole transaction runs under
// the write lock against a clone of the dataset; only a nil return from fn
// publishes the clone.
func (s *Store) WithinTx(ctx context.Context, fn func(tx domain.TxStores) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := s.data.clone()
	if err := fn(txStores(&txView{d: clone})); err != nil {
		return err
	}
	s.data = clone
	return nil
}

func txStores(v view) domain.TxStores {
	return domain.TxStores{
		Markets:     &marketStore{v},
		Users:       &userStore{v},
		Positions:   &positionStore{v},
		Trades:      &tradeStore{v},
		Reputation:  &reputationStore{v},
		Settlements: &settlementStore{v},
		Audit:       &auditStore{v},
	}
}

// view abstracts "dataset plus locking discipline" so the same store logic
// serves both the locked top-level store and the already-serialized
// transaction scope.
type view interface {
	read(fn func(d *dataset) error) error
	write(fn func(d *dataset) error) error
}

type lockedView struct{ s *Store }

func (v *lockedView) read(fn func(d *dataset) error) error {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	return fn(v.s.data)
}

func (v *lockedView) write(fn func(d *dataset) error) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	return fn(v.s.data)
}

type txView struct{ d *dataset }

func (v *txView) read(fn func(d *dataset) error) error  { return fn(v.d) }
func (v *txView) write(fn func(d *dataset) error) error { return fn(v.d) }

// ---------------------------------------------------------------------------
// Entity cloning. Stored values own their slices; reads hand out copies so
// callers can never alias internal state.
// ---------------------------------------------------------------------------

func cloneMarket(m domain.Market) domain.Market {
	m.Outcomes = append([]string(nil), m.Outcomes...)
	m.Pool = append([]float64(nil), m.Pool...)
	if m.ResolvedOutcome != nil {
		v := *m.ResolvedOutcome
		m.ResolvedOutcome = &v
	}
	if m.ClosesAt != nil {
		v := *m.ClosesAt
		m.ClosesAt = &v
	}
	return m
}

func clonePosition(p domain.Position) domain.Position {
	p.Holdings = append([]float64(nil), p.Holdings...)
	if p.RealizedProfit != nil {
		v := *p.RealizedProfit
		p.RealizedProfit = &v
	}
	return p
}

func cloneSettlement(r domain.SettlementRecord) domain.SettlementRecord {
	r.Payouts = append([]domain.Payout(nil), r.Payouts...)
	return r
}

func positionKey(userID, marketID string) string {
	return userID + "/" + marketID
}
