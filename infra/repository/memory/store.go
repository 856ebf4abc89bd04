// Package memory is an in-process implementation of the repository contracts with
// optimistic concurrency. Writes made inside UnitOfWork.Do are buffered and validated
// against the committed versions at commit time, so two racing units that touched
// the same document cannot both commit.
package memory

import (
	"sync"

	"github.com/google/uuid"
	"github.com/kikoba/kikoba/pkg/domain"
	"github.com/kikoba/kikoba/pkg/domain/ledger"
	"github.com/kikoba/kikoba/pkg/domain/loan"
	"github.com/kikoba/kikoba/pkg/domain/member"
)

type collection[T any] struct {
	rows       map[uuid.UUID]T
	id         func(T) uuid.UUID
	clone      func(T) T
	version    func(T) int64
	setVersion func(T, int64)
	// conflict reports a unique-key clash between an existing row and a new one.
	conflict func(existing, created T) bool
}

func (c *collection[T]) clashes(doc T) bool {
	if c.conflict == nil {
		return false
	}
	for _, row := range c.rows {
		if c.conflict(row, doc) {
			return true
		}
	}
	return false
}

// Store holds the committed state.
type Store struct {
	mu      sync.RWMutex
	txs     *collection[*ledger.Transaction]
	loans   *collection[*loan.Request]
	members *collection[*member.Member]
	codes   *collection[*member.GroupCode]
	audits  *collection[*ledger.PenaltyAudit]
}

// New returns an empty store.
func New() *Store {
	return &Store{
		txs: &collection[*ledger.Transaction]{
			rows:       make(map[uuid.UUID]*ledger.Transaction),
			id:         func(t *ledger.Transaction) uuid.UUID { return t.ID },
			clone:      (*ledger.Transaction).Clone,
			version:    func(t *ledger.Transaction) int64 { return t.Version },
			setVersion: func(t *ledger.Transaction, v int64) { t.Version = v },
			// At most one Loan transaction per request.
			conflict: func(a, b *ledger.Transaction) bool {
				return a.RequestID != nil && b.RequestID != nil &&
					a.Type == ledger.TypeLoan && b.Type == ledger.TypeLoan &&
					*a.RequestID == *b.RequestID
			},
		},
		loans: &collection[*loan.Request]{
			rows:       make(map[uuid.UUID]*loan.Request),
			id:         func(r *loan.Request) uuid.UUID { return r.ID },
			clone:      (*loan.Request).Clone,
			version:    func(r *loan.Request) int64 { return r.Version },
			setVersion: func(r *loan.Request, v int64) { r.Version = v },
		},
		members: &collection[*member.Member]{
			rows:       make(map[uuid.UUID]*member.Member),
			id:         func(m *member.Member) uuid.UUID { return m.ID },
			clone:      func(m *member.Member) *member.Member { c := *m; return &c },
			version:    func(*member.Member) int64 { return 0 },
			setVersion: func(*member.Member, int64) {},
			conflict: func(a, b *member.Member) bool {
				return member.NormalizeCode(a.Code) == member.NormalizeCode(b.Code)
			},
		},
		codes: &collection[*member.GroupCode]{
			rows: make(map[uuid.UUID]*member.GroupCode),
			id:   func(g *member.GroupCode) uuid.UUID { return g.ID },
			clone: func(g *member.GroupCode) *member.GroupCode {
				c := *g
				if g.ExpiresAt != nil {
					e := *g.ExpiresAt
					c.ExpiresAt = &e
				}
				return &c
			},
			version:    func(g *member.GroupCode) int64 { return g.Version },
			setVersion: func(g *member.GroupCode, v int64) { g.Version = v },
			conflict: func(a, b *member.GroupCode) bool {
				return member.NormalizeCode(a.Code) == member.NormalizeCode(b.Code)
			},
		},
		audits: &collection[*ledger.PenaltyAudit]{
			rows:       make(map[uuid.UUID]*ledger.PenaltyAudit),
			id:         func(a *ledger.PenaltyAudit) uuid.UUID { return a.ID },
			clone:      func(a *ledger.PenaltyAudit) *ledger.PenaltyAudit { c := *a; return &c },
			version:    func(*ledger.PenaltyAudit) int64 { return 0 },
			setVersion: func(*ledger.PenaltyAudit, int64) {},
		},
	}
}

// pending buffers the writes of one unit of work for one collection.
type pending[T any] struct {
	creates map[uuid.UUID]T
	updates map[uuid.UUID]T
	bases   map[uuid.UUID]int64
}

func newPending[T any]() *pending[T] {
	return &pending[T]{
		creates: make(map[uuid.UUID]T),
		updates: make(map[uuid.UUID]T),
		bases:   make(map[uuid.UUID]int64),
	}
}

type txn struct {
	txs     *pending[*ledger.Transaction]
	loans   *pending[*loan.Request]
	members *pending[*member.Member]
	codes   *pending[*member.GroupCode]
	audits  *pending[*ledger.PenaltyAudit]
}

func newTxn() *txn {
	return &txn{
		txs:     newPending[*ledger.Transaction](),
		loans:   newPending[*loan.Request](),
		members: newPending[*member.Member](),
		codes:   newPending[*member.GroupCode](),
		audits:  newPending[*ledger.PenaltyAudit](),
	}
}

func lookup[T any](s *Store, c *collection[T], p *pending[T], id uuid.UUID) (T, bool) {
	if p != nil {
		if v, ok := p.creates[id]; ok {
			return c.clone(v), true
		}
		if v, ok := p.updates[id]; ok {
			return c.clone(v), true
		}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := c.rows[id]
	if !ok {
		var zero T
		return zero, false
	}
	return c.clone(v), true
}

func scan[T any](s *Store, c *collection[T], p *pending[T], match func(T) bool) []T {
	var out []T
	s.mu.RLock()
	for id, v := range c.rows {
		if p != nil {
			if u, ok := p.updates[id]; ok {
				v = u
			}
		}
		if match(v) {
			out = append(out, c.clone(v))
		}
	}
	s.mu.RUnlock()
	if p != nil {
		for _, v := range p.creates {
			if match(v) {
				out = append(out, c.clone(v))
			}
		}
	}
	return out
}

func create[T any](s *Store, c *collection[T], p *pending[T], doc T) error {
	id := c.id(doc)
	if _, ok := p.creates[id]; ok {
		return domain.ErrAlreadyExists
	}
	for _, v := range p.creates {
		if c.conflict != nil && c.conflict(v, doc) {
			return domain.ErrAlreadyExists
		}
	}
	s.mu.RLock()
	_, exists := c.rows[id]
	clash := exists || c.clashes(doc)
	s.mu.RUnlock()
	if clash {
		return domain.ErrAlreadyExists
	}
	p.creates[id] = c.clone(doc)
	return nil
}

func update[T any](s *Store, c *collection[T], p *pending[T], doc T, expected int64, notFound error) error {
	id := c.id(doc)
	current, ok := lookup(s, c, p, id)
	if !ok {
		return notFound
	}
	if c.version(current) != expected {
		return domain.ErrConcurrentModification
	}
	c.setVersion(doc, expected+1)
	stored := c.clone(doc)
	if _, ok := p.creates[id]; ok {
		p.creates[id] = stored
		return nil
	}
	if _, ok := p.bases[id]; !ok {
		p.bases[id] = expected
	}
	p.updates[id] = stored
	return nil
}

// validate must be called with s.mu held for writing.
func validate[T any](c *collection[T], p *pending[T]) error {
	for id, doc := range p.creates {
		if _, exists := c.rows[id]; exists || c.clashes(doc) {
			return domain.ErrAlreadyExists
		}
	}
	for id, base := range p.bases {
		cur, ok := c.rows[id]
		if !ok || c.version(cur) != base {
			return domain.ErrConcurrentModification
		}
	}
	return nil
}

func apply[T any](c *collection[T], p *pending[T]) {
	for id, doc := range p.creates {
		c.rows[id] = doc
	}
	for id, doc := range p.updates {
		c.rows[id] = doc
	}
}

func (s *Store) commit(t *txn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, err := range []error{
		validate(s.txs, t.txs),
		validate(s.loans, t.loans),
		validate(s.members, t.members),
		validate(s.codes, t.codes),
		validate(s.audits, t.audits),
	} {
		if err != nil {
			return err
		}
	}
	apply(s.txs, t.txs)
	apply(s.loans, t.loans)
	apply(s.members, t.members)
	apply(s.codes, t.codes)
	apply(s.audits, t.audits)
	return nil
}

// autocommit runs fn in t when the caller is inside a unit of work, otherwise in a
// fresh single-operation unit that commits immediately.
func (s *Store) autocommit(t *txn, fn func(t *txn) error) error {
	if t != nil {
		return fn(t)
	}
	t = newTxn()
	if err := fn(t); err != nil {
		return err
	}
	return s.commit(t)
}
