package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"

	"sns/internal/registry/models"
	"sns/internal/registry/ports"
	id "sns/pkg/domain"
	"sns/pkg/platform/sentinel"
)

// InMemory is a single-process substrate for tests and development.
// Transactions are serialized by one mutex; each works on a shallow copy of
// the committed state that replaces it only when fn succeeds. Records are
// copied on every read and write so callers never alias stored values.
type InMemory struct {
	mu    sync.Mutex
	state *memState
}

type memState struct {
	balances map[id.Identity]uint64
	config   *models.Config
	names    map[string]*models.NameRecord
	reverses map[id.Identity]*models.ReverseRecord
	events   map[uuid.UUID]*models.Event
	order    []uuid.UUID
}

var (
	_ ports.Substrate = (*InMemory)(nil)
	_ ports.Outbox    = (*InMemory)(nil)
)

func NewInMemory() *InMemory {
	return &InMemory{state: &memState{
		balances: make(map[id.Identity]uint64),
		names:    make(map[string]*models.NameRecord),
		reverses: make(map[id.Identity]*models.ReverseRecord),
		events:   make(map[uuid.UUID]*models.Event),
	}}
}

func (s *memState) clone() *memState {
	c := &memState{
		balances: make(map[id.Identity]uint64, len(s.balances)),
		config:   s.config,
		names:    make(map[string]*models.NameRecord, len(s.names)),
		reverses: make(map[id.Identity]*models.ReverseRecord, len(s.reverses)),
		events:   make(map[uuid.UUID]*models.Event, len(s.events)),
		order:    append([]uuid.UUID(nil), s.order...),
	}
	for k, v := range s.balances {
		c.balances[k] = v
	}
	for k, v := range s.names {
		c.names[k] = v
	}
	for k, v := range s.reverses {
		c.reverses[k] = v
	}
	for k, v := range s.events {
		c.events[k] = v
	}
	return c
}

// RunInTx runs fn against a private copy of the state and publishes the copy
// on success.
func (m *InMemory) RunInTx(ctx context.Context, fn func(ctx context.Context, store ports.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	working := m.state.clone()
	if err := fn(ctx, &memTx{state: working}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.state = working
	return nil
}

// view runs fn on the committed state. Writes outside RunInTx apply immediately.
func (m *InMemory) view(fn func(tx *memTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(&memTx{state: m.state})
}

// Credit mints amount into account. It stands in for the external funding
// path of the ledger and is used by fixtures and the dev daemon.
func (m *InMemory) Credit(_ context.Context, account id.Identity, amount uint64) error {
	return m.view(func(tx *memTx) error { return tx.credit(account, amount) })
}

func (m *InMemory) Balance(ctx context.Context, account id.Identity) (bal uint64, err error) {
	err = m.view(func(tx *memTx) error {
		bal, err = tx.Balance(ctx, account)
		return err
	})
	return bal, err
}

func (m *InMemory) Transfer(ctx context.Context, from, to id.Identity, amount uint64) error {
	return m.view(func(tx *memTx) error { return tx.Transfer(ctx, from, to, amount) })
}

func (m *InMemory) CreateConfig(ctx context.Context, cfg *models.Config) error {
	return m.view(func(tx *memTx) error { return tx.CreateConfig(ctx, cfg) })
}

func (m *InMemory) GetConfig(ctx context.Context) (cfg *models.Config, err error) {
	err = m.view(func(tx *memTx) error {
		cfg, err = tx.GetConfig(ctx)
		return err
	})
	return cfg, err
}

func (m *InMemory) CreateName(ctx context.Context, record *models.NameRecord) error {
	return m.view(func(tx *memTx) error { return tx.CreateName(ctx, record) })
}

func (m *InMemory) GetName(ctx context.Context, name string) (rec *models.NameRecord, err error) {
	err = m.view(func(tx *memTx) error {
		rec, err = tx.GetName(ctx, name)
		return err
	})
	return rec, err
}

func (m *InMemory) UpdateName(ctx context.Context, record *models.NameRecord) error {
	return m.view(func(tx *memTx) error { return tx.UpdateName(ctx, record) })
}

func (m *InMemory) ListNames(ctx context.Context, owner *id.Identity) (out []*models.NameRecord, err error) {
	err = m.view(func(tx *memTx) error {
		out, err = tx.ListNames(ctx, owner)
		return err
	})
	return out, err
}

func (m *InMemory) PutReverse(ctx context.Context, record *models.ReverseRecord) error {
	return m.view(func(tx *memTx) error { return tx.PutReverse(ctx, record) })
}

func (m *InMemory) GetReverse(ctx context.Context, owner id.Identity) (rec *models.ReverseRecord, err error) {
	err = m.view(func(tx *memTx) error {
		rec, err = tx.GetReverse(ctx, owner)
		return err
	})
	return rec, err
}

func (m *InMemory) ListReverse(ctx context.Context) (out []*models.ReverseRecord, err error) {
	err = m.view(func(tx *memTx) error {
		out, err = tx.ListReverse(ctx)
		return err
	})
	return out, err
}

func (m *InMemory) AppendEvent(ctx context.Context, event *models.Event) error {
	return m.view(func(tx *memTx) error { return tx.AppendEvent(ctx, event) })
}

// FetchPending returns unpublished events in append order.
func (m *InMemory) FetchPending(_ context.Context, limit int) ([]*models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Event
	for _, eventID := range m.state.order {
		if limit > 0 && len(out) >= limit {
			break
		}
		e := m.state.events[eventID]
		if e.PublishedAt == nil {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *InMemory) MarkPublished(_ context.Context, ids []uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := nowUTC()
	for _, eventID := range ids {
		e, ok := m.state.events[eventID]
		if !ok {
			return fmt.Errorf("mark published %s: %w", eventID, sentinel.ErrNotFound)
		}
		cp := *e
		cp.PublishedAt = &now
		m.state.events[eventID] = &cp
	}
	return nil
}

// memTx implements ports.Store over one memState.
type memTx struct {
	state *memState
}

func (t *memTx) Balance(_ context.Context, account id.Identity) (uint64, error) {
	return t.state.balances[account], nil
}

func (t *memTx) Transfer(_ context.Context, from, to id.Identity, amount uint64) error {
	if t.state.balances[from] < amount {
		return fmt.Errorf("debit %s: %w", from.Hex(), sentinel.ErrInsufficientFunds)
	}
	if from != to && t.state.balances[to] > math.MaxUint64-amount {
		return fmt.Errorf("credit %s: %w", to.Hex(), sentinel.ErrOverflow)
	}
	t.state.balances[from] -= amount
	t.state.balances[to] += amount
	return nil
}

func (t *memTx) credit(account id.Identity, amount uint64) error {
	if t.state.balances[account] > math.MaxUint64-amount {
		return fmt.Errorf("credit %s: %w", account.Hex(), sentinel.ErrOverflow)
	}
	t.state.balances[account] += amount
	return nil
}

func (t *memTx) CreateConfig(_ context.Context, cfg *models.Config) error {
	if t.state.config != nil {
		return fmt.Errorf("create config: %w", sentinel.ErrAlreadyExists)
	}
	cp := *cfg
	t.state.config = &cp
	return nil
}

func (t *memTx) GetConfig(_ context.Context) (*models.Config, error) {
	if t.state.config == nil {
		return nil, fmt.Errorf("get config: %w", sentinel.ErrNotFound)
	}
	cp := *t.state.config
	return &cp, nil
}

func (t *memTx) CreateName(_ context.Context, record *models.NameRecord) error {
	if _, ok := t.state.names[record.Name]; ok {
		return fmt.Errorf("create name %q: %w", record.Name, sentinel.ErrAlreadyExists)
	}
	cp := *record
	t.state.names[record.Name] = &cp
	return nil
}

func (t *memTx) GetName(_ context.Context, name string) (*models.NameRecord, error) {
	rec, ok := t.state.names[name]
	if !ok {
		return nil, fmt.Errorf("get name %q: %w", name, sentinel.ErrNotFound)
	}
	cp := *rec
	return &cp, nil
}

func (t *memTx) UpdateName(_ context.Context, record *models.NameRecord) error {
	if _, ok := t.state.names[record.Name]; !ok {
		return fmt.Errorf("update name %q: %w", record.Name, sentinel.ErrNotFound)
	}
	cp := *record
	t.state.names[record.Name] = &cp
	return nil
}

func (t *memTx) ListNames(_ context.Context, owner *id.Identity) ([]*models.NameRecord, error) {
	out := make([]*models.NameRecord, 0, len(t.state.names))
	for _, rec := range t.state.names {
		if owner != nil && rec.Owner != *owner {
			continue
		}
		cp := *rec
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (t *memTx) PutReverse(_ context.Context, record *models.ReverseRecord) error {
	cp := *record
	t.state.reverses[record.Owner] = &cp
	return nil
}

func (t *memTx) GetReverse(_ context.Context, owner id.Identity) (*models.ReverseRecord, error) {
	rec, ok := t.state.reverses[owner]
	if !ok {
		return nil, fmt.Errorf("get reverse %s: %w", owner.Hex(), sentinel.ErrNotFound)
	}
	cp := *rec
	return &cp, nil
}

func (t *memTx) ListReverse(_ context.Context) ([]*models.ReverseRecord, error) {
	out := make([]*models.ReverseRecord, 0, len(t.state.reverses))
	for _, rec := range t.state.reverses {
		cp := *rec
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Owner.Hex() < out[j].Owner.Hex() })
	return out, nil
}

func (t *memTx) AppendEvent(_ context.Context, event *models.Event) error {
	if _, ok := t.state.events[event.ID]; ok {
		return fmt.Errorf("append event %s: %w", event.ID, sentinel.ErrAlreadyExists)
	}
	cp := *event
	t.state.events[event.ID] = &cp
	t.state.order = append(t.state.order, event.ID)
	return nil
}
