// Package memory provides an in-memory store for the inventory and transfer
// repositories, used by tests and by STORAGE_DRIVER=memory.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/fekuna/funeral-inventory-service/internal/model"
)

type state struct {
	lines        map[string]model.InventoryLine
	movements    []model.StockMovement
	reservations map[string]model.Reservation
	transfers    map[string]model.Transfer
}

func newState() *state {
	return &state{
		lines:        make(map[string]model.InventoryLine),
		reservations: make(map[string]model.Reservation),
		transfers:    make(map[string]model.Transfer),
	}
}

func (s *state) clone() *state {
	c := &state{
		lines:        make(map[string]model.InventoryLine, len(s.lines)),
		movements:    make([]model.StockMovement, len(s.movements)),
		reservations: make(map[string]model.Reservation, len(s.reservations)),
		transfers:    make(map[string]model.Transfer, len(s.transfers)),
	}
	for k, v := range s.lines {
		c.lines[k] = v
	}
	copy(c.movements, s.movements)
	for k, v := range s.reservations {
		c.reservations[k] = v
	}
	for k, v := range s.transfers {
		c.transfers[k] = cloneTransfer(v)
	}
	return c
}

func cloneTransfer(t model.Transfer) model.Transfer {
	items := make([]model.TransferItem, len(t.Items))
	copy(items, t.Items)
	t.Items = items
	return t
}

type txKey struct {
	store *Store
}

// Store holds all state behind one mutex. Transactions work on a clone and
// swap it in on success, so a failed transaction leaves nothing behind.
type Store struct {
	mu    sync.RWMutex
	state *state
	nowFn func() time.Time
}

func NewStore() *Store {
	return &Store{
		state: newState(),
		nowFn: time.Now,
	}
}

// SetNowFunc overrides the clock used for updated_at stamps.
func (s *Store) SetNowFunc(fn func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nowFn = fn
}

func (s *Store) now() time.Time {
	return s.nowFn()
}

// RunInTx joins a transaction already carried by ctx.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{s}).(*state); ok {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(context.WithValue(ctx, txKey{s}, work)); err != nil {
		return err
	}
	s.state = work
	return nil
}

func (s *Store) read(ctx context.Context, fn func(st *state) error) error {
	if st, ok := ctx.Value(txKey{s}).(*state); ok {
		return fn(st)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.state)
}

func (s *Store) write(ctx context.Context, fn func(st *state) error) error {
	if st, ok := ctx.Value(txKey{s}).(*state); ok {
		return fn(st)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.state)
}

func (s *Store) Inventory() *InventoryRepository {
	return &InventoryRepository{store: s}
}

func (s *Store) Transfers() *TransferRepository {
	return &TransferRepository{store: s}
}

func paginate(total, page, pageSize int) (int, int) {
	if pageSize <= 0 {
		return 0, total
	}
	if page < 1 {
		page = 1
	}
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return start, end
}
