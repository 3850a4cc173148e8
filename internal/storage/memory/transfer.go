package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fekuna/funeral-inventory-service/internal/model"
	"github.com/fekuna/funeral-inventory-service/internal/transfer"
	"github.com/fekuna/funeral-inventory-service/internal/transfer/dto"
)

var _ transfer.Repository = (*TransferRepository)(nil)

type TransferRepository struct {
	store *Store
}

func (r *TransferRepository) Create(ctx context.Context, t *model.Transfer) error {
	return r.store.write(ctx, func(st *state) error {
		if _, exists := st.transfers[t.ID]; exists {
			return errors.New("transfer already exists")
		}
		st.transfers[t.ID] = cloneTransfer(*t)
		return nil
	})
}

func (r *TransferRepository) GetByID(ctx context.Context, id string) (*model.Transfer, error) {
	var out *model.Transfer
	err := r.store.read(ctx, func(st *state) error {
		if t, ok := st.transfers[id]; ok {
			c := cloneTransfer(t)
			out = &c
		}
		return nil
	})
	return out, err
}

// GetForUpdate needs no row lock: a transaction already holds the whole store.
func (r *TransferRepository) GetForUpdate(ctx context.Context, id string) (*model.Transfer, error) {
	return r.GetByID(ctx, id)
}

func (r *TransferRepository) FindAll(ctx context.Context, f *dto.TransferFilters) ([]model.Transfer, int, error) {
	var matched []model.Transfer
	err := r.store.read(ctx, func(st *state) error {
		for _, t := range st.transfers {
			if f.Status != "" && t.Status != f.Status {
				continue
			}
			if f.Location != "" && t.FromLocation != f.Location && t.ToLocation != f.Location {
				continue
			}
			matched = append(matched, cloneTransfer(t))
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})
	start, end := paginate(len(matched), f.Page, f.PageSize)
	return matched[start:end], len(matched), nil
}

func (r *TransferRepository) UpdateStatus(ctx context.Context, id string, from, to model.TransferStatus, at time.Time) (bool, error) {
	var ok bool
	err := r.store.write(ctx, func(st *state) error {
		t, exists := st.transfers[id]
		if !exists || t.Status != from {
			return nil
		}
		t.Status = to
		t.UpdatedAt = at
		switch to {
		case model.TransferInTransit:
			t.DispatchedAt = &at
		case model.TransferCompleted:
			t.CompletedAt = &at
		case model.TransferCancelled:
			t.CancelledAt = &at
		}
		st.transfers[id] = t
		ok = true
		return nil
	})
	return ok, err
}

func (r *TransferRepository) UpdateDetails(ctx context.Context, t *model.Transfer) error {
	return r.store.write(ctx, func(st *state) error {
		cur, ok := st.transfers[t.ID]
		if !ok {
			return fmt.Errorf("transfer %s not found", t.ID)
		}
		cur.FromLocation = t.FromLocation
		cur.ToLocation = t.ToLocation
		cur.DriverID = t.DriverID
		cur.Notes = t.Notes
		cur.UpdatedAt = t.UpdatedAt
		st.transfers[t.ID] = cur
		return nil
	})
}

func (r *TransferRepository) ReplaceItems(ctx context.Context, transferID string, items []model.TransferItem) error {
	return r.store.write(ctx, func(st *state) error {
		cur, ok := st.transfers[transferID]
		if !ok {
			return fmt.Errorf("transfer %s not found", transferID)
		}
		cur.Items = make([]model.TransferItem, len(items))
		copy(cur.Items, items)
		st.transfers[transferID] = cur
		return nil
	})
}

func (r *TransferRepository) UpdateItem(ctx context.Context, item *model.TransferItem) error {
	return r.store.write(ctx, func(st *state) error {
		cur, ok := st.transfers[item.TransferID]
		if !ok {
			return fmt.Errorf("transfer %s not found", item.TransferID)
		}
		for i := range cur.Items {
			if cur.Items[i].ID == item.ID {
				cur.Items[i] = *item
				st.transfers[item.TransferID] = cur
				return nil
			}
		}
		return fmt.Errorf("transfer item %s not found", item.ID)
	})
}

func (r *TransferRepository) MaxSequence(ctx context.Context, year int) (int, error) {
	prefix := fmt.Sprintf("TRF-%d-", year)
	max := 0
	err := r.store.read(ctx, func(st *state) error {
		for _, t := range st.transfers {
			if !strings.HasPrefix(t.TransferNumber, prefix) {
				continue
			}
			seq, err := strconv.Atoi(strings.TrimPrefix(t.TransferNumber, prefix))
			if err != nil {
				continue
			}
			if seq > max {
				max = seq
			}
		}
		return nil
	})
	return max, err
}

// LockNumbering is a no-op: transactions on this store are already serial.
func (r *TransferRepository) LockNumbering(context.Context, int) error {
	return nil
}
