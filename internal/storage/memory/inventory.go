package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/fekuna/funeral-inventory-service/internal/inventory"
	"github.com/fekuna/funeral-inventory-service/internal/inventory/dto"
	"github.com/fekuna/funeral-inventory-service/internal/model"
)

var _ inventory.Repository = (*InventoryRepository)(nil)

type InventoryRepository struct {
	store *Store
}

func (r *InventoryRepository) GetByID(ctx context.Context, id string) (*model.InventoryLine, error) {
	var out *model.InventoryLine
	err := r.store.read(ctx, func(st *state) error {
		if l, ok := st.lines[id]; ok {
			out = &l
		}
		return nil
	})
	return out, err
}

func (r *InventoryRepository) Search(ctx context.Context, s *dto.LineSearch) ([]model.InventoryLine, error) {
	var out []model.InventoryLine
	err := r.store.read(ctx, func(st *state) error {
		for _, l := range st.lines {
			if s.Category != "" && !strings.EqualFold(l.Category, s.Category) {
				continue
			}
			if s.Location != "" && l.Location != s.Location {
				continue
			}
			if s.Name != "" && !strings.EqualFold(l.Name, s.Name) {
				continue
			}
			if s.Model != nil && (l.Model == nil || !strings.EqualFold(*l.Model, *s.Model)) {
				continue
			}
			out = append(out, l)
		}
		return nil
	})
	sortFullestFirst(out)
	return out, err
}

func sortFullestFirst(lines []model.InventoryLine) {
	sort.Slice(lines, func(i, j int) bool {
		if lines[i].StockQuantity != lines[j].StockQuantity {
			return lines[i].StockQuantity > lines[j].StockQuantity
		}
		if !lines[i].CreatedAt.Equal(lines[j].CreatedAt) {
			return lines[i].CreatedAt.Before(lines[j].CreatedAt)
		}
		return lines[i].ID < lines[j].ID
	})
}

func (r *InventoryRepository) FindAll(ctx context.Context, f *dto.InventoryFilters) ([]model.InventoryLine, int, error) {
	var matched []model.InventoryLine
	err := r.store.read(ctx, func(st *state) error {
		for _, l := range st.lines {
			if f.Location != "" && l.Location != f.Location {
				continue
			}
			if f.Category != "" && !strings.EqualFold(l.Category, f.Category) {
				continue
			}
			if f.LowStock && !l.IsLow() {
				continue
			}
			matched = append(matched, l)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].UpdatedAt.Equal(matched[j].UpdatedAt) {
			return matched[i].UpdatedAt.After(matched[j].UpdatedAt)
		}
		return matched[i].ID < matched[j].ID
	})
	start, end := paginate(len(matched), f.Page, f.PageSize)
	return matched[start:end], len(matched), nil
}

func (r *InventoryRepository) Create(ctx context.Context, line *model.InventoryLine) error {
	return r.store.write(ctx, func(st *state) error {
		if _, exists := st.lines[line.ID]; exists {
			return errors.New("inventory line already exists")
		}
		st.lines[line.ID] = *line
		return nil
	})
}

func (r *InventoryRepository) Delete(ctx context.Context, id string) (bool, error) {
	var deleted bool
	err := r.store.write(ctx, func(st *state) error {
		l, ok := st.lines[id]
		if !ok || l.ReservedQuantity != 0 {
			return nil
		}
		for _, res := range st.reservations {
			if res.InventoryID == id && res.Status == model.ReservationHeld {
				return nil
			}
		}
		delete(st.lines, id)
		deleted = true
		return nil
	})
	return deleted, err
}

// Adjust is atomic because the whole read-modify-write runs under the store
// lock (or inside the caller's transaction, which holds it).
func (r *InventoryRepository) Adjust(ctx context.Context, id string, stockDelta, reservedDelta int) (*model.InventoryLine, error) {
	var out *model.InventoryLine
	err := r.store.write(ctx, func(st *state) error {
		l, ok := st.lines[id]
		if !ok {
			return nil
		}
		l.StockQuantity += stockDelta
		l.ReservedQuantity += reservedDelta
		l.UpdatedAt = r.store.now()
		st.lines[id] = l
		out = &l
		return nil
	})
	return out, err
}

func (r *InventoryRepository) LogMovement(ctx context.Context, m *model.StockMovement) error {
	return r.store.write(ctx, func(st *state) error {
		st.movements = append(st.movements, *m)
		return nil
	})
}

func (r *InventoryRepository) ListMovements(ctx context.Context, f *dto.MovementFilters) ([]model.StockMovement, int, error) {
	var matched []model.StockMovement
	err := r.store.read(ctx, func(st *state) error {
		// Newest first, matching ORDER BY created_at DESC.
		for i := len(st.movements) - 1; i >= 0; i-- {
			m := st.movements[i]
			if f.InventoryID != "" && m.InventoryID != f.InventoryID {
				continue
			}
			if f.CaseID != "" && (m.CaseID == nil || *m.CaseID != f.CaseID) {
				continue
			}
			if f.TransferID != "" && (m.TransferID == nil || *m.TransferID != f.TransferID) {
				continue
			}
			if f.MovementType != "" && m.MovementType != f.MovementType {
				continue
			}
			if f.StartDate != nil && m.CreatedAt.Before(*f.StartDate) {
				continue
			}
			if f.EndDate != nil && m.CreatedAt.After(*f.EndDate) {
				continue
			}
			matched = append(matched, m)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	start, end := paginate(len(matched), f.Page, f.PageSize)
	return matched[start:end], len(matched), nil
}

func (r *InventoryRepository) CreateReservation(ctx context.Context, res *model.Reservation) error {
	return r.store.write(ctx, func(st *state) error {
		st.reservations[res.ID] = *res
		return nil
	})
}

func (r *InventoryRepository) GetReservation(ctx context.Context, id string) (*model.Reservation, error) {
	var out *model.Reservation
	err := r.store.read(ctx, func(st *state) error {
		if res, ok := st.reservations[id]; ok {
			out = &res
		}
		return nil
	})
	return out, err
}

func (r *InventoryRepository) ListReservations(ctx context.Context, f *dto.ReservationFilters) ([]model.Reservation, error) {
	var out []model.Reservation
	err := r.store.read(ctx, func(st *state) error {
		for _, res := range st.reservations {
			if f.InventoryID != "" && res.InventoryID != f.InventoryID {
				continue
			}
			if f.ReferenceType != "" && res.ReferenceType != f.ReferenceType {
				continue
			}
			if f.ReferenceID != "" && res.ReferenceID != f.ReferenceID {
				continue
			}
			if f.Status != "" && res.Status != f.Status {
				continue
			}
			out = append(out, res)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, err
}

func (r *InventoryRepository) ResolveReservation(ctx context.Context, id string, from, to model.ReservationStatus, at time.Time) (bool, error) {
	var ok bool
	err := r.store.write(ctx, func(st *state) error {
		res, exists := st.reservations[id]
		if !exists || res.Status != from {
			return nil
		}
		res.Status = to
		res.ResolvedAt = &at
		st.reservations[id] = res
		ok = true
		return nil
	})
	return ok, err
}

func (r *InventoryRepository) HeldTotals(ctx context.Context) (map[string]int, error) {
	totals := make(map[string]int)
	err := r.store.read(ctx, func(st *state) error {
		for _, res := range st.reservations {
			if res.Status == model.ReservationHeld {
				totals[res.InventoryID] += res.Quantity
			}
		}
		return nil
	})
	return totals, err
}
