package inventory

import (
	"context"
	"time"

	"github.com/fekuna/funeral-inventory-service/internal/inventory/dto"
	"github.com/fekuna/funeral-inventory-service/internal/model"
)

type Repository interface {
	// Inventory lines. Lookups return nil, nil when the line does not exist.
	GetByID(ctx context.Context, id string) (*model.InventoryLine, error)
	Search(ctx context.Context, s *dto.LineSearch) ([]model.InventoryLine, error)
	FindAll(ctx context.Context, filters *dto.InventoryFilters) ([]model.InventoryLine, int, error)
	Create(ctx context.Context, line *model.InventoryLine) error
	// Delete removes a line only while nothing is reserved against it and
	// reports whether a row was removed. Its movements and reservations stay.
	Delete(ctx context.Context, id string) (bool, error)

	// Adjust applies both deltas in a single atomic statement and returns the
	// line as it is after the update, or nil when the id is unknown.
	Adjust(ctx context.Context, id string, stockDelta, reservedDelta int) (*model.InventoryLine, error)

	// Movements / Audit
	LogMovement(ctx context.Context, movement *model.StockMovement) error
	ListMovements(ctx context.Context, filters *dto.MovementFilters) ([]model.StockMovement, int, error)

	// Reservations
	CreateReservation(ctx context.Context, r *model.Reservation) error
	GetReservation(ctx context.Context, id string) (*model.Reservation, error)
	ListReservations(ctx context.Context, filters *dto.ReservationFilters) ([]model.Reservation, error)
	// ResolveReservation moves a reservation from one status to another only
	// if it is still in `from`, and reports whether it did.
	ResolveReservation(ctx context.Context, id string, from, to model.ReservationStatus, at time.Time) (bool, error)
	// HeldTotals sums held reservation quantities per inventory line.
	HeldTotals(ctx context.Context) (map[string]int, error)
}

// TxManager runs fn as one unit of work against the store. Repositories
// called with the ctx passed to fn take part in the same transaction.
type TxManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Alerter is the alerting collaborator for low and negative availability.
type Alerter interface {
	Alert(ctx context.Context, alert model.StockAlert) error
}

// Locker serializes work on a key across processes.
type Locker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}
