package inventory

import (
	"context"

	"github.com/fekuna/funeral-inventory-service/internal/inventory/dto"
	"github.com/fekuna/funeral-inventory-service/internal/model"
)

type UseCase interface {
	// Raw primitives. None of them is idempotent: calling Commit twice
	// consumes stock twice.
	Reserve(ctx context.Context, input *dto.QuantityInput) (*dto.ReserveResult, error)
	Release(ctx context.Context, input *dto.QuantityInput) (*dto.ReserveResult, error)
	Commit(ctx context.Context, input *dto.CommitInput) (*dto.CommitResult, error)

	// Holds wrap the primitives with a reservation record so each hold is
	// committed or released at most once.
	Hold(ctx context.Context, input *dto.HoldInput) (*model.Reservation, error)
	CommitHold(ctx context.Context, input *dto.ResolveHoldInput) (*model.Reservation, error)
	ReleaseHold(ctx context.Context, input *dto.ResolveHoldInput) (*model.Reservation, error)
	ListReservations(ctx context.Context, filters *dto.ReservationFilters) ([]model.Reservation, error)

	CreateLine(ctx context.Context, input *dto.CreateLineInput) (*model.InventoryLine, error)
	AdjustStock(ctx context.Context, input *dto.AdjustInput) (*model.InventoryLine, error)
	RemoveLine(ctx context.Context, id string) error
	GetLine(ctx context.Context, id string) (*model.InventoryLine, error)
	ListLines(ctx context.Context, filters *dto.InventoryFilters) ([]model.InventoryLine, int, error)
	ListLowStock(ctx context.Context, location string, page, pageSize int) ([]model.InventoryLine, int, error)
	ListMovements(ctx context.Context, filters *dto.MovementFilters) ([]model.StockMovement, int, error)
}

// Resolver maps a free-text casket description to an inventory line.
type Resolver interface {
	FindItem(ctx context.Context, input *dto.FindItemInput) (*model.InventoryLine, error)
	// FindOrCreateLine never returns a nil line without an error. created is
	// true when a ghost line was provisioned.
	FindOrCreateLine(ctx context.Context, input *dto.FindItemInput, caseRef string) (line *model.InventoryLine, created bool, err error)
	// FindOrCreateCounterpart finds the line at location that matches src on
	// name, model, color and category, provisioning an empty one if needed.
	FindOrCreateCounterpart(ctx context.Context, src *model.InventoryLine, location, transferRef string) (*model.InventoryLine, error)
}
