package transfer

import (
	"context"
	"time"

	"github.com/fekuna/funeral-inventory-service/internal/model"
	"github.com/fekuna/funeral-inventory-service/internal/transfer/dto"
)

type Repository interface {
	// Create stores the transfer together with its items.
	Create(ctx context.Context, t *model.Transfer) error
	// GetByID returns the transfer with items, or nil, nil.
	GetByID(ctx context.Context, id string) (*model.Transfer, error)
	// GetForUpdate is GetByID plus a row lock held until the current
	// transaction ends. Mutations load through it.
	GetForUpdate(ctx context.Context, id string) (*model.Transfer, error)
	FindAll(ctx context.Context, filters *dto.TransferFilters) ([]model.Transfer, int, error)

	// UpdateStatus is a compare-and-set on status. It stamps the matching
	// dispatched_at/completed_at/cancelled_at column with at.
	UpdateStatus(ctx context.Context, id string, from, to model.TransferStatus, at time.Time) (bool, error)
	UpdateDetails(ctx context.Context, t *model.Transfer) error
	ReplaceItems(ctx context.Context, transferID string, items []model.TransferItem) error
	UpdateItem(ctx context.Context, item *model.TransferItem) error

	// MaxSequence returns the highest sequence used in TRF-<year>-<seq>
	// numbers, 0 when the year has none.
	MaxSequence(ctx context.Context, year int) (int, error)
	// LockNumbering serializes number allocation for a year within the
	// current transaction where the store supports it.
	LockNumbering(ctx context.Context, year int) error
}
