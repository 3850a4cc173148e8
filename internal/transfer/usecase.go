package transfer

import (
	"context"

	"github.com/fekuna/funeral-inventory-service/internal/model"
	"github.com/fekuna/funeral-inventory-service/internal/transfer/dto"
)

type UseCase interface {
	Create(ctx context.Context, input *dto.CreateTransferInput) (*model.Transfer, error)
	Update(ctx context.Context, input *dto.UpdateTransferInput) (*model.Transfer, error)

	// Lifecycle. Each runs as a single transaction: either every item moves
	// or none does.
	Dispatch(ctx context.Context, input *dto.TransitionInput) (*model.Transfer, error)
	Receive(ctx context.Context, input *dto.TransitionInput) (*model.Transfer, error)
	Cancel(ctx context.Context, input *dto.TransitionInput) (*model.Transfer, error)

	Get(ctx context.Context, id string) (*model.Transfer, error)
	List(ctx context.Context, filters *dto.TransferFilters) ([]model.Transfer, int, error)
}
