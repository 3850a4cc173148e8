package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fekuna/funeral-inventory-service/internal/inventory"
	invdto "github.com/fekuna/funeral-inventory-service/internal/inventory/dto"
	"github.com/fekuna/funeral-inventory-service/internal/metrics"
	"github.com/fekuna/funeral-inventory-service/internal/model"
	"github.com/fekuna/funeral-inventory-service/internal/transfer"
	"github.com/fekuna/funeral-inventory-service/internal/transfer/dto"
	"github.com/fekuna/funeral-inventory-service/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type transferUseCase struct {
	repo     transfer.Repository
	stock    inventory.UseCase
	resolver inventory.Resolver
	tx       inventory.TxManager
	metrics  *metrics.Recorder
	logger   logger.ZapLogger
	now      func() time.Time
}

func NewTransferUseCase(
	repo transfer.Repository,
	stock inventory.UseCase,
	resolver inventory.Resolver,
	tx inventory.TxManager,
	rec *metrics.Recorder,
	log logger.ZapLogger,
) transfer.UseCase {
	return &transferUseCase{
		repo:     repo,
		stock:    stock,
		resolver: resolver,
		tx:       tx,
		metrics:  rec,
		logger:   log,
		now:      time.Now,
	}
}

// buildItems checks every item against its source line. Lines must exist and
// sit at the transfer's source location.
func (uc *transferUseCase) buildItems(ctx context.Context, transferID, from string, in []dto.ItemInput) ([]model.TransferItem, error) {
	if len(in) == 0 {
		return nil, fmt.Errorf("%w: at least one item is required", transfer.ErrInvalidTransfer)
	}

	items := make([]model.TransferItem, 0, len(in))
	for _, it := range in {
		if it.InventoryID == "" || it.Quantity <= 0 {
			return nil, fmt.Errorf("%w: every item needs an inventory id and a positive quantity", transfer.ErrInvalidTransfer)
		}
		line, err := uc.stock.GetLine(ctx, it.InventoryID)
		if err != nil {
			return nil, err
		}
		if line.Location != from {
			return nil, fmt.Errorf("%w: line %s is at %s, not %s", transfer.ErrInvalidTransfer, line.ID, line.Location, from)
		}
		items = append(items, model.TransferItem{
			ID:          uuid.New().String(),
			TransferID:  transferID,
			InventoryID: it.InventoryID,
			Quantity:    it.Quantity,
		})
	}
	return items, nil
}

func validateRoute(from, to string) error {
	if from == "" || to == "" {
		return fmt.Errorf("%w: from and to locations are required", transfer.ErrInvalidTransfer)
	}
	if from == to {
		return fmt.Errorf("%w: from and to locations must differ", transfer.ErrInvalidTransfer)
	}
	return nil
}

func (uc *transferUseCase) Create(ctx context.Context, input *dto.CreateTransferInput) (*model.Transfer, error) {
	from := strings.TrimSpace(input.FromLocation)
	to := strings.TrimSpace(input.ToLocation)
	if err := validateRoute(from, to); err != nil {
		return nil, err
	}

	now := uc.now()
	t := &model.Transfer{
		ID:           uuid.New().String(),
		FromLocation: from,
		ToLocation:   to,
		Status:       model.TransferPending,
		DriverID:     input.DriverID,
		Notes:        input.Notes,
		CreatedBy:    actor(input.CreatedBy),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err := uc.tx.RunInTx(ctx, func(ctx context.Context) error {
		items, err := uc.buildItems(ctx, t.ID, from, input.Items)
		if err != nil {
			return err
		}
		t.Items = items

		year := now.Year()
		if err := uc.repo.LockNumbering(ctx, year); err != nil {
			return err
		}
		seq, err := uc.repo.MaxSequence(ctx, year)
		if err != nil {
			return err
		}
		t.TransferNumber = fmt.Sprintf("TRF-%d-%04d", year, seq+1)
		return uc.repo.Create(ctx, t)
	})
	uc.metrics.Transfer("create", err)
	if err != nil {
		return nil, err
	}

	uc.logger.Info("transfer created",
		zap.String("transfer_id", t.ID),
		zap.String("transfer_number", t.TransferNumber),
		zap.String("from", t.FromLocation),
		zap.String("to", t.ToLocation),
		zap.Int("items", len(t.Items)),
	)
	return t, nil
}

func (uc *transferUseCase) Update(ctx context.Context, input *dto.UpdateTransferInput) (*model.Transfer, error) {
	var t *model.Transfer
	err := uc.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		t, err = uc.loadForUpdate(ctx, input.ID)
		if err != nil {
			return err
		}

		routing := input.Items != nil || input.FromLocation != nil || input.ToLocation != nil
		if routing && !t.Status.ItemsEditable() {
			return &transfer.StateError{Op: "edit items of", Current: t.Status}
		}
		if !t.Status.DetailsEditable() {
			return &transfer.StateError{Op: "edit", Current: t.Status}
		}

		if input.FromLocation != nil {
			t.FromLocation = strings.TrimSpace(*input.FromLocation)
		}
		if input.ToLocation != nil {
			t.ToLocation = strings.TrimSpace(*input.ToLocation)
		}
		if err := validateRoute(t.FromLocation, t.ToLocation); err != nil {
			return err
		}
		if input.DriverID != nil {
			t.DriverID = input.DriverID
		}
		if input.Notes != nil {
			t.Notes = input.Notes
		}
		t.UpdatedAt = uc.now()

		if routing {
			next := input.Items
			if next == nil {
				next = make([]dto.ItemInput, 0, len(t.Items))
				for _, it := range t.Items {
					next = append(next, dto.ItemInput{InventoryID: it.InventoryID, Quantity: it.Quantity})
				}
			}
			items, err := uc.buildItems(ctx, t.ID, t.FromLocation, next)
			if err != nil {
				return err
			}
			if err := uc.repo.ReplaceItems(ctx, t.ID, items); err != nil {
				return err
			}
			t.Items = items
		}
		return uc.repo.UpdateDetails(ctx, t)
	})
	uc.metrics.Transfer("update", err)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// transition loads the transfer, checks ev is allowed, flips the status and
// then runs apply, all in one transaction. The status flip happens first so a
// concurrent caller on the same transfer fails the compare-and-set.
func (uc *transferUseCase) transition(ctx context.Context, input *dto.TransitionInput, ev model.TransferEvent, apply func(ctx context.Context, t *model.Transfer) error) (*model.Transfer, error) {
	var t *model.Transfer
	err := uc.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		t, err = uc.loadForUpdate(ctx, input.ID)
		if err != nil {
			return err
		}

		from := t.Status
		next, ok := from.Next(ev)
		if !ok {
			return &transfer.StateError{Op: string(ev), Current: from}
		}

		at := uc.now()
		swapped, err := uc.repo.UpdateStatus(ctx, t.ID, from, next, at)
		if err != nil {
			return err
		}
		if !swapped {
			current, err := uc.load(ctx, t.ID)
			if err != nil {
				return err
			}
			return &transfer.StateError{Op: string(ev), Current: current.Status}
		}

		if err := apply(ctx, t); err != nil {
			return err
		}

		t.Status = next
		t.UpdatedAt = at
		switch next {
		case model.TransferInTransit:
			t.DispatchedAt = &at
		case model.TransferCompleted:
			t.CompletedAt = &at
		case model.TransferCancelled:
			t.CancelledAt = &at
		}
		return nil
	})
	uc.metrics.Transfer(string(ev), err)
	if err != nil {
		uc.logger.Warn("transfer transition failed",
			zap.String("transfer_id", input.ID),
			zap.String("event", string(ev)),
			zap.Error(err),
		)
		return nil, err
	}

	uc.logger.Info("transfer transitioned",
		zap.String("transfer_id", t.ID),
		zap.String("transfer_number", t.TransferNumber),
		zap.String("status", string(t.Status)),
	)
	return t, nil
}

func (uc *transferUseCase) Dispatch(ctx context.Context, input *dto.TransitionInput) (*model.Transfer, error) {
	return uc.transition(ctx, input, model.EventDispatch, func(ctx context.Context, t *model.Transfer) error {
		for i := range t.Items {
			item := &t.Items[i]
			res, err := uc.stock.Hold(ctx, &invdto.HoldInput{
				InventoryID:   item.InventoryID,
				Amount:        item.Quantity,
				ReferenceType: model.ReferenceTransfer,
				ReferenceID:   t.ID,
				Reason:        orDefault(input.Reason, fmt.Sprintf("transfer %s dispatched", t.TransferNumber)),
				RecordedBy:    input.Actor,
			})
			if err != nil {
				return err
			}
			item.ReservationID = &res.ID
			if err := uc.repo.UpdateItem(ctx, item); err != nil {
				return err
			}
		}
		return nil
	})
}

func (uc *transferUseCase) Receive(ctx context.Context, input *dto.TransitionInput) (*model.Transfer, error) {
	return uc.transition(ctx, input, model.EventReceive, func(ctx context.Context, t *model.Transfer) error {
		reason := orDefault(input.Reason, fmt.Sprintf("transfer %s received", t.TransferNumber))
		for i := range t.Items {
			item := &t.Items[i]
			if err := uc.releaseSource(ctx, t, item, reason, input.Actor); err != nil {
				return err
			}

			src, err := uc.stock.AdjustStock(ctx, &invdto.AdjustInput{
				InventoryID: item.InventoryID,
				Delta:       -item.Quantity,
				Type:        model.MovementTransferOut,
				TransferID:  t.ID,
				Reason:      reason,
				RecordedBy:  input.Actor,
			})
			if err != nil {
				return err
			}

			dest, err := uc.resolver.FindOrCreateCounterpart(ctx, src, t.ToLocation, t.ID)
			if err != nil {
				return err
			}
			if _, err := uc.stock.AdjustStock(ctx, &invdto.AdjustInput{
				InventoryID: dest.ID,
				Delta:       item.Quantity,
				Type:        model.MovementTransferIn,
				TransferID:  t.ID,
				Reason:      reason,
				RecordedBy:  input.Actor,
			}); err != nil {
				return err
			}

			item.DestinationID = &dest.ID
			if err := uc.repo.UpdateItem(ctx, item); err != nil {
				return err
			}
		}
		return nil
	})
}

func (uc *transferUseCase) Cancel(ctx context.Context, input *dto.TransitionInput) (*model.Transfer, error) {
	return uc.transition(ctx, input, model.EventCancel, func(ctx context.Context, t *model.Transfer) error {
		// Pending transfers hold nothing.
		if t.Status != model.TransferInTransit {
			return nil
		}
		reason := orDefault(input.Reason, fmt.Sprintf("transfer %s cancelled", t.TransferNumber))
		for i := range t.Items {
			if err := uc.releaseSource(ctx, t, &t.Items[i], reason, input.Actor); err != nil {
				return err
			}
		}
		return nil
	})
}

// releaseSource gives back the hold taken at dispatch. Items dispatched
// before holds were recorded fall back to a raw release.
func (uc *transferUseCase) releaseSource(ctx context.Context, t *model.Transfer, item *model.TransferItem, reason, by string) error {
	if item.ReservationID != nil {
		_, err := uc.stock.ReleaseHold(ctx, &invdto.ResolveHoldInput{
			ReservationID: *item.ReservationID,
			Reason:        reason,
			RecordedBy:    by,
		})
		return err
	}
	_, err := uc.stock.Release(ctx, &invdto.QuantityInput{
		InventoryID: item.InventoryID,
		Amount:      item.Quantity,
		TransferID:  t.ID,
		Reason:      reason,
		RecordedBy:  by,
	})
	return err
}

func (uc *transferUseCase) load(ctx context.Context, id string) (*model.Transfer, error) {
	t, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, fmt.Errorf("%w: %s", transfer.ErrTransferNotFound, id)
	}
	return t, nil
}

func (uc *transferUseCase) loadForUpdate(ctx context.Context, id string) (*model.Transfer, error) {
	t, err := uc.repo.GetForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, fmt.Errorf("%w: %s", transfer.ErrTransferNotFound, id)
	}
	return t, nil
}

func (uc *transferUseCase) Get(ctx context.Context, id string) (*model.Transfer, error) {
	return uc.load(ctx, id)
}

func (uc *transferUseCase) List(ctx context.Context, filters *dto.TransferFilters) ([]model.Transfer, int, error) {
	if filters.Status != "" && !filters.Status.Valid() {
		return nil, 0, fmt.Errorf("%w: unknown status %q", transfer.ErrInvalidTransfer, filters.Status)
	}
	return uc.repo.FindAll(ctx, filters)
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func actor(s string) string {
	return orDefault(s, "system")
}
