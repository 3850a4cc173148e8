package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fekuna/funeral-inventory-service/internal/inventory"
	"github.com/fekuna/funeral-inventory-service/internal/inventory/dto"
	"github.com/fekuna/funeral-inventory-service/internal/metrics"
	"github.com/fekuna/funeral-inventory-service/internal/model"
	"github.com/fekuna/funeral-inventory-service/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Options carries the tunables shared by the engine and the resolver.
type Options struct {
	DefaultCategory          string
	DefaultLowStockThreshold int
	// MaxOversubscription escalates alerts to critical once availability
	// drops below its negation. Zero disables escalation. Reservations are
	// never refused.
	MaxOversubscription int
	LockTTL             time.Duration
}

func (o Options) withDefaults() Options {
	if o.DefaultCategory == "" {
		o.DefaultCategory = "coffin"
	}
	if o.LockTTL <= 0 {
		o.LockTTL = 5 * time.Second
	}
	return o
}

type inventoryUseCase struct {
	repo    inventory.Repository
	tx      inventory.TxManager
	alerts  *notifier
	metrics *metrics.Recorder
	logger  logger.ZapLogger
	opts    Options
	now     func() time.Time
}

func NewInventoryUseCase(
	repo inventory.Repository,
	tx inventory.TxManager,
	alerter inventory.Alerter,
	rec *metrics.Recorder,
	log logger.ZapLogger,
	opts Options,
) inventory.UseCase {
	opts = opts.withDefaults()
	return &inventoryUseCase{
		repo:    repo,
		tx:      tx,
		alerts:  newNotifier(alerter, rec, log, opts.MaxOversubscription),
		metrics: rec,
		logger:  log,
		opts:    opts,
		now:     time.Now,
	}
}

// change describes one atomic quantity update and the ledger row it produces.
type change struct {
	stockDelta    int
	reservedDelta int
	movement      model.MovementType
	caseID        string
	transferID    string
	reservationID string
	reason        string
	actor         string
}

// apply runs the store-side atomic update and logs the movement. It must be
// called inside a transaction so the two writes land together.
func (uc *inventoryUseCase) apply(ctx context.Context, id string, c change) (*model.InventoryLine, error) {
	line, err := uc.repo.Adjust(ctx, id, c.stockDelta, c.reservedDelta)
	if err != nil {
		return nil, err
	}
	if line == nil {
		return nil, fmt.Errorf("%w: %s", inventory.ErrLineNotFound, id)
	}

	delta, after := c.stockDelta, line.StockQuantity
	if c.movement == model.MovementReservation || c.movement == model.MovementRelease {
		delta, after = c.reservedDelta, line.ReservedQuantity
	}

	movement := &model.StockMovement{
		ID:               uuid.New().String(),
		InventoryID:      id,
		CaseID:           optional(c.caseID),
		TransferID:       optional(c.transferID),
		ReservationID:    optional(c.reservationID),
		MovementType:     c.movement,
		QuantityChange:   delta,
		PreviousQuantity: after - delta,
		NewQuantity:      after,
		Reason:           c.reason,
		RecordedBy:       actor(c.actor),
		CreatedAt:        uc.now(),
	}
	if err := uc.repo.LogMovement(ctx, movement); err != nil {
		return nil, err
	}
	return line, nil
}

func (uc *inventoryUseCase) Reserve(ctx context.Context, input *dto.QuantityInput) (*dto.ReserveResult, error) {
	if input.Amount <= 0 {
		return nil, inventory.ErrInvalidQuantity
	}

	var line *model.InventoryLine
	err := uc.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		line, err = uc.apply(ctx, input.InventoryID, change{
			reservedDelta: input.Amount,
			movement:      model.MovementReservation,
			caseID:        input.CaseID,
			transferID:    input.TransferID,
			reason:        orDefault(input.Reason, "reservation"),
			actor:         input.RecordedBy,
		})
		return err
	})
	uc.metrics.Operation("reserve", err)
	if err != nil {
		return nil, err
	}

	uc.alerts.check(ctx, line, "reservation")
	return &dto.ReserveResult{Success: true, NewReservedQuantity: line.ReservedQuantity, Line: line}, nil
}

func (uc *inventoryUseCase) Release(ctx context.Context, input *dto.QuantityInput) (*dto.ReserveResult, error) {
	if input.Amount <= 0 {
		return nil, inventory.ErrInvalidQuantity
	}

	var line *model.InventoryLine
	err := uc.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		line, err = uc.apply(ctx, input.InventoryID, change{
			reservedDelta: -input.Amount,
			movement:      model.MovementRelease,
			caseID:        input.CaseID,
			transferID:    input.TransferID,
			reason:        orDefault(input.Reason, "release"),
			actor:         input.RecordedBy,
		})
		return err
	})
	uc.metrics.Operation("release", err)
	if err != nil {
		return nil, err
	}

	uc.warnIfOverReleased(line)
	return &dto.ReserveResult{Success: true, NewReservedQuantity: line.ReservedQuantity, Line: line}, nil
}

func (uc *inventoryUseCase) Commit(ctx context.Context, input *dto.CommitInput) (*dto.CommitResult, error) {
	if input.Amount <= 0 {
		return nil, inventory.ErrInvalidQuantity
	}

	var line *model.InventoryLine
	err := uc.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		line, err = uc.apply(ctx, input.InventoryID, change{
			stockDelta:    -input.Amount,
			reservedDelta: -input.Amount,
			movement:      model.MovementSale,
			caseID:        input.CaseID,
			reason:        orDefault(input.Reason, "sale"),
			actor:         input.RecordedBy,
		})
		return err
	})
	uc.metrics.Operation("commit", err)
	if err != nil {
		return nil, err
	}

	uc.warnIfOverReleased(line)
	uc.alerts.check(ctx, line, "commit")
	return &dto.CommitResult{Success: true, NewStockQuantity: line.StockQuantity, Line: line}, nil
}

// warnIfOverReleased flags reserved_quantity below zero. The value is left
// as is so reconciliation can find the caller that released too much.
func (uc *inventoryUseCase) warnIfOverReleased(line *model.InventoryLine) {
	if line.ReservedQuantity < 0 {
		uc.logger.Warn("reserved quantity went negative",
			zap.String("inventory_id", line.ID),
			zap.Int("reserved_quantity", line.ReservedQuantity),
		)
	}
}

func (uc *inventoryUseCase) Hold(ctx context.Context, input *dto.HoldInput) (*model.Reservation, error) {
	if input.Amount <= 0 {
		return nil, inventory.ErrInvalidQuantity
	}
	if input.ReferenceID == "" || (input.ReferenceType != model.ReferenceCase && input.ReferenceType != model.ReferenceTransfer) {
		return nil, fmt.Errorf("%w: hold needs a case or transfer reference", inventory.ErrInvalidInput)
	}

	res := &model.Reservation{
		ID:            uuid.New().String(),
		InventoryID:   input.InventoryID,
		Quantity:      input.Amount,
		ReferenceType: input.ReferenceType,
		ReferenceID:   input.ReferenceID,
		Status:        model.ReservationHeld,
		Reason:        orDefault(input.Reason, "reservation"),
		CreatedBy:     actor(input.RecordedBy),
		CreatedAt:     uc.now(),
	}

	c := change{
		reservedDelta: input.Amount,
		movement:      model.MovementReservation,
		reservationID: res.ID,
		reason:        res.Reason,
		actor:         input.RecordedBy,
	}
	setReference(&c, res)

	var line *model.InventoryLine
	err := uc.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		line, err = uc.apply(ctx, input.InventoryID, c)
		if err != nil {
			return err
		}
		return uc.repo.CreateReservation(ctx, res)
	})
	uc.metrics.Operation("hold", err)
	if err != nil {
		return nil, err
	}

	uc.alerts.check(ctx, line, "reservation")
	return res, nil
}

func (uc *inventoryUseCase) CommitHold(ctx context.Context, input *dto.ResolveHoldInput) (*model.Reservation, error) {
	res, line, err := uc.resolveHold(ctx, input, model.ReservationCommitted)
	uc.metrics.Operation("commit_hold", err)
	if err != nil {
		return nil, err
	}
	uc.alerts.check(ctx, line, "commit")
	return res, nil
}

func (uc *inventoryUseCase) ReleaseHold(ctx context.Context, input *dto.ResolveHoldInput) (*model.Reservation, error) {
	res, _, err := uc.resolveHold(ctx, input, model.ReservationReleased)
	uc.metrics.Operation("release_hold", err)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// resolveHold flips a held reservation to its terminal status and applies the
// matching quantity change. The status flip is a compare-and-set, so of two
// racing callers exactly one proceeds.
func (uc *inventoryUseCase) resolveHold(ctx context.Context, input *dto.ResolveHoldInput, to model.ReservationStatus) (*model.Reservation, *model.InventoryLine, error) {
	var (
		res  *model.Reservation
		line *model.InventoryLine
	)
	err := uc.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		res, err = uc.repo.GetReservation(ctx, input.ReservationID)
		if err != nil {
			return err
		}
		if res == nil {
			return fmt.Errorf("%w: %s", inventory.ErrReservationNotFound, input.ReservationID)
		}

		at := uc.now()
		ok, err := uc.repo.ResolveReservation(ctx, res.ID, model.ReservationHeld, to, at)
		if err != nil {
			return err
		}
		if !ok {
			current, err := uc.repo.GetReservation(ctx, res.ID)
			if err != nil {
				return err
			}
			status := res.Status
			if current != nil {
				status = current.Status
			}
			return &inventory.ClosedError{ReservationID: res.ID, Status: status}
		}

		c := change{
			reservedDelta: -res.Quantity,
			movement:      model.MovementRelease,
			reservationID: res.ID,
			reason:        orDefault(input.Reason, "release"),
			actor:         input.RecordedBy,
		}
		if to == model.ReservationCommitted {
			c.stockDelta = -res.Quantity
			c.movement = model.MovementSale
			c.reason = orDefault(input.Reason, "sale")
		}
		setReference(&c, res)

		line, err = uc.apply(ctx, res.InventoryID, c)
		if err != nil {
			return err
		}

		res.Status = to
		res.ResolvedAt = &at
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return res, line, nil
}

func (uc *inventoryUseCase) ListReservations(ctx context.Context, filters *dto.ReservationFilters) ([]model.Reservation, error) {
	return uc.repo.ListReservations(ctx, filters)
}

func (uc *inventoryUseCase) CreateLine(ctx context.Context, input *dto.CreateLineInput) (*model.InventoryLine, error) {
	name := strings.TrimSpace(input.Name)
	location := strings.TrimSpace(input.Location)
	if name == "" || location == "" {
		return nil, fmt.Errorf("%w: name and location are required", inventory.ErrInvalidInput)
	}
	if input.InitialStock < 0 {
		return nil, inventory.ErrInvalidQuantity
	}

	threshold := uc.opts.DefaultLowStockThreshold
	if input.LowStockThreshold != nil {
		threshold = *input.LowStockThreshold
	}

	now := uc.now()
	line := &model.InventoryLine{
		ID:                uuid.New().String(),
		Name:              name,
		Model:             optional(strings.TrimSpace(input.Model)),
		Color:             optional(strings.TrimSpace(input.Color)),
		Category:          orDefault(strings.TrimSpace(input.Category), uc.opts.DefaultCategory),
		SKU:               optional(input.SKU),
		Description:       optional(input.Description),
		UnitPrice:         input.UnitPrice,
		StockQuantity:     input.InitialStock,
		Location:          location,
		LowStockThreshold: threshold,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	err := uc.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := uc.repo.Create(ctx, line); err != nil {
			return err
		}
		return uc.repo.LogMovement(ctx, &model.StockMovement{
			ID:               uuid.New().String(),
			InventoryID:      line.ID,
			MovementType:     model.MovementAdjustment,
			QuantityChange:   input.InitialStock,
			PreviousQuantity: 0,
			NewQuantity:      input.InitialStock,
			Reason:           "stock intake",
			RecordedBy:       actor(input.RecordedBy),
			CreatedAt:        now,
		})
	})
	uc.metrics.Operation("create_line", err)
	if err != nil {
		return nil, err
	}

	uc.logger.Info("inventory line created",
		zap.String("inventory_id", line.ID),
		zap.String("label", line.Label()),
		zap.String("location", line.Location),
		zap.Int("stock_quantity", line.StockQuantity),
	)
	return line, nil
}

func (uc *inventoryUseCase) AdjustStock(ctx context.Context, input *dto.AdjustInput) (*model.InventoryLine, error) {
	if input.Delta == 0 {
		return nil, inventory.ErrInvalidQuantity
	}
	movement := input.Type
	switch movement {
	case "":
		movement = model.MovementAdjustment
	case model.MovementAdjustment, model.MovementTransferIn, model.MovementTransferOut:
	default:
		return nil, fmt.Errorf("%w: movement type %q cannot adjust stock", inventory.ErrInvalidInput, movement)
	}

	var line *model.InventoryLine
	err := uc.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		line, err = uc.apply(ctx, input.InventoryID, change{
			stockDelta: input.Delta,
			movement:   movement,
			caseID:     input.CaseID,
			transferID: input.TransferID,
			reason:     orDefault(input.Reason, string(movement)),
			actor:      input.RecordedBy,
		})
		return err
	})
	uc.metrics.Operation(string(movement), err)
	if err != nil {
		return nil, err
	}

	uc.alerts.check(ctx, line, string(movement))
	return line, nil
}

func (uc *inventoryUseCase) RemoveLine(ctx context.Context, id string) error {
	line, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if line == nil {
		return fmt.Errorf("%w: %s", inventory.ErrLineNotFound, id)
	}

	deleted, err := uc.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("%w: %s", inventory.ErrLineInUse, id)
	}
	return nil
}

func (uc *inventoryUseCase) GetLine(ctx context.Context, id string) (*model.InventoryLine, error) {
	line, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if line == nil {
		return nil, fmt.Errorf("%w: %s", inventory.ErrLineNotFound, id)
	}
	return line, nil
}

func (uc *inventoryUseCase) ListLines(ctx context.Context, filters *dto.InventoryFilters) ([]model.InventoryLine, int, error) {
	return uc.repo.FindAll(ctx, filters)
}

func (uc *inventoryUseCase) ListLowStock(ctx context.Context, location string, page, pageSize int) ([]model.InventoryLine, int, error) {
	return uc.repo.FindAll(ctx, &dto.InventoryFilters{
		Location: location,
		LowStock: true,
		Page:     page,
		PageSize: pageSize,
	})
}

func (uc *inventoryUseCase) ListMovements(ctx context.Context, filters *dto.MovementFilters) ([]model.StockMovement, int, error) {
	return uc.repo.ListMovements(ctx, filters)
}

func setReference(c *change, res *model.Reservation) {
	switch res.ReferenceType {
	case model.ReferenceCase:
		c.caseID = res.ReferenceID
	case model.ReferenceTransfer:
		c.transferID = res.ReferenceID
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
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
