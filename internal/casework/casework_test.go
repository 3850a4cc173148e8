package casework

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fekuna/funeral-inventory-service/internal/inventory"
	"github.com/fekuna/funeral-inventory-service/internal/inventory/dto"
	"github.com/fekuna/funeral-inventory-service/internal/inventory/lock"
	"github.com/fekuna/funeral-inventory-service/internal/inventory/usecase"
	"github.com/fekuna/funeral-inventory-service/internal/model"
	"github.com/fekuna/funeral-inventory-service/internal/storage/memory"
	"github.com/fekuna/funeral-inventory-service/pkg/logger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingHolds struct {
	inventory.UseCase
}

func (failingHolds) Hold(context.Context, *dto.HoldInput) (*model.Reservation, error) {
	return nil, errors.New("connection reset")
}

type harness struct {
	repo     *memory.InventoryRepository
	stock    inventory.UseCase
	resolver inventory.Resolver
	svc      UseCase
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := memory.NewStore()
	repo := store.Inventory()
	log := logger.NewNop()
	stock := usecase.NewInventoryUseCase(repo, store, nil, nil, log, usecase.Options{})
	resolver := usecase.NewStockResolver(repo, store, lock.NewLocalLocker(), nil, nil, log, usecase.Options{})
	return &harness{
		repo:     repo,
		stock:    stock,
		resolver: resolver,
		svc:      NewService(stock, resolver, log),
	}
}

func (h *harness) seed(t *testing.T, name, color, location string, stock int) *model.InventoryLine {
	t.Helper()
	line := &model.InventoryLine{
		ID:            uuid.New().String(),
		Name:          name,
		Category:      "coffin",
		Location:      location,
		StockQuantity: stock,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	if color != "" {
		line.Color = &color
	}
	require.NoError(t, h.repo.Create(context.Background(), line))
	return line
}

func (h *harness) line(t *testing.T, id string) *model.InventoryLine {
	t.Helper()
	line, err := h.repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, line)
	return line
}

func TestOpenHoldsOneCasket(t *testing.T) {
	h := newHarness(t)
	oak := h.seed(t, "Oak", "White", "North", 3)

	alloc, err := h.svc.Open(context.Background(), "case-1", Casket{Description: "Oak", Color: "white", Branch: "North"}, "clerk")
	require.NoError(t, err)
	assert.Equal(t, oak.ID, alloc.InventoryID)
	assert.NotEmpty(t, alloc.ReservationID)
	assert.False(t, alloc.NeedsRestock)
	assert.Empty(t, alloc.Warnings)
	assert.Equal(t, 1, h.line(t, oak.ID).ReservedQuantity)
}

func TestOpenUnknownCasketProvisionsGhost(t *testing.T) {
	h := newHarness(t)

	alloc, err := h.svc.Open(context.Background(), "case-1", Casket{Description: "Cedar - Grand", Branch: "North"}, "clerk")
	require.NoError(t, err)
	assert.True(t, alloc.GhostStock)
	assert.True(t, alloc.NeedsRestock)
	assert.NotEmpty(t, alloc.Warnings)

	ghost := h.line(t, alloc.InventoryID)
	assert.True(t, ghost.IsGhost)
	assert.Equal(t, 0, ghost.StockQuantity)
	assert.Equal(t, 1, ghost.ReservedQuantity)
}

func TestOpenReserveFailureIsAWarning(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "Oak", "", "North", 3)
	svc := NewService(failingHolds{h.stock}, h.resolver, logger.NewNop())

	alloc, err := svc.Open(context.Background(), "case-1", Casket{Description: "Oak", Branch: "North"}, "clerk")
	require.NoError(t, err)
	assert.True(t, alloc.NeedsRestock)
	assert.Empty(t, alloc.ReservationID)
	require.Len(t, alloc.Warnings, 1)
	assert.Contains(t, alloc.Warnings[0], "needs restocking")
}

func TestOpenWithoutCasket(t *testing.T) {
	h := newHarness(t)

	alloc, err := h.svc.Open(context.Background(), "case-1", Casket{}, "clerk")
	require.NoError(t, err)
	assert.Empty(t, alloc.InventoryID)

	_, err = h.svc.Open(context.Background(), "", Casket{Description: "Oak", Branch: "North"}, "clerk")
	assert.ErrorIs(t, err, ErrMissingCase)
}

func TestCompleteCommitsHold(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	oak := h.seed(t, "Oak", "", "North", 3)
	casket := Casket{Description: "Oak", Branch: "North"}

	opened, err := h.svc.Open(ctx, "case-1", casket, "clerk")
	require.NoError(t, err)
	done, err := h.svc.Complete(ctx, "case-1", casket, "director")
	require.NoError(t, err)
	assert.Equal(t, opened.ReservationID, done.ReservationID)

	after := h.line(t, oak.ID)
	assert.Equal(t, 2, after.StockQuantity)
	assert.Equal(t, 0, after.ReservedQuantity)

	// A repeated completion finds no hold and must not fall back to a raw commit.
	again, err := h.svc.Complete(ctx, "case-1", Casket{}, "director")
	require.NoError(t, err)
	assert.Empty(t, again.ReservationID)
	assert.Equal(t, 2, h.line(t, oak.ID).StockQuantity)
}

func TestCompleteWithoutHoldResolvesByDescription(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	oak := h.seed(t, "Oak", "", "North", 3)
	require.NoError(t, func() error {
		_, err := h.stock.Reserve(ctx, &dto.QuantityInput{InventoryID: oak.ID, Amount: 1, CaseID: "legacy-case"})
		return err
	}())

	alloc, err := h.svc.Complete(ctx, "legacy-case", Casket{Description: "Oak", Branch: "North"}, "director")
	require.NoError(t, err)
	assert.Equal(t, oak.ID, alloc.InventoryID)

	after := h.line(t, oak.ID)
	assert.Equal(t, 2, after.StockQuantity)
	assert.Equal(t, 0, after.ReservedQuantity)

	missing, err := h.svc.Complete(ctx, "other-case", Casket{Description: "Teak", Branch: "North"}, "director")
	require.NoError(t, err)
	assert.True(t, missing.NeedsRestock)
	assert.NotEmpty(t, missing.Warnings)
}

func TestCancelReleasesHold(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	oak := h.seed(t, "Oak", "", "North", 3)

	_, err := h.svc.Open(ctx, "case-1", Casket{Description: "Oak", Branch: "North"}, "clerk")
	require.NoError(t, err)
	alloc, err := h.svc.Cancel(ctx, "case-1", "clerk")
	require.NoError(t, err)
	assert.Equal(t, oak.ID, alloc.InventoryID)

	after := h.line(t, oak.ID)
	assert.Equal(t, 3, after.StockQuantity)
	assert.Equal(t, 0, after.ReservedQuantity)

	alloc, err = h.svc.Cancel(ctx, "case-1", "clerk")
	require.NoError(t, err)
	assert.Empty(t, alloc.ReservationID)
}

func TestChangeCasketMovesHold(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	oak := h.seed(t, "Oak", "", "North", 3)
	pine := h.seed(t, "Pine", "", "North", 3)
	before := Casket{Description: "Oak", Branch: "North"}

	_, err := h.svc.Open(ctx, "case-1", before, "clerk")
	require.NoError(t, err)

	noop, err := h.svc.ChangeCasket(ctx, "case-1", before, Casket{Description: " oak ", Branch: "North"}, "clerk")
	require.NoError(t, err)
	assert.Empty(t, noop.InventoryID)
	assert.Equal(t, 1, h.line(t, oak.ID).ReservedQuantity)

	alloc, err := h.svc.ChangeCasket(ctx, "case-1", before, Casket{Description: "Pine", Branch: "North"}, "clerk")
	require.NoError(t, err)
	assert.Equal(t, pine.ID, alloc.InventoryID)
	assert.Equal(t, 0, h.line(t, oak.ID).ReservedQuantity)
	assert.Equal(t, 1, h.line(t, pine.ID).ReservedQuantity)

	held, err := h.stock.ListReservations(ctx, &dto.ReservationFilters{ReferenceID: "case-1", Status: model.ReservationHeld})
	require.NoError(t, err)
	require.Len(t, held, 1)
	assert.Equal(t, pine.ID, held[0].InventoryID)
}
