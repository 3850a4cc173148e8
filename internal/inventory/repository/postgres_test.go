//go:build integration

package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/fekuna/funeral-inventory-service/internal/inventory/dto"
	"github.com/fekuna/funeral-inventory-service/internal/model"
	"github.com/fekuna/funeral-inventory-service/pkg/postgres/postgrestest"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func seedLine(t *testing.T, repo *PGRepository, name string, modelName *string, location string, stock int) *model.InventoryLine {
	t.Helper()
	now := time.Now().UTC()
	line := &model.InventoryLine{
		ID:                uuid.New().String(),
		Name:              name,
		Model:             modelName,
		Category:          "coffin",
		UnitPrice:         decimal.RequireFromString("1250.00"),
		StockQuantity:     stock,
		Location:          location,
		LowStockThreshold: 1,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	require.NoError(t, repo.Create(context.Background(), line))
	return line
}

func TestPGAdjustIsAtomicUnderConcurrency(t *testing.T) {
	repo := NewPGRepository(postgrestest.Start(t))
	line := seedLine(t, repo, "Oak", nil, "North", 20)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Adjust(context.Background(), line.ID, -1, 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := repo.GetByID(context.Background(), line.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.StockQuantity)
	assert.Equal(t, 20, got.ReservedQuantity)

	missing, err := repo.Adjust(context.Background(), uuid.New().String(), 1, 0)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestPGSearchMatchesCaseInsensitively(t *testing.T) {
	repo := NewPGRepository(postgrestest.Start(t))
	small := seedLine(t, repo, "Cedar", strPtr("Grand"), "North", 1)
	big := seedLine(t, repo, "Cedar", strPtr("Grand"), "North", 9)
	seedLine(t, repo, "Cedar", strPtr("Regal"), "North", 4)

	lines, err := repo.Search(context.Background(), &dto.LineSearch{Category: "COFFIN", Name: "cedar", Model: strPtr("GRAND"), Location: "North"})
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, big.ID, lines[0].ID, "fullest first")
	assert.Equal(t, small.ID, lines[1].ID)
	assert.True(t, decimal.RequireFromString("1250").Equal(lines[0].UnitPrice))
}

func TestPGResolveReservationIsCompareAndSet(t *testing.T) {
	repo := NewPGRepository(postgrestest.Start(t))
	ctx := context.Background()
	line := seedLine(t, repo, "Oak", nil, "North", 2)

	res := &model.Reservation{
		ID:            uuid.New().String(),
		InventoryID:   line.ID,
		Quantity:      1,
		ReferenceType: model.ReferenceCase,
		ReferenceID:   "case-1",
		Status:        model.ReservationHeld,
		CreatedAt:     time.Now().UTC(),
	}
	require.NoError(t, repo.CreateReservation(ctx, res))

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.ResolveReservation(ctx, res.ID, model.ReservationHeld, model.ReservationCommitted, time.Now().UTC())
			if assert.NoError(t, err) && ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)

	got, err := repo.GetReservation(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationCommitted, got.Status)
	require.NotNil(t, got.ResolvedAt)

	totals, err := repo.HeldTotals(ctx)
	require.NoError(t, err)
	assert.Zero(t, totals[line.ID])
}

func TestPGDeleteKeepsLedgerAndRefusesReservedLine(t *testing.T) {
	repo := NewPGRepository(postgrestest.Start(t))
	ctx := context.Background()
	line := seedLine(t, repo, "Oak", nil, "North", 3)

	require.NoError(t, repo.LogMovement(ctx, &model.StockMovement{
		ID:               uuid.New().String(),
		InventoryID:      line.ID,
		CaseID:           strPtr("case-1"),
		MovementType:     model.MovementSale,
		QuantityChange:   -1,
		PreviousQuantity: 3,
		NewQuantity:      2,
		Reason:           "sold",
		RecordedBy:       "director",
		CreatedAt:        time.Now().UTC(),
	}))

	_, err := repo.Adjust(ctx, line.ID, 0, 1)
	require.NoError(t, err)
	deleted, err := repo.Delete(ctx, line.ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	_, err = repo.Adjust(ctx, line.ID, 0, -1)
	require.NoError(t, err)
	deleted, err = repo.Delete(ctx, line.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	mvs, total, err := repo.ListMovements(ctx, &dto.MovementFilters{InventoryID: line.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, mvs, 1)
	assert.Equal(t, model.MovementSale, mvs[0].MovementType)
}
