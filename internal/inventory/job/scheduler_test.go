package job

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fekuna/funeral-inventory-service/internal/inventory/dto"
	"github.com/fekuna/funeral-inventory-service/internal/inventory/usecase"
	"github.com/fekuna/funeral-inventory-service/internal/model"
	"github.com/fekuna/funeral-inventory-service/internal/storage/memory"
	"github.com/fekuna/funeral-inventory-service/pkg/logger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sink struct {
	mu     sync.Mutex
	alerts []model.StockAlert
	err    error
}

func (s *sink) Alert(_ context.Context, a model.StockAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.alerts = append(s.alerts, a)
	return nil
}

func seed(t *testing.T, repo *memory.InventoryRepository, name string, stock, reserved, threshold int) *model.InventoryLine {
	t.Helper()
	line := &model.InventoryLine{
		ID:                uuid.New().String(),
		Name:              name,
		Category:          "coffin",
		Location:          "North",
		StockQuantity:     stock,
		ReservedQuantity:  reserved,
		LowStockThreshold: threshold,
		CreatedAt:         time.Now(),
		UpdatedAt:         time.Now(),
	}
	require.NoError(t, repo.Create(context.Background(), line))
	return line
}

func TestSweepLowStockAlertsEveryLowLine(t *testing.T) {
	store := memory.NewStore()
	repo := store.Inventory()
	out := &sink{}
	s := NewScheduler(Config{}, repo, out, nil, logger.NewNop())

	for i := 0; i < pageSize+5; i++ {
		seed(t, repo, "Oak", 1, 0, 2)
	}
	seed(t, repo, "Pine", 10, 0, 2)
	negative := seed(t, repo, "Teak", 1, 3, 0)

	n, err := s.SweepLowStock(context.Background())
	require.NoError(t, err)
	assert.Equal(t, pageSize+6, n)
	assert.Len(t, out.alerts, pageSize+6)

	for _, a := range out.alerts {
		assert.Equal(t, "scheduled_sweep", a.Reason)
		if a.InventoryID == negative.ID {
			assert.Equal(t, model.SeverityNegative, a.Severity)
		}
	}
}

func TestSweepLowStockCountsOnlyDelivered(t *testing.T) {
	store := memory.NewStore()
	repo := store.Inventory()
	seed(t, repo, "Oak", 0, 0, 1)
	s := NewScheduler(Config{}, repo, &sink{err: errors.New("down")}, nil, logger.NewNop())

	n, err := s.SweepLowStock(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestReconcileReportsMismatches(t *testing.T) {
	store := memory.NewStore()
	repo := store.Inventory()
	log := logger.NewNop()
	stock := usecase.NewInventoryUseCase(repo, store, nil, nil, log, usecase.Options{})
	ctx := context.Background()

	clean := seed(t, repo, "Oak", 5, 0, 0)
	drift := seed(t, repo, "Pine", 5, 0, 0)

	_, err := stock.Hold(ctx, &dto.HoldInput{InventoryID: clean.ID, Amount: 2, ReferenceType: model.ReferenceCase, ReferenceID: "c1"})
	require.NoError(t, err)
	_, err = stock.Reserve(ctx, &dto.QuantityInput{InventoryID: drift.ID, Amount: 1})
	require.NoError(t, err)

	s := NewScheduler(Config{}, repo, &sink{}, nil, log)
	found, err := s.Reconcile(ctx)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, Discrepancy{InventoryID: drift.ID, Reserved: 1, Held: 0}, found[0])
}

func TestStartRejectsBadSpec(t *testing.T) {
	s := NewScheduler(Config{LowStockSpec: "not a cron spec"}, memory.NewStore().Inventory(), &sink{}, nil, logger.NewNop())
	assert.Error(t, s.Start())

	ok := NewScheduler(Config{LowStockSpec: "0 7 * * *", ReconcileSpec: "30 2 * * *"}, memory.NewStore().Inventory(), &sink{}, nil, logger.NewNop())
	require.NoError(t, ok.Start())
	ok.Stop()
}
