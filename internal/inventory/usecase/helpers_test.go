package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/fekuna/funeral-inventory-service/internal/inventory"
	"github.com/fekuna/funeral-inventory-service/internal/inventory/dto"
	"github.com/fekuna/funeral-inventory-service/internal/inventory/lock"
	"github.com/fekuna/funeral-inventory-service/internal/model"
	"github.com/fekuna/funeral-inventory-service/internal/storage/memory"
	"github.com/fekuna/funeral-inventory-service/pkg/logger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type countingAlerter struct {
	mu     sync.Mutex
	alerts []model.StockAlert
	err    error
}

func (a *countingAlerter) Alert(_ context.Context, alert model.StockAlert) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.alerts = append(a.alerts, alert)
	return a.err
}

func (a *countingAlerter) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.alerts)
}

func (a *countingAlerter) last() model.StockAlert {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.alerts[len(a.alerts)-1]
}

type testEnv struct {
	store    *memory.Store
	repo     *memory.InventoryRepository
	alerter  *countingAlerter
	uc       inventory.UseCase
	resolver inventory.Resolver
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	store := memory.NewStore()
	repo := store.Inventory()
	alerter := &countingAlerter{}
	log := logger.NewNop()
	return &testEnv{
		store:    store,
		repo:     repo,
		alerter:  alerter,
		uc:       NewInventoryUseCase(repo, store, alerter, nil, log, opts),
		resolver: NewStockResolver(repo, store, lock.NewLocalLocker(), alerter, nil, log, opts),
	}
}

func (e *testEnv) seed(t *testing.T, line model.InventoryLine) *model.InventoryLine {
	t.Helper()
	if line.ID == "" {
		line.ID = uuid.New().String()
	}
	if line.Category == "" {
		line.Category = "coffin"
	}
	if line.CreatedAt.IsZero() {
		line.CreatedAt = time.Now()
		line.UpdatedAt = line.CreatedAt
	}
	require.NoError(t, e.repo.Create(context.Background(), &line))
	return &line
}

func (e *testEnv) line(t *testing.T, id string) *model.InventoryLine {
	t.Helper()
	line, err := e.repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, line)
	return line
}

func (e *testEnv) movements(t *testing.T, f dto.MovementFilters) []model.StockMovement {
	t.Helper()
	items, _, err := e.repo.ListMovements(context.Background(), &f)
	require.NoError(t, err)
	return items
}

func (e *testEnv) linesAt(t *testing.T, location string) []model.InventoryLine {
	t.Helper()
	lines, _, err := e.repo.FindAll(context.Background(), &dto.InventoryFilters{Location: location})
	require.NoError(t, err)
	return lines
}

func strPtr(s string) *string { return &s }
