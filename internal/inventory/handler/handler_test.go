package handler

import (
	"context"
	"net"
	"testing"

	"github.com/fekuna/funeral-inventory-service/internal/inventory/dto"
	"github.com/fekuna/funeral-inventory-service/internal/inventory/lock"
	"github.com/fekuna/funeral-inventory-service/internal/inventory/usecase"
	"github.com/fekuna/funeral-inventory-service/internal/storage/memory"
	"github.com/fekuna/funeral-inventory-service/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

type client struct {
	t    *testing.T
	conn *grpc.ClientConn
}

func (c *client) call(ctx context.Context, method string, req map[string]any) (map[string]any, error) {
	c.t.Helper()
	in, err := structpb.NewStruct(req)
	require.NoError(c.t, err)
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, "/"+ServiceName+"/"+method, in, out); err != nil {
		return nil, err
	}
	return out.AsMap(), nil
}

func setup(t *testing.T) (*client, *memory.InventoryRepository) {
	t.Helper()
	store := memory.NewStore()
	repo := store.Inventory()
	log := logger.NewNop()
	uc := usecase.NewInventoryUseCase(repo, store, nil, nil, log, usecase.Options{})
	resolver := usecase.NewStockResolver(repo, store, lock.NewLocalLocker(), nil, nil, log, usecase.Options{})
	h := NewInventoryHandler(uc, resolver, log)

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	srv.RegisterService(h.ServiceDesc(), h)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &client{t: t, conn: conn}, repo
}

func TestCreateReserveCommitOverRPC(t *testing.T) {
	c, repo := setup(t)
	ctx := metadata.AppendToOutgoingContext(context.Background(), "x-user-id", "director-7")

	created, err := c.call(ctx, "CreateLine", map[string]any{
		"name":          "Oak",
		"model":         "Regal",
		"location":      "North",
		"unit_price":    "1899.50",
		"initial_stock": 4,
	})
	require.NoError(t, err)
	id, _ := created["id"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, float64(4), created["available_quantity"])
	assert.Equal(t, "1899.5", created["unit_price"])

	reserved, err := c.call(ctx, "Reserve", map[string]any{"inventory_id": id, "amount": 1, "case_id": "case-1"})
	require.NoError(t, err)
	assert.Equal(t, float64(1), reserved["new_reserved_quantity"])

	committed, err := c.call(ctx, "Commit", map[string]any{"inventory_id": id, "amount": 1, "case_id": "case-1"})
	require.NoError(t, err)
	assert.Equal(t, float64(3), committed["new_stock_quantity"])

	mvs, _, err := repo.ListMovements(context.Background(), &dto.MovementFilters{InventoryID: id})
	require.NoError(t, err)
	require.Len(t, mvs, 3)
	for _, m := range mvs {
		assert.Equal(t, "director-7", m.RecordedBy)
	}
}

func TestErrorsMapToStatusCodes(t *testing.T) {
	c, _ := setup(t)
	ctx := context.Background()

	_, err := c.call(ctx, "GetLine", map[string]any{"id": "missing"})
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = c.call(ctx, "Reserve", map[string]any{"inventory_id": "missing", "amount": 0})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = c.call(ctx, "FindOrCreateLine", map[string]any{"name": "Oak"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestFindOrCreateLineUsesBranchHeader(t *testing.T) {
	c, _ := setup(t)
	ctx := metadata.AppendToOutgoingContext(context.Background(), "x-branch", "South")

	out, err := c.call(ctx, "FindOrCreateLine", map[string]any{"name": "Cedar - Grand", "case_ref": "case-9"})
	require.NoError(t, err)
	assert.Equal(t, true, out["created"])
	line, ok := out["line"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "South", line["location"])
	assert.Equal(t, true, line["is_ghost"])

	found, err := c.call(ctx, "FindItem", map[string]any{"name": "Cedar - Grand", "branch": "South"})
	require.NoError(t, err)
	assert.Equal(t, true, found["found"])

	missing, err := c.call(ctx, "FindItem", map[string]any{"name": "Teak", "branch": "South"})
	require.NoError(t, err)
	assert.Equal(t, false, missing["found"])
}
