package handler

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/fekuna/funeral-inventory-service/internal/inventory/lock"
	invusecase "github.com/fekuna/funeral-inventory-service/internal/inventory/usecase"
	"github.com/fekuna/funeral-inventory-service/internal/model"
	"github.com/fekuna/funeral-inventory-service/internal/storage/memory"
	"github.com/fekuna/funeral-inventory-service/internal/transfer/usecase"
	"github.com/fekuna/funeral-inventory-service/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestTransferLifecycleOverRPC(t *testing.T) {
	store := memory.NewStore()
	lines := store.Inventory()
	log := logger.NewNop()
	stock := invusecase.NewInventoryUseCase(lines, store, nil, nil, log, invusecase.Options{})
	resolver := invusecase.NewStockResolver(lines, store, lock.NewLocalLocker(), nil, nil, log, invusecase.Options{})
	h := NewTransferHandler(usecase.NewTransferUseCase(store.Transfers(), stock, resolver, store, nil, log), log)

	src := &model.InventoryLine{ID: "oak-north", Name: "Oak", Category: "coffin", Location: "North", StockQuantity: 4, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	require.NoError(t, lines.Create(context.Background(), src))

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

	call := func(method string, req map[string]any) (map[string]any, error) {
		in, err := structpb.NewStruct(req)
		require.NoError(t, err)
		out := new(structpb.Struct)
		if err := conn.Invoke(context.Background(), "/"+ServiceName+"/"+method, in, out); err != nil {
			return nil, err
		}
		return out.AsMap(), nil
	}

	created, err := call("CreateTransfer", map[string]any{
		"from_location": "North",
		"to_location":   "South",
		"items":         []any{map[string]any{"inventory_id": "oak-north", "quantity": 2}},
	})
	require.NoError(t, err)
	id, _ := created["id"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, "pending", created["status"])

	_, err = call("ReceiveTransfer", map[string]any{"id": id})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	_, err = call("DispatchTransfer", map[string]any{"id": id})
	require.NoError(t, err)
	received, err := call("ReceiveTransfer", map[string]any{"id": id})
	require.NoError(t, err)
	assert.Equal(t, "completed", received["status"])

	listed, err := call("ListTransfers", map[string]any{"status": "completed"})
	require.NoError(t, err)
	assert.Equal(t, float64(1), listed["total"])

	_, err = call("GetTransfer", map[string]any{"id": "missing"})
	assert.Equal(t, codes.NotFound, status.Code(err))
}
