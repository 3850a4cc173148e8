package handler

import (
	"context"

	"github.com/fekuna/funeral-inventory-service/internal/auth"
	"github.com/fekuna/funeral-inventory-service/internal/model"
	"github.com/fekuna/funeral-inventory-service/internal/rpc"
	"github.com/fekuna/funeral-inventory-service/internal/transfer"
	"github.com/fekuna/funeral-inventory-service/internal/transfer/dto"
	"github.com/fekuna/funeral-inventory-service/pkg/logger"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "funeral.inventory.v1.TransferService"

type TransferHandler struct {
	uc     transfer.UseCase
	logger logger.ZapLogger
}

func NewTransferHandler(uc transfer.UseCase, log logger.ZapLogger) *TransferHandler {
	return &TransferHandler{
		uc:     uc,
		logger: log,
	}
}

func (h *TransferHandler) ServiceDesc() *grpc.ServiceDesc {
	return rpc.NewServiceDesc(ServiceName, h.logger,
		rpc.Method{Name: "CreateTransfer", Call: h.CreateTransfer},
		rpc.Method{Name: "UpdateTransfer", Call: h.UpdateTransfer},
		rpc.Method{Name: "DispatchTransfer", Call: h.transition(h.uc.Dispatch)},
		rpc.Method{Name: "ReceiveTransfer", Call: h.transition(h.uc.Receive)},
		rpc.Method{Name: "CancelTransfer", Call: h.transition(h.uc.Cancel)},
		rpc.Method{Name: "GetTransfer", Call: h.GetTransfer},
		rpc.Method{Name: "ListTransfers", Call: h.ListTransfers},
	)
}

func (h *TransferHandler) CreateTransfer(ctx context.Context, req *structpb.Struct) (any, error) {
	var in dto.CreateTransferInput
	if err := rpc.Decode(req, &in); err != nil {
		return nil, err
	}
	in.CreatedBy = auth.GetActor(ctx)
	return h.uc.Create(ctx, &in)
}

func (h *TransferHandler) UpdateTransfer(ctx context.Context, req *structpb.Struct) (any, error) {
	var in dto.UpdateTransferInput
	if err := rpc.Decode(req, &in); err != nil {
		return nil, err
	}
	return h.uc.Update(ctx, &in)
}

func (h *TransferHandler) transition(op func(context.Context, *dto.TransitionInput) (*model.Transfer, error)) rpc.UnaryFunc {
	return func(ctx context.Context, req *structpb.Struct) (any, error) {
		var in dto.TransitionInput
		if err := rpc.Decode(req, &in); err != nil {
			return nil, err
		}
		in.Actor = auth.GetActor(ctx)
		return op(ctx, &in)
	}
}

func (h *TransferHandler) GetTransfer(ctx context.Context, req *structpb.Struct) (any, error) {
	var in struct {
		ID string `json:"id"`
	}
	if err := rpc.Decode(req, &in); err != nil {
		return nil, err
	}
	return h.uc.Get(ctx, in.ID)
}

func (h *TransferHandler) ListTransfers(ctx context.Context, req *structpb.Struct) (any, error) {
	var in dto.TransferFilters
	if err := rpc.Decode(req, &in); err != nil {
		return nil, err
	}
	if in.Location == "" {
		in.Location = auth.GetBranch(ctx)
	}

	items, total, err := h.uc.List(ctx, &in)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []model.Transfer{}
	}
	return map[string]any{"items": items, "total": total}, nil
}
