package handler

import (
	"context"

	"github.com/fekuna/funeral-inventory-service/internal/auth"
	"github.com/fekuna/funeral-inventory-service/internal/inventory"
	"github.com/fekuna/funeral-inventory-service/internal/inventory/dto"
	"github.com/fekuna/funeral-inventory-service/internal/model"
	"github.com/fekuna/funeral-inventory-service/internal/rpc"
	"github.com/fekuna/funeral-inventory-service/pkg/logger"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "funeral.inventory.v1.InventoryService"

type InventoryHandler struct {
	uc       inventory.UseCase
	resolver inventory.Resolver
	logger   logger.ZapLogger
}

func NewInventoryHandler(uc inventory.UseCase, resolver inventory.Resolver, log logger.ZapLogger) *InventoryHandler {
	return &InventoryHandler{
		uc:       uc,
		resolver: resolver,
		logger:   log,
	}
}

// ServiceDesc registers every method with a grpc.Server.
func (h *InventoryHandler) ServiceDesc() *grpc.ServiceDesc {
	return rpc.NewServiceDesc(ServiceName, h.logger,
		rpc.Method{Name: "CreateLine", Call: h.CreateLine},
		rpc.Method{Name: "GetLine", Call: h.GetLine},
		rpc.Method{Name: "ListLines", Call: h.ListLines},
		rpc.Method{Name: "ListLowStock", Call: h.ListLowStock},
		rpc.Method{Name: "AdjustStock", Call: h.AdjustStock},
		rpc.Method{Name: "RemoveLine", Call: h.RemoveLine},
		rpc.Method{Name: "Reserve", Call: h.Reserve},
		rpc.Method{Name: "Release", Call: h.Release},
		rpc.Method{Name: "Commit", Call: h.Commit},
		rpc.Method{Name: "Hold", Call: h.Hold},
		rpc.Method{Name: "CommitHold", Call: h.CommitHold},
		rpc.Method{Name: "ReleaseHold", Call: h.ReleaseHold},
		rpc.Method{Name: "ListReservations", Call: h.ListReservations},
		rpc.Method{Name: "FindItem", Call: h.FindItem},
		rpc.Method{Name: "FindOrCreateLine", Call: h.FindOrCreateLine},
		rpc.Method{Name: "ListMovements", Call: h.ListMovements},
	)
}

type idRequest struct {
	ID string `json:"id"`
}

type lineResponse struct {
	*model.InventoryLine
	AvailableQuantity int `json:"available_quantity"`
}

func toLine(l *model.InventoryLine) lineResponse {
	return lineResponse{InventoryLine: l, AvailableQuantity: l.AvailableQuantity()}
}

func toLines(lines []model.InventoryLine) []lineResponse {
	out := make([]lineResponse, len(lines))
	for i := range lines {
		out[i] = toLine(&lines[i])
	}
	return out
}

type listLinesResponse struct {
	Items []lineResponse `json:"items"`
	Total int            `json:"total"`
}

func (h *InventoryHandler) CreateLine(ctx context.Context, req *structpb.Struct) (any, error) {
	var in dto.CreateLineInput
	if err := rpc.Decode(req, &in); err != nil {
		return nil, err
	}
	in.RecordedBy = auth.GetActor(ctx)

	line, err := h.uc.CreateLine(ctx, &in)
	if err != nil {
		return nil, err
	}
	return toLine(line), nil
}

func (h *InventoryHandler) GetLine(ctx context.Context, req *structpb.Struct) (any, error) {
	var in idRequest
	if err := rpc.Decode(req, &in); err != nil {
		return nil, err
	}

	line, err := h.uc.GetLine(ctx, in.ID)
	if err != nil {
		return nil, err
	}
	return toLine(line), nil
}

func (h *InventoryHandler) ListLines(ctx context.Context, req *structpb.Struct) (any, error) {
	var in dto.InventoryFilters
	if err := rpc.Decode(req, &in); err != nil {
		return nil, err
	}
	if in.Location == "" {
		in.Location = auth.GetBranch(ctx)
	}

	lines, total, err := h.uc.ListLines(ctx, &in)
	if err != nil {
		return nil, err
	}
	return listLinesResponse{Items: toLines(lines), Total: total}, nil
}

func (h *InventoryHandler) ListLowStock(ctx context.Context, req *structpb.Struct) (any, error) {
	var in dto.InventoryFilters
	if err := rpc.Decode(req, &in); err != nil {
		return nil, err
	}
	if in.Location == "" {
		in.Location = auth.GetBranch(ctx)
	}

	lines, total, err := h.uc.ListLowStock(ctx, in.Location, in.Page, in.PageSize)
	if err != nil {
		return nil, err
	}
	return listLinesResponse{Items: toLines(lines), Total: total}, nil
}

func (h *InventoryHandler) AdjustStock(ctx context.Context, req *structpb.Struct) (any, error) {
	var in dto.AdjustInput
	if err := rpc.Decode(req, &in); err != nil {
		return nil, err
	}
	in.RecordedBy = auth.GetActor(ctx)

	line, err := h.uc.AdjustStock(ctx, &in)
	if err != nil {
		return nil, err
	}
	return toLine(line), nil
}

func (h *InventoryHandler) RemoveLine(ctx context.Context, req *structpb.Struct) (any, error) {
	var in idRequest
	if err := rpc.Decode(req, &in); err != nil {
		return nil, err
	}
	if err := h.uc.RemoveLine(ctx, in.ID); err != nil {
		return nil, err
	}
	return map[string]any{"success": true}, nil
}

func (h *InventoryHandler) Reserve(ctx context.Context, req *structpb.Struct) (any, error) {
	var in dto.QuantityInput
	if err := rpc.Decode(req, &in); err != nil {
		return nil, err
	}
	in.RecordedBy = auth.GetActor(ctx)
	return h.uc.Reserve(ctx, &in)
}

func (h *InventoryHandler) Release(ctx context.Context, req *structpb.Struct) (any, error) {
	var in dto.QuantityInput
	if err := rpc.Decode(req, &in); err != nil {
		return nil, err
	}
	in.RecordedBy = auth.GetActor(ctx)
	return h.uc.Release(ctx, &in)
}

func (h *InventoryHandler) Commit(ctx context.Context, req *structpb.Struct) (any, error) {
	var in dto.CommitInput
	if err := rpc.Decode(req, &in); err != nil {
		return nil, err
	}
	in.RecordedBy = auth.GetActor(ctx)
	return h.uc.Commit(ctx, &in)
}

func (h *InventoryHandler) Hold(ctx context.Context, req *structpb.Struct) (any, error) {
	var in dto.HoldInput
	if err := rpc.Decode(req, &in); err != nil {
		return nil, err
	}
	in.RecordedBy = auth.GetActor(ctx)
	return h.uc.Hold(ctx, &in)
}

func (h *InventoryHandler) CommitHold(ctx context.Context, req *structpb.Struct) (any, error) {
	var in dto.ResolveHoldInput
	if err := rpc.Decode(req, &in); err != nil {
		return nil, err
	}
	in.RecordedBy = auth.GetActor(ctx)
	return h.uc.CommitHold(ctx, &in)
}

func (h *InventoryHandler) ReleaseHold(ctx context.Context, req *structpb.Struct) (any, error) {
	var in dto.ResolveHoldInput
	if err := rpc.Decode(req, &in); err != nil {
		return nil, err
	}
	in.RecordedBy = auth.GetActor(ctx)
	return h.uc.ReleaseHold(ctx, &in)
}

func (h *InventoryHandler) ListReservations(ctx context.Context, req *structpb.Struct) (any, error) {
	var in dto.ReservationFilters
	if err := rpc.Decode(req, &in); err != nil {
		return nil, err
	}

	items, err := h.uc.ListReservations(ctx, &in)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []model.Reservation{}
	}
	return map[string]any{"items": items}, nil
}

type findResponse struct {
	Found   bool          `json:"found"`
	Created bool          `json:"created"`
	Line    *lineResponse `json:"line,omitempty"`
}

func (h *InventoryHandler) FindItem(ctx context.Context, req *structpb.Struct) (any, error) {
	var in dto.FindItemInput
	if err := rpc.Decode(req, &in); err != nil {
		return nil, err
	}

	line, err := h.resolver.FindItem(ctx, &in)
	if err != nil {
		return nil, err
	}
	if line == nil {
		return findResponse{}, nil
	}
	out := toLine(line)
	return findResponse{Found: true, Line: &out}, nil
}

type findOrCreateRequest struct {
	dto.FindItemInput
	CaseRef string `json:"case_ref"`
}

func (h *InventoryHandler) FindOrCreateLine(ctx context.Context, req *structpb.Struct) (any, error) {
	var in findOrCreateRequest
	if err := rpc.Decode(req, &in); err != nil {
		return nil, err
	}
	if in.Branch == "" {
		in.Branch = auth.GetBranch(ctx)
	}
	if in.Branch == "" {
		return nil, status.Error(codes.InvalidArgument, "branch is required")
	}

	line, created, err := h.resolver.FindOrCreateLine(ctx, &in.FindItemInput, in.CaseRef)
	if err != nil {
		return nil, err
	}
	out := toLine(line)
	return findResponse{Found: true, Created: created, Line: &out}, nil
}

func (h *InventoryHandler) ListMovements(ctx context.Context, req *structpb.Struct) (any, error) {
	var in dto.MovementFilters
	if err := rpc.Decode(req, &in); err != nil {
		return nil, err
	}

	mvs, total, err := h.uc.ListMovements(ctx, &in)
	if err != nil {
		return nil, err
	}
	if mvs == nil {
		mvs = []model.StockMovement{}
	}
	return map[string]any{"items": mvs, "total": total}, nil
}
