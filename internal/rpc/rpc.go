// Package rpc builds gRPC services whose messages are google.protobuf.Struct
// values carrying JSON-shaped payloads.
package rpc

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/fekuna/funeral-inventory-service/internal/casework"
	"github.com/fekuna/funeral-inventory-service/internal/inventory"
	"github.com/fekuna/funeral-inventory-service/internal/inventory/lock"
	"github.com/fekuna/funeral-inventory-service/internal/transfer"
	"github.com/fekuna/funeral-inventory-service/pkg/logger"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// UnaryFunc handles one call. The returned value is encoded as a Struct and
// must marshal to a JSON object.
type UnaryFunc func(ctx context.Context, req *structpb.Struct) (any, error)

type Method struct {
	Name string
	Call UnaryFunc
}

// NewServiceDesc describes a service made of the given unary methods. Errors
// returned by a method are mapped to gRPC status codes with Status.
func NewServiceDesc(serviceName string, log logger.ZapLogger, methods ...Method) *grpc.ServiceDesc {
	desc := &grpc.ServiceDesc{
		ServiceName: serviceName,
		HandlerType: (*any)(nil),
		Streams:     []grpc.StreamDesc{},
		Metadata:    serviceName,
	}
	for _, m := range methods {
		desc.Methods = append(desc.Methods, methodDesc(serviceName, m, log))
	}
	return desc
}

func methodDesc(serviceName string, m Method, log logger.ZapLogger) grpc.MethodDesc {
	fullMethod := "/" + serviceName + "/" + m.Name
	call := m.Call
	return grpc.MethodDesc{
		MethodName: m.Name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			handler := func(ctx context.Context, req any) (any, error) {
				out, err := call(ctx, req.(*structpb.Struct))
				if err != nil {
					st := Status(err)
					if st.Code() == codes.Internal {
						log.Error("rpc failed", zap.String("method", fullMethod), zap.Error(err))
					}
					return nil, st.Err()
				}
				return Encode(out)
			}
			if interceptor == nil {
				return handler(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// Decode copies the request fields into dst using JSON field names.
func Decode(req *structpb.Struct, dst any) error {
	b, err := protojson.Marshal(req)
	if err != nil {
		return status.Errorf(codes.InvalidArgument, "malformed request: %v", err)
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return status.Errorf(codes.InvalidArgument, "malformed request: %v", err)
	}
	return nil
}

// Encode turns v into a Struct through its JSON form.
func Encode(v any) (*structpb.Struct, error) {
	if s, ok := v.(*structpb.Struct); ok {
		return s, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	out := new(structpb.Struct)
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

// Status maps domain errors to gRPC codes. Unknown errors become Internal
// without leaking their text.
func Status(err error) *status.Status {
	if st, ok := status.FromError(err); ok {
		return st
	}

	switch {
	case errors.Is(err, inventory.ErrLineNotFound),
		errors.Is(err, inventory.ErrReservationNotFound),
		errors.Is(err, transfer.ErrTransferNotFound):
		return status.New(codes.NotFound, err.Error())
	case errors.Is(err, transfer.ErrStateViolation),
		errors.Is(err, inventory.ErrReservationClosed),
		errors.Is(err, inventory.ErrLineInUse):
		return status.New(codes.FailedPrecondition, err.Error())
	case errors.Is(err, inventory.ErrInvalidQuantity),
		errors.Is(err, inventory.ErrInvalidInput),
		errors.Is(err, transfer.ErrInvalidTransfer),
		errors.Is(err, casework.ErrMissingCase):
		return status.New(codes.InvalidArgument, err.Error())
	case errors.Is(err, lock.ErrBusy):
		return status.New(codes.Unavailable, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.New(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.New(codes.Canceled, err.Error())
	}
	return status.New(codes.Internal, "internal error")
}
