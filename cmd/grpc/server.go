package main

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// registrar is implemented by the inventory and transfer handlers.
type registrar interface {
	ServiceDesc() *grpc.ServiceDesc
}

// newGRPCServer registers every handler and a health service reporting each
// of them as serving. Server reflection is not registered: the services are
// described by hand over structpb and carry no proto file descriptor.
func newGRPCServer(handlers ...registrar) (*grpc.Server, *health.Server) {
	srv := grpc.NewServer()
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(srv, healthServer)

	for _, h := range handlers {
		desc := h.ServiceDesc()
		srv.RegisterService(desc, h)
		healthServer.SetServingStatus(desc.ServiceName, healthpb.HealthCheckResponse_SERVING)
	}
	return srv, healthServer
}
