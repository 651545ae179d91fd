// Package grpc exposes a gRPC health endpoint next to the HTTP server. The
// consumer fleet and orchestration probes check liveness here without going
// through the HTTP middleware stack.
package grpc

import (
	"context"

	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/payorch/payorch-backend-sqs/internal/state"
)

// HealthServer implements grpc.health.v1.Health backed by the state store.
type HealthServer struct {
	healthpb.UnimplementedHealthServer
	store state.Store
}

// Register registers the health service with the given gRPC server.
func Register(s *grpc.Server, store state.Store) {
	healthpb.RegisterHealthServer(s, &HealthServer{store: store})
}

// Check reports SERVING when the state store is reachable.
func (h *HealthServer) Check(ctx context.Context, _ *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	if err := h.store.Ping(ctx); err != nil {
		return &healthpb.HealthCheckResponse{
			Status: healthpb.HealthCheckResponse_NOT_SERVING,
		}, nil
	}
	return &healthpb.HealthCheckResponse{
		Status: healthpb.HealthCheckResponse_SERVING,
	}, nil
}

// Watch sends the current status once and then holds the stream open until
// the client goes away.
func (h *HealthServer) Watch(req *healthpb.HealthCheckRequest, stream healthpb.Health_WatchServer) error {
	resp, err := h.Check(stream.Context(), req)
	if err != nil {
		return err
	}
	if err := stream.Send(resp); err != nil {
		return err
	}
	<-stream.Context().Done()
	return nil
}
