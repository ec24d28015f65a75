package grpc

import (
	"mini-shop/order-service/circuitbreaker"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthServer publishes one grpc.health.v1 service per dependency breaker.
// The overall service ("") stays SERVING; a dependency is SERVING only while
// its breaker is CLOSED.
type HealthServer struct {
	server *health.Server
	logger *zap.Logger
}

func NewHealthServer(logger *zap.Logger) *HealthServer {
	s := health.NewServer()
	s.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	return &HealthServer{server: s, logger: logger}
}

// Track starts reporting name as SERVING.
func (h *HealthServer) Track(name string) {
	h.server.SetServingStatus(name, healthpb.HealthCheckResponse_SERVING)
}

// OnStateChange matches circuitbreaker.Settings.OnStateChange.
func (h *HealthServer) OnStateChange(name string, from, to circuitbreaker.State) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if to == circuitbreaker.StateClosed {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.server.SetServingStatus(name, status)
	h.logger.Info("Dependency health changed",
		zap.String("dependency", name),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
		zap.String("serving_status", status.String()),
	)
}

// Shutdown flips every service to NOT_SERVING so that load balancers drain.
func (h *HealthServer) Shutdown() {
	h.server.Shutdown()
}

// NewServer builds the gRPC server carrying the health service.
func NewServer(h *HealthServer) *grpc.Server {
	s := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
	)
	healthpb.RegisterHealthServer(s, h.server)
	return s
}
