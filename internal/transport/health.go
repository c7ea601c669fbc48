package transport

import (
	"net"

	grpcMiddleware "github.com/grpc-ecosystem/go-grpc-middleware"
	grpcZap "github.com/grpc-ecosystem/go-grpc-middleware/logging/zap"
	grpcRecovery "github.com/grpc-ecosystem/go-grpc-middleware/recovery"
	grpcCtxTags "github.com/grpc-ecosystem/go-grpc-middleware/tags"
	grpcPrometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// HealthServer is a gRPC health server wrapped in the same
// recovery/ctxtags/prometheus/zap interceptor chain cmd/api-gateway builds
// for its own gRPC server. Process liveness is reported by setting a
// single "" (overall) service's status; nothing in this deployment needs
// per-service granularity.
type HealthServer struct {
	grpc   *grpc.Server
	health *health.Server
}

// NewHealthServer constructs a HealthServer, defaulting the "" service to
// NOT_SERVING until SetServing(true) is called once startup completes.
func NewHealthServer(logger *zap.Logger) *HealthServer {
	chain := []grpc.UnaryServerInterceptor{
		grpcRecovery.UnaryServerInterceptor(),
		grpcCtxTags.UnaryServerInterceptor(),
		grpcPrometheus.UnaryServerInterceptor,
		grpcZap.UnaryServerInterceptor(logger),
	}
	srv := grpc.NewServer(grpc.UnaryInterceptor(grpcMiddleware.ChainUnaryServer(chain...)))
	grpcPrometheus.Register(srv)

	h := health.NewServer()
	h.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	grpc_health_v1.RegisterHealthServer(srv, h)

	return &HealthServer{grpc: srv, health: h}
}

// SetServing flips the overall health status, called once when all of a
// chain's adapter/pool/stream/scan wiring has started, and on shutdown.
func (s *HealthServer) SetServing(serving bool) {
	status := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if serving {
		status = grpc_health_v1.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
}

// Serve blocks accepting connections on socket until the server stops.
func (s *HealthServer) Serve(socket net.Listener) error {
	return s.grpc.Serve(socket)
}

// GracefulStop stops accepting new RPCs and waits for in-flight ones to
// finish.
func (s *HealthServer) GracefulStop() {
	s.grpc.GracefulStop()
}
