package grpc

import (
	"context"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"booksphere-backend/internal/api/grpc/interceptor"
	"booksphere-backend/internal/logger"
)

// Pinger reports whether the storage backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthServer serves grpc.health.v1.Health for the whole process. The status
// starts NOT_SERVING and follows the store once Watch runs.
type HealthServer struct {
	server *grpc.Server
	health *health.Server
	store  Pinger
}

func NewHealthServer(store Pinger) *HealthServer {
	s := grpc.NewServer(grpc.UnaryInterceptor(interceptor.UnaryLogging()))
	h := health.NewServer()
	h.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(s, h)
	reflection.Register(s)
	return &HealthServer{server: s, health: h, store: store}
}

// Check pings the store once and updates the overall serving status.
func (s *HealthServer) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	st := healthpb.HealthCheckResponse_SERVING
	if err := s.store.Ping(ctx); err != nil {
		logger.Warn("Store ping failed", "error", err)
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", st)
	return st
}

// Watch re-checks the store every interval until ctx is done.
func (s *HealthServer) Watch(ctx context.Context, interval time.Duration) {
	s.Check(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Check(ctx)
		}
	}
}

func (s *HealthServer) Serve(lis net.Listener) error {
	logger.Info("gRPC health server listening", "address", lis.Addr().String())
	return s.server.Serve(lis)
}

// Stop reports NOT_SERVING to watchers and drains in-flight calls.
func (s *HealthServer) Stop() {
	s.health.Shutdown()
	s.server.GracefulStop()
}
