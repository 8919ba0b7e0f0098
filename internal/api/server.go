package api

import (
	"context"
	"fmt"
	"net"
	"time"

	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/fleetguard/fleetguard-predict/internal/config"
)

// Server wraps the gRPC operational endpoint and its lifecycle helpers.
// It exposes the standard health service so fleet orchestration probes
// the engine the same way they probe every other service.
type Server struct {
	cfg        config.ServerConfig
	grpcServer *grpc.Server
	listener   net.Listener
	health     *health.Server
}

// NewServer constructs a gRPC server bound to the configured address.
func NewServer(cfg config.ServerConfig, opts ...grpc.ServerOption) (*Server, error) {
	lis, err := net.Listen("tcp", cfg.GRPCAddress)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", cfg.GRPCAddress, err)
	}

	grpc_prometheus.EnableHandlingTimeHistogram()
	serverOpts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(grpc_prometheus.UnaryServerInterceptor),
		grpc.ChainStreamInterceptor(grpc_prometheus.StreamServerInterceptor),
	}
	serverOpts = append(serverOpts, opts...)
	grpcServer := grpc.NewServer(serverOpts...)

	grpc_prometheus.Register(grpcServer)

	healthSrv := health.NewServer()
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthSrv)

	// Enable server reflection in development environments.
	reflection.Register(grpcServer)

	return &Server{
		cfg:        cfg,
		grpcServer: grpcServer,
		listener:   lis,
		health:     healthSrv,
	}, nil
}

// Start serves incoming gRPC requests until Shutdown is invoked.
func (s *Server) Start() error {
	if s.grpcServer == nil || s.listener == nil {
		return fmt.Errorf("server not initialised")
	}
	return s.grpcServer.Serve(s.listener)
}

// SetNotServing flips the health status, used while draining.
func (s *Server) SetNotServing() {
	if s.health != nil {
		s.health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	}
}

// Shutdown attempts a graceful shutdown, falling back to Stop after timeout.
func (s *Server) Shutdown(ctx context.Context) {
	if s.grpcServer == nil {
		return
	}

	stopped := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(stopped)
	}()

	select {
	case <-ctx.Done():
		s.grpcServer.Stop()
	case <-stopped:
	}
}

// Address exposes the bound listener address (useful for tests).
func (s *Server) Address() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// GracefulTimeout returns the configured graceful timeout duration.
func (s *Server) GracefulTimeout() time.Duration {
	return s.cfg.GracefulTimeout
}
