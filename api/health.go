package api

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health-checked service name.
const ServiceName = "taskengine.WorkerPool"

// Common errors for the health server
var (
	ErrServerRunning = errors.New("server is already running")
)

// HealthServer exposes the standard gRPC health service for the engine.
// The overall ("") and ServiceName statuses move together.
type HealthServer struct {
	grpcServer *grpc.Server
	health     *health.Server
	listener   net.Listener

	running bool
	mu      sync.RWMutex
}

// NewHealthServer creates a health server reporting NOT_SERVING until SetServing(true).
func NewHealthServer() *HealthServer {
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	return &HealthServer{health: hs}
}

// SetServing updates the reported status.
func (s *HealthServer) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

func (s *HealthServer) listen(address string) (net.Listener, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil, ErrServerRunning
	}

	lis, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", address, err)
	}
	s.listener = lis

	s.grpcServer = grpc.NewServer()
	healthpb.RegisterHealthServer(s.grpcServer, s.health)

	s.running = true
	return lis, nil
}

// Start starts the gRPC server on address (blocking).
func (s *HealthServer) Start(address string) error {
	lis, err := s.listen(address)
	if err != nil {
		return err
	}
	return s.grpcServer.Serve(lis)
}

// StartAsync starts the gRPC server asynchronously and returns immediately.
func (s *HealthServer) StartAsync(address string) error {
	lis, err := s.listen(address)
	if err != nil {
		return err
	}

	go func() {
		_ = s.grpcServer.Serve(lis)
	}()
	return nil
}

// Addr returns the bound listener address, or "" if not started.
func (s *HealthServer) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop marks the service NOT_SERVING and gracefully stops the gRPC server.
func (s *HealthServer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.running = false

	s.health.Shutdown()
	if s.grpcServer != nil {
		s.grpcServer.GracefulStop()
	}
}
