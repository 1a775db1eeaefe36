// Package health exposes the coordinator's liveness and readiness checks
// as a standard gRPC health service, grounded on the teacher's
// internal/v1/health/handler.go liveness-vs-readiness split: liveness never
// touches a dependency, readiness probes storage and the chain connector.
package health

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/shuffle-protocol/shuffle-coordinator/internal/domain"
	"github.com/shuffle-protocol/shuffle-coordinator/internal/logging"
)

// Checker probes one dependency's reachability. Storage and
// domain.ChainConnector both satisfy it via the small adapter funcs below.
type Checker interface {
	Check(ctx context.Context) error
}

type checkerFunc func(ctx context.Context) error

func (f checkerFunc) Check(ctx context.Context) error { return f(ctx) }

// Server implements grpc_health_v1.HealthServer, replacing the teacher's
// gin liveness/readiness JSON endpoints with the equivalent standard gRPC
// health protocol so load balancers and k8s probes get uniform behavior
// across the fleet.
type Server struct {
	healthpb.UnimplementedHealthServer

	storage Checker
	chain   Checker

	mu       sync.RWMutex
	overrides map[string]healthpb.HealthCheckResponse_ServingStatus
}

// storageChecker adapts domain.Storage's cheapest read (QueueLen on a
// sentinel key) into a readiness probe without requiring a bespoke Ping
// method on every Storage implementation.
func storageChecker(s domain.Storage) Checker {
	return checkerFunc(func(ctx context.Context) error {
		_, err := s.QueueLen(ctx, domain.QueueKey{})
		return err
	})
}

func chainChecker(c domain.ChainConnector) Checker {
	return checkerFunc(func(ctx context.Context) error {
		// A sentinel UTXOID almost certainly isn't seated on chain, so this
		// reports (nil, nil) on a healthy connector; any non-nil error
		// means the round trip to the chain itself failed.
		_, err := c.LookupUTXO(ctx, domain.UTXOID{})
		return err
	})
}

func NewServer(storage domain.Storage, chain domain.ChainConnector) *Server {
	return &Server{
		storage:   storageChecker(storage),
		chain:     chainChecker(chain),
		overrides: make(map[string]healthpb.HealthCheckResponse_ServingStatus),
	}
}

// Check implements the unary half of the health protocol. An empty service
// name means "overall server health" (readiness); "liveness" is a
// dedicated service name that never touches a dependency.
func (s *Server) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	if req.Service == "liveness" {
		return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}, nil
	}

	s.mu.RLock()
	if st, ok := s.overrides[req.Service]; ok {
		s.mu.RUnlock()
		return &healthpb.HealthCheckResponse{Status: st}, nil
	}
	s.mu.RUnlock()

	checkCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := s.storage.Check(checkCtx); err != nil {
		logging.Warn(ctx, "readiness check: storage unreachable", zap.Error(err))
		return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_NOT_SERVING}, nil
	}
	if err := s.chain.Check(checkCtx); err != nil {
		logging.Warn(ctx, "readiness check: chain connector unreachable", zap.Error(err))
		return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_NOT_SERVING}, nil
	}
	return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}, nil
}

// Watch implements the streaming half of the health protocol. This
// coordinator has no push-based health events, so it returns Unimplemented
// immediately without sending a status, matching grpc-go's own
// stub health server behavior for services that don't support watch.
func (s *Server) Watch(req *healthpb.HealthCheckRequest, stream healthpb.Health_WatchServer) error {
	return status.Error(codes.Unimplemented, "health: watch is not supported, poll Check instead")
}

// SetOverride forces a service's reported status, for use by the admin
// surface during planned maintenance (draining before a deploy).
func (s *Server) SetOverride(service string, st healthpb.HealthCheckResponse_ServingStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides[service] = st
}
