// Package grpc exposes the batch status poller API and the standard gRPC
// health service.
package grpc

import (
	"context"
	"net"
	"time"

	"github.com/dmitrijs2005/rapidphotos/internal/logging"
	"github.com/dmitrijs2005/rapidphotos/internal/server/metrics"
	"github.com/dmitrijs2005/rapidphotos/internal/server/models"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// BatchStatusProvider is implemented by services.UploadService.
type BatchStatusProvider interface {
	BatchStatus(ctx context.Context, ownerID, batchID string) (*models.BatchStatusResponse, error)
}

// ReadinessCheck reports whether a dependency can serve traffic.
type ReadinessCheck interface {
	IsReady(ctx context.Context) error
}

// CheckFunc adapts a function to ReadinessCheck.
type CheckFunc func(ctx context.Context) error

func (f CheckFunc) IsReady(ctx context.Context) error { return f(ctx) }

const (
	checkTimeout          = 500 * time.Millisecond
	defaultHealthInterval = 5 * time.Second
)

type GRPCServer struct {
	address        string
	batches        BatchStatusProvider
	logger         logging.Logger
	jwtSecret      []byte
	health         *health.Server
	checks         []ReadinessCheck
	healthInterval time.Duration
}

func NewGRPCServer(address string, l logging.Logger, batches BatchStatusProvider, secretKey string,
	healthInterval time.Duration, checks ...ReadinessCheck) *GRPCServer {
	if healthInterval <= 0 {
		healthInterval = defaultHealthInterval
	}
	return &GRPCServer{
		address:        address,
		batches:        batches,
		logger:         l.With("module", "grpc_server"),
		jwtSecret:      []byte(secretKey),
		health:         health.NewServer(),
		checks:         checks,
		healthInterval: healthInterval,
	}
}

func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is cancelled.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.accessTokenInterceptor))

	s.health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(srv, s.health)
	RegisterBatchServiceServer(srv, s)

	go s.watchHealth(ctx)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	if err := srv.Serve(lis); err != nil {
		return err
	}
	return nil
}

// watchHealth probes readiness immediately and then on every tick.
func (s *GRPCServer) watchHealth(ctx context.Context) {
	s.probe(ctx)

	ticker := time.NewTicker(s.healthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.probe(ctx)
		}
	}
}

func (s *GRPCServer) probe(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING
	for _, c := range s.checks {
		cctx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := c.IsReady(cctx)
		cancel()

		if err != nil {
			s.logger.Warn(ctx, "readiness check failed", "error", err)
			status = healthpb.HealthCheckResponse_NOT_SERVING
			break
		}
	}

	if ctx.Err() != nil {
		return
	}
	s.health.SetServingStatus("", status)
	if status == healthpb.HealthCheckResponse_SERVING {
		metrics.HealthStatus.Set(1)
	} else {
		metrics.HealthStatus.Set(0)
	}
}
