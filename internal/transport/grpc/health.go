package grpc_server

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health-check name of the garden service.
const ServiceName = "garden.v1.GardenService"

// Probe reports whether one backend dependency is usable.
type Probe func(ctx context.Context) error

type HealthServer struct {
	srv    *health.Server
	probes map[string]Probe
	log    *zap.Logger
}

// NewServer builds a gRPC server with health and reflection registered.
func NewServer(probes map[string]Probe, log *zap.Logger, opts ...grpc.ServerOption) (*grpc.Server, *HealthServer) {
	if log == nil {
		log = zap.NewNop()
	}
	hs := &HealthServer{srv: health.NewServer(), probes: probes, log: log}
	hs.srv.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	s := grpc.NewServer(opts...)
	healthpb.RegisterHealthServer(s, hs.srv)
	reflection.Register(s)
	return s, hs
}

// Check runs every probe once and publishes the result for ServiceName and "".
func (h *HealthServer) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	for name, probe := range h.probes {
		if err := probe(ctx); err != nil {
			h.log.Warn("health probe failed", zap.String("dependency", name), zap.Error(err))
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	h.srv.SetServingStatus(ServiceName, status)
	h.srv.SetServingStatus("", status)
	return status
}

// Run re-checks every interval until ctx is done, then marks the service as shutting down.
func (h *HealthServer) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		pctx, cancel := context.WithTimeout(ctx, interval/2)
		h.Check(pctx)
		cancel()
		select {
		case <-ctx.Done():
			h.srv.Shutdown()
			return
		case <-t.C:
		}
	}
}
