package grpc

import (
	"context"
	"time"

	"github.com/rbroggi/souqly/internal/core/model"
	"github.com/rbroggi/souqly/internal/core/ports"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the name under which the key space health is reported.
const ServiceName = "souqly.KeyValueStore"

// HealthServiceArgs are the mandatory args to instantiate the HealthService.
type HealthServiceArgs struct {
	// Store is the probed key space.
	Store ports.KeyValueStore
}

// NewHealthService creates a new HealthService. It reports NOT_SERVING until the first probe.
func NewHealthService(args HealthServiceArgs) *HealthService {
	h := &HealthService{store: args.Store, server: health.NewServer()}
	h.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
	return h
}

// HealthService implements the standard gRPC health service on top of key space probes.
type HealthService struct {
	store  ports.KeyValueStore
	server *health.Server
}

// Probe reads a key of the key space and updates the serving status accordingly.
func (h *HealthService) Probe(ctx context.Context) error {
	if h.store == nil {
		h.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
		return model.ErrStorageUnavailable
	}
	if _, _, err := h.store.Get(ctx, model.AuthFlagKey); err != nil {
		h.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
		return err
	}
	h.setStatus(healthpb.HealthCheckResponse_SERVING)
	return nil
}

// Run probes every interval until ctx is done.
func (h *HealthService) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		probeCtx, cancel := context.WithTimeout(ctx, interval)
		if err := h.Probe(probeCtx); err != nil && ctx.Err() == nil {
			log.WithError(err).Warn("key space probe failed")
		}
		cancel()
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Register registers the health and reflection services on s.
func (h *HealthService) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.server)
	// Register reflection service on gRPC server.
	reflection.Register(s)
}

// Shutdown reports NOT_SERVING for good, letting clients drain before the server stops.
func (h *HealthService) Shutdown() {
	h.server.Shutdown()
}

func (h *HealthService) setStatus(status healthpb.HealthCheckResponse_ServingStatus) {
	h.server.SetServingStatus("", status)
	h.server.SetServingStatus(ServiceName, status)
}
