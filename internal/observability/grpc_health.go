package observability

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// GRPCHealthService is the service name reported alongside the overall ("") status.
const GRPCHealthService = "scribe.gateway"

// GRPCHealthServer exposes the standard grpc.health.v1 service so
// orchestrators can probe the gateway without HTTP.
type GRPCHealthServer struct {
	server *grpc.Server
	health *health.Server
	logger zerolog.Logger

	checks   []DependencyCheck
	interval time.Duration

	stopOnce sync.Once
	stop     chan struct{}
}

// NewGRPCHealthServer creates a health server. The named service starts
// NOT_SERVING until the first Refresh; while serving, readiness is re-evaluated
// every interval (zero disables polling).
func NewGRPCHealthServer(logger zerolog.Logger, interval time.Duration, checks ...DependencyCheck) *GRPCHealthServer {
	hs := health.NewServer()
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(GRPCHealthService, healthpb.HealthCheckResponse_NOT_SERVING)

	return &GRPCHealthServer{
		server:   srv,
		health:   hs,
		logger:   logger.With().Str("component", "grpc_health").Logger(),
		checks:   checks,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

// Serve blocks serving on lis until Shutdown is called.
func (g *GRPCHealthServer) Serve(lis net.Listener) error {
	if g.interval > 0 {
		go g.poll()
	}

	g.logger.Info().Str("addr", lis.Addr().String()).Msg("gRPC health server listening")
	if err := g.server.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// Refresh runs the dependency checks once and publishes the result.
func (g *GRPCHealthServer) Refresh(ctx context.Context) {
	_, ok := RunChecks(ctx, g.checks)
	status := healthpb.HealthCheckResponse_SERVING
	if !ok {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	g.health.SetServingStatus(GRPCHealthService, status)
}

func (g *GRPCHealthServer) poll() {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()
	for {
		select {
		case <-g.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			g.Refresh(ctx)
			cancel()
		}
	}
}

// Shutdown flips every service to NOT_SERVING and stops the server.
func (g *GRPCHealthServer) Shutdown() {
	g.stopOnce.Do(func() {
		g.health.Shutdown()
		close(g.stop)
		g.server.GracefulStop()
		g.logger.Info().Msg("gRPC health server stopped")
	})
}
