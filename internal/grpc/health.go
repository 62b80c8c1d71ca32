package grpc

import (
	"context"
	log "log/slog"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"discord-chat/internal/observability"
)

// ServiceName is reported through the health service alongside the
// overall "" status.
const ServiceName = "discord.chat.v1.Messages"

// Pinger reports whether a dependency is reachable. *sqlx.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// NewServer builds the internal gRPC server exposing the health service.
func NewServer() (*gogrpc.Server, *health.Server) {
	srv := gogrpc.NewServer(
		gogrpc.StatsHandler(otelgrpc.NewServerHandler()),
		gogrpc.ChainUnaryInterceptor(
			observability.GRPCServerMetricsUnaryInterceptor(),
			loggingInterceptor,
		),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	return srv, hs
}

// WatchHealth flips the health status with the result of pinging deps every
// interval until ctx is done.
func WatchHealth(ctx context.Context, hs *health.Server, interval time.Duration, deps ...Pinger) {
	check := func() {
		status := healthpb.HealthCheckResponse_SERVING
		for _, dep := range deps {
			pingCtx, cancel := context.WithTimeout(ctx, interval/2)
			err := dep.PingContext(pingCtx)
			cancel()
			if err != nil {
				log.WarnContext(ctx, "health check failed", "err", err)
				status = healthpb.HealthCheckResponse_NOT_SERVING
				break
			}
		}
		hs.SetServingStatus("", status)
		hs.SetServingStatus(ServiceName, status)
	}

	check()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			hs.Shutdown()
			return
		case <-ticker.C:
			check()
		}
	}
}

func loggingInterceptor(ctx context.Context, req interface{}, info *gogrpc.UnaryServerInfo, handler gogrpc.UnaryHandler) (interface{}, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	if err != nil {
		log.WarnContext(ctx, "grpc call failed", "method", info.FullMethod, "duration", time.Since(start), "err", err)
	} else {
		log.DebugContext(ctx, "grpc call", "method", info.FullMethod, "duration", time.Since(start))
	}
	return resp, err
}
