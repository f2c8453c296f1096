// ABOUTME: gRPC server exposing the standard grpc.health.v1 service
// ABOUTME: Lets orchestrators probe the relay over gRPC alongside GET /health

package gateway

import (
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/v1"
	"google.golang.org/grpc/keepalive"
)

// relayServiceName is the service name reported to health probes besides "".
const relayServiceName = "chat_relay.Relay"

// createGRPCServer creates a gRPC server with the health service registered
// and every service marked SERVING.
func createGRPCServer(logger *slog.Logger) (*grpc.Server, *health.Server) {
	server := grpc.NewServer(
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    15 * time.Second,
			Timeout: 5 * time.Second,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             5 * time.Second,
			PermitWithoutStream: true,
		}),
	)

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(relayServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(server, hs)

	logger.Debug("gRPC health service registered", "service", relayServiceName)
	return server, hs
}
