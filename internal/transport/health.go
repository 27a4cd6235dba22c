package transport

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the gRPC health service name reported by the server.
const ServiceName = "smartinvoice.v1.VerificationService"

// RegisterHealth registers a health service on server that reports SERVING
// for both the overall server and ServiceName. Call Shutdown on the returned
// server before stopping so probes flip to NOT_SERVING.
func RegisterHealth(server grpc.ServiceRegistrar) *health.Server {
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(server, hs)
	return hs
}
