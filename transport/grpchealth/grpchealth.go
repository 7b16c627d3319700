// Package grpchealth exposes a sync server's liveness and readiness over
// the standard gRPC health checking protocol, so ordinary infrastructure
// probes (kubelet, load balancers, grpcurl) can watch an aper host
// without speaking the sync wire format.
package grpchealth

import (
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service identifier the sync server registers
// under, alongside the empty-string server-wide default.
const ServiceName = "aper.v1.Sync"

// Server is a standalone gRPC server carrying only the health service.
type Server struct {
	grpc   *grpc.Server
	health *health.Server
}

// New constructs a health server reporting NOT_SERVING until the host
// calls SetServing(true) - typically right after the duplex listener is
// up and, when persistence is enabled, the snapshot has been reloaded.
func New() *Server {
	g := grpc.NewServer()
	h := health.NewServer()
	healthpb.RegisterHealthServer(g, h)
	h.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	h.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return &Server{grpc: g, health: h}
}

// SetServing flips both the server-wide and sync-service statuses.
func (s *Server) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

// Serve blocks serving health checks on ln.
func (s *Server) Serve(ln net.Listener) error {
	return s.grpc.Serve(ln)
}

// Stop marks every service NOT_SERVING (failing in-flight Watch streams
// over to the new status) and stops the gRPC server.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
