package transport

import (
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/cuemby/stratum/pkg/log"
)

// LeaderChecker reports Raft leadership/followership, satisfied by
// *clusterctl.Controller; kept as an interface here to avoid this
// package depending on clusterctl.
type LeaderChecker interface {
	IsLeader() bool
	LeaderAddr() string
}

// HealthServer is the minimal gRPC-native counterpart of the teacher's
// HTTP HealthServer (pkg/api/health.go): a standard
// grpc.health.v1.Health service plus reflection, reporting overall
// serving status from Raft leadership/followership rather than a
// fixed "healthy". TLS/mTLS and the CA they depended on are out of
// scope here (see DESIGN.md's pkg/clusterctl entry).
type HealthServer struct {
	grpcServer *grpc.Server
	health     *health.Server
	checker    LeaderChecker

	logger zerolog.Logger

	stopCh chan struct{}
}

// ServiceName is the health-check component name this server reports
// status under.
const ServiceName = "stratum.distributor"

// NewHealthServer builds a gRPC server with health and reflection
// services registered.
func NewHealthServer(checker LeaderChecker) *HealthServer {
	grpcServer := grpc.NewServer()
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	reflection.Register(grpcServer)

	return &HealthServer{
		grpcServer: grpcServer,
		health:     healthSrv,
		checker:    checker,
		logger:     log.WithComponent("transport"),
		stopCh:     make(chan struct{}),
	}
}

// Start listens on addr and serves until Stop is called. It also
// begins a background loop reflecting Raft leadership into the health
// service's serving status.
func (h *HealthServer) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("transport: listen: %w", err)
	}

	go h.watchLeadership()

	h.logger.Info().Str("addr", addr).Msg("health server listening")
	return h.grpcServer.Serve(lis)
}

// Stop gracefully stops the gRPC server and the leadership watcher.
func (h *HealthServer) Stop() {
	close(h.stopCh)
	h.grpcServer.GracefulStop()
}

func (h *HealthServer) watchLeadership() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		// A follower with a known leader is serving just fine; only
		// the total absence of a leader (no election has succeeded
		// yet) makes this node not-ready, mirroring the teacher's
		// /ready check. The first status is set right away, then once
		// per tick.
		status := healthpb.HealthCheckResponse_SERVING
		if h.checker != nil && !h.checker.IsLeader() && h.checker.LeaderAddr() == "" {
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
		h.health.SetServingStatus(ServiceName, status)
		select {
		case <-ticker.C:
		case <-h.stopCh:
			return
		}
	}
}
