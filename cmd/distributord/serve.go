package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/cuemby/stratum/pkg/bucket"
	"github.com/cuemby/stratum/pkg/checkers"
	"github.com/cuemby/stratum/pkg/clusterctl"
	"github.com/cuemby/stratum/pkg/clusterstate"
	"github.com/cuemby/stratum/pkg/config"
	"github.com/cuemby/stratum/pkg/distributor"
	"github.com/cuemby/stratum/pkg/log"
	"github.com/cuemby/stratum/pkg/merge"
	"github.com/cuemby/stratum/pkg/metrics"
	"github.com/cuemby/stratum/pkg/transport"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the distributor's reconciliation loop, Raft controller, and health service",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "Prometheus /metrics listen address")
}

func runServe(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("distributord: %w", err)
	}

	logger := log.WithComponent("distributord")

	controller, err := clusterctl.NewController(clusterctl.Config{
		NodeID:   cfg.Node.ID,
		BindAddr: cfg.Node.BindAddr,
		DataDir:  cfg.Node.DataDir,
	}, clusterstate.New(cfg.Cluster.DistributionBits))
	if err != nil {
		return fmt.Errorf("distributord: create controller: %w", err)
	}

	if err := controller.Bootstrap(); err != nil {
		return fmt.Errorf("distributord: bootstrap raft: %w", err)
	}
	logger.Info().Str("node_id", cfg.Node.ID).Msg("raft controller bootstrapped")

	db := bucket.NewMemDB()

	throttler := merge.New(cfg.Node.NodeIndex, cfg.Merge.MaxActive, cfg.Merge.MaxQueueLen,
		loggingForwarder{logger: logger}, loggingPersistence{logger: logger})

	dist := distributor.New(cfg.Node.NodeIndex, db, controller, throttler, loggingExecutor{logger: logger},
		cfg.Checkers.ToCheckersConfig(), cfg.Cluster.Redundancy,
		distributor.WithTickInterval(cfg.Distributor.TickInterval))
	dist.Start()
	defer dist.Stop()
	logger.Info().Dur("tick_interval", cfg.Distributor.TickInterval).Msg("distributor reconciliation loop started")

	collector := metrics.NewCollector(controller, db, throttler, controller)
	collector.Start()
	defer collector.Stop()

	health := transport.NewHealthServer(controller)
	healthErrCh := make(chan error, 1)
	go func() {
		if err := health.Start(cfg.Node.HealthAddr); err != nil {
			healthErrCh <- err
		}
	}()
	defer health.Stop()
	logger.Info().Str("addr", cfg.Node.HealthAddr).Msg("health service listening")

	go func() {
		http.Handle("/metrics", metrics.Handler())
		if err := http.ListenAndServe(metricsAddr, nil); err != nil {
			logger.Error().Err(err).Msg("metrics server error")
		}
	}()
	logger.Info().Str("addr", metricsAddr).Msg("metrics endpoint listening")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info().Msg("shutting down")
	case err := <-healthErrCh:
		logger.Error().Err(err).Msg("health server error")
	}

	if err := controller.Shutdown(); err != nil {
		return fmt.Errorf("distributord: shutdown raft: %w", err)
	}
	return nil
}

// loggingExecutor, loggingForwarder, and loggingPersistence are
// standalone-mode stand-ins for the storage-engine and transport
// collaborators spec.md §1 places out of this repo's scope: they make
// `distributord serve` runnable end to end without a real storage
// backend or network codec wired in, logging what would otherwise be
// dispatched over the wire.
type loggingExecutor struct {
	logger zerolog.Logger
}

func (e loggingExecutor) Execute(op checkers.Operation) {
	e.logger.Info().Str("op", string(op.Type)).Str("bucket", op.BucketID.String()).
		Msg("operation scheduled (no storage engine wired)")
}

type loggingForwarder struct {
	logger zerolog.Logger
}

func (f loggingForwarder) Forward(nodeIndex uint16, cmd merge.Command, onReply func(merge.Reply)) {
	f.logger.Warn().Uint16("node", nodeIndex).Str("bucket", cmd.BucketID.String()).
		Msg("merge forward requested but no transport is wired; bouncing")
	onReply(merge.Reply{Code: merge.ReplyNotConnected})
}

type loggingPersistence struct {
	logger zerolog.Logger
}

func (p loggingPersistence) Execute(cmd merge.Command, onDone func(merge.Reply)) {
	p.logger.Info().Str("bucket", cmd.BucketID.String()).
		Msg("merge executed (no storage engine wired)")
	onDone(merge.Reply{Code: merge.ReplyOK})
}
