package clusterctl

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"
	"github.com/rs/zerolog"

	"github.com/cuemby/stratum/pkg/clusterstate"
	"github.com/cuemby/stratum/pkg/log"
	"github.com/cuemby/stratum/pkg/metrics"
	"github.com/cuemby/stratum/pkg/topology"
	"github.com/cuemby/stratum/pkg/types"
)

// Config holds the configuration for creating a Controller, adapted
// from the teacher's manager.Config (pkg/manager/manager.go).
type Config struct {
	NodeID   string
	BindAddr string
	DataDir  string
}

// Controller is a Raft-replicated publisher of ClusterState/Distribution
// snapshots, generalized from the teacher's Manager (pkg/manager/manager.go)
// down to Raft membership plus the single replicated concern this module
// needs: orchestration, CA, DNS, and ingress are all out of spec.md's
// scope and were not carried over (see DESIGN.md).
type Controller struct {
	nodeID   string
	bindAddr string
	dataDir  string

	raft *raft.Raft
	fsm  *FSM

	logger zerolog.Logger
}

// NewController builds a Controller seeded with a baseline cluster
// state. Bootstrap or Join must be called before it participates in a
// Raft cluster.
func NewController(cfg Config, baseline clusterstate.ClusterState) (*Controller, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("clusterctl: create data directory: %w", err)
	}
	return &Controller{
		nodeID:   cfg.NodeID,
		bindAddr: cfg.BindAddr,
		dataDir:  cfg.DataDir,
		fsm:      NewFSM(baseline),
		logger:   log.WithComponent("clusterctl"),
	}, nil
}

// raftConfig tunes Raft for LAN/edge failover, not Raft's WAN-oriented
// defaults (grounded on manager.Bootstrap's timeout tuning).
func (c *Controller) raftConfig() *raft.Config {
	cfg := raft.DefaultConfig()
	cfg.LocalID = raft.ServerID(c.nodeID)
	cfg.HeartbeatTimeout = 500 * time.Millisecond
	cfg.ElectionTimeout = 500 * time.Millisecond
	cfg.CommitTimeout = 50 * time.Millisecond
	cfg.LeaderLeaseTimeout = 250 * time.Millisecond
	return cfg
}

func (c *Controller) newRaft(cfg *raft.Config) (*raft.Raft, *raft.NetworkTransport, error) {
	addr, err := net.ResolveTCPAddr("tcp", c.bindAddr)
	if err != nil {
		return nil, nil, fmt.Errorf("clusterctl: resolve bind address: %w", err)
	}
	transport, err := raft.NewTCPTransport(c.bindAddr, addr, 3, 10*time.Second, os.Stderr)
	if err != nil {
		return nil, nil, fmt.Errorf("clusterctl: create transport: %w", err)
	}
	snapshotStore, err := raft.NewFileSnapshotStore(c.dataDir, 2, os.Stderr)
	if err != nil {
		return nil, nil, fmt.Errorf("clusterctl: create snapshot store: %w", err)
	}
	logStore, err := raftboltdb.NewBoltStore(filepath.Join(c.dataDir, "raft-log.db"))
	if err != nil {
		return nil, nil, fmt.Errorf("clusterctl: create log store: %w", err)
	}
	stableStore, err := raftboltdb.NewBoltStore(filepath.Join(c.dataDir, "raft-stable.db"))
	if err != nil {
		return nil, nil, fmt.Errorf("clusterctl: create stable store: %w", err)
	}
	r, err := raft.NewRaft(cfg, c.fsm, logStore, stableStore, snapshotStore, transport)
	if err != nil {
		return nil, nil, fmt.Errorf("clusterctl: create raft: %w", err)
	}
	return r, transport, nil
}

// Bootstrap initializes a new single-node Raft cluster.
func (c *Controller) Bootstrap() error {
	cfg := c.raftConfig()
	r, transport, err := c.newRaft(cfg)
	if err != nil {
		return err
	}
	c.raft = r

	future := r.BootstrapCluster(raft.Configuration{
		Servers: []raft.Server{{ID: cfg.LocalID, Address: transport.LocalAddr()}},
	})
	if err := future.Error(); err != nil {
		return fmt.Errorf("clusterctl: bootstrap cluster: %w", err)
	}
	return nil
}

// Join starts Raft for a node expected to be added to an existing
// cluster via the leader's AddVoter; it does not contact the leader
// itself, and this module has no RPC for asking to join.
func (c *Controller) Join() error {
	cfg := c.raftConfig()
	r, _, err := c.newRaft(cfg)
	if err != nil {
		return err
	}
	c.raft = r
	return nil
}

// AddVoter adds a new node to the Raft cluster; must be called on the
// current leader.
func (c *Controller) AddVoter(nodeID, address string) error {
	if c.raft == nil {
		return fmt.Errorf("clusterctl: raft not initialized")
	}
	future := c.raft.AddVoter(raft.ServerID(nodeID), raft.ServerAddress(address), 0, 10*time.Second)
	return future.Error()
}

// RemoveServer removes a node from the Raft cluster.
func (c *Controller) RemoveServer(nodeID string) error {
	if c.raft == nil {
		return fmt.Errorf("clusterctl: raft not initialized")
	}
	future := c.raft.RemoveServer(raft.ServerID(nodeID), 0, 10*time.Second)
	return future.Error()
}

// IsLeader reports whether this node currently holds Raft leadership.
func (c *Controller) IsLeader() bool {
	return c.raft != nil && c.raft.State() == raft.Leader
}

// LeaderAddr returns the current Raft leader's address, empty if unknown.
func (c *Controller) LeaderAddr() string {
	if c.raft == nil {
		return ""
	}
	addr, _ := c.raft.LeaderWithID()
	return string(addr)
}

// apply marshals and submits cmd through Raft, only valid on the leader.
func (c *Controller) apply(cmd Command) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.RaftCommitDuration)

	if c.raft == nil {
		return fmt.Errorf("clusterctl: raft not initialized")
	}
	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("clusterctl: marshal command: %w", err)
	}
	future := c.raft.Apply(data, 5*time.Second)
	if err := future.Error(); err != nil {
		return fmt.Errorf("clusterctl: apply command: %w", err)
	}
	if resp := future.Response(); resp != nil {
		if err, ok := resp.(error); ok && err != nil {
			return err
		}
	}
	return nil
}

// SetBaseline replicates a new default-space cluster state as the
// bundle's baseline.
func (c *Controller) SetBaseline(cs clusterstate.ClusterState) error {
	data, err := json.Marshal(baselinePayload{Serialized: cs.Serialize()})
	if err != nil {
		return err
	}
	return c.apply(Command{Op: opSetBaseline, Data: data})
}

// SetSpace replicates a per-bucket-space cluster-state override
// (spec.md §4.4).
func (c *Controller) SetSpace(space string, cs clusterstate.ClusterState) error {
	data, err := json.Marshal(spacePayload{Space: space, Serialized: cs.Serialize()})
	if err != nil {
		return err
	}
	return c.apply(Command{Op: opSetSpace, Data: data})
}

// SetDistribution replicates a new topology configuration.
func (c *Controller) SetDistribution(d topology.Distribution) error {
	data, err := json.Marshal(distributionPayload{Raw: d.String()})
	if err != nil {
		return err
	}
	return c.apply(Command{Op: opSetDistribution, Data: data})
}

// Bundle returns the locally replicated ClusterStateBundle, satisfying
// distributor.StateProvider.
func (c *Controller) Bundle() clusterstate.Bundle { return c.fsm.Bundle() }

// Distribution returns the locally replicated Distribution, satisfying
// distributor.StateProvider.
func (c *Controller) Distribution() topology.Distribution { return c.fsm.Distribution() }

// NodeID returns this controller's Raft server ID.
func (c *Controller) NodeID() string { return c.nodeID }

// Version returns the replicated baseline ClusterState's version,
// satisfying metrics.ClusterStateSource for pkg/metrics.Collector.
func (c *Controller) Version() uint32 { return c.fsm.Bundle().Version() }

// ForEachNode iterates every distributor and storage node the
// replicated baseline ClusterState tracks, satisfying
// metrics.ClusterStateSource.
func (c *Controller) ForEachNode(fn func(nodeType string, index uint16, state string)) {
	baseline := c.fsm.Bundle().Baseline()
	for _, nt := range [2]types.NodeType{types.NodeTypeDistributor, types.NodeTypeStorage} {
		baseline.ForEachNode(nt, func(n types.Node, ns types.NodeState) {
			fn(nt.String(), n.Index, ns.State.String())
		})
	}
}

// Stats reports Raft's log position and current peer count, satisfying
// metrics.RaftSource.
func (c *Controller) Stats() (lastLogIndex, appliedIndex uint64, peers int) {
	if c.raft == nil {
		return 0, 0, 0
	}
	lastLogIndex = c.raft.LastIndex()
	appliedIndex = c.raft.AppliedIndex()
	if future := c.raft.GetConfiguration(); future.Error() == nil {
		peers = len(future.Configuration().Servers)
	}
	return lastLogIndex, appliedIndex, peers
}

// Shutdown gracefully stops the Raft node.
func (c *Controller) Shutdown() error {
	if c.raft == nil {
		return nil
	}
	future := c.raft.Shutdown()
	if err := future.Error(); err != nil {
		return fmt.Errorf("clusterctl: shutdown raft: %w", err)
	}
	c.logger.Info().Msg("raft node shut down")
	return nil
}
