package clusterctl

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/hashicorp/raft"

	"github.com/cuemby/stratum/pkg/clusterstate"
	"github.com/cuemby/stratum/pkg/topology"
)

// Command is a cluster-state/distribution change operation carried in
// the Raft log, adapted from the teacher's manager.Command
// (pkg/manager/fsm.go) to this module's two replicated values.
type Command struct {
	Op   string          `json:"op"`
	Data json.RawMessage `json:"data"`
}

const (
	opSetBaseline     = "set_baseline"
	opSetSpace        = "set_space"
	opSetDistribution = "set_distribution"
)

type baselinePayload struct {
	Serialized string `json:"serialized"`
}

type spacePayload struct {
	Space      string `json:"space"`
	Serialized string `json:"serialized"`
}

type distributionPayload struct {
	Raw string `json:"raw"`
}

// FSM is the Raft finite-state machine replicating the ClusterStateBundle
// and Distribution every distributor node reads from (spec.md §4.4,
// §5). Grounded on pkg/manager/fsm.go's WarrenFSM: same
// mutex-guarded-apply/JSON-snapshot shape, generalized from
// node/service/task commands to cluster-state/distribution commands.
type FSM struct {
	mu           sync.RWMutex
	bundle       clusterstate.Bundle
	distribution topology.Distribution
}

// NewFSM builds an FSM seeded with a baseline cluster state.
func NewFSM(baseline clusterstate.ClusterState) *FSM {
	return &FSM{bundle: clusterstate.NewBundle(baseline)}
}

// Bundle returns the current published bundle. Safe for concurrent use
// with Apply.
func (f *FSM) Bundle() clusterstate.Bundle {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.bundle
}

// Distribution returns the current published distribution.
func (f *FSM) Distribution() topology.Distribution {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.distribution
}

// Apply applies a committed Raft log entry to the FSM.
func (f *FSM) Apply(log *raft.Log) interface{} {
	var cmd Command
	if err := json.Unmarshal(log.Data, &cmd); err != nil {
		return fmt.Errorf("clusterctl: unmarshal command: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch cmd.Op {
	case opSetBaseline:
		var p baselinePayload
		if err := json.Unmarshal(cmd.Data, &p); err != nil {
			return err
		}
		cs, err := clusterstate.Parse(p.Serialized)
		if err != nil {
			return fmt.Errorf("clusterctl: parse baseline: %w", err)
		}
		f.bundle = clusterstate.NewBundle(cs)
		return nil

	case opSetSpace:
		var p spacePayload
		if err := json.Unmarshal(cmd.Data, &p); err != nil {
			return err
		}
		cs, err := clusterstate.Parse(p.Serialized)
		if err != nil {
			return fmt.Errorf("clusterctl: parse space state: %w", err)
		}
		f.bundle = f.bundle.WithSpace(p.Space, cs)
		return nil

	case opSetDistribution:
		var p distributionPayload
		if err := json.Unmarshal(cmd.Data, &p); err != nil {
			return err
		}
		d, err := topology.ParseDistribution(p.Raw)
		if err != nil {
			return fmt.Errorf("clusterctl: parse distribution: %w", err)
		}
		f.distribution = d
		return nil

	default:
		return fmt.Errorf("clusterctl: unknown command: %s", cmd.Op)
	}
}

// Snapshot captures the current bundle and distribution as a
// point-in-time Raft snapshot.
func (f *FSM) Snapshot() (raft.FSMSnapshot, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	snap := &fsmSnapshot{
		Baseline:     f.bundle.Baseline().Serialize(),
		Spaces:       serializeSpaces(f.bundle),
		Distribution: f.distribution.String(),
	}
	return snap, nil
}

// Restore replaces the FSM's state from a previously persisted snapshot.
func (f *FSM) Restore(rc io.ReadCloser) error {
	defer rc.Close()

	var snap fsmSnapshot
	if err := json.NewDecoder(rc).Decode(&snap); err != nil {
		return fmt.Errorf("clusterctl: decode snapshot: %w", err)
	}

	baseline, err := clusterstate.Parse(snap.Baseline)
	if err != nil {
		return fmt.Errorf("clusterctl: restore baseline: %w", err)
	}

	bundle := clusterstate.NewBundle(baseline)
	for space, serialized := range snap.Spaces {
		cs, err := clusterstate.Parse(serialized)
		if err != nil {
			return fmt.Errorf("clusterctl: restore space %q: %w", space, err)
		}
		bundle = bundle.WithSpace(space, cs)
	}

	var distribution topology.Distribution
	if snap.Distribution != "" {
		distribution, err = topology.ParseDistribution(snap.Distribution)
		if err != nil {
			return fmt.Errorf("clusterctl: restore distribution: %w", err)
		}
	}

	f.mu.Lock()
	f.bundle = bundle
	f.distribution = distribution
	f.mu.Unlock()
	return nil
}

// fsmSnapshot is the JSON-encoded wire shape persisted by Persist and
// read back by Restore; it reuses the wire-format Serialize/String
// methods of clusterstate/topology rather than inventing a second
// encoding.
type fsmSnapshot struct {
	Baseline     string            `json:"baseline"`
	Spaces       map[string]string `json:"spaces"`
	Distribution string            `json:"distribution"`
}

func serializeSpaces(b clusterstate.Bundle) map[string]string {
	spaces := map[string]string{"default": "", "global": ""}
	out := make(map[string]string, len(spaces))
	for space := range spaces {
		cs := b.ForSpace(space)
		if cs.Equal(b.Baseline()) {
			continue
		}
		out[space] = cs.Serialize()
	}
	return out
}

// Persist writes the snapshot to the given SnapshotSink.
func (s *fsmSnapshot) Persist(sink raft.SnapshotSink) error {
	err := func() error {
		if err := json.NewEncoder(sink).Encode(s); err != nil {
			return err
		}
		return sink.Close()
	}()
	if err != nil {
		sink.Cancel()
	}
	return err
}

// Release releases the snapshot's resources. Nothing to release here:
// the snapshot is a plain in-memory value.
func (s *fsmSnapshot) Release() {}
