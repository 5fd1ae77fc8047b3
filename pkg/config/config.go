// Package config loads a distributord node's settings from a YAML file,
// generalizing the teacher's flag-driven cmd/warren setup (node ID, bind
// address, data directory passed straight into manager.Config) into a
// single declarative file a deployed node reads at startup.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cuemby/stratum/pkg/checkers"
	"github.com/cuemby/stratum/pkg/log"
	"github.com/cuemby/stratum/pkg/types"
)

// Node identifies this process within the cluster: its Raft node ID,
// the address it advertises for Raft traffic, and its storage-node
// index used for ideal-node placement and merge routing.
type Node struct {
	ID         string `yaml:"id"`
	BindAddr   string `yaml:"bind_addr"`
	DataDir    string `yaml:"data_dir"`
	NodeIndex  uint16 `yaml:"node_index"`
	HealthAddr string `yaml:"health_addr"`
}

// Cluster carries the distribution-wide parameters a freshly
// bootstrapped node needs before it ever sees a replicated
// ClusterState: the initial distribution-bit count and redundancy.
type Cluster struct {
	DistributionBits uint8  `yaml:"distribution_bits"`
	Redundancy       int    `yaml:"redundancy"`
	UpStates         string `yaml:"up_states"`
}

// Checkers mirrors checkers.Config field-for-field so it can be loaded
// straight from YAML and converted with ToCheckersConfig.
type Checkers struct {
	MinimalSplitBits uint8 `yaml:"minimal_split_bits"`

	SplitByteThreshold      uint64 `yaml:"split_byte_threshold"`
	SplitDocThreshold       uint32 `yaml:"split_doc_threshold"`
	SplitMetaCountThreshold uint32 `yaml:"split_meta_count_threshold"`
	SplitFileSizeThreshold  uint64 `yaml:"split_file_size_threshold"`

	JoinByteSize           uint64 `yaml:"join_byte_size"`
	JoinCount              uint32 `yaml:"join_count"`
	EnableInconsistentJoin bool   `yaml:"enable_inconsistent_join"`
	EnableSingleBucketJoin bool   `yaml:"enable_single_bucket_join"`

	MergesDisabled     bool `yaml:"merges_disabled"`
	ActivationDisabled bool `yaml:"activation_disabled"`

	MaxActivationInhibitedOutOfSyncGroups int `yaml:"max_activation_inhibited_out_of_sync_groups"`

	GCInterval time.Duration `yaml:"gc_interval"`
}

// ToCheckersConfig converts the loaded YAML section into a
// checkers.Config ready to be carried in checkers.Context.Config.
func (c Checkers) ToCheckersConfig() checkers.Config {
	return checkers.Config{
		MinimalSplitBits:                      c.MinimalSplitBits,
		SplitByteThreshold:                    c.SplitByteThreshold,
		SplitDocThreshold:                     c.SplitDocThreshold,
		SplitMetaCountThreshold:               c.SplitMetaCountThreshold,
		SplitFileSizeThreshold:                c.SplitFileSizeThreshold,
		JoinByteSize:                          c.JoinByteSize,
		JoinCount:                             c.JoinCount,
		EnableInconsistentJoin:                c.EnableInconsistentJoin,
		EnableSingleBucketJoin:                c.EnableSingleBucketJoin,
		MergesDisabled:                        c.MergesDisabled,
		ActivationDisabled:                    c.ActivationDisabled,
		MaxActivationInhibitedOutOfSyncGroups: c.MaxActivationInhibitedOutOfSyncGroups,
		GCInterval:                            c.GCInterval,
	}
}

// Merge carries the MergeThrottler's capacity limits (spec.md §4.2).
type Merge struct {
	MaxActive   int `yaml:"max_active"`
	MaxQueueLen int `yaml:"max_queue_len"`
}

// Distributor carries the reconciliation loop's own tunables,
// independent of the checker thresholds it invokes per bucket.
type Distributor struct {
	TickInterval time.Duration `yaml:"tick_interval"`
}

// Logging mirrors log.Config for YAML loading.
type Logging struct {
	Level      string `yaml:"level"`
	JSONOutput bool   `yaml:"json_output"`
}

// ToLogConfig converts the loaded YAML section into a log.Config ready
// for log.Init.
func (l Logging) ToLogConfig() log.Config {
	return log.Config{
		Level:      log.Level(l.Level),
		JSONOutput: l.JSONOutput,
	}
}

// Config is the full contents of a distributord node's YAML config
// file.
type Config struct {
	Node        Node        `yaml:"node"`
	Cluster     Cluster     `yaml:"cluster"`
	Checkers    Checkers    `yaml:"checkers"`
	Merge       Merge       `yaml:"merge"`
	Distributor Distributor `yaml:"distributor"`
	Logging     Logging     `yaml:"logging"`
}

// Default returns the configuration a single-node cluster boots with
// when no file is supplied. pkg/checkers and pkg/merge define no
// defaults of their own for these values; they are set here.
func Default() Config {
	return Config{
		Node: Node{
			ID:         "node-1",
			BindAddr:   "127.0.0.1:7000",
			DataDir:    "./data",
			NodeIndex:  0,
			HealthAddr: "127.0.0.1:7001",
		},
		Cluster: Cluster{
			DistributionBits: 16,
			Redundancy:       2,
			UpStates:         string(types.UpStatesUpInit),
		},
		Checkers: Checkers{
			MinimalSplitBits:        8,
			SplitByteThreshold:      32 << 20,
			SplitDocThreshold:       1 << 20,
			SplitMetaCountThreshold: 1 << 20,
			SplitFileSizeThreshold:  128 << 20,
			JoinByteSize:            16 << 20,
			JoinCount:               1 << 19,
			GCInterval:              time.Hour,
		},
		Merge: Merge{
			MaxActive:   16,
			MaxQueueLen: 1000,
		},
		Distributor: Distributor{
			TickInterval: 10 * time.Second,
		},
		Logging: Logging{
			Level: "info",
		},
	}
}

// Load reads and parses a YAML config file at path. Fields absent from
// the file keep Default's values, since unmarshaling happens on top of
// a Default() value rather than a zero Config.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first structurally invalid field found.
func (c Config) Validate() error {
	if c.Node.ID == "" {
		return fmt.Errorf("config: node.id is required")
	}
	if c.Node.BindAddr == "" {
		return fmt.Errorf("config: node.bind_addr is required")
	}
	if c.Node.DataDir == "" {
		return fmt.Errorf("config: node.data_dir is required")
	}
	if c.Cluster.DistributionBits < 1 || c.Cluster.DistributionBits > 64 {
		return fmt.Errorf("config: cluster.distribution_bits must be in [1,64], got %d", c.Cluster.DistributionBits)
	}
	if c.Cluster.Redundancy < 1 {
		return fmt.Errorf("config: cluster.redundancy must be >= 1, got %d", c.Cluster.Redundancy)
	}
	if _, err := parseUseCase(c.Cluster.UpStates); err != nil {
		return err
	}
	if c.Merge.MaxActive < 1 {
		return fmt.Errorf("config: merge.max_active must be >= 1, got %d", c.Merge.MaxActive)
	}
	if c.Merge.MaxQueueLen < 0 {
		return fmt.Errorf("config: merge.max_queue_len must be >= 0, got %d", c.Merge.MaxQueueLen)
	}
	if c.Distributor.TickInterval <= 0 {
		return fmt.Errorf("config: distributor.tick_interval must be > 0, got %s", c.Distributor.TickInterval)
	}
	return nil
}

// UpStates parses Cluster.UpStates into a types.UseCase, assuming
// Validate has already been called.
func (c Config) UpStates() types.UseCase {
	uc, _ := parseUseCase(c.Cluster.UpStates)
	return uc
}

func parseUseCase(s string) (types.UseCase, error) {
	switch types.UseCase(s) {
	case types.UpStatesUp, types.UpStatesUpInit, types.UpStatesUpInitMaintenance:
		return types.UseCase(s), nil
	default:
		return "", fmt.Errorf("config: cluster.up_states %q is not one of %q, %q, %q", s,
			types.UpStatesUp, types.UpStatesUpInit, types.UpStatesUpInitMaintenance)
	}
}
