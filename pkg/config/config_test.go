package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "distributord.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadAppliesOverridesOnTopOfDefaults(t *testing.T) {
	path := writeConfig(t, `
node:
  id: node-a
  bind_addr: 10.0.0.1:7000
  data_dir: /var/lib/stratum
cluster:
  redundancy: 3
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "node-a", cfg.Node.ID)
	assert.Equal(t, "10.0.0.1:7000", cfg.Node.BindAddr)
	assert.Equal(t, 3, cfg.Cluster.Redundancy)
	// Untouched sections keep Default()'s values.
	assert.Equal(t, uint8(16), cfg.Cluster.DistributionBits)
	assert.Equal(t, 16, cfg.Merge.MaxActive)
	assert.Equal(t, 10*time.Second, cfg.Distributor.TickInterval)
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadRejectsInvalidUpStates(t *testing.T) {
	path := writeConfig(t, `
node:
  id: node-a
  bind_addr: 10.0.0.1:7000
  data_dir: /var/lib/stratum
cluster:
  up_states: bogus
`)

	_, err := Load(path)
	assert.ErrorContains(t, err, "up_states")
}

func TestValidateRejectsZeroRedundancy(t *testing.T) {
	cfg := Default()
	cfg.Cluster.Redundancy = 0
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsOutOfRangeDistributionBits(t *testing.T) {
	cfg := Default()
	cfg.Cluster.DistributionBits = 0
	assert.Error(t, cfg.Validate())

	cfg.Cluster.DistributionBits = 65
	assert.Error(t, cfg.Validate())
}

func TestToCheckersConfigRoundTripsFields(t *testing.T) {
	cfg := Default()
	cfg.Checkers.SplitDocThreshold = 42

	cc := cfg.Checkers.ToCheckersConfig()
	assert.Equal(t, uint32(42), cc.SplitDocThreshold)
	assert.Equal(t, cfg.Checkers.GCInterval, cc.GCInterval)
}

func TestUpStatesParsesDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "ui", string(cfg.UpStates()))
}
