package clusterctl

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/stratum/pkg/clusterstate"
	"github.com/cuemby/stratum/pkg/topology"
)

// waitForLeader polls IsLeader for up to 5 seconds, matching the
// scheduler package's Raft-election test pattern.
func waitForLeader(t *testing.T, c *Controller) {
	t.Helper()
	for i := 0; i < 50; i++ {
		if c.IsLeader() {
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatal("controller failed to become leader")
}

func newBootstrappedController(t *testing.T) *Controller {
	t.Helper()
	c, err := NewController(Config{
		NodeID:   "test-node",
		BindAddr: "127.0.0.1:0",
		DataDir:  t.TempDir(),
	}, clusterstate.New(16))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Shutdown() })

	require.NoError(t, c.Bootstrap())
	waitForLeader(t, c)
	return c
}

func TestControllerReplicatesBaseline(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping Raft integration test in short mode")
	}
	c := newBootstrappedController(t)

	cs, err := c.Bundle().Baseline().WithDistributionBits(20)
	require.NoError(t, err)

	require.NoError(t, c.SetBaseline(cs))
	assert.Equal(t, uint8(20), c.Bundle().Baseline().DistributionBits())
}

func TestControllerReplicatesSpaceOverride(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping Raft integration test in short mode")
	}
	c := newBootstrappedController(t)

	global, err := clusterstate.New(16).WithDistributionBits(24)
	require.NoError(t, err)

	require.NoError(t, c.SetSpace("global", global))

	assert.Equal(t, uint8(24), c.Bundle().ForSpace("global").DistributionBits())
	assert.Equal(t, uint8(16), c.Bundle().ForSpace("default").DistributionBits())
}

func TestControllerReplicatesDistribution(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping Raft integration test in short mode")
	}
	c := newBootstrappedController(t)

	leaf := topology.NewLeafGroup(0, "g0", 1.0, []uint16{0, 1, 2})
	d := topology.NewDistribution(2, 2, 2, false, false, false, leaf)

	require.NoError(t, c.SetDistribution(d))
	assert.True(t, d.Equal(c.Distribution()))
}
