package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDefault verifies the reference configuration.
func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 4, cfg.Cluster.NodeCount)
	assert.Equal(t, 2, cfg.Cluster.ReplicationFactor)
	assert.Equal(t, "Replication Data", cfg.Cluster.Payload)
	assert.Equal(t, 0.05, cfg.Node.SilenceProbability)
	assert.Equal(t, 2*time.Second, cfg.Node.SilencePause)
	assert.Equal(t, time.Second, cfg.Node.IntervalMin)
	assert.Equal(t, 2*time.Second, cfg.Node.IntervalMax)
	assert.Equal(t, time.Second, cfg.Coordinator.PollTimeout)
	assert.Equal(t, 5*time.Second, cfg.Coordinator.Cooldown)
	assert.Equal(t, 20*time.Second, cfg.Coordinator.RunBudget)
	assert.Equal(t, 10*time.Second, cfg.Coordinator.LatencyCeiling)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Metrics.Enabled)
	assert.True(t, cfg.Logging.Dashboard)

	assert.NoError(t, cfg.Validate())
	assert.Equal(t, []string{"Node-1", "Node-2", "Node-3", "Node-4"}, cfg.NodeIDs())
}

// TestValidateReplicationFactor verifies the factor must fit the node set.
func TestValidateReplicationFactor(t *testing.T) {
	cfg := Default()
	cfg.Cluster.ReplicationFactor = 5
	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "exceeds cluster.node_count")

	cfg.Cluster.ReplicationFactor = 0
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
}

// TestValidateCollectsAllErrors verifies every violation is reported at once.
func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Cluster.NodeCount = 0
	cfg.Node.SilenceProbability = 2
	cfg.Coordinator.PollTimeout = 0
	cfg.Logging.Level = "loud"

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "cluster.node_count")
	assert.Contains(t, msg, "node.silence_probability")
	assert.Contains(t, msg, "coordinator.poll_timeout")
	assert.Contains(t, msg, "logging.level")
}

// TestValidateNormalizes verifies level and format are case-insensitive.
func TestValidateNormalizes(t *testing.T) {
	cfg := Default()
	cfg.Logging.Level = " DEBUG "
	cfg.Logging.Format = "JSON"

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

// TestLoadFile verifies a YAML file overrides the defaults it names.
func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "haf.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
cluster:
  node_count: 6
  replication_factor: 3
node:
  seed: 99
  interval_min: 100ms
  interval_max: 250ms
coordinator:
  run_budget: 1m
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 6, cfg.Cluster.NodeCount)
	assert.Equal(t, 3, cfg.Cluster.ReplicationFactor)
	assert.Equal(t, int64(99), cfg.Node.Seed)
	assert.Equal(t, 100*time.Millisecond, cfg.Node.IntervalMin)
	assert.Equal(t, 250*time.Millisecond, cfg.Node.IntervalMax)
	assert.Equal(t, time.Minute, cfg.Coordinator.RunBudget)
	assert.Equal(t, 5*time.Second, cfg.Coordinator.Cooldown)
	assert.Equal(t, "Node-", cfg.Cluster.NodePrefix)
}

// TestLoadEnv verifies HAF_ environment variables override the file.
func TestLoadEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "haf.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cluster:\n  node_count: 6\n"), 0o644))
	t.Setenv("HAF_CLUSTER_NODE_COUNT", "8")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Cluster.NodeCount)
}

// TestLoadErrors verifies a missing explicit file and an invalid file fail.
func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "haf.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cluster:\n  replication_factor: 9\n"), 0o644))
	_, err = Load(path)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
