package simulation

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"haf/config"
	"haf/pkg/cluster"
	"haf/storage"
)

// fastConfig shrinks every timing so a full run takes a fraction of a second.
func fastConfig() *config.Config {
	cfg := config.Default()
	cfg.Node.SilenceProbability = 0
	cfg.Node.IntervalMin = 5 * time.Millisecond
	cfg.Node.IntervalMax = 10 * time.Millisecond
	cfg.Node.SilencePause = 5 * time.Millisecond
	cfg.Node.Seed = 1
	cfg.Coordinator.PollTimeout = 10 * time.Millisecond
	cfg.Coordinator.Cooldown = 10 * time.Millisecond
	cfg.Coordinator.RunBudget = 300 * time.Millisecond
	return cfg
}

// TestNewRejectsInvalidConfig verifies nothing is built from a bad config.
func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := fastConfig()
	cfg.Cluster.ReplicationFactor = cfg.Cluster.NodeCount + 1

	sim, err := New(cfg)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
	assert.Nil(t, sim)

	_, err = New(nil)
	assert.Error(t, err)
}

// TestRunProducesReport verifies a bounded run replicates, stops every
// node and produces a consistent report.
func TestRunProducesReport(t *testing.T) {
	cfg := fastConfig()
	sim, err := New(cfg)
	require.NoError(t, err)
	assert.NotEmpty(t, sim.RunID())
	assert.Equal(t, cfg.NodeIDs(), sim.Directory().IDs())

	start := time.Now()
	report, err := sim.Run(context.Background())
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 3*time.Second)

	for _, n := range sim.Directory().Nodes() {
		assert.False(t, n.Running(), n.ID())
	}

	assert.Equal(t, sim.RunID(), report.RunID)
	assert.Equal(t, cfg.NodeIDs(), report.NodeIDs)
	assert.Greater(t, report.TotalHeartbeats, 0)
	assert.Greater(t, report.AssignmentsDone, 0)

	total := 0
	for _, id := range cfg.NodeIDs() {
		total += report.ReplicationCounts[id]
	}
	assert.Equal(t, report.AssignmentsDone*cfg.Cluster.ReplicationFactor, total)
	require.NotNil(t, report.MeanLatency)
	assert.False(t, report.FinishedAt.Before(report.StartedAt))

	var buf bytes.Buffer
	require.NoError(t, report.Write(&buf))
	assert.Contains(t, buf.String(), "Replication Frequency per Node:")

	assert.Equal(t, float64(report.AssignmentsDone),
		testutil.ToFloat64(sim.collectors.AssignmentsTotal))
}

// TestRunWithFixedScores verifies the best nodes are always the targets and
// that every assignment and the report reach the archive.
func TestRunWithFixedScores(t *testing.T) {
	cfg := fastConfig()
	scores := map[string]float64{"Node-1": 0.9, "Node-2": 0.7, "Node-3": 0.95, "Node-4": 0.4}
	archive := storage.NewMemoryArchive()

	var mu sync.Mutex
	var targets [][]string
	obs := cluster.ObserverFunc(func(s cluster.Snapshot) {
		if s.IsAssignment() {
			mu.Lock()
			targets = append(targets, s.Targets)
			mu.Unlock()
		}
	})

	sim, err := New(cfg,
		WithArchive(archive),
		WithObserver(obs),
		WithBehaviors(func(id string, _ int) cluster.Behavior {
			return cluster.NewFixedBehavior(5*time.Millisecond, scores[id])
		}))
	require.NoError(t, err)

	report, err := sim.Run(context.Background())
	require.NoError(t, err)
	require.Greater(t, report.AssignmentsDone, 0)

	assert.Equal(t, report.AssignmentsDone, report.ReplicationCounts["Node-3"])
	assert.Equal(t, report.AssignmentsDone, report.ReplicationCounts["Node-1"])
	assert.Zero(t, report.ReplicationCounts["Node-2"])
	assert.Zero(t, report.ReplicationCounts["Node-4"])

	mu.Lock()
	require.Len(t, targets, report.AssignmentsDone)
	for _, tg := range targets {
		assert.Equal(t, []string{"Node-3", "Node-1"}, tg)
	}
	mu.Unlock()

	_, ok := sim.Directory().Payload("Node-3")
	assert.True(t, ok)
	_, ok = sim.Directory().Payload("Node-4")
	assert.False(t, ok)

	ctx := context.Background()
	saved, err := archive.GetReport(ctx, sim.RunID())
	require.NoError(t, err)
	assert.Equal(t, report.AssignmentsDone, saved.AssignmentsDone)

	recs, err := archive.Assignments(ctx, sim.RunID())
	require.NoError(t, err)
	require.Len(t, recs, report.AssignmentsDone)
	assert.Equal(t, 1, recs[0].Seq)
	assert.Equal(t, []string{"Node-3", "Node-1"}, recs[0].Targets)
}

// TestRunCancelled verifies cancelling the context ends the run early and
// still returns a report.
func TestRunCancelled(t *testing.T) {
	cfg := fastConfig()
	cfg.Coordinator.RunBudget = time.Hour
	sim, err := New(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	report, err := sim.Run(ctx)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, sim.RunID(), report.RunID)
	for _, n := range sim.Directory().Nodes() {
		assert.False(t, n.Running(), n.ID())
	}
}

// TestLogObserver verifies the dashboard lines carry band and target.
func TestLogObserver(t *testing.T) {
	var buf bytes.Buffer
	logger := hclog.New(&hclog.LoggerOptions{Output: &buf, Level: hclog.Info})
	obs := NewLogObserver(logger)

	obs.Observe(cluster.Snapshot{Scores: map[string]float64{"A": 0.3}})
	assert.Empty(t, buf.String())

	obs.Observe(cluster.Snapshot{
		Scores:  map[string]float64{"A": 0.3, "B": 0.85},
		Targets: []string{"B"},
	})
	out := buf.String()
	assert.Contains(t, out, "assignment")
	assert.Contains(t, out, "id=A")
	assert.Contains(t, out, "band=low")
	assert.Contains(t, out, "band=high")
	assert.Contains(t, out, "target=true")
}
