package metrics

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSummarizeNoAssignments verifies that missing data yields explicit
// "no data" values instead of zeros.
func TestSummarizeNoAssignments(t *testing.T) {
	r := Summarize("run-1", []string{"Node-1", "Node-2"}, Input{TotalHeartbeats: 3})

	assert.Nil(t, r.Throughput)
	assert.Nil(t, r.MeanInterval)
	assert.Nil(t, r.MeanLatency)
	assert.Equal(t, map[string]int{"Node-1": 0, "Node-2": 0}, r.ReplicationCounts)

	var buf bytes.Buffer
	require.NoError(t, r.Write(&buf))
	out := buf.String()
	assert.Contains(t, out, "Throughput: no data")
	assert.Contains(t, out, "Average Assignment Interval: no data")
	assert.Contains(t, out, "Average Heartbeat Latency: no data")
	assert.Contains(t, out, "Total Heartbeats Received: 3")
	assert.Contains(t, out, "  Node-1: 0\n  Node-2: 0\n")
}

// TestSummarizeMeans verifies the averages and throughput arithmetic.
func TestSummarizeMeans(t *testing.T) {
	r := Summarize("run-2", []string{"B", "A"}, Input{
		TotalHeartbeats:   10,
		AssignmentsDone:   3,
		ReplicationCounts: map[string]int{"A": 3, "B": 2, "X": 1},
		LatencySamples:    []time.Duration{10 * time.Millisecond, 30 * time.Millisecond},
		Intervals:         []time.Duration{2 * time.Second, 4 * time.Second},
	})

	require.NotNil(t, r.MeanLatency)
	assert.Equal(t, 20*time.Millisecond, *r.MeanLatency)
	require.NotNil(t, r.MeanInterval)
	assert.Equal(t, 3*time.Second, *r.MeanInterval)
	require.NotNil(t, r.Throughput)
	assert.InDelta(t, 0.5, *r.Throughput, 1e-9)

	assert.Equal(t, []string{"A", "B", "X"}, r.NodeIDs)
	assert.Equal(t, 1, r.ReplicationCounts["X"])

	var buf bytes.Buffer
	require.NoError(t, r.Write(&buf))
	assert.Contains(t, buf.String(), "Average Heartbeat Latency: 0.020 seconds")
	assert.Contains(t, buf.String(), "Throughput: 0.500 assignments/second")
}

// TestSummarizeSingleAssignment verifies that one assignment has no interval
// and therefore no throughput.
func TestSummarizeSingleAssignment(t *testing.T) {
	r := Summarize("run-3", []string{"A"}, Input{AssignmentsDone: 1, ReplicationCounts: map[string]int{"A": 1}})

	assert.Nil(t, r.Throughput)
	assert.Equal(t, 1, r.ReplicationCounts["A"])
}

func TestReportDuration(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r := Report{StartedAt: start, FinishedAt: start.Add(1500 * time.Millisecond)}
	assert.Equal(t, 1500*time.Millisecond, r.Duration())

	assert.Zero(t, Report{}.Duration())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

// TestWriteReturnsError verifies the first write error is surfaced.
func TestWriteReturnsError(t *testing.T) {
	err := Summarize("run", []string{"A"}, Input{}).Write(failingWriter{})
	assert.EqualError(t, err, "disk full")
}
