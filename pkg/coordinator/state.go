package coordinator

import (
	"time"

	"haf/pkg/metrics"
)

// State is the coordinator's bookkeeping. The aggregation loop is its only
// writer; State() hands out deep copies.
type State struct {
	// Scores holds the latest score per node. It is not cleared after an
	// assignment, so once every node has reported, each further heartbeat
	// completes a round again, possibly with stale scores for silent nodes.
	Scores             map[string]float64
	ReplicationCounts  map[string]int
	// LatencySamples and DiscardedLatencies only cover heartbeats from
	// nodes in the directory. TotalHeartbeats counts every heartbeat.
	LatencySamples     []time.Duration
	Intervals          []time.Duration
	LastAssignmentAt   time.Time
	AssignmentsDone    int
	TotalHeartbeats    int
	DiscardedLatencies int
	Running            bool
}

func newState(ids []string) State {
	counts := make(map[string]int, len(ids))
	for _, id := range ids {
		counts[id] = 0
	}
	return State{
		Scores:            make(map[string]float64, len(ids)),
		ReplicationCounts: counts,
	}
}

func (s State) clone() State {
	out := s
	out.Scores = copyScores(s.Scores)
	out.ReplicationCounts = make(map[string]int, len(s.ReplicationCounts))
	for k, v := range s.ReplicationCounts {
		out.ReplicationCounts[k] = v
	}
	out.LatencySamples = append([]time.Duration(nil), s.LatencySamples...)
	out.Intervals = append([]time.Duration(nil), s.Intervals...)
	return out
}

// MetricsInput converts the state into the reporter's input.
func (s State) MetricsInput() metrics.Input {
	c := s.clone()
	return metrics.Input{
		TotalHeartbeats:    c.TotalHeartbeats,
		DiscardedLatencies: c.DiscardedLatencies,
		AssignmentsDone:    c.AssignmentsDone,
		ReplicationCounts:  c.ReplicationCounts,
		LatencySamples:     c.LatencySamples,
		Intervals:          c.Intervals,
	}
}

func copyScores(in map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
