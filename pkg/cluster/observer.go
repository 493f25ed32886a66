package cluster

import "time"

// Snapshot is an immutable copy of coordinator state. Targets is nil for
// snapshots published after a plain heartbeat and holds the selected node
// ids, best first, after an assignment.
type Snapshot struct {
	Scores  map[string]float64
	Targets []string
	Nodes   NodeDirectory
	At      time.Time
}

// IsAssignment reports whether the snapshot was published by an assignment.
func (s Snapshot) IsAssignment() bool { return s.Targets != nil }

// Observer receives snapshots. It is called from a goroutine owned by the
// coordinator, never from the aggregation loop itself.
type Observer interface {
	Observe(s Snapshot)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(s Snapshot)

func (f ObserverFunc) Observe(s Snapshot) { f(s) }
