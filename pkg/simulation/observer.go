package simulation

import (
	"sort"

	"github.com/hashicorp/go-hclog"

	"haf/pkg/cluster"
)

// LogObserver renders assignment snapshots as log lines, one per node,
// with the node's availability band and whether it holds the payload.
type LogObserver struct {
	logger hclog.Logger
}

// NewLogObserver returns an observer writing to l.
func NewLogObserver(l hclog.Logger) *LogObserver {
	return &LogObserver{logger: l}
}

// Observe ignores plain heartbeat snapshots.
func (o *LogObserver) Observe(s cluster.Snapshot) {
	if !s.IsAssignment() {
		return
	}

	ids := make([]string, 0, len(s.Scores))
	for id := range s.Scores {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	target := make(map[string]bool, len(s.Targets))
	for _, id := range s.Targets {
		target[id] = true
	}

	o.logger.Info("assignment", "targets", s.Targets, "at", s.At)
	for _, id := range ids {
		score := s.Scores[id]
		replicated := false
		if s.Nodes != nil {
			_, replicated = s.Nodes.Payload(id)
		}
		o.logger.Info("node",
			"id", id,
			"availability", score,
			"band", cluster.BandFor(score),
			"target", target[id],
			"replicated", replicated)
	}
}
