package cluster

import "time"

// Heartbeat is a node's timestamped self-reported availability.
type Heartbeat struct {
	NodeID string
	Score  float64
	SentAt time.Time
}

// Payload is the value the coordinator hands to replication targets. It is
// never mutated after creation, so it can be shared between goroutines.
type Payload struct {
	ID        string    `json:"id"`
	Data      string    `json:"data"`
	CreatedAt time.Time `json:"created_at"`
}

// Band is a coarse availability class.
type Band string

const (
	BandLow    Band = "low"
	BandMedium Band = "medium"
	BandHigh   Band = "high"
)

// BandFor classifies a score: below 0.5 is low, below 0.8 is medium.
func BandFor(score float64) Band {
	switch {
	case score < 0.5:
		return BandLow
	case score < 0.8:
		return BandMedium
	default:
		return BandHigh
	}
}

// HeartbeatSink accepts heartbeats from node agents.
type HeartbeatSink interface {
	Push(hb Heartbeat) error
}
