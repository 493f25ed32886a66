package cluster

import "sort"

// Candidate is a node considered for replication.
type Candidate struct {
	NodeID string
	Score  float64
}

// Rank orders every scored node by score, highest first. Equal scores are
// ordered by ascending node id so the ranking is fully deterministic.
func Rank(scores map[string]float64) []Candidate {
	out := make([]Candidate, 0, len(scores))
	for id, s := range scores {
		out = append(out, Candidate{NodeID: id, Score: s})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].NodeID < out[j].NodeID
	})
	return out
}

// SelectTargets returns the ids of the factor most available nodes. When
// fewer nodes are scored than factor, all of them are returned.
func SelectTargets(scores map[string]float64, factor int) []string {
	if factor <= 0 {
		return nil
	}
	ranked := Rank(scores)
	if factor > len(ranked) {
		factor = len(ranked)
	}
	targets := make([]string, 0, factor)
	for _, c := range ranked[:factor] {
		targets = append(targets, c.NodeID)
	}
	return targets
}
