package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestSelectTargetsHighestFirst checks that the most available nodes are
// chosen, best first.
func TestSelectTargetsHighestFirst(t *testing.T) {
	scores := map[string]float64{"A": 0.9, "B": 0.7, "C": 0.95, "D": 0.4}

	assert.Equal(t, []string{"C", "A"}, SelectTargets(scores, 2))
}

// TestSelectTargetsTieBreak checks that equal scores resolve by ascending id.
func TestSelectTargetsTieBreak(t *testing.T) {
	scores := map[string]float64{"B": 0.5, "A": 0.5}

	for i := 0; i < 20; i++ {
		assert.Equal(t, []string{"A"}, SelectTargets(scores, 1))
	}
}

// TestSelectTargetsBounds covers factors outside [1, len(scores)].
func TestSelectTargetsBounds(t *testing.T) {
	scores := map[string]float64{"A": 0.2, "B": 0.8}

	assert.Nil(t, SelectTargets(scores, 0))
	assert.Nil(t, SelectTargets(scores, -1))
	assert.Equal(t, []string{"B", "A"}, SelectTargets(scores, 5))
	assert.Empty(t, SelectTargets(nil, 2))
}

// TestRank checks the full ordering and that scores are carried along.
func TestRank(t *testing.T) {
	ranked := Rank(map[string]float64{"n3": 0.5, "n1": 0.5, "n2": 0.9})

	assert.Equal(t, []Candidate{
		{NodeID: "n2", Score: 0.9},
		{NodeID: "n1", Score: 0.5},
		{NodeID: "n3", Score: 0.5},
	}, ranked)
}

// TestBandFor checks the availability band thresholds.
func TestBandFor(t *testing.T) {
	assert.Equal(t, BandLow, BandFor(0.1))
	assert.Equal(t, BandLow, BandFor(0.49))
	assert.Equal(t, BandMedium, BandFor(0.5))
	assert.Equal(t, BandMedium, BandFor(0.79))
	assert.Equal(t, BandHigh, BandFor(0.8))
	assert.Equal(t, BandHigh, BandFor(1))
}
