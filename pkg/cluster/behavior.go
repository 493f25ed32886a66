package cluster

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// Behavior decides what a node agent does on each cycle.
type Behavior interface {
	// Silent reports whether the agent skips this cycle.
	Silent() bool
	// SilencePause is how long a silent agent waits before the next cycle.
	SilencePause() time.Duration
	// Score is the availability to report, within [0, 1].
	Score() float64
	// Interval is the sleep between emissions.
	Interval() time.Duration
}

// RandomConfig parameterizes RandomBehavior.
type RandomConfig struct {
	ScoreMin           float64
	ScoreMax           float64
	Precision          int
	SilenceProbability float64
	SilencePause       time.Duration
	IntervalMin        time.Duration
	IntervalMax        time.Duration
	Seed               int64
}

// RandomBehavior draws scores and intervals uniformly from configured
// ranges. Silence decisions come from a separate generator so they are
// reproducible independently of the score sequence.
type RandomBehavior struct {
	cfg RandomConfig

	mu      sync.Mutex
	silence *rand.Rand
	values  *rand.Rand
}

// NewRandomBehavior seeds both generators from cfg.Seed.
func NewRandomBehavior(cfg RandomConfig) *RandomBehavior {
	return &RandomBehavior{
		cfg:     cfg,
		silence: rand.New(rand.NewSource(cfg.Seed)),
		values:  rand.New(rand.NewSource(cfg.Seed ^ 0x5deece66d)),
	}
}

func (b *RandomBehavior) Silent() bool {
	if b.cfg.SilenceProbability <= 0 {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.silence.Float64() < b.cfg.SilenceProbability
}

func (b *RandomBehavior) SilencePause() time.Duration { return b.cfg.SilencePause }

func (b *RandomBehavior) Score() float64 {
	b.mu.Lock()
	u := b.values.Float64()
	b.mu.Unlock()
	return Round(b.cfg.ScoreMin+u*(b.cfg.ScoreMax-b.cfg.ScoreMin), b.cfg.Precision)
}

func (b *RandomBehavior) Interval() time.Duration {
	span := b.cfg.IntervalMax - b.cfg.IntervalMin
	if span <= 0 {
		return b.cfg.IntervalMin
	}
	b.mu.Lock()
	d := time.Duration(b.values.Int63n(int64(span) + 1))
	b.mu.Unlock()
	return b.cfg.IntervalMin + d
}

// Round rounds v to the given number of decimal digits.
func Round(v float64, precision int) float64 {
	p := math.Pow10(precision)
	return math.Round(v*p) / p
}

// FixedBehavior replays a scripted score sequence, never goes silent, and
// waits a constant interval. After the script runs out the last score repeats.
type FixedBehavior struct {
	mu       sync.Mutex
	scores   []float64
	next     int
	interval time.Duration
}

// NewFixedBehavior returns a behavior that reports scores in order.
func NewFixedBehavior(interval time.Duration, scores ...float64) *FixedBehavior {
	return &FixedBehavior{scores: scores, interval: interval}
}

func (b *FixedBehavior) Silent() bool                { return false }
func (b *FixedBehavior) SilencePause() time.Duration { return 0 }
func (b *FixedBehavior) Interval() time.Duration     { return b.interval }

func (b *FixedBehavior) Score() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.scores) == 0 {
		return 0
	}
	i := b.next
	if i >= len(b.scores) {
		i = len(b.scores) - 1
	} else {
		b.next++
	}
	return b.scores[i]
}
