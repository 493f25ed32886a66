package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "haf"
)

// Collectors holds the live Prometheus instruments updated during a run.
type Collectors struct {
	// HeartbeatsTotal counts heartbeats consumed by the coordinator
	HeartbeatsTotal *prometheus.CounterVec

	// HeartbeatLatency measures emission-to-consumption delay
	HeartbeatLatency prometheus.Histogram

	// LatencyDiscarded counts samples outside [0, ceiling)
	LatencyDiscarded prometheus.Counter

	// AssignmentsTotal counts completed rounds
	AssignmentsTotal prometheus.Counter

	// ReplicationsTotal counts deliveries per node
	ReplicationsTotal *prometheus.CounterVec

	// AssignmentInterval measures time between consecutive assignments
	AssignmentInterval prometheus.Histogram

	// NodeScore tracks the latest reported score per node
	NodeScore *prometheus.GaugeVec

	// NodeSilences counts cycles a node skipped
	NodeSilences *prometheus.CounterVec

	// QueueDepth tracks heartbeats waiting in the channel
	QueueDepth prometheus.Gauge
}

// NewCollectors registers the instruments with reg. A nil reg creates
// unregistered collectors, which is convenient in tests.
func NewCollectors(reg prometheus.Registerer) *Collectors {
	f := promauto.With(reg)
	return &Collectors{
		HeartbeatsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "heartbeats_total",
				Help:      "Total number of heartbeats received by the coordinator",
			},
			[]string{"node"},
		),
		HeartbeatLatency: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "heartbeat_latency_seconds",
				Help:      "Delay between heartbeat emission and consumption",
				Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5},
			},
		),
		LatencyDiscarded: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "latency_discarded_total",
				Help:      "Heartbeats whose latency was excluded from statistics",
			},
		),
		AssignmentsTotal: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "assignments_total",
				Help:      "Total number of replication assignments",
			},
		),
		ReplicationsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "replications_total",
				Help:      "Payload deliveries per node",
			},
			[]string{"node"},
		),
		AssignmentInterval: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "assignment_interval_seconds",
				Help:      "Time between consecutive assignments",
				Buckets:   []float64{.1, .5, 1, 2.5, 5, 7.5, 10, 20, 60},
			},
		),
		NodeScore: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "node_score",
				Help:      "Latest availability score reported by each node",
			},
			[]string{"node"},
		),
		NodeSilences: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "node_silences_total",
				Help:      "Cycles in which a node stayed silent",
			},
			[]string{"node"},
		),
		QueueDepth: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "queue_depth",
				Help:      "Heartbeats waiting to be consumed",
			},
		),
	}
}

// RecordHeartbeat records a consumed heartbeat. kept is false when the
// latency was discarded.
func (c *Collectors) RecordHeartbeat(node string, score float64, latency time.Duration, kept bool) {
	if c == nil {
		return
	}
	c.HeartbeatsTotal.WithLabelValues(node).Inc()
	c.NodeScore.WithLabelValues(node).Set(score)
	if kept {
		c.HeartbeatLatency.Observe(latency.Seconds())
	} else {
		c.LatencyDiscarded.Inc()
	}
}

// RecordAssignment records one assignment and its interval since the
// previous one (zero for the first).
func (c *Collectors) RecordAssignment(targets []string, interval time.Duration) {
	if c == nil {
		return
	}
	c.AssignmentsTotal.Inc()
	for _, t := range targets {
		c.ReplicationsTotal.WithLabelValues(t).Inc()
	}
	if interval > 0 {
		c.AssignmentInterval.Observe(interval.Seconds())
	}
}

// RecordSilence records a skipped node cycle.
func (c *Collectors) RecordSilence(node string) {
	if c == nil {
		return
	}
	c.NodeSilences.WithLabelValues(node).Inc()
}

// SetQueueDepth records the heartbeat backlog.
func (c *Collectors) SetQueueDepth(depth int) {
	if c == nil {
		return
	}
	c.QueueDepth.Set(float64(depth))
}
