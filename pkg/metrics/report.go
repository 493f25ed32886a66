package metrics

import (
	"fmt"
	"io"
	"sort"
	"time"
)

// Input is the raw data the coordinator collected during a run.
type Input struct {
	TotalHeartbeats    int
	DiscardedLatencies int
	AssignmentsDone    int
	ReplicationCounts  map[string]int
	LatencySamples     []time.Duration
	Intervals          []time.Duration
}

// Report summarizes one run. Nil pointer fields mean there was no data to
// compute them from.
type Report struct {
	RunID              string         `json:"run_id"`
	StartedAt          time.Time      `json:"started_at"`
	FinishedAt         time.Time      `json:"finished_at"`
	NodeIDs            []string       `json:"node_ids"`
	TotalHeartbeats    int            `json:"total_heartbeats"`
	DiscardedLatencies int            `json:"discarded_latencies"`
	AssignmentsDone    int            `json:"assignments_done"`
	ReplicationCounts  map[string]int `json:"replication_counts"`
	MeanLatency        *time.Duration `json:"mean_latency,omitempty"`
	MeanInterval       *time.Duration `json:"mean_interval,omitempty"`
	Throughput         *float64       `json:"throughput,omitempty"`
}

// Summarize derives a Report from in. Every id in nodeIDs appears in
// ReplicationCounts, with zero when the node was never selected.
func Summarize(runID string, nodeIDs []string, in Input) Report {
	ids := append([]string(nil), nodeIDs...)
	counts := make(map[string]int, len(ids))
	for _, id := range ids {
		counts[id] = 0
	}
	for id, n := range in.ReplicationCounts {
		if _, known := counts[id]; !known {
			ids = append(ids, id)
		}
		counts[id] = n
	}
	sort.Strings(ids)

	r := Report{
		RunID:              runID,
		NodeIDs:            ids,
		TotalHeartbeats:    in.TotalHeartbeats,
		DiscardedLatencies: in.DiscardedLatencies,
		AssignmentsDone:    in.AssignmentsDone,
		ReplicationCounts:  counts,
		MeanLatency:        mean(in.LatencySamples),
		MeanInterval:       mean(in.Intervals),
	}

	if total := sum(in.Intervals); total > 0 {
		tp := float64(in.AssignmentsDone) / total.Seconds()
		r.Throughput = &tp
	}

	return r
}

func sum(ds []time.Duration) time.Duration {
	var total time.Duration
	for _, d := range ds {
		total += d
	}
	return total
}

func mean(ds []time.Duration) *time.Duration {
	if len(ds) == 0 {
		return nil
	}
	m := sum(ds) / time.Duration(len(ds))
	return &m
}

// Duration returns the run's wall-clock length, or zero if it was never stamped.
func (r Report) Duration() time.Duration {
	if r.StartedAt.IsZero() || r.FinishedAt.Before(r.StartedAt) {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

const noData = "no data"

// Write renders the report for humans.
func (r Report) Write(w io.Writer) error {
	ew := &errWriter{w: w}

	if r.RunID != "" {
		ew.printf("Run: %s\n", r.RunID)
	}
	if d := r.Duration(); d > 0 {
		ew.printf("Duration: %s\n", d.Round(time.Millisecond))
	}
	ew.printf("Total Heartbeats Received: %d\n", r.TotalHeartbeats)
	ew.printf("Discarded Latency Samples: %d\n", r.DiscardedLatencies)
	ew.printf("Assignments Done: %d\n", r.AssignmentsDone)
	ew.printf("Replication Frequency per Node:\n")
	for _, id := range r.NodeIDs {
		ew.printf("  %s: %d\n", id, r.ReplicationCounts[id])
	}
	ew.printf("Average Heartbeat Latency: %s\n", formatSeconds(r.MeanLatency))
	ew.printf("Average Assignment Interval: %s\n", formatSeconds(r.MeanInterval))
	if r.Throughput != nil {
		ew.printf("Throughput: %.3f assignments/second\n", *r.Throughput)
	} else {
		ew.printf("Throughput: %s\n", noData)
	}

	return ew.err
}

func formatSeconds(d *time.Duration) string {
	if d == nil {
		return noData
	}
	return fmt.Sprintf("%.3f seconds", d.Seconds())
}

type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}
