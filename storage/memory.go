package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"haf/pkg/metrics"
)

// MemoryArchive keeps reports and assignments in process memory.
type MemoryArchive struct {
	mu          sync.RWMutex
	reports     map[string]metrics.Report
	listedAt    map[string]time.Time
	assignments map[string][]AssignmentRecord
}

func NewMemoryArchive() *MemoryArchive {
	return &MemoryArchive{
		reports:     make(map[string]metrics.Report),
		listedAt:    make(map[string]time.Time),
		assignments: make(map[string][]AssignmentRecord),
	}
}

func (m *MemoryArchive) SaveReport(ctx context.Context, r metrics.Report) error {
	_ = ctx
	if r.RunID == "" {
		return ErrMissingRunID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	at := r.FinishedAt
	if at.IsZero() {
		at = time.Now()
	}
	m.reports[r.RunID] = r
	m.listedAt[r.RunID] = at
	return nil
}

func (m *MemoryArchive) GetReport(ctx context.Context, runID string) (metrics.Report, error) {
	_ = ctx
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.reports[runID]
	if !ok {
		return metrics.Report{}, ErrNotFound
	}
	return r, nil
}

// ListReports orders by finish time, newest first, like BadgerArchive's
// time index. Equal times fall back to the run id, descending.
func (m *MemoryArchive) ListReports(ctx context.Context, limit int) ([]metrics.Report, error) {
	_ = ctx
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.reports))
	for id := range m.reports {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		ti, tj := m.listedAt[ids[i]], m.listedAt[ids[j]]
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return ids[i] > ids[j]
	})
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}

	out := make([]metrics.Report, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.reports[id])
	}
	return out, nil
}

func (m *MemoryArchive) AppendAssignment(ctx context.Context, rec AssignmentRecord) error {
	_ = ctx
	if rec.RunID == "" {
		return ErrMissingRunID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assignments[rec.RunID] = append(m.assignments[rec.RunID], rec)
	return nil
}

func (m *MemoryArchive) Assignments(ctx context.Context, runID string) ([]AssignmentRecord, error) {
	_ = ctx
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := append([]AssignmentRecord(nil), m.assignments[runID]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

func (m *MemoryArchive) Close() error { return nil }
