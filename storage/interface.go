package storage

import (
	"context"
	"errors"
	"time"

	"haf/pkg/metrics"
)

var (
	// ErrNotFound is returned when a run is not in the archive.
	ErrNotFound = errors.New("not found")
	// ErrMissingRunID is returned when a record carries no run id.
	ErrMissingRunID = errors.New("missing run id")
)

// Archive keeps run reports and the assignments made during each run.
type Archive interface {
	// Reports
	SaveReport(ctx context.Context, r metrics.Report) error
	GetReport(ctx context.Context, runID string) (metrics.Report, error)
	ListReports(ctx context.Context, limit int) ([]metrics.Report, error)

	// Assignments
	AppendAssignment(ctx context.Context, rec AssignmentRecord) error
	Assignments(ctx context.Context, runID string) ([]AssignmentRecord, error)

	// Lifecycle
	Close() error
}

// AssignmentRecord represents one completed round of a run
type AssignmentRecord struct {
	RunID     string             `json:"run_id"`
	Seq       int                `json:"seq"`
	Targets   []string           `json:"targets"`
	Scores    map[string]float64 `json:"scores"`
	PayloadID string             `json:"payload_id"`
	At        time.Time          `json:"at"`
}
