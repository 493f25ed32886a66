package simulation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"

	"haf/config"
	"haf/pkg/cluster"
	"haf/pkg/coordinator"
	"haf/pkg/metrics"
	"haf/pkg/queue"
	"haf/storage"
)

// Simulation wires node agents, the heartbeat channel and the coordinator
// for a single run.
type Simulation struct {
	config *config.Config
	runID  string
	logger hclog.Logger

	heartbeats  *queue.Queue[cluster.Heartbeat]
	directory   *cluster.Directory
	coordinator *coordinator.Coordinator

	registry   *prometheus.Registry
	collectors *metrics.Collectors
	exporter   *metrics.Exporter
	archive    storage.Archive
	observer   cluster.Observer
	behaviors  func(id string, index int) cluster.Behavior
	clock      func() time.Time
}

// Option configures a Simulation.
type Option func(*Simulation)

// WithLogger sets the root logger.
func WithLogger(l hclog.Logger) Option {
	return func(s *Simulation) { s.logger = l }
}

// WithObserver registers a snapshot observer, e.g. a dashboard.
func WithObserver(o cluster.Observer) Option {
	return func(s *Simulation) { s.observer = o }
}

// WithArchive stores the report and every assignment in a.
func WithArchive(a storage.Archive) Option {
	return func(s *Simulation) { s.archive = a }
}

// WithRegistry registers the run's collectors in reg instead of a private registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Simulation) { s.registry = reg }
}

// WithBehaviors overrides how each node decides what to report.
func WithBehaviors(fn func(id string, index int) cluster.Behavior) Option {
	return func(s *Simulation) { s.behaviors = fn }
}

// WithClock overrides the clock shared by nodes and the coordinator.
func WithClock(now func() time.Time) Option {
	return func(s *Simulation) { s.clock = now }
}

// New validates cfg and builds every component. No goroutine is started
// until Run.
func New(cfg *config.Config, opts ...Option) (*Simulation, error) {
	if cfg == nil {
		return nil, errors.New("nil config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Simulation{
		config: cfg,
		runID:  uuid.NewString(),
		logger: hclog.NewNullLogger(),
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
	}
	if s.behaviors == nil {
		s.behaviors = s.randomBehavior
	}
	s.logger = s.logger.With("run", s.runID)

	s.collectors = metrics.NewCollectors(s.registry)
	s.heartbeats = queue.New[cluster.Heartbeat]()

	nodeLogger := s.logger.Named("node")
	ids := cfg.NodeIDs()
	nodes := make([]*cluster.Node, 0, len(ids))
	for i, id := range ids {
		nodes = append(nodes, cluster.NewNode(id,
			queue.NewProducer(s.heartbeats),
			s.behaviors(id, i),
			cluster.WithNodeLogger(nodeLogger),
			cluster.WithNodeClock(s.clock),
			cluster.WithRunBudget(cfg.Node.RunBudget),
			cluster.WithSilenceHook(s.collectors.RecordSilence),
		))
	}
	s.directory = cluster.NewDirectory(nodes...)

	coordOpts := []coordinator.Option{
		coordinator.WithLogger(s.logger.Named("coordinator")),
		coordinator.WithClock(s.clock),
		coordinator.WithCollectors(s.collectors),
		coordinator.WithPayload(cluster.Payload{
			ID:        uuid.NewString(),
			Data:      cfg.Cluster.Payload,
			CreatedAt: s.clock(),
		}),
	}
	if s.observer != nil {
		coordOpts = append(coordOpts, coordinator.WithObserver(s.observer))
	}
	if s.archive != nil {
		coordOpts = append(coordOpts, coordinator.WithRecorder(archiveRecorder{runID: s.runID, archive: s.archive}))
	}

	coord, err := coordinator.New(coordinator.Config{
		ReplicationFactor: cfg.Cluster.ReplicationFactor,
		PollTimeout:       cfg.Coordinator.PollTimeout,
		Cooldown:          cfg.Coordinator.Cooldown,
		RunBudget:         cfg.Coordinator.RunBudget,
		LatencyCeiling:    cfg.Coordinator.LatencyCeiling,
	}, s.directory, queue.NewConsumer(s.heartbeats), coordOpts...)
	if err != nil {
		return nil, fmt.Errorf("coordinator: %w", err)
	}
	s.coordinator = coord

	if cfg.Metrics.Enabled {
		s.exporter = metrics.NewExporter(cfg.Metrics.Addr, cfg.Metrics.Path, s.registry)
	}

	return s, nil
}

// randomBehavior derives a distinct, reproducible seed per node.
func (s *Simulation) randomBehavior(id string, index int) cluster.Behavior {
	nc := s.config.Node
	seed := nc.Seed
	if seed == 0 {
		seed = s.clock().UnixNano()
	}
	return cluster.NewRandomBehavior(cluster.RandomConfig{
		ScoreMin:           nc.ScoreMin,
		ScoreMax:           nc.ScoreMax,
		Precision:          nc.ScorePrecision,
		SilenceProbability: nc.SilenceProbability,
		SilencePause:       nc.SilencePause,
		IntervalMin:        nc.IntervalMin,
		IntervalMax:        nc.IntervalMax,
		Seed:               seed + int64(index)*7919,
	})
}

// RunID identifies this run in logs and in the archive.
func (s *Simulation) RunID() string { return s.runID }

// Directory exposes the node set for observers and inspection.
func (s *Simulation) Directory() *cluster.Directory { return s.directory }

// Coordinator returns the run's coordinator.
func (s *Simulation) Coordinator() *coordinator.Coordinator { return s.coordinator }

// Registry returns the Prometheus registry holding the run's collectors.
func (s *Simulation) Registry() *prometheus.Registry { return s.registry }

// Stop ends the run early. Run still returns the report.
func (s *Simulation) Stop() { s.coordinator.Stop() }

// Run starts every node and the coordinator, waits for the coordinator's
// stop condition, and returns the metrics report. Nodes are always stopped
// and joined before the report is computed.
func (s *Simulation) Run(ctx context.Context) (metrics.Report, error) {
	if s.exporter != nil {
		if err := s.exporter.Start(func(err error) {
			s.logger.Error("metrics exporter failed", "error", err)
		}); err != nil {
			return metrics.Report{}, fmt.Errorf("metrics exporter: %w", err)
		}
		s.logger.Info("metrics exporter listening", "addr", s.exporter.Addr(), "path", s.config.Metrics.Path)
		defer func() {
			if err := s.exporter.Stop(); err != nil {
				s.logger.Warn("metrics exporter stop", "error", err)
			}
		}()
	}

	started := s.clock()
	s.logger.Info("starting simulation",
		"nodes", s.directory.Len(),
		"replication_factor", s.config.Cluster.ReplicationFactor,
		"run_budget", s.config.Coordinator.RunBudget)

	s.directory.StartAll(ctx)
	runErr := s.coordinator.Run(ctx)
	// Already done by a coordinator that ran; needed when Run failed early.
	s.directory.StopAll()
	s.heartbeats.Close()

	report := metrics.Summarize(s.runID, s.directory.IDs(), s.coordinator.State().MetricsInput())
	report.StartedAt = started
	report.FinishedAt = s.clock()

	if s.archive != nil {
		if err := s.archive.SaveReport(context.WithoutCancel(ctx), report); err != nil {
			s.logger.Warn("failed to archive report", "error", err)
		}
	}

	if runErr != nil {
		return report, runErr
	}
	s.logger.Info("simulation finished",
		"heartbeats", report.TotalHeartbeats,
		"assignments", report.AssignmentsDone,
		"duration", report.Duration())
	return report, nil
}

// archiveRecorder adapts a storage.Archive to coordinator.Recorder.
type archiveRecorder struct {
	runID   string
	archive storage.Archive
}

func (r archiveRecorder) RecordAssignment(ctx context.Context, a coordinator.Assignment) error {
	return r.archive.AppendAssignment(ctx, storage.AssignmentRecord{
		RunID:     r.runID,
		Seq:       a.Seq,
		Targets:   a.Targets,
		Scores:    a.Scores,
		PayloadID: a.Payload.ID,
		At:        a.At,
	})
}
