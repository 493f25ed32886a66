package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"haf/pkg/cluster"
	"haf/pkg/metrics"
)

var (
	// ErrInvalidFactor is returned when the replication factor is not in [1, node count].
	ErrInvalidFactor = errors.New("replication factor out of range")
	// ErrNoNodes is returned when the directory is empty.
	ErrNoNodes = errors.New("no nodes to coordinate")
	// ErrAlreadyStarted is returned by a second Run.
	ErrAlreadyStarted = errors.New("coordinator already started")
)

// DefaultPayload is replicated when no payload is configured.
const DefaultPayload = "Replication Data"

// Config contains the aggregation loop settings.
type Config struct {
	ReplicationFactor int
	PollTimeout       time.Duration
	Cooldown          time.Duration
	RunBudget         time.Duration // zero runs until Stop or ctx ends
	LatencyCeiling    time.Duration
}

// HeartbeatSource is the consuming end of the heartbeat channel.
type HeartbeatSource interface {
	Pop(ctx context.Context, timeout time.Duration) (cluster.Heartbeat, bool)
	Depth() int
}

// Assignment describes one completed round.
type Assignment struct {
	Seq     int
	Targets []string
	Scores  map[string]float64
	Payload cluster.Payload
	At      time.Time
}

// Recorder persists assignments, e.g. to the run archive.
type Recorder interface {
	RecordAssignment(ctx context.Context, a Assignment) error
}

// Coordinator consumes heartbeats, detects complete rounds and replicates
// its payload to the most available nodes.
type Coordinator struct {
	cfg        Config
	dir        *cluster.Directory
	source     HeartbeatSource
	payload    cluster.Payload
	logger     hclog.Logger
	now        func() time.Time
	observer   cluster.Observer
	collectors *metrics.Collectors
	recorder   Recorder

	mu    sync.RWMutex
	state State

	notifier *notifier
	started  atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger.
func WithLogger(l hclog.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// WithClock overrides the clock used for latency and cadence.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithObserver registers the snapshot observer.
func WithObserver(o cluster.Observer) Option {
	return func(c *Coordinator) { c.observer = o }
}

// WithCollectors attaches Prometheus instruments.
func WithCollectors(m *metrics.Collectors) Option {
	return func(c *Coordinator) { c.collectors = m }
}

// WithRecorder attaches an assignment recorder.
func WithRecorder(r Recorder) Option {
	return func(c *Coordinator) { c.recorder = r }
}

// WithPayload sets the value replicated to targets.
func WithPayload(p cluster.Payload) Option {
	return func(c *Coordinator) { c.payload = p }
}

// New validates cfg against the directory and returns a coordinator that
// has not started yet.
func New(cfg Config, dir *cluster.Directory, source HeartbeatSource, opts ...Option) (*Coordinator, error) {
	if dir == nil || dir.Len() == 0 {
		return nil, ErrNoNodes
	}
	if cfg.ReplicationFactor < 1 || cfg.ReplicationFactor > dir.Len() {
		return nil, fmt.Errorf("%w: %d with %d nodes", ErrInvalidFactor, cfg.ReplicationFactor, dir.Len())
	}
	if cfg.PollTimeout <= 0 {
		return nil, fmt.Errorf("poll timeout must be positive, got %v", cfg.PollTimeout)
	}
	if cfg.LatencyCeiling <= 0 {
		return nil, fmt.Errorf("latency ceiling must be positive, got %v", cfg.LatencyCeiling)
	}

	c := &Coordinator{
		cfg:    cfg,
		dir:    dir,
		source: source,
		logger: hclog.NewNullLogger(),
		now:    time.Now,
		state:  newState(dir.IDs()),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.payload.ID == "" {
		if c.payload.Data == "" {
			c.payload.Data = DefaultPayload
		}
		c.payload.ID = uuid.NewString()
		c.payload.CreatedAt = c.now()
	}
	if c.observer != nil {
		c.notifier = newNotifier(c.observer, c.logger.Named("observer"))
	}
	return c, nil
}

// Payload returns the value this coordinator replicates.
func (c *Coordinator) Payload() cluster.Payload { return c.payload }

// Start runs the aggregation loop on a new goroutine.
func (c *Coordinator) Start(ctx context.Context) {
	go func() {
		if err := c.Run(ctx); err != nil {
			c.logger.Error("coordinator failed to run", "error", err)
		}
	}()
}

// Stop asks the loop to exit. It is observed at the top of the next poll.
func (c *Coordinator) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

// Done is closed once the loop has exited and every node was joined.
func (c *Coordinator) Done() <-chan struct{} { return c.done }

// Wait blocks until Done is closed.
func (c *Coordinator) Wait() { <-c.done }

// State returns a copy of the current state.
func (c *Coordinator) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.clone()
}

// Run executes the aggregation loop until Stop is called, ctx ends or the
// run budget elapses. On exit it stops all nodes, waits for them and for
// pending observer notifications, then closes Done.
func (c *Coordinator) Run(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	defer close(c.done)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if c.cfg.RunBudget > 0 {
		var cancelBudget context.CancelFunc
		runCtx, cancelBudget = context.WithTimeout(runCtx, c.cfg.RunBudget)
		defer cancelBudget()
	}
	go func() {
		select {
		case <-c.stopCh:
			cancel()
		case <-runCtx.Done():
		}
	}()

	if c.notifier != nil {
		c.notifier.start()
	}
	c.setRunning(true)
	c.logger.Info("coordinator started",
		"nodes", c.dir.Len(),
		"replication_factor", c.cfg.ReplicationFactor,
		"run_budget", c.cfg.RunBudget,
		"payload", c.payload.ID)

	for runCtx.Err() == nil {
		c.collectors.SetQueueDepth(c.source.Depth())

		hb, ok := c.source.Pop(runCtx, c.cfg.PollTimeout)
		if !ok {
			continue
		}

		if c.handleHeartbeat(hb) {
			c.assignReplicationTask(runCtx)
			sleep(runCtx, c.cfg.Cooldown)
		}
	}

	c.setRunning(false)
	c.logger.Info("coordinator stopping", "reason", stopReason(ctx, runCtx, c.stopCh))

	c.dir.StopAll()
	if c.notifier != nil {
		c.notifier.close()
	}

	st := c.State()
	c.logger.Info("coordinator stopped",
		"heartbeats", st.TotalHeartbeats,
		"assignments", st.AssignmentsDone)
	return nil
}

// handleHeartbeat folds hb into the state and reports whether every known
// node has now reported at least once.
func (c *Coordinator) handleHeartbeat(hb cluster.Heartbeat) bool {
	now := c.now()
	latency := now.Sub(hb.SentAt)
	kept := latency >= 0 && latency < c.cfg.LatencyCeiling
	known := c.dir.Has(hb.NodeID)

	c.mu.Lock()
	c.state.TotalHeartbeats++
	if known {
		c.state.Scores[hb.NodeID] = hb.Score
		if kept {
			c.state.LatencySamples = append(c.state.LatencySamples, latency)
		} else {
			c.state.DiscardedLatencies++
		}
	}
	complete := known && len(c.state.Scores) == c.dir.Len()
	scores := copyScores(c.state.Scores)
	c.mu.Unlock()

	if !known {
		// counted, but kept out of scores and latency statistics
		c.logger.Warn("heartbeat from unknown node ignored", "node", hb.NodeID)
		return false
	}

	c.logger.Debug("heartbeat",
		"node", hb.NodeID,
		"availability", hb.Score,
		"band", cluster.BandFor(hb.Score),
		"latency", latency)
	if !kept {
		c.logger.Debug("latency excluded from statistics", "node", hb.NodeID, "latency", latency)
	}
	c.collectors.RecordHeartbeat(hb.NodeID, hb.Score, latency, kept)

	c.publish(cluster.Snapshot{Scores: scores, At: now})
	return complete
}

// assignReplicationTask selects the top nodes, delivers the payload to
// them and records the assignment cadence.
func (c *Coordinator) assignReplicationTask(ctx context.Context) {
	now := c.now()

	c.mu.Lock()
	targets := cluster.SelectTargets(c.state.Scores, c.cfg.ReplicationFactor)
	var interval time.Duration
	if !c.state.LastAssignmentAt.IsZero() {
		interval = now.Sub(c.state.LastAssignmentAt)
		c.state.Intervals = append(c.state.Intervals, interval)
	}
	c.state.LastAssignmentAt = now
	for _, id := range targets {
		c.state.ReplicationCounts[id]++
	}
	c.state.AssignmentsDone++
	seq := c.state.AssignmentsDone
	scores := copyScores(c.state.Scores)
	c.mu.Unlock()

	for _, id := range targets {
		if n, ok := c.dir.Lookup(id); ok {
			n.ReceiveReplication(c.payload)
		}
	}

	c.logger.Info("assigning replication", "seq", seq, "targets", targets, "interval", interval)
	c.collectors.RecordAssignment(targets, interval)

	if c.recorder != nil {
		a := Assignment{
			Seq:     seq,
			Targets: append([]string(nil), targets...),
			Scores:  copyScores(scores),
			Payload: c.payload,
			At:      now,
		}
		if err := c.recorder.RecordAssignment(context.WithoutCancel(ctx), a); err != nil {
			c.logger.Warn("failed to record assignment", "seq", seq, "error", err)
		}
	}

	c.publish(cluster.Snapshot{Scores: scores, Targets: targets, At: now})
}

func (c *Coordinator) publish(s cluster.Snapshot) {
	if c.notifier == nil {
		return
	}
	s.Nodes = c.dir
	c.notifier.publish(s)
}

func (c *Coordinator) setRunning(v bool) {
	c.mu.Lock()
	c.state.Running = v
	c.mu.Unlock()
}

func stopReason(parent, run context.Context, stopCh <-chan struct{}) string {
	select {
	case <-stopCh:
		return "stop requested"
	default:
	}
	if parent.Err() != nil {
		return "context done"
	}
	if errors.Is(run.Err(), context.DeadlineExceeded) {
		return "run budget elapsed"
	}
	return "stopped"
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
