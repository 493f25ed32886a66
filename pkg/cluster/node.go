package cluster

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-hclog"
)

// Node is a simulated cluster member. It periodically reports its
// availability into a HeartbeatSink and holds the latest payload the
// coordinator replicated to it.
type Node struct {
	id       string
	sink     HeartbeatSink
	behavior Behavior
	logger   hclog.Logger
	now      func() time.Time
	budget   time.Duration
	onSilent func(id string)

	payload atomic.Pointer[Payload]
	running atomic.Bool
	sent    atomic.Uint64
	silent  atomic.Uint64

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NodeOption configures a Node.
type NodeOption func(*Node)

// WithNodeLogger sets the logger; the node adds its id as a field.
func WithNodeLogger(l hclog.Logger) NodeOption {
	return func(n *Node) { n.logger = l }
}

// WithNodeClock overrides the clock used to stamp heartbeats.
func WithNodeClock(now func() time.Time) NodeOption {
	return func(n *Node) { n.now = now }
}

// WithRunBudget stops the node on its own after d. Zero means no budget.
func WithRunBudget(d time.Duration) NodeOption {
	return func(n *Node) { n.budget = d }
}

// WithSilenceHook is called each time the node skips a cycle.
func WithSilenceHook(fn func(id string)) NodeOption {
	return func(n *Node) { n.onSilent = fn }
}

// NewNode creates a stopped node.
func NewNode(id string, sink HeartbeatSink, behavior Behavior, opts ...NodeOption) *Node {
	n := &Node{
		id:       id,
		sink:     sink,
		behavior: behavior,
		logger:   hclog.NewNullLogger(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	n.logger = n.logger.With("node", id)
	return n
}

// ID returns the node identifier.
func (n *Node) ID() string { return n.id }

// Running reports whether the heartbeat loop is active.
func (n *Node) Running() bool { return n.running.Load() }

// Start launches the heartbeat loop. Only the first call has any effect.
func (n *Node) Start(ctx context.Context) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.done != nil {
		return
	}

	if n.budget > 0 {
		ctx, n.cancel = context.WithTimeout(ctx, n.budget)
	} else {
		ctx, n.cancel = context.WithCancel(ctx)
	}
	n.done = make(chan struct{})
	n.running.Store(true)

	go n.run(ctx, n.done)
}

// Stop signals the loop to exit and waits for it. The loop notices at the
// top of its next cycle or while sleeping; a heartbeat being pushed is
// allowed to finish.
func (n *Node) Stop() {
	n.mu.Lock()
	cancel, done := n.cancel, n.done
	n.mu.Unlock()
	if done == nil {
		return
	}
	cancel()
	<-done
}

// Done is closed when the loop has exited. It is nil before Start.
func (n *Node) Done() <-chan struct{} {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.done
}

func (n *Node) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer n.running.Store(false)

	n.logger.Debug("node started")
	for {
		if ctx.Err() != nil {
			n.logger.Debug("node stopping", "sent", n.sent.Load(), "silent", n.silent.Load())
			return
		}

		if n.behavior.Silent() {
			n.silent.Add(1)
			if n.onSilent != nil {
				n.onSilent(n.id)
			}
			n.logger.Trace("staying silent", "pause", n.behavior.SilencePause())
			sleep(ctx, n.behavior.SilencePause())
			continue
		}

		hb := Heartbeat{NodeID: n.id, Score: n.behavior.Score(), SentAt: n.now()}
		if err := n.sink.Push(hb); err != nil {
			n.logger.Debug("heartbeat channel closed", "error", err)
			return
		}
		n.sent.Add(1)

		sleep(ctx, n.behavior.Interval())
	}
}

// ReceiveReplication replaces the node's replicated payload. Delivering the
// same payload twice leaves the slot unchanged.
func (n *Node) ReceiveReplication(p Payload) {
	n.payload.Store(&p)
}

// ReplicatedPayload returns the latest payload, if any was delivered.
func (n *Node) ReplicatedPayload() (Payload, bool) {
	p := n.payload.Load()
	if p == nil {
		return Payload{}, false
	}
	return *p, true
}

// NodeStats counts what a node did during its lifetime.
type NodeStats struct {
	Sent   uint64
	Silent uint64
}

// Stats returns the node's emission counters.
func (n *Node) Stats() NodeStats {
	return NodeStats{Sent: n.sent.Load(), Silent: n.silent.Load()}
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
