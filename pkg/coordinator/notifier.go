package coordinator

import (
	"context"
	"time"

	"github.com/hashicorp/go-hclog"

	"haf/pkg/cluster"
	"haf/pkg/queue"
)

// notifier hands snapshots to the observer on its own goroutine so a slow
// observer never stalls the aggregation loop.
type notifier struct {
	observer cluster.Observer
	q        *queue.Queue[cluster.Snapshot]
	logger   hclog.Logger
	done     chan struct{}
}

func newNotifier(o cluster.Observer, logger hclog.Logger) *notifier {
	return &notifier{
		observer: o,
		q:        queue.New[cluster.Snapshot](),
		logger:   logger,
		done:     make(chan struct{}),
	}
}

func (n *notifier) start() {
	go n.run()
}

func (n *notifier) run() {
	defer close(n.done)
	ctx := context.Background()
	for !n.q.Drained() {
		s, ok := n.q.Pop(ctx, 100*time.Millisecond)
		if !ok {
			continue
		}
		n.deliver(s)
	}
}

func (n *notifier) deliver(s cluster.Snapshot) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("observer panicked", "panic", r)
		}
	}()
	n.observer.Observe(s)
}

func (n *notifier) publish(s cluster.Snapshot) {
	if err := n.q.Push(s); err != nil {
		n.logger.Debug("snapshot dropped after shutdown")
	}
}

// close stops accepting snapshots and waits until the queued ones were delivered.
func (n *notifier) close() {
	n.q.Close()
	<-n.done
}
