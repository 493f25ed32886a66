package cluster

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDirectory(sink HeartbeatSink, ids ...string) *Directory {
	nodes := make([]*Node, 0, len(ids))
	for _, id := range ids {
		nodes = append(nodes, NewNode(id, sink, NewFixedBehavior(5*time.Millisecond, 0.5)))
	}
	return NewDirectory(nodes...)
}

// TestDirectoryLookup verifies ids are sorted and lookups match registration.
func TestDirectoryLookup(t *testing.T) {
	d := newTestDirectory(&recordingSink{}, "Node-3", "Node-1", "Node-2")

	assert.Equal(t, 3, d.Len())
	assert.Equal(t, []string{"Node-1", "Node-2", "Node-3"}, d.IDs())
	assert.True(t, d.Has("Node-2"))
	assert.False(t, d.Has("Node-9"))

	n, ok := d.Lookup("Node-1")
	require.True(t, ok)
	assert.Equal(t, "Node-1", n.ID())

	ids := d.IDs()
	ids[0] = "mutated"
	assert.Equal(t, "Node-1", d.IDs()[0])

	_, ok = d.Payload("Node-9")
	assert.False(t, ok)
}

// TestDirectoryStartStopAll verifies every node runs and is joined by StopAll.
func TestDirectoryStartStopAll(t *testing.T) {
	sink := &recordingSink{}
	d := newTestDirectory(sink, "A", "B", "C")

	d.StartAll(context.Background())
	require.Eventually(t, func() bool {
		seen := map[string]bool{}
		for _, hb := range sink.heartbeats() {
			seen[hb.NodeID] = true
		}
		return len(seen) == 3
	}, time.Second, time.Millisecond)

	d.StopAll()
	for _, n := range d.Nodes() {
		assert.False(t, n.Running(), n.ID())
	}
	d.StopAll()
}

// TestDirectoryConcurrentReads verifies lookups are safe from many
// goroutines while nodes are running and being stopped.
func TestDirectoryConcurrentReads(t *testing.T) {
	d := newTestDirectory(&recordingSink{}, "A", "B", "C")
	d.StartAll(context.Background())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				assert.True(t, d.Has("B"))
				n, ok := d.Lookup("C")
				assert.True(t, ok)
				assert.Equal(t, "C", n.ID())
				assert.Len(t, d.IDs(), 3)
				_, _ = d.Payload("A")
			}
		}()
	}
	d.StopAll()
	wg.Wait()
	assert.Equal(t, 3, d.Len())
}
