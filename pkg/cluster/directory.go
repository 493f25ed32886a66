package cluster

import (
	"context"
	"sort"
	"sync"
)

// NodeDirectory is the read-only view of the node set handed to observers.
type NodeDirectory interface {
	// IDs returns every node id in ascending order.
	IDs() []string
	// Payload returns the latest payload replicated to a node.
	Payload(id string) (Payload, bool)
}

// Directory holds the fixed set of node agents known at startup. The set
// never changes after NewDirectory, so reads need no locking.
type Directory struct {
	nodes map[string]*Node
	ids   []string

	stopOnce sync.Once
}

// NewDirectory registers nodes. Later nodes with a duplicate id replace
// earlier ones.
func NewDirectory(nodes ...*Node) *Directory {
	d := &Directory{nodes: make(map[string]*Node, len(nodes))}
	for _, n := range nodes {
		d.nodes[n.ID()] = n
	}
	d.ids = make([]string, 0, len(d.nodes))
	for id := range d.nodes {
		d.ids = append(d.ids, id)
	}
	sort.Strings(d.ids)
	return d
}

// Len returns the number of known nodes.
func (d *Directory) Len() int {
	return len(d.ids)
}

// IDs returns a copy of the node ids, sorted.
func (d *Directory) IDs() []string {
	return append([]string(nil), d.ids...)
}

// Has reports whether id is a known node.
func (d *Directory) Has(id string) bool {
	_, ok := d.nodes[id]
	return ok
}

// Lookup returns the node with the given id.
func (d *Directory) Lookup(id string) (*Node, bool) {
	n, ok := d.nodes[id]
	return n, ok
}

// Payload returns the latest payload replicated to id.
func (d *Directory) Payload(id string) (Payload, bool) {
	n, ok := d.Lookup(id)
	if !ok {
		return Payload{}, false
	}
	return n.ReplicatedPayload()
}

// Nodes returns the nodes in id order.
func (d *Directory) Nodes() []*Node {
	out := make([]*Node, 0, len(d.ids))
	for _, id := range d.ids {
		out = append(out, d.nodes[id])
	}
	return out
}

// StartAll starts every node with ctx.
func (d *Directory) StartAll(ctx context.Context) {
	for _, n := range d.Nodes() {
		n.Start(ctx)
	}
}

// StopAll stops every node and waits for all of them to exit. Only the
// first call does anything; later calls return immediately.
func (d *Directory) StopAll() {
	d.stopOnce.Do(func() {
		var wg sync.WaitGroup
		for _, n := range d.Nodes() {
			wg.Add(1)
			go func(n *Node) {
				defer wg.Done()
				n.Stop()
			}(n)
		}
		wg.Wait()
	})
}
