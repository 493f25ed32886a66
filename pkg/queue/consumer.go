package queue

import (
	"context"
	"time"
)

// Consumer pops items from a queue.
type Consumer[T any] struct {
	q *Queue[T]
}

func NewConsumer[T any](q *Queue[T]) *Consumer[T] { return &Consumer[T]{q: q} }

// Pop blocks up to timeout waiting for an item.
func (c *Consumer[T]) Pop(ctx context.Context, timeout time.Duration) (T, bool) {
	return c.q.Pop(ctx, timeout)
}

// Depth returns the number of items waiting.
func (c *Consumer[T]) Depth() int {
	return c.q.Len()
}
