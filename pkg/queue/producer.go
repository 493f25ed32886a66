package queue

// Producer publishes items into a queue on behalf of one sender.
type Producer[T any] struct {
	q *Queue[T]
}

func NewProducer[T any](q *Queue[T]) *Producer[T] { return &Producer[T]{q: q} }

// Push enqueues an item.
func (p *Producer[T]) Push(v T) error {
	return p.q.Push(v)
}
