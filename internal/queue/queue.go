package queue

// Queue is a fixed-capacity blocking FIFO shared by any number of
// producers and consumers. Put blocks while the queue is full and Get
// blocks while it is empty. There is no close: consumers learn that work
// has ended from a sentinel item, not from the queue.
type Queue[T any] struct {
	items chan T
}

// New allocates a queue holding at most capacity items.
// A capacity below one is a programming error and panics.
func New[T any](capacity int) *Queue[T] {
	if capacity < 1 {
		panic("queue: capacity must be at least 1")
	}
	return &Queue[T]{items: make(chan T, capacity)}
}

// Put appends item, waiting for a free slot if needed.
func (q *Queue[T]) Put(item T) {
	q.items <- item
}

// Get removes and returns the oldest item, waiting until one is available.
func (q *Queue[T]) Get() T {
	return <-q.items
}

func (q *Queue[T]) Len() int {
	return len(q.items)
}

func (q *Queue[T]) Cap() int {
	return cap(q.items)
}
