package queue

import "sync"

var _ Queue[int] = (*Synchronized[int])(nil)

// Synchronized guards a List with a single mutex so it can be shared
// across goroutines. Element handles returned by it must only be passed
// back to the same Synchronized value.
type Synchronized[T any] struct {
	mu   sync.Mutex
	list *List[T]
}

// NewSynchronized creates an empty mutex-guarded list.
func NewSynchronized[T any](opts ...Option[T]) *Synchronized[T] {
	return &Synchronized[T]{list: New(opts...)}
}

// Prepend implements Queue.
func (s *Synchronized[T]) Prepend(payload T) (*Element[T], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list.Prepend(payload)
}

// Append implements Queue.
func (s *Synchronized[T]) Append(payload T) (*Element[T], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list.Append(payload)
}

// BoundedInsert implements Queue. The OnEvict hook runs with the lock held.
func (s *Synchronized[T]) BoundedInsert(payload T, maxSize int) (*Element[T], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list.BoundedInsert(payload, maxSize)
}

// Unlink implements Queue.
func (s *Synchronized[T]) Unlink(e *Element[T]) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list.Unlink(e)
}

// CutHead implements Queue.
func (s *Synchronized[T]) CutHead() (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list.CutHead()
}

// CutTail implements Queue.
func (s *Synchronized[T]) CutTail() (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list.CutTail()
}

// Len implements Queue.
func (s *Synchronized[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list.Len()
}

// Free implements Queue. The destructor runs with the lock held.
func (s *Synchronized[T]) Free(destructor func(T)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.list.Free(destructor)
}

// Drain cuts up to max payloads from the head in one critical section.
// max <= 0 drains everything.
func (s *Synchronized[T]) Drain(max int) []T {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.list.Len()
	if max > 0 && max < n {
		n = max
	}

	out := make([]T, 0, n)
	for i := 0; i < n; i++ {
		payload, err := s.list.CutHead()
		if err != nil {
			break
		}
		out = append(out, payload)
	}
	return out
}
