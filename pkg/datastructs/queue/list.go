package queue

import "iter"

var _ Queue[int] = (*List[int])(nil)

// List is a bounded doubly-linked queue.
//
// Behavior:
//   - Every operation is O(1) except Free and the iterators.
//   - The list owns its elements; it never owns payloads except through Free.
//   - Failed operations leave the list untouched.
//   - List is NOT safe for concurrent use. Wrap it in Synchronized when
//     it is shared across goroutines.
type List[T any] struct {
	head *Element[T]
	tail *Element[T]
	size int

	policy  OverflowPolicy
	onEvict func(T)
	freed   bool
}

// New creates an empty list.
func New[T any](opts ...Option[T]) *List[T] {
	l := &List[T]{}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Prepend links payload as the new head and returns its handle.
func (l *List[T]) Prepend(payload T) (*Element[T], error) {
	if err := l.validateInsert(payload); err != nil {
		return nil, err
	}
	return l.pushFront(&Element[T]{payload: payload}), nil
}

// Append links payload as the new tail and returns its handle.
func (l *List[T]) Append(payload T) (*Element[T], error) {
	if err := l.validateInsert(payload); err != nil {
		return nil, err
	}
	return l.pushBack(&Element[T]{payload: payload}), nil
}

// BoundedInsert appends payload unless the list already holds maxSize
// elements, in which case the list's OverflowPolicy applies.
// maxSize <= 0 makes it equivalent to Append.
func (l *List[T]) BoundedInsert(payload T, maxSize int) (*Element[T], error) {
	if err := l.validateInsert(payload); err != nil {
		return nil, err
	}

	if maxSize > 0 && l.size >= maxSize {
		switch l.policy {
		case EvictOldest:
			for l.size >= maxSize {
				evicted := l.remove(l.head)
				if l.onEvict != nil {
					l.onEvict(evicted)
				}
			}
		default:
			return nil, ErrCapacityExceeded
		}
	}

	return l.pushBack(&Element[T]{payload: payload}), nil
}

// Unlink removes e from anywhere in the list and returns its payload.
// The handle is dead afterwards; unlinking it again fails with
// ErrForeignElement.
func (l *List[T]) Unlink(e *Element[T]) (T, error) {
	var zero T
	if err := l.validate(); err != nil {
		return zero, err
	}
	if l.size == 0 {
		return zero, ErrEmptyQueue
	}
	if e == nil {
		return zero, ErrInvalidArgument
	}
	if e.list != l {
		return zero, ErrForeignElement
	}
	return l.remove(e), nil
}

// CutHead removes the head and returns its payload.
func (l *List[T]) CutHead() (T, error) {
	var zero T
	if err := l.validate(); err != nil {
		return zero, err
	}
	if l.head == nil {
		return zero, ErrEmptyQueue
	}
	return l.remove(l.head), nil
}

// CutTail removes the tail and returns its payload.
func (l *List[T]) CutTail() (T, error) {
	var zero T
	if err := l.validate(); err != nil {
		return zero, err
	}
	if l.tail == nil {
		return zero, ErrEmptyQueue
	}
	return l.remove(l.tail), nil
}

// Free walks the chain head to tail, hands each payload to destructor
// (if non-nil) exactly once, and releases every element. The list rejects
// all further operations with ErrQueueFreed. Calling Free twice is a no-op.
func (l *List[T]) Free(destructor func(T)) {
	if l == nil || l.freed {
		return
	}

	for current := l.head; current != nil; {
		next := current.next
		payload := current.payload
		l.release(current)
		if destructor != nil {
			destructor(payload)
		}
		current = next
	}

	l.head = nil
	l.tail = nil
	l.size = 0
	l.onEvict = nil
	l.freed = true
}

// Len returns the number of linked elements.
func (l *List[T]) Len() int {
	if l == nil {
		return 0
	}
	return l.size
}

// IsEmpty returns true if the list holds no elements.
func (l *List[T]) IsEmpty() bool {
	return l.Len() == 0
}

// Front returns the head element or nil.
func (l *List[T]) Front() *Element[T] {
	if l == nil {
		return nil
	}
	return l.head
}

// Back returns the tail element or nil.
func (l *List[T]) Back() *Element[T] {
	if l == nil {
		return nil
	}
	return l.tail
}

// Policy returns the overflow policy used by BoundedInsert.
func (l *List[T]) Policy() OverflowPolicy {
	if l == nil {
		return RejectNewest
	}
	return l.policy
}

// All yields payloads head to tail.
// The list must not be modified during iteration.
func (l *List[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		for e := l.Front(); e != nil; e = e.next {
			if !yield(e.payload) {
				return
			}
		}
	}
}

// Backward yields payloads tail to head.
func (l *List[T]) Backward() iter.Seq[T] {
	return func(yield func(T) bool) {
		for e := l.Back(); e != nil; e = e.prev {
			if !yield(e.payload) {
				return
			}
		}
	}
}

func (l *List[T]) validate() error {
	if l == nil {
		return ErrInvalidArgument
	}
	if l.freed {
		return ErrQueueFreed
	}
	return nil
}

func (l *List[T]) validateInsert(payload T) error {
	if err := l.validate(); err != nil {
		return err
	}
	if isAbsent(payload) {
		return ErrInvalidArgument
	}
	return nil
}

// pushFront links e as the head.
func (l *List[T]) pushFront(e *Element[T]) *Element[T] {
	e.list = l
	e.prev = nil

	if l.head == nil {
		e.next = nil
		l.tail = e
	} else {
		e.next = l.head
		l.head.prev = e
	}

	l.head = e
	l.size++

	return e
}

// pushBack links e as the tail.
func (l *List[T]) pushBack(e *Element[T]) *Element[T] {
	e.list = l
	e.next = nil

	if l.tail == nil {
		e.prev = nil
		l.head = e
	} else {
		e.prev = l.tail
		l.tail.next = e
	}

	l.tail = e
	l.size++

	return e
}

// remove unlinks e, which must belong to l, and returns its payload.
func (l *List[T]) remove(e *Element[T]) T {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		l.head = e.next
	}

	if e.next != nil {
		e.next.prev = e.prev
	} else {
		l.tail = e.prev
	}

	l.size--

	payload := e.payload
	l.release(e)
	return payload
}

// release clears every link held by e so a stale handle reaches nothing.
func (l *List[T]) release(e *Element[T]) {
	var zero T
	e.payload = zero
	e.prev = nil
	e.next = nil
	e.list = nil
}
