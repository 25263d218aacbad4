package queue

// Queue is a generic interface for doubly-linked record queues.
// Callers pick FIFO or LIFO semantics by the pair of operations they use:
// Append/CutHead and Prepend/CutTail are FIFO, Append/CutTail and
// Prepend/CutHead are LIFO.
type Queue[T any] interface {
	// Prepend links payload as the new head.
	Prepend(payload T) (*Element[T], error)

	// Append links payload as the new tail.
	Append(payload T) (*Element[T], error)

	// BoundedInsert appends payload subject to maxSize.
	// maxSize <= 0 disables the bound.
	BoundedInsert(payload T, maxSize int) (*Element[T], error)

	// Unlink removes e and hands its payload back to the caller.
	Unlink(e *Element[T]) (T, error)

	// CutHead removes the head and returns its payload.
	CutHead() (T, error)

	// CutTail removes the tail and returns its payload.
	CutTail() (T, error)

	// Len returns the number of linked elements.
	Len() int

	// Free tears the queue down, passing every remaining payload to
	// destructor in chain order. A nil destructor leaves payloads untouched.
	Free(destructor func(T))
}
