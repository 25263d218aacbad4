package queue

import "github.com/pkg/errors"

var (
	// ErrInvalidArgument is returned when the queue, payload or element is absent.
	ErrInvalidArgument = errors.New("queue: invalid argument")

	// ErrEmptyQueue is returned by removals on a queue with no elements.
	ErrEmptyQueue = errors.New("queue: empty")

	// ErrCapacityExceeded is returned by BoundedInsert under RejectNewest
	// when the queue already holds maxSize elements.
	ErrCapacityExceeded = errors.New("queue: capacity exceeded")

	// ErrForeignElement is returned by Unlink when the element is not linked
	// into the receiving queue (another queue's handle, or already removed).
	ErrForeignElement = errors.New("queue: element does not belong to queue")

	// ErrQueueFreed is returned by every operation after Free.
	ErrQueueFreed = errors.New("queue: used after free")
)
