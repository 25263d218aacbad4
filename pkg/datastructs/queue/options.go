package queue

// OverflowPolicy decides what BoundedInsert does on a full queue.
type OverflowPolicy int

const (
	// RejectNewest refuses the insertion with ErrCapacityExceeded.
	RejectNewest OverflowPolicy = iota

	// EvictOldest cuts the head (repeatedly, if the queue is above the bound)
	// before appending. Evicted payloads go to the OnEvict hook.
	EvictOldest
)

// String implements fmt.Stringer.
func (p OverflowPolicy) String() string {
	switch p {
	case RejectNewest:
		return "reject_newest"
	case EvictOldest:
		return "evict_oldest"
	default:
		return "unknown"
	}
}

// ParseOverflowPolicy maps a config value to a policy.
// Unknown values fall back to RejectNewest.
func ParseOverflowPolicy(s string) OverflowPolicy {
	switch s {
	case "evict_oldest", "evict":
		return EvictOldest
	default:
		return RejectNewest
	}
}

// Option configures a List.
type Option[T any] func(*List[T])

// WithOverflowPolicy sets the policy applied by BoundedInsert.
func WithOverflowPolicy[T any](p OverflowPolicy) Option[T] {
	return func(l *List[T]) {
		l.policy = p
	}
}

// WithOnEvict registers a hook receiving payloads evicted by BoundedInsert.
// Ownership of the payload passes to the hook.
func WithOnEvict[T any](fn func(T)) Option[T] {
	return func(l *List[T]) {
		l.onEvict = fn
	}
}
