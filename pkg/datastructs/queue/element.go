package queue

import "reflect"

// Element is a single linked node holding one caller-owned payload.
// Elements are created by the insertion methods of List and are only
// valid while linked; the handle is what Unlink takes back.
type Element[T any] struct {
	payload T
	prev    *Element[T]
	next    *Element[T]

	// list is a non-owning back-reference, nil once the element is removed.
	list *List[T]
}

// Value returns the payload carried by the element, or the zero value
// once the element has been removed.
func (e *Element[T]) Value() T {
	return e.payload
}

// Next returns the following element or nil.
func (e *Element[T]) Next() *Element[T] {
	if e.list == nil {
		return nil
	}
	return e.next
}

// Prev returns the preceding element or nil.
func (e *Element[T]) Prev() *Element[T] {
	if e.list == nil {
		return nil
	}
	return e.prev
}

// Linked reports whether the element is still part of a queue.
func (e *Element[T]) Linked() bool {
	return e != nil && e.list != nil
}

// isAbsent reports whether v is a nil reference.
func isAbsent[T any](v T) bool {
	a := any(v)
	if a == nil {
		return true
	}

	rv := reflect.ValueOf(a)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func,
		reflect.Chan, reflect.UnsafePointer:
		return rv.IsNil()
	}
	return false
}
