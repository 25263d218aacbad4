package queue_test

import (
	"fmt"

	"github.com/huynhanx03/attackq/pkg/datastructs/queue"
)

func ExampleList_BoundedInsert() {
	l := queue.New(
		queue.WithOverflowPolicy[string](queue.EvictOldest),
		queue.WithOnEvict(func(s string) { fmt.Println("evicted", s) }),
	)

	for _, s := range []string{"a", "b", "c"} {
		_, _ = l.BoundedInsert(s, 2)
	}

	for s := range l.All() {
		fmt.Println(s)
	}
	// Output:
	// evicted a
	// b
	// c
}

func ExampleList_Unlink() {
	l := queue.New[string]()
	_, _ = l.Append("first")
	mid, _ := l.Append("second")
	_, _ = l.Append("third")

	payload, _ := l.Unlink(mid)
	fmt.Println(payload, l.Len())
	// Output: second 2
}
