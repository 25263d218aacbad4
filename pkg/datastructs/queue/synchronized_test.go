package queue

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSynchronized_Operations(t *testing.T) {
	q := NewSynchronized[*record]()

	a, err := q.Append(rec("a"))
	require.NoError(t, err)
	_, err = q.Prepend(rec("z"))
	require.NoError(t, err)
	_, err = q.BoundedInsert(rec("b"), 0)
	require.NoError(t, err)
	assert.Equal(t, 3, q.Len())

	r, err := q.Unlink(a)
	require.NoError(t, err)
	assert.Equal(t, "a", r.id)

	r, err = q.CutTail()
	require.NoError(t, err)
	assert.Equal(t, "b", r.id)

	r, err = q.CutHead()
	require.NoError(t, err)
	assert.Equal(t, "z", r.id)

	_, err = q.CutHead()
	assert.ErrorIs(t, err, ErrEmptyQueue)
}

func TestSynchronized_Drain(t *testing.T) {
	tests := []struct {
		name     string
		max      int
		wantLen  int
		wantLeft int
	}{
		{"all", 0, 5, 0},
		{"negative_is_all", -1, 5, 0},
		{"partial", 2, 2, 3},
		{"more_than_len", 10, 5, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := NewSynchronized[int]()
			for i := 0; i < 5; i++ {
				_, _ = q.Append(i)
			}

			got := q.Drain(tt.max)
			assert.Len(t, got, tt.wantLen)
			assert.Equal(t, tt.wantLeft, q.Len())
			for i, v := range got {
				assert.Equal(t, i, v, "drain must preserve FIFO order")
			}
		})
	}
}

func TestSynchronized_BoundedEvict(t *testing.T) {
	var evicted atomic.Int32
	q := NewSynchronized(
		WithOverflowPolicy[int](EvictOldest),
		WithOnEvict(func(int) { evicted.Add(1) }),
	)

	for i := 0; i < 10; i++ {
		_, err := q.BoundedInsert(i, 4)
		require.NoError(t, err)
	}
	assert.Equal(t, 4, q.Len())
	assert.Equal(t, int32(6), evicted.Load())
}

func TestSynchronized_Free(t *testing.T) {
	q := NewSynchronized[int]()
	for i := 0; i < 3; i++ {
		_, _ = q.Append(i)
	}

	var got []int
	q.Free(func(v int) { got = append(got, v) })
	assert.Equal(t, []int{0, 1, 2}, got)

	_, err := q.Append(1)
	assert.ErrorIs(t, err, ErrQueueFreed)
}

func TestSynchronized_Concurrent(t *testing.T) {
	const (
		producers   = 8
		perProducer = 1000
	)

	q := NewSynchronized[int]()
	var wg sync.WaitGroup
	var consumed atomic.Int64

	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				if i%2 == 0 {
					_, _ = q.Append(p*perProducer + i)
				} else {
					_, _ = q.Prepend(p*perProducer + i)
				}
			}
		}(p)
	}

	for c := 0; c < producers/2; c++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				if _, err := q.CutHead(); err == nil {
					consumed.Add(1)
				}
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, producers*perProducer, int(consumed.Load())+q.Len())
	checkLinks(t, q.list)
}
