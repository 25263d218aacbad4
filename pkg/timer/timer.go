package timer

import (
	"sync"
	"sync/atomic"
	"time"
)

// Timer is the clock the connection tracker and ID generator read from.
type Timer interface {
	Now() time.Time
	Stop()
}

// System reads the wall clock on every call.
type System struct{}

func (System) Now() time.Time { return time.Now() }

func (System) Stop() {}

// CachedTimer refreshes a shared timestamp every step.
// Now is a single atomic load, so hot paths that stamp every record do not
// pay for a clock read each time; precision is bounded by step.
type CachedTimer struct {
	now      atomic.Int64 // unix nanos
	step     time.Duration
	ticker   *time.Ticker
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

func NewCachedTimer(step time.Duration) *CachedTimer {
	t := &CachedTimer{
		step:   step,
		ticker: time.NewTicker(step),
		done:   make(chan struct{}),
	}
	t.now.Store(time.Now().UnixNano())

	t.wg.Add(1)
	go t.run()

	return t
}

func (t *CachedTimer) run() {
	defer t.wg.Done()

	for {
		select {
		case tick := <-t.ticker.C:
			t.now.Store(tick.UnixNano())
		case <-t.done:
			t.ticker.Stop()
			return
		}
	}
}

func (t *CachedTimer) Now() time.Time {
	return time.Unix(0, t.now.Load())
}

// Stop halts the refresh goroutine. It is safe to call more than once.
func (t *CachedTimer) Stop() {
	t.stopOnce.Do(func() {
		close(t.done)
		t.wg.Wait()
	})
}
