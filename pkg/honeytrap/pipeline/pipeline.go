// Package pipeline buffers finished attacks and delivers them to sinks.
package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/huynhanx03/attackq/pkg/datastructs/queue"
	"github.com/huynhanx03/attackq/pkg/honeytrap/record"
	"github.com/huynhanx03/attackq/pkg/settings"
	"github.com/huynhanx03/attackq/pkg/sink"
	"github.com/huynhanx03/attackq/pkg/utils"
)

const closeFlushTimeout = 5 * time.Second

var (
	ErrClosed = errors.New("pipeline: closed")
	ErrFull   = errors.New("pipeline: pending queue full")
)

// Stats is a point-in-time view of the pipeline counters.
type Stats struct {
	Pending   int   `json:"pending"`
	Retrying  int   `json:"retrying"`
	Delivered int64 `json:"delivered"`
	Evicted   int64 `json:"evicted"`
	Dropped   int64 `json:"dropped"`
}

// delivery is an attack still owed to some sinks.
type delivery struct {
	attack   *record.Attack
	owed     []int // indexes into Pipeline.sinks
	attempts int
}

// Pipeline holds submitted attacks in a bounded pending queue and flushes
// them to every sink. Attacks a sink rejected wait in a separate retry list
// and go out ahead of new attacks on the next flush.
type Pipeline struct {
	pending *queue.Synchronized[*record.Attack]

	retryMu  sync.Mutex
	retrying *queue.List[*delivery]

	flushMu sync.Mutex
	closed  atomic.Bool

	sinks       []sink.Sink
	allSinks    []int
	maxPending  int
	maxRetrying int
	maxRetries  int
	batch       int
	interval    time.Duration
	log         *zap.Logger

	delivered atomic.Int64
	evicted   atomic.Int64
	dropped   atomic.Int64

	onDone func(*record.Attack)
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithOnDone registers a hook called once per attack accepted by Submit,
// when the pipeline is finished with it: delivered, dropped, evicted or
// discarded on Close. It runs before the attack is released and may be
// called with internal locks held, so it must not call back into the
// pipeline.
func WithOnDone(fn func(*record.Attack)) Option {
	return func(p *Pipeline) {
		p.onDone = fn
	}
}

// New creates a pipeline delivering to sinks. The pipeline does not own the
// sinks; close them after Close returns.
func New(cfg settings.Queue, sinks []sink.Sink, log *zap.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		sinks:       sinks,
		allSinks:    make([]int, len(sinks)),
		maxPending:  cfg.MaxPending,
		maxRetrying: cfg.MaxRetrying,
		maxRetries:  cfg.MaxRetries,
		batch:       cfg.FlushBatch,
		interval:    utils.ToDurationMs(cfg.FlushInterval),
		log:         log.Named("pipeline"),
	}
	for i := range p.allSinks {
		p.allSinks[i] = i
	}
	for _, opt := range opts {
		opt(p)
	}

	p.pending = queue.NewSynchronized(
		queue.WithOverflowPolicy[*record.Attack](queue.ParseOverflowPolicy(cfg.OverflowPolicy)),
		queue.WithOnEvict(p.onEvictPending),
	)
	p.retrying = queue.New(
		queue.WithOverflowPolicy[*delivery](queue.EvictOldest),
		queue.WithOnEvict(p.onEvictRetry),
	)
	return p
}

// Submit queues a for delivery. With the evict_oldest policy the oldest
// pending attack makes room; otherwise a full queue returns ErrFull.
func (p *Pipeline) Submit(a *record.Attack) error {
	if p.closed.Load() {
		return ErrClosed
	}

	_, err := p.pending.BoundedInsert(a, p.maxPending)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, queue.ErrCapacityExceeded):
		p.dropped.Add(1)
		return ErrFull
	case errors.Is(err, queue.ErrQueueFreed):
		return ErrClosed
	default:
		return errors.Wrap(err, "failed to queue attack")
	}
}

func (p *Pipeline) onEvictPending(a *record.Attack) {
	p.evicted.Add(1)
	p.log.Warn("pending attack evicted", zap.Int64("id", a.ID))
	p.finish(a, true)
}

func (p *Pipeline) onEvictRetry(d *delivery) {
	p.dropped.Add(1)
	p.log.Warn("retry list full, attack dropped", zap.Int64("id", d.attack.ID), zap.Int("attempts", d.attempts))
	p.finish(d.attack, true)
}

// finish hands a to the OnDone hook and, for discarded attacks, drops its
// payload bytes.
func (p *Pipeline) finish(a *record.Attack, discard bool) {
	if p.onDone != nil {
		p.onDone(a)
	}
	if discard {
		a.Release()
	}
}

// Flush delivers queued retries and up to FlushBatch pending attacks (all of
// them when FlushBatch is 0). It returns the number of attacks that reached
// every sink.
func (p *Pipeline) Flush(ctx context.Context) (int, error) {
	p.flushMu.Lock()
	defer p.flushMu.Unlock()

	if p.closed.Load() {
		return 0, ErrClosed
	}
	return p.flush(ctx)
}

func (p *Pipeline) flush(ctx context.Context) (int, error) {
	batch := p.takeRetries()
	for _, a := range p.pending.Drain(p.batch) {
		batch = append(batch, &delivery{attack: a, owed: p.allSinks})
	}
	if len(batch) == 0 {
		return 0, nil
	}

	errs := p.deliver(ctx, batch)

	delivered := 0
	for i, d := range batch {
		var owed []int
		for _, k := range d.owed {
			if err := errs[i][k]; err != nil {
				owed = append(owed, k)
				p.log.Debug("delivery failed",
					zap.Int64("id", d.attack.ID),
					zap.String("sink", p.sinks[k].Name()),
					zap.Error(err),
				)
			}
		}

		if len(owed) == 0 {
			delivered++
			p.delivered.Add(1)
			p.finish(d.attack, false)
			continue
		}

		d.owed = owed
		d.attempts++
		p.retry(d)
	}

	return delivered, ctx.Err()
}

// deliver writes the batch to every sink in parallel. Each sink gets the
// attacks in batch order. errs[i][k] is the result of batch[i] on sink k.
func (p *Pipeline) deliver(ctx context.Context, batch []*delivery) [][]error {
	errs := make([][]error, len(batch))
	for i := range errs {
		errs[i] = make([]error, len(p.sinks))
	}

	var g errgroup.Group
	for k, s := range p.sinks {
		g.Go(func() error {
			for i, d := range batch {
				if !owes(d, k) {
					continue
				}
				if err := ctx.Err(); err != nil {
					errs[i][k] = err
					continue
				}
				errs[i][k] = s.Write(ctx, d.attack)
			}
			return nil
		})
	}
	_ = g.Wait()

	return errs
}

func owes(d *delivery, k int) bool {
	for _, o := range d.owed {
		if o == k {
			return true
		}
	}
	return false
}

func (p *Pipeline) takeRetries() []*delivery {
	p.retryMu.Lock()
	defer p.retryMu.Unlock()

	out := make([]*delivery, 0, p.retrying.Len())
	for !p.retrying.IsEmpty() {
		d, err := p.retrying.CutHead()
		if err != nil {
			break
		}
		out = append(out, d)
	}
	return out
}

func (p *Pipeline) retry(d *delivery) {
	if d.attempts > p.maxRetries {
		p.dropped.Add(1)
		p.log.Error("attack dropped after retries",
			zap.Int64("id", d.attack.ID),
			zap.Int("attempts", d.attempts),
		)
		p.finish(d.attack, true)
		return
	}

	p.retryMu.Lock()
	defer p.retryMu.Unlock()

	if _, err := p.retrying.BoundedInsert(d, p.maxRetrying); err != nil {
		p.dropped.Add(1)
		p.log.Error("failed to queue retry", zap.Int64("id", d.attack.ID), zap.Error(err))
		p.finish(d.attack, true)
	}
}

// Run flushes every FlushInterval until ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	if p.interval <= 0 {
		return errors.New("pipeline: flush interval must be positive")
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := p.Flush(ctx)
			if errors.Is(err, ErrClosed) {
				return nil
			}
			if n > 0 {
				p.log.Debug("flushed", zap.Int("delivered", n))
			}
		}
	}
}

// Close flushes once more, then discards whatever is still queued.
// Later calls are no-ops.
func (p *Pipeline) Close() error {
	p.flushMu.Lock()
	defer p.flushMu.Unlock()

	if p.closed.Load() {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), closeFlushTimeout)
	defer cancel()
	_, err := p.flush(ctx)

	p.closed.Store(true)

	p.pending.Free(func(a *record.Attack) {
		p.dropped.Add(1)
		p.log.Warn("discarding pending attack", zap.Int64("id", a.ID))
		p.finish(a, true)
	})

	p.retryMu.Lock()
	p.retrying.Free(func(d *delivery) {
		p.dropped.Add(1)
		p.log.Warn("discarding undelivered attack", zap.Int64("id", d.attack.ID), zap.Int("attempts", d.attempts))
		p.finish(d.attack, true)
	})
	p.retryMu.Unlock()

	return err
}

// Stats returns the current queue sizes and counters.
func (p *Pipeline) Stats() Stats {
	p.retryMu.Lock()
	retrying := p.retrying.Len()
	p.retryMu.Unlock()

	return Stats{
		Pending:   p.pending.Len(),
		Retrying:  retrying,
		Delivered: p.delivered.Load(),
		Evicted:   p.evicted.Load(),
		Dropped:   p.dropped.Load(),
	}
}
