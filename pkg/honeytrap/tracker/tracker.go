package tracker

import (
	"net/netip"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/huynhanx03/attackq/pkg/datastructs/queue"
	"github.com/huynhanx03/attackq/pkg/honeytrap/record"
	"github.com/huynhanx03/attackq/pkg/settings"
	"github.com/huynhanx03/attackq/pkg/timer"
	"github.com/huynhanx03/attackq/pkg/utils"
)

var (
	ErrTooManyConnections = errors.New("tracker: connection limit reached")
	ErrUnknownConnection  = errors.New("tracker: unknown connection")
	ErrClosed             = errors.New("tracker: closed")
)

// IDGenerator hands out connection IDs.
type IDGenerator interface {
	Generate() int64
}

// Conn is an active attacker connection.
type Conn struct {
	ID       int64
	Protocol record.Protocol
	Remote   netip.AddrPort
	Local    netip.AddrPort
	Opened   time.Time
	LastSeen time.Time
	Bytes    int
}

// Tracker keeps active connections in least-recently-seen order.
// Each connection's queue handle is indexed by ID, so Touch and Close are O(1):
// the element is unlinked and, for Touch, re-appended at the tail. Expiry
// only ever looks at the head.
//
// Tracker is safe for concurrent use.
type Tracker struct {
	mu      sync.Mutex
	conns   *queue.List[*Conn]
	index   map[int64]*queue.Element[*Conn]
	maxConn int
	idle    time.Duration
	clock   timer.Timer
	ids     IDGenerator
	log     *zap.Logger
	closed  bool
}

// New creates a tracker bounded by cfg.MaxConnections.
func New(cfg settings.Tracker, clock timer.Timer, ids IDGenerator, log *zap.Logger) *Tracker {
	return &Tracker{
		conns:   queue.New[*Conn](),
		index:   make(map[int64]*queue.Element[*Conn]),
		maxConn: cfg.MaxConnections,
		idle:    utils.ToDuration(cfg.IdleTimeout),
		clock:   clock,
		ids:     ids,
		log:     log.Named("tracker"),
	}
}

// Open registers a new connection. It fails with ErrTooManyConnections when
// the tracker is at capacity.
func (t *Tracker) Open(proto record.Protocol, remote, local netip.AddrPort) (*Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, ErrClosed
	}

	now := t.clock.Now()
	c := &Conn{
		ID:       t.ids.Generate(),
		Protocol: proto,
		Remote:   remote,
		Local:    local,
		Opened:   now,
		LastSeen: now,
	}

	e, err := t.conns.BoundedInsert(c, t.maxConn)
	if errors.Is(err, queue.ErrCapacityExceeded) {
		t.log.Warn("connection refused", zap.Stringer("remote", remote), zap.Int("active", t.conns.Len()))
		return nil, ErrTooManyConnections
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to track connection")
	}

	t.index[c.ID] = e
	t.log.Debug("connection opened", zap.Int64("id", c.ID), zap.Stringer("remote", remote))
	return c, nil
}

// Touch records n bytes of activity and moves the connection to the tail.
func (t *Tracker) Touch(id int64, n int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.index[id]
	if !ok {
		return ErrUnknownConnection
	}

	c, err := t.conns.Unlink(e)
	if err != nil {
		return errors.Wrap(err, "failed to touch connection")
	}

	c.LastSeen = t.clock.Now()
	c.Bytes += n

	// Re-append is unbounded: the connection already held a slot.
	e, err = t.conns.Append(c)
	if err != nil {
		delete(t.index, id)
		return errors.Wrap(err, "failed to touch connection")
	}
	t.index[id] = e
	return nil
}

// Close stops tracking a connection and returns it.
func (t *Tracker) Close(id int64) (*Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.index[id]
	if !ok {
		return nil, ErrUnknownConnection
	}
	delete(t.index, id)

	c, err := t.conns.Unlink(e)
	if err != nil {
		return nil, errors.Wrap(err, "failed to close connection")
	}

	t.log.Debug("connection closed", zap.Int64("id", id), zap.Int("bytes", c.Bytes))
	return c, nil
}

// Expire drops connections idle for longer than the idle timeout and
// returns them, oldest first.
func (t *Tracker) Expire() []*Conn {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.idle <= 0 {
		return nil
	}

	deadline := t.clock.Now().Add(-t.idle)
	var expired []*Conn
	for head := t.conns.Front(); head != nil && head.Value().LastSeen.Before(deadline); head = t.conns.Front() {
		c, err := t.conns.CutHead()
		if err != nil {
			break
		}
		delete(t.index, c.ID)
		expired = append(expired, c)
	}

	if len(expired) > 0 {
		t.log.Info("expired idle connections", zap.Int("count", len(expired)))
	}
	return expired
}

// Len returns the number of active connections.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conns.Len()
}

// Snapshot copies the active connections, least recently seen first.
func (t *Tracker) Snapshot() []Conn {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Conn, 0, t.conns.Len())
	for c := range t.conns.All() {
		out = append(out, *c)
	}
	return out
}

// Shutdown tears the tracker down, logging every connection still open.
// It returns how many were dropped.
func (t *Tracker) Shutdown() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return 0
	}
	t.closed = true

	dropped := 0
	t.conns.Free(func(c *Conn) {
		dropped++
		t.log.Info("dropping open connection",
			zap.Int64("id", c.ID),
			zap.Stringer("remote", c.Remote),
			zap.Duration("age", t.clock.Now().Sub(c.Opened)),
		)
	})
	clear(t.index)
	return dropped
}
