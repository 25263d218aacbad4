package main

import (
	"bufio"
	"context"
	"io"
	"net/netip"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/huynhanx03/attackq/pkg/honeytrap/pipeline"
	"github.com/huynhanx03/attackq/pkg/honeytrap/record"
	"github.com/huynhanx03/attackq/pkg/honeytrap/tracker"
)

const (
	initialLineBuffer = 64 * 1024
	maxLineBytes      = 16 * 1024 * 1024
)

type idGenerator interface {
	Generate() int64
}

type submitter interface {
	Submit(a *record.Attack) error
}

// ingester replays attack documents into the pipeline. Every attack holds a
// tracker connection from ingest until the pipeline reports it done, so
// max_connections bounds the attacks in flight and lines beyond it are
// refused.
type ingester struct {
	trk *tracker.Tracker
	ids idGenerator
	log *zap.Logger

	mu    sync.Mutex
	conns map[*record.Attack]int64

	accepted int
	skipped  int
	refused  int
}

func newIngester(trk *tracker.Tracker, ids idGenerator, log *zap.Logger) *ingester {
	return &ingester{
		trk:   trk,
		ids:   ids,
		log:   log.Named("ingest"),
		conns: make(map[*record.Attack]int64),
	}
}

// Run reads r until EOF or ctx is done. Malformed and refused lines are
// logged and skipped.
func (in *ingester) Run(ctx context.Context, r io.Reader, pipe submitter) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, initialLineBuffer), maxLineBytes)

	line := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil
		}
		line++

		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		err := in.ingest(raw, pipe)
		switch {
		case err == nil:
			in.accepted++
		case errors.Is(err, pipeline.ErrClosed), errors.Is(err, tracker.ErrClosed):
			return nil
		case errors.Is(err, tracker.ErrTooManyConnections):
			in.refused++
			in.skipped++
			in.log.Warn("attack refused", zap.Int("line", line), zap.Int("active", in.trk.Len()))
		default:
			in.skipped++
			in.log.Warn("attack skipped", zap.Int("line", line), zap.Error(err))
		}
	}

	in.log.Info("input finished",
		zap.Int("accepted", in.accepted),
		zap.Int("skipped", in.skipped),
		zap.Int("refused", in.refused),
	)
	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, "failed to read input")
	}
	return nil
}

func (in *ingester) ingest(raw []byte, pipe submitter) error {
	a := &record.Attack{}
	if err := json.Unmarshal(raw, a); err != nil {
		return errors.Wrap(err, "malformed attack")
	}
	if a.ID == 0 {
		a.ID = in.ids.Generate()
	}

	c := a.AttackConn
	conn, err := in.trk.Open(c.Protocol,
		netip.AddrPortFrom(c.RemoteAddr, c.RemotePort),
		netip.AddrPortFrom(c.LocalAddr, c.LocalPort),
	)
	if err != nil {
		return err
	}
	if err := in.trk.Touch(conn.ID, c.Payload.Len()); err != nil {
		return err
	}

	in.mu.Lock()
	in.conns[a] = conn.ID
	in.mu.Unlock()

	if err := pipe.Submit(a); err != nil {
		in.done(a)
		return err
	}
	return nil
}

// done closes the connection held by a. It is the pipeline's OnDone hook.
func (in *ingester) done(a *record.Attack) {
	in.mu.Lock()
	id, ok := in.conns[a]
	delete(in.conns, a)
	in.mu.Unlock()

	if !ok {
		return
	}
	if _, err := in.trk.Close(id); err != nil {
		// Expired while queued, or the tracker is already shut down.
		in.log.Debug("connection already gone", zap.Int64("attack", a.ID), zap.Error(err))
	}
}
