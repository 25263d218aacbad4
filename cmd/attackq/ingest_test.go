package main

import (
	"bufio"
	"bytes"
	"context"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/huynhanx03/attackq/pkg/honeytrap/pipeline"
	"github.com/huynhanx03/attackq/pkg/honeytrap/record"
	"github.com/huynhanx03/attackq/pkg/honeytrap/tracker"
	"github.com/huynhanx03/attackq/pkg/settings"
	"github.com/huynhanx03/attackq/pkg/timer"
)

type seq struct{ next int64 }

func (s *seq) Generate() int64 {
	s.next++
	return s.next
}

func attackLine(t *testing.T, id int64) string {
	t.Helper()
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	conn := record.Connection{
		Protocol:   record.ProtocolTCP,
		RemoteAddr: netip.MustParseAddr("198.51.100.4"),
		RemotePort: 51234,
		LocalAddr:  netip.MustParseAddr("192.0.2.10"),
		LocalPort:  23,
		Payload:    record.NewPayload([]byte("root\r\nxc3511\r\n")),
	}
	a := &record.Attack{
		ID:            id,
		StartTime:     start,
		EndTime:       start.Add(3 * time.Second),
		AttackConn:    conn,
		ProxyConn:     conn,
		OperationMode: "normal",
	}
	raw, err := json.Marshal(a)
	require.NoError(t, err)
	return string(raw)
}

// newTestIngester wires an ingester to a pipeline the way run does.
func newTestIngester(t *testing.T, q settings.Queue, maxConns int, ids idGenerator) (*ingester, *pipeline.Pipeline, *tracker.Tracker) {
	t.Helper()
	log := zaptest.NewLogger(t)
	trk := tracker.New(settings.Tracker{MaxConnections: maxConns}, timer.System{}, &seq{}, log)
	in := newIngester(trk, ids, log)
	pipe := pipeline.New(q, nil, log, pipeline.WithOnDone(in.done))
	return in, pipe, trk
}

func TestIngester_Run(t *testing.T) {
	ids := &seq{next: 100}
	in, pipe, trk := newTestIngester(t, settings.Queue{MaxPending: 16, MaxRetrying: 4, MaxRetries: 1}, 4, ids)

	input := strings.Join([]string{
		attackLine(t, 7),
		"",
		"{not json",
		attackLine(t, 0),
	}, "\n")

	require.NoError(t, in.Run(context.Background(), strings.NewReader(input), pipe))

	assert.Equal(t, 2, in.accepted)
	assert.Equal(t, 1, in.skipped)
	assert.Zero(t, in.refused)
	assert.Equal(t, 2, pipe.Stats().Pending)
	assert.Equal(t, 2, trk.Len(), "queued attacks hold their connections")
	assert.Equal(t, int64(101), ids.next, "only the attack without an ID gets a new one")

	n, err := pipe.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Zero(t, trk.Len(), "delivered attacks release their connections")
}

func TestIngester_MaxConnections(t *testing.T) {
	in, pipe, trk := newTestIngester(t, settings.Queue{MaxPending: 16}, 1, &seq{})
	ctx := context.Background()

	// ===== Limit reached =====
	input := strings.Join([]string{attackLine(t, 1), attackLine(t, 2), attackLine(t, 3)}, "\n")
	require.NoError(t, in.Run(ctx, strings.NewReader(input), pipe))

	assert.Equal(t, 1, in.accepted)
	assert.Equal(t, 2, in.refused)
	assert.Equal(t, 2, in.skipped, "refused lines count as skipped")
	assert.Equal(t, 1, trk.Len())
	assert.Equal(t, 1, pipe.Stats().Pending)

	// ===== Delivery frees the slot =====
	_, err := pipe.Flush(ctx)
	require.NoError(t, err)
	assert.Zero(t, trk.Len())

	require.NoError(t, in.Run(ctx, strings.NewReader(attackLine(t, 4)), pipe))
	assert.Equal(t, 2, in.accepted)
	assert.Equal(t, 1, trk.Len())
}

func TestIngester_ReleasesConnections(t *testing.T) {
	tests := []struct {
		name     string
		queue    settings.Queue
		attacks  int
		accepted int
		open     int
	}{
		{
			name:     "evicted_by_newer_attack",
			queue:    settings.Queue{MaxPending: 1, OverflowPolicy: "evict_oldest"},
			attacks:  3,
			accepted: 3,
			open:     1,
		},
		{
			name:     "rejected_when_full",
			queue:    settings.Queue{MaxPending: 1, OverflowPolicy: "reject_newest"},
			attacks:  3,
			accepted: 1,
			open:     1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, pipe, trk := newTestIngester(t, tt.queue, 8, &seq{})

			lines := make([]string, 0, tt.attacks)
			for i := 1; i <= tt.attacks; i++ {
				lines = append(lines, attackLine(t, int64(i)))
			}
			require.NoError(t, in.Run(context.Background(), strings.NewReader(strings.Join(lines, "\n")), pipe))

			assert.Equal(t, tt.accepted, in.accepted)
			assert.Equal(t, tt.open, trk.Len())

			require.NoError(t, pipe.Close())
			assert.Zero(t, trk.Len(), "close finishes the rest")
			assert.Empty(t, in.conns)
		})
	}
}

func TestIngester_StopsWhenClosed(t *testing.T) {
	in, pipe, trk := newTestIngester(t, settings.Queue{MaxPending: 16}, 4, &seq{})
	require.NoError(t, pipe.Close())

	input := attackLine(t, 1) + "\n" + attackLine(t, 2)
	require.NoError(t, in.Run(context.Background(), strings.NewReader(input), pipe))
	assert.Zero(t, in.accepted)
	assert.Zero(t, in.skipped)
	assert.Zero(t, trk.Len(), "a refused submit closes its connection")
}

func TestRun_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "attacks.json")
	cfgPath := filepath.Join(dir, "config.yaml")
	cfg := "logger:\n  log_level: error\n" +
		"queue:\n  flush_interval: 20\n" +
		"log_json:\n  enabled: true\n  logfile: " + out + "\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o600))

	input := attackLine(t, 1) + "\n" + attackLine(t, 2) + "\n"
	require.NoError(t, run(context.Background(), cfgPath, strings.NewReader(input)))

	fh, err := os.Open(out)
	require.NoError(t, err)
	defer fh.Close()

	var got []int64
	scanner := bufio.NewScanner(fh)
	for scanner.Scan() {
		var a record.Attack
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &a))
		got = append(got, a.ID)
	}
	assert.Equal(t, []int64{1, 2}, got)
}

func TestCheckCmd(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("queue:\n  max_pending: 9\n"), 0o600))

	var buf bytes.Buffer
	root := newRootCmd()
	root.SetOut(&buf)
	root.SetArgs([]string{"check", "--config", cfgPath})
	require.NoError(t, root.Execute())
	assert.Contains(t, buf.String(), "max_pending=9")

	root = newRootCmd()
	root.SetArgs([]string{"check", "--config", filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, root.Execute())
}
