package sink

import (
	"context"
	"io"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/natefinch/lumberjack"
	"github.com/pkg/errors"

	"github.com/huynhanx03/attackq/pkg/honeytrap/record"
	"github.com/huynhanx03/attackq/pkg/settings"
)

var _ Sink = (*File)(nil)

// File appends one JSON document per attack to a rotated log file.
type File struct {
	mu sync.Mutex
	w  io.WriteCloser
}

// NewFile opens the attack log described by cfg. The file is created lazily
// on first write.
func NewFile(cfg settings.LogJSON) *File {
	return newFileWriter(&lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	})
}

func newFileWriter(w io.WriteCloser) *File {
	return &File{w: w}
}

func (f *File) Name() string { return "file" }

// Write appends a as a single line.
func (f *File) Write(_ context.Context, a *record.Attack) error {
	line, err := json.Marshal(a)
	if err != nil {
		return errors.Wrap(err, "failed to convert attack to JSON")
	}
	line = append(line, '\n')

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, err := f.w.Write(line); err != nil {
		return errors.Wrap(err, "could not write to log file")
	}
	return nil
}

func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.w.Close()
}
