package main

import (
	"context"
	"io"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/huynhanx03/attackq/pkg/honeytrap/pipeline"
	"github.com/huynhanx03/attackq/pkg/honeytrap/tracker"
	"github.com/huynhanx03/attackq/pkg/logger"
	"github.com/huynhanx03/attackq/pkg/server"
	"github.com/huynhanx03/attackq/pkg/settings"
	"github.com/huynhanx03/attackq/pkg/sink"
	"github.com/huynhanx03/attackq/pkg/timer"
	"github.com/huynhanx03/attackq/pkg/unique"
)

const (
	clockResolution = time.Millisecond
	expireInterval  = time.Second
)

func loadConfig(path string) (*settings.Config, error) {
	cfg, err := settings.Load(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load config")
	}
	return cfg, nil
}

func run(ctx context.Context, configPath string, input io.Reader) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Logger)
	if err != nil {
		return errors.Wrap(err, "failed to build logger")
	}
	defer func() { _ = log.Sync() }()

	clock := timer.NewCachedTimer(clockResolution)
	defer clock.Stop()

	ids, err := unique.NewSnowflakeNode(cfg.IDs, clock)
	if err != nil {
		return errors.Wrap(err, "failed to build id generator")
	}

	sinks, err := sink.New(cfg, log)
	if err != nil {
		return err
	}
	if len(sinks) == 0 {
		log.Warn("no sinks enabled, attacks will only be counted")
	}

	trk := tracker.New(cfg.Tracker, clock, ids, log)
	in := newIngester(trk, ids, log)
	pipe := pipeline.New(cfg.Queue, sinks, log, pipeline.WithOnDone(in.done))

	g, gctx := errgroup.WithContext(ctx)
	runCtx, stop := context.WithCancel(gctx)
	defer stop()

	g.Go(func() error { return pipe.Run(runCtx) })
	g.Go(func() error { return expireLoop(runCtx, trk) })
	if cfg.Server.Enabled {
		srv := server.New(cfg.Server, pipe, trk, log)
		g.Go(func() error { return srv.Run(runCtx) })
	}

	// A blocked stdin read cannot be interrupted, so the reader runs outside
	// the group and is abandoned on shutdown.
	ingestDone := make(chan error, 1)
	go func() {
		ingestDone <- in.Run(runCtx, input, pipe)
	}()
	g.Go(func() error {
		select {
		case err := <-ingestDone:
			stop()
			return err
		case <-runCtx.Done():
			return nil
		}
	})

	runErr := g.Wait()

	if n := trk.Shutdown(); n > 0 {
		log.Info("tracker shut down", zap.Int("dropped", n))
	}
	if err := pipe.Close(); err != nil {
		log.Warn("final flush incomplete", zap.Error(err))
	}
	if err := sink.CloseAll(sinks); err != nil {
		log.Warn("failed to close sinks", zap.Error(err))
	}

	st := pipe.Stats()
	log.Info("attackq stopped",
		zap.Int64("delivered", st.Delivered),
		zap.Int64("evicted", st.Evicted),
		zap.Int64("dropped", st.Dropped),
	)
	return runErr
}

func expireLoop(ctx context.Context, trk *tracker.Tracker) error {
	ticker := time.NewTicker(expireInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			trk.Expire()
		}
	}
}
