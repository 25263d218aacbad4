// Package sink delivers finished attack records to their destinations.
package sink

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/huynhanx03/attackq/pkg/honeytrap/record"
	"github.com/huynhanx03/attackq/pkg/settings"
)

// Sink receives attack records. Implementations must be safe for
// concurrent use; the pipeline writes to every sink in parallel.
type Sink interface {
	Name() string
	Write(ctx context.Context, a *record.Attack) error
	Close() error
}

// New builds every sink enabled in cfg. On error, sinks already built are
// closed.
func New(cfg *settings.Config, log *zap.Logger) ([]Sink, error) {
	var sinks []Sink

	fail := func(err error) ([]Sink, error) {
		for _, s := range sinks {
			_ = s.Close()
		}
		return nil, err
	}

	if cfg.LogJSON.Enabled {
		sinks = append(sinks, NewFile(cfg.LogJSON))
	}

	if cfg.Redis.Enabled {
		r, err := NewRedis(&cfg.Redis)
		if err != nil {
			return fail(errors.Wrap(err, "redis sink"))
		}
		sinks = append(sinks, r)
	}

	if cfg.Kafka.Enabled {
		k, err := NewKafka(&cfg.Kafka)
		if err != nil {
			return fail(errors.Wrap(err, "kafka sink"))
		}
		sinks = append(sinks, k)
	}

	if cfg.Elasticsearch.Enabled {
		es, err := NewElasticsearch(&cfg.Elasticsearch)
		if err != nil {
			return fail(errors.Wrap(err, "elasticsearch sink"))
		}
		sinks = append(sinks, es)
	}

	if cfg.MongoDB.Enabled {
		m, err := NewMongo(&cfg.MongoDB)
		if err != nil {
			return fail(errors.Wrap(err, "mongodb sink"))
		}
		sinks = append(sinks, m)
	}

	for _, s := range sinks {
		log.Info("sink enabled", zap.String("sink", s.Name()))
	}
	return sinks, nil
}

// CloseAll closes every sink and returns the first error.
func CloseAll(sinks []Sink) error {
	var first error
	for _, s := range sinks {
		if err := s.Close(); err != nil && first == nil {
			first = errors.Wrapf(err, "close %s", s.Name())
		}
	}
	return first
}
