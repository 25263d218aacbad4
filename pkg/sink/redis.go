package sink

import (
	"context"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/pkg/errors"
	redisV9 "github.com/redis/go-redis/v9"

	"github.com/huynhanx03/attackq/pkg/honeytrap/record"
	"github.com/huynhanx03/attackq/pkg/settings"
	"github.com/huynhanx03/attackq/pkg/utils"
)

const (
	defaultPoolSize        = 10
	defaultMinIdleConns    = 2
	defaultPoolTimeout     = 5
	defaultDialTimeout     = 5
	defaultReadTimeout     = 3
	defaultWriteTimeout    = 3
	defaultMaxRetries      = 3
	defaultMinRetryBackoff = 300 // millis
	defaultMaxRetryBackoff = 500 // millis
	defaultRedisPort       = 6379
)

var ErrPingFailed = errors.New("redis: ping failed")

var _ Sink = (*Redis)(nil)

// listPusher is the slice of the go-redis client the sink needs.
type listPusher interface {
	RPush(ctx context.Context, key string, values ...interface{}) *redisV9.IntCmd
	Close() error
}

// Redis pushes each attack document onto a Redis list, for consumers that
// BLPOP it off the other end.
type Redis struct {
	client listPusher
	key    string
}

// NewRedis connects to Redis and verifies the connection with a ping.
func NewRedis(cfg *settings.Redis) (*Redis, error) {
	setDefaultRedisConfig(cfg)

	client := redisV9.NewClient(&redisV9.Options{
		Addr:            fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:        cfg.Password,
		DB:              cfg.Database,
		PoolSize:        cfg.PoolSize,
		MinIdleConns:    cfg.MinIdleConns,
		MaxRetries:      cfg.MaxRetries,
		DialTimeout:     utils.ToDuration(cfg.DialTimeout),
		ReadTimeout:     utils.ToDuration(cfg.ReadTimeout),
		WriteTimeout:    utils.ToDuration(cfg.WriteTimeout),
		PoolTimeout:     utils.ToDuration(cfg.PoolTimeout),
		MinRetryBackoff: utils.ToDurationMs(cfg.MinRetryBackoff),
		MaxRetryBackoff: utils.ToDurationMs(cfg.MaxRetryBackoff),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: %v", ErrPingFailed, err)
	}

	return newRedisSink(client, cfg.Key), nil
}

func newRedisSink(client listPusher, key string) *Redis {
	return &Redis{client: client, key: key}
}

// setDefaultRedisConfig sets default values for Redis configuration
func setDefaultRedisConfig(cfg *settings.Redis) {
	if cfg.Port == 0 {
		cfg.Port = defaultRedisPort
	}
	if cfg.PoolSize == 0 {
		cfg.PoolSize = defaultPoolSize
	}
	if cfg.MinIdleConns == 0 {
		cfg.MinIdleConns = defaultMinIdleConns
	}
	if cfg.PoolTimeout == 0 {
		cfg.PoolTimeout = defaultPoolTimeout
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = defaultReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.MinRetryBackoff == 0 {
		cfg.MinRetryBackoff = defaultMinRetryBackoff
	}
	if cfg.MaxRetryBackoff == 0 {
		cfg.MaxRetryBackoff = defaultMaxRetryBackoff
	}
}

func (r *Redis) Name() string { return "redis" }

func (r *Redis) Write(ctx context.Context, a *record.Attack) error {
	doc, err := json.Marshal(a)
	if err != nil {
		return errors.Wrap(err, "failed to convert attack to JSON")
	}
	if err := r.client.RPush(ctx, r.key, doc).Err(); err != nil {
		return errors.Wrapf(err, "failed to push attack to %s", r.key)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
