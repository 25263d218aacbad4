package settings

import (
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	defaultLogLevel       = "info"
	defaultServerMode     = "release"
	defaultServerPort     = 8080
	defaultMaxPending     = 1024
	defaultMaxRetrying    = 256
	defaultOverflowPolicy = "evict_oldest"
	defaultMaxRetries     = 3
	defaultFlushInterval  = 1000 // millis
	defaultMaxConnections = 4096
	defaultIdleTimeout    = 300 // seconds
	defaultRedisKey       = "attackq:attacks"
	defaultESIndex        = "attackq-attacks"
	defaultMongoDatabase  = "attackq"
	defaultMongoColl      = "attacks"
	defaultNodeBits       = 10
	defaultStepBits       = 12
)

// Unbounded is the config value that switches a size limit off.
const Unbounded = -1

var validate = validator.New()

// Load reads a YAML config file, fills defaults and validates it.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read config %s", path)
	}
	return Parse(raw)
}

// Parse decodes a YAML document into a Config, fills defaults and validates it.
func Parse(raw []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config")
	}

	cfg.SetDefaults()

	if err := validate.Struct(cfg); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	return cfg, nil
}

// SetDefaults fills zero values with defaults.
func (c *Config) SetDefaults() {
	if c.Logger.LogLevel == "" {
		c.Logger.LogLevel = defaultLogLevel
	}
	if c.Server.Mode == "" {
		c.Server.Mode = defaultServerMode
	}
	if c.Server.Port == 0 {
		c.Server.Port = defaultServerPort
	}
	if c.Queue.MaxPending == 0 {
		c.Queue.MaxPending = defaultMaxPending
	}
	if c.Queue.MaxRetrying == 0 {
		c.Queue.MaxRetrying = defaultMaxRetrying
	}
	if c.Queue.OverflowPolicy == "" {
		c.Queue.OverflowPolicy = defaultOverflowPolicy
	}
	if c.Queue.MaxRetries == 0 {
		c.Queue.MaxRetries = defaultMaxRetries
	}
	if c.Queue.FlushInterval == 0 {
		c.Queue.FlushInterval = defaultFlushInterval
	}
	if c.Tracker.MaxConnections == 0 {
		c.Tracker.MaxConnections = defaultMaxConnections
	}
	if c.Tracker.IdleTimeout == 0 {
		c.Tracker.IdleTimeout = defaultIdleTimeout
	}
	if c.IDs.NodeBits == 0 {
		c.IDs.NodeBits = defaultNodeBits
	}
	if c.IDs.StepBits == 0 {
		c.IDs.StepBits = defaultStepBits
	}
	if c.Redis.Key == "" {
		c.Redis.Key = defaultRedisKey
	}
	if c.Elasticsearch.Index == "" {
		c.Elasticsearch.Index = defaultESIndex
	}
	if c.MongoDB.Database == "" {
		c.MongoDB.Database = defaultMongoDatabase
	}
	if c.MongoDB.Collection == "" {
		c.MongoDB.Collection = defaultMongoColl
	}
}
