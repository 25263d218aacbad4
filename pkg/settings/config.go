package settings

type Config struct {
	Server  Server  `yaml:"server"`
	Logger  Logger  `yaml:"logger"`
	Queue   Queue   `yaml:"queue"`
	Tracker Tracker `yaml:"tracker"`
	LogJSON LogJSON `yaml:"log_json"`
	Redis   Redis   `yaml:"redis"`
	Kafka   Kafka   `yaml:"kafka"`
	IDs     IDs     `yaml:"ids"`

	Elasticsearch Elasticsearch `yaml:"elasticsearch"`
	MongoDB       MongoDB       `yaml:"mongodb"`
}

// Server is the configuration for the status server
type Server struct {
	Enabled bool   `yaml:"enabled"`
	Mode    string `yaml:"mode" validate:"omitempty,oneof=debug release test"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port" validate:"gte=0,lte=65535"`
}

// Logger is the configuration for the logger
type Logger struct {
	LogLevel    string `yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`
	FileLogName string `yaml:"file_log_name"`
	MaxBackups  int    `yaml:"max_backups" validate:"gte=0"`
	MaxAge      int    `yaml:"max_age" validate:"gte=0"`
	MaxSize     int    `yaml:"max_size" validate:"gte=0"`
	Compress    bool   `yaml:"compress"`
}

// Queue is the configuration for the pending attack pipeline.
// Zero (or absent) picks the default. A negative MaxPending or MaxRetrying
// leaves that queue unbounded; a negative MaxRetries disables retries.
type Queue struct {
	MaxPending     int    `yaml:"max_pending" validate:"gte=-1"`
	MaxRetrying    int    `yaml:"max_retrying" validate:"gte=-1"`
	OverflowPolicy string `yaml:"overflow_policy" validate:"omitempty,oneof=reject_newest evict_oldest evict"`
	MaxRetries     int    `yaml:"max_retries" validate:"gte=-1"`
	FlushInterval  int    `yaml:"flush_interval" validate:"gte=0"` // Milliseconds
	FlushBatch     int    `yaml:"flush_batch" validate:"gte=0"`    // Number of attacks
}

// Tracker is the configuration for the active connection tracker.
// Zero picks the default; a negative MaxConnections disables the limit.
type Tracker struct {
	MaxConnections int `yaml:"max_connections" validate:"gte=-1"`
	IdleTimeout    int `yaml:"idle_timeout" validate:"gte=0"` // Seconds
}

// LogJSON is the configuration for the JSON lines attack log
type LogJSON struct {
	Enabled    bool   `yaml:"enabled"`
	LogFile    string `yaml:"logfile" validate:"required_if=Enabled true"`
	MaxBackups int    `yaml:"max_backups" validate:"gte=0"`
	MaxAge     int    `yaml:"max_age" validate:"gte=0"`
	MaxSize    int    `yaml:"max_size" validate:"gte=0"`
	Compress   bool   `yaml:"compress"`
}

// Redis is the configuration for Redis
type Redis struct {
	Enabled         bool   `yaml:"enabled"`
	Host            string `yaml:"host" validate:"required_if=Enabled true"`
	Port            int    `yaml:"port" validate:"gte=0,lte=65535"`
	Password        string `yaml:"password"`
	Database        int    `yaml:"database" validate:"gte=0"`
	Key             string `yaml:"key"`
	PoolSize        int    `yaml:"pool_size" validate:"gte=0"`
	MinIdleConns    int    `yaml:"min_idle_conns" validate:"gte=0"`
	PoolTimeout     int    `yaml:"pool_timeout" validate:"gte=0"`
	DialTimeout     int    `yaml:"dial_timeout" validate:"gte=0"`
	ReadTimeout     int    `yaml:"read_timeout" validate:"gte=0"`
	WriteTimeout    int    `yaml:"write_timeout" validate:"gte=0"`
	MaxRetries      int    `yaml:"max_retries" validate:"gte=0"`
	MaxRetryBackoff int    `yaml:"max_retry_backoff" validate:"gte=0"`
	MinRetryBackoff int    `yaml:"min_retry_backoff" validate:"gte=0"`
}

// Kafka is the configuration for Kafka
type Kafka struct {
	Enabled         bool     `yaml:"enabled"`
	Brokers         []string `yaml:"brokers" validate:"required_if=Enabled true"`
	Topic           string   `yaml:"topic" validate:"required_if=Enabled true"`
	MaxMessageBytes int      `yaml:"max_message_bytes" validate:"gte=0"` // Bytes
	Timeout         int      `yaml:"timeout" validate:"gte=0"`           // Seconds
	MaxRetries      int      `yaml:"max_retries" validate:"gte=0"`       // Number of retries
	RetryBackoff    int      `yaml:"retry_backoff" validate:"gte=0"`     // Milliseconds
}

// IDs is the configuration for the snowflake record ID generator
type IDs struct {
	Epoch    int64 `yaml:"epoch" validate:"gte=0"` // Unix millis
	NodeBits uint8 `yaml:"node_bits"`
	StepBits uint8 `yaml:"step_bits"`
	WorkerID int64 `yaml:"worker_id" validate:"gte=0"`
}

// Elasticsearch is the configuration for Elasticsearch
type Elasticsearch struct {
	Enabled   bool     `yaml:"enabled"`
	Addresses []string `yaml:"addresses" validate:"required_if=Enabled true"`
	Username  string   `yaml:"username"`
	Password  string   `yaml:"password"`
	Index     string   `yaml:"index"`
	Refresh   bool     `yaml:"refresh"`
}

// MongoDB is the configuration for MongoDB
type MongoDB struct {
	Enabled         bool   `yaml:"enabled"`
	Host            string `yaml:"host" validate:"required_if=Enabled true"`
	Port            int    `yaml:"port" validate:"gte=0,lte=65535"`
	Username        string `yaml:"username"`
	Password        string `yaml:"password"`
	Database        string `yaml:"database"`
	Collection      string `yaml:"collection"`
	MaxPoolSize     uint64 `yaml:"max_pool_size"`
	MinPoolSize     uint64 `yaml:"min_pool_size"`
	MaxConnIdleTime uint64 `yaml:"max_conn_idle_time"`       // Seconds
	Timeout         int    `yaml:"timeout" validate:"gte=0"` // Seconds
}
