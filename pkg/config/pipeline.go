package config

import "time"

// RedisConfig is the shared Redis connection used by the redis broker, the
// redis id allocator and the redis event publisher.
type RedisConfig struct {
	URL string `yaml:"url" mapstructure:"url"`
}

// BrokerConfig selects and tunes the message broker.
type BrokerConfig struct {
	// Driver is "memory" (single process) or "redis".
	Driver     string `yaml:"driver" mapstructure:"driver"`
	Partitions int    `yaml:"partitions" mapstructure:"partitions"`

	// RedeliveryDelay is how long a transiently failed message waits before
	// it is handed to the handler again.
	RedeliveryDelay time.Duration     `yaml:"redelivery_delay" mapstructure:"redelivery_delay"`
	Redis           RedisBrokerConfig `yaml:"redis,omitempty" mapstructure:"redis"`
}

// RedisBrokerConfig tunes the Redis Streams broker.
type RedisBrokerConfig struct {
	StreamPrefix string        `yaml:"stream_prefix" mapstructure:"stream_prefix"`
	Group        string        `yaml:"group" mapstructure:"group"`
	BatchSize    int           `yaml:"batch_size" mapstructure:"batch_size"`
	BlockTimeout time.Duration `yaml:"block_timeout" mapstructure:"block_timeout"`
	LeaseTTL     time.Duration `yaml:"lease_ttl" mapstructure:"lease_ttl"`
	MaxLen       int64         `yaml:"max_len,omitempty" mapstructure:"max_len"`
}

// IDAllocatorConfig selects the identifier sequence backend.
type IDAllocatorConfig struct {
	// Backend is "database" or "redis".
	Backend string `yaml:"backend" mapstructure:"backend"`

	// PerKind gives launches and items separate sequences. By default all
	// kinds share one sequence.
	PerKind   bool   `yaml:"per_kind" mapstructure:"per_kind"`
	Start     int64  `yaml:"start" mapstructure:"start"`
	KeyPrefix string `yaml:"key_prefix,omitempty" mapstructure:"key_prefix"`
}

// WorkerConfig tunes the consumer side of the pipeline.
type WorkerConfig struct {
	MaxDeliveries int    `yaml:"max_deliveries" mapstructure:"max_deliveries"`
	MetricsListen string `yaml:"metrics_listen,omitempty" mapstructure:"metrics_listen"`
}

// DeadLetterConfig selects where permanently failed messages are recorded.
type DeadLetterConfig struct {
	// Driver is "none", "local" or "s3".
	Driver string                `yaml:"driver" mapstructure:"driver"`
	Local  LocalDeadLetterConfig `yaml:"local,omitempty" mapstructure:"local"`
	S3     S3DeadLetterConfig    `yaml:"s3,omitempty" mapstructure:"s3"`
}

// LocalDeadLetterConfig writes dead letters as JSON files into Dir.
type LocalDeadLetterConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// S3DeadLetterConfig writes dead letters as JSON objects into an S3 bucket.
type S3DeadLetterConfig struct {
	EndpointURL     string `yaml:"endpoint_url,omitempty" mapstructure:"endpoint_url"`
	Region          string `yaml:"region,omitempty" mapstructure:"region"`
	Bucket          string `yaml:"bucket" mapstructure:"bucket"`
	AccessKeyID     string `yaml:"access_key_id,omitempty" mapstructure:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty" mapstructure:"secret_access_key"`
	Prefix          string `yaml:"prefix,omitempty" mapstructure:"prefix"`
	ForcePathStyle  bool   `yaml:"force_path_style" mapstructure:"force_path_style"`
}

// EventsConfig selects the domain event publisher.
type EventsConfig struct {
	// Driver is "none", "log" or "redis".
	Driver  string `yaml:"driver" mapstructure:"driver"`
	Channel string `yaml:"channel,omitempty" mapstructure:"channel"`
}
