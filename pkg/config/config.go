package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/docker/go-units"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable override, e.g.
// REPORTOOR_BROKER_PARTITIONS.
const EnvPrefix = "REPORTOOR"

const (
	// DefaultLogLevel is the default logging level.
	DefaultLogLevel = "info"

	// DefaultListen is the default API listen address.
	DefaultListen = ":8080"

	// DefaultMaxRequestSize bounds request bodies accepted by the API.
	DefaultMaxRequestSize = "4MB"

	// DefaultPartitions is the default number of broker partitions.
	DefaultPartitions = 8

	// DefaultMaxDeliveries is the number of attempts after which a
	// transiently failing message is dead-lettered.
	DefaultMaxDeliveries = 5
)

// Config is the root configuration for reportoor.
type Config struct {
	Global      GlobalConfig      `yaml:"global" mapstructure:"global"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Database    DatabaseConfig    `yaml:"database" mapstructure:"database"`
	Redis       RedisConfig       `yaml:"redis,omitempty" mapstructure:"redis"`
	Broker      BrokerConfig      `yaml:"broker" mapstructure:"broker"`
	IDAllocator IDAllocatorConfig `yaml:"id_allocator" mapstructure:"id_allocator"`
	Worker      WorkerConfig      `yaml:"worker" mapstructure:"worker"`
	DeadLetter  DeadLetterConfig  `yaml:"dead_letter,omitempty" mapstructure:"dead_letter"`
	Events      EventsConfig      `yaml:"events,omitempty" mapstructure:"events"`
	Auth        AuthConfig        `yaml:"auth,omitempty" mapstructure:"auth"`
}

// GlobalConfig contains global application settings.
type GlobalConfig struct {
	LogLevel string `yaml:"log_level" mapstructure:"log_level"`
}

// setDefaults applies every value used when neither a file nor the
// environment sets it.
func setDefaults(v *viper.Viper) {
	v.SetDefault("global.log_level", DefaultLogLevel)
	v.SetDefault("server.listen", DefaultListen)
	v.SetDefault("server.max_request_size", DefaultMaxRequestSize)
	v.SetDefault("server.rate_limit.enabled", false)
	v.SetDefault("server.rate_limit.requests_per_minute", 600)
	v.SetDefault("server.embedded_worker", true)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.sqlite.path", "reportoor.db")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.ssl_mode", "disable")
	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("broker.driver", "memory")
	v.SetDefault("broker.partitions", DefaultPartitions)
	v.SetDefault("broker.redelivery_delay", time.Second)
	v.SetDefault("broker.redis.stream_prefix", "reportoor:reporting")
	v.SetDefault("broker.redis.group", "reportoor-workers")
	v.SetDefault("broker.redis.batch_size", 16)
	v.SetDefault("broker.redis.block_timeout", 2*time.Second)
	v.SetDefault("broker.redis.lease_ttl", 15*time.Second)
	v.SetDefault("id_allocator.backend", "database")
	v.SetDefault("id_allocator.per_kind", false)
	v.SetDefault("id_allocator.start", 1)
	v.SetDefault("id_allocator.key_prefix", "reportoor:seq")
	v.SetDefault("worker.max_deliveries", DefaultMaxDeliveries)
	v.SetDefault("dead_letter.driver", "none")
	v.SetDefault("dead_letter.s3.region", "us-east-1")
	v.SetDefault("events.driver", "log")
	v.SetDefault("events.channel", "reportoor:events")
}

// Load reads the given YAML files in order, later files overriding earlier
// ones, then applies REPORTOOR_* environment overrides and defaults. With no
// paths only the environment and defaults are used.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// AutomaticEnv only resolves keys viper already knows, so register every
	// leaf of the config tree.
	if err := bindEnv(v, reflect.TypeOf(Config{}), ""); err != nil {
		return nil, fmt.Errorf("binding environment: %w", err)
	}

	for _, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		var raw map[string]any
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &raw); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}

		if err := v.MergeConfigMap(raw); err != nil {
			return nil, fmt.Errorf("merging config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	return &cfg, nil
}

func bindEnv(v *viper.Viper, t reflect.Type, prefix string) error {
	for i := range t.NumField() {
		field := t.Field(i)

		tag := strings.Split(field.Tag.Get("mapstructure"), ",")[0]
		if tag == "" || tag == "-" {
			continue
		}

		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		if field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Duration(0)) {
			if err := bindEnv(v, field.Type, key); err != nil {
				return err
			}

			continue
		}

		// Lists of structs are file-only.
		if field.Type.Kind() == reflect.Slice && field.Type.Elem().Kind() == reflect.Struct {
			continue
		}

		if err := v.BindEnv(key); err != nil {
			return err
		}
	}

	return nil
}

// MaxRequestSizeBytes parses server.max_request_size.
func (c *Config) MaxRequestSizeBytes() (int64, error) {
	size, err := units.RAMInBytes(c.Server.MaxRequestSize)
	if err != nil {
		return 0, fmt.Errorf("parsing max_request_size %q: %w", c.Server.MaxRequestSize, err)
	}

	return size, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if _, err := c.MaxRequestSizeBytes(); err != nil {
		return err
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.SQLite.Path == "" {
			return fmt.Errorf("database.sqlite.path is required")
		}
	case "postgres":
		if c.Database.Postgres.Host == "" {
			return fmt.Errorf("database.postgres.host is required")
		}
	default:
		return fmt.Errorf("unsupported database driver: %q", c.Database.Driver)
	}

	switch c.Broker.Driver {
	case "memory", "redis":
	default:
		return fmt.Errorf("unsupported broker driver: %q", c.Broker.Driver)
	}

	if c.Broker.Driver == "memory" && !c.Server.EmbeddedWorker {
		return fmt.Errorf("broker.driver=memory requires server.embedded_worker")
	}

	if c.Broker.Partitions < 1 {
		return fmt.Errorf("broker.partitions must be at least 1")
	}

	if c.Broker.Driver == "redis" && c.Broker.Redis.LeaseTTL <= c.Broker.Redis.BlockTimeout {
		return fmt.Errorf("broker.redis.lease_ttl must exceed broker.redis.block_timeout")
	}

	switch c.IDAllocator.Backend {
	case "database", "redis":
	default:
		return fmt.Errorf("unsupported id_allocator backend: %q", c.IDAllocator.Backend)
	}

	if c.IDAllocator.Start < 1 {
		return fmt.Errorf("id_allocator.start must be at least 1")
	}

	if c.Worker.MaxDeliveries < 1 {
		return fmt.Errorf("worker.max_deliveries must be at least 1")
	}

	switch c.DeadLetter.Driver {
	case "none":
	case "local":
		if c.DeadLetter.Local.Dir == "" {
			return fmt.Errorf("dead_letter.local.dir is required")
		}
	case "s3":
		if c.DeadLetter.S3.Bucket == "" {
			return fmt.Errorf("dead_letter.s3.bucket is required")
		}
	default:
		return fmt.Errorf("unsupported dead_letter driver: %q", c.DeadLetter.Driver)
	}

	switch c.Events.Driver {
	case "none", "log", "redis":
	default:
		return fmt.Errorf("unsupported events driver: %q", c.Events.Driver)
	}

	seen := make(map[string]struct{}, len(c.Auth.Users))

	for i, u := range c.Auth.Users {
		if u.Username == "" {
			return fmt.Errorf("auth.users[%d]: username is required", i)
		}

		if _, exists := seen[u.Username]; exists {
			return fmt.Errorf("auth.users[%d]: duplicate username %q", i, u.Username)
		}

		seen[u.Username] = struct{}{}

		if u.Password == "" && u.APIKey == "" {
			return fmt.Errorf("user %q: password or api_key is required", u.Username)
		}

		for _, m := range u.Projects {
			if m.Name == "" {
				return fmt.Errorf("user %q: project name is required", u.Username)
			}

			if !isValidProjectRole(m.Role) {
				return fmt.Errorf("user %q: unknown project role %q", u.Username, m.Role)
			}
		}
	}

	return nil
}

// validProjectRoles mirrors reporting.ProjectRole without importing it.
var validProjectRoles = map[string]struct{}{
	"OPERATOR":        {},
	"CUSTOMER":        {},
	"MEMBER":          {},
	"PROJECT_MANAGER": {},
}

func isValidProjectRole(role string) bool {
	_, ok := validProjectRoles[strings.ToUpper(role)]

	return ok
}
