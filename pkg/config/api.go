package config

// ServerConfig contains HTTP server settings for the reporting API.
type ServerConfig struct {
	Listen         string          `yaml:"listen" mapstructure:"listen"`
	CORSOrigins    []string        `yaml:"cors_origins,omitempty" mapstructure:"cors_origins"`
	MaxRequestSize string          `yaml:"max_request_size,omitempty" mapstructure:"max_request_size"`
	RateLimit      RateLimitConfig `yaml:"rate_limit,omitempty" mapstructure:"rate_limit"`

	// EmbeddedWorker runs the consumer inside the API process. Required when
	// the broker driver is "memory".
	EmbeddedWorker bool `yaml:"embedded_worker" mapstructure:"embedded_worker"`
}

// RateLimitConfig configures rate limiting per authenticated user.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled" mapstructure:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
}

// AuthConfig contains the users seeded into the store at startup.
type AuthConfig struct {
	Users []UserConfig `yaml:"users,omitempty" mapstructure:"users"`
}

// UserConfig defines a reporting user from config. Password enables HTTP basic
// auth; APIKey enables bearer auth.
type UserConfig struct {
	Username string             `yaml:"username" mapstructure:"username"`
	Password string             `yaml:"password,omitempty" mapstructure:"password"`
	APIKey   string             `yaml:"api_key,omitempty" mapstructure:"api_key"`
	Role     string             `yaml:"role,omitempty" mapstructure:"role"`
	Projects []MembershipConfig `yaml:"projects,omitempty" mapstructure:"projects"`
}

// MembershipConfig assigns a user to a project with a project role.
type MembershipConfig struct {
	Name string `yaml:"name" mapstructure:"name"`
	Role string `yaml:"role" mapstructure:"role"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Driver   string               `yaml:"driver" mapstructure:"driver"`
	SQLite   SQLiteDatabaseConfig `yaml:"sqlite,omitempty" mapstructure:"sqlite"`
	Postgres PostgresConfig       `yaml:"postgres,omitempty" mapstructure:"postgres"`
}

// SQLiteDatabaseConfig contains SQLite-specific settings.
type SQLiteDatabaseConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// PostgresConfig contains PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	Database string `yaml:"database" mapstructure:"database"`
	SSLMode  string `yaml:"ssl_mode,omitempty" mapstructure:"ssl_mode"`
}
