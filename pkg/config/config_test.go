package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func TestLoad_EnvVarOverrides(t *testing.T) {
	configPath := writeConfig(t, `
global:
  log_level: info
server:
  listen: ":9090"
  cors_origins:
    - https://one.example
broker:
  driver: redis
  partitions: 4
  redis:
    lease_ttl: 20s
id_allocator:
  start: 100
dead_letter:
  driver: s3
  s3:
    bucket: original-bucket
`)

	tests := []struct {
		name     string
		envVars  map[string]string
		validate func(t *testing.T, cfg *Config)
	}{
		{
			name:    "no env vars uses yaml values",
			envVars: map[string]string{},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "info", cfg.Global.LogLevel)
				assert.Equal(t, ":9090", cfg.Server.Listen)
				assert.Equal(t, []string{"https://one.example"}, cfg.Server.CORSOrigins)
				assert.Equal(t, "redis", cfg.Broker.Driver)
				assert.Equal(t, 4, cfg.Broker.Partitions)
				assert.Equal(t, 20*time.Second, cfg.Broker.Redis.LeaseTTL)
				assert.Equal(t, int64(100), cfg.IDAllocator.Start)
				assert.Equal(t, "original-bucket", cfg.DeadLetter.S3.Bucket)
			},
		},
		{
			name: "string override - log_level",
			envVars: map[string]string{
				"REPORTOOR_GLOBAL_LOG_LEVEL": "debug",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "debug", cfg.Global.LogLevel)
			},
		},
		{
			name: "integer override - partitions",
			envVars: map[string]string{
				"REPORTOOR_BROKER_PARTITIONS": "16",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 16, cfg.Broker.Partitions)
			},
		},
		{
			name: "duration override - lease_ttl",
			envVars: map[string]string{
				"REPORTOOR_BROKER_REDIS_LEASE_TTL": "45s",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 45*time.Second, cfg.Broker.Redis.LeaseTTL)
			},
		},
		{
			name: "boolean override - per_kind",
			envVars: map[string]string{
				"REPORTOOR_ID_ALLOCATOR_PER_KIND": "true",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.True(t, cfg.IDAllocator.PerKind)
			},
		},
		{
			name: "nested override not present in file",
			envVars: map[string]string{
				"REPORTOOR_DEAD_LETTER_S3_ENDPOINT_URL": "http://minio:9000",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "http://minio:9000", cfg.DeadLetter.S3.EndpointURL)
				assert.Equal(t, "original-bucket", cfg.DeadLetter.S3.Bucket)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			cfg, err := Load(configPath)
			require.NoError(t, err)

			tt.validate(t, cfg)
		})
	}
}

func TestLoad_DefaultsAppliedWhenEmpty(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultLogLevel, cfg.Global.LogLevel)
	assert.Equal(t, DefaultListen, cfg.Server.Listen)
	assert.Equal(t, "memory", cfg.Broker.Driver)
	assert.Equal(t, DefaultPartitions, cfg.Broker.Partitions)
	assert.Equal(t, time.Second, cfg.Broker.RedeliveryDelay)
	assert.Equal(t, "database", cfg.IDAllocator.Backend)
	assert.False(t, cfg.IDAllocator.PerKind)
	assert.Equal(t, int64(1), cfg.IDAllocator.Start)
	assert.Equal(t, DefaultMaxDeliveries, cfg.Worker.MaxDeliveries)
	assert.Equal(t, "none", cfg.DeadLetter.Driver)
	assert.Equal(t, "log", cfg.Events.Driver)
	assert.True(t, cfg.Server.EmbeddedWorker)

	require.NoError(t, cfg.Validate())
}

func TestLoad_LaterFilesOverrideEarlier(t *testing.T) {
	base := writeConfig(t, `
broker:
  partitions: 2
worker:
  max_deliveries: 3
`)
	override := writeConfig(t, `
broker:
  partitions: 6
`)

	cfg, err := Load(base, override)
	require.NoError(t, err)

	assert.Equal(t, 6, cfg.Broker.Partitions)
	assert.Equal(t, 3, cfg.Worker.MaxDeliveries)
}

func TestLoad_ExpandsEnvInFile(t *testing.T) {
	t.Setenv("TEST_REPORTOOR_PASSWORD", "s3cret")

	path := writeConfig(t, `
auth:
  users:
    - username: alice
      password: ${TEST_REPORTOOR_PASSWORD}
      projects:
        - name: alpha
          role: MEMBER
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Len(t, cfg.Auth.Users, 1)
	assert.Equal(t, "s3cret", cfg.Auth.Users[0].Password)
	require.Len(t, cfg.Auth.Users[0].Projects, 1)
	assert.Equal(t, "alpha", cfg.Auth.Users[0].Projects[0].Name)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestMaxRequestSizeBytes(t *testing.T) {
	cfg := &Config{Server: ServerConfig{MaxRequestSize: "4MB"}}

	size, err := cfg.MaxRequestSizeBytes()
	require.NoError(t, err)
	assert.Equal(t, int64(4*1024*1024), size)

	cfg.Server.MaxRequestSize = "lots"
	_, err = cfg.MaxRequestSizeBytes()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func(t *testing.T) *Config {
		t.Helper()

		cfg, err := Load()
		require.NoError(t, err)

		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr string
	}{
		{
			name:    "unknown database driver",
			mutate:  func(cfg *Config) { cfg.Database.Driver = "mysql" },
			wantErr: "unsupported database driver",
		},
		{
			name:    "zero partitions",
			mutate:  func(cfg *Config) { cfg.Broker.Partitions = 0 },
			wantErr: "broker.partitions",
		},
		{
			name:    "memory broker without embedded worker",
			mutate:  func(cfg *Config) { cfg.Server.EmbeddedWorker = false },
			wantErr: "embedded_worker",
		},
		{
			name: "lease shorter than block timeout",
			mutate: func(cfg *Config) {
				cfg.Broker.Driver = "redis"
				cfg.Broker.Redis.LeaseTTL = time.Second
			},
			wantErr: "lease_ttl",
		},
		{
			name:    "local dead letter without dir",
			mutate:  func(cfg *Config) { cfg.DeadLetter.Driver = "local" },
			wantErr: "dead_letter.local.dir",
		},
		{
			name: "user without credentials",
			mutate: func(cfg *Config) {
				cfg.Auth.Users = []UserConfig{{Username: "bob"}}
			},
			wantErr: "password or api_key",
		},
		{
			name: "duplicate usernames",
			mutate: func(cfg *Config) {
				cfg.Auth.Users = []UserConfig{
					{Username: "bob", APIKey: "k1"},
					{Username: "bob", APIKey: "k2"},
				}
			},
			wantErr: "duplicate username",
		},
		{
			name: "unknown project role",
			mutate: func(cfg *Config) {
				cfg.Auth.Users = []UserConfig{{
					Username: "bob",
					APIKey:   "k1",
					Projects: []MembershipConfig{{Name: "alpha", Role: "OWNER"}},
				}}
			},
			wantErr: "unknown project role",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid(t)
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
