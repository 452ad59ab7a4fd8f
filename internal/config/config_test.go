package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		filePath  string
		wantErr   bool
		errString string
	}{
		{
			name:     "valid config file",
			filePath: "testdata/valid_config.yaml",
			wantErr:  false,
		},
		{
			name:      "non-existent file",
			filePath:  "testdata/nonexistent.yaml",
			wantErr:   true,
			errString: "failed to read config file",
		},
		{
			name:      "malformed yaml",
			filePath:  "testdata/malformed.yaml",
			wantErr:   true,
			errString: "failed to parse config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(tt.filePath)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
				assert.Nil(t, cfg)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, cfg)

			assert.Equal(t, "issue-runner", cfg.App.Name)
			assert.Equal(t, 8080, cfg.Server.Port)
			assert.True(t, cfg.Database.Enabled)
			assert.Equal(t, "issue_runner", cfg.Database.Database)
			assert.Equal(t, "github_events", cfg.RabbitMQ.Exchange.Name)
			assert.Equal(t, "issue_events", cfg.RabbitMQ.Queue.Name)
			assert.Equal(t, time.Second, cfg.RabbitMQ.Consumer.RequeueDelay)
			assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
			assert.Equal(t, "issues", cfg.Queue.Name)
			assert.Equal(t, 2*time.Second, cfg.Queue.RetryBaseDelay)
			assert.Equal(t, 5*time.Minute, cfg.Queue.MaxRetryDelay)
			assert.Equal(t, 4, cfg.Worker.Concurrency)
			assert.Equal(t, 168*time.Hour, cfg.Janitor.FailedRetention)
			assert.Equal(t, 40, cfg.Webhook.RateBurst)

			assert.NoError(t, cfg.ValidateAPIConfig())
			assert.NoError(t, cfg.ValidateWorkerConfig())
		})
	}
}

func validConfig() *Config {
	return &Config{
		Server:   ServerConfig{Port: 8080},
		Database: DatabaseConfig{Enabled: true, Host: "localhost", Port: 5432, Database: "issue_runner"},
		RabbitMQ: RabbitMQConfig{
			Host:     "localhost",
			Port:     5672,
			Exchange: ExchangeConfig{Name: "github_events"},
			Queue:    AMQPQueueConfig{Name: "issue_events"},
		},
		Redis: RedisConfig{Addr: "localhost:6379"},
		Queue: QueueConfig{RetryBaseDelay: 2 * time.Second, MaxRetryDelay: 5 * time.Minute},
		Worker: WorkerConfig{
			Concurrency:     4,
			ShutdownTimeout: 30 * time.Second,
			StatusPort:      8081,
		},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		errString string
	}{
		{name: "valid config", mutate: func(c *Config) {}},
		{name: "missing redis addr", mutate: func(c *Config) { c.Redis.Addr = "" }, errString: "redis addr is required"},
		{name: "negative max jobs", mutate: func(c *Config) { c.Queue.MaxJobs = -1 }, errString: "queue max_jobs"},
		{
			name:      "base delay above cap",
			mutate:    func(c *Config) { c.Queue.RetryBaseDelay = 10 * time.Minute },
			errString: "exceeds max_retry_delay",
		},
		{name: "empty rabbitmq host", mutate: func(c *Config) { c.RabbitMQ.Host = "" }, errString: "rabbitmq host is required"},
		{name: "invalid rabbitmq port", mutate: func(c *Config) { c.RabbitMQ.Port = 70000 }, errString: "invalid rabbitmq port"},
		{name: "empty exchange", mutate: func(c *Config) { c.RabbitMQ.Exchange.Name = "" }, errString: "rabbitmq exchange name is required"},
		{name: "empty amqp queue", mutate: func(c *Config) { c.RabbitMQ.Queue.Name = "" }, errString: "rabbitmq queue name is required"},
		{name: "empty database host", mutate: func(c *Config) { c.Database.Host = "" }, errString: "database host is required"},
		{name: "empty database name", mutate: func(c *Config) { c.Database.Database = "" }, errString: "database name is required"},
		{
			name:   "database checks skipped when archive disabled",
			mutate: func(c *Config) { c.Database = DatabaseConfig{Enabled: false} },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.errString == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errString)
		})
	}
}

func TestConfig_ValidateServices(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		validate  func(c *Config) error
		errString string
	}{
		{
			name:      "api server port too low",
			mutate:    func(c *Config) { c.Server.Port = 0 },
			validate:  (*Config).ValidateAPIConfig,
			errString: "invalid server port",
		},
		{
			name:      "api negative burst",
			mutate:    func(c *Config) { c.Webhook.RateBurst = -1 },
			validate:  (*Config).ValidateAPIConfig,
			errString: "rate_burst",
		},
		{
			name:      "api inherits shared checks",
			mutate:    func(c *Config) { c.Redis.Addr = "" },
			validate:  (*Config).ValidateAPIConfig,
			errString: "redis addr",
		},
		{
			name:      "worker zero concurrency",
			mutate:    func(c *Config) { c.Worker.Concurrency = 0 },
			validate:  (*Config).ValidateWorkerConfig,
			errString: "worker concurrency",
		},
		{
			name:      "worker missing shutdown timeout",
			mutate:    func(c *Config) { c.Worker.ShutdownTimeout = 0 },
			validate:  (*Config).ValidateWorkerConfig,
			errString: "shutdown_timeout",
		},
		{
			name:      "worker invalid status port",
			mutate:    func(c *Config) { c.Worker.StatusPort = 0 },
			validate:  (*Config).ValidateWorkerConfig,
			errString: "invalid worker status port",
		},
		{
			name:      "worker server port not required",
			mutate:    func(c *Config) { c.Server.Port = 0 },
			validate:  (*Config).ValidateWorkerConfig,
			errString: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := tt.validate(cfg)
			if tt.errString == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errString)
		})
	}
}

func TestPortConstants(t *testing.T) {
	assert.Equal(t, 1, MinPort)
	assert.Equal(t, 65535, MaxPort)
}
