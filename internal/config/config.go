package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var ErrMissingRequired = errors.New("missing required configuration")

type Config struct {
	DBHost string `envconfig:"DB_HOST" default:"postgres"`
	DBPort int    `envconfig:"DB_PORT" default:"5432"`
	DBUser string `envconfig:"DB_USER" default:"reelforge"`
	DBPass string `envconfig:"DB_PASS" default:"password"`
	DBName string `envconfig:"DB_NAME" default:"reelforge"`

	NSQDHost string `envconfig:"NSQD_HOST" default:"nsqd:4150"`

	GenGatewayURL    string `envconfig:"GEN_GATEWAY_URL" default:"http://gen-gateway:8000"`
	GenGatewayAPIKey string `envconfig:"GEN_GATEWAY_API_KEY"`

	EnableAPI    bool `envconfig:"ENABLE_API" default:"true"`
	EnableWorker bool `envconfig:"ENABLE_WORKER" default:"true"`

	// WorkerSecret authenticates every worker mutation against the job store.
	// Required whenever the worker is enabled; there is no default.
	WorkerSecret string `envconfig:"WORKER_SECRET"`

	MaxConcurrency       int           `envconfig:"MAX_CONCURRENCY" default:"3"`
	PollInterval         time.Duration `envconfig:"POLL_INTERVAL" default:"2s"`
	PollMaxInterval      time.Duration `envconfig:"POLL_MAX_INTERVAL" default:"30s"`
	SweepInterval        time.Duration `envconfig:"SWEEP_INTERVAL" default:"60s"`
	MaxDependencyRetries int           `envconfig:"MAX_DEPENDENCY_RETRIES" default:"30"`
	DefaultJobTimeout    time.Duration `envconfig:"DEFAULT_JOB_TIMEOUT" default:"10m"`

	ServerPort  int `envconfig:"SERVER_PORT" default:"8081"`
	MetricsPort int `envconfig:"METRICS_PORT" default:"9091"`
}

func Load() (*Config, error) {
	// .env is optional; env vars may be set in the shell.
	_ = godotenv.Load(".env")

	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.DBHost == "" {
		return fmt.Errorf("%w: DB_HOST", ErrMissingRequired)
	}
	if c.DBUser == "" {
		return fmt.Errorf("%w: DB_USER", ErrMissingRequired)
	}
	if c.DBName == "" {
		return fmt.Errorf("%w: DB_NAME", ErrMissingRequired)
	}
	if c.EnableWorker && c.WorkerSecret == "" {
		return fmt.Errorf("%w: WORKER_SECRET", ErrMissingRequired)
	}
	if c.MaxConcurrency < 1 {
		return fmt.Errorf("MAX_CONCURRENCY must be at least 1, got %d", c.MaxConcurrency)
	}
	if c.PollMaxInterval < c.PollInterval {
		return fmt.Errorf("POLL_MAX_INTERVAL must be >= POLL_INTERVAL")
	}
	return nil
}
