package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// Server
	Port        int    `envconfig:"PORT" default:"3000"`
	Environment string `envconfig:"ENV" default:"development"`

	// Database
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	// Isolate runtime
	IsolateHeapLimitMB    int    `envconfig:"ISOLATE_HEAP_LIMIT_MB" default:"128"`
	IsolateEnterpriseMode bool   `envconfig:"ISOLATE_ENTERPRISE_MODE" default:"false"`
	IsolateSnapshotDir    string `envconfig:"ISOLATE_SNAPSHOT_DIR" default:"/tmp/taskforge-snapshots"`
	IsolateSnapshotMax    int    `envconfig:"ISOLATE_SNAPSHOT_MAX" default:"50"`

	// Outbound notification (internal/notify)
	NotifySigningSecret string `envconfig:"NOTIFY_SIGNING_SECRET"`

	// Admin/debug API
	AdminJWTSecret string `envconfig:"ADMIN_JWT_SECRET" required:"true"`
	AdminPort      int    `envconfig:"ADMIN_PORT" default:"3001"`

	// Crash-snapshot object storage
	SnapshotBucket string `envconfig:"SNAPSHOT_BUCKET"`
	AWSRegion      string `envconfig:"AWS_REGION" default:"us-east-1"`

	// Worker (cmd/worker): script job execution
	RunnablesDir       string        `envconfig:"RUNNABLES_DIR" default:"/var/lib/taskforge/runnables"`
	WorkerPollInterval time.Duration `envconfig:"WORKER_POLL_INTERVAL" default:"2s"`
	WorkerBatchSize    int           `envconfig:"WORKER_BATCH_SIZE" default:"10"`
	WorkerName         string        `envconfig:"WORKER_NAME" default:"worker-1"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
