package container

import (
	"fmt"
	"time"
)

// Config holds all configuration needed by the container.
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Workflow WorkflowConfig
	Lock     LockConfig
	Agent    AgentConfig
	Lark     LarkConfig
	Storage  StorageConfig
	Worker   WorkerConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	MaxUploadBytes  int64
	Mode            string
}

// WorkflowConfig tunes the engine and the event dispatcher.
type WorkflowConfig struct {
	AutoAdvance     bool
	ReviewThreshold float64
	ConfigVersion   string
	HandlerTimeout  time.Duration
}

// LockConfig selects the single-writer lock.
type LockConfig struct {
	Backend       string // memory or redis
	TTL           time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// AgentConfig holds extraction agent settings.
type AgentConfig struct {
	APIKey       string
	Model        string
	BaseURL      string
	Timeout      time.Duration
	MaxTextChars int
	MaxPages     int
	PromptsPath  string
}

// LarkConfig holds Lark notification settings. Disabled means notifications
// are only logged.
type LarkConfig struct {
	Enabled   bool
	AppID     string
	AppSecret string
	BaseURL   string
}

// StorageConfig holds document storage paths.
type StorageConfig struct {
	DocumentDir string
}

// WorkerConfig holds background worker settings.
type WorkerConfig struct {
	Enabled      bool
	PollInterval time.Duration
	BatchSize    int
	QueueSize    int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:            "data/lease.db",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxUploadBytes:  32 << 20,
			Mode:            "release",
		},
		Workflow: WorkflowConfig{
			AutoAdvance:     true,
			ReviewThreshold: 0.70,
			HandlerTimeout:  30 * time.Second,
		},
		Lock: LockConfig{
			Backend: "memory",
			TTL:     30 * time.Second,
		},
		Agent: AgentConfig{
			Model:        "gpt-4o",
			Timeout:      120 * time.Second,
			MaxTextChars: 24000,
			MaxPages:     20,
		},
		Storage: StorageConfig{
			DocumentDir: "data/documents",
		},
		Worker: WorkerConfig{
			Enabled:      true,
			PollInterval: 10 * time.Second,
			BatchSize:    10,
			QueueSize:    64,
		},
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}

	if c.Workflow.ReviewThreshold <= 0 || c.Workflow.ReviewThreshold > 1 {
		return fmt.Errorf("review threshold must be within (0, 1]")
	}

	switch c.Lock.Backend {
	case "", "memory":
	case "redis":
		if c.Lock.RedisAddr == "" {
			return fmt.Errorf("redis address is required for the redis lock backend")
		}
	default:
		return fmt.Errorf("unknown lock backend %q", c.Lock.Backend)
	}

	if c.Agent.APIKey == "" {
		return fmt.Errorf("agent API key is required")
	}
	if c.Agent.Model == "" {
		return fmt.Errorf("agent model is required")
	}

	if c.Lark.Enabled && (c.Lark.AppID == "" || c.Lark.AppSecret == "") {
		return fmt.Errorf("lark app ID and secret are required when lark is enabled")
	}

	if c.Storage.DocumentDir == "" {
		return fmt.Errorf("document directory is required")
	}

	return nil
}
