package config

import (
	"github.com/garyjia/lease-agent/internal/container"
)

// ToContainerConfig converts the application Config to a container.Config.
func (c *Config) ToContainerConfig() *container.Config {
	return &container.Config{
		Database: container.DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
		},
		Server: container.ServerConfig{
			Host:            c.Server.Host,
			Port:            c.Server.Port,
			ReadTimeout:     c.Server.ReadTimeout,
			WriteTimeout:    c.Server.WriteTimeout,
			ShutdownTimeout: c.Server.ShutdownTimeout,
			MaxUploadBytes:  c.Server.MaxUploadBytes,
			Mode:            c.Server.Mode,
		},
		Workflow: container.WorkflowConfig{
			AutoAdvance:     c.Workflow.AutoAdvance,
			ReviewThreshold: c.Workflow.ReviewThreshold,
			HandlerTimeout:  c.Workflow.HandlerTimeout,
		},
		Lock: container.LockConfig{
			Backend:       c.Lock.Backend,
			TTL:           c.Lock.TTL,
			RedisAddr:     c.Redis.Addr,
			RedisPassword: c.Redis.Password,
			RedisDB:       c.Redis.DB,
		},
		Agent: container.AgentConfig{
			APIKey:       c.Agent.APIKey,
			Model:        c.Agent.Model,
			BaseURL:      c.Agent.BaseURL,
			Timeout:      c.Agent.Timeout,
			MaxTextChars: c.Agent.MaxTextChars,
			MaxPages:     c.Agent.MaxPages,
			PromptsPath:  c.Agent.PromptsPath,
		},
		Lark: container.LarkConfig{
			Enabled:   c.Lark.Enabled,
			AppID:     c.Lark.AppID,
			AppSecret: c.Lark.AppSecret,
			BaseURL:   c.Lark.BaseURL,
		},
		Storage: container.StorageConfig{
			DocumentDir: c.Storage.DocumentDir,
		},
		Worker: container.WorkerConfig{
			Enabled:      c.Worker.Enabled,
			PollInterval: c.Worker.PollInterval,
			BatchSize:    c.Worker.BatchSize,
			QueueSize:    c.Worker.QueueSize,
		},
	}
}
