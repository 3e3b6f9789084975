// Package container provides dependency injection and lifecycle management
// for the lease request service.
package container

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/garyjia/lease-agent/internal/application/audit"
	"github.com/garyjia/lease-agent/internal/application/dispatcher"
	"github.com/garyjia/lease-agent/internal/application/gate"
	"github.com/garyjia/lease-agent/internal/application/port"
	"github.com/garyjia/lease-agent/internal/application/service"
	"github.com/garyjia/lease-agent/internal/application/workflow"
	"github.com/garyjia/lease-agent/internal/domain/event"
	"github.com/garyjia/lease-agent/internal/infrastructure/document"
	"github.com/garyjia/lease-agent/internal/infrastructure/export"
	infraLark "github.com/garyjia/lease-agent/internal/infrastructure/external/lark"
	"github.com/garyjia/lease-agent/internal/infrastructure/external/openai"
	"github.com/garyjia/lease-agent/internal/infrastructure/lock"
	"github.com/garyjia/lease-agent/internal/infrastructure/persistence/repository"
	"github.com/garyjia/lease-agent/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/lease-agent/internal/infrastructure/storage"
	"github.com/garyjia/lease-agent/internal/infrastructure/worker"
	httpapi "github.com/garyjia/lease-agent/internal/interfaces/http"
	"github.com/garyjia/lease-agent/pkg/database"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	DB        *database.DB
	TxManager *sqlite.TxManager
}

// LockBundle holds the request locker and the Redis client backing it, if any.
type LockBundle struct {
	Locker port.Locker
	Redis  *redis.Client
}

// ExternalBundle holds the adapters for outside systems.
type ExternalBundle struct {
	Agent    port.ExtractionAgent
	Reader   port.TextExtractor
	Notifier port.Notifier
	Storage  port.DocumentStorage
	Exporter port.Exporter
}

// ProvideDatabase opens the database and applies pending migrations.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	db, err := database.OpenMigrated(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &DatabaseBundle{
		DB:        db,
		TxManager: sqlite.NewTxManager(db.DB, logger),
	}, nil
}

// ProvideRepositories creates all repository instances.
func ProvideRepositories(db *database.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	return &RepositoryBundle{
		LeaseRequests: repository.NewLeaseRequestRepository(db.DB, logger),
		Audit:         repository.NewAuditRepository(db.DB, logger),
		Directory:     repository.NewDirectoryRepository(db.DB, logger),
	}, nil
}

// ProvideLocker creates the single-writer lock for the configured backend.
func ProvideLocker(cfg *LockConfig, logger *zap.Logger) (*LockBundle, error) {
	switch cfg.Backend {
	case "", "memory":
		logger.Info("Using in-process request lock")
		return &LockBundle{Locker: lock.NewMemoryLocker()}, nil
	case "redis":
		client, err := lock.NewRedisClient(lock.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, err
		}
		logger.Info("Using Redis request lock", zap.String("addr", cfg.RedisAddr), zap.Duration("ttl", cfg.TTL))
		return &LockBundle{
			Locker: lock.NewRedisLocker(client, cfg.TTL, logger),
			Redis:  client,
		}, nil
	default:
		return nil, fmt.Errorf("unknown lock backend %q", cfg.Backend)
	}
}

// ProvideAgent creates the extraction agent with built-in or file prompts.
func ProvideAgent(cfg *AgentConfig, logger *zap.Logger) (port.ExtractionAgent, error) {
	prompts, err := openai.DefaultPrompts()
	if cfg.PromptsPath != "" {
		prompts, err = openai.LoadPrompts(cfg.PromptsPath)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load prompts: %w", err)
	}

	return openai.NewAgent(openai.Config{
		APIKey:       cfg.APIKey,
		Model:        cfg.Model,
		BaseURL:      cfg.BaseURL,
		MaxTextChars: cfg.MaxTextChars,
	}, prompts, logger), nil
}

// ProvideNotifier returns a Lark notifier, or a logging one when Lark is off.
func ProvideNotifier(cfg *LarkConfig, logger *zap.Logger) port.Notifier {
	if !cfg.Enabled {
		logger.Info("Lark disabled, notifications are logged only")
		return infraLark.NewLogNotifier(logger)
	}
	client := infraLark.NewClient(infraLark.Config{
		AppID:     cfg.AppID,
		AppSecret: cfg.AppSecret,
		BaseURL:   cfg.BaseURL,
	}, logger)
	return infraLark.NewNotifier(client, logger)
}

// ProvideExternal creates the agent, document, notification and export adapters.
func ProvideExternal(cfg *Config, logger *zap.Logger) (*ExternalBundle, error) {
	agent, err := ProvideAgent(&cfg.Agent, logger)
	if err != nil {
		return nil, err
	}
	return &ExternalBundle{
		Agent:    agent,
		Reader:   document.NewReader(cfg.Agent.MaxPages, logger),
		Notifier: ProvideNotifier(&cfg.Lark, logger),
		Storage:  storage.NewLocalDocumentStorage(cfg.Storage.DocumentDir, logger),
		Exporter: export.NewExcelExporter(logger),
	}, nil
}

// ProvideDispatcher creates the event dispatcher.
func ProvideDispatcher(cfg *WorkflowConfig, logger *zap.Logger) dispatcher.Dispatcher {
	return dispatcher.NewDispatcher(
		dispatcher.WithLogger(&zapLoggerAdapter{logger: logger.Named("dispatcher")}),
		dispatcher.WithHandlerTimeout(cfg.HandlerTimeout),
	)
}

// EngineDeps holds dependencies for the workflow engine.
type EngineDeps struct {
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	Locker     port.Locker
	Dispatcher dispatcher.Dispatcher
	Config     *WorkflowConfig
	Logger     *zap.Logger
}

// ProvideEngine creates the audit recorder and the workflow engine.
func ProvideEngine(deps *EngineDeps) (workflow.Engine, *audit.Recorder, error) {
	g, err := gate.New(gate.Threshold{
		Review:        deps.Config.ReviewThreshold,
		ConfigVersion: deps.Config.ConfigVersion,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("invalid review threshold: %w", err)
	}

	recorder := audit.NewRecorder(deps.Repos.Audit)
	engine := workflow.NewEngine(
		deps.Repos.LeaseRequests,
		recorder,
		deps.TxManager,
		deps.Locker,
		workflow.WithDispatcher(deps.Dispatcher),
		workflow.WithGate(g),
		workflow.WithAutoAdvance(deps.Config.AutoAdvance),
		workflow.WithLogger(&zapLoggerAdapter{logger: deps.Logger.Named("workflow")}),
	)
	return engine, recorder, nil
}

// ServiceDeps holds dependencies for creating services.
type ServiceDeps struct {
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	External   *ExternalBundle
	Engine     workflow.Engine
	Recorder   *audit.Recorder
	Dispatcher dispatcher.Dispatcher
	Agent      *AgentConfig
	Logger     *zap.Logger
}

// ProvideServices creates all application services and subscribes the
// notification service to the dispatcher.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil || deps.Repos == nil || deps.External == nil {
		return nil, fmt.Errorf("service dependencies are required")
	}
	log := &zapLoggerAdapter{logger: deps.Logger.Named("service")}

	leases := service.NewLeaseRequestService(
		deps.Repos.LeaseRequests,
		deps.Repos.Audit,
		deps.TxManager,
		deps.External.Storage,
		deps.External.Exporter,
		deps.Engine,
		deps.Recorder,
		deps.Dispatcher,
		log,
	)
	extraction := service.NewExtractionService(
		deps.Repos.LeaseRequests,
		deps.External.Storage,
		deps.External.Reader,
		deps.External.Agent,
		deps.Engine,
		deps.Agent.Timeout,
		log,
	)
	notification := service.NewNotificationService(deps.External.Notifier, log)
	notification.Register(deps.Dispatcher)

	return &ServiceBundle{
		LeaseRequests: leases,
		Extraction:    extraction,
		Notification:  notification,
		Directory:     service.NewDirectoryService(deps.Repos.Directory, deps.TxManager, log),
	}, nil
}

// ProvideWorkers creates the worker manager. A submitted request is queued
// for extraction immediately rather than waiting for the next poll.
func ProvideWorkers(cfg *WorkerConfig, repos *RepositoryBundle, extraction service.ExtractionService,
	d dispatcher.Dispatcher, logger *zap.Logger) (*worker.Manager, *worker.ExtractionWorker) {
	manager := worker.NewManager(logger)
	if !cfg.Enabled {
		logger.Info("Background extraction disabled")
		return manager, nil
	}

	extractor := worker.NewExtractionWorker(worker.ExtractionWorkerConfig{
		PollInterval: cfg.PollInterval,
		BatchSize:    cfg.BatchSize,
		QueueSize:    cfg.QueueSize,
	}, repos.LeaseRequests, extraction, logger)
	manager.Register(extractor)

	d.SubscribeNamed(event.TypeRequestSubmitted, "extraction-worker", func(_ context.Context, evt *event.Event) error {
		if !extractor.Enqueue(evt.RequestID) {
			logger.Info("Extraction queue full, request left for the next poll",
				zap.String("request_id", evt.RequestID))
		}
		return nil
	})

	return manager, extractor
}

// ProvideHTTPServer creates the HTTP server over the application services.
func ProvideHTTPServer(cfg *ServerConfig, services *ServiceBundle, engine workflow.Engine, logger *zap.Logger) *httpapi.Server {
	return httpapi.NewServer(httpapi.ServerConfig{
		Host:            cfg.Host,
		Port:            cfg.Port,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
		MaxUploadBytes:  cfg.MaxUploadBytes,
		Mode:            cfg.Mode,
	}, services.LeaseRequests, services.Extraction, services.Directory, engine, &zapLoggerAdapter{logger: logger.Named("http")})
}
