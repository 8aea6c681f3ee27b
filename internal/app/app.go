package app

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vidsmith/internal/broker"
	"github.com/ternarybob/vidsmith/internal/common"
	"github.com/ternarybob/vidsmith/internal/executor"
	"github.com/ternarybob/vidsmith/internal/handlers"
	"github.com/ternarybob/vidsmith/internal/interfaces"
	"github.com/ternarybob/vidsmith/internal/media"
	"github.com/ternarybob/vidsmith/internal/pipeline/steps"
	"github.com/ternarybob/vidsmith/internal/services/auth"
	"github.com/ternarybob/vidsmith/internal/services/dhuman"
	"github.com/ternarybob/vidsmith/internal/services/imagegen"
	"github.com/ternarybob/vidsmith/internal/services/llm"
	"github.com/ternarybob/vidsmith/internal/services/objectstore"
	"github.com/ternarybob/vidsmith/internal/services/scheduler"
	"github.com/ternarybob/vidsmith/internal/services/tts"
	"github.com/ternarybob/vidsmith/internal/storage/sqlite"
	"github.com/ternarybob/vidsmith/internal/worker"
)

// App holds the shared components of both processes. The control-plane
// server and the worker share the durable store and the broker; the worker
// additionally carries the outbound service clients and the task runtime.
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	StorageManager interfaces.StorageManager
	Broker         interfaces.Broker

	// Control plane
	AuthService    *auth.Service
	Scheduler      *scheduler.Service
	APIHandler     *handlers.APIHandler
	AuthHandler    *handlers.AuthHandler
	UserHandler    *handlers.UserHandler
	CatalogHandler *handlers.CatalogHandler
	JobHandler     *handlers.JobHandler

	// Data plane
	LLMService *llm.Service
	Runtime    *worker.Runtime
}

// newCore wires the components common to both processes.
func newCore(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	storageManager, err := sqlite.NewManager(logger, &cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	app.StorageManager = storageManager

	queueBroker, err := broker.NewBadgerBroker(logger, &cfg.Broker)
	if err != nil {
		storageManager.Close()
		return nil, fmt.Errorf("failed to initialize broker: %w", err)
	}
	app.Broker = queueBroker

	return app, nil
}

// NewServer wires the control-plane process: HTTP handlers plus the janitor
// scheduler that feeds the maintenance queue.
func NewServer(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app, err := newCore(cfg, logger)
	if err != nil {
		return nil, err
	}

	app.AuthService = auth.NewService(logger, cfg, app.StorageManager.Users())
	app.Scheduler = scheduler.NewService(logger, cfg, app.Broker)

	app.APIHandler = handlers.NewAPIHandler(app.StorageManager, app.Broker, cfg)
	app.AuthHandler = handlers.NewAuthHandler(app.AuthService)
	app.UserHandler = handlers.NewUserHandler(app.StorageManager.Users())
	app.CatalogHandler = handlers.NewCatalogHandler(app.StorageManager.Catalog())
	app.JobHandler = handlers.NewJobHandler(app.StorageManager, app.Broker)

	return app, nil
}

// NewWorker wires the data-plane process: outbound service clients, the
// pipeline dependencies, and the task runtime with all handlers registered.
func NewWorker(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app, err := newCore(cfg, logger)
	if err != nil {
		return nil, err
	}

	llmService, err := llm.NewService(logger, cfg)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize llm service: %w", err)
	}
	app.LLMService = llmService

	// The worker serves the health surface on its probe port.
	app.APIHandler = handlers.NewAPIHandler(app.StorageManager, app.Broker, cfg)

	// Batches fan out through the broker; singles hit the HTTP client.
	imageClient := imagegen.NewService(logger, cfg)
	deps := steps.Deps{
		TTS:          tts.NewService(logger, cfg),
		Images:       imagegen.NewBrokerBatcher(logger, app.Broker, imageClient, cfg.BrokerPollInterval()),
		Storage:      objectstore.NewService(logger, cfg),
		DigitalHuman: dhuman.NewService(logger, cfg),
		LLM:          llmService,
		Splits:       app.StorageManager.Splits(),
		Media:        media.NewEngine(logger, cfg.Worker.VideoPoolSize),
		Logger:       logger,
	}

	jobExecutor := executor.NewJobExecutor(logger, cfg, app.StorageManager, deps)
	maintenance := worker.NewMaintenance(logger, cfg, app.StorageManager.Executions())

	runtime := worker.NewRuntime(logger, cfg, app.Broker)
	runtime.Register(interfaces.TaskProcessVideoJob, jobExecutor.Execute)
	runtime.Register(interfaces.TaskGenerateSingleImage, jobExecutor.RegenerateImage)
	runtime.Register(scheduler.TaskResetStuck, maintenance.ResetStuck)
	runtime.Register(scheduler.TaskCleanupOld, maintenance.CleanupOld)
	runtime.Register(scheduler.TaskCheckHealth, maintenance.CheckHealth)
	app.Runtime = runtime

	return app, nil
}

// Close releases the broker, the store and any open service caches.
func (a *App) Close() {
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}
	if a.Runtime != nil {
		a.Runtime.Stop()
	}
	if a.LLMService != nil {
		if err := a.LLMService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close LLM service")
		}
	}
	if a.Broker != nil {
		if err := a.Broker.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close broker")
		}
	}
	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close storage")
		}
	}
}
