package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"photoreviver/internal/cache"
	"photoreviver/internal/config"
	"photoreviver/internal/logger"
	"photoreviver/internal/repository"
	"photoreviver/internal/repository/sqlite"
	"photoreviver/internal/routes"
	"photoreviver/internal/service"
	"photoreviver/internal/service/imaging"
	"photoreviver/internal/service/remote"
	"photoreviver/internal/service/storage"
	"photoreviver/internal/service/websocket"

	"github.com/thejerf/suture/v4"
)

const cacheGCInterval = 10 * time.Minute

// App wires configuration, engines, storage and the HTTP API together.
type App struct {
	config  *config.Config
	logger  *logger.Logger
	manager *service.Manager
	hub     *websocket.HubService
	buffer  *storage.BufferService // nil when history is disabled
	cache   *cache.Cache           // nil when caching is disabled
	db      *sqlite.DB             // nil when history is disabled
	server  *http.Server
}

// New builds every component described by cfg. Call Run to serve.
func New(cfg *config.Config, log *logger.Logger) (*App, error) {
	a := &App{config: cfg, logger: log}

	var repo repository.RestorationRepository
	if cfg.History.Enabled {
		db, err := sqlite.New(cfg.History.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open history database: %w", err)
		}
		a.db = db
		restorations := sqlite.NewRestorationRepository(db)
		repo = restorations
		a.buffer = storage.NewBufferService(cfg, log, restorations)
	}

	if cfg.Cache.Enabled {
		c, err := cache.Open(cfg.Cache.Path, cfg.Cache.TTL)
		if err != nil {
			a.closeStores()
			return nil, err
		}
		a.cache = c
	}

	a.hub = websocket.NewHubService(log)

	local := imaging.NewProcessor(imaging.ParamsFromConfig(cfg.Processing))
	client := remote.NewClient(cfg.Remote, log)
	engines := []service.Engine{local, remote.NewEngine(client, cfg.Remote, cfg.Processing.JPEGQuality)}
	if !client.Configured() {
		log.Warning("Remote engine has no API token; engine=remote requests will be rejected")
	}

	opts := service.ManagerOptions{
		Engines:       engines,
		DefaultEngine: cfg.Processing.DefaultEngine,
		Workers:       cfg.Processing.Workers,
		QueueSize:     cfg.Processing.QueueSize,
		Cache:         a.cache,
		Buffer:        a.buffer,
		Hub:           a.hub,
		Logger:        log,
	}
	a.manager = service.NewManager(opts)

	router := routes.SetupRoutes(routes.Dependencies{
		Restorer: a.manager,
		Hub:      a.hub,
		Repo:     repo,
		Config:   cfg,
		Logger:   log,
	})

	a.server = &http.Server{
		Addr:         cfg.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return a, nil
}

// Run serves until ctx is cancelled, then drains the workers and flushes
// whatever is still buffered before releasing the stores.
func (a *App) Run(ctx context.Context) error {
	root := suture.New("photoreviver", suture.Spec{
		EventHook: func(e suture.Event) {
			a.logger.Warning("Supervisor: %s", e)
		},
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		Timeout:          a.config.Server.ShutdownTimeout,
	})

	root.Add(a.hub)
	if a.buffer != nil {
		root.Add(a.buffer)
	}
	if a.cache != nil {
		root.Add(&cacheGCService{cache: a.cache, interval: cacheGCInterval, logger: a.logger})
	}
	root.Add(&httpService{server: a.server, shutdownTimeout: a.config.Server.ShutdownTimeout})

	a.logger.Info("Smart Photo Reviver API listening on http://%s", a.config.Address())
	a.logger.Info("Default engine: %s, workers: %d, queue: %d", a.config.Processing.DefaultEngine,
		a.config.Processing.Workers, a.config.Processing.QueueSize)
	if a.buffer != nil {
		a.logger.Info("History: %s, archive: %s", a.config.History.DatabasePath, a.config.History.ArchiveDirectory)
	}

	err := root.Serve(ctx)

	a.manager.Stop()
	if a.buffer != nil {
		a.buffer.Flush()
	}
	a.closeStores()

	if ctx.Err() != nil {
		a.logger.Info("Server stopped")
		return nil
	}
	return err
}

// Handler exposes the router, mainly for tests.
func (a *App) Handler() http.Handler {
	return a.server.Handler
}

func (a *App) closeStores() {
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Error("Error closing cache: %v", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("Error closing history database: %v", err)
		}
	}
}
