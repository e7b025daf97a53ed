package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crowdcounter/internal/config"
	"crowdcounter/internal/logger"
	"crowdcounter/internal/metrics"
	"crowdcounter/internal/model"
	"crowdcounter/internal/repository"
	"crowdcounter/internal/repository/sqlite"
	"crowdcounter/internal/route"
	"crowdcounter/internal/service"
	"crowdcounter/internal/service/ai"
	"crowdcounter/internal/service/history"
	"crowdcounter/internal/service/storage"
	"crowdcounter/internal/service/stream"
	"crowdcounter/internal/service/websocket"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config      *config.Config
	logger      *logger.Logger
	metrics     *metrics.Metrics
	db          *sqlite.DB
	registry    *stream.Registry
	model       *ai.NetModel
	pool        *storage.SavePool
	history     *history.Ring
	hubService  *websocket.HubService
	predictions *sqlite.PredictionRepository
	manager     *service.Manager
}

// NewApp loads configuration and builds every component. Anything opened
// before a failure is closed again.
func NewApp() (*App, error) {
	cfg := config.Load()
	log := logger.NewLogger(cfg)
	m := metrics.New()

	cameras, err := config.LoadCameras(cfg.CameraConfig, cfg.CameraUser, cfg.CameraPassword)
	if err != nil {
		return nil, err
	}

	db, err := sqlite.New(cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	area, err := registerArea(sqlite.NewAreaRepository(db), sqlite.NewCameraRepository(db), cfg, cameras)
	if err != nil {
		db.Close()
		return nil, err
	}

	netModel, err := ai.NewNetModel(cfg.ModelPath, cfg.ModelConfigPath, cfg.Device, log)
	if err != nil {
		db.Close()
		return nil, err
	}

	registry, err := stream.OpenAll(cameras, stream.ReaderOptions{
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
	}, log, m)
	if err != nil {
		netModel.Close()
		db.Close()
		return nil, err
	}

	pool := storage.NewSavePool(cfg.SaveWorkers, cfg.SaveQueueSize, log, m)
	orchestrator := ai.NewOrchestrator(netModel, ai.Options{
		Batch:           cfg.BatchPrediction,
		PersistOriginal: cfg.SaveImages,
		PersistOverlay:  cfg.SaveDensityMaps,
		OutputDir:       cfg.PredictionsDir,
		JPEGQuality:     cfg.JPEGQuality,
	}, log, m)

	ring := history.NewRing(cfg.HistorySize)
	hub := websocket.NewHubService(log)
	predictions := sqlite.NewPredictionRepository(db)

	mng := service.NewManager(service.Dependencies{
		Orchestrator: orchestrator,
		Source:       registry,
		Pool:         pool,
		Recorder:     predictions,
		History:      ring,
		Hub:          hub,
	}, area.ID, cfg.CycleInterval, log, m)

	return &App{
		config:      cfg,
		logger:      log,
		metrics:     m,
		db:          db,
		registry:    registry,
		model:       netModel,
		pool:        pool,
		history:     ring,
		hubService:  hub,
		predictions: predictions,
		manager:     mng,
	}, nil
}

// registerArea gets or creates the configured area and upserts every camera
// into it. Predictions reference cameras by name, so a camera that cannot be
// registered fails startup.
func registerArea(areas repository.AreaRepository, cameraRepo repository.CameraRepository, cfg *config.Config, cameras []model.CameraConfig) (*model.Area, error) {
	area, err := areas.GetOrCreate(cfg.AreaName, cfg.AreaDesc)
	if err != nil {
		return nil, fmt.Errorf("failed to register area %q: %w", cfg.AreaName, err)
	}

	for _, c := range cameras {
		if _, err := cameraRepo.Upsert(c.Name, c.SourceURI, area.ID); err != nil {
			return nil, fmt.Errorf("failed to register camera %s: %w", c.Name, err)
		}
	}
	return area, nil
}

// Run serves HTTP and drives cycles until SIGINT/SIGTERM or a server error,
// then shuts down in order: HTTP, save pool, readers, model, database.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go a.hubService.Run(ctx)

	router := route.SetupRoutes(route.Services{
		Hub:         a.hubService,
		History:     a.history,
		Predictions: a.predictions,
		Cameras:     a.registry,
		Metrics:     a.metrics,
	}, a.config, a.logger)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.config.Port),
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	managerDone := make(chan struct{})
	go func() {
		a.manager.Run(ctx)
		close(managerDone)
	}()

	fmt.Printf("🚀 Crowd Counter\n")
	fmt.Printf("📍 URL: http://localhost:%d\n", a.config.Port)
	fmt.Printf("📷 Cameras: %d (%s)\n", a.registry.Len(), a.config.AreaName)
	fmt.Printf("🤖 AI Model: %s on %s\n", a.config.ModelPath, a.model.Device())
	fmt.Printf("⏱️  Interval: %s\n", a.manager.Interval())
	if a.config.SaveImages || a.config.SaveDensityMaps {
		fmt.Printf("📁 Predictions: %s\n", a.config.PredictionsDir)
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("Shutdown signal received")
	case runErr = <-serverErr:
		a.logger.Error("HTTP server failed: %v", runErr)
		stop()
	}

	<-managerDone
	a.shutdown(server)
	return runErr
}

func (a *App) shutdown(server *http.Server) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("HTTP shutdown: %v", err)
	}

	a.pool.Drain()
	a.registry.ReleaseAll()
	if err := a.model.Close(); err != nil {
		a.logger.Error("Closing model: %v", err)
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("Closing database: %v", err)
	}
	a.logger.Info("👋 Shutdown complete")
}
