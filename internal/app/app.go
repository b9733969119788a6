package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-file-collector/internal/config"
	"go-file-collector/internal/database"
	"go-file-collector/internal/handler"
	"go-file-collector/internal/keylock"
	"go-file-collector/internal/repository"
	"go-file-collector/internal/router"
	"go-file-collector/internal/service"
	"go-file-collector/internal/storage"
)

// App wires configuration, storage, database, services, and the HTTP
// server together.
type App struct {
	cfg    *config.Config
	db     *database.DB
	server *http.Server
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	store, err := storage.New(cfg.UploadsRoot)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	slog.Info("storage ready", "root", store.RootAbs())

	db, err := database.New(ctx, database.Config{
		URL:               cfg.DatabaseURL,
		MaxConns:          cfg.DBMaxConns,
		MinConns:          cfg.DBMinConns,
		ConnLifetime:      cfg.DBConnLifetime,
		ConnIdleTime:      cfg.DBConnIdleTime,
		HealthCheckPeriod: cfg.DBHealthCheckPeriod,
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := db.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	taskRepo := repository.NewTaskRepository(db.Pool)
	settingsRepo := repository.NewSettingsRepository(db.Pool)

	locks := keylock.New()

	authSvc := service.NewAuthService(settingsRepo, cfg.JWTSecret, cfg.JWTTTL)
	if err := authSvc.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminPassword); err != nil {
		db.Close()
		return nil, fmt.Errorf("seed admin: %w", err)
	}

	admissionSvc := service.NewAdmissionService(taskRepo, settingsRepo, store)
	taskSvc := service.NewTaskService(taskRepo, store)
	uploadSvc := service.NewUploadService(admissionSvc, taskRepo, store, locks)
	chunkSvc := service.NewChunkedUploadService(admissionSvc, taskRepo, store, locks)
	settingsSvc := service.NewSettingsService(settingsRepo, settingsRepo)

	handlers := router.Handlers{
		Health:   handler.NewHealthHandler(db),
		Auth:     handler.NewAuthHandler(authSvc),
		Task:     handler.NewTaskHandler(taskSvc),
		Upload:   handler.NewUploadHandler(admissionSvc, uploadSvc, chunkSvc, taskSvc, cfg.MaxUploadSize),
		Settings: handler.NewSettingsHandler(settingsSvc),
	}

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router.New(cfg, handlers, authSvc),
		ReadHeaderTimeout: cfg.ServerReadHeaderTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	return &App{cfg: cfg, db: db, server: srv}, nil
}

// Run serves until the context is cancelled or a termination signal
// arrives, then drains in-flight requests before returning.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		a.db.Close()
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := a.server.Shutdown(shutdownCtx)
	a.db.Close()
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	slog.Info("server stopped")
	return nil
}
