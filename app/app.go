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

	"research_intake/config"
	"research_intake/handler"
	"research_intake/identity"
	"research_intake/intake"
	"research_intake/logger"
	"research_intake/options"
	"research_intake/storage"
	"research_intake/validate"
)

func Run() error {
	ctx, cancel := initContext()
	defer cancel()

	env, err := config.ReadEnv()
	if err != nil {
		return err
	}

	logCfg, err := config.LogFromEnv(env)
	if err != nil {
		return err
	}
	sync, err := logger.Setup(logCfg)
	if err != nil {
		return err
	}
	defer sync()

	cfg, err := config.FromEnv(env)
	if err != nil {
		return err
	}

	backend, err := NewBackend(ctx, cfg)
	if err != nil {
		return err
	}

	svc := intake.NewService(storage.NewWriter(backend), intake.Config{
		BasePath: cfg.Intake.BasePath,
		Limits: validate.Limits{
			MaxBytes:     cfg.Intake.MaxFileSizeBytes(),
			AllowedTypes: cfg.Intake.AllowedTypes,
		},
		Options: options.Default(),
	})

	srv := handler.NewServer(svc, identity.NewResolver(cfg.Auth), cfg.CORS)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.App.Host, cfg.App.Port),
		Handler: srv.Router(),
	}

	serverErr := make(chan error, 1)
	go startHTTPServer(httpServer, serverErr)

	return shutdownServer(ctx, httpServer, cfg.App, serverErr)
}

// NewBackend builds the storage backend selected by STORAGE_BACKEND.
func NewBackend(ctx context.Context, cfg config.Config) (storage.Backend, error) {
	switch cfg.Storage.Backend {
	case config.BackendVolumes:
		return storage.NewVolumes(cfg.Volumes)
	case config.BackendMinIO:
		m, err := storage.NewMinIO(cfg.MinIO)
		if err != nil {
			return nil, err
		}
		if err := m.EnsureBucket(ctx, cfg.MinIO.Location); err != nil {
			return nil, err
		}
		return m, nil
	case config.BackendS3:
		return storage.NewS3(ctx, cfg.S3)
	case config.BackendLocal:
		return storage.NewLocal(cfg.Local.Root)
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
}

func initContext() (context.Context, context.CancelFunc) {
	return context.WithCancel(context.Background())
}

func startHTTPServer(server *http.Server, serverErr chan<- error) {
	slog.Info("starting HTTP server", "address", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("error starting HTTP server", "error", err)
		serverErr <- err
	}
}

func shutdownServer(ctx context.Context, server *http.Server, cfg config.AppConfig, serverErr <-chan error) error {
	shutdownSignals := make(chan os.Signal, 1)
	signal.Notify(shutdownSignals, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGQUIT)
	defer signal.Stop(shutdownSignals)

	select {
	case sig := <-shutdownSignals:
		slog.Info("received shutdown signal", "signal", sig.String())
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		slog.Info("context canceled")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)

		if err := server.Close(); err != nil {
			slog.Error("forced shutdown failed", "error", err)
			return err
		}
	}

	slog.Info("server stopped")
	return nil
}
