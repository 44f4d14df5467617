package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/adresconsulta/eps-api/internal/config"
	"github.com/adresconsulta/eps-api/internal/services"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ShutdownTimeout bounds graceful shutdown once ctx is cancelled
const ShutdownTimeout = 30 * time.Second

// Serve runs the HTTP server and its background sweepers until ctx ends,
// then drains in-flight requests.
func Serve(ctx context.Context, cfg *config.Config, logger *logrus.Logger, container *services.Container) error {
	server := NewServer(cfg, logger, container)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.Router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.WithFields(logrus.Fields{
			"port":        cfg.Server.Port,
			"environment": cfg.Server.Environment,
			"prompt_mode": cfg.Captcha.PromptMode,
		}).Info("Server starting...")

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		server.Cleanup(gctx)
		return nil
	})

	g.Go(func() error {
		services.StartSweeper(gctx, container.Store, cfg.Storage.Retention, cfg.Storage.SweepInterval, logger)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Server exited")
	return nil
}
