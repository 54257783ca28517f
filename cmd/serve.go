package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/UnknownOlympus/meridian/internal/server"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the geocoding HTTP API with health and metrics endpoints",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		// Create a context that will be canceled when an interrupt signal is received.
		// This allows for graceful shutdown.
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp()
		if err != nil {
			return err
		}

		if a.cfg.Env != envLocal {
			gin.SetMode(gin.ReleaseMode)
		}

		srv := server.NewServer(fmt.Sprintf(":%d", a.cfg.Port), a.provider, a.registry, a.log)

		errCh := make(chan error, 1)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		// Log that the application has started.
		a.log.InfoContext(ctx, "Application started. Press Ctrl+C to stop.")

		select {
		case <-ctx.Done():
			a.log.InfoContext(ctx, "Shutdown signal received. Stopping application...")
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("http server failed: %w", err)
			}
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down http server: %w", err)
		}

		// Log graceful shutdown completion.
		a.log.InfoContext(ctx, "Application stopped gracefully.")

		return nil
	},
}
