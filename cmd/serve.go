package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"wifiticket/guestpass/internal/handler"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger := opts.cfg, opts.logger

			// 3. Wire stores and services
			app, err := newApplication(cfg, logger)
			if err != nil {
				return err
			}
			defer app.Close()

			// 4. Setup router
			router := handler.SetupRouter(cfg, logger,
				handler.NewTicketHandler(app.tickets, cfg.Generator.BatchSize, logger.Named("http")),
				handler.NewHistoryHandler(app.generator, logger.Named("http")),
			)

			// 5. Create HTTP server
			addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
			srv := &http.Server{
				Addr:         addr,
				Handler:      router,
				ReadTimeout:  cfg.Server.ReadTimeout,
				WriteTimeout: cfg.Server.WriteTimeout,
			}

			// 6. Start server with graceful shutdown
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				logger.Info("server starting",
					zap.String("addr", addr),
					zap.String("generate", fmt.Sprintf("http://localhost:%d/api/generate", cfg.Server.Port)))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			// 7. Wait for interrupt signal
			select {
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("server failed: %w", err)
				}
			case <-ctx.Done():
			}
			logger.Info("shutting down server...")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server forced to shutdown: %w", err)
			}
			logger.Info("server exited gracefully")
			return nil
		},
	}
}
