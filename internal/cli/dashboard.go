package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vin-jex/queuectl/internal/api"
	"github.com/vin-jex/queuectl/internal/scheduler"
)

func DashboardCmd(env *environment) *cobra.Command {
	var addr string

	dashboardCmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Serve the web dashboard, JSON API and metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := env.open(cmd)
			if err != nil {
				return err
			}

			if addr == "" {
				addr = env.config.DashboardAddr
			}

			logger := env.logger("dashboard")

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			server := api.NewServer(application.Queue, logger)

			httpServer := &http.Server{
				Addr:         addr,
				Handler:      server.Handler(),
				ReadTimeout:  5 * time.Second,
				WriteTimeout: 10 * time.Second,
			}

			go scheduler.New(application.Queue, env.config.RecoveryInterval, logger).Run(ctx)

			serveErr := make(chan error, 1)
			go func() {
				logger.Info("dashboard listening", "addr", addr)
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serveErr <- err
				}
				close(serveErr)
			}()

			select {
			case err := <-serveErr:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			logger.Info("dashboard stopping")
			return httpServer.Shutdown(shutdownCtx)
		},
	}

	dashboardCmd.Flags().StringVar(&addr, "addr", "", "listen address (default $QUEUECTL_DASHBOARD_ADDR)")
	return dashboardCmd
}
