// Package cli implements the queuectl command tree.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vin-jex/queuectl/internal/app"
	"github.com/vin-jex/queuectl/internal/config"
	"github.com/vin-jex/queuectl/internal/observability"
)

// environment is shared by every command. The store is opened on first use
// so that commands such as "worker stop" never touch the database.
type environment struct {
	config *config.Config
	app    *app.App
}

func (e *environment) logger(component string) *slog.Logger {
	return observability.NewLogger(component, e.config.LogLevel, e.config.LogFormat)
}

func (e *environment) open(cmd *cobra.Command) (*app.App, error) {
	if e.app != nil {
		return e.app, nil
	}

	application, err := app.Open(cmd.Context(), e.config, e.logger("queuectl"))
	if err != nil {
		return nil, err
	}

	e.app = application
	return application, nil
}

func (e *environment) close() {
	if e.app == nil {
		return
	}
	if err := e.app.Close(); err != nil {
		e.app.Logger.Warn("store close failed", "err", err)
	}
	e.app = nil
}

func newRootCmd(env *environment) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "queuectl",
		Short:         "A durable background job queue for shell commands",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			env.config = cfg
			return nil
		},
	}

	rootCmd.AddCommand(EnqueueCmd(env))
	rootCmd.AddCommand(ListCmd(env))
	rootCmd.AddCommand(StatusCmd(env))
	rootCmd.AddCommand(DLQCmd(env))
	rootCmd.AddCommand(ConfigCmd(env))
	rootCmd.AddCommand(WorkerCmd(env))
	rootCmd.AddCommand(RecoverCmd(env))
	rootCmd.AddCommand(DashboardCmd(env))

	return rootCmd
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context, args []string) int {
	env := &environment{}
	defer env.close()

	rootCmd := newRootCmd(env)
	rootCmd.SetArgs(args)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}

	return 0
}
