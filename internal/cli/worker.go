package cli

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/vin-jex/queuectl/internal/supervisor"
	"github.com/vin-jex/queuectl/internal/worker"
)

func WorkerCmd(env *environment) *cobra.Command {
	workerCmd := &cobra.Command{
		Use:   "worker",
		Short: "Manage worker processes",
	}

	workerCmd.AddCommand(workerStartCmd(env))
	workerCmd.AddCommand(workerStopCmd(env))
	workerCmd.AddCommand(workerStatusCmd(env))
	workerCmd.AddCommand(workerRunCmd(env))

	return workerCmd
}

func workerStartCmd(env *environment) *cobra.Command {
	var count int

	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start a supervisor running one or more worker processes",
		Long: `Start a supervisor in the foreground. It records its pid in the pidfile,
runs --count worker processes and restarts the ones that crash. SIGINT or
SIGTERM (or "queuectl worker stop") lets running jobs finish before exit.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Create the schema once before the children race to do it.
			if _, err := env.open(cmd); err != nil {
				return err
			}
			env.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			s := supervisor.New(supervisor.Config{
				PIDFile:       supervisor.NewPIDFile(env.config.PIDPath()),
				ShutdownGrace: env.config.ShutdownGrace,
				MaxRestarts:   env.config.MaxRestarts,
			}, env.logger("supervisor"))

			err := s.Start(ctx, count)
			if errors.Is(err, supervisor.ErrAlreadyRunning) {
				return fmt.Errorf("%w: stop it first with \"queuectl worker stop\"", err)
			}
			return err
		},
	}

	startCmd.Flags().IntVar(&count, "count", 1, "number of worker processes")
	return startCmd
}

func workerStopCmd(env *environment) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Ask the running supervisor to shut down gracefully",
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := supervisor.Stop(supervisor.NewPIDFile(env.config.PIDPath()))
			if errors.Is(err, supervisor.ErrNotRunning) {
				fmt.Fprintln(cmd.OutOrStdout(), "No supervisor is running.")
				return nil
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Sent SIGTERM to supervisor pid %d\n", pid)
			return nil
		},
	}
}

func workerStatusCmd(env *environment) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the supervisor and registered workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			status, err := supervisor.Inspect(supervisor.NewPIDFile(env.config.PIDPath()))
			if err != nil {
				return err
			}
			fmt.Fprintln(out, describeSupervisor(status))

			application, err := env.open(cmd)
			if err != nil {
				return err
			}

			workers, err := application.Queue.Workers(cmd.Context())
			if err != nil {
				return err
			}

			if len(workers) == 0 {
				fmt.Fprintln(out, "No workers registered.")
				return nil
			}

			writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(writer, "SLOT\tPID\tSTATE\tID\tLAST HEARTBEAT\tCURRENT JOB")
			for _, w := range workers {
				currentJob := w.CurrentJob
				if currentJob == "" {
					currentJob = "-"
				}
				state := "stale"
				if application.Queue.WorkerLive(w) {
					state = "live"
				}
				fmt.Fprintf(
					writer,
					"%d\t%d\t%s\t%s\t%s\t%s\n",
					w.Slot,
					w.PID,
					state,
					w.ID,
					w.LastHeartbeat.Local().Format(time.DateTime),
					currentJob,
				)
			}
			return writer.Flush()
		},
	}
}

// workerRunCmd is the entrypoint of a supervised child process.
func workerRunCmd(env *environment) *cobra.Command {
	var slot int

	runCmd := &cobra.Command{
		Use:    "run",
		Short:  "Run a single worker in the foreground",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := env.open(cmd)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			w := worker.New(
				uuid.New(),
				worker.Config{
					Slot:              slot,
					PollInterval:      env.config.PollInterval,
					RecoveryInterval:  env.config.RecoveryInterval,
					HeartbeatInterval: env.config.HeartbeatInterval,
				},
				application.Queue,
				worker.NewShellExecutor(),
				env.logger("worker"),
			)

			return w.Run(ctx)
		},
	}

	runCmd.Flags().IntVar(&slot, "slot", 0, "worker slot number")
	return runCmd
}
