package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vin-jex/queuectl/internal/store"
	"github.com/vin-jex/queuectl/internal/supervisor"
)

func StatusCmd(env *environment) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show job counts by state, the DLQ size and worker status",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := env.open(cmd)
			if err != nil {
				return err
			}

			status, err := application.Queue.Status(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, state := range store.JobStates {
				fmt.Fprintf(out, "%s: %d\n", state, status.Jobs[state])
			}
			fmt.Fprintf(out, "dlq: %d\n", status.DeadLettered)
			fmt.Fprintf(out, "workers: %d\n", status.Workers)

			supervisorStatus, err := supervisor.Inspect(supervisor.NewPIDFile(env.config.PIDPath()))
			if err != nil {
				return err
			}
			fmt.Fprintln(out, describeSupervisor(supervisorStatus))

			return nil
		},
	}
}

func describeSupervisor(status supervisor.Status) string {
	switch {
	case status.PID == 0:
		return "supervisor: not running"
	case status.Running:
		return fmt.Sprintf("supervisor: running (pid %d)", status.PID)
	default:
		return fmt.Sprintf("supervisor: stale pidfile (pid %d)", status.PID)
	}
}
