package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func EnqueueCmd(env *environment) *cobra.Command {
	return &cobra.Command{
		Use:   "enqueue <job-json|file>",
		Short: "Add a job to the queue",
		Long: `Add a job to the queue. The argument is either a JSON object such as
{"id":"job1","command":"echo hi","max_retries":3} or the path to a file
holding one. Only "command" is required.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := env.open(cmd)
			if err != nil {
				return err
			}

			job, err := application.Queue.EnqueueInput(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Enqueued job %s\n", job.ID)
			return nil
		},
	}
}
