package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func DLQCmd(env *environment) *cobra.Command {
	dlqCmd := &cobra.Command{
		Use:   "dlq",
		Short: "Inspect and replay the dead letter queue",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List dead-lettered jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := env.open(cmd)
			if err != nil {
				return err
			}

			entries, err := application.Queue.ListDLQ(cmd.Context())
			if err != nil {
				return err
			}

			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Dead letter queue is empty.")
				return nil
			}

			writer := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(writer, "ID\tATTEMPTS\tFAILED AT\tCOMMAND\tLAST ERROR")
			for _, entry := range entries {
				fmt.Fprintf(
					writer,
					"%s\t%d\t%s\t%s\t%s\n",
					entry.ID,
					entry.Attempts,
					entry.FailedAt.Local().Format(time.DateTime),
					entry.Command,
					firstLine(entry.LastError),
				)
			}
			return writer.Flush()
		},
	}

	retryCmd := &cobra.Command{
		Use:   "retry <job-id>",
		Short: "Move a dead-lettered job back to pending with a fresh retry budget",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := env.open(cmd)
			if err != nil {
				return err
			}

			job, err := application.Queue.RetryDLQ(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Moved %s from DLQ back to pending\n", job.ID)
			return nil
		},
	}

	dlqCmd.AddCommand(listCmd)
	dlqCmd.AddCommand(retryCmd)
	return dlqCmd
}
