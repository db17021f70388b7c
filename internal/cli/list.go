package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vin-jex/queuectl/internal/store"
)

func ListCmd(env *environment) *cobra.Command {
	var (
		state string
		limit int
	)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := env.open(cmd)
			if err != nil {
				return err
			}

			jobs, err := application.Queue.ListJobs(cmd.Context(), state, limit)
			if err != nil {
				return err
			}

			if len(jobs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No jobs found.")
				return nil
			}

			writer := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(writer, "ID\tSTATE\tATTEMPTS\tMAX RETRIES\tNEXT ATTEMPT\tCOMMAND\tLAST ERROR")
			for _, job := range jobs {
				fmt.Fprintf(
					writer,
					"%s\t%s\t%d\t%d\t%s\t%s\t%s\n",
					job.ID,
					job.State,
					job.Attempts,
					job.MaxRetries,
					formatEpoch(job),
					job.Command,
					firstLine(job.LastError),
				)
			}
			return writer.Flush()
		},
	}

	listCmd.Flags().StringVar(&state, "state", "", "filter by state (pending, processing, completed)")
	listCmd.Flags().IntVar(&limit, "limit", 0, "maximum number of jobs to show (0 for all)")

	return listCmd
}

func formatEpoch(job store.Job) string {
	if job.State != store.JobPending || job.NextAttempt <= 0 {
		return "-"
	}
	return time.Unix(job.NextAttempt, 0).Format(time.DateTime)
}

func firstLine(text string) string {
	for i, r := range text {
		if r == '\n' {
			return text[:i]
		}
	}
	return text
}
