package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func RecoverCmd(env *environment) *cobra.Command {
	return &cobra.Command{
		Use:   "recover",
		Short: "Return jobs with expired leases to the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := env.open(cmd)
			if err != nil {
				return err
			}

			recovered, err := application.Queue.RecoverExpired(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Recovered %d job(s)\n", len(recovered))
			for _, id := range recovered {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", id)
			}
			return nil
		},
	}
}
