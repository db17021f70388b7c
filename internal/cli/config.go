package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func ConfigCmd(env *environment) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Read and change queue settings (backoff_base, backoff_max, max_retries, job_timeout)",
	}

	getCmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Print a setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := env.open(cmd)
			if err != nil {
				return err
			}

			value, err := application.Queue.GetConfig(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), value)
			return nil
		},
	}

	setCmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change a setting",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := env.open(cmd)
			if err != nil {
				return err
			}

			if err := application.Queue.SetConfig(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "config set %s = %s\n", args[0], args[1])
			return nil
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Print every setting",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := env.open(cmd)
			if err != nil {
				return err
			}

			values, err := application.Queue.ListConfig(cmd.Context())
			if err != nil {
				return err
			}

			keys := make([]string, 0, len(values))
			for key := range values {
				keys = append(keys, key)
			}
			sort.Strings(keys)

			for _, key := range keys {
				fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", key, values[key])
			}
			return nil
		},
	}

	configCmd.AddCommand(getCmd)
	configCmd.AddCommand(setCmd)
	configCmd.AddCommand(listCmd)
	return configCmd
}
