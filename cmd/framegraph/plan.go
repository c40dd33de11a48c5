package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newPlanCmd() *cobra.Command {
	f := &workflowFlags{}
	cmd := &cobra.Command{
		Use:   "plan <file>",
		Short: "Print the stages a workflow would run in",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := f.compile(args[0], cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer plan.Close()
			fmt.Fprintln(cmd.OutOrStdout(), plan.String())
			return nil
		},
	}
	f.register(cmd, true)
	return cmd
}
