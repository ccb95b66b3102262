package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newValidateCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <job-file|source>",
		Short: "Check a job declaration without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := app.loadJob(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			steps := j.Steps()
			cleanup := 0
			for _, s := range steps {
				if s.AlwaysRun() {
					cleanup++
				}
			}
			fmt.Fprintf(app.Stdout, "job %s is valid: %d steps, %d of them always run\n", j.Name(), len(steps), cleanup)
			return nil
		},
	}
}
