package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/juju/errors"
	"github.com/spf13/cobra"

	"github.com/mumoshu/runjob/version"
)

func newVersionCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v := version.Get()
			if app.output == "json" {
				data, err := json.Marshal(v)
				if err != nil {
					return errors.Trace(err)
				}
				fmt.Fprintln(app.Stdout, string(data))
				return nil
			}
			fmt.Fprintf(app.Stdout, "runjob %s (%s, %s)\n", v.Version, v.GoVersion, v.Platform)
			return nil
		},
	}
}
