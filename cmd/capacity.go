package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCapacityCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "capacity",
		Short: "Show how many guest identifiers remain",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newApplication(opts.cfg, opts.logger)
			if err != nil {
				return err
			}
			defer app.Close()

			report, err := app.generator.Remaining(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "capacity:  %d\nissued:    %d\nremaining: %d\n",
				report.Capacity, report.Issued, report.Remaining)
			return nil
		},
	}
}
