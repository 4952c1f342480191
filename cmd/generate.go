package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"wifiticket/guestpass/internal/service"
)

func newGenerateCommand(opts *rootOptions) *cobra.Command {
	var (
		count       int
		printSheet  bool
		printerName string
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate one sheet of guest credentials",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newApplication(opts.cfg, opts.logger)
			if err != nil {
				return err
			}
			defer app.Close()

			if !cmd.Flags().Changed("count") {
				count = opts.cfg.Generator.BatchSize
			}
			res, err := app.tickets.Issue(cmd.Context(), service.IssueOptions{
				Count:   count,
				Print:   printSheet,
				Printer: printerName,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "batch %s: %d credentials\n", res.Batch.ID, len(res.Batch.Records))
			if !res.Batch.HistoryLoaded() {
				fmt.Fprintln(out, "warning: identifier history could not be read, these identifiers may repeat earlier batches")
			}
			if res.Batch.LockErr != nil {
				fmt.Fprintln(out, "warning: history lock was lost, another batch may have issued the same identifiers")
			} else if !res.Batch.HistoryRecorded() {
				fmt.Fprintln(out, "warning: identifier history was not saved, these identifiers may be issued again")
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "USERNAME\tPASSWORD\tEXPIRES")
			for _, r := range res.Batch.Records {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", r.GuestID, r.Password, r.Expiration)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			for _, path := range []string{res.JSONPath, res.CSVPath, res.PDFPath} {
				if path != "" {
					fmt.Fprintln(out, "wrote", path)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 20, "number of credentials (defaults to generator.batch_size)")
	cmd.Flags().BoolVar(&printSheet, "print", false, "send the sheet to a printer")
	cmd.Flags().StringVar(&printerName, "printer", "", "printer name (default printer when empty)")
	return cmd
}
