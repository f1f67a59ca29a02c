package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func (a *app) entriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "entries",
		Short: "List the boot options in BootOrder with their device paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, _, err := a.resolver()
			if err != nil {
				return err
			}
			entries, err := r.Entries()
			if err != nil {
				return fmt.Errorf("couldn't list boot entries: %w", err)
			}
			return a.print(entries, func(w io.Writer) error {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				for _, e := range entries {
					mark := " "
					if e.Current {
						mark = "*"
					}
					if !e.Active {
						mark += "-"
					}
					detail := e.Path
					if e.Error != "" {
						detail = "error: " + e.Error
					}
					if e.Updated != nil {
						detail += fmt.Sprintf(" (updated %s, count %d)", e.Updated.Format(time.RFC3339), e.MonotonicCount)
					}
					fmt.Fprintf(tw, "%s%s\t%s\t%s\n", mark, e.Name, orNA(e.Description), detail)
				}
				return tw.Flush()
			})
		},
	}
}
