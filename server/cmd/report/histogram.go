package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/waterworm/waterworm/pkg/analysis"
	"github.com/waterworm/waterworm/pkg/format"
	"github.com/waterworm/waterworm/server/internal/render"
)

func newHistogramCmd(opts *options) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "histogram",
		Short: "Print the total donated per donation-size range",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			src, samples, err := opts.load(cmd)
			if err != nil {
				return err
			}
			bins := analysis.Histogram(analysis.Increments(samples))

			w := cmd.OutOrStdout()
			fmt.Fprintln(w, "Total amount by donation size range:")
			for _, b := range bins {
				fmt.Fprintf(w, "%s: %s\n", b.Label, format.Money(b.Total))
			}
			fmt.Fprintf(w, "\nOverall total: %s\n", format.Money(analysis.HistogramTotal(bins)))

			if out == "" {
				return nil
			}
			if err := writeFile(out, func(w io.Writer) error {
				return render.HistogramChart(w, src.Name, bins)
			}); err != nil {
				return err
			}
			slog.Info("report: histogram written", "source", src.ID, "path", out)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "also write the bar chart PNG to this path")
	return cmd
}
