package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/waterworm/waterworm/pkg/analysis"
	"github.com/waterworm/waterworm/pkg/format"
	"github.com/waterworm/waterworm/server/internal/render"
)

func newAnalyzeCmd(opts *options) *cobra.Command {
	var chartsDir string
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Print donation statistics and large donations",
		Long: `Analyze the increments of a progress log in file order: mean,
median and tail percentiles of the positive increments, the donations above
the 95th percentile, and the totals with those donations smoothed out.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			src, samples, err := opts.load(cmd)
			if err != nil {
				return err
			}
			rep, err := analysis.Analyze(samples)
			if err != nil && !errors.Is(err, analysis.ErrInsufficientData) {
				return err
			}
			out := cmd.OutOrStdout()
			if err != nil {
				printInsufficient(out, rep)
				return nil
			}
			printReport(out, rep)

			if chartsDir == "" {
				return nil
			}
			series := rep.Series()
			trend := filepath.Join(chartsDir, "trend.png")
			if err := writeFile(trend, func(w io.Writer) error {
				return render.TrendChart(w, src.Name, series)
			}); err != nil {
				return err
			}
			incs := filepath.Join(chartsDir, "increments.png")
			if err := writeFile(incs, func(w io.Writer) error {
				return render.IncrementsChart(w, src.Name, series, rep.Threshold)
			}); err != nil {
				return err
			}
			slog.Info("report: charts written", "source", src.ID, "trend", trend, "increments", incs)
			return nil
		},
	}
	cmd.Flags().StringVar(&chartsDir, "charts", "", "also write trend.png and increments.png into this directory")
	return cmd
}

func printReport(w io.Writer, rep *analysis.Report) {
	fmt.Fprintln(w, "Donation statistics:")
	fmt.Fprintf(w, "Mean incremental: %s\n", format.Money(rep.Mean))
	fmt.Fprintf(w, "Median incremental: %s\n", format.Money(rep.Median))
	fmt.Fprintf(w, "95th percentile: %s\n", format.Money(rep.P95))
	fmt.Fprintf(w, "99th percentile: %s\n", format.Money(rep.P99))
	fmt.Fprintf(w, "\nUsing threshold of %s for large donations\n", format.Money(rep.Threshold))

	fmt.Fprintln(w, "\nLarge donations identified:")
	for _, ev := range rep.LargeEvents {
		fmt.Fprintf(w, "%s: %s\n", ev.Timestamp.UTC().Format("2006-01-02 15:04"), format.Money(ev.Increment))
	}

	fmt.Fprintf(w, "\nTotal from large donations: %s\n", format.Money(rep.LargeTotal))
	fmt.Fprintf(w, "Total from regular donations: %s\n", format.Money(rep.RegularTotal))
	fmt.Fprintf(w, "Final filtered amount: %s\n", format.Money(rep.SmoothedFinal))
	fmt.Fprintf(w, "Original final amount: %s\n", format.Money(rep.OriginalFinal))
}

func printInsufficient(w io.Writer, rep *analysis.Report) {
	fmt.Fprintf(w, "Not enough data: no positive increments in %d samples\n", len(rep.Samples))
	if len(rep.Samples) > 0 {
		fmt.Fprintf(w, "Original final amount: %s\n", format.Money(rep.OriginalFinal))
	}
	if rep.NegativeCount > 0 {
		fmt.Fprintf(w, "Negative increments: %d\n", rep.NegativeCount)
	}
}
