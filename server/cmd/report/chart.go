package main

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/waterworm/waterworm/server/internal/render"
)

func newChartCmd(opts *options) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "chart",
		Short: "Write the worm chart PNG",
		Long: `Write the cumulative amount against days since the campaign start.
When the source has a goal, the straight target line is drawn as well.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			src, samples, err := opts.load(cmd)
			if err != nil {
				return err
			}
			if err := writeFile(out, func(w io.Writer) error {
				return render.WormChart(w, src.Name, src.Goal.Goal(), samples)
			}); err != nil {
				return err
			}
			slog.Info("report: worm chart written", "source", src.ID, "path", out)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "worm_chart.png", "output PNG path")
	return cmd
}
