package main

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/waterworm/waterworm/pkg/analysis"
	"github.com/waterworm/waterworm/server/internal/render"
)

func newHTMLCmd(opts *options) *cobra.Command {
	var (
		out         string
		chartSrc    string
		updateEvery string
	)
	cmd := &cobra.Command{
		Use:   "html",
		Short: "Write the static status page",
		Long: `Write a standalone status page with the latest total, the time of
the last update and the worm chart image. Pair it with the chart command to
publish both, e.g. under docs/ for a static site.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			src, samples, err := opts.load(cmd)
			if err != nil {
				return err
			}
			snap := analysis.BuildSnapshot(analysis.SourceMeta{
				ID:      src.ID,
				Name:    src.Name,
				PageURL: src.PageURL,
				Goal:    src.Goal.Goal(),
			}, samples)

			page := render.SourcePage{Snapshot: &snap, UpdateEvery: updateEvery}
			if chartSrc != "" {
				page.Charts = []render.Image{{Title: "Worm Chart", Src: chartSrc}}
			}
			if err := writeFile(out, func(w io.Writer) error {
				return render.Source(w, page)
			}); err != nil {
				return err
			}
			slog.Info("report: status page written", "source", src.ID, "path", out, "amount", snap.Amount)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "docs/index.html", "output HTML path")
	cmd.Flags().StringVar(&chartSrc, "chart", "worm_chart.png", "image src of the worm chart, empty to omit")
	cmd.Flags().StringVar(&updateEvery, "update-every", render.DefaultUpdateEvery, "scrape cadence shown on the page")
	return cmd
}
