package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/waterworm/waterworm/pkg/progresslog"
	"github.com/waterworm/waterworm/pkg/types"
	"github.com/waterworm/waterworm/server/internal/config"
)

// options holds the persistent flags shared by every subcommand.
type options struct {
	configPath string
	sourceID   string
	logPath    string
}

// newRootCmd builds the report command tree. Each call returns fresh flag
// state so tests can run commands independently.
func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "waterworm-report",
		Short: "Batch analysis and charts for waterworm progress logs",
		Long: `waterworm-report reads a progress log and prints the donation
statistics, the per-size histogram, or writes the worm chart and the
static status page.

Examples:
  waterworm-report analyze --source teamwater
  waterworm-report analyze --log teamwater_progress.csv --charts out/
  waterworm-report chart --out docs/worm_chart.png
  waterworm-report html --out docs/index.html`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), nil)))
		},
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "config.yaml", "path to config file")
	root.PersistentFlags().StringVar(&opts.sourceID, "source", "", "source id from the config (default: the only source)")
	root.PersistentFlags().StringVar(&opts.logPath, "log", "", "progress log to read instead of the source's log_path")

	root.AddCommand(
		newAnalyzeCmd(opts),
		newHistogramCmd(opts),
		newChartCmd(opts),
		newHTMLCmd(opts),
	)
	return root
}

// source resolves the source to report on. With --log the config is only
// consulted when --config was given explicitly, so a bare log file works
// without one.
func (o *options) source(cmd *cobra.Command) (config.Source, error) {
	if o.logPath != "" && !cmd.Flags().Changed("config") {
		id := o.sourceID
		if id == "" {
			id = strings.TrimSuffix(filepath.Base(o.logPath), filepath.Ext(o.logPath))
			id = strings.TrimSuffix(id, "_progress")
		}
		return config.Source{ID: id, Name: id, LogPath: o.logPath}, nil
	}

	cfg, err := config.Load(o.configPath)
	if err != nil {
		return config.Source{}, err
	}
	var src config.Source
	switch {
	case o.sourceID != "":
		var ok bool
		if src, ok = cfg.Server.Find(o.sourceID); !ok {
			return config.Source{}, fmt.Errorf("report: source %q not found in %s", o.sourceID, o.configPath)
		}
	case len(cfg.Server.Sources) == 1:
		src = cfg.Server.Sources[0]
	default:
		return config.Source{}, fmt.Errorf("report: %s lists %d sources: pick one with --source", o.configPath, len(cfg.Server.Sources))
	}
	if o.logPath != "" {
		src.LogPath = o.logPath
	}
	return src, nil
}

// load resolves the source and reads its log in file order.
func (o *options) load(cmd *cobra.Command) (config.Source, []types.Sample, error) {
	src, err := o.source(cmd)
	if err != nil {
		return config.Source{}, nil, err
	}
	samples, err := progresslog.Read(src.LogPath)
	if err != nil {
		return config.Source{}, nil, err
	}
	slog.Debug("report: log loaded", "source", src.ID, "path", src.LogPath, "samples", len(samples))
	return src, samples, nil
}

// writeFile creates path, including missing parent directories, and fills
// it with render. A failed render leaves no partial file behind.
func writeFile(path string, render func(io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("report: create %s: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("report: create %s: %w", path, err)
	}
	if err := render(f); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("report: write %s: %w", path, err)
	}
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
