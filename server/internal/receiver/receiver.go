package receiver

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/waterworm/waterworm/pkg/analysis"
	"github.com/waterworm/waterworm/pkg/progresslog"
	"github.com/waterworm/waterworm/pkg/types"
	"github.com/waterworm/waterworm/server/internal/alerts"
	"github.com/waterworm/waterworm/server/internal/config"
	"github.com/waterworm/waterworm/server/internal/store"
)

// Receiver keeps the store in step with the progress logs on disk. Each time
// a log changes it is re-read and re-analyzed, the snapshot is stored, and the
// alert rules are evaluated against it.
type Receiver struct {
	sources []config.Source
	store   *store.Store
	alerts  *alerts.Engine // may be nil
	resync  time.Duration

	read func(path string) ([]types.Sample, error)
}

// New creates a Receiver for the given sources. A zero resync disables the
// periodic re-analysis; only file events trigger updates then.
func New(sources []config.Source, st *store.Store, eng *alerts.Engine, resync time.Duration) *Receiver {
	return &Receiver{
		sources: sources,
		store:   st,
		alerts:  eng,
		resync:  resync,
		read:    progresslog.Read,
	}
}

// Refresh re-analyzes one source's log and stores the resulting snapshot.
// When the log cannot be read the previous snapshot is kept and the error
// is returned.
func (r *Receiver) Refresh(src config.Source) error {
	samples, err := r.read(src.LogPath)
	if err != nil {
		return fmt.Errorf("receiver: read %s log: %w", src.ID, err)
	}

	snap := analysis.BuildSnapshot(analysis.SourceMeta{
		ID:      src.ID,
		Name:    src.Name,
		PageURL: src.PageURL,
		Goal:    src.Goal.Goal(),
	}, samples)
	r.store.Put(&snap)
	if r.alerts != nil {
		r.alerts.Evaluate(&snap)
	}

	slog.Debug("receiver: snapshot stored",
		"source_id", snap.SourceID,
		"samples", snap.SampleCount,
		"amount", snap.Amount,
		"state", snap.State,
		"insufficient", snap.Insufficient,
	)
	return nil
}

// RefreshAll refreshes every source, logging failures.
func (r *Receiver) RefreshAll() {
	for _, src := range r.sources {
		if err := r.Refresh(src); err != nil {
			slog.Warn("receiver: refresh failed, keeping previous snapshot", "source", src.ID, "err", err)
		}
	}
}

// Run analyzes every log once, then watches their directories and refreshes
// a source whenever its log is written, created or replaced. It blocks until
// ctx is cancelled.
func (r *Receiver) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("receiver: new watcher: %w", err)
	}
	defer watcher.Close()

	byPath := make(map[string][]config.Source, len(r.sources))
	dirs := make(map[string]bool)
	for _, src := range r.sources {
		abs, err := filepath.Abs(src.LogPath)
		if err != nil {
			return fmt.Errorf("receiver: resolve %q: %w", src.LogPath, err)
		}
		byPath[abs] = append(byPath[abs], src)
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			// The resync loop still picks the log up once it appears.
			slog.Warn("receiver: cannot watch log directory", "dir", dir, "err", err)
			continue
		}
		slog.Info("receiver: watching log directory", "dir", dir)
	}

	r.RefreshAll()

	var resync <-chan time.Time
	if r.resync > 0 {
		t := time.NewTicker(r.resync)
		defer t.Stop()
		resync = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			for _, src := range byPath[filepath.Clean(event.Name)] {
				if err := r.Refresh(src); err != nil {
					slog.Warn("receiver: refresh failed, keeping previous snapshot", "source", src.ID, "err", err)
				}
			}

		case <-resync:
			r.RefreshAll()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("receiver: watcher error", "err", err)
		}
	}
}
