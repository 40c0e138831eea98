// Package watcher provides the periodic sweep that reverts lapsed connections.
package watcher

import (
	"context"
	"log/slog"
	"time"

	"github.com/demos-sh/demos/cache"
)

// Reconciler reverts connected projects whose liveness flag has expired.
type Reconciler interface {
	Reconcile(ctx context.Context) (int, error)
}

type WatcherService struct {
	reconciler   Reconciler
	purger       cache.Purger // optional
	pollInterval time.Duration
}

func NewWatcherService(reconciler Reconciler, purger cache.Purger, pollInterval time.Duration) *WatcherService {
	return &WatcherService{
		reconciler:   reconciler,
		purger:       purger,
		pollInterval: pollInterval,
	}
}

func (w *WatcherService) Start(ctx context.Context) error {
	slog.Info("Watcher service starting", "poll_interval", w.pollInterval)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	// Run initial sweep immediately to pick up connections left by a previous process
	w.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Watcher service shutting down")
			return nil
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *WatcherService) sweep(ctx context.Context) {
	slog.Debug("Starting sweep cycle")

	reverted, err := w.reconciler.Reconcile(ctx)
	if err != nil {
		slog.Error("Sweep failed",
			"layer", "watcher",
			"operation", "reconcile",
			"reverted", reverted,
			"error", err)
	} else if reverted > 0 {
		slog.Info("Reverted lapsed connections", "layer", "watcher", "reverted", reverted)
	}

	if w.purger == nil {
		return
	}
	purged, err := w.purger.Purge(ctx)
	if err != nil {
		slog.Error("Cache purge failed",
			"layer", "watcher",
			"operation", "purge",
			"error", err)
		return
	}

	slog.Debug("Sweep cycle completed", "reverted", reverted, "purged", purged)
}
