package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/lexandro/ferret/discovery"
	"github.com/lexandro/ferret/index"
)

// SyncResult counts how far the inventory has drifted from the disk.
type SyncResult struct {
	MissingFiles  int // on disk but not in the inventory
	StaleFiles    int // in the inventory but gone from disk
	ModifiedFiles int // size or modification time differs
	Duration      time.Duration
}

// Drifted reports whether any discrepancy was found.
func (r SyncResult) Drifted() bool {
	return r.MissingFiles+r.StaleFiles+r.ModifiedFiles > 0
}

// runPeriodicSync checks the inventory at every interval and re-analyzes when it has drifted.
// It catches changes the watcher misses, such as edits on network shares.
func runPeriodicSync(
	ctx context.Context,
	interval time.Duration,
	enumerator *discovery.Enumerator,
	fileIndex *index.FileIndex,
	reanalyze func(ctx context.Context),
	logger *slog.Logger,
) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info("periodic sync started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			logger.Info("periodic sync stopped")
			return
		case <-ticker.C:
			result, err := checkDrift(ctx, enumerator, fileIndex)
			if err != nil {
				logger.Warn("sync verification failed", "error", err)
				continue
			}
			if !result.Drifted() {
				logger.Debug("sync verification complete, inventory is current", "duration", result.Duration)
				continue
			}
			logger.Info("inventory drifted, re-analyzing",
				"missing", result.MissingFiles,
				"stale", result.StaleFiles,
				"modified", result.ModifiedFiles,
				"duration", result.Duration,
			)
			reanalyze(ctx)
		}
	}
}

// checkDrift compares a fresh enumeration with the current inventory.
func checkDrift(ctx context.Context, enumerator *discovery.Enumerator, fileIndex *index.FileIndex) (SyncResult, error) {
	start := time.Now()
	var result SyncResult

	paths, err := enumerator.Enumerate(ctx)
	if err != nil {
		return result, err
	}

	inventoried := make(map[string]*index.InventoryFile, fileIndex.FileCount())
	for _, f := range fileIndex.AllFiles() {
		inventoried[f.Path] = f
	}

	onDisk := make(map[string]bool, len(paths))
	for _, path := range paths {
		onDisk[path] = true
		known, ok := inventoried[path]
		if !ok {
			result.MissingFiles++
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			result.StaleFiles++
			continue
		}
		if info.Size() != known.SizeBytes || !info.ModTime().Equal(known.ModTime) {
			result.ModifiedFiles++
		}
	}
	for path := range inventoried {
		if !onDisk[path] {
			result.StaleFiles++
		}
	}

	result.Duration = time.Since(start)
	return result, nil
}
