package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/lexandro/ferret/ignore"
	"github.com/lexandro/ferret/report"
	"github.com/lexandro/ferret/watcher"
)

// handleWatcherEvents calls onChange once per debounced batch until ctx is done.
// Ignore-file edits reload matcher first so the watcher filters with the new rules.
func handleWatcherEvents(
	ctx context.Context,
	fileWatcher *watcher.Watcher,
	matcher *ignore.Matcher,
	logger *slog.Logger,
	onChange func(ctx context.Context, batch []watcher.DebouncedEvent),
) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch := <-fileWatcher.Events():
			for _, event := range batch {
				if ignore.IsIgnoreFile(filepath.Base(event.Path)) {
					matcher.Reload()
					logger.Info("reloaded ignore rules", "trigger", filepath.Base(event.Path))
					break
				}
			}
			logger.Debug("changes detected", "paths", len(batch), "first", batch[0].Path, "op", batch[0].Op)
			onChange(ctx, batch)
		}
	}
}

func newWatchCmd(global *globalOptions) *cobra.Command {
	var (
		flags       analysisFlags
		formatName  string
		pretty      bool
		quietPeriod time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Analyze a directory and re-analyze whenever it changes",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			root, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving root: %w", err)
			}
			format, err := report.ParseFormat(formatName)
			if err != nil {
				return err
			}
			cfg, err := commandConfig(cmd, global, &flags)
			if err != nil {
				return err
			}
			logger := setupLogger(cfg.Log.Level, cfg.Log.File)

			analyzer, cleanup, err := newAnalyzer(cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			out := cmd.OutOrStdout()
			analyzeAndPrint := func(ctx context.Context) error {
				run, err := analyzer.Analyze(ctx, root)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "--- %s ---\n", run.StartedAt.Format(time.RFC3339))
				return report.Write(out, run, format, pretty)
			}
			if err := analyzeAndPrint(ctx); err != nil {
				return err
			}

			matcher := analyzer.Enumerator(root).Matcher
			fileWatcher, err := watcher.New(root, matcher, quietPeriod, logger)
			if err != nil {
				return err
			}
			defer fileWatcher.Close()
			go fileWatcher.Start(ctx)

			logger.Info("watching for changes", "root", root, "quietPeriod", quietPeriod)
			handleWatcherEvents(ctx, fileWatcher, matcher, logger, func(ctx context.Context, _ []watcher.DebouncedEvent) {
				if err := analyzeAndPrint(ctx); err != nil && ctx.Err() == nil {
					logger.Error("re-analysis failed", "root", root, "error", err)
				}
			})
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&formatName, "format", "f", "text", "report format: text, markdown or json")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "colored text, terminal-rendered markdown, indented JSON")
	cmd.Flags().DurationVar(&quietPeriod, "quiet-period", watcher.DefaultQuietPeriod, "how long the tree must stay unchanged before re-analyzing")
	return cmd
}
