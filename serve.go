package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/lexandro/ferret/analysis"
	"github.com/lexandro/ferret/index"
	"github.com/lexandro/ferret/server"
	"github.com/lexandro/ferret/tools"
	"github.com/lexandro/ferret/watcher"
)

// analysisRunner serializes runs so the shared indexes always hold a single run's data.
type analysisRunner struct {
	mu       sync.Mutex
	analyzer *analysis.Analyzer
	runs     *tools.RunStore
	logger   *slog.Logger
}

// Analyze matches tools.AnalyzeFunc; the tool handler stores the run itself.
func (r *analysisRunner) Analyze(ctx context.Context, dir string) (*analysis.Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.analyzer.Analyze(ctx, dir)
}

// Refresh analyzes dir and records the run. Failures are only logged.
func (r *analysisRunner) Refresh(ctx context.Context, dir string) {
	run, err := r.Analyze(ctx, dir)
	if err != nil {
		if ctx.Err() == nil {
			r.logger.Error("background analysis failed", "root", dir, "error", err)
		}
		return
	}
	id := r.runs.Add(run)
	r.logger.Info("background analysis complete",
		"run", id,
		"files", run.Results.TotalFiles,
		"duplicates", run.Results.DuplicateResults.TotalDuplicates,
		"similar", len(run.Results.SimilarFiles),
		"duration", run.Duration,
	)
}

func newServeCmd(global *globalOptions) *cobra.Command {
	var (
		flags        analysisFlags
		watch        bool
		skipInitial  bool
		syncInterval time.Duration
		quietPeriod  time.Duration
		keepRuns     int
	)

	cmd := &cobra.Command{
		Use:   "serve [dir]",
		Short: "Serve analysis tools to MCP clients over stdio",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			rootDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving root: %w", err)
			}
			cfg, err := commandConfig(cmd, global, &flags)
			if err != nil {
				return err
			}
			// stdout is the MCP transport, so the log goes to a file by default.
			if cfg.Log.File == "" {
				cfg.Log.File = filepath.Join(rootDir, "ferret.log")
			}
			logger := setupLogger(cfg.Log.Level, cfg.Log.File)
			logger.Info("starting ferret", "root", rootDir, "version", server.Version, "watch", watch)

			startTime := time.Now()
			fileIndex := index.NewFileIndex()
			contentIndex, err := index.NewContentIndex()
			if err != nil {
				return fmt.Errorf("creating content index: %w", err)
			}
			defer contentIndex.Close()

			analyzer, cleanup, err := newAnalyzer(cfg, logger,
				analysis.WithFileIndex(fileIndex),
				analysis.WithContentIndex(contentIndex),
			)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			runs := tools.NewRunStore(keepRuns)
			runner := &analysisRunner{analyzer: analyzer, runs: runs, logger: logger}

			if !skipInitial {
				go runner.Refresh(ctx, rootDir)
			}

			enumerator := analyzer.Enumerator(rootDir)
			if watch {
				fileWatcher, err := watcher.New(rootDir, enumerator.Matcher, quietPeriod, logger)
				if err != nil {
					logger.Warn("failed to start file watcher, continuing without live updates", "error", err)
				} else {
					defer fileWatcher.Close()
					go fileWatcher.Start(ctx)
					go handleWatcherEvents(ctx, fileWatcher, enumerator.Matcher, logger, func(ctx context.Context, _ []watcher.DebouncedEvent) {
						runner.Refresh(ctx, rootDir)
					})
				}
			}
			if syncInterval > 0 {
				go runPeriodicSync(ctx, syncInterval, enumerator, fileIndex, func(ctx context.Context) {
					runner.Refresh(ctx, rootDir)
				}, logger)
			}

			mcpServer := server.Setup(server.Handlers{
				Analyze: &tools.AnalyzeHandler{
					DoAnalyze: runner.Analyze,
					Runs:      runs,
					RootDir:   rootDir,
					Logger:    logger,
				},
				Duplicates: &tools.DuplicatesHandler{Runs: runs, Logger: logger},
				Similar:    &tools.SimilarHandler{Runs: runs, Logger: logger},
				Files:      &tools.FilesHandler{FileIndex: fileIndex, Logger: logger},
				Search:     &tools.SearchHandler{ContentIndex: contentIndex, Logger: logger},
				Status: &tools.StatusHandler{
					FileIndex:    fileIndex,
					ContentIndex: contentIndex,
					Runs:         runs,
					StartTime:    startTime,
					RootDir:      rootDir,
					Logger:       logger,
				},
			})

			logger.Info("MCP server starting on stdio")
			if err := mcpServer.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
				logger.Error("MCP server error", "error", err)
				return err
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&watch, "watch", true, "re-analyze when files under the root change")
	cmd.Flags().BoolVar(&skipInitial, "no-initial", false, "wait for ferret_analyze instead of analyzing at startup")
	cmd.Flags().DurationVar(&syncInterval, "sync-interval", 0, "also check the inventory against the disk at this interval (0: off)")
	cmd.Flags().DurationVar(&quietPeriod, "quiet-period", watcher.DefaultQuietPeriod, "how long the tree must stay unchanged before re-analyzing")
	cmd.Flags().IntVar(&keepRuns, "keep-runs", 10, "number of completed runs kept for ferret_duplicates and ferret_similar")
	return cmd
}
