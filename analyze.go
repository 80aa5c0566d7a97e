package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/lexandro/ferret/config"
	"github.com/lexandro/ferret/report"
)

// analysisFlags override config values, but only when set on the command line.
type analysisFlags struct {
	threshold         int
	compareThreshold  float64
	maxCompareSize    int64
	workers           int
	algorithm         string
	parallel          bool
	excludes          []string
	includes          []string
	maxDepth          int
	maxFiles          int
	maxFileSize       int64
	noFd              bool
	noCrossGroup      bool
	noSimilarity      bool
	excludeDuplicates bool
	hashCache         string
}

func (f *analysisFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.IntVar(&f.threshold, "threshold", 0, "minimum fuzzy score for a file to join a name group")
	flags.Float64Var(&f.compareThreshold, "similarity-threshold", 0, "minimum Jaccard score, above 0 and at most 1, for a pair to be aligned")
	flags.Int64Var(&f.maxCompareSize, "max-compare-size", 0, "skip similarity scoring for files larger than this many bytes")
	flags.IntVar(&f.workers, "workers", 0, "concurrent hashing/scoring workers (0: one per CPU)")
	flags.StringVar(&f.algorithm, "algorithm", "", "content digest: sha256 or blake3")
	flags.BoolVar(&f.parallel, "parallel", false, "run duplicate detection and similarity scoring concurrently")
	flags.StringSliceVar(&f.excludes, "exclude", nil, "extra ignore glob (repeatable)")
	flags.StringSliceVar(&f.includes, "include", nil, "only analyze files matching this glob (repeatable)")
	flags.IntVar(&f.maxDepth, "max-depth", 0, "maximum directory depth below the root (0: unlimited)")
	flags.IntVar(&f.maxFiles, "max-files", 0, "stop enumerating after this many files (0: unlimited)")
	flags.Int64Var(&f.maxFileSize, "max-file-size", 0, "leave out files larger than this many bytes entirely (0: no limit)")
	flags.BoolVar(&f.noFd, "no-fd", false, "do not use the external fd finder")
	flags.BoolVar(&f.noCrossGroup, "no-cross-group", false, "only compare digests within name groups")
	flags.BoolVar(&f.noSimilarity, "no-similarity", false, "skip near-duplicate scoring")
	flags.BoolVar(&f.excludeDuplicates, "exclude-duplicates", false, "score only the first copy of each duplicate set")
	flags.StringVar(&f.hashCache, "hash-cache", "", "SQLite file that remembers digests between runs")
}

func (f *analysisFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	changed := cmd.Flags().Changed
	if changed("threshold") {
		cfg.Grouping.Threshold = f.threshold
	}
	if changed("similarity-threshold") {
		cfg.Similarity.Threshold = f.compareThreshold
	}
	if changed("max-compare-size") {
		cfg.Similarity.MaxFileSize = f.maxCompareSize
	}
	if changed("workers") {
		cfg.Workers = f.workers
	}
	if changed("algorithm") {
		cfg.Hashing.Algorithm = f.algorithm
	}
	if changed("parallel") {
		cfg.Parallel = f.parallel
	}
	if changed("exclude") {
		cfg.Discovery.Excludes = append(cfg.Discovery.Excludes, f.excludes...)
	}
	if changed("include") {
		cfg.Discovery.Includes = append(cfg.Discovery.Includes, f.includes...)
	}
	if changed("max-depth") {
		cfg.Discovery.MaxDepth = f.maxDepth
	}
	if changed("max-files") {
		cfg.Discovery.MaxFiles = f.maxFiles
	}
	if changed("max-file-size") {
		cfg.Discovery.MaxFileSize = f.maxFileSize
	}
	if changed("no-fd") {
		cfg.Discovery.UseFd = !f.noFd
	}
	if changed("no-cross-group") {
		cfg.Hashing.CrossGroup = !f.noCrossGroup
	}
	if changed("no-similarity") {
		cfg.Similarity.Enabled = !f.noSimilarity
	}
	if changed("exclude-duplicates") {
		cfg.Similarity.ExcludeDuplicates = f.excludeDuplicates
	}
	if changed("hash-cache") {
		cfg.Hashing.CachePath = f.hashCache
	}
}

// commandConfig resolves the effective config of a command that takes analysis flags.
func commandConfig(cmd *cobra.Command, global *globalOptions, flags *analysisFlags) (config.Config, error) {
	cfg, err := loadConfig(global)
	if err != nil {
		return cfg, err
	}
	flags.apply(cmd, &cfg)
	return cfg, cfg.Validate()
}

func newAnalyzeCmd(global *globalOptions) *cobra.Command {
	var (
		flags      analysisFlags
		outputPath string
		formatName string
		pretty     bool
	)

	cmd := &cobra.Command{
		Use:   "analyze [dir]",
		Short: "Analyze a directory and print a report",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
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

			run, err := analyzer.Analyze(ctx, dir)
			if err != nil {
				return err
			}

			var out io.Writer = cmd.OutOrStdout()
			if outputPath != "" {
				f, err := os.Create(outputPath)
				if err != nil {
					return fmt.Errorf("creating report file: %w", err)
				}
				defer f.Close()
				out = f
			}
			if err := report.Write(out, run, format, pretty); err != nil {
				return err
			}
			if outputPath != "" {
				logger.Info("report written", "path", outputPath, "format", format)
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "write the report to this file instead of stdout")
	cmd.Flags().StringVarP(&formatName, "format", "f", "text", "report format: text, markdown or json")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "colored text, terminal-rendered markdown, indented JSON")
	return cmd
}
