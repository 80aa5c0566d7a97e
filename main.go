package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lexandro/ferret/analysis"
	"github.com/lexandro/ferret/config"
	"github.com/lexandro/ferret/hashcache"
	"github.com/lexandro/ferret/server"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	envFile    string
	logLevel   string
	logFile    string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	rootCmd := &cobra.Command{
		Use:   "ferret",
		Short: "Find redundant files: related names, identical copies and near-duplicate text",
		Long: `ferret groups files whose names differ only by version markers such as
"v2", "copy" or "final", hashes them to find byte-identical copies, and scores
text files for near-duplicate content.`,
		Version:       server.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML or TOML config file")
	rootCmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file with FERRET_* overrides (ignored when absent)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug|info|warn|error")
	rootCmd.PersistentFlags().StringVar(&opts.logFile, "log-file", "", "log file path (default: stderr)")

	rootCmd.AddCommand(
		newAnalyzeCmd(opts),
		newServeCmd(opts),
		newWatchCmd(opts),
		newRegisterCmd(),
	)
	return rootCmd
}

// loadConfig layers defaults, the config file, dotenv/environment and the
// persistent log flags, in that order.
func loadConfig(opts *globalOptions) (config.Config, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		if err := cfg.LoadFile(opts.configPath); err != nil {
			return cfg, err
		}
	}
	if err := cfg.LoadEnv(opts.envFile); err != nil {
		return cfg, err
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if opts.logFile != "" {
		cfg.Log.File = opts.logFile
	}
	return cfg, nil
}

// newAnalyzer builds an Analyzer and opens the digest cache when one is configured.
// The returned cleanup closes the cache.
func newAnalyzer(cfg config.Config, logger *slog.Logger, opts ...analysis.Option) (*analysis.Analyzer, func(), error) {
	cleanup := func() {}
	if cfg.Hashing.CachePath != "" {
		cache, err := hashcache.Open(cfg.Hashing.CachePath, logger)
		if err != nil {
			logger.Warn("hash cache unavailable, hashing everything", "path", cfg.Hashing.CachePath, "error", err)
		} else {
			opts = append(opts, analysis.WithCache(cache))
			cleanup = func() {
				if err := cache.Close(); err != nil {
					logger.Warn("closing hash cache", "error", err)
				}
			}
		}
	}

	analyzer, err := analysis.New(cfg, logger, opts...)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return analyzer, cleanup, nil
}

// setupLogger creates an slog.Logger writing to stderr or a file.
// It never writes to stdout, which carries reports and the MCP stdio stream.
func setupLogger(level string, logFile string) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	var writer io.Writer = os.Stderr
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: cannot open log file %s: %v, falling back to stderr\n", logFile, err)
		} else {
			writer = f
		}
	}

	handler := slog.NewTextHandler(writer, &slog.HandlerOptions{Level: logLevel})
	return slog.New(handler)
}
