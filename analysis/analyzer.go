package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lexandro/ferret/config"
	"github.com/lexandro/ferret/discovery"
	"github.com/lexandro/ferret/dupes"
	"github.com/lexandro/ferret/fileio"
	"github.com/lexandro/ferret/grouping"
	"github.com/lexandro/ferret/ignore"
	"github.com/lexandro/ferret/index"
	"github.com/lexandro/ferret/kind"
	"github.com/lexandro/ferret/similarity"
)

// Run is one completed analysis together with the intermediate data front ends query.
type Run struct {
	Root      string
	StartedAt time.Time
	Duration  time.Duration
	Groups    []grouping.FileGroup
	Files     []*index.InventoryFile
	Results   *AnalysisResults
}

// Option customizes an Analyzer.
type Option func(*Analyzer)

// WithFileIndex keeps fi in sync with the inventory of every run.
func WithFileIndex(fi *index.FileIndex) Option {
	return func(a *Analyzer) { a.fileIndex = fi }
}

// WithContentIndex indexes the text loaded for similarity scoring into ci.
func WithContentIndex(ci *index.ContentIndex) Option {
	return func(a *Analyzer) { a.contentIndex = ci }
}

// WithCache reuses digests of unchanged files across runs.
func WithCache(cache dupes.DigestCache) Option {
	return func(a *Analyzer) { a.cache = cache }
}

// Analyzer runs the grouping, duplicate and similarity passes over a directory.
type Analyzer struct {
	cfg          config.Config
	logger       *slog.Logger
	fileIndex    *index.FileIndex
	contentIndex *index.ContentIndex
	cache        dupes.DigestCache

	now func() time.Time
	// prepareReader adjusts each run's reader; used by tests to inject failures.
	prepareReader func(*fileio.Reader)
}

// New validates cfg and returns an Analyzer.
func New(cfg config.Config, logger *slog.Logger, opts ...Option) (*Analyzer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &Analyzer{cfg: cfg, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

func (a *Analyzer) Config() config.Config {
	return a.cfg
}

// Analyze runs the whole pipeline over root. Only a missing root, an invalid
// setting or cancellation fail the run; per-file problems end up in Results.Failures.
func (a *Analyzer) Analyze(ctx context.Context, root string) (*Run, error) {
	start := a.now()
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving root: %w", err)
	}
	if err := discovery.CheckRoot(root); err != nil {
		return nil, err
	}
	algorithm, err := dupes.ParseAlgorithm(a.cfg.Hashing.Algorithm)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
	}

	enumerator := a.Enumerator(root)
	paths, err := enumerator.Enumerate(ctx)
	if err != nil {
		return nil, err
	}
	a.logger.Info("enumeration complete", "root", root, "files", len(paths), "duration", time.Since(start))

	reader := fileio.NewReader(a.readerOptions(), a.logger)
	if a.prepareReader != nil {
		a.prepareReader(reader)
	}
	failures := fileio.NewFailureLog()

	// Files that vanish or cannot be stat'ed are left out of every later stage and total.
	files, ages := a.takeInventory(ctx, root, paths, reader, failures)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	present := make([]string, len(files))
	for i, file := range files {
		present[i] = file.Path
	}

	groups := grouping.NewGrouper(a.cfg.Grouping.Threshold).Group(present)
	a.logger.Info("grouping complete", "groups", len(groups))

	detector := dupes.NewDetector(reader, failures, a.logger, dupes.Options{
		Algorithm:  algorithm,
		Workers:    a.cfg.Workers,
		CrossGroup: a.cfg.Hashing.CrossGroup,
		Cache:      a.cache,
	})

	if a.contentIndex != nil {
		if err := a.contentIndex.Clear(); err != nil {
			a.logger.Warn("failed to reset content index", "error", err)
		}
	}
	engine := similarity.NewEngine(reader, failures, a.logger, similarity.Options{
		Threshold:   a.cfg.Similarity.Threshold,
		MaxFileSize: a.cfg.Similarity.MaxFileSize,
		Workers:     a.cfg.Workers,
		OnLoad:      a.indexContent(root),
	})

	var (
		duplicates *dupes.DuplicateResults
		store      *similarity.Store
	)
	if a.cfg.Parallel {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			duplicates, err = detector.Detect(gctx, groups)
			return err
		})
		if a.cfg.Similarity.Enabled {
			g.Go(func() error {
				var err error
				store, err = engine.ScoreAll(gctx, present, nil)
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		if duplicates, err = detector.Detect(ctx, groups); err != nil {
			return nil, err
		}
		if a.cfg.Similarity.Enabled {
			candidates := present
			if a.cfg.Similarity.ExcludeDuplicates {
				candidates = withoutRedundant(present, redundantCopies(duplicates))
			}
			if store, err = engine.ScoreAll(ctx, candidates, duplicates.KnownDuplicates()); err != nil {
				return nil, err
			}
		}
	}

	annotate(files, groups, duplicates.KnownDuplicates(), redundantCopies(duplicates))
	if a.fileIndex != nil {
		a.fileIndex.Replace(files)
	}

	results := &AnalysisResults{
		TotalFiles:       len(files),
		TotalGroups:      len(groups),
		DuplicateResults: duplicates,
		SimilarFiles:     []similarity.Score{},
		Ages:             ages,
		Failures:         failures.Entries(),
	}
	if store != nil {
		results.SimilarFiles = store.Sorted()
	}

	run := &Run{
		Root:      root,
		StartedAt: start,
		Duration:  a.now().Sub(start),
		Groups:    groups,
		Files:     files,
		Results:   results,
	}
	a.pruneCache(root, start)
	a.logger.Info("analysis complete",
		"root", root,
		"files", results.TotalFiles,
		"groups", results.TotalGroups,
		"duplicates", duplicates.TotalDuplicates,
		"similarPairs", len(results.SimilarFiles),
		"failures", len(results.Failures),
		"duration", run.Duration,
	)
	return run, nil
}

// digestPruner is implemented by caches that can forget files a run no longer saw.
// hashcache.Cache satisfies it.
type digestPruner interface {
	Prune(root string, cutoff time.Time) (int64, error)
	Len() (int, error)
}

// pruneCache drops cached digests under root that this run neither read nor wrote.
// Runs limited by depth or file count saw only part of the tree and prune nothing.
func (a *Analyzer) pruneCache(root string, runStart time.Time) {
	pruner, ok := a.cache.(digestPruner)
	if !ok || a.cfg.Discovery.MaxDepth > 0 || a.cfg.Discovery.MaxFiles > 0 {
		return
	}
	removed, err := pruner.Prune(root, runStart)
	if err != nil {
		a.logger.Warn("hash cache prune failed", "root", root, "error", err)
		return
	}
	remaining, err := pruner.Len()
	if err != nil {
		a.logger.Warn("hash cache count failed", "error", err)
	}
	a.logger.Debug("hash cache pruned", "root", root, "removed", removed, "remaining", remaining)
}

// Enumerator returns the file lister a run over root uses, with the
// configured ignore rules and limits.
func (a *Analyzer) Enumerator(root string) *discovery.Enumerator {
	return &discovery.Enumerator{
		Root: root,
		Matcher: ignore.NewMatcher(ignore.MatcherOptions{
			RootDir:          root,
			CustomPatterns:   a.cfg.Discovery.Excludes,
			IncludePatterns:  a.cfg.Discovery.Includes,
			MaxFileSizeBytes: a.cfg.Discovery.MaxFileSize,
		}),
		MaxDepth: a.cfg.Discovery.MaxDepth,
		MaxFiles: a.cfg.Discovery.MaxFiles,
		UseFd:    a.cfg.Discovery.UseFd,
		Logger:   a.logger,
	}
}

func (a *Analyzer) readerOptions() fileio.Options {
	opts := fileio.DefaultOptions()
	opts.LocalTimeout = a.cfg.IO.LocalTimeout.Duration
	opts.RemoteTimeout = a.cfg.IO.RemoteTimeout.Duration
	opts.MaxRetries = a.cfg.IO.MaxRetries
	opts.RetryDelay = a.cfg.IO.RetryDelay.Duration
	opts.RemoteReadsPerSecond = a.cfg.IO.RemoteReadsPerSecond
	opts.CompareCeiling = a.cfg.Similarity.MaxFileSize
	return opts
}

func (a *Analyzer) indexContent(root string) func(*fileio.Content) {
	if a.contentIndex == nil {
		return nil
	}
	return func(content *fileio.Content) {
		rel := relativePath(root, content.Path)
		if err := a.contentIndex.IndexFile(rel, content.Text(), kind.DetectKind(content.Path)); err != nil {
			a.logger.Debug("failed to index content", "path", rel, "error", err)
		}
	}
}

// redundantCopies returns every duplicate set member except the first.
func redundantCopies(results *dupes.DuplicateResults) map[string]bool {
	redundant := make(map[string]bool)
	for _, group := range results.DuplicateGroups {
		for _, set := range group.DuplicateSets {
			for _, path := range set.Files[1:] {
				redundant[path] = true
			}
		}
	}
	return redundant
}

func withoutRedundant(paths []string, redundant map[string]bool) []string {
	if len(redundant) == 0 {
		return paths
	}
	kept := make([]string, 0, len(paths)-len(redundant))
	for _, path := range paths {
		if !redundant[path] {
			kept = append(kept, path)
		}
	}
	return kept
}
