package similarity

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lexandro/ferret/fileio"
	"github.com/lexandro/ferret/kind"
)

// StageLoad labels failures recorded while loading text for comparison.
const StageLoad = "load"

const (
	DefaultThreshold   = 0.7
	DefaultMaxFileSize = 100 * 1024
)

// Options configures an Engine.
type Options struct {
	// Threshold is the minimum Jaccard similarity for a pair to be aligned.
	// Zero selects DefaultThreshold.
	Threshold float64
	// MaxFileSize excludes larger files from comparison.
	MaxFileSize int64
	// Workers bounds concurrent pair scoring; 0 means runtime.NumCPU().
	Workers int
	// OnLoad, when set, receives every comparable file after loading.
	OnLoad func(*fileio.Content)
}

// Engine scores textual similarity between files.
type Engine struct {
	reader   *fileio.Reader
	failures *fileio.FailureLog
	logger   *slog.Logger
	opts     Options
}

func NewEngine(reader *fileio.Reader, failures *fileio.FailureLog, logger *slog.Logger, opts Options) *Engine {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	return &Engine{reader: reader, failures: failures, logger: logger, opts: opts}
}

// document is one loaded file. Shingle sets are built lazily per shingle size
// because each pair uses the size chosen for its shorter member.
type document struct {
	path  string
	text  string
	runes []rune
	words []string

	mu       sync.Mutex
	shingles map[int]ShingleSet
}

func newDocument(path, text string) *document {
	return &document{
		path:     path,
		text:     text,
		runes:    []rune(text),
		words:    Tokenize(text),
		shingles: make(map[int]ShingleSet),
	}
}

func (d *document) shingleSet(k int) ShingleSet {
	d.mu.Lock()
	defer d.mu.Unlock()
	set, ok := d.shingles[k]
	if !ok {
		set = Shingles(d.words, k)
		d.shingles[k] = set
	}
	return set
}

// ScoreAll compares every pair of comparable files in paths. known maps paths
// proven byte-identical to their digest; pairs sharing a digest score 1.0
// without further work. Only context cancellation returns an error.
func (e *Engine) ScoreAll(ctx context.Context, paths []string, known map[string]string) (*Store, error) {
	start := time.Now()

	docs, err := e.load(ctx, paths)
	if err != nil {
		return nil, err
	}

	store := NewStore()
	var compared, promoted atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)
	for i := 0; i < len(docs)-1; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			for j := i + 1; j < len(docs); j++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				compared.Add(1)
				if e.compare(docs[i], docs[j], known, store) {
					promoted.Add(1)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.logger.Info("similarity scoring complete",
		"files", len(docs),
		"pairs", compared.Load(),
		"aligned", promoted.Load(),
		"similar", store.Len(),
		"duration", time.Since(start),
	)
	return store, nil
}

// load reads candidates one at a time and keeps those that can be compared as text.
func (e *Engine) load(ctx context.Context, paths []string) ([]*document, error) {
	var docs []*document
	skipped := make(map[kind.Category]int)

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		info, err := e.reader.Stat(ctx, path)
		if err != nil {
			e.absorb(ctx, path, err)
			continue
		}
		if info.Size() > e.opts.MaxFileSize {
			skipped[kind.Oversized]++
			e.logger.Debug("skipped file", "stage", StageLoad, "path", path, "category", kind.Oversized, "size", info.Size())
			continue
		}

		content, err := e.reader.ReadContent(ctx, path)
		if err != nil {
			e.absorb(ctx, path, err)
			continue
		}
		if !content.Category.Comparable() {
			skipped[content.Category]++
			e.logger.Debug("skipped file", "stage", StageLoad, "path", path, "category", content.Category)
			continue
		}

		if e.opts.OnLoad != nil {
			e.opts.OnLoad(content)
		}
		docs = append(docs, newDocument(path, content.Text()))
	}

	e.logger.Debug("loaded files for comparison",
		"loaded", len(docs),
		"oversized", skipped[kind.Oversized],
		"binary", skipped[kind.Binary],
		"structured", skipped[kind.StructuredDocument],
	)
	return docs, nil
}

// compare scores one pair and reports whether it reached the alignment stage.
func (e *Engine) compare(a, b *document, known map[string]string, store *Store) bool {
	if digestA, ok := known[a.path]; ok && digestA == known[b.path] {
		store.Insert(Score{PathA: a.path, PathB: b.path, Jaccard: 1, Alignment: 1, Identical: true})
		return false
	}

	k := ShingleSize(min(len(a.text), len(b.text)))
	jaccard := Jaccard(a.shingleSet(k), b.shingleSet(k))
	if jaccard < e.opts.Threshold {
		return false
	}

	store.Insert(Score{
		PathA:     a.path,
		PathB:     b.path,
		Jaccard:   jaccard,
		Alignment: AlignmentScore(a.runes, b.runes),
	})
	return true
}

func (e *Engine) absorb(ctx context.Context, path string, err error) {
	if ctx.Err() != nil {
		return
	}
	failure := fileio.AsFailure(path, err)
	failure.Stage = StageLoad
	e.failures.Record(failure)
	e.logger.Warn("skipped file", "stage", StageLoad, "path", path, "kind", failure.Kind, "error", failure.Err)
}
