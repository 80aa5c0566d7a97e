package dupes

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"runtime"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lexandro/ferret/fileio"
	"github.com/lexandro/ferret/grouping"
)

// StageHash labels failures recorded while hashing.
const StageHash = "hash"

// quickHashBytes is how much of each cross-group candidate is sampled before a full hash.
const quickHashBytes = 8 * 1024

// DigestCache stores digests across runs. hashcache.Cache satisfies it.
type DigestCache interface {
	Lookup(path string, size int64, modTime time.Time, algorithm string) (string, bool)
	Store(path string, size int64, modTime time.Time, algorithm, digest string)
}

// Options configures a Detector.
type Options struct {
	Algorithm Algorithm
	// Workers bounds concurrent hashing; 0 means runtime.NumCPU().
	Workers int
	// CrossGroup also compares files that ended up alone in their name group.
	CrossGroup bool
	// Cache is optional.
	Cache DigestCache
}

// Detector finds byte-identical files inside name groups.
type Detector struct {
	reader   *fileio.Reader
	failures *fileio.FailureLog
	logger   *slog.Logger
	opts     Options
}

func NewDetector(reader *fileio.Reader, failures *fileio.FailureLog, logger *slog.Logger, opts Options) *Detector {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.Algorithm == "" {
		opts.Algorithm = SHA256
	}
	return &Detector{reader: reader, failures: failures, logger: logger, opts: opts}
}

// Detect hashes every member of each multi-member group and reports sets of
// identical files. Per-file failures are recorded and skipped; only context
// cancellation aborts the run.
func (d *Detector) Detect(ctx context.Context, groups []grouping.FileGroup) (*DuplicateResults, error) {
	start := time.Now()
	results := NewDuplicateResults()

	var candidates []string
	for _, group := range groups {
		if group.IsPotentialDuplicate() {
			candidates = append(candidates, group.Members...)
		}
	}

	digests, err := d.hashAll(ctx, candidates)
	if err != nil {
		return nil, err
	}

	for _, group := range groups {
		if !group.IsPotentialDuplicate() {
			continue
		}
		keys := make([]string, len(group.Members))
		for i, member := range group.Members {
			keys[i] = digests[member]
		}
		if sets := bucket(group.Members, keys); len(sets) > 0 {
			results.AddGroup(DuplicateGroup{BaseName: group.CanonicalName, DuplicateSets: sets})
		}
	}

	if d.opts.CrossGroup {
		if err := d.detectAcrossGroups(ctx, groups, results); err != nil {
			return nil, err
		}
	}

	d.logger.Info("duplicate detection complete",
		"hashed", len(candidates),
		"groups", len(results.DuplicateGroups),
		"duplicates", results.TotalDuplicates,
		"spaceWasted", results.SpaceWasted,
		"duration", time.Since(start),
	)
	return results, nil
}

// HashFile returns the hex digest of path, consulting the cache first.
func (d *Detector) HashFile(ctx context.Context, path string) (string, error) {
	info, err := d.reader.Stat(ctx, path)
	if err != nil {
		return "", err
	}

	algorithm := string(d.opts.Algorithm)
	if d.opts.Cache != nil {
		if digest, ok := d.opts.Cache.Lookup(path, info.Size(), info.ModTime(), algorithm); ok {
			return digest, nil
		}
	}

	f, err := d.reader.Open(ctx, path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h, err := d.opts.Algorithm.New()
	if err != nil {
		return "", err
	}
	if err := streamDigest(ctx, h, f); err != nil {
		return "", fileio.NewFailure(path, 1, fmt.Errorf("hashing: %w", err))
	}

	digest := hex.EncodeToString(h.Sum(nil))
	if d.opts.Cache != nil {
		d.opts.Cache.Store(path, info.Size(), info.ModTime(), algorithm, digest)
	}
	return digest, nil
}

// hashAll hashes paths concurrently. Paths that fail are absent from the result.
func (d *Detector) hashAll(ctx context.Context, paths []string) (map[string]string, error) {
	digests := make([]string, len(paths))
	err := d.forEach(ctx, len(paths), func(ctx context.Context, i int) error {
		digest, err := d.HashFile(ctx, paths[i])
		if err != nil {
			return d.absorb(ctx, paths[i], err)
		}
		digests[i] = digest
		return nil
	})
	if err != nil {
		return nil, err
	}

	byPath := make(map[string]string, len(paths))
	for i, path := range paths {
		if digests[i] != "" {
			byPath[path] = digests[i]
		}
	}
	return byPath, nil
}

// detectAcrossGroups catches renamed copies that share no name with each other.
// Singletons are narrowed by size, then by a sample hash, before full hashing.
func (d *Detector) detectAcrossGroups(ctx context.Context, groups []grouping.FileGroup, results *DuplicateResults) error {
	var singles []string
	for _, group := range groups {
		if len(group.Members) == 1 {
			singles = append(singles, group.Members[0])
		}
	}
	if len(singles) < 2 {
		return nil
	}

	sizes := make([]int64, len(singles))
	err := d.forEach(ctx, len(singles), func(ctx context.Context, i int) error {
		info, err := d.reader.Stat(ctx, singles[i])
		if err != nil {
			sizes[i] = -1
			return d.absorb(ctx, singles[i], err)
		}
		sizes[i] = info.Size()
		return nil
	})
	if err != nil {
		return err
	}

	sizeKeys := make([]string, len(singles))
	for i, size := range sizes {
		// Empty files are all identical and say nothing about copies.
		if size > 0 {
			sizeKeys[i] = strconv.FormatInt(size, 10)
		}
	}
	bySize := bucket(singles, sizeKeys)
	if len(bySize) == 0 {
		return nil
	}

	var sampled []string
	for _, set := range bySize {
		sampled = append(sampled, set.Files...)
	}
	sizeOf := make(map[string]string, len(singles))
	for i, path := range singles {
		sizeOf[path] = sizeKeys[i]
	}

	samples := make([]string, len(sampled))
	err = d.forEach(ctx, len(sampled), func(ctx context.Context, i int) error {
		f, err := d.reader.Open(ctx, sampled[i])
		if err != nil {
			return d.absorb(ctx, sampled[i], err)
		}
		defer f.Close()
		sum, err := quickDigest(ctx, f, quickHashBytes)
		if err != nil {
			return d.absorb(ctx, sampled[i], fileio.NewFailure(sampled[i], 1, err))
		}
		samples[i] = sizeOf[sampled[i]] + ":" + strconv.FormatUint(sum, 16)
		return nil
	})
	if err != nil {
		return err
	}

	var full []string
	for _, set := range bucket(sampled, samples) {
		full = append(full, set.Files...)
	}
	digests, err := d.hashAll(ctx, full)
	if err != nil {
		return err
	}

	keys := make([]string, len(full))
	for i, path := range full {
		keys[i] = digests[path]
	}
	canonical := grouping.CanonicalIndex(groups)
	for _, set := range bucket(full, keys) {
		results.AddGroup(DuplicateGroup{
			BaseName:      canonical[set.Files[0]],
			DuplicateSets: []DuplicateSet{set},
		})
	}
	return nil
}

// absorb records a per-file failure. It only returns an error when the run itself is cancelled.
func (d *Detector) absorb(ctx context.Context, path string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	failure := fileio.AsFailure(path, err)
	failure.Stage = StageHash
	d.failures.Record(failure)
	d.logger.Warn("skipped file", "stage", StageHash, "path", path, "kind", failure.Kind, "error", failure.Err)
	return nil
}

func (d *Detector) forEach(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.opts.Workers)
	for i := 0; i < n; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error { return fn(gctx, i) })
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// bucket groups paths by key in first-appearance order. Empty keys are skipped
// and only buckets with at least two members are returned.
func bucket(paths []string, keys []string) []DuplicateSet {
	index := make(map[string]int)
	var sets []DuplicateSet
	for i, path := range paths {
		key := keys[i]
		if key == "" {
			continue
		}
		if at, ok := index[key]; ok {
			sets[at].Files = append(sets[at].Files, path)
			continue
		}
		index[key] = len(sets)
		sets = append(sets, DuplicateSet{Digest: key, Files: []string{path}})
	}

	kept := sets[:0]
	for _, set := range sets {
		if len(set.Files) >= 2 {
			kept = append(kept, set)
		}
	}
	return kept
}
