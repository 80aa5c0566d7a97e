package dupes

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexandro/ferret/fileio"
	"github.com/lexandro/ferret/grouping"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestDetector(opts Options) (*Detector, *fileio.Reader, *fileio.FailureLog) {
	readerOpts := fileio.DefaultOptions()
	readerOpts.RetryDelay = time.Millisecond
	reader := fileio.NewReader(readerOpts, discardLogger())
	failures := fileio.NewFailureLog()
	return NewDetector(reader, failures, discardLogger(), opts), reader, failures
}

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
}

func Test_Detector_HashFile_SHA256(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"a.txt": "Hello, world!"})
	detector, _, _ := newTestDetector(Options{})

	digest, err := detector.HashFile(context.Background(), filepath.Join(dir, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "315f5bdb76d078c43b8ac0064e4a0164612b1fce77c869345bfc94c75894edd3", digest)
}

func Test_Detector_HashFile_LargerThanChunk(t *testing.T) {
	dir := t.TempDir()
	content := strings.Repeat("0123456789abcdef", 3*ChunkSize)
	writeFiles(t, dir, map[string]string{"one.bin": content, "two.bin": content, "three.bin": content + "!"})

	for _, algorithm := range []Algorithm{SHA256, BLAKE3} {
		detector, _, _ := newTestDetector(Options{Algorithm: algorithm})
		one, err := detector.HashFile(context.Background(), filepath.Join(dir, "one.bin"))
		require.NoError(t, err)
		two, err := detector.HashFile(context.Background(), filepath.Join(dir, "two.bin"))
		require.NoError(t, err)
		three, err := detector.HashFile(context.Background(), filepath.Join(dir, "three.bin"))
		require.NoError(t, err)

		assert.Equal(t, one, two, algorithm)
		assert.NotEqual(t, one, three, algorithm)
	}
}

func Test_Detector_Detect_WithinGroup(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"report_v1.txt":    "quarterly numbers",
		"report_v2.txt":    "quarterly numbers",
		"report_final.txt": "quarterly numbers, revised",
		"report_copy.txt":  "quarterly numbers, revised",
		"report_draft.txt": "something else entirely",
	})
	paths := []string{
		filepath.Join(dir, "report_v1.txt"),
		filepath.Join(dir, "report_v2.txt"),
		filepath.Join(dir, "report_final.txt"),
		filepath.Join(dir, "report_copy.txt"),
		filepath.Join(dir, "report_draft.txt"),
	}
	groups := grouping.NewGrouper(grouping.DefaultThreshold).Group(paths)
	require.Len(t, groups, 1)

	detector, _, failures := newTestDetector(Options{})
	results, err := detector.Detect(context.Background(), groups)
	require.NoError(t, err)

	require.Len(t, results.DuplicateGroups, 1)
	group := results.DuplicateGroups[0]
	assert.Equal(t, "report", group.BaseName)
	require.Len(t, group.DuplicateSets, 2)
	assert.Equal(t, []string{paths[0], paths[1]}, group.DuplicateSets[0].Files)
	assert.Equal(t, []string{paths[2], paths[3]}, group.DuplicateSets[1].Files)

	assert.Equal(t, 2, results.TotalDuplicates)
	assert.EqualValues(t, len("quarterly numbers")+len("quarterly numbers, revised"), results.SpaceWasted)
	assert.Zero(t, failures.Len())
}

func Test_Detector_Detect_CrossGroupIdenticalContent(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"a.txt": "Hello, world!",
		"b.txt": "Hello, world!",
		"c.txt": "Different content",
	})
	paths := []string{filepath.Join(dir, "a.txt"), filepath.Join(dir, "b.txt"), filepath.Join(dir, "c.txt")}
	groups := grouping.NewGrouper(grouping.DefaultThreshold).Group(paths)
	require.Len(t, groups, 3)

	detector, _, _ := newTestDetector(Options{CrossGroup: true})
	results, err := detector.Detect(context.Background(), groups)
	require.NoError(t, err)

	require.Len(t, results.DuplicateGroups, 1)
	assert.Equal(t, "a", results.DuplicateGroups[0].BaseName)
	require.Len(t, results.DuplicateGroups[0].DuplicateSets, 1)
	assert.Equal(t, []string{paths[0], paths[1]}, results.DuplicateGroups[0].DuplicateSets[0].Files)
	assert.Equal(t, 1, results.TotalDuplicates)
	assert.NotContains(t, results.KnownDuplicates(), paths[2])
}

func Test_Detector_Detect_CrossGroupDisabled(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"a.txt": "same", "b.txt": "same"})
	groups := grouping.NewGrouper(grouping.DefaultThreshold).Group([]string{filepath.Join(dir, "a.txt"), filepath.Join(dir, "b.txt")})

	detector, _, _ := newTestDetector(Options{CrossGroup: false})
	results, err := detector.Detect(context.Background(), groups)
	require.NoError(t, err)
	assert.Empty(t, results.DuplicateGroups)
}

func Test_Detector_Detect_SameSizeDifferentContent(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"alpha.txt": "aaaa", "beta.txt": "bbbb", "empty1.txt": "", "gamma.txt": ""})
	paths := []string{
		filepath.Join(dir, "alpha.txt"), filepath.Join(dir, "beta.txt"),
		filepath.Join(dir, "empty1.txt"), filepath.Join(dir, "gamma.txt"),
	}
	groups := grouping.NewGrouper(grouping.DefaultThreshold).Group(paths)

	detector, _, _ := newTestDetector(Options{CrossGroup: true})
	results, err := detector.Detect(context.Background(), groups)
	require.NoError(t, err)
	assert.Empty(t, results.DuplicateGroups, "same size with different bytes, and empty files, are not duplicates")
}

func Test_Detector_Detect_MissingFileSkipped(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"notes.txt": "x", "notes_copy.txt": "x"})
	groups := []grouping.FileGroup{{
		CanonicalName: "notes",
		Members: []string{
			filepath.Join(dir, "notes.txt"),
			filepath.Join(dir, "notes_v2.txt"),
			filepath.Join(dir, "notes_copy.txt"),
		},
	}}

	detector, _, failures := newTestDetector(Options{})
	results, err := detector.Detect(context.Background(), groups)
	require.NoError(t, err)

	require.Len(t, results.DuplicateGroups, 1)
	assert.Equal(t, []string{groups[0].Members[0], groups[0].Members[2]}, results.DuplicateGroups[0].DuplicateSets[0].Files)

	entries := failures.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, fileio.FailureMissing, entries[0].Kind)
	assert.Equal(t, StageHash, entries[0].Stage)
}

func Test_Detector_Detect_LockedFileReported(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"plan.txt": "same", "plan_v2.txt": "same", "plan_v3.txt": "same"})
	locked := filepath.Join(dir, "plan_v2.txt")
	groups := []grouping.FileGroup{{
		CanonicalName: "plan",
		Members:       []string{filepath.Join(dir, "plan.txt"), locked, filepath.Join(dir, "plan_v3.txt")},
	}}

	detector, reader, failures := newTestDetector(Options{})
	reader.OpenFile = func(name string) (*os.File, error) {
		if name == locked {
			return nil, &os.PathError{Op: "open", Path: name, Err: errors.New("sharing violation")}
		}
		return os.Open(name)
	}

	results, err := detector.Detect(context.Background(), groups)
	require.NoError(t, err)

	require.Len(t, results.DuplicateGroups, 1)
	assert.NotContains(t, results.DuplicateGroups[0].DuplicateSets[0].Files, locked)
	assert.Equal(t, 1, results.TotalDuplicates)

	entries := failures.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, locked, entries[0].Path)
	assert.Equal(t, fileio.FailureLocked, entries[0].Kind)
}

func Test_Detector_Detect_Cancelled(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"a.txt": "1", "a_copy.txt": "1"})
	groups := grouping.NewGrouper(grouping.DefaultThreshold).Group([]string{filepath.Join(dir, "a.txt"), filepath.Join(dir, "a_copy.txt")})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	detector, _, _ := newTestDetector(Options{})
	_, err := detector.Detect(ctx, groups)
	assert.ErrorIs(t, err, context.Canceled)
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[string]string
	hits    int
}

func (m *memoryCache) Lookup(path string, size int64, modTime time.Time, algorithm string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	digest, ok := m.entries[path+algorithm]
	if ok {
		m.hits++
	}
	return digest, ok
}

func (m *memoryCache) Store(path string, size int64, modTime time.Time, algorithm, digest string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[path+algorithm] = digest
}

func Test_Detector_HashFile_UsesCache(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"a.txt": "cached"})
	path := filepath.Join(dir, "a.txt")
	cache := &memoryCache{entries: map[string]string{}}

	detector, reader, _ := newTestDetector(Options{Cache: cache})
	first, err := detector.HashFile(context.Background(), path)
	require.NoError(t, err)

	reader.OpenFile = func(name string) (*os.File, error) {
		t.Fatalf("unexpected open of %s on cache hit", name)
		return nil, nil
	}
	second, err := detector.HashFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, cache.hits)
}

func Test_DuplicateResults_AccountingInvariant(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"a": "12345", "b": "12345", "c": "12345", "d": "xy", "e": "xy"})
	p := func(name string) string { return filepath.Join(dir, name) }

	results := NewDuplicateResults()
	results.AddGroup(DuplicateGroup{BaseName: "g1", DuplicateSets: []DuplicateSet{{Digest: "1", Files: []string{p("a"), p("b"), p("c")}}}})
	assert.Equal(t, 2, results.TotalDuplicates)
	assert.EqualValues(t, 10, results.SpaceWasted)

	results.AddGroup(DuplicateGroup{BaseName: "g2", DuplicateSets: []DuplicateSet{{Digest: "2", Files: []string{p("d"), p("e")}}}})
	assert.Equal(t, 3, results.TotalDuplicates)
	assert.EqualValues(t, 12, results.SpaceWasted)
	assert.Equal(t, 2, results.SetCount())
	assert.Equal(t, map[string]string{p("a"): "1", p("b"): "1", p("c"): "1", p("d"): "2", p("e"): "2"}, results.KnownDuplicates())
}

func Test_ParseAlgorithm(t *testing.T) {
	a, err := ParseAlgorithm("blake3")
	require.NoError(t, err)
	assert.Equal(t, BLAKE3, a)

	a, err = ParseAlgorithm("")
	require.NoError(t, err)
	assert.Equal(t, SHA256, a)

	_, err = ParseAlgorithm("md5")
	assert.Error(t, err)
}
