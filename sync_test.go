package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lexandro/ferret/discovery"
	"github.com/lexandro/ferret/ignore"
	"github.com/lexandro/ferret/index"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testEnumerator(rootDir string) *discovery.Enumerator {
	return &discovery.Enumerator{
		Root:    rootDir,
		Matcher: ignore.NewMatcher(ignore.MatcherOptions{RootDir: rootDir}),
		Logger:  testLogger(),
	}
}

func writeFile(t *testing.T, path, content string) os.FileInfo {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	return info
}

func inventoryOf(path string, info os.FileInfo) *index.InventoryFile {
	return &index.InventoryFile{
		Path:         path,
		RelativePath: filepath.Base(path),
		SizeBytes:    info.Size(),
		ModTime:      info.ModTime(),
	}
}

func Test_checkDrift_InSync(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "notes.txt")
	info := writeFile(t, path, "hello\n")

	fileIndex := index.NewFileIndex()
	fileIndex.AddFile(inventoryOf(path, info))

	result, err := checkDrift(context.Background(), testEnumerator(tmpDir), fileIndex)
	if err != nil {
		t.Fatalf("checkDrift() error: %v", err)
	}
	if result.Drifted() {
		t.Errorf("expected no drift, got %+v", result)
	}
}

func Test_checkDrift_DetectsMissingStaleAndModified(t *testing.T) {
	tmpDir := t.TempDir()
	fileIndex := index.NewFileIndex()

	// On disk only.
	writeFile(t, filepath.Join(tmpDir, "new.txt"), "new\n")

	// Inventoried, then deleted.
	gonePath := filepath.Join(tmpDir, "gone.txt")
	fileIndex.AddFile(&index.InventoryFile{Path: gonePath, RelativePath: "gone.txt", SizeBytes: 3, ModTime: time.Now()})

	// Inventoried, then rewritten with a different size.
	editedPath := filepath.Join(tmpDir, "edited.txt")
	info := writeFile(t, editedPath, "v1\n")
	fileIndex.AddFile(inventoryOf(editedPath, info))
	writeFile(t, editedPath, "version two\n")

	result, err := checkDrift(context.Background(), testEnumerator(tmpDir), fileIndex)
	if err != nil {
		t.Fatalf("checkDrift() error: %v", err)
	}
	if result.MissingFiles != 1 {
		t.Errorf("expected 1 missing file, got %d", result.MissingFiles)
	}
	if result.StaleFiles != 1 {
		t.Errorf("expected 1 stale file, got %d", result.StaleFiles)
	}
	if result.ModifiedFiles != 1 {
		t.Errorf("expected 1 modified file, got %d", result.ModifiedFiles)
	}
	if !result.Drifted() {
		t.Error("expected Drifted() to be true")
	}
}

func Test_checkDrift_MissingRoot(t *testing.T) {
	_, err := checkDrift(context.Background(), testEnumerator(filepath.Join(t.TempDir(), "nope")), index.NewFileIndex())
	if err == nil {
		t.Fatal("expected error for missing root")
	}
}

func Test_runPeriodicSync_ReanalyzesOnDrift(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, filepath.Join(tmpDir, "a.txt"), "a\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	triggered := make(chan struct{}, 1)
	go runPeriodicSync(ctx, 20*time.Millisecond, testEnumerator(tmpDir), index.NewFileIndex(), func(context.Context) {
		select {
		case triggered <- struct{}{}:
		default:
		}
	}, testLogger())

	select {
	case <-triggered:
	case <-time.After(2 * time.Second):
		t.Fatal("expected a re-analysis after drift")
	}
}
