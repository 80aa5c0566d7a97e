package discovery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/lexandro/ferret/ignore"
)

// ErrRootNotFound is returned when the analysis root does not exist or is not a directory.
var ErrRootNotFound = errors.New("root directory not found")

// Enumerator lists the files under Root that the ignore matcher lets through.
type Enumerator struct {
	Root    string
	Matcher *ignore.Matcher
	// MaxDepth limits directory depth below Root; 0 means unlimited.
	MaxDepth int
	// MaxFiles stops enumeration after this many files; 0 means unlimited.
	MaxFiles int
	// UseFd tries the external fd finder before walking.
	UseFd  bool
	Logger *slog.Logger

	// lookPath finds the fd binary; replaced in tests.
	lookPath func(string) (string, error)
}

// CheckRoot verifies that root is an existing directory.
func CheckRoot(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrRootNotFound, root)
		}
		return fmt.Errorf("checking root %s: %w", root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrRootNotFound, root)
	}
	return nil
}

// Enumerate returns matching file paths in lexical order.
// A failing fd run falls back to the built-in walker without error.
func (e *Enumerator) Enumerate(ctx context.Context) ([]string, error) {
	if err := CheckRoot(e.Root); err != nil {
		return nil, err
	}

	if e.UseFd {
		paths, err := e.enumerateWithFd(ctx)
		if err == nil {
			return paths, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		e.Logger.Debug("fd unavailable, walking directory tree", "error", err)
	}
	return e.walk(ctx)
}

func (e *Enumerator) walk(ctx context.Context) ([]string, error) {
	var paths []string
	rootDepth := depth(e.Root)

	err := filepath.WalkDir(e.Root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			e.Logger.Debug("skipped unreadable entry", "path", path, "error", err)
			if d != nil && d.IsDir() && path != e.Root {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path == e.Root {
				return nil
			}
			if e.Matcher.ShouldIgnoreDir(path) {
				return filepath.SkipDir
			}
			if e.MaxDepth > 0 && depth(path)-rootDepth >= e.MaxDepth {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || e.Matcher.ShouldIgnore(path) {
			return nil
		}
		if info, err := d.Info(); err != nil || e.Matcher.IsFileTooLarge(info.Size()) {
			return nil
		}

		paths = append(paths, path)
		if e.MaxFiles > 0 && len(paths) >= e.MaxFiles {
			e.Logger.Warn("file limit reached, enumeration truncated", "maxFiles", e.MaxFiles)
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", e.Root, err)
	}
	return paths, nil
}

func (e *Enumerator) enumerateWithFd(ctx context.Context) ([]string, error) {
	lookPath := e.lookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	binary, err := lookPath("fd")
	if err != nil {
		if binary, err = lookPath("fdfind"); err != nil {
			return nil, err
		}
	}

	args := []string{"--type", "f", "--hidden", "--no-ignore", "--absolute-path", "--print0"}
	if e.MaxDepth > 0 {
		args = append(args, "--max-depth", strconv.Itoa(e.MaxDepth))
	}
	args = append(args, ".", e.Root)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("running %s: %w: %s", binary, err, strings.TrimSpace(stderr.String()))
	}

	return e.filter(splitNul(out)), nil
}

// filter applies the ignore rules the walker would have applied, including
// pruned directories, to an externally produced list.
func (e *Enumerator) filter(candidates []string) []string {
	sort.Strings(candidates)
	prunedDirs := make(map[string]bool)

	var paths []string
	for _, path := range candidates {
		if e.insidePrunedDir(path, prunedDirs) || e.Matcher.ShouldIgnore(path) {
			continue
		}
		if e.Matcher.HasSizeLimit() {
			if info, err := os.Stat(path); err != nil || e.Matcher.IsFileTooLarge(info.Size()) {
				continue
			}
		}
		paths = append(paths, path)
		if e.MaxFiles > 0 && len(paths) >= e.MaxFiles {
			e.Logger.Warn("file limit reached, enumeration truncated", "maxFiles", e.MaxFiles)
			break
		}
	}
	return paths
}

func (e *Enumerator) insidePrunedDir(path string, memo map[string]bool) bool {
	dir := filepath.Dir(path)
	for dir != e.Root && strings.HasPrefix(dir, e.Root) {
		pruned, seen := memo[dir]
		if !seen {
			pruned = e.Matcher.ShouldIgnoreDir(dir)
			memo[dir] = pruned
		}
		if pruned {
			return true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return false
}

func splitNul(out []byte) []string {
	var paths []string
	for _, field := range bytes.Split(out, []byte{0}) {
		if len(field) > 0 {
			paths = append(paths, filepath.Clean(string(field)))
		}
	}
	return paths
}

func depth(path string) int {
	return strings.Count(filepath.Clean(path), string(filepath.Separator))
}
