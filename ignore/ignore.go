package ignore

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	gitignore "github.com/denormal/go-gitignore"
)

// IgnoreFileNames are the per-root ignore files honoured by the matcher, in load order.
var IgnoreFileNames = []string{".gitignore", ".ferretignore"}

// Matcher decides which paths take part in an analysis run.
// It combines default patterns, ignore files found at the root, custom exclude globs
// and optional include globs. Reload() takes the write lock; the match methods take the read lock.
type Matcher struct {
	mu               sync.RWMutex
	rootDir          string
	ignoreFiles      []gitignore.GitIgnore
	customPatterns   []string
	includePatterns  []string
	maxFileSizeBytes int64
}

// MatcherOptions configures the ignore matcher.
type MatcherOptions struct {
	RootDir string
	// CustomPatterns are doublestar globs matched against the slash-separated relative path and the base name.
	CustomPatterns []string
	// IncludePatterns, when set, restrict files to those matching at least one glob.
	IncludePatterns []string
	// MaxFileSizeBytes <= 0 means no size limit.
	MaxFileSizeBytes int64
}

// NewMatcher creates a matcher rooted at options.RootDir.
func NewMatcher(options MatcherOptions) *Matcher {
	matcher := &Matcher{
		rootDir:          options.RootDir,
		customPatterns:   validPatterns(options.CustomPatterns),
		includePatterns:  validPatterns(options.IncludePatterns),
		maxFileSizeBytes: options.MaxFileSizeBytes,
	}
	matcher.ignoreFiles = loadIgnoreFiles(options.RootDir)
	return matcher
}

// RootDir returns the directory the matcher resolves relative paths against.
func (m *Matcher) RootDir() string {
	return m.rootDir
}

// ShouldIgnore reports whether the file at path is excluded.
func (m *Matcher) ShouldIgnore(path string) bool {
	relativePath := m.relative(path)
	if m.excluded(relativePath, false) {
		return true
	}
	if len(m.includePatterns) == 0 {
		return false
	}
	return !matchesAny(m.includePatterns, relativePath)
}

// ShouldIgnoreDir reports whether a directory should be skipped entirely during traversal.
// Include globs never prune directories.
func (m *Matcher) ShouldIgnoreDir(path string) bool {
	switch strings.ToLower(filepath.Base(path)) {
	case ".git", ".svn", ".hg", "node_modules", "__pycache__", ".venv",
		"$recycle.bin", "system volume information", ".trashes", ".fseventsd":
		return true
	}
	return m.excluded(m.relative(path), true)
}

// IsFileTooLarge returns true if the file exceeds the configured size limit.
func (m *Matcher) IsFileTooLarge(fileSize int64) bool {
	return m.maxFileSizeBytes > 0 && fileSize > m.maxFileSizeBytes
}

// HasSizeLimit reports whether a maximum file size is configured.
func (m *Matcher) HasSizeLimit() bool {
	return m.maxFileSizeBytes > 0
}

// IsIgnoreFile reports whether name is one of the ignore files the matcher loads.
func IsIgnoreFile(name string) bool {
	for _, candidate := range IgnoreFileNames {
		if name == candidate {
			return true
		}
	}
	return false
}

// Reload re-reads the ignore files from disk.
func (m *Matcher) Reload() {
	loaded := loadIgnoreFiles(m.rootDir)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.ignoreFiles = loaded
}

func (m *Matcher) relative(path string) string {
	relativePath, err := filepath.Rel(m.rootDir, path)
	if err != nil {
		relativePath = path
	}
	return filepath.ToSlash(relativePath)
}

func (m *Matcher) excluded(relativePath string, isDir bool) bool {
	if matchesDefaultPatterns(relativePath) {
		return true
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, ignoreFile := range m.ignoreFiles {
		match := ignoreFile.Relative(relativePath, isDir)
		if match != nil && match.Ignore() {
			return true
		}
	}
	return matchesAny(m.customPatterns, relativePath)
}

// matchesDefaultPatterns checks every path component against the built-in patterns, case-insensitively.
func matchesDefaultPatterns(relativePath string) bool {
	for _, part := range strings.Split(strings.ToLower(relativePath), "/") {
		for _, pattern := range DefaultIgnorePatterns {
			pattern = strings.ToLower(pattern)
			if !strings.ContainsAny(pattern, "*?[") {
				if part == pattern {
					return true
				}
				continue
			}
			if matched, _ := doublestar.Match(pattern, part); matched {
				return true
			}
		}
	}
	return false
}

func matchesAny(patterns []string, relativePath string) bool {
	baseName := filepath.Base(relativePath)
	for _, pattern := range patterns {
		if matched, _ := doublestar.Match(pattern, relativePath); matched {
			return true
		}
		if matched, _ := doublestar.Match(pattern, baseName); matched {
			return true
		}
	}
	return false
}

func validPatterns(patterns []string) []string {
	var valid []string
	for _, pattern := range patterns {
		pattern = filepath.ToSlash(strings.TrimSpace(pattern))
		if pattern != "" && doublestar.ValidatePattern(pattern) {
			valid = append(valid, pattern)
		}
	}
	return valid
}

func loadIgnoreFiles(rootDir string) []gitignore.GitIgnore {
	var loaded []gitignore.GitIgnore
	for _, name := range IgnoreFileNames {
		if gi := loadIgnoreFile(filepath.Join(rootDir, name), rootDir); gi != nil {
			loaded = append(loaded, gi)
		}
	}
	return loaded
}

// loadIgnoreFile goes through an io.Reader so the handle is closed promptly on Windows shares.
func loadIgnoreFile(filePath string, baseDir string) gitignore.GitIgnore {
	f, err := os.Open(filePath)
	if err != nil {
		return nil
	}
	defer f.Close()

	return gitignore.New(f, baseDir, nil)
}
