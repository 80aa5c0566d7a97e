package index

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
)

const defaultMaxResults = 50

// FileIndex is the inventory of the last analysis run.
// Lookups go through the map; searches iterate the sorted path slice.
type FileIndex struct {
	mu          sync.RWMutex
	files       map[string]*InventoryFile // key: relative path
	sortedPaths []string
}

func NewFileIndex() *FileIndex {
	return &FileIndex{
		files: make(map[string]*InventoryFile),
	}
}

// AddFile adds or replaces a single entry.
func (fi *FileIndex) AddFile(file *InventoryFile) {
	fi.mu.Lock()
	defer fi.mu.Unlock()

	_, exists := fi.files[file.RelativePath]
	fi.files[file.RelativePath] = file
	if !exists {
		idx := sort.SearchStrings(fi.sortedPaths, file.RelativePath)
		fi.sortedPaths = append(fi.sortedPaths, "")
		copy(fi.sortedPaths[idx+1:], fi.sortedPaths[idx:])
		fi.sortedPaths[idx] = file.RelativePath
	}
}

// Replace swaps the whole inventory for files in one step.
func (fi *FileIndex) Replace(files []*InventoryFile) {
	byPath := make(map[string]*InventoryFile, len(files))
	paths := make([]string, 0, len(files))
	for _, file := range files {
		if _, dup := byPath[file.RelativePath]; !dup {
			paths = append(paths, file.RelativePath)
		}
		byPath[file.RelativePath] = file
	}
	sort.Strings(paths)

	fi.mu.Lock()
	defer fi.mu.Unlock()
	fi.files = byPath
	fi.sortedPaths = paths
}

func (fi *FileIndex) RemoveFile(relativePath string) {
	fi.mu.Lock()
	defer fi.mu.Unlock()

	if _, exists := fi.files[relativePath]; !exists {
		return
	}
	delete(fi.files, relativePath)

	idx := sort.SearchStrings(fi.sortedPaths, relativePath)
	if idx < len(fi.sortedPaths) && fi.sortedPaths[idx] == relativePath {
		fi.sortedPaths = append(fi.sortedPaths[:idx], fi.sortedPaths[idx+1:]...)
	}
}

// GetFile returns the entry for relativePath, or nil.
func (fi *FileIndex) GetFile(relativePath string) *InventoryFile {
	fi.mu.RLock()
	defer fi.mu.RUnlock()
	return fi.files[strings.ReplaceAll(relativePath, "\\", "/")]
}

func (fi *FileIndex) FileCount() int {
	fi.mu.RLock()
	defer fi.mu.RUnlock()
	return len(fi.files)
}

func (fi *FileIndex) TotalSizeBytes() int64 {
	fi.mu.RLock()
	defer fi.mu.RUnlock()

	var total int64
	for _, file := range fi.files {
		total += file.SizeBytes
	}
	return total
}

// KindCounts returns the number of files per detected kind.
func (fi *FileIndex) KindCounts() map[string]int {
	fi.mu.RLock()
	defer fi.mu.RUnlock()

	counts := make(map[string]int)
	for _, file := range fi.files {
		counts[file.Kind]++
	}
	return counts
}

// FileQuery filters the inventory. Empty fields match everything.
type FileQuery struct {
	// Pattern is a doublestar glob matched against relative paths.
	Pattern        string
	Kind           string
	Group          string
	DuplicatesOnly bool
	MaxResults     int
}

// Search returns matching entries in path order, plus the number of matches before truncation.
func (fi *FileIndex) Search(query FileQuery) ([]*InventoryFile, int, error) {
	if query.MaxResults <= 0 {
		query.MaxResults = defaultMaxResults
	}
	pattern := strings.ReplaceAll(query.Pattern, "\\", "/")
	if pattern != "" && !doublestar.ValidatePattern(pattern) {
		return nil, 0, fmt.Errorf("invalid glob pattern: %s", query.Pattern)
	}

	fi.mu.RLock()
	defer fi.mu.RUnlock()

	var results []*InventoryFile
	total := 0
	for _, path := range fi.sortedPaths {
		file := fi.files[path]
		if query.DuplicatesOnly && !file.Duplicate {
			continue
		}
		if query.Kind != "" && !strings.EqualFold(file.Kind, query.Kind) {
			continue
		}
		if query.Group != "" && file.Group != query.Group {
			continue
		}
		if pattern != "" {
			if matched, err := doublestar.Match(pattern, path); err != nil || !matched {
				continue
			}
		}
		total++
		if len(results) < query.MaxResults {
			results = append(results, file)
		}
	}
	return results, total, nil
}

// SearchByGlob returns up to maxResults entries whose relative path matches pattern.
func (fi *FileIndex) SearchByGlob(pattern string, maxResults int) ([]*InventoryFile, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, fmt.Errorf("invalid glob pattern: %q", pattern)
	}
	results, _, err := fi.Search(FileQuery{Pattern: pattern, MaxResults: maxResults})
	return results, err
}

// AllFiles returns every entry in path order.
func (fi *FileIndex) AllFiles() []*InventoryFile {
	fi.mu.RLock()
	defer fi.mu.RUnlock()

	result := make([]*InventoryFile, 0, len(fi.sortedPaths))
	for _, path := range fi.sortedPaths {
		result = append(result, fi.files[path])
	}
	return result
}

func (fi *FileIndex) Clear() {
	fi.Replace(nil)
}
