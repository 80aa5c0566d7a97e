package index

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/bmatcuk/doublestar/v4"
)

// ContentIndex is an in-memory full-text index over the text loaded during analysis.
type ContentIndex struct {
	mu    sync.RWMutex
	index bleve.Index
	// texts keeps the raw text for line-level match extraction, keyed by relative path.
	texts map[string]string
}

func NewContentIndex() (*ContentIndex, error) {
	bleveIndex, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("creating bleve index: %w", err)
	}
	return &ContentIndex{
		index: bleveIndex,
		texts: make(map[string]string),
	}, nil
}

type textDocument struct {
	Content string `json:"content"`
	Path    string `json:"path"`
	Kind    string `json:"kind"`
}

func buildIndexMapping() *mapping.IndexMappingImpl {
	indexMapping := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()

	contentField := bleve.NewTextFieldMapping()
	contentField.Store = false
	contentField.IncludeInAll = true
	docMapping.AddFieldMappingsAt("content", contentField)

	pathField := bleve.NewTextFieldMapping()
	pathField.Store = true
	pathField.IncludeInAll = false
	docMapping.AddFieldMappingsAt("path", pathField)

	kindField := bleve.NewKeywordFieldMapping()
	kindField.Store = true
	kindField.IncludeInAll = false
	docMapping.AddFieldMappingsAt("kind", kindField)

	indexMapping.DefaultMapping = docMapping
	return indexMapping
}

// IndexFile adds or replaces the text of one file.
func (ci *ContentIndex) IndexFile(relativePath, text, fileKind string) error {
	relativePath = strings.ReplaceAll(relativePath, "\\", "/")

	ci.mu.Lock()
	defer ci.mu.Unlock()

	ci.texts[relativePath] = text
	doc := textDocument{Content: text, Path: relativePath, Kind: fileKind}
	if err := ci.index.Index(relativePath, doc); err != nil {
		return fmt.Errorf("indexing file %s: %w", relativePath, err)
	}
	return nil
}

func (ci *ContentIndex) RemoveFile(relativePath string) error {
	ci.mu.Lock()
	defer ci.mu.Unlock()

	delete(ci.texts, relativePath)
	if err := ci.index.Delete(relativePath); err != nil {
		return fmt.Errorf("removing file %s from index: %w", relativePath, err)
	}
	return nil
}

// ContentSearchResult holds the matching lines of one file.
type ContentSearchResult struct {
	RelativePath string      `json:"path"`
	Matches      []LineMatch `json:"matches"`
}

type LineMatch struct {
	LineNumber    int      `json:"line"`
	LineText      string   `json:"text"`
	ContextBefore []string `json:"context_before,omitempty"`
	ContextAfter  []string `json:"context_after,omitempty"`
}

// SearchOptions configures a content search.
type SearchOptions struct {
	Query string
	// FilePath restricts the search to one relative path and overrides FileGlob.
	FilePath     string
	FileGlob     string
	MaxResults   int
	ContextLines int
}

// Search runs a full-text query. Query syntax:
//   - plain words: match query
//   - "quoted text": phrase query
//   - /regex/: regexp query
func (ci *ContentIndex) Search(options SearchOptions) ([]ContentSearchResult, int, error) {
	if options.MaxResults <= 0 {
		options.MaxResults = defaultMaxResults
	}
	if options.ContextLines < 0 {
		options.ContextLines = 0
	}

	lineMatcher, err := newLineMatcher(options.Query)
	if err != nil {
		return nil, 0, err
	}
	filePath := strings.ReplaceAll(options.FilePath, "\\", "/")
	fileGlob := strings.ReplaceAll(options.FileGlob, "\\", "/")

	ci.mu.RLock()
	defer ci.mu.RUnlock()

	request := bleve.NewSearchRequest(buildQuery(options.Query))
	// Over-fetch because hits are filtered and grouped by file afterwards.
	request.Size = options.MaxResults * 5
	request.Fields = []string{"path", "kind"}

	hits, err := ci.index.Search(request)
	if err != nil {
		return nil, 0, fmt.Errorf("searching index: %w", err)
	}

	var results []ContentSearchResult
	totalMatches := 0
	for _, hit := range hits.Hits {
		relativePath := hit.ID
		text, ok := ci.texts[relativePath]
		if !ok {
			continue
		}
		if filePath != "" {
			if relativePath != filePath {
				continue
			}
		} else if fileGlob != "" && !matchesGlob(fileGlob, relativePath) {
			continue
		}

		lines := findMatchingLines(text, lineMatcher, options.ContextLines)
		if len(lines) == 0 {
			continue
		}
		totalMatches += len(lines)
		results = append(results, ContentSearchResult{RelativePath: relativePath, Matches: lines})
		if len(results) >= options.MaxResults {
			break
		}
	}
	return results, totalMatches, nil
}

func matchesGlob(pattern, relativePath string) bool {
	if matched, err := doublestar.Match(pattern, relativePath); err == nil && matched {
		return true
	}
	if !strings.Contains(pattern, "/") {
		matched, err := doublestar.Match(pattern, relativePath[strings.LastIndex(relativePath, "/")+1:])
		return err == nil && matched
	}
	return false
}

func buildQuery(queryString string) query.Query {
	queryString = strings.TrimSpace(queryString)
	if pattern, ok := trimDelimiters(queryString, "/"); ok {
		return bleve.NewRegexpQuery(pattern)
	}
	if phrase, ok := trimDelimiters(queryString, `"`); ok {
		return bleve.NewMatchPhraseQuery(phrase)
	}
	return bleve.NewMatchQuery(queryString)
}

func trimDelimiters(s, delim string) (string, bool) {
	if len(s) > 2 && strings.HasPrefix(s, delim) && strings.HasSuffix(s, delim) {
		return s[1 : len(s)-1], true
	}
	return s, false
}

// newLineMatcher returns a case-insensitive line predicate for the query.
func newLineMatcher(queryString string) (func(string) bool, error) {
	queryString = strings.TrimSpace(queryString)
	if pattern, ok := trimDelimiters(queryString, "/"); ok {
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid regular expression %q: %w", pattern, err)
		}
		return re.MatchString, nil
	}
	term, _ := trimDelimiters(queryString, `"`)
	term = strings.ToLower(term)
	return func(line string) bool {
		return strings.Contains(strings.ToLower(line), term)
	}, nil
}

func findMatchingLines(text string, match func(string) bool, contextLines int) []LineMatch {
	lines := strings.Split(text, "\n")
	var matches []LineMatch
	for i, line := range lines {
		if !match(line) {
			continue
		}
		m := LineMatch{LineNumber: i + 1, LineText: line}
		if contextLines > 0 {
			m.ContextBefore = append([]string(nil), lines[max(0, i-contextLines):i]...)
			m.ContextAfter = append([]string(nil), lines[i+1:min(len(lines), i+contextLines+1)]...)
		}
		matches = append(matches, m)
	}
	return matches
}

func (ci *ContentIndex) DocumentCount() uint64 {
	ci.mu.RLock()
	defer ci.mu.RUnlock()
	count, _ := ci.index.DocCount()
	return count
}

// GetFileContent returns the indexed text of relativePath.
func (ci *ContentIndex) GetFileContent(relativePath string) (string, bool) {
	ci.mu.RLock()
	defer ci.mu.RUnlock()
	text, ok := ci.texts[strings.ReplaceAll(relativePath, "\\", "/")]
	return text, ok
}

func (ci *ContentIndex) Close() error {
	ci.mu.Lock()
	defer ci.mu.Unlock()
	return ci.index.Close()
}

// Clear drops every document and starts a fresh index.
func (ci *ContentIndex) Clear() error {
	fresh, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return fmt.Errorf("creating new index: %w", err)
	}

	ci.mu.Lock()
	defer ci.mu.Unlock()
	if err := ci.index.Close(); err != nil {
		fresh.Close()
		return fmt.Errorf("closing old index: %w", err)
	}
	ci.index = fresh
	ci.texts = make(map[string]string)
	return nil
}
