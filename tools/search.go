package tools

import (
	"context"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/lexandro/ferret/index"
)

const defaultContextLines = 2

// SearchArgs defines the input parameters for the ferret_search tool.
type SearchArgs struct {
	Query        string `json:"query" jsonschema:"Search query. Plain text for word match, quoted for exact phrase, /regex/ for regular expression"`
	FilePath     string `json:"filePath,omitempty" jsonschema:"Exact relative file path to search in (overrides fileGlob)"`
	FileGlob     string `json:"fileGlob,omitempty" jsonschema:"Optional glob pattern to filter files (e.g. **/*.txt)"`
	MaxResults   int    `json:"maxResults,omitempty" jsonschema:"Maximum number of file results to return (default 50)"`
	ContextLines int    `json:"contextLines,omitempty" jsonschema:"Number of context lines before and after each match (default 2)"`
}

// SearchHandler searches the plain text that similarity scoring loaded during the latest run.
type SearchHandler struct {
	ContentIndex *index.ContentIndex
	Logger       *slog.Logger
}

// Handle processes a ferret_search request.
func (h *SearchHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args SearchArgs) (*mcp.CallToolResult, any, error) {
	switch {
	case args.Query == "":
		return errorResult("Error: query parameter is required"), nil, nil
	case args.MaxResults < 0 || args.ContextLines < 0:
		return errorResult("Error: maxResults and contextLines must not be negative"), nil, nil
	}
	if h.ContentIndex.DocumentCount() == 0 {
		return textResult("No text has been indexed. Run ferret_analyze first; only text files within the similarity size limit are searchable."), nil, nil
	}

	opts := index.SearchOptions{
		Query:        args.Query,
		FilePath:     args.FilePath,
		FileGlob:     args.FileGlob,
		MaxResults:   args.MaxResults,
		ContextLines: args.ContextLines,
	}
	if opts.ContextLines == 0 {
		opts.ContextLines = defaultContextLines
	}

	start := time.Now()
	results, totalMatches, err := h.ContentIndex.Search(opts)
	if err != nil {
		h.Logger.Warn("ferret_search failed", "query", args.Query, "error", err)
		return errorResult("Search error: %v", err), nil, nil
	}

	h.Logger.Info("ferret_search",
		"query", args.Query,
		"files", len(results),
		"matches", totalMatches,
		"elapsed", time.Since(start),
	)
	return textResult(FormatSearchResults(results, totalMatches)), nil, nil
}
