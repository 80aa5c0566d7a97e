package tools

import (
	"context"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/lexandro/ferret/index"
)

// FilesArgs defines the input parameters for the ferret_files tool.
type FilesArgs struct {
	Pattern        string `json:"pattern,omitempty" jsonschema:"Glob pattern matched against relative paths (e.g. **/*.docx). Default: all files"`
	Kind           string `json:"kind,omitempty" jsonschema:"Only files of this kind (e.g. Word, Excel, PDF, Text)"`
	Group          string `json:"group,omitempty" jsonschema:"Only files in the name group with this canonical name"`
	DuplicatesOnly bool   `json:"duplicatesOnly,omitempty" jsonschema:"Only redundant copies of another file"`
	NameOnly       bool   `json:"nameOnly,omitempty" jsonschema:"If true return only file paths without metadata"`
	MaxResults     int    `json:"maxResults,omitempty" jsonschema:"Maximum number of results to return (default 50)"`
}

// FilesHandler searches the inventory of the latest run.
type FilesHandler struct {
	FileIndex *index.FileIndex
	Logger    *slog.Logger
}

// Handle processes a ferret_files request.
func (h *FilesHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args FilesArgs) (*mcp.CallToolResult, any, error) {
	start := time.Now()

	results, total, err := h.FileIndex.Search(index.FileQuery{
		Pattern:        args.Pattern,
		Kind:           args.Kind,
		Group:          args.Group,
		DuplicatesOnly: args.DuplicatesOnly,
		MaxResults:     args.MaxResults,
	})
	if err != nil {
		h.Logger.Error("ferret_files failed", "pattern", args.Pattern, "error", err)
		return errorResult("Search error: %v", err), nil, nil
	}

	h.Logger.Info("ferret_files",
		"pattern", args.Pattern,
		"kind", args.Kind,
		"results", len(results),
		"total", total,
		"elapsed", time.Since(start),
	)
	return textResult(FormatFileResults(results, total, args.NameOnly)), nil, nil
}
