package tools

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// DuplicatesArgs defines the input parameters for the ferret_duplicates tool.
type DuplicatesArgs struct {
	RunID     string `json:"runId,omitempty" jsonschema:"Run to inspect (default: the latest run)"`
	MaxGroups int    `json:"maxGroups,omitempty" jsonschema:"Maximum number of duplicate groups to list (default 50)"`
}

// DuplicatesHandler lists exact duplicates of a completed run.
type DuplicatesHandler struct {
	Runs   *RunStore
	Logger *slog.Logger
}

// Handle processes a ferret_duplicates request.
func (h *DuplicatesHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args DuplicatesArgs) (*mcp.CallToolResult, any, error) {
	id, run, ok := h.Runs.Get(args.RunID)
	if !ok {
		return errorResult("%s", noRunMessage(args.RunID)), nil, nil
	}
	h.Logger.Info("ferret_duplicates", "run", id, "groups", len(run.Results.DuplicateResults.DuplicateGroups))
	return textResult(FormatDuplicates(run, args.MaxGroups)), nil, nil
}

func noRunMessage(id string) string {
	if id == "" {
		return "No analysis has completed yet. Call ferret_analyze first."
	}
	return "Unknown run: " + id
}
