package tools

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/lexandro/ferret/similarity"
)

// SimilarArgs defines the input parameters for the ferret_similar tool.
type SimilarArgs struct {
	RunID      string  `json:"runId,omitempty" jsonschema:"Run to inspect (default: the latest run)"`
	MinScore   float64 `json:"minScore,omitempty" jsonschema:"Minimum alignment score between 0 and 1 (default 0)"`
	MaxResults int     `json:"maxResults,omitempty" jsonschema:"Maximum number of pairs to list (default 50)"`
}

// SimilarHandler lists near-duplicate pairs of a completed run.
type SimilarHandler struct {
	Runs   *RunStore
	Logger *slog.Logger
}

// Handle processes a ferret_similar request.
func (h *SimilarHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args SimilarArgs) (*mcp.CallToolResult, any, error) {
	if args.MinScore < 0 || args.MinScore > 1 {
		return errorResult("Error: minScore must be between 0 and 1"), nil, nil
	}
	id, run, ok := h.Runs.Get(args.RunID)
	if !ok {
		return errorResult("%s", noRunMessage(args.RunID)), nil, nil
	}

	var scores []similarity.Score
	for _, score := range run.Results.SimilarFiles {
		if score.Alignment >= args.MinScore {
			scores = append(scores, score)
		}
	}
	h.Logger.Info("ferret_similar", "run", id, "pairs", len(scores), "minScore", args.MinScore)
	return textResult(FormatSimilar(run.Root, scores, args.MaxResults)), nil, nil
}
