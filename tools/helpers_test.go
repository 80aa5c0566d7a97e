package tools

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/lexandro/ferret/analysis"
	"github.com/lexandro/ferret/dupes"
	"github.com/lexandro/ferret/similarity"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("expected content in result")
	}
	return result.Content[0].(*mcp.TextContent).Text
}

// sampleRun builds a run with one duplicate set and two similar pairs under /share.
func sampleRun() *analysis.Run {
	root := filepath.FromSlash("/share")
	path := func(rel string) string { return filepath.Join(root, filepath.FromSlash(rel)) }

	duplicates := dupes.NewDuplicateResults()
	duplicates.DuplicateGroups = []dupes.DuplicateGroup{{
		BaseName: "budget",
		DuplicateSets: []dupes.DuplicateSet{{
			Digest: "aaaaaaaaaaaaaaaaaaaaaaaa",
			Files:  []string{path("budget.xlsx"), path("old/budget copy.xlsx")},
		}},
	}}
	duplicates.TotalDuplicates = 1
	duplicates.SpaceWasted = 1024

	return &analysis.Run{
		Root:      root,
		StartedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		Duration:  2 * time.Second,
		Results: &analysis.AnalysisResults{
			TotalFiles:       4,
			TotalGroups:      2,
			DuplicateResults: duplicates,
			SimilarFiles: []similarity.Score{
				{PathA: path("budget.xlsx"), PathB: path("old/budget copy.xlsx"), Jaccard: 1, Alignment: 1, Identical: true},
				{PathA: path("policy.txt"), PathB: path("policy_v2.txt"), Jaccard: 0.8, Alignment: 0.75},
			},
		},
	}
}
