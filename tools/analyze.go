package tools

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/lexandro/ferret/analysis"
	"github.com/lexandro/ferret/report"
)

// AnalyzeArgs defines the input parameters for the ferret_analyze tool.
type AnalyzeArgs struct {
	Path   string `json:"path,omitempty" jsonschema:"Directory to analyze, relative to the served root (default: the root itself)"`
	Format string `json:"format,omitempty" jsonschema:"Report format: text (default), markdown or json"`
}

// AnalyzeFunc runs an analysis over dir. main wires it to an analysis.Analyzer.
type AnalyzeFunc func(ctx context.Context, dir string) (*analysis.Run, error)

// AnalyzeHandler holds the dependencies for the analyze tool.
type AnalyzeHandler struct {
	DoAnalyze AnalyzeFunc
	Runs      *RunStore
	RootDir   string
	Logger    *slog.Logger
}

// Handle processes a ferret_analyze request.
func (h *AnalyzeHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args AnalyzeArgs) (*mcp.CallToolResult, any, error) {
	format, err := report.ParseFormat(args.Format)
	if err != nil {
		return errorResult("Error: %v", err), nil, nil
	}
	dir, err := resolveUnderRoot(h.RootDir, args.Path)
	if err != nil {
		h.Logger.Warn("ferret_analyze rejected path", "path", args.Path, "error", err)
		return errorResult("Error: %v", err), nil, nil
	}

	h.Logger.Info("ferret_analyze started", "dir", dir)
	run, err := h.DoAnalyze(ctx, dir)
	if err != nil {
		h.Logger.Error("ferret_analyze failed", "dir", dir, "error", err)
		return errorResult("Analysis error: %v", err), nil, nil
	}
	id := h.Runs.Add(run)

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "run: %s\n\n", id)
	if err := report.Write(&buf, run, format, false); err != nil {
		return errorResult("Report error: %v", err), nil, nil
	}

	h.Logger.Info("ferret_analyze complete",
		"run", id,
		"files", run.Results.TotalFiles,
		"duplicates", run.Results.DuplicateResults.TotalDuplicates,
		"elapsed", run.Duration,
	)
	return textResult(buf.String()), nil, nil
}

// resolveUnderRoot joins rel onto root and refuses anything that escapes it.
func resolveUnderRoot(root, rel string) (string, error) {
	if rel == "" {
		return root, nil
	}
	path := rel
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, filepath.FromSlash(rel))
	}
	inside, err := filepath.Rel(root, path)
	if err != nil || inside == ".." || strings.HasPrefix(inside, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q is outside the served root %s", rel, root)
	}
	return filepath.Clean(path), nil
}
