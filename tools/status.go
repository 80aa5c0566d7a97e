package tools

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/lexandro/ferret/index"
	"github.com/lexandro/ferret/report"
)

// StatusArgs defines the input parameters for the ferret_status tool (none required).
type StatusArgs struct{}

// StatusHandler reports server state and a summary of the latest run.
type StatusHandler struct {
	FileIndex    *index.FileIndex
	ContentIndex *index.ContentIndex
	Runs         *RunStore
	StartTime    time.Time
	RootDir      string
	Logger       *slog.Logger
}

// Handle processes a ferret_status request.
func (h *StatusHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args StatusArgs) (*mcp.CallToolResult, any, error) {
	var b strings.Builder

	fileCount := h.FileIndex.FileCount()
	totalSize := h.FileIndex.TotalSizeBytes()
	uptime := time.Since(h.StartTime)

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	h.Logger.Info("ferret_status", "files", fileCount, "runs", h.Runs.Len(), "memory", memStats.Alloc, "uptime", uptime)

	b.WriteString("=== ferret status ===\n\n")
	fmt.Fprintf(&b, "Root directory: %s\n", h.RootDir)
	fmt.Fprintf(&b, "Uptime: %s\n", formatDuration(uptime))
	fmt.Fprintf(&b, "Inventoried files: %d (%s)\n", fileCount, report.FormatSize(totalSize))
	fmt.Fprintf(&b, "Searchable documents: %d\n", h.ContentIndex.DocumentCount())
	fmt.Fprintf(&b, "Memory usage: %s (heap: %s)\n",
		report.FormatSize(int64(memStats.Alloc)),
		report.FormatSize(int64(memStats.HeapAlloc)))

	if id, run, ok := h.Runs.Get(""); ok {
		results := run.Results
		fmt.Fprintf(&b, "\nLatest run: %s\n", id)
		fmt.Fprintf(&b, "  directory: %s\n", run.Root)
		fmt.Fprintf(&b, "  started: %s (took %s)\n", run.StartedAt.Format(time.RFC3339), run.Duration.Round(time.Millisecond))
		fmt.Fprintf(&b, "  files: %d, name groups: %d\n", results.TotalFiles, results.TotalGroups)
		fmt.Fprintf(&b, "  redundant copies: %d (%s wasted)\n",
			results.DuplicateResults.TotalDuplicates, report.FormatSize(results.DuplicateResults.SpaceWasted))
		fmt.Fprintf(&b, "  similar pairs: %d, skipped files: %d\n", len(results.SimilarFiles), len(results.Failures))
	} else {
		b.WriteString("\nNo analysis has completed yet.\n")
	}

	kindCounts := h.FileIndex.KindCounts()
	if len(kindCounts) > 0 {
		b.WriteString("\nKinds:\n")
		kinds := make([]string, 0, len(kindCounts))
		for k := range kindCounts {
			kinds = append(kinds, k)
		}
		sort.Slice(kinds, func(i, j int) bool {
			if kindCounts[kinds[i]] != kindCounts[kinds[j]] {
				return kindCounts[kinds[i]] > kindCounts[kinds[j]]
			}
			return kinds[i] < kinds[j]
		})
		for _, k := range kinds {
			fmt.Fprintf(&b, "  %-20s %d files\n", k, kindCounts[k])
		}
	}

	return textResult(b.String()), nil, nil
}

func formatDuration(d time.Duration) string {
	totalSeconds := int(d.Seconds())
	if totalSeconds < 60 {
		return fmt.Sprintf("%ds", totalSeconds)
	}
	totalMinutes := totalSeconds / 60
	if totalMinutes < 60 {
		return fmt.Sprintf("%dm%ds", totalMinutes, totalSeconds%60)
	}
	return fmt.Sprintf("%dh%dm", totalMinutes/60, totalMinutes%60)
}
