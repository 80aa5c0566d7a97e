package tools

import (
	"fmt"
	"strings"

	"github.com/lexandro/ferret/analysis"
	"github.com/lexandro/ferret/index"
	"github.com/lexandro/ferret/report"
	"github.com/lexandro/ferret/similarity"
)

const defaultListLimit = 50

// FormatSearchResults groups matches by file with line numbers and optional context.
func FormatSearchResults(results []index.ContentSearchResult, totalMatches int) string {
	if len(results) == 0 {
		return "No matches found."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d matches in %d files:\n\n", totalMatches, len(results))
	for i, result := range results {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "── %s ──\n", result.RelativePath)
		for _, match := range result.Matches {
			for _, line := range match.ContextBefore {
				fmt.Fprintf(&b, "  %s\n", line)
			}
			fmt.Fprintf(&b, "  %d: %s\n", match.LineNumber, match.LineText)
			for _, line := range match.ContextAfter {
				fmt.Fprintf(&b, "  %s\n", line)
			}
		}
	}
	return b.String()
}

// FormatFileResults lists inventory entries; total is the match count before truncation.
func FormatFileResults(files []*index.InventoryFile, total int, nameOnly bool) string {
	if len(files) == 0 {
		return "No files matched."
	}

	var b strings.Builder
	if total > len(files) {
		fmt.Fprintf(&b, "Found %d files (showing %d):\n\n", total, len(files))
	} else {
		fmt.Fprintf(&b, "Found %d files:\n\n", len(files))
	}
	for _, file := range files {
		if nameOnly {
			b.WriteString(file.RelativePath)
			b.WriteString("\n")
			continue
		}
		flags := ""
		if file.Duplicate {
			flags = ", duplicate"
		}
		fmt.Fprintf(&b, "  %s  (%s, %s, group %q, %s%s)\n",
			file.RelativePath, file.Kind, report.FormatSize(file.SizeBytes), file.Group, file.Age, flags)
	}
	return b.String()
}

// FormatDuplicates lists the duplicate groups of run, up to maxGroups.
func FormatDuplicates(run *analysis.Run, maxGroups int) string {
	dupes := run.Results.DuplicateResults
	if len(dupes.DuplicateGroups) == 0 {
		return "No duplicates found."
	}
	if maxGroups <= 0 {
		maxGroups = defaultListLimit
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d redundant copies in %d sets across %d groups, %s wasted:\n",
		dupes.TotalDuplicates, dupes.SetCount(), len(dupes.DuplicateGroups), report.FormatSize(dupes.SpaceWasted))
	for i, group := range dupes.DuplicateGroups {
		if i == maxGroups {
			fmt.Fprintf(&b, "\n... %d more groups\n", len(dupes.DuplicateGroups)-maxGroups)
			break
		}
		name := group.BaseName
		if name == "" {
			name = "(unnamed)"
		}
		fmt.Fprintf(&b, "\n── %s ──\n", name)
		for _, set := range group.DuplicateSets {
			fmt.Fprintf(&b, "  [%s]\n", report.ShortDigest(set.Digest))
			for j, path := range set.Files {
				role := "copy"
				if j == 0 {
					role = "original"
				}
				fmt.Fprintf(&b, "    %-8s %s\n", role, report.RelativeTo(run.Root, path))
			}
		}
	}
	return b.String()
}

// FormatSimilar lists similarity scores, highest first, up to maxResults.
func FormatSimilar(root string, scores []similarity.Score, maxResults int) string {
	if len(scores) == 0 {
		return "No similar files found."
	}
	if maxResults <= 0 {
		maxResults = defaultListLimit
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d similar pairs:\n\n", len(scores))
	for i, score := range scores {
		if i == maxResults {
			fmt.Fprintf(&b, "... %d more pairs\n", len(scores)-maxResults)
			break
		}
		label := report.FormatPercent(score.Alignment)
		if score.Identical {
			label = "identical"
		}
		fmt.Fprintf(&b, "  %-9s %s  <->  %s  (jaccard %s)\n", label,
			report.RelativeTo(root, score.PathA), report.RelativeTo(root, score.PathB), report.FormatPercent(score.Jaccard))
	}
	return b.String()
}
