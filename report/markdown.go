package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"

	"github.com/lexandro/ferret/analysis"
)

// Markdown renders run as a Markdown document.
func Markdown(run *analysis.Run) string {
	var b strings.Builder
	results := run.Results
	dupes := results.DuplicateResults

	fmt.Fprintf(&b, "# ferret report: `%s`\n\n", run.Root)
	fmt.Fprintf(&b, "| Files | Name groups | Redundant copies | Space wasted | Similar pairs | Skipped | Duration |\n")
	fmt.Fprintf(&b, "|---:|---:|---:|---:|---:|---:|---:|\n")
	fmt.Fprintf(&b, "| %d | %d | %d | %s | %d | %d | %s |\n\n",
		results.TotalFiles, results.TotalGroups, dupes.TotalDuplicates, FormatSize(dupes.SpaceWasted),
		len(results.SimilarFiles), len(results.Failures), run.Duration.Round(time.Millisecond))

	b.WriteString("## Exact duplicates\n\n")
	if len(dupes.DuplicateGroups) == 0 {
		b.WriteString("No duplicates found.\n\n")
	}
	for _, group := range dupes.DuplicateGroups {
		fmt.Fprintf(&b, "### %s\n\n", displayName(group.BaseName))
		for _, set := range group.DuplicateSets {
			fmt.Fprintf(&b, "- `%s`\n", ShortDigest(set.Digest))
			for i, path := range set.Files {
				suffix := ""
				if i == 0 {
					suffix = " (original)"
				}
				fmt.Fprintf(&b, "  - `%s`%s\n", RelativeTo(run.Root, path), suffix)
			}
		}
		b.WriteString("\n")
	}

	b.WriteString("## Similar files\n\n")
	if len(results.SimilarFiles) == 0 {
		b.WriteString("No similar files found.\n\n")
	} else {
		b.WriteString("| Alignment | Jaccard | File A | File B |\n|---:|---:|---|---|\n")
		for _, score := range results.SimilarFiles {
			alignment := FormatPercent(score.Alignment)
			if score.Identical {
				alignment += " (identical)"
			}
			fmt.Fprintf(&b, "| %s | %s | `%s` | `%s` |\n", alignment, FormatPercent(score.Jaccard),
				RelativeTo(run.Root, score.PathA), RelativeTo(run.Root, score.PathB))
		}
		b.WriteString("\n")
	}

	ages := results.Ages
	b.WriteString("## File ages\n\n| Bucket | Files | Size |\n|---|---:|---:|\n")
	fmt.Fprintf(&b, "| recent (30 days) | %d | %s |\n", ages.Recent.Files, FormatSize(ages.Recent.Bytes))
	fmt.Fprintf(&b, "| stale (180 days) | %d | %s |\n", ages.Stale.Files, FormatSize(ages.Stale.Bytes))
	fmt.Fprintf(&b, "| old | %d | %s |\n", ages.Old.Files, FormatSize(ages.Old.Bytes))

	if len(results.Failures) > 0 {
		b.WriteString("\n## Skipped files\n\n| Path | Kind | Stage | Attempts |\n|---|---|---|---:|\n")
		for _, failure := range results.Failures {
			fmt.Fprintf(&b, "| `%s` | %s | %s | %d |\n", RelativeTo(run.Root, failure.Path), failure.Kind, failure.Stage, failure.Attempts)
		}
	}
	return b.String()
}

// RenderMarkdown renders Markdown for a terminal with the named glamour style.
func RenderMarkdown(markdown, style string, width int) (string, error) {
	if style == "" {
		style = "dark"
	}
	options := []glamour.TermRendererOption{glamour.WithStylePath(style)}
	if width > 0 {
		options = append(options, glamour.WithWordWrap(width))
	}
	renderer, err := glamour.NewTermRenderer(options...)
	if err != nil {
		return "", fmt.Errorf("creating markdown renderer: %w", err)
	}
	out, err := renderer.Render(markdown)
	if err != nil {
		return "", fmt.Errorf("rendering markdown: %w", err)
	}
	return out, nil
}

// WriteMarkdown writes the Markdown report, rendered for a terminal when pretty is set.
func WriteMarkdown(w io.Writer, run *analysis.Run, pretty bool) error {
	out := Markdown(run)
	if pretty {
		rendered, err := RenderMarkdown(out, "dark", 100)
		if err != nil {
			return err
		}
		out = rendered
	}
	_, err := io.WriteString(w, out)
	return err
}
