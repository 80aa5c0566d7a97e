package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/lexandro/ferret/analysis"
)

// Theme defines the styles of the text report.
type Theme struct {
	Title    lipgloss.Style
	Summary  lipgloss.Style
	Score    lipgloss.Style
	Digest   lipgloss.Style
	Location lipgloss.Style
	Warning  lipgloss.Style
	Dim      lipgloss.Style
}

var DefaultTheme = Theme{
	Title:    lipgloss.NewStyle().Bold(true).Underline(true),
	Summary:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("82")),
	Score:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")),
	Digest:   lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
	Location: lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
	Warning:  lipgloss.NewStyle().Foreground(lipgloss.Color("208")),
	Dim:      lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
}

// PlainTheme renders without any styling, for files and pipes.
var PlainTheme = Theme{
	Title:    lipgloss.NewStyle(),
	Summary:  lipgloss.NewStyle(),
	Score:    lipgloss.NewStyle(),
	Digest:   lipgloss.NewStyle(),
	Location: lipgloss.NewStyle(),
	Warning:  lipgloss.NewStyle(),
	Dim:      lipgloss.NewStyle(),
}

// WriteText writes a human-readable report of run.
func WriteText(w io.Writer, run *analysis.Run, theme Theme) error {
	var b strings.Builder
	results := run.Results
	dupes := results.DuplicateResults

	fmt.Fprintf(&b, "%s\n", theme.Title.Render("ferret report: "+run.Root))
	fmt.Fprintf(&b, "%s files in %s name groups, analyzed in %s\n\n",
		theme.Summary.Render(fmt.Sprint(results.TotalFiles)),
		theme.Summary.Render(fmt.Sprint(results.TotalGroups)),
		run.Duration.Round(time.Millisecond))

	fmt.Fprintf(&b, "%s\n", theme.Title.Render("Exact duplicates"))
	if dupes.TotalDuplicates == 0 {
		b.WriteString("  none\n")
	} else {
		fmt.Fprintf(&b, "  %s redundant copies in %s sets wasting %s\n",
			theme.Summary.Render(fmt.Sprint(dupes.TotalDuplicates)),
			theme.Summary.Render(fmt.Sprint(dupes.SetCount())),
			theme.Summary.Render(FormatSize(dupes.SpaceWasted)))
		for _, group := range dupes.DuplicateGroups {
			fmt.Fprintf(&b, "\n  %s\n", theme.Score.Render(displayName(group.BaseName)))
			for _, set := range group.DuplicateSets {
				fmt.Fprintf(&b, "    %s\n", theme.Digest.Render("["+ShortDigest(set.Digest)+"]"))
				for i, path := range set.Files {
					marker := "copy    "
					if i == 0 {
						marker = "original"
					}
					fmt.Fprintf(&b, "      %s %s\n", theme.Dim.Render(marker), theme.Location.Render(RelativeTo(run.Root, path)))
				}
			}
		}
	}

	fmt.Fprintf(&b, "\n%s\n", theme.Title.Render("Similar files"))
	if len(results.SimilarFiles) == 0 {
		b.WriteString("  none\n")
	}
	for _, score := range results.SimilarFiles {
		label := FormatPercent(score.Alignment)
		if score.Identical {
			label = "identical"
		}
		fmt.Fprintf(&b, "  %s  %s  %s  %s\n",
			theme.Score.Render(fmt.Sprintf("%-9s", label)),
			theme.Location.Render(RelativeTo(run.Root, score.PathA)),
			theme.Location.Render(RelativeTo(run.Root, score.PathB)),
			theme.Dim.Render("jaccard "+FormatPercent(score.Jaccard)))
	}

	ages := results.Ages
	fmt.Fprintf(&b, "\n%s\n", theme.Title.Render("File ages"))
	fmt.Fprintf(&b, "  recent (30 days)   %6d files  %s\n", ages.Recent.Files, FormatSize(ages.Recent.Bytes))
	fmt.Fprintf(&b, "  stale  (180 days)  %6d files  %s\n", ages.Stale.Files, FormatSize(ages.Stale.Bytes))
	fmt.Fprintf(&b, "  old                %6d files  %s\n", ages.Old.Files, FormatSize(ages.Old.Bytes))

	if len(results.Failures) > 0 {
		fmt.Fprintf(&b, "\n%s\n", theme.Warning.Render(fmt.Sprintf("Skipped files (%d)", len(results.Failures))))
		for _, failure := range results.Failures {
			fmt.Fprintf(&b, "  %-10s %-9s %s %s\n",
				failure.Kind, failure.Stage,
				theme.Location.Render(RelativeTo(run.Root, failure.Path)),
				theme.Dim.Render(failureDetail(failure.Attempts, failure.Err)))
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func displayName(baseName string) string {
	if baseName == "" {
		return "(unnamed)"
	}
	return baseName
}

func failureDetail(attempts int, err error) string {
	detail := ""
	if err != nil {
		detail = err.Error()
	}
	if attempts > 1 {
		detail = fmt.Sprintf("after %d attempts: %s", attempts, detail)
	}
	return detail
}
