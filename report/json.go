package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/lexandro/ferret/analysis"
)

// WriteJSON encodes results, indented when pretty is set.
func WriteJSON(w io.Writer, results *analysis.AnalysisResults, pretty bool) error {
	encoder := json.NewEncoder(w)
	if pretty {
		encoder.SetIndent("", "  ")
	}
	if err := encoder.Encode(results); err != nil {
		return fmt.Errorf("encoding results: %w", err)
	}
	return nil
}

// Write renders run in format. pretty styles text, renders Markdown and indents JSON.
func Write(w io.Writer, run *analysis.Run, format Format, pretty bool) error {
	switch format {
	case FormatJSON:
		return WriteJSON(w, run.Results, pretty)
	case FormatMarkdown:
		return WriteMarkdown(w, run, pretty)
	default:
		theme := PlainTheme
		if pretty {
			theme = DefaultTheme
		}
		return WriteText(w, run, theme)
	}
}
