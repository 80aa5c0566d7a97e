package tools

import (
	"context"
	"strings"
	"testing"

	"github.com/lexandro/ferret/index"
)

func newTestSearchHandler(t *testing.T) *SearchHandler {
	t.Helper()
	ci, err := index.NewContentIndex()
	if err != nil {
		t.Fatalf("failed to create content index: %v", err)
	}
	t.Cleanup(func() { ci.Close() })

	return &SearchHandler{ContentIndex: ci, Logger: discardLogger()}
}

func Test_SearchHandler_EmptyQuery(t *testing.T) {
	h := newTestSearchHandler(t)

	result, _, err := h.Handle(context.Background(), nil, SearchArgs{Query: ""})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected IsError=true for empty query")
	}
	if !strings.Contains(resultText(t, result), "query parameter is required") {
		t.Errorf("expected error message about empty query, got: %s", resultText(t, result))
	}
}

func Test_SearchHandler_BasicSearch(t *testing.T) {
	h := newTestSearchHandler(t)
	h.ContentIndex.IndexFile("minutes.txt", "agenda\nbudget approved\nclosing", "Text")
	h.ContentIndex.IndexFile("todo.txt", "buy milk", "Text")

	result, _, err := h.Handle(context.Background(), nil, SearchArgs{Query: "budget"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	text := resultText(t, result)
	for _, want := range []string{"Found 1 matches in 1 files", "── minutes.txt ──", "  agenda\n", "  2: budget approved\n", "  closing\n"} {
		if !strings.Contains(text, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, text)
		}
	}
}

func Test_SearchHandler_NoResults(t *testing.T) {
	h := newTestSearchHandler(t)
	h.ContentIndex.IndexFile("todo.txt", "buy milk", "Text")

	result, _, _ := h.Handle(context.Background(), nil, SearchArgs{Query: "nonexistent"})
	if result.IsError {
		t.Fatal("expected success (no error), got error result")
	}
	if !strings.Contains(resultText(t, result), "No matches found") {
		t.Errorf("expected 'No matches found', got:\n%s", resultText(t, result))
	}
}

func Test_SearchHandler_BadRegex(t *testing.T) {
	h := newTestSearchHandler(t)
	h.ContentIndex.IndexFile("todo.txt", "buy milk", "Text")
	result, _, _ := h.Handle(context.Background(), nil, SearchArgs{Query: "/(unclosed/"})
	if !result.IsError {
		t.Fatal("expected IsError=true for invalid regex")
	}
}

func Test_SearchHandler_EmptyIndex(t *testing.T) {
	h := newTestSearchHandler(t)
	result, _, _ := h.Handle(context.Background(), nil, SearchArgs{Query: "budget"})
	if result.IsError {
		t.Fatal("expected a plain message for an empty index")
	}
	if !strings.Contains(resultText(t, result), "Run ferret_analyze first") {
		t.Errorf("unexpected output:\n%s", resultText(t, result))
	}
}

func Test_SearchHandler_NegativeLimits(t *testing.T) {
	h := newTestSearchHandler(t)
	result, _, _ := h.Handle(context.Background(), nil, SearchArgs{Query: "milk", ContextLines: -1})
	if !result.IsError {
		t.Fatal("expected IsError=true for negative contextLines")
	}
}
