package watcher

import (
	"testing"
	"time"
)

const testInterval = 50 * time.Millisecond

func receiveBatch(t *testing.T, ch <-chan []DebouncedEvent, timeout time.Duration) []DebouncedEvent {
	t.Helper()
	select {
	case batch := <-ch:
		return batch
	case <-time.After(timeout):
		t.Fatal("timed out waiting for batch")
		return nil
	}
}

func Test_Debouncer_CollapsesRepeatedPath(t *testing.T) {
	d := NewDebouncer(testInterval)

	d.Add("report_v1.docx", OpCreate)
	d.Add("report_v1.docx", OpWrite)

	batch := receiveBatch(t, d.Output(), 500*time.Millisecond)
	if len(batch) != 1 {
		t.Fatalf("expected 1 collapsed event, got %d", len(batch))
	}
	if batch[0].Op != OpWrite {
		t.Errorf("expected latest op write, got %s", batch[0].Op)
	}
}

func Test_Debouncer_BatchIsSortedByPath(t *testing.T) {
	d := NewDebouncer(testInterval)

	d.Add("notes.txt", OpWrite)
	d.Add("budget.xlsx", OpCreate)
	d.Add("Archive/old.txt", OpRemove)

	batch := receiveBatch(t, d.Output(), 500*time.Millisecond)
	want := []string{"Archive/old.txt", "budget.xlsx", "notes.txt"}
	if len(batch) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(batch))
	}
	for i, path := range want {
		if batch[i].Path != path {
			t.Errorf("event[%d] = %q, want %q", i, batch[i].Path, path)
		}
	}
}

func Test_Debouncer_QuietPeriodRestarts(t *testing.T) {
	d := NewDebouncer(testInterval)

	d.Add("a.txt", OpWrite)
	time.Sleep(testInterval / 2)
	d.Add("b.txt", OpWrite)

	batch := receiveBatch(t, d.Output(), 500*time.Millisecond)
	if len(batch) != 2 {
		t.Fatalf("expected both events in one batch, got %v", batch)
	}
}

func Test_Debouncer_StopDropsPending(t *testing.T) {
	d := NewDebouncer(testInterval)

	d.Add("a.txt", OpWrite)
	d.Stop()
	d.Add("b.txt", OpWrite)
	d.Stop()

	select {
	case batch := <-d.Output():
		t.Fatalf("expected no batch after Stop, got %v", batch)
	case <-time.After(3 * testInterval):
	}
}

func Test_EventOp_String(t *testing.T) {
	if OpRename.String() != "rename" || EventOp(42).String() != "unknown" {
		t.Errorf("unexpected op names: %s, %s", OpRename, EventOp(42))
	}
}
