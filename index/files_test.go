package index

import (
	"testing"
	"time"
)

func newTestFile(relPath, fileKind, group string, size int64) *InventoryFile {
	return &InventoryFile{
		Path:         "/share/" + relPath,
		RelativePath: relPath,
		Kind:         fileKind,
		Group:        group,
		SizeBytes:    size,
		ModTime:      time.Now(),
	}
}

func Test_FileIndex_AddAndGetFile(t *testing.T) {
	fi := NewFileIndex()
	fi.AddFile(newTestFile("docs/report_v1.docx", "Word", "report", 1024))

	got := fi.GetFile("docs/report_v1.docx")
	if got == nil {
		t.Fatal("expected to find file, got nil")
	}
	if got.Group != "report" {
		t.Errorf("expected group report, got %s", got.Group)
	}
	if fi.GetFile(`docs\report_v1.docx`) == nil {
		t.Error("expected backslash lookup to resolve")
	}
}

func Test_FileIndex_AddFile_KeepsPathOrder(t *testing.T) {
	fi := NewFileIndex()
	fi.AddFile(newTestFile("c.txt", "Text", "c", 1))
	fi.AddFile(newTestFile("a.txt", "Text", "a", 1))
	fi.AddFile(newTestFile("b.txt", "Text", "b", 1))
	fi.AddFile(newTestFile("a.txt", "Text", "a", 2))

	all := fi.AllFiles()
	if len(all) != 3 {
		t.Fatalf("expected 3 files, got %d", len(all))
	}
	for i, want := range []string{"a.txt", "b.txt", "c.txt"} {
		if all[i].RelativePath != want {
			t.Errorf("position %d: expected %s, got %s", i, want, all[i].RelativePath)
		}
	}
	if all[0].SizeBytes != 2 {
		t.Errorf("expected replaced entry, got size %d", all[0].SizeBytes)
	}
}

func Test_FileIndex_RemoveFile(t *testing.T) {
	fi := NewFileIndex()
	fi.AddFile(newTestFile("notes.txt", "Text", "notes", 10))
	fi.RemoveFile("notes.txt")

	if fi.FileCount() != 0 {
		t.Errorf("expected 0 files, got %d", fi.FileCount())
	}
	if fi.GetFile("notes.txt") != nil {
		t.Error("expected nil after removal")
	}
}

func Test_FileIndex_Replace(t *testing.T) {
	fi := NewFileIndex()
	fi.AddFile(newTestFile("old.txt", "Text", "old", 10))
	fi.Replace([]*InventoryFile{
		newTestFile("z.txt", "Text", "z", 1),
		newTestFile("m.csv", "CSV", "m", 2),
	})

	all := fi.AllFiles()
	if len(all) != 2 || all[0].RelativePath != "m.csv" || all[1].RelativePath != "z.txt" {
		t.Errorf("unexpected inventory after replace: %+v", all)
	}
	if fi.GetFile("old.txt") != nil {
		t.Error("expected previous entries to be gone")
	}
}

func Test_FileIndex_SearchByGlob_DoubleStarExtension(t *testing.T) {
	fi := NewFileIndex()
	fi.AddFile(newTestFile("finance/budget.xlsx", "Excel", "budget", 1024))
	fi.AddFile(newTestFile("finance/2023/budget copy.xlsx", "Excel", "budget", 1024))
	fi.AddFile(newTestFile("notes.txt", "Text", "notes", 256))

	results, err := fi.SearchByGlob("**/*.xlsx", 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("expected 2 spreadsheets, got %d", len(results))
	}
}

func Test_FileIndex_SearchByGlob_InvalidPattern(t *testing.T) {
	fi := NewFileIndex()
	if _, err := fi.SearchByGlob("[invalid", 50); err == nil {
		t.Error("expected error for invalid pattern")
	}
	if _, err := fi.SearchByGlob("  ", 50); err == nil {
		t.Error("expected error for empty pattern")
	}
}

func Test_FileIndex_Search_Filters(t *testing.T) {
	fi := NewFileIndex()
	original := newTestFile("plan.txt", "Text", "plan", 100)
	copyFile := newTestFile("plan copy.txt", "Text", "plan", 100)
	copyFile.Duplicate = true
	fi.Replace([]*InventoryFile{original, copyFile, newTestFile("plan.pdf", "PDF", "plan", 5)})

	dupes, total, err := fi.Search(FileQuery{DuplicatesOnly: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 || dupes[0].RelativePath != "plan copy.txt" {
		t.Errorf("expected only the copy, got %d results", total)
	}

	pdfs, _, _ := fi.Search(FileQuery{Kind: "pdf"})
	if len(pdfs) != 1 {
		t.Errorf("expected kind filter to be case-insensitive, got %d", len(pdfs))
	}

	grouped, total, _ := fi.Search(FileQuery{Group: "plan", MaxResults: 2})
	if len(grouped) != 2 || total != 3 {
		t.Errorf("expected 2 of 3 results, got %d of %d", len(grouped), total)
	}
}

func Test_FileIndex_TotalsAndKindCounts(t *testing.T) {
	fi := NewFileIndex()
	fi.AddFile(newTestFile("a.docx", "Word", "a", 100))
	fi.AddFile(newTestFile("b.docx", "Word", "b", 200))
	fi.AddFile(newTestFile("c.txt", "Text", "c", 300))

	if fi.TotalSizeBytes() != 600 {
		t.Errorf("expected 600 bytes, got %d", fi.TotalSizeBytes())
	}
	counts := fi.KindCounts()
	if counts["Word"] != 2 || counts["Text"] != 1 {
		t.Errorf("unexpected kind counts: %v", counts)
	}
}

func Test_FileIndex_Clear(t *testing.T) {
	fi := NewFileIndex()
	fi.AddFile(newTestFile("a.txt", "Text", "a", 100))
	fi.Clear()

	if fi.FileCount() != 0 {
		t.Errorf("expected 0 after clear, got %d", fi.FileCount())
	}
	if len(fi.AllFiles()) != 0 {
		t.Error("expected no files after clear")
	}
}
