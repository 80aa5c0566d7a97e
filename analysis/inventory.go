package analysis

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/lexandro/ferret/fileio"
	"github.com/lexandro/ferret/grouping"
	"github.com/lexandro/ferret/index"
	"github.com/lexandro/ferret/kind"
)

// StageInventory labels failures recorded while collecting file metadata.
const StageInventory = "inventory"

// inventoryWorkers bounds concurrent stat calls.
const inventoryWorkers = 8

// takeInventory stats every path with a bounded worker pool. Entries come back
// in enumeration order; paths that cannot be stat'ed are recorded and left out.
func (a *Analyzer) takeInventory(ctx context.Context, root string, paths []string, reader *fileio.Reader, failures *fileio.FailureLog) ([]*index.InventoryFile, AgeSummary) {
	entries := make([]*index.InventoryFile, len(paths))
	now := a.now()

	type inventoryJob struct {
		slot int
		path string
	}
	jobs := make(chan inventoryJob, 100)

	var wg sync.WaitGroup
	for i := 0; i < inventoryWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				info, err := reader.Stat(ctx, job.path)
				if err != nil {
					if ctx.Err() == nil {
						failure := fileio.AsFailure(job.path, err)
						failure.Stage = StageInventory
						failures.Record(failure)
						a.logger.Debug("skipped file", "stage", StageInventory, "path", job.path, "error", failure.Err)
					}
					continue
				}
				entries[job.slot] = &index.InventoryFile{
					Path:         job.path,
					RelativePath: relativePath(root, job.path),
					Kind:         kind.DetectKind(job.path),
					SizeBytes:    info.Size(),
					ModTime:      info.ModTime(),
					Age:          string(BucketFor(info.ModTime(), now)),
				}
			}
		}()
	}

	for slot, path := range paths {
		if ctx.Err() != nil {
			break
		}
		jobs <- inventoryJob{slot: slot, path: path}
	}
	close(jobs)
	wg.Wait()

	var ages AgeSummary
	files := make([]*index.InventoryFile, 0, len(entries))
	for _, entry := range entries {
		if entry == nil {
			continue
		}
		ages.Add(AgeBucket(entry.Age), entry.SizeBytes)
		files = append(files, entry)
	}
	return files, ages
}

// annotate fills in each entry's name group and duplicate status.
// Every member of a duplicate set but the first is flagged as a redundant copy.
func annotate(files []*index.InventoryFile, groups []grouping.FileGroup, known map[string]string, redundant map[string]bool) {
	canonical := grouping.CanonicalIndex(groups)
	for _, file := range files {
		file.Group = canonical[file.Path]
		file.Digest = known[file.Path]
		file.Duplicate = redundant[file.Path]
	}
}

func relativePath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
