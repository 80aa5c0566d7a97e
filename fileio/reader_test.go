package fileio

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexandro/ferret/kind"
)

var errSharingViolation = errors.New("The process cannot access the file because it is being used by another process.")

func testReader(t *testing.T) *Reader {
	t.Helper()
	opts := DefaultOptions()
	opts.RetryDelay = time.Millisecond
	opts.LocalTimeout = time.Second
	return NewReader(opts, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func Test_Reader_ReadContent_PlainText(t *testing.T) {
	path := writeFile(t, t.TempDir(), "notes.txt", "Hello, world!")
	reader := testReader(t)

	content, err := reader.ReadContent(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, TierFull, content.Tier)
	assert.Equal(t, kind.PlainText, content.Category)
	assert.Equal(t, "Hello, world!", content.Text())
	assert.EqualValues(t, 13, content.Size)
}

func Test_Reader_ReadContent_OversizedIsStillRead(t *testing.T) {
	path := writeFile(t, t.TempDir(), "big.txt", strings.Repeat("word ", 30*1024))
	reader := testReader(t)

	content, err := reader.ReadContent(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, TierFull, content.Tier)
	assert.Equal(t, kind.Oversized, content.Category)
}

func Test_Reader_ReadContent_Missing(t *testing.T) {
	reader := testReader(t)

	_, err := reader.ReadContent(context.Background(), filepath.Join(t.TempDir(), "gone.txt"))
	require.Error(t, err)

	var failure *Failure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, FailureMissing, failure.Kind)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func Test_Reader_Open_RetriesThenSucceeds(t *testing.T) {
	path := writeFile(t, t.TempDir(), "shared.txt", "data")
	reader := testReader(t)

	var calls atomic.Int32
	reader.OpenFile = func(name string) (*os.File, error) {
		if calls.Add(1) <= 2 {
			return nil, &os.PathError{Op: "open", Path: name, Err: errSharingViolation}
		}
		return os.Open(name)
	}

	f, err := reader.Open(context.Background(), path)
	require.NoError(t, err)
	f.Close()
	assert.EqualValues(t, 3, calls.Load())
}

func Test_Reader_Open_LockedExhaustsRetries(t *testing.T) {
	path := writeFile(t, t.TempDir(), "locked.txt", "data")
	reader := testReader(t)

	var calls atomic.Int32
	reader.OpenFile = func(name string) (*os.File, error) {
		calls.Add(1)
		return nil, &os.PathError{Op: "open", Path: name, Err: errSharingViolation}
	}

	_, err := reader.Open(context.Background(), path)
	require.Error(t, err)

	var failure *Failure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, FailureLocked, failure.Kind)
	assert.Equal(t, 4, failure.Attempts)
	assert.EqualValues(t, 4, calls.Load(), "one attempt plus MaxRetries retries")
}

func Test_Reader_Open_PermanentErrorNotRetried(t *testing.T) {
	reader := testReader(t)

	var calls atomic.Int32
	reader.OpenFile = func(name string) (*os.File, error) {
		calls.Add(1)
		return nil, &os.PathError{Op: "open", Path: name, Err: os.ErrPermission}
	}

	_, err := reader.Open(context.Background(), "/data/secret.txt")
	var failure *Failure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, FailureUnreadable, failure.Kind)
	assert.EqualValues(t, 1, calls.Load())
}

func Test_Reader_Stat_Timeout(t *testing.T) {
	reader := testReader(t)
	reader.opts.LocalTimeout = 20 * time.Millisecond
	release := make(chan struct{})
	defer close(release)
	reader.StatFile = func(name string) (os.FileInfo, error) {
		<-release
		return nil, os.ErrNotExist
	}

	_, err := reader.Stat(context.Background(), "/slow/disk/file.txt")
	var failure *Failure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, FailureTimeout, failure.Kind)
}

func Test_Reader_Stat_RemoteBudgetIsLarger(t *testing.T) {
	local := writeFile(t, t.TempDir(), "report.docx", "contents")
	realInfo, err := os.Stat(local)
	require.NoError(t, err)

	reader := testReader(t)
	reader.opts.LocalTimeout = 20 * time.Millisecond
	reader.opts.RemoteTimeout = 2 * time.Second
	reader.StatFile = func(name string) (os.FileInfo, error) {
		time.Sleep(100 * time.Millisecond)
		return realInfo, nil
	}

	info, err := reader.Stat(context.Background(), `\\server\share\report.docx`)
	require.NoError(t, err, "a slow share must get the remote budget")
	assert.Equal(t, realInfo.Size(), info.Size())

	_, err = reader.Stat(context.Background(), local)
	var failure *Failure
	require.ErrorAs(t, err, &failure, "the same latency on a local path exceeds the local budget")
	assert.Equal(t, FailureTimeout, failure.Kind)
}

func Test_Reader_TierFor(t *testing.T) {
	reader := testReader(t)
	const mib = 1024 * 1024

	tests := []struct {
		path     string
		size     int64
		expected Tier
	}{
		{"/local/a.txt", 10 * mib, TierFull},
		{"/local/a.iso", 60 * mib, TierMetadata},
		{`\\server\share\a.txt`, 5 * mib, TierFull},
		{`\\server\share\a.txt`, 20 * mib, TierPreview},
		{"//server/share/a.bin", 200 * mib, TierMetadata},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, reader.tierFor(tt.path, tt.size), "%s (%d bytes)", tt.path, tt.size)
	}
}

func Test_IsRemote(t *testing.T) {
	assert.True(t, IsRemote(`\\fileserver\team\doc.txt`))
	assert.True(t, IsRemote("//fileserver/team/doc.txt"))
	assert.False(t, IsRemote("/home/user/doc.txt"))
	assert.False(t, IsRemote(`C:\Users\doc.txt`))
}

func Test_IsLockError(t *testing.T) {
	assert.True(t, IsLockError(errSharingViolation))
	assert.True(t, IsLockError(errors.New("Sharing violation on path")))
	assert.False(t, IsLockError(os.ErrNotExist))
	assert.False(t, IsLockError(nil))
}

func Test_FailureLog_DeduplicatesPerStage(t *testing.T) {
	log := NewFailureLog()
	log.Record(&Failure{Path: "/b.txt", Kind: FailureLocked, Stage: "hash"})
	log.Record(&Failure{Path: "/b.txt", Kind: FailureLocked, Stage: "hash"})
	log.Record(&Failure{Path: "/b.txt", Kind: FailureLocked, Stage: "load"})
	log.Record(&Failure{Path: "/a.txt", Kind: FailureMissing, Stage: "hash"})

	entries := log.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "/a.txt", entries[0].Path)
	assert.Equal(t, map[string]bool{"/a.txt": true, "/b.txt": true}, log.Paths())
}
