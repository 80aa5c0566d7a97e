package fileio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/lexandro/ferret/kind"
)

// Tier is the read strategy chosen for a file from its size and location.
type Tier int

const (
	TierFull Tier = iota
	TierPreview
	TierMetadata
)

func (t Tier) String() string {
	switch t {
	case TierFull:
		return "full"
	case TierPreview:
		return "preview"
	case TierMetadata:
		return "metadata"
	}
	return "unknown"
}

// Options tunes the resilient reader.
type Options struct {
	LocalTimeout  time.Duration
	RemoteTimeout time.Duration
	MaxRetries    int
	RetryDelay    time.Duration
	// LocalFullLimit is the largest local file read whole; larger files are metadata only.
	LocalFullLimit int64
	// RemoteFullLimit is the largest remote file read whole.
	RemoteFullLimit int64
	// RemotePreviewLimit is the largest remote file for which a preview is read.
	RemotePreviewLimit int64
	PreviewBytes       int
	// CompareCeiling marks files above it as Oversized when classifying content.
	CompareCeiling int64
	// RemoteReadsPerSecond throttles opens on remote paths; 0 disables throttling.
	RemoteReadsPerSecond float64
}

// DefaultOptions returns the budgets used for shared-drive analysis.
func DefaultOptions() Options {
	return Options{
		LocalTimeout:         5 * time.Second,
		RemoteTimeout:        30 * time.Second,
		MaxRetries:           3,
		RetryDelay:           5 * time.Second,
		LocalFullLimit:       50 * 1024 * 1024,
		RemoteFullLimit:      10 * 1024 * 1024,
		RemotePreviewLimit:   100 * 1024 * 1024,
		PreviewBytes:         1024,
		CompareCeiling:       100 * 1024,
		RemoteReadsPerSecond: 20,
	}
}

// Content is what the reader returns for one file.
type Content struct {
	Path     string
	Tier     Tier
	Category kind.Category
	Data     []byte
	Size     int64
	ModTime  time.Time
}

// Text returns the loaded bytes as a string.
func (c *Content) Text() string {
	return string(c.Data)
}

// Reader reads files with timeouts, lock retries and size tiers.
// Safe for concurrent use.
type Reader struct {
	opts    Options
	limiter *rate.Limiter
	logger  *slog.Logger

	// OpenFile opens a file for reading. Tests replace it to simulate locked files.
	OpenFile func(name string) (*os.File, error)
	// StatFile returns file metadata.
	StatFile func(name string) (os.FileInfo, error)
}

func NewReader(opts Options, logger *slog.Logger) *Reader {
	r := &Reader{
		opts:     opts,
		logger:   logger,
		OpenFile: os.Open,
		StatFile: os.Stat,
	}
	if opts.RemoteReadsPerSecond > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(opts.RemoteReadsPerSecond), 1)
	}
	return r
}

func (r *Reader) Options() Options {
	return r.opts
}

// IsRemote reports whether path names a network share (UNC form).
func IsRemote(path string) bool {
	return strings.HasPrefix(path, `\\`) || strings.HasPrefix(path, "//")
}

func (r *Reader) budget(path string) time.Duration {
	if IsRemote(path) {
		return r.opts.RemoteTimeout
	}
	return r.opts.LocalTimeout
}

// Stat returns metadata for path, retrying lock violations.
func (r *Reader) Stat(ctx context.Context, path string) (os.FileInfo, error) {
	var info os.FileInfo
	attempts, err := r.retry(ctx, path, func() error {
		var statErr error
		info, statErr = withTimeout(ctx, r.budget(path), func() (os.FileInfo, error) {
			return r.StatFile(path)
		}, nil)
		return statErr
	})
	if err != nil {
		return nil, NewFailure(path, attempts, err)
	}
	return info, nil
}

// Open opens path for streaming, retrying lock violations. The caller closes the file.
func (r *Reader) Open(ctx context.Context, path string) (*os.File, error) {
	if err := r.throttle(ctx, path); err != nil {
		return nil, NewFailure(path, 0, err)
	}

	var f *os.File
	attempts, err := r.retry(ctx, path, func() error {
		var openErr error
		f, openErr = withTimeout(ctx, r.budget(path), func() (*os.File, error) {
			return r.OpenFile(path)
		}, closeFile)
		return openErr
	})
	if err != nil {
		return nil, NewFailure(path, attempts, err)
	}
	return f, nil
}

// ReadContent loads a file according to its tier and classifies it.
func (r *Reader) ReadContent(ctx context.Context, path string) (*Content, error) {
	info, err := r.Stat(ctx, path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, NewFailure(path, 1, fmt.Errorf("is a directory"))
	}

	content := &Content{
		Path:    path,
		Tier:    r.tierFor(path, info.Size()),
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}
	if content.Tier == TierMetadata {
		content.Category = kind.Classify(path, nil, content.Size, r.opts.CompareCeiling)
		if content.Category == kind.PlainText {
			content.Category = kind.Oversized
		}
		return content, nil
	}

	f, err := r.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	limit := content.Size
	if content.Tier == TierPreview {
		limit = int64(r.opts.PreviewBytes)
	}
	data, err := withTimeout(ctx, r.budget(path), func() ([]byte, error) {
		return io.ReadAll(io.LimitReader(f, limit))
	}, nil)
	if err != nil {
		return nil, NewFailure(path, 1, err)
	}

	content.Data = data
	content.Category = kind.Classify(path, data, content.Size, r.opts.CompareCeiling)
	r.logger.Debug("loaded file", "path", path, "tier", content.Tier, "category", content.Category, "bytes", len(data))
	return content, nil
}

func (r *Reader) tierFor(path string, size int64) Tier {
	if IsRemote(path) {
		switch {
		case size > r.opts.RemotePreviewLimit:
			return TierMetadata
		case size > r.opts.RemoteFullLimit:
			return TierPreview
		}
		return TierFull
	}
	if size > r.opts.LocalFullLimit {
		return TierMetadata
	}
	return TierFull
}

func (r *Reader) throttle(ctx context.Context, path string) error {
	if r.limiter == nil || !IsRemote(path) {
		return nil
	}
	return r.limiter.Wait(ctx)
}

// retry runs op until it succeeds, fails with a non-lock error, or exhausts MaxRetries.
// It returns the number of attempts made.
func (r *Reader) retry(ctx context.Context, path string, op func() error) (int, error) {
	for attempt := 1; ; attempt++ {
		err := op()
		if err == nil || !IsLockError(err) || attempt > r.opts.MaxRetries {
			return attempt, err
		}

		r.logger.Debug("file locked, retrying", "path", path, "attempt", attempt, "delay", r.opts.RetryDelay)
		timer := time.NewTimer(r.opts.RetryDelay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return attempt, ctx.Err()
		}
	}
}

type result[T any] struct {
	value T
	err   error
}

// withTimeout runs fn with a deadline. When the deadline wins, cleanup receives the late value.
func withTimeout[T any](ctx context.Context, budget time.Duration, fn func() (T, error), cleanup func(T)) (T, error) {
	if budget <= 0 {
		return fn()
	}
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	done := make(chan result[T], 1)
	go func() {
		v, err := fn()
		done <- result[T]{value: v, err: err}
	}()

	select {
	case res := <-done:
		return res.value, res.err
	case <-ctx.Done():
		if cleanup != nil {
			go func() {
				res := <-done
				if res.err == nil {
					cleanup(res.value)
				}
			}()
		}
		var zero T
		return zero, ctx.Err()
	}
}

func closeFile(f *os.File) {
	if f != nil {
		f.Close()
	}
}
