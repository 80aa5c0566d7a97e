package fileio

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"sort"
	"strings"
	"sync"
	"syscall"
)

// FailureKind classifies a per-file failure.
type FailureKind int

const (
	// FailureLocked means the file stayed locked by another process after every retry.
	FailureLocked FailureKind = iota
	// FailureMissing means the file vanished between enumeration and processing.
	FailureMissing
	// FailureUnreadable covers permission, corruption and other I/O errors.
	FailureUnreadable
	// FailureTimeout means the read exceeded its local or remote latency budget.
	FailureTimeout
)

func (k FailureKind) String() string {
	switch k {
	case FailureLocked:
		return "locked"
	case FailureMissing:
		return "missing"
	case FailureUnreadable:
		return "unreadable"
	case FailureTimeout:
		return "timeout"
	}
	return "unknown"
}

// MarshalText renders the kind by name in JSON reports.
func (k FailureKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Failure is a per-file error that never aborts a run.
type Failure struct {
	Path     string
	Kind     FailureKind
	Stage    string
	Attempts int
	Err      error
}

func (f *Failure) Error() string {
	msg := f.Kind.String() + " " + f.Path
	if f.Stage != "" {
		msg = f.Stage + ": " + msg
	}
	if f.Err != nil {
		msg += ": " + f.Err.Error()
	}
	return msg
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// MarshalJSON flattens the wrapped error into a string.
func (f Failure) MarshalJSON() ([]byte, error) {
	out := struct {
		Path     string      `json:"path"`
		Kind     FailureKind `json:"kind"`
		Stage    string      `json:"stage,omitempty"`
		Attempts int         `json:"attempts"`
		Error    string      `json:"error,omitempty"`
	}{Path: f.Path, Kind: f.Kind, Stage: f.Stage, Attempts: f.Attempts}
	if f.Err != nil {
		out.Error = f.Err.Error()
	}
	return json.Marshal(out)
}

// NewFailure classifies err for path.
func NewFailure(path string, attempts int, err error) *Failure {
	var existing *Failure
	if errors.As(err, &existing) {
		return existing
	}

	kind := FailureUnreadable
	switch {
	case errors.Is(err, fs.ErrNotExist):
		kind = FailureMissing
	case errors.Is(err, context.DeadlineExceeded):
		kind = FailureTimeout
	case IsLockError(err):
		kind = FailureLocked
	}
	return &Failure{Path: path, Kind: kind, Attempts: attempts, Err: err}
}

// AsFailure returns the failure carried by err, classifying it if it is a plain error.
func AsFailure(path string, err error) *Failure {
	return NewFailure(path, 1, err)
}

var lockMessages = []string{
	"being used by another process",
	"sharing violation",
	"file is locked",
	"access denied",
}

// IsLockError reports whether err looks like a transient sharing or lock violation.
func IsLockError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, syscall.EBUSY) || errors.Is(err, syscall.EAGAIN) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range lockMessages {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// FailureLog collects per-file failures from concurrent workers.
// A path is recorded at most once per stage.
type FailureLog struct {
	mu       sync.Mutex
	failures []Failure
	seen     map[string]bool
}

func NewFailureLog() *FailureLog {
	return &FailureLog{seen: make(map[string]bool)}
}

// Record stores f unless the same path already failed in the same stage.
func (l *FailureLog) Record(f *Failure) {
	if f == nil {
		return
	}
	key := f.Stage + "\x00" + f.Path

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.seen[key] {
		return
	}
	l.seen[key] = true
	l.failures = append(l.failures, *f)
}

// Entries returns the failures sorted by path, then stage.
func (l *FailureLog) Entries() []Failure {
	l.mu.Lock()
	out := make([]Failure, len(l.failures))
	copy(out, l.failures)
	l.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].Stage < out[j].Stage
	})
	return out
}

// Paths returns the set of paths with at least one failure.
func (l *FailureLog) Paths() map[string]bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	paths := make(map[string]bool, len(l.failures))
	for _, f := range l.failures {
		paths[f.Path] = true
	}
	return paths
}

func (l *FailureLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.failures)
}
