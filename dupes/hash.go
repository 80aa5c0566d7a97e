package dupes

import (
	"context"
	"crypto/sha256"
	"fmt"
	"hash"
	"io"

	"github.com/cespare/xxhash/v2"
	"github.com/zeebo/blake3"
)

// ChunkSize is the read buffer used when streaming file content into a digest.
const ChunkSize = 8 * 1024

// Algorithm names a content digest.
type Algorithm string

const (
	SHA256 Algorithm = "sha256"
	BLAKE3 Algorithm = "blake3"
)

// New returns a fresh hash for the algorithm.
func (a Algorithm) New() (hash.Hash, error) {
	switch a {
	case SHA256, "":
		return sha256.New(), nil
	case BLAKE3:
		return blake3.New(), nil
	}
	return nil, fmt.Errorf("unknown hash algorithm %q", string(a))
}

// ParseAlgorithm validates an algorithm name.
func ParseAlgorithm(name string) (Algorithm, error) {
	a := Algorithm(name)
	if _, err := a.New(); err != nil {
		return "", err
	}
	if a == "" {
		return SHA256, nil
	}
	return a, nil
}

// ctxReader stops a streaming copy once the context is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// streamDigest hashes r in ChunkSize reads, so memory stays flat regardless of file size.
func streamDigest(ctx context.Context, h hash.Hash, r io.Reader) error {
	buf := make([]byte, ChunkSize)
	_, err := io.CopyBuffer(h, &ctxReader{ctx: ctx, r: r}, buf)
	return err
}

// quickDigest hashes at most the first limit bytes with xxhash.
func quickDigest(ctx context.Context, r io.Reader, limit int64) (uint64, error) {
	h := xxhash.New()
	if err := streamDigest(ctx, h, io.LimitReader(r, limit)); err != nil {
		return 0, err
	}
	return h.Sum64(), nil
}
