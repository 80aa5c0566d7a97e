package similarity

import (
	"strings"

	"github.com/cespare/xxhash/v2"
)

const (
	MinShingleSize = 2
	MaxShingleSize = 10
	// charsPerShingleWord sets how quickly the shingle length grows with content length.
	charsPerShingleWord = 50
)

// ShingleSet is a set of hashed word k-grams.
type ShingleSet map[uint64]struct{}

// ShingleSize picks the k-gram length for content of the given length in bytes.
func ShingleSize(length int) int {
	return min(max(length/charsPerShingleWord, MinShingleSize), MaxShingleSize)
}

// Tokenize splits text on whitespace.
func Tokenize(text string) []string {
	return strings.Fields(text)
}

// Shingles builds the set of every contiguous k-word window.
// Fewer than k words yield an empty set.
func Shingles(words []string, k int) ShingleSet {
	set := make(ShingleSet)
	if k <= 0 || len(words) < k {
		return set
	}
	for i := 0; i+k <= len(words); i++ {
		set[xxhash.Sum64String(strings.Join(words[i:i+k], " "))] = struct{}{}
	}
	return set
}

// Jaccard returns |a ∩ b| / |a ∪ b|, or 0 when either set is empty.
func Jaccard(a, b ShingleSet) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	if len(a) > len(b) {
		a, b = b, a
	}
	intersection := 0
	for shingle := range a {
		if _, ok := b[shingle]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}
