package similarity

import (
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"
)

const shardCount = 32

// PairKey is an unordered path pair stored with A < B.
type PairKey struct {
	A string
	B string
}

// NewPairKey orders p and q lexicographically.
func NewPairKey(p, q string) PairKey {
	if q < p {
		p, q = q, p
	}
	return PairKey{A: p, B: q}
}

// Score is the similarity of one unordered pair.
type Score struct {
	PathA     string  `json:"path_a"`
	PathB     string  `json:"path_b"`
	Jaccard   float64 `json:"jaccard_prefilter"`
	Alignment float64 `json:"alignment_score"`
	// Identical marks pairs short-circuited because their content hashes match.
	Identical bool `json:"identical,omitempty"`
}

func (s Score) Key() PairKey {
	return NewPairKey(s.PathA, s.PathB)
}

type storeShard struct {
	mu     sync.Mutex
	scores map[PairKey]Score
}

// Store holds at most one Score per unordered pair. Safe for concurrent use.
type Store struct {
	shards [shardCount]storeShard
}

func NewStore() *Store {
	s := &Store{}
	for i := range s.shards {
		s.shards[i].scores = make(map[PairKey]Score)
	}
	return s
}

func (s *Store) shard(key PairKey) *storeShard {
	h := xxhash.New()
	h.WriteString(key.A)
	h.WriteString("\x00")
	h.WriteString(key.B)
	return &s.shards[h.Sum64()%shardCount]
}

// Insert stores score unless its pair is already present. It reports whether the score was stored.
func (s *Store) Insert(score Score) bool {
	key := score.Key()
	score.PathA, score.PathB = key.A, key.B

	shard := s.shard(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	if _, exists := shard.scores[key]; exists {
		return false
	}
	shard.scores[key] = score
	return true
}

// get returns the score for the pair p, q in either order.
func (s *Store) get(p, q string) (Score, bool) {
	key := NewPairKey(p, q)
	shard := s.shard(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	score, ok := shard.scores[key]
	return score, ok
}

func (s *Store) Len() int {
	n := 0
	for i := range s.shards {
		s.shards[i].mu.Lock()
		n += len(s.shards[i].scores)
		s.shards[i].mu.Unlock()
	}
	return n
}

// Sorted returns every score by descending alignment, ties broken by path.
func (s *Store) Sorted() []Score {
	var out []Score
	for i := range s.shards {
		s.shards[i].mu.Lock()
		for _, score := range s.shards[i].scores {
			out = append(out, score)
		}
		s.shards[i].mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Alignment != out[j].Alignment {
			return out[i].Alignment > out[j].Alignment
		}
		if out[i].PathA != out[j].PathA {
			return out[i].PathA < out[j].PathA
		}
		return out[i].PathB < out[j].PathB
	})
	return out
}
