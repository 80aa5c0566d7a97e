package grouping

import (
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/junegunn/fzf/src/algo"
	"github.com/junegunn/fzf/src/util"
)

// DefaultThreshold is the minimum fuzzy score for a name to join an existing group.
const DefaultThreshold = 60

// FileGroup is a cluster of paths whose normalized names fuzzy-match.
// CanonicalName comes from the first member and is never recomputed.
type FileGroup struct {
	CanonicalName string   `json:"canonical_name"`
	Members       []string `json:"members"`
}

// IsPotentialDuplicate reports whether the group has more than one member.
func (g FileGroup) IsPotentialDuplicate() bool {
	return len(g.Members) > 1
}

var variantSuffix = regexp.MustCompile(`\s*(v\d+|copy|backup|final|draft|\d+)$`)

// Stem returns the file name without its final extension.
// A dot-file such as ".profile" keeps its full name.
func Stem(path string) string {
	base := filepath.Base(path)
	if base == "." || base == ".." || base == string(filepath.Separator) {
		return ""
	}
	ext := filepath.Ext(base)
	if ext == base {
		return base
	}
	return strings.TrimSuffix(base, ext)
}

// NormalizeName lower-cases the stem, turns '_' and '-' into spaces and strips
// one trailing version or variant marker. If stripping leaves nothing, the
// lower-cased stem is returned unchanged.
func NormalizeName(path string) string {
	lower := strings.ToLower(Stem(path))
	spaced := strings.NewReplacer("_", " ", "-", " ").Replace(lower)
	stripped := strings.TrimSpace(variantSuffix.ReplaceAllString(spaced, ""))
	if stripped == "" {
		return lower
	}
	return stripped
}

var initAlgo sync.Once

// Grouper clusters paths by normalized name. Not safe for concurrent use.
type Grouper struct {
	threshold int
	slab      *util.Slab
}

func NewGrouper(threshold int) *Grouper {
	initAlgo.Do(func() { algo.Init("default") })
	return &Grouper{
		threshold: threshold,
		slab:      util.MakeSlab(100*1024, 2048),
	}
}

// Score returns the subsequence fuzzy score of canonical within name.
func (g *Grouper) Score(name, canonical string) int {
	if canonical == "" {
		return 0
	}
	chars := util.ToChars([]byte(name))
	res, _ := algo.FuzzyMatchV2(false, false, true, &chars, []rune(canonical), false, g.slab)
	return res.Score
}

// Group partitions paths in input order. The first existing group whose
// canonical name scores at least the threshold wins; equal names always match.
func (g *Grouper) Group(paths []string) []FileGroup {
	var groups []FileGroup
	for _, path := range paths {
		normalized := NormalizeName(path)

		matched := -1
		for i := range groups {
			canonical := groups[i].CanonicalName
			if canonical == normalized || g.Score(normalized, canonical) >= g.threshold {
				matched = i
				break
			}
		}

		if matched >= 0 {
			groups[matched].Members = append(groups[matched].Members, path)
			continue
		}
		groups = append(groups, FileGroup{CanonicalName: normalized, Members: []string{path}})
	}
	return groups
}

// CanonicalIndex maps every member path to the canonical name of its group.
func CanonicalIndex(groups []FileGroup) map[string]string {
	index := make(map[string]string)
	for _, group := range groups {
		for _, member := range group.Members {
			index[member] = group.CanonicalName
		}
	}
	return index
}
