package dupes

import (
	"os"
)

// DuplicateSet is a group of files with identical content.
// Files[0] is treated as the original: the first member in enumeration order.
type DuplicateSet struct {
	Digest string   `json:"digest"`
	Files  []string `json:"files"`
}

// DuplicateGroup holds every duplicate set found inside one name cluster.
type DuplicateGroup struct {
	BaseName      string         `json:"base_name"`
	DuplicateSets []DuplicateSet `json:"duplicate_sets"`
}

// DuplicateResults aggregates duplicate groups. The totals are updated as each
// group is added, never recomputed.
type DuplicateResults struct {
	TotalDuplicates int              `json:"total_duplicates"`
	SpaceWasted     int64            `json:"space_wasted"`
	DuplicateGroups []DuplicateGroup `json:"duplicate_groups"`

	stat func(string) (os.FileInfo, error)
}

func NewDuplicateResults() *DuplicateResults {
	return &DuplicateResults{
		DuplicateGroups: []DuplicateGroup{},
		stat:            os.Stat,
	}
}

// AddGroup appends group and folds its sets into the totals.
// Sizes are read from the filesystem at this moment; a member that cannot be
// stat'ed contributes no wasted space.
func (r *DuplicateResults) AddGroup(group DuplicateGroup) {
	if r.stat == nil {
		r.stat = os.Stat
	}
	for _, set := range group.DuplicateSets {
		if len(set.Files) < 2 {
			continue
		}
		r.TotalDuplicates += len(set.Files) - 1
		for _, path := range set.Files[1:] {
			if info, err := r.stat(path); err == nil {
				r.SpaceWasted += info.Size()
			}
		}
	}
	r.DuplicateGroups = append(r.DuplicateGroups, group)
}

// KnownDuplicates maps every path in a duplicate set to the set's digest.
func (r *DuplicateResults) KnownDuplicates() map[string]string {
	known := make(map[string]string)
	for _, group := range r.DuplicateGroups {
		for _, set := range group.DuplicateSets {
			for _, path := range set.Files {
				known[path] = set.Digest
			}
		}
	}
	return known
}

// SetCount returns the number of duplicate sets across all groups.
func (r *DuplicateResults) SetCount() int {
	n := 0
	for _, group := range r.DuplicateGroups {
		n += len(group.DuplicateSets)
	}
	return n
}
