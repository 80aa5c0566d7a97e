package analysis

import "time"

// AgeBucket classifies a file by how long ago it was last modified.
type AgeBucket string

const (
	AgeRecent AgeBucket = "recent"
	AgeStale  AgeBucket = "stale"
	AgeOld    AgeBucket = "old"
)

const (
	RecentWindow = 30 * 24 * time.Hour
	StaleWindow  = 180 * 24 * time.Hour
)

// BucketFor returns the age bucket of a file modified at modTime, as seen at now.
// Modification times in the future count as recent.
func BucketFor(modTime, now time.Time) AgeBucket {
	age := now.Sub(modTime)
	switch {
	case age <= RecentWindow:
		return AgeRecent
	case age <= StaleWindow:
		return AgeStale
	default:
		return AgeOld
	}
}

type AgeStat struct {
	Files int   `json:"files"`
	Bytes int64 `json:"bytes"`
}

// AgeSummary counts files and bytes per age bucket.
type AgeSummary struct {
	Recent AgeStat `json:"recent"`
	Stale  AgeStat `json:"stale"`
	Old    AgeStat `json:"old"`
}

func (s *AgeSummary) Add(bucket AgeBucket, size int64) {
	var stat *AgeStat
	switch bucket {
	case AgeRecent:
		stat = &s.Recent
	case AgeStale:
		stat = &s.Stale
	default:
		stat = &s.Old
	}
	stat.Files++
	stat.Bytes += size
}
