package index

import "time"

// InventoryFile is one analyzed file as seen by the inventory and search tools.
type InventoryFile struct {
	Path         string    `json:"path"`
	RelativePath string    `json:"relative_path"` // forward slashes
	Kind         string    `json:"kind"`
	Group        string    `json:"group"` // canonical name of the file's name group
	Digest       string    `json:"digest,omitempty"`
	Duplicate    bool      `json:"duplicate"` // a redundant copy, not the first member of its set
	SizeBytes    int64     `json:"size_bytes"`
	ModTime      time.Time `json:"mod_time"`
	Age          string    `json:"age,omitempty"`
}
