package analysis

import (
	"github.com/lexandro/ferret/discovery"
	"github.com/lexandro/ferret/dupes"
	"github.com/lexandro/ferret/fileio"
	"github.com/lexandro/ferret/similarity"
)

// ErrRootNotFound is returned before any work starts when the root is missing.
var ErrRootNotFound = discovery.ErrRootNotFound

// AnalysisResults is the outcome of one run over a directory tree.
// total_files, total_groups and duplicate_results are the stable part of the JSON form.
type AnalysisResults struct {
	TotalFiles       int                     `json:"total_files"`
	TotalGroups      int                     `json:"total_groups"`
	DuplicateResults *dupes.DuplicateResults `json:"duplicate_results"`
	SimilarFiles     []similarity.Score      `json:"similar_files"`
	Ages             AgeSummary              `json:"ages"`
	Failures         []fileio.Failure        `json:"failures"`
}
