package similarity

const (
	MatchScore    = 3
	MismatchScore = -1
	GapPenalty    = -2
)

// LocalAlignment returns the best Smith–Waterman cell for a and b.
// Only two rows are kept, sized to the shorter sequence.
func LocalAlignment(a, b []rune) int {
	if len(a) < len(b) {
		a, b = b, a
	}
	if len(b) == 0 {
		return 0
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	best := 0
	for i := 1; i <= len(a); i++ {
		curr[0] = 0
		for j := 1; j <= len(b); j++ {
			diagonal := prev[j-1] + MismatchScore
			if a[i-1] == b[j-1] {
				diagonal = prev[j-1] + MatchScore
			}
			cell := max(0, diagonal, prev[j]+GapPenalty, curr[j-1]+GapPenalty)
			curr[j] = cell
			if cell > best {
				best = cell
			}
		}
		prev, curr = curr, prev
	}
	return best
}

// AlignmentScore normalizes LocalAlignment by the longer sequence.
// Identical inputs score exactly 1.0. The result is not clamped.
func AlignmentScore(a, b []rune) float64 {
	longest := max(len(a), len(b))
	if longest == 0 {
		return 0
	}
	return float64(LocalAlignment(a, b)) / float64(longest*MatchScore)
}
