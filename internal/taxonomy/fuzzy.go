// Package taxonomy resolves free-text item names from LLM output onto the
// stable MaintenanceItem catalog: exact name, then alias, then a fuzzy
// longest-matching-block ratio, falling back to creating a new catalog
// entry when nothing clears the threshold (spec.md §4.D).
package taxonomy

// Ratio scores the similarity of a and b in [0,1] using the Ratcliff/
// Obershelp approach: find the longest common matching block, then
// recurse on the unmatched left and right remainders, summing matched
// character counts. The final ratio is 2*matched / (len(a)+len(b)).
//
// No library in the retrieved corpus implements string-similarity scoring
// (internal/retrieval in bbiangul-go-reason delegates "fuzzy" matching to
// a SQL LIKE clause instead of a ratio), so this is a direct, stdlib-only
// port of the algorithm spec.md §4.D names explicitly.
func Ratio(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	matched := matchedChars(a, b)
	return 2 * float64(matched) / float64(len(a)+len(b))
}

func matchedChars(a, b string) int {
	ai, bi, size := longestMatch(a, b)
	if size == 0 {
		return 0
	}
	total := size
	total += matchedChars(a[:ai], b[:bi])
	total += matchedChars(a[ai+size:], b[bi+size:])
	return total
}

// longestMatch finds the longest common substring of a and b, returning its
// start offset in each and its length. Ties prefer the match with the
// smallest start index in a, then in b (matching the leftmost block, same
// tie-break difflib's SequenceMatcher uses).
func longestMatch(a, b string) (ai, bi, size int) {
	if len(a) == 0 || len(b) == 0 {
		return 0, 0, 0
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	best := 0
	bestA, bestB := 0, 0

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
				if curr[j] > best {
					best = curr[j]
					bestA = i - best
					bestB = j - best
				}
			} else {
				curr[j] = 0
			}
		}
		prev, curr = curr, prev
	}

	return bestA, bestB, best
}
