package matching

import (
	"github.com/agnivade/levenshtein"
)

// editDistance is an equal-weight Levenshtein distance with an explicit
// overflow limit: when the length difference alone already exceeds levLimit
// the computation is skipped and levLimit is returned.
func editDistance(a, b string) uint64 {
	diff := len(a) - len(b)
	if diff < 0 {
		diff = -diff
	}
	if diff >= levLimit {
		return levLimit
	}
	d := levenshtein.ComputeDistance(a, b)
	if d > levLimit {
		return levLimit
	}
	return uint64(d)
}

// longestCommonSubstring returns the length of the longest common substring
// of a and b. Inputs are clamped to keep the DP table bounded.
func longestCommonSubstring(a, b string) int {
	const clamp = 2048
	if len(a) > clamp {
		a = a[:clamp]
	}
	if len(b) > clamp {
		b = b[:clamp]
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	best := 0
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
				if cur[j] > best {
					best = cur[j]
				}
			} else {
				cur[j] = 0
			}
		}
		prev, cur = cur, prev
	}
	return best
}

// windowDistance measures how far operand is from appearing in actual: the
// operand length minus the longest common substring shared with the actual
// value. Zero means the operand occurs verbatim.
func windowDistance(operand, actual string) uint64 {
	d := len(operand) - longestCommonSubstring(operand, actual)
	if d < 0 {
		d = 0
	}
	return uint64(d)
}

// invertedDistance is used when a negated constraint is violated: the match
// length itself becomes the distance, with a floor of one so a violated
// constraint never reports zero.
func invertedDistance(operand string) uint64 {
	if len(operand) == 0 {
		return 1
	}
	return uint64(len(operand))
}
