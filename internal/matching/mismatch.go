package matching

import (
	"github.com/httpmock/httpmock/pkg/mock"
)

// Constraint kinds as they appear in mismatch output and verify reports.
const (
	KindEquals    = "equals"
	KindNotEquals = "not_equals"
	KindIncludes  = "includes"
	KindExcludes  = "excludes"
	KindPrefix    = "prefix"
	KindSuffix    = "suffix"
	KindPrefixNot = "prefix_not"
	KindSuffixNot = "suffix_not"
	KindMatches   = "matches"
	KindExists    = "exists"
	KindMissing   = "missing"
	KindCount     = "count"
	KindIsTrue    = "is_true"
	KindIsFalse   = "is_false"
)

// Mismatch is one failed constraint: which attribute, which constraint kind,
// what was expected, and what the request actually carried. For multi-valued
// attributes ClosestPair names the request pair that came closest, with
// BestMatch set when a closest pair could be determined at all.
type Mismatch struct {
	Attribute   string     `json:"attribute"`
	Kind        string     `json:"kind"`
	Expected    string     `json:"expected"`
	Actual      string     `json:"actual"`
	ClosestPair *mock.Pair `json:"closest_pair,omitempty"`
	BestMatch   bool       `json:"best_match,omitempty"`
}

// constraintMiss is the internal record produced by the evaluators; the
// registry turns it into a Mismatch with the attribute name filled in.
type constraintMiss struct {
	kind     string
	expected string
	actual   string
	distance uint64
	closest  *mock.Pair
}

func (m constraintMiss) toMismatch(attribute string) Mismatch {
	return Mismatch{
		Attribute:   attribute,
		Kind:        m.kind,
		Expected:    m.expected,
		Actual:      m.actual,
		ClosestPair: m.closest,
		BestMatch:   m.closest != nil,
	}
}

func sumDistance(misses []constraintMiss) uint64 {
	var total uint64
	for _, m := range misses {
		d := m.distance
		if d == 0 {
			// A violated constraint always contributes; keeps the
			// "distance is zero iff matched" invariant.
			d = 1
		}
		total += d
	}
	return total
}
