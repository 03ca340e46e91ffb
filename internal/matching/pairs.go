package matching

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/httpmock/httpmock/pkg/mock"
)

// strategy controls how a pair rule quantifies over the request's pairs.
type strategy int

const (
	// presence passes when any request pair satisfies the rule.
	presence strategy = iota
	// absence passes when all request pairs satisfy the rule.
	absence
)

// operator combines the key sub-predicate and the value sub-predicate.
type operator int

const (
	opAnd operator = iota
	opOr
	opNand
	opNor
	opImplication
)

func (op operator) combine(key, value bool) bool {
	switch op {
	case opAnd:
		return key && value
	case opOr:
		return key || value
	case opNand:
		return !(key && value)
	case opNor:
		return !(key || value)
	case opImplication:
		return !key || value
	default:
		return false
	}
}

// pairRule is one quantified predicate over the request's (key, value) pairs.
type pairRule struct {
	keyPred   func(string) bool
	valuePred func(string) bool
	strategy  strategy
	operator  operator
}

func (r pairRule) eval(pairs []mock.Pair) bool {
	switch r.strategy {
	case presence:
		for _, p := range pairs {
			if r.operator.combine(r.keyPred(p.Key), r.valuePred(p.Value)) {
				return true
			}
		}
		return false
	case absence:
		for _, p := range pairs {
			if !r.operator.combine(r.keyPred(p.Key), r.valuePred(p.Value)) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// evalPairs evaluates the multi-valued constraint family. foldKeys enables
// case-insensitive key comparison (headers, cookies). Each violated
// constraint yields a record carrying the closest request pair by combined
// key+value edit distance.
func evalPairs(c *mock.PairConstraints, pairs []mock.Pair, foldKeys bool) []constraintMiss {
	if c.Empty() {
		return nil
	}

	keyEq := func(want string) func(string) bool {
		if foldKeys {
			return func(k string) bool { return strings.EqualFold(k, want) }
		}
		return func(k string) bool { return k == want }
	}
	always := func(string) bool { return true }

	var misses []constraintMiss
	miss := func(kind string, want mock.Pair) {
		closest, dist := closestPair(want, pairs, foldKeys)
		misses = append(misses, constraintMiss{
			kind:     kind,
			expected: formatPair(want),
			actual:   formatPairs(pairs),
			distance: dist,
			closest:  closest,
		})
	}

	// Positive families: some request pair must satisfy key AND value.
	for _, want := range c.Equals {
		r := pairRule{keyEq(want.Key), func(v string) bool { return v == want.Value }, presence, opAnd}
		if !r.eval(pairs) {
			miss(KindEquals, want)
		}
	}
	for _, want := range c.Includes {
		r := pairRule{keyEq(want.Key), func(v string) bool { return strings.Contains(v, want.Value) }, presence, opAnd}
		if !r.eval(pairs) {
			miss(KindIncludes, want)
		}
	}
	for _, want := range c.Prefix {
		r := pairRule{keyEq(want.Key), func(v string) bool { return strings.HasPrefix(v, want.Value) }, presence, opAnd}
		if !r.eval(pairs) {
			miss(KindPrefix, want)
		}
	}
	for _, want := range c.Suffix {
		r := pairRule{keyEq(want.Key), func(v string) bool { return strings.HasSuffix(v, want.Value) }, presence, opAnd}
		if !r.eval(pairs) {
			miss(KindSuffix, want)
		}
	}
	for _, want := range c.Matches {
		keyRE, valRE := compiledOrNil(want.Key), compiledOrNil(want.Value)
		r := pairRule{regexPred(keyRE), regexPred(valRE), presence, opAnd}
		if !r.eval(pairs) {
			miss(KindMatches, want)
		}
	}

	// Negated families: no request pair may satisfy key AND value.
	for _, want := range c.NotEquals {
		r := pairRule{keyEq(want.Key), func(v string) bool { return v == want.Value }, absence, opNand}
		if !r.eval(pairs) {
			misses = append(misses, constraintMiss{
				kind:     KindNotEquals,
				expected: formatPair(want),
				actual:   formatPairs(pairs),
				distance: invertedDistance(want.Key + want.Value),
			})
		}
	}
	for _, want := range c.Excludes {
		r := pairRule{keyEq(want.Key), func(v string) bool { return strings.Contains(v, want.Value) }, absence, opNand}
		if !r.eval(pairs) {
			misses = append(misses, constraintMiss{
				kind:     KindExcludes,
				expected: formatPair(want),
				actual:   formatPairs(pairs),
				distance: invertedDistance(want.Value),
			})
		}
	}
	for _, want := range c.PrefixNot {
		r := pairRule{keyEq(want.Key), func(v string) bool { return strings.HasPrefix(v, want.Value) }, absence, opNand}
		if !r.eval(pairs) {
			misses = append(misses, constraintMiss{
				kind:     KindPrefixNot,
				expected: formatPair(want),
				actual:   formatPairs(pairs),
				distance: invertedDistance(want.Value),
			})
		}
	}
	for _, want := range c.SuffixNot {
		r := pairRule{keyEq(want.Key), func(v string) bool { return strings.HasSuffix(v, want.Value) }, absence, opNand}
		if !r.eval(pairs) {
			misses = append(misses, constraintMiss{
				kind:     KindSuffixNot,
				expected: formatPair(want),
				actual:   formatPairs(pairs),
				distance: invertedDistance(want.Value),
			})
		}
	}

	// Existence checks operate on keys only.
	for _, key := range c.Exists {
		r := pairRule{keyEq(key), always, presence, opAnd}
		if !r.eval(pairs) {
			closest, dist := closestPair(mock.Pair{Key: key}, pairs, foldKeys)
			misses = append(misses, constraintMiss{
				kind:     KindExists,
				expected: key,
				actual:   formatPairs(pairs),
				distance: dist,
				closest:  closest,
			})
		}
	}
	for _, key := range c.Missing {
		r := pairRule{keyEq(key), always, absence, opNand}
		if !r.eval(pairs) {
			misses = append(misses, constraintMiss{
				kind:     KindMissing,
				expected: key,
				actual:   formatPairs(pairs),
				distance: invertedDistance(key),
			})
		}
	}

	for _, cc := range c.Counts {
		keyRE, valRE := compiledOrNil(cc.KeyPattern), compiledOrNil(cc.ValuePattern)
		n := 0
		for _, p := range pairs {
			if regexPred(keyRE)(p.Key) && regexPred(valRE)(p.Value) {
				n++
			}
		}
		if n != cc.Count {
			diff := n - cc.Count
			if diff < 0 {
				diff = -diff
			}
			misses = append(misses, constraintMiss{
				kind:     KindCount,
				expected: fmt.Sprintf("%d pairs matching (%s, %s)", cc.Count, cc.KeyPattern, cc.ValuePattern),
				actual:   fmt.Sprintf("%d pairs", n),
				distance: uint64(diff),
			})
		}
	}

	return misses
}

// closestPair finds the request pair with the smallest combined key+value
// edit distance to the wanted pair. Returns nil when the request has no
// pairs at all, in which case the distance is the full length of the want.
func closestPair(want mock.Pair, pairs []mock.Pair, foldKeys bool) (*mock.Pair, uint64) {
	if len(pairs) == 0 {
		return nil, invertedDistance(want.Key + want.Value)
	}
	wantKey := want.Key
	if foldKeys {
		wantKey = strings.ToLower(wantKey)
	}

	var best *mock.Pair
	var bestDist uint64
	for i := range pairs {
		key := pairs[i].Key
		if foldKeys {
			key = strings.ToLower(key)
		}
		d := editDistance(wantKey, key) + editDistance(want.Value, pairs[i].Value)
		if best == nil || d < bestDist {
			p := pairs[i]
			best = &p
			bestDist = d
		}
	}
	if bestDist == 0 {
		bestDist = 1
	}
	return best, bestDist
}

func compiledOrNil(pattern string) *regexp.Regexp {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil
	}
	return re
}

func regexPred(re *regexp.Regexp) func(string) bool {
	return func(s string) bool {
		if re == nil {
			return false
		}
		return re.MatchString(s)
	}
}

func formatPair(p mock.Pair) string {
	return p.Key + "=" + p.Value
}

func formatPairs(pairs []mock.Pair) string {
	if len(pairs) == 0 {
		return "(none)"
	}
	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = formatPair(p)
	}
	return strings.Join(parts, ", ")
}
