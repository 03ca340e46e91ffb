package matching

import (
	"regexp"
	"strings"

	"github.com/httpmock/httpmock/pkg/mock"
)

// canonicalizer rewrites a value before comparison. Used for host aliasing
// and case folding; the zero value compares verbatim.
type canonicalizer struct {
	fold      bool
	hostAlias bool
}

// window folds only; substring and affix operands compare against the
// value as sent.
func (c canonicalizer) window(s string) string {
	if c.fold {
		s = strings.ToLower(s)
	}
	return s
}

// equality additionally rewrites the loopback IP, so localhost and
// 127.0.0.1 name the same authority under equals and not_equals.
func (c canonicalizer) equality(s string) string {
	s = c.window(s)
	if c.hostAlias && s == "127.0.0.1" {
		s = "localhost"
	}
	return s
}

// evalString evaluates the full single-valued constraint family against one
// actual value and returns a record per violated constraint.
func evalString(c *mock.StringConstraints, actual string, canon canonicalizer) []constraintMiss {
	if c.Empty() {
		return nil
	}

	var misses []constraintMiss
	eqActual := canon.equality(actual)
	winActual := canon.window(actual)

	if c.Equals != nil {
		if canon.equality(*c.Equals) != eqActual {
			misses = append(misses, constraintMiss{
				kind:     KindEquals,
				expected: *c.Equals,
				actual:   actual,
				distance: editDistance(canon.equality(*c.Equals), eqActual),
			})
		}
	}
	if c.NotEquals != nil {
		if canon.equality(*c.NotEquals) == eqActual {
			misses = append(misses, constraintMiss{
				kind:     KindNotEquals,
				expected: *c.NotEquals,
				actual:   actual,
				distance: invertedDistance(*c.NotEquals),
			})
		}
	}
	for _, op := range c.Includes {
		if !strings.Contains(winActual, canon.window(op)) {
			misses = append(misses, constraintMiss{
				kind:     KindIncludes,
				expected: op,
				actual:   actual,
				distance: windowDistance(canon.window(op), winActual),
			})
		}
	}
	for _, op := range c.Excludes {
		if strings.Contains(winActual, canon.window(op)) {
			misses = append(misses, constraintMiss{
				kind:     KindExcludes,
				expected: op,
				actual:   actual,
				distance: invertedDistance(op),
			})
		}
	}
	for _, op := range c.Prefix {
		if !strings.HasPrefix(winActual, canon.window(op)) {
			misses = append(misses, constraintMiss{
				kind:     KindPrefix,
				expected: op,
				actual:   actual,
				distance: windowDistance(canon.window(op), headWindow(winActual, len(op))),
			})
		}
	}
	for _, op := range c.Suffix {
		if !strings.HasSuffix(winActual, canon.window(op)) {
			misses = append(misses, constraintMiss{
				kind:     KindSuffix,
				expected: op,
				actual:   actual,
				distance: windowDistance(canon.window(op), tailWindow(winActual, len(op))),
			})
		}
	}
	for _, op := range c.PrefixNot {
		if strings.HasPrefix(winActual, canon.window(op)) {
			misses = append(misses, constraintMiss{
				kind:     KindPrefixNot,
				expected: op,
				actual:   actual,
				distance: invertedDistance(op),
			})
		}
	}
	for _, op := range c.SuffixNot {
		if strings.HasSuffix(winActual, canon.window(op)) {
			misses = append(misses, constraintMiss{
				kind:     KindSuffixNot,
				expected: op,
				actual:   actual,
				distance: invertedDistance(op),
			})
		}
	}
	for _, pattern := range c.Matches {
		if !regexMatch(pattern, actual) {
			misses = append(misses, constraintMiss{
				kind:     KindMatches,
				expected: pattern,
				actual:   actual,
				distance: regexMissDistance,
			})
		}
	}

	return misses
}

// headWindow returns the leading n bytes of s (all of s when shorter).
func headWindow(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// tailWindow returns the trailing n bytes of s (all of s when shorter).
func tailWindow(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// regexMatch compiles and applies a pattern. Invalid patterns never match;
// validation rejects them before they reach a stored mock, so this path only
// triggers for requirements built locally without validation.
func regexMatch(pattern, value string) bool {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(value)
}
