package matching

import (
	"bytes"
	"strings"

	"github.com/httpmock/httpmock/pkg/mock"
)

// evalBody evaluates the raw-body constraint family. Equality operands are
// compared byte for byte; the windowed operands treat the body as text.
func evalBody(c *mock.BodyConstraints, body []byte) []constraintMiss {
	if c.Empty() {
		return nil
	}

	var misses []constraintMiss
	text := string(body)

	if len(c.Equals) > 0 && !bytes.Equal(c.Equals, body) {
		misses = append(misses, constraintMiss{
			kind:     KindEquals,
			expected: previewBody(c.Equals),
			actual:   previewBody(body),
			distance: editDistance(string(c.Equals), text),
		})
	}
	if len(c.NotEquals) > 0 && bytes.Equal(c.NotEquals, body) {
		misses = append(misses, constraintMiss{
			kind:     KindNotEquals,
			expected: previewBody(c.NotEquals),
			actual:   previewBody(body),
			distance: invertedDistance(string(c.NotEquals)),
		})
	}
	for _, op := range c.Includes {
		if !strings.Contains(text, op) {
			misses = append(misses, constraintMiss{
				kind:     KindIncludes,
				expected: op,
				actual:   previewBody(body),
				distance: windowDistance(op, text),
			})
		}
	}
	for _, op := range c.Excludes {
		if strings.Contains(text, op) {
			misses = append(misses, constraintMiss{
				kind:     KindExcludes,
				expected: op,
				actual:   previewBody(body),
				distance: invertedDistance(op),
			})
		}
	}
	for _, op := range c.Prefix {
		if !strings.HasPrefix(text, op) {
			misses = append(misses, constraintMiss{
				kind:     KindPrefix,
				expected: op,
				actual:   previewBody(body),
				distance: windowDistance(op, headWindow(text, len(op))),
			})
		}
	}
	for _, op := range c.Suffix {
		if !strings.HasSuffix(text, op) {
			misses = append(misses, constraintMiss{
				kind:     KindSuffix,
				expected: op,
				actual:   previewBody(body),
				distance: windowDistance(op, tailWindow(text, len(op))),
			})
		}
	}
	for _, op := range c.PrefixNot {
		if strings.HasPrefix(text, op) {
			misses = append(misses, constraintMiss{
				kind:     KindPrefixNot,
				expected: op,
				actual:   previewBody(body),
				distance: invertedDistance(op),
			})
		}
	}
	for _, op := range c.SuffixNot {
		if strings.HasSuffix(text, op) {
			misses = append(misses, constraintMiss{
				kind:     KindSuffixNot,
				expected: op,
				actual:   previewBody(body),
				distance: invertedDistance(op),
			})
		}
	}
	for _, pattern := range c.Matches {
		if !regexMatch(pattern, text) {
			misses = append(misses, constraintMiss{
				kind:     KindMatches,
				expected: pattern,
				actual:   previewBody(body),
				distance: regexMissDistance,
			})
		}
	}

	return misses
}

// previewBody truncates a body for mismatch output.
func previewBody(body []byte) string {
	const max = 256
	if len(body) <= max {
		return string(body)
	}
	return string(body[:max]) + "..."
}
