package matching

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"

	"github.com/httpmock/httpmock/pkg/mock"
)

// evalJSON evaluates the structural JSON constraint family against the raw
// request body. A body that does not parse as JSON violates every positive
// constraint; map-key order never matters.
func evalJSON(c *mock.JSONConstraints, body []byte) []constraintMiss {
	if c.Empty() {
		return nil
	}

	var misses []constraintMiss
	actual, parseErr := decodeJSON(body)
	actualText := compactJSON(body)

	if len(c.Equals) > 0 {
		want, err := decodeJSON(c.Equals)
		if err != nil || parseErr != nil || !reflect.DeepEqual(want, actual) {
			misses = append(misses, constraintMiss{
				kind:     KindEquals,
				expected: compactJSON(c.Equals),
				actual:   actualText,
				distance: jsonDistance(c.Equals, body),
			})
		}
	}
	for _, raw := range c.Includes {
		want, err := decodeJSON(raw)
		if err != nil || parseErr != nil || !jsonContains(actual, want) {
			misses = append(misses, constraintMiss{
				kind:     KindIncludes,
				expected: compactJSON(raw),
				actual:   actualText,
				distance: jsonDistance(raw, body),
			})
		}
	}
	for _, raw := range c.Excludes {
		want, err := decodeJSON(raw)
		if err == nil && parseErr == nil && jsonContains(actual, want) {
			misses = append(misses, constraintMiss{
				kind:     KindExcludes,
				expected: compactJSON(raw),
				actual:   actualText,
				distance: invertedDistance(compactJSON(raw)),
			})
		}
	}

	for expr, want := range c.Path {
		path, err := jp.ParseString(expr)
		if err != nil {
			misses = append(misses, constraintMiss{
				kind:     KindMatches,
				expected: expr,
				actual:   actualText,
				distance: regexMissDistance,
			})
			continue
		}
		if parseErr != nil || !pathHits(path, actual, want) {
			misses = append(misses, constraintMiss{
				kind:     KindMatches,
				expected: fmt.Sprintf("%s = %v", expr, want),
				actual:   actualText,
				distance: regexMissDistance,
			})
		}
	}

	return misses
}

// pathHits reports whether the JSONPath selects at least one node equal to
// want, or any node at all when want is nil (pure existence check).
func pathHits(path jp.Expr, doc any, want any) bool {
	for _, got := range path.Get(doc) {
		if want == nil || jsonEqual(got, want) {
			return true
		}
	}
	return false
}

// decodeJSON parses raw bytes into the generic any representation with
// numbers as float64, matching encoding/json defaults so operands decoded
// from the wire compare cleanly against request bodies.
func decodeJSON(raw []byte) (any, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// jsonEqual compares two decoded JSON values, normalizing both through
// encoding/json semantics first so ojg node types compare against plain
// map/slice/float64 values.
func jsonEqual(a, b any) bool {
	return reflect.DeepEqual(normalize(a), normalize(b))
}

func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any, []any, string, float64, bool, nil:
		return v
	case int:
		return float64(t)
	case int64:
		return float64(t)
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return v
		}
		var out any
		if err := json.Unmarshal(raw, &out); err != nil {
			return v
		}
		return out
	}
}

// jsonContains reports whether want is structurally contained in got:
// every key of a wanted object must be present with a contained value, every
// element of a wanted array must be contained in some element of the actual
// array, and scalars must be equal.
func jsonContains(got, want any) bool {
	switch w := want.(type) {
	case map[string]any:
		g, ok := got.(map[string]any)
		if !ok {
			return false
		}
		for key, wv := range w {
			gv, present := g[key]
			if !present || !jsonContains(gv, wv) {
				return false
			}
		}
		return true
	case []any:
		g, ok := got.([]any)
		if !ok {
			return false
		}
		for _, wv := range w {
			found := false
			for _, gv := range g {
				if jsonContains(gv, wv) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		return true
	default:
		return reflect.DeepEqual(got, want)
	}
}

// jsonDistance approximates how far the actual body is from the wanted
// document by edit distance over their compact renderings, capped so huge
// payloads do not dominate the weighted sum.
func jsonDistance(want json.RawMessage, body []byte) uint64 {
	d := editDistance(compactJSON(want), compactJSON(body))
	if d > jsonMissCap {
		return jsonMissCap
	}
	if d == 0 {
		d = 1
	}
	return d
}

// compactJSON renders raw bytes as compact JSON for mismatch output. Invalid
// JSON is passed through verbatim.
func compactJSON(raw []byte) string {
	v, err := decodeJSON(raw)
	if err != nil {
		return string(raw)
	}
	return oj.JSON(v)
}
