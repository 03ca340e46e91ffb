package matching

import (
	"strconv"

	"github.com/httpmock/httpmock/pkg/mock"
)

// attributeMatcher binds one request attribute to its evaluator and its
// weight in the closest-match ranking.
type attributeMatcher struct {
	name   string
	weight uint64
	eval   func(*mock.RequestRequirements, *mock.Request) []constraintMiss
}

// Registry evaluates a requirement set against a request, one matcher per
// attribute. All stored requirement kinds (mocks, forwarding, proxy,
// recording) share the same registry.
type Registry struct {
	matchers []attributeMatcher
}

// NewRegistry builds the registry with its fixed evaluation order. The order
// determines mismatch output order only; matching itself is a conjunction.
func NewRegistry() *Registry {
	return &Registry{matchers: []attributeMatcher{
		{"scheme", WeightScheme, evalSchemeAttr},
		{"method", WeightMethod, evalMethodAttr},
		{"host", WeightHost, evalHostAttr},
		{"port", WeightPort, evalPortAttr},
		{"path", WeightPath, evalPathAttr},
		{"query_param", WeightQuery, evalQueryAttr},
		{"header", WeightHeader, evalHeaderAttr},
		{"cookie", WeightCookie, evalCookieAttr},
		{"body", WeightBody, evalBodyAttr},
		{"json_body", WeightJSON, evalJSONAttr},
		{"form_field", WeightForm, evalFormAttr},
		{"predicates", WeightBody, evalPredicates},
	}}
}

// Matches reports whether the request satisfies every constraint in the
// requirement set. A nil requirement set matches everything.
func (g *Registry) Matches(reqs *mock.RequestRequirements, r *mock.Request) bool {
	if reqs == nil {
		return true
	}
	for _, m := range g.matchers {
		if len(m.eval(reqs, r)) > 0 {
			return false
		}
	}
	return true
}

// Distance returns the weighted sum of all constraint miss distances. Zero
// iff the request matches.
func (g *Registry) Distance(reqs *mock.RequestRequirements, r *mock.Request) uint64 {
	if reqs == nil {
		return 0
	}
	var total uint64
	for _, m := range g.matchers {
		total += m.weight * sumDistance(m.eval(reqs, r))
	}
	return total
}

// Mismatches returns every violated constraint with the attribute name
// attached, in registry order.
func (g *Registry) Mismatches(reqs *mock.RequestRequirements, r *mock.Request) []Mismatch {
	if reqs == nil {
		return nil
	}
	var out []Mismatch
	for _, m := range g.matchers {
		for _, miss := range m.eval(reqs, r) {
			out = append(out, miss.toMismatch(m.name))
		}
	}
	return out
}

func evalSchemeAttr(reqs *mock.RequestRequirements, r *mock.Request) []constraintMiss {
	return evalString(reqs.Scheme, r.Scheme, canonicalizer{fold: true})
}

func evalMethodAttr(reqs *mock.RequestRequirements, r *mock.Request) []constraintMiss {
	return evalString(reqs.Method, r.Method, canonicalizer{fold: true})
}

func evalHostAttr(reqs *mock.RequestRequirements, r *mock.Request) []constraintMiss {
	return evalString(reqs.Host, r.Host, canonicalizer{fold: true, hostAlias: true})
}

func evalPathAttr(reqs *mock.RequestRequirements, r *mock.Request) []constraintMiss {
	return evalString(reqs.Path, r.Path, canonicalizer{})
}

func evalPortAttr(reqs *mock.RequestRequirements, r *mock.Request) []constraintMiss {
	c := reqs.Port
	if c.Empty() {
		return nil
	}
	var misses []constraintMiss
	actual := strconv.Itoa(r.Port)
	if c.Equals != nil && *c.Equals != r.Port {
		want := strconv.Itoa(*c.Equals)
		misses = append(misses, constraintMiss{
			kind:     KindEquals,
			expected: want,
			actual:   actual,
			distance: editDistance(want, actual),
		})
	}
	if c.NotEquals != nil && *c.NotEquals == r.Port {
		want := strconv.Itoa(*c.NotEquals)
		misses = append(misses, constraintMiss{
			kind:     KindNotEquals,
			expected: want,
			actual:   actual,
			distance: invertedDistance(want),
		})
	}
	return misses
}

func evalQueryAttr(reqs *mock.RequestRequirements, r *mock.Request) []constraintMiss {
	if reqs.Query.Empty() {
		return nil
	}
	return evalPairs(reqs.Query, r.Query, false)
}

func evalHeaderAttr(reqs *mock.RequestRequirements, r *mock.Request) []constraintMiss {
	if reqs.Header.Empty() {
		return nil
	}
	return evalPairs(reqs.Header, r.Headers, true)
}

func evalCookieAttr(reqs *mock.RequestRequirements, r *mock.Request) []constraintMiss {
	if reqs.Cookie.Empty() {
		return nil
	}
	return evalPairs(reqs.Cookie, r.Cookies, true)
}

func evalFormAttr(reqs *mock.RequestRequirements, r *mock.Request) []constraintMiss {
	if reqs.Form.Empty() {
		return nil
	}
	return evalPairs(reqs.Form, r.FormFields(), false)
}

func evalBodyAttr(reqs *mock.RequestRequirements, r *mock.Request) []constraintMiss {
	return evalBody(reqs.Body, r.Body)
}

func evalJSONAttr(reqs *mock.RequestRequirements, r *mock.Request) []constraintMiss {
	return evalJSON(reqs.JSONBody, r.Body)
}

func evalPredicates(reqs *mock.RequestRequirements, r *mock.Request) []constraintMiss {
	var misses []constraintMiss
	for _, entry := range reqs.Predicates() {
		got := entry.Fn(r)
		if got == entry.Expect {
			continue
		}
		kind := KindIsTrue
		if !entry.Expect {
			kind = KindIsFalse
		}
		misses = append(misses, constraintMiss{
			kind:     kind,
			expected: entry.Name,
			actual:   strconv.FormatBool(got),
			distance: predicateMissDistance,
		})
	}
	return misses
}
