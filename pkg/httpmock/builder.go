package httpmock

import (
	"encoding/json"
	"fmt"

	"github.com/httpmock/httpmock/pkg/mock"
)

// When is the fluent builder for request requirements. All methods return the
// receiver so constraints chain; each call adds a constraint, it never
// replaces earlier ones.
type When struct {
	reqs *mock.RequestRequirements
}

// NewWhen returns an empty builder. The zero requirement set matches every
// request.
func NewWhen() *When {
	return &When{reqs: &mock.RequestRequirements{}}
}

// Requirements returns the accumulated requirement set.
func (w *When) Requirements() *mock.RequestRequirements {
	return w.reqs
}

func (w *When) scheme() *mock.StringConstraints {
	if w.reqs.Scheme == nil {
		w.reqs.Scheme = &mock.StringConstraints{}
	}
	return w.reqs.Scheme
}

func (w *When) method() *mock.StringConstraints {
	if w.reqs.Method == nil {
		w.reqs.Method = &mock.StringConstraints{}
	}
	return w.reqs.Method
}

func (w *When) host() *mock.StringConstraints {
	if w.reqs.Host == nil {
		w.reqs.Host = &mock.StringConstraints{}
	}
	return w.reqs.Host
}

func (w *When) port() *mock.PortConstraints {
	if w.reqs.Port == nil {
		w.reqs.Port = &mock.PortConstraints{}
	}
	return w.reqs.Port
}

func (w *When) path() *mock.StringConstraints {
	if w.reqs.Path == nil {
		w.reqs.Path = &mock.StringConstraints{}
	}
	return w.reqs.Path
}

func (w *When) query() *mock.PairConstraints {
	if w.reqs.Query == nil {
		w.reqs.Query = &mock.PairConstraints{}
	}
	return w.reqs.Query
}

func (w *When) header() *mock.PairConstraints {
	if w.reqs.Header == nil {
		w.reqs.Header = &mock.PairConstraints{}
	}
	return w.reqs.Header
}

func (w *When) cookie() *mock.PairConstraints {
	if w.reqs.Cookie == nil {
		w.reqs.Cookie = &mock.PairConstraints{}
	}
	return w.reqs.Cookie
}

func (w *When) form() *mock.PairConstraints {
	if w.reqs.Form == nil {
		w.reqs.Form = &mock.PairConstraints{}
	}
	return w.reqs.Form
}

func (w *When) body() *mock.BodyConstraints {
	if w.reqs.Body == nil {
		w.reqs.Body = &mock.BodyConstraints{}
	}
	return w.reqs.Body
}

func (w *When) jsonBody() *mock.JSONConstraints {
	if w.reqs.JSONBody == nil {
		w.reqs.JSONBody = &mock.JSONConstraints{}
	}
	return w.reqs.JSONBody
}

// Any matches every request. It exists for readability at call sites that
// deliberately constrain nothing.
func (w *When) Any() *When { return w }

func (w *When) Scheme(s string) *When {
	w.scheme().Equals = &s
	return w
}

func (w *When) SchemeNot(s string) *When {
	w.scheme().NotEquals = &s
	return w
}

func (w *When) Method(m string) *When {
	w.method().Equals = &m
	return w
}

func (w *When) MethodNot(m string) *When {
	w.method().NotEquals = &m
	return w
}

func (w *When) Host(h string) *When {
	w.host().Equals = &h
	return w
}

func (w *When) HostNot(h string) *When {
	w.host().NotEquals = &h
	return w
}

func (w *When) HostIncludes(s string) *When {
	c := w.host()
	c.Includes = append(c.Includes, s)
	return w
}

func (w *When) Port(p int) *When {
	w.port().Equals = &p
	return w
}

func (w *When) PortNot(p int) *When {
	w.port().NotEquals = &p
	return w
}

func (w *When) Path(p string) *When {
	w.path().Equals = &p
	return w
}

func (w *When) PathNot(p string) *When {
	w.path().NotEquals = &p
	return w
}

func (w *When) PathIncludes(s string) *When {
	c := w.path()
	c.Includes = append(c.Includes, s)
	return w
}

func (w *When) PathExcludes(s string) *When {
	c := w.path()
	c.Excludes = append(c.Excludes, s)
	return w
}

func (w *When) PathPrefix(s string) *When {
	c := w.path()
	c.Prefix = append(c.Prefix, s)
	return w
}

func (w *When) PathSuffix(s string) *When {
	c := w.path()
	c.Suffix = append(c.Suffix, s)
	return w
}

func (w *When) PathPrefixNot(s string) *When {
	c := w.path()
	c.PrefixNot = append(c.PrefixNot, s)
	return w
}

func (w *When) PathSuffixNot(s string) *When {
	c := w.path()
	c.SuffixNot = append(c.SuffixNot, s)
	return w
}

func (w *When) PathMatches(pattern string) *When {
	c := w.path()
	c.Matches = append(c.Matches, pattern)
	return w
}

func (w *When) QueryParam(key, value string) *When {
	c := w.query()
	c.Equals = append(c.Equals, mock.Pair{Key: key, Value: value})
	return w
}

func (w *When) QueryParamNot(key, value string) *When {
	c := w.query()
	c.NotEquals = append(c.NotEquals, mock.Pair{Key: key, Value: value})
	return w
}

func (w *When) QueryParamIncludes(key, substring string) *When {
	c := w.query()
	c.Includes = append(c.Includes, mock.Pair{Key: key, Value: substring})
	return w
}

func (w *When) QueryParamExcludes(key, substring string) *When {
	c := w.query()
	c.Excludes = append(c.Excludes, mock.Pair{Key: key, Value: substring})
	return w
}

func (w *When) QueryParamPrefix(key, prefix string) *When {
	c := w.query()
	c.Prefix = append(c.Prefix, mock.Pair{Key: key, Value: prefix})
	return w
}

func (w *When) QueryParamSuffix(key, suffix string) *When {
	c := w.query()
	c.Suffix = append(c.Suffix, mock.Pair{Key: key, Value: suffix})
	return w
}

func (w *When) QueryParamMatches(keyPattern, valuePattern string) *When {
	c := w.query()
	c.Matches = append(c.Matches, mock.Pair{Key: keyPattern, Value: valuePattern})
	return w
}

func (w *When) QueryParamExists(key string) *When {
	c := w.query()
	c.Exists = append(c.Exists, key)
	return w
}

func (w *When) QueryParamMissing(key string) *When {
	c := w.query()
	c.Missing = append(c.Missing, key)
	return w
}

// QueryParamCount requires exactly count query parameters whose key matches
// keyPattern and whose value matches valuePattern.
func (w *When) QueryParamCount(keyPattern, valuePattern string, count int) *When {
	c := w.query()
	c.Counts = append(c.Counts, mock.CountConstraint{
		KeyPattern: keyPattern, ValuePattern: valuePattern, Count: count,
	})
	return w
}

func (w *When) Header(key, value string) *When {
	c := w.header()
	c.Equals = append(c.Equals, mock.Pair{Key: key, Value: value})
	return w
}

func (w *When) HeaderNot(key, value string) *When {
	c := w.header()
	c.NotEquals = append(c.NotEquals, mock.Pair{Key: key, Value: value})
	return w
}

func (w *When) HeaderIncludes(key, substring string) *When {
	c := w.header()
	c.Includes = append(c.Includes, mock.Pair{Key: key, Value: substring})
	return w
}

func (w *When) HeaderMatches(keyPattern, valuePattern string) *When {
	c := w.header()
	c.Matches = append(c.Matches, mock.Pair{Key: keyPattern, Value: valuePattern})
	return w
}

func (w *When) HeaderExists(key string) *When {
	c := w.header()
	c.Exists = append(c.Exists, key)
	return w
}

func (w *When) HeaderMissing(key string) *When {
	c := w.header()
	c.Missing = append(c.Missing, key)
	return w
}

func (w *When) HeaderCount(keyPattern, valuePattern string, count int) *When {
	c := w.header()
	c.Counts = append(c.Counts, mock.CountConstraint{
		KeyPattern: keyPattern, ValuePattern: valuePattern, Count: count,
	})
	return w
}

func (w *When) Cookie(name, value string) *When {
	c := w.cookie()
	c.Equals = append(c.Equals, mock.Pair{Key: name, Value: value})
	return w
}

func (w *When) CookieExists(name string) *When {
	c := w.cookie()
	c.Exists = append(c.Exists, name)
	return w
}

func (w *When) CookieMissing(name string) *When {
	c := w.cookie()
	c.Missing = append(c.Missing, name)
	return w
}

func (w *When) CookieMatches(namePattern, valuePattern string) *When {
	c := w.cookie()
	c.Matches = append(c.Matches, mock.Pair{Key: namePattern, Value: valuePattern})
	return w
}

func (w *When) FormField(key, value string) *When {
	c := w.form()
	c.Equals = append(c.Equals, mock.Pair{Key: key, Value: value})
	return w
}

func (w *When) FormFieldNot(key, value string) *When {
	c := w.form()
	c.NotEquals = append(c.NotEquals, mock.Pair{Key: key, Value: value})
	return w
}

func (w *When) FormFieldExists(key string) *When {
	c := w.form()
	c.Exists = append(c.Exists, key)
	return w
}

func (w *When) Body(b []byte) *When {
	w.body().Equals = b
	return w
}

func (w *When) BodyString(s string) *When {
	return w.Body([]byte(s))
}

func (w *When) BodyNot(b []byte) *When {
	w.body().NotEquals = b
	return w
}

func (w *When) BodyIncludes(s string) *When {
	c := w.body()
	c.Includes = append(c.Includes, s)
	return w
}

func (w *When) BodyExcludes(s string) *When {
	c := w.body()
	c.Excludes = append(c.Excludes, s)
	return w
}

func (w *When) BodyPrefix(s string) *When {
	c := w.body()
	c.Prefix = append(c.Prefix, s)
	return w
}

func (w *When) BodySuffix(s string) *When {
	c := w.body()
	c.Suffix = append(c.Suffix, s)
	return w
}

func (w *When) BodyMatches(pattern string) *When {
	c := w.body()
	c.Matches = append(c.Matches, pattern)
	return w
}

// JSONBody requires the body, parsed as JSON, to be structurally equal to v
// ignoring map key order. v is marshalled immediately; a value that cannot be
// marshalled panics, as it is always a programming error in the test.
func (w *When) JSONBody(v any) *When {
	w.jsonBody().Equals = mustJSON(v)
	return w
}

// JSONBodyIncludes requires the body, parsed as JSON, to structurally contain
// v.
func (w *When) JSONBodyIncludes(v any) *When {
	c := w.jsonBody()
	c.Includes = append(c.Includes, mustJSON(v))
	return w
}

// JSONBodyExcludes requires the body, when it parses as JSON, not to contain
// v.
func (w *When) JSONBodyExcludes(v any) *When {
	c := w.jsonBody()
	c.Excludes = append(c.Excludes, mustJSON(v))
	return w
}

// JSONPath requires the JSONPath expression to select at least one node. When
// want is non-nil, some selected node must additionally equal it.
func (w *When) JSONPath(expr string, want any) *When {
	c := w.jsonBody()
	if c.Path == nil {
		c.Path = map[string]any{}
	}
	c.Path[expr] = want
	return w
}

// IsTrue attaches a user predicate that must hold. Predicates only work with
// local servers; a remote adapter rejects them.
func (w *When) IsTrue(name string, fn func(*mock.Request) bool) *When {
	w.reqs.AddPredicate(name, true, fn)
	return w
}

// IsFalse attaches a user predicate that must not hold.
func (w *When) IsFalse(name string, fn func(*mock.Request) bool) *When {
	w.reqs.AddPredicate(name, false, fn)
	return w
}

func mustJSON(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("httpmock: value cannot be marshalled to JSON: %v", err))
	}
	return raw
}

// Then is the fluent builder for the canned response.
type Then struct {
	spec *mock.ResponseSpec
}

// NewThen returns a builder with status 200 preset.
func NewThen() *Then {
	return &Then{spec: &mock.ResponseSpec{Status: 200}}
}

// Spec returns the accumulated response.
func (t *Then) Spec() *mock.ResponseSpec {
	return t.spec
}

func (t *Then) Status(code int) *Then {
	t.spec.Status = code
	return t
}

func (t *Then) Header(key, value string) *Then {
	t.spec.Headers = append(t.spec.Headers, mock.Pair{Key: key, Value: value})
	return t
}

func (t *Then) Body(b []byte) *Then {
	t.spec.Body = b
	return t
}

func (t *Then) BodyString(s string) *Then {
	return t.Body([]byte(s))
}

// JSONBody marshals v as the response body and sets the content type.
func (t *Then) JSONBody(v any) *Then {
	t.spec.Body = mustJSON(v)
	return t.Header("Content-Type", "application/json")
}

// DelayMillis sleeps for the given number of milliseconds before answering.
func (t *Then) DelayMillis(ms uint64) *Then {
	t.spec.DelayMs = ms
	return t
}
