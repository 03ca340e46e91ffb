package mock

import (
	"encoding/json"
)

// StringConstraints is the constraint family for a single-valued string
// attribute (scheme, method, host, path). Every populated field must be
// satisfied for the attribute to match.
type StringConstraints struct {
	Equals    *string  `json:"equals,omitempty" yaml:"equals,omitempty"`
	NotEquals *string  `json:"not_equals,omitempty" yaml:"notEquals,omitempty"`
	Includes  []string `json:"includes,omitempty" yaml:"includes,omitempty"`
	Excludes  []string `json:"excludes,omitempty" yaml:"excludes,omitempty"`
	Prefix    []string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	Suffix    []string `json:"suffix,omitempty" yaml:"suffix,omitempty"`
	PrefixNot []string `json:"prefix_not,omitempty" yaml:"prefixNot,omitempty"`
	SuffixNot []string `json:"suffix_not,omitempty" yaml:"suffixNot,omitempty"`
	Matches   []string `json:"matches,omitempty" yaml:"matches,omitempty"`
}

// Empty reports whether no constraint is configured.
func (c *StringConstraints) Empty() bool {
	return c == nil || (c.Equals == nil && c.NotEquals == nil &&
		len(c.Includes) == 0 && len(c.Excludes) == 0 &&
		len(c.Prefix) == 0 && len(c.Suffix) == 0 &&
		len(c.PrefixNot) == 0 && len(c.SuffixNot) == 0 &&
		len(c.Matches) == 0)
}

// PortConstraints constrains the listener port of the request.
type PortConstraints struct {
	Equals    *int `json:"equals,omitempty" yaml:"equals,omitempty"`
	NotEquals *int `json:"not_equals,omitempty" yaml:"notEquals,omitempty"`
}

// Empty reports whether no constraint is configured.
func (c *PortConstraints) Empty() bool {
	return c == nil || (c.Equals == nil && c.NotEquals == nil)
}

// CountConstraint requires exactly Count request pairs whose key matches
// KeyPattern and whose value matches ValuePattern.
type CountConstraint struct {
	KeyPattern   string `json:"key_pattern" yaml:"keyPattern"`
	ValuePattern string `json:"value_pattern" yaml:"valuePattern"`
	Count        int    `json:"count" yaml:"count"`
}

// PairConstraints is the constraint family for multi-valued attributes
// (query parameters, headers, cookies, form fields). The per-kind matching
// strategy (Presence vs Absence) and key/value operator are pinned by the
// matching engine, not configurable on the wire.
type PairConstraints struct {
	Equals    []Pair            `json:"equals,omitempty" yaml:"equals,omitempty"`
	NotEquals []Pair            `json:"not_equals,omitempty" yaml:"notEquals,omitempty"`
	Includes  []Pair            `json:"includes,omitempty" yaml:"includes,omitempty"`
	Excludes  []Pair            `json:"excludes,omitempty" yaml:"excludes,omitempty"`
	Prefix    []Pair            `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	Suffix    []Pair            `json:"suffix,omitempty" yaml:"suffix,omitempty"`
	PrefixNot []Pair            `json:"prefix_not,omitempty" yaml:"prefixNot,omitempty"`
	SuffixNot []Pair            `json:"suffix_not,omitempty" yaml:"suffixNot,omitempty"`
	Matches   []Pair            `json:"matches,omitempty" yaml:"matches,omitempty"`
	Exists    []string          `json:"exists,omitempty" yaml:"exists,omitempty"`
	Missing   []string          `json:"missing,omitempty" yaml:"missing,omitempty"`
	Counts    []CountConstraint `json:"counts,omitempty" yaml:"counts,omitempty"`
}

// Empty reports whether no constraint is configured.
func (c *PairConstraints) Empty() bool {
	return c == nil || (len(c.Equals) == 0 && len(c.NotEquals) == 0 &&
		len(c.Includes) == 0 && len(c.Excludes) == 0 &&
		len(c.Prefix) == 0 && len(c.Suffix) == 0 &&
		len(c.PrefixNot) == 0 && len(c.SuffixNot) == 0 &&
		len(c.Matches) == 0 && len(c.Exists) == 0 &&
		len(c.Missing) == 0 && len(c.Counts) == 0)
}

// BodyConstraints is the constraint family for the raw request body. The
// equals operands are bytes and travel base64-encoded when not valid UTF-8;
// the windowed operands (includes, prefix, ...) are text.
type BodyConstraints struct {
	Equals    []byte   `json:"-" yaml:"equals,omitempty"`
	NotEquals []byte   `json:"-" yaml:"notEquals,omitempty"`
	Includes  []string `json:"includes,omitempty" yaml:"includes,omitempty"`
	Excludes  []string `json:"excludes,omitempty" yaml:"excludes,omitempty"`
	Prefix    []string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	Suffix    []string `json:"suffix,omitempty" yaml:"suffix,omitempty"`
	PrefixNot []string `json:"prefix_not,omitempty" yaml:"prefixNot,omitempty"`
	SuffixNot []string `json:"suffix_not,omitempty" yaml:"suffixNot,omitempty"`
	Matches   []string `json:"matches,omitempty" yaml:"matches,omitempty"`
}

// Empty reports whether no constraint is configured.
func (c *BodyConstraints) Empty() bool {
	return c == nil || (len(c.Equals) == 0 && len(c.NotEquals) == 0 &&
		len(c.Includes) == 0 && len(c.Excludes) == 0 &&
		len(c.Prefix) == 0 && len(c.Suffix) == 0 &&
		len(c.PrefixNot) == 0 && len(c.SuffixNot) == 0 &&
		len(c.Matches) == 0)
}

type bodyConstraintsWire struct {
	Equals          string   `json:"equals,omitempty"`
	EqualsBase64    string   `json:"equals_base64,omitempty"`
	NotEquals       string   `json:"not_equals,omitempty"`
	NotEqualsBase64 string   `json:"not_equals_base64,omitempty"`
	Includes        []string `json:"includes,omitempty"`
	Excludes        []string `json:"excludes,omitempty"`
	Prefix          []string `json:"prefix,omitempty"`
	Suffix          []string `json:"suffix,omitempty"`
	PrefixNot       []string `json:"prefix_not,omitempty"`
	SuffixNot       []string `json:"suffix_not,omitempty"`
	Matches         []string `json:"matches,omitempty"`
}

// MarshalJSON implements json.Marshaler with the *_base64 body convention.
func (c *BodyConstraints) MarshalJSON() ([]byte, error) {
	w := bodyConstraintsWire{
		Includes: c.Includes, Excludes: c.Excludes,
		Prefix: c.Prefix, Suffix: c.Suffix,
		PrefixNot: c.PrefixNot, SuffixNot: c.SuffixNot,
		Matches: c.Matches,
	}
	w.Equals, w.EqualsBase64 = encodeBody(c.Equals)
	w.NotEquals, w.NotEqualsBase64 = encodeBody(c.NotEquals)
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *BodyConstraints) UnmarshalJSON(data []byte) error {
	var w bodyConstraintsWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	eq, err := decodeBody(w.Equals, w.EqualsBase64)
	if err != nil {
		return err
	}
	ne, err := decodeBody(w.NotEquals, w.NotEqualsBase64)
	if err != nil {
		return err
	}
	*c = BodyConstraints{
		Equals: eq, NotEquals: ne,
		Includes: w.Includes, Excludes: w.Excludes,
		Prefix: w.Prefix, Suffix: w.Suffix,
		PrefixNot: w.PrefixNot, SuffixNot: w.SuffixNot,
		Matches: w.Matches,
	}
	return nil
}

// JSONConstraints matches the body as parsed JSON. Equals is structural
// equality ignoring map-key order, Includes is structural containment, and
// Path maps JSONPath expressions to expected values.
type JSONConstraints struct {
	Equals   json.RawMessage   `json:"equals,omitempty" yaml:"-"`
	Includes []json.RawMessage `json:"includes,omitempty" yaml:"-"`
	Excludes []json.RawMessage `json:"excludes,omitempty" yaml:"-"`
	Path     map[string]any    `json:"path,omitempty" yaml:"path,omitempty"`
}

// Empty reports whether no constraint is configured.
func (c *JSONConstraints) Empty() bool {
	return c == nil || (len(c.Equals) == 0 && len(c.Includes) == 0 &&
		len(c.Excludes) == 0 && len(c.Path) == 0)
}

// Predicate is an opaque user predicate over the whole request. Predicates
// have no wire representation; a remote adapter must refuse to send a
// definition that carries one.
type Predicate func(*Request) bool

// PredicateEntry pairs a predicate with its expected outcome. Name is used in
// mismatch output only.
type PredicateEntry struct {
	Name   string
	Expect bool
	Fn     Predicate
}

// RequestRequirements is the bag of constraints attached to one stub, rule,
// or recording. The zero value matches every request.
type RequestRequirements struct {
	Scheme   *StringConstraints `json:"scheme,omitempty" yaml:"scheme,omitempty"`
	Method   *StringConstraints `json:"method,omitempty" yaml:"method,omitempty"`
	Host     *StringConstraints `json:"host,omitempty" yaml:"host,omitempty"`
	Port     *PortConstraints   `json:"port,omitempty" yaml:"port,omitempty"`
	Path     *StringConstraints `json:"path,omitempty" yaml:"path,omitempty"`
	Query    *PairConstraints   `json:"query_param,omitempty" yaml:"queryParam,omitempty"`
	Header   *PairConstraints   `json:"header,omitempty" yaml:"header,omitempty"`
	Cookie   *PairConstraints   `json:"cookie,omitempty" yaml:"cookie,omitempty"`
	Form     *PairConstraints   `json:"form_field,omitempty" yaml:"formField,omitempty"`
	Body     *BodyConstraints   `json:"body,omitempty" yaml:"body,omitempty"`
	JSONBody *JSONConstraints   `json:"json_body,omitempty" yaml:"jsonBody,omitempty"`

	predicates []PredicateEntry
}

// AddPredicate attaches a user predicate. expect pins whether the predicate
// must evaluate to true (is_true) or false (is_false).
func (r *RequestRequirements) AddPredicate(name string, expect bool, fn Predicate) {
	r.predicates = append(r.predicates, PredicateEntry{Name: name, Expect: expect, Fn: fn})
}

// Predicates returns the attached user predicates.
func (r *RequestRequirements) Predicates() []PredicateEntry {
	return r.predicates
}

// HasPredicates reports whether any user predicate is attached.
func (r *RequestRequirements) HasPredicates() bool {
	return len(r.predicates) > 0
}

// ResponseSpec is the canned response returned verbatim when a mock matches.
type ResponseSpec struct {
	Status  int    `json:"-" yaml:"status"`
	Headers []Pair `json:"-" yaml:"headers,omitempty"`
	Body    []byte `json:"-" yaml:"body,omitempty"`
	DelayMs uint64 `json:"-" yaml:"delayMs,omitempty"`
}

type responseWire struct {
	Status     int    `json:"status"`
	Headers    []Pair `json:"headers,omitempty"`
	Body       string `json:"body,omitempty"`
	BodyBase64 string `json:"body_base64,omitempty"`
	DelayMs    uint64 `json:"delay_ms,omitempty"`
}

// MarshalJSON implements json.Marshaler with the *_base64 body convention.
func (s *ResponseSpec) MarshalJSON() ([]byte, error) {
	w := responseWire{Status: s.Status, Headers: s.Headers, DelayMs: s.DelayMs}
	w.Body, w.BodyBase64 = encodeBody(s.Body)
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *ResponseSpec) UnmarshalJSON(data []byte) error {
	var w responseWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	body, err := decodeBody(w.Body, w.BodyBase64)
	if err != nil {
		return err
	}
	*s = ResponseSpec{Status: w.Status, Headers: w.Headers, Body: body, DelayMs: w.DelayMs}
	return nil
}

// Definition is a complete stub: what to match and what to answer.
type Definition struct {
	Request  *RequestRequirements `json:"request" yaml:"request"`
	Response *ResponseSpec        `json:"response" yaml:"response"`
}

// ActiveMock is a stored definition together with its runtime counters.
type ActiveMock struct {
	ID         uint64      `json:"id"`
	Definition *Definition `json:"definition"`
	CallCount  uint64      `json:"call_count"`
	Static     bool        `json:"static,omitempty"`
}

// ForwardingRuleSpec rewrites matching requests to a different base URL.
type ForwardingRuleSpec struct {
	Target  string               `json:"target" yaml:"target"`
	Request *RequestRequirements `json:"request,omitempty" yaml:"request,omitempty"`
	Headers []Pair               `json:"headers,omitempty" yaml:"headers,omitempty"`
}

// ActiveForwardingRule is a stored forwarding rule.
type ActiveForwardingRule struct {
	ID   uint64              `json:"id"`
	Spec *ForwardingRuleSpec `json:"spec"`
}

// ProxyRuleSpec sends matching requests to the host the request URI names.
type ProxyRuleSpec struct {
	Request *RequestRequirements `json:"request,omitempty" yaml:"request,omitempty"`
	Headers []Pair               `json:"headers,omitempty" yaml:"headers,omitempty"`
}

// ActiveProxyRule is a stored proxy rule.
type ActiveProxyRule struct {
	ID   uint64         `json:"id"`
	Spec *ProxyRuleSpec `json:"spec"`
}

// RecordingSpec selects which served traffic is captured into reusable mock
// definitions. Only headers named in HeaderAllowlist are captured.
type RecordingSpec struct {
	Request              *RequestRequirements `json:"request,omitempty" yaml:"request,omitempty"`
	RecordResponseDelays bool                 `json:"record_response_delays,omitempty" yaml:"recordResponseDelays,omitempty"`
	HeaderAllowlist      []string             `json:"header_allowlist,omitempty" yaml:"headerAllowlist,omitempty"`
}

// ActiveRecording is a stored recording spec; captured definitions live in
// the state manager.
type ActiveRecording struct {
	ID   uint64         `json:"id"`
	Spec *RecordingSpec `json:"spec"`
}
