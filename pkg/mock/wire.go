package mock

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// The wire format for request requirements accepts two shapes per field: the
// canonical nested constraint object the server emits, and the flat
// shorthand clients commonly send:
//
//	{"path": "/hello",
//	 "method": "GET",
//	 "path_includes": ["hits"],
//	 "header": [["X-A", "1"]],
//	 "query_param_exists": ["token"]}
//
// A scalar stands for equals, "<attr>_<op>" carries one constraint family,
// and pair attributes take [key, value] tuples. A single payload may mix
// both shapes.

var wireAttrs = []string{
	"scheme", "method", "host", "port", "path",
	"query_param", "header", "cookie", "form_field",
	"body", "json_body",
}

// UnmarshalJSON implements json.Unmarshaler for both wire shapes.
func (r *RequestRequirements) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	// Base attribute keys sort before their suffixed flat forms, so a
	// nested object never clobbers a flat addition to the same attribute.
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := RequestRequirements{}
	for _, key := range keys {
		if err := out.applyWireField(key, fields[key]); err != nil {
			return fmt.Errorf("request field %q: %w", key, err)
		}
	}
	*r = out
	return nil
}

func (r *RequestRequirements) applyWireField(key string, raw json.RawMessage) error {
	for _, attr := range wireAttrs {
		var op string
		switch {
		case key == attr:
		case strings.HasPrefix(key, attr+"_"):
			op = key[len(attr)+1:]
		default:
			continue
		}
		switch attr {
		case "scheme", "method", "host", "path":
			return r.applyStringField(attr, op, raw)
		case "port":
			return r.applyPortField(op, raw)
		case "query_param", "header", "cookie", "form_field":
			return r.applyPairField(attr, op, raw)
		case "body":
			return r.applyBodyField(op, raw)
		case "json_body":
			return r.applyJSONField(op, raw)
		}
	}
	// Unknown fields are ignored, matching encoding/json defaults.
	return nil
}

func (r *RequestRequirements) stringField(attr string) *StringConstraints {
	var f **StringConstraints
	switch attr {
	case "scheme":
		f = &r.Scheme
	case "method":
		f = &r.Method
	case "host":
		f = &r.Host
	default:
		f = &r.Path
	}
	if *f == nil {
		*f = &StringConstraints{}
	}
	return *f
}

func (r *RequestRequirements) pairField(attr string) *PairConstraints {
	var f **PairConstraints
	switch attr {
	case "query_param":
		f = &r.Query
	case "header":
		f = &r.Header
	case "cookie":
		f = &r.Cookie
	default:
		f = &r.Form
	}
	if *f == nil {
		*f = &PairConstraints{}
	}
	return *f
}

func (r *RequestRequirements) applyStringField(attr, op string, raw json.RawMessage) error {
	c := r.stringField(attr)
	switch op {
	case "":
		if isJSONObject(raw) {
			return json.Unmarshal(raw, c)
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		c.Equals = &s
		return nil
	case "not":
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		c.NotEquals = &s
		return nil
	}

	vals, err := decodeWireStrings(raw)
	if err != nil {
		return err
	}
	switch op {
	case "includes":
		c.Includes = append(c.Includes, vals...)
	case "excludes":
		c.Excludes = append(c.Excludes, vals...)
	case "prefix":
		c.Prefix = append(c.Prefix, vals...)
	case "suffix":
		c.Suffix = append(c.Suffix, vals...)
	case "prefix_not":
		c.PrefixNot = append(c.PrefixNot, vals...)
	case "suffix_not":
		c.SuffixNot = append(c.SuffixNot, vals...)
	case "matches":
		c.Matches = append(c.Matches, vals...)
	}
	return nil
}

func (r *RequestRequirements) applyPortField(op string, raw json.RawMessage) error {
	if r.Port == nil {
		r.Port = &PortConstraints{}
	}
	if op == "" && isJSONObject(raw) {
		return json.Unmarshal(raw, r.Port)
	}
	var n int
	if err := json.Unmarshal(raw, &n); err != nil {
		return err
	}
	if op == "not" {
		r.Port.NotEquals = &n
	} else {
		r.Port.Equals = &n
	}
	return nil
}

func (r *RequestRequirements) applyPairField(attr, op string, raw json.RawMessage) error {
	c := r.pairField(attr)
	switch op {
	case "":
		if isJSONObject(raw) {
			return json.Unmarshal(raw, c)
		}
		pairs, err := decodeWirePairs(raw)
		if err != nil {
			return err
		}
		c.Equals = append(c.Equals, pairs...)
		return nil
	case "exists", "missing":
		keys, err := decodeWireStrings(raw)
		if err != nil {
			return err
		}
		if op == "exists" {
			c.Exists = append(c.Exists, keys...)
		} else {
			c.Missing = append(c.Missing, keys...)
		}
		return nil
	case "count":
		var counts []CountConstraint
		if err := json.Unmarshal(raw, &counts); err != nil {
			return err
		}
		c.Counts = append(c.Counts, counts...)
		return nil
	}

	pairs, err := decodeWirePairs(raw)
	if err != nil {
		return err
	}
	switch op {
	case "not":
		c.NotEquals = append(c.NotEquals, pairs...)
	case "includes":
		c.Includes = append(c.Includes, pairs...)
	case "excludes":
		c.Excludes = append(c.Excludes, pairs...)
	case "prefix":
		c.Prefix = append(c.Prefix, pairs...)
	case "suffix":
		c.Suffix = append(c.Suffix, pairs...)
	case "prefix_not":
		c.PrefixNot = append(c.PrefixNot, pairs...)
	case "suffix_not":
		c.SuffixNot = append(c.SuffixNot, pairs...)
	case "matches":
		c.Matches = append(c.Matches, pairs...)
	}
	return nil
}

func (r *RequestRequirements) applyBodyField(op string, raw json.RawMessage) error {
	if r.Body == nil {
		r.Body = &BodyConstraints{}
	}
	c := r.Body
	switch op {
	case "":
		if isJSONObject(raw) {
			return json.Unmarshal(raw, c)
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		c.Equals = []byte(s)
		return nil
	case "not":
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		c.NotEquals = []byte(s)
		return nil
	}

	vals, err := decodeWireStrings(raw)
	if err != nil {
		return err
	}
	switch op {
	case "includes":
		c.Includes = append(c.Includes, vals...)
	case "excludes":
		c.Excludes = append(c.Excludes, vals...)
	case "prefix":
		c.Prefix = append(c.Prefix, vals...)
	case "suffix":
		c.Suffix = append(c.Suffix, vals...)
	case "prefix_not":
		c.PrefixNot = append(c.PrefixNot, vals...)
	case "suffix_not":
		c.SuffixNot = append(c.SuffixNot, vals...)
	case "matches":
		c.Matches = append(c.Matches, vals...)
	}
	return nil
}

func (r *RequestRequirements) applyJSONField(op string, raw json.RawMessage) error {
	if r.JSONBody == nil {
		r.JSONBody = &JSONConstraints{}
	}
	c := r.JSONBody
	switch op {
	case "":
		// An object whose keys are all constraint names is the nested
		// form; anything else is a literal body to compare against.
		if isConstraintObject(raw) {
			return json.Unmarshal(raw, c)
		}
		c.Equals = cloneRaw(raw)
	case "includes":
		vals, err := decodeWireRawList(raw)
		if err != nil {
			return err
		}
		c.Includes = append(c.Includes, vals...)
	case "excludes":
		vals, err := decodeWireRawList(raw)
		if err != nil {
			return err
		}
		c.Excludes = append(c.Excludes, vals...)
	case "path":
		paths := map[string]any{}
		if err := json.Unmarshal(raw, &paths); err != nil {
			return err
		}
		if c.Path == nil {
			c.Path = map[string]any{}
		}
		for expr, want := range paths {
			c.Path[expr] = want
		}
	}
	return nil
}

// decodeWireStrings accepts a string array or a bare string.
func decodeWireStrings(raw json.RawMessage) ([]string, error) {
	if isJSONArray(raw) {
		var out []string
		return out, json.Unmarshal(raw, &out)
	}
	var one string
	if err := json.Unmarshal(raw, &one); err != nil {
		return nil, err
	}
	return []string{one}, nil
}

// decodeWirePairs accepts a list whose elements are either [key, value]
// tuples or {"key": ..., "value": ...} objects.
func decodeWirePairs(raw json.RawMessage) ([]Pair, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}
	pairs := make([]Pair, 0, len(items))
	for _, item := range items {
		if isJSONArray(item) {
			var kv []string
			if err := json.Unmarshal(item, &kv); err != nil {
				return nil, err
			}
			if len(kv) != 2 {
				return nil, fmt.Errorf("pair tuple must have two elements, got %d", len(kv))
			}
			pairs = append(pairs, Pair{Key: kv[0], Value: kv[1]})
			continue
		}
		var p Pair
		if err := json.Unmarshal(item, &p); err != nil {
			return nil, err
		}
		pairs = append(pairs, p)
	}
	return pairs, nil
}

// decodeWireRawList accepts an array of JSON values or a single value.
func decodeWireRawList(raw json.RawMessage) ([]json.RawMessage, error) {
	if isJSONArray(raw) {
		var out []json.RawMessage
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, err
		}
		for i := range out {
			out[i] = cloneRaw(out[i])
		}
		return out, nil
	}
	return []json.RawMessage{cloneRaw(raw)}, nil
}

var jsonConstraintKeys = map[string]bool{
	"equals": true, "includes": true, "excludes": true, "path": true,
}

// isConstraintObject reports whether raw looks like a nested JSONConstraints
// object rather than a literal JSON body. A literal object body that uses
// only constraint names must be sent as {"equals": <body>} to disambiguate.
func isConstraintObject(raw json.RawMessage) bool {
	if !isJSONObject(raw) {
		return false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || len(fields) == 0 {
		return false
	}
	for key := range fields {
		if !jsonConstraintKeys[key] {
			return false
		}
	}
	return true
}

func isJSONObject(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) > 0 && t[0] == '{'
}

func isJSONArray(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) > 0 && t[0] == '['
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	return append(json.RawMessage(nil), raw...)
}
