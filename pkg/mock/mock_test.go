package mock

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strptr(s string) *string { return &s }

func TestResponseSpecBodyRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		body []byte
		want string // which wire field carries the body
	}{
		{name: "utf8 body travels as text", body: []byte(`{"ok":true}`), want: `"body"`},
		{name: "binary body travels as base64", body: []byte{0xff, 0xfe, 0x00, 0x01}, want: `"body_base64"`},
		{name: "empty body omits both fields", body: nil, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := &ResponseSpec{Status: 200, Body: tt.body}
			data, err := json.Marshal(in)
			require.NoError(t, err)

			if tt.want != "" {
				assert.Contains(t, string(data), tt.want)
			} else {
				assert.NotContains(t, string(data), "body")
			}

			var out ResponseSpec
			require.NoError(t, json.Unmarshal(data, &out))
			assert.Equal(t, in.Status, out.Status)
			assert.Equal(t, tt.body, out.Body)
		})
	}
}

func TestBodyConstraintsRoundTrip(t *testing.T) {
	in := &BodyConstraints{
		Equals:   []byte{0x00, 0xff},
		Includes: []string{"hello"},
		Prefix:   []string{"he"},
	}
	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.Contains(t, string(data), "equals_base64")

	var out BodyConstraints
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in.Equals, out.Equals)
	assert.Equal(t, in.Includes, out.Includes)
	assert.Equal(t, in.Prefix, out.Prefix)
}

func TestRequirementsRoundTrip(t *testing.T) {
	in := &RequestRequirements{
		Method: &StringConstraints{Equals: strptr("POST")},
		Path:   &StringConstraints{Prefix: []string{"/api"}},
		Header: &PairConstraints{
			Equals: []Pair{{Key: "X-A", Value: "1"}},
			Exists: []string{"Authorization"},
		},
		JSONBody: &JSONConstraints{Equals: json.RawMessage(`{"a":1}`)},
	}
	data, err := json.Marshal(in)
	require.NoError(t, err)

	var out RequestRequirements
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "POST", *out.Method.Equals)
	assert.Equal(t, []string{"/api"}, out.Path.Prefix)
	assert.Equal(t, in.Header.Equals, out.Header.Equals)
	assert.JSONEq(t, `{"a":1}`, string(out.JSONBody.Equals))
}

func TestPredicatesAreNotSerialized(t *testing.T) {
	r := &RequestRequirements{}
	r.AddPredicate("always", true, func(*Request) bool { return true })
	require.True(t, r.HasPredicates())

	data, err := json.Marshal(r)
	require.NoError(t, err)

	var out RequestRequirements
	require.NoError(t, json.Unmarshal(data, &out))
	assert.False(t, out.HasPredicates())
}

func TestValidateDefinition(t *testing.T) {
	tests := []struct {
		name    string
		def     *Definition
		wantErr string
	}{
		{
			name:    "nil definition",
			def:     nil,
			wantErr: "definition is required",
		},
		{
			name:    "missing response",
			def:     &Definition{Request: &RequestRequirements{}},
			wantErr: "response is required",
		},
		{
			name:    "status out of range",
			def:     &Definition{Response: &ResponseSpec{Status: 42}},
			wantErr: "out of range",
		},
		{
			name: "GET with body constraint",
			def: &Definition{
				Request: &RequestRequirements{
					Method: &StringConstraints{Equals: strptr("get")},
					Body:   &BodyConstraints{Equals: []byte("x")},
				},
				Response: &ResponseSpec{Status: 200},
			},
			wantErr: "does not allow a request body",
		},
		{
			name: "HEAD with json body constraint",
			def: &Definition{
				Request: &RequestRequirements{
					Method:   &StringConstraints{Equals: strptr("HEAD")},
					JSONBody: &JSONConstraints{Equals: json.RawMessage(`1`)},
				},
				Response: &ResponseSpec{Status: 200},
			},
			wantErr: "does not allow a request body",
		},
		{
			name: "bad regex",
			def: &Definition{
				Request: &RequestRequirements{
					Path: &StringConstraints{Matches: []string{"["}},
				},
				Response: &ResponseSpec{Status: 200},
			},
			wantErr: "invalid regex",
		},
		{
			name: "valid POST with body",
			def: &Definition{
				Request: &RequestRequirements{
					Method: &StringConstraints{Equals: strptr("POST")},
					Body:   &BodyConstraints{Includes: []string{"x"}},
				},
				Response: &ResponseSpec{Status: 201},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDefinition(tt.def)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestFromHTTP(t *testing.T) {
	hr := httptest.NewRequest("POST", "http://example.test:8080/items?b=2&a=1&a=3", strings.NewReader("payload"))
	hr.Header.Set("X-Token", "abc")
	hr.Header.Add("Accept", "text/plain")
	hr.Header.Add("Accept", "application/json")

	req := FromHTTP(hr, "http", 8080, []byte("payload"))

	assert.Equal(t, "http", req.Scheme)
	assert.Equal(t, "POST", req.Method)
	assert.Equal(t, "example.test", req.Host)
	assert.Equal(t, 8080, req.Port)
	assert.Equal(t, "/items", req.Path)
	// Query order preserved as it appeared on the wire.
	assert.Equal(t, []Pair{{Key: "b", Value: "2"}, {Key: "a", Value: "1"}, {Key: "a", Value: "3"}}, req.Query)
	assert.Equal(t, []byte("payload"), req.Body)

	v, ok := req.Header("x-token")
	assert.True(t, ok)
	assert.Equal(t, "abc", v)
}

func TestFromHTTPCookies(t *testing.T) {
	hr := httptest.NewRequest("GET", "http://localhost/", nil)
	hr.Header.Set("Cookie", "session=s1; theme=dark")

	req := FromHTTP(hr, "http", 80, nil)
	assert.Equal(t, []Pair{{Key: "session", Value: "s1"}, {Key: "theme", Value: "dark"}}, req.Cookies)
}

func TestRequestClone(t *testing.T) {
	orig := &Request{
		Method: "GET",
		Query:  []Pair{{Key: "a", Value: "1"}},
		Body:   []byte("b"),
	}
	c := orig.Clone()
	c.Query[0].Value = "changed"
	c.Body[0] = 'x'

	assert.Equal(t, "1", orig.Query[0].Value)
	assert.Equal(t, byte('b'), orig.Body[0])
}

func TestParseOrderedValues(t *testing.T) {
	pairs := ParseOrderedValues("q=hello%20world&flag&q=2")
	assert.Equal(t, []Pair{
		{Key: "q", Value: "hello world"},
		{Key: "flag", Value: ""},
		{Key: "q", Value: "2"},
	}, pairs)
}

func TestRequestURL(t *testing.T) {
	r := &Request{Scheme: "https", Host: "example.test", Port: 443, Path: "/a", Query: []Pair{{Key: "q", Value: "1"}}}
	assert.Equal(t, "https://example.test:443/a?q=1", r.URL())
}
