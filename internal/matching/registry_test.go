package matching

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/httpmock/httpmock/pkg/mock"
)

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

func sampleRequest() *mock.Request {
	return &mock.Request{
		Scheme: "http",
		Method: "POST",
		Host:   "localhost",
		Port:   5000,
		Path:   "/users/ferris",
		Query: []mock.Pair{
			{Key: "page", Value: "2"},
			{Key: "sort", Value: "asc"},
		},
		Headers: []mock.Pair{
			{Key: "Authorization", Value: "Bearer token"},
			{Key: "Content-Type", Value: "application/json"},
		},
		Cookies: []mock.Pair{
			{Key: "SESSION", Value: "abc123"},
		},
		Body: []byte(`{"name":"Ferris","age":7}`),
	}
}

func TestRegistryMatches(t *testing.T) {
	reg := NewRegistry()
	r := sampleRequest()

	tests := []struct {
		name  string
		reqs  *mock.RequestRequirements
		match bool
	}{
		{"nil requirements match everything", nil, true},
		{"empty requirements match everything", &mock.RequestRequirements{}, true},
		{
			"method equals case insensitive",
			&mock.RequestRequirements{Method: &mock.StringConstraints{Equals: strPtr("post")}},
			true,
		},
		{
			"method mismatch",
			&mock.RequestRequirements{Method: &mock.StringConstraints{Equals: strPtr("GET")}},
			false,
		},
		{
			"host alias 127.0.0.1 equals localhost",
			&mock.RequestRequirements{Host: &mock.StringConstraints{Equals: strPtr("127.0.0.1")}},
			true,
		},
		{
			"path prefix and suffix",
			&mock.RequestRequirements{Path: &mock.StringConstraints{
				Prefix: []string{"/users"},
				Suffix: []string{"ferris"},
			}},
			true,
		},
		{
			"path is case sensitive",
			&mock.RequestRequirements{Path: &mock.StringConstraints{Equals: strPtr("/Users/ferris")}},
			false,
		},
		{
			"port equals",
			&mock.RequestRequirements{Port: &mock.PortConstraints{Equals: intPtr(5000)}},
			true,
		},
		{
			"port not equals violated",
			&mock.RequestRequirements{Port: &mock.PortConstraints{NotEquals: intPtr(5000)}},
			false,
		},
		{
			"header key is case insensitive",
			&mock.RequestRequirements{Header: &mock.PairConstraints{
				Equals: []mock.Pair{{Key: "authorization", Value: "Bearer token"}},
			}},
			true,
		},
		{
			"header value is case sensitive",
			&mock.RequestRequirements{Header: &mock.PairConstraints{
				Equals: []mock.Pair{{Key: "authorization", Value: "bearer token"}},
			}},
			false,
		},
		{
			"query param equals",
			&mock.RequestRequirements{Query: &mock.PairConstraints{
				Equals: []mock.Pair{{Key: "page", Value: "2"}},
			}},
			true,
		},
		{
			"query param key case sensitive",
			&mock.RequestRequirements{Query: &mock.PairConstraints{
				Equals: []mock.Pair{{Key: "Page", Value: "2"}},
			}},
			false,
		},
		{
			"cookie exists",
			&mock.RequestRequirements{Cookie: &mock.PairConstraints{Exists: []string{"session"}}},
			true,
		},
		{
			"cookie missing violated",
			&mock.RequestRequirements{Cookie: &mock.PairConstraints{Missing: []string{"SESSION"}}},
			false,
		},
		{
			"body includes",
			&mock.RequestRequirements{Body: &mock.BodyConstraints{Includes: []string{"Ferris"}}},
			true,
		},
		{
			"json equals ignores key order",
			&mock.RequestRequirements{JSONBody: &mock.JSONConstraints{
				Equals: []byte(`{"age":7,"name":"Ferris"}`),
			}},
			true,
		},
		{
			"json includes partial",
			&mock.RequestRequirements{JSONBody: &mock.JSONConstraints{
				Includes: []json.RawMessage{json.RawMessage(`{"name":"Ferris"}`)},
			}},
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.match, reg.Matches(tt.reqs, r))
		})
	}
}

func TestHostAliasOnlyAppliesToEquality(t *testing.T) {
	reg := NewRegistry()
	r := sampleRequest()
	r.Host = "127.0.0.1"

	equals := &mock.RequestRequirements{Host: &mock.StringConstraints{Equals: strPtr("localhost")}}
	assert.True(t, reg.Matches(equals, r))

	// Windowed families see the host as sent, not the alias.
	includes := &mock.RequestRequirements{Host: &mock.StringConstraints{Includes: []string{"127"}}}
	assert.True(t, reg.Matches(includes, r))

	prefix := &mock.RequestRequirements{Host: &mock.StringConstraints{Prefix: []string{"127.0"}}}
	assert.True(t, reg.Matches(prefix, r))

	aliased := &mock.RequestRequirements{Host: &mock.StringConstraints{Includes: []string{"localhost"}}}
	assert.False(t, reg.Matches(aliased, r))
}

func TestDistanceZeroIffMatches(t *testing.T) {
	reg := NewRegistry()
	r := sampleRequest()

	matching := &mock.RequestRequirements{
		Method: &mock.StringConstraints{Equals: strPtr("POST")},
		Path:   &mock.StringConstraints{Equals: strPtr("/users/ferris")},
	}
	require.True(t, reg.Matches(matching, r))
	assert.Zero(t, reg.Distance(matching, r))

	miss := &mock.RequestRequirements{
		Path: &mock.StringConstraints{Equals: strPtr("/users/corro")},
	}
	require.False(t, reg.Matches(miss, r))
	assert.Positive(t, reg.Distance(miss, r))
}

func TestDistanceRanksCloserRequirements(t *testing.T) {
	reg := NewRegistry()
	r := sampleRequest()

	near := &mock.RequestRequirements{Path: &mock.StringConstraints{Equals: strPtr("/users/ferriz")}}
	far := &mock.RequestRequirements{Path: &mock.StringConstraints{Equals: strPtr("/completely/else")}}

	assert.Less(t, reg.Distance(near, r), reg.Distance(far, r))
}

func TestViolatedNegationUsesInvertedDistance(t *testing.T) {
	reg := NewRegistry()
	r := sampleRequest()

	reqs := &mock.RequestRequirements{
		Body: &mock.BodyConstraints{Excludes: []string{"Ferris"}},
	}
	require.False(t, reg.Matches(reqs, r))
	// Distance of a violated exclusion is the operand length times the
	// body weight.
	assert.Equal(t, uint64(WeightBody*len("Ferris")), reg.Distance(reqs, r))
}

func TestMismatchesCarryAttributeAndClosestPair(t *testing.T) {
	reg := NewRegistry()
	r := sampleRequest()

	reqs := &mock.RequestRequirements{
		Method: &mock.StringConstraints{Equals: strPtr("GET")},
		Query: &mock.PairConstraints{
			Equals: []mock.Pair{{Key: "page", Value: "3"}},
		},
	}

	mismatches := reg.Mismatches(reqs, r)
	require.Len(t, mismatches, 2)

	assert.Equal(t, "method", mismatches[0].Attribute)
	assert.Equal(t, KindEquals, mismatches[0].Kind)
	assert.Equal(t, "GET", mismatches[0].Expected)
	assert.Equal(t, "POST", mismatches[0].Actual)

	assert.Equal(t, "query_param", mismatches[1].Attribute)
	require.NotNil(t, mismatches[1].ClosestPair)
	assert.Equal(t, "page", mismatches[1].ClosestPair.Key)
	assert.True(t, mismatches[1].BestMatch)
}

func TestPredicateEvaluation(t *testing.T) {
	reg := NewRegistry()
	r := sampleRequest()

	reqs := &mock.RequestRequirements{}
	reqs.AddPredicate("has body", true, func(req *mock.Request) bool {
		return len(req.Body) > 0
	})
	assert.True(t, reg.Matches(reqs, r))

	failing := &mock.RequestRequirements{}
	failing.AddPredicate("is GET", true, func(req *mock.Request) bool {
		return req.Method == "GET"
	})
	require.False(t, reg.Matches(failing, r))

	mismatches := reg.Mismatches(failing, r)
	require.Len(t, mismatches, 1)
	assert.Equal(t, "predicates", mismatches[0].Attribute)
	assert.Equal(t, KindIsTrue, mismatches[0].Kind)
	assert.Equal(t, "is GET", mismatches[0].Expected)
}
