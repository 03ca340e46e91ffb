package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/httpmock/httpmock/pkg/mock"
)

func TestEvalPairsPositiveFamilies(t *testing.T) {
	pairs := []mock.Pair{
		{Key: "Content-Type", Value: "application/json"},
		{Key: "X-Request-Id", Value: "req-42"},
		{Key: "X-Request-Id", Value: "req-43"},
	}

	tests := []struct {
		name string
		c    *mock.PairConstraints
		ok   bool
	}{
		{"equals hits any value of a repeated key", &mock.PairConstraints{
			Equals: []mock.Pair{{Key: "X-Request-Id", Value: "req-43"}},
		}, true},
		{"equals misses wrong value", &mock.PairConstraints{
			Equals: []mock.Pair{{Key: "X-Request-Id", Value: "req-99"}},
		}, false},
		{"includes on value", &mock.PairConstraints{
			Includes: []mock.Pair{{Key: "Content-Type", Value: "json"}},
		}, true},
		{"prefix on value", &mock.PairConstraints{
			Prefix: []mock.Pair{{Key: "X-Request-Id", Value: "req-"}},
		}, true},
		{"suffix on value", &mock.PairConstraints{
			Suffix: []mock.Pair{{Key: "Content-Type", Value: "/json"}},
		}, true},
		{"matches regex on key and value", &mock.PairConstraints{
			Matches: []mock.Pair{{Key: "^x-request-id$|^X-Request-Id$", Value: `^req-\d+$`}},
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			misses := evalPairs(tt.c, pairs, true)
			assert.Equal(t, tt.ok, len(misses) == 0)
		})
	}
}

func TestEvalPairsNegatedFamilies(t *testing.T) {
	pairs := []mock.Pair{
		{Key: "flag", Value: "on"},
	}

	tests := []struct {
		name string
		c    *mock.PairConstraints
		ok   bool
	}{
		{"not equals passes for other value", &mock.PairConstraints{
			NotEquals: []mock.Pair{{Key: "flag", Value: "off"}},
		}, true},
		{"not equals violated", &mock.PairConstraints{
			NotEquals: []mock.Pair{{Key: "flag", Value: "on"}},
		}, false},
		{"excludes violated by substring", &mock.PairConstraints{
			Excludes: []mock.Pair{{Key: "flag", Value: "o"}},
		}, false},
		{"prefix not passes", &mock.PairConstraints{
			PrefixNot: []mock.Pair{{Key: "flag", Value: "off"}},
		}, true},
		{"suffix not violated", &mock.PairConstraints{
			SuffixNot: []mock.Pair{{Key: "flag", Value: "n"}},
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			misses := evalPairs(tt.c, pairs, false)
			assert.Equal(t, tt.ok, len(misses) == 0)
		})
	}
}

func TestEvalPairsExistenceAndCounts(t *testing.T) {
	pairs := []mock.Pair{
		{Key: "tag", Value: "a"},
		{Key: "tag", Value: "b"},
		{Key: "other", Value: "c"},
	}

	c := &mock.PairConstraints{Exists: []string{"tag"}, Missing: []string{"absent"}}
	assert.Empty(t, evalPairs(c, pairs, false))

	c = &mock.PairConstraints{Missing: []string{"tag"}}
	misses := evalPairs(c, pairs, false)
	require.Len(t, misses, 1)
	assert.Equal(t, KindMissing, misses[0].kind)

	c = &mock.PairConstraints{Counts: []mock.CountConstraint{
		{KeyPattern: "^tag$", ValuePattern: ".*", Count: 2},
	}}
	assert.Empty(t, evalPairs(c, pairs, false))

	c = &mock.PairConstraints{Counts: []mock.CountConstraint{
		{KeyPattern: "^tag$", ValuePattern: ".*", Count: 3},
	}}
	misses = evalPairs(c, pairs, false)
	require.Len(t, misses, 1)
	assert.Equal(t, uint64(1), misses[0].distance)
}

func TestEvalPairsClosestPair(t *testing.T) {
	pairs := []mock.Pair{
		{Key: "page", Value: "2"},
		{Key: "sort", Value: "asc"},
	}

	c := &mock.PairConstraints{Equals: []mock.Pair{{Key: "page", Value: "3"}}}
	misses := evalPairs(c, pairs, false)
	require.Len(t, misses, 1)
	require.NotNil(t, misses[0].closest)
	assert.Equal(t, "page", misses[0].closest.Key)
	assert.Equal(t, "2", misses[0].closest.Value)
	assert.Equal(t, uint64(1), misses[0].distance)
}

func TestEvalPairsEmptyRequest(t *testing.T) {
	c := &mock.PairConstraints{Equals: []mock.Pair{{Key: "k", Value: "v"}}}
	misses := evalPairs(c, nil, false)
	require.Len(t, misses, 1)
	assert.Nil(t, misses[0].closest)
	assert.Equal(t, uint64(2), misses[0].distance)

	// Negated families are vacuously satisfied without pairs.
	c = &mock.PairConstraints{NotEquals: []mock.Pair{{Key: "k", Value: "v"}}, Missing: []string{"k"}}
	assert.Empty(t, evalPairs(c, nil, false))
}

func TestOperatorTruthTable(t *testing.T) {
	tests := []struct {
		op             operator
		tt, tf, ft, ff bool
	}{
		{opAnd, true, false, false, false},
		{opOr, true, true, true, false},
		{opNand, false, true, true, true},
		{opNor, false, false, false, true},
		{opImplication, true, false, true, true},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.tt, tc.op.combine(true, true))
		assert.Equal(t, tc.tf, tc.op.combine(true, false))
		assert.Equal(t, tc.ft, tc.op.combine(false, true))
		assert.Equal(t, tc.ff, tc.op.combine(false, false))
	}
}
