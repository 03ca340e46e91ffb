package httpmock

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/httpmock/httpmock/pkg/mock"
)

func TestWhenAccumulatesConstraints(t *testing.T) {
	when := NewWhen().
		Method("POST").
		PathPrefix("/api").
		PathIncludes("users").
		QueryParam("page", "2").
		QueryParamExists("token").
		HeaderMatches("^X-", ".+").
		Cookie("session", "abc").
		BodyIncludes("Ferris").
		JSONPath("$.user.name", "Ferris")

	r := when.Requirements()
	require.NotNil(t, r.Method)
	assert.Equal(t, "POST", *r.Method.Equals)
	assert.Equal(t, []string{"/api"}, r.Path.Prefix)
	assert.Equal(t, []string{"users"}, r.Path.Includes)
	assert.Equal(t, []mock.Pair{{Key: "page", Value: "2"}}, r.Query.Equals)
	assert.Equal(t, []string{"token"}, r.Query.Exists)
	assert.Equal(t, []mock.Pair{{Key: "^X-", Value: ".+"}}, r.Header.Matches)
	assert.Equal(t, []mock.Pair{{Key: "session", Value: "abc"}}, r.Cookie.Equals)
	assert.Equal(t, []string{"Ferris"}, r.Body.Includes)
	assert.Equal(t, "Ferris", r.JSONBody.Path["$.user.name"])
	assert.False(t, r.HasPredicates())
}

func TestWhenChainedCallsAppendInsteadOfReplace(t *testing.T) {
	when := NewWhen().PathIncludes("a").PathIncludes("b")
	assert.Equal(t, []string{"a", "b"}, when.Requirements().Path.Includes)
}

func TestWhenJSONBodyMarshalsValue(t *testing.T) {
	when := NewWhen().JSONBody(map[string]any{"name": "Ferris"})
	assert.JSONEq(t, `{"name":"Ferris"}`, string(when.Requirements().JSONBody.Equals))
}

func TestWhenPredicates(t *testing.T) {
	when := NewWhen().
		IsTrue("has body", func(r *mock.Request) bool { return len(r.Body) > 0 }).
		IsFalse("is delete", func(r *mock.Request) bool { return r.Method == "DELETE" })

	preds := when.Requirements().Predicates()
	require.Len(t, preds, 2)
	assert.True(t, preds[0].Expect)
	assert.False(t, preds[1].Expect)
}

func TestThenBuildsResponse(t *testing.T) {
	then := NewThen().
		Status(418).
		Header("X-Tea", "earl-grey").
		BodyString("short and stout").
		DelayMillis(50)

	spec := then.Spec()
	assert.Equal(t, 418, spec.Status)
	assert.Equal(t, []mock.Pair{{Key: "X-Tea", Value: "earl-grey"}}, spec.Headers)
	assert.Equal(t, []byte("short and stout"), spec.Body)
	assert.Equal(t, uint64(50), spec.DelayMs)
}

func TestThenDefaultsToStatus200(t *testing.T) {
	assert.Equal(t, 200, NewThen().Spec().Status)
}

func TestThenJSONBodySetsContentType(t *testing.T) {
	spec := NewThen().JSONBody(map[string]int{"n": 1}).Spec()
	assert.JSONEq(t, `{"n":1}`, string(spec.Body))
	require.Len(t, spec.Headers, 1)
	assert.Equal(t, "Content-Type", spec.Headers[0].Key)
}

func TestRequirementsSerializeForTheWire(t *testing.T) {
	when := NewWhen().Method("GET").Path("/hello").QueryParam("q", "1")
	raw, err := json.Marshal(when.Requirements())
	require.NoError(t, err)

	var decoded mock.RequestRequirements
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "GET", *decoded.Method.Equals)
	assert.Equal(t, "/hello", *decoded.Path.Equals)
	assert.Equal(t, []mock.Pair{{Key: "q", Value: "1"}}, decoded.Query.Equals)
}
