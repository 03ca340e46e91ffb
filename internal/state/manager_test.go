package state

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/httpmock/httpmock/pkg/mock"
	"github.com/httpmock/httpmock/pkg/recording"
)

func strPtr(s string) *string { return &s }

func pathMock(path string, status int) *mock.Definition {
	return &mock.Definition{
		Request:  &mock.RequestRequirements{Path: &mock.StringConstraints{Equals: strPtr(path)}},
		Response: &mock.ResponseSpec{Status: status},
	}
}

func getRequest(path string) *mock.Request {
	return &mock.Request{Scheme: "http", Method: "GET", Host: "localhost", Port: 5000, Path: path}
}

func TestAddMockAssignsMonotonicIDs(t *testing.T) {
	m := NewManager(0, nil)

	first, err := m.AddMock(pathMock("/a", 200), false)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), first.ID)

	second, err := m.AddMock(pathMock("/b", 200), false)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), second.ID)

	// Deleting never frees an ID for reuse.
	_, err = m.DeleteMock(second.ID)
	require.NoError(t, err)
	third, err := m.AddMock(pathMock("/c", 200), false)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), third.ID)
}

func TestAddMockValidates(t *testing.T) {
	m := NewManager(0, nil)

	def := pathMock("/x", 200)
	def.Request.Method = &mock.StringConstraints{Equals: strPtr("GET")}
	def.Request.Body = &mock.BodyConstraints{Equals: []byte("nope")}

	_, err := m.AddMock(def, false)
	var verr *mock.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestServeMockFirstMatchWinsAndCounts(t *testing.T) {
	m := NewManager(0, nil)

	first, err := m.AddMock(pathMock("/hello", 202), false)
	require.NoError(t, err)
	_, err = m.AddMock(pathMock("/hello", 500), false)
	require.NoError(t, err)

	resp := m.ServeMock(getRequest("/hello"))
	require.NotNil(t, resp)
	assert.Equal(t, 202, resp.Status)

	resp = m.ServeMock(getRequest("/hello"))
	require.NotNil(t, resp)
	assert.Equal(t, 202, resp.Status)

	fetched, ok := m.FetchMock(first.ID)
	require.True(t, ok)
	assert.Equal(t, uint64(2), fetched.CallCount)

	assert.Nil(t, m.ServeMock(getRequest("/other")))

	// Every served request lands in history, matched or not.
	assert.Len(t, m.History(), 3)
}

func TestDeleteMockStaticProtection(t *testing.T) {
	m := NewManager(0, nil)

	static, err := m.AddMock(pathMock("/static", 200), true)
	require.NoError(t, err)
	regular, err := m.AddMock(pathMock("/regular", 200), false)
	require.NoError(t, err)

	_, err = m.DeleteMock(static.ID)
	require.ErrorIs(t, err, ErrStaticMock)
	_, ok := m.FetchMock(static.ID)
	assert.True(t, ok)

	existed, err := m.DeleteMock(regular.ID)
	require.NoError(t, err)
	assert.True(t, existed)

	existed, err = m.DeleteMock(999)
	require.NoError(t, err)
	assert.False(t, existed)

	m.DeleteAllMocks()
	_, ok = m.FetchMock(static.ID)
	assert.True(t, ok, "bulk delete keeps static mocks")
}

func TestVerify(t *testing.T) {
	m := NewManager(0, nil)
	reqs := &mock.RequestRequirements{
		Path:  &mock.StringConstraints{Equals: strPtr("/foo")},
		Query: &mock.PairConstraints{Equals: []mock.Pair{{Key: "q", Value: "2"}}},
	}

	// Empty history verifies clean.
	assert.Nil(t, m.Verify(reqs))

	for i := 0; i < 5; i++ {
		r := getRequest("/foo")
		r.Query = []mock.Pair{{Key: "q", Value: "1"}}
		m.ServeMock(r)
	}

	cm := m.Verify(reqs)
	require.NotNil(t, cm)
	assert.Positive(t, cm.Distance)
	require.NotEmpty(t, cm.Mismatches)
	assert.Equal(t, "query_param", cm.Mismatches[0].Attribute)

	// A matching entry does not trip verification.
	matching := &mock.RequestRequirements{Path: &mock.StringConstraints{Equals: strPtr("/foo")}}
	assert.Nil(t, m.Verify(matching))
}

func TestVerifyPicksClosestEntry(t *testing.T) {
	m := NewManager(0, nil)
	m.ServeMock(getRequest("/completely/different"))
	m.ServeMock(getRequest("/fop"))

	cm := m.Verify(&mock.RequestRequirements{Path: &mock.StringConstraints{Equals: strPtr("/foo")}})
	require.NotNil(t, cm)
	assert.Equal(t, "/fop", cm.Request.Path)
}

func TestHistoryCapped(t *testing.T) {
	m := NewManager(3, nil)
	for i := 0; i < 10; i++ {
		m.ServeMock(getRequest("/" + strconv.Itoa(i)))
	}
	entries := m.History()
	require.Len(t, entries, 3)
	assert.Equal(t, "/7", entries[0].Request.Path)
}

func TestForwardAndProxyRuleOrdering(t *testing.T) {
	m := NewManager(0, nil)

	rule1, err := m.AddForwardingRule(&mock.ForwardingRuleSpec{
		Target:  "http://upstream-1",
		Request: &mock.RequestRequirements{Path: &mock.StringConstraints{Prefix: []string{"/api"}}},
	})
	require.NoError(t, err)
	_, err = m.AddForwardingRule(&mock.ForwardingRuleSpec{Target: "http://upstream-2"})
	require.NoError(t, err)

	found := m.FindForwardRule(getRequest("/api/x"))
	require.NotNil(t, found)
	assert.Equal(t, rule1.ID, found.ID)

	require.True(t, m.DeleteForwardingRule(rule1.ID))
	found = m.FindForwardRule(getRequest("/api/x"))
	require.NotNil(t, found)
	assert.Equal(t, "http://upstream-2", found.Spec.Target)

	_, err = m.AddForwardingRule(&mock.ForwardingRuleSpec{})
	require.Error(t, err)

	proxy, err := m.AddProxyRule(&mock.ProxyRuleSpec{})
	require.NoError(t, err)
	assert.NotNil(t, m.FindProxyRule(getRequest("/anything")))
	require.True(t, m.DeleteProxyRule(proxy.ID))
	assert.Nil(t, m.FindProxyRule(getRequest("/anything")))
}

func TestRecordingLifecycle(t *testing.T) {
	m := NewManager(0, nil)

	rec, err := m.AddRecording(&mock.RecordingSpec{
		Request: &mock.RequestRequirements{Path: &mock.StringConstraints{Prefix: []string{"/api"}}},
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(0), rec.ID)

	resp := &recording.CapturedResponse{Status: 200, Body: []byte("hi")}
	m.Record(true, 20*time.Millisecond, getRequest("/api/x"), resp)
	m.Record(true, 0, getRequest("/nope"), resp)

	out, found, err := m.ExportRecording(rec.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Contains(t, string(out), "/api/x")
	assert.NotContains(t, string(out), "/nope")

	_, found, err = m.ExportRecording(99)
	require.NoError(t, err)
	assert.False(t, found)

	ids, err := m.LoadMocksFromRecording(out)
	require.NoError(t, err)
	require.Len(t, ids, 1)

	served := m.ServeMock(getRequest("/api/x"))
	require.NotNil(t, served)
	assert.Equal(t, 200, served.Status)
	assert.Equal(t, []byte("hi"), served.Body)

	_, err = m.LoadMocksFromRecording(nil)
	var convErr *recording.DataConversionError
	require.ErrorAs(t, err, &convErr)

	require.True(t, m.DeleteRecording(rec.ID))
	assert.False(t, m.DeleteRecording(rec.ID))
}

func TestReset(t *testing.T) {
	m := NewManager(0, nil)

	static, err := m.AddMock(pathMock("/static", 200), true)
	require.NoError(t, err)
	_, err = m.AddMock(pathMock("/gone", 200), false)
	require.NoError(t, err)
	_, err = m.AddForwardingRule(&mock.ForwardingRuleSpec{Target: "http://u"})
	require.NoError(t, err)
	_, err = m.AddProxyRule(&mock.ProxyRuleSpec{})
	require.NoError(t, err)
	_, err = m.AddRecording(&mock.RecordingSpec{})
	require.NoError(t, err)
	m.ServeMock(getRequest("/x"))

	m.Reset()
	m.Reset() // idempotent

	mocks := m.ListMocks()
	require.Len(t, mocks, 1)
	assert.Equal(t, static.ID, mocks[0].ID)
	assert.Empty(t, m.History())
	assert.Nil(t, m.FindForwardRule(getRequest("/x")))
	assert.Nil(t, m.FindProxyRule(getRequest("/x")))
	_, found, err := m.ExportRecording(0)
	require.NoError(t, err)
	assert.False(t, found)

	// IDs keep climbing after reset.
	next, err := m.AddMock(pathMock("/new", 200), false)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), next.ID)
}

func TestNearestMisses(t *testing.T) {
	m := NewManager(0, nil)
	far, err := m.AddMock(pathMock("/completely/else", 200), false)
	require.NoError(t, err)
	near, err := m.AddMock(pathMock("/hellp", 200), false)
	require.NoError(t, err)

	misses := m.NearestMisses(getRequest("/hello"), 0)
	require.Len(t, misses, 2)
	assert.Equal(t, near.ID, misses[0].MockID)
	assert.Equal(t, far.ID, misses[1].MockID)
	assert.Less(t, misses[0].Distance, misses[1].Distance)

	misses = m.NearestMisses(getRequest("/hello"), 1)
	assert.Len(t, misses, 1)
}
