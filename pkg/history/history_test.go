package history

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/httpmock/httpmock/pkg/mock"
)

func TestStoreAddAndSnapshot(t *testing.T) {
	s := NewStore(10)
	require.Zero(t, s.Count())

	id := uint64(3)
	e := s.Add(&mock.Request{Method: "GET", Path: "/a"}, &id)
	assert.NotEmpty(t, e.ID)
	assert.False(t, e.Timestamp.IsZero())
	require.NotNil(t, e.MatchedID)
	assert.Equal(t, uint64(3), *e.MatchedID)

	s.Add(&mock.Request{Method: "POST", Path: "/b"}, nil)

	snap := s.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "/a", snap[0].Request.Path)
	assert.Equal(t, "/b", snap[1].Request.Path)
	assert.Nil(t, snap[1].MatchedID)
}

func TestStoreFIFOEviction(t *testing.T) {
	s := NewStore(3)
	for i := 0; i < 5; i++ {
		s.Add(&mock.Request{Path: "/" + strconv.Itoa(i)}, nil)
	}
	snap := s.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, "/2", snap[0].Request.Path)
	assert.Equal(t, "/4", snap[2].Request.Path)
}

func TestStoreClonesRequests(t *testing.T) {
	r := &mock.Request{Path: "/orig", Body: []byte("x")}
	s := NewStore(10)
	s.Add(r, nil)
	r.Path = "/mutated"
	r.Body[0] = 'y'

	snap := s.Snapshot()
	assert.Equal(t, "/orig", snap[0].Request.Path)
	assert.Equal(t, []byte("x"), snap[0].Request.Body)
}

func TestStoreClearAndDefaults(t *testing.T) {
	s := NewStore(0)
	assert.Equal(t, DefaultLimit, s.Limit())

	s.Add(&mock.Request{}, nil)
	require.Equal(t, 1, s.Count())
	s.Clear()
	assert.Zero(t, s.Count())
}
