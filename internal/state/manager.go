// Package state owns the mutable per-server state: active mocks, forwarding
// and proxy rules, recordings, and the request history. Every public
// operation takes one mutex over the whole state; no operation holds it
// across I/O.
package state

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/httpmock/httpmock/internal/matching"
	"github.com/httpmock/httpmock/pkg/history"
	"github.com/httpmock/httpmock/pkg/logging"
	"github.com/httpmock/httpmock/pkg/mock"
	"github.com/httpmock/httpmock/pkg/recording"
)

// ErrStaticMock is returned when a delete targets a static mock.
var ErrStaticMock = errors.New("static mocks cannot be deleted")

// ErrNotFound is returned when an ID does not name a stored entity.
var ErrNotFound = errors.New("not found")

// ClosestMatch is the verify result: the recorded request that came closest
// to the given requirements without satisfying them.
type ClosestMatch struct {
	Request    *mock.Request       `json:"request"`
	Mismatches []matching.Mismatch `json:"mismatches"`
	Distance   uint64              `json:"distance"`
}

// NearMiss ranks one stored mock against an unmatched request for the 404
// diagnostic body.
type NearMiss struct {
	MockID     uint64              `json:"mock_id"`
	Distance   uint64              `json:"distance"`
	Mismatches []matching.Mismatch `json:"mismatches"`
}

type recordingState struct {
	active   *mock.ActiveRecording
	captured []*mock.Definition
}

// Manager is the server state machine. The zero value is not usable; use
// NewManager.
type Manager struct {
	mu       sync.Mutex
	registry *matching.Registry
	history  *history.Store
	logger   *slog.Logger

	mocks      []*mock.ActiveMock
	nextMockID uint64

	forwarding []*mock.ActiveForwardingRule
	nextFwdID  uint64

	proxies     []*mock.ActiveProxyRule
	nextProxyID uint64

	recordings []*recordingState
	nextRecID  uint64
}

// NewManager creates a Manager with the given history capacity. A
// non-positive limit falls back to the history default.
func NewManager(historyLimit int, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Manager{
		registry: matching.NewRegistry(),
		history:  history.NewStore(historyLimit),
		logger:   logger,
	}
}

// AddMock validates and stores a definition, assigning the next mock ID.
func (m *Manager) AddMock(def *mock.Definition, static bool) (*mock.ActiveMock, error) {
	if err := mock.ValidateDefinition(def); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	active := &mock.ActiveMock{
		ID:         m.nextMockID,
		Definition: def,
		Static:     static,
	}
	m.nextMockID++
	m.mocks = append(m.mocks, active)
	m.logger.Debug("mock added", "id", active.ID, "static", static)
	return snapshotMock(active), nil
}

// FetchMock returns a copy of the mock with the given ID.
func (m *Manager) FetchMock(id uint64) (*mock.ActiveMock, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, am := range m.mocks {
		if am.ID == id {
			return snapshotMock(am), true
		}
	}
	return nil, false
}

// ListMocks returns copies of all stored mocks in insertion order.
func (m *Manager) ListMocks() []*mock.ActiveMock {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*mock.ActiveMock, len(m.mocks))
	for i, am := range m.mocks {
		out[i] = snapshotMock(am)
	}
	return out
}

// DeleteMock removes the mock with the given ID. Deleting a static mock
// fails with ErrStaticMock and leaves state unchanged.
func (m *Manager) DeleteMock(id uint64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, am := range m.mocks {
		if am.ID != id {
			continue
		}
		if am.Static {
			return false, fmt.Errorf("deleting mock %d: %w", id, ErrStaticMock)
		}
		m.mocks = append(m.mocks[:i], m.mocks[i+1:]...)
		m.logger.Debug("mock deleted", "id", id)
		return true, nil
	}
	return false, nil
}

// DeleteAllMocks removes every non-static mock.
func (m *Manager) DeleteAllMocks() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteAllMocksLocked()
}

func (m *Manager) deleteAllMocksLocked() {
	kept := m.mocks[:0]
	for _, am := range m.mocks {
		if am.Static {
			kept = append(kept, am)
		}
	}
	m.mocks = kept
}

// DeleteHistory drops all history entries.
func (m *Manager) DeleteHistory() {
	m.history.Clear()
}

// History returns the recorded requests, oldest first.
func (m *Manager) History() []*history.Entry {
	return m.history.Snapshot()
}

// ServeMock records the request into history, scans mocks in insertion
// order, and returns a copy of the first match's response after bumping its
// call counter. Returns nil when no mock matches.
func (m *Manager) ServeMock(req *mock.Request) *mock.ResponseSpec {
	m.mu.Lock()
	var matched *mock.ActiveMock
	for _, am := range m.mocks {
		if m.registry.Matches(am.Definition.Request, req) {
			matched = am
			break
		}
	}
	var matchedID *uint64
	var resp *mock.ResponseSpec
	if matched != nil {
		matched.CallCount++
		id := matched.ID
		matchedID = &id
		resp = snapshotResponse(matched.Definition.Response)
	}
	m.mu.Unlock()

	m.history.Add(req, matchedID)
	if matched != nil {
		m.logger.Debug("request matched mock", "id", *matchedID, "path", req.Path)
	} else {
		m.logger.Debug("request matched no mock", "method", req.Method, "path", req.Path)
	}
	return resp
}

// Verify scans history for entries that do not satisfy the requirements and
// returns the closest one with its mismatches. Returns nil when every
// recorded request matches, including when history is empty.
func (m *Manager) Verify(reqs *mock.RequestRequirements) *ClosestMatch {
	entries := m.history.Snapshot()

	var best *ClosestMatch
	for _, e := range entries {
		if m.registry.Matches(reqs, e.Request) {
			continue
		}
		d := m.registry.Distance(reqs, e.Request)
		if best == nil || d < best.Distance {
			best = &ClosestMatch{
				Request:    e.Request,
				Mismatches: m.registry.Mismatches(reqs, e.Request),
				Distance:   d,
			}
		}
	}
	return best
}

// NearestMisses ranks all stored mocks by distance to the request, closest
// first, for the data-plane 404 diagnostic.
func (m *Manager) NearestMisses(req *mock.Request, limit int) []NearMiss {
	m.mu.Lock()
	mocks := make([]*mock.ActiveMock, len(m.mocks))
	copy(mocks, m.mocks)
	m.mu.Unlock()

	misses := make([]NearMiss, 0, len(mocks))
	for _, am := range mocks {
		misses = append(misses, NearMiss{
			MockID:     am.ID,
			Distance:   m.registry.Distance(am.Definition.Request, req),
			Mismatches: m.registry.Mismatches(am.Definition.Request, req),
		})
	}
	sort.SliceStable(misses, func(i, j int) bool { return misses[i].Distance < misses[j].Distance })
	if limit > 0 && len(misses) > limit {
		misses = misses[:limit]
	}
	return misses
}

// AddForwardingRule stores a forwarding rule.
func (m *Manager) AddForwardingRule(spec *mock.ForwardingRuleSpec) (*mock.ActiveForwardingRule, error) {
	if spec == nil || spec.Target == "" {
		return nil, mock.Validationf("forwarding rule requires a target")
	}
	if err := mock.ValidateRequirements(spec.Request); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	rule := &mock.ActiveForwardingRule{ID: m.nextFwdID, Spec: spec}
	m.nextFwdID++
	m.forwarding = append(m.forwarding, rule)
	return rule, nil
}

// DeleteForwardingRule removes the rule with the given ID.
func (m *Manager) DeleteForwardingRule(id uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.forwarding {
		if r.ID == id {
			m.forwarding = append(m.forwarding[:i], m.forwarding[i+1:]...)
			return true
		}
	}
	return false
}

// FindForwardRule returns the first forwarding rule matching the request,
// in insertion order.
func (m *Manager) FindForwardRule(req *mock.Request) *mock.ActiveForwardingRule {
	m.mu.Lock()
	rules := make([]*mock.ActiveForwardingRule, len(m.forwarding))
	copy(rules, m.forwarding)
	m.mu.Unlock()

	for _, r := range rules {
		if m.registry.Matches(r.Spec.Request, req) {
			return r
		}
	}
	return nil
}

// AddProxyRule stores a proxy rule.
func (m *Manager) AddProxyRule(spec *mock.ProxyRuleSpec) (*mock.ActiveProxyRule, error) {
	if spec == nil {
		return nil, mock.Validationf("proxy rule spec is required")
	}
	if err := mock.ValidateRequirements(spec.Request); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	rule := &mock.ActiveProxyRule{ID: m.nextProxyID, Spec: spec}
	m.nextProxyID++
	m.proxies = append(m.proxies, rule)
	return rule, nil
}

// DeleteProxyRule removes the rule with the given ID.
func (m *Manager) DeleteProxyRule(id uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.proxies {
		if r.ID == id {
			m.proxies = append(m.proxies[:i], m.proxies[i+1:]...)
			return true
		}
	}
	return false
}

// FindProxyRule returns the first proxy rule matching the request.
func (m *Manager) FindProxyRule(req *mock.Request) *mock.ActiveProxyRule {
	m.mu.Lock()
	rules := make([]*mock.ActiveProxyRule, len(m.proxies))
	copy(rules, m.proxies)
	m.mu.Unlock()

	for _, r := range rules {
		if m.registry.Matches(r.Spec.Request, req) {
			return r
		}
	}
	return nil
}

// AddRecording stores a recording spec.
func (m *Manager) AddRecording(spec *mock.RecordingSpec) (*mock.ActiveRecording, error) {
	if spec == nil {
		return nil, mock.Validationf("recording spec is required")
	}
	if err := mock.ValidateRequirements(spec.Request); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	rec := &mock.ActiveRecording{ID: m.nextRecID, Spec: spec}
	m.nextRecID++
	m.recordings = append(m.recordings, &recordingState{active: rec})
	return rec, nil
}

// DeleteRecording removes the recording with the given ID along with its
// captured definitions.
func (m *Manager) DeleteRecording(id uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, rs := range m.recordings {
		if rs.active.ID == id {
			m.recordings = append(m.recordings[:i], m.recordings[i+1:]...)
			return true
		}
	}
	return false
}

// Record captures the request/response pair into every recording whose
// requirements match the request.
func (m *Manager) Record(proxied bool, elapsed time.Duration, req *mock.Request, resp *recording.CapturedResponse) {
	m.mu.Lock()
	recs := make([]*recordingState, len(m.recordings))
	copy(recs, m.recordings)
	m.mu.Unlock()

	for _, rs := range recs {
		if !m.registry.Matches(rs.active.Spec.Request, req) {
			continue
		}
		def := recording.Capture(rs.active.Spec, req, resp, elapsed, proxied)
		m.mu.Lock()
		rs.captured = append(rs.captured, def)
		m.mu.Unlock()
		m.logger.Debug("interaction recorded", "recording_id", rs.active.ID, "path", req.Path)
	}
}

// ExportRecording serializes the captured definitions of one recording.
// The boolean is false when the ID is unknown.
func (m *Manager) ExportRecording(id uint64) ([]byte, bool, error) {
	m.mu.Lock()
	var defs []*mock.Definition
	found := false
	for _, rs := range m.recordings {
		if rs.active.ID == id {
			defs = append([]*mock.Definition(nil), rs.captured...)
			found = true
			break
		}
	}
	m.mu.Unlock()

	if !found {
		return nil, false, nil
	}
	out, err := recording.Export(defs)
	if err != nil {
		return nil, true, err
	}
	return out, true, nil
}

// LoadMocksFromRecording parses an exported document and inserts each
// definition as a non-static mock, returning the new IDs.
func (m *Manager) LoadMocksFromRecording(content []byte) ([]uint64, error) {
	defs, err := recording.Load(content)
	if err != nil {
		return nil, err
	}
	ids := make([]uint64, 0, len(defs))
	for _, def := range defs {
		am, err := m.AddMock(def, false)
		if err != nil {
			return nil, err
		}
		ids = append(ids, am.ID)
	}
	return ids, nil
}

// Reset deletes all non-static mocks, history, rules, and recordings. IDs
// are not reset; they stay monotonic for the server's lifetime.
func (m *Manager) Reset() {
	m.mu.Lock()
	m.deleteAllMocksLocked()
	m.forwarding = nil
	m.proxies = nil
	m.recordings = nil
	m.mu.Unlock()
	m.history.Clear()
	m.logger.Debug("state reset")
}

// snapshotMock copies the mutable parts of an ActiveMock so callers cannot
// observe later counter updates. The definition is shared and read-only.
func snapshotMock(am *mock.ActiveMock) *mock.ActiveMock {
	c := *am
	return &c
}

func snapshotResponse(r *mock.ResponseSpec) *mock.ResponseSpec {
	if r == nil {
		return nil
	}
	c := *r
	c.Headers = append([]mock.Pair(nil), r.Headers...)
	c.Body = append([]byte(nil), r.Body...)
	return &c
}
