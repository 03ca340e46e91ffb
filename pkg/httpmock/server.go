package httpmock

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/httpmock/httpmock/pkg/config"
	"github.com/httpmock/httpmock/pkg/engine"
	"github.com/httpmock/httpmock/pkg/mock"
	"github.com/httpmock/httpmock/pkg/pool"
)

var (
	localOnce sync.Once
	localPool *pool.Pool[Adapter]

	remoteMu    sync.Mutex
	remotePools = map[string]*pool.Pool[Adapter]{}
)

func sharedLocalPool() *pool.Pool[Adapter] {
	localOnce.Do(func() {
		localPool = pool.New(config.MaxServersFromEnv(), func() (Adapter, error) {
			srv := engine.NewServer(&config.ServerConfig{})
			if err := srv.Start(); err != nil {
				return nil, fmt.Errorf("start mock server: %w", err)
			}
			return NewLocalAdapter(srv), nil
		})
	})
	return localPool
}

func sharedRemotePool(addr string) *pool.Pool[Adapter] {
	remoteMu.Lock()
	defer remoteMu.Unlock()
	if p, ok := remotePools[addr]; ok {
		return p
	}
	p := pool.New(1, func() (Adapter, error) {
		adapter, err := NewRemoteAdapter(addr)
		if err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := adapter.Ping(ctx); err != nil {
			return nil, fmt.Errorf("mock server at %s is not reachable: %w", addr, err)
		}
		return adapter, nil
	})
	remotePools[addr] = p
	return p
}

// MockServer is a borrowed server handle. Close returns the server to its
// pool so a later Start or Connect can reuse it.
type MockServer struct {
	adapter Adapter
	home    *pool.Pool[Adapter]

	mu     sync.Mutex
	closed bool
}

// Start borrows an in-process mock server from the shared local pool,
// spawning one when the pool is under its HTTPMOCK_MAX_SERVERS cap. It blocks
// while every server is borrowed by another test.
func Start() (*MockServer, error) {
	return StartContext(context.Background())
}

// StartContext is Start with a caller-controlled wait bound.
func StartContext(ctx context.Context) (*MockServer, error) {
	p := sharedLocalPool()
	adapter, err := p.Take(ctx)
	if err != nil {
		return nil, err
	}
	return &MockServer{adapter: adapter, home: p}, nil
}

// Connect borrows a handle to a standalone server at host:port. The
// per-address pool is capped at one handle, so parallel tests against the
// same server serialize.
func Connect(addr string) (*MockServer, error) {
	return ConnectContext(context.Background(), addr)
}

// ConnectContext is Connect with a caller-controlled wait bound.
func ConnectContext(ctx context.Context, addr string) (*MockServer, error) {
	p := sharedRemotePool(addr)
	adapter, err := p.Take(ctx)
	if err != nil {
		return nil, err
	}
	return &MockServer{adapter: adapter, home: p}, nil
}

// ConnectFromEnv connects to the server named by HTTPMOCK_HOST and
// HTTPMOCK_PORT, defaulting to 127.0.0.1:5000.
func ConnectFromEnv() (*MockServer, error) {
	addr := net.JoinHostPort(config.HostFromEnv(), strconv.Itoa(config.PortFromEnv()))
	return Connect(addr)
}

// Close returns the server to its pool. The server is reset asynchronously
// before the next borrower sees it, so Close never blocks the caller on a
// network round trip.
func (s *MockServer) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true

	adapter, home := s.adapter, s.home
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = adapter.Reset(ctx)
		home.Put(adapter)
	}()
}

func (s *MockServer) Host() string { return s.adapter.Host() }
func (s *MockServer) Port() int    { return s.adapter.Port() }

// Address returns host:port.
func (s *MockServer) Address() string { return s.adapter.Address() }

// BaseURL returns the plaintext base URL of the server.
func (s *MockServer) BaseURL() string {
	return "http://" + s.adapter.Address()
}

// URL joins path onto the base URL.
func (s *MockServer) URL(path string) string {
	return s.BaseURL() + path
}

// Adapter exposes the underlying adapter for callers that need the full
// control-plane surface.
func (s *MockServer) Adapter() Adapter {
	return s.adapter
}

// Mock is a created stub handle.
type Mock struct {
	server *MockServer
	id     uint64
}

// ID returns the server-assigned mock ID.
func (m *Mock) ID() uint64 { return m.id }

// Hits returns how often the stub has been served so far.
func (m *Mock) Hits(ctx context.Context) (uint64, error) {
	active, err := m.server.adapter.FetchMock(ctx, m.id)
	if err != nil {
		return 0, err
	}
	return active.CallCount, nil
}

// Delete removes the stub from the server.
func (m *Mock) Delete(ctx context.Context) error {
	return m.server.adapter.DeleteMock(ctx, m.id)
}

// Mock stores a stub described by the builder callback and returns its
// handle.
//
//	m, err := server.Mock(ctx, func(when *httpmock.When, then *httpmock.Then) {
//		when.Method("GET").Path("/hello")
//		then.Status(200).BodyString("world")
//	})
func (s *MockServer) Mock(ctx context.Context, build func(*When, *Then)) (*Mock, error) {
	when, then := NewWhen(), NewThen()
	build(when, then)
	active, err := s.adapter.CreateMock(ctx, &mock.Definition{
		Request:  when.Requirements(),
		Response: then.Spec(),
	})
	if err != nil {
		return nil, err
	}
	return &Mock{server: s, id: active.ID}, nil
}

// Verify checks that every request the server has seen satisfies the
// described requirements. On failure it returns a *VerificationError whose
// report names the closest request and each violated constraint.
func (s *MockServer) Verify(ctx context.Context, build func(*When)) error {
	when := NewWhen()
	build(when)
	closest, err := s.adapter.Verify(ctx, when.Requirements())
	if err != nil {
		return err
	}
	if closest != nil {
		return &VerificationError{Closest: closest}
	}
	return nil
}

// DeleteHistory clears the request history without touching mocks or rules.
func (s *MockServer) DeleteHistory(ctx context.Context) error {
	return s.adapter.DeleteHistory(ctx)
}

// Reset removes all non-static mocks, rules, recordings, and history.
func (s *MockServer) Reset(ctx context.Context) error {
	return s.adapter.Reset(ctx)
}

// ForwardingRule is a created forwarding rule handle.
type ForwardingRule struct {
	server *MockServer
	id     uint64
}

func (r *ForwardingRule) ID() uint64 { return r.id }

func (r *ForwardingRule) Delete(ctx context.Context) error {
	return r.server.adapter.DeleteForwardingRule(ctx, r.id)
}

// Forward installs a rule that rewrites matching requests to the target base
// URL. extraHeaders are set on the outbound request.
func (s *MockServer) Forward(ctx context.Context, target string, build func(*When), extraHeaders ...mock.Pair) (*ForwardingRule, error) {
	when := NewWhen()
	if build != nil {
		build(when)
	}
	rule, err := s.adapter.CreateForwardingRule(ctx, &mock.ForwardingRuleSpec{
		Target:  target,
		Request: when.Requirements(),
		Headers: extraHeaders,
	})
	if err != nil {
		return nil, err
	}
	return &ForwardingRule{server: s, id: rule.ID}, nil
}

// ProxyRule is a created proxy rule handle.
type ProxyRule struct {
	server *MockServer
	id     uint64
}

func (r *ProxyRule) ID() uint64 { return r.id }

func (r *ProxyRule) Delete(ctx context.Context) error {
	return r.server.adapter.DeleteProxyRule(ctx, r.id)
}

// Proxy installs a rule that relays matching requests to the host their URI
// names.
func (s *MockServer) Proxy(ctx context.Context, build func(*When), extraHeaders ...mock.Pair) (*ProxyRule, error) {
	when := NewWhen()
	if build != nil {
		build(when)
	}
	rule, err := s.adapter.CreateProxyRule(ctx, &mock.ProxyRuleSpec{
		Request: when.Requirements(),
		Headers: extraHeaders,
	})
	if err != nil {
		return nil, err
	}
	return &ProxyRule{server: s, id: rule.ID}, nil
}

// RecordOptions tunes what a recording captures.
type RecordOptions struct {
	// RecordResponseDelays captures the observed upstream latency as the
	// replayed response delay.
	RecordResponseDelays bool
	// HeaderAllowlist names the headers worth capturing. Empty means no
	// headers are captured.
	HeaderAllowlist []string
}

// Recording is a created recording handle.
type Recording struct {
	server *MockServer
	id     uint64
}

func (r *Recording) ID() uint64 { return r.id }

// Export serializes everything the recording has captured so far.
func (r *Recording) Export(ctx context.Context) ([]byte, error) {
	return r.server.adapter.ExportRecording(ctx, r.id)
}

func (r *Recording) Delete(ctx context.Context) error {
	return r.server.adapter.DeleteRecording(ctx, r.id)
}

// Record starts capturing served forward and proxy traffic whose request
// satisfies the described requirements.
func (s *MockServer) Record(ctx context.Context, opts RecordOptions, build func(*When)) (*Recording, error) {
	when := NewWhen()
	if build != nil {
		build(when)
	}
	rec, err := s.adapter.CreateRecording(ctx, &mock.RecordingSpec{
		Request:              when.Requirements(),
		RecordResponseDelays: opts.RecordResponseDelays,
		HeaderAllowlist:      opts.HeaderAllowlist,
	})
	if err != nil {
		return nil, err
	}
	return &Recording{server: s, id: rec.ID}, nil
}

// LoadRecording turns a previously exported recording document into live
// stubs and returns their IDs.
func (s *MockServer) LoadRecording(ctx context.Context, content []byte) ([]uint64, error) {
	return s.adapter.LoadRecording(ctx, content)
}
