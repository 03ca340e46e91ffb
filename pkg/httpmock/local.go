package httpmock

import (
	"context"
	"fmt"

	"github.com/httpmock/httpmock/internal/state"
	"github.com/httpmock/httpmock/pkg/engine"
	"github.com/httpmock/httpmock/pkg/mock"
)

// LocalAdapter drives an in-process server through its state manager
// directly, without HTTP round trips.
type LocalAdapter struct {
	server *engine.Server
}

// NewLocalAdapter wraps a started in-process server.
func NewLocalAdapter(server *engine.Server) *LocalAdapter {
	return &LocalAdapter{server: server}
}

func (a *LocalAdapter) Host() string { return a.server.Host() }
func (a *LocalAdapter) Port() int    { return a.server.Port() }
func (a *LocalAdapter) Address() string {
	return fmt.Sprintf("%s:%d", a.server.Host(), a.server.Port())
}

func (a *LocalAdapter) Ping(context.Context) error { return nil }

func (a *LocalAdapter) CreateMock(_ context.Context, def *mock.Definition) (*mock.ActiveMock, error) {
	return a.server.State().AddMock(def, false)
}

func (a *LocalAdapter) FetchMock(_ context.Context, id uint64) (*mock.ActiveMock, error) {
	am, ok := a.server.State().FetchMock(id)
	if !ok {
		return nil, ErrMockNotFound
	}
	return am, nil
}

func (a *LocalAdapter) DeleteMock(_ context.Context, id uint64) error {
	existed, err := a.server.State().DeleteMock(id)
	if err != nil {
		return err
	}
	if !existed {
		return ErrMockNotFound
	}
	return nil
}

func (a *LocalAdapter) DeleteAllMocks(context.Context) error {
	a.server.State().DeleteAllMocks()
	return nil
}

func (a *LocalAdapter) Verify(_ context.Context, reqs *mock.RequestRequirements) (*state.ClosestMatch, error) {
	return a.server.State().Verify(reqs), nil
}

func (a *LocalAdapter) DeleteHistory(context.Context) error {
	a.server.State().DeleteHistory()
	return nil
}

func (a *LocalAdapter) Reset(context.Context) error {
	a.server.State().Reset()
	return nil
}

func (a *LocalAdapter) CreateForwardingRule(_ context.Context, spec *mock.ForwardingRuleSpec) (*mock.ActiveForwardingRule, error) {
	return a.server.State().AddForwardingRule(spec)
}

func (a *LocalAdapter) DeleteForwardingRule(_ context.Context, id uint64) error {
	if !a.server.State().DeleteForwardingRule(id) {
		return fmt.Errorf("forwarding rule %d: %w", id, state.ErrNotFound)
	}
	return nil
}

func (a *LocalAdapter) CreateProxyRule(_ context.Context, spec *mock.ProxyRuleSpec) (*mock.ActiveProxyRule, error) {
	return a.server.State().AddProxyRule(spec)
}

func (a *LocalAdapter) DeleteProxyRule(_ context.Context, id uint64) error {
	if !a.server.State().DeleteProxyRule(id) {
		return fmt.Errorf("proxy rule %d: %w", id, state.ErrNotFound)
	}
	return nil
}

func (a *LocalAdapter) CreateRecording(_ context.Context, spec *mock.RecordingSpec) (*mock.ActiveRecording, error) {
	return a.server.State().AddRecording(spec)
}

func (a *LocalAdapter) DeleteRecording(_ context.Context, id uint64) error {
	if !a.server.State().DeleteRecording(id) {
		return fmt.Errorf("recording %d: %w", id, state.ErrNotFound)
	}
	return nil
}

func (a *LocalAdapter) ExportRecording(_ context.Context, id uint64) ([]byte, error) {
	out, found, err := a.server.State().ExportRecording(id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("recording %d: %w", id, state.ErrNotFound)
	}
	return out, nil
}

func (a *LocalAdapter) LoadRecording(_ context.Context, content []byte) ([]uint64, error) {
	return a.server.State().LoadMocksFromRecording(content)
}
