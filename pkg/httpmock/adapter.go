// Package httpmock is the test-facing API: start or connect to a mock
// server, describe expected requests and canned responses with fluent
// builders, and verify what the server actually saw.
package httpmock

import (
	"context"
	"fmt"

	"github.com/httpmock/httpmock/internal/state"
	"github.com/httpmock/httpmock/pkg/mock"
)

// Adapter is the narrow interface the client uses to drive a server. The
// local adapter talks to the state manager directly; the remote adapter
// speaks the control-plane protocol over HTTP.
type Adapter interface {
	Host() string
	Port() int
	Address() string

	Ping(ctx context.Context) error
	CreateMock(ctx context.Context, def *mock.Definition) (*mock.ActiveMock, error)
	FetchMock(ctx context.Context, id uint64) (*mock.ActiveMock, error)
	DeleteMock(ctx context.Context, id uint64) error
	DeleteAllMocks(ctx context.Context) error
	Verify(ctx context.Context, reqs *mock.RequestRequirements) (*state.ClosestMatch, error)
	DeleteHistory(ctx context.Context) error
	Reset(ctx context.Context) error

	CreateForwardingRule(ctx context.Context, spec *mock.ForwardingRuleSpec) (*mock.ActiveForwardingRule, error)
	DeleteForwardingRule(ctx context.Context, id uint64) error
	CreateProxyRule(ctx context.Context, spec *mock.ProxyRuleSpec) (*mock.ActiveProxyRule, error)
	DeleteProxyRule(ctx context.Context, id uint64) error
	CreateRecording(ctx context.Context, spec *mock.RecordingSpec) (*mock.ActiveRecording, error)
	DeleteRecording(ctx context.Context, id uint64) error
	ExportRecording(ctx context.Context, id uint64) ([]byte, error)
	LoadRecording(ctx context.Context, content []byte) ([]uint64, error)
}

// ErrMockNotFound is returned when an ID does not name a stored mock.
var ErrMockNotFound = fmt.Errorf("mock not found")

// InvalidMockDefinitionError is returned when a definition cannot be
// transported, typically because it carries a user predicate that has no
// wire representation.
type InvalidMockDefinitionError struct {
	Reason string
}

func (e *InvalidMockDefinitionError) Error() string {
	return fmt.Sprintf("invalid mock definition: %s", e.Reason)
}
