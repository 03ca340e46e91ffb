package httpmock

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/httpmock/httpmock/internal/state"
	"github.com/httpmock/httpmock/pkg/mock"
)

// RemoteAdapter speaks the control-plane protocol against a standalone mock
// server.
type RemoteAdapter struct {
	host string
	port int
	base string
	http *http.Client
}

// NewRemoteAdapter creates an adapter for the given host:port address.
func NewRemoteAdapter(addr string) (*RemoteAdapter, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid mock server address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid mock server port %q: %w", portStr, err)
	}
	return &RemoteAdapter{
		host: host,
		port: port,
		base: "http://" + addr,
		http: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (a *RemoteAdapter) Host() string    { return a.host }
func (a *RemoteAdapter) Port() int       { return a.port }
func (a *RemoteAdapter) Address() string { return net.JoinHostPort(a.host, strconv.Itoa(a.port)) }

// call performs one control-plane request and checks the status against the
// expected set. The response body is returned for decoding.
func (a *RemoteAdapter) call(ctx context.Context, method, path, contentType string, body []byte, want ...int) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.base+path, reader)
	if err != nil {
		return 0, nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("control plane request %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()
	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}

	for _, w := range want {
		if resp.StatusCode == w {
			return resp.StatusCode, out, nil
		}
	}
	return resp.StatusCode, out, fmt.Errorf("control plane %s %s: unexpected status %d: %s", method, path, resp.StatusCode, out)
}

func (a *RemoteAdapter) callJSON(ctx context.Context, method, path string, in any, want ...int) (int, []byte, error) {
	var body []byte
	if in != nil {
		var err error
		body, err = json.Marshal(in)
		if err != nil {
			return 0, nil, err
		}
	}
	return a.call(ctx, method, path, "application/json", body, want...)
}

func (a *RemoteAdapter) Ping(ctx context.Context) error {
	_, _, err := a.call(ctx, http.MethodGet, "/__httpmock__/ping", "", nil, http.StatusOK)
	return err
}

func (a *RemoteAdapter) CreateMock(ctx context.Context, def *mock.Definition) (*mock.ActiveMock, error) {
	if def != nil && def.Request != nil && def.Request.HasPredicates() {
		return nil, &InvalidMockDefinitionError{Reason: "user predicates cannot be sent to a remote server"}
	}
	_, out, err := a.callJSON(ctx, http.MethodPost, "/__httpmock__/mocks", def, http.StatusCreated)
	if err != nil {
		return nil, err
	}
	var active mock.ActiveMock
	if err := json.Unmarshal(out, &active); err != nil {
		return nil, err
	}
	return &active, nil
}

func (a *RemoteAdapter) FetchMock(ctx context.Context, id uint64) (*mock.ActiveMock, error) {
	status, out, err := a.call(ctx, http.MethodGet, mockPath(id), "", nil, http.StatusOK, http.StatusNotFound)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, ErrMockNotFound
	}
	var active mock.ActiveMock
	if err := json.Unmarshal(out, &active); err != nil {
		return nil, err
	}
	return &active, nil
}

func (a *RemoteAdapter) DeleteMock(ctx context.Context, id uint64) error {
	status, _, err := a.call(ctx, http.MethodDelete, mockPath(id), "", nil, http.StatusNoContent, http.StatusNotFound)
	if err != nil {
		return err
	}
	if status == http.StatusNotFound {
		return ErrMockNotFound
	}
	return nil
}

func (a *RemoteAdapter) DeleteAllMocks(ctx context.Context) error {
	_, _, err := a.call(ctx, http.MethodDelete, "/__httpmock__/mocks", "", nil, http.StatusNoContent)
	return err
}

// Verify posts the requirements; the wire contract answers 404 when every
// recorded request matched, 200 with the closest miss otherwise.
func (a *RemoteAdapter) Verify(ctx context.Context, reqs *mock.RequestRequirements) (*state.ClosestMatch, error) {
	if reqs != nil && reqs.HasPredicates() {
		return nil, &InvalidMockDefinitionError{Reason: "user predicates cannot be sent to a remote server"}
	}
	status, out, err := a.callJSON(ctx, http.MethodPost, "/__httpmock__/verify", reqs, http.StatusOK, http.StatusNotFound)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	var closest state.ClosestMatch
	if err := json.Unmarshal(out, &closest); err != nil {
		return nil, err
	}
	return &closest, nil
}

func (a *RemoteAdapter) DeleteHistory(ctx context.Context) error {
	_, _, err := a.call(ctx, http.MethodDelete, "/__httpmock__/history", "", nil, http.StatusNoContent)
	return err
}

func (a *RemoteAdapter) Reset(ctx context.Context) error {
	_, _, err := a.call(ctx, http.MethodDelete, "/__httpmock__/state", "", nil, http.StatusNoContent)
	return err
}

func (a *RemoteAdapter) CreateForwardingRule(ctx context.Context, spec *mock.ForwardingRuleSpec) (*mock.ActiveForwardingRule, error) {
	if spec != nil && spec.Request != nil && spec.Request.HasPredicates() {
		return nil, &InvalidMockDefinitionError{Reason: "user predicates cannot be sent to a remote server"}
	}
	_, out, err := a.callJSON(ctx, http.MethodPost, "/__httpmock__/forwarding_rules", spec, http.StatusCreated)
	if err != nil {
		return nil, err
	}
	var rule mock.ActiveForwardingRule
	if err := json.Unmarshal(out, &rule); err != nil {
		return nil, err
	}
	return &rule, nil
}

func (a *RemoteAdapter) DeleteForwardingRule(ctx context.Context, id uint64) error {
	_, _, err := a.call(ctx, http.MethodDelete, "/__httpmock__/forwarding_rules/"+formatID(id), "", nil, http.StatusNoContent)
	return err
}

func (a *RemoteAdapter) CreateProxyRule(ctx context.Context, spec *mock.ProxyRuleSpec) (*mock.ActiveProxyRule, error) {
	if spec != nil && spec.Request != nil && spec.Request.HasPredicates() {
		return nil, &InvalidMockDefinitionError{Reason: "user predicates cannot be sent to a remote server"}
	}
	_, out, err := a.callJSON(ctx, http.MethodPost, "/__httpmock__/proxy_rules", spec, http.StatusCreated)
	if err != nil {
		return nil, err
	}
	var rule mock.ActiveProxyRule
	if err := json.Unmarshal(out, &rule); err != nil {
		return nil, err
	}
	return &rule, nil
}

func (a *RemoteAdapter) DeleteProxyRule(ctx context.Context, id uint64) error {
	_, _, err := a.call(ctx, http.MethodDelete, "/__httpmock__/proxy_rules/"+formatID(id), "", nil, http.StatusNoContent)
	return err
}

func (a *RemoteAdapter) CreateRecording(ctx context.Context, spec *mock.RecordingSpec) (*mock.ActiveRecording, error) {
	if spec != nil && spec.Request != nil && spec.Request.HasPredicates() {
		return nil, &InvalidMockDefinitionError{Reason: "user predicates cannot be sent to a remote server"}
	}
	_, out, err := a.callJSON(ctx, http.MethodPost, "/__httpmock__/recordings", spec, http.StatusCreated)
	if err != nil {
		return nil, err
	}
	var rec mock.ActiveRecording
	if err := json.Unmarshal(out, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (a *RemoteAdapter) DeleteRecording(ctx context.Context, id uint64) error {
	_, _, err := a.call(ctx, http.MethodDelete, "/__httpmock__/recordings/"+formatID(id), "", nil, http.StatusNoContent)
	return err
}

func (a *RemoteAdapter) ExportRecording(ctx context.Context, id uint64) ([]byte, error) {
	_, out, err := a.call(ctx, http.MethodGet, "/__httpmock__/recordings/"+formatID(id), "", nil, http.StatusOK)
	return out, err
}

func (a *RemoteAdapter) LoadRecording(ctx context.Context, content []byte) ([]uint64, error) {
	_, out, err := a.call(ctx, http.MethodPost, "/__httpmock__/recordings", "application/yaml", content, http.StatusOK)
	if err != nil {
		return nil, err
	}
	var ids []uint64
	if err := json.Unmarshal(out, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func mockPath(id uint64) string {
	return "/__httpmock__/mocks/" + formatID(id)
}

func formatID(id uint64) string {
	return strconv.FormatUint(id, 10)
}
