package engine

import (
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/httpmock/httpmock/pkg/httputil"
	"github.com/httpmock/httpmock/pkg/mock"
	"github.com/httpmock/httpmock/pkg/recording"
)

// nearMissLimit bounds how many candidate mocks the 404 diagnostic lists.
const nearMissLimit = 5

// dataPlaneHandler builds the handler for one scheme. Control-plane paths
// are split off first; everything else is matched against rules and mocks.
func (s *Server) dataPlaneHandler(scheme string) http.Handler {
	control := s.controlHandler()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodConnect {
			s.handleConnect(w, r)
			return
		}
		if strings.HasPrefix(r.URL.Path, controlPrefix) {
			control.ServeHTTP(w, r)
			return
		}
		s.serveData(w, r, scheme)
	})
}

// serveData routes one data-plane request: forwarding rule first, then proxy
// rule, then stored mocks, then the 404 diagnostic.
func (s *Server) serveData(w http.ResponseWriter, r *http.Request, scheme string) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		// A failed body read must not consume a mock hit.
		s.log.Warn("reading request body failed", "error", err)
		httputil.WriteInternalError(w, "body_read_failed", "failed to read request body")
		return
	}
	req := mock.FromHTTP(r, scheme, s.Port(), body)

	if rule := s.state.FindForwardRule(req); rule != nil {
		s.executeUpstream(w, r, req, forwardURL(rule.Spec.Target, req), rule.Spec.Headers, false)
		return
	}
	if rule := s.state.FindProxyRule(req); rule != nil {
		s.executeUpstream(w, r, req, proxyURL(req), rule.Spec.Headers, true)
		return
	}

	if resp := s.state.ServeMock(req); resp != nil {
		s.writeMockResponse(w, r, resp)
		return
	}

	httputil.WriteJSON(w, http.StatusNotFound, map[string]any{
		"error":         "no mock matched the request",
		"method":        req.Method,
		"path":          req.Path,
		"nearest_mocks": s.state.NearestMisses(req, nearMissLimit),
	})
}

// executeUpstream performs the forwarding/proxy round trip and records the
// interaction. Recordings are only written after a successful round trip.
func (s *Server) executeUpstream(w http.ResponseWriter, r *http.Request, req *mock.Request, target string, extra []mock.Pair, proxied bool) {
	start := time.Now()
	captured, err := s.client.execute(r.Context(), target, req, extra)
	if err != nil {
		var ue *UpstreamError
		if errors.As(err, &ue) {
			s.log.Warn("upstream round trip failed", "target", target, "error", ue.Err)
		}
		httputil.WriteError(w, http.StatusBadGateway, "upstream_failed", err.Error())
		return
	}
	elapsed := time.Since(start)

	s.state.Record(proxied, elapsed, req, captured)
	writeCaptured(w, captured)
}

func writeCaptured(w http.ResponseWriter, resp *recording.CapturedResponse) {
	for _, p := range resp.Headers {
		w.Header().Add(p.Key, p.Value)
	}
	w.WriteHeader(resp.Status)
	_, _ = w.Write(resp.Body)
}

// writeMockResponse emits a stored response, honouring its configured delay
// as a cooperative sleep cancelled by shutdown or client disconnect.
func (s *Server) writeMockResponse(w http.ResponseWriter, r *http.Request, resp *mock.ResponseSpec) {
	if resp.DelayMs > 0 {
		select {
		case <-time.After(time.Duration(resp.DelayMs) * time.Millisecond):
		case <-r.Context().Done():
			return
		}
	}
	for _, p := range resp.Headers {
		w.Header().Add(p.Key, p.Value)
	}
	w.WriteHeader(resp.Status)
	if len(resp.Body) > 0 {
		_, _ = w.Write(resp.Body)
	}
}

// handleConnect accepts the tunnel, answers 200, and blindly copies bytes in
// both directions between the client and the CONNECT authority.
func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	target, err := net.DialTimeout("tcp", r.Host, 10*time.Second)
	if err != nil {
		httputil.WriteError(w, http.StatusBadGateway, "tunnel_failed", err.Error())
		return
	}

	hijacker, ok := w.(http.Hijacker)
	if !ok {
		_ = target.Close()
		httputil.WriteInternalError(w, "tunnel_unsupported", "connection cannot be hijacked")
		return
	}
	client, _, err := hijacker.Hijack()
	if err != nil {
		_ = target.Close()
		return
	}

	_, _ = client.Write([]byte("HTTP/1.1 200 Connection Established\r\n\r\n"))
	s.log.Debug("CONNECT tunnel opened", "authority", r.Host)

	go func() {
		defer func() { _ = client.Close() }()
		defer func() { _ = target.Close() }()
		_, _ = io.Copy(target, client)
	}()
	go func() {
		defer func() { _ = client.Close() }()
		defer func() { _ = target.Close() }()
		_, _ = io.Copy(client, target)
	}()
}
