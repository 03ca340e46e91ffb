package engine

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/httpmock/httpmock/pkg/mock"
	"github.com/httpmock/httpmock/pkg/recording"
)

// hopByHopHeaders are connection-scoped and never copied upstream.
var hopByHopHeaders = map[string]bool{
	"Connection":          true,
	"Proxy-Connection":    true,
	"Keep-Alive":          true,
	"Proxy-Authenticate":  true,
	"Proxy-Authorization": true,
	"Te":                  true,
	"Trailer":             true,
	"Transfer-Encoding":   true,
	"Upgrade":             true,
}

// upstreamClient executes forwarding and proxy round trips with one shared
// outbound HTTP client.
type upstreamClient struct {
	http *http.Client
}

func newUpstreamClient() *upstreamClient {
	return &upstreamClient{
		http: &http.Client{
			Timeout: 30 * time.Second,
			// Redirects are passed back to the original caller untouched.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// forwardURL joins a forwarding target base URL with the request's path and
// query.
func forwardURL(target string, req *mock.Request) string {
	base := strings.TrimSuffix(target, "/")
	var sb strings.Builder
	sb.WriteString(base)
	sb.WriteString(req.Path)
	writeQuery(&sb, req.Query)
	return sb.String()
}

// proxyURL rebuilds the absolute request URI for a proxied request.
func proxyURL(req *mock.Request) string {
	var sb strings.Builder
	sb.WriteString(req.Scheme)
	sb.WriteString("://")
	sb.WriteString(req.Host)
	if req.Port > 0 {
		sb.WriteString(":")
		sb.WriteString(strconv.Itoa(req.Port))
	}
	sb.WriteString(req.Path)
	writeQuery(&sb, req.Query)
	return sb.String()
}

func writeQuery(sb *strings.Builder, query []mock.Pair) {
	for i, p := range query {
		if i == 0 {
			sb.WriteString("?")
		} else {
			sb.WriteString("&")
		}
		sb.WriteString(url.QueryEscape(p.Key))
		sb.WriteString("=")
		sb.WriteString(url.QueryEscape(p.Value))
	}
}

// execute performs one upstream round trip and captures the full response.
// Extra headers from the rule overlay the request's own headers.
func (c *upstreamClient) execute(ctx context.Context, target string, req *mock.Request, extra []mock.Pair) (*recording.CapturedResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, bytes.NewReader(req.Body))
	if err != nil {
		return nil, &UpstreamError{Target: target, Err: err}
	}
	for _, p := range req.Headers {
		if hopByHopHeaders[http.CanonicalHeaderKey(p.Key)] || strings.EqualFold(p.Key, "Host") {
			continue
		}
		httpReq.Header.Add(p.Key, p.Value)
	}
	for _, p := range extra {
		httpReq.Header.Set(p.Key, p.Value)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, &UpstreamError{Target: target, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &UpstreamError{Target: target, Err: err}
	}

	captured := &recording.CapturedResponse{Status: resp.StatusCode, Body: body}
	names := make([]string, 0, len(resp.Header))
	for name := range resp.Header {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if hopByHopHeaders[name] {
			continue
		}
		for _, v := range resp.Header[name] {
			captured.Headers = append(captured.Headers, mock.Pair{Key: name, Value: v})
		}
	}
	return captured, nil
}
