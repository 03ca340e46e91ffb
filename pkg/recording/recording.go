// Package recording turns served request/response pairs into reusable mock
// definitions and serializes them as a portable YAML document.
package recording

import (
	"fmt"
	"strings"
	"time"

	"github.com/httpmock/httpmock/pkg/mock"
)

// DataConversionError reports a failure to serialize or deserialize a
// recording document.
type DataConversionError struct {
	Reason string
	Err    error
}

func (e *DataConversionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("recording conversion failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("recording conversion failed: %s", e.Reason)
}

func (e *DataConversionError) Unwrap() error { return e.Err }

// CapturedResponse is the upstream answer observed while a forwarding or
// proxy rule executed.
type CapturedResponse struct {
	Status  int
	Headers []mock.Pair
	Body    []byte
}

// Capture builds one mock definition from a served request/response pair
// according to the recording spec. When the pair came through a proxy rule
// the captured requirements pin scheme, host, and port from the live request,
// so replaying the document reproduces the upstream routing.
func Capture(spec *mock.RecordingSpec, req *mock.Request, resp *CapturedResponse, elapsed time.Duration, proxied bool) *mock.Definition {
	reqs := &mock.RequestRequirements{
		Method: &mock.StringConstraints{Equals: ptr(req.Method)},
		Path:   &mock.StringConstraints{Equals: ptr(req.Path)},
	}
	if proxied {
		reqs.Scheme = &mock.StringConstraints{Equals: ptr(req.Scheme)}
		reqs.Host = &mock.StringConstraints{Equals: ptr(req.Host)}
		reqs.Port = &mock.PortConstraints{Equals: intp(req.Port)}
	}
	if len(req.Query) > 0 {
		reqs.Query = &mock.PairConstraints{Equals: append([]mock.Pair(nil), req.Query...)}
	}
	if pairs := allowedHeaders(req.Headers, spec.HeaderAllowlist); len(pairs) > 0 {
		reqs.Header = &mock.PairConstraints{Equals: pairs}
	}

	response := &mock.ResponseSpec{
		Status:  resp.Status,
		Headers: allowedHeaders(resp.Headers, spec.HeaderAllowlist),
		Body:    append([]byte(nil), resp.Body...),
	}
	if spec.RecordResponseDelays {
		response.DelayMs = uint64(elapsed.Milliseconds())
	}

	return &mock.Definition{Request: reqs, Response: response}
}

// allowedHeaders filters pairs down to names in the allowlist,
// case-insensitive. An empty allowlist captures nothing.
func allowedHeaders(pairs []mock.Pair, allowlist []string) []mock.Pair {
	if len(allowlist) == 0 {
		return nil
	}
	var out []mock.Pair
	for _, p := range pairs {
		for _, name := range allowlist {
			if strings.EqualFold(p.Key, name) {
				out = append(out, p)
				break
			}
		}
	}
	return out
}

func ptr(s string) *string { return &s }
func intp(n int) *int      { return &n }
