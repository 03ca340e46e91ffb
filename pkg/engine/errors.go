package engine

import "fmt"

// UpstreamError reports a failed outbound round trip while executing a
// forwarding or proxy rule. It surfaces to the original caller as 502.
type UpstreamError struct {
	Target string
	Err    error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream request to %s failed: %v", e.Target, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }
