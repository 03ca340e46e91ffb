package mock

import (
	"encoding/json"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Pair is an ordered (key, value) tuple used for query parameters, headers,
// cookies, and form fields. Order of appearance in the request is preserved.
type Pair struct {
	Key   string `json:"key" yaml:"key"`
	Value string `json:"value" yaml:"value"`
}

// Request is an immutable snapshot of an incoming HTTP request. It is built
// once per request by the engine and cloned into history.
type Request struct {
	Scheme  string `json:"scheme"`
	Method  string `json:"method"`
	Host    string `json:"host"`
	Port    int    `json:"port"`
	Path    string `json:"path"`
	Query   []Pair `json:"query_params,omitempty"`
	Headers []Pair `json:"headers,omitempty"`
	Cookies []Pair `json:"cookies,omitempty"`
	Body    []byte `json:"-"`
}

// requestWire is the JSON transport form of Request with base64 body support.
type requestWire struct {
	Scheme     string `json:"scheme"`
	Method     string `json:"method"`
	Host       string `json:"host"`
	Port       int    `json:"port"`
	Path       string `json:"path"`
	Query      []Pair `json:"query_params,omitempty"`
	Headers    []Pair `json:"headers,omitempty"`
	Cookies    []Pair `json:"cookies,omitempty"`
	Body       string `json:"body,omitempty"`
	BodyBase64 string `json:"body_base64,omitempty"`
}

// MarshalJSON implements json.Marshaler with the *_base64 body convention.
func (r *Request) MarshalJSON() ([]byte, error) {
	w := requestWire{
		Scheme: r.Scheme, Method: r.Method, Host: r.Host, Port: r.Port,
		Path: r.Path, Query: r.Query, Headers: r.Headers, Cookies: r.Cookies,
	}
	w.Body, w.BodyBase64 = encodeBody(r.Body)
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Request) UnmarshalJSON(data []byte) error {
	var w requestWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	body, err := decodeBody(w.Body, w.BodyBase64)
	if err != nil {
		return err
	}
	*r = Request{
		Scheme: w.Scheme, Method: w.Method, Host: w.Host, Port: w.Port,
		Path: w.Path, Query: w.Query, Headers: w.Headers, Cookies: w.Cookies,
		Body: body,
	}
	return nil
}

// FromHTTP builds a Request snapshot from a decoded HTTP request. The body
// must already have been drained by the caller. The scheme and listener port
// are supplied by the connection dispatcher, which knows whether the stream
// arrived over TLS.
func FromHTTP(r *http.Request, scheme string, listenerPort int, body []byte) *Request {
	host := r.Host
	port := listenerPort
	if h, p, err := net.SplitHostPort(r.Host); err == nil {
		host = h
		if n, perr := strconv.Atoi(p); perr == nil {
			port = n
		}
	}

	req := &Request{
		Scheme: scheme,
		Method: r.Method,
		Host:   host,
		Port:   port,
		Path:   r.URL.Path,
		Query:  ParseOrderedValues(r.URL.RawQuery),
		Body:   body,
	}

	// Headers come out of net/http as a map; sort keys so snapshots are
	// deterministic, keeping per-key value order.
	names := make([]string, 0, len(r.Header))
	for name := range r.Header {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, v := range r.Header[name] {
			req.Headers = append(req.Headers, Pair{Key: name, Value: v})
		}
	}

	for _, c := range r.Cookies() {
		req.Cookies = append(req.Cookies, Pair{Key: c.Name, Value: c.Value})
	}

	return req
}

// Clone returns a deep copy of the request.
func (r *Request) Clone() *Request {
	c := *r
	c.Query = append([]Pair(nil), r.Query...)
	c.Headers = append([]Pair(nil), r.Headers...)
	c.Cookies = append([]Pair(nil), r.Cookies...)
	c.Body = append([]byte(nil), r.Body...)
	return &c
}

// URL reconstructs the request target in origin form.
func (r *Request) URL() string {
	var sb strings.Builder
	sb.WriteString(r.Scheme)
	sb.WriteString("://")
	sb.WriteString(r.Host)
	if r.Port > 0 {
		sb.WriteString(":")
		sb.WriteString(strconv.Itoa(r.Port))
	}
	sb.WriteString(r.Path)
	if len(r.Query) > 0 {
		sb.WriteString("?")
		for i, p := range r.Query {
			if i > 0 {
				sb.WriteString("&")
			}
			sb.WriteString(p.Key)
			sb.WriteString("=")
			sb.WriteString(p.Value)
		}
	}
	return sb.String()
}

// Header returns the first header value for the given name, case-insensitive.
func (r *Request) Header(name string) (string, bool) {
	for _, p := range r.Headers {
		if strings.EqualFold(p.Key, name) {
			return p.Value, true
		}
	}
	return "", false
}

// FormFields parses the body as application/x-www-form-urlencoded into an
// ordered pair list. The parse is lazy: matchers only pay for it when a form
// constraint is present.
func (r *Request) FormFields() []Pair {
	return ParseOrderedValues(string(r.Body))
}

// ParseOrderedValues decodes a urlencoded key=value string preserving the
// order of appearance. Undecodable escapes keep the raw token, matching the
// permissive behaviour servers show for query strings.
func ParseOrderedValues(raw string) []Pair {
	if raw == "" {
		return nil
	}
	var pairs []Pair
	for _, part := range strings.Split(raw, "&") {
		if part == "" {
			continue
		}
		key, value, _ := strings.Cut(part, "=")
		pairs = append(pairs, Pair{Key: unescape(key), Value: unescape(value)})
	}
	return pairs
}

func unescape(s string) string {
	if u, err := url.QueryUnescape(s); err == nil {
		return u
	}
	return s
}
