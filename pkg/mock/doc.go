// Package mock defines the data model shared by the server and the test-side
// client: captured requests, request requirements (the constraint families a
// stub can express), response specifications, and the active entities the
// server tracks (mocks, forwarding rules, proxy rules, recordings).
//
// Everything in this package is a plain value type with a JSON wire form used
// by the control plane under /__httpmock__/ and a YAML form used by portable
// recording documents. Request and response bodies are raw bytes; on the JSON
// wire they travel as text when valid UTF-8 and as a parallel *_base64 field
// otherwise.
package mock
