package engine

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/httpmock/httpmock/internal/state"
	"github.com/httpmock/httpmock/pkg/httputil"
	"github.com/httpmock/httpmock/pkg/mock"
	"github.com/httpmock/httpmock/pkg/recording"
)

// controlPrefix separates the control plane from mockable traffic.
const controlPrefix = "/__httpmock__/"

// controlHandler builds the control-plane API. The status codes are a wire
// contract shared with the remote adapter; changing them breaks clients.
func (s *Server) controlHandler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /__httpmock__/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("DELETE /__httpmock__/state", func(w http.ResponseWriter, _ *http.Request) {
		s.state.Reset()
		httputil.WriteNoContent(w)
	})

	mux.HandleFunc("POST /__httpmock__/mocks", s.handleCreateMock)
	mux.HandleFunc("GET /__httpmock__/mocks", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteOK(w, s.state.ListMocks())
	})
	mux.HandleFunc("GET /__httpmock__/mocks/{id}", s.handleFetchMock)
	mux.HandleFunc("DELETE /__httpmock__/mocks/{id}", s.handleDeleteMock)
	mux.HandleFunc("DELETE /__httpmock__/mocks", func(w http.ResponseWriter, _ *http.Request) {
		s.state.DeleteAllMocks()
		httputil.WriteNoContent(w)
	})

	mux.HandleFunc("POST /__httpmock__/verify", s.handleVerify)

	mux.HandleFunc("GET /__httpmock__/history", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteOK(w, s.state.History())
	})
	mux.HandleFunc("DELETE /__httpmock__/history", func(w http.ResponseWriter, _ *http.Request) {
		s.state.DeleteHistory()
		httputil.WriteNoContent(w)
	})

	mux.HandleFunc("POST /__httpmock__/forwarding_rules", s.handleCreateForwardingRule)
	mux.HandleFunc("DELETE /__httpmock__/forwarding_rules/{id}", func(w http.ResponseWriter, r *http.Request) {
		deleteByID(w, r, s.state.DeleteForwardingRule)
	})

	mux.HandleFunc("POST /__httpmock__/proxy_rules", s.handleCreateProxyRule)
	mux.HandleFunc("DELETE /__httpmock__/proxy_rules/{id}", func(w http.ResponseWriter, r *http.Request) {
		deleteByID(w, r, s.state.DeleteProxyRule)
	})

	mux.HandleFunc("POST /__httpmock__/recordings", s.handleCreateOrLoadRecording)
	mux.HandleFunc("GET /__httpmock__/recordings/{id}", s.handleExportRecording)
	mux.HandleFunc("DELETE /__httpmock__/recordings/{id}", func(w http.ResponseWriter, r *http.Request) {
		deleteByID(w, r, s.state.DeleteRecording)
	})

	return mux
}

func parseID(r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	return id, err == nil
}

func deleteByID(w http.ResponseWriter, r *http.Request, del func(uint64) bool) {
	id, ok := parseID(r)
	if !ok {
		httputil.WriteBadRequest(w, "invalid_id", "id must be a non-negative integer")
		return
	}
	if !del(id) {
		httputil.WriteNotFound(w, "not_found", "no such id")
		return
	}
	httputil.WriteNoContent(w)
}

func (s *Server) handleCreateMock(w http.ResponseWriter, r *http.Request) {
	var def mock.Definition
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		httputil.WriteBadRequest(w, "invalid_json", err.Error())
		return
	}
	active, err := s.state.AddMock(&def, false)
	if err != nil {
		writeStateError(w, err)
		return
	}
	httputil.WriteCreated(w, active)
}

func (s *Server) handleFetchMock(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		httputil.WriteBadRequest(w, "invalid_id", "id must be a non-negative integer")
		return
	}
	active, found := s.state.FetchMock(id)
	if !found {
		httputil.WriteNotFound(w, "not_found", "no such mock")
		return
	}
	httputil.WriteOK(w, active)
}

func (s *Server) handleDeleteMock(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		httputil.WriteBadRequest(w, "invalid_id", "id must be a non-negative integer")
		return
	}
	existed, err := s.state.DeleteMock(id)
	if err != nil {
		writeStateError(w, err)
		return
	}
	if !existed {
		httputil.WriteNotFound(w, "not_found", "no such mock")
		return
	}
	httputil.WriteNoContent(w)
}

// handleVerify answers 200 with the closest non-matching recorded request,
// or 404 when every recorded request satisfies the requirements.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var reqs mock.RequestRequirements
	if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
		httputil.WriteBadRequest(w, "invalid_json", err.Error())
		return
	}
	closest := s.state.Verify(&reqs)
	if closest == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	httputil.WriteOK(w, closest)
}

func (s *Server) handleCreateForwardingRule(w http.ResponseWriter, r *http.Request) {
	var spec mock.ForwardingRuleSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		httputil.WriteBadRequest(w, "invalid_json", err.Error())
		return
	}
	rule, err := s.state.AddForwardingRule(&spec)
	if err != nil {
		writeStateError(w, err)
		return
	}
	httputil.WriteCreated(w, rule)
}

func (s *Server) handleCreateProxyRule(w http.ResponseWriter, r *http.Request) {
	var spec mock.ProxyRuleSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		httputil.WriteBadRequest(w, "invalid_json", err.Error())
		return
	}
	rule, err := s.state.AddProxyRule(&spec)
	if err != nil {
		writeStateError(w, err)
		return
	}
	httputil.WriteCreated(w, rule)
}

// handleCreateOrLoadRecording disambiguates by content type: a JSON body
// creates a recording spec (201), anything else is treated as an exported
// document to load mocks from (200 with the new IDs).
func (s *Server) handleCreateOrLoadRecording(w http.ResponseWriter, r *http.Request) {
	if strings.Contains(r.Header.Get("Content-Type"), "json") {
		var spec mock.RecordingSpec
		if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
			httputil.WriteBadRequest(w, "invalid_json", err.Error())
			return
		}
		rec, err := s.state.AddRecording(&spec)
		if err != nil {
			writeStateError(w, err)
			return
		}
		httputil.WriteCreated(w, rec)
		return
	}

	content, err := io.ReadAll(r.Body)
	if err != nil {
		httputil.WriteInternalError(w, "body_read_failed", "failed to read request body")
		return
	}
	ids, err := s.state.LoadMocksFromRecording(content)
	if err != nil {
		writeStateError(w, err)
		return
	}
	httputil.WriteOK(w, ids)
}

func (s *Server) handleExportRecording(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		httputil.WriteBadRequest(w, "invalid_id", "id must be a non-negative integer")
		return
	}
	out, found, err := s.state.ExportRecording(id)
	if err != nil {
		writeStateError(w, err)
		return
	}
	if !found {
		httputil.WriteNotFound(w, "not_found", "no such recording")
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

// writeStateError maps the error taxonomy onto wire status codes.
func writeStateError(w http.ResponseWriter, err error) {
	var verr *mock.ValidationError
	var cerr *recording.DataConversionError
	switch {
	case errors.Is(err, state.ErrStaticMock):
		httputil.WriteInternalError(w, "static_mock", err.Error())
	case errors.As(err, &verr):
		httputil.WriteBadRequest(w, "validation_failed", err.Error())
	case errors.As(err, &cerr):
		httputil.WriteBadRequest(w, "conversion_failed", err.Error())
	default:
		httputil.WriteInternalError(w, "internal_error", err.Error())
	}
}
