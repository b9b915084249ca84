package mcp

import (
	"encoding/json"
	"net/http"

	"github.com/wiresharks/claudecodex/internal/telemetry"
)

const (
	sessionHeader = "Mcp-Session-Id"
	maxBodyBytes  = 10 << 20

	codeInvalidRequest = -32600
)

// HTTPHandler serves MCP over streamable HTTP in JSON response mode. Every
// POST carries one JSON-RPC message and gets one JSON reply. initialize
// opens a session and returns its id in the Mcp-Session-Id header; DELETE
// with that header ends it.
type HTTPHandler struct {
	server   *Server
	sessions *sessionRegistry
}

// NewHTTPHandler wraps a server's dispatch for HTTP clients.
func NewHTTPHandler(server *Server) *HTTPHandler {
	return &HTTPHandler{server: server, sessions: newSessionRegistry()}
}

// SessionCount reports how many sessions are open.
func (h *HTTPHandler) SessionCount() int {
	return h.sessions.count()
}

func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handlePost(w, r)
	case http.MethodDelete:
		h.handleDelete(w, r)
	default:
		// No server-initiated stream, so GET is not offered either.
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *HTTPHandler) handlePost(w http.ResponseWriter, r *http.Request) {
	if h.server.metrics != nil {
		h.server.metrics.IncMCPRequests()
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req jsonrpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeResponse(w, http.StatusBadRequest, errorResponse(nil, codeParseError, "parse error: "+err.Error()))
		return
	}

	if req.Method == "initialize" {
		h.handleInitialize(w, &req)
		return
	}

	sess := h.resolveSession(w, r)
	if sess == nil {
		return
	}

	tc := sess.trace.NextRequest()
	log := h.server.logger.WithTrace(telemetry.ContextWithTrace(r.Context(), tc))

	// Notifications are acknowledged with 202 and an empty body.
	if req.ID == nil {
		h.server.handleNotification(&req)
		log.Debug("mcp notification accepted", "method", req.Method)
		w.WriteHeader(http.StatusAccepted)
		return
	}

	log.Debug("mcp request", "method", req.Method)
	result, err := h.server.dispatch(&req)
	if err != nil {
		if re, ok := err.(*rpcError); ok {
			h.writeResponse(w, http.StatusOK, errorResponse(req.ID, re.code, re.msg))
		} else {
			h.writeResponse(w, http.StatusOK, errorResponse(req.ID, codeInternalError, err.Error()))
		}
		return
	}
	h.writeResponse(w, http.StatusOK, jsonrpcResponse{JSONRPC: "2.0", ID: req.ID, Result: result})
}

func (h *HTTPHandler) handleInitialize(w http.ResponseWriter, req *jsonrpcRequest) {
	client, version, err := parseInitialize(req.Params)
	if err != nil {
		re, ok := err.(*rpcError)
		if !ok {
			re = &rpcError{code: codeInvalidParams, msg: err.Error()}
		}
		h.writeResponse(w, http.StatusOK, errorResponse(req.ID, re.code, re.msg))
		return
	}

	sess := h.sessions.create(client)
	if h.server.metrics != nil {
		h.server.metrics.IncActiveSessions()
	}
	h.server.logger.Info("mcp session started",
		"session_id", sess.id, "client", client, "protocol_version", version)

	w.Header().Set(sessionHeader, sess.id)
	h.writeResponse(w, http.StatusOK, jsonrpcResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result:  initializeResult(version),
	})
}

func (h *HTTPHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.Header.Get(sessionHeader)
	if id == "" {
		h.writeResponse(w, http.StatusBadRequest, errorResponse(nil, codeInvalidRequest, "missing "+sessionHeader+" header"))
		return
	}
	if !h.sessions.remove(id) {
		h.writeResponse(w, http.StatusNotFound, errorResponse(nil, codeInvalidRequest, "unknown or expired session"))
		return
	}
	if h.server.metrics != nil {
		h.server.metrics.DecActiveSessions()
	}
	h.server.logger.Info("mcp session ended", "session_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// resolveSession enforces the session header on everything after
// initialize. Missing header is a 400, unknown session a 404 so clients
// know to start over.
func (h *HTTPHandler) resolveSession(w http.ResponseWriter, r *http.Request) *session {
	id := r.Header.Get(sessionHeader)
	if id == "" {
		h.writeResponse(w, http.StatusBadRequest, errorResponse(nil, codeInvalidRequest, "missing "+sessionHeader+" header"))
		return nil
	}
	sess := h.sessions.get(id)
	if sess == nil {
		h.writeResponse(w, http.StatusNotFound, errorResponse(nil, codeInvalidRequest, "unknown or expired session"))
		return nil
	}
	return sess
}

func (h *HTTPHandler) writeResponse(w http.ResponseWriter, status int, resp jsonrpcResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.server.logger.Error("write mcp response", "error", err)
	}
}

func errorResponse(id json.RawMessage, code int, message string) jsonrpcResponse {
	return jsonrpcResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &jsonrpcError{Code: code, Message: message},
	}
}
