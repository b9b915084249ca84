// Package mcp implements the relay's MCP server: the tool surface agents
// call to exchange messages, served over stdio or streamable HTTP.
package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/wiresharks/claudecodex/internal/telemetry"
)

const (
	serverName    = "claude-codex"
	serverVersion = "0.1.0"

	// Offered to clients that request a protocol revision we don't know.
	defaultProtocolVersion = "2024-11-05"
)

// JSON-RPC 2.0 error codes.
const (
	codeParseError     = -32700
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternalError  = -32603
)

var supportedProtocolVersions = map[string]bool{
	"2024-11-05": true,
	"2025-03-26": true,
	"2025-06-18": true,
}

func negotiateProtocolVersion(requested string) string {
	if supportedProtocolVersions[requested] {
		return requested
	}
	return defaultProtocolVersion
}

type jsonrpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type jsonrpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *jsonrpcError   `json:"error,omitempty"`
}

type jsonrpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// rpcError carries a JSON-RPC error code out of dispatch. Any other error
// is reported as an internal error.
type rpcError struct {
	code int
	msg  string
}

func (e *rpcError) Error() string { return e.msg }

// Server speaks line-delimited JSON-RPC over stdio. Its dispatch is shared
// with the HTTP transport.
type Server struct {
	tools   *ToolHandler
	logger  *telemetry.Logger
	metrics *telemetry.Metrics
	in      io.Reader
	out     io.Writer
}

// NewServer creates a stdio server reading stdin and writing stdout.
func NewServer(tools *ToolHandler, logger *telemetry.Logger, metrics *telemetry.Metrics) *Server {
	return &Server{
		tools:   tools,
		logger:  logger,
		metrics: metrics,
		in:      os.Stdin,
		out:     os.Stdout,
	}
}

// SetIO replaces the transport streams, used by tests.
func (s *Server) SetIO(in io.Reader, out io.Writer) {
	s.in = in
	s.out = out
}

// Run reads requests until EOF or context cancellation. Malformed lines get
// a parse error response, they never stop the loop.
func (s *Server) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(s.in)
	scanner.Buffer(make([]byte, 0, 1024*1024), 10*1024*1024)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		s.handleLine(line)
	}
	return scanner.Err()
}

func (s *Server) handleLine(line []byte) {
	var req jsonrpcRequest
	if err := json.Unmarshal(line, &req); err != nil {
		s.writeError(nil, codeParseError, "parse error: "+err.Error())
		return
	}
	if s.metrics != nil {
		s.metrics.IncMCPRequests()
	}

	// Notifications carry no id and get no response.
	if req.ID == nil {
		s.handleNotification(&req)
		return
	}

	result, err := s.dispatch(&req)
	if err != nil {
		if re, ok := err.(*rpcError); ok {
			s.writeError(req.ID, re.code, re.msg)
		} else {
			s.writeError(req.ID, codeInternalError, err.Error())
		}
		return
	}
	s.writeResult(req.ID, result)
}

func (s *Server) handleNotification(req *jsonrpcRequest) {
	switch req.Method {
	case "notifications/initialized":
		s.logger.Debug("mcp client initialized")
	case "notifications/cancelled":
		s.logger.Debug("mcp request cancelled by client")
	default:
		s.logger.Debug("unhandled mcp notification", "method", req.Method)
	}
}

// dispatch routes a request to its handler. Tool execution failures are not
// dispatch errors, they come back as isError tool results.
func (s *Server) dispatch(req *jsonrpcRequest) (any, error) {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(req.Params)
	case "tools/list":
		return map[string]any{"tools": AllTools()}, nil
	case "tools/call":
		return s.handleToolsCall(req.Params)
	case "ping":
		return map[string]any{}, nil
	default:
		return nil, &rpcError{code: codeMethodNotFound, msg: "method not found: " + req.Method}
	}
}

// parseInitialize pulls the client name and requested protocol version out
// of initialize params. Both transports use it.
func parseInitialize(params json.RawMessage) (client string, version string, err error) {
	var init struct {
		ProtocolVersion string `json:"protocolVersion"`
		ClientInfo      struct {
			Name    string `json:"name"`
			Version string `json:"version"`
		} `json:"clientInfo"`
	}
	if len(params) > 0 {
		if uerr := json.Unmarshal(params, &init); uerr != nil {
			return "", "", &rpcError{code: codeInvalidParams, msg: "invalid initialize params: " + uerr.Error()}
		}
	}
	return init.ClientInfo.Name, negotiateProtocolVersion(init.ProtocolVersion), nil
}

func (s *Server) handleInitialize(params json.RawMessage) (any, error) {
	client, version, err := parseInitialize(params)
	if err != nil {
		return nil, err
	}
	s.logger.Info("mcp client connected", "client", client, "protocol_version", version)
	return initializeResult(version), nil
}

func initializeResult(protocolVersion string) map[string]any {
	return map[string]any{
		"protocolVersion": protocolVersion,
		"capabilities": map[string]any{
			"tools": map[string]any{},
		},
		"serverInfo": map[string]any{
			"name":    serverName,
			"version": serverVersion,
		},
	}
}

func (s *Server) handleToolsCall(params json.RawMessage) (any, error) {
	var call struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal(params, &call); err != nil {
		return nil, &rpcError{code: codeInvalidParams, msg: "invalid tools/call params: " + err.Error()}
	}
	if len(call.Arguments) == 0 {
		call.Arguments = []byte("{}")
	}

	s.logger.Debug("tool call", "tool", call.Name)
	result, err := s.tools.Call(call.Name, call.Arguments)
	if err != nil {
		s.logger.Warn("tool call failed", "tool", call.Name, "error", err)
		return toolError(err), nil
	}
	return toolResult(result)
}

// toolResult wraps a tool's return value as MCP text content.
func toolResult(result any) (any, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return nil, &rpcError{code: codeInternalError, msg: "marshal tool result: " + err.Error()}
	}
	return map[string]any{
		"content": []map[string]any{
			{"type": "text", "text": string(data)},
		},
	}, nil
}

// toolError wraps a tool failure as an isError result so the client sees
// the message instead of a protocol error.
func toolError(err error) any {
	return map[string]any{
		"content": []map[string]any{
			{"type": "text", "text": toolErrorText(err)},
		},
		"isError": true,
	}
}

func (s *Server) writeResult(id json.RawMessage, result any) {
	s.writeJSON(jsonrpcResponse{JSONRPC: "2.0", ID: id, Result: result})
}

func (s *Server) writeError(id json.RawMessage, code int, message string) {
	s.writeJSON(jsonrpcResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &jsonrpcError{Code: code, Message: message},
	})
}

func (s *Server) writeJSON(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("marshal response", "error", err)
		return
	}
	s.out.Write(data)
	s.out.Write([]byte("\n"))
}
