package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/wiresharks/claudecodex/internal/store"
	"github.com/wiresharks/claudecodex/internal/telemetry"
)

type rpcTestResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  map[string]any  `json:"result"`
	Error   *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func newStdioServer(t *testing.T, seed ...string) *Server {
	t.Helper()
	st := store.New(seed, nil)
	tools := NewToolHandler(st, nil, nil)
	return NewServer(tools, telemetry.NewLogger(false), telemetry.NewMetrics())
}

// runLines feeds newline-delimited requests to a server and returns one
// decoded response per output line.
func runLines(t *testing.T, srv *Server, input string) []rpcTestResponse {
	t.Helper()
	var out bytes.Buffer
	srv.SetIO(strings.NewReader(input), &out)
	if err := srv.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	var responses []rpcTestResponse
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		if line == "" {
			continue
		}
		responses = append(responses, decodeResponse(t, []byte(line)))
	}
	return responses
}

func decodeResponse(t *testing.T, data []byte) rpcTestResponse {
	t.Helper()
	var resp rpcTestResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		t.Fatalf("decode response %q: %v", data, err)
	}
	return resp
}

// contentText digs the text payload out of a tool call result.
func contentText(t *testing.T, result map[string]any) string {
	t.Helper()
	content, ok := result["content"].([]any)
	if !ok || len(content) == 0 {
		t.Fatalf("result has no content: %v", result)
	}
	block := content[0].(map[string]any)
	if block["type"] != "text" {
		t.Fatalf("expected text content, got %v", block["type"])
	}
	return block["text"].(string)
}

func TestServer_Initialize(t *testing.T) {
	srv := newStdioServer(t, "proj-x")
	responses := runLines(t, srv,
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26","clientInfo":{"name":"claude","version":"1.0"}}}`+"\n")

	if len(responses) != 1 {
		t.Fatalf("expected 1 response, got %d", len(responses))
	}
	result := responses[0].Result
	if result["protocolVersion"] != "2025-03-26" {
		t.Errorf("expected negotiated version 2025-03-26, got %v", result["protocolVersion"])
	}
	info := result["serverInfo"].(map[string]any)
	if info["name"] != serverName {
		t.Errorf("expected server name %s, got %v", serverName, info["name"])
	}
	caps := result["capabilities"].(map[string]any)
	if _, ok := caps["tools"]; !ok {
		t.Error("expected tools capability")
	}
}

func TestServer_Initialize_UnknownVersionFallsBack(t *testing.T) {
	srv := newStdioServer(t)
	responses := runLines(t, srv,
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"1999-01-01"}}`+"\n")

	if got := responses[0].Result["protocolVersion"]; got != defaultProtocolVersion {
		t.Errorf("expected fallback to %s, got %v", defaultProtocolVersion, got)
	}
}

func TestServer_ToolsList(t *testing.T) {
	srv := newStdioServer(t)
	responses := runLines(t, srv, `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`+"\n")

	tools := responses[0].Result["tools"].([]any)
	if len(tools) != 3 {
		t.Fatalf("expected 3 tools, got %d", len(tools))
	}
}

func TestServer_PostAndFetchRoundTrip(t *testing.T) {
	srv := newStdioServer(t, "proj-x")
	input := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","clientInfo":{"name":"claude"}}}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"post_message","arguments":{"target":"proj-x","sender":"claude","text":"hello codex"}}}`,
		`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"fetch_messages","arguments":{"target":"proj-x","since_id":0}}}`,
	}, "\n") + "\n"

	responses := runLines(t, srv, input)
	if len(responses) != 3 {
		t.Fatalf("expected 3 responses (notification is silent), got %d", len(responses))
	}

	var posted struct {
		OK     bool  `json:"ok"`
		Posted int64 `json:"posted"`
	}
	if err := json.Unmarshal([]byte(contentText(t, responses[1].Result)), &posted); err != nil {
		t.Fatalf("decode post result: %v", err)
	}
	if !posted.OK || posted.Posted != 1 {
		t.Errorf("expected ok/posted 1, got %+v", posted)
	}

	var fetched struct {
		Messages []store.Message `json:"messages"`
		LatestID int64           `json:"latest_id"`
	}
	if err := json.Unmarshal([]byte(contentText(t, responses[2].Result)), &fetched); err != nil {
		t.Fatalf("decode fetch result: %v", err)
	}
	if len(fetched.Messages) != 1 || fetched.Messages[0].Text != "hello codex" {
		t.Fatalf("expected the posted message back, got %+v", fetched.Messages)
	}
	if fetched.LatestID != 1 {
		t.Errorf("expected latest_id 1, got %d", fetched.LatestID)
	}
}

func TestServer_ToolError_IsError(t *testing.T) {
	srv := newStdioServer(t, "proj-x")
	responses := runLines(t, srv,
		`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"fetch_messages","arguments":{"target":"ghost"}}}`+"\n")

	result := responses[0].Result
	if result["isError"] != true {
		t.Fatal("expected isError result")
	}
	text := contentText(t, result)
	if !strings.HasPrefix(text, "Error: [NOT_FOUND]") {
		t.Errorf("unexpected error text: %s", text)
	}
	if responses[0].Error != nil {
		t.Error("tool failures must not become protocol errors")
	}
}

func TestServer_MissingArgumentsDefaultsToEmpty(t *testing.T) {
	srv := newStdioServer(t, "proj-x")
	responses := runLines(t, srv,
		`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"list_channels"}}`+"\n")

	text := contentText(t, responses[0].Result)
	if !strings.Contains(text, `"channels":["proj-x"]`) {
		t.Errorf("expected channel listing, got %s", text)
	}
}

func TestServer_UnknownMethod(t *testing.T) {
	srv := newStdioServer(t)
	responses := runLines(t, srv, `{"jsonrpc":"2.0","id":1,"method":"resources/list"}`+"\n")

	if responses[0].Error == nil || responses[0].Error.Code != codeMethodNotFound {
		t.Fatalf("expected method not found, got %+v", responses[0].Error)
	}
}

func TestServer_ParseErrorKeepsServing(t *testing.T) {
	srv := newStdioServer(t)
	input := "this is not json\n" +
		`{"jsonrpc":"2.0","id":1,"method":"ping"}` + "\n"

	responses := runLines(t, srv, input)
	if len(responses) != 2 {
		t.Fatalf("expected 2 responses, got %d", len(responses))
	}
	if responses[0].Error == nil || responses[0].Error.Code != codeParseError {
		t.Fatalf("expected parse error, got %+v", responses[0].Error)
	}
	if responses[1].Error != nil {
		t.Errorf("ping after bad line should succeed, got %+v", responses[1].Error)
	}
}

func TestServer_Ping(t *testing.T) {
	srv := newStdioServer(t)
	responses := runLines(t, srv, `{"jsonrpc":"2.0","id":7,"method":"ping"}`+"\n")

	if responses[0].Error != nil {
		t.Fatalf("ping failed: %+v", responses[0].Error)
	}
	if string(responses[0].ID) != "7" {
		t.Errorf("expected id 7, got %s", responses[0].ID)
	}
}

func TestServer_SkipsBlankLines(t *testing.T) {
	srv := newStdioServer(t)
	responses := runLines(t, srv, "\n\n"+`{"jsonrpc":"2.0","id":1,"method":"ping"}`+"\n\n")

	if len(responses) != 1 {
		t.Fatalf("expected 1 response, got %d", len(responses))
	}
}

func TestNegotiateProtocolVersion(t *testing.T) {
	cases := map[string]string{
		"2024-11-05": "2024-11-05",
		"2025-03-26": "2025-03-26",
		"2025-06-18": "2025-06-18",
		"":           defaultProtocolVersion,
		"banana":     defaultProtocolVersion,
	}
	for requested, want := range cases {
		if got := negotiateProtocolVersion(requested); got != want {
			t.Errorf("negotiate(%q): expected %s, got %s", requested, want, got)
		}
	}
}
