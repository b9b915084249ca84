// Package relay provides a Go client for a running claudecodex relay.
//
// Reads go through the relay's JSON API; posting goes through the MCP
// endpoint, the same tool surface the agents use, so a Go program can take
// part in a conversation without speaking MCP by hand:
//
//	c := relay.NewClient("http://127.0.0.1:8010")
//	if err := c.Connect(ctx, "my-bot"); err != nil { ... }
//	defer c.Close(ctx)
//
//	id, _ := c.PostMessage(ctx, "proj-x", "my-bot", "hello")
//	msgs, latest, _ := c.FetchMessages(ctx, "proj-x", 0, 50)
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"
)

const sessionHeader = "Mcp-Session-Id"

// Message mirrors the relay's wire shape for a single message.
type Message struct {
	ID        int64     `json:"id"`
	Channel   string    `json:"channel"`
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Client talks to one relay instance. It is safe for concurrent use after
// Connect.
type Client struct {
	BaseURL    string
	MCPPath    string
	HTTPClient *http.Client

	sessionID string
	nextID    atomic.Int64
}

// NewClient creates a client for the relay at baseURL. The MCP endpoint
// defaults to /mcp, matching the relay's default configuration.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    baseURL,
		MCPPath:    "/mcp",
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// --- JSON API (read-only) ---

// apiError is the relay's JSON error body.
type apiError struct {
	Error string `json:"error"`
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		var e apiError
		json.Unmarshal(body, &e)
		if e.Error == "" {
			e.Error = http.StatusText(resp.StatusCode)
		}
		return fmt.Errorf("relay error %d: %s", resp.StatusCode, e.Error)
	}
	return json.Unmarshal(body, out)
}

// FetchMessages returns messages in target with id greater than sinceID,
// oldest first, and the latest id to pass as the next sinceID. A limit of 0
// uses the relay's default.
func (c *Client) FetchMessages(ctx context.Context, target string, sinceID int64, limit int) ([]Message, int64, error) {
	q := url.Values{}
	q.Set("target", target)
	q.Set("since_id", strconv.FormatInt(sinceID, 10))
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var resp struct {
		Messages []Message `json:"messages"`
		LatestID int64     `json:"latest_id"`
	}
	if err := c.getJSON(ctx, "/api/messages?"+q.Encode(), &resp); err != nil {
		return nil, 0, err
	}
	return resp.Messages, resp.LatestID, nil
}

// ListChannels returns every channel the relay knows, in first-seen order.
func (c *Client) ListChannels(ctx context.Context) ([]string, error) {
	var resp struct {
		Channels []string `json:"channels"`
	}
	if err := c.getJSON(ctx, "/api/channels", &resp); err != nil {
		return nil, err
	}
	return resp.Channels, nil
}

// Health reports whether the relay answers its health endpoint.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("relay unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// --- MCP session (writes) ---

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id,omitempty"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Connect opens an MCP session under the given client name. It must be
// called before PostMessage.
func (c *Client) Connect(ctx context.Context, name string) error {
	resp, header, err := c.rpc(ctx, rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  "initialize",
		Params: map[string]any{
			"protocolVersion": "2025-03-26",
			"clientInfo":      map[string]any{"name": name, "version": "1.0"},
		},
	})
	if err != nil {
		return err
	}
	if resp.Error != nil {
		return fmt.Errorf("initialize failed: %s", resp.Error.Message)
	}

	id := header.Get(sessionHeader)
	if id == "" {
		return fmt.Errorf("relay did not return a %s header", sessionHeader)
	}
	c.sessionID = id

	// Fire the initialized notification; the relay answers 202 with no body.
	_, _, err = c.rpc(ctx, rpcRequest{JSONRPC: "2.0", Method: "notifications/initialized"})
	return err
}

// Close ends the MCP session. Safe to call when Connect never succeeded.
func (c *Client) Close(ctx context.Context) error {
	if c.sessionID == "" {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.BaseURL+c.MCPPath, nil)
	if err != nil {
		return err
	}
	req.Header.Set(sessionHeader, c.sessionID)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	c.sessionID = ""
	return nil
}

// PostMessage posts text to target as sender and returns the assigned
// message id.
func (c *Client) PostMessage(ctx context.Context, target, sender, text string) (int64, error) {
	raw, err := c.callTool(ctx, "post_message", map[string]any{
		"target": target,
		"sender": sender,
		"text":   text,
	})
	if err != nil {
		return 0, err
	}

	var posted struct {
		OK     bool  `json:"ok"`
		Posted int64 `json:"posted"`
	}
	if err := json.Unmarshal(raw, &posted); err != nil {
		return 0, fmt.Errorf("parse post_message result: %w", err)
	}
	return posted.Posted, nil
}

// callTool invokes an MCP tool and returns the JSON payload of its text
// content. Tool failures (isError results) come back as errors.
func (c *Client) callTool(ctx context.Context, name string, args map[string]any) (json.RawMessage, error) {
	if c.sessionID == "" {
		return nil, fmt.Errorf("not connected: call Connect first")
	}

	resp, _, err := c.rpc(ctx, rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  "tools/call",
		Params:  map[string]any{"name": name, "arguments": args},
	})
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("%s failed: %s", name, resp.Error.Message)
	}

	var result struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		IsError bool `json:"isError"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, fmt.Errorf("parse %s result: %w", name, err)
	}
	if len(result.Content) == 0 {
		return nil, fmt.Errorf("%s returned no content", name)
	}
	if result.IsError {
		return nil, fmt.Errorf("%s: %s", name, result.Content[0].Text)
	}
	return json.RawMessage(result.Content[0].Text), nil
}

func (c *Client) rpc(ctx context.Context, rpcReq rpcRequest) (*rpcResponse, http.Header, error) {
	body, err := json.Marshal(rpcReq)
	if err != nil {
		return nil, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+c.MCPPath, bytes.NewReader(body))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.sessionID != "" {
		req.Header.Set(sessionHeader, c.sessionID)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, err
	}

	// Notifications are acknowledged with 202 and an empty body.
	if resp.StatusCode == http.StatusAccepted {
		return &rpcResponse{}, resp.Header, nil
	}

	var out rpcResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, nil, fmt.Errorf("parse relay response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode >= 400 && out.Error == nil {
		return nil, nil, fmt.Errorf("relay error %d", resp.StatusCode)
	}
	return &out, resp.Header, nil
}
