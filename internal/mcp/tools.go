package mcp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/wiresharks/claudecodex/internal/errors"
	"github.com/wiresharks/claudecodex/internal/event"
	"github.com/wiresharks/claudecodex/internal/store"
	"github.com/wiresharks/claudecodex/internal/telemetry"
)

// Fetch limits. A fetch with no limit returns defaultFetchLimit messages;
// explicit limits are clamped into [minFetchLimit, maxFetchLimit].
const (
	defaultFetchLimit = 50
	minFetchLimit     = 1
	maxFetchLimit     = 200
)

// ToolDef describes an MCP tool for tools/list.
type ToolDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// AllTools returns the relay's tool catalog.
func AllTools() []ToolDef {
	return []ToolDef{
		{
			Name:        "post_message",
			Description: "Post a message to a channel. The other agent reads it by fetching the same channel. Returns the assigned message id.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"target": map[string]any{
						"type":        "string",
						"description": "Channel to post to. Created on first use.",
					},
					"sender": map[string]any{
						"type":        "string",
						"description": "Name of the posting agent, e.g. claude or codex.",
					},
					"text": map[string]any{
						"type":        "string",
						"description": "Message body. May be empty.",
					},
				},
				"required": []string{"target", "sender", "text"},
			},
		},
		{
			Name:        "fetch_messages",
			Description: "Fetch messages from a channel with id greater than since_id, oldest first. Pass the latest_id from the previous fetch to read only what is new.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"target": map[string]any{
						"type":        "string",
						"description": "Channel to read. Must already exist.",
					},
					"since_id": map[string]any{
						"type":        "integer",
						"description": "Return only messages with id greater than this. Defaults to 0 (everything).",
					},
					"limit": map[string]any{
						"type":        "integer",
						"description": "Maximum messages to return, 1-200. Defaults to 50.",
					},
				},
				"required": []string{"target"},
			},
		},
		{
			Name:        "list_channels",
			Description: "List every channel the relay knows about, in creation order.",
			InputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
		},
	}
}

// ToolHandler executes tool calls against the message store.
type ToolHandler struct {
	store   *store.Store
	bus     *event.Bus
	metrics *telemetry.Metrics
}

// NewToolHandler creates a tool handler. bus and metrics may be nil.
func NewToolHandler(st *store.Store, bus *event.Bus, metrics *telemetry.Metrics) *ToolHandler {
	return &ToolHandler{store: st, bus: bus, metrics: metrics}
}

// Call dispatches a tool call by name.
func (h *ToolHandler) Call(name string, args json.RawMessage) (any, error) {
	switch name {
	case "post_message":
		return h.postMessage(args)
	case "fetch_messages":
		return h.fetchMessages(args)
	case "list_channels":
		return h.listChannels()
	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

func (h *ToolHandler) postMessage(args json.RawMessage) (any, error) {
	var params struct {
		Target string `json:"target"`
		Sender string `json:"sender"`
		Text   string `json:"text"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return nil, fmt.Errorf("parse post_message arguments: %w", err)
	}

	msg, err := h.store.PostMessage(params.Target, params.Sender, params.Text)
	if err != nil {
		return nil, err
	}

	return map[string]any{"ok": true, "posted": msg.ID}, nil
}

func (h *ToolHandler) fetchMessages(args json.RawMessage) (any, error) {
	var params struct {
		Target  string `json:"target"`
		SinceID *int64 `json:"since_id"`
		Limit   *int   `json:"limit"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return nil, fmt.Errorf("parse fetch_messages arguments: %w", err)
	}

	since := int64(0)
	if params.SinceID != nil {
		since = *params.SinceID
	}
	if since < 0 {
		since = 0
	}

	limit := defaultFetchLimit
	if params.Limit != nil {
		limit = *params.Limit
	}
	if limit < minFetchLimit {
		limit = minFetchLimit
	}
	if limit > maxFetchLimit {
		limit = maxFetchLimit
	}

	msgs, err := h.store.FetchMessages(params.Target, since, limit)
	if err != nil {
		return nil, err
	}

	// latest_id is the id of the last message returned, or the caller's
	// since_id when nothing was new. Feeding it back as the next since_id
	// makes polling loops exactly-once.
	latest := since
	if len(msgs) > 0 {
		latest = msgs[len(msgs)-1].ID
	}

	if h.metrics != nil {
		h.metrics.IncMessagesFetched()
		if len(msgs) > 0 {
			h.metrics.AddMessagesDelivered(int64(len(msgs)))
			h.metrics.RecordDeliveryLag(time.Since(msgs[0].CreatedAt))
		}
	}
	h.bus.Emit(event.NewEvent(event.MessageFetched, map[string]interface{}{
		"target":    params.Target,
		"since_id":  since,
		"limit":     limit,
		"returned":  len(msgs),
		"latest_id": latest,
	}))

	return map[string]any{"messages": msgs, "latest_id": latest}, nil
}

func (h *ToolHandler) listChannels() (any, error) {
	names := h.store.ListChannels()
	return map[string]any{"channels": names, "count": len(names)}, nil
}

// toolErrorText renders an error for the isError content block. RelayError
// suggestions are appended so the calling agent can self-correct.
func toolErrorText(err error) string {
	text := "Error: " + err.Error()
	if s := errors.Suggestion(err); s != "" {
		text += " (hint: " + s + ")"
	}
	return text
}
