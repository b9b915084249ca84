package mcp

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/wiresharks/claudecodex/internal/errors"
	"github.com/wiresharks/claudecodex/internal/event"
	"github.com/wiresharks/claudecodex/internal/store"
	"github.com/wiresharks/claudecodex/internal/telemetry"
)

func newTestHandler(t *testing.T, seed ...string) *ToolHandler {
	t.Helper()
	st := store.New(seed, nil)
	return NewToolHandler(st, nil, telemetry.NewMetrics())
}

func callTool(t *testing.T, h *ToolHandler, name, args string) map[string]any {
	t.Helper()
	result, err := h.Call(name, json.RawMessage(args))
	if err != nil {
		t.Fatalf("call %s: %v", name, err)
	}
	out, ok := result.(map[string]any)
	if !ok {
		t.Fatalf("expected map result, got %T", result)
	}
	return out
}

func TestAllTools(t *testing.T) {
	tools := AllTools()
	if len(tools) != 3 {
		t.Fatalf("expected 3 tools, got %d", len(tools))
	}

	want := []string{"post_message", "fetch_messages", "list_channels"}
	for i, name := range want {
		if tools[i].Name != name {
			t.Errorf("tool %d: expected %s, got %s", i, name, tools[i].Name)
		}
		if tools[i].InputSchema["type"] != "object" {
			t.Errorf("tool %s: schema type should be object", name)
		}
	}
}

func TestToolHandler_PostMessage(t *testing.T) {
	h := newTestHandler(t, "proj-x")

	out := callTool(t, h, "post_message", `{"target":"proj-x","sender":"claude","text":"hello"}`)
	if out["ok"] != true {
		t.Errorf("expected ok true, got %v", out["ok"])
	}
	if id, _ := out["posted"].(int64); id != 1 {
		t.Errorf("expected posted 1, got %v", out["posted"])
	}

	out = callTool(t, h, "post_message", `{"target":"proj-x","sender":"codex","text":"ack"}`)
	if id, _ := out["posted"].(int64); id != 2 {
		t.Errorf("expected posted 2, got %v", out["posted"])
	}
}

func TestToolHandler_PostMessage_EmptyTextAllowed(t *testing.T) {
	h := newTestHandler(t, "proj-x")

	out := callTool(t, h, "post_message", `{"target":"proj-x","sender":"claude","text":""}`)
	if out["ok"] != true {
		t.Errorf("expected ok true for empty text, got %v", out["ok"])
	}
}

func TestToolHandler_PostMessage_MissingTarget(t *testing.T) {
	h := newTestHandler(t, "proj-x")

	_, err := h.Call("post_message", json.RawMessage(`{"sender":"claude","text":"hi"}`))
	if err == nil {
		t.Fatal("expected error for missing target")
	}
	if !errors.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestToolHandler_PostMessage_BadArgs(t *testing.T) {
	h := newTestHandler(t, "proj-x")

	_, err := h.Call("post_message", json.RawMessage(`{"target":42}`))
	if err == nil {
		t.Fatal("expected error for non-string target")
	}
}

func TestToolHandler_FetchMessages_DefaultLimit(t *testing.T) {
	h := newTestHandler(t, "proj-x")
	for i := 0; i < 60; i++ {
		callTool(t, h, "post_message", fmt.Sprintf(`{"target":"proj-x","sender":"claude","text":"m%d"}`, i))
	}

	out := callTool(t, h, "fetch_messages", `{"target":"proj-x"}`)
	msgs := out["messages"].([]store.Message)
	if len(msgs) != defaultFetchLimit {
		t.Fatalf("expected %d messages, got %d", defaultFetchLimit, len(msgs))
	}
	if msgs[0].ID != 1 {
		t.Errorf("expected oldest first, got leading id %d", msgs[0].ID)
	}
	if latest := out["latest_id"].(int64); latest != msgs[len(msgs)-1].ID {
		t.Errorf("latest_id %d does not match last returned id %d", latest, msgs[len(msgs)-1].ID)
	}
}

func TestToolHandler_FetchMessages_SinceAndLatest(t *testing.T) {
	h := newTestHandler(t, "proj-x")
	for _, text := range []string{"one", "two", "three"} {
		callTool(t, h, "post_message", `{"target":"proj-x","sender":"claude","text":"`+text+`"}`)
	}

	out := callTool(t, h, "fetch_messages", `{"target":"proj-x","since_id":1}`)
	msgs := out["messages"].([]store.Message)
	if len(msgs) != 2 || msgs[0].ID != 2 || msgs[1].ID != 3 {
		t.Fatalf("expected ids [2 3], got %+v", msgs)
	}
	if latest := out["latest_id"].(int64); latest != 3 {
		t.Errorf("expected latest_id 3, got %d", latest)
	}

	// Nothing new: latest_id echoes since_id, even past the end.
	out = callTool(t, h, "fetch_messages", `{"target":"proj-x","since_id":99}`)
	if len(out["messages"].([]store.Message)) != 0 {
		t.Error("expected no messages past the end")
	}
	if latest := out["latest_id"].(int64); latest != 99 {
		t.Errorf("expected latest_id 99, got %d", latest)
	}
}

func TestToolHandler_FetchMessages_NegativeSince(t *testing.T) {
	h := newTestHandler(t, "proj-x")
	callTool(t, h, "post_message", `{"target":"proj-x","sender":"claude","text":"hi"}`)

	out := callTool(t, h, "fetch_messages", `{"target":"proj-x","since_id":-7}`)
	if len(out["messages"].([]store.Message)) != 1 {
		t.Error("negative since_id should read from the start")
	}

	out = callTool(t, h, "fetch_messages", `{"target":"proj-x","since_id":-7,"limit":1}`)
	if latest := out["latest_id"].(int64); latest != 1 {
		t.Errorf("expected latest_id 1, got %d", latest)
	}
}

func TestToolHandler_FetchMessages_LimitClamps(t *testing.T) {
	h := newTestHandler(t, "proj-x")
	for i := 0; i < 250; i++ {
		callTool(t, h, "post_message", fmt.Sprintf(`{"target":"proj-x","sender":"claude","text":"m%d"}`, i))
	}

	cases := []struct {
		limit int
		want  int
	}{
		{-5, 1},
		{0, 1},
		{1, 1},
		{200, 200},
		{201, 200},
		{10000, 200},
	}
	for _, tc := range cases {
		out := callTool(t, h, "fetch_messages", fmt.Sprintf(`{"target":"proj-x","limit":%d}`, tc.limit))
		if got := len(out["messages"].([]store.Message)); got != tc.want {
			t.Errorf("limit %d: expected %d messages, got %d", tc.limit, tc.want, got)
		}
	}
}

func TestToolHandler_FetchMessages_UnknownChannel(t *testing.T) {
	h := newTestHandler(t, "proj-x")

	_, err := h.Call("fetch_messages", json.RawMessage(`{"target":"nope"}`))
	if err == nil {
		t.Fatal("expected error for unknown channel")
	}
	if !errors.IsNotFound(err) {
		t.Errorf("expected not found error, got %v", err)
	}
}

func TestToolHandler_FetchEmitsEvent(t *testing.T) {
	capture := &captureHook{}
	bus := event.NewBus(nil)
	bus.Register(capture)

	st := store.New([]string{"proj-x"}, nil)
	h := NewToolHandler(st, bus, nil)

	callTool(t, h, "post_message", `{"target":"proj-x","sender":"claude","text":"hello"}`)
	callTool(t, h, "fetch_messages", `{"target":"proj-x","since_id":0}`)

	events := capture.all()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	ev := events[0]
	if ev.Type != event.MessageFetched {
		t.Fatalf("expected %s, got %s", event.MessageFetched, ev.Type)
	}
	if ev.Data["target"] != "proj-x" {
		t.Errorf("expected target proj-x, got %v", ev.Data["target"])
	}
	if ev.Data["returned"] != 1 {
		t.Errorf("expected returned 1, got %v", ev.Data["returned"])
	}
	if _, ok := ev.Data["text"]; ok {
		t.Error("fetch events must not carry message text")
	}
}

func TestToolHandler_FetchRecordsMetrics(t *testing.T) {
	metrics := telemetry.NewMetrics()
	st := store.New([]string{"proj-x"}, nil)
	h := NewToolHandler(st, nil, metrics)

	callTool(t, h, "post_message", `{"target":"proj-x","sender":"claude","text":"a"}`)
	callTool(t, h, "post_message", `{"target":"proj-x","sender":"claude","text":"b"}`)
	callTool(t, h, "fetch_messages", `{"target":"proj-x"}`)

	summary := metrics.GetSummary()
	if summary["messages_fetched"] != int64(1) {
		t.Errorf("expected 1 fetch, got %v", summary["messages_fetched"])
	}
	if summary["messages_delivered"] != int64(2) {
		t.Errorf("expected 2 delivered, got %v", summary["messages_delivered"])
	}
}

func TestToolHandler_ListChannels(t *testing.T) {
	h := newTestHandler(t, "proj-x", "codex", "claude")
	callTool(t, h, "post_message", `{"target":"standup","sender":"claude","text":"new"}`)

	out := callTool(t, h, "list_channels", `{}`)
	names := out["channels"].([]string)
	want := []string{"proj-x", "codex", "claude", "standup"}
	if len(names) != len(want) {
		t.Fatalf("expected %d channels, got %v", len(want), names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("channel %d: expected %s, got %s", i, want[i], names[i])
		}
	}
	if out["count"] != 4 {
		t.Errorf("expected count 4, got %v", out["count"])
	}
}

func TestToolHandler_UnknownTool(t *testing.T) {
	h := newTestHandler(t)

	_, err := h.Call("delete_everything", json.RawMessage(`{}`))
	if err == nil {
		t.Fatal("expected error for unknown tool")
	}
}

func TestToolErrorText(t *testing.T) {
	plain := fmt.Errorf("boom")
	if got := toolErrorText(plain); got != "Error: boom" {
		t.Errorf("unexpected text: %s", got)
	}

	withHint := errors.New(errors.CodeValidation, "target must not be empty").
		WithSuggestion("pass a channel name such as proj-x")
	got := toolErrorText(withHint)
	want := "Error: [VALIDATION] target must not be empty (hint: pass a channel name such as proj-x)"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

type captureHook struct {
	mu     sync.Mutex
	events []event.Event
}

func (h *captureHook) Name() string                   { return "capture" }
func (h *captureHook) Matches(t event.EventType) bool { return true }
func (h *captureHook) IsBlocking() bool               { return true }

func (h *captureHook) Handle(ev event.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, ev)
	return nil
}

func (h *captureHook) all() []event.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]event.Event, len(h.events))
	copy(out, h.events)
	return out
}
