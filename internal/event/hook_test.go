package event

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

func TestShellHook_Matches(t *testing.T) {
	hook := NewShellHook("test", "echo hi", []EventType{MessagePosted, ChannelCreated}, false)

	if !hook.Matches(MessagePosted) {
		t.Error("should match MessagePosted")
	}
	if !hook.Matches(ChannelCreated) {
		t.Error("should match ChannelCreated")
	}
	if hook.Matches(MessageFetched) {
		t.Error("should not match MessageFetched")
	}
}

func TestShellHook_Execute(t *testing.T) {
	hook := NewShellHook("test", "true", []EventType{MessagePosted}, false)

	ev := NewEvent(MessagePosted, map[string]interface{}{"target": "proj-x"})
	err := hook.Handle(ev)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestShellHook_Failure(t *testing.T) {
	hook := NewShellHook("test", "false", []EventType{MessagePosted}, true)

	ev := NewEvent(MessagePosted, nil)
	err := hook.Handle(ev)
	if err == nil {
		t.Fatal("expected error from failed shell command")
	}
}

func TestWebhookHook_Execute(t *testing.T) {
	var received struct {
		mu   sync.Mutex
		body []byte
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		received.mu.Lock()
		received.body = body
		received.mu.Unlock()
		w.WriteHeader(200)
	}))
	defer server.Close()

	hook := NewWebhookHook("test", server.URL, []EventType{MessagePosted}, true)
	ev := NewEvent(MessagePosted, map[string]interface{}{"target": "proj-x", "sender": "claude"})
	err := hook.Handle(ev)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	received.mu.Lock()
	defer received.mu.Unlock()

	var payload Event
	if err := json.Unmarshal(received.body, &payload); err != nil {
		t.Fatalf("failed to parse webhook payload: %v", err)
	}
	if payload.Type != MessagePosted {
		t.Errorf("expected MessagePosted, got %s", payload.Type)
	}
	if payload.Data["target"] != "proj-x" {
		t.Errorf("expected target proj-x, got %v", payload.Data["target"])
	}
}

func TestWebhookHook_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(500)
	}))
	defer server.Close()

	hook := NewWebhookHook("test", server.URL, []EventType{ChannelCreated}, true)
	err := hook.Handle(NewEvent(ChannelCreated, nil))
	if err == nil {
		t.Fatal("expected error from 500 status")
	}
}

func TestLogHook_Execute(t *testing.T) {
	logger := &testLogger{}
	hook := NewLogHook("test", []EventType{MessagePosted}, logger, "info")

	ev := NewEvent(MessagePosted, map[string]interface{}{"target": "proj-x", "text_len": 11})
	err := hook.Handle(ev)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// LogHook with a FullLogger calls Info; testLogger implements FullLogger
	// so the warn path won't be used here.
}

func TestLogHook_AlwaysNonBlocking(t *testing.T) {
	hook := NewLogHook("test", nil, &testLogger{}, "debug")
	if hook.IsBlocking() {
		t.Error("log hook should always be non-blocking")
	}
}

func TestBaseHook_MatchesAll(t *testing.T) {
	h := &baseHook{name: "all", events: nil}
	if !h.Matches(MessagePosted) {
		t.Error("nil events should match everything")
	}
	if !h.Matches(ChannelCreated) {
		t.Error("nil events should match everything")
	}
}

func TestBaseHook_MatchesNone(t *testing.T) {
	h := &baseHook{name: "specific", events: []EventType{ChannelCreated}}
	if h.Matches(MessagePosted) {
		t.Error("should not match MessagePosted")
	}
}
