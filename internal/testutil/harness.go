// Package testutil provides a wired-up relay for tests: store, bus, and
// logger with event capture and assertion helpers.
package testutil

import (
	"sync"
	"testing"

	"github.com/wiresharks/claudecodex/internal/config"
	"github.com/wiresharks/claudecodex/internal/event"
	"github.com/wiresharks/claudecodex/internal/store"
	"github.com/wiresharks/claudecodex/internal/telemetry"
)

// TestHarness bundles the relay core the way serve wires it, with events
// captured for assertions.
type TestHarness struct {
	T        *testing.T
	Config   *config.Config
	Store    *store.Store
	EventBus *event.Bus
	Logger   *telemetry.Logger
	Metrics  *telemetry.Metrics

	mu     sync.Mutex
	events []event.Event
}

// NewTestHarness creates a harness with the default channel seeds.
func NewTestHarness(t *testing.T, channels ...string) *TestHarness {
	t.Helper()

	if len(channels) == 0 {
		channels = []string{"proj-x", "codex", "claude"}
	}

	logger := TestLogger()
	bus := event.NewBus(logger)

	h := &TestHarness{
		T:        t,
		Config:   TestConfig(channels),
		EventBus: bus,
		Logger:   logger,
		Metrics:  telemetry.NewMetrics(),
	}
	// Capture runs blocking so assertions see events immediately.
	bus.Register(&eventCapture{harness: h})

	h.Store = store.New(channels, bus)
	return h
}

// TestLogger returns a verbose logger writing to stderr.
func TestLogger() *telemetry.Logger {
	return telemetry.NewLogger(true)
}

// TestConfig returns a minimal valid relay config.
func TestConfig(channels []string) *config.Config {
	return &config.Config{
		Name:    "claude-codex-relay",
		Version: "test",
		Server: config.ServerConfig{
			Host:    "127.0.0.1",
			Port:    8010,
			MCPPath: "/mcp",
		},
		Log: config.LogConfig{
			Path:        "",
			MaxBytes:    1024 * 1024,
			BackupCount: 1,
			Level:       "debug",
		},
		Channels: channels,
	}
}

// MustPost posts a message and fails the test on error.
func (h *TestHarness) MustPost(target, sender, text string) store.Message {
	h.T.Helper()
	msg, err := h.Store.PostMessage(target, sender, text)
	if err != nil {
		h.T.Fatalf("post %s -> %s: %v", sender, target, err)
	}
	return msg
}

// Events returns a copy of everything captured so far.
func (h *TestHarness) Events() []event.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]event.Event, len(h.events))
	copy(out, h.events)
	return out
}

// AssertEventEmitted checks that an event with the given type was emitted.
func (h *TestHarness) AssertEventEmitted(eventType event.EventType) {
	h.T.Helper()
	for _, e := range h.Events() {
		if e.Type == eventType {
			return
		}
	}
	h.T.Errorf("expected event %q to be emitted", eventType)
}

// AssertNoEvent checks that an event type was NOT emitted.
func (h *TestHarness) AssertNoEvent(eventType event.EventType) {
	h.T.Helper()
	for _, e := range h.Events() {
		if e.Type == eventType {
			h.T.Errorf("expected event %q NOT to be emitted, but it was", eventType)
			return
		}
	}
}

// EventCount returns the number of events with the given type.
func (h *TestHarness) EventCount(eventType event.EventType) int {
	count := 0
	for _, e := range h.Events() {
		if e.Type == eventType {
			count++
		}
	}
	return count
}

// eventCapture records events synchronously.
type eventCapture struct {
	harness *TestHarness
}

func (c *eventCapture) Name() string                 { return "test-capture" }
func (c *eventCapture) Matches(event.EventType) bool { return true }
func (c *eventCapture) IsBlocking() bool             { return true }

func (c *eventCapture) Handle(ev event.Event) error {
	c.harness.mu.Lock()
	defer c.harness.mu.Unlock()
	c.harness.events = append(c.harness.events, ev)
	return nil
}
