package cli

import (
	"path/filepath"
	"testing"

	"github.com/wiresharks/claudecodex/internal/config"
	"github.com/wiresharks/claudecodex/internal/event"
	"github.com/wiresharks/claudecodex/internal/telemetry"
)

func TestMetricsHook_CountsStoreEvents(t *testing.T) {
	metrics := telemetry.NewMetrics()
	h := &metricsHook{metrics: metrics}

	if !h.IsBlocking() {
		t.Fatal("metrics hook must be blocking so counters never lag")
	}

	h.Handle(event.NewEvent(event.MessagePosted, map[string]interface{}{"id": int64(1)}))
	h.Handle(event.NewEvent(event.MessagePosted, map[string]interface{}{"id": int64(2)}))
	h.Handle(event.NewEvent(event.ChannelCreated, map[string]interface{}{"target": "proj-x"}))
	// Fetch counters belong to the tool layer, not this hook.
	h.Handle(event.NewEvent(event.MessageFetched, map[string]interface{}{"returned": 2}))

	summary := metrics.GetSummary()
	if summary["messages_posted"] != int64(2) {
		t.Errorf("expected 2 posted, got %v", summary["messages_posted"])
	}
	if summary["channels_created"] != int64(1) {
		t.Errorf("expected 1 channel, got %v", summary["channels_created"])
	}
	if summary["messages_fetched"] != int64(0) {
		t.Errorf("fetch must not be counted here, got %v", summary["messages_fetched"])
	}
}

func TestBuildHook(t *testing.T) {
	logger := telemetry.NewLogger(false)

	shell, err := buildHook(config.HookConfig{
		Name:    "notify",
		Type:    "shell",
		Command: "echo hi",
		Events:  []string{"message.posted"},
	}, logger)
	if err != nil {
		t.Fatalf("shell hook: %v", err)
	}
	if shell.IsBlocking() {
		t.Error("configured hooks must be non-blocking")
	}
	if !shell.Matches(event.MessagePosted) {
		t.Error("expected hook to match message.posted")
	}
	if shell.Matches(event.MessageFetched) {
		t.Error("hook should not match unlisted events")
	}

	if _, err := buildHook(config.HookConfig{
		Name: "hub",
		Type: "webhook",
		URL:  "http://127.0.0.1:9/hook",
	}, logger); err != nil {
		t.Errorf("webhook hook: %v", err)
	}

	logHook, err := buildHook(config.HookConfig{Name: "trace", Type: "log"}, logger)
	if err != nil {
		t.Fatalf("log hook: %v", err)
	}
	if !logHook.Matches(event.ChannelCreated) {
		t.Error("log hook with no event filter should match everything")
	}

	if _, err := buildHook(config.HookConfig{Name: "bad", Type: "carrier-pigeon"}, logger); err == nil {
		t.Error("expected error for unknown hook type")
	}
}

func TestRegisterHooks_WiresMetrics(t *testing.T) {
	cfg := &config.Config{
		Hooks: config.HooksConfig{Enabled: true},
	}
	logger := telemetry.NewLogger(false)
	metrics := telemetry.NewMetrics()
	bus := event.NewBus(logger)

	closeHooks, err := registerHooks(cfg, bus, logger, metrics)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	defer closeHooks()

	bus.Emit(event.NewEvent(event.MessagePosted, map[string]interface{}{
		"id": int64(1), "target": "proj-x", "sender": "claude", "text_len": 5,
	}))

	if got := metrics.GetSummary()["messages_posted"]; got != int64(1) {
		t.Errorf("expected posted counter wired to bus, got %v", got)
	}
}

func TestRegisterHooks_OpensAudit(t *testing.T) {
	cfg := &config.Config{
		Audit: config.AuditConfig{
			Enabled: true,
			Path:    filepath.Join(t.TempDir(), "audit.db"),
		},
	}
	logger := telemetry.NewLogger(false)
	bus := event.NewBus(logger)

	closeHooks, err := registerHooks(cfg, bus, logger, telemetry.NewMetrics())
	if err != nil {
		t.Fatalf("register with audit: %v", err)
	}
	closeHooks()
}

func TestRegisterHooks_BadHookConfig(t *testing.T) {
	cfg := &config.Config{
		Hooks: config.HooksConfig{
			Enabled: true,
			Hooks:   []config.HookConfig{{Name: "bad", Type: "nope"}},
		},
	}
	bus := event.NewBus(nil)

	if _, err := registerHooks(cfg, bus, telemetry.NewLogger(false), telemetry.NewMetrics()); err == nil {
		t.Fatal("expected error for unknown hook type")
	}
}
