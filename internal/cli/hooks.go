package cli

import (
	"fmt"

	"github.com/wiresharks/claudecodex/internal/config"
	"github.com/wiresharks/claudecodex/internal/event"
	"github.com/wiresharks/claudecodex/internal/telemetry"
)

// metricsHook keeps the traffic counters current from bus events. It runs
// blocking: the increments are atomic, and the stats view must not lag
// behind a post that already returned.
type metricsHook struct {
	metrics *telemetry.Metrics
}

func (h *metricsHook) Name() string                 { return "metrics" }
func (h *metricsHook) Matches(event.EventType) bool { return true }
func (h *metricsHook) IsBlocking() bool             { return true }

func (h *metricsHook) Handle(ev event.Event) error {
	switch ev.Type {
	case event.MessagePosted:
		h.metrics.IncMessagesPosted()
	case event.ChannelCreated:
		h.metrics.IncChannelsCreated()
	}
	return nil
}

// registerHooks attaches the standard sinks (log, metrics, audit) and any
// configured notification hooks to the bus. The returned close function
// releases whatever was opened.
func registerHooks(cfg *config.Config, bus *event.Bus, logger *telemetry.Logger, metrics *telemetry.Metrics) (func(), error) {
	bus.Register(event.NewLogHook("relay-log", nil, logger, "info"))
	bus.Register(&metricsHook{metrics: metrics})

	var closers []func()

	if cfg.Audit.Enabled {
		audit, err := event.NewAuditHook("audit", cfg.Audit.Path)
		if err != nil {
			return nil, fmt.Errorf("open audit trail: %w", err)
		}
		bus.Register(audit)
		closers = append(closers, func() { _ = audit.Close() })
		logger.Info("audit trail enabled", "path", cfg.Audit.Path)
	}

	if cfg.Hooks.Enabled {
		for _, hc := range cfg.Hooks.Hooks {
			hook, err := buildHook(hc, logger)
			if err != nil {
				return nil, err
			}
			bus.Register(hook)
			logger.Debug("registered hook", "name", hc.Name, "type", hc.Type)
		}
	}

	return func() {
		for _, c := range closers {
			c()
		}
	}, nil
}

// buildHook constructs one configured notification hook. Notification
// hooks never block: a dead webhook must not slow a post down.
func buildHook(hc config.HookConfig, logger *telemetry.Logger) (event.Hook, error) {
	events := make([]event.EventType, 0, len(hc.Events))
	for _, e := range hc.Events {
		events = append(events, event.EventType(e))
	}

	switch hc.Type {
	case "shell":
		return event.NewShellHook(hc.Name, hc.Command, events, false), nil
	case "webhook":
		return event.NewWebhookHook(hc.Name, hc.URL, events, false), nil
	case "log":
		level := hc.Level
		if level == "" {
			level = "info"
		}
		return event.NewLogHook(hc.Name, events, logger, level), nil
	default:
		return nil, fmt.Errorf("unknown hook type %q for hook %q", hc.Type, hc.Name)
	}
}
