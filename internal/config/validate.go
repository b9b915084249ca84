package config

import (
	"fmt"
	"strings"

	"github.com/wiresharks/claudecodex/internal/errors"
)

// Validate checks the configuration for values the relay cannot run with.
func Validate(cfg *Config) error {
	var problems []string

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("server port %d out of range", cfg.Server.Port))
	}
	if !strings.HasPrefix(cfg.Server.MCPPath, "/") {
		problems = append(problems, fmt.Sprintf("mcp_path %q must start with /", cfg.Server.MCPPath))
	}
	if cfg.Server.MCPPath == "/" {
		problems = append(problems, "mcp_path must not shadow the web viewer root")
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[cfg.Log.Level] {
		problems = append(problems, fmt.Sprintf("invalid log level: %s", cfg.Log.Level))
	}
	if cfg.Log.MaxBytes < 1 {
		problems = append(problems, "log max_bytes must be positive")
	}
	if cfg.Log.BackupCount < 0 {
		problems = append(problems, "log backup_count must be non-negative")
	}

	if cfg.Audit.Enabled && cfg.Audit.Path == "" {
		problems = append(problems, "audit enabled but no path set")
	}

	problems = append(problems, validateHooks(cfg.Hooks.Hooks)...)

	if len(problems) > 0 {
		return errors.Newf(errors.CodeConfigInvalid,
			"config validation failed: %s", strings.Join(problems, "; ")).
			WithSuggestion("fix claudecodex.yaml or the CLAUDE_CODEX_* environment overrides")
	}
	return nil
}

func validateHooks(hooks []HookConfig) []string {
	var problems []string

	validTypes := map[string]bool{
		"shell":   true,
		"webhook": true,
		"log":     true,
	}
	validEvents := map[string]bool{
		"message.posted":  true,
		"message.fetched": true,
		"channel.created": true,
	}

	names := make(map[string]bool)
	for _, h := range hooks {
		if h.Name == "" {
			problems = append(problems, "hook name is required")
			continue
		}
		if names[h.Name] {
			problems = append(problems, fmt.Sprintf("duplicate hook name: %s", h.Name))
		}
		names[h.Name] = true

		if !validTypes[h.Type] {
			problems = append(problems, fmt.Sprintf("hook %s: invalid type %q (must be shell, webhook, or log)", h.Name, h.Type))
		}
		if h.Type == "shell" && h.Command == "" {
			problems = append(problems, fmt.Sprintf("hook %s: shell hook requires a command", h.Name))
		}
		if h.Type == "webhook" && h.URL == "" {
			problems = append(problems, fmt.Sprintf("hook %s: webhook hook requires a url", h.Name))
		}
		for _, ev := range h.Events {
			if !validEvents[ev] {
				problems = append(problems, fmt.Sprintf("hook %s: unknown event %q", h.Name, ev))
			}
		}
	}

	return problems
}
