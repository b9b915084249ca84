package config

import "fmt"

// Config represents the relay configuration (claudecodex.yaml)
type Config struct {
	Name     string        `yaml:"name" json:"name"`
	Version  string        `yaml:"version" json:"version"`
	Server   ServerConfig  `yaml:"server" json:"server"`
	Log      LogConfig     `yaml:"log" json:"log"`
	Channels []string      `yaml:"channels" json:"channels"`
	Audit    AuditConfig   `yaml:"audit" json:"audit"`
	Metrics  MetricsConfig `yaml:"metrics" json:"metrics"`
	Hooks    HooksConfig   `yaml:"hooks" json:"hooks"`
}

// ServerConfig configures the HTTP listener shared by the MCP endpoint and
// the web viewer.
type ServerConfig struct {
	Host    string `yaml:"host" json:"host"`
	Port    int    `yaml:"port" json:"port"`
	MCPPath string `yaml:"mcp_path" json:"mcp_path"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LogConfig configures the rotating relay log.
type LogConfig struct {
	Path        string `yaml:"path" json:"path"`
	MaxBytes    int64  `yaml:"max_bytes" json:"max_bytes"`
	BackupCount int    `yaml:"backup_count" json:"backup_count"`
	Level       string `yaml:"level" json:"level"` // debug, info, warn, error
}

// AuditConfig configures the optional SQLite audit trail. The trail is
// write-only; disabling or deleting it never changes relay behavior.
type AuditConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
}

// MetricsConfig configures the optional traffic snapshot file. An empty
// export path disables export.
type MetricsConfig struct {
	ExportPath string `yaml:"export_path,omitempty" json:"export_path,omitempty"`
}

// HooksConfig configures notification hooks. Hooks always run off the post
// path; there is no blocking option because a notification must never stall
// or fail a message.
type HooksConfig struct {
	Enabled bool         `yaml:"enabled" json:"enabled"`
	Hooks   []HookConfig `yaml:"hooks" json:"hooks"`
}

// HookConfig defines a single hook.
type HookConfig struct {
	Name    string   `yaml:"name" json:"name"`
	Type    string   `yaml:"type" json:"type"`                         // shell, webhook, log
	Events  []string `yaml:"events" json:"events"`                     // event types to match; empty matches all
	Command string   `yaml:"command,omitempty" json:"command,omitempty"` // for shell hooks
	URL     string   `yaml:"url,omitempty" json:"url,omitempty"`       // for webhook hooks
	Level   string   `yaml:"level,omitempty" json:"level,omitempty"`   // for log hooks (debug, info, warn)
}
