package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wiresharks/claudecodex/internal/errors"
)

// Load loads the relay configuration from dir/claudecodex.yaml. A missing
// file is not an error: the relay runs with built-in defaults so the typical
// deployment needs no config file at all. CLAUDE_CODEX_* environment
// variables override file values either way.
func Load(dir string) (*Config, error) {
	configFile := filepath.Join(dir, "claudecodex.yaml")

	content, err := os.ReadFile(configFile)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := defaultConfig()
			if err := applyEnvOverrides(cfg); err != nil {
				return nil, err
			}
			return cfg, Validate(cfg)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Interpolate environment variables
	content = []byte(interpolateEnv(string(content)))

	var cfg Config
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyDefaults(&cfg)
	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// WriteDefault writes the built-in default configuration to path, for
// `claudecodex config init`. Fails if the file already exists.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return errors.Newf(errors.CodeConfigInvalid, "config file already exists: %s", path).
			WithSuggestion("remove the file first or edit it in place")
	}

	data, err := yaml.Marshal(defaultConfig())
	if err != nil {
		return fmt.Errorf("failed to render default config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// interpolateEnv replaces ${env.VAR} and ${VAR} with environment values
func interpolateEnv(content string) string {
	// Match ${env.VAR} pattern
	envPattern := regexp.MustCompile(`\$\{env\.([^}]+)\}`)
	content = envPattern.ReplaceAllStringFunc(content, func(match string) string {
		varName := envPattern.FindStringSubmatch(match)[1]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match // keep original if not found
	})

	// Match ${VAR} pattern
	varPattern := regexp.MustCompile(`\$\{([^}]+)\}`)
	content = varPattern.ReplaceAllStringFunc(content, func(match string) string {
		varName := varPattern.FindStringSubmatch(match)[1]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match
	})

	return content
}

func defaultConfig() *Config {
	return &Config{
		Name:    "claude-codex-relay",
		Version: "1.0",
		Server: ServerConfig{
			Host:    "127.0.0.1",
			Port:    8010,
			MCPPath: "/mcp",
		},
		Log: LogConfig{
			Path:        "claude_codex.log",
			MaxBytes:    5 * 1024 * 1024,
			BackupCount: 10,
			Level:       "info",
		},
		Channels: []string{"proj-x", "codex", "claude"},
		Audit: AuditConfig{
			Enabled: false,
			Path:    ".claudecodex/audit.db",
		},
		Hooks: HooksConfig{
			Enabled: true,
		},
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Name == "" {
		cfg.Name = "claude-codex-relay"
	}
	if cfg.Version == "" {
		cfg.Version = "1.0"
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8010
	}
	if cfg.Server.MCPPath == "" {
		cfg.Server.MCPPath = "/mcp"
	}
	if cfg.Log.Path == "" {
		cfg.Log.Path = "claude_codex.log"
	}
	if cfg.Log.MaxBytes == 0 {
		cfg.Log.MaxBytes = 5 * 1024 * 1024
	}
	if cfg.Log.BackupCount == 0 {
		cfg.Log.BackupCount = 10
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if len(cfg.Channels) == 0 {
		cfg.Channels = []string{"proj-x", "codex", "claude"}
	}
	if cfg.Audit.Path == "" {
		cfg.Audit.Path = ".claudecodex/audit.db"
	}
}

// applyEnvOverrides applies the CLAUDE_CODEX_* environment variables on top
// of whatever the file provided. These are the switches agent wrappers
// actually set, so they win over the file.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("CLAUDE_CODEX_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("CLAUDE_CODEX_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return errors.Newf(errors.CodeConfigInvalid, "invalid CLAUDE_CODEX_PORT %q", v).
				WithSuggestion("set a numeric port, e.g. CLAUDE_CODEX_PORT=8010")
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv("CLAUDE_CODEX_MCP_PATH"); v != "" {
		cfg.Server.MCPPath = v
	}
	if v := os.Getenv("CLAUDE_CODEX_LOG_PATH"); v != "" {
		cfg.Log.Path = v
	}
	if v := os.Getenv("CLAUDE_CODEX_LOG_MAX_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return errors.Newf(errors.CodeConfigInvalid, "invalid CLAUDE_CODEX_LOG_MAX_BYTES %q", v).
				WithSuggestion("set a byte count, e.g. CLAUDE_CODEX_LOG_MAX_BYTES=5242880")
		}
		cfg.Log.MaxBytes = n
	}
	if v := os.Getenv("CLAUDE_CODEX_LOG_BACKUP_COUNT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Newf(errors.CodeConfigInvalid, "invalid CLAUDE_CODEX_LOG_BACKUP_COUNT %q", v).
				WithSuggestion("set a file count, e.g. CLAUDE_CODEX_LOG_BACKUP_COUNT=10")
		}
		cfg.Log.BackupCount = n
	}
	if v, ok := os.LookupEnv("CLAUDE_CODEX_CHANNELS"); ok {
		cfg.Channels = SplitChannels(v)
	}
	return nil
}

// SplitChannels parses a comma-separated channel list, trimming whitespace
// and dropping empty entries.
func SplitChannels(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
