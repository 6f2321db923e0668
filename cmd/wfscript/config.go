package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rendis/wfscript/pkg/interpreter"
)

// Config holds CLI and MCP host settings.
// Priority: flags > env vars > settings.json > defaults.
type Config struct {
	LogLevel  string   `json:"log_level"`
	LogFormat string   `json:"log_format"`
	MaxDepth  int      `json:"max_depth"`
	MaxSteps  int      `json:"max_steps"`
	Timeout   Duration `json:"timeout"`
	Rules     []string `json:"rules,omitempty"`
	// DBPath is the saved-workflow database; empty means ~/.wfscript/workflows.db.
	DBPath string `json:"db_path,omitempty"`
}

// Duration is a time.Duration that reads and writes "10s" style strings in
// settings.json.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("timeout must be a duration string: %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func defaultConfig() Config {
	return Config{
		LogLevel:  "warn",
		LogFormat: "text",
		MaxDepth:  interpreter.DefaultMaxDepth,
		MaxSteps:  interpreter.DefaultMaxSteps,
		Timeout:   Duration(10 * time.Second),
	}
}

func wfscriptDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".wfscript"
	}
	return filepath.Join(home, ".wfscript")
}

func settingsPath() string {
	return filepath.Join(wfscriptDir(), "settings.json")
}

func (c Config) dbPath() string {
	if c.DBPath != "" {
		return c.DBPath
	}
	return filepath.Join(wfscriptDir(), "workflows.db")
}

// loadConfig layers defaults, settings.json and WFSCRIPT_* env vars. Flags
// are applied afterwards by bindFlags.
func loadConfig() (Config, error) {
	cfg := defaultConfig()

	// Layer 2: settings.json (ignore if missing).
	if data, err := os.ReadFile(settingsPath()); err == nil {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", settingsPath(), err)
		}
	}

	// Layer 3: env vars override.
	if v := os.Getenv("WFSCRIPT_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("WFSCRIPT_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("WFSCRIPT_MAX_DEPTH"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("WFSCRIPT_MAX_DEPTH: %w", err)
		}
		cfg.MaxDepth = n
	}
	if v := os.Getenv("WFSCRIPT_MAX_STEPS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("WFSCRIPT_MAX_STEPS: %w", err)
		}
		cfg.MaxSteps = n
	}
	if v := os.Getenv("WFSCRIPT_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("WFSCRIPT_TIMEOUT: %w", err)
		}
		cfg.Timeout = Duration(d)
	}
	if v := os.Getenv("WFSCRIPT_DB"); v != "" {
		cfg.DBPath = v
	}
	// One CEL rule per line.
	if v := os.Getenv("WFSCRIPT_RULES"); v != "" {
		cfg.Rules = nil
		for _, line := range strings.Split(v, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				cfg.Rules = append(cfg.Rules, line)
			}
		}
	}

	return cfg, nil
}

// bindFlags registers the shared flags on fs, defaulting to cfg's current
// values so that only flags given on the command line override it.
func bindFlags(fs *flag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format: text, json")
	fs.IntVar(&cfg.MaxDepth, "max-depth", cfg.MaxDepth, "maximum nesting depth")
	fs.IntVar(&cfg.MaxSteps, "max-steps", cfg.MaxSteps, "maximum evaluation steps")
	fs.Func("timeout", fmt.Sprintf("interpretation timeout (default %s)", time.Duration(cfg.Timeout)), func(s string) error {
		d, err := time.ParseDuration(s)
		if err != nil {
			return err
		}
		cfg.Timeout = Duration(d)
		return nil
	})
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "saved-workflow database file")
	fs.Func("rule", "CEL admission rule over `workflow` (repeatable)", func(s string) error {
		cfg.Rules = append(cfg.Rules, s)
		return nil
	})
}

// interpreterOptions converts the limits into interpreter options.
func (c Config) interpreterOptions() []interpreter.Option {
	return []interpreter.Option{
		interpreter.WithMaxDepth(c.MaxDepth),
		interpreter.WithMaxSteps(c.MaxSteps),
	}
}
