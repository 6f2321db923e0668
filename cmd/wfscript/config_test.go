package main

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points the settings directory at a temp home and clears env vars.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, k := range []string{"WFSCRIPT_LOG_LEVEL", "WFSCRIPT_LOG_FORMAT", "WFSCRIPT_MAX_DEPTH",
		"WFSCRIPT_MAX_STEPS", "WFSCRIPT_TIMEOUT", "WFSCRIPT_RULES", "WFSCRIPT_DB"} {
		t.Setenv(k, "")
	}
	return home
}

func writeSettings(t *testing.T, home, content string) {
	t.Helper()
	dir := filepath.Join(home, ".wfscript")
	require.NoError(t, os.MkdirAll(dir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "settings.json"), []byte(content), 0o644))
}

func TestLoadConfig_Defaults(t *testing.T) {
	isolate(t)
	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, defaultConfig(), cfg)
	assert.Equal(t, Duration(10*time.Second), cfg.Timeout)
}

func TestLoadConfig_Layers(t *testing.T) {
	home := isolate(t)
	writeSettings(t, home, `{"log_level": "info", "max_steps": 500, "timeout": "2s", "rules": ["size(workflow.nodes) < 10"]}`)
	t.Setenv("WFSCRIPT_MAX_STEPS", "900")
	t.Setenv("WFSCRIPT_RULES", "workflow.name != \"\"\n\n  size(workflow.nodes) > 0  ")

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 900, cfg.MaxSteps)
	assert.Equal(t, Duration(2*time.Second), cfg.Timeout)
	assert.Equal(t, []string{`workflow.name != ""`, "size(workflow.nodes) > 0"}, cfg.Rules)

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	bindFlags(fs, &cfg)
	require.NoError(t, fs.Parse([]string{"-max-steps", "42", "-timeout", "1m", "-rule", "true"}))
	assert.Equal(t, 42, cfg.MaxSteps)
	assert.Equal(t, Duration(time.Minute), cfg.Timeout)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Len(t, cfg.Rules, 3)
}

func TestLoadConfig_Errors(t *testing.T) {
	t.Run("bad settings", func(t *testing.T) {
		home := isolate(t)
		writeSettings(t, home, `{"timeout": 5}`)
		_, err := loadConfig()
		assert.Error(t, err)
	})
	t.Run("bad env", func(t *testing.T) {
		isolate(t)
		t.Setenv("WFSCRIPT_MAX_DEPTH", "deep")
		_, err := loadConfig()
		assert.ErrorContains(t, err, "WFSCRIPT_MAX_DEPTH")
	})
}

func TestConfig_DBPath(t *testing.T) {
	home := isolate(t)
	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".wfscript", "workflows.db"), cfg.dbPath())

	t.Setenv("WFSCRIPT_DB", "/tmp/other.db")
	cfg, err = loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/other.db", cfg.dbPath())

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	bindFlags(fs, &cfg)
	require.NoError(t, fs.Parse([]string{"-db", "flag.db"}))
	assert.Equal(t, "flag.db", cfg.dbPath())
}
