package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/scenesync/internal/reconcile"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenesync.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_EmptyFileKeepsDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, reconcile.ModeProduction, cfg.Reconcile.Mode)
	assert.Equal(t, reconcile.DefaultValidationWindow, cfg.Reconcile.ValidationWindow)
}

func TestLoad_FullFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
db_path = "/var/lib/scenesync/scenes.db"
log_level = "debug"

[reconcile]
mode = "production"
validation_window = "10s"
throw = true
include_bound_text = false
`))
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/scenesync/scenes.db", cfg.DBPath)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, reconcile.Config{
		Mode:             reconcile.ModeProduction,
		ValidateIndices:  true,
		ValidationWindow: 10 * time.Second,
		ShouldThrow:      true,
		IncludeBoundText: false,
	}, cfg.Reconcile)
}

func TestParse_ModePreset(t *testing.T) {
	cfg, err := Parse(`
[reconcile]
mode = "development"
`)
	require.NoError(t, err)

	want, err := reconcile.ConfigForMode(reconcile.ModeDevelopment)
	require.NoError(t, err)
	assert.Equal(t, want, cfg.Reconcile)
}

func TestParse_OverridesApplyAfterPreset(t *testing.T) {
	// Field order in the file does not matter.
	cfg, err := Parse(`
[reconcile]
validate = false
mode = "test"
`)
	require.NoError(t, err)
	assert.Equal(t, reconcile.ModeTest, cfg.Reconcile.Mode)
	assert.False(t, cfg.Reconcile.ValidateIndices)
	assert.True(t, cfg.Reconcile.ShouldThrow)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{"unknown mode", "[reconcile]\nmode = \"staging\"", "reconcile.mode"},
		{"bad duration", "[reconcile]\nvalidation_window = \"soon\"", "reconcile.validation_window"},
		{"negative window", "[reconcile]\nvalidation_window = \"-1s\"", "must not be negative"},
		{"bad level", "log_level = \"loud\"", "log_level"},
		{"unknown key", "db = \"x.db\"", "unknown config keys: db"},
		{"unknown nested key", "[reconcile]\nwindow = \"1s\"", "reconcile.window"},
		{"malformed toml", "db_path = ", "parse config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.doc)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config")
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}
