package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heefoo/codeoracle/internal/extractor"
)

// TestDefaultConfig verifies default configuration values
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "stdio", cfg.Server.Mode)
	assert.Equal(t, 3003, cfg.Server.Port)
	assert.Equal(t, 100, cfg.Watcher.DebounceMs)
	assert.Equal(t, 4, cfg.Scan.Workers)
	assert.Contains(t, cfg.Scan.ExcludePatterns, "node_modules")
	assert.Equal(t, "info", cfg.Log.Level)

	n, err := cfg.MaxFileBytes()
	require.NoError(t, err)
	assert.Equal(t, int64(2*1024*1024), n)
}

func TestConfigValidation(t *testing.T) {
	cfg := DefaultConfig()
	assert.Empty(t, Validate(cfg))

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"debounce too low", func(c *Config) { c.Watcher.DebounceMs = 5 }, "debounce"},
		{"debounce too high", func(c *Config) { c.Watcher.DebounceMs = 70000 }, "debounce"},
		{"no workers", func(c *Config) { c.Scan.Workers = 0 }, "workers"},
		{"bad size", func(c *Config) { c.Scan.MaxFileSize = "lots" }, "max_file_size"},
		{"bad mode", func(c *Config) { c.Server.Mode = "grpc" }, "mode"},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "port"},
		{"bad level", func(c *Config) { c.Log.Level = "chatty" }, "Log level"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "Log format"},
		{"empty suffix", func(c *Config) { c.Languages["."] = "go" }, "suffix"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			warnings := Validate(cfg)
			require.NotEmpty(t, warnings)
			found := false
			for _, w := range warnings {
				if strings.Contains(w, tt.want) {
					found = true
				}
			}
			assert.True(t, found, "expected a warning mentioning %q, got %v", tt.want, warnings)
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CODEORACLE_WATCHER_DEBOUNCE_MS", "250")
	t.Setenv("CODEORACLE_WORKERS", "9")
	t.Setenv("CODEORACLE_EXCLUDE", "dist, *.gen.go ,")
	t.Setenv("CODEORACLE_SERVER_MODE", "http")
	t.Setenv("CODEORACLE_LOG_LEVEL", "debug")
	t.Setenv("CODEORACLE_INCLUDE_UNKNOWN", "true")

	cfg := DefaultConfig()
	applyEnvOverrides(cfg)

	assert.Equal(t, 250, cfg.Watcher.DebounceMs)
	assert.Equal(t, 9, cfg.Scan.Workers)
	assert.Equal(t, []string{"dist", "*.gen.go"}, cfg.Scan.ExcludePatterns)
	assert.Equal(t, "http", cfg.Server.Mode)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Scan.IncludeUnknown)
}

func TestEnvOverrideIgnoresGarbage(t *testing.T) {
	t.Setenv("CODEORACLE_WATCHER_DEBOUNCE_MS", "soon")
	t.Setenv("CODEORACLE_SERVER_PORT", "eighty")

	cfg := DefaultConfig()
	applyEnvOverrides(cfg)

	assert.Equal(t, 100, cfg.Watcher.DebounceMs)
	assert.Equal(t, 3003, cfg.Server.Port)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[languages]
".pyi" = "python"
"mjs" = "javascript"

[scan]
workers = 2
max_file_size = "512 KiB"
exclude = ["generated"]

[watcher]
debounce_ms = 300

[log]
format = "json"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Scan.Workers)
	assert.Equal(t, []string{"generated"}, cfg.Scan.ExcludePatterns)
	assert.Equal(t, 300, cfg.Watcher.DebounceMs)
	assert.Equal(t, "json", cfg.Log.Format)
	// untouched sections keep their defaults
	assert.Equal(t, "stdio", cfg.Server.Mode)

	n, err := cfg.MaxFileBytes()
	require.NoError(t, err)
	assert.Equal(t, int64(512*1024), n)

	table := cfg.SuffixTable()
	assert.Equal(t, extractor.LangPython, table[".pyi"])
	assert.Equal(t, extractor.LangJavaScript, table[".mjs"])
	assert.Equal(t, extractor.LangPython, table[".py"])
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestSuffixTableRemovesEmptyMapping(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Languages[".java"] = ""
	cfg.Languages[".CC"] = "CPP"

	table := cfg.SuffixTable()
	assert.NotContains(t, table, ".java")
	assert.Equal(t, extractor.LangCPP, table[".cc"])
}

func TestMaxFileBytesEmptyIsUnlimited(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Scan.MaxFileSize = ""
	n, err := cfg.MaxFileBytes()
	require.NoError(t, err)
	assert.Zero(t, n)
}
