package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/dustin/go-humanize"

	"github.com/heefoo/codeoracle/internal/extractor"
)

type Config struct {
	// Languages maps filename suffixes to language tags, on top of the
	// built-in table. An empty tag removes a built-in suffix.
	Languages map[string]string `toml:"languages"`
	Scan      ScanConfig        `toml:"scan"`
	Watcher   WatcherConfig     `toml:"watcher"`
	Server    ServerConfig      `toml:"server"`
	Log       LogConfig         `toml:"log"`
}

type ScanConfig struct {
	ExcludePatterns []string `toml:"exclude"`
	Workers         int      `toml:"workers"`
	MaxFileSize     string   `toml:"max_file_size"` // e.g. "2 MiB"
	IncludeUnknown  bool     `toml:"include_unknown"`
}

type WatcherConfig struct {
	DebounceMs       int `toml:"debounce_ms"`
	AnalyzeTimeoutMs int `toml:"analyze_timeout_ms"`
}

type ServerConfig struct {
	Mode string `toml:"mode"`
	Port int    `toml:"port"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // text or json
}

func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, err
		}
	} else {
		locations := []string{
			".codeoracle/config.toml",
			filepath.Join(os.Getenv("HOME"), ".codeoracle/config.toml"),
			"/etc/codeoracle/config.toml",
		}
		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				if _, err := toml.DecodeFile(loc, cfg); err == nil {
					break
				}
			}
		}
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

func DefaultConfig() *Config {
	return &Config{
		Languages: map[string]string{},
		Scan: ScanConfig{
			ExcludePatterns: DefaultExcludePatterns(),
			Workers:         4,
			MaxFileSize:     "2 MiB",
		},
		Watcher: WatcherConfig{
			DebounceMs:       100,
			AnalyzeTimeoutMs: 10000,
		},
		Server: ServerConfig{
			Mode: "stdio",
			Port: 3003,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// DefaultExcludePatterns returns common patterns to skip while scanning
func DefaultExcludePatterns() []string {
	return []string{
		".git",
		".svn",
		".hg",
		"node_modules",
		"vendor",
		"__pycache__",
		".venv",
		"venv",
		"target",
		"build",
		"dist",
		".idea",
		".vscode",
		"*.min.js",
		"*.map",
		".codeoracle",
	}
}

// SuffixTable merges the configured languages over the built-in table.
func (c *Config) SuffixTable() map[string]extractor.Language {
	table := extractor.DefaultSuffixes()
	for suffix, lang := range c.Languages {
		key := strings.ToLower(strings.TrimSpace(suffix))
		if key != "" && !strings.HasPrefix(key, ".") {
			key = "." + key
		}
		if lang == "" {
			delete(table, key)
			continue
		}
		table[key] = extractor.Language(strings.ToLower(lang))
	}
	return table
}

// MaxFileBytes parses Scan.MaxFileSize. Zero means unlimited.
func (c *Config) MaxFileBytes() (int64, error) {
	if strings.TrimSpace(c.Scan.MaxFileSize) == "" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(c.Scan.MaxFileSize)
	if err != nil {
		return 0, err
	}
	return int64(n), nil
}

func Validate(cfg *Config) []string {
	var warnings []string

	if cfg.Scan.Workers < 1 {
		warnings = append(warnings, "Scan workers must be at least 1")
	}
	if cfg.Scan.Workers > 256 {
		warnings = append(warnings, "Scan workers exceeds reasonable maximum (256)")
	}
	if _, err := cfg.MaxFileBytes(); err != nil {
		warnings = append(warnings, "Scan max_file_size is not a valid size: "+err.Error())
	}
	for suffix := range cfg.Languages {
		if strings.TrimSpace(strings.TrimPrefix(suffix, ".")) == "" {
			warnings = append(warnings, "Language suffix cannot be empty")
		}
	}

	if cfg.Watcher.DebounceMs < 10 {
		warnings = append(warnings, "Watcher debounce must be at least 10ms")
	}
	if cfg.Watcher.DebounceMs > 60000 {
		warnings = append(warnings, "Watcher debounce exceeds reasonable maximum (60000ms)")
	}
	if cfg.Watcher.AnalyzeTimeoutMs < 100 {
		warnings = append(warnings, "Watcher analyze timeout must be at least 100ms")
	}

	if cfg.Server.Mode != "stdio" && cfg.Server.Mode != "http" {
		warnings = append(warnings, "Server mode must be stdio or http")
	}
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		warnings = append(warnings, "Server port must be between 1 and 65535")
	}

	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		warnings = append(warnings, "Log level must be one of debug, info, warn, error")
	}
	if cfg.Log.Format != "text" && cfg.Log.Format != "json" {
		warnings = append(warnings, "Log format must be text or json")
	}

	return warnings
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CODEORACLE_WORKERS"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Scan.Workers = i
		}
	}
	if v := os.Getenv("CODEORACLE_MAX_FILE_SIZE"); v != "" {
		cfg.Scan.MaxFileSize = v
	}
	if v := os.Getenv("CODEORACLE_INCLUDE_UNKNOWN"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Scan.IncludeUnknown = b
		}
	}
	if v := os.Getenv("CODEORACLE_EXCLUDE"); v != "" {
		var patterns []string
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				patterns = append(patterns, p)
			}
		}
		cfg.Scan.ExcludePatterns = patterns
	}

	if v := os.Getenv("CODEORACLE_WATCHER_DEBOUNCE_MS"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Watcher.DebounceMs = i
		}
	}

	if v := os.Getenv("CODEORACLE_SERVER_MODE"); v != "" {
		cfg.Server.Mode = v
	}
	if v := os.Getenv("CODEORACLE_SERVER_PORT"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = i
		}
	}

	if v := os.Getenv("CODEORACLE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("CODEORACLE_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}
