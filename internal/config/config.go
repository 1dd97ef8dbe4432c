// Package config loads docfind configuration from defaults, YAML files and
// DOCFIND_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultMaxUploadBytes is the upload size limit (10 MiB).
const DefaultMaxUploadBytes = 10 << 20

// Config is the complete docfind configuration.
type Config struct {
	Version   int             `yaml:"version" json:"version"`
	Server    ServerConfig    `yaml:"server" json:"server"`
	Upload    UploadConfig    `yaml:"upload" json:"upload"`
	Search    SearchConfig    `yaml:"search" json:"search"`
	Store     StoreConfig     `yaml:"store" json:"store"`
	Extract   ExtractConfig   `yaml:"extract" json:"extract"`
	Watch     WatchConfig     `yaml:"watch" json:"watch"`
	Telemetry TelemetryConfig `yaml:"telemetry" json:"telemetry"`
}

// ServerConfig configures the HTTP and MCP front ends.
type ServerConfig struct {
	Addr      string `yaml:"addr" json:"addr"`
	Transport string `yaml:"transport" json:"transport"` // http or stdio
	LogLevel  string `yaml:"log_level" json:"log_level"`
	// CORSOrigin is sent as Access-Control-Allow-Origin; empty disables CORS.
	CORSOrigin string `yaml:"cors_origin" json:"cors_origin"`
}

// UploadConfig limits accepted documents.
type UploadConfig struct {
	MaxBytes     int64    `yaml:"max_bytes" json:"max_bytes"`
	AllowedTypes []string `yaml:"allowed_types" json:"allowed_types"`
}

// SearchConfig tunes the search engine.
type SearchConfig struct {
	// ContextRadius is the number of characters kept on each side of a match.
	ContextRadius    int `yaml:"context_radius" json:"context_radius"`
	PatternCacheSize int `yaml:"pattern_cache_size" json:"pattern_cache_size"`
	MaxResults       int `yaml:"max_results" json:"max_results"` // 0 = unlimited
}

// StoreConfig bounds the in-memory document repository.
type StoreConfig struct {
	MaxDocuments int `yaml:"max_documents" json:"max_documents"`
}

// ExtractConfig tunes extraction.
type ExtractConfig struct {
	Workers   int  `yaml:"workers" json:"workers"`
	Normalize bool `yaml:"normalize" json:"normalize"`
}

// WatchConfig configures the inbox directory watcher.
type WatchConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Dir      string `yaml:"dir" json:"dir"`
	Debounce string `yaml:"debounce" json:"debounce"`
	Workers  int    `yaml:"workers" json:"workers"`
}

// DebounceDuration parses Debounce, falling back to 200ms.
func (w WatchConfig) DebounceDuration() time.Duration {
	d, err := time.ParseDuration(w.Debounce)
	if err != nil || d <= 0 {
		return 200 * time.Millisecond
	}
	return d
}

// TelemetryConfig configures local query statistics.
type TelemetryConfig struct {
	Enabled       bool   `yaml:"enabled" json:"enabled"`
	DBPath        string `yaml:"db_path" json:"db_path"`
	FlushInterval string `yaml:"flush_interval" json:"flush_interval"`
}

// FlushDuration parses FlushInterval, falling back to one minute.
func (t TelemetryConfig) FlushDuration() time.Duration {
	d, err := time.ParseDuration(t.FlushInterval)
	if err != nil || d <= 0 {
		return time.Minute
	}
	return d
}

// NewConfig returns the built-in defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Server: ServerConfig{
			Addr:       ":3000",
			Transport:  "http",
			LogLevel:   "info",
			CORSOrigin: "*",
		},
		Upload: UploadConfig{
			MaxBytes:     DefaultMaxUploadBytes,
			AllowedTypes: []string{"application/pdf", "application/json"},
		},
		Search: SearchConfig{
			ContextRadius:    50,
			PatternCacheSize: 256,
		},
		Store: StoreConfig{
			MaxDocuments: 100,
		},
		Extract: ExtractConfig{
			Workers:   runtime.NumCPU(),
			Normalize: true,
		},
		Watch: WatchConfig{
			Dir:      filepath.Join(DataDir(), "inbox"),
			Debounce: "200ms",
			Workers:  2,
		},
		Telemetry: TelemetryConfig{
			Enabled:       true,
			DBPath:        filepath.Join(DataDir(), "telemetry.db"),
			FlushInterval: "1m",
		},
	}
}

// DataDir returns ~/.docfind, or a temp-dir fallback without a home.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".docfind")
	}
	return filepath.Join(home, ".docfind")
}

// GetUserConfigPath returns the user configuration file path:
//   - $XDG_CONFIG_HOME/docfind/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/docfind/config.yaml
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "docfind", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "docfind", "config.yaml")
	}
	return filepath.Join(home, ".config", "docfind", "config.yaml")
}

// ProjectConfigNames are the per-directory config file names, in lookup order.
var ProjectConfigNames = []string{".docfind.yaml", ".docfind.yml"}

// Load loads configuration for dir, in order of increasing precedence:
//  1. Built-in defaults
//  2. User config (~/.config/docfind/config.yaml)
//  3. Project config (.docfind.yaml in dir)
//  4. Environment variables (DOCFIND_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if err := cfg.mergeFile(GetUserConfigPath()); err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	}

	for _, name := range ProjectConfigNames {
		path := filepath.Join(dir, name)
		if !fileExists(path) {
			continue
		}
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
		break
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// mergeFile overlays the YAML file at path; a missing file is not an error.
func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	// Decoding into the populated struct keeps every field the file omits.
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides applies DOCFIND_* environment variables.
func (c *Config) applyEnvOverrides() error {
	str := map[string]*string{
		"DOCFIND_ADDR":           &c.Server.Addr,
		"DOCFIND_TRANSPORT":      &c.Server.Transport,
		"DOCFIND_LOG_LEVEL":      &c.Server.LogLevel,
		"DOCFIND_CORS_ORIGIN":    &c.Server.CORSOrigin,
		"DOCFIND_WATCH_DIR":      &c.Watch.Dir,
		"DOCFIND_TELEMETRY_DB":   &c.Telemetry.DBPath,
		"DOCFIND_WATCH_DEBOUNCE": &c.Watch.Debounce,
	}
	for key, dst := range str {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"DOCFIND_CONTEXT_RADIUS":  &c.Search.ContextRadius,
		"DOCFIND_MAX_RESULTS":     &c.Search.MaxResults,
		"DOCFIND_MAX_DOCUMENTS":   &c.Store.MaxDocuments,
		"DOCFIND_EXTRACT_WORKERS": &c.Extract.Workers,
	}
	for key, dst := range ints {
		if v, ok := os.LookupEnv(key); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = n
		}
	}

	if v, ok := os.LookupEnv("DOCFIND_MAX_UPLOAD_BYTES"); ok {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return fmt.Errorf("DOCFIND_MAX_UPLOAD_BYTES: %w", err)
		}
		c.Upload.MaxBytes = n
	}

	bools := map[string]*bool{
		"DOCFIND_WATCH_ENABLED":     &c.Watch.Enabled,
		"DOCFIND_TELEMETRY_ENABLED": &c.Telemetry.Enabled,
	}
	for key, dst := range bools {
		if v, ok := os.LookupEnv(key); ok {
			*dst = strings.EqualFold(v, "true") || v == "1"
		}
	}
	return nil
}

// Validate checks the configuration for values the components cannot use.
func (c *Config) Validate() error {
	var errs []error

	switch strings.ToLower(c.Server.Transport) {
	case "http", "stdio":
	default:
		errs = append(errs, fmt.Errorf("server.transport must be 'http' or 'stdio', got %q", c.Server.Transport))
	}
	switch strings.ToLower(c.Server.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %q", c.Server.LogLevel))
	}
	if c.Upload.MaxBytes <= 0 {
		errs = append(errs, fmt.Errorf("upload.max_bytes must be positive, got %d", c.Upload.MaxBytes))
	}
	if len(c.Upload.AllowedTypes) == 0 {
		errs = append(errs, errors.New("upload.allowed_types must not be empty"))
	}
	if c.Search.ContextRadius < 0 {
		errs = append(errs, fmt.Errorf("search.context_radius must be non-negative, got %d", c.Search.ContextRadius))
	}
	if c.Search.MaxResults < 0 {
		errs = append(errs, fmt.Errorf("search.max_results must be non-negative, got %d", c.Search.MaxResults))
	}
	if c.Store.MaxDocuments <= 0 {
		errs = append(errs, fmt.Errorf("store.max_documents must be positive, got %d", c.Store.MaxDocuments))
	}
	if c.Extract.Workers <= 0 {
		errs = append(errs, fmt.Errorf("extract.workers must be positive, got %d", c.Extract.Workers))
	}
	if c.Watch.Enabled && c.Watch.Dir == "" {
		errs = append(errs, errors.New("watch.dir is required when watch is enabled"))
	}
	if c.Watch.Debounce != "" {
		if _, err := time.ParseDuration(c.Watch.Debounce); err != nil {
			errs = append(errs, fmt.Errorf("watch.debounce: %w", err))
		}
	}
	if c.Telemetry.FlushInterval != "" {
		if _, err := time.ParseDuration(c.Telemetry.FlushInterval); err != nil {
			errs = append(errs, fmt.Errorf("telemetry.flush_interval: %w", err))
		}
	}

	return errors.Join(errs...)
}

// AllowsType reports whether an upload content type is accepted.
func (c *Config) AllowsType(contentType string) bool {
	base, _, _ := strings.Cut(contentType, ";")
	base = strings.TrimSpace(strings.ToLower(base))
	for _, t := range c.Upload.AllowedTypes {
		if strings.EqualFold(t, base) {
			return true
		}
	}
	return false
}

// WriteYAML writes the configuration to path, creating parent directories.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
