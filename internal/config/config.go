package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/l3aro/go-asm-flow/internal/scanner"
	"github.com/l3aro/go-asm-flow/pkg/asm"
	"github.com/l3aro/go-asm-flow/pkg/cfg"
)

// OutputFormat selects how commands print their results.
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
	FormatYAML OutputFormat = "yaml"
	FormatDOT  OutputFormat = "dot"
)

// Dir is the name of the per-user and per-project configuration directory.
const Dir = ".gaf"

// Config holds all configuration for go-asm-flow
type Config struct {
	// LoopStrategy names the loop detector: "path" or "dominator"
	LoopStrategy string `yaml:"loop_strategy" env:"GAF_LOOP_STRATEGY"`

	// Workers bounds concurrent function analyses; 0 uses GOMAXPROCS
	Workers int `yaml:"workers" env:"GAF_WORKERS"`

	// Analysis cache
	CacheEnabled    bool   `yaml:"cache_enabled" env:"GAF_CACHE_ENABLED"`
	CacheDir        string `yaml:"cache_dir" env:"GAF_CACHE_DIR"`
	CacheMaxEntries int    `yaml:"cache_max_entries" env:"GAF_CACHE_MAX_ENTRIES"`

	// Source discovery
	Extensions []string `yaml:"extensions" env:"GAF_EXTENSIONS"`
	IgnoreFile string   `yaml:"ignore_file" env:"GAF_IGNORE_FILE"`

	// Extra mnemonics layered on top of the RX dialect. Branches maps a
	// mnemonic to its condition code, empty for unconditional.
	Branches map[string]string `yaml:"branches,omitempty" env:"GAF_BRANCHES"`
	Returns  []string          `yaml:"returns,omitempty" env:"GAF_RETURNS"`
	Calls    []string          `yaml:"calls,omitempty" env:"GAF_CALLS"`

	OutputFormat OutputFormat `yaml:"output_format" env:"GAF_OUTPUT_FORMAT"`

	// Logging
	Verbose bool `yaml:"verbose" env:"GAF_VERBOSE"`
	LogJSON bool `yaml:"log_json" env:"GAF_LOG_JSON"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		LoopStrategy:    cfg.PathClosure{}.Name(),
		Workers:         0,
		CacheEnabled:    true,
		CacheDir:        filepath.Join(Dir, "cache"),
		CacheMaxEntries: 10000,
		Extensions:      slices.Clone(scanner.DefaultExtensions),
		IgnoreFile:      scanner.DefaultIgnoreFile,
		OutputFormat:    FormatText,
		Verbose:         false,
		LogJSON:         false,
	}
}

// GlobalConfigFilePath returns the global config file path (~/.gaf/config.yaml)
func GlobalConfigFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(Dir, "config.yaml")
	}
	return filepath.Join(home, Dir, "config.yaml")
}

// ProjectConfigFilePath returns the project-level config file path (./.gaf/config.yaml)
func ProjectConfigFilePath() string {
	return filepath.Join(Dir, "config.yaml")
}

// Load reads configuration with the following priority (highest to lowest):
// 1. Environment variables
// 2. Project-level config (./.gaf/config.yaml)
// 3. Global config (~/.gaf/config.yaml)
// 4. Defaults
func Load() (*Config, error) {
	return load(GlobalConfigFilePath(), ProjectConfigFilePath())
}

func load(paths ...string) (*Config, error) {
	c := DefaultConfig()

	// Missing files are skipped; later files override earlier ones.
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(c); err != nil {
		return nil, err
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return c, nil
}

// LoadFromFile reads configuration from a specific YAML file path
func LoadFromFile(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return load(path)
}

// Save writes the configuration to the specified YAML file path.
// It creates parent directories if they don't exist.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config
func applyEnvOverrides(c *Config) error {
	if v := os.Getenv("GAF_LOOP_STRATEGY"); v != "" {
		c.LoopStrategy = v
	}
	if v := os.Getenv("GAF_WORKERS"); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid GAF_WORKERS %q: %w", v, err)
		}
		c.Workers = i
	}
	if v := os.Getenv("GAF_CACHE_ENABLED"); v != "" {
		c.CacheEnabled = parseBool(v)
	}
	if v := os.Getenv("GAF_CACHE_DIR"); v != "" {
		c.CacheDir = v
	}
	if v := os.Getenv("GAF_CACHE_MAX_ENTRIES"); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid GAF_CACHE_MAX_ENTRIES %q: %w", v, err)
		}
		c.CacheMaxEntries = i
	}
	if v := os.Getenv("GAF_EXTENSIONS"); v != "" {
		c.Extensions = splitList(v)
	}
	if v := os.Getenv("GAF_IGNORE_FILE"); v != "" {
		c.IgnoreFile = v
	}
	if v := os.Getenv("GAF_BRANCHES"); v != "" {
		branches, err := parseBranches(v)
		if err != nil {
			return err
		}
		c.Branches = branches
	}
	if v := os.Getenv("GAF_RETURNS"); v != "" {
		c.Returns = splitList(v)
	}
	if v := os.Getenv("GAF_CALLS"); v != "" {
		c.Calls = splitList(v)
	}
	if v := os.Getenv("GAF_OUTPUT_FORMAT"); v != "" {
		c.OutputFormat = OutputFormat(v)
	}
	if v := os.Getenv("GAF_VERBOSE"); v != "" {
		c.Verbose = parseBool(v)
	}
	if v := os.Getenv("GAF_LOG_JSON"); v != "" {
		c.LogJSON = parseBool(v)
	}
	return nil
}

// Validate checks that the configuration has valid required fields
func (c *Config) Validate() error {
	if _, err := cfg.ParseLoopStrategy(c.LoopStrategy); err != nil {
		return fmt.Errorf("invalid loop_strategy: %s (must be 'path' or 'dominator')", c.LoopStrategy)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative")
	}
	if c.CacheMaxEntries < 0 {
		return fmt.Errorf("cache_max_entries must be non-negative")
	}
	if c.CacheEnabled && c.CacheDir == "" {
		return fmt.Errorf("cache_dir is required when cache_enabled is true")
	}

	switch c.OutputFormat {
	case FormatText, FormatJSON, FormatYAML, FormatDOT:
		// Valid
	default:
		return fmt.Errorf("invalid output_format: %s (must be 'text', 'json', 'yaml' or 'dot')", c.OutputFormat)
	}

	for _, ext := range c.Extensions {
		if strings.TrimPrefix(ext, ".") == "" {
			return fmt.Errorf("extensions must not contain empty entries")
		}
	}
	for m := range c.Branches {
		if !isMnemonic(m) {
			return fmt.Errorf("invalid branch mnemonic %q", m)
		}
	}
	for _, m := range slices.Concat(c.Returns, c.Calls) {
		if !isMnemonic(m) {
			return fmt.Errorf("invalid mnemonic %q", m)
		}
	}

	return nil
}

// Strategy returns the configured loop detector.
func (c *Config) Strategy() cfg.LoopStrategy {
	s, err := cfg.ParseLoopStrategy(c.LoopStrategy)
	if err != nil {
		return cfg.PathClosure{}
	}
	return s
}

// Dialect returns the RX dialect extended with the configured mnemonics.
func (c *Config) Dialect() asm.Dialect {
	d := asm.RX()
	if len(c.Branches) == 0 && len(c.Returns) == 0 && len(c.Calls) == 0 {
		return d
	}
	return d.With(c.Branches, c.Returns, c.Calls)
}

// CacheFile returns the path of the persisted analysis cache.
func (c *Config) CacheFile() string {
	return filepath.Join(c.CacheDir, "analysis.cache")
}

func isMnemonic(m string) bool {
	if m == "" {
		return false
	}
	for _, r := range m {
		if !(r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '.' || r == '_') {
			return false
		}
	}
	return true
}

// parseBranches parses "BHI=GTU,BRA2" into a branch table. A mnemonic
// without "=" is unconditional.
func parseBranches(s string) (map[string]string, error) {
	out := make(map[string]string)
	for _, item := range splitList(s) {
		m, cond, _ := strings.Cut(item, "=")
		m = strings.TrimSpace(m)
		if m == "" {
			return nil, fmt.Errorf("invalid GAF_BRANCHES entry %q", item)
		}
		out[m] = strings.TrimSpace(cond)
	}
	return out, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseBool(s string) bool {
	switch strings.ToLower(s) {
	case "true", "1", "yes", "on":
		return true
	}
	return false
}
