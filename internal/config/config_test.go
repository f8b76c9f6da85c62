package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/l3aro/go-asm-flow/internal/scanner"
	"github.com/l3aro/go-asm-flow/pkg/asm"
	"github.com/l3aro/go-asm-flow/pkg/cfg"
)

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()

	tests := []struct {
		name     string
		got      interface{}
		expected interface{}
	}{
		{"LoopStrategy", c.LoopStrategy, "path"},
		{"Workers", c.Workers, 0},
		{"CacheEnabled", c.CacheEnabled, true},
		{"CacheDir", c.CacheDir, filepath.Join(".gaf", "cache")},
		{"CacheMaxEntries", c.CacheMaxEntries, 10000},
		{"IgnoreFile", c.IgnoreFile, ".gafignore"},
		{"OutputFormat", c.OutputFormat, FormatText},
		{"Verbose", c.Verbose, false},
		{"LogJSON", c.LogJSON, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("DefaultConfig().%s = %v, want %v", tt.name, tt.got, tt.expected)
			}
		})
	}

	if !reflect.DeepEqual(c.Extensions, scanner.DefaultExtensions) {
		t.Errorf("DefaultConfig().Extensions = %v", c.Extensions)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("DefaultConfig() is invalid: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name        string
		modify      func(*Config)
		wantErr     bool
		errContains string
	}{
		{
			name:   "defaults",
			modify: func(*Config) {},
		},
		{
			name:   "dominator strategy",
			modify: func(c *Config) { c.LoopStrategy = "dominator" },
		},
		{
			name:        "unknown strategy",
			modify:      func(c *Config) { c.LoopStrategy = "interval" },
			wantErr:     true,
			errContains: "invalid loop_strategy",
		},
		{
			name:        "negative workers",
			modify:      func(c *Config) { c.Workers = -1 },
			wantErr:     true,
			errContains: "workers must be non-negative",
		},
		{
			name:        "negative cache size",
			modify:      func(c *Config) { c.CacheMaxEntries = -5 },
			wantErr:     true,
			errContains: "cache_max_entries",
		},
		{
			name:        "cache without directory",
			modify:      func(c *Config) { c.CacheDir = "" },
			wantErr:     true,
			errContains: "cache_dir is required",
		},
		{
			name: "disabled cache without directory",
			modify: func(c *Config) {
				c.CacheEnabled = false
				c.CacheDir = ""
			},
		},
		{
			name:        "unknown output format",
			modify:      func(c *Config) { c.OutputFormat = "xml" },
			wantErr:     true,
			errContains: "invalid output_format",
		},
		{
			name:        "empty extension",
			modify:      func(c *Config) { c.Extensions = []string{".src", "."} },
			wantErr:     true,
			errContains: "extensions",
		},
		{
			name:        "bad branch mnemonic",
			modify:      func(c *Config) { c.Branches = map[string]string{"B HI": "GTU"} },
			wantErr:     true,
			errContains: "invalid branch mnemonic",
		},
		{
			name:        "empty call mnemonic",
			modify:      func(c *Config) { c.Calls = []string{""} },
			wantErr:     true,
			errContains: "invalid mnemonic",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			tt.modify(c)
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr && !strings.Contains(err.Error(), tt.errContains) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.errContains)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	tests := []struct {
		name        string
		configYAML  string
		envVars     map[string]string
		checkCfg    func(*testing.T, *Config)
		wantErr     bool
		errContains string
	}{
		{
			name: "load valid config from file",
			configYAML: `
loop_strategy: dominator
workers: 3
cache_enabled: false
cache_dir: /tmp/gaf-cache
cache_max_entries: 50
extensions: [".s", ".asm"]
ignore_file: .asmignore
output_format: json
verbose: true
log_json: true
`,
			checkCfg: func(t *testing.T, c *Config) {
				if c.LoopStrategy != "dominator" {
					t.Errorf("LoopStrategy = %v, want dominator", c.LoopStrategy)
				}
				if c.Workers != 3 {
					t.Errorf("Workers = %v, want 3", c.Workers)
				}
				if c.CacheEnabled {
					t.Error("CacheEnabled = true, want false")
				}
				if c.CacheDir != "/tmp/gaf-cache" {
					t.Errorf("CacheDir = %v, want /tmp/gaf-cache", c.CacheDir)
				}
				if c.CacheMaxEntries != 50 {
					t.Errorf("CacheMaxEntries = %v, want 50", c.CacheMaxEntries)
				}
				if !reflect.DeepEqual(c.Extensions, []string{".s", ".asm"}) {
					t.Errorf("Extensions = %v", c.Extensions)
				}
				if c.IgnoreFile != ".asmignore" {
					t.Errorf("IgnoreFile = %v, want .asmignore", c.IgnoreFile)
				}
				if c.OutputFormat != FormatJSON {
					t.Errorf("OutputFormat = %v, want json", c.OutputFormat)
				}
				if !c.Verbose || !c.LogJSON {
					t.Errorf("Verbose = %v, LogJSON = %v, want both true", c.Verbose, c.LogJSON)
				}
			},
		},
		{
			name: "partial file keeps defaults",
			configYAML: `
workers: 8
`,
			checkCfg: func(t *testing.T, c *Config) {
				if c.Workers != 8 {
					t.Errorf("Workers = %v, want 8", c.Workers)
				}
				if c.LoopStrategy != "path" || !c.CacheEnabled || c.OutputFormat != FormatText {
					t.Errorf("defaults lost: %+v", c)
				}
			},
		},
		{
			name: "dialect extensions",
			configYAML: `
branches:
  BHI: GTU
  JMPX: ""
returns: [RETI]
calls: [CALLF]
`,
			checkCfg: func(t *testing.T, c *Config) {
				d := c.Dialect()
				if cond, ok := d.Branches["BHI"]; !ok || cond != "GTU" {
					t.Errorf("BHI = %q, %v", cond, ok)
				}
				if cond, ok := d.Branches["JMPX"]; !ok || cond != "" {
					t.Errorf("JMPX = %q, %v", cond, ok)
				}
				if !d.Returns["RETI"] || !d.Calls["CALLF"] {
					t.Error("extra returns/calls not applied")
				}
				if !d.Calls["JSR"] {
					t.Error("RX calls lost")
				}
			},
		},
		{
			name: "env var overrides file values",
			configYAML: `
loop_strategy: path
workers: 2
verbose: false
`,
			envVars: map[string]string{
				"GAF_LOOP_STRATEGY": "dominator",
				"GAF_WORKERS":       "6",
				"GAF_VERBOSE":       "yes",
				"GAF_EXTENSIONS":    ".src, .mar",
				"GAF_BRANCHES":      "BHI=GTU,JMPX",
			},
			checkCfg: func(t *testing.T, c *Config) {
				if c.LoopStrategy != "dominator" {
					t.Errorf("LoopStrategy = %v, want dominator", c.LoopStrategy)
				}
				if c.Workers != 6 {
					t.Errorf("Workers = %v, want 6", c.Workers)
				}
				if !c.Verbose {
					t.Error("Verbose = false, want true")
				}
				if !reflect.DeepEqual(c.Extensions, []string{".src", ".mar"}) {
					t.Errorf("Extensions = %v", c.Extensions)
				}
				if !reflect.DeepEqual(c.Branches, map[string]string{"BHI": "GTU", "JMPX": ""}) {
					t.Errorf("Branches = %v", c.Branches)
				}
			},
		},
		{
			name:        "invalid yaml",
			configYAML:  "workers: [1, 2",
			wantErr:     true,
			errContains: "failed to parse config file",
		},
		{
			name:        "invalid value",
			configYAML:  "output_format: html\n",
			wantErr:     true,
			errContains: "invalid output_format",
		},
		{
			name:        "invalid env number",
			configYAML:  "workers: 1\n",
			envVars:     map[string]string{"GAF_WORKERS": "many"},
			wantErr:     true,
			errContains: "GAF_WORKERS",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.configYAML), 0644); err != nil {
				t.Fatalf("failed to write config: %v", err)
			}

			c, err := LoadFromFile(path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("LoadFromFile() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("LoadFromFile() error = %v, want containing %q", err, tt.errContains)
				}
				return
			}
			tt.checkCfg(t, c)
		})
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil || !strings.Contains(err.Error(), "failed to read config file") {
		t.Errorf("LoadFromFile() error = %v", err)
	}
}

func TestLoadLayering(t *testing.T) {
	dir := t.TempDir()
	global := filepath.Join(dir, "global.yaml")
	project := filepath.Join(dir, "project.yaml")

	if err := os.WriteFile(global, []byte("workers: 2\nverbose: true\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(project, []byte("workers: 4\n"), 0644); err != nil {
		t.Fatal(err)
	}

	c, err := load(global, project, filepath.Join(dir, "missing.yaml"))
	if err != nil {
		t.Fatalf("load() failed: %v", err)
	}
	if c.Workers != 4 {
		t.Errorf("Workers = %d, want project value 4", c.Workers)
	}
	if !c.Verbose {
		t.Error("Verbose from global config was lost")
	}
}

func TestConfigSave(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "nested", "dirs", "config.yaml")

	c := DefaultConfig()
	c.LoopStrategy = "dominator"
	c.Workers = 5
	c.Branches = map[string]string{"BHI": "GTU"}
	c.Returns = []string{"RETI"}

	if err := c.Save(configPath); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	loaded, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile() failed: %v", err)
	}
	if !reflect.DeepEqual(loaded, c) {
		t.Errorf("roundtrip mismatch:\n got %+v\nwant %+v", loaded, c)
	}
}

func TestStrategyAndDialect(t *testing.T) {
	c := DefaultConfig()
	if _, ok := c.Strategy().(cfg.PathClosure); !ok {
		t.Errorf("Strategy() = %T, want PathClosure", c.Strategy())
	}
	c.LoopStrategy = "dominator"
	if _, ok := c.Strategy().(cfg.Dominator); !ok {
		t.Errorf("Strategy() = %T, want Dominator", c.Strategy())
	}

	if got, want := c.Dialect().Fingerprint(), asm.RX().Fingerprint(); got != want {
		t.Error("Dialect() without extensions should be plain RX")
	}
	if got := c.CacheFile(); got != filepath.Join(".gaf", "cache", "analysis.cache") {
		t.Errorf("CacheFile() = %q", got)
	}
}

func TestDialectSizedMnemonics(t *testing.T) {
	c := DefaultConfig()
	c.Branches = map[string]string{"JMPX.S": ""}
	c.Calls = []string{"callx.l"}
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	d := c.Dialect()
	if inst := d.Parse(0, "JMPX.S done"); inst.Branch == nil || !inst.IsTerminator() {
		t.Errorf("JMPX.S should parse as an unconditional branch, got %+v", inst)
	}
	if got := d.Parse(0, "CALLX helper").Call; got != "helper" {
		t.Errorf("CALLX call target = %q, want helper", got)
	}
}
