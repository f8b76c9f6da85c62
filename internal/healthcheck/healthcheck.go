// Package healthcheck inspects the configuration and the on-disk state that
// gaf keeps between runs.
package healthcheck

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/l3aro/go-asm-flow/internal/config"
	"github.com/l3aro/go-asm-flow/pkg/cache"
	"github.com/l3aro/go-asm-flow/pkg/dirty"
)

// Status values reported for each component.
const (
	StatusReady    = "ready"
	StatusEmpty    = "empty"
	StatusDisabled = "disabled"
	StatusError    = "error"
)

// ComponentStatus represents the health of one persisted component.
type ComponentStatus struct {
	Path    string
	Status  string // "ready", "empty", "disabled" or "error"
	Entries int
	Bytes   int64
	Error   string
}

// DialectStatus summarises the mnemonic tables in effect.
type DialectStatus struct {
	Branches    int
	Returns     int
	Calls       int
	Fingerprint string // Short digest of asm.Dialect.Fingerprint
}

// HealthCheckResult contains the full health check output for display.
type HealthCheckResult struct {
	EffectivePath  string
	EffectiveScope string // "global", "project" or "default"
	LoopStrategy   string
	Dialect        DialectStatus
	Cache          ComponentStatus
	State          ComponentStatus
}

// HasError reports whether any component failed its check.
func (r *HealthCheckResult) HasError() bool {
	return r.Cache.Status == StatusError || r.State.Status == StatusError
}

// Check performs a health check against the given config.
// effectivePath is the config file actually in use; empty means defaults.
func Check(cfg *config.Config, effectivePath string) (*HealthCheckResult, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	d := cfg.Dialect()
	result := &HealthCheckResult{
		EffectivePath:  effectivePath,
		EffectiveScope: scopeFromPath(effectivePath),
		LoopStrategy:   cfg.LoopStrategy,
		Dialect: DialectStatus{
			Branches:    len(d.Branches),
			Returns:     len(d.Returns),
			Calls:       len(d.Calls),
			Fingerprint: cache.Key(d.Fingerprint())[:12],
		},
	}

	result.Cache = checkCache(cfg)
	result.State = checkState(cfg)
	return result, nil
}

// scopeFromPath determines "global" or "project" scope from a config file path.
func scopeFromPath(path string) string {
	if path == "" {
		return "default"
	}

	home, err := os.UserHomeDir()
	if err == nil {
		globalDir := filepath.Join(home, config.Dir)
		if strings.HasPrefix(path, globalDir) {
			return "global"
		}
	}

	return "project"
}

// checkCache loads the analysis cache the way analyze does.
func checkCache(cfg *config.Config) ComponentStatus {
	status := ComponentStatus{Path: cfg.CacheFile()}
	if !cfg.CacheEnabled {
		status.Status = StatusDisabled
		return status
	}

	if info, err := os.Stat(cfg.CacheDir); err == nil && !info.IsDir() {
		status.Status = StatusError
		status.Error = fmt.Sprintf("cache_dir %s is not a directory", cfg.CacheDir)
		return status
	}

	c := cache.New(cache.Options{MaxEntries: cfg.CacheMaxEntries})
	if err := cache.LoadFromFile(c, status.Path); err != nil {
		status.Status = StatusError
		status.Error = err.Error()
		return status
	}

	status.Entries = c.Len()
	status.Bytes = c.CurrentBytes()
	if status.Entries == 0 {
		status.Status = StatusEmpty
	} else {
		status.Status = StatusReady
	}
	return status
}

// checkState loads the change tracker state used by analyze --changed.
func checkState(cfg *config.Config) ComponentStatus {
	status := ComponentStatus{Path: filepath.Join(cfg.CacheDir, dirty.DefaultStateFile)}

	tracker, err := dirty.Load(status.Path)
	if err != nil {
		status.Status = StatusError
		status.Error = err.Error()
		return status
	}

	status.Entries = tracker.Len()
	if status.Entries == 0 {
		status.Status = StatusEmpty
	} else {
		status.Status = StatusReady
	}
	return status
}
