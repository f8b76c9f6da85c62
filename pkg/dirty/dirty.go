// Package dirty tracks which assembly functions changed between runs.
// A function is identified by its file and name and fingerprinted by its
// text, so moving a function within its file does not make it dirty.
package dirty

import (
	"cmp"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/l3aro/go-asm-flow/pkg/cache"
	"github.com/l3aro/go-asm-flow/pkg/source"
)

// DefaultStateFile is the default filename for the tracker state.
const DefaultStateFile = "functions.state"

// stateVersion is bumped whenever the on-disk layout changes.
const stateVersion = 1

// Kind says how a function changed since it was last checked.
type Kind string

const (
	Added    Kind = "added"
	Modified Kind = "modified"
	Removed  Kind = "removed"
)

// Change is a function that differs from the recorded state.
type Change struct {
	File     string `json:"file"`
	Function string `json:"function"`
	Kind     Kind   `json:"kind"`
}

// functionState is the recorded state of a single function.
type functionState struct {
	File     string `msgpack:"file"`
	Function string `msgpack:"function"`
	Hash     string `msgpack:"hash"`
	LastSeen int64  `msgpack:"last_seen"` // Unix timestamp
}

// stateData is the on-disk structure.
type stateData struct {
	Version   int             `msgpack:"version"`
	Functions []functionState `msgpack:"functions"`
}

// Tracker records function fingerprints. It is safe for concurrent use.
type Tracker struct {
	mu    sync.RWMutex
	funcs map[string]functionState
	path  string
	now   func() time.Time
}

// New creates an empty Tracker persisted at path.
func New(path string) *Tracker {
	return &Tracker{
		funcs: make(map[string]functionState),
		path:  path,
		now:   time.Now,
	}
}

// Load creates a Tracker from the state at path. A missing file yields an
// empty tracker.
func Load(path string) (*Tracker, error) {
	t := New(path)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return t, nil
		}
		return nil, fmt.Errorf("failed to open state file: %w", err)
	}
	defer f.Close()

	if err := t.LoadFrom(f); err != nil {
		return nil, err
	}
	return t, nil
}

func key(file, name string) string {
	return file + "\x00" + name
}

func fingerprint(fn *source.Function) string {
	return cache.Key(strings.Join(fn.Lines, "\n"))
}

// CheckAndMark compares fns with the recorded state, records their current
// fingerprints and returns what changed. Tracked functions of the files in
// fns that are no longer present are reported as removed and forgotten.
// Changes are ordered by file, then function name.
func (t *Tracker) CheckAndMark(fns []*source.Function) []Change {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now().Unix()
	var changes []Change
	seen := make(map[string]bool, len(fns))
	files := make(map[string]bool)

	for _, fn := range fns {
		k := key(fn.File, fn.Name)
		seen[k] = true
		files[fn.File] = true

		hash := fingerprint(fn)
		existing, exists := t.funcs[k]
		switch {
		case !exists:
			changes = append(changes, Change{File: fn.File, Function: fn.Name, Kind: Added})
		case existing.Hash != hash:
			changes = append(changes, Change{File: fn.File, Function: fn.Name, Kind: Modified})
		}
		t.funcs[k] = functionState{File: fn.File, Function: fn.Name, Hash: hash, LastSeen: now}
	}

	for k, state := range t.funcs {
		if files[state.File] && !seen[k] {
			changes = append(changes, Change{File: state.File, Function: state.Function, Kind: Removed})
			delete(t.funcs, k)
		}
	}

	slices.SortFunc(changes, func(a, b Change) int {
		return cmp.Or(cmp.Compare(a.File, b.File), cmp.Compare(a.Function, b.Function))
	})
	return changes
}

// Forget drops every function recorded for file and returns them as
// removed, ordered by function name.
func (t *Tracker) Forget(file string) []Change {
	t.mu.Lock()
	defer t.mu.Unlock()
	var removed []Change
	for k, state := range t.funcs {
		if state.File == file {
			removed = append(removed, Change{File: file, Function: state.Function, Kind: Removed})
			delete(t.funcs, k)
		}
	}
	slices.SortFunc(removed, func(a, b Change) int { return cmp.Compare(a.Function, b.Function) })
	return removed
}

// Files returns the sorted files with at least one tracked function.
func (t *Tracker) Files() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var files []string
	for _, state := range t.funcs {
		files = append(files, state.File)
	}
	slices.Sort(files)
	return slices.Compact(files)
}

// Len returns the number of tracked functions.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.funcs)
}

// recordedHash returns the recorded fingerprint of a function.
func (t *Tracker) recordedHash(file, name string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	state, ok := t.funcs[key(file, name)]
	return state.Hash, ok
}

// Clear removes all tracked functions.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.funcs = make(map[string]functionState)
}

// Save persists the state to the tracker's path, creating its directory.
func (t *Tracker) Save() error {
	dir := filepath.Dir(t.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(t.path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create state file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := t.SaveTo(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	return os.Rename(tmp.Name(), t.path)
}

// SaveTo writes the state to w, ordered by file and function.
func (t *Tracker) SaveTo(w io.Writer) error {
	t.mu.RLock()
	funcs := make([]functionState, 0, len(t.funcs))
	for _, state := range t.funcs {
		funcs = append(funcs, state)
	}
	t.mu.RUnlock()

	slices.SortFunc(funcs, func(a, b functionState) int {
		return cmp.Or(cmp.Compare(a.File, b.File), cmp.Compare(a.Function, b.Function))
	})

	if err := msgpack.NewEncoder(w).Encode(stateData{Version: stateVersion, Functions: funcs}); err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	return nil
}

// LoadFrom replaces the state with the one read from r. State written by a
// different version is discarded.
func (t *Tracker) LoadFrom(r io.Reader) error {
	var data stateData
	if err := msgpack.NewDecoder(r).Decode(&data); err != nil {
		return fmt.Errorf("failed to decode state: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.funcs = make(map[string]functionState, len(data.Functions))
	if data.Version != stateVersion {
		return nil
	}
	for _, state := range data.Functions {
		t.funcs[key(state.File, state.Function)] = state
	}
	return nil
}
