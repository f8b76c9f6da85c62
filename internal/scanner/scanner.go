// Package scanner walks a source tree and collects assembly files. It honours
// .gafignore files with gitignore-style patterns, nested ones included.
package scanner

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// DefaultIgnoreFile is the name of the per-directory ignore file.
const DefaultIgnoreFile = ".gafignore"

// FileInfo describes a discovered file.
type FileInfo struct {
	Path     string // Relative to the scan root, forward slashes
	FullPath string
	Size     int64
}

// Options configures a scan.
type Options struct {
	SkipHidden      bool     // Skip files and directories starting with "."
	FollowSymlinks  bool     // Follow file symlinks that stay inside the root
	DefaultExcludes []string // Directory names never entered
	IgnoreFileName  string   // Defaults to DefaultIgnoreFile
	Extensions      []string // Accepted extensions; empty accepts every file
}

// DefaultOptions returns options that collect assembly sources.
func DefaultOptions() Options {
	return Options{
		SkipHidden:     true,
		IgnoreFileName: DefaultIgnoreFile,
		Extensions:     slices.Clone(DefaultExtensions),
		DefaultExcludes: []string{
			".git",
			".hg",
			".svn",
			"node_modules",
			"vendor",
			"build",
			"dist",
			"obj",
			"Debug",
			"Release",
			"DefaultBuild",
		},
	}
}

// Scanner walks file trees.
type Scanner struct {
	opts Options
}

// New creates a Scanner.
func New(opts Options) *Scanner {
	if opts.IgnoreFileName == "" {
		opts.IgnoreFileName = DefaultIgnoreFile
	}
	return &Scanner{opts: opts}
}

// Scan walks root and returns the accepted files sorted by path. Unreadable
// entries are skipped.
func (s *Scanner) Scan(root string) ([]FileInfo, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("getting absolute path: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}
	if !info.IsDir() {
		return []FileInfo{{Path: filepath.Base(absRoot), FullPath: absRoot, Size: info.Size()}}, nil
	}

	var (
		files []FileInfo
		sets  []ignoreSet
	)
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == absRoot {
				return err
			}
			return nil
		}

		rel, err := filepath.Rel(absRoot, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rel != "." && s.skipDir(d.Name(), rel, sets) {
				return filepath.SkipDir
			}
			patterns, err := s.loadIgnoreFile(path)
			if err != nil {
				return fmt.Errorf("loading ignore patterns: %w", err)
			}
			if len(patterns) > 0 {
				base := rel
				if base == "." {
					base = ""
				}
				sets = append(sets, ignoreSet{base: base, patterns: patterns})
			}
			return nil
		}

		if s.opts.SkipHidden && isHidden(d.Name()) {
			return nil
		}
		if !s.accepts(d.Name()) || ignored(sets, rel) {
			return nil
		}

		fi, ok := s.fileInfo(absRoot, path, d)
		if !ok {
			return nil
		}
		files = append(files, FileInfo{Path: rel, FullPath: path, Size: fi.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}

	slices.SortFunc(files, func(a, b FileInfo) int { return strings.Compare(a.Path, b.Path) })
	return files, nil
}

func (s *Scanner) skipDir(name, rel string, sets []ignoreSet) bool {
	if s.opts.SkipHidden && isHidden(name) {
		return true
	}
	for _, exclude := range s.opts.DefaultExcludes {
		if strings.EqualFold(name, exclude) {
			return true
		}
	}
	return ignored(sets, rel)
}

func (s *Scanner) accepts(name string) bool {
	if len(s.opts.Extensions) == 0 {
		return true
	}
	return HasExtension(name, s.opts.Extensions)
}

// fileInfo resolves symlinks; links leaving the root or pointing at
// directories are rejected.
func (s *Scanner) fileInfo(root, path string, d fs.DirEntry) (fs.FileInfo, bool) {
	if d.Type()&fs.ModeSymlink == 0 {
		fi, err := d.Info()
		return fi, err == nil
	}
	if !s.opts.FollowSymlinks {
		return nil, false
	}
	target, err := filepath.EvalSymlinks(path)
	if err != nil {
		return nil, false
	}
	if target, err = filepath.Abs(target); err != nil {
		return nil, false
	}
	if !strings.HasPrefix(target, root+string(filepath.Separator)) {
		return nil, false
	}
	fi, err := os.Stat(target)
	if err != nil || fi.IsDir() {
		return nil, false
	}
	return fi, true
}

func (s *Scanner) loadIgnoreFile(dir string) ([]IgnorePattern, error) {
	file, err := os.Open(filepath.Join(dir, s.opts.IgnoreFileName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	var patterns []IgnorePattern
	sc := bufio.NewScanner(file)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, ParseIgnorePattern(line))
	}
	return patterns, sc.Err()
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// Scan scans root with default options.
func Scan(root string) ([]FileInfo, error) {
	return New(DefaultOptions()).Scan(root)
}
