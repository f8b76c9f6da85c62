package scanner

import (
	"path"
	"path/filepath"
	"strings"
)

// IgnorePattern is one gitignore-style line of an ignore file.
type IgnorePattern struct {
	raw      string
	negate   bool // Leading "!"
	dirOnly  bool // Trailing "/"
	anchored bool // Leading "/" or a "/" inside the pattern
	segments []string
}

// ParseIgnorePattern parses a gitignore-style pattern.
func ParseIgnorePattern(line string) IgnorePattern {
	p := IgnorePattern{raw: line}

	if strings.HasPrefix(line, "!") {
		p.negate = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		p.dirOnly = true
		line = strings.TrimSuffix(line, "/")
	}
	if strings.HasPrefix(line, "/") {
		p.anchored = true
		line = line[1:]
	} else if strings.Contains(line, "/") {
		p.anchored = true
	}

	p.segments = strings.Split(line, "/")
	return p
}

// String returns the pattern as written.
func (p IgnorePattern) String() string {
	return p.raw
}

// IsNegation reports whether the pattern re-includes what it matches.
func (p IgnorePattern) IsNegation() bool {
	return p.negate
}

// Match reports whether relPath or one of its parent directories matches
// the pattern. Directory-only patterns never match the final element.
func (p IgnorePattern) Match(relPath string) bool {
	segs := strings.Split(filepath.ToSlash(relPath), "/")

	last := len(segs)
	if p.dirOnly {
		last--
	}
	for n := 1; n <= last; n++ {
		if p.matchPath(segs[:n]) {
			return true
		}
	}
	return false
}

func (p IgnorePattern) matchPath(segs []string) bool {
	if p.anchored {
		return matchSegments(p.segments, segs)
	}
	for start := range segs {
		if matchSegments(p.segments, segs[start:]) {
			return true
		}
	}
	return false
}

// matchSegments matches glob segments against path segments. A "**"
// segment matches any number of path segments.
func matchSegments(pattern, segs []string) bool {
	if len(pattern) == 0 {
		return len(segs) == 0
	}
	if pattern[0] == "**" {
		for i := 0; i <= len(segs); i++ {
			if matchSegments(pattern[1:], segs[i:]) {
				return true
			}
		}
		return false
	}
	if len(segs) == 0 {
		return false
	}
	if ok, err := path.Match(pattern[0], segs[0]); err != nil || !ok {
		return false
	}
	return matchSegments(pattern[1:], segs[1:])
}

// ignoreSet holds the patterns of one ignore file. Patterns apply to paths
// below base.
type ignoreSet struct {
	base     string
	patterns []IgnorePattern
}

// ignored applies gitignore precedence: the last matching pattern wins.
func ignored(sets []ignoreSet, relPath string) bool {
	out := false
	for _, set := range sets {
		rel := relPath
		if set.base != "" {
			if !strings.HasPrefix(relPath, set.base+"/") {
				continue
			}
			rel = strings.TrimPrefix(relPath, set.base+"/")
		}
		for _, p := range set.patterns {
			if p.Match(rel) {
				out = !p.negate
			}
		}
	}
	return out
}
