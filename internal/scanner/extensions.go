package scanner

import (
	"path/filepath"
	"strings"
)

// DefaultExtensions are the file extensions treated as assembly sources.
var DefaultExtensions = []string{".src", ".s", ".asm", ".a30", ".mar", ".inc"}

// HasExtension reports whether name ends in one of exts, ignoring case.
// Extensions may be given with or without the leading dot.
func HasExtension(name string, exts []string) bool {
	ext := filepath.Ext(name)
	if ext == "" {
		return false
	}
	for _, e := range exts {
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}
