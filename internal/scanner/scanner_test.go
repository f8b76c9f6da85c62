package scanner

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for path, content := range files {
		fullPath := filepath.Join(root, path)
		if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
			t.Fatalf("Failed to create directory: %v", err)
		}
		if err := os.WriteFile(fullPath, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to create file: %v", err)
		}
	}
}

func paths(files []FileInfo) map[string]bool {
	found := make(map[string]bool, len(files))
	for _, f := range files {
		found[f.Path] = true
	}
	return found
}

func TestScannerScan(t *testing.T) {
	tmpDir := t.TempDir()
	writeTree(t, tmpDir, map[string]string{
		"main.src":               "_main:\n  RTS\n",
		"lib/util.s":             "util:\n  RTS\n",
		"lib/boot.ASM":           "boot:\n  RTS\n",
		"README.md":              "# Test",
		"include/regs.inc":       "R_BASE: .EQU 0",
		".hidden/secret.src":     "x:\n  RTS\n",
		"build/out.src":          "x:\n  RTS\n",
		"node_modules/pkg/a.asm": "x:\n  RTS\n",
	})

	results, err := New(DefaultOptions()).Scan(tmpDir)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	found := paths(results)
	for _, want := range []string{"main.src", "lib/util.s", "lib/boot.ASM", "include/regs.inc"} {
		if !found[want] {
			t.Errorf("Expected to find %s", want)
		}
	}
	for _, skip := range []string{"README.md", ".hidden/secret.src", "build/out.src", "node_modules/pkg/a.asm"} {
		if found[skip] {
			t.Errorf("Expected %s to be excluded", skip)
		}
	}

	// Results are sorted by path.
	for i := 1; i < len(results); i++ {
		if results[i-1].Path > results[i].Path {
			t.Errorf("Results not sorted: %s before %s", results[i-1].Path, results[i].Path)
		}
	}
	for _, f := range results {
		if !filepath.IsAbs(f.FullPath) {
			t.Errorf("FullPath %s is not absolute", f.FullPath)
		}
	}
}

func TestScannerWithIgnoreFile(t *testing.T) {
	tmpDir := t.TempDir()
	writeTree(t, tmpDir, map[string]string{
		DefaultIgnoreFile: "# generated code\n*_gen.src\ngenerated/\nold.s\n",
		"app.src":         "content",
		"app_gen.src":     "content",
		"generated/x.src": "content",
		"old.s":           "content",
		"keep/old2.s":     "content",
	})

	results, err := New(DefaultOptions()).Scan(tmpDir)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	found := paths(results)
	for _, want := range []string{"app.src", "keep/old2.s"} {
		if !found[want] {
			t.Errorf("Expected to find %s", want)
		}
	}
	for _, skip := range []string{"app_gen.src", "generated/x.src", "old.s"} {
		if found[skip] {
			t.Errorf("Expected %s to be ignored", skip)
		}
	}
}

func TestScannerNestedIgnoreFile(t *testing.T) {
	tmpDir := t.TempDir()
	writeTree(t, tmpDir, map[string]string{
		"drivers/" + DefaultIgnoreFile: "/legacy.src\n!keep_*.src\ntmp_*.src\n",
		"drivers/legacy.src":           "content",
		"drivers/uart.src":             "content",
		"drivers/tmp_a.src":            "content",
		"legacy.src":                   "content",
	})

	results, err := New(DefaultOptions()).Scan(tmpDir)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	found := paths(results)
	if found["drivers/legacy.src"] {
		t.Error("Nested anchored pattern should ignore drivers/legacy.src")
	}
	if found["drivers/tmp_a.src"] {
		t.Error("Nested glob should ignore drivers/tmp_a.src")
	}
	if !found["drivers/uart.src"] {
		t.Error("Expected to find drivers/uart.src")
	}
	if !found["legacy.src"] {
		t.Error("Nested patterns must not apply outside their directory")
	}
}

func TestScannerExtensions(t *testing.T) {
	tmpDir := t.TempDir()
	writeTree(t, tmpDir, map[string]string{
		"a.src":     "content",
		"b.txt":     "content",
		".hidden.s": "content",
	})

	opts := DefaultOptions()
	opts.Extensions = nil
	opts.SkipHidden = false
	results, err := New(opts).Scan(tmpDir)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	found := paths(results)
	for _, want := range []string{"a.src", "b.txt", ".hidden.s"} {
		if !found[want] {
			t.Errorf("Expected to find %s with no extension filter", want)
		}
	}

	opts.Extensions = []string{"txt"}
	results, err = New(opts).Scan(tmpDir)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(results) != 1 || results[0].Path != "b.txt" {
		t.Errorf("Expected only b.txt, got %v", results)
	}
}

func TestScanSingleFile(t *testing.T) {
	tmpDir := t.TempDir()
	writeTree(t, tmpDir, map[string]string{"one.src": "content"})

	results, err := Scan(filepath.Join(tmpDir, "one.src"))
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(results) != 1 || results[0].Path != "one.src" {
		t.Errorf("Expected one.src, got %v", results)
	}

	if _, err := Scan(filepath.Join(tmpDir, "missing")); err == nil {
		t.Error("Expected error for missing root")
	}
}

func TestHasExtension(t *testing.T) {
	tests := []struct {
		name string
		exts []string
		want bool
	}{
		{"main.src", DefaultExtensions, true},
		{"MAIN.SRC", DefaultExtensions, true},
		{"boot.s", []string{"s"}, true},
		{"notes.txt", DefaultExtensions, false},
		{"Makefile", DefaultExtensions, false},
	}

	for _, tt := range tests {
		if got := HasExtension(tt.name, tt.exts); got != tt.want {
			t.Errorf("HasExtension(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestIgnorePattern(t *testing.T) {
	tests := []struct {
		pattern string
		path    string
		match   bool
	}{
		// Simple patterns
		{"*.src", "file.src", true},
		{"*.src", "dir/file.src", true},
		{"*.src", "file.s", false},
		{"build/", "build/file.src", true},
		{"build/", "other/build/file.src", true},
		{"build/", "builder.src", false},
		{"build/", "build", false},

		// Anchored patterns
		{"/build/", "build/file.src", true},
		{"/build/", "src/build/file.src", false},
		{"src/*.s", "src/app.s", true},
		{"src/*.s", "src/deep/app.s", false},

		// Double asterisk
		{"**/test/**", "test/file.src", true},
		{"**/test/**", "src/test/file.src", true},
		{"**/test/**", "src/deep/test/file.src", true},
		{"**/test/**", "testing/file.src", false},

		// Question mark and classes
		{"file?.s", "file1.s", true},
		{"file?.s", "file12.s", false},
		{"v[0-9].src", "v3.src", true},
		{"v[0-9].src", "vx.src", false},

		// A negation still matches; the caller flips the result.
		{"!*.src", "file.src", true},
	}

	for _, tt := range tests {
		pattern := ParseIgnorePattern(tt.pattern)
		if got := pattern.Match(tt.path); got != tt.match {
			t.Errorf("Pattern %q matching %q: got %v, want %v", tt.pattern, tt.path, got, tt.match)
		}
	}

	if !ParseIgnorePattern("!keep.src").IsNegation() {
		t.Error("Expected negation")
	}
}
