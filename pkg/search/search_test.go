package search

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/l3aro/go-asm-flow/pkg/asm"
	"github.com/l3aro/go-asm-flow/pkg/cfg"
	"github.com/l3aro/go-asm-flow/pkg/source"
)

func loadSample(t *testing.T) []*source.File {
	t.Helper()
	f, err := source.Load(filepath.Join("..", "..", "testdata", "rx", "sample.src"), asm.RX())
	if err != nil {
		t.Fatalf("failed to load sample: %v", err)
	}
	return []*source.File{f}
}

func TestSearchRegex(t *testing.T) {
	files := loadSample(t)

	matches, err := Search(context.Background(), "jsr", files)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	want := []struct {
		line int
		fn   string
	}{
		{7, "_main"},
		{8, "_main"},
		{20, "LOOP_EXAMPLE"},
		{40, "CHECK_SIGN"},
		{41, "CHECK_SIGN"},
	}
	if len(matches) != len(want) {
		t.Fatalf("expected %d matches, got %d: %+v", len(want), len(matches), matches)
	}
	for i, w := range want {
		if matches[i].LineNumber != w.line || matches[i].Function != w.fn {
			t.Errorf("match %d = line %d in %q, want line %d in %q",
				i, matches[i].LineNumber, matches[i].Function, w.line, w.fn)
		}
		if matches[i].Match != "JSR" || matches[i].Column != 8 {
			t.Errorf("match %d = %q at column %d", i, matches[i].Match, matches[i].Column)
		}
	}
}

func TestSearchCaseSensitive(t *testing.T) {
	files := loadSample(t)

	s := NewSearcher(asm.RX(), Options{CaseSensitive: true})
	matches, err := s.Search(context.Background(), "jsr", files)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("expected no matches, got %d", len(matches))
	}
}

func TestSearchMnemonic(t *testing.T) {
	files := loadSample(t)

	s := NewSearcher(asm.RX(), Options{Mnemonic: true})
	matches, err := s.Search(context.Background(), "rts", files)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(matches) != 6 {
		t.Fatalf("expected 6 matches, got %d", len(matches))
	}
	// The last return sits after .END and belongs to no function.
	if last := matches[len(matches)-1]; last.LineNumber != 45 || last.Function != "" {
		t.Errorf("unexpected trailing match %+v", last)
	}

	// A base mnemonic matches every size variant.
	matches, err = s.Search(context.Background(), "MOV", files)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(matches) != 3 {
		t.Errorf("expected 3 MOV matches, got %d", len(matches))
	}

	// A sized mnemonic matches only itself.
	matches, err = s.Search(context.Background(), "CMP.L", files)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(matches) != 1 || matches[0].LineNumber != 16 {
		t.Errorf("expected CMP.L on line 16, got %+v", matches)
	}
}

func TestSearchMnemonicAfterLabel(t *testing.T) {
	f := source.Parse("inline.src", []byte("START: NOP\n  RTS\n"), asm.RX())

	s := NewSearcher(asm.RX(), Options{Mnemonic: true})
	matches, err := s.Search(context.Background(), "NOP", []*source.File{f})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	if matches[0].Column != 7 || matches[0].Function != "START" {
		t.Errorf("unexpected match %+v", matches[0])
	}
}

func TestSearchRegister(t *testing.T) {
	files := loadSample(t)

	s := NewSearcher(asm.RX(), Options{Register: "r6"})
	matches, err := s.Search(context.Background(), "", files)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	access := make(map[int]string)
	inLoop := 0
	for _, m := range matches {
		access[m.LineNumber] = m.Access
		if m.Function == "LOOP_EXAMPLE" {
			inLoop++
		}
	}
	if inLoop != 7 {
		t.Errorf("expected 7 matches in LOOP_EXAMPLE, got %d", inLoop)
	}

	tests := []struct {
		line int
		want string
	}{
		{14, "definition"},
		{16, "use"},
		{22, "use,definition"},
		{27, "definition"},
	}
	for _, tt := range tests {
		if got := access[tt.line]; got != tt.want {
			t.Errorf("line %d access = %q, want %q", tt.line, got, tt.want)
		}
	}
}

func TestSearchRegisterInRange(t *testing.T) {
	files := loadSample(t)

	s := NewSearcher(asm.RX(), Options{Register: "R7"})
	matches, err := s.Search(context.Background(), "", files)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected PUSH and POP of R6-R8, got %+v", matches)
	}
	if matches[0].Access != "use" || matches[1].Access != "definition" {
		t.Errorf("unexpected access %q, %q", matches[0].Access, matches[1].Access)
	}
}

func TestSearchRegisterWithPattern(t *testing.T) {
	files := loadSample(t)

	s := NewSearcher(asm.RX(), Options{Register: "R1", Mnemonic: true})
	matches, err := s.Search(context.Background(), "MOV", files)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	for _, m := range matches {
		if m.Access != "definition" || m.Match != "MOV.L" {
			t.Errorf("unexpected match %+v", m)
		}
	}
}

func TestSearchBlocks(t *testing.T) {
	files := loadSample(t)

	s := NewSearcher(asm.RX(), Options{Mnemonic: true, Blocks: true})
	matches, err := s.Search(context.Background(), "JSR", files)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	var inLoop *Match
	for i := range matches {
		if matches[i].LineNumber == 20 {
			inLoop = &matches[i]
		}
	}
	if inLoop == nil || inLoop.Block == nil {
		t.Fatalf("expected a block for line 20, got %+v", matches)
	}
	if inLoop.Block.ID != 2 || inLoop.Block.Role != cfg.RoleLoopBody {
		t.Errorf("Block = %+v, want block 2 in the loop body", *inLoop.Block)
	}

	// Without the option no graph is built.
	plain, err := NewSearcher(asm.RX(), Options{Mnemonic: true}).Search(context.Background(), "JSR", files)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	for _, m := range plain {
		if m.Block != nil {
			t.Errorf("unexpected block on line %d", m.LineNumber)
		}
	}
}

func TestSearchContextLines(t *testing.T) {
	files := loadSample(t)

	s := NewSearcher(asm.RX(), Options{ContextLines: 1})
	matches, err := s.Search(context.Background(), `NEG\s+R1`, files)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}

	m := matches[0]
	if m.LineNumber != 36 || m.Function != "PROCESS_DATA" {
		t.Errorf("unexpected match %+v", m)
	}
	if len(m.ContextBefore) != 1 || m.ContextBefore[0] != "NEGATIVE:" {
		t.Errorf("ContextBefore = %q", m.ContextBefore)
	}
	if len(m.ContextAfter) != 1 || m.ContextAfter[0] != "        RTS" {
		t.Errorf("ContextAfter = %q", m.ContextAfter)
	}
}

func TestSearchMaxResults(t *testing.T) {
	files := loadSample(t)

	s := NewSearcher(asm.RX(), Options{MaxResults: 2})
	matches, err := s.Search(context.Background(), "R6", files)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(matches) != 2 {
		t.Errorf("expected 2 matches, got %d", len(matches))
	}
}

func TestSearchMultipleFiles(t *testing.T) {
	a := source.Parse("a.src", []byte("A:\n  JSR B\n  RTS\n"), asm.RX())
	b := source.Parse("b.src", []byte("B:\n  RTS\n"), asm.RX())

	s := NewSearcher(asm.RX(), Options{Mnemonic: true, Workers: 1})
	matches, err := s.Search(context.Background(), "RTS", []*source.File{a, b})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(matches) != 2 || matches[0].File != "a.src" || matches[1].File != "b.src" {
		t.Errorf("expected one match per file in order, got %+v", matches)
	}
}

func TestSearchErrors(t *testing.T) {
	files := loadSample(t)

	tests := []struct {
		name    string
		opts    Options
		pattern string
	}{
		{"empty pattern", Options{}, ""},
		{"bad register", Options{Register: "X9"}, ""},
		{"bad regex", Options{}, "[unclosed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewSearcher(asm.RX(), tt.opts).Search(context.Background(), tt.pattern, files); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestSearchCancelled(t *testing.T) {
	files := loadSample(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := Search(ctx, "RTS", files); err == nil {
		t.Error("expected error for cancelled context")
	}
}
