// Package search finds instructions across assembly files by regular
// expression, mnemonic or register, and attributes each hit to the
// function that contains it.
package search

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/l3aro/go-asm-flow/pkg/asm"
	"github.com/l3aro/go-asm-flow/pkg/cfg"
	"github.com/l3aro/go-asm-flow/pkg/fnctx"
	"github.com/l3aro/go-asm-flow/pkg/source"
)

// DefaultWorkers bounds the files searched concurrently.
const DefaultWorkers = 10

// Options configures search behavior.
type Options struct {
	// Mnemonic matches the pattern against instruction mnemonics instead of
	// the line text. "MOV" matches every size variant, "MOV.L" only itself.
	Mnemonic bool
	// Register keeps only instructions that read or write this register.
	Register string
	// ContextLines is the number of lines to include before and after each match.
	ContextLines int
	// MaxResults limits the total number of matches returned.
	// 0 means no limit.
	MaxResults int
	// CaseSensitive determines if a regular expression pattern is case-sensitive.
	CaseSensitive bool
	// Workers bounds concurrency; 0 uses DefaultWorkers.
	Workers int
	// Blocks attaches the basic block holding each match.
	Blocks bool
}

// BlockRef identifies the basic block a match sits in.
type BlockRef struct {
	ID   int      `json:"id"`
	Role cfg.Role `json:"role"`
}

// Match is a single matching line.
type Match struct {
	File          string    `json:"file"`
	Function      string    `json:"function,omitempty"` // Empty outside any function
	LineNumber    int       `json:"line_number"`        // 1-based
	LineContent   string    `json:"line"`
	Column        int       `json:"column"` // 0-based byte offset of Match
	Match         string    `json:"match"`
	Access        string    `json:"access,omitempty"` // Register access for register searches
	Block         *BlockRef `json:"block,omitempty"`
	ContextBefore []string  `json:"context_before,omitempty"`
	ContextAfter  []string  `json:"context_after,omitempty"`
}

// Searcher searches parsed assembly files.
type Searcher struct {
	opts    Options
	dialect asm.Dialect
}

// NewSearcher creates a Searcher decoding instructions with d.
func NewSearcher(d asm.Dialect, opts Options) *Searcher {
	if d.Branches == nil {
		d = asm.RX()
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	opts.Register = strings.ToUpper(strings.TrimSpace(opts.Register))
	return &Searcher{opts: opts, dialect: d}
}

// matcher decides whether one line matches and where.
type matcher struct {
	pattern  *regexp.Regexp
	mnemonic string
	register *regexp.Regexp
}

func (s *Searcher) compile(pattern string) (*matcher, error) {
	if pattern == "" && s.opts.Register == "" {
		return nil, fmt.Errorf("pattern cannot be empty")
	}
	m := &matcher{}
	if s.opts.Register != "" {
		if !asm.IsRegister(s.opts.Register) {
			return nil, fmt.Errorf("not a register: %s", s.opts.Register)
		}
		m.register = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(s.opts.Register) + `\b`)
	}
	switch {
	case pattern == "":
	case s.opts.Mnemonic:
		m.mnemonic = strings.ToUpper(pattern)
	default:
		flags := ""
		if !s.opts.CaseSensitive {
			flags = "(?i)"
		}
		re, err := regexp.Compile(flags + pattern)
		if err != nil {
			return nil, fmt.Errorf("compiling regex: %w", err)
		}
		m.pattern = re
	}
	return m, nil
}

// Search returns the matches of pattern in files, in file then line order.
// pattern may be empty when a register is given.
func (s *Searcher) Search(ctx context.Context, pattern string, files []*source.File) ([]Match, error) {
	m, err := s.compile(pattern)
	if err != nil {
		return nil, err
	}

	perFile := make([][]Match, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for i, f := range files {
		g.Go(func() error {
			matches, err := s.searchFile(gctx, f, m)
			perFile[i] = matches
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var matches []Match
	for _, fileMatches := range perFile {
		for _, match := range fileMatches {
			if s.opts.MaxResults > 0 && len(matches) >= s.opts.MaxResults {
				return matches, nil
			}
			matches = append(matches, match)
		}
	}
	return matches, nil
}

// searchFile searches a single file for matches.
func (s *Searcher) searchFile(ctx context.Context, f *source.File, m *matcher) ([]Match, error) {
	owner := make([]*source.Function, len(f.Lines))
	for _, fn := range f.Functions {
		for line := fn.StartLine; line <= fn.EndLine && line <= len(f.Lines); line++ {
			owner[line-1] = fn
		}
	}
	graphs := make(map[*source.Function]*cfg.Function)

	var matches []Match
	for i, line := range f.Lines {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		match, ok := s.matchLine(i, line, m)
		if !ok {
			continue
		}
		match.File = f.Path
		if fn := owner[i]; fn != nil {
			match.Function = fn.Name
			if s.opts.Blocks {
				match.Block = s.blockRef(fn, i, graphs)
			}
		}
		match.LineNumber = i + 1
		match.LineContent = line

		if n := s.opts.ContextLines; n > 0 {
			match.ContextBefore = append([]string(nil), f.Lines[max(0, i-n):i]...)
			match.ContextAfter = append([]string(nil), f.Lines[i+1:min(len(f.Lines), i+n+1)]...)
		}

		matches = append(matches, match)
		if s.opts.MaxResults > 0 && len(matches) >= s.opts.MaxResults {
			break
		}
	}
	return matches, nil
}

func (s *Searcher) matchLine(i int, line string, m *matcher) (Match, bool) {
	var match Match
	var loc []int

	var inst asm.Instruction
	if m.mnemonic != "" || m.register != nil {
		inst = s.dialect.Parse(i, line)
	}

	if m.register != nil {
		access := registerAccess(inst, s.opts.Register)
		if access == "" {
			return match, false
		}
		match.Access = access
		// Registers inside a range such as R6-R8 have no literal position.
		loc = m.register.FindStringIndex(asm.StripComment(line))
	}

	switch {
	case m.mnemonic != "":
		if inst.Mnemonic != m.mnemonic && inst.BaseMnemonic() != m.mnemonic {
			return match, false
		}
		loc = mnemonicIndex(line, inst)
	case m.pattern != nil:
		if loc = m.pattern.FindStringIndex(line); loc == nil {
			return match, false
		}
	}

	if loc != nil {
		match.Column = loc[0]
		match.Match = line[loc[0]:loc[1]]
	}
	return match, true
}

// blockRef returns the block of fn holding file line index i. Graphs are
// built once per function and kept in graphs.
func (s *Searcher) blockRef(fn *source.Function, i int, graphs map[*source.Function]*cfg.Function) *BlockRef {
	g, ok := graphs[fn]
	if !ok {
		g, _ = cfg.Analyze(fn.Name, fn.Lines, cfg.WithDialect(s.dialect))
		graphs[fn] = g
	}
	if g == nil {
		return nil
	}
	b, ok := g.BlockAt(i - (fn.StartLine - 1))
	if !ok {
		return nil
	}
	return &BlockRef{ID: b.ID(), Role: b.Role()}
}

// registerAccess describes how inst touches reg: "use", "definition" or
// both joined by a comma. Empty means not at all.
func registerAccess(inst asm.Instruction, reg string) string {
	var use, def bool
	for _, ref := range fnctx.References(inst) {
		if ref.Name != reg {
			continue
		}
		switch ref.RefType {
		case fnctx.RefTypeUse:
			use = true
		case fnctx.RefTypeDefinition:
			def = true
		}
	}
	switch {
	case use && def:
		return string(fnctx.RefTypeUse) + "," + string(fnctx.RefTypeDefinition)
	case use:
		return string(fnctx.RefTypeUse)
	case def:
		return string(fnctx.RefTypeDefinition)
	}
	return ""
}

// mnemonicIndex locates the mnemonic of inst in line, past any label.
func mnemonicIndex(line string, inst asm.Instruction) []int {
	off := 0
	if inst.Label != "" {
		if i := strings.Index(line, inst.Label); i >= 0 {
			off = i + len(inst.Label)
		}
	}
	i := strings.Index(strings.ToUpper(line[off:]), inst.Mnemonic)
	if i < 0 {
		return nil
	}
	return []int{off + i, off + i + len(inst.Mnemonic)}
}

// Search is a convenience function that searches with the RX dialect and
// default options.
func Search(ctx context.Context, pattern string, files []*source.File) ([]Match, error) {
	return NewSearcher(asm.RX(), Options{}).Search(ctx, pattern, files)
}
