// Package source loads assembly files and splits them into functions.
package source

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/l3aro/go-asm-flow/pkg/asm"
)

// ErrFunctionNotFound is returned when a file declares no function by the
// requested name.
var ErrFunctionNotFound = errors.New("function not found")

var globalDirectives = map[string]bool{
	".GLB":    true,
	".GLOBAL": true,
	".GLOBL":  true,
}

// CallSite is a call instruction inside a function.
type CallSite struct {
	Line     int    `json:"line" yaml:"line" msgpack:"line"` // 1-based line in the file
	Target   string `json:"target,omitempty" yaml:"target,omitempty" msgpack:"target,omitempty"`
	Indirect bool   `json:"indirect,omitempty" yaml:"indirect,omitempty" msgpack:"indirect,omitempty"`
	Text     string `json:"text" yaml:"text" msgpack:"text"`
}

// Function is one function of an assembly file.
type Function struct {
	Name      string     `json:"name" yaml:"name" msgpack:"name"`
	File      string     `json:"file" yaml:"file" msgpack:"file"`
	StartLine int        `json:"start_line" yaml:"start_line" msgpack:"start_line"` // 1-based, inclusive
	EndLine   int        `json:"end_line" yaml:"end_line" msgpack:"end_line"`       // 1-based, inclusive
	Global    bool       `json:"global" yaml:"global" msgpack:"global"`             // Exported with .GLB
	Calls     []string   `json:"calls,omitempty" yaml:"calls,omitempty" msgpack:"calls,omitempty"`
	CallSites []CallSite `json:"call_sites,omitempty" yaml:"call_sites,omitempty" msgpack:"call_sites,omitempty"`
	Lines     []string   `json:"-" yaml:"-" msgpack:"lines"`
}

// File is a parsed assembly source file.
type File struct {
	Path      string
	Lines     []string
	Functions []*Function
}

// Load reads and parses the assembly file at path.
func Load(path string, d asm.Dialect) (*File, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file %s: %w", path, err)
	}
	return Parse(path, content, d), nil
}

// Parse splits content into functions.
//
// A label opens a new function when no function is open yet, when it is
// exported with .GLB, when it is the target of a call, or when it follows a
// return or unconditional branch and no branch in the file targets it. Any
// other label is internal to the current function. Parsing stops at .END.
func Parse(path string, content []byte, d asm.Dialect) *File {
	lines := splitLines(content)
	insts := asm.Segment(lines, d)

	globals := make(map[string]bool)
	called := make(map[string]bool)
	branched := make(map[string]bool)
	end := len(insts)
	for i, inst := range insts {
		switch {
		case inst.Mnemonic == ".END":
			end = min(end, i)
		case globalDirectives[inst.Mnemonic]:
			for _, op := range inst.Operands {
				globals[op] = true
			}
		case inst.Call != "":
			called[inst.Call] = true
		case inst.IsBranch():
			branched[inst.Branch.Target] = true
		}
	}

	f := &File{Path: path, Lines: lines}
	var (
		cur      *Function
		curStart int
		last     asm.Instruction
	)
	closeFunc := func(next int) {
		if cur == nil {
			return
		}
		stop := trimTail(insts, curStart, next)
		cur.EndLine = stop
		cur.Lines = slices.Clone(lines[curStart:stop])
		cur.CallSites = callSites(insts[curStart:stop])
		cur.Calls = callees(cur.CallSites)
		f.Functions = append(f.Functions, cur)
	}

	for i := 0; i < end; i++ {
		inst := insts[i]
		if inst.Label != "" {
			starts := cur == nil ||
				globals[inst.Label] ||
				called[inst.Label] ||
				(!branched[inst.Label] && last.IsTerminator())
			if starts {
				closeFunc(i)
				cur = &Function{
					Name:      inst.Label,
					File:      path,
					StartLine: i + 1,
					Global:    globals[inst.Label],
				}
				curStart = i
			}
		}
		if inst.Mnemonic != "" && !strings.HasPrefix(inst.Mnemonic, ".") {
			last = inst
		}
	}
	closeFunc(end)
	return f
}

// Function returns the function with the given name.
func (f *File) Function(name string) (*Function, error) {
	for _, fn := range f.Functions {
		if fn.Name == name {
			return fn, nil
		}
	}
	return nil, fmt.Errorf("%w: %q in %s", ErrFunctionNotFound, name, f.Path)
}

// Names returns the function names in file order.
func (f *File) Names() []string {
	names := make([]string, len(f.Functions))
	for i, fn := range f.Functions {
		names[i] = fn.Name
	}
	return names
}

// trimTail returns the exclusive end of a function spanning [start, next),
// dropping trailing blank lines and label-free directives.
func trimTail(insts []asm.Instruction, start, next int) int {
	stop := next
	for stop > start+1 {
		inst := insts[stop-1]
		if !inst.IsBlank() && (inst.Label != "" || !strings.HasPrefix(inst.Mnemonic, ".")) {
			break
		}
		stop--
	}
	return stop
}

func callSites(insts []asm.Instruction) []CallSite {
	var sites []CallSite
	for _, inst := range insts {
		if inst.Call == "" && !inst.Indirect {
			continue
		}
		sites = append(sites, CallSite{
			Line:     inst.Index + 1,
			Target:   inst.Call,
			Indirect: inst.Indirect,
			Text:     strings.TrimSpace(inst.Text),
		})
	}
	return sites
}

func callees(sites []CallSite) []string {
	var out []string
	for _, s := range sites {
		if s.Target != "" && !slices.Contains(out, s.Target) {
			out = append(out, s.Target)
		}
	}
	slices.Sort(out)
	return out
}

func splitLines(content []byte) []string {
	text := strings.ReplaceAll(string(content), "\r\n", "\n")
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}
