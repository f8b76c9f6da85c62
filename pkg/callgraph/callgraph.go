// Package callgraph builds the direct call graph of assembly functions across
// the files of a project. Edges come from JSR/BSR call sites whose target is
// a function defined in one of the loaded files.
package callgraph

import (
	"slices"

	"github.com/l3aro/go-asm-flow/pkg/source"
)

// FunctionEntry is a function known to the graph.
type FunctionEntry struct {
	Name       string `json:"name"`
	FilePath   string `json:"file"`
	LineNumber int    `json:"line_number"`
	Global     bool   `json:"global"`
}

// Edge is a resolved call (caller_file, caller_func, callee_file, callee_func).
type Edge struct {
	SourceFile string `json:"src_file"`
	SourceFunc string `json:"src_func"`
	DestFile   string `json:"dst_file"`
	DestFunc   string `json:"dst_func"`
	LineNumber int    `json:"line_number"` // Line of the call instruction
}

// UnresolvedReason tells why a call site has no edge.
type UnresolvedReason string

const (
	// ReasonIndirect is a call through a register or computed operand.
	ReasonIndirect UnresolvedReason = "indirect"
	// ReasonUndefined is a call to a label no loaded file defines.
	ReasonUndefined UnresolvedReason = "undefined"
)

// UnresolvedCall is a call site that could not be turned into an edge.
type UnresolvedCall struct {
	SourceFile string           `json:"src_file"`
	SourceFunc string           `json:"src_func"`
	Target     string           `json:"target,omitempty"`
	Text       string           `json:"text"`
	LineNumber int              `json:"line_number"`
	Reason     UnresolvedReason `json:"reason"`
}

// Graph is an immutable call graph. It is safe for concurrent reads.
type Graph struct {
	entries    map[string]FunctionEntry
	order      []string
	callees    map[string][]string
	callers    map[string][]string
	edges      []Edge
	unresolved []UnresolvedCall
	duplicates map[string][]FunctionEntry
}

// Build indexes every function of files and resolves their call sites.
// When two files define the same name the first one wins and the others are
// reported by Duplicates.
func Build(files ...*source.File) *Graph {
	g := &Graph{
		entries:    make(map[string]FunctionEntry),
		callees:    make(map[string][]string),
		callers:    make(map[string][]string),
		duplicates: make(map[string][]FunctionEntry),
	}

	// Pass 1: index definitions.
	for _, f := range files {
		for _, fn := range f.Functions {
			entry := FunctionEntry{
				Name:       fn.Name,
				FilePath:   f.Path,
				LineNumber: fn.StartLine,
				Global:     fn.Global,
			}
			if _, ok := g.entries[fn.Name]; ok {
				g.duplicates[fn.Name] = append(g.duplicates[fn.Name], entry)
				continue
			}
			g.entries[fn.Name] = entry
			g.order = append(g.order, fn.Name)
		}
	}

	// Pass 2: resolve call sites.
	for _, f := range files {
		for _, fn := range f.Functions {
			if g.entries[fn.Name].FilePath != f.Path {
				continue
			}
			for _, site := range fn.CallSites {
				g.resolve(f.Path, fn.Name, site)
			}
		}
	}

	for name := range g.callees {
		slices.Sort(g.callees[name])
	}
	for name := range g.callers {
		slices.Sort(g.callers[name])
	}
	return g
}

func (g *Graph) resolve(file, caller string, site source.CallSite) {
	unresolved := UnresolvedCall{
		SourceFile: file,
		SourceFunc: caller,
		Target:     site.Target,
		Text:       site.Text,
		LineNumber: site.Line,
	}
	if site.Indirect {
		unresolved.Reason = ReasonIndirect
		g.unresolved = append(g.unresolved, unresolved)
		return
	}

	callee, ok := g.entries[site.Target]
	if !ok {
		unresolved.Reason = ReasonUndefined
		g.unresolved = append(g.unresolved, unresolved)
		return
	}

	g.edges = append(g.edges, Edge{
		SourceFile: file,
		SourceFunc: caller,
		DestFile:   callee.FilePath,
		DestFunc:   callee.Name,
		LineNumber: site.Line,
	})
	if !slices.Contains(g.callees[caller], callee.Name) {
		g.callees[caller] = append(g.callees[caller], callee.Name)
		g.callers[callee.Name] = append(g.callers[callee.Name], caller)
	}
}

// Lookup returns the entry for a function name.
func (g *Graph) Lookup(name string) (FunctionEntry, bool) {
	e, ok := g.entries[name]
	return e, ok
}

// Functions returns every function name in load order.
func (g *Graph) Functions() []string {
	return slices.Clone(g.order)
}

// Callees returns the sorted distinct functions called by name.
func (g *Graph) Callees(name string) []string {
	return slices.Clone(g.callees[name])
}

// Callers returns the sorted distinct functions calling name.
func (g *Graph) Callers(name string) []string {
	return slices.Clone(g.callers[name])
}

// Edges returns one edge per resolved call site, in load order.
func (g *Graph) Edges() []Edge {
	return slices.Clone(g.edges)
}

// Unresolved returns the call sites without an edge, in load order.
func (g *Graph) Unresolved() []UnresolvedCall {
	return slices.Clone(g.unresolved)
}

// Roots returns the functions nobody calls, in load order.
func (g *Graph) Roots() []string {
	var roots []string
	for _, name := range g.order {
		if len(g.callers[name]) == 0 {
			roots = append(roots, name)
		}
	}
	return roots
}

// Duplicates returns the definitions shadowed by an earlier one of the same
// name.
func (g *Graph) Duplicates() map[string][]FunctionEntry {
	out := make(map[string][]FunctionEntry, len(g.duplicates))
	for name, entries := range g.duplicates {
		out[name] = slices.Clone(entries)
	}
	return out
}

// Reachable returns the functions transitively called from name, excluding
// name itself unless it is recursive.
func (g *Graph) Reachable(name string) []string {
	seen := make(map[string]bool)
	stack := slices.Clone(g.callees[name])
	var out []string
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[cur] {
			continue
		}
		seen[cur] = true
		out = append(out, cur)
		stack = append(stack, g.callees[cur]...)
	}
	slices.Sort(out)
	return out
}
