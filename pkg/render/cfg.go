// Package render produces Graphviz DOT output for control flow graphs and
// call graphs.
package render

import (
	"fmt"
	"strings"

	"github.com/zboralski/lattice"
	lrender "github.com/zboralski/lattice/render"

	"github.com/l3aro/go-asm-flow/pkg/cfg"
)

// maxBlockLines bounds the instructions drawn inside one node.
const maxBlockLines = 12

// CFGDOT renders an analyzed function as DOT. Each block is a node listing
// its instructions and roles; the entry is outlined, exits are shaded,
// loop headers are filled and back edges are dashed.
func CFGDOT(f *cfg.Function, t Theme) string {
	blocks := f.Blocks()
	if len(blocks) == 0 {
		return ""
	}
	start, end := f.SourceRange()

	var b strings.Builder
	b.WriteString("digraph cfg {\n")
	b.WriteString("  rankdir=TB;\n")
	b.WriteString("  nodesep=0.3;\n")
	b.WriteString("  ranksep=0.4;\n")
	fmt.Fprintf(&b, "  bgcolor=%q;\n", t.Background)
	fmt.Fprintf(&b, "  node [shape=rect, style=filled, fillcolor=%q, color=%q, penwidth=0.5, fontname=\"Courier,monospace\", fontsize=8, fontcolor=%q, margin=\"0.08,0.04\"];\n",
		t.NodeFill, t.NodeBorder, t.TextColor)
	b.WriteString("  edge [penwidth=0.7, arrowsize=0.5, arrowhead=vee];\n")
	b.WriteString("  labelloc=t;\n  labeljust=l;\n")
	fmt.Fprintf(&b, "  label=<<font face=\"Helvetica Neue,Helvetica\" point-size=\"9\" color=\"%s\">%s (lines %d-%d, %s loops)</font>>;\n",
		t.TextColor, dotEscape(f.Name()), start, end, f.LoopStrategy())
	b.WriteByte('\n')

	for _, blk := range blocks {
		fmt.Fprintf(&b, "  bb%d [label=<%s>%s];\n", blk.ID(), blockLabel(blk), blockAttrs(f, blk, t))
	}
	b.WriteByte('\n')

	back := backEdges(f)
	for _, e := range f.Edges() {
		attrs := []string{}
		switch e.Type {
		case cfg.EdgeTypeTrue:
			attrs = append(attrs, fmt.Sprintf("color=%q", t.EdgeTaken),
				fmt.Sprintf("label=<<font point-size=\"7\" color=\"%s\">%s</font>>", t.EdgeTaken, dotEscape(e.Condition)))
		case cfg.EdgeTypeFalse:
			attrs = append(attrs, fmt.Sprintf("color=%q", t.EdgeNotTaken),
				fmt.Sprintf("label=<<font point-size=\"7\" color=\"%s\">!%s</font>>", t.EdgeNotTaken, dotEscape(branchCond(f, e.From))))
		default:
			attrs = append(attrs, fmt.Sprintf("color=%q", t.EdgeDirect))
		}
		if back[[2]int{e.From, e.To}] {
			attrs[0] = fmt.Sprintf("color=%q", t.EdgeBack)
			attrs = append(attrs, "style=dashed")
		}
		fmt.Fprintf(&b, "  bb%d -> bb%d [%s];\n", e.From, e.To, strings.Join(attrs, ", "))
	}

	b.WriteString("}\n")
	return b.String()
}

func blockLabel(blk *cfg.BasicBlock) string {
	roles := make([]string, 0, 3)
	for _, r := range blk.Roles() {
		roles = append(roles, string(r))
	}
	lines := []string{fmt.Sprintf("<b>B%d</b> %s", blk.ID(), strings.Join(roles, ", "))}

	var code []string
	for _, inst := range blk.Instructions() {
		if inst.IsBlank() {
			continue
		}
		code = append(code, dotEscape(fmt.Sprintf("%3d: %s", inst.Index, strings.TrimSpace(inst.Text))))
	}
	if len(code) > maxBlockLines {
		kept := append(code[:5:5], fmt.Sprintf("... (%d more)", len(code)-10))
		code = append(kept, code[len(code)-5:]...)
	}
	lines = append(lines, code...)
	for _, d := range blk.Defects() {
		lines = append(lines, "! "+dotEscape(string(d.Kind)))
	}
	return strings.Join(lines, "<br align=\"left\"/>") + "<br align=\"left\"/>"
}

func blockAttrs(f *cfg.Function, blk *cfg.BasicBlock, t Theme) string {
	var attrs string
	if blk.ID() == f.Entry() {
		attrs += fmt.Sprintf(", penwidth=1.5, color=%q", t.EntryBorder)
	}
	switch {
	case f.IsExit(blk.ID()):
		attrs += fmt.Sprintf(", fillcolor=%q", t.ExitFill)
	case blk.HasRole(cfg.RoleLoopHeader):
		attrs += fmt.Sprintf(", fillcolor=%q", t.LoopFill)
	}
	if len(blk.Defects()) > 0 {
		attrs += fmt.Sprintf(", fontcolor=%q", t.DefectColor)
	}
	return attrs
}

// branchCond returns the condition code of the branch ending block id.
func branchCond(f *cfg.Function, id int) string {
	if blk, ok := f.Block(id); ok && blk.Last().IsConditional() {
		return blk.Last().Branch.Cond
	}
	return ""
}

// backEdges returns the edges from a loop member to its header.
func backEdges(f *cfg.Function) map[[2]int]bool {
	back := make(map[[2]int]bool)
	for _, l := range f.Loops() {
		for _, p := range f.Predecessors(l.Header) {
			if l.Contains(p) {
				back[[2]int{p, l.Header}] = true
			}
		}
	}
	return back
}

// LatticeCFG converts an analyzed function to a lattice CFG. Taken edges
// carry the condition "T", the not-taken side "F".
func LatticeCFG(f *cfg.Function) *lattice.FuncCFG {
	lcfg := &lattice.FuncCFG{Name: f.Name()}
	for _, blk := range f.Blocks() {
		lb := &lattice.BasicBlock{
			ID:    blk.ID(),
			Start: blk.Start(),
			End:   blk.End(),
			Term:  f.IsExit(blk.ID()),
		}
		for _, e := range blk.Edges() {
			s := lattice.Successor{BlockID: e.To}
			switch e.Type {
			case cfg.EdgeTypeTrue:
				s.Cond = "T"
			case cfg.EdgeTypeFalse:
				s.Cond = "F"
			}
			lb.Succs = append(lb.Succs, s)
		}
		for _, inst := range blk.Instructions() {
			switch {
			case inst.Call != "":
				lb.Calls = append(lb.Calls, lattice.CallSite{Offset: inst.Index, Callee: inst.Call})
			case inst.Indirect:
				callee := "indirect"
				if len(inst.Operands) > 0 {
					callee = "indirect " + inst.Operands[0]
				}
				lb.Calls = append(lb.Calls, lattice.CallSite{Offset: inst.Index, Callee: callee})
			}
		}
		lcfg.Blocks = append(lcfg.Blocks, lb)
	}
	return lcfg
}

// LatticeCFGDOT renders functions through the lattice CFG renderer.
func LatticeCFGDOT(title string, fns ...*cfg.Function) string {
	g := &lattice.CFGGraph{}
	for _, f := range fns {
		g.Funcs = append(g.Funcs, LatticeCFG(f))
	}
	return lrender.DOTCFG(g, title)
}

// dotEscape escapes a string for use in DOT HTML labels.
func dotEscape(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	return s
}
