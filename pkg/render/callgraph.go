package render

import (
	"github.com/zboralski/lattice"
	lrender "github.com/zboralski/lattice/render"

	"github.com/l3aro/go-asm-flow/pkg/callgraph"
)

// CallGraph converts a call graph to a lattice graph. Every indexed function
// is a node; resolved calls are edges, one per caller and callee pair. With
// undefined set, calls to labels no file defines become edges to placeholder
// nodes named after the label.
func CallGraph(g *callgraph.Graph, undefined bool) *lattice.Graph {
	lg := &lattice.Graph{}
	nodes := make(map[string]bool)
	addNode := func(name string) {
		if !nodes[name] {
			nodes[name] = true
			lg.Nodes = append(lg.Nodes, name)
		}
	}
	edges := make(map[[2]string]bool)
	addEdge := func(caller, callee string) {
		if !edges[[2]string{caller, callee}] {
			edges[[2]string{caller, callee}] = true
			lg.Edges = append(lg.Edges, lattice.Edge{Caller: caller, Callee: callee})
		}
	}

	for _, name := range g.Functions() {
		addNode(name)
	}
	for _, e := range g.Edges() {
		addEdge(e.SourceFunc, e.DestFunc)
	}
	if undefined {
		for _, u := range g.Unresolved() {
			if u.Reason != callgraph.ReasonUndefined {
				continue
			}
			addNode(u.Target)
			addEdge(u.SourceFunc, u.Target)
		}
	}
	lg.Dedup()
	return lg
}

// CallGraphDOT renders a call graph as DOT.
func CallGraphDOT(g *callgraph.Graph, title string, undefined bool) string {
	return lrender.DOT(CallGraph(g, undefined), title)
}
