package cfg

import (
	"fmt"
	"slices"
	"strings"
)

// LoopStrategy detects loops over a flow graph. Implementations must return
// loops in a deterministic order for identical graphs.
type LoopStrategy interface {
	Name() string
	FindLoops(g FlowGraph) []Loop
}

// ParseLoopStrategy returns the strategy registered under name.
// An empty name selects PathClosure.
func ParseLoopStrategy(name string) (LoopStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "path":
		return PathClosure{}, nil
	case "dominator", "dom":
		return Dominator{}, nil
	}
	return nil, fmt.Errorf("unknown loop strategy %q (want path or dominator)", name)
}

// PathClosure finds back edges with a depth-first walk from the entry that
// keeps the blocks on the current path apart from the blocks already
// visited. Reaching a block on the current path is a back edge and the
// reached block is a loop header.
//
// Members are collected by a forward closure from the header: a successor
// joins when it lies on the discovering path, or when one of its
// predecessors other than the block it is reached from is already a member.
// The result is approximate for irreducible flow. It can also miss members
// of a reducible loop with a single back edge: a block reached only from the
// header that jumps back into the body is left out because the header is the
// block it is reached from. Use Dominator for natural loops.
type PathClosure struct{}

func (PathClosure) Name() string { return "path" }

func (PathClosure) FindLoops(g FlowGraph) []Loop {
	if len(g.BlockIDs()) == 0 {
		return nil
	}

	var (
		loops   []Loop
		seen    = make(map[string]bool)
		visited = make(map[int]bool)
		onPath  = make(map[int]bool)
	)

	var walk func(id int)
	walk = func(id int) {
		visited[id] = true
		onPath[id] = true
		for _, succ := range g.Successors(id) {
			if onPath[succ] {
				loop := pathLoop(g, succ, onPath)
				if key := loopKey(loop); !seen[key] {
					seen[key] = true
					loops = append(loops, loop)
				}
				continue
			}
			if !visited[succ] {
				walk(succ)
			}
		}
		delete(onPath, id)
	}
	walk(g.Entry())

	sortLoops(loops)
	return loops
}

func pathLoop(g FlowGraph, header int, onPath map[int]bool) Loop {
	members := map[int]bool{header: true}
	queue := []int{header}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, succ := range g.Successors(cur) {
			if members[succ] {
				continue
			}
			if onPath[succ] || hasMemberPred(g, succ, cur, members) {
				members[succ] = true
				queue = append(queue, succ)
			}
		}
	}
	return newLoop(header, members)
}

func hasMemberPred(g FlowGraph, id, from int, members map[int]bool) bool {
	for _, p := range g.Predecessors(id) {
		if p != from && members[p] {
			return true
		}
	}
	return false
}

// Dominator finds natural loops. A back edge is an edge u->h where h
// dominates u; its loop is h plus every block that reaches u without passing
// through h. Loops sharing a header are merged. Immediate dominators are
// computed with the Cooper, Harvey and Kennedy iteration over reverse
// postorder.
type Dominator struct{}

func (Dominator) Name() string { return "dominator" }

func (Dominator) FindLoops(g FlowGraph) []Loop {
	if len(g.BlockIDs()) == 0 {
		return nil
	}

	entry := g.Entry()
	po := postorder(g, entry)
	idom := dominators(g, entry, po)

	bodies := make(map[int]map[int]bool)
	for _, u := range po {
		for _, h := range g.Successors(u) {
			if _, reachable := idom[h]; !reachable || !dominates(idom, entry, h, u) {
				continue
			}
			body, ok := bodies[h]
			if !ok {
				body = map[int]bool{h: true}
				bodies[h] = body
			}
			naturalLoop(g, idom, u, body)
		}
	}

	loops := make([]Loop, 0, len(bodies))
	for h, body := range bodies {
		loops = append(loops, newLoop(h, body))
	}
	sortLoops(loops)
	return loops
}

// postorder returns the blocks reachable from entry in depth-first postorder.
func postorder(g FlowGraph, entry int) []int {
	type frame struct {
		id    int
		index int // number of successors already explored
	}

	seen := map[int]bool{entry: true}
	order := make([]int, 0, len(g.BlockIDs()))
	stack := []frame{{id: entry}}
	for len(stack) > 0 {
		tos := len(stack) - 1
		succs := g.Successors(stack[tos].id)
		if i := stack[tos].index; i < len(succs) {
			stack[tos].index++
			if s := succs[i]; !seen[s] {
				seen[s] = true
				stack = append(stack, frame{id: s})
			}
			continue
		}
		order = append(order, stack[tos].id)
		stack = stack[:tos]
	}
	return order
}

// dominators returns the immediate dominator of every reachable block.
// The entry is its own immediate dominator.
func dominators(g FlowGraph, entry int, po []int) map[int]int {
	postnum := make(map[int]int, len(po))
	for i, id := range po {
		postnum[id] = i
	}

	idom := map[int]int{entry: entry}
	for changed := true; changed; {
		changed = false
		for i := len(po) - 1; i >= 0; i-- {
			b := po[i]
			if b == entry {
				continue
			}
			d, found := 0, false
			for _, p := range g.Predecessors(b) {
				if _, ok := idom[p]; !ok {
					continue
				}
				if !found {
					d, found = p, true
					continue
				}
				d = intersect(p, d, postnum, idom)
			}
			if !found {
				continue
			}
			if cur, ok := idom[b]; !ok || cur != d {
				idom[b] = d
				changed = true
			}
		}
	}
	return idom
}

func intersect(b, c int, postnum, idom map[int]int) int {
	for b != c {
		if postnum[b] < postnum[c] {
			b = idom[b]
		} else {
			c = idom[c]
		}
	}
	return b
}

// dominates reports whether a dominates b.
func dominates(idom map[int]int, entry, a, b int) bool {
	for {
		if b == a {
			return true
		}
		if b == entry {
			return false
		}
		b = idom[b]
	}
}

// naturalLoop adds to body every block reaching tail backwards without
// passing through a block already in body. body must hold the header.
func naturalLoop(g FlowGraph, idom map[int]int, tail int, body map[int]bool) {
	if body[tail] {
		return
	}
	body[tail] = true
	stack := []int{tail}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, p := range g.Predecessors(cur) {
			if _, reachable := idom[p]; !reachable || body[p] {
				continue
			}
			body[p] = true
			stack = append(stack, p)
		}
	}
}

func newLoop(header int, members map[int]bool) Loop {
	ids := make([]int, 0, len(members))
	for id := range members {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return Loop{Header: header, Members: ids}
}

func loopKey(l Loop) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d:", l.Header)
	for _, m := range l.Members {
		fmt.Fprintf(&sb, "%d,", m)
	}
	return sb.String()
}

func sortLoops(loops []Loop) {
	slices.SortFunc(loops, func(a, b Loop) int {
		if a.Header != b.Header {
			return a.Header - b.Header
		}
		return slices.Compare(a.Members, b.Members)
	})
}
