// Package cfg builds control flow graphs over assembly functions.
// It partitions the instructions of a function into basic blocks, wires
// branch and fallthrough edges, detects loops and assigns every block a role.
package cfg

import (
	"errors"
	"fmt"
	"slices"

	"github.com/l3aro/go-asm-flow/pkg/asm"
)

// ErrEmptyFunction is returned when a function has no lines to analyze.
var ErrEmptyFunction = errors.New("empty function")

// Role represents the semantic role of a block.
type Role string

const (
	RoleNormal      Role = "normal"      // Straight-line code
	RoleConditional Role = "conditional" // Ends in a conditional branch
	RoleLoopHeader  Role = "loop_header" // Target of a back edge
	RoleLoopBody    Role = "loop_body"   // Loop member other than the header
	RoleEntry       Role = "entry"       // Function entry point
	RoleExit        Role = "exit"        // Function exit point
)

// rolePriority lists roles from strongest to weakest. The reported role of a
// block is the first one it holds.
var rolePriority = []Role{RoleExit, RoleLoopHeader, RoleLoopBody, RoleEntry, RoleConditional, RoleNormal}

// EdgeType represents the kind of a CFG edge.
type EdgeType string

const (
	EdgeTypeUnconditional EdgeType = "unconditional" // Unconditional branch
	EdgeTypeTrue          EdgeType = "true"          // Taken side of a conditional branch
	EdgeTypeFalse         EdgeType = "false"         // Fallthrough side of a conditional branch
	EdgeTypeFallthrough   EdgeType = "fallthrough"   // Plain fallthrough into the next block
)

// Edge is a directed edge between two blocks.
type Edge struct {
	From      int      `json:"from" yaml:"from" msgpack:"from"`
	To        int      `json:"to" yaml:"to" msgpack:"to"`
	Type      EdgeType `json:"type" yaml:"type" msgpack:"type"`
	Condition string   `json:"condition,omitempty" yaml:"condition,omitempty" msgpack:"condition,omitempty"`
}

// DefectKind classifies a recoverable problem found during analysis.
type DefectKind string

const (
	DefectUnresolvedBranchTarget DefectKind = "unresolved_branch_target"
	DefectMalformedBranchOperand DefectKind = "malformed_branch_operand"
)

// Defect is a problem recorded on a block. Analysis continues past it.
type Defect struct {
	Kind    DefectKind `json:"kind" yaml:"kind" msgpack:"kind"`
	BlockID int        `json:"block_id" yaml:"block_id" msgpack:"block_id"`
	Index   int        `json:"index" yaml:"index" msgpack:"index"`
	Label   string     `json:"label,omitempty" yaml:"label,omitempty" msgpack:"label,omitempty"`
	Text    string     `json:"text" yaml:"text" msgpack:"text"`
}

func (d Defect) String() string {
	switch d.Kind {
	case DefectUnresolvedBranchTarget:
		return fmt.Sprintf("block %d, instruction %d: branch to undefined label %q", d.BlockID, d.Index, d.Label)
	case DefectMalformedBranchOperand:
		return fmt.Sprintf("block %d, instruction %d: malformed branch operand in %q", d.BlockID, d.Index, d.Text)
	}
	return fmt.Sprintf("block %d, instruction %d: %s", d.BlockID, d.Index, d.Kind)
}

// BasicBlock is a maximal straight-line run of instructions covering the
// half-open range [Start, End) of its function.
type BasicBlock struct {
	id      int
	start   int
	end     int
	insts   []asm.Instruction
	succs   []int
	preds   []int
	edges   []Edge
	conds   []string
	roles   []Role
	defects []Defect
}

func (b *BasicBlock) ID() int    { return b.id }
func (b *BasicBlock) Start() int { return b.start }
func (b *BasicBlock) End() int   { return b.end }
func (b *BasicBlock) Len() int   { return b.end - b.start }

// Instructions returns the block's instructions. The slice is a view into
// the function's instruction sequence and must not be modified.
func (b *BasicBlock) Instructions() []asm.Instruction { return b.insts }

// Last returns the final non-blank instruction of the block, or the first
// instruction when the block holds only blank lines.
func (b *BasicBlock) Last() asm.Instruction {
	for i := len(b.insts) - 1; i > 0; i-- {
		if !b.insts[i].IsBlank() {
			return b.insts[i]
		}
	}
	return b.insts[0]
}

// Label returns the label declared by the first instruction, if any.
func (b *BasicBlock) Label() string { return b.insts[0].Label }

// Successors returns the sorted ids of the successor blocks.
func (b *BasicBlock) Successors() []int { return slices.Clone(b.succs) }

// Predecessors returns the sorted ids of the predecessor blocks.
func (b *BasicBlock) Predecessors() []int { return slices.Clone(b.preds) }

// Edges returns the outgoing edges in the order they were resolved.
func (b *BasicBlock) Edges() []Edge { return slices.Clone(b.edges) }

// Conditions returns the sorted condition codes of outgoing branch edges.
func (b *BasicBlock) Conditions() []string { return slices.Clone(b.conds) }

// Defects returns the defects recorded on this block.
func (b *BasicBlock) Defects() []Defect { return slices.Clone(b.defects) }

// Role returns the reported role: the highest priority role the block holds.
func (b *BasicBlock) Role() Role {
	if len(b.roles) == 0 {
		return RoleNormal
	}
	return b.roles[0]
}

// Roles returns every role the block holds, strongest first.
func (b *BasicBlock) Roles() []Role {
	if len(b.roles) == 0 {
		return []Role{RoleNormal}
	}
	return slices.Clone(b.roles)
}

// HasRole reports whether the block holds r, even when a stronger role is
// reported.
func (b *BasicBlock) HasRole(r Role) bool {
	if r == RoleNormal {
		return len(b.roles) == 0
	}
	return slices.Contains(b.roles, r)
}

// Loop is a detected loop. Members are sorted and include the header.
type Loop struct {
	Header  int   `json:"header" yaml:"header" msgpack:"header"`
	Members []int `json:"members" yaml:"members" msgpack:"members"`
}

// Contains reports whether id is a member of the loop.
func (l Loop) Contains(id int) bool {
	_, ok := slices.BinarySearch(l.Members, id)
	return ok
}

// FlowGraph is the read-only view loop strategies traverse.
type FlowGraph interface {
	Entry() int
	BlockIDs() []int
	Successors(id int) []int
	Predecessors(id int) []int
}

// Function is the analyzed control flow graph of one function. It is built
// once and never modified afterwards.
type Function struct {
	name     string
	insts    []asm.Instruction
	blocks   []*BasicBlock
	byID     map[int]*BasicBlock
	entry    int
	exits    []int
	loops    []Loop
	defects  []Defect
	strategy string
	srcStart int
	srcEnd   int
}

func (f *Function) Name() string { return f.name }

// Instructions returns the function's instructions. Must not be modified.
func (f *Function) Instructions() []asm.Instruction { return f.insts }

// Blocks returns the blocks in instruction order.
func (f *Function) Blocks() []*BasicBlock { return slices.Clone(f.blocks) }

// Block returns the block with the given id.
func (f *Function) Block(id int) (*BasicBlock, bool) {
	b, ok := f.byID[id]
	return b, ok
}

// BlockAt returns the block containing the instruction at index.
func (f *Function) BlockAt(index int) (*BasicBlock, bool) {
	i, found := slices.BinarySearchFunc(f.blocks, index, func(b *BasicBlock, idx int) int {
		switch {
		case b.end <= idx:
			return -1
		case b.start > idx:
			return 1
		}
		return 0
	})
	if !found {
		return nil, false
	}
	return f.blocks[i], true
}

// Entry returns the id of the block holding the first instruction.
func (f *Function) Entry() int { return f.entry }

// Exits returns the sorted ids of the exit blocks.
func (f *Function) Exits() []int { return slices.Clone(f.exits) }

// IsExit reports whether id is an exit block.
func (f *Function) IsExit(id int) bool {
	_, ok := slices.BinarySearch(f.exits, id)
	return ok
}

// Loops returns the detected loops ordered by header, then members.
func (f *Function) Loops() []Loop {
	out := make([]Loop, len(f.loops))
	for i, l := range f.loops {
		out[i] = Loop{Header: l.Header, Members: slices.Clone(l.Members)}
	}
	return out
}

// Defects returns every block defect in instruction order.
func (f *Function) Defects() []Defect { return slices.Clone(f.defects) }

// LoopStrategy returns the name of the strategy that detected the loops.
func (f *Function) LoopStrategy() string { return f.strategy }

// SourceRange returns the function's line range in its source file, as given
// by the caller. It is used for reporting only.
func (f *Function) SourceRange() (start, end int) { return f.srcStart, f.srcEnd }

// BlockIDs returns every block id in instruction order.
func (f *Function) BlockIDs() []int {
	ids := make([]int, len(f.blocks))
	for i, b := range f.blocks {
		ids[i] = b.id
	}
	return ids
}

// Successors returns the successors of block id, or nil if unknown. The
// result is shared with the block and must not be modified.
func (f *Function) Successors(id int) []int {
	if b, ok := f.byID[id]; ok {
		return b.succs
	}
	return nil
}

// Predecessors returns the predecessors of block id, or nil if unknown.
func (f *Function) Predecessors(id int) []int {
	if b, ok := f.byID[id]; ok {
		return b.preds
	}
	return nil
}

// Edges returns every edge ordered by source block.
func (f *Function) Edges() []Edge {
	var edges []Edge
	for _, b := range f.blocks {
		edges = append(edges, b.edges...)
	}
	return edges
}
