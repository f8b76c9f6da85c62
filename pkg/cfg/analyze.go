package cfg

import (
	"fmt"
	"slices"

	"github.com/l3aro/go-asm-flow/pkg/asm"
)

// Option configures an analysis.
type Option func(*options)

type options struct {
	dialect  asm.Dialect
	strategy LoopStrategy
	srcStart int
	srcEnd   int
	hasRange bool
}

// WithDialect sets the instruction dialect used to segment lines.
// The default is asm.RX.
func WithDialect(d asm.Dialect) Option {
	return func(o *options) { o.dialect = d }
}

// WithLoopStrategy sets the loop detection strategy. The default is
// PathClosure. A nil strategy is ignored.
func WithLoopStrategy(s LoopStrategy) Option {
	return func(o *options) {
		if s != nil {
			o.strategy = s
		}
	}
}

// WithSourceRange records the function's line range in its source file.
func WithSourceRange(start, end int) Option {
	return func(o *options) {
		o.srcStart, o.srcEnd, o.hasRange = start, end, true
	}
}

func newOptions(opts []Option) options {
	o := options{dialect: asm.RX(), strategy: PathClosure{}}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Analyze segments lines and builds the control flow graph of the function.
// It returns ErrEmptyFunction when lines is empty. Branch problems do not
// fail the analysis; they are reported through Function.Defects.
func Analyze(name string, lines []string, opts ...Option) (*Function, error) {
	o := newOptions(opts)
	if len(lines) == 0 {
		return nil, fmt.Errorf("analyzing %s: %w", name, ErrEmptyFunction)
	}
	return build(name, asm.Segment(lines, o.dialect), o), nil
}

// Build constructs the control flow graph from instructions that were
// already segmented. Instructions are re-indexed by position.
func Build(name string, insts []asm.Instruction, opts ...Option) (*Function, error) {
	o := newOptions(opts)
	if len(insts) == 0 {
		return nil, fmt.Errorf("analyzing %s: %w", name, ErrEmptyFunction)
	}
	insts = slices.Clone(insts)
	for i := range insts {
		insts[i].Index = i
	}
	return build(name, insts, o), nil
}

func build(name string, insts []asm.Instruction, o options) *Function {
	ids := &idAllocator{}
	blocks := partition(insts, ids)
	resolveEdges(blocks)

	f := &Function{
		name:     name,
		insts:    insts,
		blocks:   blocks,
		byID:     make(map[int]*BasicBlock, len(blocks)),
		entry:    blocks[0].id,
		strategy: o.strategy.Name(),
		srcStart: 0,
		srcEnd:   len(insts) - 1,
	}
	if o.hasRange {
		f.srcStart, f.srcEnd = o.srcStart, o.srcEnd
	}
	for _, b := range blocks {
		f.byID[b.id] = b
		f.defects = append(f.defects, b.defects...)
	}

	f.loops = o.strategy.FindLoops(f)
	classify(f)
	return f
}
