// Package fnctx summarises the context a reader needs before touching an
// assembly function: its code, register and stack usage, the functions it
// calls and is called by, and the shape of its control flow graph.
package fnctx

import (
	"fmt"
	"io"
	"strings"

	"github.com/l3aro/go-asm-flow/pkg/callgraph"
	"github.com/l3aro/go-asm-flow/pkg/cfg"
	"github.com/l3aro/go-asm-flow/pkg/source"
)

// Shape is the outline of a function's control flow graph.
type Shape struct {
	Blocks               int `json:"blocks" yaml:"blocks"`
	Edges                int `json:"edges" yaml:"edges"`
	Loops                int `json:"loops" yaml:"loops"`
	Exits                int `json:"exits" yaml:"exits"`
	Defects              int `json:"defects" yaml:"defects"`
	CyclomaticComplexity int `json:"cyclomatic_complexity" yaml:"cyclomatic_complexity"`
}

// Context is the summary of one function.
type Context struct {
	Name       string        `json:"name" yaml:"name"`
	File       string        `json:"file" yaml:"file"`
	StartLine  int           `json:"start_line" yaml:"start_line"`
	EndLine    int           `json:"end_line" yaml:"end_line"`
	Global     bool          `json:"global" yaml:"global"`
	Code       string        `json:"code" yaml:"code"`
	Registers  RegisterUsage `json:"registers" yaml:"registers"`
	StackUsage int           `json:"stack_usage" yaml:"stack_usage"` // Bytes
	Calls      []string      `json:"calls" yaml:"calls"`
	CalledBy   []string      `json:"called_by" yaml:"called_by"`
	Indirect   int           `json:"indirect_calls,omitempty" yaml:"indirect_calls,omitempty"`
	Shape      Shape         `json:"cfg" yaml:"cfg"`
}

// Build analyzes fn and summarises it. graph supplies the callers and may be
// nil, in which case CalledBy is empty.
func Build(fn *source.Function, graph *callgraph.Graph, opts ...cfg.Option) (*Context, error) {
	opts = append([]cfg.Option{cfg.WithSourceRange(fn.StartLine, fn.EndLine)}, opts...)
	f, err := cfg.Analyze(fn.Name, fn.Lines, opts...)
	if err != nil {
		return nil, fmt.Errorf("building context: %w", err)
	}
	return FromFunction(fn, f, graph), nil
}

// FromFunction summarises fn using an already analyzed graph f.
func FromFunction(fn *source.Function, f *cfg.Function, graph *callgraph.Graph) *Context {
	ctx := &Context{
		Name:       fn.Name,
		File:       fn.File,
		StartLine:  fn.StartLine,
		EndLine:    fn.EndLine,
		Global:     fn.Global,
		Code:       strings.Join(fn.Lines, "\n"),
		Registers:  AnalyzeRegisters(f),
		StackUsage: StackUsage(f.Instructions()),
		Calls:      append([]string{}, fn.Calls...),
		CalledBy:   []string{},
		Shape: Shape{
			Blocks:               len(f.BlockIDs()),
			Edges:                len(f.Edges()),
			Loops:                len(f.Loops()),
			Exits:                len(f.Exits()),
			Defects:              len(f.Defects()),
			CyclomaticComplexity: f.CyclomaticComplexity(),
		},
	}
	for _, site := range fn.CallSites {
		if site.Indirect {
			ctx.Indirect++
		}
	}
	if graph != nil {
		if callers := graph.Callers(fn.Name); callers != nil {
			ctx.CalledBy = callers
		}
	}
	return ctx
}

// WriteText writes a human-readable summary of c to w.
func (c *Context) WriteText(w io.Writer) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Function: %s (%s:%d-%d)", c.Name, c.File, c.StartLine, c.EndLine)
	if c.Global {
		sb.WriteString(" global")
	}
	sb.WriteString("\n\nRegisters:\n")
	fmt.Fprintf(&sb, "  Inputs:    %s\n", joinNames(c.Registers.Inputs))
	fmt.Fprintf(&sb, "  Outputs:   %s\n", joinNames(c.Registers.Outputs))
	fmt.Fprintf(&sb, "  Preserved: %s\n", joinNames(c.Registers.Preserved))
	fmt.Fprintf(&sb, "  Modified:  %s\n", joinNames(c.Registers.Modified))
	fmt.Fprintf(&sb, "\nStack usage: %d bytes\n", c.StackUsage)
	fmt.Fprintf(&sb, "\nCalls:     %s\n", joinNames(c.Calls))
	fmt.Fprintf(&sb, "Called by: %s\n", joinNames(c.CalledBy))
	if c.Indirect > 0 {
		fmt.Fprintf(&sb, "Indirect calls: %d\n", c.Indirect)
	}
	fmt.Fprintf(&sb, "\nControl flow: %d blocks, %d edges, %d loops, %d exits, complexity %d\n",
		c.Shape.Blocks, c.Shape.Edges, c.Shape.Loops, c.Shape.Exits, c.Shape.CyclomaticComplexity)
	if c.Shape.Defects > 0 {
		fmt.Fprintf(&sb, "Defects: %d\n", c.Shape.Defects)
	}
	sb.WriteString("\nCode:\n")
	sb.WriteString(c.Code)
	sb.WriteString("\n")

	_, err := io.WriteString(w, sb.String())
	return err
}

func joinNames(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}
