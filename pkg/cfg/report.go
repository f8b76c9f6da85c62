package cfg

import (
	"fmt"
	"io"
	"strings"
)

// WriteReport writes a block-by-block listing of f followed by its loops.
func WriteReport(w io.Writer, f *Function) error {
	_, err := io.WriteString(w, f.Report())
	return err
}

// Report renders the text report of f.
func (f *Function) Report() string {
	var sb strings.Builder

	start, end := f.SourceRange()
	fmt.Fprintf(&sb, "Control Flow Analysis for %s:\n", f.name)
	fmt.Fprintf(&sb, "Source lines %d-%d, loop strategy %s\n", start, end, f.strategy)

	sb.WriteString("\nBasic Blocks:\n")
	for _, b := range f.blocks {
		fmt.Fprintf(&sb, "\nBlock %d (%s):\n", b.id, strings.ToUpper(string(b.Role())))
		if roles := b.Roles(); len(roles) > 1 {
			fmt.Fprintf(&sb, "Roles: %s\n", joinRoles(roles))
		}
		fmt.Fprintf(&sb, "Lines %d-%d\n", b.start, b.end-1)
		fmt.Fprintf(&sb, "Predecessors: %s\n", formatIDs(b.preds))
		fmt.Fprintf(&sb, "Successors: %s\n", formatIDs(b.succs))
		if len(b.conds) > 0 {
			fmt.Fprintf(&sb, "Conditions: {%s}\n", strings.Join(b.conds, ", "))
		}
		for _, d := range b.defects {
			fmt.Fprintf(&sb, "Defect: %s\n", d)
		}
		sb.WriteString("Code:\n")
		for _, inst := range b.insts {
			if text := strings.TrimSpace(inst.Text); text != "" {
				fmt.Fprintf(&sb, "  %s\n", text)
			}
		}
	}

	sb.WriteString("\nLoops:\n")
	if len(f.loops) == 0 {
		sb.WriteString("none\n")
	}
	for _, l := range f.loops {
		fmt.Fprintf(&sb, "Loop with header block %d:\n", l.Header)
		fmt.Fprintf(&sb, "Loop blocks: %s\n", formatIDs(l.Members))
	}
	return sb.String()
}

func formatIDs(ids []int) string {
	if len(ids) == 0 {
		return "{}"
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func joinRoles(roles []Role) string {
	parts := make([]string, len(roles))
	for i, r := range roles {
		parts[i] = string(r)
	}
	return strings.Join(parts, ", ")
}
