package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-asm-flow/internal/config"
	"github.com/l3aro/go-asm-flow/pkg/callgraph"
	"github.com/l3aro/go-asm-flow/pkg/render"
)

// CallGraphOutput represents the output of the calls command
type CallGraphOutput struct {
	RootDir    string                               `json:"root_dir"`
	Stats      CallGraphStats                       `json:"stats"`
	Roots      []string                             `json:"roots"`
	Edges      []callgraph.Edge                     `json:"edges,omitempty"`
	Unresolved []callgraph.UnresolvedCall           `json:"unresolved,omitempty"`
	Duplicates map[string][]callgraph.FunctionEntry `json:"duplicates,omitempty"`
	From       string                               `json:"from,omitempty"`
	Reachable  []string                             `json:"reachable,omitempty"`
}

// CallGraphStats represents statistics about the call graph
type CallGraphStats struct {
	Functions       int `json:"functions"`
	TotalEdges      int `json:"total_edges"`
	IntraFileEdges  int `json:"intra_file_edges"`
	CrossFileEdges  int `json:"cross_file_edges"`
	UnresolvedCalls int `json:"unresolved_calls"`
}

// callsCmd represents the calls command
var callsCmd = &cobra.Command{
	Use:   "calls [path]",
	Short: "Build call graph for a project",
	Long: `Analyzes the assembly files under path and builds a call graph from their
JSR and BSR instructions. The call graph includes both intra-file and
cross-file edges; indirect and undefined calls are listed separately.

With --from the functions transitively called by the named function are
listed as well.`,
	Args: cobra.RangeArgs(0, 1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "."
		if len(args) > 0 {
			path = args[0]
		}

		graph, _, err := callgraph.BuildProject(path, projectOptions())
		if err != nil {
			return fmt.Errorf("building call graph: %w", err)
		}
		for name, entries := range graph.Duplicates() {
			logger.Warn("duplicate function", "function", name, "definitions", len(entries))
		}

		out := cmd.OutOrStdout()
		if dot, _ := cmd.Flags().GetBool("dot"); dot {
			undefined, _ := cmd.Flags().GetBool("undefined")
			_, err := fmt.Fprint(out, render.CallGraphDOT(graph, path, undefined))
			return err
		}

		output := callGraphOutput(path, graph)
		if from, _ := cmd.Flags().GetString("from"); from != "" {
			if _, ok := graph.Lookup(from); !ok {
				return fmt.Errorf("function %q not found under %s", from, path)
			}
			output.From = from
			output.Reachable = graph.Reachable(from)
		}
		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			return writeStructured(out, config.FormatJSON, output)
		}
		printCallGraph(out, output)
		return nil
	},
}

func callGraphOutput(root string, g *callgraph.Graph) CallGraphOutput {
	output := CallGraphOutput{
		RootDir:    root,
		Roots:      g.Roots(),
		Edges:      g.Edges(),
		Unresolved: g.Unresolved(),
		Duplicates: g.Duplicates(),
	}
	output.Stats.Functions = len(g.Functions())
	output.Stats.TotalEdges = len(output.Edges)
	output.Stats.UnresolvedCalls = len(output.Unresolved)
	for _, e := range output.Edges {
		if e.SourceFile == e.DestFile {
			output.Stats.IntraFileEdges++
		} else {
			output.Stats.CrossFileEdges++
		}
	}
	return output
}

func printCallGraph(w io.Writer, output CallGraphOutput) {
	fmt.Fprintf(w, "=== Call Graph: %s ===\n\n", output.RootDir)

	fmt.Fprintf(w, "Statistics:\n")
	fmt.Fprintf(w, "  Functions: %d\n", output.Stats.Functions)
	fmt.Fprintf(w, "  Total edges: %d\n", output.Stats.TotalEdges)
	fmt.Fprintf(w, "  Intra-file edges: %d\n", output.Stats.IntraFileEdges)
	fmt.Fprintf(w, "  Cross-file edges: %d\n", output.Stats.CrossFileEdges)
	fmt.Fprintf(w, "  Unresolved calls: %d\n\n", output.Stats.UnresolvedCalls)

	if len(output.Roots) > 0 {
		fmt.Fprintln(w, "Roots:")
		for _, r := range output.Roots {
			fmt.Fprintf(w, "  %s\n", r)
		}
	}

	if len(output.Edges) > 0 {
		fmt.Fprintln(w, "\nEdges:")
		for _, edge := range output.Edges {
			fmt.Fprintf(w, "  %s:%s -> %s:%s (line %d)\n",
				edge.SourceFile, edge.SourceFunc,
				edge.DestFile, edge.DestFunc, edge.LineNumber)
		}
	}

	if output.From != "" {
		fmt.Fprintf(w, "\nReachable from %s:\n", output.From)
		for _, name := range output.Reachable {
			fmt.Fprintf(w, "  %s\n", name)
		}
	}

	if len(output.Unresolved) > 0 {
		fmt.Fprintln(w, "\nUnresolved calls:")
		for _, u := range output.Unresolved {
			fmt.Fprintf(w, "  %s:%d %s: %s (%s)\n",
				u.SourceFile, u.LineNumber, u.SourceFunc, u.Text, u.Reason)
		}
	}
}

func init() {
	callsCmd.Flags().BoolP("json", "j", false, "Output as JSON")
	callsCmd.Flags().Bool("dot", false, "Output as Graphviz DOT")
	callsCmd.Flags().Bool("undefined", false, "Include undefined callees in DOT output")
	callsCmd.Flags().String("from", "", "List the functions reachable from this function")
}
