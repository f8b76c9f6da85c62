package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-asm-flow/internal/config"
	"github.com/l3aro/go-asm-flow/pkg/callgraph"
	"github.com/l3aro/go-asm-flow/pkg/source"
)

// FileFunctions lists the functions found in one file.
type FileFunctions struct {
	File      string             `json:"file"`
	Functions []*source.Function `json:"functions"`
}

// funcsCmd represents the funcs command
var funcsCmd = &cobra.Command{
	Use:   "funcs [path]",
	Short: "List the functions of assembly files",
	Long: `Scans a file or directory for assembly sources and lists the functions
each file defines, with their line ranges and the functions they call.`,
	Args: cobra.RangeArgs(0, 1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "."
		if len(args) > 0 {
			path = args[0]
		}

		files, err := callgraph.LoadProject(path, projectOptions())
		if err != nil {
			return err
		}

		output := make([]FileFunctions, 0, len(files))
		for _, f := range files {
			output = append(output, FileFunctions{File: f.Path, Functions: f.Functions})
		}

		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			return writeStructured(cmd.OutOrStdout(), config.FormatJSON, output)
		}
		printFunctions(cmd.OutOrStdout(), output)
		return nil
	},
}

func printFunctions(w io.Writer, output []FileFunctions) {
	total := 0
	for _, f := range output {
		fmt.Fprintf(w, "%s\n", f.File)
		for _, fn := range f.Functions {
			global := ""
			if fn.Global {
				global = " global"
			}
			fmt.Fprintf(w, "  %-24s lines %d-%d%s\n", fn.Name, fn.StartLine, fn.EndLine, global)
			if len(fn.Calls) > 0 {
				fmt.Fprintf(w, "    calls: %s\n", strings.Join(fn.Calls, ", "))
			}
		}
		total += len(f.Functions)
	}
	fmt.Fprintf(w, "\n%d functions in %d files\n", total, len(output))
}

func init() {
	funcsCmd.Flags().BoolP("json", "j", false, "Output as JSON")
}
