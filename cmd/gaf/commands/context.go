package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-asm-flow/internal/config"
	"github.com/l3aro/go-asm-flow/pkg/callgraph"
	"github.com/l3aro/go-asm-flow/pkg/cfg"
	"github.com/l3aro/go-asm-flow/pkg/fnctx"
)

// contextCmd represents the context command
var contextCmd = &cobra.Command{
	Use:   "context <file> <function>",
	Short: "Summarise the context of a function",
	Long: `Gathers what a reader needs before changing an assembly function: its code,
the registers it reads, writes and preserves, its stack usage, the functions
it calls and the functions that call it, and the outline of its control
flow graph. Callers are looked up in every assembly file under --path,
which defaults to the directory of <file>.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		filePath, functionName := args[0], args[1]

		format, err := outputFormat(cmd)
		if err != nil {
			return err
		}
		if format == config.FormatDOT {
			return fmt.Errorf("unsupported format: dot (use text, json or yaml)")
		}

		fn, err := loadFunction(filePath, functionName)
		if err != nil {
			return err
		}

		root, _ := cmd.Flags().GetString("path")
		if root == "" {
			root = filepath.Dir(filePath)
		}
		graph, _, err := callgraph.BuildProject(root, projectOptions())
		if err != nil {
			logger.Warn("call graph unavailable, callers omitted", "path", root, "error", err)
			graph = nil
		}

		c, err := fnctx.Build(fn, graph,
			cfg.WithDialect(appConfig.Dialect()),
			cfg.WithLoopStrategy(appConfig.Strategy()),
		)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if format == config.FormatText {
			return c.WriteText(out)
		}
		return writeStructured(out, format, c)
	},
}

func init() {
	contextCmd.Flags().StringP("format", "f", "text", "Output format: text, json or yaml")
	contextCmd.Flags().StringP("path", "p", "", "Project root used to find callers")
}
