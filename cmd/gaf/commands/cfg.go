package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-asm-flow/internal/config"
	"github.com/l3aro/go-asm-flow/pkg/cfg"
	"github.com/l3aro/go-asm-flow/pkg/render"
	"github.com/l3aro/go-asm-flow/pkg/source"
)

// cfgCmd represents the cfg command
var cfgCmd = &cobra.Command{
	Use:   "cfg <file> <function>",
	Short: "Extract control flow graph for a function",
	Long: `Partitions one assembly function into basic blocks, connects them with
control flow edges, detects loops and classifies every block.
Outputs a text report, JSON, YAML or a Graphviz DOT graph.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		filePath, functionName := args[0], args[1]

		format, err := outputFormat(cmd)
		if err != nil {
			return err
		}
		strategy := appConfig.Strategy()
		if cmd.Flags().Changed("strategy") {
			name, _ := cmd.Flags().GetString("strategy")
			if strategy, err = cfg.ParseLoopStrategy(name); err != nil {
				return err
			}
		}

		fn, err := loadFunction(filePath, functionName)
		if err != nil {
			return err
		}

		f, err := cfg.Analyze(fn.Name, fn.Lines,
			cfg.WithDialect(appConfig.Dialect()),
			cfg.WithLoopStrategy(strategy),
			cfg.WithSourceRange(fn.StartLine, fn.EndLine),
		)
		if err != nil {
			return fmt.Errorf("extracting CFG: %w", err)
		}
		for _, d := range f.Defects() {
			logger.Warn("defect", "function", f.Name(), "kind", d.Kind, "block", d.BlockID, "detail", d.String())
		}

		out := cmd.OutOrStdout()
		switch format {
		case config.FormatText:
			return cfg.WriteReport(out, f)
		case config.FormatDOT:
			if lattice, _ := cmd.Flags().GetBool("lattice"); lattice {
				_, err = fmt.Fprint(out, render.LatticeCFGDOT(f.Name(), f))
			} else {
				_, err = fmt.Fprint(out, render.CFGDOT(f, render.Paper))
			}
			return err
		default:
			return writeStructured(out, format, f.Info())
		}
	},
}

// loadFunction parses filePath and returns functionName, suggesting close
// names when it is missing.
func loadFunction(filePath, functionName string) (*source.Function, error) {
	if err := requireFile(filePath); err != nil {
		return nil, err
	}
	file, err := source.Load(filePath, appConfig.Dialect())
	if err != nil {
		return nil, err
	}

	fn, err := file.Function(functionName)
	if errors.Is(err, source.ErrFunctionNotFound) {
		if suggestions := file.Suggest(functionName); len(suggestions) > 0 {
			return nil, fmt.Errorf("function %q not found in %s\nDid you mean: %s?", functionName, filePath, strings.Join(suggestions, ", "))
		}
		return nil, fmt.Errorf("function %q not found in %s", functionName, filePath)
	}
	return fn, err
}

func init() {
	cfgCmd.Flags().StringP("format", "f", "text", "Output format: text, json, yaml or dot")
	cfgCmd.Flags().StringP("strategy", "s", "path", "Loop detection strategy: path or dominator")
	cfgCmd.Flags().Bool("lattice", false, "Render DOT output with the compact lattice layout")
}
