package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-asm-flow/internal/config"
	"github.com/l3aro/go-asm-flow/pkg/callgraph"
	"github.com/l3aro/go-asm-flow/pkg/search"
)

// searchCmd represents the search command
var searchCmd = &cobra.Command{
	Use:   "search <pattern> [path]",
	Short: "Search instructions in assembly files",
	Long: `Searches assembly sources for a regular expression, a mnemonic or the
instructions touching a register. Every match names the function it
belongs to.

Examples:
  gaf search "JSR\s+_init" .
  gaf search --mnemonic BRA src/
  gaf search --register R6 "" src/main.src
  gaf search --register R1 --mnemonic MOV --context 2 .`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		pattern := args[0]
		path := "."
		if len(args) > 1 {
			path = args[1]
		}

		files, err := callgraph.LoadProject(path, projectOptions())
		if err != nil {
			return err
		}

		mnemonic, _ := cmd.Flags().GetBool("mnemonic")
		register, _ := cmd.Flags().GetString("register")
		contextLines, _ := cmd.Flags().GetInt("context")
		maxResults, _ := cmd.Flags().GetInt("max")
		caseSensitive, _ := cmd.Flags().GetBool("case-sensitive")
		blocks, _ := cmd.Flags().GetBool("blocks")

		searcher := search.NewSearcher(appConfig.Dialect(), search.Options{
			Mnemonic:      mnemonic,
			Register:      register,
			ContextLines:  contextLines,
			MaxResults:    maxResults,
			CaseSensitive: caseSensitive,
			Workers:       appConfig.Workers,
			Blocks:        blocks,
		})

		matches, err := searcher.Search(cmd.Context(), pattern, files)
		if err != nil {
			return fmt.Errorf("searching: %w", err)
		}
		logger.Debug("search finished", "files", len(files), "matches", len(matches))

		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			if matches == nil {
				matches = []search.Match{}
			}
			return writeStructured(cmd.OutOrStdout(), config.FormatJSON, matches)
		}
		printMatches(cmd.OutOrStdout(), matches)
		return nil
	},
}

func init() {
	searchCmd.Flags().BoolP("mnemonic", "m", false, "Match the pattern against instruction mnemonics")
	searchCmd.Flags().StringP("register", "r", "", "Only instructions that read or write this register")
	searchCmd.Flags().IntP("context", "C", 0, "Number of context lines before and after match")
	searchCmd.Flags().Int("max", 0, "Maximum number of results (0 = unlimited)")
	searchCmd.Flags().Bool("case-sensitive", false, "Case-sensitive regular expression")
	searchCmd.Flags().BoolP("blocks", "b", false, "Show the basic block and role of each match")
	searchCmd.Flags().BoolP("json", "j", false, "Output as JSON")
}

func printMatches(w io.Writer, matches []search.Match) {
	if len(matches) == 0 {
		fmt.Fprintln(w, "No matches found")
		return
	}

	file := ""
	for _, m := range matches {
		if m.File != file {
			if file != "" {
				fmt.Fprintln(w)
			}
			file = m.File
			fmt.Fprintf(w, "=== %s ===\n", file)
		}

		where := m.Function
		if where == "" {
			where = "-"
		}
		if m.Access != "" {
			where += " [" + m.Access + "]"
		}
		if m.Block != nil {
			where += fmt.Sprintf(" block %d (%s)", m.Block.ID, m.Block.Role)
		}
		for _, line := range m.ContextBefore {
			fmt.Fprintf(w, "    %s\n", line)
		}
		fmt.Fprintf(w, "  %d:%d %s: %s\n", m.LineNumber, m.Column, where, m.LineContent)
		for _, line := range m.ContextAfter {
			fmt.Fprintf(w, "    %s\n", line)
		}
	}
	fmt.Fprintf(w, "\n%d matches\n", len(matches))
}
