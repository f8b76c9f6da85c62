package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-asm-flow/internal/config"
	"github.com/l3aro/go-asm-flow/internal/log"
	"github.com/l3aro/go-asm-flow/pkg/analyzer"
	"github.com/l3aro/go-asm-flow/pkg/cache"
	"github.com/l3aro/go-asm-flow/pkg/callgraph"
	"github.com/l3aro/go-asm-flow/pkg/cfg"
	"github.com/l3aro/go-asm-flow/pkg/dirty"
	"github.com/l3aro/go-asm-flow/pkg/render"
	"github.com/l3aro/go-asm-flow/pkg/source"
)

// FunctionSummary is one row of the analyze output.
type FunctionSummary struct {
	Function             string       `json:"function"`
	File                 string       `json:"file"`
	StartLine            int          `json:"start_line"`
	EndLine              int          `json:"end_line"`
	Blocks               int          `json:"blocks"`
	Edges                int          `json:"edges"`
	Loops                int          `json:"loops"`
	CyclomaticComplexity int          `json:"cyclomatic_complexity"`
	Defects              []cfg.Defect `json:"defects,omitempty"`
	Cached               bool         `json:"cached"`
	Error                string       `json:"error,omitempty"`
}

// AnalyzeOutput represents the output of the analyze command
type AnalyzeOutput struct {
	RootDir   string            `json:"root_dir"`
	Strategy  string            `json:"loop_strategy"`
	Functions []FunctionSummary `json:"functions"`
	Defects   int               `json:"defects"`
	Failed    int               `json:"failed"`
	Removed   []dirty.Change    `json:"removed,omitempty"`
	Cache     *cache.Stats      `json:"cache,omitempty"`
}

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze [path]",
	Short: "Analyze every function of a project",
	Long: `Builds the control flow graph of every function in every assembly file
under path, in parallel. Results are cached by function text, so unchanged
functions are not analyzed again on the next run.

With --changed only the functions added or modified since the previous
--changed run are reported, along with the functions that were removed.`,
	Args: cobra.RangeArgs(0, 1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "."
		if len(args) > 0 {
			path = args[0]
		}
		return runAnalyze(cmd, path)
	},
}

func runAnalyze(cmd *cobra.Command, path string) error {
	files, err := callgraph.LoadProject(path, projectOptions())
	if err != nil {
		return err
	}

	opts := analyzer.Options{
		Dialect:  appConfig.Dialect(),
		Strategy: appConfig.Strategy(),
		Workers:  appConfig.Workers,
		Logger:   logger,
	}
	if workers, _ := cmd.Flags().GetInt("workers"); workers > 0 {
		opts.Workers = workers
	}

	noCache, _ := cmd.Flags().GetBool("no-cache")
	var resultCache *cache.StatsCache
	if appConfig.CacheEnabled && !noCache {
		resultCache = cache.NewStatsCache(cache.Options{MaxEntries: appConfig.CacheMaxEntries})
		if err := cache.LoadFromFile(resultCache, appConfig.CacheFile()); err != nil {
			logger.Warn("ignoring analysis cache", "path", appConfig.CacheFile(), "error", err)
			resultCache.Clear()
		}
		opts.Cache = resultCache
	}

	var fns []*source.Function
	for _, f := range files {
		fns = append(fns, f.Functions...)
	}

	output := AnalyzeOutput{RootDir: path, Strategy: opts.Strategy.Name()}

	var tracker *dirty.Tracker
	if changedOnly, _ := cmd.Flags().GetBool("changed"); changedOnly {
		statePath := filepath.Join(appConfig.CacheDir, dirty.DefaultStateFile)
		if tracker, err = dirty.Load(statePath); err != nil {
			logger.Warn("ignoring change state", "path", statePath, "error", err)
			tracker = dirty.New(statePath)
		}
		fns, output.Removed = changedFunctions(tracker, path, files, fns)
		logger.Debug("changed functions", "changed", len(fns), "removed", len(output.Removed))
	}

	spinner := log.NewProgressSpinner(os.Stderr, fmt.Sprintf("Analyzing %d functions...", len(fns)))
	spinner.Start()
	results, err := analyzer.New(opts).Analyze(cmd.Context(), fns)
	spinner.Stop()
	if err != nil {
		return err
	}

	if tracker != nil {
		if err := tracker.Save(); err != nil {
			logger.Warn("saving change state", "error", err)
		}
	}

	for _, r := range results {
		output.Functions = append(output.Functions, summarize(r))
		output.Defects += len(r.Defects())
		if r.Err != nil {
			output.Failed++
		}
	}

	if resultCache != nil {
		stats := resultCache.Stats()
		output.Cache = &stats
		logger.Debug("analysis cache", "hits", stats.HitCount, "misses", stats.MissCount, "entries", resultCache.Len())
		if err := cache.PersistToFile(resultCache, appConfig.CacheFile()); err != nil {
			logger.Warn("saving analysis cache", "path", appConfig.CacheFile(), "error", err)
		}
	}

	if dotDir, _ := cmd.Flags().GetString("dot-dir"); dotDir != "" {
		if err := writeDOTFiles(dotDir, results, opts); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		if err := writeStructured(out, config.FormatJSON, output); err != nil {
			return err
		}
	} else {
		printAnalysis(out, output)
	}

	if failOnDefect, _ := cmd.Flags().GetBool("fail-on-defect"); failOnDefect && output.Defects > 0 {
		return fmt.Errorf("%d defects found", output.Defects)
	}
	return nil
}

// changedFunctions keeps the functions of fns that tracker reports as added
// or modified and returns the removed ones separately. Tracked files that no
// longer define any function, or no longer exist under root, are forgotten
// and their functions reported as removed.
func changedFunctions(tracker *dirty.Tracker, root string, files []*source.File, fns []*source.Function) ([]*source.Function, []dirty.Change) {
	changed := make(map[[2]string]bool)
	var removed []dirty.Change
	for _, c := range tracker.CheckAndMark(fns) {
		if c.Kind == dirty.Removed {
			removed = append(removed, c)
			continue
		}
		changed[[2]string{c.File, c.Function}] = true
	}

	rootInfo, err := os.Stat(root)
	rootIsDir := err == nil && rootInfo.IsDir()

	scanned := make(map[string]bool, len(files))
	for _, f := range files {
		scanned[f.Path] = len(f.Functions) > 0
	}
	for _, file := range tracker.Files() {
		hasFunctions, ok := scanned[file]
		if hasFunctions {
			continue
		}
		if !ok {
			if !rootIsDir {
				continue
			}
			if _, err := os.Stat(filepath.Join(root, file)); err == nil {
				continue
			}
		}
		removed = append(removed, tracker.Forget(file)...)
	}

	var out []*source.Function
	for _, fn := range fns {
		if changed[[2]string{fn.File, fn.Name}] {
			out = append(out, fn)
		}
	}
	return out, removed
}

func summarize(r analyzer.Result) FunctionSummary {
	s := FunctionSummary{
		Function:  r.Function.Name,
		File:      r.Function.File,
		StartLine: r.Function.StartLine,
		EndLine:   r.Function.EndLine,
		Cached:    r.Cached,
	}
	if r.Err != nil {
		s.Error = r.Err.Error()
		return s
	}
	s.Blocks = len(r.Info.Blocks)
	s.Edges = len(r.Info.Edges)
	s.Loops = len(r.Info.Loops)
	s.CyclomaticComplexity = r.Info.CyclomaticComplexity
	s.Defects = r.Info.Defects
	return s
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// dotFileName names the DOT file of a function after its file path relative
// to the analyzed root, so equal base names in different directories do not
// collide.
func dotFileName(file, function string) string {
	parts := strings.Split(filepath.ToSlash(filepath.Clean(file)), "/")
	for i, p := range parts {
		parts[i] = unsafeFileChars.ReplaceAllString(p, "_")
	}
	return strings.Join(parts, "__") + "." + unsafeFileChars.ReplaceAllString(function, "_") + ".dot"
}

// writeDOTFiles writes one DOT file per analyzed function plus cfg.dot with
// every function in the compact lattice layout.
func writeDOTFiles(dir string, results []analyzer.Result, opts analyzer.Options) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	var graphs []*cfg.Function
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		f := r.Graph
		if f == nil {
			// Cached results carry no graph.
			var err error
			f, err = cfg.Analyze(r.Function.Name, r.Function.Lines,
				cfg.WithDialect(opts.Dialect),
				cfg.WithLoopStrategy(opts.Strategy),
				cfg.WithSourceRange(r.Function.StartLine, r.Function.EndLine),
			)
			if err != nil {
				return fmt.Errorf("rendering %s: %w", r.Function.Name, err)
			}
		}
		graphs = append(graphs, f)

		name := dotFileName(r.Function.File, f.Name())
		if err := os.WriteFile(filepath.Join(dir, name), []byte(render.CFGDOT(f, render.Paper)), 0644); err != nil {
			return fmt.Errorf("writing DOT file: %w", err)
		}
	}

	all := render.LatticeCFGDOT("cfg", graphs...)
	if err := os.WriteFile(filepath.Join(dir, "cfg.dot"), []byte(all), 0644); err != nil {
		return fmt.Errorf("writing DOT file: %w", err)
	}
	logger.Info("wrote DOT files", "dir", dir, "functions", len(graphs))
	return nil
}

func printAnalysis(w io.Writer, output AnalyzeOutput) {
	fmt.Fprintf(w, "=== Analysis: %s (%s loops) ===\n\n", output.RootDir, output.Strategy)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FUNCTION\tFILE\tLINES\tBLOCKS\tEDGES\tLOOPS\tCC\tDEFECTS")
	for _, s := range output.Functions {
		if s.Error != "" {
			fmt.Fprintf(tw, "%s\t%s\t%d-%d\terror: %s\n", s.Function, s.File, s.StartLine, s.EndLine, s.Error)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%d-%d\t%d\t%d\t%d\t%d\t%d\n",
			s.Function, s.File, s.StartLine, s.EndLine,
			s.Blocks, s.Edges, s.Loops, s.CyclomaticComplexity, len(s.Defects))
	}
	tw.Flush()

	if output.Defects > 0 {
		fmt.Fprintln(w, "\nDefects:")
		for _, s := range output.Functions {
			for _, d := range s.Defects {
				fmt.Fprintf(w, "  %s:%s: %s\n", s.File, s.Function, d)
			}
		}
	}

	if len(output.Removed) > 0 {
		fmt.Fprintln(w, "\nRemoved:")
		for _, c := range output.Removed {
			fmt.Fprintf(w, "  %s:%s\n", c.File, c.Function)
		}
	}

	fmt.Fprintf(w, "\n%d functions, %d defects, %d failed\n", len(output.Functions), output.Defects, output.Failed)
	if output.Cache != nil {
		fmt.Fprintf(w, "Cache: %d hits, %d misses\n", output.Cache.HitCount, output.Cache.MissCount)
	}
}

func init() {
	analyzeCmd.Flags().BoolP("json", "j", false, "Output as JSON")
	analyzeCmd.Flags().IntP("workers", "w", 0, "Concurrent analyses (default: config or GOMAXPROCS)")
	analyzeCmd.Flags().Bool("no-cache", false, "Ignore and do not update the analysis cache")
	analyzeCmd.Flags().String("dot-dir", "", "Write a DOT file per function into this directory")
	analyzeCmd.Flags().Bool("changed", false, "Only report functions changed since the previous --changed run")
	analyzeCmd.Flags().Bool("fail-on-defect", false, "Exit with an error when any defect is found")
}
