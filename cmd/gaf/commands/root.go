// Package commands provides the CLI commands for the go-asm-flow tool.
package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/l3aro/go-asm-flow/internal/config"
	"github.com/l3aro/go-asm-flow/internal/log"
	"github.com/l3aro/go-asm-flow/pkg/callgraph"
)

var (
	configPath string
	verbose    bool
	logLevel   string

	appConfig *config.Config
	logger    log.Logger = log.Discard()
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "gaf",
	Short: "go-asm-flow - Control flow analysis for assembly code",
	Long: `go-asm-flow builds control flow graphs for assembly functions and
summarises the code around them.

Commands:
  cfg         Control flow graph of one function
  funcs       List the functions of assembly files
  calls       Call graph for a project
  context     Registers, stack and callers of one function
  analyze     Analyze every function of a project
  search      Search instructions by pattern, mnemonic or register
  doctor      Check configuration and stored state
  init        Create a configuration file interactively

Use "gaf [command] --help" for more information about a command.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return RootCmd.Execute()
}

func setup() error {
	var err error
	if configPath != "" {
		appConfig, err = config.LoadFromFile(configPath)
	} else {
		appConfig, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	level := log.InfoLevel
	if verbose || appConfig.Verbose {
		level = log.DebugLevel
	}
	if logLevel != "" {
		if level, err = log.ParseLevel(logLevel); err != nil {
			return fmt.Errorf("invalid --log-level: %w", err)
		}
	}
	logger = log.New(log.LoggerConfig{
		Level:      level,
		JSONOutput: appConfig.LogJSON,
	})
	return nil
}

// projectOptions returns the scan options derived from the configuration.
func projectOptions() callgraph.ProjectOptions {
	return callgraph.ProjectOptions{
		Dialect:    appConfig.Dialect(),
		Extensions: appConfig.Extensions,
		IgnoreFile: appConfig.IgnoreFile,
	}
}

// outputFormat returns the --format flag, or the configured format when the
// flag was not given.
func outputFormat(cmd *cobra.Command) (config.OutputFormat, error) {
	format := appConfig.OutputFormat
	if cmd.Flags().Changed("format") {
		f, _ := cmd.Flags().GetString("format")
		format = config.OutputFormat(f)
	}
	switch format {
	case config.FormatText, config.FormatJSON, config.FormatYAML, config.FormatDOT:
		return format, nil
	}
	return "", fmt.Errorf("unsupported format: %s (use text, json, yaml or dot)", format)
}

// writeStructured encodes v as JSON or YAML.
func writeStructured(w io.Writer, format config.OutputFormat, v any) error {
	switch format {
	case config.FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("marshaling JSON: %w", err)
		}
	case config.FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("marshaling YAML: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("format %s is not structured", format)
	}
	return nil
}

// requireFile checks that path names a regular file.
func requireFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("path is a directory, expected a file: %s", path)
	}
	return nil
}

func init() {
	RootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (default: ~/.gaf/config.yaml, ./.gaf/config.yaml)")
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error (overrides --verbose)")

	RootCmd.AddCommand(cfgCmd)
	RootCmd.AddCommand(funcsCmd)
	RootCmd.AddCommand(callsCmd)
	RootCmd.AddCommand(contextCmd)
	RootCmd.AddCommand(analyzeCmd)
	RootCmd.AddCommand(searchCmd)
	RootCmd.AddCommand(doctorCmd)
	RootCmd.AddCommand(initCmd)
}
