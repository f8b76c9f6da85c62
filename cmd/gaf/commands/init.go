package commands

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/l3aro/go-asm-flow/internal/config"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize gaf configuration interactively",
	Long: `Guides you through setting up gaf configuration step by step.
Creates a config file with the loop strategy, worker count, cache and
output settings.`,
	// The configuration may not exist or be valid yet.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInit()
	},
}

func runInit() error {
	cfg := config.DefaultConfig()

	// === SECTION 1: Analysis ===
	workers := strconv.Itoa(cfg.Workers)
	extensions := strings.Join(cfg.Extensions, ", ")
	format := string(cfg.OutputFormat)
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Loop detection").
				Description("How loops are found in each control flow graph").
				Options(
					huh.NewOption("Path closure (fast, approximate for irreducible flow)", "path"),
					huh.NewOption("Dominator (natural loops)", "dominator"),
				).
				Value(&cfg.LoopStrategy),
			huh.NewInput().
				Title("Parallel workers").
				Description("0 uses one worker per CPU").
				Value(&workers).
				Validate(func(s string) error {
					if n, err := strconv.Atoi(s); err != nil || n < 0 {
						return fmt.Errorf("enter a non-negative number")
					}
					return nil
				}),
			huh.NewInput().
				Title("Assembly file extensions").
				Description("Comma separated").
				Value(&extensions),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Cache analysis results?").
				Description("Unchanged functions are not analyzed again").
				Affirmative("Yes").
				Negative("No").
				Value(&cfg.CacheEnabled),
			huh.NewSelect[string]().
				Title("Default output format").
				Options(
					huh.NewOption("Text", string(config.FormatText)),
					huh.NewOption("JSON", string(config.FormatJSON)),
					huh.NewOption("YAML", string(config.FormatYAML)),
					huh.NewOption("Graphviz DOT", string(config.FormatDOT)),
				).
				Value(&format),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}

	cfg.Workers, _ = strconv.Atoi(workers)
	cfg.OutputFormat = config.OutputFormat(format)
	cfg.Extensions = nil
	for _, ext := range strings.Split(extensions, ",") {
		if ext = strings.TrimSpace(ext); ext != "" {
			cfg.Extensions = append(cfg.Extensions, ext)
		}
	}

	// === SECTION 2: Config Location ===
	var saveLocationChoice string
	form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Save Configuration").
				Description("Where to save the configuration file?").
				Options(
					huh.NewOption("Project (./.gaf/config.yaml)", "project"),
					huh.NewOption("Global (~/.gaf/config.yaml)", "global"),
				).
				Value(&saveLocationChoice),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}

	configPath := config.ProjectConfigFilePath()
	if saveLocationChoice == "global" {
		configPath = config.GlobalConfigFilePath()
	}

	if _, err := os.Stat(configPath); err == nil {
		var overwrite bool
		form = huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title("Config file exists").
					Description(fmt.Sprintf("Overwrite existing config at %s?", configPath)).
					Affirmative("Overwrite").
					Negative("Cancel").
					Value(&overwrite),
			),
		)
		if err := form.Run(); err != nil {
			return fmt.Errorf("interactive prompt failed: %w", err)
		}
		if !overwrite {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	fmt.Println("\n=== Configuration Preview ===")
	fmt.Printf("Config path: %s\n", configPath)
	fmt.Printf("Loop strategy: %s\n", cfg.LoopStrategy)
	fmt.Printf("Workers: %d\n", cfg.Workers)
	fmt.Printf("Extensions: %s\n", strings.Join(cfg.Extensions, ", "))
	if cfg.CacheEnabled {
		fmt.Printf("Cache: %s\n", cfg.CacheFile())
	} else {
		fmt.Println("Cache: disabled")
	}
	fmt.Printf("Output format: %s\n", cfg.OutputFormat)
	fmt.Println("================================")

	if err := cfg.Save(configPath); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	fmt.Printf("Configuration saved to: %s\n", configPath)
	return nil
}
