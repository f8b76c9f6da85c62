package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-asm-flow/internal/config"
	"github.com/l3aro/go-asm-flow/internal/healthcheck"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run health checks on configuration and stored state",
	Long: `Checks the configuration in effect and verifies that the analysis
cache and the change tracking state can be read.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := healthcheck.Check(appConfig, effectiveConfigPath())
		if err != nil {
			return fmt.Errorf("health check failed: %w", err)
		}

		displayDoctorResult(cmd.OutOrStdout(), result)

		if result.HasError() {
			return fmt.Errorf("health check failed: stored state is not readable")
		}
		return nil
	},
}

// effectiveConfigPath returns the config file with the highest priority that
// exists, or "" when only defaults apply.
func effectiveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	for _, path := range []string{config.ProjectConfigFilePath(), config.GlobalConfigFilePath()} {
		if fileExists(path) {
			return path
		}
	}
	return ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

func displayDoctorResult(w io.Writer, result *healthcheck.HealthCheckResult) {
	if result.EffectivePath == "" {
		fmt.Fprintln(w, "Using config: built-in defaults")
	} else {
		fmt.Fprintf(w, "Using config: %s (%s)\n", result.EffectivePath, result.EffectiveScope)
	}
	fmt.Fprintf(w, "Loop strategy: %s\n", result.LoopStrategy)
	fmt.Fprintf(w, "Dialect: %d branches, %d returns, %d calls (%s)\n",
		result.Dialect.Branches, result.Dialect.Returns, result.Dialect.Calls, result.Dialect.Fingerprint)

	fmt.Fprintln(w, "\nAnalysis cache:")
	printComponentStatus(w, result.Cache)

	fmt.Fprintln(w, "\nChange state:")
	printComponentStatus(w, result.State)
}

func printComponentStatus(w io.Writer, s healthcheck.ComponentStatus) {
	fmt.Fprintf(w, "  Path: %s\n", s.Path)
	fmt.Fprintf(w, "  Status: %s %s\n", formatStatusIcon(s.Status), s.Status)
	if s.Status == healthcheck.StatusReady {
		fmt.Fprintf(w, "  Entries: %d\n", s.Entries)
		if s.Bytes > 0 {
			fmt.Fprintf(w, "  Size: %d bytes\n", s.Bytes)
		}
	}
	if s.Error != "" {
		fmt.Fprintf(w, "  Error: %s\n", s.Error)
	}
}

func formatStatusIcon(status string) string {
	switch status {
	case healthcheck.StatusReady, healthcheck.StatusEmpty:
		return "✓"
	case healthcheck.StatusDisabled:
		return "-"
	case healthcheck.StatusError:
		return "✗"
	default:
		return "?"
	}
}
