// Package cli provides the command-line interface for halog.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/halog/internal/cli/commands"
)

// Execute runs the root command and returns the exit code. SIGINT and
// SIGTERM cancel the running command.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := NewRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		// Print error to stderr (SilenceErrors prevents Cobra from doing this)
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return commands.ExitError
	}
	return commands.ExitCode
}

// NewRootCommand creates the root cobra command.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "halog",
		Short: "Parse and analyze linac machine logs",
		Long: `halog turns machine logs into canonical parameter readings and analyzes them.

It provides:
  - Parsing of min/max/avg parameter blocks (pump pressure, flows, fans,
    temperatures, voltages) into a canonical table, optionally stored in SQLite
  - Descriptive statistics, confidence intervals and data-quality scores
  - Linear and Mann-Kendall trend tests
  - Anomaly detection by isolation forest, z-score and IQR
  - Fault code lookups across two fault databases

Exit codes:
  0 - Success
  1 - Findings (High severity anomalies, failed files or checks)
  2 - Configuration or runtime error`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	commands.AddGlobalFlags(rootCmd)

	// Add subcommands
	rootCmd.AddCommand(commands.NewParseCommand())
	rootCmd.AddCommand(commands.NewAnalyzeCommand())
	rootCmd.AddCommand(commands.NewFaultsCommand())
	rootCmd.AddCommand(commands.NewCatalogCommand())
	rootCmd.AddCommand(commands.NewDetectCommand())
	rootCmd.AddCommand(commands.NewDiagnoseCommand())
	rootCmd.AddCommand(commands.NewValidateCommand())
	rootCmd.AddCommand(commands.NewVersionCommand())

	return rootCmd
}
