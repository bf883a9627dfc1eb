package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/halog/pkg/config"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <config-file>",
		Short: "Validate a configuration file",
		Long: `Validate a halog configuration file without parsing any logs.

Checks:
  - YAML syntax
  - Value ranges (chunk size, confidence level, anomaly settings)
  - Logging level and format
  - Webhook URLs and triggers
  - Catalog, fault database and store paths (warning only)`,
		Args: cobra.ExactArgs(1),
		RunE: runValidate,
	}
}

func runValidate(cmd *cobra.Command, args []string) error {
	configPath := args[0]
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Validating %s...\n", configPath)

	if _, err := os.Stat(configPath); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	// Load and validate config
	cfg, err := config.Load(commandContext(cmd), configPath)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	// Report what we found
	fmt.Fprintf(w, "\nConfiguration valid!\n")
	fmt.Fprintf(w, "  Parser:   chunk size %d, %s progress, %d worker(s)\n",
		cfg.Parser.ChunkSize, cfg.Parser.ProgressMode, cfg.Parser.Workers)
	fmt.Fprintf(w, "  Analysis: confidence %.2f, %d resamples, seed %d, anomaly statistics %v\n",
		cfg.Analysis.ConfidenceLevel, cfg.Analysis.BootstrapResamples, cfg.Analysis.Seed, cfg.Analysis.Anomaly.Statistics)
	if cfg.Analysis.MaxGap > 0 {
		fmt.Fprintf(w, "  Gaps:     reported above %s\n", cfg.Analysis.MaxGap)
	}
	fmt.Fprintf(w, "  Logging:  %s (%s)\n", cfg.Logging.Level, cfg.Logging.Format)
	fmt.Fprintf(w, "  Webhooks: %d\n", len(cfg.Webhooks))
	for i, wh := range cfg.Webhooks {
		fmt.Fprintf(w, "  %d. [%s] %s\n", i+1, wh.Trigger, wh.Name)
	}

	// Check referenced files (warnings only)
	var warnings []string
	for _, f := range []struct {
		key, path string
	}{
		{"catalog.path", cfg.Catalog.Path},
		{"faults.database_a", cfg.Faults.DatabaseA},
		{"faults.database_b", cfg.Faults.DatabaseB},
	} {
		if f.path == "" {
			continue
		}
		if _, err := os.Stat(f.path); err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %s not found", f.key, f.path))
		}
	}
	if cfg.Store.Path != "" {
		if _, err := os.Stat(cfg.Store.Path); err != nil {
			warnings = append(warnings, fmt.Sprintf("store.path: %s does not exist yet (created on first parse --db)", cfg.Store.Path))
		}
	}

	if len(warnings) > 0 {
		fmt.Fprintln(w)
		for _, warn := range warnings {
			fmt.Fprintf(w, "Warning: %s\n", warn)
		}
	}

	return nil
}
