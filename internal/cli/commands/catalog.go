package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/ccollicutt/halog/pkg/catalog"
)

// NewCatalogCommand creates the catalog command and its subcommands.
func NewCatalogCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect the parameter catalog",
		Long: `Inspect the parameter catalog that maps raw log spellings to canonical
parameters.

The embedded catalog is used unless catalog.path names a replacement file.

Example:
  halog catalog list
  halog catalog check my-catalog.yaml`,
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List supported parameters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCatalogList(cmd, output)
		},
	}
	list.Flags().StringVarP(&output, "output", "o", "text", "Output format (text|json)")

	check := &cobra.Command{
		Use:   "check [catalog-file]",
		Short: "Self-check a catalog for pattern collisions and bad ranges",
		Long: `Check a catalog file, the configured catalog, or the embedded catalog.

Reports duplicate ids, empty patterns, malformed ranges, expected ranges
outside the critical range, and raw spellings claimed by two parameters.
Exits 1 when problems are found.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCatalogCheck,
	}

	cmd.AddCommand(list, check)
	return cmd
}

func runCatalogList(cmd *cobra.Command, output string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.close()

	cat, err := loadCatalog(e.cfg)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if output == "json" {
		return encodeJSON(w, cat.SupportedParameters())
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Parameter", "Unit", "Expected", "Critical", "Patterns", "Description"})
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, entry := range cat.Entries() {
		table.Append([]string{
			entry.ID,
			entry.Unit,
			formatRange(entry.ExpectedRange),
			formatRange(entry.CriticalRange),
			strings.Join(entry.Patterns, ", "),
			entry.Description,
		})
	}
	table.Render()
	fmt.Fprintf(w, "%d parameters\n", cat.Len())
	return nil
}

func formatRange(r catalog.Range) string {
	return fmt.Sprintf("[%g, %g]", r.Min, r.Max)
}

func runCatalogCheck(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.close()

	var (
		entries []catalog.Entry
		source  string
	)
	path := e.cfg.Catalog.Path
	if len(args) == 1 {
		path = args[0]
	}
	if path != "" {
		data, err := os.ReadFile(path) // #nosec G304 -- user-provided catalog path is expected
		if err != nil {
			return fmt.Errorf("reading catalog: %w", err)
		}
		if entries, err = catalog.Parse(data); err != nil {
			return err
		}
		source = path
	} else {
		if entries, err = catalog.DefaultEntries(); err != nil {
			return fmt.Errorf("loading embedded catalog: %w", err)
		}
		source = "embedded catalog"
	}

	w := cmd.OutOrStdout()
	problems := catalog.Check(entries)
	if len(problems) == 0 {
		fmt.Fprintf(w, "Catalog OK: %s (%d parameters)\n", source, len(entries))
		return nil
	}

	fmt.Fprintf(w, "Catalog %s has %d problem(s):\n", source, len(problems))
	for _, p := range problems {
		fmt.Fprintf(w, "  - %s\n", p.Error())
	}
	ExitCode = ExitIssues
	return nil
}
