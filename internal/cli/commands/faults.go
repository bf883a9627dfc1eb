package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/ccollicutt/halog/pkg/faults"
)

// FaultsOptions holds options shared by the faults subcommands.
type FaultsOptions struct {
	DatabaseA string
	DatabaseB string
	Output    string
}

// NewFaultsCommand creates the faults command and its subcommands.
func NewFaultsCommand() *cobra.Command {
	opts := &FaultsOptions{}

	cmd := &cobra.Command{
		Use:   "faults",
		Short: "Look up machine fault codes",
		Long: `Look up fault codes in the two tab-delimited fault databases.

Each database is a file of "ID<TAB>Description<TAB>Type" lines. The paths
come from faults.database_a and faults.database_b, or --db-a and --db-b.
A code present in both databases is reported for each.

Example:
  halog faults lookup 400027
  halog faults search "pump pressure"
  halog faults stats --db-a faults_a.txt --db-b faults_b.txt`,
	}

	cmd.PersistentFlags().StringVar(&opts.DatabaseA, "db-a", "", "Fault database A (default faults.database_a)")
	cmd.PersistentFlags().StringVar(&opts.DatabaseB, "db-b", "", "Fault database B (default faults.database_b)")
	cmd.PersistentFlags().StringVarP(&opts.Output, "output", "o", "text", "Output format (text|json)")

	cmd.AddCommand(&cobra.Command{
		Use:   "lookup <code>",
		Short: "Report which databases know a fault code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFaultsLookup(cmd, args[0], opts)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "search <text>",
		Short: "Find fault codes whose description contains text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFaultsSearch(cmd, args[0], opts)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Summarize the loaded fault databases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFaultsStats(cmd, opts)
		},
	})

	return cmd
}

// loadRegistry loads whichever databases are configured. It fails only
// when none could be loaded.
func loadRegistry(cmd *cobra.Command, opts *FaultsOptions) (*faults.Registry, error) {
	e, err := setup(cmd)
	if err != nil {
		return nil, err
	}
	defer e.close()

	pathA := firstNonEmpty(opts.DatabaseA, e.cfg.Faults.DatabaseA)
	pathB := firstNonEmpty(opts.DatabaseB, e.cfg.Faults.DatabaseB)
	if pathA == "" && pathB == "" {
		return nil, errors.New("no fault databases configured (use --db-a/--db-b or faults.database_a/database_b)")
	}

	reg := faults.NewRegistry(faults.WithLogger(e.logger))
	loadErr := reg.Load(pathA, pathB)
	if !reg.Loaded(faults.SourceA) && !reg.Loaded(faults.SourceB) {
		return nil, fmt.Errorf("loading fault databases: %w", loadErr)
	}
	if loadErr != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", loadErr)
	}
	return reg, nil
}

func runFaultsLookup(cmd *cobra.Command, code string, opts *FaultsOptions) error {
	reg, err := loadRegistry(cmd, opts)
	if err != nil {
		return err
	}

	res := reg.Lookup(code)
	if !res.Found() {
		ExitCode = ExitIssues
	}

	w := cmd.OutOrStdout()
	if opts.Output == "json" {
		return encodeJSON(w, res)
	}
	printLookup(w, reg, res)
	return nil
}

func printLookup(w io.Writer, reg *faults.Registry, res faults.LookupResult) {
	fmt.Fprintf(w, "Fault code %s\n", res.Code)
	for _, h := range res.Hits {
		switch {
		case !reg.Loaded(h.Source):
			fmt.Fprintf(w, "  Database %s: not loaded\n", h.Source)
		case h.Found:
			fmt.Fprintf(w, "  Database %s: %s [%s]\n", h.Source, h.Entry.Description, h.Entry.Type)
		default:
			fmt.Fprintf(w, "  Database %s: not found\n", h.Source)
		}
	}
	if !res.Found() {
		fmt.Fprintln(w, "Code not found in any database")
	}
}

func runFaultsSearch(cmd *cobra.Command, term string, opts *FaultsOptions) error {
	reg, err := loadRegistry(cmd, opts)
	if err != nil {
		return err
	}

	entries := reg.SearchByDescription(term)
	w := cmd.OutOrStdout()
	if opts.Output == "json" {
		if entries == nil {
			entries = []faults.Entry{}
		}
		return encodeJSON(w, entries)
	}

	if len(entries) == 0 {
		fmt.Fprintf(w, "No fault codes match %q\n", term)
		return nil
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Code", "DB", "Type", "Description"})
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, e := range entries {
		table.Append([]string{e.Code, string(e.Source), e.Type, e.Description})
	}
	table.Render()
	fmt.Fprintf(w, "%d match(es)\n", len(entries))
	return nil
}

func runFaultsStats(cmd *cobra.Command, opts *FaultsOptions) error {
	reg, err := loadRegistry(cmd, opts)
	if err != nil {
		return err
	}

	stats := reg.Stats()
	w := cmd.OutOrStdout()
	if opts.Output == "json" {
		return encodeJSON(w, stats)
	}

	fmt.Fprintln(w, "=== Fault Databases ===")
	for _, src := range faults.Sources {
		if !reg.Loaded(src) {
			fmt.Fprintf(w, "Database %s: not loaded\n", src)
			continue
		}
		fmt.Fprintf(w, "Database %s: %d codes (%s)\n", src, stats.TotalCodes[src], stats.Encodings[src])
	}
	fmt.Fprintf(w, "Unique codes: %d\n", stats.UniqueCodes)
	fmt.Fprintf(w, "Types: %d\n", stats.Types)

	types := make([]string, 0, len(stats.TypeBreakdown))
	for t := range stats.TypeBreakdown {
		types = append(types, t)
	}
	sort.Strings(types)
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Type", "Codes"})
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, t := range types {
		table.Append([]string{t, strconv.Itoa(stats.TypeBreakdown[t])})
	}
	table.Render()
	return nil
}

func encodeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
