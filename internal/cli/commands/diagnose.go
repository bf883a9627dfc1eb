package commands

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/halog/pkg/catalog"
	"github.com/ccollicutt/halog/pkg/config"
	"github.com/ccollicutt/halog/pkg/detector"
	"github.com/ccollicutt/halog/pkg/faults"
	"github.com/ccollicutt/halog/pkg/parser"
	"github.com/ccollicutt/halog/pkg/store"
)

// Diagnostic statuses.
const (
	StatusOK      = "ok"
	StatusWarning = "warning"
	StatusError   = "error"
)

// DiagnoseOptions holds options for the diagnose command
type DiagnoseOptions struct {
	Verbose bool
}

// DiagnosticResult represents the result of a single diagnostic check
type DiagnosticResult struct {
	Check    string
	Status   string // "ok", "warning", "error"
	Message  string
	Details  []string
	Suggests []string
}

// NewDiagnoseCommand creates the diagnose command
func NewDiagnoseCommand() *cobra.Command {
	opts := &DiagnoseOptions{}

	cmd := &cobra.Command{
		Use:   "diagnose [log-file|glob|dir]...",
		Short: "Check configuration, data files and logs for problems",
		Long: `Run health checks before parsing or analysis.

Checks:
  - Config file existence, syntax and values (--config)
  - Parameter catalog pattern collisions and ranges
  - Fault database files and their encodings
  - SQLite store (store.path)
  - Metrics textfile directory
  - Log files given as arguments, probed for timestamps and parameters
  - Webhook configuration (connectivity too with -v)

Exits 1 when any check fails.

Example:
  halog diagnose --config halog.yaml
  halog diagnose -v --config halog.yaml logs/*.log`,
		RunE: func(cmd *cobra.Command, args []string) error {
			results := runDiagnose(commandContext(cmd), stringFlag(cmd, "config"), args, opts)
			printDiagnostics(cmd.OutOrStdout(), results, opts)
			if countStatus(results, StatusError) > 0 {
				ExitCode = ExitIssues
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Show detailed diagnostic output")

	return cmd
}

func runDiagnose(ctx context.Context, configPath string, logArgs []string, opts *DiagnoseOptions) []DiagnosticResult {
	results := []DiagnosticResult{}

	// 1. Check config file existence
	if configPath != "" {
		result := checkConfigExists(configPath)
		results = append(results, result)
		if result.Status == StatusError {
			return results
		}
	}

	// 2. Parse config file
	cfg, result := checkConfigParseable(ctx, configPath)
	results = append(results, result)
	if result.Status == StatusError {
		return results
	}

	// 3. Catalog self-check
	cat, result := checkCatalog(cfg)
	results = append(results, result)

	// 4. Fault databases
	results = append(results, checkFaultDatabases(cfg, opts)...)

	// 5. Store and metrics output
	if r, ok := checkStore(ctx, cfg, opts); ok {
		results = append(results, r)
	}
	if r, ok := checkMetricsTextfile(cfg); ok {
		results = append(results, r)
	}

	// 6. Log files
	if len(logArgs) > 0 {
		results = append(results, checkLogFiles(ctx, cat, logArgs, opts)...)
	}

	// 7. Webhooks
	results = append(results, checkWebhooks(cfg, opts)...)

	return results
}

func checkConfigExists(path string) DiagnosticResult {
	result := DiagnosticResult{
		Check: "Config File",
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		result.Status = StatusError
		result.Message = fmt.Sprintf("Config file not found: %s", path)
		result.Suggests = []string{
			"Check the file path is correct",
			"Use 'halog detect <log-file> --write-config halog.yaml' to generate a starter config",
		}
		return result
	}
	if err != nil {
		result.Status = StatusError
		result.Message = fmt.Sprintf("Cannot access config file: %v", err)
		result.Suggests = []string{"Check file permissions"}
		return result
	}
	if info.IsDir() {
		result.Status = StatusError
		result.Message = "Path is a directory, not a file"
		return result
	}
	if info.Size() == 0 {
		result.Status = StatusError
		result.Message = "Config file is empty"
		result.Suggests = []string{
			"Use 'halog detect <log-file> --write-config halog.yaml' to generate a starter config",
		}
		return result
	}

	result.Status = StatusOK
	result.Message = fmt.Sprintf("Found: %s (%d bytes)", path, info.Size())
	return result
}

func checkConfigParseable(ctx context.Context, path string) (*config.Config, DiagnosticResult) {
	result := DiagnosticResult{
		Check: "Config Syntax",
	}

	cfg, err := config.Load(ctx, path)
	if err != nil {
		result.Status = StatusError
		result.Message = "Configuration is invalid"
		result.Details = []string{err.Error()}
		result.Suggests = []string{"Run 'halog validate <config-file>' for a full report"}
		return nil, result
	}

	result.Status = StatusOK
	if path == "" {
		result.Message = "No config file given, using defaults"
	} else {
		result.Message = "Configuration is valid"
	}
	result.Details = []string{
		fmt.Sprintf("Parser: chunk size %d, %s progress, %d worker(s)",
			cfg.Parser.ChunkSize, cfg.Parser.ProgressMode, cfg.Parser.Workers),
		fmt.Sprintf("Analysis: confidence %.2f, %d resamples, seed %d",
			cfg.Analysis.ConfidenceLevel, cfg.Analysis.BootstrapResamples, cfg.Analysis.Seed),
	}
	return cfg, result
}

func checkCatalog(cfg *config.Config) (*catalog.Catalog, DiagnosticResult) {
	result := DiagnosticResult{
		Check: "Parameter Catalog",
	}

	source := "embedded"
	var (
		entries []catalog.Entry
		err     error
	)
	if cfg.Catalog.Path != "" {
		source = cfg.Catalog.Path
		var data []byte
		data, err = os.ReadFile(cfg.Catalog.Path) // #nosec G304 -- user-provided catalog path is expected
		if err == nil {
			entries, err = catalog.Parse(data)
		}
	} else {
		entries, err = catalog.DefaultEntries()
	}
	if err != nil {
		result.Status = StatusError
		result.Message = fmt.Sprintf("Cannot read catalog (%s)", source)
		result.Details = []string{err.Error()}
		return nil, result
	}

	if problems := catalog.Check(entries); len(problems) > 0 {
		result.Status = StatusError
		result.Message = fmt.Sprintf("%d problem(s) in %s catalog", len(problems), source)
		for _, p := range problems {
			result.Details = append(result.Details, p.Error())
		}
		result.Suggests = []string{"Run 'halog catalog check' after fixing the catalog file"}
		return nil, result
	}

	cat, err := catalog.New(entries)
	if err != nil {
		result.Status = StatusError
		result.Message = fmt.Sprintf("Cannot build catalog (%s)", source)
		result.Details = []string{err.Error()}
		return nil, result
	}

	result.Status = StatusOK
	result.Message = fmt.Sprintf("%d parameters, %d patterns (%s)", cat.Len(), len(cat.Patterns()), source)
	return cat, result
}

func checkFaultDatabases(cfg *config.Config, opts *DiagnoseOptions) []DiagnosticResult {
	results := []DiagnosticResult{}

	for _, db := range []struct {
		src  faults.Source
		path string
	}{
		{faults.SourceA, cfg.Faults.DatabaseA},
		{faults.SourceB, cfg.Faults.DatabaseB},
	} {
		result := DiagnosticResult{
			Check: fmt.Sprintf("Fault Database %s", db.src),
		}
		if db.path == "" {
			if opts.Verbose {
				result.Status = StatusOK
				result.Message = "Not configured (optional)"
				results = append(results, result)
			}
			continue
		}

		reg := faults.NewRegistry()
		if err := reg.LoadFile(db.src, db.path); err != nil {
			result.Status = StatusError
			result.Message = fmt.Sprintf("Cannot load %s", db.path)
			result.Details = []string{err.Error()}
			result.Suggests = []string{"Fault databases are tab-delimited: ID<TAB>Description<TAB>Type"}
			results = append(results, result)
			continue
		}

		stats := reg.Stats()
		n := stats.TotalCodes[db.src]
		if n == 0 {
			result.Status = StatusWarning
			result.Message = fmt.Sprintf("%s contains no fault codes", db.path)
			result.Suggests = []string{"Check that columns are separated by tabs"}
		} else {
			result.Status = StatusOK
			result.Message = fmt.Sprintf("%d codes, %d types (%s)", n, stats.Types, stats.Encodings[db.src])
		}
		results = append(results, result)
	}

	return results
}

func checkStore(ctx context.Context, cfg *config.Config, opts *DiagnoseOptions) (DiagnosticResult, bool) {
	result := DiagnosticResult{
		Check: "Store",
	}
	if cfg.Store.Path == "" {
		if !opts.Verbose {
			return result, false
		}
		result.Status = StatusOK
		result.Message = "Not configured (optional)"
		return result, true
	}

	if _, err := os.Stat(cfg.Store.Path); os.IsNotExist(err) {
		result.Status = StatusWarning
		result.Message = fmt.Sprintf("%s does not exist yet", cfg.Store.Path)
		result.Suggests = []string{"It is created by 'halog parse --db'"}
		return result, true
	}

	st, err := store.New(ctx, cfg.Store.Path)
	if err != nil {
		result.Status = StatusError
		result.Message = fmt.Sprintf("Cannot open %s", cfg.Store.Path)
		result.Details = []string{err.Error()}
		return result, true
	}
	defer st.Close()

	sum, err := st.Summary(ctx)
	if err != nil {
		result.Status = StatusError
		result.Message = fmt.Sprintf("Cannot query %s", cfg.Store.Path)
		result.Details = []string{err.Error()}
		return result, true
	}

	result.Status = StatusOK
	result.Message = fmt.Sprintf("%d readings from %d file(s)", sum.Readings, sum.Files)
	if sum.Readings > 0 {
		result.Details = []string{
			fmt.Sprintf("Devices: %d, parameters: %d", sum.Devices, sum.Parameters),
			fmt.Sprintf("Time range: %s to %s",
				sum.First.Format(parser.TimestampLayout), sum.Last.Format(parser.TimestampLayout)),
		}
	}
	return result, true
}

func checkMetricsTextfile(cfg *config.Config) (DiagnosticResult, bool) {
	if cfg.Metrics.Textfile == "" {
		return DiagnosticResult{}, false
	}
	result := DiagnosticResult{
		Check: "Metrics Textfile",
	}
	dir := filepath.Dir(cfg.Metrics.Textfile)
	info, err := os.Stat(dir)
	switch {
	case err != nil:
		result.Status = StatusError
		result.Message = fmt.Sprintf("Directory %s is not accessible: %v", dir, err)
	case !info.IsDir():
		result.Status = StatusError
		result.Message = fmt.Sprintf("%s is not a directory", dir)
	default:
		result.Status = StatusOK
		result.Message = fmt.Sprintf("Writing to %s", cfg.Metrics.Textfile)
	}
	return result, true
}

func checkLogFiles(ctx context.Context, cat *catalog.Catalog, patterns []string, opts *DiagnoseOptions) []DiagnosticResult {
	results := []DiagnosticResult{}

	files, err := parser.ExpandGlobs(patterns)
	if err != nil {
		return append(results, DiagnosticResult{
			Check:   "Log Files",
			Status:  StatusError,
			Message: err.Error(),
		})
	}

	var d *detector.Detector
	if cat != nil {
		d, _ = detector.New(cat)
	}

	for _, file := range files {
		result := DiagnosticResult{
			Check: fmt.Sprintf("Log File: %s", truncate(file, 60)),
		}

		info, err := os.Stat(file)
		switch {
		case os.IsNotExist(err):
			result.Status = StatusError
			result.Message = "File not found"
			results = append(results, result)
			continue
		case err != nil:
			result.Status = StatusError
			result.Message = fmt.Sprintf("Cannot access: %v", err)
			results = append(results, result)
			continue
		case info.Size() == 0:
			result.Status = StatusWarning
			result.Message = "File is empty"
			results = append(results, result)
			continue
		}

		if d == nil {
			result.Status = StatusWarning
			result.Message = fmt.Sprintf("%d bytes (not probed: catalog unavailable)", info.Size())
			results = append(results, result)
			continue
		}

		probe, err := d.DetectFromFile(ctx, file)
		if err != nil {
			result.Status = StatusError
			result.Message = fmt.Sprintf("Cannot read: %v", err)
			results = append(results, result)
			continue
		}

		if !probe.HasRecords() {
			result.Status = StatusWarning
			result.Message = fmt.Sprintf("No parameter records in first %d lines", probe.SampledLines)
			for _, f := range probe.Foreign {
				result.Details = append(result.Details,
					fmt.Sprintf("Unsupported timestamp format: %s (%d lines)", f.Format.Name, f.MatchCount))
			}
			if probe.TimestampLines == 0 {
				result.Suggests = append(result.Suggests, "Timestamps must look like YYYY-MM-DD HH:MM:SS or MM/DD/YYYY HH:MM:SS")
			}
			result.Suggests = append(result.Suggests, fmt.Sprintf("Run 'halog detect %s' for details", file))
			results = append(results, result)
			continue
		}

		result.Status = StatusOK
		result.Message = fmt.Sprintf("%d bytes, %.0f%% of sampled lines produce records",
			info.Size(), probe.RecordRate()*100)
		if opts.Verbose {
			for _, p := range probe.Parameters {
				result.Details = append(result.Details, fmt.Sprintf("%s: %d lines", p.Parameter, p.Lines))
			}
			if probe.AmbiguityNote != "" {
				result.Details = append(result.Details, probe.AmbiguityNote)
			}
		}
		results = append(results, result)
	}

	return results
}

func printDiagnostics(w io.Writer, results []DiagnosticResult, opts *DiagnoseOptions) {
	fmt.Fprintln(w, "=== halog Diagnostics ===")
	fmt.Fprintln(w)

	for _, r := range results {
		// Status icon
		var icon string
		switch r.Status {
		case StatusOK:
			icon = "PASS"
		case StatusWarning:
			icon = "WARN"
		case StatusError:
			icon = "FAIL"
		}

		fmt.Fprintf(w, "[%s] %s\n", icon, r.Check)
		fmt.Fprintf(w, "    %s\n", r.Message)

		if opts.Verbose || r.Status != StatusOK {
			for _, d := range r.Details {
				fmt.Fprintf(w, "      - %s\n", d)
			}
		}

		for _, s := range r.Suggests {
			fmt.Fprintf(w, "      Hint: %s\n", s)
		}

		fmt.Fprintln(w)
	}

	okCount := countStatus(results, StatusOK)
	warnCount := countStatus(results, StatusWarning)
	errCount := countStatus(results, StatusError)

	// Summary
	fmt.Fprintln(w, "---")
	fmt.Fprintf(w, "Summary: %d passed, %d warnings, %d errors\n", okCount, warnCount, errCount)

	if errCount > 0 {
		fmt.Fprintln(w, "\nFix the errors above before running analysis.")
	} else if warnCount > 0 {
		fmt.Fprintln(w, "\nSetup is usable but has warnings.")
	} else {
		fmt.Fprintln(w, "\nSetup looks good!")
	}
}

func countStatus(results []DiagnosticResult, status string) int {
	n := 0
	for _, r := range results {
		if r.Status == status {
			n++
		}
	}
	return n
}

func checkWebhooks(cfg *config.Config, opts *DiagnoseOptions) []DiagnosticResult {
	results := []DiagnosticResult{}

	if len(cfg.Webhooks) == 0 {
		// Webhooks are optional, just note they're not configured
		if opts.Verbose {
			results = append(results, DiagnosticResult{
				Check:   "Webhooks",
				Status:  StatusOK,
				Message: "No webhooks configured (optional)",
			})
		}
		return results
	}

	for _, wh := range cfg.Webhooks {
		name := wh.Name
		if name == "" {
			name = wh.URL
		}

		result := DiagnosticResult{
			Check: fmt.Sprintf("Webhook: %s", name),
		}

		issues := []string{}
		warnings := []string{}

		// Check URL
		if wh.URL == "" {
			issues = append(issues, "Missing url")
		} else {
			u, err := url.Parse(wh.URL)
			if err != nil {
				issues = append(issues, fmt.Sprintf("Invalid URL: %v", err))
			} else if u.Scheme != "http" && u.Scheme != "https" {
				issues = append(issues, fmt.Sprintf("URL scheme must be http or https, got %q", u.Scheme))
			} else if u.Host == "" {
				issues = append(issues, "URL must have a host")
			}
		}

		// Check trigger
		if wh.Trigger != "" {
			switch wh.Trigger {
			case config.WebhookTriggerOnIssues, config.WebhookTriggerAlways, config.WebhookTriggerNever:
				// Valid
			default:
				issues = append(issues, fmt.Sprintf("Invalid trigger %q (use on_issues, always, or never)", wh.Trigger))
			}
		}

		// Check if token looks like an unexpanded env var
		if strings.HasPrefix(wh.Token, "$") {
			warnings = append(warnings, fmt.Sprintf("Token appears to be an unresolved env var: %s", wh.Token))
		}

		if len(issues) > 0 {
			result.Status = StatusError
			result.Message = fmt.Sprintf("%d configuration issue(s)", len(issues))
			result.Details = issues
		} else if len(warnings) > 0 {
			result.Status = StatusWarning
			result.Message = fmt.Sprintf("%d warning(s)", len(warnings))
			result.Details = warnings
		} else {
			result.Status = StatusOK
			result.Message = fmt.Sprintf("Trigger: %s", wh.Trigger)
			if opts.Verbose {
				result.Details = []string{
					fmt.Sprintf("URL: %s", wh.URL),
					fmt.Sprintf("Timeout: %s", wh.Timeout),
				}
				if wh.Token != "" {
					result.Details = append(result.Details, "Token: configured")
				}
			}
		}

		results = append(results, result)
	}

	// Optionally test webhook connectivity
	if opts.Verbose {
		for _, wh := range cfg.Webhooks {
			if wh.URL == "" {
				continue
			}

			name := wh.Name
			if name == "" {
				name = wh.URL
			}

			result := checkWebhookConnectivity(wh)
			result.Check = fmt.Sprintf("Webhook Connectivity: %s", name)
			results = append(results, result)
		}
	}

	return results
}

func checkWebhookConnectivity(wh config.WebhookConfig) DiagnosticResult {
	result := DiagnosticResult{}

	// Just do a HEAD request to check if the endpoint is reachable
	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	req, err := http.NewRequest(http.MethodHead, wh.URL, nil)
	if err != nil {
		result.Status = StatusWarning
		result.Message = fmt.Sprintf("Cannot create request: %v", err)
		return result
	}

	if wh.Token != "" {
		req.Header.Set("Authorization", "Bearer "+wh.Token)
	}

	resp, err := client.Do(req)
	if err != nil {
		result.Status = StatusWarning
		result.Message = fmt.Sprintf("Cannot connect: %v", err)
		result.Suggests = []string{
			"Check if the webhook URL is correct",
			"Verify network connectivity",
		}
		return result
	}
	defer resp.Body.Close()

	// Any response (even 4xx/5xx) means the server is reachable
	if resp.StatusCode >= 200 && resp.StatusCode < 400 {
		result.Status = StatusOK
		result.Message = fmt.Sprintf("Reachable (status %d)", resp.StatusCode)
	} else {
		result.Status = StatusWarning
		result.Message = fmt.Sprintf("Reachable but returned status %d", resp.StatusCode)
		result.Suggests = []string{
			"The endpoint may require POST method (will work during actual webhook send)",
			"Check authentication if using a token",
		}
	}

	return result
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
