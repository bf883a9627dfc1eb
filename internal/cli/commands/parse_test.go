package commands

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ccollicutt/halog/pkg/output"
	"github.com/ccollicutt/halog/pkg/store"
)

func TestRunParse_Text(t *testing.T) {
	logPath := writeLog(t, t.TempDir(), "TDS_1.log", append(flowLines(5, -1), "no timestamp here"))

	out, err := executeCommand(t, NewParseCommand(), logPath)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if ExitCode != ExitOK {
		t.Errorf("ExitCode = %d, want %d", ExitCode, ExitOK)
	}

	for _, want := range []string{
		"=== halog Parse Summary ===",
		"Imported 15 records",
		"Parameters: magnetronFlow",
		"Devices: SN#1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Stored:") {
		t.Error("Stored line printed without a store")
	}
}

func TestRunParse_Quiet(t *testing.T) {
	logPath := writeLog(t, t.TempDir(), "TDS_1.log", flowLines(4, -1))

	out, err := executeCommand(t, NewParseCommand(), "-q", logPath)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if !strings.HasPrefix(out, "halog: 1 files, 12 records") {
		t.Errorf("Unexpected quiet output: %q", out)
	}
}

func TestRunParse_JSON(t *testing.T) {
	logPath := writeLog(t, t.TempDir(), "TDS_1.log", flowLines(3, -1))

	out, err := executeCommand(t, NewParseCommand(), "-o", "json", logPath)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	var report output.ParseReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("Invalid JSON: %v\n%s", err, out)
	}
	if report.Totals.Files != 1 || report.Totals.Records != 9 {
		t.Errorf("Totals = %+v, want 1 file and 9 records", report.Totals)
	}
	if report.Stored != -1 {
		t.Errorf("Stored = %d, want -1", report.Stored)
	}
}

func TestRunParse_CSV(t *testing.T) {
	logPath := writeLog(t, t.TempDir(), "TDS_1.log", flowLines(2, -1))

	out, err := executeCommand(t, NewParseCommand(), "-o", "csv", logPath)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	rows, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	if err != nil {
		t.Fatalf("Invalid CSV: %v", err)
	}
	if len(rows) != 7 {
		t.Fatalf("Got %d rows, want header plus 6 records", len(rows))
	}
	if !strings.Contains(strings.Join(rows[1], ","), "magnetronFlow") {
		t.Errorf("Unexpected first record: %v", rows[1])
	}
}

func TestRunParse_Store(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := writeLog(t, tmpDir, "TDS_1.log", flowLines(10, -1))
	dbPath := filepath.Join(tmpDir, "halog.db")

	out, err := executeCommand(t, NewParseCommand(), "--db", dbPath, logPath)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if !strings.Contains(out, "Stored: 30 new readings") {
		t.Errorf("Output missing stored count:\n%s", out)
	}

	// Re-importing the same file adds nothing
	out, err = executeCommand(t, NewParseCommand(), "--db", dbPath, logPath)
	if err != nil {
		t.Fatalf("second parse failed: %v", err)
	}
	if !strings.Contains(out, "Stored: 0 new readings") {
		t.Errorf("Re-import should store nothing:\n%s", out)
	}

	ctx := context.Background()
	st, err := store.New(ctx, dbPath)
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	defer st.Close()

	sum, err := st.Summary(ctx)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum.Readings != 30 {
		t.Errorf("Readings = %d, want 30", sum.Readings)
	}
	if sum.Files != 2 {
		t.Errorf("Files = %d, want one metadata row per import", sum.Files)
	}
	if sum.Devices != 1 || sum.Parameters != 1 {
		t.Errorf("Summary = %+v, want one device and one parameter", sum)
	}
}

func TestRunParse_StoreFromConfig(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := writeLog(t, tmpDir, "TDS_1.log", flowLines(2, -1))
	dbPath := filepath.Join(tmpDir, "configured.db")
	configPath := writeFile(t, tmpDir, "halog.yaml", "store:\n  path: "+dbPath+"\n")

	if _, err := executeCommand(t, NewParseCommand(), "--config", configPath, logPath); err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("store.path was not created: %v", err)
	}
}

func TestRunParse_MetricsTextfile(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := writeLog(t, tmpDir, "TDS_1.log", flowLines(3, -1))
	promPath := filepath.Join(tmpDir, "halog.prom")

	if _, err := executeCommand(t, NewParseCommand(), "--metrics-textfile", promPath, logPath); err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	data, err := os.ReadFile(promPath)
	if err != nil {
		t.Fatalf("Textfile not written: %v", err)
	}
	for _, want := range []string{
		`halog_lines_processed_total{file="TDS_1.log"} 3`,
		`halog_records_extracted_total{file="TDS_1.log"} 9`,
	} {
		if !strings.Contains(string(data), want) {
			t.Errorf("Textfile missing %q:\n%s", want, data)
		}
	}
}

func TestRunParse_SomeFilesFail(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := writeLog(t, tmpDir, "TDS_1.log", flowLines(2, -1))

	out, err := executeCommand(t, NewParseCommand(), logPath, filepath.Join(tmpDir, "missing.log"))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if ExitCode != ExitIssues {
		t.Errorf("ExitCode = %d, want %d", ExitCode, ExitIssues)
	}
	if !strings.Contains(out, "error:") {
		t.Errorf("Failed file not reported:\n%s", out)
	}
}

func TestRunParse_AllFilesFail(t *testing.T) {
	_, err := executeCommand(t, NewParseCommand(), filepath.Join(t.TempDir(), "missing.log"))
	if err == nil {
		t.Fatal("Expected error when no file parses")
	}
	if !strings.Contains(err.Error(), "no log file could be parsed") {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestRunParse_UnknownFormat(t *testing.T) {
	logPath := writeLog(t, t.TempDir(), "TDS_1.log", flowLines(1, -1))

	if _, err := executeCommand(t, NewParseCommand(), "-o", "xml", logPath); err == nil {
		t.Error("Expected error for unknown output format")
	}
}

func TestRunParse_Directory(t *testing.T) {
	tmpDir := t.TempDir()
	writeLog(t, tmpDir, "TDS_1.log", flowLines(2, -1))
	writeLog(t, tmpDir, "TDS_2.log", flowLines(3, -1))

	out, err := executeCommand(t, NewParseCommand(), "-q", tmpDir)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if !strings.HasPrefix(out, "halog: 2 files") {
		t.Errorf("Unexpected output: %q", out)
	}
}
