package detector

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ccollicutt/halog/pkg/catalog"
	"github.com/ccollicutt/halog/pkg/parser"
)

var sampleLines = []string{
	"2024-08-01 10:00:00 SN#1 magnetronFlow: count=60, max=5.2, min=4.8, avg=5.0",
	"2024-08-01 10:01:00 SN#1 Cooling pump high statistics count=120, max=205, min=195, avg=200",
	"08/01/2024 10:02:00 Serial: 2 magnetron flow count=60, max=5.2, min=4.8, avg=5.0",
	"2024-08-01 10:03:00 SN#1 heartbeat ok",
	"2024-08-01 10:04:00 SN#1 magnetronFlow: count=60, max=5.2, min=5.5, avg=5.0",
	"2024-01-15T10:30:00Z controller restarted",
	"",
	"random noise",
}

func newDetector(t *testing.T, opts ...Option) *Detector {
	t.Helper()
	cat, err := catalog.Default()
	if err != nil {
		t.Fatalf("loading catalog: %v", err)
	}
	d, err := New(cat, opts...)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return d
}

func TestDetector_DetectFromLines_Counts(t *testing.T) {
	result := newDetector(t).DetectFromLines(sampleLines)

	if result.SampledLines != 7 {
		t.Errorf("SampledLines = %d, want 7", result.SampledLines)
	}
	if result.TimestampLines != 5 {
		t.Errorf("TimestampLines = %d, want 5", result.TimestampLines)
	}
	if result.PayloadLines != 4 {
		t.Errorf("PayloadLines = %d, want 4", result.PayloadLines)
	}
	if result.RecordLines != 3 {
		t.Errorf("RecordLines = %d, want 3", result.RecordLines)
	}
	if !result.HasRecords() {
		t.Error("expected HasRecords() to be true")
	}

	wantSkipped := map[parser.SkipReason]int{
		parser.SkipNoTimestamp:   2,
		parser.SkipNoPayload:     1,
		parser.SkipInvalidValues: 1,
	}
	for reason, want := range wantSkipped {
		if got := result.Skipped[reason]; got != want {
			t.Errorf("Skipped[%s] = %d, want %d", reason, got, want)
		}
	}
}

func TestDetector_DetectFromLines_Formats(t *testing.T) {
	result := newDetector(t).DetectFromLines(sampleLines)

	if len(result.Formats) != 2 {
		t.Fatalf("expected 2 formats, got %d", len(result.Formats))
	}
	best := result.BestFormat()
	if best.Name != "iso" || best.MatchCount != 4 {
		t.Errorf("best format = %s (%d), want iso (4)", best.Name, best.MatchCount)
	}
	if best.Timestamp != "2024-08-01 10:00:00" {
		t.Errorf("sample timestamp = %q", best.Timestamp)
	}
	us := result.Formats[1]
	if us.Name != "us" || us.Timestamp != "2024-08-01 10:02:00" {
		t.Errorf("second format = %s %q, want us 2024-08-01 10:02:00", us.Name, us.Timestamp)
	}
	if result.AmbiguityNote != "" {
		t.Errorf("unexpected ambiguity note: %s", result.AmbiguityNote)
	}
}

func TestDetector_DetectFromLines_DevicesAndParameters(t *testing.T) {
	result := newDetector(t).DetectFromLines(sampleLines)

	if len(result.Devices) != 2 {
		t.Fatalf("expected 2 devices, got %+v", result.Devices)
	}
	if result.Devices[0] != (DeviceCount{DeviceID: "SN#1", Lines: 4}) {
		t.Errorf("Devices[0] = %+v", result.Devices[0])
	}
	if result.Devices[1] != (DeviceCount{DeviceID: "SN#2", Lines: 1}) {
		t.Errorf("Devices[1] = %+v", result.Devices[1])
	}

	if len(result.Parameters) != 2 {
		t.Fatalf("expected 2 parameters, got %+v", result.Parameters)
	}
	mag := result.Parameters[0]
	if mag.Parameter != "magnetronFlow" || mag.Lines != 2 {
		t.Errorf("Parameters[0] = %+v", mag)
	}
	if strings.Join(mag.RawNames, "|") != "magnetron flow|magnetronFlow" {
		t.Errorf("RawNames = %v", mag.RawNames)
	}
	if result.Parameters[1].Parameter != "pumpPressure" {
		t.Errorf("Parameters[1] = %+v", result.Parameters[1])
	}
}

func TestDetector_DetectFromLines_Foreign(t *testing.T) {
	lines := []string{
		"2024-01-15T10:30:00Z magnetronFlow: count=60, max=5.2, min=4.8, avg=5.0",
		"2024-01-15T10:31:00Z magnetronFlow: count=60, max=5.2, min=4.8, avg=5.0",
		"Jan  5 09:30:00 host linac: magnetronFlow: count=60, max=5.2, min=4.8, avg=5.0",
		"1705315800 magnetronFlow: count=60",
	}

	result := newDetector(t).DetectFromLines(lines)

	if result.TimestampLines != 0 || result.HasRecords() {
		t.Fatalf("expected nothing usable, got %d timestamp lines", result.TimestampLines)
	}
	if len(result.Foreign) != 3 {
		t.Fatalf("expected 3 foreign formats, got %d", len(result.Foreign))
	}
	if result.Foreign[0].Format.Name != "ISO 8601 (T separator)" || result.Foreign[0].MatchCount != 2 {
		t.Errorf("Foreign[0] = %s (%d)", result.Foreign[0].Format.Name, result.Foreign[0].MatchCount)
	}
	if result.BestFormat() != nil {
		t.Error("expected no recognized format")
	}
	if result.RecordRate() != 0 {
		t.Errorf("RecordRate() = %f, want 0", result.RecordRate())
	}
}

func TestDetector_DetectFromLines_USAmbiguity(t *testing.T) {
	lines := []string{
		"03/04/2024 10:00:00 SN#7 magnetronFlow: count=60, max=5.2, min=4.8, avg=5.0",
		"03/04/2024 10:01:00 SN#7 magnetronFlow: count=60, max=5.2, min=4.8, avg=5.0",
	}

	result := newDetector(t).DetectFromLines(lines)

	if best := result.BestFormat(); best == nil || best.Name != "us" {
		t.Fatalf("expected us format, got %+v", best)
	}
	if result.AmbiguityNote == "" {
		t.Error("expected an ambiguity note for month/day dates")
	}
	if result.RecordRate() != 1 {
		t.Errorf("RecordRate() = %f, want 1", result.RecordRate())
	}
}

func TestDetector_DetectFromLines_Empty(t *testing.T) {
	result := newDetector(t).DetectFromLines(nil)

	if result.SampledLines != 0 || result.HasRecords() || result.BestFormat() != nil {
		t.Errorf("unexpected result for empty input: %+v", result)
	}
}

func TestDetector_DetectFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "TDS_1.log")

	var b strings.Builder
	for i := 0; i < 20; i++ {
		b.WriteString("2024-08-01 10:00:00 SN#1 magnetronFlow: count=60, max=5.2, min=4.8, avg=5.0\n")
		b.WriteString("\n")
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o600); err != nil {
		t.Fatal(err)
	}

	result, err := newDetector(t, WithSampleSize(5)).DetectFromFile(context.Background(), path)
	if err != nil {
		t.Fatalf("DetectFromFile() error: %v", err)
	}
	if result.SampledLines != 5 {
		t.Errorf("SampledLines = %d, want 5", result.SampledLines)
	}
	if result.RecordLines != 5 {
		t.Errorf("RecordLines = %d, want 5", result.RecordLines)
	}
}

func TestDetector_DetectFromFile_NotFound(t *testing.T) {
	_, err := newDetector(t).DetectFromFile(context.Background(), "/nonexistent/file.log")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestDetector_DetectFromFile_Cancelled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.log")
	if err := os.WriteFile(path, []byte("2024-08-01 10:00:00 x\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := newDetector(t).DetectFromFile(ctx, path); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestWithSampleSize_IgnoresNonPositive(t *testing.T) {
	d := newDetector(t, WithSampleSize(0), WithSampleSize(-3))
	if d.sampleSize != DefaultSampleSize {
		t.Errorf("sampleSize = %d, want %d", d.sampleSize, DefaultSampleSize)
	}
}

func TestForeignFormats_Examples(t *testing.T) {
	for _, f := range ForeignFormats() {
		if !f.Pattern.MatchString(f.Example) {
			t.Errorf("%s: pattern does not match its example %q", f.Name, f.Example)
		}
	}
}
