package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefault(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}
	if c.Len() < 25 {
		t.Errorf("Default().Len() = %d, want at least 25", c.Len())
	}

	again, err := Default()
	if err != nil {
		t.Fatalf("Default() second call error = %v", err)
	}
	if again != c {
		t.Error("Default() should return the same instance on every call")
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Magnetron Flow", "magnetronflow"},
		{"magnetron   flow:", "magnetronflow"},
		{"MLC_ADC_CHAN_TEMP_BANKA_STAT", "mlc_adc_chan_temp_banka_stat"},
		{"\tPump\tPressure ", "pumppressure"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestResolveEveryPattern(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}

	for _, e := range c.Entries() {
		for _, p := range allPatterns(e) {
			variants := []string{
				p,
				strings.ToUpper(p),
				strings.ToLower(p),
				strings.ReplaceAll(p, " ", "  "),
				" " + p + ":",
			}
			for _, v := range variants {
				id, ok := c.Resolve(v)
				if !ok {
					t.Errorf("Resolve(%q) not found, want %s", v, e.ID)
					continue
				}
				if id != e.ID {
					t.Errorf("Resolve(%q) = %s, want %s", v, id, e.ID)
				}
			}
		}
	}
}

func TestResolveSpecificNames(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}

	tests := []struct {
		raw  string
		want string
	}{
		{"magnetron flow", "magnetronFlow"},
		{"CoolingmagnetronFlowLowStatistics", "magnetronFlow"},
		{"cooling pump high statistics", "pumpPressure"},
		{"MLC ADC CHAN TEMP BANKA STAT", "MLC_ADC_CHAN_TEMP_BANKA_STAT_24V"},
		{"MLC ADC CHAN TEMP BANKA STAT TEMP", "MLC_ADC_CHAN_TEMP_BANKA_STAT_TEMP"},
		{"Fan fan Speed 3 Statistics", "FanfanSpeed3Statistics"},
	}
	for _, tt := range tests {
		got, ok := c.Resolve(tt.raw)
		if !ok || got != tt.want {
			t.Errorf("Resolve(%q) = %q, %v; want %q, true", tt.raw, got, ok, tt.want)
		}
	}

	if _, ok := c.Resolve("someUnknownParameter"); ok {
		t.Error("Resolve() of unknown name should report false")
	}
}

func TestDefaultEntriesRangesNested(t *testing.T) {
	entries, err := DefaultEntries()
	if err != nil {
		t.Fatalf("DefaultEntries() error = %v", err)
	}
	for _, e := range entries {
		if !e.CriticalRange.Covers(e.ExpectedRange) {
			t.Errorf("%s: expected %v not within critical %v", e.ID, e.ExpectedRange, e.CriticalRange)
		}
		if e.Unit == "" {
			t.Errorf("%s: unit is empty", e.ID)
		}
	}
	if problems := Check(entries); len(problems) != 0 {
		t.Errorf("Check(default) = %v, want no problems", problems)
	}
}

func TestNewRejectsCollision(t *testing.T) {
	entries := []Entry{
		{
			ID:            "alpha",
			Patterns:      []string{"shared name"},
			Unit:          "V",
			ExpectedRange: Range{1, 2},
			CriticalRange: Range{0, 3},
		},
		{
			ID:            "beta",
			Patterns:      []string{"Shared Name"},
			Unit:          "V",
			ExpectedRange: Range{1, 2},
			CriticalRange: Range{0, 3},
		},
	}

	_, err := New(entries)
	if err == nil {
		t.Fatal("New() expected error for colliding patterns")
	}
	if !errors.Is(err, ErrDuplicatePattern) {
		t.Errorf("New() error = %v, want ErrDuplicatePattern", err)
	}
	if !strings.Contains(err.Error(), "alpha") {
		t.Errorf("error should name the earlier owner: %v", err)
	}
}

func TestNewAllowsRepeatWithinID(t *testing.T) {
	entries := []Entry{{
		ID:            "alpha",
		Patterns:      []string{"alpha", "Alpha", "a l p h a"},
		Unit:          "V",
		ExpectedRange: Range{1, 2},
		CriticalRange: Range{0, 3},
	}}
	c, err := New(entries)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if got := len(c.Patterns()); got != 2 {
		t.Errorf("Patterns() len = %d, want 2", got)
	}
}

func TestCheckProblems(t *testing.T) {
	tests := []struct {
		name    string
		entries []Entry
		wantErr error
		detail  string
	}{
		{
			name:    "missing id",
			entries: []Entry{{Patterns: []string{"x"}}},
			wantErr: ErrInvalidEntry,
			detail:  "id is required",
		},
		{
			name: "duplicate id",
			entries: []Entry{
				{ID: "a", ExpectedRange: Range{1, 2}, CriticalRange: Range{0, 3}},
				{ID: "a", ExpectedRange: Range{1, 2}, CriticalRange: Range{0, 3}},
			},
			wantErr: ErrInvalidEntry,
			detail:  "more than once",
		},
		{
			name:    "expected outside critical",
			entries: []Entry{{ID: "a", ExpectedRange: Range{1, 5}, CriticalRange: Range{0, 3}}},
			wantErr: ErrInvalidEntry,
			detail:  "not within critical_range",
		},
		{
			name:    "empty pattern",
			entries: []Entry{{ID: "a", Patterns: []string{" : "}, ExpectedRange: Range{1, 2}, CriticalRange: Range{0, 3}}},
			wantErr: ErrInvalidEntry,
			detail:  "empty after normalization",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			problems := Check(tt.entries)
			if len(problems) == 0 {
				t.Fatal("Check() returned no problems")
			}
			found := false
			for _, p := range problems {
				if errors.Is(p, tt.wantErr) && strings.Contains(p.Error(), tt.detail) {
					found = true
				}
			}
			if !found {
				t.Errorf("Check() = %v, want a problem containing %q", problems, tt.detail)
			}
		})
	}
}

func TestValidationWindow(t *testing.T) {
	e := Entry{ID: "x", CriticalRange: Range{2, 12}}
	w := e.ValidationWindow()
	if w.Min != -18 || w.Max != 32 {
		t.Errorf("ValidationWindow() = %v, want {-18 32}", w)
	}
}

func TestEffectiveCVThreshold(t *testing.T) {
	if got := (Entry{}).EffectiveCVThreshold(); got != DefaultCVThreshold {
		t.Errorf("EffectiveCVThreshold() = %v, want %v", got, DefaultCVThreshold)
	}
	if got := (Entry{CVThreshold: 0.05}).EffectiveCVThreshold(); got != 0.05 {
		t.Errorf("EffectiveCVThreshold() = %v, want 0.05", got)
	}
}

func TestPatternsLongestFirst(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}
	patterns := c.Patterns()
	for i := 1; i < len(patterns); i++ {
		if len(patterns[i]) > len(patterns[i-1]) {
			t.Fatalf("Patterns() not sorted longest first at %d: %q after %q", i, patterns[i], patterns[i-1])
		}
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	content := `parameters:
  - id: testFlow
    unit: L/min
    description: Test Flow
    expected_range: [1, 2]
    critical_range: [0, 3]
    patterns:
      - test flow
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write catalog: %v", err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	id, ok := c.Resolve("TEST FLOW")
	if !ok || id != "testFlow" {
		t.Errorf("Resolve() = %q, %v; want testFlow, true", id, ok)
	}
	e, _ := c.Get("testFlow")
	if e.ExpectedRange != (Range{1, 2}) {
		t.Errorf("ExpectedRange = %v, want {1 2}", e.ExpectedRange)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("Load() expected error for missing file")
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("parameters:\n  - id: x\n    expected_range: [1]\n"), 0644); err != nil {
		t.Fatalf("failed to write catalog: %v", err)
	}
	if _, err := Load(bad); err == nil {
		t.Error("Load() expected error for single-value range")
	}

	empty := filepath.Join(dir, "empty.yaml")
	if err := os.WriteFile(empty, []byte("parameters: []\n"), 0644); err != nil {
		t.Fatalf("failed to write catalog: %v", err)
	}
	if _, err := Load(empty); err == nil {
		t.Error("Load() expected error for empty catalog")
	}
}

func TestSupportedParameters(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}
	infos := c.SupportedParameters()
	if len(infos) != c.Len() {
		t.Fatalf("SupportedParameters() len = %d, want %d", len(infos), c.Len())
	}
	for _, info := range infos {
		if info.ID == "magnetronFlow" {
			if info.Unit != "L/min" || info.ExpectedRange != (Range{3, 10}) {
				t.Errorf("magnetronFlow info = %+v", info)
			}
			return
		}
	}
	t.Error("magnetronFlow not listed")
}

func TestLookup(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}
	if _, err := c.Lookup("pumpPressure"); err != nil {
		t.Errorf("Lookup(pumpPressure) error = %v", err)
	}
	if _, err := c.Lookup("nope"); !errors.Is(err, ErrUnknownParameter) {
		t.Errorf("Lookup(nope) error = %v, want ErrUnknownParameter", err)
	}
}
