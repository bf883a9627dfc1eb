package parser

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(dir, n), []byte("x\n"), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestExpandGlobs(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "a.log", "b.log", "c.txt", "d.csv")
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0755); err != nil {
		t.Fatal(err)
	}
	writeFiles(t, filepath.Join(dir, "sub"), "nested.log")

	tests := []struct {
		name     string
		patterns []string
		want     int
	}{
		{"single file", []string{filepath.Join(dir, "a.log")}, 1},
		{"glob", []string{filepath.Join(dir, "*.log")}, 2},
		{"directory takes log and txt only", []string{dir}, 3},
		{"duplicates collapse", []string{filepath.Join(dir, "a.log"), filepath.Join(dir, "*.log")}, 2},
		{"no match kept literally", []string{filepath.Join(dir, "*.nothing")}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpandGlobs(tt.patterns)
			if err != nil {
				t.Fatalf("ExpandGlobs() error = %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("ExpandGlobs() = %v, want %d files", got, tt.want)
			}
		})
	}
}

func TestExpandGlobs_Sorted(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "z.log", "m.log", "a.log")

	got, err := ExpandGlobs([]string{filepath.Join(dir, "z.log"), filepath.Join(dir, "*.log")})
	if err != nil {
		t.Fatalf("ExpandGlobs() error = %v", err)
	}
	for i := 1; i < len(got); i++ {
		if got[i] < got[i-1] {
			t.Fatalf("ExpandGlobs() not sorted: %v", got)
		}
	}
}

func TestExpandGlobs_InvalidPattern(t *testing.T) {
	if _, err := ExpandGlobs([]string{"[invalid"}); err == nil {
		t.Error("ExpandGlobs() expected error for invalid pattern")
	}
}
