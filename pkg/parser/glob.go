package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LogExtensions are the file suffixes picked up when a directory is given.
var LogExtensions = []string{".log", ".txt"}

// ExpandGlobs expands file paths, glob patterns and directories into a
// sorted, de-duplicated file list. A directory contributes its top-level
// files with a LogExtensions suffix. Patterns that match nothing are kept
// as-is so the open error names the path the user typed.
func ExpandGlobs(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var result []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			result = append(result, p)
		}
	}

	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid glob pattern %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			add(pattern)
			continue
		}

		for _, match := range matches {
			info, err := os.Stat(match)
			if err != nil || !info.IsDir() {
				add(match)
				continue
			}
			files, err := logFilesIn(match)
			if err != nil {
				return nil, err
			}
			for _, f := range files {
				add(f)
			}
		}
	}

	sort.Strings(result)
	return result, nil
}

func logFilesIn(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading directory %s: %w", dir, err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		for _, want := range LogExtensions {
			if ext == want {
				out = append(out, filepath.Join(dir, e.Name()))
				break
			}
		}
	}
	return out, nil
}
