// Package testutil provides golden file comparison for command output.
package testutil

import (
	"bytes"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

// updateGolden controls whether golden files should be updated.
// Use: go test ./cmd/... -run Golden -update
var updateGolden = flag.Bool("update", false, "update golden files")

// ShouldUpdate returns true if golden files should be updated.
func ShouldUpdate() bool {
	return *updateGolden
}

// Normalizer rewrites volatile parts of an output before comparison.
type Normalizer func([]byte) []byte

var (
	uuidPattern     = regexp.MustCompile(`[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)
	durationPattern = regexp.MustCompile(`("durationMs": |Duration: )\d+`)
)

// NormalizeUUIDs replaces every distinct UUID with <uuid-N>, numbered in order of
// first appearance, so equal UUIDs stay equal.
func NormalizeUUIDs(data []byte) []byte {
	seen := make(map[string]string)
	return uuidPattern.ReplaceAllFunc(data, func(m []byte) []byte {
		id, ok := seen[string(m)]
		if !ok {
			id = fmt.Sprintf("<uuid-%d>", len(seen)+1)
			seen[string(m)] = id
		}
		return []byte(id)
	})
}

// NormalizeDurations zeroes durations in JSON and human output.
func NormalizeDurations(data []byte) []byte {
	return durationPattern.ReplaceAll(data, []byte("${1}0"))
}

// CompareGolden compares got against the golden file at path, failing with a diff
// on mismatch. Trailing newlines are ignored. If -update is set, the golden file
// is written instead.
func CompareGolden(t *testing.T, path string, got []byte, normalizers ...Normalizer) {
	t.Helper()

	for _, n := range normalizers {
		got = n(got)
	}
	got = append(bytes.TrimRight(got, "\n"), '\n')

	if *updateGolden {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("Failed to create golden directory: %v", err)
		}
		if err := os.WriteFile(path, got, 0o644); err != nil {
			t.Fatalf("Failed to write golden file: %v", err)
		}
		t.Logf("Updated golden: %s", path)
		return
	}

	expected, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			t.Fatalf("Golden file missing: %s\n\nGot:\n%s\n\nRun with -update to create:\n  go test ./... -run %s -update",
				path, got, t.Name())
		}
		t.Fatalf("Failed to read golden file: %v", err)
	}
	expected = append(bytes.TrimRight(expected, "\n"), '\n')

	if !bytes.Equal(got, expected) {
		t.Fatalf("Golden mismatch for %s:\n%s\n\nRun with -update to refresh:\n  go test ./... -run %s -update",
			path, unifiedDiff(string(expected), string(got), path), t.Name())
	}
}

// unifiedDiff produces a simple line-by-line diff between two strings.
func unifiedDiff(expected, got, path string) string {
	var buf bytes.Buffer

	expectedLines := strings.Split(expected, "\n")
	gotLines := strings.Split(got, "\n")

	fmt.Fprintf(&buf, "--- %s (expected)\n", path)
	fmt.Fprintf(&buf, "+++ %s (got)\n", path)

	n := len(expectedLines)
	if len(gotLines) > n {
		n = len(gotLines)
	}
	for i := 0; i < n; i++ {
		var expLine, gotLine string
		if i < len(expectedLines) {
			expLine = expectedLines[i]
		}
		if i < len(gotLines) {
			gotLine = gotLines[i]
		}
		if expLine == gotLine {
			continue
		}
		fmt.Fprintf(&buf, "@@ line %d @@\n", i+1)
		if i < len(expectedLines) {
			buf.WriteString("-" + expLine + "\n")
		}
		if i < len(gotLines) {
			buf.WriteString("+" + gotLine + "\n")
		}
	}
	return buf.String()
}
