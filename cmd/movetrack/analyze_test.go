package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"movetrack/internal/config"
	"movetrack/internal/errors"
	"movetrack/internal/filemove"
	"movetrack/internal/slogutil"
)

func newTestEnv(t *testing.T) *env {
	t.Helper()
	return &env{root: t.TempDir(), cfg: config.DefaultConfig(), logger: slogutil.NewDiscardLogger()}
}

// source returns n distinct lines forming a small Go file.
func source(name string, n int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "package %s\n\n", name)
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "func %s%d() int { return %d }\n", name, i, i*7+len(name))
	}
	return b.String()
}

func writeTree(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	if err := os.RemoveAll(dir); err != nil {
		t.Fatal(err)
	}
	for path, content := range files {
		full := filepath.Join(dir, filepath.FromSlash(path))
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func statValue(t *testing.T, stats []filemove.Stat, key string) int {
	t.Helper()
	for _, s := range stats {
		if s.Key == key {
			return s.Value
		}
	}
	t.Fatalf("stat %q not recorded, stats = %v", key, stats)
	return 0
}

func TestAnalyze_DetectsRenameOnSecondRun(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	src := filepath.Join(e.root, "src")
	params := analyzeParams{Project: "api", Branch: "main", Dir: "src"}

	writeTree(t, src, map[string]string{
		"alpha.go": source("alpha", 30),
		"beta.go":  source("beta", 20),
	})
	first, err := analyze(ctx, e, params)
	if err != nil {
		t.Fatalf("first analyze: %v", err)
	}
	if !first.Recorded {
		t.Error("first analysis was not recorded")
	}
	if len(first.Stats) != 0 || len(first.Moves) != 0 || len(first.Added) != 0 {
		t.Errorf("first analysis should detect nothing, got stats=%v moves=%v added=%v", first.Stats, first.Moves, first.Added)
	}

	writeTree(t, src, map[string]string{
		"moved/gamma.go": source("alpha", 30),
		"beta.go":        source("beta", 20),
		"delta.go":       source("delta", 10),
	})
	second, err := analyze(ctx, e, params)
	if err != nil {
		t.Fatalf("second analyze: %v", err)
	}

	if len(second.Moves) != 1 {
		t.Fatalf("moves = %+v, want one", second.Moves)
	}
	move := second.Moves[0]
	if move.OriginalPath != "alpha.go" || move.FilePath != "moved/gamma.go" {
		t.Errorf("move = %s -> %s, want alpha.go -> moved/gamma.go", move.OriginalPath, move.FilePath)
	}
	if move.FileKey != "api:moved/gamma.go" {
		t.Errorf("FileKey = %q, want api:moved/gamma.go", move.FileKey)
	}
	if len(second.Added) != 1 || second.Added[0].FilePath != "delta.go" {
		t.Errorf("added = %+v, want delta.go only", second.Added)
	}

	wantStats := map[string]int{
		filemove.StatReportFiles: 3,
		filemove.StatDBFiles:     2,
		filemove.StatAddedFiles:  2,
		filemove.StatMovedFiles:  1,
	}
	for key, want := range wantStats {
		if got := statValue(t, second.Stats, key); got != want {
			t.Errorf("stat %s = %d, want %d", key, got, want)
		}
	}

	recorded, err := listMoves(ctx, e, second.AnalysisUUID)
	if err != nil {
		t.Fatalf("listMoves: %v", err)
	}
	if len(recorded.Moves) != 1 || recorded.Moves[0].OriginalUUID != move.OriginalUUID {
		t.Errorf("recorded moves = %+v, want %+v", recorded.Moves, second.Moves)
	}
	if len(recorded.Stats) != len(wantStats) {
		t.Errorf("recorded stats = %v", recorded.Stats)
	}

	history, err := listHistory(ctx, e, "api")
	if err != nil {
		t.Fatalf("listHistory: %v", err)
	}
	if len(history.Analyses) != 2 {
		t.Fatalf("history has %d analyses, want 2", len(history.Analyses))
	}
	if history.Analyses[0].UUID != second.AnalysisUUID || history.Analyses[0].Moves != 1 {
		t.Errorf("newest entry = %+v, want the second analysis with one move", history.Analyses[0])
	}
}

func TestAnalyze_UnchangedPathsKeepTheirUUID(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	src := filepath.Join(e.root, "src")
	params := analyzeParams{Project: "api", Branch: "main", Dir: "src"}

	writeTree(t, src, map[string]string{"alpha.go": source("alpha", 12)})
	if _, err := analyze(ctx, e, params); err != nil {
		t.Fatal(err)
	}

	// modified in place: still the same file, not added
	writeTree(t, src, map[string]string{"alpha.go": source("alpha", 15)})
	resp, err := analyze(ctx, e, params)
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Added) != 0 || len(resp.Moves) != 0 {
		t.Errorf("added=%v moves=%v, want none", resp.Added, resp.Moves)
	}
	if got := statValue(t, resp.Stats, filemove.StatAddedFiles); got != 0 {
		t.Errorf("addedFiles = %d, want 0", got)
	}
}

func TestAnalyze_PullRequestUsesRenameHints(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	mainDir := filepath.Join(e.root, "main")
	feature := filepath.Join(e.root, "feature")

	writeTree(t, mainDir, map[string]string{
		"alpha.go": source("alpha", 10),
		"beta.go":  source("beta", 10),
	})
	if _, err := analyze(ctx, e, analyzeParams{Project: "api", Branch: "main", Dir: "main"}); err != nil {
		t.Fatal(err)
	}

	writeTree(t, feature, map[string]string{
		"renamed.go":   source("alpha", 10),
		"beta.go":      source("beta", 10),
		"fresh.go":     source("fresh", 4),
		"renames.toml": "[[rename]]\nfrom = \"alpha.go\"\nto = \"renamed.go\"\n",
	})
	resp, err := analyze(ctx, e, analyzeParams{
		Project:      "api",
		Branch:       "feature/x",
		PullRequest:  true,
		TargetBranch: "main",
		Dir:          "feature",
	})
	if err != nil {
		t.Fatal(err)
	}

	if !resp.PullRequest {
		t.Error("expected pull request scope")
	}
	if len(resp.Moves) != 1 || resp.Moves[0].OriginalPath != "alpha.go" || resp.Moves[0].FilePath != "renamed.go" {
		t.Errorf("moves = %+v, want alpha.go -> renamed.go", resp.Moves)
	}
	if len(resp.Added) != 1 || resp.Added[0].FilePath != "fresh.go" {
		t.Errorf("added = %+v, want fresh.go", resp.Added)
	}
	if got := statValue(t, resp.Stats, filemove.StatDBFiles); got != 2 {
		t.Errorf("dbFiles = %d, want 2", got)
	}
}

func TestAnalyze_HeapLimitExceeded(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	src := filepath.Join(e.root, "src")
	params := analyzeParams{Project: "api", Branch: "main", Dir: "src"}

	writeTree(t, src, map[string]string{"alpha.go": source("alpha", 10)})
	if _, err := analyze(ctx, e, params); err != nil {
		t.Fatal(err)
	}

	e.cfg.Memory.MaxHeapBytes = 1
	writeTree(t, src, map[string]string{"omega.go": source("alpha", 10)})
	_, err := analyze(ctx, e, params)
	if !errors.IsHeapLimitExceeded(err) {
		t.Fatalf("err = %v, want HEAP_LIMIT_EXCEEDED", err)
	}

	history, err := listHistory(ctx, e, "api")
	if err != nil {
		t.Fatal(err)
	}
	if len(history.Analyses) != 1 {
		t.Errorf("failed analysis must not be recorded, history = %+v", history.Analyses)
	}
}

func TestAnalyze_DryRunRecordsNothing(t *testing.T) {
	e := newTestEnv(t)
	writeTree(t, filepath.Join(e.root, "src"), map[string]string{"alpha.go": source("alpha", 3)})

	resp, err := analyze(context.Background(), e, analyzeParams{Project: "api", Branch: "main", Dir: "src", DryRun: true})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Recorded {
		t.Error("dry run was recorded")
	}

	history, err := listHistory(context.Background(), e, "api")
	if err != nil {
		t.Fatal(err)
	}
	if len(history.Analyses) != 0 {
		t.Errorf("history = %+v, want empty", history.Analyses)
	}
}

func TestAnalyze_RequiresOneSource(t *testing.T) {
	e := newTestEnv(t)
	for _, p := range []analyzeParams{
		{Project: "api", Branch: "main"},
		{Project: "api", Branch: "main", Dir: "src", GitRepo: "."},
		{Project: "api", Branch: "feature/x", Dir: "src", PullRequest: true},
		{Project: "api", Branch: "feature/x", Dir: "src", TargetBranch: "main"},
	} {
		_, err := analyze(context.Background(), e, p)
		if !errors.HasCode(err, errors.ConfigInvalid) {
			t.Errorf("analyze(%+v) err = %v, want CONFIG_INVALID", p, err)
		}
	}
}

func TestListMoves_UnknownAnalysis(t *testing.T) {
	e := newTestEnv(t)
	_, err := listMoves(context.Background(), e, "does-not-exist")
	if !errors.HasCode(err, errors.SnapshotMissing) {
		t.Fatalf("err = %v, want SNAPSHOT_MISSING", err)
	}
}

func TestStepOptions_FromConfig(t *testing.T) {
	e := newTestEnv(t)
	e.cfg.MoveDetection.MinRequiredScore = 90
	e.cfg.MoveDetection.Workers = 4
	e.cfg.Memory.MaxHeapBytes = 1 << 30
	e.cfg.Dump.Enabled = true

	opts := stepOptions(e, "analysis-1")
	if opts.MinRequiredScore != 90 || opts.Workers != 4 {
		t.Errorf("opts = %+v", opts)
	}
	if mem, ok := opts.Memory.(filemove.RuntimeMemory); !ok || mem.MaxHeapBytes != 1<<30 {
		t.Errorf("Memory = %#v, want RuntimeMemory with the configured limit", opts.Memory)
	}
	dumper, ok := opts.Dumper.(*filemove.CSVDumper)
	if !ok {
		t.Fatalf("Dumper = %T, want *filemove.CSVDumper", opts.Dumper)
	}
	if !strings.HasPrefix(dumper.Path(), e.root) || !strings.Contains(dumper.Path(), "analysis-1") {
		t.Errorf("dump path = %q", dumper.Path())
	}
}
