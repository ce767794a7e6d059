package filemove

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"testing"

	"movetrack/internal/similarity"
	"movetrack/internal/slogutil"
)

const previousAnalysis = "analysis-1"

func content(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s-%d", prefix, i)
	}
	return out
}

type fakeReport struct {
	mu      sync.Mutex
	files   []ReportFile
	hashes  map[string][]string
	fetched map[string]int
	err     error
}

func (r *fakeReport) Files(context.Context) ([]ReportFile, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.files, nil
}

func (r *fakeReport) LineHashes(_ context.Context, f ReportFile) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetched[f.UUID]++
	return r.hashes[f.UUID], nil
}

func (r *fakeReport) fetchCount(uuid string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fetched[uuid]
}

type fakeSnapshot struct {
	files     map[string][]DBFile
	hashes    map[string][]string
	requested []string
	err       error
}

func (s *fakeSnapshot) Files(_ context.Context, analysisUUID string) ([]DBFile, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.files[analysisUUID], nil
}

func (s *fakeSnapshot) LineHashes(_ context.Context, _ string, uuids []string) (map[string][]string, error) {
	s.requested = append(s.requested, uuids...)
	out := make(map[string][]string, len(uuids))
	for _, u := range uuids {
		out[u] = s.hashes[u]
	}
	return out, nil
}

type fakeMemory struct {
	limit, inUse int64
}

func (m fakeMemory) HeapLimit() int64 { return m.limit }
func (m fakeMemory) HeapInUse() int64 { return m.inUse }

type fixture struct {
	report   *fakeReport
	snapshot *fakeSnapshot
	moved    *MovedFilesRepository
	added    *AddedFileRepository
	dumper   *CapturingDumper
	analysis *Analysis
	logs     *bytes.Buffer
	logger   *slog.Logger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logs := &bytes.Buffer{}
	return &fixture{
		report:   &fakeReport{hashes: map[string][]string{}, fetched: map[string]int{}},
		snapshot: &fakeSnapshot{files: map[string][]DBFile{}, hashes: map[string][]string{}},
		moved:    NewMovedFilesRepository(),
		added:    NewAddedFileRepository(),
		dumper:   &CapturingDumper{},
		analysis: &Analysis{UUID: "analysis-2", PreviousAnalysisUUID: previousAnalysis, Stats: NewStatistics()},
		logs:     logs,
		logger:   slogutil.NewLogger(logs, slog.LevelDebug),
	}
}

func (f *fixture) addReportFile(uuid, path string, lines []string) ReportFile {
	file := ReportFile{UUID: uuid, Key: "project:" + path, Path: path, LineCount: len(lines)}
	f.report.files = append(f.report.files, file)
	f.report.hashes[uuid] = lines
	return file
}

func (f *fixture) addDBFile(uuid, path string, lines []string) DBFile {
	file := DBFile{UUID: uuid, Key: "project:" + path, Path: path, LineCount: len(lines)}
	f.snapshot.files[previousAnalysis] = append(f.snapshot.files[previousAnalysis], file)
	f.snapshot.hashes[uuid] = lines
	return file
}

// addUnchanged adds a file present in both the snapshot and the report.
func (f *fixture) addUnchanged(uuid, path string, lines []string) {
	f.addDBFile(uuid, path, lines)
	f.addReportFile(uuid, path, lines)
}

func (f *fixture) options() Options {
	opts := DefaultOptions()
	opts.Memory = fakeMemory{limit: 1 << 30}
	opts.Dumper = f.dumper
	return opts
}

func (f *fixture) step(opts Options) *FileMoveDetectionStep {
	return NewFileMoveDetectionStep(f.analysis, f.report, f.snapshot, NewRegistrar(f.moved, f.added), opts, f.logger)
}

func (f *fixture) pullRequestStep() *PullRequestFileMoveDetectionStep {
	return NewPullRequestFileMoveDetectionStep(f.analysis, f.report, f.snapshot, NewRegistrar(f.moved, f.added), f.logger)
}

func assertStats(t *testing.T, stats *Statistics, want map[string]int) {
	t.Helper()
	got := stats.All()
	if len(got) != len(want) {
		t.Fatalf("stats = %+v, want %v", got, want)
	}
	for _, s := range got {
		if w, ok := want[s.Key]; !ok || w != s.Value {
			t.Errorf("stat %s = %d, want %v (present %v)", s.Key, s.Value, w, ok)
		}
	}
}

func assertClassified(t *testing.T, f *fixture, added []ReportFile) {
	t.Helper()
	for _, file := range added {
		_, moved := f.moved.OriginalFile(file.UUID)
		isAdded := f.added.IsAdded(file.UUID)
		if moved == isAdded {
			t.Errorf("file %s: moved=%v added=%v, want exactly one", file.Path, moved, isAdded)
		}
	}
}

func axis(uuids ...string) []Candidate {
	out := make([]Candidate, len(uuids))
	for i, u := range uuids {
		out[i] = Candidate{UUID: u, Key: "k:" + u, File: similarity.NewEagerFile(u, nil)}
	}
	return out
}

func matrixOf(removed, added []string, cells map[[2]int]int) *ScoreMatrix {
	m := newScoreMatrix(axis(removed...), axis(added...))
	for rc, score := range cells {
		m.set(rc[0], rc[1], score)
		m.MaxScore = max(m.MaxScore, score)
	}
	return m
}

func sortedMatches(matches []Match) []Match {
	out := append([]Match(nil), matches...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].RemovedUUID != out[j].RemovedUUID {
			return out[i].RemovedUUID < out[j].RemovedUUID
		}
		return out[i].AddedUUID < out[j].AddedUUID
	})
	return out
}
