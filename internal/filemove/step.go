package filemove

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"movetrack/internal/similarity"
)

// MinRequiredScore is the lowest score a pair needs to be considered a move.
const MinRequiredScore = 85

// Options tunes the full-history step.
type Options struct {
	MinRequiredScore    int
	LowerLineCountRatio float64
	UpperLineCountRatio float64
	Workers             int
	SafetyMarginRatio   float64
	Memory              MemoryReader
	Dumper              ScoreMatrixDumper
}

// DefaultOptions returns the options detection runs with unless configured otherwise.
func DefaultOptions() Options {
	return Options{
		MinRequiredScore:    MinRequiredScore,
		LowerLineCountRatio: 0.84,
		UpperLineCountRatio: 1.18,
		Workers:             1,
		SafetyMarginRatio:   0.05,
		Memory:              RuntimeMemory{},
		Dumper:              NoopDumper{},
	}
}

// FileMoveDetectionStep detects moves between the previous analysis of a branch and
// the current report by comparing file contents.
type FileMoveDetectionStep struct {
	analysis  *Analysis
	report    ReportFileProvider
	snapshot  SnapshotProvider
	registrar *Registrar
	heap      *HeapSizeChecker
	builder   *MatrixBuilder
	dumper    ScoreMatrixDumper
	minScore  int
	logger    *slog.Logger
}

// NewFileMoveDetectionStep wires the full-history step.
func NewFileMoveDetectionStep(
	analysis *Analysis,
	report ReportFileProvider,
	snapshot SnapshotProvider,
	registrar *Registrar,
	opts Options,
	logger *slog.Logger,
) *FileMoveDetectionStep {
	if analysis.Stats == nil {
		analysis.Stats = NewStatistics()
	}
	if opts.Memory == nil {
		opts.Memory = RuntimeMemory{}
	}
	if opts.Dumper == nil {
		opts.Dumper = NoopDumper{}
	}
	return &FileMoveDetectionStep{
		analysis:  analysis,
		report:    report,
		snapshot:  snapshot,
		registrar: registrar,
		heap:      NewHeapSizeChecker(opts.Memory, opts.SafetyMarginRatio, logger),
		builder:   NewMatrixBuilder(opts.LowerLineCountRatio, opts.UpperLineCountRatio, opts.Workers, logger),
		dumper:    opts.Dumper,
		minScore:  opts.MinRequiredScore,
		logger:    logger,
	}
}

// Description names the step.
func (s *FileMoveDetectionStep) Description() string {
	return "Detect file moves"
}

// Execute runs detection. Every added file ends up either with a move record or
// flagged as added.
func (s *FileMoveDetectionStep) Execute(ctx context.Context) error {
	if s.analysis.PullRequest {
		s.logger.Debug("Currently within Pull Request scope. Do nothing.")
		return nil
	}
	if s.analysis.FirstAnalysis {
		s.logger.Debug("First analysis. Do nothing.")
		return nil
	}

	start := time.Now()
	stats := s.analysis.Stats

	reportFiles, err := s.report.Files(ctx)
	if err != nil {
		return fmt.Errorf("reading report files: %w", err)
	}
	if err := stats.Add(StatReportFiles, len(reportFiles)); err != nil {
		return err
	}
	if len(reportFiles) == 0 {
		s.logger.Debug("No files in report. No file move detection.")
		return nil
	}

	snapshotFiles, err := s.snapshot.Files(ctx, s.analysis.PreviousAnalysisUUID)
	if err != nil {
		return fmt.Errorf("reading previous snapshot files: %w", err)
	}
	dbFiles := withPath(snapshotFiles)
	if err := stats.Add(StatDBFiles, len(dbFiles)); err != nil {
		return err
	}

	added := make(map[string]ReportFile)
	var addedFiles []ReportFile
	reportUUIDs := make(map[string]bool, len(reportFiles))
	for _, f := range reportFiles {
		reportUUIDs[f.UUID] = true
		if _, known := dbFiles[f.UUID]; !known {
			added[f.UUID] = f
			addedFiles = append(addedFiles, f)
		}
	}
	if err := stats.Add(StatAddedFiles, len(addedFiles)); err != nil {
		return err
	}

	if len(dbFiles) == 0 {
		s.logger.Debug("Previous snapshot has no file. No file move detection.")
		return s.registrar.RegisterAdded(addedFiles, nil)
	}

	removed := make(map[string]DBFile)
	for uuid, f := range dbFiles {
		if !reportUUIDs[uuid] {
			removed[uuid] = f
		}
	}
	if len(added) == 0 || len(removed) == 0 {
		s.logger.Debug("Either no files added or no files removed. Do nothing.")
		return s.registrar.RegisterAdded(addedFiles, nil)
	}

	s.logger.Debug("loaded",
		"reportFiles", len(reportFiles),
		"dbFiles", len(dbFiles),
		"addedFiles", len(added),
		"removedFiles", len(removed),
		"duration", time.Since(start),
	)

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.heap.Check(len(added), len(removed)); err != nil {
		return err
	}

	removedCandidates, err := s.removedCandidates(ctx, removed, addedFiles)
	if err != nil {
		return err
	}
	matrix, err := s.builder.Build(ctx, removedCandidates, s.addedCandidates(ctx, addedFiles))
	if err != nil {
		return err
	}
	if err := s.dumper.Dump(matrix); err != nil {
		s.logger.Warn("Failed to dump score matrix", "error", err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if matrix.MaxScore < s.minScore {
		if err := stats.Add(StatMovedFiles, 0); err != nil {
			return err
		}
		s.logger.Debug(fmt.Sprintf("max score in matrix is less than min required score (%d). Do nothing.", s.minScore))
		return s.registrar.RegisterAdded(addedFiles, nil)
	}

	electStart := time.Now()
	election := Elect(matrix, s.minScore)
	matches := election.Matches
	if err := stats.Add(StatMovedFiles, len(matches)); err != nil {
		return err
	}
	s.logger.Debug("matches elected",
		"candidates", election.Candidates,
		"elected", len(matches),
		"duration", time.Since(electStart),
	)

	if err := ctx.Err(); err != nil {
		return err
	}

	moved, err := s.registrar.RegisterMoves(matches, removed, added)
	if err != nil {
		return err
	}
	return s.registrar.RegisterAdded(addedFiles, moved)
}

// removedCandidates fetches in one batch the line hashes of the removed files that
// have at least one added file within their line count window.
func (s *FileMoveDetectionStep) removedCandidates(ctx context.Context, removed map[string]DBFile, added []ReportFile) ([]Candidate, error) {
	addedLineCounts := make([]int, len(added))
	for i, f := range added {
		addedLineCounts[i] = f.LineCount
	}
	sort.Ints(addedLineCounts)

	var wanted []string
	for uuid, f := range removed {
		if s.builder.Plausible(f.LineCount, addedLineCounts) {
			wanted = append(wanted, uuid)
		}
	}
	sort.Strings(wanted)

	hashes := map[string][]string{}
	if len(wanted) > 0 {
		var err error
		hashes, err = s.snapshot.LineHashes(ctx, s.analysis.PreviousAnalysisUUID, wanted)
		if err != nil {
			return nil, fmt.Errorf("reading line hashes of removed files: %w", err)
		}
	}

	candidates := make([]Candidate, 0, len(removed))
	for uuid, f := range removed {
		fileHashes := hashes[uuid]
		candidates = append(candidates, Candidate{
			UUID: uuid,
			Key:  f.Key,
			File: similarity.NewLazyFile(f.Path, f.LineCount, func() ([]string, error) {
				return fileHashes, nil
			}),
		})
	}
	return candidates, nil
}

// addedCandidates wraps added files so their line hashes are read only if scored.
func (s *FileMoveDetectionStep) addedCandidates(ctx context.Context, added []ReportFile) []Candidate {
	candidates := make([]Candidate, 0, len(added))
	for _, f := range added {
		f := f
		candidates = append(candidates, Candidate{
			UUID: f.UUID,
			Key:  f.Key,
			File: similarity.NewLazyFile(f.Path, f.LineCount, func() ([]string, error) {
				return s.report.LineHashes(ctx, f)
			}),
		})
	}
	return candidates
}
