package filemove

import (
	"context"
	"fmt"
	"log/slog"
)

// PullRequestFileMoveDetectionStep detects moves in pull request scope from the
// previous path hints carried by report files. No content is compared.
type PullRequestFileMoveDetectionStep struct {
	analysis  *Analysis
	report    ReportFileProvider
	snapshot  SnapshotProvider
	registrar *Registrar
	logger    *slog.Logger
}

// NewPullRequestFileMoveDetectionStep wires the pull request step.
func NewPullRequestFileMoveDetectionStep(
	analysis *Analysis,
	report ReportFileProvider,
	snapshot SnapshotProvider,
	registrar *Registrar,
	logger *slog.Logger,
) *PullRequestFileMoveDetectionStep {
	if analysis.Stats == nil {
		analysis.Stats = NewStatistics()
	}
	return &PullRequestFileMoveDetectionStep{
		analysis:  analysis,
		report:    report,
		snapshot:  snapshot,
		registrar: registrar,
		logger:    logger,
	}
}

// Description names the step.
func (s *PullRequestFileMoveDetectionStep) Description() string {
	return "Detect file moves in Pull Request scope"
}

// Execute looks each hinted previous path up in the target branch. A hit is a move;
// a miss is handled like a file without hint, which is added unless its own path
// exists in the target branch.
func (s *PullRequestFileMoveDetectionStep) Execute(ctx context.Context) error {
	if !s.analysis.PullRequest {
		s.logger.Debug("Not in Pull Request scope. Do nothing.")
		return nil
	}
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

	var targetFiles []DBFile
	if s.analysis.TargetAnalysisUUID != "" {
		targetFiles, err = s.snapshot.Files(ctx, s.analysis.TargetAnalysisUUID)
		if err != nil {
			return fmt.Errorf("reading target branch files: %w", err)
		}
	}
	byPath := make(map[string]DBFile, len(targetFiles))
	for _, f := range withPath(targetFiles) {
		byPath[f.Path] = f
	}
	if err := stats.Add(StatDBFiles, len(byPath)); err != nil {
		return err
	}

	if len(byPath) == 0 {
		s.logger.Debug("Target branch has no file. No file move detection.")
		if err := stats.Add(StatAddedFiles, len(reportFiles)); err != nil {
			return err
		}
		return s.registrar.RegisterAdded(reportFiles, nil)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	var moved int
	var added []ReportFile
	for _, f := range reportFiles {
		if f.PreviousPath != "" {
			if original, ok := byPath[f.PreviousPath]; ok {
				err := s.registrar.RegisterMove(f, OriginalFile{UUID: original.UUID, Key: original.Key, Path: original.Path})
				if err != nil {
					return err
				}
				moved++
				continue
			}
			s.logger.Debug("Previous path not found in target branch", "path", f.Path, "previousPath", f.PreviousPath)
		}
		if _, ok := byPath[f.Path]; !ok {
			added = append(added, f)
		}
	}

	if err := stats.Add(StatMovedFiles, moved); err != nil {
		return err
	}
	if err := stats.Add(StatAddedFiles, len(added)); err != nil {
		return err
	}
	return s.registrar.RegisterAdded(added, nil)
}
