// Package filemove detects files that were moved or renamed between two analyses.
//
// Removed files (known before, absent now) are scored against added files (absent
// before, present now) on their line fingerprints. High-confidence, unambiguous
// pairs become move records; every other added file is marked as genuinely new.
package filemove

import (
	"context"
)

// ReportFile is a file of the report being analyzed.
type ReportFile struct {
	UUID      string `json:"uuid"`
	Key       string `json:"key"`
	Path      string `json:"path"`
	LineCount int    `json:"lineCount"`
	// PreviousPath is the path the file had on the target branch when the producer
	// of the report knows it was renamed. Only used in pull request scope.
	PreviousPath string `json:"previousPath,omitempty"`
}

// DBFile is a file known from a previous snapshot.
type DBFile struct {
	UUID      string `json:"uuid"`
	Key       string `json:"key"`
	Path      string `json:"path"`
	LineCount int    `json:"lineCount"`
}

// OriginalFile identifies the file a moved file comes from.
type OriginalFile struct {
	UUID string `json:"uuid"`
	Key  string `json:"key"`
	Path string `json:"path,omitempty"`
}

// ReportFileProvider yields the files of the report being analyzed.
type ReportFileProvider interface {
	// Files returns every file of the report with its UUID, path and line count.
	Files(ctx context.Context) ([]ReportFile, error)
	// LineHashes returns the ordered line fingerprints of one report file.
	LineHashes(ctx context.Context, file ReportFile) ([]string, error)
}

// SnapshotProvider yields the files of a previous analysis.
type SnapshotProvider interface {
	// Files returns the files recorded for the given analysis.
	Files(ctx context.Context, analysisUUID string) ([]DBFile, error)
	// LineHashes returns the line fingerprints of the requested files, keyed by UUID.
	LineHashes(ctx context.Context, analysisUUID string, fileUUIDs []string) (map[string][]string, error)
}

// Analysis describes the analysis move detection runs in.
type Analysis struct {
	UUID string
	// FirstAnalysis is true when the project has never been analyzed before.
	FirstAnalysis bool
	// PullRequest selects the pull request step instead of the full-history one.
	PullRequest bool
	// PreviousAnalysisUUID is the analysis of the same branch the report is compared with.
	PreviousAnalysisUUID string
	// TargetAnalysisUUID is the latest analysis of the branch a pull request targets.
	// Empty when that branch has never been analyzed.
	TargetAnalysisUUID string
	Stats              *Statistics
}

// withPath drops snapshot files without a path, they cannot be moved from.
func withPath(files []DBFile) map[string]DBFile {
	byUUID := make(map[string]DBFile, len(files))
	for _, f := range files {
		if f.Path == "" {
			continue
		}
		byUUID[f.UUID] = f
	}
	return byUUID
}
