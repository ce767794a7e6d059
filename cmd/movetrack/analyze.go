package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"movetrack/internal/errors"
	"movetrack/internal/filemove"
	"movetrack/internal/paths"
	"movetrack/internal/report"
	"movetrack/internal/snapshot"
	"movetrack/internal/storage"
)

var (
	analyzeFormat      string
	analyzeProject     string
	analyzeBranch      string
	analyzePullRequest bool
	analyzeTarget      string
	analyzeDir         string
	analyzeGit         string
	analyzeRef         string
	analyzeTargetRef   string
	analyzeNoRecord    bool
	analyzeWorkers     int
	analyzeDumpEnabled bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze a source tree and detect moved files",
	Long: `Analyze a source tree and detect the files moved or renamed since the previous
analysis of the same branch.

Files are read either from a directory (--dir) or from a commit of a git
repository (--git with --ref). With --pull-request the analysis runs in pull
request scope: a file is considered moved only when its previous path is known
and exists on the target branch.

Examples:
  movetrack analyze --project api --branch main --dir .
  movetrack analyze --project api --branch main --git . --ref HEAD
  movetrack analyze --project api --branch feature/x --pull-request --target-branch main \\
    --git . --ref HEAD --target-ref main`,
	Run: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeFormat, "format", "human", "Output format (json, yaml, toml, human)")
	analyzeCmd.Flags().StringVar(&analyzeProject, "project", "", "Project key (defaults to the name of the analyzed directory)")
	analyzeCmd.Flags().StringVar(&analyzeBranch, "branch", "main", "Branch being analyzed")
	analyzeCmd.Flags().BoolVar(&analyzePullRequest, "pull-request", false, "Analyze in pull request scope")
	analyzeCmd.Flags().StringVar(&analyzeTarget, "target-branch", "", "Branch the pull request targets")
	analyzeCmd.Flags().StringVar(&analyzeDir, "dir", "", "Directory to analyze")
	analyzeCmd.Flags().StringVar(&analyzeGit, "git", "", "Git repository to analyze")
	analyzeCmd.Flags().StringVar(&analyzeRef, "ref", "HEAD", "Revision to analyze with --git")
	analyzeCmd.Flags().StringVar(&analyzeTargetRef, "target-ref", "", "Revision renames are detected against with --git")
	analyzeCmd.Flags().BoolVar(&analyzeNoRecord, "dry-run", false, "Do not record the analysis")
	analyzeCmd.Flags().IntVar(&analyzeWorkers, "workers", 0, "Score matrix workers (overrides configuration)")
	analyzeCmd.Flags().BoolVar(&analyzeDumpEnabled, "dump", false, "Dump the score matrix (overrides configuration)")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) {
	e, err := loadEnv(rootDir)
	if err != nil {
		fail(err)
	}
	defer e.Close()
	if analyzeWorkers > 0 {
		e.cfg.MoveDetection.Workers = analyzeWorkers
	}
	if analyzeDumpEnabled {
		e.cfg.Dump.Enabled = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	resp, err := analyze(ctx, e, analyzeParams{
		Project:      analyzeProject,
		Branch:       analyzeBranch,
		PullRequest:  analyzePullRequest,
		TargetBranch: analyzeTarget,
		Dir:          analyzeDir,
		GitRepo:      analyzeGit,
		Ref:          analyzeRef,
		TargetRef:    analyzeTargetRef,
		DryRun:       analyzeNoRecord,
	})
	if err != nil {
		fail(err)
	}

	output, err := FormatResponse(resp, OutputFormat(analyzeFormat))
	if err != nil {
		fail(err)
	}
	fmt.Println(output)
}

// analyzeParams selects what is analyzed and in which scope.
type analyzeParams struct {
	Project      string
	Branch       string
	PullRequest  bool
	TargetBranch string
	Dir          string
	GitRepo      string
	Ref          string
	TargetRef    string
	DryRun       bool
}

// AnalyzeResponse is the result of an analysis.
type AnalyzeResponse struct {
	AnalysisUUID string                 `json:"analysisUuid" yaml:"analysisUuid" toml:"analysisUuid"`
	Project      string                 `json:"project" yaml:"project" toml:"project"`
	Branch       string                 `json:"branch" yaml:"branch" toml:"branch"`
	PullRequest  bool                   `json:"pullRequest" yaml:"pullRequest" toml:"pullRequest"`
	TargetBranch string                 `json:"targetBranch,omitempty" yaml:"targetBranch,omitempty" toml:"targetBranch,omitempty"`
	Recorded     bool                   `json:"recorded" yaml:"recorded" toml:"recorded"`
	Stats        []filemove.Stat        `json:"stats" yaml:"stats" toml:"stats"`
	Moves        []storage.MoveRow      `json:"moves" yaml:"moves" toml:"moves"`
	Added        []storage.AddedFileRow `json:"added" yaml:"added" toml:"added"`
	DurationMs   int64                  `json:"durationMs" yaml:"durationMs" toml:"durationMs"`
}

func analyze(ctx context.Context, e *env, p analyzeParams) (*AnalyzeResponse, error) {
	start := time.Now()

	if (p.Dir == "") == (p.GitRepo == "") {
		return nil, errors.NewCodedError(errors.ConfigInvalid, "exactly one of --dir and --git is required", nil, nil, nil)
	}
	if p.PullRequest != (p.TargetBranch != "") {
		return nil, errors.NewCodedError(errors.ConfigInvalid, "--pull-request and --target-branch go together", nil, nil, nil)
	}
	if p.Project == "" {
		p.Project = filepath.Base(paths.Resolve(e.root, p.Dir+p.GitRepo))
	}

	db, err := e.openDB()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	snapshots, err := snapshot.NewProvider(db, e.cfg.Snapshot.LineHashCacheSize, e.logger)
	if err != nil {
		return nil, err
	}

	analysis, err := newAnalysis(ctx, snapshots, p)
	if err != nil {
		return nil, err
	}

	// files at an unchanged path keep the UUID they had in the compared snapshot
	compared := analysis.PreviousAnalysisUUID
	if analysis.PullRequest {
		compared = analysis.TargetAnalysisUUID
	}
	known := map[string]string{}
	if compared != "" {
		if known, err = snapshots.KnownFiles(ctx, compared); err != nil {
			return nil, err
		}
	}

	reportFiles, err := newReportProvider(e, p, known)
	if err != nil {
		return nil, err
	}

	moved := filemove.NewMovedFilesRepository()
	added := filemove.NewAddedFileRepository()
	registrar := filemove.NewRegistrar(moved, added)

	full := filemove.NewFileMoveDetectionStep(analysis, reportFiles, snapshots, registrar, stepOptions(e, analysis.UUID), e.logger)
	pr := filemove.NewPullRequestFileMoveDetectionStep(analysis, reportFiles, snapshots, registrar, e.logger)
	for _, step := range []interface {
		Description() string
		Execute(context.Context) error
	}{full, pr} {
		stepStart := time.Now()
		if err := step.Execute(ctx); err != nil {
			return nil, fmt.Errorf("%s: %w", step.Description(), err)
		}
		e.logger.Info(step.Description(), "duration", time.Since(stepStart))
	}

	files, err := reportFiles.Files(ctx)
	if err != nil {
		return nil, err
	}

	resp := &AnalyzeResponse{
		AnalysisUUID: analysis.UUID,
		Project:      p.Project,
		Branch:       p.Branch,
		PullRequest:  analysis.PullRequest,
		TargetBranch: p.TargetBranch,
		Stats:        analysis.Stats.All(),
	}
	for _, m := range moved.All() {
		resp.Moves = append(resp.Moves, storage.MoveRow{
			FileUUID:     m.FileUUID,
			FileKey:      m.FileKey,
			FilePath:     m.FilePath,
			OriginalUUID: m.Original.UUID,
			OriginalKey:  m.Original.Key,
			OriginalPath: m.Original.Path,
		})
	}
	for _, a := range added.All() {
		resp.Added = append(resp.Added, storage.AddedFileRow{FileUUID: a.UUID, FileKey: a.Key, FilePath: a.Path})
	}

	if !p.DryRun {
		recorder := snapshot.NewRecorder(db, reportFiles, e.logger)
		err := recorder.Record(ctx, snapshot.Recording{
			Analysis: storage.Analysis{
				UUID:         analysis.UUID,
				Project:      p.Project,
				Branch:       p.Branch,
				PullRequest:  analysis.PullRequest,
				TargetBranch: p.TargetBranch,
				CreatedAt:    time.Now().UTC(),
			},
			Files: files,
			Moves: moved.All(),
			Added: added.All(),
			Stats: analysis.Stats.All(),
		})
		if err != nil {
			return nil, err
		}
		resp.Recorded = true
	}

	resp.DurationMs = time.Since(start).Milliseconds()
	return resp, nil
}

func newAnalysis(ctx context.Context, snapshots *snapshot.Provider, p analyzeParams) (*filemove.Analysis, error) {
	first, err := snapshots.FirstAnalysis(ctx, p.Project)
	if err != nil {
		return nil, err
	}
	analysis := &filemove.Analysis{
		UUID:          uuid.New().String(),
		FirstAnalysis: first,
		PullRequest:   p.PullRequest,
		Stats:         filemove.NewStatistics(),
	}

	previous, err := snapshots.Latest(ctx, p.Project, p.Branch)
	if err != nil {
		return nil, err
	}
	if previous != nil {
		analysis.PreviousAnalysisUUID = previous.UUID
	}

	if analysis.PullRequest {
		target, err := snapshots.Latest(ctx, p.Project, p.TargetBranch)
		if err != nil {
			return nil, err
		}
		if target != nil {
			analysis.TargetAnalysisUUID = target.UUID
		}
	}
	return analysis, nil
}

func newReportProvider(e *env, p analyzeParams, known map[string]string) (*report.Provider, error) {
	opts := report.Options{
		Project:    p.Project,
		Excludes:   e.cfg.Report.Excludes,
		KnownFiles: known,
		Logger:     e.logger,
	}
	if p.Dir != "" {
		return report.NewDirectoryProvider(paths.Resolve(e.root, p.Dir), opts), nil
	}
	return report.NewGitProvider(paths.Resolve(e.root, p.GitRepo), p.Ref, p.TargetRef, opts)
}

func stepOptions(e *env, analysisUUID string) filemove.Options {
	opts := filemove.DefaultOptions()
	md := e.cfg.MoveDetection
	opts.MinRequiredScore = md.MinRequiredScore
	opts.LowerLineCountRatio = md.LowerLineCountRatio
	opts.UpperLineCountRatio = md.UpperLineCountRatio
	opts.Workers = md.Workers
	opts.SafetyMarginRatio = e.cfg.Memory.SafetyMarginRatio
	opts.Memory = filemove.RuntimeMemory{MaxHeapBytes: e.cfg.Memory.MaxHeapBytes}
	if e.cfg.Dump.Enabled {
		opts.Dumper = filemove.NewCSVDumper(paths.Resolve(e.root, e.cfg.Dump.Dir), analysisUUID, e.cfg.Dump.Keep, e.logger)
	}
	return opts
}
