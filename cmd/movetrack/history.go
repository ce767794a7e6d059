package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"movetrack/internal/storage"
)

var (
	historyFormat  string
	historyProject string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List the analyses recorded for a project",
	Run:   runHistory,
}

func init() {
	historyCmd.Flags().StringVar(&historyFormat, "format", "human", "Output format (json, yaml, toml, human)")
	historyCmd.Flags().StringVar(&historyProject, "project", "", "Project key (required)")
	_ = historyCmd.MarkFlagRequired("project")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) {
	e, err := loadEnv(rootDir)
	if err != nil {
		fail(err)
	}
	defer e.Close()

	resp, err := listHistory(context.Background(), e, historyProject)
	if err != nil {
		fail(err)
	}

	output, err := FormatResponse(resp, OutputFormat(historyFormat))
	if err != nil {
		fail(err)
	}
	fmt.Println(output)
}

// HistoryResponse lists the analyses of a project, newest first.
type HistoryResponse struct {
	Project  string         `json:"project" yaml:"project" toml:"project"`
	Analyses []HistoryEntry `json:"analyses" yaml:"analyses" toml:"analyses"`
}

// HistoryEntry is one analysis with its move and added file counts.
type HistoryEntry struct {
	UUID         string    `json:"uuid" yaml:"uuid" toml:"uuid"`
	Branch       string    `json:"branch" yaml:"branch" toml:"branch"`
	PullRequest  bool      `json:"pullRequest" yaml:"pullRequest" toml:"pullRequest"`
	TargetBranch string    `json:"targetBranch,omitempty" yaml:"targetBranch,omitempty" toml:"targetBranch,omitempty"`
	CreatedAt    time.Time `json:"createdAt" yaml:"createdAt" toml:"createdAt"`
	Moves        int       `json:"moves" yaml:"moves" toml:"moves"`
	Added        int       `json:"added" yaml:"added" toml:"added"`
}

func listHistory(ctx context.Context, e *env, project string) (*HistoryResponse, error) {
	db, err := e.openDB()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	analyses, err := storage.NewAnalysisRepository(db.Conn()).ListByProject(ctx, project)
	if err != nil {
		return nil, err
	}

	moves := storage.NewMoveRepository(db.Conn())
	resp := &HistoryResponse{Project: project, Analyses: make([]HistoryEntry, 0, len(analyses))}
	for _, a := range analyses {
		moved, err := moves.ListMoves(ctx, a.UUID)
		if err != nil {
			return nil, err
		}
		added, err := moves.ListAdded(ctx, a.UUID)
		if err != nil {
			return nil, err
		}
		resp.Analyses = append(resp.Analyses, HistoryEntry{
			UUID:         a.UUID,
			Branch:       a.Branch,
			PullRequest:  a.PullRequest,
			TargetBranch: a.TargetBranch,
			CreatedAt:    a.CreatedAt,
			Moves:        len(moved),
			Added:        len(added),
		})
	}
	return resp, nil
}
