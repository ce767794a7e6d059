package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"movetrack/internal/errors"
	"movetrack/internal/storage"
)

var (
	movesFormat   string
	movesAnalysis string
)

var movesCmd = &cobra.Command{
	Use:   "moves",
	Short: "Show the moves recorded for an analysis",
	Run:   runMoves,
}

func init() {
	movesCmd.Flags().StringVar(&movesFormat, "format", "human", "Output format (json, yaml, toml, human)")
	movesCmd.Flags().StringVar(&movesAnalysis, "analysis", "", "Analysis UUID (required)")
	_ = movesCmd.MarkFlagRequired("analysis")
	rootCmd.AddCommand(movesCmd)
}

func runMoves(cmd *cobra.Command, args []string) {
	e, err := loadEnv(rootDir)
	if err != nil {
		fail(err)
	}
	defer e.Close()

	resp, err := listMoves(context.Background(), e, movesAnalysis)
	if err != nil {
		fail(err)
	}

	output, err := FormatResponse(resp, OutputFormat(movesFormat))
	if err != nil {
		fail(err)
	}
	fmt.Println(output)
}

// MovesResponse lists what an analysis recorded.
type MovesResponse struct {
	AnalysisUUID string                 `json:"analysisUuid" yaml:"analysisUuid" toml:"analysisUuid"`
	Moves        []storage.MoveRow      `json:"moves" yaml:"moves" toml:"moves"`
	Added        []storage.AddedFileRow `json:"added" yaml:"added" toml:"added"`
	Stats        []storage.StatRow      `json:"stats" yaml:"stats" toml:"stats"`
}

func listMoves(ctx context.Context, e *env, analysisUUID string) (*MovesResponse, error) {
	db, err := e.openDB()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	analysis, err := storage.NewAnalysisRepository(db.Conn()).Get(ctx, analysisUUID)
	if err != nil {
		return nil, err
	}
	if analysis == nil {
		return nil, errors.NewCodedError(errors.SnapshotMissing,
			fmt.Sprintf("analysis %s not found", analysisUUID), nil,
			errors.GetSuggestedFixes(errors.SnapshotMissing), nil)
	}

	repo := storage.NewMoveRepository(db.Conn())
	resp := &MovesResponse{AnalysisUUID: analysisUUID}
	if resp.Moves, err = repo.ListMoves(ctx, analysisUUID); err != nil {
		return nil, err
	}
	if resp.Added, err = repo.ListAdded(ctx, analysisUUID); err != nil {
		return nil, err
	}
	if resp.Stats, err = storage.NewAnalysisRepository(db.Conn()).Stats(ctx, analysisUUID); err != nil {
		return nil, err
	}
	return resp, nil
}
