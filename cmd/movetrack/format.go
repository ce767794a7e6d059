package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"movetrack/internal/storage"
	"movetrack/internal/version"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatJSON  OutputFormat = "json"
	FormatYAML  OutputFormat = "yaml"
	FormatTOML  OutputFormat = "toml"
	FormatHuman OutputFormat = "human"
)

// FormatResponse formats a response according to the specified format
func FormatResponse(resp interface{}, format OutputFormat) (string, error) {
	switch format {
	case FormatJSON:
		return formatJSON(resp)
	case FormatYAML:
		out, err := yaml.Marshal(resp)
		if err != nil {
			return "", fmt.Errorf("failed to marshal YAML: %w", err)
		}
		return string(out), nil
	case FormatTOML:
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(resp); err != nil {
			return "", fmt.Errorf("failed to marshal TOML: %w", err)
		}
		return buf.String(), nil
	case FormatHuman:
		return formatHuman(resp)
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

func formatJSON(resp interface{}) (string, error) {
	bytes, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(bytes), nil
}

func formatHuman(resp interface{}) (string, error) {
	switch v := resp.(type) {
	case *AnalyzeResponse:
		return formatAnalyzeHuman(v), nil
	case *MovesResponse:
		return formatMovesHuman(v), nil
	case *HistoryResponse:
		return formatHistoryHuman(v), nil
	case *VersionResponse:
		return version.Full(), nil
	default:
		return formatJSON(resp)
	}
}

func formatAnalyzeHuman(resp *AnalyzeResponse) string {
	var b strings.Builder

	scope := "branch " + resp.Branch
	if resp.PullRequest {
		scope = fmt.Sprintf("pull request %s -> %s", resp.Branch, resp.TargetBranch)
	}
	fmt.Fprintf(&b, "Analysis %s (%s, %s)\n", resp.AnalysisUUID, resp.Project, scope)

	if len(resp.Stats) > 0 {
		b.WriteString("\nStatistics:\n")
		for _, s := range resp.Stats {
			fmt.Fprintf(&b, "  %-12s %d\n", s.Key, s.Value)
		}
	}

	writeMoves(&b, resp.Moves)

	if len(resp.Added) > 0 {
		fmt.Fprintf(&b, "\nAdded (%d):\n", len(resp.Added))
		for _, a := range resp.Added {
			fmt.Fprintf(&b, "  + %s\n", a.FilePath)
		}
	}
	fmt.Fprintf(&b, "\nDuration: %dms\n", resp.DurationMs)
	return b.String()
}

func formatMovesHuman(resp *MovesResponse) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analysis %s\n", resp.AnalysisUUID)
	writeMoves(&b, resp.Moves)
	if len(resp.Moves) == 0 {
		b.WriteString("\nNo moves recorded.\n")
	}
	return b.String()
}

func writeMoves(b *strings.Builder, moves []storage.MoveRow) {
	if len(moves) == 0 {
		return
	}
	fmt.Fprintf(b, "\nMoves (%d):\n", len(moves))
	for _, m := range moves {
		fmt.Fprintf(b, "  %s -> %s\n", m.OriginalPath, m.FilePath)
	}
}

func formatHistoryHuman(resp *HistoryResponse) string {
	var b strings.Builder
	fmt.Fprintf(&b, "History of %s (%d analyses)\n\n", resp.Project, len(resp.Analyses))
	for _, a := range resp.Analyses {
		scope := a.Branch
		if a.PullRequest {
			scope += " -> " + a.TargetBranch
		}
		fmt.Fprintf(&b, "  %s  %s  %-30s moves=%d added=%d\n",
			a.CreatedAt.Format("2006-01-02 15:04:05"), a.UUID, scope, a.Moves, a.Added)
	}
	return b.String()
}
