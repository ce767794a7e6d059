package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// maxInClause bounds the number of bound parameters per IN query
const maxInClause = 500

// timeLayout has a fixed width so created_at sorts as text
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Analysis is a recorded run for a project branch
type Analysis struct {
	UUID         string    `json:"uuid" yaml:"uuid" toml:"uuid"`
	Project      string    `json:"project" yaml:"project" toml:"project"`
	Branch       string    `json:"branch" yaml:"branch" toml:"branch"`
	PullRequest  bool      `json:"pullRequest" yaml:"pullRequest" toml:"pullRequest"`
	TargetBranch string    `json:"targetBranch,omitempty" yaml:"targetBranch,omitempty" toml:"targetBranch,omitempty"`
	CreatedAt    time.Time `json:"createdAt" yaml:"createdAt" toml:"createdAt"`
}

// FileRecord is a file of a recorded analysis
type FileRecord struct {
	UUID      string
	Key       string
	Path      string
	LineCount int
}

// MoveRow is a recorded move
type MoveRow struct {
	FileUUID     string `json:"fileUuid" yaml:"fileUuid" toml:"fileUuid"`
	FileKey      string `json:"fileKey" yaml:"fileKey" toml:"fileKey"`
	FilePath     string `json:"filePath" yaml:"filePath" toml:"filePath"`
	OriginalUUID string `json:"originalUuid" yaml:"originalUuid" toml:"originalUuid"`
	OriginalKey  string `json:"originalKey" yaml:"originalKey" toml:"originalKey"`
	OriginalPath string `json:"originalPath" yaml:"originalPath" toml:"originalPath"`
}

// AddedFileRow is a file recorded as added
type AddedFileRow struct {
	FileUUID string `json:"fileUuid" yaml:"fileUuid" toml:"fileUuid"`
	FileKey  string `json:"fileKey" yaml:"fileKey" toml:"fileKey"`
	FilePath string `json:"filePath" yaml:"filePath" toml:"filePath"`
}

// StatRow is a recorded statistic
type StatRow struct {
	Key   string `json:"key" yaml:"key" toml:"key"`
	Value int    `json:"value" yaml:"value" toml:"value"`
}

// AnalysisRepository provides operations on the analyses and analysis_stats tables
type AnalysisRepository struct {
	q Querier
}

// NewAnalysisRepository creates a new analysis repository
func NewAnalysisRepository(q Querier) *AnalysisRepository {
	return &AnalysisRepository{q: q}
}

// Create inserts a new analysis
func (r *AnalysisRepository) Create(ctx context.Context, a *Analysis) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO analyses (uuid, project, branch, pull_request, target_branch, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		a.UUID,
		a.Project,
		a.Branch,
		boolToInt(a.PullRequest),
		nullString(a.TargetBranch),
		a.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to create analysis: %w", err)
	}
	return nil
}

const analysisColumns = `uuid, project, branch, pull_request, target_branch, created_at`

// Get retrieves an analysis by UUID. It returns nil when not found.
func (r *AnalysisRepository) Get(ctx context.Context, uuid string) (*Analysis, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+analysisColumns+` FROM analyses WHERE uuid = ?`, uuid)
	a, err := scanAnalysis(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}
	return a, nil
}

// Latest returns the most recent analysis of a project branch, pull request
// analyses excluded. It returns nil when the branch was never analyzed.
func (r *AnalysisRepository) Latest(ctx context.Context, project, branch string) (*Analysis, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT `+analysisColumns+` FROM analyses
		WHERE project = ? AND branch = ? AND pull_request = 0
		ORDER BY created_at DESC, uuid DESC
		LIMIT 1
	`, project, branch)
	a, err := scanAnalysis(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest analysis: %w", err)
	}
	return a, nil
}

// HasAny reports whether the project was ever analyzed.
func (r *AnalysisRepository) HasAny(ctx context.Context, project string) (bool, error) {
	var n int
	err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM analyses WHERE project = ?`, project).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to count analyses: %w", err)
	}
	return n > 0, nil
}

// ListByProject returns the analyses of a project, newest first
func (r *AnalysisRepository) ListByProject(ctx context.Context, project string) ([]Analysis, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+analysisColumns+` FROM analyses
		WHERE project = ?
		ORDER BY created_at DESC, uuid DESC
	`, project)
	if err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}
	defer rows.Close()

	var out []Analysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan analysis: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// AddStats records the statistics of an analysis, keeping their order
func (r *AnalysisRepository) AddStats(ctx context.Context, analysisUUID string, stats []StatRow) error {
	for i, s := range stats {
		_, err := r.q.ExecContext(ctx, `
			INSERT INTO analysis_stats (analysis_uuid, key, value, position) VALUES (?, ?, ?, ?)
		`, analysisUUID, s.Key, s.Value, i)
		if err != nil {
			return fmt.Errorf("failed to add statistic %s: %w", s.Key, err)
		}
	}
	return nil
}

// Stats returns the statistics of an analysis in recording order
func (r *AnalysisRepository) Stats(ctx context.Context, analysisUUID string) ([]StatRow, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT key, value FROM analysis_stats WHERE analysis_uuid = ? ORDER BY position
	`, analysisUUID)
	if err != nil {
		return nil, fmt.Errorf("failed to list statistics: %w", err)
	}
	defer rows.Close()

	var out []StatRow
	for rows.Next() {
		var s StatRow
		if err := rows.Scan(&s.Key, &s.Value); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// FileRepository provides operations on the files and line_hashes tables
type FileRepository struct {
	q Querier
}

// NewFileRepository creates a new file repository
func NewFileRepository(q Querier) *FileRepository {
	return &FileRepository{q: q}
}

// Insert records a file of an analysis
func (r *FileRepository) Insert(ctx context.Context, analysisUUID string, f FileRecord) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO files (analysis_uuid, uuid, key, path, line_count) VALUES (?, ?, ?, ?, ?)
	`, analysisUUID, f.UUID, f.Key, nullString(f.Path), f.LineCount)
	if err != nil {
		return fmt.Errorf("failed to insert file %s: %w", f.Key, err)
	}
	return nil
}

// InsertLineHashes records the line fingerprints of a file
func (r *FileRepository) InsertLineHashes(ctx context.Context, analysisUUID, fileUUID string, hashes []string) error {
	if hashes == nil {
		hashes = []string{}
	}
	encoded, err := json.Marshal(hashes)
	if err != nil {
		return fmt.Errorf("failed to encode line hashes: %w", err)
	}
	_, err = r.q.ExecContext(ctx, `
		INSERT INTO line_hashes (analysis_uuid, file_uuid, hashes_json) VALUES (?, ?, ?)
	`, analysisUUID, fileUUID, string(encoded))
	if err != nil {
		return fmt.Errorf("failed to insert line hashes: %w", err)
	}
	return nil
}

// ListByAnalysis returns the files of an analysis ordered by key
func (r *FileRepository) ListByAnalysis(ctx context.Context, analysisUUID string) ([]FileRecord, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT uuid, key, path, line_count FROM files WHERE analysis_uuid = ? ORDER BY key
	`, analysisUUID)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	defer rows.Close()

	var out []FileRecord
	for rows.Next() {
		var f FileRecord
		var path sql.NullString
		if err := rows.Scan(&f.UUID, &f.Key, &path, &f.LineCount); err != nil {
			return nil, fmt.Errorf("failed to scan file: %w", err)
		}
		f.Path = path.String
		out = append(out, f)
	}
	return out, rows.Err()
}

// LineHashes returns the fingerprints of the requested files keyed by file UUID.
// Files without recorded fingerprints are absent from the result.
func (r *FileRepository) LineHashes(ctx context.Context, analysisUUID string, fileUUIDs []string) (map[string][]string, error) {
	out := make(map[string][]string, len(fileUUIDs))
	for start := 0; start < len(fileUUIDs); start += maxInClause {
		chunk := fileUUIDs[start:min(start+maxInClause, len(fileUUIDs))]

		args := make([]any, 0, len(chunk)+1)
		args = append(args, analysisUUID)
		for _, u := range chunk {
			args = append(args, u)
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ",")

		rows, err := r.q.QueryContext(ctx, `
			SELECT file_uuid, hashes_json FROM line_hashes
			WHERE analysis_uuid = ? AND file_uuid IN (`+placeholders+`)
		`, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to query line hashes: %w", err)
		}
		if err := scanLineHashes(rows, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func scanLineHashes(rows *sql.Rows, out map[string][]string) error {
	defer rows.Close()
	for rows.Next() {
		var fileUUID, encoded string
		if err := rows.Scan(&fileUUID, &encoded); err != nil {
			return fmt.Errorf("failed to scan line hashes: %w", err)
		}
		var hashes []string
		if err := json.Unmarshal([]byte(encoded), &hashes); err != nil {
			return fmt.Errorf("failed to decode line hashes of %s: %w", fileUUID, err)
		}
		out[fileUUID] = hashes
	}
	return rows.Err()
}

// MoveRepository provides operations on the moves and added_files tables
type MoveRepository struct {
	q Querier
}

// NewMoveRepository creates a new move repository
func NewMoveRepository(q Querier) *MoveRepository {
	return &MoveRepository{q: q}
}

// InsertMove records a move
func (r *MoveRepository) InsertMove(ctx context.Context, analysisUUID string, m MoveRow) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO moves (analysis_uuid, file_uuid, file_key, file_path, original_uuid, original_key, original_path)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, analysisUUID, m.FileUUID, m.FileKey, nullString(m.FilePath), m.OriginalUUID, m.OriginalKey, nullString(m.OriginalPath))
	if err != nil {
		return fmt.Errorf("failed to insert move of %s: %w", m.FileKey, err)
	}
	return nil
}

// InsertAdded records an added file
func (r *MoveRepository) InsertAdded(ctx context.Context, analysisUUID string, a AddedFileRow) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO added_files (analysis_uuid, file_uuid, file_key, file_path) VALUES (?, ?, ?, ?)
	`, analysisUUID, a.FileUUID, a.FileKey, nullString(a.FilePath))
	if err != nil {
		return fmt.Errorf("failed to insert added file %s: %w", a.FileKey, err)
	}
	return nil
}

// ListMoves returns the moves of an analysis ordered by file key
func (r *MoveRepository) ListMoves(ctx context.Context, analysisUUID string) ([]MoveRow, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT file_uuid, file_key, file_path, original_uuid, original_key, original_path
		FROM moves WHERE analysis_uuid = ? ORDER BY file_key
	`, analysisUUID)
	if err != nil {
		return nil, fmt.Errorf("failed to list moves: %w", err)
	}
	defer rows.Close()

	var out []MoveRow
	for rows.Next() {
		var m MoveRow
		var filePath, originalPath sql.NullString
		if err := rows.Scan(&m.FileUUID, &m.FileKey, &filePath, &m.OriginalUUID, &m.OriginalKey, &originalPath); err != nil {
			return nil, fmt.Errorf("failed to scan move: %w", err)
		}
		m.FilePath = filePath.String
		m.OriginalPath = originalPath.String
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListAdded returns the added files of an analysis ordered by file key
func (r *MoveRepository) ListAdded(ctx context.Context, analysisUUID string) ([]AddedFileRow, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT file_uuid, file_key, file_path FROM added_files WHERE analysis_uuid = ? ORDER BY file_key
	`, analysisUUID)
	if err != nil {
		return nil, fmt.Errorf("failed to list added files: %w", err)
	}
	defer rows.Close()

	var out []AddedFileRow
	for rows.Next() {
		var a AddedFileRow
		var path sql.NullString
		if err := rows.Scan(&a.FileUUID, &a.FileKey, &path); err != nil {
			return nil, fmt.Errorf("failed to scan added file: %w", err)
		}
		a.FilePath = path.String
		out = append(out, a)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row rowScanner) (*Analysis, error) {
	var a Analysis
	var pullRequest int
	var target sql.NullString
	var createdAt string
	if err := row.Scan(&a.UUID, &a.Project, &a.Branch, &pullRequest, &target, &createdAt); err != nil {
		return nil, err
	}
	a.PullRequest = pullRequest != 0
	a.TargetBranch = target.String
	t, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	a.CreatedAt = t
	return &a, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
