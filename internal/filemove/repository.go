package filemove

import (
	"fmt"
	"sort"
	"sync"

	"movetrack/internal/errors"
)

// MoveRecord states that a report file is the continuation of an original file.
type MoveRecord struct {
	FileUUID string       `json:"fileUuid" yaml:"fileUuid" toml:"fileUuid"`
	FileKey  string       `json:"fileKey" yaml:"fileKey" toml:"fileKey"`
	FilePath string       `json:"filePath" yaml:"filePath" toml:"filePath"`
	Original OriginalFile `json:"original" yaml:"original" toml:"original"`
}

// MovedFiles receives the move records of a run.
type MovedFiles interface {
	SetOriginalFile(file ReportFile, original OriginalFile) error
}

// AddedFiles receives the files of a run that have no predecessor.
type AddedFiles interface {
	Register(file ReportFile) error
}

// MovedFilesRepository keeps move records in memory, one per report file.
type MovedFilesRepository struct {
	mu      sync.RWMutex
	records map[string]MoveRecord
}

// NewMovedFilesRepository creates an empty repository.
func NewMovedFilesRepository() *MovedFilesRepository {
	return &MovedFilesRepository{records: make(map[string]MoveRecord)}
}

// SetOriginalFile registers the original of a file. Registering the same original
// again is a no-op; registering a different one is an invariant violation.
func (r *MovedFilesRepository) SetOriginalFile(file ReportFile, original OriginalFile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.records[file.UUID]; ok {
		if existing.Original.UUID == original.UUID && existing.Original.Key == original.Key {
			return nil
		}
		return errors.NewCodedError(errors.InvariantViolation,
			fmt.Sprintf("original file %s already registered for file %s, cannot register %s",
				existing.Original.Key, file.Key, original.Key),
			nil, errors.GetSuggestedFixes(errors.InvariantViolation), nil)
	}

	r.records[file.UUID] = MoveRecord{
		FileUUID: file.UUID,
		FileKey:  file.Key,
		FilePath: file.Path,
		Original: original,
	}
	return nil
}

// OriginalFile returns the original registered for a file.
func (r *MovedFilesRepository) OriginalFile(fileUUID string) (OriginalFile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[fileUUID]
	return rec.Original, ok
}

// All returns the records sorted by file key.
func (r *MovedFilesRepository) All() []MoveRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]MoveRecord, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FileKey < out[j].FileKey })
	return out
}

// AddedFileRepository keeps the files flagged as added in memory.
type AddedFileRepository struct {
	mu    sync.RWMutex
	files map[string]ReportFile
}

// NewAddedFileRepository creates an empty repository.
func NewAddedFileRepository() *AddedFileRepository {
	return &AddedFileRepository{files: make(map[string]ReportFile)}
}

// Register flags a file as added. It is idempotent.
func (r *AddedFileRepository) Register(file ReportFile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files[file.UUID] = file
	return nil
}

// IsAdded reports whether a file was flagged as added.
func (r *AddedFileRepository) IsAdded(fileUUID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.files[fileUUID]
	return ok
}

// All returns the added files sorted by key.
func (r *AddedFileRepository) All() []ReportFile {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ReportFile, 0, len(r.files))
	for _, f := range r.files {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Registrar turns elected matches into move records and flags the remaining
// added files.
type Registrar struct {
	moved MovedFiles
	added AddedFiles
}

// NewRegistrar creates a registrar writing to the given repositories.
func NewRegistrar(moved MovedFiles, added AddedFiles) *Registrar {
	return &Registrar{moved: moved, added: added}
}

// RegisterMoves records one move per match and returns the UUIDs of the moved files.
func (r *Registrar) RegisterMoves(matches []Match, removed map[string]DBFile, added map[string]ReportFile) (map[string]bool, error) {
	moved := make(map[string]bool, len(matches))
	for _, m := range matches {
		file, ok := added[m.AddedUUID]
		if !ok {
			return nil, errors.NewCodedError(errors.InvariantViolation,
				fmt.Sprintf("elected file %s is not an added file", m.AddedUUID), nil, nil, nil)
		}
		original, ok := removed[m.RemovedUUID]
		if !ok {
			return nil, errors.NewCodedError(errors.InvariantViolation,
				fmt.Sprintf("elected file %s is not a removed file", m.RemovedUUID), nil, nil, nil)
		}
		if err := r.moved.SetOriginalFile(file, OriginalFile{UUID: original.UUID, Key: original.Key, Path: original.Path}); err != nil {
			return nil, err
		}
		moved[file.UUID] = true
	}
	return moved, nil
}

// RegisterMove records a single move.
func (r *Registrar) RegisterMove(file ReportFile, original OriginalFile) error {
	return r.moved.SetOriginalFile(file, original)
}

// RegisterAdded flags every file not in except as added.
func (r *Registrar) RegisterAdded(files []ReportFile, except map[string]bool) error {
	for _, f := range files {
		if except[f.UUID] {
			continue
		}
		if err := r.added.Register(f); err != nil {
			return fmt.Errorf("registering added file %s: %w", f.Key, err)
		}
	}
	return nil
}
