package snapshot

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"movetrack/internal/filemove"
	"movetrack/internal/storage"
)

// LineHashSource reads the line hashes of a report file.
type LineHashSource interface {
	LineHashes(ctx context.Context, file filemove.ReportFile) ([]string, error)
}

// Recording is everything stored about a finished analysis.
type Recording struct {
	Analysis storage.Analysis
	Files    []filemove.ReportFile
	Moves    []filemove.MoveRecord
	Added    []filemove.ReportFile
	Stats    []filemove.Stat
}

// Recorder stores analyses so later runs can use them as previous snapshots.
type Recorder struct {
	db     *storage.DB
	hashes LineHashSource
	logger *slog.Logger
}

// NewRecorder creates a recorder reading file contents from hashes.
func NewRecorder(db *storage.DB, hashes LineHashSource, logger *slog.Logger) *Recorder {
	return &Recorder{db: db, hashes: hashes, logger: logger}
}

// Record stores the analysis in a single transaction.
func (r *Recorder) Record(ctx context.Context, rec Recording) error {
	start := time.Now()

	// hashes are read before the transaction opens
	hashes := make(map[string][]string, len(rec.Files))
	for _, f := range rec.Files {
		h, err := r.hashes.LineHashes(ctx, f)
		if err != nil {
			return fmt.Errorf("reading line hashes of %s: %w", f.Path, err)
		}
		hashes[f.UUID] = h
	}

	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		analyses := storage.NewAnalysisRepository(tx)
		files := storage.NewFileRepository(tx)
		moves := storage.NewMoveRepository(tx)

		if err := analyses.Create(ctx, &rec.Analysis); err != nil {
			return err
		}
		uuid := rec.Analysis.UUID

		for _, f := range rec.Files {
			if err := files.Insert(ctx, uuid, storage.FileRecord{UUID: f.UUID, Key: f.Key, Path: f.Path, LineCount: f.LineCount}); err != nil {
				return err
			}
			if err := files.InsertLineHashes(ctx, uuid, f.UUID, hashes[f.UUID]); err != nil {
				return err
			}
		}

		for _, m := range rec.Moves {
			row := storage.MoveRow{
				FileUUID:     m.FileUUID,
				FileKey:      m.FileKey,
				FilePath:     m.FilePath,
				OriginalUUID: m.Original.UUID,
				OriginalKey:  m.Original.Key,
				OriginalPath: m.Original.Path,
			}
			if err := moves.InsertMove(ctx, uuid, row); err != nil {
				return err
			}
		}
		for _, a := range rec.Added {
			if err := moves.InsertAdded(ctx, uuid, storage.AddedFileRow{FileUUID: a.UUID, FileKey: a.Key, FilePath: a.Path}); err != nil {
				return err
			}
		}

		stats := make([]storage.StatRow, len(rec.Stats))
		for i, s := range rec.Stats {
			stats[i] = storage.StatRow{Key: s.Key, Value: s.Value}
		}
		return analyses.AddStats(ctx, uuid, stats)
	})
	if err != nil {
		return fmt.Errorf("recording analysis %s: %w", rec.Analysis.UUID, err)
	}

	r.logger.Info("Analysis recorded",
		"analysis", rec.Analysis.UUID,
		"files", len(rec.Files),
		"moves", len(rec.Moves),
		"added", len(rec.Added),
		"duration", time.Since(start),
	)
	return nil
}
