package filemove

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// ScoreMatrixDumper receives every score matrix a step computes.
type ScoreMatrixDumper interface {
	Dump(matrix *ScoreMatrix) error
}

// NoopDumper discards matrices.
type NoopDumper struct{}

// Dump does nothing.
func (NoopDumper) Dump(*ScoreMatrix) error { return nil }

// CapturingDumper keeps matrices in memory.
type CapturingDumper struct {
	mu       sync.Mutex
	matrices []*ScoreMatrix
}

// Dump stores the matrix.
func (d *CapturingDumper) Dump(matrix *ScoreMatrix) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.matrices = append(d.matrices, matrix)
	return nil
}

// Matrices returns the captured matrices.
func (d *CapturingDumper) Matrices() []*ScoreMatrix {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*ScoreMatrix(nil), d.matrices...)
}

const dumpPattern = "score-matrix-*.csv.zst"

// CSVDumper writes matrices as zstd-compressed CSV files and keeps only the most
// recent ones.
type CSVDumper struct {
	dir          string
	analysisUUID string
	keep         int
	logger       *slog.Logger
}

// NewCSVDumper creates a dumper writing into dir. keep is at least 1 so the dump
// just written is never purged.
func NewCSVDumper(dir, analysisUUID string, keep int, logger *slog.Logger) *CSVDumper {
	keep = max(keep, 1)
	return &CSVDumper{dir: dir, analysisUUID: analysisUUID, keep: keep, logger: logger}
}

// Path is the file the matrix of this analysis is written to.
func (d *CSVDumper) Path() string {
	return filepath.Join(d.dir, fmt.Sprintf("score-matrix-%s.csv.zst", d.analysisUUID))
}

// Dump writes a header row of added file keys, then one row per removed file.
func (d *CSVDumper) Dump(matrix *ScoreMatrix) error {
	if err := os.MkdirAll(d.dir, 0755); err != nil {
		return fmt.Errorf("creating dump directory: %w", err)
	}

	path := d.Path()
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating dump file: %w", err)
	}
	defer f.Close()

	encoder, err := zstd.NewWriter(f)
	if err != nil {
		return fmt.Errorf("creating zstd encoder: %w", err)
	}

	if err := writeCSV(encoder, matrix); err != nil {
		encoder.Close()
		return err
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("closing zstd encoder: %w", err)
	}

	d.logger.Debug("Score matrix dumped", "path", path)
	return d.purge()
}

func writeCSV(encoder *zstd.Encoder, matrix *ScoreMatrix) error {
	w := csv.NewWriter(encoder)

	header := make([]string, 0, len(matrix.AddedFiles)+1)
	header = append(header, "")
	for _, a := range matrix.AddedFiles {
		header = append(header, a.Key)
	}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("writing dump header: %w", err)
	}

	row := make([]string, len(matrix.AddedFiles)+1)
	for r, removed := range matrix.RemovedFiles {
		row[0] = removed.Key
		for a := range matrix.AddedFiles {
			row[a+1] = strconv.Itoa(matrix.Score(r, a))
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("writing dump row: %w", err)
		}
	}

	w.Flush()
	return w.Error()
}

// purge removes dumps beyond the keep most recent.
func (d *CSVDumper) purge() error {
	paths, err := filepath.Glob(filepath.Join(d.dir, dumpPattern))
	if err != nil {
		return err
	}
	if len(paths) <= d.keep {
		return nil
	}

	type dump struct {
		path    string
		modTime int64
	}
	dumps := make([]dump, 0, len(paths))
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		dumps = append(dumps, dump{path: p, modTime: info.ModTime().UnixNano()})
	}
	sort.Slice(dumps, func(i, j int) bool {
		if dumps[i].modTime != dumps[j].modTime {
			return dumps[i].modTime > dumps[j].modTime
		}
		return dumps[i].path > dumps[j].path
	})

	for _, old := range dumps[d.keep:] {
		if err := os.Remove(old.path); err != nil && !os.IsNotExist(err) {
			d.logger.Warn("Failed to purge score matrix dump", "path", old.path, "error", err)
		}
	}
	return nil
}
