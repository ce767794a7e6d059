package filemove

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"movetrack/internal/similarity"
)

// Candidate is one axis entry of a score matrix.
type Candidate struct {
	UUID string
	Key  string
	File similarity.File
}

// LineCount returns the candidate's line count.
func (c Candidate) LineCount() int { return c.File.LineCount() }

// ScoreMatrix holds the similarity of every removed file with every added file.
// Scores are stored row-major, one row per removed file. Pruned cells stay 0.
type ScoreMatrix struct {
	RemovedFiles []Candidate
	AddedFiles   []Candidate
	MaxScore     int

	scores []int32
}

func newScoreMatrix(removed, added []Candidate) *ScoreMatrix {
	return &ScoreMatrix{
		RemovedFiles: removed,
		AddedFiles:   added,
		scores:       make([]int32, len(removed)*len(added)),
	}
}

// Score returns the score of a removed file (row) against an added file (column).
func (m *ScoreMatrix) Score(removedIndex, addedIndex int) int {
	return int(m.scores[removedIndex*len(m.AddedFiles)+addedIndex])
}

func (m *ScoreMatrix) set(removedIndex, addedIndex, score int) {
	m.scores[removedIndex*len(m.AddedFiles)+addedIndex] = int32(score)
}

// NonZeroCells counts the cells holding a non-zero score.
func (m *ScoreMatrix) NonZeroCells() int {
	n := 0
	for _, s := range m.scores {
		if s > 0 {
			n++
		}
	}
	return n
}

// MatrixBuilder computes score matrices, skipping pairs whose line counts are too
// far apart to be a move.
type MatrixBuilder struct {
	similarity *similarity.FileSimilarity
	lowerRatio float64
	upperRatio float64
	workers    int
	logger     *slog.Logger
}

// NewMatrixBuilder creates a builder. workers bounds how many rows are scored
// concurrently; 1 scores rows sequentially.
func NewMatrixBuilder(lowerRatio, upperRatio float64, workers int, logger *slog.Logger) *MatrixBuilder {
	if workers < 1 {
		workers = 1
	}
	return &MatrixBuilder{
		similarity: similarity.NewFileSimilarity(),
		lowerRatio: lowerRatio,
		upperRatio: upperRatio,
		workers:    workers,
		logger:     logger,
	}
}

// Window returns the inclusive range of line counts an added file may have to be
// compared with a removed file of lineCount lines.
func (b *MatrixBuilder) Window(lineCount int) (int, int) {
	lo := int(math.Floor(float64(lineCount) * b.lowerRatio))
	hi := int(math.Ceil(float64(lineCount) * b.upperRatio))
	return lo, hi
}

// Plausible reports whether any of the given line counts falls within the window
// of a removed file with lineCount lines. ascending must be sorted ascending.
func (b *MatrixBuilder) Plausible(lineCount int, ascending []int) bool {
	lo, hi := b.Window(lineCount)
	i := sort.SearchInts(ascending, lo)
	return i < len(ascending) && ascending[i] <= hi
}

// Build sorts both axes by descending line count and scores every pair that
// survives the line count window. Added files outside every window are never read.
func (b *MatrixBuilder) Build(ctx context.Context, removed, added []Candidate) (*ScoreMatrix, error) {
	start := time.Now()

	removed = sortByLineCount(removed)
	added = sortByLineCount(added)
	matrix := newScoreMatrix(removed, added)
	rowMax := make([]int, len(removed))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for r := range removed {
		r := r
		g.Go(func() error {
			best, err := b.scoreRow(matrix, r)
			if err != nil {
				return err
			}
			rowMax[r] = best
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("computing score matrix: %w", err)
	}

	for _, m := range rowMax {
		matrix.MaxScore = max(matrix.MaxScore, m)
	}

	b.logger.Debug("score matrix computed",
		"removedFiles", len(removed),
		"addedFiles", len(added),
		"maxScore", matrix.MaxScore,
		"duration", time.Since(start),
	)
	return matrix, nil
}

// scoreRow fills one row. Added files are sorted descending, so columns above the
// window are skipped and the scan stops at the first column below it.
func (b *MatrixBuilder) scoreRow(matrix *ScoreMatrix, r int) (int, error) {
	removedFile := matrix.RemovedFiles[r]
	lo, hi := b.Window(removedFile.LineCount())

	best := 0
	for a, addedFile := range matrix.AddedFiles {
		lc := addedFile.LineCount()
		if lc > hi {
			continue
		}
		if lc < lo {
			break
		}
		score, err := b.similarity.Score(removedFile.File, addedFile.File)
		if err != nil {
			return 0, fmt.Errorf("scoring %s against %s: %w", removedFile.Key, addedFile.Key, err)
		}
		matrix.set(r, a, score)
		best = max(best, score)
	}
	return best, nil
}

// sortByLineCount returns a copy sorted by descending line count, then UUID.
func sortByLineCount(files []Candidate) []Candidate {
	sorted := make([]Candidate, len(files))
	copy(sorted, files)
	sort.SliceStable(sorted, func(i, j int) bool {
		li, lj := sorted[i].LineCount(), sorted[j].LineCount()
		if li != lj {
			return li > lj
		}
		return sorted[i].UUID < sorted[j].UUID
	})
	return sorted
}
