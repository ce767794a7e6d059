package filemove

import (
	"log/slog"
	"math"
	"runtime"
	"runtime/debug"

	"movetrack/internal/errors"
)

// bytesPerCell is the size of one score in a ScoreMatrix.
const bytesPerCell = 4

// defaultHeapLimit applies when neither configuration nor GOMEMLIMIT sets a limit.
const defaultHeapLimit int64 = 4 << 30

// MemoryReader reports the heap available to the process.
type MemoryReader interface {
	// HeapLimit is the maximum heap the process may use.
	HeapLimit() int64
	// HeapInUse is the heap currently in use.
	HeapInUse() int64
}

// RuntimeMemory reads the Go runtime's memory statistics.
type RuntimeMemory struct {
	// MaxHeapBytes overrides the limit when positive.
	MaxHeapBytes int64
}

// HeapLimit returns MaxHeapBytes, else the runtime soft memory limit, else 4 GiB.
func (m RuntimeMemory) HeapLimit() int64 {
	if m.MaxHeapBytes > 0 {
		return m.MaxHeapBytes
	}
	if limit := debug.SetMemoryLimit(-1); limit != math.MaxInt64 {
		return limit
	}
	return defaultHeapLimit
}

// HeapInUse returns the bytes in in-use heap spans.
func (RuntimeMemory) HeapInUse() int64 {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return int64(stats.HeapInuse)
}

// HeapSizeChecker refuses score matrices that would not fit in the heap.
type HeapSizeChecker struct {
	memory       MemoryReader
	safetyMargin float64
	logger       *slog.Logger
}

// NewHeapSizeChecker creates a checker keeping safetyMargin (a ratio of the heap
// limit) free after the matrix is allocated.
func NewHeapSizeChecker(memory MemoryReader, safetyMargin float64, logger *slog.Logger) *HeapSizeChecker {
	return &HeapSizeChecker{memory: memory, safetyMargin: safetyMargin, logger: logger}
}

// RequiredBytes is the size of a matrix of added x removed scores.
func RequiredBytes(addedFiles, removedFiles int) int64 {
	return int64(addedFiles) * int64(removedFiles) * bytesPerCell
}

// Check must run before the matrix is allocated. It returns a HEAP_LIMIT_EXCEEDED
// error when the matrix would leave less than the safety margin free.
func (c *HeapSizeChecker) Check(addedFiles, removedFiles int) error {
	required := RequiredBytes(addedFiles, removedFiles)
	limit := c.memory.HeapLimit()
	available := limit - c.memory.HeapInUse()
	margin := int64(float64(limit) * c.safetyMargin)

	if available-required < margin {
		c.logger.Warn("Score matrix does not fit in heap",
			"addedFiles", addedFiles,
			"removedFiles", removedFiles,
			"requiredBytes", required,
			"availableBytes", available,
		)
		return errors.NewHeapLimitError(errors.HeapLimitDetails{
			AddedFiles:     addedFiles,
			RemovedFiles:   removedFiles,
			RequiredBytes:  required,
			AvailableBytes: available,
		})
	}
	return nil
}
