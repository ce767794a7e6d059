package filemove

import (
	"testing"

	"movetrack/internal/errors"
	"movetrack/internal/slogutil"
)

func TestHeapSizeChecker_TripPoint(t *testing.T) {
	logger := slogutil.NewDiscardLogger()

	small := NewHeapSizeChecker(fakeMemory{limit: 512 << 20, inUse: 64 << 20}, 0.05, logger)
	err := small.Check(100000, 100000)
	if !errors.IsHeapLimitExceeded(err) {
		t.Fatalf("Check(100000, 100000) error = %v, want heap limit exceeded", err)
	}

	codedErr := err.(*errors.CodedError)
	details := codedErr.Details.(errors.HeapLimitDetails)
	if details.AddedFiles != 100000 || details.RemovedFiles != 100000 {
		t.Errorf("details counts = %d/%d", details.AddedFiles, details.RemovedFiles)
	}
	if details.RequiredBytes != 40_000_000_000 {
		t.Errorf("RequiredBytes = %d, want 40000000000", details.RequiredBytes)
	}
	if details.AvailableBytes != 448<<20 {
		t.Errorf("AvailableBytes = %d, want %d", details.AvailableBytes, 448<<20)
	}

	if err := small.Check(10, 10); err != nil {
		t.Errorf("Check(10, 10) error = %v, want nil", err)
	}
}

func TestHeapSizeChecker_RuntimeMemory(t *testing.T) {
	c := NewHeapSizeChecker(RuntimeMemory{}, 0.05, slogutil.NewDiscardLogger())
	if err := c.Check(10, 10); err != nil {
		t.Errorf("Check(10, 10) with runtime memory error = %v", err)
	}
}

func TestHeapSizeChecker_SafetyMargin(t *testing.T) {
	// limit 1000, 5% margin = 50 bytes that must stay free
	c := NewHeapSizeChecker(fakeMemory{limit: 1000, inUse: 900}, 0.05, slogutil.NewDiscardLogger())

	if err := c.Check(5, 2); err != nil { // 40 bytes, leaves 60
		t.Errorf("Check(5, 2) error = %v, want nil", err)
	}
	if err := c.Check(4, 4); err == nil { // 64 bytes, leaves 36
		t.Error("Check(4, 4) should exceed the safety margin")
	}
}

func TestRuntimeMemory_HeapLimit(t *testing.T) {
	if got := (RuntimeMemory{MaxHeapBytes: 1234}).HeapLimit(); got != 1234 {
		t.Errorf("HeapLimit() = %d, want configured 1234", got)
	}
	if got := (RuntimeMemory{}).HeapLimit(); got <= 0 {
		t.Errorf("HeapLimit() = %d, want positive", got)
	}
	if got := (RuntimeMemory{}).HeapInUse(); got <= 0 {
		t.Errorf("HeapInUse() = %d, want positive", got)
	}
}

func TestRequiredBytes(t *testing.T) {
	if got := RequiredBytes(3, 7); got != 84 {
		t.Errorf("RequiredBytes(3, 7) = %d, want 84", got)
	}
}
