package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNewCodedError(t *testing.T) {
	cause := errors.New("underlying error")
	fixes := []FixAction{{Type: RunCommand, Command: "movetrack history"}}
	drilldowns := []Drilldown{{Label: "Check", Query: "history"}}

	err := NewCodedError(SnapshotMissing, "analysis not found", cause, fixes, drilldowns)

	if err.Code != SnapshotMissing {
		t.Errorf("Code = %v, want %v", err.Code, SnapshotMissing)
	}
	if err.Message != "analysis not found" {
		t.Errorf("Message = %q, want %q", err.Message, "analysis not found")
	}
	if len(err.SuggestedFixes) != 1 {
		t.Errorf("len(SuggestedFixes) = %d, want 1", len(err.SuggestedFixes))
	}
	if len(err.Drilldowns) != 1 {
		t.Errorf("len(Drilldowns) = %d, want 1", len(err.Drilldowns))
	}
}

func TestCodedError_Error(t *testing.T) {
	tests := []struct {
		name      string
		code      ErrorCode
		message   string
		cause     error
		wantParts []string
	}{
		{
			name:      "with cause",
			code:      InternalError,
			message:   "reading line hashes",
			cause:     errors.New("disk I/O error"),
			wantParts: []string{"INTERNAL_ERROR", "reading line hashes", "disk I/O error"},
		},
		{
			name:      "without cause",
			code:      InvariantViolation,
			message:   "file 'b.go' already has an original",
			cause:     nil,
			wantParts: []string{"INVARIANT_VIOLATION", "file 'b.go' already has an original"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewCodedError(tt.code, tt.message, tt.cause, nil, nil)
			got := err.Error()

			for _, part := range tt.wantParts {
				if !strings.Contains(got, part) {
					t.Errorf("Error() = %q, want to contain %q", got, part)
				}
			}
		})
	}
}

func TestCodedError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := NewCodedError(InternalError, "something went wrong", cause, nil, nil)

	if err.Unwrap() != cause {
		t.Errorf("Unwrap() = %v, want %v", err.Unwrap(), cause)
	}

	errNoCause := NewCodedError(ConfigInvalid, "bad ratio", nil, nil, nil)
	if errNoCause.Unwrap() != nil {
		t.Errorf("Unwrap() on error without cause should return nil")
	}
}

func TestHasCode(t *testing.T) {
	heap := NewHeapLimitError(HeapLimitDetails{AddedFiles: 1, RemovedFiles: 1})
	wrapped := fmt.Errorf("file move detection: %w", heap)
	nested := NewCodedError(InternalError, "analysis failed", wrapped, nil, nil)

	tests := []struct {
		name string
		err  error
		code ErrorCode
		want bool
	}{
		{"direct", heap, HeapLimitExceeded, true},
		{"wrapped by fmt", wrapped, HeapLimitExceeded, true},
		{"nested in another CodedError", nested, HeapLimitExceeded, true},
		{"outer code", nested, InternalError, true},
		{"absent code", nested, ConfigInvalid, false},
		{"plain error", errors.New("boom"), HeapLimitExceeded, false},
		{"nil", nil, HeapLimitExceeded, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasCode(tt.err, tt.code); got != tt.want {
				t.Errorf("HasCode(%v, %v) = %v, want %v", tt.err, tt.code, got, tt.want)
			}
		})
	}
}

func TestNewHeapLimitError(t *testing.T) {
	details := HeapLimitDetails{
		AddedFiles:     100000,
		RemovedFiles:   100000,
		RequiredBytes:  40_000_000_000,
		AvailableBytes: 512 * 1024 * 1024,
	}
	err := NewHeapLimitError(details)

	if !IsHeapLimitExceeded(err) {
		t.Fatal("expected IsHeapLimitExceeded to be true")
	}
	got, ok := err.Details.(HeapLimitDetails)
	if !ok {
		t.Fatalf("Details has type %T, want HeapLimitDetails", err.Details)
	}
	if got != details {
		t.Errorf("Details = %+v, want %+v", got, details)
	}
	for _, part := range []string{"100000 added files", "100000 removed files", "512 MB"} {
		if !strings.Contains(err.Error(), part) {
			t.Errorf("Error() = %q, want to contain %q", err.Error(), part)
		}
	}
	if len(err.SuggestedFixes) == 0 {
		t.Error("expected remediation guidance in SuggestedFixes")
	}
}

func TestGetSuggestedFixes(t *testing.T) {
	tests := []struct {
		code    ErrorCode
		wantNil bool
		wantLen int
	}{
		{HeapLimitExceeded, false, 3},
		{InvariantViolation, false, 1},
		{ConfigInvalid, false, 1},
		{SnapshotMissing, false, 1},
		{InternalError, true, 0}, // No predefined fixes
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			fixes := GetSuggestedFixes(tt.code)

			if tt.wantNil && fixes != nil {
				t.Errorf("GetSuggestedFixes(%v) = %v, want nil", tt.code, fixes)
			}
			if !tt.wantNil && len(fixes) != tt.wantLen {
				t.Errorf("GetSuggestedFixes(%v) len = %d, want %d", tt.code, len(fixes), tt.wantLen)
			}
		})
	}
}

func TestErrorActionsMap(t *testing.T) {
	for code, fixes := range ErrorActions {
		if len(fixes) == 0 {
			t.Errorf("ErrorActions[%v] has no fix actions", code)
		}
		for i, fix := range fixes {
			if fix.Type == "" {
				t.Errorf("ErrorActions[%v][%d].Type is empty", code, i)
			}
		}
	}
}
