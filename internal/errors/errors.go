package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// HeapLimitExceeded indicates the score matrix would not fit in the available heap
	HeapLimitExceeded ErrorCode = "HEAP_LIMIT_EXCEEDED"
	// InvariantViolation indicates a programming error, e.g. two originals for one moved file
	InvariantViolation ErrorCode = "INVARIANT_VIOLATION"
	// ConfigInvalid indicates configuration failed validation
	ConfigInvalid ErrorCode = "CONFIG_INVALID"
	// SnapshotMissing indicates a referenced analysis does not exist
	SnapshotMissing ErrorCode = "SNAPSHOT_MISSING"
	// InternalError indicates unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// FixActionType represents the type of fix action
type FixActionType string

const (
	// RunCommand suggests running a command
	RunCommand FixActionType = "run-command"
	// ChangeInput suggests changing what is being analyzed
	ChangeInput FixActionType = "change-input"
	// OpenDocs suggests opening documentation
	OpenDocs FixActionType = "open-docs"
)

// FixAction represents a suggested fix for an error
type FixAction struct {
	Type        FixActionType `json:"type"`
	Command     string        `json:"command,omitempty"`
	Safe        bool          `json:"safe,omitempty"`
	Description string        `json:"description,omitempty"`
	URL         string        `json:"url,omitempty"`
}

// Drilldown represents a suggested follow-up query
type Drilldown struct {
	Label string `json:"label"`
	Query string `json:"query"`
}

// CodedError represents an error with code, message, and suggestions
type CodedError struct {
	Code           ErrorCode   `json:"code"`
	Message        string      `json:"message"`
	Details        interface{} `json:"details,omitempty"`
	SuggestedFixes []FixAction `json:"suggestedFixes,omitempty"`
	Drilldowns     []Drilldown `json:"drilldowns,omitempty"`
	cause          error       // Underlying error (not exported to JSON)
}

// NewCodedError creates a new CodedError
func NewCodedError(code ErrorCode, message string, cause error, suggestedFixes []FixAction, drilldowns []Drilldown) *CodedError {
	return &CodedError{
		Code:           code,
		Message:        message,
		cause:          cause,
		SuggestedFixes: suggestedFixes,
		Drilldowns:     drilldowns,
	}
}

// Error implements the error interface
func (e *CodedError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *CodedError) Unwrap() error {
	return e.cause
}

// WithDetails adds details to the error
func (e *CodedError) WithDetails(details interface{}) *CodedError {
	e.Details = details
	return e
}

// HasCode reports whether err, or any error it wraps, is a CodedError with the given code.
func HasCode(err error, code ErrorCode) bool {
	var codedErr *CodedError
	for err != nil {
		if !stderrors.As(err, &codedErr) {
			return false
		}
		if codedErr.Code == code {
			return true
		}
		err = codedErr.cause
	}
	return false
}

// HeapLimitDetails is attached to HeapLimitExceeded errors.
type HeapLimitDetails struct {
	AddedFiles     int   `json:"addedFiles"`
	RemovedFiles   int   `json:"removedFiles"`
	RequiredBytes  int64 `json:"requiredBytes"`
	AvailableBytes int64 `json:"availableBytes"`
}

// NewHeapLimitError builds the fatal error raised before allocating a score matrix
// that would exhaust the heap.
func NewHeapLimitError(details HeapLimitDetails) *CodedError {
	msg := fmt.Sprintf(
		"file move detection needs %d MB to compare %d added files with %d removed files, but only %d MB of heap is available",
		details.RequiredBytes/(1024*1024), details.AddedFiles, details.RemovedFiles, details.AvailableBytes/(1024*1024))
	return NewCodedError(HeapLimitExceeded, msg, nil, GetSuggestedFixes(HeapLimitExceeded), nil).WithDetails(details)
}

// IsHeapLimitExceeded reports whether err was raised by the memory guard.
func IsHeapLimitExceeded(err error) bool {
	return HasCode(err, HeapLimitExceeded)
}

// ErrorActions maps error codes to suggested fix actions
var ErrorActions = map[ErrorCode][]FixAction{
	HeapLimitExceeded: {
		{
			Type:        ChangeInput,
			Description: "Revert the change that moved or renamed a large number of files",
		},
		{
			Type:        ChangeInput,
			Description: "Split the restructuring into smaller batches and analyze each one",
		},
		{
			Type:        RunCommand,
			Command:     "MOVETRACK_MEMORY_MAXHEAPBYTES=<bytes> movetrack analyze ...",
			Safe:        true,
			Description: "Raise the heap available to the analysis",
		},
	},
	InvariantViolation: {
		{
			Type:        OpenDocs,
			Description: "This is a bug in move detection; report it with the score matrix dump",
		},
	},
	ConfigInvalid: {
		{
			Type:        RunCommand,
			Command:     "cat .movetrack/config.json",
			Safe:        true,
			Description: "Inspect the configuration file",
		},
	},
	SnapshotMissing: {
		{
			Type:        RunCommand,
			Command:     "movetrack history --project ${project}",
			Safe:        true,
			Description: "List recorded analyses",
		},
	},
}

// GetSuggestedFixes returns suggested fixes for an error code
func GetSuggestedFixes(code ErrorCode) []FixAction {
	if fixes, ok := ErrorActions[code]; ok {
		return fixes
	}
	return nil
}
