// Package errors provides unified error handling with structured error codes
// shared across the capture, transcription, and summarization layers.
package errors

import "fmt"

// Code classifies pipeline errors for handling policy decisions.
type Code int

const (
	Unknown Code = iota
	Internal
	ConfigInvalid
	CaptureFailed
	SegmentMissing
	ModelLoadFailed
	TranscribeFailed
	SummarizeFailed
	ParseFailed
	NotRunning
	AlreadyRunning
	DrainTimeout
	EngineBusy
)

var codeNames = map[Code]string{
	Unknown:          "UNKNOWN",
	Internal:         "INTERNAL",
	ConfigInvalid:    "CONFIG_INVALID",
	CaptureFailed:    "CAPTURE_FAILED",
	SegmentMissing:   "SEGMENT_MISSING",
	ModelLoadFailed:  "MODEL_LOAD_FAILED",
	TranscribeFailed: "TRANSCRIBE_FAILED",
	SummarizeFailed:  "SUMMARIZE_FAILED",
	ParseFailed:      "PARSE_FAILED",
	NotRunning:       "NOT_RUNNING",
	AlreadyRunning:   "ALREADY_RUNNING",
	DrainTimeout:     "DRAIN_TIMEOUT",
	EngineBusy:       "ENGINE_BUSY",
}

// String returns the stable name for a code.
func (c Code) String() string {
	if n, ok := codeNames[c]; ok {
		return n
	}
	return "UNKNOWN"
}

// AppError is the base error type with structured code and metadata.
type AppError struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	s := fmt.Sprintf("[%s] %s", e.Code.String(), e.Message)
	if len(e.Metadata) > 0 {
		s += fmt.Sprintf(" %v", e.Metadata)
	}
	if e.Cause != nil {
		s += fmt.Sprintf(" caused by: %v", e.Cause)
	}
	return s
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *AppError) Unwrap() error { return e.Cause }

// New creates a new AppError with the given code and message.
func New(code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg}
}

// Newf creates a new AppError with formatted message.
func Newf(code Code, format string, args ...interface{}) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with an AppError.
func Wrap(err error, code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg, Cause: err}
}

// Wrapf wraps an existing error with formatted message.
func Wrapf(err error, code Code, format string, args ...interface{}) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// WithMetadata adds metadata to an AppError.
func (e *AppError) WithMetadata(key, value string) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// IsCode checks if an error has a specific error code.
func IsCode(err error, code Code) bool {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code == code
	}
	return false
}

// CodeOf extracts the code from an error, Unknown if untyped.
func CodeOf(err error) Code {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}
	return Unknown
}

// IsRetryable returns true if the error is potentially retryable.
// Parse failures and lifecycle errors are deterministic and never retried.
func IsRetryable(err error) bool {
	appErr, ok := err.(*AppError)
	if !ok {
		return false
	}
	switch appErr.Code {
	case TranscribeFailed, SummarizeFailed, EngineBusy:
		return true
	default:
		return false
	}
}
