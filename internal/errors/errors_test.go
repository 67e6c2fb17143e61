package errors

import (
	stderrors "errors"
	"strings"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	err := New(TranscribeFailed, "segment failed")
	if !strings.Contains(err.Error(), "TRANSCRIBE_FAILED") {
		t.Errorf("error string should contain code name, got %q", err.Error())
	}
	if !strings.Contains(err.Error(), "segment failed") {
		t.Errorf("error string should contain message, got %q", err.Error())
	}
}

func TestWrapUnwrap(t *testing.T) {
	cause := stderrors.New("exec: exit status 1")
	err := Wrap(cause, SummarizeFailed, "window pass failed")

	if !stderrors.Is(err, cause) {
		t.Error("wrapped error should match cause via errors.Is")
	}
	if !strings.Contains(err.Error(), "caused by") {
		t.Errorf("error string should include cause, got %q", err.Error())
	}
}

func TestWithMetadata(t *testing.T) {
	err := New(SegmentMissing, "gone").WithMetadata("path", "/tmp/chunk_0001.wav")
	if err.Metadata["path"] != "/tmp/chunk_0001.wav" {
		t.Errorf("metadata not stored: %v", err.Metadata)
	}
	if !strings.Contains(err.Error(), "chunk_0001.wav") {
		t.Errorf("error string should include metadata, got %q", err.Error())
	}
}

func TestIsCode(t *testing.T) {
	err := New(NotRunning, "pipeline idle")
	if !IsCode(err, NotRunning) {
		t.Error("IsCode should match NotRunning")
	}
	if IsCode(err, DrainTimeout) {
		t.Error("IsCode should not match a different code")
	}
	if IsCode(stderrors.New("plain"), NotRunning) {
		t.Error("IsCode should be false for untyped errors")
	}
}

func TestCodeOf(t *testing.T) {
	if got := CodeOf(New(ParseFailed, "bad json")); got != ParseFailed {
		t.Errorf("CodeOf = %v, want ParseFailed", got)
	}
	if got := CodeOf(stderrors.New("plain")); got != Unknown {
		t.Errorf("CodeOf untyped = %v, want Unknown", got)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{New(TranscribeFailed, "x"), true},
		{New(SummarizeFailed, "x"), true},
		{New(EngineBusy, "x"), true},
		{New(ParseFailed, "x"), false},
		{New(NotRunning, "x"), false},
		{New(SegmentMissing, "x"), false},
		{stderrors.New("plain"), false},
	}
	for _, tt := range tests {
		if got := IsRetryable(tt.err); got != tt.want {
			t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestCodeString(t *testing.T) {
	if Code(999).String() != "UNKNOWN" {
		t.Error("out-of-range code should stringify as UNKNOWN")
	}
	if DrainTimeout.String() != "DRAIN_TIMEOUT" {
		t.Errorf("DrainTimeout.String() = %q", DrainTimeout.String())
	}
}
