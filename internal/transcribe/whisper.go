package transcribe

import (
	"context"
	"os"
	"os/exec"
	"strings"

	apperrors "github.com/edgescribe/edgescribe/internal/errors"
	"github.com/edgescribe/edgescribe/internal/trace"
)

// WhisperCLI transcribes WAV segments by invoking a local whisper.cpp
// binary. Model availability is verified at construction so a missing
// backend fails before the pipeline starts.
type WhisperCLI struct {
	binary   string
	model    string
	language string
	runner   commandRunner
}

// NewWhisperCLI locates the whisper binary and model file.
func NewWhisperCLI(binary, modelPath, language string) (*WhisperCLI, error) {
	resolved, err := exec.LookPath(binary)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ModelLoadFailed, "whisper binary %q not found", binary)
	}
	if _, err := os.Stat(modelPath); err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ModelLoadFailed, "whisper model %q not found", modelPath)
	}
	if language == "" {
		language = "en"
	}
	return &WhisperCLI{
		binary:   resolved,
		model:    modelPath,
		language: language,
		runner:   &execRunner{},
	}, nil
}

// Transcribe runs the whisper binary on one segment and returns the text.
func (w *WhisperCLI) Transcribe(ctx context.Context, wavPath string) (string, error) {
	ctx, span := trace.StartSpan(ctx, "whisper_transcribe")
	defer span.End()
	span.SetAttr("segment", wavPath)

	if _, err := os.Stat(wavPath); err != nil {
		return "", apperrors.Wrapf(err, apperrors.SegmentMissing, "segment %q not found", wavPath)
	}

	args := []string{
		"-m", w.model,
		"-f", wavPath,
		"-l", w.language,
		"-nt", // no timestamps, plain text on stdout
		"-np", // suppress progress output
	}

	res, err := w.runner.Run(ctx, w.binary, args...)
	if err != nil {
		span.SetAttr("error", err.Error())
		return "", apperrors.Wrapf(err, apperrors.TranscribeFailed, "whisper exited %d: %s",
			res.ExitCode, firstLine(res.Stderr))
	}

	text := cleanOutput(res.Stdout)
	span.SetAttr("words", len(strings.Fields(text)))
	return text, nil
}

// cleanOutput collapses whisper's stdout into a single-line transcript.
func cleanOutput(out string) string {
	lines := strings.Split(out, "\n")
	parts := make([]string, 0, len(lines))
	for _, line := range lines {
		if t := strings.TrimSpace(line); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
