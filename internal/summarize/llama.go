package summarize

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	apperrors "github.com/edgescribe/edgescribe/internal/errors"
	"github.com/edgescribe/edgescribe/internal/trace"
)

// Inference limits for the local instruct model.
const (
	windowMaxTokens = 400
	finalMaxTokens  = 800
)

// LlamaCLI summarizes transcripts by invoking a local llama.cpp binary.
// Each partial and the final summary are mirrored to the summary dir.
type LlamaCLI struct {
	binary string
	model  string
	dir    string
	runner commandRunner
	index  int
}

// commandRunner abstracts process execution for testability.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

type execRunner struct{}

func (r *execRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return stdout.String(), fmt.Errorf("%w: %s", err, firstLine(stderr.String()))
		}
		return stdout.String(), err
	}
	return stdout.String(), nil
}

// NewLlamaCLI locates the llama binary and model file. dir receives the
// per-session summary artifacts; empty disables the mirror.
func NewLlamaCLI(binary, modelPath, dir string) (*LlamaCLI, error) {
	resolved, err := exec.LookPath(binary)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ModelLoadFailed, "llama binary %q not found", binary)
	}
	if _, err := os.Stat(modelPath); err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ModelLoadFailed, "llama model %q not found", modelPath)
	}
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, apperrors.Wrap(err, apperrors.Internal, "creating summary dir")
		}
	}
	return &LlamaCLI{
		binary: resolved,
		model:  modelPath,
		dir:    dir,
		runner: &execRunner{},
	}, nil
}

// Window summarizes one contiguous transcript span.
func (l *LlamaCLI) Window(ctx context.Context, text string) (Partial, error) {
	ctx, span := trace.StartSpan(ctx, "summarize_window")
	defer span.End()
	span.SetAttr("words", len(strings.Fields(text)))

	if strings.TrimSpace(text) == "" {
		return Partial{}.Normalize(), nil
	}

	prompt := systemPrompt + "\n\n" + fmt.Sprintf(windowPrompt, text)
	raw, err := l.infer(ctx, prompt, windowMaxTokens)
	if err != nil {
		span.SetAttr("error", err.Error())
		return Partial{}.Normalize(), apperrors.Wrap(err, apperrors.SummarizeFailed, "window pass failed")
	}

	partial, ok := parsePartial(raw)
	if !ok {
		slog.Warn("window summary output not parseable, using empty result")
	}

	l.index++
	l.mirror(fmt.Sprintf("summary_chunk_%04d.json", l.index), partial)
	return partial, nil
}

// Final combines partials into the meeting summary. With no partials the
// full transcript is summarized directly first (short-meeting fallback).
func (l *LlamaCLI) Final(ctx context.Context, fullTranscript string, partials []Partial) (Summary, error) {
	ctx, span := trace.StartSpan(ctx, "summarize_final")
	defer span.End()
	span.SetAttr("partials", len(partials))

	if len(partials) == 0 {
		direct, err := l.Window(ctx, fullTranscript)
		if err != nil {
			return Summary{}.Normalize(), err
		}
		partials = []Partial{direct}
	}

	encoded, err := json.MarshalIndent(partials, "", "  ")
	if err != nil {
		return Summary{}.Normalize(), apperrors.Wrap(err, apperrors.Internal, "encoding partials")
	}

	prompt := systemPrompt + "\n\n" + fmt.Sprintf(finalPrompt, string(encoded))
	raw, err := l.infer(ctx, prompt, finalMaxTokens)
	if err != nil {
		span.SetAttr("error", err.Error())
		return Summary{}.Normalize(), apperrors.Wrap(err, apperrors.SummarizeFailed, "final pass failed")
	}

	summary, ok := parseSummary(raw)
	if !ok {
		slog.Warn("final summary output not parseable, using empty result")
	}

	l.mirror("final_summary.json", summary)
	return summary, nil
}

// infer runs one completion on the local model.
func (l *LlamaCLI) infer(ctx context.Context, prompt string, maxTokens int) (string, error) {
	return l.runner.Run(ctx, l.binary,
		"-m", l.model,
		"-p", prompt,
		"-n", fmt.Sprintf("%d", maxTokens),
		"--temp", "0.1",
		"--top-p", "0.9",
		"--no-display-prompt",
	)
}

// mirror writes one summary artifact to disk; failures are logged only.
func (l *LlamaCLI) mirror(name string, v any) {
	if l.dir == "" {
		return
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		slog.Warn("failed to encode summary artifact", "name", name, "error", err)
		return
	}
	path := filepath.Join(l.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		slog.Warn("failed to write summary artifact", "path", path, "error", err)
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
