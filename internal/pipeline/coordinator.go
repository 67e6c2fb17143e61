// Package pipeline coordinates the capture → transcribe → summarize flow.
//
// A single worker goroutine consumes captured segments in FIFO order, so
// the two inference stages never run concurrently. Every window of
// transcribed segments triggers a partial summarization pass; Stop drains
// the queue within a bounded window, runs the final pass, and emits
// exactly one output record for the meeting.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/edgescribe/edgescribe/internal/audio"
	"github.com/edgescribe/edgescribe/internal/config"
	apperrors "github.com/edgescribe/edgescribe/internal/errors"
	"github.com/edgescribe/edgescribe/internal/output"
	"github.com/edgescribe/edgescribe/internal/resilience"
	"github.com/edgescribe/edgescribe/internal/summarize"
	"github.com/edgescribe/edgescribe/internal/syncx"
	"github.com/edgescribe/edgescribe/internal/trace"
	"github.com/edgescribe/edgescribe/internal/transcribe"
	"github.com/edgescribe/edgescribe/internal/transcript"
)

// ErrNotRunning is returned by Stop when no meeting is in progress.
var ErrNotRunning = apperrors.New(apperrors.NotRunning, "no meeting in progress")

// State is the coordinator lifecycle state.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateDraining
	StateFinalized
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateFinalized:
		return "finalized"
	default:
		return "unknown"
	}
}

// Phase is the user-visible activity within a running meeting.
type Phase string

const (
	PhaseIdle         Phase = "Idle"
	PhaseListening    Phase = "Listening"
	PhaseTranscribing Phase = "Transcribing"
	PhaseSummarizing  Phase = "Summarizing"
	PhaseFinalizing   Phase = "Finalizing"
	PhaseComplete     Phase = "Complete"
)

// Status is a point-in-time snapshot of pipeline progress.
type Status struct {
	MeetingID         string    `json:"meeting_id"`
	State             string    `json:"state"`
	Phase             Phase     `json:"phase"`
	StartedAt         time.Time `json:"started_at,omitempty"`
	SegmentsCaptured  int       `json:"segments_captured"`
	SegmentsProcessed int       `json:"segments_processed"`
	SegmentsFailed    int       `json:"segments_failed"`
	WindowsSummarized int       `json:"windows_summarized"`
	WordsTranscribed  int       `json:"words_transcribed"`
	QueueDepth        int       `json:"queue_depth"`
	LastAction        string    `json:"last_action"`
	Connectivity      string    `json:"connectivity"`
}

// Capture is the audio source lifecycle as seen by the coordinator.
type Capture interface {
	Start() error
	Stop()
}

// CaptureFactory builds the capture source once the coordinator can hand
// it the segment delivery callback.
type CaptureFactory func(onSegment func(path string)) (Capture, error)

// Deps are the coordinator's collaborators. Tests substitute fakes.
type Deps struct {
	NewCapture  CaptureFactory
	Transcriber transcribe.Engine
	Summarizer  summarize.Engine
	Store       *transcript.Store
	Writer      *output.Writer
	Delete      func(path string) error
	Now         func() time.Time
	MeetingID   string // empty generates a fresh one
}

// Coordinator runs one meeting from Start to Stop.
type Coordinator struct {
	cfg  *config.Config
	deps Deps
	log  *slog.Logger

	meetingID string
	queue     *syncx.Queue[string]
	status    *syncx.RWGuard[Status]
	breaker   *resilience.Breaker

	// worker-owned, never touched outside the worker goroutine
	partials []summarize.Partial

	lifecycle    *syncx.RWGuard[State]
	startedAt    time.Time
	stopCh       chan struct{}
	workerCh     chan struct{}
	workerCtx    context.Context
	workerCancel context.CancelFunc
	capture      Capture
}

// New wires a coordinator for a single meeting. The capture factory is
// invoked immediately so device or model problems surface before Start.
func New(cfg *config.Config, deps Deps, log *slog.Logger) (*Coordinator, error) {
	if log == nil {
		log = slog.Default()
	}
	if deps.Delete == nil {
		deps.Delete = audio.Delete
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	meetingID := deps.MeetingID
	if meetingID == "" {
		meetingID = uuid.NewString()
	}
	c := &Coordinator{
		cfg:       cfg,
		deps:      deps,
		log:       log.With(slog.String("meeting_id", meetingID)),
		meetingID: meetingID,
		queue:     syncx.NewQueue[string](),
		breaker:   resilience.New(resilience.InferenceConfig()),
		lifecycle: syncx.NewGuard(StateIdle),
		status: syncx.NewGuard(Status{
			MeetingID:    meetingID,
			State:        StateIdle.String(),
			Phase:        PhaseIdle,
			Connectivity: "offline",
		}),
	}

	capture, err := deps.NewCapture(c.enqueue)
	if err != nil {
		return nil, err
	}
	c.capture = capture
	return c, nil
}

// NewSession builds a coordinator with the real capture source and
// inference engines, rooted in a fresh per-meeting session directory.
func NewSession(cfg *config.Config, log *slog.Logger) (*Coordinator, error) {
	whisper, err := transcribe.NewWhisperCLI(cfg.Whisper.Binary, cfg.Whisper.ModelPath, cfg.Whisper.Language)
	if err != nil {
		return nil, err
	}

	meetingID := uuid.NewString()
	sessionDir := filepath.Join(cfg.BaseDir, "sessions", meetingID)
	audioDir := filepath.Join(sessionDir, "audio")
	for _, d := range []string{audioDir, filepath.Join(sessionDir, "transcripts"), filepath.Join(sessionDir, "summaries")} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("creating session dir: %w", err)
		}
	}

	llama, err := summarize.NewLlamaCLI(cfg.Llama.Binary, cfg.Llama.ModelPath, filepath.Join(sessionDir, "summaries"))
	if err != nil {
		return nil, err
	}
	store, err := transcript.NewStore(filepath.Join(sessionDir, "transcripts"), 64)
	if err != nil {
		return nil, err
	}
	writer, err := output.NewWriter(filepath.Join(cfg.BaseDir, "output"))
	if err != nil {
		return nil, err
	}

	deps := Deps{
		NewCapture: func(onSegment func(string)) (Capture, error) {
			return audio.NewCapturer(audioDir,
				cfg.Audio.SampleRate, cfg.Audio.SegmentSeconds,
				cfg.Audio.InputDevice, onSegment, log), nil
		},
		Transcriber: whisper,
		Summarizer:  llama,
		Store:       store,
		Writer:      writer,
		MeetingID:   meetingID,
	}

	c, err := New(cfg, deps, log)
	if err != nil {
		return nil, err
	}
	c.log.Info("session created", slog.String("dir", sessionDir))
	return c, nil
}

// Start begins capture and launches the worker. Calling Start on a
// running coordinator is a logged no-op.
func (c *Coordinator) Start(ctx context.Context) error {
	already := c.lifecycle.Update(func(s *State) any {
		if *s != StateIdle {
			return true
		}
		*s = StateRunning
		return false
	}).(bool)
	if already {
		c.log.Info("start ignored, meeting already running")
		return nil
	}

	c.startedAt = c.deps.Now()
	c.stopCh = make(chan struct{})
	c.workerCh = make(chan struct{})
	c.workerCtx, c.workerCancel = context.WithCancel(context.Background())

	if err := c.capture.Start(); err != nil {
		c.workerCancel()
		c.lifecycle.Set(StateIdle)
		return err
	}

	c.updateStatus(func(s *Status) {
		s.State = StateRunning.String()
		s.Phase = PhaseListening
		s.StartedAt = c.startedAt
		s.LastAction = "meeting started"
	})
	go c.worker()

	trace.Logger(ctx).Info("meeting started",
		slog.String("meeting_id", c.meetingID),
		slog.Int("window_segments", c.cfg.Pipeline.WindowSegments))
	return nil
}

// Stop ends capture, drains pending segments within the configured
// bound, finalizes the summary, and writes the meeting record. Exactly
// one record is produced per started meeting.
func (c *Coordinator) Stop(ctx context.Context) (output.Record, error) {
	ok := c.lifecycle.Update(func(s *State) any {
		if *s != StateRunning {
			return false
		}
		*s = StateDraining
		return true
	}).(bool)
	if !ok {
		return output.Record{}, ErrNotRunning
	}

	log := trace.Logger(ctx).With(slog.String("meeting_id", c.meetingID))
	log.Info("stopping, draining queue", slog.Int("pending", c.queue.Len()))
	c.updateStatus(func(s *Status) {
		s.State = StateDraining.String()
		s.LastAction = "draining segment queue"
	})

	// Flushes the trailing partial segment through the enqueue callback
	// before the drain wait starts.
	c.capture.Stop()

	// The drain bound is the configured timeout regardless of the
	// caller's context state; a disconnected client must not shorten it.
	stopCtx := context.WithoutCancel(ctx)
	drainCtx, cancel := context.WithTimeout(stopCtx, c.cfg.Pipeline.DrainTimeout())
	defer cancel()
	if err := c.queue.WaitIdle(drainCtx); err != nil {
		log.Warn("drain timed out, finalizing with partial results",
			slog.Int("abandoned", c.queue.Outstanding()))
		// Cancels the in-flight inference left over from the timed-out
		// drain so the worker cannot hold up finalization.
		c.workerCancel()
	}

	// On a clean drain the worker may still be inside a windowed pass
	// triggered by the last segment; let it finish before finalizing.
	close(c.stopCh)
	<-c.workerCh
	c.workerCancel()

	c.updateStatus(func(s *Status) {
		s.Phase = PhaseFinalizing
		s.LastAction = "generating final summary"
	})

	// The final combination always runs, even with the window breaker
	// open: there is exactly one call left and no worker to protect.
	summary, err := c.deps.Summarizer.Final(stopCtx, c.deps.Store.Full(), c.partials)
	if err != nil {
		log.Error("final summarization failed, emitting empty summary",
			slog.String("error", err.Error()))
		summary = summarize.Summary{}.Normalize()
	}

	rec := output.Build(c.meetingID, c.startedAt, c.deps.Now(),
		c.deps.Store.Full(), summary, c.deps.Store.Words(), c.processedCount())

	path, werr := c.deps.Writer.Write(rec)
	if werr != nil {
		log.Error("writing meeting record failed", slog.String("error", werr.Error()))
	} else {
		log.Info("meeting record written", slog.String("path", path))
	}

	c.lifecycle.Set(StateFinalized)
	c.updateStatus(func(s *Status) {
		s.State = StateFinalized.String()
		s.Phase = PhaseComplete
		s.LastAction = "meeting complete"
		s.QueueDepth = 0
	})
	return rec, werr
}

// Status returns a copy of the current progress snapshot.
func (c *Coordinator) Status() Status {
	s := c.status.Get()
	s.QueueDepth = c.queue.Len()
	return s
}

// LiveTranscript returns the full timestamped transcript so far.
func (c *Coordinator) LiveTranscript() string { return c.deps.Store.Full() }

// TranscriptEvents exposes the store's live segment feed.
func (c *Coordinator) TranscriptEvents() <-chan transcript.Event { return c.deps.Store.Events() }

// MeetingID returns the meeting's unique identifier.
func (c *Coordinator) MeetingID() string { return c.meetingID }

// enqueue is the capture callback. It only records and hands off, so the
// capture goroutine never blocks on inference.
func (c *Coordinator) enqueue(path string) {
	c.queue.Push(path)
	c.updateStatus(func(s *Status) {
		s.SegmentsCaptured++
		s.LastAction = "segment captured"
	})
}

// worker is the single consumer. All transcription and summarization
// happens here, which is what keeps the two stages mutually exclusive.
func (c *Coordinator) worker() {
	defer close(c.workerCh)
	poll := c.cfg.Pipeline.PollTimeout()

	for {
		select {
		case <-c.stopCh:
			return
		default:
		}

		path, ok := c.queue.PopTimeout(poll)
		if !ok {
			continue
		}
		c.process(path)
		c.queue.Done()

		if w := c.cfg.Pipeline.WindowSegments; w > 0 && c.deps.Store.Count()%w == 0 {
			c.summarizeWindow()
		}

		if c.lifecycle.Get() == StateRunning {
			c.updateStatus(func(s *Status) { s.Phase = PhaseListening })
		}
	}
}

func (c *Coordinator) process(path string) {
	ctx, span := trace.StartSpan(c.workerCtx, "transcribe_segment")
	span.SetAttr("path", filepath.Base(path))
	defer span.End()

	c.updateStatus(func(s *Status) {
		s.Phase = PhaseTranscribing
		s.LastAction = "transcribing " + filepath.Base(path)
	})

	var text string
	err := resilience.Retry(ctx, resilience.SegmentRetryConfig(), func() error {
		t, terr := c.deps.Transcriber.Transcribe(ctx, path)
		if terr != nil {
			return terr
		}
		text = t
		return nil
	})
	if err != nil {
		// Failed segments still occupy their slot in the transcript so
		// indices stay aligned with capture order.
		trace.Logger(ctx).Warn("segment transcription failed",
			slog.String("path", path),
			slog.String("error", err.Error()))
		text = ""
	}

	entry := c.deps.Store.Append(text)

	if derr := c.deps.Delete(path); derr != nil {
		trace.Logger(ctx).Warn("segment cleanup failed",
			slog.String("path", path),
			slog.String("error", derr.Error()))
	}

	c.updateStatus(func(s *Status) {
		s.SegmentsProcessed++
		s.WordsTranscribed = c.deps.Store.Words()
		if err != nil {
			s.SegmentsFailed++
		}
	})
	span.SetAttr("segment", entry.Index)
	span.SetAttr("failed", err != nil)
}

func (c *Coordinator) summarizeWindow() {
	w := c.cfg.Pipeline.WindowSegments
	text := c.deps.Store.Recent(w)

	ctx, span := trace.StartSpan(c.workerCtx, "summarize_window")
	span.SetAttr("window_segments", w)
	defer span.End()

	c.updateStatus(func(s *Status) {
		s.Phase = PhaseSummarizing
		s.LastAction = "summarizing recent segments"
	})

	partial, err := resilience.ExecuteWithResult(c.breaker, func() (summarize.Partial, error) {
		return c.deps.Summarizer.Window(ctx, text)
	})
	if err != nil {
		// Keep one partial per window even on failure, so the final
		// pass sees a complete sequence.
		trace.Logger(ctx).Warn("window summarization failed",
			slog.String("error", err.Error()),
			slog.String("breaker", c.breaker.State().String()))
		partial = summarize.Partial{}.Normalize()
	}
	c.partials = append(c.partials, partial)

	c.updateStatus(func(s *Status) {
		s.WindowsSummarized = len(c.partials)
	})
}

func (c *Coordinator) processedCount() int {
	return c.status.Get().SegmentsProcessed
}

func (c *Coordinator) updateStatus(fn func(*Status)) {
	c.status.Write(fn)
}
