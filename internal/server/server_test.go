package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	apperrors "github.com/edgescribe/edgescribe/internal/errors"
	"github.com/edgescribe/edgescribe/internal/output"
	"github.com/edgescribe/edgescribe/internal/pipeline"
	"github.com/edgescribe/edgescribe/internal/transcript"
)

// mockPipeline for testing.
type mockPipeline struct {
	status     pipeline.Status
	transcript string
	stopRec    output.Record
	stopErr    error
	stopCalls  int
	eventsCh   chan transcript.Event
}

func newMockPipeline() *mockPipeline {
	return &mockPipeline{
		status: pipeline.Status{
			MeetingID:         "test-meeting",
			State:             "running",
			Phase:             pipeline.PhaseListening,
			SegmentsProcessed: 4,
			Connectivity:      "offline",
		},
		transcript: "[10:00:00] hello there\n[10:00:30] still talking\n",
		eventsCh:   make(chan transcript.Event, 10),
	}
}

func (m *mockPipeline) Status() pipeline.Status                   { return m.status }
func (m *mockPipeline) LiveTranscript() string                    { return m.transcript }
func (m *mockPipeline) TranscriptEvents() <-chan transcript.Event { return m.eventsCh }
func (m *mockPipeline) Stop(context.Context) (output.Record, error) {
	m.stopCalls++
	return m.stopRec, m.stopErr
}

func newTestServer(t *testing.T, pipe Pipeline) *Server {
	t.Helper()
	s := New(pipe)
	t.Cleanup(s.Close)
	return s
}

func TestCORSMiddleware(t *testing.T) {
	handler := corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// Test OPTIONS request
	req := httptest.NewRequest("OPTIONS", "/test", http.NoBody)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("OPTIONS status = %d, want %d", rec.Code, http.StatusOK)
	}
	if v := rec.Header().Get("Access-Control-Allow-Origin"); v != "*" {
		t.Errorf("CORS origin = %q, want %q", v, "*")
	}

	// Test regular request
	req = httptest.NewRequest("GET", "/test", http.NoBody)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("GET status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestStatusEndpoint(t *testing.T) {
	s := newTestServer(t, newMockPipeline())

	req := httptest.NewRequest("GET", "/api/status", http.NoBody)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var got pipeline.Status
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding status: %v", err)
	}
	if got.MeetingID != "test-meeting" {
		t.Errorf("meeting id = %q, want %q", got.MeetingID, "test-meeting")
	}
	if got.SegmentsProcessed != 4 {
		t.Errorf("segments processed = %d, want 4", got.SegmentsProcessed)
	}
	if got.Connectivity != "offline" {
		t.Errorf("connectivity = %q, want offline", got.Connectivity)
	}
}

func TestTranscriptEndpoint(t *testing.T) {
	pipe := newMockPipeline()
	s := newTestServer(t, pipe)

	req := httptest.NewRequest("GET", "/api/transcript", http.NoBody)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var got map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding transcript: %v", err)
	}
	if got["transcript"] != pipe.transcript {
		t.Errorf("transcript = %q, want %q", got["transcript"], pipe.transcript)
	}
}

func TestTranscriptEndpointTruncates(t *testing.T) {
	pipe := newMockPipeline()
	pipe.transcript = strings.Repeat("a", TranscriptPreviewLimit+100)
	s := newTestServer(t, pipe)

	req := httptest.NewRequest("GET", "/api/transcript", http.NoBody)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var got map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding transcript: %v", err)
	}
	if len(got["transcript"]) != TranscriptPreviewLimit+3 {
		t.Errorf("transcript length = %d, want %d", len(got["transcript"]), TranscriptPreviewLimit+3)
	}
	if !strings.HasSuffix(got["transcript"], "...") {
		t.Error("truncated transcript missing ellipsis")
	}
}

func TestTranscriptEndpointTruncatesOnRuneBoundary(t *testing.T) {
	pipe := newMockPipeline()
	// Three-byte runes ensure the byte limit lands mid-rune.
	pipe.transcript = strings.Repeat("€", TranscriptPreviewLimit)
	s := newTestServer(t, pipe)

	req := httptest.NewRequest("GET", "/api/transcript", http.NoBody)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var got map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding transcript: %v", err)
	}
	text := got["transcript"]
	if !utf8.ValidString(text) {
		t.Error("truncated transcript is not valid UTF-8")
	}
	if !strings.HasSuffix(text, "...") {
		t.Fatal("truncated transcript missing ellipsis")
	}
	body := strings.TrimSuffix(text, "...")
	if len(body) > TranscriptPreviewLimit {
		t.Errorf("preview is %d bytes, want at most %d", len(body), TranscriptPreviewLimit)
	}
	if len(body)%3 != 0 {
		t.Errorf("cut split a rune: %d bytes kept", len(body))
	}
}

func TestStopEndpoint(t *testing.T) {
	pipe := newMockPipeline()
	pipe.stopRec = output.Record{
		MeetingID:      "test-meeting",
		ProcessingMode: output.ProcessingMode,
	}
	s := newTestServer(t, pipe)

	req := httptest.NewRequest("POST", "/api/meeting/stop", http.NoBody)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if pipe.stopCalls != 1 {
		t.Errorf("stop called %d times, want 1", pipe.stopCalls)
	}

	var got output.Record
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding record: %v", err)
	}
	if got.MeetingID != "test-meeting" {
		t.Errorf("meeting id = %q, want %q", got.MeetingID, "test-meeting")
	}
}

func TestStopEndpointNotRunning(t *testing.T) {
	pipe := newMockPipeline()
	pipe.stopErr = apperrors.New(apperrors.NotRunning, "no meeting in progress")
	s := newTestServer(t, pipe)

	req := httptest.NewRequest("POST", "/api/meeting/stop", http.NoBody)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusConflict)
	}
}

func TestStopEndpointRequiresPost(t *testing.T) {
	s := newTestServer(t, newMockPipeline())

	req := httptest.NewRequest("GET", "/api/meeting/stop", http.NoBody)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code == http.StatusOK {
		t.Error("GET on stop endpoint should not succeed")
	}
}

func TestRateLimiter(t *testing.T) {
	rl := &rateLimiter{}

	for i := 0; i < RateLimitMessages; i++ {
		if !rl.allow() {
			t.Fatalf("message %d rejected inside the window budget", i)
		}
	}
	if rl.allow() {
		t.Error("message over budget was allowed")
	}
}

func TestMessageTypes(t *testing.T) {
	tests := []struct {
		name    string
		msg     interface{}
		typeVal string
	}{
		{
			"status",
			StatusMessage{Type: "status", Status: pipeline.Status{MeetingID: "m"}},
			"status",
		},
		{
			"transcript",
			TranscriptMessage{Type: "transcript", Segment: 3, Text: "hello"},
			"transcript",
		},
		{
			"rate limited",
			RateLimitedMessage{Type: "error", Message: "rate limit exceeded"},
			"error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.msg)
			if err != nil {
				t.Fatalf("json.Marshal error: %v", err)
			}

			var base Message
			if err := json.Unmarshal(data, &base); err != nil {
				t.Fatalf("json.Unmarshal error: %v", err)
			}

			if base.Type != tt.typeVal {
				t.Errorf("type = %q, want %q", base.Type, tt.typeVal)
			}
		})
	}
}

func TestBroadcastTranscriptEvents(t *testing.T) {
	pipe := newMockPipeline()
	s := newTestServer(t, pipe)
	_ = s

	pipe.eventsCh <- transcript.Event{Index: 1, Text: "hello"}
	close(pipe.eventsCh)

	// Broadcaster must drain the channel without connected clients.
	deadline := time.After(time.Second)
	for {
		select {
		case <-deadline:
			t.Fatal("broadcaster did not drain events")
		default:
		}
		if len(pipe.eventsCh) == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
}
