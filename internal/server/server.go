// Package server provides HTTP and WebSocket handlers
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	apperrors "github.com/edgescribe/edgescribe/internal/errors"
	"github.com/edgescribe/edgescribe/internal/output"
	"github.com/edgescribe/edgescribe/internal/pipeline"
	"github.com/edgescribe/edgescribe/internal/trace"
	"github.com/edgescribe/edgescribe/internal/transcript"
)

// Pipeline is the coordinator surface the server needs.
type Pipeline interface {
	Status() pipeline.Status
	LiveTranscript() string
	TranscriptEvents() <-chan transcript.Event
	Stop(ctx context.Context) (output.Record, error)
}

// Message types.
type Message struct {
	Type string `json:"type"`
}

type StatusMessage struct {
	Type   string          `json:"type"`
	Status pipeline.Status `json:"status"`
}

type TranscriptMessage struct {
	Type    string `json:"type"`
	Segment int    `json:"segment"`
	Text    string `json:"text"`
}

type RateLimitedMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// rateLimiter tracks message timestamps using a sliding window.
type rateLimiter struct {
	timestamps []time.Time
	mu         sync.Mutex
}

// allow checks if a message is allowed and records the timestamp if so.
func (r *rateLimiter) allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-RateLimitWindow)

	// Prune old timestamps
	valid := r.timestamps[:0]
	for _, t := range r.timestamps {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	r.timestamps = valid

	if len(r.timestamps) >= RateLimitMessages {
		return false
	}

	r.timestamps = append(r.timestamps, now)
	return true
}

// Server exposes live meeting state over HTTP and WebSocket.
type Server struct {
	pipe       Pipeline
	mu         sync.RWMutex
	conns      map[*websocket.Conn]struct{}
	rateLimits map[*websocket.Conn]*rateLimiter
	stopPush   chan struct{}
}

// New creates a new server bound to one running meeting.
func New(pipe Pipeline) *Server {
	s := &Server{
		pipe:       pipe,
		conns:      make(map[*websocket.Conn]struct{}),
		rateLimits: make(map[*websocket.Conn]*rateLimiter),
		stopPush:   make(chan struct{}),
	}

	// Start broadcasters
	go s.broadcastTranscripts()
	go s.pushStatus()

	return s
}

// Close stops the periodic status broadcaster.
func (s *Server) Close() {
	close(s.stopPush)
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// WebSocket endpoint
	mux.HandleFunc("/ws", s.handleWebSocket)

	// REST API
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/transcript", s.handleTranscript)
	mux.HandleFunc("POST /api/meeting/stop", s.handleStop)

	// Apply middleware: trace -> CORS
	return corsMiddleware(trace.Middleware(mux))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("websocket accept error", "error", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.rateLimits[conn] = &rateLimiter{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		delete(s.rateLimits, conn)
		s.mu.Unlock()
	}()

	baseCtx := r.Context()
	log := trace.Logger(baseCtx)
	log.Info("websocket connected", "remote", r.RemoteAddr)

	// New clients get the current state immediately rather than waiting
	// for the next push tick.
	_ = wsjson.Write(baseCtx, conn, StatusMessage{Type: "status", Status: s.pipe.Status()})

	for {
		var msg json.RawMessage
		if err := wsjson.Read(baseCtx, conn, &msg); err != nil {
			log.Debug("websocket read error", "error", err)
			return
		}

		s.mu.RLock()
		rl := s.rateLimits[conn]
		s.mu.RUnlock()

		if !rl.allow() {
			log.Warn("rate limit exceeded", "remote", r.RemoteAddr)
			_ = wsjson.Write(baseCtx, conn, RateLimitedMessage{
				Type:    "error",
				Message: "rate limit exceeded",
			})
			continue
		}

		var base Message
		if err := json.Unmarshal(msg, &base); err != nil {
			continue
		}

		switch base.Type {
		case "status":
			_ = wsjson.Write(baseCtx, conn, StatusMessage{Type: "status", Status: s.pipe.Status()})
		case "transcript":
			_ = wsjson.Write(baseCtx, conn, TranscriptMessage{
				Type: "transcript_full",
				Text: s.pipe.LiveTranscript(),
			})
		}
	}
}

func (s *Server) broadcastTranscripts() {
	for evt := range s.pipe.TranscriptEvents() {
		msg := TranscriptMessage{
			Type:    "transcript",
			Segment: evt.Index,
			Text:    evt.Text,
		}
		s.broadcast(msg)
	}
}

func (s *Server) pushStatus() {
	ticker := time.NewTicker(StatusPushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopPush:
			return
		case <-ticker.C:
			s.broadcast(StatusMessage{Type: "status", Status: s.pipe.Status()})
		}
	}
}

func (s *Server) broadcast(msg interface{}) {
	s.mu.RLock()
	for conn := range s.conns {
		go func(c *websocket.Conn) {
			_ = wsjson.Write(context.Background(), c, msg)
		}(conn)
	}
	s.mu.RUnlock()
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.pipe.Status())
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	text := s.pipe.LiveTranscript()
	if len(text) > TranscriptPreviewLimit {
		// Back up to a rune boundary so the cut never splits UTF-8.
		cut := TranscriptPreviewLimit
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut] + "..."
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"transcript": text})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	rec, err := s.pipe.Stop(r.Context())
	if err != nil {
		if apperrors.IsCode(err, apperrors.NotRunning) {
			http.Error(w, "no meeting in progress", http.StatusConflict)
			return
		}
		trace.Logger(r.Context()).Error("stop failed", "error", err)
		http.Error(w, "stop failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rec)
}
