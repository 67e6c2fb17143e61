// Package output assembles and persists the per-meeting output record.
package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/edgescribe/edgescribe/internal/summarize"
)

// ProcessingMode tags every record produced by this build.
const ProcessingMode = "100% Local | Zero Cloud"

// Record is the immutable end-of-meeting snapshot. Field names form a
// stable schema for downstream consumers.
type Record struct {
	MeetingID           string   `json:"meeting_id"`
	MeetingDate         string   `json:"meeting_date"`
	MeetingTime         string   `json:"meeting_time"`
	Duration            string   `json:"duration"`
	FullTranscript      string   `json:"full_transcript"`
	ActionItems         []string `json:"action_items"`
	DecisionsMade       []string `json:"decisions_made"`
	KeyDiscussionPoints []string `json:"key_discussion_points"`
	FollowUpEmailDraft  string   `json:"follow_up_email_draft"`
	ProcessingMode      string   `json:"processing_mode"`
	WordsTranscribed    int      `json:"words_transcribed"`
	SegmentsProcessed   int      `json:"segments_processed"`
}

// Build assembles a record from the meeting's final state.
func Build(meetingID string, start, end time.Time, transcript string, summary summarize.Summary, words, segments int) Record {
	summary = summary.Normalize()

	duration := "0 min"
	if !start.IsZero() {
		duration = fmt.Sprintf("%d min", int(end.Sub(start).Minutes()))
	}

	meetingTime := ""
	if !start.IsZero() {
		meetingTime = start.Format("15:04:05")
	}

	return Record{
		MeetingID:           meetingID,
		MeetingDate:         end.Format("2006-01-02"),
		MeetingTime:         meetingTime,
		Duration:            duration,
		FullTranscript:      transcript,
		ActionItems:         summary.ActionItems,
		DecisionsMade:       summary.DecisionsMade,
		KeyDiscussionPoints: summary.KeyDiscussionPoints,
		FollowUpEmailDraft:  summary.FollowUpEmailDraft,
		ProcessingMode:      ProcessingMode,
		WordsTranscribed:    words,
		SegmentsProcessed:   segments,
	}
}

// Writer persists one record per completed meeting.
type Writer struct {
	dir string
	now func() time.Time
}

// NewWriter creates a writer rooted at dir.
func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output dir: %w", err)
	}
	return &Writer{dir: dir, now: time.Now}, nil
}

// Write persists the record as JSON, named by its completion timestamp.
// Returns the path written.
func (w *Writer) Write(rec Record) (string, error) {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding output record: %w", err)
	}

	name := fmt.Sprintf("meeting_%s.json", w.now().Format("20060102_150405"))
	path := filepath.Join(w.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing output record: %w", err)
	}
	return path, nil
}
