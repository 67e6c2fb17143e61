// Package summarize provides the local LLM summarization boundary.
//
// A windowed pass compresses the most recent transcript span into a
// partial summary; the final pass combines all partials (or the full
// transcript directly for short meetings) into the meeting summary.
package summarize

import "context"

// Partial is the structured output of one windowed summarization pass.
type Partial struct {
	KeyPoints   []string `json:"key_points"`
	Decisions   []string `json:"decisions"`
	ActionItems []string `json:"action_items"`
}

// Summary is the combined end-of-meeting result.
type Summary struct {
	ActionItems         []string `json:"action_items"`
	DecisionsMade       []string `json:"decisions_made"`
	KeyDiscussionPoints []string `json:"key_discussion_points"`
	FollowUpEmailDraft  string   `json:"follow_up_email_draft"`
}

// Engine produces structured summaries from transcript text.
type Engine interface {
	// Window summarizes one contiguous transcript span.
	Window(ctx context.Context, text string) (Partial, error)
	// Final combines partials into the meeting summary. With no partials
	// it summarizes fullTranscript directly.
	Final(ctx context.Context, fullTranscript string, partials []Partial) (Summary, error)
}

// Normalize replaces nil slices with empty ones so downstream JSON output
// always carries well-formed arrays.
func (p Partial) Normalize() Partial {
	if p.KeyPoints == nil {
		p.KeyPoints = []string{}
	}
	if p.Decisions == nil {
		p.Decisions = []string{}
	}
	if p.ActionItems == nil {
		p.ActionItems = []string{}
	}
	return p
}

// Normalize replaces nil slices with empty ones.
func (s Summary) Normalize() Summary {
	if s.ActionItems == nil {
		s.ActionItems = []string{}
	}
	if s.DecisionsMade == nil {
		s.DecisionsMade = []string{}
	}
	if s.KeyDiscussionPoints == nil {
		s.KeyDiscussionPoints = []string{}
	}
	return s
}

// IsEmpty reports whether a summary carries no content at all.
func (s Summary) IsEmpty() bool {
	return len(s.ActionItems) == 0 && len(s.DecisionsMade) == 0 &&
		len(s.KeyDiscussionPoints) == 0 && s.FollowUpEmailDraft == ""
}
