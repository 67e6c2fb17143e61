package summarize

import (
	"encoding/json"
	"strings"
)

// extractJSON returns the outermost {...} block in model output, if any.
// Local models wrap JSON in chatter; anything outside the braces is noise.
func extractJSON(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

// parsePartial parses a windowed pass response, degrading to empty fields
// on malformed output.
func parsePartial(raw string) (Partial, bool) {
	block, ok := extractJSON(raw)
	if !ok {
		return Partial{}.Normalize(), false
	}
	var p Partial
	if err := json.Unmarshal([]byte(block), &p); err != nil {
		return Partial{}.Normalize(), false
	}
	return p.Normalize(), true
}

// parseSummary parses a final-combination response, degrading to empty
// fields on malformed output.
func parseSummary(raw string) (Summary, bool) {
	block, ok := extractJSON(raw)
	if !ok {
		return Summary{}.Normalize(), false
	}
	var s Summary
	if err := json.Unmarshal([]byte(block), &s); err != nil {
		return Summary{}.Normalize(), false
	}
	return s.Normalize(), true
}
