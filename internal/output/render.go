package output

import (
	"fmt"
	"io"
	"strings"
)

// Render pretty-prints the final meeting record for the terminal.
func Render(w io.Writer, rec Record) {
	rule := strings.Repeat("=", 60)

	fmt.Fprintf(w, "\n%s\n  MEETING SUMMARY\n%s\n", rule, rule)
	fmt.Fprintf(w, "  Date     : %s\n", rec.MeetingDate)
	fmt.Fprintf(w, "  Duration : %s\n", rec.Duration)
	fmt.Fprintf(w, "  Words    : %d\n", rec.WordsTranscribed)
	fmt.Fprintf(w, "  Segments : %d\n", rec.SegmentsProcessed)
	fmt.Fprintf(w, "  Mode     : %s\n\n", rec.ProcessingMode)

	renderList(w, "ACTION ITEMS", rec.ActionItems)
	renderList(w, "DECISIONS MADE", rec.DecisionsMade)
	renderList(w, "KEY DISCUSSION POINTS", rec.KeyDiscussionPoints)

	fmt.Fprintf(w, "  FOLLOW-UP EMAIL DRAFT:\n  %s\n", strings.Repeat("-", 50))
	for _, line := range strings.Split(rec.FollowUpEmailDraft, "\n") {
		fmt.Fprintf(w, "  %s\n", line)
	}
	fmt.Fprintf(w, "%s\n", rule)
}

func renderList(w io.Writer, title string, items []string) {
	fmt.Fprintf(w, "  %s:\n", title)
	if len(items) == 0 {
		fmt.Fprintf(w, "     (none)\n")
	}
	for i, item := range items {
		fmt.Fprintf(w, "     %d. %s\n", i+1, item)
	}
	fmt.Fprintln(w)
}
