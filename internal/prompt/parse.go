package prompt

import (
	"fmt"
	"strings"
)

// HasCompletionMarker reports whether capture contains the completion
// marker for sigID.
func HasCompletionMarker(capture, sigID string) bool {
	return strings.Contains(capture, fmt.Sprintf("<promise>%s-DONE</promise>", sigID))
}

// ExtractSummary returns the body of a <promise-summary>{sigID}...</promise-summary>
// block, skipping the first line (which carries the id), or "" if absent.
func ExtractSummary(capture, sigID string) string {
	open := fmt.Sprintf("<promise-summary>%s", sigID)
	start := strings.Index(capture, open)
	if start < 0 {
		return ""
	}
	rest := capture[start+len(open):]
	end := strings.Index(rest, "</promise-summary>")
	if end < 0 {
		return ""
	}
	body := rest[:end]
	// Skip the remainder of the id line itself.
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		body = body[nl+1:]
	} else {
		return ""
	}
	return strings.TrimSpace(body)
}
