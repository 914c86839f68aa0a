package provider

import (
	"strings"
	"unicode/utf8"
)

// Status is the heuristically-detected (or multiplexer-reported) state of
// an agent's pane.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusWaiting Status = "waiting"
	StatusWorking Status = "working"
)

// spinnerGlyphs is the closed set of braille/circle spinner frames common
// across the provider CLIs' progress indicators.
var spinnerGlyphs = "⠋⠙⠹⠸⠼⠴⠦⠧⠇⠏◐◓◑◒"

var workingKeywords = []string{"Thinking", "Generating", "Processing", "Analyzing", "Writing", "Reading"}

var promptMarkers = []string{"❯", ">>>", "claude>"}

// FromOption maps the authoritative `cc_state` multiplexer option value,
// when present, to a Status. ok is false for an unrecognized value.
func FromOption(value string) (Status, bool) {
	switch value {
	case "busy":
		return StatusWorking, true
	case "user":
		return StatusWaiting, true
	case "idle":
		return StatusIdle, true
	default:
		return "", false
	}
}

// DetectStatus heuristically classifies a captured pane's trailing text
// when no authoritative cc_state option is set.
func DetectStatus(capture string) Status {
	trimmed := strings.TrimSpace(capture)
	if trimmed == "" {
		return StatusIdle
	}

	lines := strings.Split(strings.TrimRight(capture, "\n"), "\n")
	lastLine := strings.TrimRight(lines[len(lines)-1], " \t\r")
	lastLineTrimmed := strings.TrimSpace(lastLine)

	for _, marker := range promptMarkers {
		if strings.Contains(lastLineTrimmed, marker) {
			return StatusWaiting
		}
	}
	if strings.HasSuffix(lastLineTrimmed, "$") || strings.HasSuffix(lastLineTrimmed, "?") {
		return StatusWaiting
	}

	tail := lines
	if len(tail) > 10 {
		tail = tail[len(tail)-10:]
	}
	for _, line := range tail {
		if containsSpinnerGlyph(line) {
			return StatusWorking
		}
	}
	if utf8.RuneCountInString(lastLineTrimmed) <= 5 && isAsciiSpinner(lastLineTrimmed) {
		return StatusWorking
	}
	for _, line := range tail {
		for _, kw := range workingKeywords {
			if strings.Contains(line, kw) {
				return StatusWorking
			}
		}
	}
	if len(trimmed) > 500 {
		return StatusWorking
	}

	return StatusIdle
}

func containsSpinnerGlyph(line string) bool {
	for _, r := range line {
		if strings.ContainsRune(spinnerGlyphs, r) {
			return true
		}
	}
	return false
}

func isAsciiSpinner(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch r {
		case '|', '/', '-', '\\':
		default:
			return false
		}
	}
	return true
}
