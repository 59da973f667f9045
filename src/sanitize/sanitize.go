// Package sanitize cleans raw build runner output for display and for MCP
// tool responses. Node and webpack tooling colors its output and redraws
// progress lines with carriage returns; neither survives a text pane or a
// tool response well.
package sanitize

import (
	"regexp"
	"strings"
)

var (
	// ANSI escape codes: \x1b[...m (SGR sequences)
	ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*m`)

	// Cursor movement and erase sequences emitted by progress spinners.
	cursorPattern = regexp.MustCompile(`\x1b\[[0-9;]*[ABCDEFGJK]`)
)

// StripANSI removes ANSI color and cursor control sequences.
func StripANSI(s string) string {
	s = ansiPattern.ReplaceAllString(s, "")
	s = cursorPattern.ReplaceAllString(s, "")
	return s
}

// Clean strips ANSI sequences and normalizes line endings. Progress lines
// redrawn with a bare carriage return keep only their final state.
func Clean(s string) string {
	s = StripANSI(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")

	// "text\rmore" means "more" overwrote "text" on the same line.
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if idx := strings.LastIndex(line, "\r"); idx >= 0 {
			lines[i] = line[idx+1:]
		}
	}
	s = strings.Join(lines, "\n")

	return strings.TrimRight(s, " \t\n")
}

// CleanLines applies Clean to each fetched log line.
func CleanLines(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		out = append(out, Clean(line))
	}
	return out
}
