package annotate

import "strings"

// ExtractLines returns lines start..end (1-based, inclusive) of content.
// Bounds are clamped to the text; an empty range yields "".
func ExtractLines(content string, start, end int) string {
	if content == "" {
		return ""
	}
	lines := strings.SplitAfter(content, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	if start < 1 {
		start = 1
	}
	if end > len(lines) {
		end = len(lines)
	}
	if start > end {
		return ""
	}
	return strings.TrimRight(strings.Join(lines[start-1:end], ""), "\r\n")
}
