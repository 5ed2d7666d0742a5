// Package preview derives bounded, diff-shaped views around resolved edits
// for human review. Output is advisory text; it carries no behavioral
// contract beyond correct line slicing.
package preview

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"batch-edit-engine/internal/models"
)

// Build produces the context view for one before/after content pair. When
// the affected range is already known (line-range edits) it is used as-is;
// otherwise it is derived by linear scan. contextLines expands the view on
// each side, clamped independently to the before and after line counts.
func Build(file, before, after string, known *models.LineRange, contextLines int) models.EditPreview {
	beforeLines := strings.Split(before, "\n")
	afterLines := strings.Split(after, "\n")

	var startLine, beforeEnd, afterEnd int
	if known != nil {
		startLine = known.StartLine
		beforeEnd = known.EndLine
		afterEnd = known.EndLine + (len(afterLines) - len(beforeLines))
	} else {
		startLine, beforeEnd, afterEnd = diffSpan(beforeLines, afterLines)
	}

	p := models.EditPreview{
		Range:       models.LineRange{StartLine: startLine, EndLine: beforeEnd},
		UnifiedDiff: unifiedDiff(file, before, after, contextLines),
	}
	if startLine == 0 {
		// Identical content, nothing to frame.
		return p
	}
	p.Before = sliceContext(beforeLines, startLine, beforeEnd, contextLines)
	p.After = sliceContext(afterLines, startLine, afterEnd, contextLines)
	return p
}

// diffSpan locates the changed region: the first index where the line
// slices differ is the start, the last differing index (scanning backward
// from the shorter of the two counts) is the end. All values are returned
// 1-indexed inclusive; (0, 0, 0) means the contents are identical.
func diffSpan(beforeLines, afterLines []string) (start, beforeEnd, afterEnd int) {
	minLen := len(beforeLines)
	if len(afterLines) < minLen {
		minLen = len(afterLines)
	}

	first := 0
	for first < minLen && beforeLines[first] == afterLines[first] {
		first++
	}
	if first == minLen && len(beforeLines) == len(afterLines) {
		return 0, 0, 0
	}

	bi, ai := len(beforeLines)-1, len(afterLines)-1
	for bi >= first && ai >= first && beforeLines[bi] == afterLines[ai] {
		bi--
		ai--
	}
	return first + 1, bi + 1, ai + 1
}

// sliceContext returns lines [start-context, end+context] clamped to the
// slice bounds, 1-indexed inclusive input.
func sliceContext(lines []string, start, end, context int) []string {
	lo := start - 1 - context
	if lo < 0 {
		lo = 0
	}
	hi := end + context
	if hi > len(lines) {
		hi = len(lines)
	}
	if lo >= hi {
		return nil
	}
	return lines[lo:hi]
}

func unifiedDiff(file, before, after string, contextLines int) string {
	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(before),
		B:        difflib.SplitLines(after),
		FromFile: "a/" + file,
		ToFile:   "b/" + file,
		Context:  contextLines,
	})
	if err != nil {
		return ""
	}
	return text
}
