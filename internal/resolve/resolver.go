// Package resolve turns a validated edit descriptor plus current file
// content into a concrete before/after content pair, or a precise failure.
// Resolution never consults other descriptors in a batch; cross-descriptor
// effects belong to the conflict detector.
package resolve

import (
	"fmt"
	"strings"

	"batch-edit-engine/internal/errors"
	"batch-edit-engine/internal/models"
)

// DefaultSimilarityThreshold is the minimum word-overlap score for a
// content-mismatch suggestion. Source-observed default, tunable.
const DefaultSimilarityThreshold = 0.3

// Resolver resolves descriptors against live content.
type Resolver struct {
	similarityThreshold float64
}

// NewResolver creates a Resolver. A non-positive threshold falls back to
// the default.
func NewResolver(similarityThreshold float64) *Resolver {
	if similarityThreshold <= 0 {
		similarityThreshold = DefaultSimilarityThreshold
	}
	return &Resolver{similarityThreshold: similarityThreshold}
}

// Resolve converts one descriptor into a ResolvedEdit against the given
// content, or reports why it cannot.
func (r *Resolver) Resolve(d models.EditDescriptor, current string) (*models.ResolvedEdit, *models.EditFailure) {
	switch d.Kind {
	case models.EditKindSubstring:
		return r.resolveSubstring(d, current)
	case models.EditKindLineRange:
		return r.resolveLineRange(d, current)
	default:
		return nil, errors.NewEditFailure(models.FailureUnknown,
			fmt.Sprintf("unknown edit kind %q", d.Kind),
			"use \"substring\" or \"line_range\"")
	}
}

func (r *Resolver) resolveSubstring(d models.EditDescriptor, current string) (*models.ResolvedEdit, *models.EditFailure) {
	if d.Old == "" {
		return nil, errors.NewEditFailure(models.FailureContentMismatch,
			"substring edit has empty old text", "provide the exact text to replace")
	}
	if !strings.Contains(current, d.Old) {
		suggestion := ""
		if line, num, score := r.bestMatchingLine(d.Old, current); score > r.similarityThreshold {
			suggestion = fmt.Sprintf("closest match is line %d: %q", num, line)
		}
		return nil, errors.NewEditFailure(models.FailureContentMismatch,
			fmt.Sprintf("old text not found in %s", d.File), suggestion)
	}

	// First occurrence only; repeated substrings keep later occurrences.
	after := strings.Replace(current, d.Old, d.New, 1)
	resolved := &models.ResolvedEdit{
		File:          d.File,
		ContentBefore: current,
		ContentAfter:  after,
	}
	if rng, ok := occurrenceSpan(d.Old, current); ok {
		resolved.Range = &rng
	}
	return resolved, nil
}

func (r *Resolver) resolveLineRange(d models.EditDescriptor, current string) (*models.ResolvedEdit, *models.EditFailure) {
	if d.StartLine > d.EndLine {
		return nil, errors.NewEditFailure(models.FailureLineRangeError,
			fmt.Sprintf("start line %d is greater than end line %d", d.StartLine, d.EndLine),
			fmt.Sprintf("swap them: start_line=%d, end_line=%d", d.EndLine, d.StartLine))
	}

	lines := splitLines(current)
	total := len(lines)
	// A trailing newline leaves an empty final segment. It is not an
	// addressable line; total must agree with the line counts reads report.
	if total > 0 && lines[total-1] == "" {
		total--
	}
	if d.StartLine < 1 {
		return nil, errors.NewEditFailure(models.FailureLineRangeError,
			fmt.Sprintf("start line %d is below 1", d.StartLine),
			fmt.Sprintf("valid range is 1-%d", total))
	}
	if d.EndLine > total {
		return nil, errors.NewEditFailure(models.FailureLineRangeError,
			fmt.Sprintf("end line %d is beyond the last line %d", d.EndLine, total),
			fmt.Sprintf("valid range is 1-%d", total))
	}

	replacement := splitLines(d.NewContent)
	after := make([]string, 0, total-(d.EndLine-d.StartLine+1)+len(replacement))
	after = append(after, lines[:d.StartLine-1]...)
	after = append(after, replacement...)
	after = append(after, lines[d.EndLine:]...)

	return &models.ResolvedEdit{
		File:          d.File,
		ContentBefore: current,
		ContentAfter:  strings.Join(after, "\n"),
		Range:         &models.LineRange{StartLine: d.StartLine, EndLine: d.EndLine},
	}, nil
}

// splitLines splits on \n without dropping a trailing empty element, so
// joining with \n inverts it exactly and trailing newlines survive edits.
func splitLines(s string) []string {
	return strings.Split(s, "\n")
}

// occurrenceSpan finds the 1-indexed inclusive line span of the first
// occurrence of old, by sliding a window of old's line count over the
// content lines and matching the exact joined text. A substring that does
// not start and end on line boundaries has no span.
func occurrenceSpan(old, content string) (models.LineRange, bool) {
	oldLines := splitLines(old)
	lines := splitLines(content)
	n := len(oldLines)
	for i := 0; i+n <= len(lines); i++ {
		if strings.Join(lines[i:i+n], "\n") == old {
			return models.LineRange{StartLine: i + 1, EndLine: i + n}, true
		}
	}
	return models.LineRange{}, false
}

// bestMatchingLine scores every content line against the missing old text
// by word overlap and returns the best line when one exists. The score is
// |common words| / max(|old words|, |line words|).
func (r *Resolver) bestMatchingLine(old, content string) (line string, num int, score float64) {
	oldWords := wordSet(old)
	if len(oldWords) == 0 {
		return "", 0, 0
	}
	for i, l := range splitLines(content) {
		lineWords := wordSet(l)
		if len(lineWords) == 0 {
			continue
		}
		common := 0
		for w := range oldWords {
			if lineWords[w] {
				common++
			}
		}
		denom := len(oldWords)
		if len(lineWords) > denom {
			denom = len(lineWords)
		}
		s := float64(common) / float64(denom)
		if s > score {
			line, num, score = l, i+1, s
		}
	}
	return line, num, score
}

// wordSet tokenizes into lowercase words longer than two characters.
func wordSet(s string) map[string]bool {
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !isWordRune(r)
	})
	set := make(map[string]bool, len(words))
	for _, w := range words {
		if len([]rune(w)) > 2 {
			set[w] = true
		}
	}
	return set
}

func isWordRune(r rune) bool {
	return r == '_' ||
		(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') || r > 127
}
