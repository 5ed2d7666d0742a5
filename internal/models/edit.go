package models

// EditKind discriminates the two descriptor variants.
type EditKind string

const (
	// EditKindSubstring replaces the first occurrence of a literal substring.
	EditKindSubstring EditKind = "substring"
	// EditKindLineRange replaces a 1-indexed inclusive range of lines.
	EditKindLineRange EditKind = "line_range"
)

// EditDescriptor is a single requested text change, before it has been
// checked against real file content. Exactly one variant's fields are
// meaningful, selected by Kind.
type EditDescriptor struct {
	Kind EditKind `json:"kind"`
	// File is the target path, relative to the working directory.
	File string `json:"file"`

	// Substring variant. Old must appear verbatim in the current content.
	Old string `json:"old,omitempty"`
	New string `json:"new,omitempty"`

	// Line-range variant. 1-indexed, inclusive, StartLine <= EndLine.
	StartLine  int    `json:"start_line,omitempty"`
	EndLine    int    `json:"end_line,omitempty"`
	NewContent string `json:"new_content,omitempty"`
}

// LineRange is a 1-indexed inclusive span of lines.
type LineRange struct {
	StartLine int `json:"start_line"`
	EndLine   int `json:"end_line"`
}

// Overlaps reports whether two inclusive ranges intersect.
func (r LineRange) Overlaps(other LineRange) bool {
	return r.EndLine >= other.StartLine && other.EndLine >= r.StartLine
}

// ResolvedEdit is a descriptor converted into concrete before/after file
// content, ready to apply. Created fresh per apply attempt; never persisted
// except through the history store.
type ResolvedEdit struct {
	File          string `json:"file"`
	ContentBefore string `json:"content_before"`
	ContentAfter  string `json:"content_after"`
	// Range is the affected line span when known (always known for
	// line-range edits, derived for substring edits).
	Range *LineRange `json:"range,omitempty"`
}

// FailureKind classifies a per-descriptor or batch failure.
type FailureKind string

const (
	FailureFileNotFound     FailureKind = "file-not-found"
	FailureContentMismatch  FailureKind = "content-mismatch"
	FailureLineRangeError   FailureKind = "line-range-error"
	FailurePermissionDenied FailureKind = "permission-denied"
	FailureEncodingError    FailureKind = "encoding-error"
	FailureSyntaxError      FailureKind = "syntax-error"
	FailureUnknown          FailureKind = "unknown"
)

// Severity orders failures for reporting. It never drives control flow.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// EditFailure describes why one descriptor could not be resolved or applied.
type EditFailure struct {
	Kind       FailureKind `json:"kind"`
	Severity   Severity    `json:"severity"`
	Message    string      `json:"message"`
	Suggestion string      `json:"suggestion,omitempty"`
	Range      *LineRange  `json:"range,omitempty"`
}

// EditResult is the per-descriptor outcome surfaced to callers.
type EditResult struct {
	// Index is the descriptor's position in the submitted batch.
	Index   int          `json:"index"`
	File    string       `json:"file"`
	OK      bool         `json:"ok"`
	Failure *EditFailure `json:"failure,omitempty"`
	Range   *LineRange   `json:"range,omitempty"`
	Preview *EditPreview `json:"preview,omitempty"`
}

// EditPreview is an advisory diff-shaped view around one resolved edit.
type EditPreview struct {
	Before      []string  `json:"before"`
	After       []string  `json:"after"`
	Range       LineRange `json:"range"`
	UnifiedDiff string    `json:"unified_diff,omitempty"`
}
