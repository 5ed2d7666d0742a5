package models

// ConflictKind classifies why a batch is unsafe to apply as-is.
type ConflictKind string

const (
	// ConflictOverlappingRanges marks two line-range descriptors on the
	// same file whose inclusive intervals intersect.
	ConflictOverlappingRanges ConflictKind = "overlapping-ranges"
	// ConflictMissingContent marks a substring descriptor whose old text
	// is absent from the current content, or a missing target file.
	ConflictMissingContent ConflictKind = "missing-content"
)

// Conflict is one detected problem within a batch. DescriptorIndex2 is -1
// unless the conflict involves a second descriptor.
type Conflict struct {
	Kind             ConflictKind `json:"kind"`
	Description      string       `json:"description"`
	DescriptorIndex  int          `json:"descriptor_index"`
	DescriptorIndex2 int          `json:"descriptor_index_2"`
}

// ConflictReport groups the conflicts found for one file. Reports are
// computed once per batch, before any mutation, and never changed afterward.
type ConflictReport struct {
	File      string     `json:"file"`
	Conflicts []Conflict `json:"conflicts"`
}
