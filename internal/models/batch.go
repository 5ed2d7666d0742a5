package models

// ApplyEditsRequest submits an ordered, non-empty batch of descriptors.
// Multiple descriptors may target the same file; same-file edits are
// resolved in order against the running content.
type ApplyEditsRequest struct {
	// Tool identifies the caller for history attribution.
	Tool string `json:"tool,omitempty"`
	// Description is a free-form label recorded with the history entry.
	Description string `json:"description,omitempty"`
	// Edits is the ordered batch of requested changes.
	Edits []EditDescriptor `json:"edits"`
	// DryRun resolves and previews without writing anything. Conflicts do
	// not abort a dry run; they are surfaced for human resolution.
	DryRun bool `json:"dry_run,omitempty"`
	// NoBackups skips durable backup files. Rollback on failure still
	// works from in-memory pre-batch content, but the resulting history
	// entry can only restore from embedded content.
	NoBackups bool `json:"no_backups,omitempty"`
	// Metadata is attached verbatim to the history entry.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ApplyEditsResponse reports the batch outcome. Applied is false for dry
// runs, conflicting batches, and batches with failed descriptors.
type ApplyEditsResponse struct {
	Applied bool `json:"applied"`
	// HistoryID identifies the recorded operation when Applied is true.
	HistoryID string           `json:"history_id,omitempty"`
	Results   []EditResult     `json:"results"`
	Conflicts []ConflictReport `json:"conflicts,omitempty"`
}

// HistoryListRequest filters recorded operations. Zero values match
// everything; results are always newest-first.
type HistoryListRequest struct {
	Tool string `json:"tool,omitempty"`
	// OperationContains matches a substring of the operation label.
	OperationContains string `json:"operation_contains,omitempty"`
	// FilePath matches entries that touched the given path.
	FilePath string `json:"file_path,omitempty"`
	// Since and Until bound the entry timestamp, RFC 3339.
	Since string `json:"since,omitempty"`
	Until string `json:"until,omitempty"`
	// Limit caps the number of returned entries; 0 means no cap.
	Limit int `json:"limit,omitempty"`
}

// HistoryListResponse carries matching entries, newest first.
type HistoryListResponse struct {
	Entries    []HistoryEntry `json:"entries"`
	TotalCount int            `json:"total_count"`
}

// HistoryRestoreRequest restores the files recorded under one entry.
type HistoryRestoreRequest struct {
	EntryID string `json:"entry_id"`
}

// HistoryRestoreResponse reports per-file restore outcomes.
type HistoryRestoreResponse struct {
	Result RestoreResult `json:"result"`
}
