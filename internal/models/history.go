package models

import "time"

// Backup is a durable copy of a file's pre-edit content, captured
// immediately before the file is overwritten.
type Backup struct {
	OriginalPath string    `json:"original_path"`
	BackupPath   string    `json:"backup_path"`
	Timestamp    time.Time `json:"timestamp"`
}

// FileSnapshot records one file's before/after content within a history
// entry, plus the backup location for its pre-edit content.
type FileSnapshot struct {
	FilePath      string `json:"file_path"`
	ContentBefore string `json:"content_before"`
	ContentAfter  string `json:"content_after"`
	BackupPath    string `json:"backup_path,omitempty"`
}

// HistoryEntry is a durable record of one completed operation. Entries are
// immutable once written; the store evicts the oldest entries beyond its
// retention cap.
type HistoryEntry struct {
	ID          string            `json:"id"`
	Timestamp   time.Time         `json:"timestamp"`
	Tool        string            `json:"tool"`
	Operation   string            `json:"operation"`
	Description string            `json:"description,omitempty"`
	Files       []FileSnapshot    `json:"files"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// RestoreResult reports the outcome of restoring one history entry.
// Restoration of one file never blocks restoration of another, so a result
// can carry both restored files and per-file errors.
type RestoreResult struct {
	EntryID       string   `json:"entry_id"`
	RestoredFiles []string `json:"restored_files"`
	Errors        []string `json:"errors,omitempty"`
}
