// Package history keeps an append-only record of completed operations.
// Each entry is one JSON document under the entries directory, with the
// pre-edit content of every touched file preserved as a backup file under
// the backups directory. Entries are immutable once written; retention
// pressure evicts the oldest entries, backups included, in an explicit
// sweep after each insert rather than on any background timer.
package history

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"batch-edit-engine/internal/filesystem"
	"batch-edit-engine/internal/models"
)

// ErrNotFound is returned when the requested entry does not exist.
var ErrNotFound = errors.New("history entry not found")

const (
	entriesDirName = "entries"
	backupsDirName = "backups"
)

// Filter selects entries for listing. Zero values match everything.
type Filter struct {
	Tool              string
	OperationContains string
	FilePath          string
	Since             time.Time
	Until             time.Time
	Limit             int
}

// Store persists history entries on disk.
type Store struct {
	fs         filesystem.Adapter
	entriesDir string
	backupsDir string
	maxEntries int

	mu  sync.Mutex
	now func() time.Time
}

// NewStore creates the store layout under dir and returns the Store.
func NewStore(fs filesystem.Adapter, dir string, maxEntries int) (*Store, error) {
	s := &Store{
		fs:         fs,
		entriesDir: filepath.Join(dir, entriesDirName),
		backupsDir: filepath.Join(dir, backupsDirName),
		maxEntries: maxEntries,
		now:        time.Now,
	}
	if err := fs.MkdirAll(s.entriesDir, 0o755); err != nil {
		return nil, err
	}
	if err := fs.MkdirAll(s.backupsDir, 0o755); err != nil {
		return nil, err
	}
	return s, nil
}

// BackupsDir is where per-operation backups live. The applier writes its
// backups here so ownership transfers to the store without copying.
func (s *Store) BackupsDir() string {
	return s.backupsDir
}

// NewOperationID returns a fresh globally unique operation id. Ids embed a
// UTC timestamp for readability; uniqueness comes from the random suffix.
func (s *Store) NewOperationID() string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand does not fail on supported platforms.
		panic(fmt.Sprintf("history: reading random bytes: %v", err))
	}
	return fmt.Sprintf("op-%s-%s", s.now().UTC().Format("20060102T150405"), hex.EncodeToString(buf))
}

// Record persists one completed operation under the given id and triggers
// retention cleanup. Snapshots without a backup path get one written from
// their embedded pre-edit content; snapshots that already carry a backup
// path (written by the applier during the operation) keep it.
func (s *Store) Record(id, tool, operation, description string, snapshots []models.FileSnapshot, metadata map[string]string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	files := make([]models.FileSnapshot, len(snapshots))
	copy(files, snapshots)
	for i := range files {
		if files[i].BackupPath != "" {
			continue
		}
		backupPath := filepath.Join(s.backupsDir,
			fmt.Sprintf("%s_%d_%s", id, i, filepath.Base(files[i].FilePath)))
		if err := s.fs.WriteFileBytesAtomic(backupPath, []byte(files[i].ContentBefore), 0o600); err != nil {
			return "", fmt.Errorf("writing backup for %s: %w", files[i].FilePath, err)
		}
		files[i].BackupPath = backupPath
	}

	entry := models.HistoryEntry{
		ID:          id,
		Timestamp:   s.now().UTC(),
		Tool:        tool,
		Operation:   operation,
		Description: description,
		Files:       files,
		Metadata:    metadata,
	}
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding history entry %s: %w", id, err)
	}
	if err := s.fs.WriteFileBytesAtomic(s.entryPath(id), data, 0o644); err != nil {
		return "", fmt.Errorf("persisting history entry %s: %w", id, err)
	}

	if err := s.sweep(); err != nil {
		return "", fmt.Errorf("retention sweep after %s: %w", id, err)
	}
	return id, nil
}

// Get loads one entry by id.
func (s *Store) Get(id string) (*models.HistoryEntry, error) {
	exists, err := s.fs.FileExists(s.entryPath(id))
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	data, err := s.fs.ReadFileBytes(s.entryPath(id))
	if err != nil {
		return nil, err
	}
	var entry models.HistoryEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("decoding history entry %s: %w", id, err)
	}
	return &entry, nil
}

// Restore copies each snapshot's pre-edit content back to its original
// path. A file whose backup still exists restores from the backup; a
// missing or unreadable backup falls back to the embedded content and
// produces an entry-scoped error, without blocking the other files.
func (s *Store) Restore(id string) (*models.RestoreResult, error) {
	entry, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	result := &models.RestoreResult{EntryID: id}
	for _, snap := range entry.Files {
		content := snap.ContentBefore
		if snap.BackupPath != "" {
			backupContent, readErr := s.readBackup(snap.BackupPath)
			if readErr != nil {
				result.Errors = append(result.Errors,
					fmt.Sprintf("%s: %v; restored from embedded content", snap.FilePath, readErr))
			} else {
				content = backupContent
			}
		}
		if err := s.fs.WriteFileBytesAtomic(snap.FilePath, []byte(content), 0o644); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", snap.FilePath, err))
			continue
		}
		result.RestoredFiles = append(result.RestoredFiles, snap.FilePath)
	}
	return result, nil
}

func (s *Store) readBackup(path string) (string, error) {
	exists, err := s.fs.FileExists(path)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", fmt.Errorf("backup %s missing", path)
	}
	data, err := s.fs.ReadFileBytes(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// List returns entries matching the filter, newest first. Filtering reads
// only the few queried fields from each stored document; matching entries
// are then decoded fully.
func (s *Store) List(filter Filter) ([]models.HistoryEntry, error) {
	ids, err := s.entryIDs()
	if err != nil {
		return nil, err
	}

	var entries []models.HistoryEntry
	for _, id := range ids {
		data, err := s.fs.ReadFileBytes(s.entryPath(id))
		if err != nil {
			return nil, err
		}
		if !matches(data, filter) {
			continue
		}
		var entry models.HistoryEntry
		if err := json.Unmarshal(data, &entry); err != nil {
			return nil, fmt.Errorf("decoding history entry %s: %w", id, err)
		}
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
	if filter.Limit > 0 && len(entries) > filter.Limit {
		entries = entries[:filter.Limit]
	}
	return entries, nil
}

// Delete removes one entry and its backups.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteLocked(id)
}

func (s *Store) deleteLocked(id string) error {
	data, err := s.fs.ReadFileBytes(s.entryPath(id))
	if err != nil {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	for _, backup := range gjson.GetBytes(data, "files.#.backup_path").Array() {
		if backup.String() == "" {
			continue
		}
		if err := s.fs.Remove(backup.String()); err != nil {
			return err
		}
	}
	return s.fs.Remove(s.entryPath(id))
}

// sweep deletes the oldest entries beyond the retention cap, backups
// included. Runs with the store lock held.
func (s *Store) sweep() error {
	ids, err := s.entryIDs()
	if err != nil {
		return err
	}
	if len(ids) <= s.maxEntries {
		return nil
	}

	type stamped struct {
		id string
		ts time.Time
	}
	all := make([]stamped, 0, len(ids))
	for _, id := range ids {
		data, err := s.fs.ReadFileBytes(s.entryPath(id))
		if err != nil {
			return err
		}
		ts := gjson.GetBytes(data, "timestamp").Time()
		all = append(all, stamped{id: id, ts: ts})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ts.Before(all[j].ts) })

	for _, victim := range all[:len(all)-s.maxEntries] {
		if err := s.deleteLocked(victim.id); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) entryPath(id string) string {
	return filepath.Join(s.entriesDir, id+".json")
}

func (s *Store) entryIDs() ([]string, error) {
	dirEntries, err := s.fs.ListDir(s.entriesDir)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, e := range dirEntries {
		if e.IsDir || !strings.HasSuffix(e.Name, ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name, ".json"))
	}
	return ids, nil
}

// matches evaluates the filter against a stored document without a full
// unmarshal.
func matches(data []byte, f Filter) bool {
	if f.Tool != "" && gjson.GetBytes(data, "tool").String() != f.Tool {
		return false
	}
	if f.OperationContains != "" &&
		!strings.Contains(gjson.GetBytes(data, "operation").String(), f.OperationContains) {
		return false
	}
	if f.FilePath != "" {
		found := false
		for _, p := range gjson.GetBytes(data, "files.#.file_path").Array() {
			if p.String() == f.FilePath {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !f.Since.IsZero() || !f.Until.IsZero() {
		ts := gjson.GetBytes(data, "timestamp").Time()
		if !f.Since.IsZero() && ts.Before(f.Since) {
			return false
		}
		if !f.Until.IsZero() && ts.After(f.Until) {
			return false
		}
	}
	return true
}
