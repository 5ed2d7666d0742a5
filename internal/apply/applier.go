// Package apply writes a set of resolved edits to storage with an
// all-or-nothing guarantee. There is no true multi-file transaction on most
// filesystems, so the guarantee comes from a two-phase protocol: validate
// every target against its recorded pre-edit content, then write
// sequentially with rollback of the completed prefix on any failure.
package apply

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"batch-edit-engine/internal/models"
)

// ErrStale marks a file that changed externally between resolution and
// application. The whole batch aborts with zero writes.
var ErrStale = errors.New("content changed since resolution")

// Store is the narrow read/write boundary the applier consumes.
type Store interface {
	Read(path string) (string, error)
	Write(path, content string) error
}

// Applier applies batches of resolved edits atomically.
type Applier struct {
	store     Store
	backupDir string
	now       func() time.Time
}

// NewApplier creates an Applier whose durable backups go under backupDir.
func NewApplier(store Store, backupDir string) *Applier {
	return &Applier{store: store, backupDir: backupDir, now: time.Now}
}

// ApplyAll applies the batch in order. Observable end states are exactly
// "batch fully applied" or "batch fully unapplied": a failure after partial
// progress rolls every written file back to its pre-batch content before
// the original error is surfaced. Each resolved edit must target a distinct
// file. When makeBackups is set, each file's pre-edit content is also kept
// as a durable backup named from opID, the edit's batch position, and the
// file's base name. The position keeps backups distinct when two targets
// share a base name.
func (a *Applier) ApplyAll(opID string, edits []models.ResolvedEdit, makeBackups bool) ([]models.Backup, error) {
	// Phase 1: stale-read protection. Re-read every target and confirm it
	// still matches the content the edit was resolved against. Nothing is
	// written until every file passes.
	for _, edit := range edits {
		current, err := a.store.Read(edit.File)
		if err != nil {
			return nil, fmt.Errorf("validating %s: %w", edit.File, err)
		}
		if current != edit.ContentBefore {
			return nil, fmt.Errorf("%s: %w", edit.File, ErrStale)
		}
	}

	// Phase 2: sequential writes, rollback of the completed prefix on any
	// failure. Rollback restores from the in-memory pre-batch content, so
	// it works whether or not durable backups were requested.
	var backups []models.Backup
	var applied []models.ResolvedEdit
	for i, edit := range edits {
		if makeBackups {
			backupPath := filepath.Join(a.backupDir,
				fmt.Sprintf("%s_%d_%s", opID, i, filepath.Base(edit.File)))
			if err := a.store.Write(backupPath, edit.ContentBefore); err != nil {
				return nil, a.rollback(applied, fmt.Errorf("backing up %s: %w", edit.File, err))
			}
			backups = append(backups, models.Backup{
				OriginalPath: edit.File,
				BackupPath:   backupPath,
				Timestamp:    a.now(),
			})
		}
		if err := a.store.Write(edit.File, edit.ContentAfter); err != nil {
			return nil, a.rollback(applied, fmt.Errorf("writing %s: %w", edit.File, err))
		}
		applied = append(applied, edit)
	}
	return backups, nil
}

// rollback restores every successfully written file. Order does not matter;
// each restore targets a disjoint file. Restore failures are joined onto
// the original error rather than replacing it.
func (a *Applier) rollback(applied []models.ResolvedEdit, cause error) error {
	var restoreErrs []error
	for _, edit := range applied {
		if err := a.store.Write(edit.File, edit.ContentBefore); err != nil {
			restoreErrs = append(restoreErrs, fmt.Errorf("rollback of %s: %w", edit.File, err))
		}
	}
	if len(restoreErrs) > 0 {
		return errors.Join(append([]error{cause}, restoreErrs...)...)
	}
	return cause
}
