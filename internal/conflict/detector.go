// Package conflict inspects a batch of edit descriptors against current
// file contents and against each other, before any mutation. A non-empty
// result means the batch is unsafe to apply as-is; the detector itself
// never mutates or resolves anything.
package conflict

import (
	"fmt"
	"sort"
	"strings"

	"batch-edit-engine/internal/models"
)

// FileReader is the narrow read-only boundary the detector consumes.
type FileReader interface {
	Exists(path string) (bool, error)
	Read(path string) (string, error)
}

// Detector finds intra-batch conflicts.
type Detector struct {
	reader FileReader
}

// NewDetector creates a Detector over the given reader.
func NewDetector(reader FileReader) *Detector {
	return &Detector{reader: reader}
}

// Detect runs once per batch. Files targeted by a single descriptor cannot
// conflict and are skipped; for the rest, each file's content is read once.
// The same unmodified file set always yields identical reports.
func (d *Detector) Detect(batch []models.EditDescriptor) ([]models.ConflictReport, error) {
	byFile := make(map[string][]int)
	for i, desc := range batch {
		byFile[desc.File] = append(byFile[desc.File], i)
	}

	files := make([]string, 0, len(byFile))
	for f := range byFile {
		files = append(files, f)
	}
	sort.Strings(files)

	var reports []models.ConflictReport
	for _, file := range files {
		indices := byFile[file]
		if len(indices) < 2 {
			continue
		}

		exists, err := d.reader.Exists(file)
		if err != nil {
			return nil, fmt.Errorf("checking %s: %w", file, err)
		}
		if !exists {
			reports = append(reports, models.ConflictReport{
				File: file,
				Conflicts: []models.Conflict{{
					Kind:             models.ConflictMissingContent,
					Description:      fmt.Sprintf("file %s does not exist", file),
					DescriptorIndex:  indices[0],
					DescriptorIndex2: -1,
				}},
			})
			continue
		}

		content, err := d.reader.Read(file)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", file, err)
		}

		conflicts := append(
			overlapConflicts(batch, indices),
			missingContentConflicts(batch, indices, content)...)
		if len(conflicts) > 0 {
			reports = append(reports, models.ConflictReport{File: file, Conflicts: conflicts})
		}
	}
	return reports, nil
}

// overlapConflicts reports every pair of line-range descriptors whose
// inclusive intervals intersect. Pairwise overlaps are not transitively
// merged; each pair is its own report.
func overlapConflicts(batch []models.EditDescriptor, indices []int) []models.Conflict {
	var conflicts []models.Conflict
	for i := 0; i < len(indices); i++ {
		a := batch[indices[i]]
		if a.Kind != models.EditKindLineRange {
			continue
		}
		for j := i + 1; j < len(indices); j++ {
			b := batch[indices[j]]
			if b.Kind != models.EditKindLineRange {
				continue
			}
			ra := models.LineRange{StartLine: a.StartLine, EndLine: a.EndLine}
			rb := models.LineRange{StartLine: b.StartLine, EndLine: b.EndLine}
			if ra.Overlaps(rb) {
				conflicts = append(conflicts, models.Conflict{
					Kind: models.ConflictOverlappingRanges,
					Description: fmt.Sprintf("line ranges %d-%d and %d-%d overlap",
						a.StartLine, a.EndLine, b.StartLine, b.EndLine),
					DescriptorIndex:  indices[i],
					DescriptorIndex2: indices[j],
				})
			}
		}
	}
	return conflicts
}

// missingContentConflicts reports each substring descriptor whose old text
// is absent from the file's current content.
func missingContentConflicts(batch []models.EditDescriptor, indices []int, content string) []models.Conflict {
	var conflicts []models.Conflict
	for _, idx := range indices {
		desc := batch[idx]
		if desc.Kind != models.EditKindSubstring {
			continue
		}
		if desc.Old == "" || !strings.Contains(content, desc.Old) {
			conflicts = append(conflicts, models.Conflict{
				Kind:             models.ConflictMissingContent,
				Description:      fmt.Sprintf("old text of descriptor %d not found in current content", idx),
				DescriptorIndex:  idx,
				DescriptorIndex2: -1,
			})
		}
	}
	return conflicts
}
