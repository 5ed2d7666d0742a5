package service

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"batch-edit-engine/internal/config"
	"batch-edit-engine/internal/errors"
	"batch-edit-engine/internal/filesystem"
	"batch-edit-engine/internal/history"
	"batch-edit-engine/internal/lock"
	"batch-edit-engine/internal/models"
)

func newTestService(t *testing.T) (*DefaultBatchEditService, string) {
	t.Helper()
	workDir := t.TempDir()
	histDir := t.TempDir()

	fs := filesystem.NewDefaultAdapter()
	hist, err := history.NewStore(fs, histDir, 100)
	require.NoError(t, err)

	svc, err := NewDefaultBatchEditService(fs, lock.NewManager(histDir), hist, &config.Config{
		WorkingDirectory:    workDir,
		Transport:           "stdio",
		MaxFileSizeMB:       10,
		HistoryDirectory:    histDir,
		HistoryMaxEntries:   100,
		ContextLines:        3,
		SimilarityThreshold: 0.3,
		LockTimeoutSec:      5,
	})
	require.NoError(t, err)
	return svc, workDir
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestApplyEditsThenRestore(t *testing.T) {
	svc, workDir := newTestService(t)
	target := writeFile(t, workDir, "a.txt", "line1\nline2\nline3\n")

	resp, errDetail := svc.ApplyEdits(models.ApplyEditsRequest{
		Description: "replace line 2",
		Edits: []models.EditDescriptor{{
			Kind:       models.EditKindLineRange,
			File:       "a.txt",
			StartLine:  2,
			EndLine:    2,
			NewContent: "LINE2",
		}},
	})
	require.Nil(t, errDetail)
	require.True(t, resp.Applied)
	require.NotEmpty(t, resp.HistoryID)
	require.Len(t, resp.Results, 1)
	assert.True(t, resp.Results[0].OK)
	assert.Equal(t, "line1\nLINE2\nline3\n", readFile(t, target))

	restoreResp, errDetail := svc.HistoryRestore(models.HistoryRestoreRequest{EntryID: resp.HistoryID})
	require.Nil(t, errDetail)
	assert.Equal(t, []string{target}, restoreResp.Result.RestoredFiles)
	assert.Empty(t, restoreResp.Result.Errors)
	assert.Equal(t, "line1\nline2\nline3\n", readFile(t, target))
}

func TestApplyEditsMultiFileBatch(t *testing.T) {
	svc, workDir := newTestService(t)
	a := writeFile(t, workDir, "a.txt", "alpha one")
	b := writeFile(t, workDir, "sub/b.txt", "beta two")

	resp, errDetail := svc.ApplyEdits(models.ApplyEditsRequest{
		Edits: []models.EditDescriptor{
			{Kind: models.EditKindSubstring, File: "a.txt", Old: "alpha", New: "ALPHA"},
			{Kind: models.EditKindSubstring, File: "sub/b.txt", Old: "beta", New: "BETA"},
		},
	})
	require.Nil(t, errDetail)
	require.True(t, resp.Applied)
	assert.Equal(t, "ALPHA one", readFile(t, a))
	assert.Equal(t, "BETA two", readFile(t, b))
}

func TestApplyEditsThenRestoreWithSameBaseName(t *testing.T) {
	svc, workDir := newTestService(t)
	ax := writeFile(t, workDir, "a/x.txt", "alpha\n")
	bx := writeFile(t, workDir, "b/x.txt", "beta\n")

	resp, errDetail := svc.ApplyEdits(models.ApplyEditsRequest{
		Edits: []models.EditDescriptor{
			{Kind: models.EditKindSubstring, File: "a/x.txt", Old: "alpha", New: "ALPHA"},
			{Kind: models.EditKindSubstring, File: "b/x.txt", Old: "beta", New: "BETA"},
		},
	})
	require.Nil(t, errDetail)
	require.True(t, resp.Applied)
	assert.Equal(t, "ALPHA\n", readFile(t, ax))
	assert.Equal(t, "BETA\n", readFile(t, bx))

	// Shared base names must not share a backup; each file restores to its
	// own pre-edit content.
	entry, err := svc.history.Get(resp.HistoryID)
	require.NoError(t, err)
	require.Len(t, entry.Files, 2)
	assert.NotEqual(t, entry.Files[0].BackupPath, entry.Files[1].BackupPath)

	restoreResp, errDetail := svc.HistoryRestore(models.HistoryRestoreRequest{EntryID: resp.HistoryID})
	require.Nil(t, errDetail)
	assert.Empty(t, restoreResp.Result.Errors)
	assert.Equal(t, "alpha\n", readFile(t, ax))
	assert.Equal(t, "beta\n", readFile(t, bx))
}

func TestApplyEditsConflictLeavesFilesUntouched(t *testing.T) {
	svc, workDir := newTestService(t)
	target := writeFile(t, workDir, "a.txt", "1\n2\n3\n4\n5")

	resp, errDetail := svc.ApplyEdits(models.ApplyEditsRequest{
		Edits: []models.EditDescriptor{
			{Kind: models.EditKindLineRange, File: "a.txt", StartLine: 1, EndLine: 3, NewContent: "x"},
			{Kind: models.EditKindLineRange, File: "a.txt", StartLine: 3, EndLine: 5, NewContent: "y"},
		},
	})
	require.Nil(t, errDetail)
	assert.False(t, resp.Applied)
	assert.Empty(t, resp.HistoryID)
	require.Len(t, resp.Conflicts, 1)
	assert.Equal(t, models.ConflictOverlappingRanges, resp.Conflicts[0].Conflicts[0].Kind)
	assert.Equal(t, "1\n2\n3\n4\n5", readFile(t, target))
}

func TestApplyEditsDryRunWritesNothing(t *testing.T) {
	svc, workDir := newTestService(t)
	target := writeFile(t, workDir, "a.txt", "line1\nline2\nline3")

	resp, errDetail := svc.ApplyEdits(models.ApplyEditsRequest{
		DryRun: true,
		Edits: []models.EditDescriptor{{
			Kind: models.EditKindSubstring, File: "a.txt", Old: "line2", New: "LINE2",
		}},
	})
	require.Nil(t, errDetail)
	assert.False(t, resp.Applied)
	assert.Empty(t, resp.HistoryID)
	require.Len(t, resp.Results, 1)
	assert.True(t, resp.Results[0].OK)
	require.NotNil(t, resp.Results[0].Preview)
	assert.Contains(t, resp.Results[0].Preview.UnifiedDiff, "+LINE2")
	assert.Equal(t, "line1\nline2\nline3", readFile(t, target))

	// Nothing was recorded either.
	listResp, errDetail := svc.HistoryList(models.HistoryListRequest{})
	require.Nil(t, errDetail)
	assert.Zero(t, listResp.TotalCount)
}

func TestApplyEditsDryRunReportsConflictsAndResults(t *testing.T) {
	svc, workDir := newTestService(t)
	writeFile(t, workDir, "a.txt", "1\n2\n3\n4\n5")

	resp, errDetail := svc.ApplyEdits(models.ApplyEditsRequest{
		DryRun: true,
		Edits: []models.EditDescriptor{
			{Kind: models.EditKindLineRange, File: "a.txt", StartLine: 1, EndLine: 3, NewContent: "x"},
			{Kind: models.EditKindLineRange, File: "a.txt", StartLine: 3, EndLine: 5, NewContent: "y"},
		},
	})
	require.Nil(t, errDetail)
	assert.False(t, resp.Applied)
	assert.NotEmpty(t, resp.Conflicts)
	// Dry runs still resolve so the caller sees per-descriptor outcomes.
	assert.Len(t, resp.Results, 2)
}

func TestApplyEditsPerDescriptorFailureAbortsBatch(t *testing.T) {
	svc, workDir := newTestService(t)
	target := writeFile(t, workDir, "a.txt", "alpha")

	resp, errDetail := svc.ApplyEdits(models.ApplyEditsRequest{
		Edits: []models.EditDescriptor{
			{Kind: models.EditKindSubstring, File: "a.txt", Old: "alpha", New: "ALPHA"},
			{Kind: models.EditKindSubstring, File: "missing.txt", Old: "x", New: "y"},
		},
	})
	require.Nil(t, errDetail)
	assert.False(t, resp.Applied)
	require.Len(t, resp.Results, 2)
	assert.True(t, resp.Results[0].OK)
	assert.False(t, resp.Results[1].OK)
	require.NotNil(t, resp.Results[1].Failure)
	assert.Equal(t, models.FailureFileNotFound, resp.Results[1].Failure.Kind)
	// The sibling's success never reaches disk.
	assert.Equal(t, "alpha", readFile(t, target))
}

func TestApplyEditsChainsSameFileDescriptors(t *testing.T) {
	svc, workDir := newTestService(t)
	target := writeFile(t, workDir, "a.txt", "alpha beta gamma")

	resp, errDetail := svc.ApplyEdits(models.ApplyEditsRequest{
		Edits: []models.EditDescriptor{
			{Kind: models.EditKindSubstring, File: "a.txt", Old: "alpha", New: "ALPHA"},
			{Kind: models.EditKindSubstring, File: "a.txt", Old: "gamma", New: "GAMMA"},
		},
	})
	require.Nil(t, errDetail)
	require.True(t, resp.Applied)
	assert.Equal(t, "ALPHA beta GAMMA", readFile(t, target))

	// One entry, one snapshot: same-file edits coalesce.
	entry, err := svc.history.Get(resp.HistoryID)
	require.NoError(t, err)
	require.Len(t, entry.Files, 1)
	assert.Equal(t, "alpha beta gamma", entry.Files[0].ContentBefore)
	assert.Equal(t, "ALPHA beta GAMMA", entry.Files[0].ContentAfter)
}

func TestApplyEditsEmptyBatchRejected(t *testing.T) {
	svc, _ := newTestService(t)
	_, errDetail := svc.ApplyEdits(models.ApplyEditsRequest{})
	require.NotNil(t, errDetail)
	assert.Equal(t, errors.CodeInvalidParams, errDetail.Code)
}

func TestApplyEditsRejectsTraversalAndAbsolutePaths(t *testing.T) {
	svc, _ := newTestService(t)

	_, errDetail := svc.ApplyEdits(models.ApplyEditsRequest{
		Edits: []models.EditDescriptor{{
			Kind: models.EditKindSubstring, File: "../outside.txt", Old: "x", New: "y",
		}},
	})
	require.NotNil(t, errDetail)
	assert.Equal(t, errors.CodeInvalidParams, errDetail.Code)

	_, errDetail = svc.ApplyEdits(models.ApplyEditsRequest{
		Edits: []models.EditDescriptor{{
			Kind: models.EditKindSubstring, File: "/etc/passwd", Old: "x", New: "y",
		}},
	})
	require.NotNil(t, errDetail)
	assert.Equal(t, errors.CodeInvalidParams, errDetail.Code)
}

func TestApplyEditsNoBackupsStillRestorable(t *testing.T) {
	svc, workDir := newTestService(t)
	target := writeFile(t, workDir, "a.txt", "before")

	resp, errDetail := svc.ApplyEdits(models.ApplyEditsRequest{
		NoBackups: true,
		Edits: []models.EditDescriptor{{
			Kind: models.EditKindSubstring, File: "a.txt", Old: "before", New: "after",
		}},
	})
	require.Nil(t, errDetail)
	require.True(t, resp.Applied)

	// Record wrote its own backup from the embedded content, so restore
	// still works without applier backups.
	restoreResp, errDetail := svc.HistoryRestore(models.HistoryRestoreRequest{EntryID: resp.HistoryID})
	require.Nil(t, errDetail)
	assert.Empty(t, restoreResp.Result.Errors)
	assert.Equal(t, "before", readFile(t, target))
}

func TestReadFileRange(t *testing.T) {
	svc, workDir := newTestService(t)
	writeFile(t, workDir, "a.txt", "l1\nl2\nl3\nl4\nl5")

	resp, errDetail := svc.ReadFile(models.ReadFileRequest{Name: "a.txt", StartLine: 2, EndLine: 4})
	require.Nil(t, errDetail)
	assert.Equal(t, "l2\nl3\nl4", resp.Content)
	assert.Equal(t, 5, resp.TotalLines)
	require.NotNil(t, resp.RangeRequested)
	assert.Equal(t, 2, resp.RangeRequested.StartLine)
	assert.Equal(t, 4, resp.RangeRequested.EndLine)
}

func TestReadFileWholeAndErrors(t *testing.T) {
	svc, workDir := newTestService(t)
	writeFile(t, workDir, "a.txt", "l1\nl2")

	resp, errDetail := svc.ReadFile(models.ReadFileRequest{Name: "a.txt"})
	require.Nil(t, errDetail)
	assert.Equal(t, "l1\nl2", resp.Content)
	assert.Equal(t, 2, resp.TotalLines)

	_, errDetail = svc.ReadFile(models.ReadFileRequest{Name: "missing.txt"})
	require.NotNil(t, errDetail)
	assert.Equal(t, errors.CodeFileSystemError, errDetail.Code)

	_, errDetail = svc.ReadFile(models.ReadFileRequest{Name: "a.txt", StartLine: 4, EndLine: 2})
	require.NotNil(t, errDetail)
	assert.Equal(t, errors.CodeInvalidParams, errDetail.Code)
}

func TestListFilesSkipsHiddenAndSorts(t *testing.T) {
	svc, workDir := newTestService(t)
	writeFile(t, workDir, "b.txt", "one\ntwo")
	writeFile(t, workDir, "a.txt", "one")
	writeFile(t, workDir, ".hidden", "secret")
	writeFile(t, workDir, ".config/deep.txt", "secret")

	resp, errDetail := svc.ListFiles(models.ListFilesRequest{})
	require.Nil(t, errDetail)
	require.Equal(t, 2, resp.TotalCount)
	assert.Equal(t, "a.txt", resp.Files[0].Name)
	assert.Equal(t, "b.txt", resp.Files[1].Name)
	assert.Equal(t, 1, resp.Files[0].Lines)
	assert.Equal(t, 2, resp.Files[1].Lines)
}

func TestListFilesPattern(t *testing.T) {
	svc, workDir := newTestService(t)
	writeFile(t, workDir, "a.go", "package a")
	writeFile(t, workDir, "b.txt", "text")

	resp, errDetail := svc.ListFiles(models.ListFilesRequest{Pattern: "*.go"})
	require.Nil(t, errDetail)
	require.Equal(t, 1, resp.TotalCount)
	assert.Equal(t, "a.go", resp.Files[0].Name)
}

func TestHistoryListFilters(t *testing.T) {
	svc, workDir := newTestService(t)
	writeFile(t, workDir, "a.txt", "one")
	writeFile(t, workDir, "b.txt", "two")

	apply := func(tool, file, old, new string) string {
		resp, errDetail := svc.ApplyEdits(models.ApplyEditsRequest{
			Tool: tool,
			Edits: []models.EditDescriptor{{
				Kind: models.EditKindSubstring, File: file, Old: old, New: new,
			}},
		})
		require.Nil(t, errDetail)
		require.True(t, resp.Applied)
		return resp.HistoryID
	}
	first := apply("tool-a", "a.txt", "one", "1")
	second := apply("tool-b", "b.txt", "two", "2")

	resp, errDetail := svc.HistoryList(models.HistoryListRequest{})
	require.Nil(t, errDetail)
	assert.Equal(t, 2, resp.TotalCount)

	resp, errDetail = svc.HistoryList(models.HistoryListRequest{Tool: "tool-a"})
	require.Nil(t, errDetail)
	require.Equal(t, 1, resp.TotalCount)
	assert.Equal(t, first, resp.Entries[0].ID)

	resp, errDetail = svc.HistoryList(models.HistoryListRequest{FilePath: "b.txt"})
	require.Nil(t, errDetail)
	require.Equal(t, 1, resp.TotalCount)
	assert.Equal(t, second, resp.Entries[0].ID)

	_, errDetail = svc.HistoryList(models.HistoryListRequest{Since: "not-a-timestamp"})
	require.NotNil(t, errDetail)
	assert.Equal(t, errors.CodeInvalidParams, errDetail.Code)
}

func TestHistoryRestoreUnknownEntry(t *testing.T) {
	svc, _ := newTestService(t)
	_, errDetail := svc.HistoryRestore(models.HistoryRestoreRequest{EntryID: "op-nope"})
	require.NotNil(t, errDetail)
	assert.Equal(t, errors.CodeHistoryNotFound, errDetail.Code)
}
