package service

import (
	stdErrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"batch-edit-engine/internal/apply"
	"batch-edit-engine/internal/config"
	"batch-edit-engine/internal/conflict"
	"batch-edit-engine/internal/errors"
	"batch-edit-engine/internal/filesystem"
	"batch-edit-engine/internal/history"
	"batch-edit-engine/internal/lock"
	"batch-edit-engine/internal/models"
	"batch-edit-engine/internal/preview"
	"batch-edit-engine/internal/resolve"
)

const (
	maxEditsAllowed = 1000
	batchLockName   = "batch-edit"
	defaultToolName = "batch-edit"
)

// BatchEditService defines the operations exposed over the transports.
type BatchEditService interface {
	ApplyEdits(req models.ApplyEditsRequest) (*models.ApplyEditsResponse, *models.ErrorDetail)
	ReadFile(req models.ReadFileRequest) (*models.ReadFileResponse, *models.ErrorDetail)
	ListFiles(req models.ListFilesRequest) (*models.ListFilesResponse, *models.ErrorDetail)
	HistoryList(req models.HistoryListRequest) (*models.HistoryListResponse, *models.ErrorDetail)
	HistoryRestore(req models.HistoryRestoreRequest) (*models.HistoryRestoreResponse, *models.ErrorDetail)
}

// DefaultBatchEditService implements BatchEditService. One batch at a time:
// live applies hold an advisory batch lock from detection through recording,
// so overlapping batches from other processes serialize instead of racing.
type DefaultBatchEditService struct {
	fs           filesystem.Adapter
	locks        *lock.Manager
	resolver     *resolve.Resolver
	detector     *conflict.Detector
	applier      *apply.Applier
	history      *history.Store
	store        *workspaceStore
	workingDir   string
	maxFileSize  int64
	contextLines int
	lockTimeout  time.Duration
}

// NewDefaultBatchEditService wires the engine together from configuration.
func NewDefaultBatchEditService(
	fs filesystem.Adapter,
	locks *lock.Manager,
	hist *history.Store,
	cfg *config.Config,
) (*DefaultBatchEditService, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	if fs == nil {
		return nil, fmt.Errorf("filesystem adapter is required")
	}
	if locks == nil {
		return nil, fmt.Errorf("lock manager is required")
	}
	if hist == nil {
		return nil, fmt.Errorf("history store is required")
	}

	absWorkingDir, err := filepath.Abs(cfg.WorkingDirectory)
	if err != nil {
		return nil, fmt.Errorf("could not get absolute path for working directory: %w", err)
	}
	info, err := os.Stat(absWorkingDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("working directory does not exist: %s", absWorkingDir)
		}
		return nil, fmt.Errorf("error accessing working directory %s: %w", absWorkingDir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("working directory path is not a directory: %s", absWorkingDir)
	}

	store := &workspaceStore{fs: fs, workingDir: absWorkingDir}
	return &DefaultBatchEditService{
		fs:           fs,
		locks:        locks,
		resolver:     resolve.NewResolver(cfg.SimilarityThreshold),
		detector:     conflict.NewDetector(store),
		applier:      apply.NewApplier(store, hist.BackupsDir()),
		history:      hist,
		store:        store,
		workingDir:   absWorkingDir,
		maxFileSize:  int64(cfg.MaxFileSizeMB) * 1024 * 1024,
		contextLines: cfg.ContextLines,
		lockTimeout:  time.Duration(cfg.LockTimeoutSec) * time.Second,
	}, nil
}

var _ BatchEditService = (*DefaultBatchEditService)(nil)

// workspaceStore resolves workspace-relative paths against the working
// directory; absolute paths (backup locations) pass through untouched. It
// is the FileReader the detector consumes and the Store the applier writes
// through.
type workspaceStore struct {
	fs         filesystem.Adapter
	workingDir string
}

func (w *workspaceStore) abs(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(w.workingDir, path)
}

func (w *workspaceStore) Exists(path string) (bool, error) {
	return w.fs.FileExists(w.abs(path))
}

func (w *workspaceStore) Read(path string) (string, error) {
	content, err := w.fs.ReadFileBytes(w.abs(path))
	if err != nil {
		return "", err
	}
	return string(content), nil
}

func (w *workspaceStore) Write(path, content string) error {
	return w.fs.WriteFileBytesAtomic(w.abs(path), []byte(content), 0o644)
}

var (
	_ conflict.FileReader = (*workspaceStore)(nil)
	_ apply.Store         = (*workspaceStore)(nil)
)

// validatePath confirms a request path stays inside the working directory.
func (s *DefaultBatchEditService) validatePath(name string) *models.ErrorDetail {
	if name == "" {
		return errors.NewInvalidParamsError("File path is required.", nil)
	}
	if filepath.IsAbs(name) {
		return errors.NewInvalidParamsError("File path must be relative to the working directory.",
			map[string]interface{}{"file": name})
	}
	cleaned := filepath.Clean(filepath.Join(s.workingDir, name))
	rel, err := filepath.Rel(s.workingDir, cleaned)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return errors.NewInvalidParamsError("Path traversal attempt detected.",
			map[string]interface{}{"file": name})
	}
	return nil
}

// ApplyEdits runs the full pipeline: conflict detection, per-descriptor
// resolution, preview (dry run), transactional application, and history
// recording. Per-descriptor failures never abort resolution of siblings;
// any failure or conflict leaves every file untouched.
func (s *DefaultBatchEditService) ApplyEdits(req models.ApplyEditsRequest) (*models.ApplyEditsResponse, *models.ErrorDetail) {
	if len(req.Edits) == 0 {
		return nil, errors.NewInvalidParamsError("Batch must contain at least one edit.", nil)
	}
	if len(req.Edits) > maxEditsAllowed {
		return nil, errors.NewInvalidParamsError(
			fmt.Sprintf("Number of edits exceeds maximum allowed of %d.", maxEditsAllowed),
			map[string]interface{}{"num_edits": len(req.Edits), "max_edits": maxEditsAllowed})
	}
	for i, desc := range req.Edits {
		if errDetail := s.validatePath(desc.File); errDetail != nil {
			return nil, errors.NewInvalidParamsError(
				fmt.Sprintf("Edit %d: invalid file path.", i),
				map[string]interface{}{"edit_index": i, "file": desc.File})
		}
	}

	if !req.DryRun {
		handle, err := s.locks.Acquire(batchLockName, s.lockTimeout)
		if err != nil {
			return nil, errors.NewOperationLockFailedError("apply_edits", err.Error())
		}
		defer func() {
			_ = s.locks.Release(handle)
		}()
	}

	conflicts, err := s.detector.Detect(req.Edits)
	if err != nil {
		return nil, errors.NewFileSystemError("", "conflict_detection", err.Error())
	}
	if len(conflicts) > 0 && !req.DryRun {
		// Conflicting batches are rejected wholesale before any resolution.
		return &models.ApplyEditsResponse{Applied: false, Conflicts: conflicts}, nil
	}

	results, plan := s.resolveBatch(req.Edits, req.DryRun)
	if req.DryRun {
		return &models.ApplyEditsResponse{Applied: false, Results: results, Conflicts: conflicts}, nil
	}
	for _, res := range results {
		if !res.OK {
			return &models.ApplyEditsResponse{Applied: false, Results: results}, nil
		}
	}

	opID := s.history.NewOperationID()
	backups, applyErr := s.applier.ApplyAll(opID, plan, !req.NoBackups)
	if applyErr != nil {
		if stdErrors.Is(applyErr, apply.ErrStale) {
			return nil, errors.NewStaleContentError(applyErr.Error())
		}
		return nil, errors.NewFileSystemError("", "apply", applyErr.Error())
	}

	backupByPath := make(map[string]string, len(backups))
	for _, b := range backups {
		backupByPath[b.OriginalPath] = b.BackupPath
	}
	snapshots := make([]models.FileSnapshot, 0, len(plan))
	for _, edit := range plan {
		snapshots = append(snapshots, models.FileSnapshot{
			FilePath:      edit.File,
			ContentBefore: edit.ContentBefore,
			ContentAfter:  edit.ContentAfter,
			BackupPath:    backupByPath[edit.File],
		})
	}

	tool := req.Tool
	if tool == "" {
		tool = defaultToolName
	}
	if _, err := s.history.Record(opID, tool, "apply_edits", req.Description, snapshots, req.Metadata); err != nil {
		return nil, errors.NewFileSystemError("", "history_record", err.Error())
	}

	return &models.ApplyEditsResponse{Applied: true, HistoryID: opID, Results: results}, nil
}

// resolveBatch resolves every descriptor, chaining same-file edits against
// the running content so later descriptors see earlier results. It returns
// per-descriptor results plus the coalesced per-file apply plan in
// first-touch order: one resolved edit per file, ContentBefore from the
// pre-batch read, ContentAfter from the last successful edit.
func (s *DefaultBatchEditService) resolveBatch(batch []models.EditDescriptor, withPreviews bool) ([]models.EditResult, []models.ResolvedEdit) {
	working := make(map[string]string)
	original := make(map[string]string)
	var order []string

	results := make([]models.EditResult, len(batch))
	for i, desc := range batch {
		results[i] = models.EditResult{Index: i, File: desc.File}

		content, seen := working[desc.File]
		if !seen {
			var failure *models.EditFailure
			content, failure = s.readForEdit(desc.File)
			if failure != nil {
				results[i].Failure = failure
				continue
			}
			original[desc.File] = content
			order = append(order, desc.File)
			working[desc.File] = content
		}

		resolved, failure := s.resolver.Resolve(desc, content)
		if failure != nil {
			results[i].Failure = failure
			continue
		}
		working[desc.File] = resolved.ContentAfter
		results[i].OK = true
		results[i].Range = resolved.Range
		if withPreviews {
			p := preview.Build(desc.File, content, resolved.ContentAfter, resolved.Range, s.contextLines)
			results[i].Preview = &p
		}
	}

	var plan []models.ResolvedEdit
	for _, file := range order {
		if working[file] == original[file] {
			continue
		}
		plan = append(plan, models.ResolvedEdit{
			File:          s.store.abs(file),
			ContentBefore: original[file],
			ContentAfter:  working[file],
		})
	}
	return results, plan
}

// readForEdit reads a descriptor's target and maps failures onto the
// per-descriptor taxonomy.
func (s *DefaultBatchEditService) readForEdit(name string) (string, *models.EditFailure) {
	absPath := s.store.abs(name)

	exists, err := s.fs.FileExists(absPath)
	if err != nil {
		if isPermission(err) {
			return "", errors.NewEditFailure(models.FailurePermissionDenied,
				fmt.Sprintf("permission denied checking %s", name), "check file permissions")
		}
		return "", errors.NewEditFailure(models.FailureUnknown, err.Error(), "")
	}
	if !exists {
		return "", errors.NewEditFailure(models.FailureFileNotFound,
			fmt.Sprintf("file %s does not exist", name), "check the path or create the file first")
	}

	stats, err := s.fs.GetFileStats(absPath)
	if err != nil {
		return "", errors.NewEditFailure(models.FailureUnknown, err.Error(), "")
	}
	if stats.IsDir {
		return "", errors.NewEditFailure(models.FailureFileNotFound,
			fmt.Sprintf("%s is a directory, not a file", name), "")
	}
	if stats.Size > s.maxFileSize {
		return "", errors.NewEditFailure(models.FailureUnknown,
			fmt.Sprintf("%s exceeds the maximum file size of %d bytes", name, s.maxFileSize), "")
	}

	content, err := s.fs.ReadFileBytes(absPath)
	if err != nil {
		if isPermission(err) {
			return "", errors.NewEditFailure(models.FailurePermissionDenied,
				fmt.Sprintf("permission denied reading %s", name), "check file permissions")
		}
		return "", errors.NewEditFailure(models.FailureUnknown, err.Error(), "")
	}
	if !s.fs.IsValidUTF8(content) {
		return "", errors.NewEditFailure(models.FailureEncodingError,
			fmt.Sprintf("%s is not valid UTF-8", name), "only UTF-8 text files can be edited")
	}
	return string(content), nil
}

// ReadFile returns file content, optionally restricted to a 1-indexed
// inclusive line range. Zero line values mean "unbounded".
func (s *DefaultBatchEditService) ReadFile(req models.ReadFileRequest) (*models.ReadFileResponse, *models.ErrorDetail) {
	if errDetail := s.validatePath(req.Name); errDetail != nil {
		return nil, errDetail
	}
	if (req.StartLine != 0 && req.StartLine < 1) || (req.EndLine != 0 && req.EndLine < 1) {
		return nil, errors.NewInvalidParamsError("Line numbers must be 1 or greater if specified.",
			map[string]interface{}{"start_line": req.StartLine, "end_line": req.EndLine})
	}
	if req.StartLine > 0 && req.EndLine > 0 && req.StartLine > req.EndLine {
		return nil, errors.NewInvalidParamsError("start_line cannot be greater than end_line.",
			map[string]interface{}{"start_line": req.StartLine, "end_line": req.EndLine})
	}

	absPath := s.store.abs(req.Name)
	exists, err := s.fs.FileExists(absPath)
	if err != nil {
		if isPermission(err) {
			return nil, errors.NewPermissionDeniedError(req.Name, "check_exists")
		}
		return nil, errors.NewFileSystemError(req.Name, "check_exists", err.Error())
	}
	if !exists {
		return nil, errors.NewFileNotFoundError(req.Name, "read")
	}

	stats, err := s.fs.GetFileStats(absPath)
	if err != nil {
		if isPermission(err) {
			return nil, errors.NewPermissionDeniedError(req.Name, "get_stats")
		}
		return nil, errors.NewFileSystemError(req.Name, "get_stats", err.Error())
	}
	if stats.IsDir {
		return nil, errors.NewInvalidParamsError(
			fmt.Sprintf("Path '%s' is a directory, not a file.", req.Name),
			map[string]interface{}{"file": req.Name})
	}
	if stats.Size > s.maxFileSize {
		return nil, errors.NewFileTooLargeError(req.Name, stats.Size, int(s.maxFileSize/(1024*1024)))
	}

	content, err := s.fs.ReadFileBytes(absPath)
	if err != nil {
		if isPermission(err) {
			return nil, errors.NewPermissionDeniedError(req.Name, "read_bytes")
		}
		return nil, errors.NewFileSystemError(req.Name, "read_bytes", err.Error())
	}
	if !s.fs.IsValidUTF8(content) {
		return nil, errors.NewErrorDetail(errors.CodeFileSystemError,
			fmt.Sprintf("File '%s' is not valid UTF-8", req.Name),
			map[string]interface{}{"filename": req.Name, "operation": "read", "type": "encoding_error"})
	}

	lines := s.fs.SplitLines(content)
	total := len(lines)

	startLine := req.StartLine
	endLine := req.EndLine
	if startLine == 0 {
		startLine = 1
	}
	if endLine == 0 || endLine > total {
		endLine = total
	}
	if startLine > total && total > 0 {
		return nil, errors.NewInvalidParamsError(
			fmt.Sprintf("start_line %d is greater than total lines %d.", startLine, total),
			map[string]interface{}{"start_line": startLine, "total_lines": total})
	}

	var selected []string
	if total > 0 && startLine <= endLine {
		selected = lines[startLine-1 : endLine]
	}

	return &models.ReadFileResponse{
		Content:        string(s.fs.JoinLinesWithNewlines(selected)),
		TotalLines:     total,
		RangeRequested: &models.RangeRequested{StartLine: startLine, EndLine: endLine},
	}, nil
}

// ListFiles enumerates workspace files matching the request pattern,
// skipping hidden files and conventional build directories. Line counts
// are -1 where a file cannot be counted.
func (s *DefaultBatchEditService) ListFiles(req models.ListFilesRequest) (*models.ListFilesResponse, *models.ErrorDetail) {
	paths, err := s.fs.Glob(s.workingDir, req.Pattern)
	if err != nil {
		if isPermission(err) {
			return nil, errors.NewPermissionDeniedError(s.workingDir, "glob")
		}
		return nil, errors.NewFileSystemError(s.workingDir, "glob", err.Error())
	}

	var files []models.FileInfo
	for _, p := range paths {
		rel, relErr := filepath.Rel(s.workingDir, p)
		if relErr != nil {
			continue
		}
		if isHiddenPath(rel) {
			continue
		}
		stats, statErr := s.fs.GetFileStats(p)
		if statErr != nil {
			continue
		}
		files = append(files, models.FileInfo{
			Name:     rel,
			Size:     stats.Size,
			Modified: stats.ModTime.UTC().Format(time.RFC3339),
			Readable: (stats.Mode & 0o400) != 0,
			Writable: (stats.Mode & 0o200) != 0,
			Lines:    s.countLines(p, stats.Size),
		})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return &models.ListFilesResponse{
		Files:      files,
		TotalCount: len(files),
		Directory:  s.workingDir,
	}, nil
}

func (s *DefaultBatchEditService) countLines(path string, size int64) int {
	if size == 0 {
		return 0
	}
	if size > s.maxFileSize {
		return -1
	}
	content, err := s.fs.ReadFileBytes(path)
	if err != nil || !s.fs.IsValidUTF8(content) {
		return -1
	}
	return len(s.fs.SplitLines(content))
}

// HistoryList returns recorded operations matching the filter, newest first.
func (s *DefaultBatchEditService) HistoryList(req models.HistoryListRequest) (*models.HistoryListResponse, *models.ErrorDetail) {
	filter := history.Filter{
		Tool:              req.Tool,
		OperationContains: req.OperationContains,
		Limit:             req.Limit,
	}
	if req.FilePath != "" {
		filter.FilePath = s.store.abs(req.FilePath)
	}
	if req.Since != "" {
		t, err := time.Parse(time.RFC3339, req.Since)
		if err != nil {
			return nil, errors.NewInvalidParamsError("Invalid 'since' timestamp; use RFC 3339.",
				map[string]interface{}{"since": req.Since})
		}
		filter.Since = t
	}
	if req.Until != "" {
		t, err := time.Parse(time.RFC3339, req.Until)
		if err != nil {
			return nil, errors.NewInvalidParamsError("Invalid 'until' timestamp; use RFC 3339.",
				map[string]interface{}{"until": req.Until})
		}
		filter.Until = t
	}

	entries, err := s.history.List(filter)
	if err != nil {
		return nil, errors.NewFileSystemError("", "history_list", err.Error())
	}
	return &models.HistoryListResponse{Entries: entries, TotalCount: len(entries)}, nil
}

// HistoryRestore restores the files recorded under one entry.
func (s *DefaultBatchEditService) HistoryRestore(req models.HistoryRestoreRequest) (*models.HistoryRestoreResponse, *models.ErrorDetail) {
	if req.EntryID == "" {
		return nil, errors.NewInvalidParamsError("entry_id is required.", nil)
	}
	result, err := s.history.Restore(req.EntryID)
	if err != nil {
		if stdErrors.Is(err, history.ErrNotFound) {
			return nil, errors.NewHistoryNotFoundError(req.EntryID)
		}
		return nil, errors.NewFileSystemError("", "history_restore", err.Error())
	}
	return &models.HistoryRestoreResponse{Result: *result}, nil
}

func isPermission(err error) bool {
	for e := err; e != nil; e = stdErrors.Unwrap(e) {
		if os.IsPermission(e) {
			return true
		}
	}
	return false
}

func isHiddenPath(rel string) bool {
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}
