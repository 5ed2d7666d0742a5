package filesystem

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"
)

// FileStats holds basic statistics about a file.
type FileStats struct {
	Size    int64
	IsDir   bool
	ModTime time.Time
	Mode    os.FileMode
}

// DirEntryInfo holds information about a directory entry.
type DirEntryInfo struct {
	Name     string
	IsDir    bool
	IsHidden bool
	Mode     os.FileMode
	ModTime  time.Time
	Size     int64
}

// Adapter defines an interface for interacting with the file system.
// This allows for easier testing and potential future extensions.
type Adapter interface {
	ReadFileBytes(filePath string) ([]byte, error)
	WriteFileBytesAtomic(filePath string, content []byte, perm os.FileMode) error
	CopyFile(src, dst string, perm os.FileMode) error
	Remove(filePath string) error
	MkdirAll(dirPath string, perm os.FileMode) error
	FileExists(filePath string) (bool, error)
	GetFileStats(filePath string) (*FileStats, error)
	ListDir(dirPath string) ([]DirEntryInfo, error)
	// Glob returns paths under root whose base name matches pattern,
	// skipping conventional build, dependency, and VCS directories.
	Glob(root, pattern string) ([]string, error)
	IsValidUTF8(content []byte) bool
	NormalizeNewlines(content []byte) []byte
	SplitLines(content []byte) []string
	JoinLinesWithNewlines(lines []string) []byte
}

// excludedDirs are directory names skipped during Glob enumeration.
var excludedDirs = map[string]bool{
	".git":         true,
	".hg":          true,
	".svn":         true,
	"node_modules": true,
	"vendor":       true,
	"dist":         true,
	"build":        true,
	"target":       true,
	"__pycache__":  true,
}

// DefaultAdapter is the standard implementation of Adapter using the os package.
type DefaultAdapter struct{}

// NewDefaultAdapter creates a new DefaultAdapter.
func NewDefaultAdapter() *DefaultAdapter {
	return &DefaultAdapter{}
}

var _ Adapter = (*DefaultAdapter)(nil)

// ReadFileBytes reads the entire file into a byte slice.
func (a *DefaultAdapter) ReadFileBytes(filePath string) ([]byte, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %s: %w", filePath, err)
		}
		if os.IsPermission(err) {
			return nil, fmt.Errorf("permission denied reading file: %s: %w", filePath, err)
		}
		return nil, fmt.Errorf("failed to read file: %s: %w", filePath, err)
	}
	return content, nil
}

// WriteFileBytesAtomic writes content to a file atomically: the content goes
// to a temporary file in the same directory first, which is then renamed
// over the target.
func (a *DefaultAdapter) WriteFileBytesAtomic(filePath string, content []byte, perm os.FileMode) error {
	dir := filepath.Dir(filePath)
	tempFile, err := os.CreateTemp(dir, filepath.Base(filePath)+".tmp.*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file in %s: %w", dir, err)
	}
	// Harmless after a successful rename.
	defer os.Remove(tempFile.Name())

	if _, err := tempFile.Write(content); err != nil {
		tempFile.Close()
		return fmt.Errorf("failed to write to temporary file %s: %w", tempFile.Name(), err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("failed to close temporary file %s: %w", tempFile.Name(), err)
	}
	if err := os.Rename(tempFile.Name(), filePath); err != nil {
		return fmt.Errorf("failed to rename temporary file %s to %s: %w", tempFile.Name(), filePath, err)
	}
	if err := os.Chmod(filePath, perm); err != nil {
		return fmt.Errorf("file written to %s, but failed to set permissions to %o: %w", filePath, perm, err)
	}
	return nil
}

// CopyFile copies src to dst atomically with the given permissions.
func (a *DefaultAdapter) CopyFile(src, dst string, perm os.FileMode) error {
	content, err := a.ReadFileBytes(src)
	if err != nil {
		return err
	}
	return a.WriteFileBytesAtomic(dst, content, perm)
}

// Remove deletes a file. Removing a missing file is not an error.
func (a *DefaultAdapter) Remove(filePath string) error {
	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", filePath, err)
	}
	return nil
}

// MkdirAll creates a directory along with any necessary parents.
func (a *DefaultAdapter) MkdirAll(dirPath string, perm os.FileMode) error {
	if err := os.MkdirAll(dirPath, perm); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dirPath, err)
	}
	return nil
}

// FileExists checks if a file exists.
func (a *DefaultAdapter) FileExists(filePath string) (bool, error) {
	_, err := os.Stat(filePath)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("error checking if file exists %s: %w", filePath, err)
}

// GetFileStats retrieves statistics for a given file.
func (a *DefaultAdapter) GetFileStats(filePath string) (*FileStats, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found for stats: %s: %w", filePath, err)
		}
		if os.IsPermission(err) {
			return nil, fmt.Errorf("permission denied getting stats for file: %s: %w", filePath, err)
		}
		return nil, fmt.Errorf("failed to get file stats for %s: %w", filePath, err)
	}
	return &FileStats{
		Size:    info.Size(),
		IsDir:   info.IsDir(),
		ModTime: info.ModTime(),
		Mode:    info.Mode().Perm(),
	}, nil
}

// ListDir lists the contents of a directory, excluding "." and "..".
func (a *DefaultAdapter) ListDir(dirPath string) ([]DirEntryInfo, error) {
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("directory not found: %s: %w", dirPath, err)
		}
		if os.IsPermission(err) {
			return nil, fmt.Errorf("permission denied reading directory: %s: %w", dirPath, err)
		}
		return nil, fmt.Errorf("failed to read directory %s: %w", dirPath, err)
	}

	var dirEntries []DirEntryInfo
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("failed to get info for entry %s in %s: %w", entry.Name(), dirPath, err)
		}
		dirEntries = append(dirEntries, DirEntryInfo{
			Name:     info.Name(),
			IsDir:    info.IsDir(),
			IsHidden: strings.HasPrefix(info.Name(), "."),
			Mode:     info.Mode().Perm(),
			ModTime:  info.ModTime(),
			Size:     info.Size(),
		})
	}
	return dirEntries, nil
}

// Glob walks root and returns files whose base name matches pattern. An
// empty pattern matches every file. Excluded directories are pruned whole.
func (a *DefaultAdapter) Glob(root, pattern string) ([]string, error) {
	var matches []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != root && excludedDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if pattern == "" {
			matches = append(matches, p)
			return nil
		}
		ok, matchErr := path.Match(pattern, d.Name())
		if matchErr != nil {
			return fmt.Errorf("invalid glob pattern %q: %w", pattern, matchErr)
		}
		if ok {
			matches = append(matches, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate %s: %w", root, err)
	}
	return matches, nil
}

// IsValidUTF8 checks if the byte slice is valid UTF-8.
func (a *DefaultAdapter) IsValidUTF8(content []byte) bool {
	return utf8.Valid(content)
}

// NormalizeNewlines converts \r\n and \r to \n.
func (a *DefaultAdapter) NormalizeNewlines(content []byte) []byte {
	if len(content) == 0 {
		return []byte{}
	}
	normalized := bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))
	return bytes.ReplaceAll(normalized, []byte("\r"), []byte("\n"))
}

// SplitLines splits content by \n after normalizing newlines, dropping the
// trailing empty line a final newline would otherwise produce.
func (a *DefaultAdapter) SplitLines(content []byte) []string {
	if len(content) == 0 {
		return []string{}
	}
	s := string(a.NormalizeNewlines(content))
	lines := strings.Split(s, "\n")
	if s == "\n" {
		return []string{""}
	}
	if strings.HasSuffix(s, "\n") && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// JoinLinesWithNewlines joins lines with \n, without a trailing newline.
func (a *DefaultAdapter) JoinLinesWithNewlines(lines []string) []byte {
	if len(lines) == 0 {
		return []byte{}
	}
	return []byte(strings.Join(lines, "\n"))
}
