package models

// ListFilesRequest enumerates files under the working directory matching a
// glob pattern. An empty pattern matches every file.
type ListFilesRequest struct {
	Pattern string `json:"pattern,omitempty"`
}

// FileInfo describes one listed file.
type FileInfo struct {
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	Modified string `json:"modified"`
	Readable bool   `json:"readable"`
	Writable bool   `json:"writable"`
	// Lines is -1 when the file could not be line-counted (unreadable,
	// not UTF-8, or over the size limit).
	Lines int `json:"lines"`
}

// ListFilesResponse carries the listing, sorted by name.
type ListFilesResponse struct {
	Files      []FileInfo `json:"files"`
	TotalCount int        `json:"total_count"`
	Directory  string     `json:"directory"`
}
