package models

// ReadFileRequest asks for a file's content, optionally restricted to a
// 1-indexed inclusive line range. Zero line values mean "unbounded".
type ReadFileRequest struct {
	Name      string `json:"name"`
	StartLine int    `json:"start_line,omitempty"`
	EndLine   int    `json:"end_line,omitempty"`
}

// RangeRequested echoes the effective line range of a ranged read.
type RangeRequested struct {
	StartLine int `json:"start_line"`
	EndLine   int `json:"end_line"`
}

// ReadFileResponse carries the selected content and line accounting.
type ReadFileResponse struct {
	Content        string          `json:"content"`
	TotalLines     int             `json:"total_lines"`
	RangeRequested *RangeRequested `json:"range_requested,omitempty"`
}
