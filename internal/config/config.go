package config

import (
	"fmt"
	"os"
	"path/filepath"

	flag "github.com/spf13/pflag"
)

// Config holds all configurable values for the server.
type Config struct {
	WorkingDirectory    string
	Transport           string
	Port                int
	MaxFileSizeMB       int
	HistoryDirectory    string
	HistoryMaxEntries   int
	ContextLines        int
	SimilarityThreshold float64
	LockTimeoutSec      int
}

// ParseFlags parses command-line flags into a Config. The history directory
// defaults to ".edit-history" under the working directory when unset.
func ParseFlags(args []string) (*Config, error) {
	cfg := &Config{}
	fs := flag.NewFlagSet("batch-edit", flag.ContinueOnError)

	fs.StringVar(&cfg.WorkingDirectory, "dir", "", "Path to the working directory (required)")
	fs.StringVar(&cfg.Transport, "transport", "http", "Transport protocol (http or stdio)")
	fs.IntVar(&cfg.Port, "port", 8080, "Port for HTTP transport")
	fs.IntVar(&cfg.MaxFileSizeMB, "max-file-size", 10, "Maximum file size in MB")
	fs.StringVar(&cfg.HistoryDirectory, "history-dir", "", "Directory for operation history and backups")
	fs.IntVar(&cfg.HistoryMaxEntries, "history-max", 50, "Maximum retained history entries")
	fs.IntVar(&cfg.ContextLines, "context-lines", 3, "Context lines around each previewed edit")
	fs.Float64Var(&cfg.SimilarityThreshold, "similarity-threshold", 0.3, "Minimum line similarity for content-mismatch suggestions")
	fs.IntVar(&cfg.LockTimeoutSec, "lock-timeout", 30, "Seconds to wait for the batch lock")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if cfg.HistoryDirectory == "" && cfg.WorkingDirectory != "" {
		cfg.HistoryDirectory = filepath.Join(cfg.WorkingDirectory, ".edit-history")
	}
	return cfg, nil
}

// Validate checks if the configuration values are valid.
func (c *Config) Validate() error {
	if c.WorkingDirectory == "" {
		return fmt.Errorf("working directory is required")
	}
	info, err := os.Stat(c.WorkingDirectory)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("working directory does not exist: %s", c.WorkingDirectory)
		}
		return fmt.Errorf("error accessing working directory: %v", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("working directory is not a directory: %s", c.WorkingDirectory)
	}

	if c.Transport != "http" && c.Transport != "stdio" {
		return fmt.Errorf("transport must be 'http' or 'stdio'")
	}
	if c.Port < 1024 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1024 and 65535")
	}
	if c.MaxFileSizeMB < 1 || c.MaxFileSizeMB > 100 {
		return fmt.Errorf("max file size must be between 1 and 100 MB")
	}
	if c.HistoryDirectory == "" {
		return fmt.Errorf("history directory is required")
	}
	if c.HistoryMaxEntries < 1 || c.HistoryMaxEntries > 10000 {
		return fmt.Errorf("history max entries must be between 1 and 10000")
	}
	if c.ContextLines < 0 || c.ContextLines > 100 {
		return fmt.Errorf("context lines must be between 0 and 100")
	}
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("similarity threshold must be between 0 and 1")
	}
	if c.LockTimeoutSec < 1 || c.LockTimeoutSec > 300 {
		return fmt.Errorf("lock timeout must be between 1 and 300 seconds")
	}
	return nil
}
