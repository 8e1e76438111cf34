package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ExpandHome expands a leading '~' to the user's home directory.
func ExpandHome(path string) (string, error) {
	if path == "" {
		return path, nil
	}
	if path[0] != '~' {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home dir: %w", err)
	}
	if path == "~" {
		return home, nil
	}
	// handle cases like ~/webhookd/review-checklist.md
	return filepath.Join(home, strings.TrimPrefix(path, "~/")), nil
}

// ReadFileOr returns the content of path, or ok=false when it is empty or
// cannot be read.
func ReadFileOr(path string) (content string, ok bool) {
	if strings.TrimSpace(path) == "" {
		return "", false
	}
	p, err := ExpandHome(path)
	if err != nil {
		return "", false
	}
	b, err := os.ReadFile(p)
	if err != nil {
		return "", false
	}
	return string(b), true
}
