// Package util holds small filesystem helpers shared across packages.
package util

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// PermUserWrite is the owner-write permission bit (0200).
	PermUserWrite os.FileMode = 0200

	// UserWritableDirPerms represents the standard permissions for newly created directories (rwxr-xr-x).
	UserWritableDirPerms os.FileMode = 0755
	// UserWritableFilePerms represents the standard permissions for newly created files (rw-r--r--).
	UserWritableFilePerms os.FileMode = 0644
)

// WithUserWritePermission ensures a permission set has the owner-write bit
// (0200). Destination directories created from read-only sources would
// otherwise lock the syncing user out on the next run.
func WithUserWritePermission(basePerm os.FileMode) os.FileMode {
	return basePerm | PermUserWrite
}

// ExpandPath expands a leading tilde to the user's home directory and
// resolves the result to an absolute path.
func ExpandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("could not get user home directory: %w", err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("could not resolve absolute path for %s: %w", path, err)
	}
	return abs, nil
}
