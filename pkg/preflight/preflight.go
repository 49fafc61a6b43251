// Package preflight validates a sync request before any destination is
// touched.
package preflight

import (
	"fmt"
	"os"

	"fansync.io/fansync/pkg/flog"
)

// ConfigError reports an invalid sync configuration, such as a missing
// source directory. It is fatal for the run and is raised before any I/O on
// a destination.
type ConfigError struct {
	Path   string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Path, e.Reason)
}

// ValidateSource confirms the source path exists and is a directory.
func ValidateSource(source string) error {
	info, err := os.Stat(source)
	if err != nil {
		if os.IsNotExist(err) {
			return &ConfigError{Path: source, Reason: "source directory does not exist"}
		}
		return &ConfigError{Path: source, Reason: err.Error()}
	}
	if !info.IsDir() {
		return &ConfigError{Path: source, Reason: "source is not a directory"}
	}
	return nil
}

// CheckDestinations probes each destination's filesystem and warns when free
// space is low. Destinations that do not exist yet are skipped; they are
// created lazily during the copy phase. The probe never fails the run.
func CheckDestinations(destinations []string, warnBelowBytes uint64) {
	for _, dest := range destinations {
		if _, err := os.Stat(dest); err != nil {
			continue
		}
		free, err := platformFreeSpace(dest)
		if err != nil {
			flog.Warn("Could not probe free space on destination", "path", dest, "error", err)
			continue
		}
		if free < warnBelowBytes {
			flog.Warn("Destination is low on free space",
				"path", dest,
				"freeMB", free/(1024*1024))
		}
	}
}
