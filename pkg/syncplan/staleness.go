package syncplan

import (
	"os"
	"time"
)

// NeedsCopy reports whether the file at destPath is stale relative to a
// source file modified at srcModTime.
//
// A destination is stale when it does not exist or when the source
// modification time is strictly newer. Equal timestamps mean up to date, so
// filesystems with coarse (second-level) timestamp granularity can produce a
// skipped copy for a genuinely newer file written within the same second;
// the next run after the clock tick picks it up.
//
// A stat failure other than not-exist also classifies as stale: the copy
// attempt will surface the underlying problem as a per-file error.
func NeedsCopy(srcModTime time.Time, destPath string) bool {
	destInfo, err := os.Stat(destPath)
	if err != nil {
		return true
	}
	return srcModTime.After(destInfo.ModTime())
}
