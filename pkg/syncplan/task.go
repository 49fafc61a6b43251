// Package syncplan decides which files need copying and turns the decision
// into an ordered plan of copy tasks.
package syncplan

import (
	"os"
	"time"
)

// CopyTask is one planned source-to-destination file copy. Tasks carry the
// source metadata captured at scan time so workers never re-stat the source.
type CopyTask struct {
	// RelPath is the entry's path relative to the source root.
	RelPath string
	// SrcAbsPath is the absolute path of the source file.
	SrcAbsPath string
	// DstAbsPath is the absolute path the file will be written to.
	DstAbsPath string
	// SrcModTime is the source modification time to preserve on the copy.
	SrcModTime time.Time
	// SrcMode holds the source permission bits to preserve on the copy.
	SrcMode os.FileMode
	// SrcSize is the source length in bytes, used for reporting.
	SrcSize int64
}
