// Package report writes a machine-readable summary of a finished sync run.
//
// The report file format is JSON; the file extension selects the
// compression: ".gz" writes parallel gzip, ".zst" writes zstandard, anything
// else writes plain text.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"

	"fansync.io/fansync/pkg/buildinfo"
	"fansync.io/fansync/pkg/syncengine"
)

// FormatVersion identifies the report schema. Bump on breaking changes.
const FormatVersion = 1

// Totals aggregates the run counters.
type Totals struct {
	FilesScanned  int64 `json:"filesScanned"`
	TasksPlanned  int64 `json:"tasksPlanned"`
	FilesCopied   int64 `json:"filesCopied"`
	FilesFailed   int64 `json:"filesFailed"`
	SameFileSkips int64 `json:"sameFileSkips"`
	TasksDropped  int64 `json:"tasksDropped"`
	BytesCopied   int64 `json:"bytesCopied"`
}

// Report is the serialized outcome of one sync run.
type Report struct {
	FormatVersion int                     `json:"formatVersion"`
	GeneratedBy   string                  `json:"generatedBy"`
	FinishedAtUTC time.Time               `json:"finishedAtUTC"`
	Source        string                  `json:"source"`
	Destinations  []string                `json:"destinations"`
	DryRun        bool                    `json:"dryRun"`
	State         syncengine.State        `json:"state"`
	Totals        Totals                  `json:"totals"`
	Tasks         []syncengine.TaskResult `json:"tasks"`
}

// FromRun builds a report from a finished run.
func FromRun(source string, destinations []string, dryRun bool, run *syncengine.Run) Report {
	m := run.Metrics()
	return Report{
		FormatVersion: FormatVersion,
		GeneratedBy:   buildinfo.Name + " " + buildinfo.Version,
		FinishedAtUTC: time.Now().UTC(),
		Source:        source,
		Destinations:  destinations,
		DryRun:        dryRun,
		State:         run.State(),
		Totals: Totals{
			FilesScanned:  m.FilesScanned.Load(),
			TasksPlanned:  m.TasksPlanned.Load(),
			FilesCopied:   m.FilesCopied.Load(),
			FilesFailed:   m.FilesFailed.Load(),
			SameFileSkips: m.SameFileSkips.Load(),
			TasksDropped:  m.TasksDropped.Load(),
			BytesCopied:   m.BytesCopied.Load(),
		},
		Tasks: run.Results(),
	}
}

// Write serializes the report to path, compressing according to the file
// extension.
func Write(path string, rep Report) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file %s: %w", path, err)
	}

	var w io.Writer = file
	var closer io.Closer

	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		gz := pgzip.NewWriter(file)
		w, closer = gz, gz
	case ".zst":
		zw, err := zstd.NewWriter(file)
		if err != nil {
			file.Close()
			return fmt.Errorf("failed to create zstd writer for %s: %w", path, err)
		}
		w, closer = zw, zw
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		file.Close()
		return fmt.Errorf("failed to encode report %s: %w", path, err)
	}

	if closer != nil {
		if err := closer.Close(); err != nil {
			file.Close()
			return fmt.Errorf("failed to finalize compressed report %s: %w", path, err)
		}
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close report file %s: %w", path, err)
	}
	return nil
}

// Read loads a report written by Write, decompressing by extension. It is
// primarily a support function for tooling and tests.
func Read(path string) (Report, error) {
	file, err := os.Open(path)
	if err != nil {
		return Report{}, fmt.Errorf("failed to open report file %s: %w", path, err)
	}
	defer file.Close()

	var r io.Reader = file
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		gz, err := pgzip.NewReader(file)
		if err != nil {
			return Report{}, fmt.Errorf("failed to open gzip report %s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	case ".zst":
		zr, err := zstd.NewReader(file)
		if err != nil {
			return Report{}, fmt.Errorf("failed to open zstd report %s: %w", path, err)
		}
		defer zr.Close()
		r = zr.IOReadCloser()
	}

	var rep Report
	if err := json.NewDecoder(r).Decode(&rep); err != nil {
		return Report{}, fmt.Errorf("failed to parse report %s: %w", path, err)
	}
	return rep, nil
}
