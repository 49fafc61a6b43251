package syncengine

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFileWithTime(t *testing.T, path, content string, mtime time.Time) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

// runOutcome captures everything a run emitted, in order.
type runOutcome struct {
	logs      []string
	total     int
	totalSeen bool
	completed int
	final     Finished
	finalSeen bool
}

func (o runOutcome) hasLog(substr string) bool {
	for _, l := range o.logs {
		if strings.Contains(l, substr) {
			return true
		}
	}
	return false
}

// drainRun consumes the event stream until it closes, asserting the ordering
// contract along the way: TotalDiscovered precedes every FileCompleted, the
// completed count never exceeds the announced total, and nothing follows the
// terminal Finished event.
func drainRun(t *testing.T, run *Run) runOutcome {
	t.Helper()
	var o runOutcome
	for event := range run.Events() {
		require.False(t, o.finalSeen, "event emitted after Finished: %#v", event)
		switch e := event.(type) {
		case LogMessage:
			o.logs = append(o.logs, e.Text)
		case TotalDiscovered:
			require.False(t, o.totalSeen, "TotalDiscovered emitted twice")
			o.total = e.Count
			o.totalSeen = true
		case FileCompleted:
			require.True(t, o.totalSeen, "FileCompleted before TotalDiscovered")
			o.completed++
			require.LessOrEqual(t, o.completed, o.total,
				"FileCompleted count exceeded TotalDiscovered")
		case Finished:
			o.final = e
			o.finalSeen = true
		}
	}
	require.True(t, o.finalSeen, "event stream closed without a Finished event")
	return o
}

func startAndDrain(t *testing.T, ctx context.Context, req Request) (*Run, runOutcome) {
	t.Helper()
	run, err := Start(ctx, req)
	require.NoError(t, err)
	o := drainRun(t, run)
	return run, o
}

func TestStartValidation(t *testing.T) {
	t.Run("no source", func(t *testing.T) {
		_, err := Start(context.Background(), Request{Destinations: []string{"/d"}})
		assert.Error(t, err)
	})
	t.Run("no destinations", func(t *testing.T) {
		_, err := Start(context.Background(), Request{Source: "/s"})
		assert.Error(t, err)
	})
}

func TestRunConcreteScenario(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()

	older := time.Now().Add(-2 * time.Hour)
	newer := time.Now().Add(-time.Minute)
	writeFileWithTime(t, filepath.Join(src, "a.txt"), "alpha", older)
	writeFileWithTime(t, filepath.Join(src, "sub", "b.txt"), "bravo", newer)

	run, o := startAndDrain(t, context.Background(), Request{
		Source:       src,
		Destinations: []string{dest},
	})
	require.NoError(t, run.Wait())

	assert.Equal(t, 2, o.total)
	assert.Equal(t, 2, o.completed)
	assert.Equal(t, Completed, o.final.State)
	assert.Equal(t, Completed, run.State())

	assert.Equal(t, "alpha", readFile(t, filepath.Join(dest, "a.txt")))
	assert.Equal(t, "bravo", readFile(t, filepath.Join(dest, "sub", "b.txt")))

	// Metadata-preserving copy: destination mtime matches the source's.
	srcInfo, err := os.Stat(filepath.Join(src, "a.txt"))
	require.NoError(t, err)
	dstInfo, err := os.Stat(filepath.Join(dest, "a.txt"))
	require.NoError(t, err)
	assert.WithinDuration(t, srcInfo.ModTime(), dstInfo.ModTime(), time.Second)
}

func TestRunIdempotence(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()
	writeFileWithTime(t, filepath.Join(src, "a.txt"), "alpha", time.Now().Add(-time.Hour))
	writeFileWithTime(t, filepath.Join(src, "sub", "b.txt"), "bravo", time.Now().Add(-time.Hour))

	req := Request{Source: src, Destinations: []string{dest}}

	run1, o1 := startAndDrain(t, context.Background(), req)
	require.NoError(t, run1.Wait())
	require.Equal(t, 2, o1.total)

	// A second run with no source changes plans zero copies.
	run2, o2 := startAndDrain(t, context.Background(), req)
	require.NoError(t, run2.Wait())
	assert.Equal(t, 0, o2.total)
	assert.Equal(t, 0, o2.completed)
	assert.Equal(t, Completed, o2.final.State)
}

func TestRunDryRun(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()
	writeFileWithTime(t, filepath.Join(src, "a.txt"), "alpha", time.Now().Add(-time.Hour))
	writeFileWithTime(t, filepath.Join(src, "sub", "b.txt"), "bravo", time.Now().Add(-time.Hour))

	dryRun, dryOut := startAndDrain(t, context.Background(), Request{
		Source:       src,
		Destinations: []string{dest},
		DryRun:       true,
	})
	require.NoError(t, dryRun.Wait())

	assert.Equal(t, Completed, dryOut.final.State)
	assert.True(t, dryOut.hasLog("DRY RUN MODE ENABLED"))
	assert.True(t, dryOut.hasLog("DRY RUN MODE CONCLUDED"))

	// The destination is untouched.
	entries, err := os.ReadDir(dest)
	require.NoError(t, err)
	assert.Empty(t, entries)

	// A real run over the same inputs reports identical counts.
	realRun, realOut := startAndDrain(t, context.Background(), Request{
		Source:       src,
		Destinations: []string{dest},
	})
	require.NoError(t, realRun.Wait())
	assert.Equal(t, dryOut.total, realOut.total)
	assert.Equal(t, dryOut.completed, realOut.completed)
}

func TestRunMultiDestinationIndependence(t *testing.T) {
	src := t.TempDir()
	destA := t.TempDir()
	destB := t.TempDir()

	now := time.Now().Add(-time.Minute)
	writeFileWithTime(t, filepath.Join(src, "a.txt"), "fresh", now)
	writeFileWithTime(t, filepath.Join(destA, "a.txt"), "stale", now.Add(-time.Hour))
	writeFileWithTime(t, filepath.Join(destB, "a.txt"), "untouched", now)

	run, o := startAndDrain(t, context.Background(), Request{
		Source:       src,
		Destinations: []string{destA, destB},
	})
	require.NoError(t, run.Wait())

	assert.Equal(t, 1, o.total)
	assert.Equal(t, 1, o.completed)
	assert.Equal(t, "fresh", readFile(t, filepath.Join(destA, "a.txt")))
	// Destination B was up to date and must not have been overwritten.
	assert.Equal(t, "untouched", readFile(t, filepath.Join(destB, "a.txt")))
}

func TestRunMissingSourceFails(t *testing.T) {
	run, o := startAndDrain(t, context.Background(), Request{
		Source:       filepath.Join(t.TempDir(), "does-not-exist"),
		Destinations: []string{t.TempDir()},
	})

	assert.Error(t, run.Wait())
	assert.Equal(t, Failed, o.final.State)
	assert.Error(t, o.final.Err)
	assert.False(t, o.totalSeen, "no tasks may be announced for a failed configuration")
	assert.True(t, o.hasLog("does not exist"))
}

func TestRunSourceIsFileFails(t *testing.T) {
	srcFile := filepath.Join(t.TempDir(), "file.txt")
	writeFileWithTime(t, srcFile, "x", time.Now())

	run, o := startAndDrain(t, context.Background(), Request{
		Source:       srcFile,
		Destinations: []string{t.TempDir()},
	})

	assert.Error(t, run.Wait())
	assert.Equal(t, Failed, o.final.State)
}

func TestRunDestinationEqualsSource(t *testing.T) {
	src := t.TempDir()
	writeFileWithTime(t, filepath.Join(src, "a.txt"), "alpha", time.Now().Add(-time.Hour))

	run, o := startAndDrain(t, context.Background(), Request{
		Source:       src,
		Destinations: []string{src},
	})
	require.NoError(t, run.Wait())

	// Every file compares equal to itself, so nothing is planned, nothing is
	// logged as an error, and the run still terminates normally.
	assert.Equal(t, Completed, o.final.State)
	assert.Equal(t, 0, o.total)
	assert.False(t, o.hasLog("Error copying"))
	assert.Equal(t, "alpha", readFile(t, filepath.Join(src, "a.txt")))
}

func TestRunCancelledDuringScan(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()
	writeFileWithTime(t, filepath.Join(src, "a.txt"), "alpha", time.Now())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	run, o := startAndDrain(t, ctx, Request{Source: src, Destinations: []string{dest}})
	require.NoError(t, run.Wait())

	assert.Equal(t, Cancelled, o.final.State)
	assert.Equal(t, Cancelled, run.State())
	assert.True(t, o.hasLog("Scan cancelled."))

	// No copies were attempted.
	entries, err := os.ReadDir(dest)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRunPerFileFailureDoesNotAbortBatch(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()

	mtime := time.Now().Add(-time.Hour)
	writeFileWithTime(t, filepath.Join(src, "a.txt"), "alpha", mtime)
	writeFileWithTime(t, filepath.Join(src, "sub", "b.txt"), "bravo", mtime)

	// A regular file squatting where a destination directory must go makes
	// the sub/b.txt copy fail regardless of process privileges.
	writeFileWithTime(t, filepath.Join(dest, "sub"), "not a directory", mtime)

	run, o := startAndDrain(t, context.Background(), Request{
		Source:       src,
		Destinations: []string{dest},
	})
	require.NoError(t, run.Wait())

	assert.Equal(t, Completed, o.final.State)
	assert.Equal(t, 2, o.total)
	assert.Equal(t, 1, o.completed)
	assert.True(t, o.hasLog("Error copying 'b.txt'"))
	assert.Equal(t, "alpha", readFile(t, filepath.Join(dest, "a.txt")))
	assert.Equal(t, int64(1), run.Metrics().FilesFailed.Load())
}

func TestRunResultsAndMetrics(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()
	writeFileWithTime(t, filepath.Join(src, "a.txt"), "alpha", time.Now().Add(-time.Hour))

	run, _ := startAndDrain(t, context.Background(), Request{
		Source:       src,
		Destinations: []string{dest},
	})
	require.NoError(t, run.Wait())

	results := run.Results()
	require.Len(t, results, 1)
	assert.Equal(t, TaskCopied, results[0].Status)
	assert.Equal(t, "a.txt", results[0].RelPath)
	assert.Equal(t, int64(5), results[0].Bytes)

	m := run.Metrics()
	assert.Equal(t, int64(1), m.FilesScanned.Load())
	assert.Equal(t, int64(1), m.TasksPlanned.Load())
	assert.Equal(t, int64(1), m.FilesCopied.Load())
	assert.Equal(t, int64(5), m.BytesCopied.Load())
}
