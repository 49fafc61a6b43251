package syncengine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/singleflight"

	"fansync.io/fansync/pkg/pool"
	"fansync.io/fansync/pkg/syncplan"
	"fansync.io/fansync/pkg/util"
)

// TaskStatus classifies the outcome of one copy task.
type TaskStatus string

const (
	// TaskCopied means the file was written to the destination.
	TaskCopied TaskStatus = "copied"
	// TaskFailed means the copy failed; the failure was logged and the rest
	// of the batch continued.
	TaskFailed TaskStatus = "failed"
	// TaskSameFile means source and destination resolved to the identical
	// file. The task is suppressed: not reported, not counted as completed.
	TaskSameFile TaskStatus = "same_file"
	// TaskDropped means the task was never started because cancellation was
	// requested first.
	TaskDropped TaskStatus = "dropped"
	// TaskSimulated means the task was reported in dry-run mode without
	// touching the filesystem.
	TaskSimulated TaskStatus = "simulated"
)

// TaskResult records the outcome of one planned copy task.
type TaskResult struct {
	RelPath string     `json:"relPath"`
	Dest    string     `json:"dest"`
	Status  TaskStatus `json:"status"`
	Bytes   int64      `json:"bytes,omitempty"`
	Error   string     `json:"error,omitempty"`
}

// errSameFile marks the suppressed same-file condition.
var errSameFile = errors.New("source and destination are the same file")

// copier executes a batch of copy tasks across a bounded worker pool.
// Per-file failures are isolated: they are logged through the event stream
// and the remaining tasks still run. Cancellation is checked before each
// task dispatch; tasks already executing finish, tasks not yet started are
// dropped.
type copier struct {
	workers int
	bufPool *pool.BufferPool
	emit    func(Event)
	metrics *RunMetrics

	// mkdirGroup collapses concurrent creations of the same destination
	// parent directory into one MkdirAll call.
	mkdirGroup singleflight.Group

	// createdDirs memoizes parent directories already ensured during this
	// run, keyed by absolute path.
	createdDirs sync.Map

	mu      sync.Mutex
	results []TaskResult
}

func newCopier(workers, bufferSize int, metrics *RunMetrics, emit func(Event)) *copier {
	return &copier{
		workers: workers,
		bufPool: pool.NewBufferPool(bufferSize),
		emit:    emit,
		metrics: metrics,
	}
}

// run dispatches the planned tasks to the worker pool and blocks until all
// in-flight work settles. It returns the per-task results in no particular
// order. The returned error is ctx.Err() when dispatch stopped early.
func (c *copier) run(ctx context.Context, tasks []syncplan.CopyTask) error {
	taskChan := make(chan syncplan.CopyTask)

	var wg sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range taskChan {
				c.processTask(task)
			}
		}()
	}

	var dispatchErr error
	dispatched := 0
dispatch:
	for _, task := range tasks {
		// Cooperative cancellation point: stop submitting, let in-flight
		// tasks finish, drop the rest. The synchronous check catches a
		// cancellation the select below could otherwise race past.
		if err := ctx.Err(); err != nil {
			dispatchErr = err
			break
		}
		select {
		case <-ctx.Done():
			dispatchErr = ctx.Err()
			break dispatch
		case taskChan <- task:
			dispatched++
		}
	}
	close(taskChan)
	wg.Wait()

	for _, task := range tasks[dispatched:] {
		c.metrics.TasksDropped.Add(1)
		c.addResult(TaskResult{RelPath: task.RelPath, Dest: task.DstAbsPath, Status: TaskDropped})
	}
	return dispatchErr
}

func (c *copier) addResult(r TaskResult) {
	c.mu.Lock()
	c.results = append(c.results, r)
	c.mu.Unlock()
}

// Results returns the collected per-task outcomes. Call only after run has
// returned.
func (c *copier) Results() []TaskResult {
	return c.results
}

// processTask copies one file and reports the outcome through the event
// stream.
func (c *copier) processTask(task syncplan.CopyTask) {
	written, err := c.copyFile(task)
	switch {
	case err == nil:
		c.metrics.FilesCopied.Add(1)
		c.metrics.BytesCopied.Add(written)
		c.emit(LogMessage{Text: fmt.Sprintf("Copied '%s'", filepath.Base(task.SrcAbsPath))})
		c.emit(FileCompleted{})
		c.addResult(TaskResult{RelPath: task.RelPath, Dest: task.DstAbsPath, Status: TaskCopied, Bytes: written})
	case errors.Is(err, errSameFile):
		c.metrics.SameFileSkips.Add(1)
		c.addResult(TaskResult{RelPath: task.RelPath, Dest: task.DstAbsPath, Status: TaskSameFile})
	default:
		c.metrics.FilesFailed.Add(1)
		c.emit(LogMessage{Text: fmt.Sprintf("Error copying '%s': %v", filepath.Base(task.SrcAbsPath), err)})
		c.addResult(TaskResult{RelPath: task.RelPath, Dest: task.DstAbsPath, Status: TaskFailed, Error: err.Error()})
	}
}

// ensureParentDir creates the destination's parent directory, including
// intermediate ancestors. Concurrent calls for the same parent collapse into
// a single MkdirAll; repeat calls hit the memoized set. MkdirAll succeeding
// when the directory already exists is the only safety property the
// concurrent workers rely on.
func (c *copier) ensureParentDir(parent string) error {
	if _, ok := c.createdDirs.Load(parent); ok {
		return nil
	}
	_, err, _ := c.mkdirGroup.Do(parent, func() (any, error) {
		if err := os.MkdirAll(parent, util.WithUserWritePermission(util.UserWritableDirPerms)); err != nil {
			return nil, err
		}
		c.createdDirs.Store(parent, struct{}{})
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("failed to create destination directory %s: %w", parent, err)
	}
	return nil
}

// copyFile performs one metadata-preserving copy. The content is written to
// a temporary file in the destination directory and renamed into place, so a
// reader of the destination never observes a half-written file. Permission
// bits and the source modification time are applied before the rename.
func (c *copier) copyFile(task syncplan.CopyTask) (int64, error) {
	srcInfo, err := os.Stat(task.SrcAbsPath)
	if err != nil {
		return 0, fmt.Errorf("failed to stat source file %s: %w", task.SrcAbsPath, err)
	}
	if dstInfo, err := os.Stat(task.DstAbsPath); err == nil && os.SameFile(srcInfo, dstInfo) {
		return 0, errSameFile
	}

	parent := filepath.Dir(task.DstAbsPath)
	if err := c.ensureParentDir(parent); err != nil {
		return 0, err
	}

	in, err := os.Open(task.SrcAbsPath)
	if err != nil {
		return 0, fmt.Errorf("failed to open source file %s: %w", task.SrcAbsPath, err)
	}
	defer in.Close()

	out, err := os.CreateTemp(parent, "fansync-*.tmp")
	if err != nil {
		return 0, fmt.Errorf("failed to create temporary file in %s: %w", parent, err)
	}

	tempPath := out.Name()
	// Cleared after a successful rename so the deferred remove is a no-op.
	defer func() {
		if tempPath != "" {
			os.Remove(tempPath)
		}
	}()

	bufPtr := c.bufPool.Get()
	defer c.bufPool.Put(bufPtr)

	written, err := io.CopyBuffer(out, in, *bufPtr)
	if err != nil {
		out.Close()
		return 0, fmt.Errorf("failed to copy content to %s: %w", tempPath, err)
	}

	if err := out.Chmod(task.SrcMode); err != nil {
		out.Close()
		return 0, fmt.Errorf("failed to set permissions on %s: %w", tempPath, err)
	}

	// Close before Chtimes: the flush on close may touch the mtime.
	if err := out.Close(); err != nil {
		return 0, fmt.Errorf("failed to close temporary file %s: %w", tempPath, err)
	}

	if err := os.Chtimes(tempPath, task.SrcModTime, task.SrcModTime); err != nil {
		return 0, fmt.Errorf("failed to set timestamps on %s: %w", tempPath, err)
	}

	if err := os.Rename(tempPath, task.DstAbsPath); err != nil {
		return 0, fmt.Errorf("failed to move %s into place: %w", tempPath, err)
	}
	tempPath = ""
	return written, nil
}
