// Package syncengine implements one-way, multi-destination, timestamp-based
// incremental synchronization.
//
// A run walks the source tree once, classifies every file against every
// destination independently, materializes the full copy plan (trading memory
// for an accurate total available to progress reporting) and then executes
// the plan across a bounded worker pool. The caller observes the run through
// an asynchronous event channel and may request cooperative cancellation at
// any time; cancellation is honored at loop boundaries, never by
// interrupting a copy mid-file.
package syncengine

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"time"

	"fansync.io/fansync/pkg/pathindex"
	"fansync.io/fansync/pkg/preflight"
	"fansync.io/fansync/pkg/syncplan"
)

// defaultEventBuffer is the capacity of a run's event channel.
const defaultEventBuffer = 256

// defaultCopyBufferSize is the per-worker I/O buffer size for file copies.
const defaultCopyBufferSize = 256 * 1024

// progressInterval is how often a long-running copy phase logs a summary.
const progressInterval = 10 * time.Second

// Request describes one sync run.
type Request struct {
	// Source is the directory tree to mirror. It must exist and be a
	// directory at scan time.
	Source string
	// Destinations are the target roots. Each is synchronized independently;
	// missing ancestor directories are created lazily.
	Destinations []string
	// DryRun reports the planned copies without touching the filesystem.
	DryRun bool
	// Workers bounds the copy pool. Zero or negative selects GOMAXPROCS.
	Workers int
	// EventBuffer overrides the event channel capacity when positive.
	EventBuffer int
}

// Run is the handle for an in-flight or finished sync.
type Run struct {
	req     Request
	events  chan Event
	cancel  context.CancelFunc
	state   atomic.Int32
	done    chan struct{}
	err     error
	metrics *RunMetrics
	results []TaskResult
}

// Start begins a sync run and returns its handle. The run proceeds on its
// own goroutine; consume Events until the channel closes, or use Wait. The
// returned error covers only malformed requests; runtime failures surface as
// events and a Failed terminal state.
func Start(ctx context.Context, req Request) (*Run, error) {
	if req.Source == "" {
		return nil, fmt.Errorf("sync request has no source directory")
	}
	if len(req.Destinations) == 0 {
		return nil, fmt.Errorf("sync request has no destination directories")
	}

	bufSize := req.EventBuffer
	if bufSize <= 0 {
		bufSize = defaultEventBuffer
	}

	runCtx, cancel := context.WithCancel(ctx)
	r := &Run{
		req:     req,
		events:  make(chan Event, bufSize),
		cancel:  cancel,
		done:    make(chan struct{}),
		metrics: &RunMetrics{},
	}
	r.state.Store(int32(Idle))

	go r.execute(runCtx)
	return r, nil
}

// Events returns the run's event stream. The channel is closed after the
// terminal Finished event has been delivered.
func (r *Run) Events() <-chan Event {
	return r.events
}

// Cancel requests cooperative cancellation. Tasks already executing finish;
// tasks not yet started are dropped. Calling Cancel more than once is
// harmless.
func (r *Run) Cancel() {
	r.cancel()
}

// Wait blocks until the run reaches a terminal state and returns the fatal
// error, if any. Cancellation is not an error. The event channel must be
// drained concurrently: a run producing more events than the channel buffer
// holds will stall until the consumer catches up.
func (r *Run) Wait() error {
	<-r.done
	return r.err
}

// State returns the run's current lifecycle state.
func (r *Run) State() State {
	return State(r.state.Load())
}

// Metrics returns the run's counters. Values are stable once the run has
// finished.
func (r *Run) Metrics() *RunMetrics {
	return r.metrics
}

// Results returns the per-task outcomes. Valid only after the run finished.
func (r *Run) Results() []TaskResult {
	return r.results
}

func (r *Run) setState(s State) {
	r.state.Store(int32(s))
}

func (r *Run) emit(e Event) {
	r.events <- e
}

func (r *Run) logf(format string, args ...any) {
	r.emit(LogMessage{Text: fmt.Sprintf(format, args...)})
}

// finish records the terminal state, emits the Finished event and closes the
// event channel. No events are emitted after this point.
func (r *Run) finish(s State, err error) {
	r.setState(s)
	r.err = err
	r.emit(Finished{State: s, Err: err})
	close(r.events)
	r.cancel()
	close(r.done)
}

// execute drives the run through its lifecycle on a dedicated goroutine.
func (r *Run) execute(ctx context.Context) {
	r.metrics.StartProgress("Sync progress", progressInterval)
	defer r.metrics.StopProgress()

	// --- Scanning ---
	r.setState(Scanning)
	r.logf("Scanning for files to sync from '%s'...", r.req.Source)

	if err := preflight.ValidateSource(r.req.Source); err != nil {
		r.logf("%v", err)
		r.finish(Failed, err)
		return
	}
	preflight.CheckDestinations(r.req.Destinations, defaultLowSpaceBytes)

	var entries []pathindex.Entry
	err := pathindex.Walk(ctx, r.req.Source, func(e pathindex.Entry) error {
		entries = append(entries, e)
		r.metrics.FilesScanned.Add(1)
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			r.logf("Scan cancelled.")
			r.finish(Cancelled, nil)
			return
		}
		r.logf("Scan failed: %v", err)
		r.finish(Failed, err)
		return
	}

	// --- Planning ---
	// The full file list is materialized before copying so the total task
	// count reported below is exact, not an estimate.
	r.setState(Planning)
	planner := syncplan.NewPlanner(r.req.Destinations)
	plan, err := planner.Build(ctx, entries)
	if err != nil {
		r.logf("Scan cancelled.")
		r.finish(Cancelled, nil)
		return
	}
	r.metrics.TasksPlanned.Store(int64(len(plan.Tasks)))
	r.emit(TotalDiscovered{Count: len(plan.Tasks)})

	if r.req.DryRun {
		r.executeDryRun(ctx, plan)
		return
	}

	// --- Copying ---
	r.logf("Found %d files to copy. Starting...", len(plan.Tasks))
	r.setState(Copying)

	workers := r.req.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	cp := newCopier(workers, defaultCopyBufferSize, r.metrics, r.emit)
	dispatchErr := cp.run(ctx, plan.Tasks)
	r.results = cp.Results()

	if dispatchErr != nil {
		r.logf("Synchronization cancelled by user.")
		r.metrics.LogSummary("Sync cancelled")
		r.finish(Cancelled, nil)
		return
	}

	r.logf("Synchronization process completed successfully.")
	r.metrics.LogSummary("Sync finished")
	r.finish(Completed, nil)
}

// executeDryRun reports every planned task without mutating the destination
// filesystems. TotalDiscovered and FileCompleted counts match a real run
// over the same inputs.
func (r *Run) executeDryRun(ctx context.Context, plan *syncplan.Plan) {
	r.setState(Copying)
	r.logf("--- DRY RUN MODE ENABLED ---")

	cancelled := false
	for _, task := range plan.Tasks {
		if ctx.Err() != nil {
			cancelled = true
			break
		}
		r.logf("Will copy '%s' to '%s'", filepath.Base(task.SrcAbsPath), filepath.Dir(task.DstAbsPath))
		r.emit(FileCompleted{})
		r.results = append(r.results, TaskResult{
			RelPath: task.RelPath,
			Dest:    task.DstAbsPath,
			Status:  TaskSimulated,
			Bytes:   task.SrcSize,
		})
	}
	r.logf("--- DRY RUN MODE CONCLUDED ---")

	if cancelled {
		r.finish(Cancelled, nil)
		return
	}
	r.finish(Completed, nil)
}

// defaultLowSpaceBytes is the free-space threshold below which a destination
// draws a warning during preflight.
const defaultLowSpaceBytes = 512 * 1024 * 1024
