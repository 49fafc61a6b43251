package syncengine

import (
	"sync/atomic"
	"time"

	"fansync.io/fansync/pkg/flog"
)

// RunMetrics holds the atomic counters for a single sync run. Workers update
// it concurrently; readers get point-in-time values.
type RunMetrics struct {
	FilesScanned  atomic.Int64
	TasksPlanned  atomic.Int64
	FilesCopied   atomic.Int64
	FilesFailed   atomic.Int64
	SameFileSkips atomic.Int64
	TasksDropped  atomic.Int64
	BytesCopied   atomic.Int64

	startTime time.Time
	stopChan  chan struct{}
}

// LogSummary writes a one-line summary of the counters to the log.
func (m *RunMetrics) LogSummary(msg string) {
	args := []any{
		"scanned", m.FilesScanned.Load(),
		"planned", m.TasksPlanned.Load(),
		"copied", m.FilesCopied.Load(),
		"failed", m.FilesFailed.Load(),
		"dropped", m.TasksDropped.Load(),
		"bytes", m.BytesCopied.Load(),
	}
	if !m.startTime.IsZero() {
		args = append(args, "elapsed", time.Since(m.startTime).Round(time.Millisecond))
	}
	flog.Info(msg, args...)
}

// StartProgress begins periodic summary logging at the given interval until
// StopProgress is called.
func (m *RunMetrics) StartProgress(msg string, interval time.Duration) {
	m.startTime = time.Now()
	m.stopChan = make(chan struct{})
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.LogSummary(msg)
			case <-m.stopChan:
				return
			}
		}
	}()
}

// StopProgress ends periodic summary logging.
func (m *RunMetrics) StopProgress() {
	if m.stopChan != nil {
		close(m.stopChan)
		m.stopChan = nil
	}
}
