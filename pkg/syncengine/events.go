package syncengine

// Event is the interface implemented by all engine events. The engine talks
// to its caller exclusively through a channel of these variants; it never
// calls back into caller state.
type Event interface {
	isEvent()
}

// LogMessage carries a human-readable progress or error line.
type LogMessage struct {
	Text string
}

func (LogMessage) isEvent() {}

// TotalDiscovered reports the number of planned copy tasks. It is emitted
// once per run, before any FileCompleted event, so a consumer can size a
// progress display. The count of FileCompleted events for the run never
// exceeds this value.
type TotalDiscovered struct {
	Count int
}

func (TotalDiscovered) isEvent() {}

// FileCompleted signals that one planned copy finished successfully (or, in
// a dry run, was simulated).
type FileCompleted struct{}

func (FileCompleted) isEvent() {}

// Finished is the terminal event of a run. No events follow it and the
// event channel is closed after its delivery.
type Finished struct {
	State State
	Err   error
}

func (Finished) isEvent() {}
