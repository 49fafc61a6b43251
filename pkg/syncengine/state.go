package syncengine

import (
	"encoding/json"
	"fmt"
)

// State identifies where a run is in its lifecycle.
type State int32

const (
	// Idle is the state of a run that has not started yet.
	Idle State = iota
	// Scanning means the source tree walk is in progress.
	Scanning
	// Planning means scanned entries are being classified per destination.
	Planning
	// Copying means planned tasks are being dispatched to the worker pool.
	Copying
	// Completed is the successful terminal state.
	Completed
	// Cancelled is the terminal state of a run stopped by request.
	Cancelled
	// Failed is the terminal state of a run aborted by a fatal error.
	Failed
)

var stateToString = map[State]string{
	Idle:      "idle",
	Scanning:  "scanning",
	Planning:  "planning",
	Copying:   "copying",
	Completed: "completed",
	Cancelled: "cancelled",
	Failed:    "failed",
}

// String returns the lower-case name of the state.
func (s State) String() string {
	if str, ok := stateToString[s]; ok {
		return str
	}
	return fmt.Sprintf("unknown_state(%d)", int32(s))
}

// Terminal reports whether the state ends a run.
func (s State) Terminal() bool {
	return s == Completed || s == Cancelled || s == Failed
}

// MarshalJSON implements the json.Marshaler interface for State.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for State.
func (s *State) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for state, str := range stateToString {
		if str == name {
			*s = state
			return nil
		}
	}
	return fmt.Errorf("unknown sync state %q", name)
}
