package scan

import (
	"errors"
	"fmt"
)

// PlanError indicates a scan plan whose bounds or step are invalid.
// Plan errors are rejected synchronously at Start and never enter
// the Running state.
type PlanError struct {
	Msg string
}

func (e PlanError) Error() string {
	return "invalid scan plan: " + e.Msg
}

// SessionError indicates a session-level misuse, such as starting a scan
// while one is already running
type SessionError struct {
	State State
}

func (e SessionError) Error() string {
	return fmt.Sprintf("cannot start scan: session is %s", e.State)
}

// unrecoverable returns true if err reports that the hardware should not
// receive further commands without operator intervention
func unrecoverable(err error) bool {
	var u interface{ Unrecoverable() bool }
	if errors.As(err, &u) {
		return u.Unrecoverable()
	}
	return false
}
