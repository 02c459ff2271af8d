// Package motion provides small interfaces for motion controllers
// and an HTTP adapter over them
package motion

import (
	"fmt"
)

// FaultKind discriminates the causes of a motion fault
type FaultKind int

// the kinds of motion fault a driver can report
const (
	FaultStall FaultKind = iota
	FaultLimit
	FaultTimeout
	FaultComm
)

func (k FaultKind) String() string {
	switch k {
	case FaultStall:
		return "stall"
	case FaultLimit:
		return "limit"
	case FaultTimeout:
		return "timeout"
	case FaultComm:
		return "communication loss"
	}
	return "unknown"
}

// Fault is an error reported by a motion controller or its link.
// Comm faults are unrecoverable; commanding hardware after losing
// contact with it risks damage.
type Fault struct {
	// Kind is the category of fault
	Kind FaultKind

	// Axis is the axis the fault occurred on, if axis-specific
	Axis string

	// Cause is the underlying driver error, if any
	Cause error
}

func (f Fault) Error() string {
	if f.Axis != "" {
		if f.Cause != nil {
			return fmt.Sprintf("motion fault (%s) on axis %s: %v", f.Kind, f.Axis, f.Cause)
		}
		return fmt.Sprintf("motion fault (%s) on axis %s", f.Kind, f.Axis)
	}
	if f.Cause != nil {
		return fmt.Sprintf("motion fault (%s): %v", f.Kind, f.Cause)
	}
	return fmt.Sprintf("motion fault (%s)", f.Kind)
}

// Unwrap returns the underlying driver error
func (f Fault) Unwrap() error { return f.Cause }

// Unrecoverable returns true if no further commands should be sent to
// the hardware without operator intervention
func (f Fault) Unrecoverable() bool { return f.Kind == FaultComm }

// Mover describes an interface with position-related methods for axes
type Mover interface {
	// GetPos gets the current position of an axis
	GetPos(string) (float64, error)

	// MoveAbs moves an axis to an absolute position
	MoveAbs(string, float64) error

	// MoveRel moves an axis a relative amount
	MoveRel(string, float64) error

	// Home homes an axis
	Home(string) error
}

// Enabler describes an interface with enable/disable methods for axes
type Enabler interface {
	// Enable enables an axis
	Enable(string) error

	// Disable disables an axis
	Disable(string) error

	// GetEnabled gets if an axis is enabled
	GetEnabled(string) (bool, error)
}

// InPositionQueryer is a type which can query whether an axis is in position
type InPositionQueryer interface {
	// GetInPosition returns True if the axis is in position
	GetInPosition(string) (bool, error)
}

// Speeder describes an interface with velocity-related methods for axes
type Speeder interface {
	// SetVelocity sets the velocity setpoint on the axis
	SetVelocity(string, float64) error

	// GetVelocity gets the velocity setpoint on the axis
	GetVelocity(string) (float64, error)
}

// Controller is the minimum interface for the HTTP adapter; concrete types
// implementing more of the interfaces in this package get more routes
type Controller interface {
	Mover
}
