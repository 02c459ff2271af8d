package smc

import (
	"sync"
	"time"

	"github.com/ppfe/macrorig/generichttp/motion"
)

const (
	mockTick    = 5 * time.Millisecond
	mockTickSec = 5e-3
)

// MockController simulates the stepper controller for benchless development
// and tests.  Moves integrate the velocity setpoint each tick, so motion
// takes wall time roughly like the hardware.
type MockController struct {
	sync.Mutex
	enabled map[string]bool
	moving  map[string]bool
	homed   map[string]bool
	pos     map[string]float64
	vel     map[string]float64

	// FaultNext, when non-nil, is returned by the next GetInPosition call
	// and then cleared.  Used to script fault injection.
	FaultNext error
}

// NewMockController returns a mock with X and Y axes ready to home
func NewMockController() *MockController {
	return &MockController{
		enabled: make(map[string]bool),
		moving:  make(map[string]bool),
		homed:   make(map[string]bool),
		pos:     make(map[string]float64),
		vel:     make(map[string]float64)}
}

// Initialize enables and homes an axis
func (c *MockController) Initialize(axis string) error {
	if err := c.Enable(axis); err != nil {
		return err
	}
	return c.Home(axis)
}

// Enable enables an axis
func (c *MockController) Enable(axis string) error {
	c.Lock()
	defer c.Unlock()
	c.enabled[axis] = true
	return nil
}

// Disable disables an axis
func (c *MockController) Disable(axis string) error {
	c.Lock()
	defer c.Unlock()
	if c.moving[axis] {
		return motion.Fault{Kind: motion.FaultStall, Axis: axis}
	}
	c.enabled[axis] = false
	return nil
}

// GetEnabled gets if an axis is enabled
func (c *MockController) GetEnabled(axis string) (bool, error) {
	c.Lock()
	defer c.Unlock()
	return c.enabled[axis], nil
}

// Home zeroes an axis
func (c *MockController) Home(axis string) error {
	c.Lock()
	defer c.Unlock()
	if !c.enabled[axis] {
		return motion.Fault{Kind: motion.FaultStall, Axis: axis}
	}
	c.pos[axis] = 0
	c.homed[axis] = true
	return nil
}

// GetPos gets the current position of an axis
func (c *MockController) GetPos(axis string) (float64, error) {
	c.Lock()
	defer c.Unlock()
	return c.pos[axis], nil
}

// GetInPosition returns true if the axis is not moving
func (c *MockController) GetInPosition(axis string) (bool, error) {
	c.Lock()
	defer c.Unlock()
	if c.FaultNext != nil {
		err := c.FaultNext
		c.FaultNext = nil
		return false, err
	}
	return !c.moving[axis], nil
}

// GetVelocity gets the velocity setpoint on an axis
func (c *MockController) GetVelocity(axis string) (float64, error) {
	c.Lock()
	defer c.Unlock()
	v, ok := c.vel[axis]
	if !ok {
		// hardware default
		c.vel[axis] = 100
		v = 100
	}
	return v, nil
}

// SetVelocity sets the velocity setpoint on an axis
func (c *MockController) SetVelocity(axis string, v float64) error {
	c.Lock()
	defer c.Unlock()
	if c.moving[axis] {
		return motion.Fault{Kind: motion.FaultStall, Axis: axis}
	}
	c.vel[axis] = v
	return nil
}

// MoveAbs moves an axis to an absolute position
func (c *MockController) MoveAbs(axis string, pos float64) error {
	c.Lock()
	defer c.Unlock()
	if !c.enabled[axis] || !c.homed[axis] {
		return motion.Fault{Kind: motion.FaultStall, Axis: axis}
	}
	c.moving[axis] = true
	go c.slew(axis, pos)
	return nil
}

// MoveRel moves an axis a relative amount
func (c *MockController) MoveRel(axis string, dPos float64) error {
	c.Lock()
	pos := c.pos[axis] + dPos
	c.Unlock()
	return c.MoveAbs(axis, pos)
}

// slew integrates the velocity setpoint until the target is reached
func (c *MockController) slew(axis string, target float64) {
	tick := time.NewTicker(mockTick)
	defer tick.Stop()
	v, _ := c.GetVelocity(axis)
	step := v * mockTickSec
	for range tick.C {
		c.Lock()
		last := c.pos[axis]
		next := last
		if last < target {
			next = last + step
			if next >= target {
				next = target
			}
		} else {
			next = last - step
			if next <= target {
				next = target
			}
		}
		c.pos[axis] = next
		done := next == target
		if done {
			c.moving[axis] = false
		}
		c.Unlock()
		if done {
			return
		}
	}
}
