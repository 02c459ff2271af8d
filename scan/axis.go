package scan

import (
	"context"
	"io"
	"time"

	"github.com/ppfe/macrorig/generichttp/motion"

	"golang.org/x/time/rate"
)

const (
	// defaultMoveTimeout bounds how long one point-to-point move may take.
	// A full-travel move at minimum velocity finishes well inside this.
	defaultMoveTimeout = 2 * time.Minute

	// defaultPollHz is how often motion-complete is polled.  Polling a
	// serial controller too fast starves its command processor.
	defaultPollHz = 10
)

// AxisController is what the axis group needs from a motion driver
type AxisController interface {
	motion.Mover
	motion.InPositionQueryer
}

// AxisGroup unifies the rig's two axes behind a single blocking move/query
// contract.  The axes move independently, so MoveTo waits for both motors
// to report motion-complete before returning.
type AxisGroup struct {
	// Ctl is the underlying motion driver
	Ctl AxisController

	// XAxis and YAxis are the driver's names for the two axes
	XAxis, YAxis string

	// MoveTimeout bounds one blocking move; exceeding it is a motion fault
	MoveTimeout time.Duration

	poll *rate.Limiter
}

// NewAxisGroup returns a group over the conventional X/Y axis names
func NewAxisGroup(ctl AxisController) *AxisGroup {
	return &AxisGroup{
		Ctl:         ctl,
		XAxis:       "X",
		YAxis:       "Y",
		MoveTimeout: defaultMoveTimeout,
		poll:        rate.NewLimiter(rate.Limit(defaultPollHz), 1)}
}

// MoveTo commands both axes to the coordinate and blocks until both report
// motion-complete or a fault.  Faults from the driver pass through; a move
// that outlives MoveTimeout becomes a timeout fault.
func (g *AxisGroup) MoveTo(c Coordinate) error {
	if err := g.Ctl.MoveAbs(g.XAxis, c.X); err != nil {
		return err
	}
	if err := g.Ctl.MoveAbs(g.YAxis, c.Y); err != nil {
		return err
	}
	deadline := time.Now().Add(g.MoveTimeout)
	for {
		if err := g.poll.Wait(context.Background()); err != nil {
			return err
		}
		xDone, err := g.Ctl.GetInPosition(g.XAxis)
		if err != nil {
			return err
		}
		yDone, err := g.Ctl.GetInPosition(g.YAxis)
		if err != nil {
			return err
		}
		if xDone && yDone {
			return nil
		}
		if time.Now().After(deadline) {
			return motion.Fault{Kind: motion.FaultTimeout}
		}
	}
}

// Position reads the current position of both axes
func (g *AxisGroup) Position() (Coordinate, error) {
	x, err := g.Ctl.GetPos(g.XAxis)
	if err != nil {
		return Coordinate{}, err
	}
	y, err := g.Ctl.GetPos(g.YAxis)
	if err != nil {
		return Coordinate{}, err
	}
	return Coordinate{X: x, Y: y}, nil
}

// Enable engages both axes if the driver supports it.  The orchestrator
// calls this at session start; the matching Disable runs at session end
// no matter how the session concludes.
func (g *AxisGroup) Enable() error {
	enabler, ok := g.Ctl.(motion.Enabler)
	if !ok {
		return nil
	}
	if err := enabler.Enable(g.XAxis); err != nil {
		return err
	}
	return enabler.Enable(g.YAxis)
}

// Disable disengages both axes if the driver supports it, then releases
// the driver's link.  Drivers reopen lazily, so a manual jog after the
// session simply redials.
func (g *AxisGroup) Disable() error {
	var errX, errY error
	if enabler, ok := g.Ctl.(motion.Enabler); ok {
		errX = enabler.Disable(g.XAxis)
		errY = enabler.Disable(g.YAxis)
	}
	if closer, ok := g.Ctl.(io.Closer); ok {
		closer.Close()
	}
	if errX != nil {
		return errX
	}
	return errY
}
