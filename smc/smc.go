/*Package smc communicates with the two-axis stepper motor controller on the
macro rig.

The controller multiplexes several motor drivers on one serial line.  Commands
are ASCII, prefixed with the motor address and terminated with a semicolon,
e.g. "1SP=100;".  Responses are terminated with a carriage return and echo the
register, e.g. "RS=0".  The line runs 9600 baud 7E1.
*/
package smc

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ppfe/macrorig/comm"
	"github.com/ppfe/macrorig/generichttp/motion"

	"github.com/tarm/serial"
)

const (
	// homingVelocity is the reduced velocity used during the reverse-homing
	// sequence, in controller velocity units
	homingVelocity = 100

	// statusPollInterval is how often RS is polled while waiting on motion
	statusPollInterval = 100 * time.Millisecond
)

// status word bits returned by the RS register
const (
	statusComplete = 0
	statusMoving   = 1
	statusStall    = 2
	statusPlusLim  = 4
	statusMinusLim = 8
)

// MakeSerConf makes a new serial config for the controller's 7E1 framing
func MakeSerConf(addr string) *serial.Config {
	return &serial.Config{
		Name:        addr,
		Baud:        9600,
		Size:        7,
		Parity:      serial.ParityOdd,
		StopBits:    serial.Stop1,
		ReadTimeout: 5 * time.Second}
}

// setupRegisters is the register program written to each motor during
// initialization.  Values are from the rig's commissioning; the conversion
// factor (CON) maps controller counts to millimeters.
var setupRegisters = []string{
	"SON=0",
	"CT=5000",
	"CS=2000",
	"AC=1000",
	"VM=100",
	"VS=10",
	"PLS=1",
	"NLS=1",
	"CB25=1",
	"CB26=1",
	"SON=1",
	"CB3=1",
	"CB2=1",
	"CON=26.6667",
	"CND2=8",
	"CTM2=7",
}

// Controller talks to the stepper motor controller.
// Axis names are mapped to motor addresses through Axes;
// the default wiring is X => motor 1, Y => motor 2.
type Controller struct {
	comm.RemoteDevice

	// Axes maps axis names to motor addresses on the serial chain
	Axes map[string]string

	velocityCache map[string]float64
}

// NewController returns a new Controller with the default axis wiring.
// addr is a serial device path when isSerial is true, otherwise a
// host:port for a serial-over-TCP bridge.
func NewController(addr string, isSerial bool) *Controller {
	rd := comm.NewRemoteDevice(addr, isSerial, MakeSerConf(addr))
	rd.TxTerm = ';'
	rd.RxTerm = '\r'
	return &Controller{
		RemoteDevice:  rd,
		Axes:          map[string]string{"X": "1", "Y": "2"},
		velocityCache: map[string]float64{}}
}

func (c *Controller) motor(axis string) (string, error) {
	m, ok := c.Axes[axis]
	if !ok {
		return "", fmt.Errorf("axis %q is not wired to a motor", axis)
	}
	return m, nil
}

// command writes "<motor><cmd>" and returns the response with the echoed
// register name stripped.  The link is dialed on first use and reused for
// every command after that.  Communication failures drop the link so the
// next command redials, and surface as comm faults.
func (c *Controller) command(motor, cmd string) (string, error) {
	err := c.Open()
	if err != nil {
		return "", motion.Fault{Kind: motion.FaultComm, Cause: err}
	}
	resp, err := c.SendRecv([]byte(motor + cmd))
	if err != nil {
		c.Close()
		return "", motion.Fault{Kind: motion.FaultComm, Cause: err}
	}
	return strings.TrimSpace(string(resp)), nil
}

// queryFloat issues a register read, e.g. reg "AP" => "1AP;" -> "AP=123.4"
func (c *Controller) queryFloat(motor, reg string) (float64, error) {
	resp, err := c.command(motor, reg)
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(stripRegister(reg, resp), 64)
}

func stripRegister(reg, resp string) string {
	return strings.TrimPrefix(resp, reg+"=")
}

// Initialize writes the register program to an axis and homes it.
// It must be called once per axis before any motion.
func (c *Controller) Initialize(axis string) error {
	motor, err := c.motor(axis)
	if err != nil {
		return err
	}
	if _, err := c.command(motor, "ADDR="+motor); err != nil {
		return err
	}
	for _, reg := range setupRegisters {
		if _, err := c.command(motor, reg); err != nil {
			return err
		}
	}
	return c.Home(axis)
}

// Enable engages the servo on an axis
func (c *Controller) Enable(axis string) error {
	motor, err := c.motor(axis)
	if err != nil {
		return err
	}
	_, err = c.command(motor, "SON=1")
	return err
}

// Disable disengages the servo on an axis
func (c *Controller) Disable(axis string) error {
	motor, err := c.motor(axis)
	if err != nil {
		return err
	}
	_, err = c.command(motor, "SON=0")
	return err
}

// GetEnabled returns true if the servo is engaged on an axis
func (c *Controller) GetEnabled(axis string) (bool, error) {
	motor, err := c.motor(axis)
	if err != nil {
		return false, err
	}
	resp, err := c.command(motor, "SON")
	if err != nil {
		return false, err
	}
	return stripRegister("SON", resp) == "1", nil
}

// GetPos returns the absolute position of an axis in millimeters
func (c *Controller) GetPos(axis string) (float64, error) {
	motor, err := c.motor(axis)
	if err != nil {
		return 0, err
	}
	return c.queryFloat(motor, "AP")
}

// status reads the RS register for a motor
func (c *Controller) status(motor string) (int, error) {
	resp, err := c.command(motor, "RS")
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(stripRegister("RS", resp))
}

// GetInPosition returns true if the axis has completed its last motion.
// Stall and limit conditions surface as motion faults.
func (c *Controller) GetInPosition(axis string) (bool, error) {
	motor, err := c.motor(axis)
	if err != nil {
		return false, err
	}
	stat, err := c.status(motor)
	if err != nil {
		return false, err
	}
	switch {
	case stat == statusComplete:
		return true, nil
	case stat&statusStall != 0:
		return false, motion.Fault{Kind: motion.FaultStall, Axis: axis}
	case stat&(statusPlusLim|statusMinusLim) != 0:
		return false, motion.Fault{Kind: motion.FaultLimit, Axis: axis}
	}
	return false, nil
}

// MoveAbs commands an axis to an absolute position in millimeters.
// It returns as soon as the controller accepts the command; use
// GetInPosition to wait for motion-complete.
func (c *Controller) MoveAbs(axis string, pos float64) error {
	motor, err := c.motor(axis)
	if err != nil {
		return err
	}
	// the controller's SP register only takes integer targets, the
	// conversion factor puts the resolution well below the beam width
	_, err = c.command(motor, fmt.Sprintf("SP=%d", int(math.Round(pos))))
	return err
}

// MoveRel moves an axis by a relative amount in millimeters
func (c *Controller) MoveRel(axis string, dPos float64) error {
	pos, err := c.GetPos(axis)
	if err != nil {
		return err
	}
	return c.MoveAbs(axis, pos+dPos)
}

// Home runs the reverse-homing sequence on an axis and zeroes its
// absolute position.  Blocks until homing completes.
func (c *Controller) Home(axis string) error {
	motor, err := c.motor(axis)
	if err != nil {
		return err
	}
	seq := []string{
		"R3=VM", // save the current velocity
		fmt.Sprintf("VM=%d", homingVelocity),
		"SR-", // start reverse homing
	}
	for _, cmd := range seq {
		if _, err := c.command(motor, cmd); err != nil {
			return err
		}
	}
	if err := c.waitMotionComplete(axis, motor); err != nil {
		return err
	}
	for _, cmd := range []string{"VM=R3", "AP=0"} {
		if _, err := c.command(motor, cmd); err != nil {
			return err
		}
	}
	return nil
}

func (c *Controller) waitMotionComplete(axis, motor string) error {
	for {
		inPos, err := c.GetInPosition(axis)
		if err != nil {
			return err
		}
		if inPos {
			return nil
		}
		time.Sleep(statusPollInterval)
	}
}

// SetVelocity sets the velocity setpoint on an axis
func (c *Controller) SetVelocity(axis string, v float64) error {
	motor, err := c.motor(axis)
	if err != nil {
		return err
	}
	_, err = c.command(motor, fmt.Sprintf("VM=%d", int(math.Round(v))))
	if err == nil {
		c.velocityCache[axis] = v
	}
	return err
}

// GetVelocity gets the velocity setpoint on an axis
func (c *Controller) GetVelocity(axis string) (float64, error) {
	motor, err := c.motor(axis)
	if err != nil {
		return 0, err
	}
	v, err := c.queryFloat(motor, "VM")
	if err != nil {
		// some controller firmwares do not echo VM reads; fall back to
		// the last commanded value
		if cached, ok := c.velocityCache[axis]; ok {
			return cached, nil
		}
		return 0, err
	}
	return v, nil
}

// Raw sends a raw command to the controller and returns the response
func (c *Controller) Raw(s string) (string, error) {
	return c.command("", s)
}
