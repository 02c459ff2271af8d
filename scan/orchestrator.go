package scan

import (
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/ppfe/macrorig/daq"
)

// State is the top-level session state
type State string

// the session states
const (
	// StateIdle means no scan has been started or the last one was cleared
	StateIdle State = "idle"

	// StateRunning means a scan is in progress
	StateRunning State = "running"

	// StateCompleted means the last scan visited every coordinate
	StateCompleted State = "completed"

	// StateAborted means the last scan was stopped by request; results
	// recorded before the abort are retained
	StateAborted State = "aborted"

	// StateFaulted means the hardware reported an unrecoverable condition.
	// The result grid may be unreliable and the rig may need a manual
	// reset before another scan.
	StateFaulted State = "faulted"
)

func (s State) String() string { return string(s) }

// SubState is the per-point sub-cycle within Running
type SubState string

// the per-point sub-states
const (
	SubNone      SubState = ""
	SubMoving    SubState = "moving"
	SubSettling  SubState = "settling"
	SubAcquiring SubState = "acquiring"
	SubRecording SubState = "recording"
)

// Axes is the motion contract the orchestrator drives.  AxisGroup satisfies
// it against real hardware.
type Axes interface {
	// MoveTo blocks until the probe is at the coordinate or a fault occurs
	MoveTo(Coordinate) error

	// Enable engages the axes at session start
	Enable() error

	// Disable disengages the axes at session end
	Disable() error
}

// Config holds the orchestrator's timing and retry policy
type Config struct {
	// Settle is the wait after motion-complete before sampling is
	// permitted, to damp mechanical oscillation
	Settle time.Duration `yaml:"Settle"`

	// FirstMoveSettle is extra settle added to the first point of a scan;
	// the approach move is usually the longest
	FirstMoveSettle time.Duration `yaml:"FirstMoveSettle"`

	// MaxRetries is the total number of attempts allowed at one point
	// before it is recorded as failed and the scan moves on
	MaxRetries int `yaml:"MaxRetries"`

	// RetryInterval is the initial delay between attempts; it grows
	// exponentially
	RetryInterval time.Duration `yaml:"RetryInterval"`

	// Channel configures the digitizer before the scan begins
	Channel daq.ChannelSettings `yaml:"Channel"`
}

func (c Config) withDefaults() Config {
	if c.Settle <= 0 {
		c.Settle = 500 * time.Millisecond
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = 250 * time.Millisecond
	}
	return c
}

// Progress is a pull-based snapshot of a scan's advancement
type Progress struct {
	// State and Sub are the current machine state
	State State    `json:"state"`
	Sub   SubState `json:"substate,omitempty"`

	// Index is the number of recorded points, Total the plan's point count
	Index int `json:"index"`
	Total int `json:"total"`

	// Failed is the number of points whose retries were exhausted
	Failed int `json:"failed"`

	// Current is the coordinate being worked
	Current Coordinate `json:"current"`

	// ElapsedSec is wall time since the scan started, frozen at the end
	ElapsedSec float64 `json:"elapsedSec"`
}

// errAborted is an internal sentinel threaded out of the point cycle when
// an abort request lands at a sub-state boundary
var errAborted = fmt.Errorf("scan aborted")

// Orchestrator owns one scan session at a time: it drives the planner's
// coordinate sequence, commands motion and acquisition, retries transient
// faults, and accumulates the result grid.  All mutation of session state
// happens on the orchestrator's own goroutine; exported readers take
// snapshots and are safe to call concurrently.
type Orchestrator struct {
	mu      sync.Mutex
	axes    Axes
	sampler daq.Sampler
	cfg     Config

	state      State
	sub        SubState
	grid       *ResultGrid
	total      int
	index      int
	failed     int
	current    Coordinate
	started    time.Time
	finished   time.Time
	abort      chan struct{}
	aborting   bool
	done       chan struct{}
	faultCause error
}

// New returns an orchestrator in the Idle state
func New(axes Axes, sampler daq.Sampler, cfg Config) *Orchestrator {
	return &Orchestrator{
		axes:    axes,
		sampler: sampler,
		cfg:     cfg.withDefaults(),
		state:   StateIdle}
}

// Start validates the plan and begins a scan.  It returns synchronously:
// SessionError if a scan is already running, PlanError for bad plans, or a
// configuration error if the digitizer rejects its settings.  On success
// the scan proceeds on a background goroutine.
func (o *Orchestrator) Start(p Plan) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == StateRunning {
		return SessionError{State: o.state}
	}
	if err := p.Validate(); err != nil {
		return err
	}
	if err := o.sampler.Configure(o.cfg.Channel); err != nil {
		return fmt.Errorf("configuring digitizer: %w", err)
	}
	if err := o.axes.Enable(); err != nil {
		return fmt.Errorf("enabling axes: %w", err)
	}
	o.grid = NewResultGrid(p)
	o.total = p.NumPoints()
	o.index = 0
	o.failed = 0
	o.state = StateRunning
	o.sub = SubMoving
	o.started = time.Now()
	o.finished = time.Time{}
	o.abort = make(chan struct{})
	o.aborting = false
	o.done = make(chan struct{})
	o.faultCause = nil
	log.Printf("scan started, %d points", o.total)
	go o.run(p)
	return nil
}

// Abort requests the running scan stop at the next sub-state boundary.
// It never interrupts a motion or acquisition call mid-flight.  Aborting
// a scan that is not running is a no-op.
func (o *Orchestrator) Abort() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != StateRunning || o.aborting {
		return
	}
	o.aborting = true
	close(o.abort)
}

// Status returns the current state and sub-state
func (o *Orchestrator) Status() (State, SubState) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state, o.sub
}

// Progress returns a snapshot of the scan's advancement
func (o *Orchestrator) Progress() Progress {
	o.mu.Lock()
	defer o.mu.Unlock()
	var elapsed time.Duration
	if !o.started.IsZero() {
		if o.finished.IsZero() {
			elapsed = time.Since(o.started)
		} else {
			elapsed = o.finished.Sub(o.started)
		}
	}
	return Progress{
		State:      o.state,
		Sub:        o.sub,
		Index:      o.index,
		Total:      o.total,
		Failed:     o.failed,
		Current:    o.current,
		ElapsedSec: elapsed.Seconds()}
}

// Grid returns the session's result grid, nil before the first scan.
// The grid is safe for concurrent reads while the scan runs.
func (o *Orchestrator) Grid() *ResultGrid {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.grid
}

// FaultCause returns the error that put the session in Faulted, if any
func (o *Orchestrator) FaultCause() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.faultCause
}

// Done returns a channel closed when the current scan's goroutine exits
func (o *Orchestrator) Done() <-chan struct{} {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.done
}

func (o *Orchestrator) run(p Plan) {
	defer func() {
		if err := o.axes.Disable(); err != nil {
			log.Printf("releasing axes: %v", err)
		}
		o.mu.Lock()
		o.finished = time.Now()
		close(o.done)
		o.mu.Unlock()
	}()
	seq := p.Points()
	first := true
	for c, ok := seq.Next(); ok; c, ok = seq.Next() {
		if o.abortRequested() {
			o.conclude(StateAborted, nil)
			return
		}
		err := o.point(c, first)
		first = false
		if err == errAborted {
			o.conclude(StateAborted, nil)
			return
		}
		if err != nil {
			o.conclude(StateFaulted, err)
			return
		}
	}
	o.conclude(StateCompleted, nil)
}

func (o *Orchestrator) conclude(s State, cause error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state = s
	o.sub = SubNone
	o.faultCause = cause
	switch s {
	case StateCompleted:
		log.Printf("scan completed, %d points, %d failed", o.index, o.failed)
	case StateAborted:
		log.Printf("scan aborted after %d of %d points", o.index, o.total)
	case StateFaulted:
		log.Printf("scan faulted: %v", cause)
	}
}

// point runs the Moving -> Settling -> Acquiring -> Recording sub-cycle for
// one coordinate, retrying transient faults up to the configured limit.
// A nil return means the point was recorded (possibly as failed); a non-nil
// return is either errAborted or an unrecoverable fault.
func (o *Orchestrator) point(c Coordinate, first bool) error {
	bo := &backoff.ExponentialBackOff{
		InitialInterval:     o.cfg.RetryInterval,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         10 * time.Second,
		MaxElapsedTime:      0,
		Clock:               backoff.SystemClock}
	bo.Reset()
	attempts := 0
	for {
		attempts++
		err := o.attempt(c, first, attempts)
		if err == nil || err == errAborted {
			return err
		}
		if unrecoverable(err) {
			return err
		}
		if attempts >= o.cfg.MaxRetries {
			log.Printf("point (%g, %g) failed after %d attempts: %v", c.X, c.Y, attempts, err)
			o.record(Result{
				Coord:     c,
				V:         math.NaN(),
				Timestamp: time.Now(),
				Status:    StatusFailed,
				Attempts:  attempts}, true)
			return nil
		}
		log.Printf("point (%g, %g) attempt %d: %v, retrying", c.X, c.Y, attempts, err)
		if o.sleepInterruptible(bo.NextBackOff()) {
			return errAborted
		}
	}
}

func (o *Orchestrator) attempt(c Coordinate, first bool, attempts int) error {
	o.setSub(SubMoving, c)
	if err := o.axes.MoveTo(c); err != nil {
		return err
	}
	o.setSub(SubSettling, c)
	settle := o.cfg.Settle
	if first && attempts == 1 {
		settle += o.cfg.FirstMoveSettle
	}
	if o.sleepInterruptible(settle) {
		return errAborted
	}
	o.setSub(SubAcquiring, c)
	s, err := o.sampler.Acquire()
	if err != nil {
		return err
	}
	o.setSub(SubRecording, c)
	status := StatusOK
	if attempts > 1 {
		status = StatusRetried
	}
	o.record(Result{
		Coord:     c,
		V:         s.V,
		Timestamp: s.Timestamp,
		Status:    status,
		Attempts:  attempts}, false)
	return nil
}

func (o *Orchestrator) record(r Result, failed bool) {
	o.grid.Record(r)
	o.mu.Lock()
	o.index++
	if failed {
		o.failed++
	}
	o.mu.Unlock()
}

func (o *Orchestrator) setSub(s SubState, c Coordinate) {
	o.mu.Lock()
	o.sub = s
	o.current = c
	o.mu.Unlock()
}

func (o *Orchestrator) abortRequested() bool {
	select {
	case <-o.abort:
		return true
	default:
		return false
	}
}

// sleepInterruptible waits for d, returning true early if an abort lands
func (o *Orchestrator) sleepInterruptible(d time.Duration) bool {
	if d <= 0 {
		return o.abortRequested()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-o.abort:
		return true
	case <-timer.C:
		return false
	}
}
