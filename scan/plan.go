// Package scan contains the scan engine: grid planning, the orchestrator
// state machine that sequences motion and acquisition, and the result grid.
package scan

import (
	"fmt"
	"math"
	"time"
)

// positions are compared against plan geometry with this tolerance,
// comfortably below the rig's mechanical repeatability
const tol = 1e-9

// Coordinate is a position of the probe in the rig's plane, millimeters
type Coordinate struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Traversal selects the order grid points are visited in
type Traversal string

// the supported traversal orders
const (
	// RowMajor visits each row left to right
	RowMajor Traversal = "rowmajor"

	// Serpentine alternates row direction to minimize return travel.
	// This is the default; long scans spend real time on moves.
	Serpentine Traversal = "serpentine"
)

// BoundaryPolicy selects what happens when the step does not evenly divide
// a span
type BoundaryPolicy string

// the supported boundary policies
const (
	// BoundaryInclude rounds interior points down and appends the far
	// boundary as a final point, so the full extent is always measured
	BoundaryInclude BoundaryPolicy = "include"

	// BoundaryTruncate stops at the last whole multiple of the step
	BoundaryTruncate BoundaryPolicy = "truncate"
)

// Span is the extent of one axis of a scan
type Span struct {
	// Min and Max are the axis bounds, inclusive
	Min float64 `yaml:"Min" json:"min"`
	Max float64 `yaml:"Max" json:"max"`

	// Step is the grid pitch on this axis
	Step float64 `yaml:"Step" json:"step"`
}

// zero returns true for a degenerate span, which yields a single point
func (s Span) zero() bool {
	return math.Abs(s.Max-s.Min) < tol
}

// Plan describes one raster scan
type Plan struct {
	// X is the fast axis, Y the slow axis
	X Span `yaml:"X" json:"x"`
	Y Span `yaml:"Y" json:"y"`

	// Traversal is the visit order; empty means serpentine
	Traversal Traversal `yaml:"Traversal" json:"traversal,omitempty"`

	// Boundary is the uneven-step policy; empty means include
	Boundary BoundaryPolicy `yaml:"Boundary" json:"boundary,omitempty"`

	// CircleMask restricts the scan to the ellipse inscribed in the
	// rectangular bounds, for circular apertures
	CircleMask bool `yaml:"CircleMask" json:"circleMask,omitempty"`
}

// Validate checks the plan's bounds and step sizes
func (p Plan) Validate() error {
	for _, ax := range []struct {
		name string
		s    Span
	}{{"X", p.X}, {"Y", p.Y}} {
		if ax.s.Max < ax.s.Min {
			return PlanError{Msg: fmt.Sprintf("%s bounds inverted, min %g > max %g", ax.name, ax.s.Min, ax.s.Max)}
		}
		if !ax.s.zero() && ax.s.Step <= 0 {
			return PlanError{Msg: fmt.Sprintf("%s step must be positive, got %g", ax.name, ax.s.Step)}
		}
	}
	switch p.Traversal {
	case "", RowMajor, Serpentine:
	default:
		return PlanError{Msg: fmt.Sprintf("unknown traversal %q", p.Traversal)}
	}
	switch p.Boundary {
	case "", BoundaryInclude, BoundaryTruncate:
	default:
		return PlanError{Msg: fmt.Sprintf("unknown boundary policy %q", p.Boundary)}
	}
	return nil
}

// axisValues expands a span into its grid positions under the boundary policy
func axisValues(s Span, pol BoundaryPolicy) []float64 {
	if s.zero() {
		return []float64{s.Min}
	}
	n := int(math.Floor((s.Max-s.Min)/s.Step + tol))
	vals := make([]float64, 0, n+2)
	for i := 0; i <= n; i++ {
		vals = append(vals, s.Min+float64(i)*s.Step)
	}
	if pol != BoundaryTruncate && s.Max-vals[len(vals)-1] > tol {
		vals = append(vals, s.Max)
	}
	return vals
}

// XValues returns the fast-axis grid positions
func (p Plan) XValues() []float64 {
	return axisValues(p.X, p.Boundary)
}

// YValues returns the slow-axis grid positions
func (p Plan) YValues() []float64 {
	return axisValues(p.Y, p.Boundary)
}

// Dims returns the number of grid columns (fast axis) and rows (slow axis)
func (p Plan) Dims() (nx, ny int) {
	return len(p.XValues()), len(p.YValues())
}

// mask returns true if the coordinate should be skipped
func (p Plan) mask(c Coordinate) bool {
	if !p.CircleMask {
		return false
	}
	cx := (p.X.Min + p.X.Max) / 2
	cy := (p.Y.Min + p.Y.Max) / 2
	rx := (p.X.Max - p.X.Min) / 2
	ry := (p.Y.Max - p.Y.Min) / 2
	var t float64
	if rx > tol {
		dx := (c.X - cx) / rx
		t += dx * dx
	}
	if ry > tol {
		dy := (c.Y - cy) / ry
		t += dy * dy
	}
	return t > 1+tol
}

// Points returns a fresh sequence over the plan's coordinates
func (p Plan) Points() *Sequence {
	return &Sequence{
		plan: p,
		xs:   p.XValues(),
		ys:   p.YValues()}
}

// NumPoints returns the number of coordinates the sequence will yield
func (p Plan) NumPoints() int {
	seq := p.Points()
	n := 0
	for _, ok := seq.Next(); ok; _, ok = seq.Next() {
		n++
	}
	return n
}

// Estimate predicts the wall time of a scan from per-point costs
func (p Plan) Estimate(move, settle, acquire time.Duration) time.Duration {
	return time.Duration(p.NumPoints()) * (move + settle + acquire)
}

// Sequence is a lazy, restartable iterator over a plan's coordinates in
// traversal order.  It is a pure function of the plan; no hardware is
// touched.
type Sequence struct {
	plan Plan
	xs   []float64
	ys   []float64
	idx  int
}

// Len returns the total number of coordinates the sequence yields,
// accounting for the mask
func (s *Sequence) Len() int {
	return s.plan.NumPoints()
}

// Next returns the next coordinate in traversal order.  The second return
// is false when the sequence is exhausted.
func (s *Sequence) Next() (Coordinate, bool) {
	for {
		if s.idx >= len(s.xs)*len(s.ys) {
			return Coordinate{}, false
		}
		row := s.idx / len(s.xs)
		col := s.idx % len(s.xs)
		if s.plan.traversal() == Serpentine && row%2 == 1 {
			col = len(s.xs) - 1 - col
		}
		s.idx++
		c := Coordinate{X: s.xs[col], Y: s.ys[row]}
		if s.plan.mask(c) {
			continue
		}
		return c, true
	}
}

// Reset rewinds the sequence to the first coordinate
func (s *Sequence) Reset() {
	s.idx = 0
}

func (p Plan) traversal() Traversal {
	if p.Traversal == "" {
		return Serpentine
	}
	return p.Traversal
}
