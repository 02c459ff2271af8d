package scan

import (
	"math"
	"sync"
	"time"
)

// Status tags how a point's measurement concluded
type Status string

// the statuses a recorded point can carry
const (
	// StatusOK is a measurement that succeeded on the first attempt
	StatusOK Status = "ok"

	// StatusRetried is a measurement that succeeded after one or more faults
	StatusRetried Status = "retried"

	// StatusFailed is a point whose retries were exhausted; its value is NaN
	StatusFailed Status = "failed"
)

// Result is one point's measurement
type Result struct {
	// Coord is the grid coordinate the probe was at
	Coord Coordinate `json:"coord"`

	// V is the measured value, NaN for failed points
	V float64 `json:"v"`

	// Timestamp is when the measurement was captured
	Timestamp time.Time `json:"timestamp"`

	// Status tags how the measurement concluded
	Status Status `json:"status"`

	// Attempts is the number of acquisition attempts made, including
	// the successful one
	Attempts int `json:"attempts"`
}

// ResultGrid accumulates results for one scan session.  Record is called
// only by the orchestrator; reads are safe from any goroutine.
type ResultGrid struct {
	mu      sync.RWMutex
	plan    Plan
	results map[Coordinate]Result
}

// NewResultGrid returns an empty grid for the plan
func NewResultGrid(p Plan) *ResultGrid {
	return &ResultGrid{
		plan:    p,
		results: make(map[Coordinate]Result, p.NumPoints())}
}

// Plan returns the originating scan plan
func (g *ResultGrid) Plan() Plan {
	return g.plan
}

// Record stores a result.  Recording the same coordinate again overwrites,
// which is what retry semantics require.
func (g *ResultGrid) Record(r Result) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.results[r.Coord] = r
}

// Len returns the number of recorded points
func (g *ResultGrid) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.results)
}

// At returns the result recorded for a coordinate, if there is one
func (g *ResultGrid) At(c Coordinate) (Result, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	r, ok := g.results[c]
	return r, ok
}

// Missing returns the plan coordinates that have not been recorded yet,
// in traversal order
func (g *ResultGrid) Missing() []Coordinate {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var missing []Coordinate
	seq := g.plan.Points()
	for c, ok := seq.Next(); ok; c, ok = seq.Next() {
		if _, recorded := g.results[c]; !recorded {
			missing = append(missing, c)
		}
	}
	return missing
}

// Failed returns the coordinates whose retries were exhausted, in
// traversal order.  Operators use this to decide whether to re-scan.
func (g *ResultGrid) Failed() []Coordinate {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var failed []Coordinate
	seq := g.plan.Points()
	for c, ok := seq.Next(); ok; c, ok = seq.Next() {
		if r, recorded := g.results[c]; recorded && r.Status == StatusFailed {
			failed = append(failed, c)
		}
	}
	return failed
}

// Results returns a snapshot of all recorded results in traversal order
func (g *ResultGrid) Results() []Result {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Result, 0, len(g.results))
	seq := g.plan.Points()
	for c, ok := seq.Next(); ok; c, ok = seq.Next() {
		if r, recorded := g.results[c]; recorded {
			out = append(out, r)
		}
	}
	return out
}

// Export renders the grid as a dense [row][col] = [slow][fast] array whose
// shape always matches the plan's dimensions.  Unrecorded and mask-excluded
// cells hold NaN.
func (g *ResultGrid) Export() [][]float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	xs := g.plan.XValues()
	ys := g.plan.YValues()
	out := make([][]float64, len(ys))
	for iy := range ys {
		row := make([]float64, len(xs))
		for ix := range xs {
			row[ix] = math.NaN()
			if r, ok := g.results[Coordinate{X: xs[ix], Y: ys[iy]}]; ok {
				row[ix] = r.V
			}
		}
		out[iy] = row
	}
	return out
}
