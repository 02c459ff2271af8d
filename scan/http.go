package scan

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"

	"github.com/ppfe/macrorig/generichttp"
)

// HTTPOrchestrator wraps an orchestrator with an HTTP interface
type HTTPOrchestrator struct {
	O *Orchestrator

	RouteTable generichttp.RouteTable
}

// NewHTTPOrchestrator returns an HTTP wrapper with the route table
// pre-configured
func NewHTTPOrchestrator(o *Orchestrator) HTTPOrchestrator {
	w := HTTPOrchestrator{O: o}
	rt := generichttp.RouteTable{}
	rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/start"}] = w.Start
	rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/abort"}] = w.Abort
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/status"}] = w.Status
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/progress"}] = w.Progress
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/failed"}] = w.Failed
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/grid"}] = w.Grid
	w.RouteTable = rt
	return w
}

// RT satisfies the HTTPer interface
func (h HTTPOrchestrator) RT() generichttp.RouteTable {
	return h.RouteTable
}

// Start parses a plan from the request body and begins a scan.  Bad plans
// get 400, a session already running gets 409.
func (h HTTPOrchestrator) Start(w http.ResponseWriter, r *http.Request) {
	p := Plan{}
	err := json.NewDecoder(r.Body).Decode(&p)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	err = h.O.Start(p)
	if err != nil {
		var se SessionError
		if errors.As(err, &se) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		var pe PlanError
		if errors.As(err, &pe) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// Abort requests the running scan stop at the next safe boundary
func (h HTTPOrchestrator) Abort(w http.ResponseWriter, r *http.Request) {
	h.O.Abort()
	w.WriteHeader(http.StatusOK)
}

type statusT struct {
	State State    `json:"state"`
	Sub   SubState `json:"substate,omitempty"`
	Fault string   `json:"fault,omitempty"`
}

// Status returns the session state, sub-state, and fault cause if any
func (h HTTPOrchestrator) Status(w http.ResponseWriter, r *http.Request) {
	st, sub := h.O.Status()
	s := statusT{State: st, Sub: sub}
	if err := h.O.FaultCause(); err != nil {
		s.Fault = err.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	err := json.NewEncoder(w).Encode(s)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// Progress returns a snapshot of the scan's advancement
func (h HTTPOrchestrator) Progress(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	err := json.NewEncoder(w).Encode(h.O.Progress())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// Failed returns the coordinates whose retries were exhausted.  404 before
// the first scan.
func (h HTTPOrchestrator) Failed(w http.ResponseWriter, r *http.Request) {
	g := h.O.Grid()
	if g == nil {
		http.Error(w, "no scan has been run", http.StatusNotFound)
		return
	}
	failed := g.Failed()
	if failed == nil {
		failed = []Coordinate{}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	err := json.NewEncoder(w).Encode(failed)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// nullFloat marshals NaN as null, which encoding/json refuses to do for
// a plain float64
type nullFloat float64

func (f nullFloat) MarshalJSON() ([]byte, error) {
	if math.IsNaN(float64(f)) {
		return []byte("null"), nil
	}
	return json.Marshal(float64(f))
}

type gridT struct {
	X    []float64     `json:"x"`
	Y    []float64     `json:"y"`
	Data [][]nullFloat `json:"data"`
}

// Grid returns the dense result grid with its axis positions.  Failed and
// unvisited cells are null in the JSON; consumers treat null as NaN.
func (h HTTPOrchestrator) Grid(w http.ResponseWriter, r *http.Request) {
	g := h.O.Grid()
	if g == nil {
		http.Error(w, "no scan has been run", http.StatusNotFound)
		return
	}
	p := g.Plan()
	raw := g.Export()
	data := make([][]nullFloat, len(raw))
	for i, row := range raw {
		data[i] = make([]nullFloat, len(row))
		for j, v := range row {
			data[i][j] = nullFloat(v)
		}
	}
	out := gridT{X: p.XValues(), Y: p.YValues(), Data: data}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	err := json.NewEncoder(w).Encode(out)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
