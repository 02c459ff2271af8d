package scan

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppfe/macrorig/daq"
)

func scanRouter(o *Orchestrator) chi.Router {
	router := chi.NewRouter()
	NewHTTPOrchestrator(o).RT().Bind(router)
	return router
}

func TestHTTPStartBadPlanIs400(t *testing.T) {
	o := New(&fakeAxes{}, &fakeSampler{}, fastConfig())
	router := scanRouter(o)
	w := httptest.NewRecorder()
	body := `{"x":{"min":5,"max":0,"step":1},"y":{"min":0,"max":1,"step":1}}`
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/start", strings.NewReader(body)))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	st, _ := o.Status()
	assert.Equal(t, StateIdle, st)
}

func TestHTTPStartMalformedBodyIs400(t *testing.T) {
	o := New(&fakeAxes{}, &fakeSampler{}, fastConfig())
	router := scanRouter(o)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/start", strings.NewReader("not json")))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHTTPStartWhileRunningIs409(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	sampler := &fakeSampler{v: 1.0}
	sampler.onAcquire = func(call int) {
		if call == 1 {
			close(started)
			<-release
		}
	}
	o := New(&fakeAxes{}, sampler, fastConfig())
	router := scanRouter(o)

	body := `{"x":{"min":0,"max":1,"step":1},"y":{"min":0,"max":1,"step":1}}`
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/start", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, w.Code)
	<-started

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/start", strings.NewReader(body)))
	assert.Equal(t, http.StatusConflict, w.Code)

	close(release)
	waitDone(t, o)
	st, _ := o.Status()
	assert.Equal(t, StateCompleted, st)
}

func TestHTTPStatusReportsFault(t *testing.T) {
	sampler := &fakeSampler{errs: []error{daq.Fault{Kind: daq.FaultComm}}}
	o := New(&fakeAxes{}, sampler, fastConfig())
	require.NoError(t, o.Start(plan2x2()))
	waitDone(t, o)

	router := scanRouter(o)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var s struct {
		State string `json:"state"`
		Fault string `json:"fault"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &s))
	assert.Equal(t, "faulted", s.State)
	assert.Contains(t, s.Fault, "communication loss")
}

func TestHTTPProgressAfterCompletion(t *testing.T) {
	o := New(&fakeAxes{}, &fakeSampler{v: 1.0}, fastConfig())
	require.NoError(t, o.Start(plan2x2()))
	waitDone(t, o)

	router := scanRouter(o)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/progress", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var pr Progress
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pr))
	assert.Equal(t, StateCompleted, pr.State)
	assert.Equal(t, 4, pr.Index)
	assert.Equal(t, 4, pr.Total)
}

func TestHTTPGridBeforeFirstScanIs404(t *testing.T) {
	o := New(&fakeAxes{}, &fakeSampler{}, fastConfig())
	router := scanRouter(o)
	for _, path := range []string{"/grid", "/failed"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, w.Code, path)
	}
}

func TestHTTPGridEncodesFailedCellsAsNull(t *testing.T) {
	// three timeouts exhaust the retries on the first point
	sampler := &fakeSampler{
		v: 2.0,
		errs: []error{
			daq.Fault{Kind: daq.FaultTimeout},
			daq.Fault{Kind: daq.FaultTimeout},
			daq.Fault{Kind: daq.FaultTimeout}}}
	o := New(&fakeAxes{}, sampler, fastConfig())
	require.NoError(t, o.Start(plan2x2()))
	waitDone(t, o)

	router := scanRouter(o)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/grid", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var g struct {
		X    []float64    `json:"x"`
		Y    []float64    `json:"y"`
		Data [][]*float64 `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &g))
	require.Equal(t, []float64{0, 1}, g.X)
	require.Equal(t, []float64{0, 1}, g.Y)
	require.Len(t, g.Data, 2)
	assert.Nil(t, g.Data[0][0])
	require.NotNil(t, g.Data[0][1])
	assert.Equal(t, 2.0, *g.Data[0][1])

	// the failed list names the exhausted coordinate
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/failed", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var failed []Coordinate
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &failed))
	require.Len(t, failed, 1)
	assert.Equal(t, Coordinate{X: 0, Y: 0}, failed[0])

	// the grid itself holds NaN, not zero
	r, ok := o.Grid().At(Coordinate{X: 0, Y: 0})
	require.True(t, ok)
	assert.True(t, math.IsNaN(r.V))
}

func TestHTTPAbort(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	sampler := &fakeSampler{v: 1.0}
	sampler.onAcquire = func(call int) {
		if call == 1 {
			close(started)
			<-release
		}
	}
	o := New(&fakeAxes{}, sampler, fastConfig())
	require.NoError(t, o.Start(plan2x2()))
	<-started

	router := scanRouter(o)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/abort", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	close(release)
	waitDone(t, o)
	st, _ := o.Status()
	assert.Equal(t, StateAborted, st)
}
