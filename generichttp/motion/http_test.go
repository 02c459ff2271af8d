package motion

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi"

	"github.com/ppfe/macrorig/util"
)

// stubController is an in-memory Controller implementing all the optional
// interfaces, so the HTTP wrapper exposes its full route set
type stubController struct {
	pos     map[string]float64
	vel     map[string]float64
	enabled map[string]bool
}

func newStubController() *stubController {
	return &stubController{
		pos:     map[string]float64{},
		vel:     map[string]float64{},
		enabled: map[string]bool{}}
}

func (s *stubController) GetPos(axis string) (float64, error) { return s.pos[axis], nil }

func (s *stubController) MoveAbs(axis string, p float64) error { s.pos[axis] = p; return nil }

func (s *stubController) MoveRel(axis string, d float64) error { s.pos[axis] += d; return nil }

func (s *stubController) Home(axis string) error { s.pos[axis] = 0; return nil }

func (s *stubController) Enable(axis string) error { s.enabled[axis] = true; return nil }

func (s *stubController) Disable(axis string) error { s.enabled[axis] = false; return nil }

func (s *stubController) GetEnabled(axis string) (bool, error) { return s.enabled[axis], nil }

func (s *stubController) GetInPosition(axis string) (bool, error) { return true, nil }

func (s *stubController) SetVelocity(axis string, v float64) error { s.vel[axis] = v; return nil }

func (s *stubController) GetVelocity(axis string) (float64, error) { return s.vel[axis], nil }

func motionRouter(ctl *stubController) chi.Router {
	h := NewHTTPMotionController(ctl)
	limits := LimitMiddleware{
		Mov:    ctl,
		Limits: map[string]util.Limiter{"X": {Min: 0, Max: 10}}}
	limits.Inject(h)
	router := chi.NewRouter()
	router.Use(limits.Check)
	h.RT().Bind(router)
	return router
}

func TestGetPosJSON(t *testing.T) {
	ctl := newStubController()
	ctl.pos["X"] = 2.5
	router := motionRouter(ctl)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/axis/X/pos", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got := strings.TrimSpace(w.Body.String()); got != `{"f64":2.5}` {
		t.Errorf("expected f64 payload, got %s", got)
	}
}

func TestSetPosWithinLimits(t *testing.T) {
	ctl := newStubController()
	router := motionRouter(ctl)
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/axis/X/pos", strings.NewReader(`{"f64":5}`))
	router.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if ctl.pos["X"] != 5 {
		t.Errorf("expected the move to land, pos = %g", ctl.pos["X"])
	}
}

func TestSetPosBeyondLimitRejected(t *testing.T) {
	ctl := newStubController()
	router := motionRouter(ctl)
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/axis/X/pos", strings.NewReader(`{"f64":50}`))
	router.ServeHTTP(w, r)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if ctl.pos["X"] != 0 {
		t.Errorf("expected the move rejected before reaching the driver, pos = %g", ctl.pos["X"])
	}
}

func TestSetPosRelativeCheckedAgainstCurrent(t *testing.T) {
	ctl := newStubController()
	ctl.pos["X"] = 8
	router := motionRouter(ctl)
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/axis/X/pos?relative=true", strings.NewReader(`{"f64":5}`))
	router.ServeHTTP(w, r)
	// 8 + 5 violates the [0, 10] limit
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if ctl.pos["X"] != 8 {
		t.Errorf("expected position untouched, pos = %g", ctl.pos["X"])
	}
}

func TestUnlimitedAxisPasses(t *testing.T) {
	ctl := newStubController()
	router := motionRouter(ctl)
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/axis/Y/pos", strings.NewReader(`{"f64":50}`))
	router.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for an axis with no limit, got %d", w.Code)
	}
	if ctl.pos["Y"] != 50 {
		t.Errorf("expected the move to land, pos = %g", ctl.pos["Y"])
	}
}

func TestGetEnabledJSON(t *testing.T) {
	ctl := newStubController()
	ctl.enabled["X"] = true
	router := motionRouter(ctl)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/axis/X/enabled", nil))
	if got := strings.TrimSpace(w.Body.String()); got != `{"bool":true}` {
		t.Errorf("expected bool payload, got %s", got)
	}
}

func TestSetVelocity(t *testing.T) {
	ctl := newStubController()
	router := motionRouter(ctl)
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/axis/X/velocity", strings.NewReader(`{"f64":30}`))
	router.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ctl.vel["X"] != 30 {
		t.Errorf("expected velocity setpoint stored, got %g", ctl.vel["X"])
	}
}
