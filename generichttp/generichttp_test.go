package generichttp

import (
	"errors"
	"go/types"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi"
)

func TestEncodeAndRespond(t *testing.T) {
	cases := []struct {
		hp       HumanPayload
		expected string
	}{
		{HumanPayload{T: types.Bool, Bool: true}, `{"bool":true}`},
		{HumanPayload{T: types.Int, Int: 7}, `{"int":7}`},
		{HumanPayload{T: types.Float64, Float: 1.5}, `{"f64":1.5}`},
		{HumanPayload{T: types.String, String: "ok"}, `{"str":"ok"}`},
	}
	for _, c := range cases {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		c.hp.EncodeAndRespond(w, r)
		if got := strings.TrimSpace(w.Body.String()); got != c.expected {
			t.Errorf("expected %s, got %s", c.expected, got)
		}
		if ct := w.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected application/json, got %s", ct)
		}
	}
}

func TestGetFloat(t *testing.T) {
	h := GetFloat(func() (float64, error) { return 2.25, nil })
	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if got := strings.TrimSpace(w.Body.String()); got != `{"f64":2.25}` {
		t.Errorf("expected f64 payload, got %s", got)
	}
}

func TestGetFloatError(t *testing.T) {
	h := GetFloat(func() (float64, error) { return 0, errors.New("no device") })
	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
}

func TestSetFloat(t *testing.T) {
	var got float64
	h := SetFloat(func(f float64) error { got = f; return nil })
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"f64":3.5}`))
	h(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got != 3.5 {
		t.Errorf("expected 3.5 passed through, got %g", got)
	}
}

func TestSetFloatBadBody(t *testing.T) {
	h := SetFloat(func(f float64) error { return nil })
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("not json"))
	h(w, r)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestGetBool(t *testing.T) {
	h := GetBool(func() (bool, error) { return true, nil })
	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if got := strings.TrimSpace(w.Body.String()); got != `{"bool":true}` {
		t.Errorf("expected bool payload, got %s", got)
	}
}

func TestRouteTableBind(t *testing.T) {
	rt := RouteTable{}
	rt[MethodPath{Method: http.MethodGet, Path: "/thing"}] = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}
	router := chi.NewRouter()
	rt.Bind(router)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/thing", nil))
	if w.Code != http.StatusOK {
		t.Errorf("expected bound route to answer, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/endpoints", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected endpoints listing, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "/thing") {
		t.Errorf("expected /thing in the endpoint list, got %s", w.Body.String())
	}
}
