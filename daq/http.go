package daq

import (
	"encoding/json"
	"net/http"

	"github.com/ppfe/macrorig/generichttp"
)

// HTTPSampler wraps a sampler with an HTTP interface for probe checks
// outside of a scan
type HTTPSampler struct {
	Sampler

	RouteTable generichttp.RouteTable
}

// NewHTTPSampler returns an HTTP wrapper with the route table pre-configured
func NewHTTPSampler(s Sampler) HTTPSampler {
	w := HTTPSampler{Sampler: s}
	rt := generichttp.RouteTable{}
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/reading"}] = Acquire(s)
	rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/configure"}] = Configure(s)
	w.RouteTable = rt
	return w
}

// RT satisfies the HTTPer interface
func (h HTTPSampler) RT() generichttp.RouteTable {
	return h.RouteTable
}

// Acquire returns an HTTP handler func that triggers a single measurement
func Acquire(s Sampler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sample, err := s.Acquire()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		err = json.NewEncoder(w).Encode(sample)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

// Configure returns an HTTP handler func that programs the channel settings
func Configure(s Sampler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cs := ChannelSettings{}
		err := json.NewDecoder(r.Body).Decode(&cs)
		defer r.Body.Close()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		err = s.Configure(cs)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}
