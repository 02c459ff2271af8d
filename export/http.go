package export

import (
	"net/http"

	"github.com/ppfe/macrorig/generichttp"
	"github.com/ppfe/macrorig/scan"
)

// HTTPExporter serves the current result grid in downloadable formats.
// Source returns nil before the first scan; the handlers answer 404 then.
type HTTPExporter struct {
	Source func() *scan.ResultGrid

	RouteTable generichttp.RouteTable
}

// NewHTTPExporter returns an exporter with the route table pre-configured
func NewHTTPExporter(source func() *scan.ResultGrid) HTTPExporter {
	h := HTTPExporter{Source: source}
	rt := generichttp.RouteTable{}
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/results.csv"}] = h.CSV
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/results.fits"}] = h.FITS
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/heatmap.png"}] = h.PNG
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/heatmap"}] = h.HTML
	h.RouteTable = rt
	return h
}

// RT satisfies the HTTPer interface
func (h HTTPExporter) RT() generichttp.RouteTable {
	return h.RouteTable
}

func (h HTTPExporter) grid(w http.ResponseWriter) *scan.ResultGrid {
	g := h.Source()
	if g == nil {
		http.Error(w, "no scan has been run", http.StatusNotFound)
	}
	return g
}

// CSV streams the recorded points as CSV
func (h HTTPExporter) CSV(w http.ResponseWriter, r *http.Request) {
	g := h.grid(w)
	if g == nil {
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="results.csv"`)
	if err := WriteCSV(w, g); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// FITS streams the grid as a FITS image
func (h HTTPExporter) FITS(w http.ResponseWriter, r *http.Request) {
	g := h.grid(w)
	if g == nil {
		return
	}
	w.Header().Set("Content-Type", "application/fits")
	w.Header().Set("Content-Disposition", `attachment; filename="results.fits"`)
	if err := WriteFITS(w, g); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// PNG renders the grid as a heatmap image
func (h HTTPExporter) PNG(w http.ResponseWriter, r *http.Request) {
	g := h.grid(w)
	if g == nil {
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if err := WriteHeatmapPNG(w, g); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// HTML renders the grid as an interactive heatmap page
func (h HTTPExporter) HTML(w http.ResponseWriter, r *http.Request) {
	g := h.grid(w)
	if g == nil {
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := RenderHeatmapHTML(w, g); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
