package export

import (
	"bytes"
	"encoding/csv"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ppfe/macrorig/scan"
)

func filledGrid() *scan.ResultGrid {
	p := scan.Plan{
		X: scan.Span{Min: 0, Max: 1, Step: 1},
		Y: scan.Span{Min: 0, Max: 1, Step: 1}}
	g := scan.NewResultGrid(p)
	ts := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	g.Record(scan.Result{Coord: scan.Coordinate{X: 0, Y: 0}, V: 1.5, Timestamp: ts, Status: scan.StatusOK, Attempts: 1})
	g.Record(scan.Result{Coord: scan.Coordinate{X: 1, Y: 0}, V: 2.5, Timestamp: ts, Status: scan.StatusRetried, Attempts: 2})
	g.Record(scan.Result{Coord: scan.Coordinate{X: 1, Y: 1}, V: math.NaN(), Timestamp: ts, Status: scan.StatusFailed, Attempts: 3})
	return g
}

func TestWriteCSV(t *testing.T) {
	buf := bytes.Buffer{}
	err := WriteCSV(&buf, filledGrid())
	if err != nil {
		t.Fatal(err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected header plus 3 rows, got %d", len(rows))
	}
	header := strings.Join(rows[0], ",")
	if header != "point_index,x,y,daq_value,timestamp,datetime,status" {
		t.Errorf("unexpected header %q", header)
	}
	// rows come back in traversal order with sequential indices
	if rows[1][0] != "0" || rows[2][0] != "1" || rows[3][0] != "2" {
		t.Errorf("point indices out of order: %v %v %v", rows[1][0], rows[2][0], rows[3][0])
	}
	if rows[1][3] != "1.5" {
		t.Errorf("expected value 1.5 in first row, got %q", rows[1][3])
	}
	if rows[3][3] != "NaN" {
		t.Errorf("expected NaN for the failed point, got %q", rows[3][3])
	}
	if rows[3][6] != "failed" {
		t.Errorf("expected failed status, got %q", rows[3][6])
	}
}

func TestWriteCSVEmptyGrid(t *testing.T) {
	p := scan.Plan{
		X: scan.Span{Min: 0, Max: 1, Step: 1},
		Y: scan.Span{Min: 0, Max: 1, Step: 1}}
	buf := bytes.Buffer{}
	if err := WriteCSV(&buf, scan.NewResultGrid(p)); err != nil {
		t.Fatal(err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Errorf("expected header only, got %d rows", len(rows))
	}
}

func TestBounds(t *testing.T) {
	nan := math.NaN()
	lo, hi, ok := bounds([][]float64{{nan, 2}, {5, -1}})
	if !ok {
		t.Fatal("expected data to be found")
	}
	if lo != -1 || hi != 5 {
		t.Errorf("expected bounds [-1, 5], got [%g, %g]", lo, hi)
	}
	_, _, ok = bounds([][]float64{{nan}, {nan}})
	if ok {
		t.Error("expected all-NaN grid to report no data")
	}
}

func TestGridDataAdapter(t *testing.T) {
	g := gridData{
		xs:   []float64{0, 1, 2},
		ys:   []float64{0, 5},
		data: [][]float64{{1, 2, 3}, {4, 5, 6}}}
	c, r := g.Dims()
	if c != 3 || r != 2 {
		t.Fatalf("expected dims (3, 2), got (%d, %d)", c, r)
	}
	if g.Z(2, 1) != 6 {
		t.Errorf("expected Z(2, 1) == 6, got %g", g.Z(2, 1))
	}
	if g.X(1) != 1 || g.Y(1) != 5 {
		t.Errorf("axis lookup wrong: X(1)=%g Y(1)=%g", g.X(1), g.Y(1))
	}
}

func TestHTTPExporterNoGrid(t *testing.T) {
	h := NewHTTPExporter(func() *scan.ResultGrid { return nil })
	for _, route := range []http.HandlerFunc{h.CSV, h.FITS, h.PNG, h.HTML} {
		w := httptest.NewRecorder()
		route(w, httptest.NewRequest(http.MethodGet, "/", nil))
		if w.Code != http.StatusNotFound {
			t.Errorf("expected 404 before the first scan, got %d", w.Code)
		}
	}
}

func TestHTTPExporterCSV(t *testing.T) {
	g := filledGrid()
	h := NewHTTPExporter(func() *scan.ResultGrid { return g })
	w := httptest.NewRecorder()
	h.CSV(w, httptest.NewRequest(http.MethodGet, "/results.csv", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("expected text/csv, got %q", ct)
	}
	if !strings.HasPrefix(w.Body.String(), "point_index,") {
		t.Error("expected body to begin with the CSV header")
	}
}

func TestWriteMetadata(t *testing.T) {
	buf := bytes.Buffer{}
	pr := scan.Progress{State: scan.StateCompleted, Total: 4, Failed: 1, ElapsedSec: 12.5}
	if err := WriteMetadata(&buf, filledGrid(), pr); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{`"state": "completed"`, `"totalPoints": 4`, `"failed": 1`} {
		if !strings.Contains(out, want) {
			t.Errorf("expected metadata to contain %s, got %s", want, out)
		}
	}
}
