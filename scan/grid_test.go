package scan

import (
	"math"
	"testing"
	"time"
)

func testPlan() Plan {
	return Plan{
		X: Span{Min: 0, Max: 2, Step: 1},
		Y: Span{Min: 0, Max: 1, Step: 1}}
}

func TestGridRecordAndAt(t *testing.T) {
	g := NewResultGrid(testPlan())
	c := Coordinate{X: 1, Y: 0}
	g.Record(Result{Coord: c, V: 2.5, Timestamp: time.Now(), Status: StatusOK, Attempts: 1})
	r, ok := g.At(c)
	if !ok {
		t.Fatal("expected a result at (1, 0)")
	}
	if r.V != 2.5 || r.Status != StatusOK {
		t.Errorf("unexpected result %+v", r)
	}
	if _, ok := g.At(Coordinate{X: 2, Y: 1}); ok {
		t.Error("expected no result at an unvisited coordinate")
	}
}

func TestGridRecordOverwrites(t *testing.T) {
	g := NewResultGrid(testPlan())
	c := Coordinate{X: 0, Y: 0}
	g.Record(Result{Coord: c, V: math.NaN(), Status: StatusFailed, Attempts: 3})
	g.Record(Result{Coord: c, V: 1.0, Status: StatusRetried, Attempts: 2})
	if g.Len() != 1 {
		t.Errorf("expected re-recording to overwrite, got %d entries", g.Len())
	}
	r, _ := g.At(c)
	if r.Status != StatusRetried || r.V != 1.0 {
		t.Errorf("expected the later result to win, got %+v", r)
	}
}

func TestGridMissingInTraversalOrder(t *testing.T) {
	g := NewResultGrid(testPlan())
	g.Record(Result{Coord: Coordinate{X: 0, Y: 0}, V: 1, Status: StatusOK, Attempts: 1})
	g.Record(Result{Coord: Coordinate{X: 1, Y: 0}, V: 1, Status: StatusOK, Attempts: 1})
	missing := g.Missing()
	expected := []Coordinate{{2, 0}, {2, 1}, {1, 1}, {0, 1}}
	if !sameCoords(missing, expected) {
		t.Errorf("expected %v, got %v", expected, missing)
	}
}

func TestGridFailed(t *testing.T) {
	g := NewResultGrid(testPlan())
	g.Record(Result{Coord: Coordinate{X: 0, Y: 0}, V: 1, Status: StatusOK, Attempts: 1})
	g.Record(Result{Coord: Coordinate{X: 1, Y: 0}, V: math.NaN(), Status: StatusFailed, Attempts: 3})
	failed := g.Failed()
	if len(failed) != 1 || failed[0] != (Coordinate{X: 1, Y: 0}) {
		t.Errorf("expected [(1, 0)], got %v", failed)
	}
}

func TestGridResultsInTraversalOrder(t *testing.T) {
	g := NewResultGrid(testPlan())
	// record out of order; Results must come back in traversal order
	g.Record(Result{Coord: Coordinate{X: 2, Y: 0}, V: 3, Status: StatusOK, Attempts: 1})
	g.Record(Result{Coord: Coordinate{X: 0, Y: 0}, V: 1, Status: StatusOK, Attempts: 1})
	rs := g.Results()
	if len(rs) != 2 {
		t.Fatalf("expected 2 results, got %d", len(rs))
	}
	if rs[0].V != 1 || rs[1].V != 3 {
		t.Errorf("results out of traversal order: %+v", rs)
	}
}

func TestGridExportShapeAndNaN(t *testing.T) {
	p := testPlan()
	g := NewResultGrid(p)
	g.Record(Result{Coord: Coordinate{X: 1, Y: 1}, V: 7, Status: StatusOK, Attempts: 1})
	out := g.Export()
	nx, ny := p.Dims()
	if len(out) != ny {
		t.Fatalf("expected %d rows, got %d", ny, len(out))
	}
	for iy := range out {
		if len(out[iy]) != nx {
			t.Fatalf("row %d: expected %d columns, got %d", iy, nx, len(out[iy]))
		}
	}
	if out[1][1] != 7 {
		t.Errorf("expected out[1][1] == 7, got %g", out[1][1])
	}
	if !math.IsNaN(out[0][0]) {
		t.Errorf("expected NaN at an unvisited cell, got %g", out[0][0])
	}
}

func TestGridExportMaskedCellsAreNaN(t *testing.T) {
	p := Plan{
		X:          Span{Min: -1, Max: 1, Step: 1},
		Y:          Span{Min: -1, Max: 1, Step: 1},
		CircleMask: true}
	g := NewResultGrid(p)
	seq := p.Points()
	for c, ok := seq.Next(); ok; c, ok = seq.Next() {
		g.Record(Result{Coord: c, V: 1, Status: StatusOK, Attempts: 1})
	}
	out := g.Export()
	// corners are outside the inscribed circle and never visited
	if !math.IsNaN(out[0][0]) || !math.IsNaN(out[2][2]) {
		t.Error("expected masked corners to export as NaN")
	}
	if out[1][1] != 1 {
		t.Errorf("expected center cell recorded, got %g", out[1][1])
	}
}
