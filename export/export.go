// Package export renders a finished (or in-progress) result grid to the
// formats operators consume: streaming CSV, FITS images, and heatmaps.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/ppfe/macrorig/scan"
)

// csvHeader is the column order of exported scan data.  Downstream analysis
// scripts index these by name; do not reorder.
var csvHeader = []string{"point_index", "x", "y", "daq_value", "timestamp", "datetime", "status"}

// WriteCSV writes one row per recorded point in traversal order.  Failed
// points carry NaN in the value column.
func WriteCSV(w io.Writer, g *scan.ResultGrid) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for i, r := range g.Results() {
		row := []string{
			strconv.Itoa(i),
			strconv.FormatFloat(r.Coord.X, 'g', -1, 64),
			strconv.FormatFloat(r.Coord.Y, 'g', -1, 64),
			strconv.FormatFloat(r.V, 'g', -1, 64),
			strconv.FormatFloat(float64(r.Timestamp.UnixNano())/1e9, 'f', 6, 64),
			r.Timestamp.Format(time.RFC3339Nano),
			string(r.Status),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Metadata is the sidecar summary written next to exported scan data
type Metadata struct {
	Plan        scan.Plan `json:"plan"`
	State       string    `json:"state"`
	TotalPoints int       `json:"totalPoints"`
	Recorded    int       `json:"recorded"`
	Failed      int       `json:"failed"`
	DurationSec float64   `json:"durationSec"`
}

// WriteMetadata writes the scan summary as indented JSON
func WriteMetadata(w io.Writer, g *scan.ResultGrid, pr scan.Progress) error {
	m := Metadata{
		Plan:        g.Plan(),
		State:       pr.State.String(),
		TotalPoints: pr.Total,
		Recorded:    g.Len(),
		Failed:      pr.Failed,
		DurationSec: pr.ElapsedSec}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(m)
}

// bounds returns the min and max over the non-NaN cells of a dense grid.
// The third return is false when every cell is NaN.
func bounds(data [][]float64) (lo, hi float64, ok bool) {
	lo = math.Inf(1)
	hi = math.Inf(-1)
	for _, row := range data {
		for _, v := range row {
			if math.IsNaN(v) {
				continue
			}
			ok = true
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
	}
	return lo, hi, ok
}

// errEmptyGrid is returned by renderers when there is nothing to draw
var errEmptyGrid = fmt.Errorf("no recorded points to render")
