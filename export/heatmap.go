package export

import (
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/ppfe/macrorig/scan"
)

// gridData adapts a dense exported grid to the plotter's grid contract
type gridData struct {
	xs, ys []float64
	data   [][]float64
}

func (g gridData) Dims() (c, r int)   { return len(g.xs), len(g.ys) }
func (g gridData) Z(c, r int) float64 { return g.data[r][c] }
func (g gridData) X(c int) float64    { return g.xs[c] }
func (g gridData) Y(r int) float64    { return g.ys[r] }

// WriteHeatmapPNG renders the result grid as a heatmap PNG.  Cells without
// data are drawn at the bottom of the color scale; the scale itself is set
// from the recorded values so failed points do not skew it.
func WriteHeatmapPNG(w io.Writer, g *scan.ResultGrid) error {
	p := g.Plan()
	data := g.Export()
	lo, hi, ok := bounds(data)
	if !ok {
		return errEmptyGrid
	}
	if hi == lo {
		hi = lo + 1
	}
	for iy := range data {
		for ix := range data[iy] {
			if data[iy][ix] != data[iy][ix] {
				data[iy][ix] = lo
			}
		}
	}
	grid := gridData{xs: p.XValues(), ys: p.YValues(), data: data}
	hm := plotter.NewHeatMap(grid, palette.Heat(12, 1))
	hm.Min = lo
	hm.Max = hi

	plt := plot.New()
	plt.Title.Text = "Scan Results"
	plt.X.Label.Text = "X Position (mm)"
	plt.Y.Label.Text = "Y Position (mm)"
	plt.Add(hm)

	wt, err := plt.WriterTo(8*vg.Inch, 6*vg.Inch, "png")
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}
