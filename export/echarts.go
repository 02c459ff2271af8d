package export

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/ppfe/macrorig/scan"
)

// viridis is the color ramp used for the interactive heatmap
var viridis = []string{
	"#440154", "#482777", "#3e4989", "#31688e", "#26828e",
	"#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}

// RenderHeatmapHTML renders the result grid as a standalone interactive
// HTML heatmap.  Cells without data are left blank.
func RenderHeatmapHTML(w io.Writer, g *scan.ResultGrid) error {
	p := g.Plan()
	xs := p.XValues()
	ys := p.YValues()
	data := g.Export()
	lo, hi, ok := bounds(data)
	if !ok {
		return errEmptyGrid
	}
	items := make([]opts.HeatMapData, 0, len(xs)*len(ys))
	for iy := range ys {
		for ix := range xs {
			v := data[iy][ix]
			if math.IsNaN(v) {
				continue
			}
			items = append(items, opts.HeatMapData{Value: []interface{}{ix, iy, v}})
		}
	}

	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: "Scan Results",
			Width:     "900px",
			Height:    "600px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Scan Results",
			Subtitle: fmt.Sprintf("%d x %d grid, %d points recorded", len(xs), len(ys), g.Len())}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Name: "X (mm)", Data: axisLabels(xs)}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Name: "Y (mm)", Data: axisLabels(ys)}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        float32(lo),
			Max:        float32(hi),
			InRange:    &opts.VisualMapInRange{Color: viridis},
		}),
	)
	hm.SetXAxis(axisLabels(xs)).AddSeries("value", items)
	return hm.Render(w)
}

func axisLabels(vals []float64) []string {
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return out
}
