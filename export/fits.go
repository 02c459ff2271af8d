package export

import (
	"io"

	"github.com/astrogo/fitsio"

	"github.com/ppfe/macrorig/scan"
)

// WriteFITS streams the result grid to w as a 2D double-precision FITS
// image.  The fast axis is the first dimension; failed and unvisited cells
// are NaN, which FITS represents natively for floating point data.
func WriteFITS(w io.Writer, g *scan.ResultGrid) error {
	p := g.Plan()
	xs := p.XValues()
	ys := p.YValues()
	cards := []fitsio.Card{
		{Name: "XMIN", Value: p.X.Min, Comment: "fast axis minimum [mm]"},
		{Name: "XMAX", Value: p.X.Max, Comment: "fast axis maximum [mm]"},
		{Name: "XSTEP", Value: p.X.Step, Comment: "fast axis pitch [mm]"},
		{Name: "YMIN", Value: p.Y.Min, Comment: "slow axis minimum [mm]"},
		{Name: "YMAX", Value: p.Y.Max, Comment: "slow axis maximum [mm]"},
		{Name: "YSTEP", Value: p.Y.Step, Comment: "slow axis pitch [mm]"},
		{Name: "NPOINTS", Value: g.Len(), Comment: "recorded points"},
		{Name: "NFAILED", Value: len(g.Failed()), Comment: "points with exhausted retries"},
	}
	fits, err := fitsio.Create(w)
	if err != nil {
		return err
	}
	defer fits.Close()
	im := fitsio.NewImage(-64, []int{len(xs), len(ys)})
	defer im.Close()
	err = im.Header().Append(cards...)
	if err != nil {
		return err
	}
	data := g.Export()
	flat := make([]float64, 0, len(xs)*len(ys))
	for _, row := range data {
		flat = append(flat, row...)
	}
	err = im.Write(flat)
	if err != nil {
		return err
	}
	return fits.Write(im)
}
