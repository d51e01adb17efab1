package georef

import (
	"math"

	"github.com/wgdzlh/geovrt/gcp"
	"github.com/wgdzlh/geovrt/geoloc"
	"github.com/wgdzlh/geovrt/raster"
)

const (
	gridFitCount  = 20
	newtonSteps   = 6
	newtonEpsilon = 1e-3
)

// GridModel interpolates a geolocation grid bilinearly. The inverse starts
// from a polynomial fit of sampled grid points and is refined with Newton
// steps against the forward model.
type GridModel struct {
	grid     *geoloc.Grid
	lon, lat *raster.Array
	guess    *PolynomialModel
}

func NewGridModel(g *geoloc.Grid) (*GridModel, error) {
	lon, lat, err := g.Resolve()
	if err != nil {
		return nil, err
	}
	return newGridModel(g, lon, lat)
}

func newGridModel(g *geoloc.Grid, lon, lat *raster.Array) (m *GridModel, err error) {
	m = &GridModel{grid: g, lon: lon, lat: lat}
	pts, err := gcp.FromGrid(lon, lat, g.PixelStep, g.LineStep, gridFitCount, "")
	if err != nil {
		return nil, err
	}
	for i := range pts {
		pts[i].Pixel, pts[i].Line = g.ImageCoord((pts[i].Pixel-0.5)/g.PixelStep, (pts[i].Line-0.5)/g.LineStep)
	}
	if m.guess, err = NewPolynomial(pts, 2); err != nil {
		return nil, err
	}
	return
}

func (m *GridModel) at(pixel, line float64) (x, y float64) {
	gi, gj := m.grid.GridCoord(pixel, line)
	w, h := m.lon.Width, m.lon.Height
	if gi < -1 || gj < -1 || gi > float64(w) || gj > float64(h) || math.IsNaN(gi) || math.IsNaN(gj) {
		return math.NaN(), math.NaN()
	}
	return bilinear(m.lon, gi, gj), bilinear(m.lat, gi, gj)
}

// linear inside the grid, extrapolated from the border cell outside it
func bilinear(a *raster.Array, gi, gj float64) float64 {
	i0 := clampCell(int(math.Floor(gi)), a.Width)
	j0 := clampCell(int(math.Floor(gj)), a.Height)
	i1, j1 := min(i0+1, a.Width-1), min(j0+1, a.Height-1)
	ti, tj := gi-float64(i0), gj-float64(j0)
	if i1 == i0 {
		ti = 0
	}
	if j1 == j0 {
		tj = 0
	}
	v00, v10 := a.At(i0, j0), a.At(i1, j0)
	v01, v11 := a.At(i0, j1), a.At(i1, j1)
	top := v00 + (v10-v00)*ti
	bottom := v01 + (v11-v01)*ti
	return top + (bottom-top)*tj
}

func clampCell(i, n int) int {
	if i > n-2 {
		i = n - 2
	}
	if i < 0 {
		i = 0
	}
	return i
}

func (m *GridModel) Forward(xs, ys []float64) {
	for i := range xs {
		xs[i], ys[i] = m.at(xs[i], ys[i])
	}
}

func (m *GridModel) Inverse(xs, ys []float64) {
	tx, ty := append([]float64(nil), xs...), append([]float64(nil), ys...)
	m.guess.Inverse(xs, ys)
	for i := range xs {
		xs[i], ys[i] = m.refine(tx[i], ty[i], xs[i], ys[i])
	}
}

func (m *GridModel) refine(tx, ty, px, py float64) (float64, float64) {
	if math.IsNaN(px) || math.IsNaN(py) {
		return px, py
	}
	for k := 0; k < newtonSteps; k++ {
		fx, fy := m.at(px, py)
		if math.IsNaN(fx) {
			return px, py
		}
		rx, ry := fx-tx, fy-ty
		if math.Abs(rx) < 1e-12 && math.Abs(ry) < 1e-12 {
			break
		}
		ax, ay := m.at(px+newtonEpsilon, py)
		bx, by := m.at(px, py+newtonEpsilon)
		if math.IsNaN(ax) || math.IsNaN(bx) {
			return px, py
		}
		j11, j21 := (ax-fx)/newtonEpsilon, (ay-fy)/newtonEpsilon
		j12, j22 := (bx-fx)/newtonEpsilon, (by-fy)/newtonEpsilon
		det := j11*j22 - j12*j21
		if det == 0 {
			break
		}
		px -= (j22*rx - j12*ry) / det
		py -= (-j21*rx + j11*ry) / det
	}
	return px, py
}
