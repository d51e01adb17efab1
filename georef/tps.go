package georef

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/wgdzlh/geovrt/errs"
	"github.com/wgdzlh/geovrt/gcp"
)

// spline is a 2-D thin plate spline interpolating (x, y) -> (u, v).
type spline struct {
	norm   normalizer
	px, py []float64 // normalized control points
	wu, wv []float64 // n kernel weights followed by 3 affine terms
}

func tpsKernel(r2 float64) float64 {
	if r2 == 0 {
		return 0
	}
	return r2 * math.Log(r2)
}

func fitSpline(srcX, srcY, dstU, dstV []float64) (sp *spline, err error) {
	n := len(srcX)
	sp = &spline{norm: newNormalizer(srcX, srcY), px: make([]float64, n), py: make([]float64, n)}
	for i := range srcX {
		sp.px[i], sp.py[i] = sp.norm.apply(srcX[i], srcY[i])
	}
	size := n + 3
	a := mat.NewDense(size, size, nil)
	b := mat.NewDense(size, 2, nil)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			dx, dy := sp.px[i]-sp.px[j], sp.py[i]-sp.py[j]
			k := tpsKernel(dx*dx + dy*dy)
			a.Set(i, j, k)
			a.Set(j, i, k)
		}
		a.Set(i, n, 1)
		a.Set(i, n+1, sp.px[i])
		a.Set(i, n+2, sp.py[i])
		a.Set(n, i, 1)
		a.Set(n+1, i, sp.px[i])
		a.Set(n+2, i, sp.py[i])
		b.Set(i, 0, dstU[i])
		b.Set(i, 1, dstV[i])
	}
	var w mat.Dense
	if err = solved(w.Solve(a, b)); err != nil {
		return nil, fmt.Errorf("%s: thin plate spline: %w", stage, err)
	}
	sp.wu, sp.wv = make([]float64, size), make([]float64, size)
	for i := 0; i < size; i++ {
		sp.wu[i], sp.wv[i] = w.At(i, 0), w.At(i, 1)
	}
	return
}

func (sp *spline) eval(xs, ys []float64) {
	n := len(sp.px)
	for i := range xs {
		if math.IsNaN(xs[i]) || math.IsNaN(ys[i]) {
			xs[i], ys[i] = math.NaN(), math.NaN()
			continue
		}
		x, y := sp.norm.apply(xs[i], ys[i])
		u := sp.wu[n] + sp.wu[n+1]*x + sp.wu[n+2]*y
		v := sp.wv[n] + sp.wv[n+1]*x + sp.wv[n+2]*y
		for k := 0; k < n; k++ {
			dx, dy := x-sp.px[k], y-sp.py[k]
			kk := tpsKernel(dx*dx + dy*dy)
			u += sp.wu[k] * kk
			v += sp.wv[k] * kk
		}
		xs[i], ys[i] = u, v
	}
}

// TPSModel passes exactly through every GCP.
type TPSModel struct {
	fwd, inv *spline
}

func NewTPS(s gcp.Set) (*TPSModel, error) {
	s = dedupe(s)
	if len(s) < 3 {
		return nil, fmt.Errorf("%s: %w: %d distinct GCPs", stage, errs.ErrNoGeoreference, len(s))
	}
	px, ln, x, y := split(s)
	fwd, err := fitSpline(px, ln, x, y)
	if err != nil {
		return nil, err
	}
	inv, err := fitSpline(x, y, px, ln)
	if err != nil {
		return nil, err
	}
	return &TPSModel{fwd: fwd, inv: inv}, nil
}

// duplicated control points make the system singular
func dedupe(s gcp.Set) gcp.Set {
	type key struct{ a, b float64 }
	seenImg := make(map[key]bool, len(s))
	seenGeo := make(map[key]bool, len(s))
	out := make(gcp.Set, 0, len(s))
	for _, p := range s {
		ki, kg := key{p.Pixel, p.Line}, key{p.X, p.Y}
		if seenImg[ki] || seenGeo[kg] {
			continue
		}
		seenImg[ki], seenGeo[kg] = true, true
		out = append(out, p)
	}
	return out
}

func (m *TPSModel) Forward(xs, ys []float64) { m.fwd.eval(xs, ys) }

func (m *TPSModel) Inverse(xs, ys []float64) { m.inv.eval(xs, ys) }
