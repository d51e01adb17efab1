package georef

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/wgdzlh/geovrt/errs"
	"github.com/wgdzlh/geovrt/gcp"
)

const maxOrder = 3

// normalizer maps coordinates to roughly [-1, 1] to keep the normal
// equations well conditioned.
type normalizer struct {
	cx, cy, s float64
}

func newNormalizer(xs, ys []float64) normalizer {
	var n normalizer
	minX, maxX := math.Inf(1), math.Inf(-1)
	minY, maxY := math.Inf(1), math.Inf(-1)
	for i := range xs {
		minX, maxX = math.Min(minX, xs[i]), math.Max(maxX, xs[i])
		minY, maxY = math.Min(minY, ys[i]), math.Max(maxY, ys[i])
	}
	n.cx, n.cy = (minX+maxX)/2, (minY+maxY)/2
	n.s = math.Max(maxX-minX, maxY-minY) / 2
	if n.s == 0 || math.IsInf(n.s, 0) {
		n.s = 1
	}
	return n
}

func (n normalizer) apply(x, y float64) (float64, float64) {
	return (x - n.cx) / n.s, (y - n.cy) / n.s
}

// poly is a 2-D polynomial sum(c_k * x^i * y^j), i+j <= order.
type poly struct {
	order  int
	norm   normalizer
	cx, cy []float64
}

func terms(order int) int {
	return (order + 1) * (order + 2) / 2
}

func basis(order int, x, y float64, row []float64) {
	k := 0
	for d := 0; d <= order; d++ {
		for j := 0; j <= d; j++ {
			row[k] = math.Pow(x, float64(d-j)) * math.Pow(y, float64(j))
			k++
		}
	}
}

func fitPoly(srcX, srcY, dstX, dstY []float64, order int) (p *poly, err error) {
	n := len(srcX)
	k := terms(order)
	if n < k {
		return nil, fmt.Errorf("%s: %d points for order %d", stage, n, order)
	}
	p = &poly{order: order, norm: newNormalizer(srcX, srcY)}
	a := mat.NewDense(n, k, nil)
	row := make([]float64, k)
	for i := 0; i < n; i++ {
		x, y := p.norm.apply(srcX[i], srcY[i])
		basis(order, x, y, row)
		a.SetRow(i, row)
	}
	var cx, cy mat.VecDense
	if err = solved(cx.SolveVec(a, mat.NewVecDense(n, append([]float64(nil), dstX...)))); err != nil {
		return nil, fmt.Errorf("%s: polynomial fit: %w", stage, err)
	}
	if err = solved(cy.SolveVec(a, mat.NewVecDense(n, append([]float64(nil), dstY...)))); err != nil {
		return nil, fmt.Errorf("%s: polynomial fit: %w", stage, err)
	}
	p.cx, p.cy = cx.RawVector().Data, cy.RawVector().Data
	return
}

// a poorly conditioned system still has a usable solution
func solved(err error) error {
	var c mat.Condition
	if errors.As(err, &c) {
		return nil
	}
	return err
}

func (p *poly) eval(xs, ys []float64) {
	row := make([]float64, len(p.cx))
	for i := range xs {
		if math.IsNaN(xs[i]) || math.IsNaN(ys[i]) {
			xs[i], ys[i] = math.NaN(), math.NaN()
			continue
		}
		x, y := p.norm.apply(xs[i], ys[i])
		basis(p.order, x, y, row)
		var ox, oy float64
		for k, b := range row {
			ox += p.cx[k] * b
			oy += p.cy[k] * b
		}
		xs[i], ys[i] = ox, oy
	}
}

// PolynomialModel is a least squares polynomial fit in both directions.
type PolynomialModel struct {
	fwd, inv *poly
}

// AutoOrder picks the polynomial order for n points.
func AutoOrder(n int) int {
	if n < 6 {
		return 1
	}
	return 2
}

// NewPolynomial fits the GCPs with the given order (0 picks by count).
func NewPolynomial(s gcp.Set, order int) (*PolynomialModel, error) {
	if len(s) < 3 {
		return nil, fmt.Errorf("%s: %w: %d GCPs", stage, errs.ErrNoGeoreference, len(s))
	}
	if order <= 0 {
		order = AutoOrder(len(s))
	}
	order = min(order, maxOrder)
	for terms(order) > len(s) {
		order--
	}
	px, ln, x, y := split(s)
	fwd, err := fitPoly(px, ln, x, y, order)
	if err != nil {
		return nil, err
	}
	inv, err := fitPoly(x, y, px, ln, order)
	if err != nil {
		return nil, err
	}
	return &PolynomialModel{fwd: fwd, inv: inv}, nil
}

func split(s gcp.Set) (px, ln, x, y []float64) {
	px, ln = make([]float64, len(s)), make([]float64, len(s))
	x, y = make([]float64, len(s)), make([]float64, len(s))
	for i, p := range s {
		px[i], ln[i], x[i], y[i] = p.Pixel, p.Line, p.X, p.Y
	}
	return
}

func (m *PolynomialModel) Order() int { return m.fwd.order }

func (m *PolynomialModel) Forward(xs, ys []float64) { m.fwd.eval(xs, ys) }

func (m *PolynomialModel) Inverse(xs, ys []float64) { m.inv.eval(xs, ys) }
