package raster

import (
	"fmt"
	"math"

	"github.com/wgdzlh/geovrt/errs"
)

// Window is a pixel rectangle.
type Window struct {
	X, Y, W, H int
}

func Full(w, h int) Window {
	return Window{W: w, H: h}
}

func (w Window) Empty() bool {
	return w.W <= 0 || w.H <= 0
}

func (w Window) Equal(o Window) bool {
	return w == o
}

// Intersect clips w to o.
func (w Window) Intersect(o Window) Window {
	x0, y0 := max(w.X, o.X), max(w.Y, o.Y)
	x1, y1 := min(w.X+w.W, o.X+o.W), min(w.Y+w.H, o.Y+o.H)
	if x1 <= x0 || y1 <= y0 {
		return Window{X: x0, Y: y0}
	}
	return Window{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

// Array is a row-major 2-D float raster. Im is nil for real data.
type Array struct {
	Width, Height int
	Re            []float64
	Im            []float64
}

func NewArray(w, h int) *Array {
	return &Array{Width: w, Height: h, Re: make([]float64, w*h)}
}

func NewComplex(w, h int) *Array {
	return &Array{Width: w, Height: h, Re: make([]float64, w*h), Im: make([]float64, w*h)}
}

// Filled returns a real array with every element set to v.
func Filled(w, h int, v float64) *Array {
	a := NewArray(w, h)
	for i := range a.Re {
		a.Re[i] = v
	}
	return a
}

// FromValues wraps existing row-major values.
func FromValues(w, h int, re []float64) (*Array, error) {
	if len(re) != w*h {
		return nil, errs.ErrShapeMismatch
	}
	return &Array{Width: w, Height: h, Re: re}, nil
}

func (a *Array) IsComplex() bool {
	return a.Im != nil
}

func (a *Array) Len() int {
	return a.Width * a.Height
}

func (a *Array) At(x, y int) float64 {
	return a.Re[y*a.Width+x]
}

func (a *Array) Set(x, y int, v float64) {
	a.Re[y*a.Width+x] = v
}

func (a *Array) AtComplex(x, y int) complex128 {
	i := y*a.Width + x
	if a.Im == nil {
		return complex(a.Re[i], 0)
	}
	return complex(a.Re[i], a.Im[i])
}

func (a *Array) SameShape(b *Array) bool {
	return a.Width == b.Width && a.Height == b.Height
}

func (a *Array) Clone() *Array {
	c := &Array{Width: a.Width, Height: a.Height, Re: append([]float64(nil), a.Re...)}
	if a.Im != nil {
		c.Im = append([]float64(nil), a.Im...)
	}
	return c
}

// Magnitude returns |z| for complex arrays and |x| for real ones.
func (a *Array) Magnitude() *Array {
	m := NewArray(a.Width, a.Height)
	for i, re := range a.Re {
		if a.Im == nil {
			m.Re[i] = math.Abs(re)
		} else {
			m.Re[i] = math.Hypot(re, a.Im[i])
		}
	}
	return m
}

// Sub copies window w out of a. Parts outside a are NaN.
func (a *Array) Sub(w Window) *Array {
	out := &Array{Width: w.W, Height: w.H, Re: make([]float64, w.W*w.H)}
	if a.Im != nil {
		out.Im = make([]float64, w.W*w.H)
	}
	for j := 0; j < w.H; j++ {
		sy := w.Y + j
		for i := 0; i < w.W; i++ {
			sx := w.X + i
			k := j*w.W + i
			if sx < 0 || sy < 0 || sx >= a.Width || sy >= a.Height {
				out.Re[k] = math.NaN()
				if out.Im != nil {
					out.Im[k] = math.NaN()
				}
				continue
			}
			out.Re[k] = a.Re[sy*a.Width+sx]
			if out.Im != nil {
				out.Im[k] = a.Im[sy*a.Width+sx]
			}
		}
	}
	return out
}

// Paste writes src into a with its top-left at (x, y), skipping the parts
// that fall outside a.
func (a *Array) Paste(src *Array, x, y int) {
	if src.Im != nil && a.Im == nil {
		a.Im = make([]float64, len(a.Re))
	}
	for j := 0; j < src.Height; j++ {
		dy := y + j
		if dy < 0 || dy >= a.Height {
			continue
		}
		for i := 0; i < src.Width; i++ {
			dx := x + i
			if dx < 0 || dx >= a.Width {
				continue
			}
			a.Re[dy*a.Width+dx] = src.Re[j*src.Width+i]
			if src.Im != nil {
				a.Im[dy*a.Width+dx] = src.Im[j*src.Width+i]
			}
		}
	}
}

// MinMax ignores NaN. ok is false when every element is NaN.
func (a *Array) MinMax() (lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range a.Re {
		if math.IsNaN(v) {
			continue
		}
		ok = true
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return
}

func errBand(name string, band int) error {
	return fmt.Errorf("%w: %s band %d", errs.ErrBandNotFound, name, band)
}
