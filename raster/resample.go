package raster

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

type Resample int

const (
	Nearest Resample = iota
	Bilinear
	Cubic
	CubicSpline
	Lanczos
	Average
)

var resampleNames = [...]string{"near", "bilinear", "cubic", "cubicspline", "lanczos", "average"}

func (r Resample) String() string {
	if r < 0 || int(r) >= len(resampleNames) {
		return "unknown"
	}
	return resampleNames[r]
}

// ParseResample accepts algorithm names and the legacy integer codes
// (-1 average, 0 nearest, 1 bilinear, 2 cubic, 3 cubic spline, 4 lanczos).
func ParseResample(s string) (Resample, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.Atoi(s); err == nil {
		if n == -1 {
			return Average, nil
		}
		if n >= 0 && n <= int(Lanczos) {
			return Resample(n), nil
		}
		return 0, fmt.Errorf("unknown resample code %d", n)
	}
	switch s {
	case "near", "nearest":
		return Nearest, nil
	case "bilinear":
		return Bilinear, nil
	case "cubic":
		return Cubic, nil
	case "cubicspline", "cubic_spline":
		return CubicSpline, nil
	case "lanczos":
		return Lanczos, nil
	case "average", "avg":
		return Average, nil
	}
	return 0, fmt.Errorf("unknown resample algorithm %q", s)
}

// Averaging reports whether the algorithm combines pixels in a way that
// cannot keep real and imaginary parts apart.
func (r Resample) Averaging() bool {
	return r == Average
}

type kernel struct {
	radius int
	weight func(d float64) float64
}

func (r Resample) kernel() kernel {
	switch r {
	case Bilinear:
		return kernel{1, func(d float64) float64 { return math.Max(0, 1-math.Abs(d)) }}
	case Cubic:
		return kernel{2, keys}
	case CubicSpline:
		return kernel{2, bspline}
	case Lanczos:
		return kernel{3, lanczos3}
	}
	return kernel{}
}

// Catmull-Rom, a = -0.5
func keys(d float64) float64 {
	d = math.Abs(d)
	switch {
	case d <= 1:
		return 1.5*d*d*d - 2.5*d*d + 1
	case d < 2:
		return -0.5*d*d*d + 2.5*d*d - 4*d + 2
	}
	return 0
}

func bspline(d float64) float64 {
	d = math.Abs(d)
	switch {
	case d <= 1:
		return (3*d*d*d - 6*d*d + 4) / 6
	case d < 2:
		d = 2 - d
		return d * d * d / 6
	}
	return 0
}

func lanczos3(d float64) float64 {
	d = math.Abs(d)
	if d == 0 {
		return 1
	}
	if d >= 3 {
		return 0
	}
	pd := math.Pi * d
	return 3 * math.Sin(pd) * math.Sin(pd/3) / (pd * pd)
}

// Sample interpolates plane at continuous pixel coordinates (x, y), where
// pixel (i, j) covers [i, i+1) x [j, j+1). Returns NaN outside the array.
func Sample(plane []float64, w, h int, x, y float64, alg Resample) float64 {
	if x < 0 || y < 0 || x > float64(w) || y > float64(h) || math.IsNaN(x) || math.IsNaN(y) {
		return math.NaN()
	}
	k := alg.kernel()
	if k.radius == 0 {
		ix, iy := min(int(x), w-1), min(int(y), h-1)
		return plane[iy*w+ix]
	}
	cx, cy := x-0.5, y-0.5
	x0, y0 := int(math.Floor(cx)), int(math.Floor(cy))
	var sum, wsum float64
	for j := y0 - k.radius + 1; j <= y0+k.radius; j++ {
		wy := k.weight(cy - float64(j))
		if wy == 0 {
			continue
		}
		jj := clampInt(j, 0, h-1)
		for i := x0 - k.radius + 1; i <= x0+k.radius; i++ {
			wx := k.weight(cx - float64(i))
			if wx == 0 {
				continue
			}
			v := plane[jj*w+clampInt(i, 0, w-1)]
			if math.IsNaN(v) {
				continue
			}
			sum += wx * wy * v
			wsum += wx * wy
		}
	}
	if wsum == 0 {
		return math.NaN()
	}
	return sum / wsum
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Resize resamples the source rectangle (sx, sy, sw, sh) of a onto an
// outW x outH grid. Averaging drops the imaginary part of complex input;
// every other algorithm treats both parts independently.
func Resize(a *Array, sx, sy, sw, sh float64, outW, outH int, alg Resample) *Array {
	out := NewArray(outW, outH)
	keepIm := a.Im != nil && !alg.Averaging()
	if keepIm {
		out.Im = make([]float64, outW*outH)
	}
	stepX, stepY := sw/float64(outW), sh/float64(outH)
	for j := 0; j < outH; j++ {
		y := sy + (float64(j)+0.5)*stepY
		for i := 0; i < outW; i++ {
			x := sx + (float64(i)+0.5)*stepX
			k := j*outW + i
			if alg.Averaging() {
				out.Re[k] = boxAverage(a.Re, a.Width, a.Height, x-stepX/2, y-stepY/2, stepX, stepY)
				continue
			}
			out.Re[k] = Sample(a.Re, a.Width, a.Height, x, y, alg)
			if keepIm {
				out.Im[k] = Sample(a.Im, a.Width, a.Height, x, y, alg)
			}
		}
	}
	return out
}

func boxAverage(plane []float64, w, h int, x, y, bw, bh float64) float64 {
	ix0, iy0 := int(math.Floor(x)), int(math.Floor(y))
	ix1, iy1 := max(ix0+1, int(math.Ceil(x+bw))), max(iy0+1, int(math.Ceil(y+bh)))
	ix0, iy0 = max(ix0, 0), max(iy0, 0)
	ix1, iy1 = min(ix1, w), min(iy1, h)
	var sum float64
	var n int
	for j := iy0; j < iy1; j++ {
		for i := ix0; i < ix1; i++ {
			v := plane[j*w+i]
			if math.IsNaN(v) {
				continue
			}
			sum += v
			n++
		}
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}
