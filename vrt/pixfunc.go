package vrt

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/wgdzlh/geovrt/errs"
	"github.com/wgdzlh/geovrt/raster"
)

const (
	PFUVToMagnitude          = "UVToMagnitude"
	PFUVToDirectionFrom      = "UVToDirectionFrom"
	PFUVToDirectionTo        = "UVToDirectionTo"
	PFComplexData            = "ComplexData"
	PFIntensity              = "intensity"
	PFMod                    = "mod"
	PFBetaSigmaToIncidence   = "BetaSigmaToIncidence"
	PFSigma0HHBetaToSigma0VV = "Sigma0HHBetaToSigma0VV"
	PFNormReflectanceToRrs   = "NormReflectanceToRemSensReflectance"
	PFSum                    = "sum"

	// written where the incidence angle is undefined
	IncidenceFill = -10000
)

// PixelFunc computes a band from its aligned inputs. meta is the band's
// destination metadata.
type PixelFunc func(inputs []*raster.Array, meta map[string]string) (*raster.Array, error)

// PixelFuncs is a name to function registry.
type PixelFuncs struct {
	mu  sync.RWMutex
	fns map[string]PixelFunc
}

// NewPixelFuncs returns a registry holding the built-in functions.
func NewPixelFuncs() *PixelFuncs {
	p := &PixelFuncs{fns: make(map[string]PixelFunc)}
	p.Register(PFUVToMagnitude, binary(func(u, v float64) float64 { return math.Hypot(u, v) }))
	p.Register(PFUVToDirectionFrom, binary(directionFrom))
	p.Register(PFUVToDirectionTo, binary(directionTo))
	p.Register(PFComplexData, complexData)
	p.Register(PFIntensity, unaryComplex(func(z complex128) float64 {
		return real(z)*real(z) + imag(z)*imag(z)
	}))
	p.Register(PFMod, unaryComplex(func(z complex128) float64 { return math.Hypot(real(z), imag(z)) }))
	p.Register(PFBetaSigmaToIncidence, binaryPower(incidence))
	p.Register(PFSigma0HHBetaToSigma0VV, binaryPower(sigma0VV))
	p.Register(PFNormReflectanceToRrs, unaryComplex(func(z complex128) float64 {
		nrrs := real(z)
		return nrrs / (0.52 + 1.7*nrrs)
	}))
	p.Register(PFSum, sum)
	return p
}

func (p *PixelFuncs) Register(name string, fn PixelFunc) {
	p.mu.Lock()
	p.fns[name] = fn
	p.mu.Unlock()
}

func (p *PixelFuncs) Get(name string) (PixelFunc, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	fn, ok := p.fns[name]
	return fn, ok
}

func (p *PixelFuncs) Names() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, 0, len(p.fns))
	for n := range p.fns {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (p *PixelFuncs) eval(name string, inputs []*raster.Array, meta map[string]string) (*raster.Array, error) {
	fn, ok := p.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", errs.ErrUnknownPixelFunc, name)
	}
	return fn(inputs, meta)
}

func need(inputs []*raster.Array, n int) error {
	if len(inputs) < n {
		return fmt.Errorf("pixel function needs %d inputs, got %d", n, len(inputs))
	}
	for _, a := range inputs[1:] {
		if !a.SameShape(inputs[0]) {
			return errs.ErrShapeMismatch
		}
	}
	return nil
}

// bearing in degrees clockwise from north, [0, 360)
func bearing(east, north float64) float64 {
	d := math.Atan2(east, north) * 180 / math.Pi
	if d < 0 {
		d += 360
	}
	return d
}

func directionFrom(u, v float64) float64 {
	return bearing(-u, -v)
}

func directionTo(u, v float64) float64 {
	return bearing(u, v)
}

func binary(f func(a, b float64) float64) PixelFunc {
	return func(inputs []*raster.Array, _ map[string]string) (*raster.Array, error) {
		if err := need(inputs, 2); err != nil {
			return nil, err
		}
		a, b := inputs[0], inputs[1]
		out := raster.NewArray(a.Width, a.Height)
		for i := range out.Re {
			out.Re[i] = f(a.Re[i], b.Re[i])
		}
		return out, nil
	}
}

// power of a calibrated sample: |z|^2 for complex input, the value itself
// otherwise
func power(a *raster.Array, i int) float64 {
	if a.Im == nil {
		return a.Re[i]
	}
	return a.Re[i]*a.Re[i] + a.Im[i]*a.Im[i]
}

func binaryPower(f func(a, b float64) float64) PixelFunc {
	return func(inputs []*raster.Array, _ map[string]string) (*raster.Array, error) {
		if err := need(inputs, 2); err != nil {
			return nil, err
		}
		a, b := inputs[0], inputs[1]
		out := raster.NewArray(a.Width, a.Height)
		for i := range out.Re {
			out.Re[i] = f(power(a, i), power(b, i))
		}
		return out, nil
	}
}

func unaryComplex(f func(z complex128) float64) PixelFunc {
	return func(inputs []*raster.Array, _ map[string]string) (*raster.Array, error) {
		if err := need(inputs, 1); err != nil {
			return nil, err
		}
		a := inputs[0]
		out := raster.NewArray(a.Width, a.Height)
		for i := range out.Re {
			z := complex(a.Re[i], 0)
			if a.Im != nil {
				z = complex(a.Re[i], a.Im[i])
			}
			out.Re[i] = f(z)
		}
		return out, nil
	}
}

// inputs: beta0, sigma0
func incidence(beta0, sigma0 float64) float64 {
	if beta0 == 0 {
		return IncidenceFill
	}
	// noise pushes the ratio slightly past 1 near grazing incidence
	r := math.Max(-1, math.Min(1, sigma0/beta0))
	return math.Asin(r) * 180 / math.Pi
}

// inputs: sigma0 HH, beta0 HH; polarization ratio with alpha 0.6
func sigma0VV(sigma0, beta0 float64) float64 {
	if beta0 == 0 {
		return math.NaN()
	}
	theta := math.Asin(sigma0 / beta0)
	t2 := math.Tan(theta) * math.Tan(theta)
	r := (1 + 2*t2) / (1 + 0.6*t2)
	return sigma0 * r * r
}

func complexData(inputs []*raster.Array, _ map[string]string) (*raster.Array, error) {
	if err := need(inputs, 2); err != nil {
		return nil, err
	}
	re, im := inputs[0], inputs[1]
	out := raster.NewComplex(re.Width, re.Height)
	copy(out.Re, re.Re)
	copy(out.Im, im.Re)
	return out, nil
}

func sum(inputs []*raster.Array, _ map[string]string) (*raster.Array, error) {
	if err := need(inputs, 1); err != nil {
		return nil, err
	}
	out := raster.NewArray(inputs[0].Width, inputs[0].Height)
	for _, a := range inputs {
		for i := range out.Re {
			out.Re[i] += a.Re[i]
		}
	}
	return out, nil
}
