package vrt

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/wgdzlh/geovrt/errs"
	"github.com/wgdzlh/geovrt/log"
	"github.com/wgdzlh/geovrt/raster"
)

// kernel margin read around a resampled source window
const readMargin = 3

// ReadBand reads band i (1-based) at native resolution. With a cache in the
// Env, repeated reads of the same node are served from it; callers get
// their own copy.
func (n *Node) ReadBand(i int) (a *raster.Array, err error) {
	key := cacheKey{node: n.id, band: i}
	if c := n.env.Cache; c != nil {
		if hit, ok := c.Get(key); ok {
			n.env.Metrics.CacheHit()
			return hit.Clone(), nil
		}
	}
	a, err = n.Read(i, raster.Full(n.width, n.height), n.width, n.height, raster.Nearest)
	if err != nil {
		return
	}
	if c := n.env.Cache; c != nil {
		c.Add(key, a.Clone())
	}
	return
}

// Read resamples window win of band onto an outW x outH grid.
func (n *Node) Read(band int, win raster.Window, outW, outH int, alg raster.Resample) (a *raster.Array, err error) {
	if band < 1 || band > len(n.bands) {
		return nil, fmt.Errorf("%w: %d of %d", errs.ErrBandNotFound, band, len(n.bands))
	}
	if win.Empty() || outW <= 0 || outH <= 0 {
		return nil, fmt.Errorf("%w: window %+v to %dx%d", errs.ErrShapeMismatch, win, outW, outH)
	}
	b := n.bands[band-1]
	if pf := b.PixelFunction(); pf != "" {
		a, err = n.evalPixelFunc(b, pf, win)
	} else {
		n.env.Metrics.BandRead("source")
		a = raster.Filled(win.W, win.H, math.NaN())
		for _, s := range b.Sources {
			var part *raster.Array
			if part, err = n.readSource(s, win); err != nil {
				return
			}
			overlay(a, part)
		}
	}
	if err != nil {
		return
	}
	a = conform(a, b)
	if outW != win.W || outH != win.H {
		a = raster.Extract(a, raster.Full(win.W, win.H), outW, outH, alg)
	}
	return
}

func (n *Node) evalPixelFunc(b Band, pf string, win raster.Window) (a *raster.Array, err error) {
	n.env.Metrics.BandRead("pixel_function")
	inputs := make([]*raster.Array, len(b.Sources))
	for i, s := range b.Sources {
		if inputs[i], err = n.readSource(s, win); err != nil {
			return
		}
	}
	n.env.Metrics.PixelFunc(pf)
	a, err = n.env.Funcs.eval(pf, inputs, b.Meta)
	if err != nil {
		log.Error(logTag+"pixel function failed", zap.String("function", pf), zap.String("band", b.Name()), zap.Error(err))
		err = fmt.Errorf("band %s: %w", b.Name(), err)
	}
	return
}

// overlay copies the non-NaN cells of part onto a.
func overlay(a, part *raster.Array) {
	if part.Im != nil && a.Im == nil {
		a.Im = make([]float64, len(a.Re))
		for i := range a.Im {
			a.Im[i] = math.NaN()
		}
	}
	for i, v := range part.Re {
		if math.IsNaN(v) {
			continue
		}
		a.Re[i] = v
		if part.Im != nil {
			a.Im[i] = part.Im[i]
		}
	}
}

// conform applies the band data type: real types lose the imaginary part,
// unscaled integer types are rounded.
func conform(a *raster.Array, b Band) *raster.Array {
	t := b.DataType
	if !t.IsComplex() && a.Im != nil {
		a.Im = nil
	}
	if !t.IsInteger() || b.PixelFunction() != "" {
		return a
	}
	for _, s := range b.Sources {
		if s.scaled() {
			return a
		}
	}
	for i, v := range a.Re {
		a.Re[i] = t.Round(v)
	}
	return a
}

// readSource returns the part of win covered by s as a win sized array,
// NaN elsewhere, with the source scaling applied.
func (n *Node) readSource(s Source, win raster.Window) (out *raster.Array, err error) {
	out = raster.Filled(win.W, win.H, math.NaN())
	dst := s.DstRect
	if dst.Empty() {
		dst = raster.Full(n.width, n.height)
	}
	inter := dst.Intersect(win)
	if inter.Empty() {
		return
	}
	src := s.SrcRect
	if src.Empty() {
		src = raster.Full(s.Ref.Width(), s.Ref.Height())
	}
	band := s.Band
	if band == 0 {
		band = 1
	}
	var part *raster.Array
	if src.W == dst.W && src.H == dst.H {
		w := raster.Window{X: src.X + inter.X - dst.X, Y: src.Y + inter.Y - dst.Y, W: inter.W, H: inter.H}
		part, err = s.Ref.Read(band, w, inter.W, inter.H, raster.Nearest)
	} else {
		part, err = readScaled(s, band, src, dst, inter)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s band %d: %w", s.Ref.Name(), band, err)
	}
	s.apply(part)
	out.Paste(part, inter.X-win.X, inter.Y-win.Y)
	return
}

// readScaled reads the source pixels behind inter at native resolution,
// with a margin for the resampling kernel, and resamples them.
func readScaled(s Source, band int, src, dst, inter raster.Window) (*raster.Array, error) {
	sx := float64(src.W) / float64(dst.W)
	sy := float64(src.H) / float64(dst.H)
	fx := float64(src.X) + float64(inter.X-dst.X)*sx
	fy := float64(src.Y) + float64(inter.Y-dst.Y)*sy
	fw, fh := float64(inter.W)*sx, float64(inter.H)*sy

	x0 := max(src.X, int(math.Floor(fx))-readMargin)
	y0 := max(src.Y, int(math.Floor(fy))-readMargin)
	x1 := min(src.X+src.W, int(math.Ceil(fx+fw))+readMargin)
	y1 := min(src.Y+src.H, int(math.Ceil(fy+fh))+readMargin)
	if x1 <= x0 || y1 <= y0 {
		return raster.Filled(inter.W, inter.H, math.NaN()), nil
	}
	native := raster.Window{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
	a, err := s.Ref.Read(band, native, native.W, native.H, raster.Nearest)
	if err != nil {
		return nil, err
	}
	return raster.Resize(a, fx-float64(x0), fy-float64(y0), fw, fh, inter.W, inter.H, s.Resample), nil
}
