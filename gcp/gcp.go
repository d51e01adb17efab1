// Package gcp models ground control points: correspondences between image
// pixel/line coordinates and ground X/Y/Z.
package gcp

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/wgdzlh/geovrt/errs"
	"github.com/wgdzlh/geovrt/raster"
	"github.com/wgdzlh/geovrt/utils"
)

const (
	// MinCount is the number of points a crop must keep before extra points
	// are synthesized from the uncropped model.
	MinCount = 100
	// SynthGridSize is the per-axis size of the synthesized grid.
	SynthGridSize = 10
	// GridCount is the default number of points per axis sampled from a
	// geolocation grid.
	GridCount = 10

	// VIIRS L2 navigation is sampled on scan boundaries, every 64 lines,
	// whatever the requested count.
	SensorVIIRSN     = "VIIRSN Level-2 Data"
	viirsnLineStride = 64

	valuesPerKey = 100
	stage        = "gcp"
)

var channels = [...]string{"GCPPixel", "GCPLine", "GCPX", "GCPY", "GCPZ"}

type Point struct {
	Pixel, Line float64
	X, Y, Z     float64
}

type Set []Point

// FromMetadata collects GCPPixel_NNN, GCPLine_NNN, GCPX_NNN and GCPY_NNN
// (GCPZ_NNN optional). Values of one channel are concatenated in increasing
// NNN order.
func FromMetadata(md map[string]string) (s Set, err error) {
	var vals [len(channels)][]float64
	for c, name := range channels {
		if vals[c], err = channel(md, name); err != nil {
			return
		}
	}
	n := len(vals[0])
	if n == 0 {
		return
	}
	for c := 1; c < 4; c++ {
		if len(vals[c]) != n {
			return nil, errs.Malformed(stage, channels[c]+"_000",
				fmt.Errorf("%d values, %s has %d", len(vals[c]), channels[0], n))
		}
	}
	if len(vals[4]) != 0 && len(vals[4]) != n {
		return nil, errs.Malformed(stage, channels[4]+"_000",
			fmt.Errorf("%d values, %s has %d", len(vals[4]), channels[0], n))
	}
	s = make(Set, n)
	for i := range s {
		s[i] = Point{Pixel: vals[0][i], Line: vals[1][i], X: vals[2][i], Y: vals[3][i]}
		if len(vals[4]) > 0 {
			s[i].Z = vals[4][i]
		}
	}
	return
}

func channel(md map[string]string, name string) (ret []float64, err error) {
	prefix := name + "_"
	type part struct {
		idx int
		key string
	}
	var parts []part
	for k := range md {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		idx, e := strconv.Atoi(k[len(prefix):])
		if e != nil {
			continue
		}
		parts = append(parts, part{idx, k})
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].idx < parts[j].idx })
	for _, p := range parts {
		vs, e := utils.ParseFloats(md[p.key], "|")
		if e != nil {
			return nil, errs.Malformed(stage, p.key, e)
		}
		ret = append(ret, vs...)
	}
	return
}

// FromArrays builds a set from parallel arrays; z may be nil.
func FromArrays(x, y, z, pixel, line []float64) (Set, error) {
	n := len(x)
	if len(y) != n || len(pixel) != n || len(line) != n || (z != nil && len(z) != n) {
		return nil, errs.Malformed(stage, "arrays", errs.ErrShapeMismatch)
	}
	s := make(Set, n)
	for i := range s {
		s[i] = Point{Pixel: pixel[i], Line: line[i], X: x[i], Y: y[i]}
		if z != nil {
			s[i].Z = z[i]
		}
	}
	return s, nil
}

// FromGrid samples a longitude/latitude grid at a regular stride of
// max(1, extent/count) per axis. Grid cell (i, j) maps to image coordinate
// (i*pixelStep+0.5, j*lineStep+0.5). Points with invalid coordinates are
// dropped.
func FromGrid(lon, lat *raster.Array, pixelStep, lineStep float64, count int, sensor string) (Set, error) {
	if !lon.SameShape(lat) {
		return nil, errs.ErrShapeMismatch
	}
	if count <= 0 {
		count = GridCount
	}
	pStride := max(1, lon.Width/count)
	lStride := max(1, lon.Height/count)
	if sensor == SensorVIIRSN {
		lStride = viirsnLineStride
	}
	var s Set
	for j := 0; j < lon.Height; j += lStride {
		for i := 0; i < lon.Width; i += pStride {
			x, y := lon.At(i, j), lat.At(i, j)
			if !(x >= -180 && x <= 180 && y >= -90 && y <= 90) {
				continue
			}
			s = append(s, Point{
				Pixel: float64(i)*pixelStep + 0.5,
				Line:  float64(j)*lineStep + 0.5,
				X:     x,
				Y:     y,
			})
		}
	}
	return s, nil
}

// Subsample keeps every k-th point, ceil(N/k) in total.
func (s Set) Subsample(k int) Set {
	if k <= 1 {
		return s.Clone()
	}
	out := make(Set, 0, (len(s)+k-1)/k)
	for i := 0; i < len(s); i += k {
		out = append(out, s[i])
	}
	return out
}

func (s Set) Clone() Set {
	if s == nil {
		return nil
	}
	return append(Set(nil), s...)
}

// Rewritten maps image coordinates into a window starting at (xOff, yOff)
// whose pixels are scaleX x scaleY source pixels. Ground coordinates pass
// through.
func (s Set) Rewritten(xOff, yOff, scaleX, scaleY float64) Set {
	out := make(Set, len(s))
	for i, p := range s {
		p.Pixel = (p.Pixel - xOff) / scaleX
		p.Line = (p.Line - yOff) / scaleY
		out[i] = p
	}
	return out
}

// Inside keeps points strictly inside a w x h image.
func (s Set) Inside(w, h float64) Set {
	var out Set
	for _, p := range s {
		if p.Pixel > 0 && p.Pixel < w && p.Line > 0 && p.Line < h {
			out = append(out, p)
		}
	}
	return out
}

// Shifted adds dx to every X coordinate.
func (s Set) Shifted(dx float64) Set {
	out := s.Clone()
	for i := range out {
		out[i].X += dx
	}
	return out
}

func (s Set) Ground() orb.MultiPoint {
	mp := make(orb.MultiPoint, len(s))
	for i, p := range s {
		mp[i] = orb.Point{p.X, p.Y}
	}
	return mp
}

func (s Set) Bound() orb.Bound {
	return s.Ground().Bound()
}

// Hull is the convex hull of the ground coordinates as a closed ring,
// counter-clockwise (Andrew's monotone chain).
func (s Set) Hull() orb.Ring {
	pts := s.Ground()
	sort.Slice(pts, func(i, j int) bool {
		if pts[i][0] != pts[j][0] {
			return pts[i][0] < pts[j][0]
		}
		return pts[i][1] < pts[j][1]
	})
	if len(pts) < 3 {
		return orb.Ring(pts)
	}
	hull := make(orb.Ring, 0, 2*len(pts))
	for _, p := range pts {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := len(pts) - 2; i >= 0; i-- {
		p := pts[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	return hull
}

func cross(o, a, b orb.Point) float64 {
	return (a[0]-o[0])*(b[1]-o[1]) - (a[1]-o[1])*(b[0]-o[0])
}

func (s Set) HullArea() float64 {
	r := s.Hull()
	if len(r) < 4 {
		return 0
	}
	return math.Abs(planar.Area(r))
}

// Metadata is the inverse of FromMetadata. Each key holds at most 100
// values.
func (s Set) Metadata() map[string]string {
	md := make(map[string]string)
	if len(s) == 0 {
		return md
	}
	get := [...]func(Point) float64{
		func(p Point) float64 { return p.Pixel },
		func(p Point) float64 { return p.Line },
		func(p Point) float64 { return p.X },
		func(p Point) float64 { return p.Y },
		func(p Point) float64 { return p.Z },
	}
	for c, name := range channels {
		for k, start := 0, 0; start < len(s); k, start = k+1, start+valuesPerKey {
			end := min(start+valuesPerKey, len(s))
			vs := make([]float64, 0, end-start)
			for _, p := range s[start:end] {
				vs = append(vs, get[c](p))
			}
			md[fmt.Sprintf("%s_%03d", name, k)] = utils.FormatFloats(vs, "|")
		}
	}
	return md
}
