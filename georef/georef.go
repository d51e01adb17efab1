// Package georef holds the three interchangeable georeferencing models
// (affine geotransform, ground control points, geolocation grid) and the
// transforms built from them.
package georef

import (
	"fmt"
	"math"

	"github.com/wgdzlh/geovrt/errs"
	"github.com/wgdzlh/geovrt/gcp"
	"github.com/wgdzlh/geovrt/geoloc"
	"github.com/wgdzlh/geovrt/srs"
	"github.com/wgdzlh/geovrt/utils"
)

const (
	KeyProjection    = "NANSAT_Projection"
	KeyGeoTransform  = "NANSAT_GeoTransform"
	KeyGCPProjection = "NANSAT_GCPProjection"

	stage = "georef"
)

type Kind int

const (
	KindNone Kind = iota
	KindAffine
	KindGCP
	KindGrid
)

func (k Kind) String() string {
	switch k {
	case KindAffine:
		return "geotransform"
	case KindGCP:
		return "gcps"
	case KindGrid:
		return "geolocation"
	}
	return "none"
}

// Georef is the georeferencing state of a raster. Only Active is used for
// transforms; the other fields may be kept for export.
type Georef struct {
	Active    Kind
	SRS       srs.Reference
	Transform GeoTransform
	GCPs      gcp.Set
	Grid      *geoloc.Grid
}

func Affine(gt GeoTransform, ref srs.Reference) Georef {
	return Georef{Active: KindAffine, SRS: ref, Transform: gt}
}

func GCPs(s gcp.Set, ref srs.Reference) Georef {
	return Georef{Active: KindGCP, SRS: ref, Transform: Identity, GCPs: s}
}

func Grid(g *geoloc.Grid, ref srs.Reference) Georef {
	return Georef{Active: KindGrid, SRS: ref, Transform: Identity, Grid: g}
}

func (g Georef) Clone() Georef {
	g.GCPs = g.GCPs.Clone()
	return g
}

// Model is a bidirectional pixel/line <-> ground transform. Both methods
// work in place; points that cannot be transformed become NaN.
type Model interface {
	Forward(xs, ys []float64)
	Inverse(xs, ys []float64)
}

type ModelOptions struct {
	TPS   bool
	Skip  int // use every Skip-th GCP
	Order int // polynomial order, 0 picks by GCP count
}

// Model builds the transform for the active model.
func (g Georef) Model(opts ModelOptions) (Model, error) {
	switch g.Active {
	case KindAffine:
		return NewAffine(g.Transform)
	case KindGCP:
		pts := g.GCPs.Subsample(opts.Skip)
		if opts.TPS {
			return NewTPS(pts)
		}
		return NewPolynomial(pts, opts.Order)
	case KindGrid:
		if g.Grid == nil {
			break
		}
		return NewGridModel(g.Grid)
	}
	return nil, fmt.Errorf("%s: %w", stage, errs.ErrNoGeoreference)
}

// Cropped re-bases the georeference on the window (x, y, w, h). GCPs
// outside the window are dropped; when fewer than gcp.MinCount remain, a
// regular grid of points computed with the uncropped model, built with
// opts, is added. If that model cannot be solved only the kept GCPs stay.
func (g Georef) Cropped(x, y, w, h int, opts ModelOptions) (c Georef) {
	c = g.Clone()
	fx, fy := float64(x), float64(y)
	c.Transform = g.Transform.Cropped(fx, fy)
	if g.Grid != nil {
		c.Grid = g.Grid.Cropped(fx, fy)
	}
	if len(g.GCPs) == 0 {
		return
	}
	c.GCPs = g.GCPs.Rewritten(fx, fy, 1, 1).Inside(float64(w), float64(h))
	if len(c.GCPs) >= gcp.MinCount || g.Active != KindGCP {
		return
	}
	m, err := g.Model(opts)
	if err != nil {
		return
	}
	c.GCPs = append(c.GCPs, synthesize(m, fx, fy, float64(w), float64(h))...)
	return
}

// SampleGCPs evaluates m on a regular gcp.SynthGridSize grid spanning a
// w x h raster.
func SampleGCPs(m Model, w, h int) gcp.Set {
	return synthesize(m, 0, 0, float64(w), float64(h))
}

func synthesize(m Model, xOff, yOff, w, h float64) gcp.Set {
	n := gcp.SynthGridSize
	pixels := make([]float64, 0, n*n)
	lines := make([]float64, 0, n*n)
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			pixels = append(pixels, w*float64(i)/float64(n-1))
			lines = append(lines, h*float64(j)/float64(n-1))
		}
	}
	xs, ys := make([]float64, len(pixels)), make([]float64, len(lines))
	for i := range pixels {
		xs[i], ys[i] = pixels[i]+xOff, lines[i]+yOff
	}
	m.Forward(xs, ys)
	s := make(gcp.Set, 0, len(xs))
	for i := range xs {
		if math.IsNaN(xs[i]) || math.IsNaN(ys[i]) {
			continue
		}
		s = append(s, gcp.Point{Pixel: pixels[i], Line: lines[i], X: xs[i], Y: ys[i]})
	}
	return s
}

// Scaled makes every new pixel cover fx x fy old pixels.
func (g Georef) Scaled(fx, fy float64) Georef {
	c := g.Clone()
	c.Transform = g.Transform.Scaled(fx, fy)
	if len(g.GCPs) > 0 {
		c.GCPs = g.GCPs.Rewritten(0, 0, fx, fy)
	}
	if g.Grid != nil {
		c.Grid = g.Grid.Scaled(fx, fy)
	}
	return c
}

// Shifted offsets ground X by dLon. Affine rasters also need their columns
// rolled, which is up to the caller.
func (g Georef) Shifted(dLon float64) Georef {
	c := g.Clone()
	c.Transform[0] += dLon
	if len(g.GCPs) > 0 {
		c.GCPs = g.GCPs.Shifted(dLon)
	}
	if g.Grid != nil {
		c.Grid = g.Grid.Shifted(dLon)
	}
	return c
}

// Metadata renders the reprojection markers stored with exported rasters.
func (g Georef) Metadata() map[string]string {
	md := map[string]string{}
	if g.SRS == nil {
		return md
	}
	wkt := utils.EscapeMetadata(g.SRS.WKT())
	switch g.Active {
	case KindAffine:
		md[KeyProjection] = wkt
		md[KeyGeoTransform] = g.Transform.String()
	case KindGCP:
		md[KeyGCPProjection] = wkt
		md[KeyGeoTransform] = Identity.String()
	}
	return md
}
