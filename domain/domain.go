// Package domain describes a raster grid independent of pixel content: a
// reference system, a size and a georeference. Domains are the targets of
// reprojection.
package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/geo"

	"github.com/wgdzlh/geovrt/errs"
	"github.com/wgdzlh/geovrt/georef"
	"github.com/wgdzlh/geovrt/raster"
	"github.com/wgdzlh/geovrt/srs"
	"github.com/wgdzlh/geovrt/vrt"
)

type Direction int

const (
	PixelToGeo Direction = iota
	GeoToPixel
)

// on-edge tolerance in pixels
const edgeEps = 1e-6

type Domain struct {
	width  int
	height int
	geo    georef.Georef
	prefs  vrt.Prefs
}

// FromGeometry builds an affine domain.
func FromGeometry(width, height int, gt georef.GeoTransform, ref srs.Reference) (*Domain, error) {
	if width <= 0 || height <= 0 {
		return nil, errs.Configuration("size", "raster size %dx%d must be positive", width, height)
	}
	if ref == nil {
		ref = srs.WGS84
	}
	return &Domain{width: width, height: height, geo: georef.Affine(gt, ref)}, nil
}

// FromNode shares the geometry of a node, whatever its active model.
func FromNode(n *vrt.Node) *Domain {
	return &Domain{width: n.Width(), height: n.Height(), geo: n.Georef(), prefs: n.Prefs()}
}

type extent struct {
	te, lle, tr []float64
	ts          []int
}

// FromExtent parses "-te xmin ymin xmax ymax" or
// "-lle lonmin latmin lonmax latmax" together with "-ts width height" or
// "-tr dx dy". -te is in ref units, -lle in degrees.
func FromExtent(ref srs.Reference, spec string) (d *Domain, err error) {
	if ref == nil {
		ref = srs.WGS84
	}
	ext, err := parseExtent(spec)
	if err != nil {
		return
	}
	box := ext.te
	if ext.lle != nil {
		if box, err = lleToRef(ext.lle, ref); err != nil {
			return
		}
	}
	xmin, ymin, xmax, ymax := box[0], box[1], box[2], box[3]
	var w, h int
	if ext.ts != nil {
		w, h = ext.ts[0], ext.ts[1]
	} else {
		w = int(math.Round((xmax - xmin) / ext.tr[0]))
		h = int(math.Round((ymax - ymin) / ext.tr[1]))
	}
	if w <= 0 || h <= 0 {
		return nil, errs.Configuration("extent", "extent %q gives an empty %dx%d raster", spec, w, h)
	}
	gt := georef.GeoTransform{xmin, (xmax - xmin) / float64(w), 0, ymax, 0, -(ymax - ymin) / float64(h)}
	return FromGeometry(w, h, gt, ref)
}

func parseExtent(spec string) (ext extent, err error) {
	fields := strings.Fields(spec)
	for i := 0; i < len(fields); {
		opt := fields[i]
		n := 0
		switch opt {
		case "-te", "-lle":
			n = 4
		case "-ts", "-tr":
			n = 2
		default:
			return ext, errs.Configuration("extent", "unknown option %q", opt)
		}
		if i+n >= len(fields) {
			return ext, errs.Configuration(opt, "needs %d numbers", n)
		}
		vals := make([]float64, n)
		for k := 0; k < n; k++ {
			if vals[k], err = strconv.ParseFloat(fields[i+1+k], 64); err != nil {
				return ext, errs.Configuration(opt, "bad number %q", fields[i+1+k])
			}
		}
		i += n + 1
		switch opt {
		case "-te":
			ext.te = vals
		case "-lle":
			ext.lle = vals
		case "-tr":
			ext.tr = vals
		case "-ts":
			ext.ts = []int{int(vals[0]), int(vals[1])}
			if float64(ext.ts[0]) != vals[0] || float64(ext.ts[1]) != vals[1] {
				return ext, errs.Configuration(opt, "size must be integer, got %v", vals)
			}
		}
	}
	switch {
	case (ext.te == nil) == (ext.lle == nil):
		return ext, errs.Configuration("extent", "exactly one of -te and -lle is required")
	case (ext.ts == nil) == (ext.tr == nil):
		return ext, errs.Configuration("extent", "exactly one of -ts and -tr is required")
	}
	box := ext.te
	if box == nil {
		box = ext.lle
	}
	if box[0] >= box[2] || box[1] >= box[3] {
		return ext, errs.Configuration("extent", "min must be below max in %v", box)
	}
	if ext.tr != nil && (ext.tr[0] <= 0 || ext.tr[1] <= 0) {
		return ext, errs.Configuration("-tr", "resolution must be positive, got %v", ext.tr)
	}
	return
}

func lleToRef(lle []float64, ref srs.Reference) (box []float64, err error) {
	t, err := srs.NewTransformer(srs.WGS84, ref)
	if err != nil {
		return nil, errs.Configuration("-lle", "%v", err)
	}
	xs := []float64{lle[0], lle[0], lle[2], lle[2]}
	ys := []float64{lle[1], lle[3], lle[1], lle[3]}
	if err = t.Transform(xs, ys); err != nil {
		return nil, errs.Configuration("-lle", "%v", err)
	}
	box = []float64{math.Inf(1), math.Inf(1), math.Inf(-1), math.Inf(-1)}
	for i := range xs {
		box[0], box[2] = math.Min(box[0], xs[i]), math.Max(box[2], xs[i])
		box[1], box[3] = math.Min(box[1], ys[i]), math.Max(box[3], ys[i])
	}
	if math.IsNaN(box[0]+box[1]+box[2]+box[3]) || math.IsInf(box[0], 0) {
		return nil, errs.Configuration("-lle", "extent %v cannot be projected", lle)
	}
	return
}

func (d *Domain) Width() int { return d.width }

func (d *Domain) Height() int { return d.height }

func (d *Domain) Shape() (width, height int) { return d.width, d.height }

func (d *Domain) SRS() srs.Reference { return d.geo.SRS }

func (d *Domain) Georef() georef.Georef { return d.geo.Clone() }

// Prefs are the warp preferences carried over from the node, if any.
func (d *Domain) Prefs() vrt.Prefs { return d.prefs }

func (d *Domain) Model() (georef.Model, error) {
	opts := georef.ModelOptions{Skip: d.prefs.Skip}
	if d.prefs.TPS != nil {
		opts.TPS = *d.prefs.TPS
	}
	return d.geo.Model(opts)
}

// Transform maps points between pixel/line and longitude/latitude. Points
// off the raster come back as NaN.
func (d *Domain) Transform(points []orb.Point, dir Direction) (out []orb.Point, err error) {
	m, err := d.Model()
	if err != nil {
		return
	}
	xs, ys := make([]float64, len(points)), make([]float64, len(points))
	for i, p := range points {
		xs[i], ys[i] = p[0], p[1]
	}
	switch dir {
	case PixelToGeo:
		d.maskOutside(xs, ys)
		m.Forward(xs, ys)
		var t srs.Transformer
		if t, err = srs.NewTransformer(d.geo.SRS, srs.WGS84); err != nil {
			return
		}
		if err = t.Transform(xs, ys); err != nil {
			return
		}
	case GeoToPixel:
		var t srs.Transformer
		if t, err = srs.NewTransformer(srs.WGS84, d.geo.SRS); err != nil {
			return
		}
		if err = t.Transform(xs, ys); err != nil {
			return
		}
		m.Inverse(xs, ys)
		d.maskOutside(xs, ys)
	default:
		return nil, fmt.Errorf("unknown direction %d", dir)
	}
	out = make([]orb.Point, len(points))
	for i := range out {
		out[i] = orb.Point{xs[i], ys[i]}
	}
	return
}

func (d *Domain) maskOutside(xs, ys []float64) {
	w, h := float64(d.width), float64(d.height)
	for i := range xs {
		if xs[i] < -edgeEps || ys[i] < -edgeEps || xs[i] > w+edgeEps || ys[i] > h+edgeEps {
			xs[i], ys[i] = math.NaN(), math.NaN()
		}
	}
}

// Corners gives lon/lat of pixel corners (0,0), (0,H), (W,0), (W,H).
func (d *Domain) Corners() (c [4]orb.Point, err error) {
	w, h := float64(d.width), float64(d.height)
	pts, err := d.Transform([]orb.Point{{0, 0}, {0, h}, {w, 0}, {w, h}}, PixelToGeo)
	if err != nil {
		return
	}
	copy(c[:], pts)
	return
}

// PixelSizeMeters measures the raster across its middle row and column
// on the sphere.
func (d *Domain) PixelSizeMeters() (dx, dy float64, err error) {
	w, h := float64(d.width), float64(d.height)
	pts, err := d.Transform([]orb.Point{{0, h / 2}, {w, h / 2}, {w / 2, 0}, {w / 2, h}}, PixelToGeo)
	if err != nil {
		return
	}
	dx = geo.DistanceHaversine(pts[0], pts[1]) / w
	dy = geo.DistanceHaversine(pts[2], pts[3]) / h
	return
}

// Border walks the raster edge clockwise from the top left corner with n
// points per side and returns the closed lon/lat ring.
func (d *Domain) Border(n int) (ring orb.Ring, err error) {
	if n < 2 {
		n = 2
	}
	w, h := float64(d.width), float64(d.height)
	pts := make([]orb.Point, 0, 4*(n-1)+1)
	side := func(x0, y0, x1, y1 float64) {
		for i := 0; i < n-1; i++ {
			f := float64(i) / float64(n-1)
			pts = append(pts, orb.Point{x0 + (x1-x0)*f, y0 + (y1-y0)*f})
		}
	}
	side(0, 0, w, 0)
	side(w, 0, w, h)
	side(w, h, 0, h)
	side(0, h, 0, 0)
	pts = append(pts, orb.Point{0, 0})
	geoPts, err := d.Transform(pts, PixelToGeo)
	if err != nil {
		return
	}
	ring = orb.Ring(geoPts)
	return
}

// BorderWKT is the border as a WKT polygon.
func (d *Domain) BorderWKT(n int) (string, error) {
	ring, err := d.Border(n)
	if err != nil {
		return "", err
	}
	return wkt.MarshalString(orb.Polygon{ring}), nil
}

// Bound is the lon/lat bounding box of the border.
func (d *Domain) Bound() (orb.Bound, error) {
	ring, err := d.Border(10)
	if err != nil {
		return orb.Bound{}, err
	}
	return ring.Bound(), nil
}

// GeolocationGrids samples lon/lat at pixel centres i*step+0.5.
func (d *Domain) GeolocationGrids(step int) (lon, lat *raster.Array, err error) {
	if step < 1 {
		step = 1
	}
	gw := (d.width + step - 1) / step
	gh := (d.height + step - 1) / step
	pts := make([]orb.Point, 0, gw*gh)
	for j := 0; j < gh; j++ {
		for i := 0; i < gw; i++ {
			pts = append(pts, orb.Point{float64(i*step) + 0.5, float64(j*step) + 0.5})
		}
	}
	geoPts, err := d.Transform(pts, PixelToGeo)
	if err != nil {
		return
	}
	lon, lat = raster.NewArray(gw, gh), raster.NewArray(gw, gh)
	for k, p := range geoPts {
		lon.Re[k], lat.Re[k] = p[0], p[1]
	}
	return
}

func (d *Domain) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Domain:[%d x %d]\n", d.width, d.height)
	fmt.Fprintf(&b, "Georeference: %s\n", d.geo.Active)
	if d.geo.SRS != nil {
		if code := d.geo.SRS.EPSG(); code > 0 {
			fmt.Fprintf(&b, "Projection: EPSG:%d\n", code)
		} else if p := d.geo.SRS.Proj4(); p != "" {
			fmt.Fprintf(&b, "Projection: %s\n", p)
		}
	}
	corners, err := d.Corners()
	if err != nil {
		fmt.Fprintf(&b, "Corners: %v\n", err)
		return b.String()
	}
	for i, name := range []string{"UL", "LL", "UR", "LR"} {
		fmt.Fprintf(&b, "%s: %.2f, %.2f\n", name, corners[i][0], corners[i][1])
	}
	return b.String()
}
