package geovrt

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"github.com/wgdzlh/geovrt/domain"
	"github.com/wgdzlh/geovrt/errs"
	"github.com/wgdzlh/geovrt/georef"
	"github.com/wgdzlh/geovrt/log"
	"github.com/wgdzlh/geovrt/raster"
	"github.com/wgdzlh/geovrt/srs"
	"github.com/wgdzlh/geovrt/utils"
	"github.com/wgdzlh/geovrt/vrt"
)

type CropStatus int

const (
	CropOK CropStatus = iota
	// the window does not intersect the raster; nothing changed
	CropOutside
	// the window covers the whole raster; nothing changed
	CropNotNeeded
)

// Extent is a window in pixels of the raster before the crop.
type Extent = raster.Window

// Crop keeps the window (x, y, w, h), clamped to the raster. A non-positive
// w or h runs to the raster edge. A window fully outside the raster gives
// CropOutside with an ErrOutOfRangeGeometry error; a window covering the
// whole raster gives CropNotNeeded and no error.
func (s *Scene) Crop(x, y, w, h int) (status CropStatus, ext Extent, err error) {
	if w <= 0 {
		w = s.Width() - x
	}
	if h <= 0 {
		h = s.Height() - y
	}
	n, ext, err := s.node.Cropped(x, y, w, h)
	switch {
	case errors.Is(err, errs.ErrOutOfRangeGeometry):
		log.Error(logTag+"cropping region is outside the image", zap.Int("x", x), zap.Int("y", y),
			zap.Int("width", w), zap.Int("height", h))
		return CropOutside, ext, err
	case errors.Is(err, errs.ErrCropNotNeeded):
		log.Warn(logTag+"cropping region covers the image", zap.Int("x", x), zap.Int("y", y),
			zap.Int("width", w), zap.Int("height", h))
		return CropNotNeeded, ext, nil
	case err != nil:
		return
	}
	s.push(n)
	log.Debug(logTag+"cropped", zap.Int("x", ext.X), zap.Int("y", ext.Y), zap.Int("width", ext.W), zap.Int("height", ext.H))
	return CropOK, ext, nil
}

// CropLonLat crops to the pixel box spanned by the longitude and latitude
// limits. The limits may reach beyond the raster.
func (s *Scene) CropLonLat(lonlim, latlim [2]float64) (CropStatus, Extent, error) {
	xs := []float64{lonlim[0], lonlim[0], lonlim[1], lonlim[1]}
	ys := []float64{latlim[0], latlim[1], latlim[0], latlim[1]}
	if err := s.toPixels(xs, ys); err != nil {
		return CropOutside, Extent{}, err
	}
	x0, x1 := minMax(xs)
	y0, y1 := minMax(ys)
	if math.IsNaN(x0 + x1 + y0 + y1) {
		return CropOutside, Extent{}, fmt.Errorf("%w: limits %v, %v cannot be located", ErrOutOfRangeGeometry, lonlim, latlim)
	}
	x, y := int(math.Round(x0)), int(math.Round(y0))
	w, h := int(math.Round(x1-x0)), int(math.Round(y1-y0))
	if w <= 0 || h <= 0 {
		return CropOutside, Extent{}, fmt.Errorf("%w: limits %v, %v give an empty window", ErrOutOfRangeGeometry, lonlim, latlim)
	}
	return s.Crop(x, y, w, h)
}

// toPixels maps lon/lat to pixel/line in place without masking points off
// the raster.
func (s *Scene) toPixels(xs, ys []float64) error {
	m, err := s.node.Model()
	if err != nil {
		return err
	}
	t, err := srs.NewTransformer(srs.WGS84, s.node.SRS())
	if err != nil {
		return err
	}
	if err = t.Transform(xs, ys); err != nil {
		return err
	}
	m.Inverse(xs, ys)
	return nil
}

func minMax(vs []float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range vs {
		if math.IsNaN(v) {
			return math.NaN(), math.NaN()
		}
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}
	return
}

// ResizeOptions pick the new size. Height wins over Width, Width over
// PixelSize and PixelSize over Factor.
type ResizeOptions struct {
	Factor    float64 // 0 means 1
	Width     int
	Height    int
	PixelSize float64 // approximate target pixel size in metres
	Resample  string  // empty uses the configured default
}

// Resize scales both axes by one factor and returns it. The new size is
// the old one times the factor, truncated.
func (s *Scene) Resize(opts ResizeOptions) (factor float64, err error) {
	w, h := float64(s.Width()), float64(s.Height())
	factor = opts.Factor
	if factor == 0 {
		factor = 1
	}
	if opts.PixelSize > 0 {
		var dx, dy float64
		if dx, dy, err = s.PixelSizeMeters(); err != nil {
			return
		}
		factor = (dx/opts.PixelSize + dy/opts.PixelSize) / 2
	}
	if opts.Width > 0 {
		factor = float64(opts.Width) / w
	}
	if opts.Height > 0 {
		factor = float64(opts.Height) / h
	}
	if factor <= 0 || math.IsNaN(factor) || math.IsInf(factor, 0) {
		return 0, fmt.Errorf("%w: factor %v", ErrBadResize, factor)
	}
	name := opts.Resample
	if name == "" {
		name = s.opts.Config.Resample
	}
	alg, err := raster.ParseResample(name)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBadResize, err)
	}
	newW, newH := int(w*factor), int(h*factor)
	n, err := s.node.Resized(newW, newH, alg)
	if err != nil {
		return 0, fmt.Errorf("%w: %dx%d: %v", ErrBadResize, newW, newH, err)
	}
	s.push(n)
	log.Info(logTag+"resized", zap.Int("width", newW), zap.Int("height", newH), zap.Float64("factor", factor),
		zap.Stringer("resample", alg))
	return
}

// ReprojectOptions tune Reproject. Unset TPS and SkipGCPs fall back to the
// preferences of the destination, then of the scene.
type ReprojectOptions struct {
	Resample    raster.Resample
	TPS         *bool
	SkipGCPs    int
	WorkingType raster.DataType
	// false rebuilds an affine destination from the corners of dom
	UseGCPs *bool
}

// Reproject warps the scene onto dom. A scene spanning longitudes 0 to 360
// is first shifted 180 degrees west when dom reaches west of 0.
func (s *Scene) Reproject(dom *domain.Domain, opts ReprojectOptions) (err error) {
	if dom == nil {
		return ErrNoDomain
	}
	src := s.node
	if src, err = s.unwrapped(src, dom); err != nil {
		return
	}
	wo, err := warpOptions(dom, opts)
	if err != nil {
		return
	}
	if opts.SkipGCPs <= 0 {
		if p := src.Prefs(); p.Skip == 0 {
			if k := s.metaSkip(); k > 0 {
				p.Skip = k
				src = src.WithPrefs(p)
			}
		}
	}
	n, err := src.Warped(wo)
	if err != nil {
		log.Error(logTag+"reproject failed", zap.String("source", s.source), zap.Error(err))
		return
	}
	s.push(n)
	return
}

func (s *Scene) metaSkip() int {
	v, ok := s.MetadataItem(KeySkipGCPs)
	if !ok {
		return 0
	}
	k := utils.StrToInt(strings.TrimSpace(v))
	if k < 1 {
		log.Warn(logTag+"ignoring bad skip_gcps", zap.String("value", v))
		return 0
	}
	return k
}

// unwrapped shifts a 0..360 raster to -180..180 when dom lies partly west
// of 0.
func (s *Scene) unwrapped(n *vrt.Node, dom *domain.Domain) (*vrt.Node, error) {
	sc, err := s.Corners()
	if err != nil {
		return nil, err
	}
	lo, hi := cornerLons(sc)
	if math.Round(lo) != 0 || math.Round(hi) != 360 {
		return n, nil
	}
	dc, err := dom.Corners()
	if err != nil {
		return nil, err
	}
	if dlo, _ := cornerLons(dc); dlo < 0 {
		log.Info(logTag+"shifting 0..360 raster westwards", zap.String("source", s.source))
		return n.Shifted(-180)
	}
	return n, nil
}

func cornerLons(c [4]orb.Point) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, p := range c {
		lo, hi = math.Min(lo, p[0]), math.Max(hi, p[0])
	}
	return
}

// warpOptions turns dom into a warp destination. GCP destinations keep
// their GCPs unless UseGCPs is false; geolocation destinations are sampled
// into GCPs.
func warpOptions(dom *domain.Domain, opts ReprojectOptions) (wo vrt.WarpOptions, err error) {
	geo := dom.Georef()
	wo = vrt.WarpOptions{
		SRS:         geo.SRS,
		Width:       dom.Width(),
		Height:      dom.Height(),
		Resample:    opts.Resample,
		TPS:         opts.TPS,
		SkipGCPs:    opts.SkipGCPs,
		WorkingType: opts.WorkingType,
		DstPrefs:    dom.Prefs(),
	}
	if opts.UseGCPs != nil && !*opts.UseGCPs {
		var c [4]orb.Point
		if c, err = dom.Corners(); err != nil {
			return
		}
		lo, hi := cornerLons(c)
		lat0, lat1 := math.Inf(1), math.Inf(-1)
		for _, p := range c {
			lat0, lat1 = math.Min(lat0, p[1]), math.Max(lat1, p[1])
		}
		var d *domain.Domain
		if d, err = domain.FromExtent(geo.SRS, fmt.Sprintf(cornerFormat, lo, lat0, hi, lat1, dom.Width(), dom.Height())); err != nil {
			return
		}
		gt := d.Georef().Transform
		wo.GeoTransform = &gt
		return
	}
	switch geo.Active {
	case georef.KindGCP:
		wo.GCPs = geo.GCPs
	case georef.KindGrid:
		var m georef.Model
		if m, err = dom.Model(); err != nil {
			return
		}
		wo.GCPs = georef.SampleGCPs(m, dom.Width(), dom.Height())
	default:
		gt := geo.Transform
		wo.GeoTransform = &gt
	}
	return
}
