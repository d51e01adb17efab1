// Package srs wraps coordinate reference systems and the transforms between
// them. Geographic WGS84 and Web Mercator are handled in pure Go; any other
// system needs a backend (see gdalio.SpatialRef) that implements Provider.
package srs

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/wgdzlh/geovrt/errs"
)

const (
	EPSG_WGS84        = 4326
	EPSG_WEB_MERCATOR = 3857

	WKT_WGS84 = `GEOGCS["WGS 84",DATUM["WGS_1984",SPHEROID["WGS 84",6378137,298.257223563,AUTHORITY["EPSG","7030"]],AUTHORITY["EPSG","6326"]],PRIMEM["Greenwich",0,AUTHORITY["EPSG","8901"]],UNIT["degree",0.0174532925199433,AUTHORITY["EPSG","9122"]],AXIS["Latitude",NORTH],AXIS["Longitude",EAST],AUTHORITY["EPSG","4326"]]`
	WKT_WEB_MERCATOR = `PROJCS["WGS 84 / Pseudo-Mercator",GEOGCS["WGS 84",DATUM["WGS_1984",SPHEROID["WGS 84",6378137,298.257223563,AUTHORITY["EPSG","7030"]],AUTHORITY["EPSG","6326"]],PRIMEM["Greenwich",0,AUTHORITY["EPSG","8901"]],UNIT["degree",0.0174532925199433,AUTHORITY["EPSG","9122"]],AUTHORITY["EPSG","4326"]],PROJECTION["Mercator_1SP"],PARAMETER["central_meridian",0],PARAMETER["scale_factor",1],PARAMETER["false_easting",0],PARAMETER["false_northing",0],UNIT["metre",1,AUTHORITY["EPSG","9001"]],AXIS["X",EAST],AXIS["Y",NORTH],EXTENSION["PROJ4","+proj=merc +a=6378137 +b=6378137 +lat_ts=0.0 +lon_0=0.0 +x_0=0.0 +y_0=0 +k=1.0 +units=m +nadgrids=@null +wktext +no_defs"],AUTHORITY["EPSG","3857"]]`

	PROJ4_WGS84        = "+proj=longlat +datum=WGS84 +no_defs"
	PROJ4_WEB_MERCATOR = "+proj=merc +a=6378137 +b=6378137 +lat_ts=0.0 +lon_0=0.0 +x_0=0.0 +y_0=0 +k=1.0 +units=m +nadgrids=@null +wktext +no_defs"
)

// Reference is a coordinate reference system.
type Reference interface {
	WKT() string
	Proj4() string
	EPSG() int // 0 when unknown
	IsGeographic() bool
}

// Transformer converts coordinates in place. Points that cannot be
// transformed are set to NaN.
type Transformer interface {
	Transform(xs, ys []float64) error
}

// Provider is implemented by backend references able to build transformers
// for systems the pure-Go code does not know.
type Provider interface {
	TransformerTo(dst Reference) (Transformer, error)
	TransformerFrom(src Reference) (Transformer, error)
}

type kind int

const (
	kindUnknown kind = iota
	kindLonLat
	kindMercator
)

type builtin struct {
	kind  kind
	epsg  int
	wkt   string
	proj4 string
}

func (b *builtin) WKT() string        { return b.wkt }
func (b *builtin) Proj4() string      { return b.proj4 }
func (b *builtin) EPSG() int          { return b.epsg }
func (b *builtin) IsGeographic() bool { return b.kind == kindLonLat }
func (b *builtin) String() string {
	if b.epsg > 0 {
		return fmt.Sprintf("EPSG:%d", b.epsg)
	}
	return b.proj4 + b.wkt
}

var (
	WGS84       Reference = &builtin{kind: kindLonLat, epsg: EPSG_WGS84, wkt: WKT_WGS84, proj4: PROJ4_WGS84}
	WebMercator Reference = &builtin{kind: kindMercator, epsg: EPSG_WEB_MERCATOR, wkt: WKT_WEB_MERCATOR, proj4: PROJ4_WEB_MERCATOR}

	authorityRe = regexp.MustCompile(`AUTHORITY\["EPSG",\s*"?(\d+)"?\]\]\s*$`)
)

func FromEPSG(code int) (Reference, error) {
	switch code {
	case EPSG_WGS84:
		return WGS84, nil
	case EPSG_WEB_MERCATOR, 900913:
		return WebMercator, nil
	}
	if p := backendParser(); p != nil {
		return p(fmt.Sprintf("EPSG:%d", code))
	}
	return nil, fmt.Errorf("%w: EPSG:%d", errs.ErrUnsupportedSRS, code)
}

// Parse accepts "EPSG:n", a bare EPSG code, a PROJ.4 string or WKT.
// Systems outside the built-in set are kept as opaque text and need a
// backend to be transformed.
func Parse(s string) (Reference, error) {
	ref, err := parse(s)
	if err != nil {
		return nil, err
	}
	if b, ok := ref.(*builtin); ok && b.kind == kindUnknown {
		if p := backendParser(); p != nil {
			return p(strings.TrimSpace(s))
		}
	}
	return ref, nil
}

var backend struct {
	sync.RWMutex
	parse func(def string) (Reference, error)
}

// SetBackend hands every definition Parse cannot resolve in pure Go to
// parse. A nil parse removes the backend.
func SetBackend(parse func(def string) (Reference, error)) {
	backend.Lock()
	backend.parse = parse
	backend.Unlock()
}

func backendParser() func(string) (Reference, error) {
	backend.RLock()
	defer backend.RUnlock()
	return backend.parse
}

func parse(s string) (Reference, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty definition", errs.ErrUnsupportedSRS)
	}
	code := strings.TrimPrefix(strings.ToUpper(s), "EPSG:")
	if n, err := strconv.Atoi(code); err == nil {
		if ref, err := FromEPSG(n); err == nil {
			return ref, nil
		}
		return &builtin{kind: kindUnknown, epsg: n, proj4: "", wkt: ""}, nil
	}
	if strings.HasPrefix(s, "+") {
		switch {
		case strings.Contains(s, "+proj=longlat") || strings.Contains(s, "+proj=latlong"):
			return &builtin{kind: kindLonLat, epsg: wgs84IfDatum(s), proj4: s, wkt: WKT_WGS84}, nil
		case strings.Contains(s, "+proj=merc") && strings.Contains(s, "+a=6378137") && strings.Contains(s, "+b=6378137"):
			return WebMercator, nil
		}
		return &builtin{kind: kindUnknown, proj4: s}, nil
	}
	if m := authorityRe.FindStringSubmatch(s); m != nil {
		if n, _ := strconv.Atoi(m[1]); n > 0 {
			if ref, err := FromEPSG(n); err == nil {
				return ref, nil
			}
		}
	}
	if strings.HasPrefix(s, "GEOGCS[") || strings.HasPrefix(s, "GEOGCRS[") {
		return &builtin{kind: kindLonLat, wkt: s, proj4: PROJ4_WGS84}, nil
	}
	return &builtin{kind: kindUnknown, wkt: s}, nil
}

func wgs84IfDatum(p string) int {
	if strings.Contains(p, "WGS84") {
		return EPSG_WGS84
	}
	return 0
}

// Equal reports whether two references describe the same system.
func Equal(a, b Reference) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a == b {
		return true
	}
	if a.EPSG() > 0 && a.EPSG() == b.EPSG() {
		return true
	}
	ba, okA := a.(*builtin)
	bb, okB := b.(*builtin)
	if okA && okB && ba.kind != kindUnknown && ba.kind == bb.kind {
		return true
	}
	if a.WKT() != "" && a.WKT() == b.WKT() {
		return true
	}
	return a.Proj4() != "" && a.Proj4() == b.Proj4()
}

type identity struct{}

func (identity) Transform(_, _ []float64) error { return nil }

type funcTransformer func(x, y float64) (float64, float64)

func (f funcTransformer) Transform(xs, ys []float64) error {
	if len(xs) != len(ys) {
		return errs.ErrShapeMismatch
	}
	for i := range xs {
		xs[i], ys[i] = f(xs[i], ys[i])
	}
	return nil
}

// NewTransformer builds a transformer from src to dst.
func NewTransformer(src, dst Reference) (Transformer, error) {
	if src == nil || dst == nil {
		return nil, fmt.Errorf("%w: nil reference", errs.ErrUnsupportedSRS)
	}
	if Equal(src, dst) {
		return identity{}, nil
	}
	if p, ok := src.(Provider); ok {
		return p.TransformerTo(dst)
	}
	if p, ok := dst.(Provider); ok {
		return p.TransformerFrom(src)
	}
	bs, okS := src.(*builtin)
	bd, okD := dst.(*builtin)
	if okS && okD {
		switch {
		case bs.kind == kindLonLat && bd.kind == kindMercator:
			return funcTransformer(LonLatToMercator), nil
		case bs.kind == kindMercator && bd.kind == kindLonLat:
			return funcTransformer(MercatorToLonLat), nil
		case bs.kind == bd.kind && bs.kind != kindUnknown:
			return identity{}, nil
		}
	}
	return nil, fmt.Errorf("%w: %s -> %s", errs.ErrUnsupportedSRS, describe(src), describe(dst))
}

func describe(r Reference) string {
	if r.EPSG() > 0 {
		return fmt.Sprintf("EPSG:%d", r.EPSG())
	}
	if r.Proj4() != "" {
		return r.Proj4()
	}
	w := r.WKT()
	if len(w) > 40 {
		w = w[:40] + "..."
	}
	return w
}

// TransformPoint is a convenience for single coordinates.
func TransformPoint(t Transformer, x, y float64) (float64, float64) {
	xs, ys := []float64{x}, []float64{y}
	if err := t.Transform(xs, ys); err != nil {
		return math.NaN(), math.NaN()
	}
	return xs[0], ys[0]
}
