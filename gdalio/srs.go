package gdalio

import (
	"fmt"
	"math"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/lukeroth/gdal"
	"go.uber.org/zap"

	"github.com/wgdzlh/geovrt/errs"
	"github.com/wgdzlh/geovrt/log"
	"github.com/wgdzlh/geovrt/srs"
)

// 按EPSG缓存的坐标系可复用，故无需回收
var refCache = struct {
	sync.Mutex
	refs map[int]*SpatialRef
}{refs: map[int]*SpatialRef{}}

// SpatialRef is an OGR spatial reference. It satisfies srs.Reference and
// srs.Provider, so systems unknown to the srs package are transformed by
// GDAL.
type SpatialRef struct {
	ref        gdal.SpatialReference
	wkt        string
	proj4      string
	epsg       int
	geographic bool
}

// RegisterSRS makes srs.Parse and srs.FromEPSG fall back to GDAL.
func RegisterSRS() {
	srs.SetBackend(ParseSRS)
}

// FromEPSG returns the shared reference for code.
func FromEPSG(code int) (sr *SpatialRef, err error) {
	refCache.Lock()
	defer refCache.Unlock()
	sr, ok := refCache.refs[code]
	if ok {
		return
	}
	ref := gdal.CreateSpatialReference("")
	if err = ref.FromEPSG(code); err != nil { // 设定坐标系ID
		log.Error(logTag+"set ref srid failed", zap.Int("srid", code), zap.Error(err))
		ref.Destroy()
		return nil, fmt.Errorf("%w: EPSG:%d: %v", ErrInvalidSRS, code, err)
	}
	sr = newSpatialRef(ref, code)
	refCache.refs[code] = sr
	return
}

// ParseSRS accepts "EPSG:n", a bare code, a PROJ.4 string or WKT.
func ParseSRS(def string) (srs.Reference, error) {
	sr, err := parseSpatialRef(def)
	if err != nil {
		return nil, err
	}
	return sr, nil
}

func parseSpatialRef(def string) (sr *SpatialRef, err error) {
	def = strings.TrimSpace(def)
	if code, e := strconv.Atoi(strings.TrimPrefix(strings.ToUpper(def), "EPSG:")); e == nil {
		return FromEPSG(code)
	}
	ref := gdal.CreateSpatialReference("")
	if strings.HasPrefix(def, "+") {
		err = ref.FromProj4(def)
	} else {
		err = ref.FromWKT(def)
	}
	if err != nil {
		ref.Destroy()
		return nil, fmt.Errorf("%w: %v", ErrInvalidSRS, err)
	}
	sr = newSpatialRef(ref, 0)
	runtime.AddCleanup(sr, func(r gdal.SpatialReference) { r.Destroy() }, ref)
	return
}

func newSpatialRef(ref gdal.SpatialReference, epsg int) *SpatialRef {
	// 坐标轴次序固定为(经度,纬度)（传统GIS坐标序），而不是新标准中与CRS相关的次序
	ref.SetAxisMappingStrategy(gdal.OAMS_TraditionalGisOrder)
	sr := &SpatialRef{ref: ref, epsg: epsg, geographic: ref.IsGeographic()}
	sr.wkt, _ = ref.ToWKT()
	sr.proj4, _ = ref.ToProj4()
	if sr.epsg == 0 {
		if id, err := srid(ref, sr.wkt); err == nil {
			sr.epsg = id
		}
	}
	return sr
}

// srid reads the EPSG authority code of a reference.
func srid(ref gdal.SpatialReference, wkt string) (id int, err error) {
	rawId, ok := ref.AttrValue("AUTHORITY", 1)
	if !ok {
		if strings.Contains(wkt, "CGCS_2000") {
			rawId = "4490"
		} else {
			err = ErrVoidSrid
			return
		}
	}
	return strconv.Atoi(rawId)
}

func (s *SpatialRef) WKT() string        { return s.wkt }
func (s *SpatialRef) Proj4() string      { return s.proj4 }
func (s *SpatialRef) EPSG() int          { return s.epsg }
func (s *SpatialRef) IsGeographic() bool { return s.geographic }

func (s *SpatialRef) String() string {
	if s.epsg > 0 {
		return fmt.Sprintf("EPSG:%d", s.epsg)
	}
	return s.proj4
}

func (s *SpatialRef) TransformerTo(dst srs.Reference) (srs.Transformer, error) {
	to, err := asSpatialRef(dst)
	if err != nil {
		return nil, err
	}
	return newTransformer(s, to), nil
}

func (s *SpatialRef) TransformerFrom(src srs.Reference) (srs.Transformer, error) {
	from, err := asSpatialRef(src)
	if err != nil {
		return nil, err
	}
	return newTransformer(from, s), nil
}

// asSpatialRef converts any reference to its GDAL form.
func asSpatialRef(r srs.Reference) (*SpatialRef, error) {
	if sr, ok := r.(*SpatialRef); ok {
		return sr, nil
	}
	switch {
	case r == nil:
		return nil, fmt.Errorf("%w: nil reference", errs.ErrUnsupportedSRS)
	case r.EPSG() > 0:
		return FromEPSG(r.EPSG())
	case r.WKT() != "":
		return parseSpatialRef(r.WKT())
	case r.Proj4() != "":
		return parseSpatialRef(r.Proj4())
	}
	return nil, fmt.Errorf("%w: empty definition", errs.ErrUnsupportedSRS)
}

// transformer serializes calls on one OGR coordinate transformation.
type transformer struct {
	mu sync.Mutex
	ct gdal.CoordinateTransform
}

func newTransformer(src, dst *SpatialRef) *transformer {
	t := &transformer{ct: gdal.CreateCoordinateTransform(src.ref, dst.ref)}
	runtime.AddCleanup(t, func(ct gdal.CoordinateTransform) { ct.Destroy() }, t.ct)
	return t
}

// Transform converts in place; points OGR rejects become NaN.
func (t *transformer) Transform(xs, ys []float64) error {
	if len(xs) != len(ys) {
		return errs.ErrShapeMismatch
	}
	if len(xs) == 0 {
		return nil
	}
	zs := make([]float64, len(xs))
	t.mu.Lock()
	ok := t.ct.Transform(len(xs), xs, ys, zs)
	t.mu.Unlock()
	failed := 0
	for i := range xs {
		if math.IsInf(xs[i], 0) || math.IsInf(ys[i], 0) {
			xs[i], ys[i] = math.NaN(), math.NaN()
			failed++
		}
	}
	if !ok && failed == 0 {
		return ErrTransformFailed
	}
	if failed > 0 {
		log.Debug(logTag+"points outside transform", zap.Int("failed", failed), zap.Int("total", len(xs)))
	}
	return nil
}
