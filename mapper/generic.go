package mapper

import (
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/wgdzlh/geovrt/errs"
	"github.com/wgdzlh/geovrt/gcp"
	"github.com/wgdzlh/geovrt/geoloc"
	"github.com/wgdzlh/geovrt/georef"
	"github.com/wgdzlh/geovrt/log"
	"github.com/wgdzlh/geovrt/raster"
	"github.com/wgdzlh/geovrt/srs"
	"github.com/wgdzlh/geovrt/utils"
	"github.com/wgdzlh/geovrt/vrt"
)

const (
	nansatPrefix = "NANSAT_"
	genericStage = "mapper generic"
)

// band metadata the generic handler consumes
var rmMetadatas = []string{"NETCDF_VARNAME", "_Unsigned", "ScaleRatio", "ScaleOffset", "dods_variable"}

// gcp variables of a re-exported netCDF file
var gcpVariables = []string{"GCPX", "GCPY", "GCPZ", "GCPPixel", "GCPLine"}

// Generic maps any source with metadata: every band of every subdataset
// that has the size of the first 2-D subdataset becomes a band. Rasters
// written by this library are recognized by their NANSAT_ markers and get
// their georeference back.
func Generic(req Request) (n *vrt.Node, err error) {
	if len(req.Meta) == 0 || req.Handle == nil {
		return nil, errs.ErrNotApplicable
	}
	global := map[string]string{}
	geoMeta := map[string]string{}
	reexported := false
	for k, v := range req.Meta {
		k = strings.ReplaceAll(strings.ReplaceAll(k, "NC_GLOBAL#", ""), "GDAL_", "")
		if strings.Contains(k, nansatPrefix) {
			geoMeta[strings.ReplaceAll(k, nansatPrefix, "")] = v
			reexported = true
			continue
		}
		global[k] = v
	}
	isNC := strings.EqualFold(filepath.Ext(req.Source), ".nc")

	subs := req.Handle.SubDatasets()
	handles := make([]vrt.Handle, 0, max(1, len(subs)))
	names := make([]string, 0, cap(handles))
	if len(subs) == 0 {
		handles, names = append(handles, req.Handle), append(names, req.Source)
	}
	for _, sub := range subs {
		h, e := req.open(sub.Name)
		if e != nil {
			return nil, fmt.Errorf("subdataset %s: %w", sub.Name, e)
		}
		handles, names = append(handles, h), append(names, sub.Name)
	}

	var (
		first        vrt.Handle
		xName, yName string
		xH, yH       vrt.Handle
		gcpVars      = map[string]vrt.Handle{}
		bands        []vrt.Band
	)
	for i, h := range handles {
		name := names[i]
		if v := gcpVariable(name); v != "" {
			gcpVars[v] = h
			continue
		}
		if first == nil && h.Width() > 1 && h.Height() > 1 {
			first = h
		}
		if first == nil || h.Width() != first.Width() || h.Height() != first.Height() {
			continue
		}
		switch {
		case strings.Contains(name, "GEOLOCATION_X_DATASET") || strings.Contains(name, "longitude"):
			xName, xH = name, h
			continue
		case strings.Contains(name, "GEOLOCATION_Y_DATASET") || strings.Contains(name, "latitude"):
			yName, yH = name, h
			continue
		}
		for b := 1; b <= h.BandCount(); b++ {
			gb, e := genericBand(h, b)
			if e != nil {
				return nil, e
			}
			bands = append(bands, gb)
		}
	}
	if first == nil {
		return nil, errs.ErrNotApplicable
	}

	geo, err := genericGeoref(first, geoMeta, gcpVars)
	if err != nil {
		return
	}
	if xH != nil && yH != nil {
		grid := &geoloc.Grid{
			X: xH, Y: yH, XName: xName, YName: yName, XBand: 1, YBand: 1,
			SRS: srs.WKT_WGS84, LineStep: 1, PixelStep: 1,
		}
		geo.Grid = grid
		if geo.Active != georef.KindGCP {
			geo.Active = georef.KindGrid
		}
	}

	if s, ok := global["start_date"]; ok {
		if t, e := ParseTime(s); e != nil {
			log.Error(logTag+"wrong time format", zap.String("source", req.Source), zap.String("start_date", s), zap.Error(e))
		} else {
			global[KeyTime] = formatTime(t)
		}
	}

	n, err = vrt.NewEmpty(first.Width(), first.Height(), geo, global, req.Env)
	if err != nil {
		return
	}
	n = n.WithReExported(reexported && isNC)
	if n, err = n.AddBands(bands); err != nil {
		return
	}
	if n, err = joinComplex(n); err != nil {
		return
	}
	log.Info(logTag+"generic mapper ok", zap.String("source", req.Source), zap.Int("bands", n.BandCount()),
		zap.Stringer("georef", geo.Active))
	return
}

func gcpVariable(name string) string {
	for _, v := range gcpVariables {
		if strings.HasSuffix(name, ":"+v) || strings.HasSuffix(name, "/"+v) {
			return v
		}
	}
	return ""
}

func genericBand(h vrt.Handle, i int) (b vrt.Band, err error) {
	md := h.BandMetadata(i)
	delete(md, vrt.KeyPixelFunction)
	src := vrt.Source{Ref: h, Band: i, DataType: h.BandDataType(i)}
	if k, _ := firstOf(md, "ScaleRatio", "scale", "scale_factor"); k != "" {
		if src.ScaleRatio, err = floatMeta(genericStage, md, k, 1); err != nil {
			return
		}
	}
	if k, _ := firstOf(md, "ScaleOffset", "offset", "add_offset"); k != "" {
		if src.ScaleOffset, err = floatMeta(genericStage, md, k, 0); err != nil {
			return
		}
	}
	md[vrt.KeyWKV] = md["standard_name"]
	_, fallback := firstOf(md, "NETCDF_VARNAME", "dods_variable")
	for _, k := range rmMetadatas {
		delete(md, k)
	}
	return vrt.Band{Sources: []vrt.Source{src}, Meta: md, DataType: src.DataType, Fallback: fallback}, nil
}

// genericGeoref picks, in order: GCPs of the raster, GCPs stored in
// metadata, GCP variables, the raster geotransform, the stored
// geotransform.
func genericGeoref(first vrt.Handle, geoMeta map[string]string, gcpVars map[string]vrt.Handle) (geo georef.Georef, err error) {
	proj := first.Projection()
	if proj == nil {
		if s := geoMeta["GCPProjection"]; s != "" {
			proj, _ = srs.Parse(utils.UnescapeMetadata(s))
		}
	}
	if proj == nil {
		proj = srs.WGS84
	}

	set, gcpRef := first.GCPs()
	if len(set) == 0 {
		if set, err = gcp.FromMetadata(geoMeta); err != nil {
			return
		}
	}
	if len(set) == 0 {
		if set, err = gcpFromVariables(gcpVars); err != nil {
			return
		}
	}
	if len(set) > 0 {
		if gcpRef == nil {
			gcpRef = srs.WGS84
			if s := geoMeta["GCPProjection"]; s != "" {
				if r, e := srs.Parse(utils.UnescapeMetadata(s)); e == nil {
					gcpRef = r
				}
			}
		}
		return georef.GCPs(set, gcpRef), nil
	}

	if gt, ok := first.GeoTransform(); ok {
		return georef.Affine(gt, proj), nil
	}
	gt := georef.Identity
	if s, ok := geoMeta["GeoTransform"]; ok {
		if gt, err = georef.ParseGeoTransform(s); err != nil {
			return
		}
	}
	return georef.Affine(gt, proj), nil
}

func gcpFromVariables(vars map[string]vrt.Handle) (gcp.Set, error) {
	if len(vars) != len(gcpVariables) {
		return nil, nil
	}
	vals := make([][]float64, len(gcpVariables))
	for i, v := range gcpVariables {
		a, err := raster.ReadFull(vars[v], 1)
		if err != nil {
			return nil, fmt.Errorf("gcp variable %s: %w", v, err)
		}
		vals[i] = a.Re
	}
	return gcp.FromArrays(vals[0], vals[1], vals[2], vals[3], vals[4])
}

// joinComplex replaces each name_real/name_imag band pair with one
// ComplexData band called name.
func joinComplex(n *vrt.Node) (*vrt.Node, error) {
	bands := n.Bands()
	var (
		joined []vrt.Band
		drop   []int
	)
	for i, re := range bands {
		name := re.Name()
		if !strings.Contains(name, "_real") {
			continue
		}
		base := name[:strings.LastIndex(name, "_")]
		for j, im := range bands {
			if !strings.Contains(im.Name(), base+"_imag") {
				continue
			}
			md := utils.CloneMap(im.Meta)
			md[vrt.KeyName] = base
			md[vrt.KeyDataType] = fmt.Sprint(int(raster.CFloat32))
			joined = append(joined, pixelBand(vrt.PFComplexData, md, re.Sources[0], im.Sources[0]))
			drop = append(drop, i+1, j+1)
			break
		}
	}
	if len(joined) == 0 {
		return n, nil
	}
	n, err := n.AddBands(joined)
	if err != nil {
		return nil, err
	}
	return n.DeleteBands(drop)
}
