package mapper

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/wgdzlh/geovrt/errs"
	"github.com/wgdzlh/geovrt/gcp"
	"github.com/wgdzlh/geovrt/geoloc"
	"github.com/wgdzlh/geovrt/georef"
	"github.com/wgdzlh/geovrt/log"
	"github.com/wgdzlh/geovrt/raster"
	"github.com/wgdzlh/geovrt/srs"
	"github.com/wgdzlh/geovrt/vrt"
)

const obpgStage = "mapper obpg_l2"

const (
	titleGOCI = "GOCI Level-2 Data"

	wkvRrs  = "surface_ratio_of_upwelling_radiance_emerging_from_sea_water_to_downwelling_radiative_flux_in_air"
	wkvRrsw = "surface_ratio_of_upwelling_radiance_emerging_from_sea_water_to_downwelling_radiative_flux_in_water"
)

var obpgTitles = []string{
	"HMODISA Level-2 Data",
	"MODISA Level-2 Data",
	"MERIS Level-2 Data",
	titleGOCI,
	gcp.SensorVIIRSN,
}

// GOCI L2 products carry no navigation; the grid is fixed.
const (
	gociWidth  = 5567
	gociHeight = 5685
	gociProj4  = "+proj=ortho +lat_0=36 +lon_0=130 +units=m +ellps=WGS84 +datum=WGS84 +no_defs"
)

var gociGeoTransform = georef.GeoTransform{-1391500, 500, 0, 1349500, 0, -500}

type obpgBand struct {
	meta     map[string]string
	srcType  raster.DataType
	flagType bool
}

var obpgBands = map[string]obpgBand{
	"Rrs":        {meta: map[string]string{vrt.KeyWKV: wkvRrs}},
	"Kd":         {meta: map[string]string{vrt.KeyWKV: "volume_attenuation_coefficient_of_downwelling_radiative_flux_in_sea_water"}},
	"chlor_a":    {meta: map[string]string{vrt.KeyWKV: "mass_concentration_of_chlorophyll_a_in_sea_water", "case": "I"}},
	"cdom_index": {meta: map[string]string{vrt.KeyWKV: "volume_absorption_coefficient_of_radiative_flux_in_sea_water_due_to_dissolved_organic_matter", "case": "II"}},
	"sst":        {meta: map[string]string{vrt.KeyWKV: "sea_surface_temperature"}},
	"sst4":       {meta: map[string]string{vrt.KeyWKV: "sea_surface_temperature"}},
	"l2_flags":   {meta: map[string]string{vrt.KeyWKV: "quality_flags"}, srcType: raster.UInt32, flagType: true},
	"qual_sst":   {meta: map[string]string{vrt.KeyWKV: "quality_flags", vrt.KeyName: "qual_sst"}, srcType: raster.UInt32, flagType: true},
	"qual_sst4":  {meta: map[string]string{vrt.KeyWKV: "quality_flags", vrt.KeyName: "qual_sst"}, srcType: raster.UInt32, flagType: true},
	"latitude":   {meta: map[string]string{vrt.KeyWKV: "latitude"}},
	"longitude":  {meta: map[string]string{vrt.KeyWKV: "longitude"}},
}

// splitWavelength splits "Rrs_412" into ("Rrs", "412").
func splitWavelength(name string) (base, wavelength string) {
	parts := strings.Split(name, "_")
	if len(parts) > 1 {
		if _, err := strconv.Atoi(parts[len(parts)-1]); err == nil {
			return parts[0], parts[len(parts)-1]
		}
	}
	return name, ""
}

// OBPGL2 maps SeaWiFS, MODIS, MERIS, GOCI and VIIRS level 2 ocean colour
// files from the OBPG. Navigation comes from the geolocation grid, sampled
// into GCPs.
func OBPGL2(req Request) (n *vrt.Node, err error) {
	title := req.Meta["Title"]
	if req.Handle == nil || !slices.Contains(obpgTitles, title) {
		return nil, errs.ErrNotApplicable
	}
	subs := req.Handle.SubDatasets()
	var first vrt.Handle
	for _, sub := range subs {
		if !strings.Contains(sub.Desc, "longitude") && !strings.Contains(sub.Desc, "latitude") {
			if first, err = req.open(sub.Name); err != nil {
				return nil, fmt.Errorf("subdataset %s: %w", sub.Name, err)
			}
			break
		}
	}
	if first == nil {
		return nil, fmt.Errorf("%s: %w: no data subdataset", obpgStage, errs.ErrNoMapperMatched)
	}
	start, err := obpgTime(req.Meta)
	if err != nil {
		return
	}

	if title == titleGOCI {
		ref, e := srs.Parse(gociProj4)
		if e != nil {
			return nil, e
		}
		n, err = vrt.NewEmpty(gociWidth, gociHeight, georef.Affine(gociGeoTransform, ref), req.Meta, req.Env)
	} else {
		// georeference is set from the geolocation grid below
		n, err = vrt.NewEmpty(first.Width(), first.Height(), georef.Affine(georef.Identity, srs.WGS84), req.Meta, req.Env)
	}
	if err != nil {
		return
	}

	var bands []vrt.Band
	for _, sub := range subs {
		base, wl := splitWavelength(varName(sub))
		spec, ok := obpgBands[base]
		if !ok {
			continue
		}
		h, e := req.open(sub.Name)
		if e != nil {
			return nil, fmt.Errorf("subdataset %s: %w", sub.Name, e)
		}
		if h.Width() != n.Width() || h.Height() != n.Height() {
			// navigation grids sampled below full resolution
			continue
		}
		md := h.Metadata(vrt.DomainDefault)
		src := vrt.Source{Ref: h, Band: 1, DataType: spec.srcType}
		if src.DataType == raster.Unknown {
			src.DataType = h.BandDataType(1)
		}
		if src.ScaleRatio, err = floatMeta(obpgStage, md, "slope", 1); err != nil {
			return
		}
		if src.ScaleOffset, err = floatMeta(obpgStage, md, "intercept", 0); err != nil {
			return
		}
		meta := map[string]string{}
		for k, v := range spec.meta {
			meta[k] = v
		}
		if spec.flagType {
			meta[vrt.KeyDataType] = strconv.Itoa(int(raster.UInt32))
		}
		if wl != "" {
			meta[vrt.KeySuffix] = wl
			meta[vrt.KeyWavelength] = wl
		}
		bands = append(bands, vrt.Band{Sources: []vrt.Source{src}, Meta: meta})
		log.Debug(logTag+"obpg band", zap.String("subdataset", sub.Name), zap.String("name", base), zap.String("wavelength", wl))

		if base == "Rrs" {
			rs := src
			rs.DataType = raster.Float32
			bands = append(bands, pixelBand(vrt.PFNormReflectanceToRrs, map[string]string{
				vrt.KeyWKV:        wkvRrsw,
				vrt.KeySuffix:     wl,
				vrt.KeyWavelength: wl,
			}, rs))
		}
	}
	if n, err = n.AddBands(bands); err != nil {
		return
	}
	n = n.WithMetadata(map[string]string{KeyTime: formatTime(start)})
	if title == titleGOCI {
		return
	}

	geo, err := obpgGeoref(req, first, title)
	if err != nil {
		return
	}
	return n.WithGeoref(geo), nil
}

// obpgTime is January 1 of Start Year plus Start Day - 1 days plus Start
// Millisec.
func obpgTime(md map[string]string) (t time.Time, err error) {
	year, err := intMeta(obpgStage, md, "Start Year")
	if err != nil {
		return
	}
	day, err := intMeta(obpgStage, md, "Start Day")
	if err != nil {
		return
	}
	ms, err := intMeta(obpgStage, md, "Start Millisec")
	if err != nil {
		return
	}
	t = time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC).
		AddDate(0, 0, day-1).
		Add(time.Duration(ms) * time.Millisecond)
	return
}

func obpgGeoref(req Request, first vrt.Handle, title string) (geo georef.Georef, err error) {
	md := first.Metadata(vrt.DomainGeolocation)
	if md[geoloc.KeyXDataset] == "" {
		return geo, errs.Malformed(obpgStage, geoloc.KeyXDataset, fmt.Errorf("missing"))
	}
	grid, err := geoloc.FromMetadata(md, func(name string) (raster.Reader, error) { return req.open(name) })
	if err != nil {
		return
	}
	lon, lat, err := grid.Resolve()
	if err != nil {
		return
	}
	ps, ls := geoloc.EstimateStep(first.Width(), first.Height(), lon.Width, lon.Height)
	grid.PixelStep, grid.LineStep = float64(ps), float64(ls)
	count := req.intOption(OptGCPCount, gcp.GridCount)
	set, err := gcp.FromGrid(lon, lat, grid.PixelStep, grid.LineStep, count, title)
	if err != nil {
		return
	}
	log.Debug(logTag+"obpg gcps", zap.Int("count", len(set)), zap.Int("pixelStep", ps), zap.Int("lineStep", ls))
	geo = georef.GCPs(set, srs.WGS84)
	geo.Grid = grid
	return
}
