package mapper

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/wgdzlh/geovrt/errs"
	"github.com/wgdzlh/geovrt/georef"
	"github.com/wgdzlh/geovrt/vrt"
)

const ncepStage = "mapper ncep_wind"

// global half degree grid of the NCEP GFS 10 m wind files
var ncepGeoTransform = georef.GeoTransform{-0.25, 0.5, 0, 90.25, 0, -0.5}

// NCEPWind maps a two band GFS u/v wind file and derives speed and
// direction.
func NCEPWind(req Request) (n *vrt.Node, err error) {
	h := req.Handle
	if h == nil {
		return nil, errs.ErrNotApplicable
	}
	if gt, ok := h.GeoTransform(); !ok || gt != ncepGeoTransform || h.BandCount() != 2 {
		return nil, errs.ErrNotApplicable
	}
	valid := strings.Fields(h.BandMetadata(1)["GRIB_VALID_TIME"])
	if len(valid) == 0 {
		return nil, errs.Malformed(ncepStage, "GRIB_VALID_TIME", fmt.Errorf("missing"))
	}
	sec, err := strconv.ParseInt(valid[0], 10, 64)
	if err != nil {
		return nil, errs.Malformed(ncepStage, "GRIB_VALID_TIME", err)
	}

	if n, err = vrt.NewFromHandle(h, req.Env); err != nil {
		return
	}
	u := vrt.Source{Ref: h, Band: 1, DataType: h.BandDataType(1)}
	v := vrt.Source{Ref: h, Band: 2, DataType: h.BandDataType(2)}
	bands := []vrt.Band{
		band(h, 1, u.DataType, map[string]string{vrt.KeyWKV: "eastward_wind", "height": "10 m"}),
		band(h, 2, v.DataType, map[string]string{vrt.KeyWKV: "northward_wind", "height": "10 m"}),
		pixelBand(vrt.PFUVToMagnitude, map[string]string{
			vrt.KeyWKV: "wind_speed", vrt.KeyName: "windspeed", "height": "2 m"}, u, v),
		pixelBand(vrt.PFUVToDirectionFrom, map[string]string{
			vrt.KeyWKV: "wind_from_direction", vrt.KeyName: "winddirection", "height": "2 m"}, u, v),
	}
	if n, err = n.AddBands(bands); err != nil {
		return
	}
	return n.WithMetadata(map[string]string{KeyTime: formatTime(time.Unix(sec, 0))}), nil
}
