package srs

import "math"

const (
	degToRad = math.Pi / 180

	xr = 20037508.34 / 180
	yr = xr / degToRad
	tr = degToRad / 2

	maxMercatorLat = 85.0511287798
)

// LonLatToMercator projects WGS84 degrees to EPSG:3857 metres.
func LonLatToMercator(lon, lat float64) (x, y float64) {
	if math.IsNaN(lon) || math.IsNaN(lat) || math.Abs(lat) > 90 {
		return math.NaN(), math.NaN()
	}
	lat = math.Max(-maxMercatorLat, math.Min(maxMercatorLat, lat))
	x = lon * xr
	y = math.Log(math.Tan((90+lat)*tr)) * yr
	return
}

// MercatorToLonLat is the inverse of LonLatToMercator.
func MercatorToLonLat(x, y float64) (lon, lat float64) {
	if math.IsNaN(x) || math.IsNaN(y) {
		return math.NaN(), math.NaN()
	}
	lon = x / xr
	lat = math.Atan(math.Exp(y/yr))/tr - 90
	return
}
