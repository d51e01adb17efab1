package mapper

import (
	"encoding/xml"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"go.uber.org/zap"

	"github.com/wgdzlh/geovrt/domain"
	"github.com/wgdzlh/geovrt/errs"
	"github.com/wgdzlh/geovrt/georef"
	"github.com/wgdzlh/geovrt/log"
	"github.com/wgdzlh/geovrt/raster"
	"github.com/wgdzlh/geovrt/vrt"
)

const (
	rs2Stage = "mapper radarsat2"

	rs2Sigma0 = "Sigma Nought calibrated"
	rs2Beta0  = "Beta Nought calibrated"
	rs2Pol    = "POLARIMETRIC_INTERP"

	wkvSigma0 = "surface_backwards_scattering_coefficient_of_radar_wave"

	// look direction is sampled every lookStep pixels and interpolated
	lookStep = 100
)

// the part of product.xml the mapper needs
type rs2Product struct {
	AntennaPointing string `xml:"sourceAttributes>radarParameters>antennaPointing"`
	PassDirection   string `xml:"sourceAttributes>orbitAndAttitude>orbitInformation>passDirection"`
}

func readRS2Product(source string) (p rs2Product, err error) {
	name := source
	if !strings.EqualFold(filepath.Base(name), "product.xml") {
		name = filepath.Join(source, "product.xml")
	}
	raw, err := os.ReadFile(name)
	if err != nil {
		return
	}
	err = xml.Unmarshal(raw, &p)
	return
}

// rs2Geometry resolves antenna pointing (+90 right, -90 left) and pass
// direction from product.xml, else from the driver metadata.
func rs2Geometry(req Request) (antenna float64, pass string, err error) {
	p, e := readRS2Product(req.Source)
	if e != nil {
		log.Debug(logTag+"product.xml not read", zap.String("source", req.Source), zap.Error(e))
	}
	pointing := p.AntennaPointing
	if pointing == "" {
		pointing = req.Meta["ANTENNA_POINTING"]
	}
	pass = strings.ToUpper(strings.TrimSpace(p.PassDirection))
	if pass == "" {
		pass = strings.ToUpper(strings.TrimSpace(req.Meta["ORBIT_DIRECTION"]))
	}
	if pass != "ASCENDING" && pass != "DESCENDING" {
		return 0, "", errs.Malformed(rs2Stage, "passDirection", fmt.Errorf("cannot decode %q", pass))
	}
	antenna = -90
	if strings.EqualFold(strings.TrimSpace(pointing), "right") {
		antenna = 90
	}
	return
}

// Radarsat2 maps calibrated RADARSAT-2 products: sigma0 per polarization,
// incidence angle from beta0 and sigma0, SAR look direction, and VV sigma0
// estimated from HH when VV was not acquired.
func Radarsat2(req Request) (n *vrt.Node, err error) {
	if req.Handle == nil || req.Meta["SATELLITE_IDENTIFIER"] != "RADARSAT-2" {
		return nil, errs.ErrNotApplicable
	}
	antenna, pass, err := rs2Geometry(req)
	if err != nil {
		return
	}
	var s0, b0 vrt.Handle
	for _, sub := range req.Handle.SubDatasets() {
		switch sub.Desc {
		case rs2Sigma0:
			s0, err = req.open(sub.Name)
		case rs2Beta0:
			b0, err = req.open(sub.Name)
		}
		if err != nil {
			return nil, fmt.Errorf("subdataset %s: %w", sub.Name, err)
		}
	}
	if s0 == nil {
		return nil, errs.Malformed(rs2Stage, rs2Sigma0, fmt.Errorf("subdataset missing"))
	}

	if n, err = vrt.NewFromHandle(req.Handle, req.Env); err != nil {
		return
	}
	var (
		bands []vrt.Band
		pols  []string
	)
	for i := 1; i <= s0.BandCount(); i++ {
		pol := s0.BandMetadata(i)[rs2Pol]
		t := s0.BandDataType(i)
		src := vrt.Source{Ref: s0, Band: i, DataType: t}
		suffix := pol
		if t.IsComplex() {
			bands = append(bands, pixelBand(vrt.PFIntensity, map[string]string{
				vrt.KeyWKV:        wkvSigma0,
				vrt.KeySourceType: t.String(),
				vrt.KeySuffix:     pol,
				"polarization":    pol,
				vrt.KeyDataType:   strconv.Itoa(int(raster.Float32)),
			}, src))
			suffix = pol + "_complex"
		}
		pols = append(pols, pol)
		bands = append(bands, vrt.Band{Sources: []vrt.Source{src}, Meta: map[string]string{
			vrt.KeyWKV:     wkvSigma0,
			vrt.KeySuffix:  suffix,
			"polarization": pol,
		}})
	}

	look, err := lookDirection(n, antenna, pass)
	if err != nil {
		return nil, fmt.Errorf("%s look direction: %w", rs2Stage, err)
	}
	bands = append(bands, pixelBand(vrt.PFUVToDirectionTo, map[string]string{
		vrt.KeyWKV:  "sensor_azimuth_angle",
		vrt.KeyName: "SAR_look_direction",
	}, vrt.Source{Ref: look, Band: 1}, vrt.Source{Ref: look, Band: 2}))

	if b0 != nil && len(pols) > 0 {
		bBand := 0
		for j := 1; j <= b0.BandCount(); j++ {
			if b0.BandMetadata(j)[rs2Pol] == pols[0] {
				bBand = j
			}
		}
		if bBand > 0 {
			beta := vrt.Source{Ref: b0, Band: bBand, DataType: b0.BandDataType(bBand)}
			bands = append(bands, pixelBand(vrt.PFBetaSigmaToIncidence, map[string]string{
				vrt.KeyWKV:       "angle_of_incidence",
				vrt.KeyName:      "incidence_angle",
				vrt.KeyFillValue: strconv.Itoa(vrt.IncidenceFill),
				vrt.KeyDataType:  strconv.Itoa(int(raster.Float32)),
			}, beta, vrt.Source{Ref: s0, Band: 1, DataType: s0.BandDataType(1)}))
			if hh := slices.Index(pols, "HH"); hh >= 0 && !slices.Contains(pols, "VV") {
				beta.DataType = raster.Float32
				bands = append(bands, pixelBand(vrt.PFSigma0HHBetaToSigma0VV, map[string]string{
					vrt.KeyWKV:     wkvSigma0,
					vrt.KeySuffix:  "VV",
					"polarization": "VV",
				}, vrt.Source{Ref: s0, Band: hh + 1, DataType: raster.Float32}, beta))
			}
		}
	}
	if n, err = n.AddBands(bands); err != nil {
		return
	}

	md := map[string]string{
		"ANTENNA_POINTING": "LEFT",
		"ORBIT_DIRECTION":  pass,
		"sensor":           "SAR",
		"satellite":        "Radarsat2",
		"mapper":           NameRadarsat2,
	}
	if antenna > 0 {
		md["ANTENNA_POINTING"] = "RIGHT"
	}
	for key, dst := range map[string]string{"ACQUISITION_START_TIME": KeyTime, "FIRST_LINE_TIME": "start_date", "LAST_LINE_TIME": "stop_date"} {
		s, ok := req.Meta[key]
		if !ok {
			continue
		}
		t, e := ParseTime(s)
		if e != nil {
			return nil, errs.Malformed(rs2Stage, key, e)
		}
		md[dst] = formatTime(t)
	}
	return n.WithMetadata(md), nil
}

// lookDirection builds a two band node of the east and north components of
// the SAR look direction, resized to the size of n. The heading is
// estimated along range and turned by 90 degrees.
func lookDirection(n *vrt.Node, antenna float64, pass string) (*vrt.Node, error) {
	step := min(lookStep, max(1, n.Width()/10))
	lon, lat, err := domain.FromNode(n).GeolocationGrids(step)
	if err != nil {
		return nil, err
	}
	gw, gh := lon.Width, lon.Height
	if gw < 2 {
		return nil, fmt.Errorf("%w: geolocation grid %dx%d too narrow", errs.ErrShapeMismatch, gw, gh)
	}
	u, v := raster.NewArray(gw, gh), raster.NewArray(gw, gh)
	for j := 0; j < gh; j++ {
		for i := 0; i < gw; i++ {
			k := min(i, gw-2)
			a := orb.Point{lon.At(k, j), lat.At(k, j)}
			b := orb.Point{lon.At(k+1, j), lat.At(k+1, j)}
			if pass == "ASCENDING" {
				a, b = b, a
			}
			look := math.Mod(geo.Bearing(a, b)+90+antenna, 360)
			if look < 0 {
				look += 360
			}
			rad := look * math.Pi / 180
			u.Set(i, j, math.Sin(rad))
			v.Set(i, j, math.Cos(rad))
		}
	}
	grid, err := vrt.NewFromArrays(gw, gh, georef.Affine(georef.Identity, n.SRS()), []*raster.Array{u, v}, nil, n.Env())
	if err != nil {
		return nil, err
	}
	return grid.Resized(n.Width(), n.Height(), raster.Bilinear)
}
