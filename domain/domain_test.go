package domain

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/paulmach/orb"

	"github.com/wgdzlh/geovrt/errs"
	"github.com/wgdzlh/geovrt/gcp"
	"github.com/wgdzlh/geovrt/georef"
	"github.com/wgdzlh/geovrt/srs"
	"github.com/wgdzlh/geovrt/vrt"
)

func near(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

func TestFromExtent(t *testing.T) {
	d, err := FromExtent(srs.WGS84, "-te 25 70 35 72 -ts 500 100")
	if err != nil {
		t.Fatal(err)
	}
	if w, h := d.Shape(); w != 500 || h != 100 {
		t.Fatalf("shape %dx%d", w, h)
	}
	gt := d.Georef().Transform
	if gt != (georef.GeoTransform{25, 0.02, 0, 72, 0, -0.02}) {
		t.Fatalf("geotransform %v", gt)
	}

	d, err = FromExtent(srs.WGS84, "-lle 25 70 35 72 -tr 0.5 0.25")
	if err != nil {
		t.Fatal(err)
	}
	if d.Width() != 20 || d.Height() != 8 {
		t.Fatalf("shape %dx%d", d.Width(), d.Height())
	}

	d, err = FromExtent(srs.WebMercator, "-lle -10 -10 10 10 -ts 100 100")
	if err != nil {
		t.Fatal(err)
	}
	if gt := d.Georef().Transform; !near(gt[0], -1113194.9, 1) {
		t.Fatalf("mercator origin %v", gt[0])
	}
}

func TestFromExtentErrors(t *testing.T) {
	bad := []string{
		"",
		"-te 25 70 35 72",
		"-ts 10 10",
		"-te 25 70 35 72 -lle 25 70 35 72 -ts 10 10",
		"-te 25 70 35 72 -ts 10 10 -tr 1 1",
		"-te 25 70 35 -ts 10 10",
		"-te 25 70 35 x -ts 10 10",
		"-te 35 70 25 72 -ts 10 10",
		"-te 25 70 35 72 -tr 0 1",
		"-te 25 70 35 72 -ts 10.5 10",
		"-te 25 70 35 72 -tr 100 100",
		"-foo 1 -ts 1 1",
	}
	for _, s := range bad {
		var ce *errs.ConfigurationError
		if _, err := FromExtent(srs.WGS84, s); !errors.As(err, &ce) {
			t.Errorf("%q: expected configuration error, got %v", s, err)
		}
	}
}

func TestCornersAndTransform(t *testing.T) {
	d, err := FromGeometry(100, 50, georef.GeoTransform{0, 0.1, 0, 60, 0, -0.2}, srs.WGS84)
	if err != nil {
		t.Fatal(err)
	}
	c, err := d.Corners()
	if err != nil {
		t.Fatal(err)
	}
	want := [4]orb.Point{{0, 60}, {0, 50}, {10, 60}, {10, 50}}
	for i := range want {
		if !near(c[i][0], want[i][0], 1e-9) || !near(c[i][1], want[i][1], 1e-9) {
			t.Errorf("corner %d = %v, want %v", i, c[i], want[i])
		}
	}
	px, err := d.Transform([]orb.Point{{5, 55}, {50, 0}}, GeoToPixel)
	if err != nil {
		t.Fatal(err)
	}
	if !near(px[0][0], 50, 1e-9) || !near(px[0][1], 25, 1e-9) {
		t.Errorf("pixel of (5, 55) = %v", px[0])
	}
	if !math.IsNaN(px[1][0]) || !math.IsNaN(px[1][1]) {
		t.Errorf("outside point = %v, want NaN", px[1])
	}
	ll, err := d.Transform([]orb.Point{{-5, 10}}, PixelToGeo)
	if err != nil {
		t.Fatal(err)
	}
	if !math.IsNaN(ll[0][0]) {
		t.Errorf("outside pixel = %v, want NaN", ll[0])
	}
}

func TestPixelSize(t *testing.T) {
	d, err := FromGeometry(90, 10, georef.GeoTransform{-45, 1, 0, 5, 0, -1}, srs.WGS84)
	if err != nil {
		t.Fatal(err)
	}
	dx, dy, err := d.PixelSizeMeters()
	if err != nil {
		t.Fatal(err)
	}
	// one degree of arc on the equator is about 111 km
	if !near(dy, 111319, 200) {
		t.Errorf("dy = %v", dy)
	}
	if !near(dx, 111319, 200) {
		t.Errorf("dx = %v", dx)
	}
}

func TestBorder(t *testing.T) {
	d, err := FromGeometry(10, 10, georef.GeoTransform{20, 1, 0, 40, 0, -1}, srs.WGS84)
	if err != nil {
		t.Fatal(err)
	}
	ring, err := d.Border(3)
	if err != nil {
		t.Fatal(err)
	}
	if len(ring) != 9 || !ring.Closed() {
		t.Fatalf("ring %v", ring)
	}
	b, err := d.Bound()
	if err != nil {
		t.Fatal(err)
	}
	if b.Min != (orb.Point{20, 30}) || b.Max != (orb.Point{30, 40}) {
		t.Errorf("bound %v", b)
	}
	s, err := d.BorderWKT(2)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(s, "POLYGON((20 40,30 40,30 30,20 30,20 40") {
		t.Errorf("wkt %s", s)
	}
}

func TestGeolocationGrids(t *testing.T) {
	d, err := FromGeometry(10, 6, georef.GeoTransform{0, 1, 0, 6, 0, -1}, srs.WGS84)
	if err != nil {
		t.Fatal(err)
	}
	lon, lat, err := d.GeolocationGrids(4)
	if err != nil {
		t.Fatal(err)
	}
	if lon.Width != 3 || lon.Height != 2 {
		t.Fatalf("grid %dx%d", lon.Width, lon.Height)
	}
	if lon.At(2, 1) != 8.5 || lat.At(2, 1) != 1.5 {
		t.Errorf("sample (2,1) = %v, %v", lon.At(2, 1), lat.At(2, 1))
	}
}

func TestFromNodeGCP(t *testing.T) {
	var set gcp.Set
	for j := 0; j <= 4; j++ {
		for i := 0; i <= 4; i++ {
			px, ln := float64(i*5), float64(j*5)
			set = append(set, gcp.Point{Pixel: px, Line: ln, X: 100 + px/10, Y: -ln / 10})
		}
	}
	n, err := vrt.NewEmpty(20, 20, georef.GCPs(set, srs.WGS84), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	d := FromNode(n)
	c, err := d.Corners()
	if err != nil {
		t.Fatal(err)
	}
	if !near(c[3][0], 102, 1e-6) || !near(c[3][1], -2, 1e-6) {
		t.Errorf("lower right = %v", c[3])
	}
	if _, err = FromGeometry(0, 1, georef.Identity, nil); err == nil {
		t.Error("expected error for empty geometry")
	}
}
