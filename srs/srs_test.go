package srs

import (
	"errors"
	"math"
	"testing"

	"github.com/wgdzlh/geovrt/errs"
)

func TestParse(t *testing.T) {
	cases := []struct {
		in   string
		epsg int
		geo  bool
	}{
		{"EPSG:4326", 4326, true},
		{"4326", 4326, true},
		{"epsg:3857", 3857, false},
		{"+proj=longlat +datum=WGS84 +no_defs", 4326, true},
		{PROJ4_WEB_MERCATOR, 3857, false},
		{WKT_WGS84, 4326, true},
	}
	for _, c := range cases {
		ref, err := Parse(c.in)
		if err != nil {
			t.Fatalf("Parse(%q): %v", c.in, err)
		}
		if ref.EPSG() != c.epsg || ref.IsGeographic() != c.geo {
			t.Errorf("Parse(%q) = epsg %d geo %v", c.in, ref.EPSG(), ref.IsGeographic())
		}
	}
	if _, err := Parse(" "); !errors.Is(err, errs.ErrUnsupportedSRS) {
		t.Fatalf("expected ErrUnsupportedSRS, got %v", err)
	}
}

func TestMercatorRoundTrip(t *testing.T) {
	tr, err := NewTransformer(WGS84, WebMercator)
	if err != nil {
		t.Fatal(err)
	}
	inv, err := NewTransformer(WebMercator, WGS84)
	if err != nil {
		t.Fatal(err)
	}
	xs := []float64{113.695688629, 0, -179.5}
	ys := []float64{29.971802123, 0, -60}
	lon := append([]float64(nil), xs...)
	lat := append([]float64(nil), ys...)
	if err = tr.Transform(xs, ys); err != nil {
		t.Fatal(err)
	}
	if math.Abs(xs[1]) > 1e-9 || math.Abs(ys[1]) > 1e-6 {
		t.Fatalf("origin maps to %f,%f", xs[1], ys[1])
	}
	if err = inv.Transform(xs, ys); err != nil {
		t.Fatal(err)
	}
	for i := range xs {
		if math.Abs(xs[i]-lon[i]) > 1e-7 || math.Abs(ys[i]-lat[i]) > 1e-7 {
			t.Errorf("point %d: %f,%f != %f,%f", i, xs[i], ys[i], lon[i], lat[i])
		}
	}
}

func TestUnsupportedTransformer(t *testing.T) {
	stere, _ := Parse("+proj=stere +lat_0=90 +lon_0=-45 +ellps=WGS84")
	if _, err := NewTransformer(WGS84, stere); !errors.Is(err, errs.ErrUnsupportedSRS) {
		t.Fatalf("expected ErrUnsupportedSRS, got %v", err)
	}
	tr, err := NewTransformer(stere, stere)
	if err != nil {
		t.Fatal(err)
	}
	x, y := TransformPoint(tr, 1, 2)
	if x != 1 || y != 2 {
		t.Fatal("identity expected for equal references")
	}
}

type fakeRef struct{ def string }

func (f fakeRef) WKT() string        { return "" }
func (f fakeRef) Proj4() string      { return f.def }
func (f fakeRef) EPSG() int          { return 0 }
func (f fakeRef) IsGeographic() bool { return false }

func TestBackend(t *testing.T) {
	var asked []string
	SetBackend(func(def string) (Reference, error) {
		asked = append(asked, def)
		return fakeRef{def}, nil
	})
	defer SetBackend(nil)

	if ref, _ := Parse("EPSG:4326"); ref != WGS84 {
		t.Fatal("built-in systems must not reach the backend")
	}
	ref, err := Parse(" +proj=stere +lat_0=90 ")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := ref.(fakeRef); !ok {
		t.Fatalf("backend reference expected, got %T", ref)
	}
	if _, err = FromEPSG(32633); err != nil {
		t.Fatal(err)
	}
	if len(asked) != 2 || asked[0] != "+proj=stere +lat_0=90" || asked[1] != "EPSG:32633" {
		t.Fatalf("unexpected backend calls %q", asked)
	}
}
