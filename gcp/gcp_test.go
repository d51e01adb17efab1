package gcp

import (
	"errors"
	"math"
	"testing"

	"github.com/wgdzlh/geovrt/errs"
	"github.com/wgdzlh/geovrt/raster"
)

func grid(n int) Set {
	var s Set
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			s = append(s, Point{Pixel: float64(i * 10), Line: float64(j * 10), X: float64(i), Y: float64(j)})
		}
	}
	return s
}

func TestMetadataRoundTrip(t *testing.T) {
	s := grid(15) // 225 points, three keys per channel
	md := s.Metadata()
	if _, ok := md["GCPX_002"]; !ok {
		t.Fatalf("expected three keys per channel, got %v", len(md))
	}
	got, err := FromMetadata(md)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(s) {
		t.Fatalf("got %d points, want %d", len(got), len(s))
	}
	for i := range s {
		if got[i] != s[i] {
			t.Fatalf("point %d = %+v, want %+v", i, got[i], s[i])
		}
	}
}

func TestFromMetadataMismatch(t *testing.T) {
	md := map[string]string{
		"GCPPixel_000": "1|2|3",
		"GCPLine_000":  "1|2|3",
		"GCPX_000":     "1|2",
		"GCPY_000":     "1|2|3",
	}
	_, err := FromMetadata(md)
	var me *errs.MalformedMetadataError
	if !errors.As(err, &me) || me.Key != "GCPX_000" {
		t.Fatalf("expected malformed GCPX, got %v", err)
	}
	md["GCPX_000"] = "1|x|3"
	if _, err = FromMetadata(md); !errors.As(err, &me) || me.Key != "GCPX_000" {
		t.Fatalf("expected malformed GCPX, got %v", err)
	}
}

func TestFromArrays(t *testing.T) {
	s, err := FromArrays([]float64{1, 2}, []float64{3, 4}, nil, []float64{0, 1}, []float64{0, 1})
	if err != nil || len(s) != 2 || s[1].Y != 4 {
		t.Fatalf("unexpected %v %v", s, err)
	}
	if _, err = FromArrays([]float64{1}, []float64{3, 4}, nil, []float64{0}, []float64{0}); err == nil {
		t.Fatal("expected error on length mismatch")
	}
}

func TestFromGrid(t *testing.T) {
	lon, lat := raster.NewArray(40, 30), raster.NewArray(40, 30)
	for j := 0; j < 30; j++ {
		for i := 0; i < 40; i++ {
			lon.Set(i, j, float64(i))
			lat.Set(i, j, float64(j))
		}
	}
	lon.Set(0, 0, 999)
	s, err := FromGrid(lon, lat, 2, 2, 10, "")
	if err != nil {
		t.Fatal(err)
	}
	// strides 4 and 3: 10 x 10 samples minus the invalid one
	if len(s) != 99 {
		t.Fatalf("got %d points", len(s))
	}
	if s[0].Pixel != 8.5 || s[0].Line != 0.5 {
		t.Fatalf("unexpected first point %+v", s[0])
	}
	v, _ := FromGrid(lon, lat, 1, 1, 10, SensorVIIRSN)
	for _, p := range v {
		if p.Line != 0.5 {
			t.Fatalf("VIIRSN stride must keep only line 0, got %+v", p)
		}
	}
}

func TestSubsampleHull(t *testing.T) {
	s := grid(21)
	for _, k := range []int{1, 2, 3, 4} {
		sub := s.Subsample(k)
		want := (len(s) + k - 1) / k
		if len(sub) != want {
			t.Fatalf("k=%d: %d points, want %d", k, len(sub), want)
		}
		full, part := s.HullArea(), sub.HullArea()
		if math.Abs(full-part)/full > 0.2 {
			t.Errorf("k=%d: hull area %f too far from %f", k, part, full)
		}
	}
	if a := grid(3).HullArea(); a != 4 {
		t.Fatalf("hull area %f, want 4", a)
	}
}

func TestRewrittenInside(t *testing.T) {
	s := Set{{Pixel: 10, Line: 20, X: 1, Y: 2}, {Pixel: 0, Line: 0}}
	r := s.Rewritten(5, 10, 0.5, 2)
	if r[0].Pixel != 10 || r[0].Line != 5 || r[0].X != 1 {
		t.Fatalf("unexpected %+v", r[0])
	}
	if s[0].Pixel != 10 {
		t.Fatal("input mutated")
	}
	if in := s.Inside(20, 30); len(in) != 1 {
		t.Fatalf("expected 1 point inside, got %d", len(in))
	}
}
