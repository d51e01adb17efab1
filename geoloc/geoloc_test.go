package geoloc

import (
	"errors"
	"math"
	"testing"

	"github.com/wgdzlh/geovrt/errs"
	"github.com/wgdzlh/geovrt/raster"
)

func opener(grids map[string]*raster.Array) Opener {
	return func(name string) (raster.Reader, error) {
		a, ok := grids[name]
		if !ok {
			return nil, errs.ErrCannotOpen
		}
		return &raster.MemReader{ID: name, Bands: []*raster.Array{a}}, nil
	}
}

func TestFromMetadata(t *testing.T) {
	lon, lat := raster.Filled(4, 3, 10), raster.Filled(4, 3, 50)
	md := map[string]string{
		KeyXDataset:   "lon.tif",
		KeyYDataset:   "lat.tif",
		KeySRS:        "EPSG:4326",
		KeyPixelStep:  "2",
		KeyLineStep:   "3",
		KeyLineOffset: "0",
	}
	g, err := FromMetadata(md, opener(map[string]*raster.Array{"lon.tif": lon, "lat.tif": lat}))
	if err != nil {
		t.Fatal(err)
	}
	if g.XBand != 1 || g.PixelStep != 2 || g.LineStep != 3 {
		t.Fatalf("unexpected grid %+v", g)
	}
	x, y, err := g.Resolve()
	if err != nil {
		t.Fatal(err)
	}
	if x.At(3, 2) != 10 || y.At(0, 0) != 50 {
		t.Fatal("wrong grids resolved")
	}
	back, err := FromMetadata(g.Metadata(), nil)
	if err != nil || back.PixelStep != 2 || back.XName != "lon.tif" {
		t.Fatalf("metadata round trip failed: %+v %v", back, err)
	}
}

func TestFromMetadataMalformed(t *testing.T) {
	cases := map[string]map[string]string{
		KeyPixelStep: {KeyXDataset: "x", KeyYDataset: "y", KeyPixelStep: "0.5"},
		KeyLineStep:  {KeyXDataset: "x", KeyYDataset: "y", KeyLineStep: "abc"},
		KeyXBand:     {KeyXDataset: "x", KeyYDataset: "y", KeyXBand: "one"},
		KeyYDataset:  {KeyXDataset: "x"},
	}
	for key, md := range cases {
		_, err := FromMetadata(md, nil)
		var me *errs.MalformedMetadataError
		if !errors.As(err, &me) || me.Key != key {
			t.Errorf("%s: expected malformed error, got %v", key, err)
		}
	}
	if g, err := FromMetadata(map[string]string{}, nil); g != nil || err != nil {
		t.Fatal("empty block must yield no grid")
	}
}

func TestResolveShapeMismatch(t *testing.T) {
	g := &Grid{
		X:     &raster.MemReader{ID: "x", Bands: []*raster.Array{raster.NewArray(2, 2)}},
		Y:     &raster.MemReader{ID: "y", Bands: []*raster.Array{raster.NewArray(3, 2)}},
		XBand: 1, YBand: 1, PixelStep: 1, LineStep: 1,
	}
	if _, _, err := g.Resolve(); !errors.Is(err, errs.ErrShapeMismatch) {
		t.Fatalf("expected shape mismatch, got %v", err)
	}
}

func TestGeometryUpdates(t *testing.T) {
	g := &Grid{PixelStep: 4, LineStep: 4}
	px, ln := g.ImageCoord(2, 3)
	if px != 8.5 || ln != 12.5 {
		t.Fatalf("image coord %f %f", px, ln)
	}
	c := g.Cropped(4, 8)
	if px2, ln2 := c.ImageCoord(2, 3); px2 != px-4 || ln2 != ln-8 {
		t.Fatal("crop did not shift coordinates")
	}
	s := g.Scaled(2, 2)
	if px2, ln2 := s.ImageCoord(2, 3); px2 != px/2 || ln2 != ln/2 {
		t.Fatalf("scale gave %f %f", px2, ln2)
	}
	i, j := s.GridCoord(s.ImageCoord(1.5, 2.5))
	if i != 1.5 || j != 2.5 {
		t.Fatal("grid coord is not the inverse of image coord")
	}
	if g.Shifted(-180).LonShift != -180 || g.LonShift != 0 {
		t.Fatal("shift must not modify the receiver")
	}
}

func TestScaledBelowOneStep(t *testing.T) {
	lon, lat := raster.NewArray(8, 6), raster.NewArray(8, 6)
	for j := 0; j < 6; j++ {
		for i := 0; i < 8; i++ {
			lon.Set(i, j, 100+float64(i))
			lat.Set(i, j, 20-float64(j))
		}
	}
	g, err := New(lon, lat, "", 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	s := g.Scaled(2.5, 2.5)
	if s.PixelStep < 1 || s.LineStep < 1 {
		t.Fatalf("steps %v %v", s.PixelStep, s.LineStep)
	}
	if math.Abs(s.PixelStep-1.2) > 1e-9 || math.Abs(s.LineStep-1.2) > 1e-9 {
		t.Fatalf("steps %v %v, want 1.2", s.PixelStep, s.LineStep)
	}
	slon, slat, err := s.Resolve()
	if err != nil {
		t.Fatal(err)
	}
	if slon.Width != 3 || slon.Height != 2 {
		t.Fatalf("thinned grid %dx%d", slon.Width, slon.Height)
	}
	if slon.At(1, 1) != 103 || slat.At(1, 1) != 17 {
		t.Fatalf("sample (1, 1) = %v, %v", slon.At(1, 1), slat.At(1, 1))
	}
	// grid sample 3 of the original sits at the same image position
	px, ln := s.ImageCoord(1, 1)
	opx, oln := g.ImageCoord(3, 3)
	if math.Abs(px-opx/2.5) > 1e-9 || math.Abs(ln-oln/2.5) > 1e-9 {
		t.Fatalf("image coord %v,%v, want %v,%v", px, ln, opx/2.5, oln/2.5)
	}
	if g.PixelStep != 1 || g.X.Width() != 8 {
		t.Fatal("scale must not modify the receiver")
	}
}

func TestEstimateStep(t *testing.T) {
	if ps, ls := EstimateStep(1000, 500, 100, 60); ps != 10 || ls != 9 {
		t.Fatalf("got %d %d", ps, ls)
	}
	if ps, ls := EstimateStep(10, 10, 100, 100); ps != 1 || ls != 1 {
		t.Fatalf("got %d %d", ps, ls)
	}
}
