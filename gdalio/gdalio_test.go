package gdalio

import (
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/wgdzlh/geovrt/errs"
	"github.com/wgdzlh/geovrt/gcp"
	"github.com/wgdzlh/geovrt/georef"
	"github.com/wgdzlh/geovrt/mapper"
	"github.com/wgdzlh/geovrt/raster"
	"github.com/wgdzlh/geovrt/srs"
	"github.com/wgdzlh/geovrt/vrt"
)

func ramp(w, h int, f func(x, y int) float64) *raster.Array {
	a := raster.NewArray(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			a.Set(x, y, f(x, y))
		}
	}
	return a
}

func TestGdalPath(t *testing.T) {
	cases := map[string]string{
		"s3://bucket/a.tif":          "/vsis3/bucket/a.tif",
		"https://host/a.tif":         "/vsicurl/https://host/a.tif",
		"/vsicurl/https://host/a.ti": "/vsicurl/https://host/a.ti",
		"/data/a.tif":                "/data/a.tif",
	}
	for in, want := range cases {
		if got := gdalPath(in); got != want {
			t.Errorf("%s: got %s, want %s", in, got, want)
		}
	}
}

func TestSubDatasets(t *testing.T) {
	subs := subDatasets(map[string]string{
		"SUBDATASET_10_NAME": `NETCDF:"f.nc":sst`,
		"SUBDATASET_10_DESC": "[10x10] sst (32-bit floating-point)",
		"SUBDATASET_2_NAME":  `NETCDF:"f.nc":chlor_a`,
		"SUBDATASET_2_DESC":  "[10x10] chlor_a (32-bit floating-point)",
		"SUBDATASET_3_DESC":  "orphan description",
		"SUBDATASET_X_NAME":  "bad index",
	})
	if len(subs) != 2 {
		t.Fatalf("want 2 subdatasets, got %+v", subs)
	}
	if subs[0].Name != `NETCDF:"f.nc":chlor_a` || subs[1].Desc != "[10x10] sst (32-bit floating-point)" {
		t.Fatalf("unexpected order %+v", subs)
	}
}

func TestSpatialRef(t *testing.T) {
	a, err := FromEPSG(32633)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := FromEPSG(32633)
	if a != b {
		t.Fatal("EPSG references must be shared")
	}
	if a.IsGeographic() || a.EPSG() != 32633 {
		t.Fatalf("unexpected reference %s", a)
	}
	tr, err := srs.NewTransformer(srs.WGS84, a)
	if err != nil {
		t.Fatal(err)
	}
	x, y := srs.TransformPoint(tr, 15, 0)
	if math.Abs(x-500000) > 1e-3 || math.Abs(y) > 1e-3 {
		t.Fatalf("got %f,%f, want 500000,0", x, y)
	}

	ref, err := ParseSRS("+proj=longlat +ellps=WGS84 +no_defs")
	if err != nil {
		t.Fatal(err)
	}
	if !ref.IsGeographic() {
		t.Fatal("geographic reference expected")
	}
	if _, err = ParseSRS("not a reference"); !errors.Is(err, ErrInvalidSRS) {
		t.Fatalf("want ErrInvalidSRS, got %v", err)
	}
}

func TestRegisterSRS(t *testing.T) {
	RegisterSRS()
	defer srs.SetBackend(nil)
	ref, err := srs.Parse("EPSG:32633")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := ref.(*SpatialRef); !ok {
		t.Fatalf("GDAL reference expected, got %T", ref)
	}
	if ref, _ = srs.Parse("EPSG:4326"); ref != srs.WGS84 {
		t.Fatal("WGS84 must stay built in")
	}
}

func TestOpenMissing(t *testing.T) {
	if _, err := (Opener{}).Open(filepath.Join(t.TempDir(), "missing.tif")); !errors.Is(err, errs.ErrCannotOpen) {
		t.Fatalf("want ErrCannotOpen, got %v", err)
	}
}

func TestExportAffine(t *testing.T) {
	gt := georef.GeoTransform{10, 0.5, 0, 60, 0, -0.25}
	n, err := vrt.NewFromArrays(8, 6, georef.Affine(gt, srs.WGS84), []*raster.Array{
		ramp(8, 6, func(x, y int) float64 { return float64(x + 10*y) }),
		ramp(8, 6, func(x, y int) float64 { return -1 }),
	}, []map[string]string{{vrt.KeyName: "ramp", "units": "m"}, {vrt.KeyWKV: "flag"}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	n = n.WithMetadata(map[string]string{"title": "export test"})
	path := filepath.Join(t.TempDir(), "out.tif")
	if err = Export(n, path, ExportOptions{Options: []string{"COMPRESS=LZW"}}); err != nil {
		t.Fatal(err)
	}

	d, err := Open(path, "")
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()
	if d.Width() != 8 || d.Height() != 6 || d.BandCount() != 2 {
		t.Fatalf("unexpected shape %dx%dx%d", d.Width(), d.Height(), d.BandCount())
	}
	if got, ok := d.GeoTransform(); !ok || got != gt {
		t.Fatalf("geotransform %v, want %v", got, gt)
	}
	if d.Projection() != srs.WGS84 {
		t.Fatalf("WGS84 projection expected, got %v", d.Projection())
	}
	md := d.Metadata("")
	if md["title"] != "export test" || md[georef.KeyGeoTransform] == "" {
		t.Fatalf("global metadata lost: %v", md)
	}
	if bm := d.BandMetadata(1); bm[vrt.KeyName] != "ramp" || bm["units"] != "m" {
		t.Fatalf("band metadata lost: %v", bm)
	}
	if d.BandDataType(1) != raster.Float64 {
		t.Fatalf("Float64 expected, got %s", d.BandDataType(1))
	}
	a, err := d.Read(1, raster.Window{X: 2, Y: 1, W: 4, H: 2}, 4, 2, raster.Nearest)
	if err != nil {
		t.Fatal(err)
	}
	if a.At(0, 0) != 12 || a.At(3, 1) != 25 {
		t.Fatalf("unexpected window values %v", a.Re)
	}
	if _, err = d.Read(3, raster.Full(8, 6), 8, 6, raster.Nearest); !errors.Is(err, errs.ErrBandNotFound) {
		t.Fatalf("want ErrBandNotFound, got %v", err)
	}
}

func TestExportReopenGCPs(t *testing.T) {
	set := gcp.Set{
		{Pixel: 0, Line: 0, X: 10, Y: 50},
		{Pixel: 20, Line: 0, X: 12, Y: 50},
		{Pixel: 0, Line: 10, X: 10, Y: 49},
		{Pixel: 20, Line: 10, X: 12, Y: 49},
	}
	z := ramp(20, 10, func(x, y int) float64 { return float64(x) })
	n, err := vrt.NewFromArrays(20, 10, georef.GCPs(set, srs.WGS84), []*raster.Array{z},
		[]map[string]string{{vrt.KeyName: "x"}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	n, err = n.AddBands([]vrt.Band{{
		Sources: []vrt.Source{{Ref: n, Band: 1}, {Ref: n, Band: 1}},
		Meta:    map[string]string{vrt.KeyName: "speed", vrt.KeyPixelFunction: vrt.PFUVToMagnitude},
	}})
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "gcps.tif")
	if err = Export(n, path, ExportOptions{}); err != nil {
		t.Fatal(err)
	}

	reg := mapper.Default(nil)
	back, used, err := reg.Open(path, Opener{}, "", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if used != mapper.NameGeneric {
		t.Fatalf("generic mapper expected, got %s", used)
	}
	geo := back.Georef()
	if geo.Active != georef.KindGCP || len(geo.GCPs) != len(set) {
		t.Fatalf("GCPs not restored: %v with %d points", geo.Active, len(geo.GCPs))
	}
	for i, p := range geo.GCPs {
		if p != set[i] {
			t.Fatalf("gcp %d: %+v, want %+v", i, p, set[i])
		}
	}
	a, err := back.ReadBand(1)
	if err != nil {
		t.Fatal(err)
	}
	if a.At(7, 3) != 7 {
		t.Fatalf("pixel lost, got %f", a.At(7, 3))
	}

	d, err := Open(path, "")
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()
	if pf := d.BandMetadata(2)[vrt.KeyPixelFunction]; pf != vrt.PFUVToMagnitude {
		t.Fatalf("written pixel function type %q", pf)
	}
	if b, _ := back.Band(2); b.PixelFunction() != "" || b.Name() != "speed" {
		t.Fatalf("reopened derived band %v", b.Meta)
	}
	if a, err = back.ReadBand(2); err != nil {
		t.Fatal(err)
	}
	if math.Abs(a.At(7, 3)-7*math.Sqrt2) > 1e-9 {
		t.Fatalf("derived pixel = %v", a.At(7, 3))
	}
}
