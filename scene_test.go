package geovrt

import (
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/paulmach/orb"

	"github.com/wgdzlh/geovrt/config"
	"github.com/wgdzlh/geovrt/domain"
	"github.com/wgdzlh/geovrt/errs"
	"github.com/wgdzlh/geovrt/georef"
	"github.com/wgdzlh/geovrt/mapper"
	"github.com/wgdzlh/geovrt/raster"
	"github.com/wgdzlh/geovrt/scratch"
	"github.com/wgdzlh/geovrt/srs"
	"github.com/wgdzlh/geovrt/vrt"
)

func testOptions(t *testing.T, handles map[string]vrt.Handle) Options {
	t.Helper()
	opener := vrt.MemOpener(handles)
	env, err := vrt.NewEnv(scratch.NewMemory(), 0, nil, opener)
	if err != nil {
		t.Fatal(err)
	}
	return Options{Env: env, Opener: opener}
}

// 20x10 pixels of one degree, lon 0..20, lat 0..10
func testDomain(t *testing.T) *domain.Domain {
	t.Helper()
	d, err := domain.FromGeometry(20, 10, georef.GeoTransform{0, 1, 0, 10, 0, -1}, srs.WGS84)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

// band 1 holds x + 100*y
func gridScene(t *testing.T) *Scene {
	t.Helper()
	dom := testDomain(t)
	a := raster.NewArray(dom.Width(), dom.Height())
	for y := 0; y < a.Height; y++ {
		for x := 0; x < a.Width; x++ {
			a.Set(x, y, float64(x+100*y))
		}
	}
	s, err := NewFromArray(dom, a, map[string]string{vrt.KeyName: "grid"}, testOptions(t, nil))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func getAt(t *testing.T, s *Scene, sel Selector, x, y int) float64 {
	t.Helper()
	a, err := s.Get(sel)
	if err != nil {
		t.Fatal(err)
	}
	return a.At(x, y)
}

func TestOpenGeneric(t *testing.T) {
	gt := georef.GeoTransform{100, 0.5, 0, 30, 0, -0.5}
	h := vrt.NewMemHandle("wind.tif", raster.Filled(4, 3, 3), raster.Filled(4, 3, 4))
	h.GT = &gt
	h.Meta = map[string]map[string]string{vrt.DomainDefault: {"start_date": "2020-01-02 03:04:05"}}
	h.BandMeta = []map[string]string{{vrt.KeyName: "u"}, {vrt.KeyName: "v"}}

	s, err := Open("wind.tif", testOptions(t, map[string]vrt.Handle{"wind.tif": h}))
	if err != nil {
		t.Fatal(err)
	}
	if s.MapperName() != mapper.NameGeneric {
		t.Errorf("mapper = %q", s.MapperName())
	}
	if w, hh := s.Shape(); w != 4 || hh != 3 {
		t.Errorf("shape = %dx%d", w, hh)
	}
	if s.Name() != "wind" {
		t.Errorf("name = %q", s.Name())
	}
	if s.HistoryLen() != 0 {
		t.Errorf("history = %d after open", s.HistoryLen())
	}
	if no, err := s.BandNumber(ByName("v")); err != nil || no != 2 {
		t.Errorf("v = %d, %v", no, err)
	}
	if v := getAt(t, s, ByName("v"), 3, 2); v != 4 {
		t.Errorf("v = %v", v)
	}
	tm, err := s.Time(ByIndex(1))
	if err != nil {
		t.Fatal(err)
	}
	if want := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC); !tm.Equal(want) {
		t.Errorf("time = %v, want %v", tm, want)
	}
	c, err := s.Corners()
	if err != nil {
		t.Fatal(err)
	}
	if c[0] != (orb.Point{100, 30}) || c[3] != (orb.Point{102, 28.5}) {
		t.Errorf("corners = %v", c)
	}
	if str := s.String(); !strings.Contains(str, "Mapper: generic") || !strings.Contains(str, "Band : 2 v") {
		t.Errorf("String() = %s", str)
	}
}

func TestOpenErrors(t *testing.T) {
	h := vrt.NewMemHandle("a.tif", raster.Filled(2, 2, 1))
	opts := testOptions(t, map[string]vrt.Handle{"a.tif": h})

	opts.Mapper = "nope"
	if _, err := Open("a.tif", opts); !errors.Is(err, errs.ErrMapperNotFound) {
		t.Errorf("unknown mapper: %v", err)
	}
	opts.Mapper = mapper.NameNCEPWind
	if _, err := Open("a.tif", opts); !errors.Is(err, ErrNoMapperMatched) {
		t.Errorf("declining mapper: %v", err)
	}
	opts.Mapper = ""
	if _, err := Open("missing.tif", opts); !errors.Is(err, ErrCannotOpen) {
		t.Errorf("missing source: %v", err)
	}
	// no metadata: every handler declines and the bands are copied
	s, err := Open("a.tif", opts)
	if err != nil {
		t.Fatal(err)
	}
	if s.MapperName() != mapper.NameTrivial {
		t.Errorf("mapper = %q", s.MapperName())
	}
}

func TestOptionsResolve(t *testing.T) {
	cfg := config.Default()
	cfg.GCPCount = 7
	cfg.Mappers = []string{mapper.NameRadarsat2}
	o, err := Options{Config: cfg, Opener: vrt.MemOpener{}}.resolve()
	if err != nil {
		t.Fatal(err)
	}
	if names := o.Registry.Names(); names[0] != mapper.NameRadarsat2 || names[len(names)-1] != mapper.NameGeneric {
		t.Errorf("names = %v", names)
	}
	if o.MapperOptions[mapper.OptGCPCount] != "7" {
		t.Errorf("gcp count = %q", o.MapperOptions[mapper.OptGCPCount])
	}
	if o.Env == nil || o.Env.Store.Driver() != scratch.DriverMemory {
		t.Errorf("env not built from config")
	}

	o, err = Options{Config: cfg, MapperOptions: map[string]string{mapper.OptGCPCount: "3"}}.resolve()
	if err != nil {
		t.Fatal(err)
	}
	if o.MapperOptions[mapper.OptGCPCount] != "3" {
		t.Errorf("explicit gcp count overridden: %q", o.MapperOptions[mapper.OptGCPCount])
	}

	cfg.Mappers = []string{"nope"}
	if _, err = (Options{Config: cfg}).resolve(); !errors.Is(err, errs.ErrMapperNotFound) {
		t.Errorf("bad mapper order: %v", err)
	}
}

func TestCropUndo(t *testing.T) {
	s := gridScene(t)
	status, ext, err := s.Crop(5, 2, 10, 4)
	if err != nil || status != CropOK {
		t.Fatalf("crop = %v, %v", status, err)
	}
	if ext != (Extent{X: 5, Y: 2, W: 10, H: 4}) {
		t.Errorf("extent = %+v", ext)
	}
	if w, h := s.Shape(); w != 10 || h != 4 {
		t.Errorf("shape = %dx%d", w, h)
	}
	if v := getAt(t, s, ByName("grid"), 0, 0); v != 205 {
		t.Errorf("origin value = %v", v)
	}
	c, err := s.Corners()
	if err != nil {
		t.Fatal(err)
	}
	if c[0] != (orb.Point{5, 8}) {
		t.Errorf("upper left = %v", c[0])
	}

	if err = s.Undo(1); err != nil {
		t.Fatal(err)
	}
	if w, h := s.Shape(); w != 20 || h != 10 {
		t.Errorf("shape after undo = %dx%d", w, h)
	}
	if err = s.Undo(1); !errors.Is(err, ErrHistoryUnderflow) {
		t.Errorf("undo past root: %v", err)
	}
}

func TestCropEdges(t *testing.T) {
	s := gridScene(t)
	status, _, err := s.Crop(30, 0, 5, 5)
	if status != CropOutside || !errors.Is(err, ErrOutOfRangeGeometry) {
		t.Errorf("outside = %v, %v", status, err)
	}
	status, _, err = s.Crop(0, 0, 20, 10)
	if status != CropNotNeeded || err != nil {
		t.Errorf("full = %v, %v", status, err)
	}
	if s.HistoryLen() != 0 || s.Width() != 20 {
		t.Errorf("refused crops changed the scene")
	}

	status, ext, err := s.Crop(-5, -5, 10, 10)
	if err != nil || status != CropOK || ext != (Extent{W: 5, H: 5}) {
		t.Errorf("clamped = %v, %+v, %v", status, ext, err)
	}
	status, ext, err = s.Crop(1, 1, 0, 0)
	if err != nil || ext != (Extent{X: 1, Y: 1, W: 4, H: 4}) {
		t.Errorf("to edge = %v, %+v, %v", status, ext, err)
	}
	if s.HistoryLen() != 2 {
		t.Errorf("history = %d", s.HistoryLen())
	}
	s.DropHistory()
	if err = s.Undo(1); !errors.Is(err, ErrHistoryUnderflow) {
		t.Errorf("undo after drop: %v", err)
	}
	if v := getAt(t, s, ByIndex(1), 0, 0); v != 101 {
		t.Errorf("value after drop = %v", v)
	}
}

func TestCropLonLat(t *testing.T) {
	s := gridScene(t)
	status, ext, err := s.CropLonLat([2]float64{2, 6}, [2]float64{3, 7})
	if err != nil || status != CropOK {
		t.Fatalf("crop = %v, %v", status, err)
	}
	if ext != (Extent{X: 2, Y: 3, W: 4, H: 4}) {
		t.Errorf("extent = %+v", ext)
	}
	if v := getAt(t, s, ByIndex(1), 0, 0); v != 302 {
		t.Errorf("value = %v", v)
	}
	if status, _, err = s.CropLonLat([2]float64{50, 60}, [2]float64{50, 60}); status != CropOutside || err == nil {
		t.Errorf("far away = %v, %v", status, err)
	}
}

func TestResize(t *testing.T) {
	s := gridScene(t)
	f, err := s.Resize(ResizeOptions{Width: 10})
	if err != nil {
		t.Fatal(err)
	}
	if f != 0.5 {
		t.Errorf("factor = %v", f)
	}
	if w, h := s.Shape(); w != 10 || h != 5 {
		t.Errorf("shape = %dx%d", w, h)
	}
	if err = s.Undo(1); err != nil {
		t.Fatal(err)
	}
	if _, err = s.Resize(ResizeOptions{Factor: 2, Resample: "nearest"}); err != nil {
		t.Fatal(err)
	}
	if w, h := s.Shape(); w != 40 || h != 20 {
		t.Errorf("shape = %dx%d", w, h)
	}
	if v := getAt(t, s, ByIndex(1), 3, 3); v != 101 {
		t.Errorf("nearest value = %v", v)
	}
	if _, err = s.Resize(ResizeOptions{Height: 10}); err != nil {
		t.Fatal(err)
	}
	if w, h := s.Shape(); w != 20 || h != 10 {
		t.Errorf("shape = %dx%d", w, h)
	}

	for _, o := range []ResizeOptions{{Factor: -1}, {Factor: 0.5, Resample: "bogus"}, {Factor: 0.001}} {
		if _, err = s.Resize(o); !errors.Is(err, ErrBadResize) {
			t.Errorf("%+v: %v", o, err)
		}
	}
}

func TestBandSelection(t *testing.T) {
	s := gridScene(t)
	w, h := s.Shape()
	if err := s.AddBand(raster.Filled(w, h, 280), map[string]string{
		vrt.KeyName: "sst", vrt.KeyWKV: "sea_surface_temperature", "units": "K"}); err != nil {
		t.Fatal(err)
	}
	if err := s.AddBand(raster.Filled(w, h, 7), map[string]string{
		vrt.KeyWKV: "sea_surface_temperature", "units": "C"}); err != nil {
		t.Fatal(err)
	}
	if err := s.AddBand(raster.Filled(w+1, h, 0), nil); !errors.Is(err, errs.ErrShapeMismatch) {
		t.Errorf("wrong shape: %v", err)
	}

	tests := []struct {
		sel  Selector
		want int
	}{
		{ByIndex(1), 1},
		{ByName("sst"), 2},
		{ByName("sea_surface_temperature"), 3},
		{ByPredicate(map[string]string{vrt.KeyWKV: "sea_surface_temperature"}), 2},
		{ByPredicate(map[string]string{vrt.KeyWKV: "sea_surface_temperature", "units": "C"}), 3},
	}
	for _, tt := range tests {
		if got, err := s.BandNumber(tt.sel); err != nil || got != tt.want {
			t.Errorf("%s = %d, %v; want %d", tt.sel, got, err, tt.want)
		}
	}
	for _, sel := range []Selector{ByIndex(0), ByIndex(4), ByName("chl"), ByPredicate(nil)} {
		if _, err := s.BandNumber(sel); !errors.Is(err, ErrBandNotFound) {
			t.Errorf("%s: %v", sel, err)
		}
	}
	if !s.HasBand("sst") || s.HasBand("chl") {
		t.Errorf("HasBand wrong: %v", s.node.BandNames())
	}
	if md := s.Bands()[2]; md["units"] != "K" {
		t.Errorf("band 2 metadata = %v", md)
	}
	if v := getAt(t, s, ByName("sst"), 1, 1); v != 280 {
		t.Errorf("sst = %v", v)
	}

	if err := s.DeleteBands(ByName("sst")); err != nil {
		t.Fatal(err)
	}
	if s.Node().BandCount() != 2 || s.HasBand("sst") {
		t.Errorf("bands after delete = %v", s.node.BandNames())
	}
	if err := s.Undo(1); err != nil {
		t.Fatal(err)
	}
	if !s.HasBand("sst") {
		t.Errorf("undo did not restore sst")
	}
	if !strings.Contains(s.ListBands(), "Band : 2 sst\n  name: sst\n  units: K\n") {
		t.Errorf("ListBands() = %s", s.ListBands())
	}
}

func TestGetExpression(t *testing.T) {
	dom, err := domain.FromGeometry(4, 1, georef.GeoTransform{0, 1, 0, 1, 0, -1}, srs.WGS84)
	if err != nil {
		t.Fatal(err)
	}
	a, _ := raster.FromValues(4, 1, []float64{1, 4, math.Inf(1), -2})
	s, err := NewFromArray(dom, a, map[string]string{
		vrt.KeyExpression: "bandData * 2 + 1",
		vrt.KeyFillValue:  "9",
	}, testOptions(t, nil))
	if err != nil {
		t.Fatal(err)
	}
	got, err := s.Get(ByIndex(1))
	if err != nil {
		t.Fatal(err)
	}
	if got.Re[0] != 3 || !math.IsNaN(got.Re[1]) || !math.IsNaN(got.Re[2]) || got.Re[3] != -3 {
		t.Errorf("values = %v", got.Re)
	}

	if err = s.SetBandMetadata(ByIndex(1), map[string]string{vrt.KeyExpression: "x + 1"}); err != nil {
		t.Fatal(err)
	}
	if _, err = s.Get(ByIndex(1)); !errors.Is(err, ErrBadExpression) {
		t.Errorf("foreign variable: %v", err)
	}
	if err = s.SetBandMetadata(ByIndex(1), map[string]string{vrt.KeyExpression: "bandData > 0"}); err != nil {
		t.Fatal(err)
	}
	if got, err = s.Get(ByIndex(1)); err != nil || got.Re[0] != 1 || got.Re[3] != 0 {
		t.Errorf("comparison = %v, %v", got, err)
	}
}

func TestMetadataAndTime(t *testing.T) {
	s := gridScene(t)
	if _, err := s.Time(ByIndex(1)); err == nil {
		t.Errorf("time without metadata")
	}
	s.SetMetadata(map[string]string{mapper.KeyTime: "2021-06-01T12:00:00Z", "sensor": "SAR"})
	if v, ok := s.MetadataItem("sensor"); !ok || v != "SAR" {
		t.Errorf("sensor = %q, %v", v, ok)
	}
	tm, err := s.Time(ByIndex(1))
	if err != nil || !tm.Equal(time.Date(2021, 6, 1, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("global time = %v, %v", tm, err)
	}
	if err = s.SetBandMetadata(ByName("grid"), map[string]string{mapper.KeyTime: "2021-06-02T00:00:00Z"}); err != nil {
		t.Fatal(err)
	}
	if times := s.Times(); len(times) != 1 || times[0].Day() != 2 {
		t.Errorf("times = %v", times)
	}
	s.SetMetadata(map[string]string{"sensor": ""})
	if _, ok := s.Metadata()["sensor"]; ok {
		t.Errorf("empty value did not delete")
	}
	if err = s.SetBandMetadata(ByIndex(1), map[string]string{mapper.KeyTime: "soon"}); err != nil {
		t.Fatal(err)
	}
	var me *errs.MalformedMetadataError
	if _, err = s.Time(ByIndex(1)); !errors.As(err, &me) || me.Key != mapper.KeyTime {
		t.Errorf("bad time: %v", err)
	}
	if s.HistoryLen() != 0 {
		t.Errorf("metadata edits entered the history")
	}
}

func TestReprojectSameGrid(t *testing.T) {
	s := gridScene(t)
	if err := s.Reproject(testDomain(t), ReprojectOptions{Resample: raster.Nearest}); err != nil {
		t.Fatal(err)
	}
	for _, p := range [][2]int{{0, 0}, {7, 3}, {19, 9}} {
		if v := getAt(t, s, ByIndex(1), p[0], p[1]); v != float64(p[0]+100*p[1]) {
			t.Errorf("(%d, %d) = %v", p[0], p[1], v)
		}
	}
	if err := s.Reproject(nil, ReprojectOptions{}); !errors.Is(err, ErrNoDomain) {
		t.Errorf("nil domain: %v", err)
	}
	if err := s.Undo(1); err != nil {
		t.Fatal(err)
	}
}

func TestReprojectShiftsGlobalRaster(t *testing.T) {
	dom, err := domain.FromGeometry(36, 18, georef.GeoTransform{0, 10, 0, 90, 0, -10}, srs.WGS84)
	if err != nil {
		t.Fatal(err)
	}
	a := raster.NewArray(36, 18)
	for y := 0; y < 18; y++ {
		for x := 0; x < 36; x++ {
			a.Set(x, y, float64(x))
		}
	}
	s, err := NewFromArray(dom, a, nil, testOptions(t, nil))
	if err != nil {
		t.Fatal(err)
	}
	dst, err := domain.FromExtent(srs.WGS84, "-te -180 -90 180 90 -ts 36 18")
	if err != nil {
		t.Fatal(err)
	}
	if err = s.Reproject(dst, ReprojectOptions{Resample: raster.Nearest}); err != nil {
		t.Fatal(err)
	}
	// lon -175 is lon 185 of the source, column 18
	if v := getAt(t, s, ByIndex(1), 0, 5); v != 18 {
		t.Errorf("west edge = %v", v)
	}
	if v := getAt(t, s, ByIndex(1), 35, 5); v != 17 {
		t.Errorf("east edge = %v", v)
	}
	if s.HistoryLen() != 1 {
		t.Errorf("history = %d", s.HistoryLen())
	}
}

func TestTransect(t *testing.T) {
	s := gridScene(t)
	w, h := s.Shape()
	if err := s.AddBand(raster.Filled(w, h, 5), map[string]string{vrt.KeyName: "five"}); err != nil {
		t.Fatal(err)
	}
	lines, err := s.Transect([][]orb.Point{
		{{0, 0}, {4, 0}},
		{{3, 2}},
		{{-3, 0}, {1, 0}},
	}, []Selector{ByIndex(1), ByName("five")}, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 3 {
		t.Fatalf("lines = %d", len(lines))
	}
	first := lines[0]
	wantPix := []orb.Point{{0, 0}, {1, 0}, {2, 0}, {4, 0}}
	if len(first.Pixels) != len(wantPix) {
		t.Fatalf("pixels = %v", first.Pixels)
	}
	for i, p := range wantPix {
		if first.Pixels[i] != p {
			t.Errorf("pixel %d = %v, want %v", i, first.Pixels[i], p)
		}
		if first.Values[0][i] != p[0] || first.Values[1][i] != 5 {
			t.Errorf("values at %v = %v, %v", p, first.Values[0][i], first.Values[1][i])
		}
	}
	if first.LonLat[0] != (orb.Point{0, 10}) {
		t.Errorf("lonlat = %v", first.LonLat[0])
	}
	if v := lines[1].Values[0]; len(v) != 1 || v[0] != 203 {
		t.Errorf("single point = %v", v)
	}
	// (-3,0) (-1,0) fall off the raster
	if p := lines[2].Pixels; len(p) != 2 {
		t.Errorf("clipped pixels = %v", p)
	}

	lines, err = s.Transect([][]orb.Point{{{2.5, 7.5}}}, nil, true)
	if err != nil {
		t.Fatal(err)
	}
	if v := lines[0].Values[0]; len(v) != 1 || v[0] != 202 {
		t.Errorf("lon/lat point = %v", v)
	}

	if _, err = s.Transect(nil, nil, false); !errors.Is(err, ErrEmptyTransect) {
		t.Errorf("no segments: %v", err)
	}
	if _, err = s.Transect([][]orb.Point{{{1, 1}}}, []Selector{ByName("chl")}, false); !errors.Is(err, ErrBandNotFound) {
		t.Errorf("unknown band: %v", err)
	}
}

func TestNewStore(t *testing.T) {
	ctx := t.Context()
	tests := []struct {
		cfg  config.Scratch
		want scratch.Driver
	}{
		{config.Scratch{}, scratch.DriverMemory},
		{config.Scratch{Driver: config.DriverFS, Dir: t.TempDir()}, scratch.DriverFS},
		{config.Scratch{Driver: config.DriverS3, S3: config.S3{
			Bucket: "scratch", Region: "us-west-2", Endpoint: "http://127.0.0.1:9000",
			AccessKeyID: "minio", SecretAccessKey: "minio123", PathStyle: true,
		}}, scratch.DriverS3},
	}
	for _, tt := range tests {
		store, err := NewStore(ctx, tt.cfg)
		if err != nil {
			t.Errorf("%s: %v", tt.want, err)
			continue
		}
		if store.Driver() != tt.want {
			t.Errorf("driver = %s, want %s", store.Driver(), tt.want)
		}
	}
	if _, err := NewStore(ctx, config.Scratch{Driver: "tape"}); err == nil {
		t.Errorf("unknown driver accepted")
	}
}

func TestWatermask(t *testing.T) {
	t.Setenv(WatermaskEnv, "")
	// half-degree mask over lon 0..20, lat 0..10: water west of lon 10
	water := raster.NewArray(40, 20)
	for y := range 20 {
		for x := range 20 {
			water.Set(x, y, 1)
		}
	}
	gt := georef.GeoTransform{0, 0.5, 0, 10, 0, -0.5}
	h := vrt.NewMemHandle("mod44w.tif", water)
	h.GT = &gt
	h.BandMeta = []map[string]string{{vrt.KeyName: "water_mask"}}
	dir := t.TempDir()
	opts := testOptions(t, map[string]vrt.Handle{"mod44w.tif": h, filepath.Join(dir, WatermaskFile): h})
	opts.Config = config.Default()
	opts.Config.WatermaskPath = "mod44w.tif"

	dom := testDomain(t)
	s, err := NewFromArray(dom, raster.NewArray(dom.Width(), dom.Height()), map[string]string{vrt.KeyName: "grid"}, opts)
	if err != nil {
		t.Fatal(err)
	}
	m, err := s.Watermask(WatermaskOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if w, h := m.Shape(); w != 20 || h != 10 {
		t.Fatalf("shape = %dx%d", w, h)
	}
	if v := getAt(t, m, ByIndex(1), 5, 4); v != 1 {
		t.Errorf("west value = %v", v)
	}
	if v := getAt(t, m, ByIndex(1), 15, 4); v != 0 {
		t.Errorf("east value = %v", v)
	}
	if m.HistoryLen() != 0 {
		t.Errorf("history kept: %d", m.HistoryLen())
	}

	// a directory resolves to the MOD44W.vrt inside it
	m, err = s.Watermask(WatermaskOptions{Path: dir})
	if err != nil {
		t.Fatal(err)
	}
	if v := getAt(t, m, ByIndex(1), 0, 0); v != 1 {
		t.Errorf("directory mask value = %v", v)
	}

	if _, err = s.Watermask(WatermaskOptions{Path: "missing.tif"}); !errors.Is(err, ErrCannotOpen) {
		t.Errorf("missing mask: %v", err)
	}

	opts.Config.WatermaskPath = ""
	s.opts.Config = opts.Config
	m, err = s.Watermask(WatermaskOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Bands()) != 1 || getAt(t, m, ByName(WatermaskBand), 12, 3) != 0 {
		t.Errorf("unconfigured mask is not a zero band")
	}
}
