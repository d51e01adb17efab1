// Package gdalio is the GDAL boundary of geovrt: opening rasters as
// vrt.Handle values, GDAL spatial references and export of nodes to files.
package gdalio

import (
	"encoding/xml"
	"fmt"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/lukeroth/gdal"
	"go.uber.org/zap"

	"github.com/wgdzlh/geovrt/errs"
	"github.com/wgdzlh/geovrt/gcp"
	"github.com/wgdzlh/geovrt/georef"
	"github.com/wgdzlh/geovrt/log"
	"github.com/wgdzlh/geovrt/raster"
	"github.com/wgdzlh/geovrt/srs"
	"github.com/wgdzlh/geovrt/utils"
	"github.com/wgdzlh/geovrt/vrt"
)

const logTag = "GDALIO:"

// GDAL reports this geotransform when a raster has none.
var defaultGeoTransform = [6]float64{0, 1, 0, 0, 0, 1}

// GDAL has no complex buffer type; the imaginary part is read through a
// derived band.
const imagVRT = `<VRTDataset rasterXSize="%d" rasterYSize="%d">` +
	`<VRTRasterBand dataType="Float64" band="1" subClass="VRTDerivedRasterBand">` +
	`<PixelFunctionType>imag</PixelFunctionType>` +
	`<SimpleSource><SourceFilename relativeToVRT="0">%s</SourceFilename><SourceBand>%d</SourceBand></SimpleSource>` +
	`</VRTRasterBand></VRTDataset>`

// handle owns the GDAL dataset; it is closed once, explicitly or when the
// Dataset is reclaimed.
type handle struct {
	once sync.Once
	ds   gdal.Dataset
}

func (h *handle) close() { h.once.Do(h.ds.Close) }

// Dataset is an opened GDAL raster. It implements vrt.Handle. Reads are
// serialized since GDAL dataset handles are not thread safe.
type Dataset struct {
	name    string
	enc     string
	mu      sync.Mutex
	h       *handle
	cleanup runtime.Cleanup
}

// Open opens a raster read-only. enc is the fallback encoding of metadata
// values that are not valid UTF-8.
func Open(name, enc string) (d *Dataset, err error) {
	path := gdalPath(name)
	ds, err := gdal.OpenEx(path, gdal.OFRaster|gdal.OFReadOnly, nil, nil, nil)
	if err != nil {
		log.Error(logTag+"open raster failed", zap.String("name", name), zap.Error(err))
		return nil, fmt.Errorf("%w: %s: %v", errs.ErrCannotOpen, name, err)
	}
	h := &handle{ds: ds}
	d = &Dataset{name: path, enc: enc, h: h}
	d.cleanup = runtime.AddCleanup(d, func(h *handle) { h.close() }, h)
	log.Debug(logTag+"raster opened", zap.String("name", path), zap.Int("width", ds.RasterXSize()),
		zap.Int("height", ds.RasterYSize()), zap.Int("bands", ds.RasterCount()))
	return
}

// gdalPath maps object storage URLs to GDAL virtual file systems.
func gdalPath(name string) string {
	switch {
	case strings.HasPrefix(name, "s3://"):
		return "/vsis3/" + strings.TrimPrefix(name, "s3://")
	case utils.IsRemote(name) && !strings.HasPrefix(name, "/vsi"):
		return "/vsicurl/" + name
	}
	return name
}

// Close releases the GDAL handle; d and nodes reading from it must not be
// used afterwards.
func (d *Dataset) Close() {
	d.cleanup.Stop()
	d.h.close()
}

func (d *Dataset) Name() string { return d.name }

func (d *Dataset) Width() int { return d.h.ds.RasterXSize() }

func (d *Dataset) Height() int { return d.h.ds.RasterYSize() }

func (d *Dataset) BandCount() int { return d.h.ds.RasterCount() }

func (d *Dataset) checkBand(band int) error {
	if band < 1 || band > d.BandCount() {
		return fmt.Errorf("%w: %s band %d", errs.ErrBandNotFound, d.name, band)
	}
	return nil
}

func (d *Dataset) Read(band int, win raster.Window, outW, outH int, alg raster.Resample) (a *raster.Array, err error) {
	if err = d.checkBand(band); err != nil {
		return
	}
	if win.Empty() {
		return raster.NewArray(outW, outH), nil
	}
	a = raster.NewArray(win.W, win.H)
	d.mu.Lock()
	b := d.h.ds.RasterBand(band)
	err = b.IO(gdal.Read, win.X, win.Y, win.W, win.H, a.Re, win.W, win.H, 0, 0)
	complexBand := raster.DataType(b.RasterDataType()).IsComplex()
	d.mu.Unlock()
	if err != nil {
		log.Error(logTag+"read raster band failed", zap.String("name", d.name), zap.Int("band", band), zap.Error(err))
		return nil, fmt.Errorf("%s band %d: %w", d.name, band, err)
	}
	if complexBand {
		if a.Im, err = d.readImag(band, win); err != nil {
			return nil, err
		}
	}
	return raster.Extract(a, raster.Full(win.W, win.H), outW, outH, alg), nil
}

func (d *Dataset) readImag(band int, win raster.Window) (im []float64, err error) {
	var src strings.Builder
	if err = xml.EscapeText(&src, []byte(d.name)); err != nil {
		return
	}
	def := fmt.Sprintf(imagVRT, d.Width(), d.Height(), src.String(), band)
	ds, err := gdal.Open(def, gdal.ReadOnly)
	if err != nil {
		return nil, fmt.Errorf("%s band %d imaginary part: %w", d.name, band, err)
	}
	defer ds.Close()
	im = make([]float64, win.W*win.H)
	err = ds.RasterBand(1).IO(gdal.Read, win.X, win.Y, win.W, win.H, im, win.W, win.H, 0, 0)
	return
}

// Metadata returns the KEY=VALUE items of a metadata domain, decoded to
// UTF-8.
func (d *Dataset) Metadata(domain string) map[string]string {
	d.mu.Lock()
	items := d.h.ds.Metadata(domain)
	d.mu.Unlock()
	return d.decode(items)
}

func (d *Dataset) decode(items []string) map[string]string {
	md := make(map[string]string, len(items))
	for _, item := range items {
		k, v, ok := strings.Cut(item, "=")
		if !ok {
			continue
		}
		dv, err := utils.DecodeMetadata(v, d.enc)
		if err != nil {
			log.Warn(logTag+"undecodable metadata value", zap.String("key", k), zap.Error(err))
			dv = utils.PurifyForUtf8(v)
		}
		md[k] = dv
	}
	return md
}

// BandMetadata also reports the band scale, offset and nodata value as
// ScaleRatio, ScaleOffset and _FillValue when the metadata lacks them.
func (d *Dataset) BandMetadata(band int) map[string]string {
	if d.checkBand(band) != nil {
		return map[string]string{}
	}
	d.mu.Lock()
	b := d.h.ds.RasterBand(band)
	md := d.decode(b.Metadata(""))
	scale, hasScale := b.GetScale()
	offset, hasOffset := b.GetOffset()
	nodata, hasNodata := b.NoDataValue()
	d.mu.Unlock()
	setDefault := func(key string, v float64, ok bool) {
		if _, present := md[key]; ok && !present {
			md[key] = strconv.FormatFloat(v, 'g', -1, 64)
		}
	}
	setDefault("ScaleRatio", scale, hasScale && scale != 1)
	setDefault("ScaleOffset", offset, hasOffset && offset != 0)
	setDefault(vrt.KeyFillValue, nodata, hasNodata)
	return md
}

func (d *Dataset) BandDataType(band int) raster.DataType {
	if d.checkBand(band) != nil {
		return raster.Unknown
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return raster.DataType(d.h.ds.RasterBand(band).RasterDataType())
}

func (d *Dataset) GeoTransform() (gt georef.GeoTransform, ok bool) {
	d.mu.Lock()
	raw := d.h.ds.GeoTransform()
	d.mu.Unlock()
	if raw == defaultGeoTransform {
		return georef.Identity, false
	}
	return georef.GeoTransform(raw), true
}

func (d *Dataset) Projection() srs.Reference {
	d.mu.Lock()
	wkt := d.h.ds.Projection()
	d.mu.Unlock()
	return d.reference(wkt)
}

// reference prefers the pure-Go systems of the srs package.
func (d *Dataset) reference(wkt string) srs.Reference {
	if strings.TrimSpace(wkt) == "" {
		return nil
	}
	sr, err := parseSpatialRef(wkt)
	if err != nil {
		log.Warn(logTag+"unparsable projection", zap.String("name", d.name), zap.Error(err))
		return nil
	}
	if ref, err := srs.FromEPSG(sr.EPSG()); err == nil && (ref == srs.WGS84 || ref == srs.WebMercator) {
		return ref
	}
	return sr
}

func (d *Dataset) GCPs() (gcp.Set, srs.Reference) {
	d.mu.Lock()
	raw := d.h.ds.GDALGetGCPs()
	proj := d.h.ds.GDALGetGCPProjection()
	d.mu.Unlock()
	if len(raw) == 0 {
		return nil, nil
	}
	set := make(gcp.Set, len(raw))
	for i, p := range raw {
		set[i] = gcp.Point{Pixel: p.GCPPixel, Line: p.GCPLine, X: p.GCPX, Y: p.GCPY, Z: p.GCPZ}
	}
	return set, d.reference(proj)
}

// SubDatasets lists SUBDATASET_n_NAME / SUBDATASET_n_DESC pairs in n order.
func (d *Dataset) SubDatasets() []vrt.SubDataset {
	return subDatasets(d.Metadata(vrt.DomainSubdatasets))
}

func subDatasets(md map[string]string) []vrt.SubDataset {
	byIndex := map[int]*vrt.SubDataset{}
	for k, v := range md {
		rest, ok := strings.CutPrefix(k, "SUBDATASET_")
		if !ok {
			continue
		}
		no, field, ok := strings.Cut(rest, "_")
		n, err := strconv.Atoi(no)
		if !ok || err != nil {
			continue
		}
		sub := byIndex[n]
		if sub == nil {
			sub = &vrt.SubDataset{}
			byIndex[n] = sub
		}
		switch field {
		case "NAME":
			sub.Name = v
		case "DESC":
			sub.Desc = v
		}
	}
	idx := make([]int, 0, len(byIndex))
	for n, sub := range byIndex {
		if sub.Name != "" {
			idx = append(idx, n)
		}
	}
	sort.Ints(idx)
	subs := make([]vrt.SubDataset, len(idx))
	for i, n := range idx {
		subs[i] = *byIndex[n]
	}
	return subs
}

// Opener opens rasters with GDAL. Opened datasets are kept open while any
// node references them.
type Opener struct {
	Encoding string
}

func (o Opener) Open(name string) (vrt.Handle, error) {
	d, err := Open(name, o.Encoding)
	if err != nil {
		return nil, err
	}
	return d, nil
}
