package gdalio

import (
	"fmt"

	"github.com/lukeroth/gdal"
	"go.uber.org/zap"

	"github.com/wgdzlh/geovrt/georef"
	"github.com/wgdzlh/geovrt/log"
	"github.com/wgdzlh/geovrt/raster"
	"github.com/wgdzlh/geovrt/utils"
	"github.com/wgdzlh/geovrt/vrt"
)

const (
	DriverGTiff  = "GTiff"
	DriverNetCDF = "netCDF"

	nansatPrefix = "NANSAT_"
)

type ExportOptions struct {
	Driver   string          // GTiff when empty
	DataType raster.DataType // Float64 when unknown or complex
	Options  []string        // driver creation options
}

// Export materializes every band of n into a new file. Complex bands are
// written as name_real and name_imag pairs. The georeference is written
// natively and also as NANSAT_ metadata so that the generic mapper restores
// it; geolocation grids are exported as sampled GCPs.
func Export(n *vrt.Node, path string, opts ExportOptions) (err error) {
	if n.BandCount() == 0 {
		return fmt.Errorf("export %s: %w", path, ErrEmptyRaster)
	}
	if opts.Driver == "" {
		opts.Driver = DriverGTiff
	}
	driver, err := gdal.GetDriverByName(opts.Driver)
	if err != nil {
		log.Error(logTag+"get driver failed", zap.String("driver", opts.Driver), zap.Error(err))
		return fmt.Errorf("%w: %s: %v", ErrGdalDriverCreate, opts.Driver, err)
	}

	var (
		planes [][]float64
		metas  []map[string]string
	)
	for i, b := range n.Bands() {
		a, e := n.ReadBand(i + 1)
		if e != nil {
			return fmt.Errorf("export band %d: %w", i+1, e)
		}
		// PixelFunctionType stays as a plain item saying how a real band
		// was derived; mappers drop it on open
		md := utils.CloneMap(b.Meta)
		delete(md, vrt.KeySourceType)
		if !a.IsComplex() {
			planes, metas = append(planes, a.Re), append(metas, md)
			continue
		}
		delete(md, vrt.KeyPixelFunction)
		re, im := utils.CloneMap(md), md
		re[vrt.KeyName], im[vrt.KeyName] = b.Name()+"_real", b.Name()+"_imag"
		planes, metas = append(planes, a.Re, a.Im), append(metas, re, im)
	}

	w, h := n.Width(), n.Height()
	ods := driver.Create(path, w, h, len(planes), dataTypeOf(opts.DataType), opts.Options)
	defer ods.Close()
	for i, plane := range planes {
		band := ods.RasterBand(i + 1)
		if err = band.IO(gdal.Write, 0, 0, w, h, plane, w, h, 0, 0); err != nil {
			log.Error(logTag+"write band failed", zap.String("path", path), zap.Int("band", i+1), zap.Error(err))
			return fmt.Errorf("%w: %s band %d: %v", ErrGdalWrite, path, i+1, err)
		}
		for _, k := range utils.SortedKeys(metas[i]) {
			if err = band.SetMetadataItem(k, metas[i][k], ""); err != nil {
				return fmt.Errorf("%w: band %d metadata %s: %v", ErrGdalWrite, i+1, k, err)
			}
		}
	}

	md, err := exportGeoref(ods, n)
	if err != nil {
		return
	}
	for k, v := range n.Metadata() {
		if _, ok := md[k]; !ok {
			md[k] = v
		}
	}
	for _, k := range utils.SortedKeys(md) {
		if err = ods.SetMetadataItem(k, md[k], ""); err != nil {
			return fmt.Errorf("%w: metadata %s: %v", ErrGdalWrite, k, err)
		}
	}
	log.Info(logTag+"node exported", zap.String("path", path), zap.String("driver", opts.Driver),
		zap.Int("bands", len(planes)), zap.Int("width", w), zap.Int("height", h))
	return
}

// exportGeoref writes the active georeference and returns the NANSAT_
// markers describing it.
func exportGeoref(ods gdal.Dataset, n *vrt.Node) (md map[string]string, err error) {
	geo := n.Georef()
	if geo.Active == georef.KindGrid {
		m, e := n.Model()
		if e != nil {
			return nil, e
		}
		geo = georef.GCPs(georef.SampleGCPs(m, n.Width(), n.Height()), geo.SRS)
	}
	md = geo.Metadata()
	wkt := geo.SRS.WKT()
	switch geo.Active {
	case georef.KindAffine:
		if err = ods.SetGeoTransform([6]float64(geo.Transform)); err == nil {
			err = ods.SetProjection(wkt)
		}
	case georef.KindGCP:
		pts := make([]gdal.GCP, len(geo.GCPs))
		for i, p := range geo.GCPs {
			pts[i] = gdal.GCP{Id: fmt.Sprint(i + 1), GCPPixel: p.Pixel, GCPLine: p.Line, GCPX: p.X, GCPY: p.Y, GCPZ: p.Z}
		}
		err = ods.GDALSetGCPs(pts, wkt)
		for k, v := range geo.GCPs.Metadata() {
			md[nansatPrefix+k] = v
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: georeference: %v", ErrGdalWrite, err)
	}
	return
}

// dataTypeOf maps geovrt data types onto GDAL ones; both follow the GDAL
// numbering.
func dataTypeOf(t raster.DataType) gdal.DataType {
	if t == raster.Unknown || t.IsComplex() {
		return gdal.Float64
	}
	return gdal.DataType(t)
}
