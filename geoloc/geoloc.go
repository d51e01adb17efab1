// Package geoloc implements the geolocation grid georeferencing model: a
// pair of longitude/latitude rasters sampled at a regular step over the
// image.
package geoloc

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/wgdzlh/geovrt/errs"
	"github.com/wgdzlh/geovrt/raster"
)

const (
	KeyXDataset    = "X_DATASET"
	KeyYDataset    = "Y_DATASET"
	KeyXBand       = "X_BAND"
	KeyYBand       = "Y_BAND"
	KeySRS         = "SRS"
	KeyLineOffset  = "LINE_OFFSET"
	KeyLineStep    = "LINE_STEP"
	KeyPixelOffset = "PIXEL_OFFSET"
	KeyPixelStep   = "PIXEL_STEP"

	stage = "geolocation"
)

// Opener resolves an X_DATASET/Y_DATASET reference.
type Opener func(name string) (raster.Reader, error)

// Grid maps grid sample (i, j) to image coordinate
// (PixelOffset + i*PixelStep + 0.5, LineOffset + j*LineStep + 0.5).
type Grid struct {
	X, Y         raster.Reader
	XName, YName string
	XBand, YBand int
	SRS          string

	LineOffset, LineStep   float64
	PixelOffset, PixelStep float64

	// added to every longitude read from X
	LonShift float64
}

// New wraps two in-memory grids.
func New(lon, lat *raster.Array, srsWKT string, pixelStep, lineStep float64) (*Grid, error) {
	if !lon.SameShape(lat) {
		return nil, errs.ErrShapeMismatch
	}
	return &Grid{
		X:         &raster.MemReader{ID: "lon", Bands: []*raster.Array{lon}},
		Y:         &raster.MemReader{ID: "lat", Bands: []*raster.Array{lat}},
		XName:     "lon",
		YName:     "lat",
		XBand:     1,
		YBand:     1,
		SRS:       srsWKT,
		LineStep:  lineStep,
		PixelStep: pixelStep,
	}, nil
}

// FromMetadata parses the geolocation metadata block. A block without
// X_DATASET yields a nil grid and no error.
func FromMetadata(md map[string]string, open Opener) (g *Grid, err error) {
	xName, ok := md[KeyXDataset]
	if !ok || strings.TrimSpace(xName) == "" {
		return
	}
	g = &Grid{XName: xName, YName: md[KeyYDataset], SRS: md[KeySRS]}
	if g.YName == "" {
		return nil, errs.Malformed(stage, KeyYDataset, fmt.Errorf("missing"))
	}
	if g.XBand, err = intField(md, KeyXBand, 1); err != nil {
		return nil, err
	}
	if g.YBand, err = intField(md, KeyYBand, 1); err != nil {
		return nil, err
	}
	fields := []struct {
		key  string
		dst  *float64
		def  float64
		step bool
	}{
		{KeyLineOffset, &g.LineOffset, 0, false},
		{KeyLineStep, &g.LineStep, 1, true},
		{KeyPixelOffset, &g.PixelOffset, 0, false},
		{KeyPixelStep, &g.PixelStep, 1, true},
	}
	for _, f := range fields {
		if *f.dst, err = floatField(md, f.key, f.def); err != nil {
			return nil, err
		}
		if f.step && *f.dst < 1 {
			return nil, errs.Malformed(stage, f.key, fmt.Errorf("step %v < 1", *f.dst))
		}
	}
	if open == nil {
		return
	}
	if g.X, err = open(g.XName); err != nil {
		return nil, fmt.Errorf("%s %s: %w", stage, KeyXDataset, err)
	}
	if g.Y, err = open(g.YName); err != nil {
		return nil, fmt.Errorf("%s %s: %w", stage, KeyYDataset, err)
	}
	return
}

func intField(md map[string]string, key string, def int) (int, error) {
	v, ok := md[key]
	if !ok || strings.TrimSpace(v) == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 1 {
		return 0, errs.Malformed(stage, key, err)
	}
	return n, nil
}

func floatField(md map[string]string, key string, def float64) (float64, error) {
	v, ok := md[key]
	if !ok || strings.TrimSpace(v) == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errs.Malformed(stage, key, err)
	}
	return f, nil
}

// Metadata is the inverse of FromMetadata.
func (g *Grid) Metadata() map[string]string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	return map[string]string{
		KeyXDataset:    g.XName,
		KeyYDataset:    g.YName,
		KeyXBand:       strconv.Itoa(g.XBand),
		KeyYBand:       strconv.Itoa(g.YBand),
		KeySRS:         g.SRS,
		KeyLineOffset:  f(g.LineOffset),
		KeyLineStep:    f(g.LineStep),
		KeyPixelOffset: f(g.PixelOffset),
		KeyPixelStep:   f(g.PixelStep),
	}
}

// Resolve reads the longitude and latitude rasters.
func (g *Grid) Resolve() (lon, lat *raster.Array, err error) {
	if g.X == nil || g.Y == nil {
		return nil, nil, fmt.Errorf("%s: %w: datasets not opened", stage, errs.ErrNoGeoreference)
	}
	if lon, err = raster.ReadFull(g.X, g.XBand); err != nil {
		return
	}
	if lat, err = raster.ReadFull(g.Y, g.YBand); err != nil {
		return
	}
	if !lon.SameShape(lat) {
		return nil, nil, fmt.Errorf("%s: %w: %dx%d vs %dx%d", stage, errs.ErrShapeMismatch,
			lon.Width, lon.Height, lat.Width, lat.Height)
	}
	if g.LonShift != 0 {
		for i := range lon.Re {
			lon.Re[i] += g.LonShift
		}
	}
	return
}

// ImageCoord is the image position of grid sample (i, j).
func (g *Grid) ImageCoord(i, j float64) (pixel, line float64) {
	return g.PixelOffset + i*g.PixelStep + 0.5, g.LineOffset + j*g.LineStep + 0.5
}

// GridCoord is the inverse of ImageCoord.
func (g *Grid) GridCoord(pixel, line float64) (i, j float64) {
	return (pixel - 0.5 - g.PixelOffset) / g.PixelStep, (line - 0.5 - g.LineOffset) / g.LineStep
}

func (g *Grid) clone() *Grid {
	c := *g
	return &c
}

// Cropped re-bases the grid on a window starting at (xOff, yOff).
func (g *Grid) Cropped(xOff, yOff float64) *Grid {
	c := g.clone()
	c.PixelOffset -= xOff
	c.LineOffset -= yOff
	return c
}

// Scaled rescales the grid for an image whose new pixels are fx x fy old
// pixels. A step that would fall below one pixel is kept at or above one
// by reading only every k-th grid sample along that axis.
func (g *Grid) Scaled(fx, fy float64) *Grid {
	c := g.clone()
	c.PixelOffset = (g.PixelOffset+0.5)/fx - 0.5
	c.LineOffset = (g.LineOffset+0.5)/fy - 0.5
	c.PixelStep = g.PixelStep / fx
	c.LineStep = g.LineStep / fy
	kx, ky := thinning(c.PixelStep), thinning(c.LineStep)
	if kx > 1 || ky > 1 {
		c.PixelStep *= float64(kx)
		c.LineStep *= float64(ky)
		if c.X != nil {
			c.X = &thinned{r: c.X, kx: kx, ky: ky}
		}
		if c.Y != nil {
			c.Y = &thinned{r: c.Y, kx: kx, ky: ky}
		}
	}
	return c
}

// thinning is the sample stride that brings step to at least 1.
func thinning(step float64) int {
	if step >= 1 || step <= 0 {
		return 1
	}
	return int(math.Ceil(1/step - 1e-9))
}

// thinned serves every kx-th column and every ky-th row of r.
type thinned struct {
	r      raster.Reader
	kx, ky int
}

func (t *thinned) Name() string   { return t.r.Name() }
func (t *thinned) Width() int     { return (t.r.Width() + t.kx - 1) / t.kx }
func (t *thinned) Height() int    { return (t.r.Height() + t.ky - 1) / t.ky }
func (t *thinned) BandCount() int { return t.r.BandCount() }

func (t *thinned) Read(band int, win raster.Window, outW, outH int, alg raster.Resample) (*raster.Array, error) {
	src := raster.Window{X: win.X * t.kx, Y: win.Y * t.ky, W: (win.W-1)*t.kx + 1, H: (win.H-1)*t.ky + 1}
	a, err := t.r.Read(band, src, src.W, src.H, raster.Nearest)
	if err != nil {
		return nil, err
	}
	out := raster.NewArray(win.W, win.H)
	for j := 0; j < win.H; j++ {
		for i := 0; i < win.W; i++ {
			out.Set(i, j, a.At(i*t.kx, j*t.ky))
		}
	}
	return raster.Extract(out, raster.Full(win.W, win.H), outW, outH, alg), nil
}

func (g *Grid) Shifted(dLon float64) *Grid {
	c := g.clone()
	c.LonShift += dLon
	return c
}

// EstimateStep is the grid step needed to cover a target image with a grid
// of the given size.
func EstimateStep(targetW, targetH, gridW, gridH int) (pixelStep, lineStep int) {
	if gridW <= 0 || gridH <= 0 {
		return 1, 1
	}
	pixelStep = int(math.Ceil(float64(targetW) / float64(gridW)))
	lineStep = int(math.Ceil(float64(targetH) / float64(gridH)))
	return max(1, pixelStep), max(1, lineStep)
}
