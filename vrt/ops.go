package vrt

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/wgdzlh/geovrt/errs"
	"github.com/wgdzlh/geovrt/georef"
	"github.com/wgdzlh/geovrt/log"
	"github.com/wgdzlh/geovrt/raster"
)

// ClampWindow clamps (x, y, w, h) to a width x height raster.
// ErrOutOfRangeGeometry is returned when nothing of the window is left and
// ErrCropNotNeeded when the clamped window is the whole raster.
func ClampWindow(x, y, w, h, width, height int) (win raster.Window, err error) {
	if x > width || x+w < 0 || y > height || y+h < 0 {
		err = fmt.Errorf("%w: (%d, %d, %d, %d) on %dx%d", errs.ErrOutOfRangeGeometry, x, y, w, h, width, height)
		return
	}
	x0, y0 := max(x, 0), max(y, 0)
	x1, y1 := min(x+w, width), min(y+h, height)
	win = raster.Window{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
	if win.Empty() {
		err = fmt.Errorf("%w: (%d, %d, %d, %d) on %dx%d", errs.ErrOutOfRangeGeometry, x, y, w, h, width, height)
		return
	}
	if win.Equal(raster.Full(width, height)) {
		err = errs.ErrCropNotNeeded
	}
	return
}

// passthrough makes band i of n the single source of a child band.
func (n *Node) passthrough(i int, b Band) Band {
	c := b.clone()
	delete(c.Meta, KeyPixelFunction)
	c.Sources = []Source{{Ref: n, Band: i + 1, DataType: b.DataType}}
	return c
}

// Cropped returns a child showing the window (x, y, w, h) of n, clamped to
// the raster. The clamped window is returned with the child; on
// ErrOutOfRangeGeometry or ErrCropNotNeeded no child is built.
func (n *Node) Cropped(x, y, w, h int) (c *Node, win raster.Window, err error) {
	if win, err = ClampWindow(x, y, w, h, n.width, n.height); err != nil {
		return nil, win, err
	}
	c = n.child()
	c.width, c.height = win.W, win.H
	c.geo = n.geo.Cropped(win.X, win.Y, win.W, win.H, n.modelOptions())
	for i, b := range n.bands {
		nb := n.passthrough(i, b)
		nb.Sources[0].SrcRect = win
		c.bands[i] = nb
	}
	log.Debug(logTag+"cropped", zap.Stringer("parent", n.id), zap.Int("x", win.X), zap.Int("y", win.Y),
		zap.Int("width", win.W), zap.Int("height", win.H))
	return
}

// Resized returns a child of width x height pixels covering the same
// ground. Averaging cannot keep complex values: such bands keep the real
// part, their type turns real and the child carries WarnImaginaryLost.
func (n *Node) Resized(width, height int, alg raster.Resample) (c *Node, err error) {
	if err = checkSize(width, height); err != nil {
		return
	}
	c = n.child()
	c.width, c.height = width, height
	c.geo = n.geo.Scaled(float64(n.width)/float64(width), float64(n.height)/float64(height))
	lost := false
	for i, b := range n.bands {
		nb := n.passthrough(i, b)
		nb.Sources[0].Resample = alg
		if alg.Averaging() && b.DataType.IsComplex() {
			nb.DataType = b.DataType.Real()
			nb.Meta[KeyDataType] = fmt.Sprint(int(nb.DataType))
			lost = true
		}
		c.bands[i] = nb
	}
	if lost {
		c.warnings = append(c.warnings, WarnImaginaryLost)
		log.Warn(logTag+"imaginary part of complex bands lost", zap.Stringer("resample", alg))
	}
	return
}

// Shifted offsets ground X by dLon degrees. For an affine raster covering
// the full 360 degrees the columns are rolled so the image stays on the
// same footprint; other affine rasters only get a new origin.
func (n *Node) Shifted(dLon float64) (c *Node, err error) {
	c = n.child()
	c.geo = n.geo.Shifted(dLon)
	if n.geo.Active != georef.KindAffine || dLon == 0 {
		return
	}
	gt := n.geo.Transform
	if gt[1] == 0 || math.Abs(math.Abs(gt[1])*float64(n.width)-360) > math.Abs(gt[1]) {
		return
	}
	k := int(math.Round(dLon/gt[1])) % n.width
	if k < 0 {
		k += n.width
	}
	if k == 0 {
		return
	}
	for i, b := range n.bands {
		nb := n.passthrough(i, b)
		tail := nb.Sources[0]
		nb.Sources[0].SrcRect = raster.Window{X: k, Y: 0, W: n.width - k, H: n.height}
		nb.Sources[0].DstRect = raster.Window{X: 0, Y: 0, W: n.width - k, H: n.height}
		tail.SrcRect = raster.Window{X: 0, Y: 0, W: k, H: n.height}
		tail.DstRect = raster.Window{X: n.width - k, Y: 0, W: k, H: n.height}
		nb.Sources = append(nb.Sources, tail)
		c.bands[i] = nb
	}
	log.Debug(logTag+"rolled columns", zap.Int("columns", k), zap.Float64("dLon", dLon))
	return
}
