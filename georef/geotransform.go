package georef

import (
	"fmt"
	"math"
	"strings"

	"github.com/wgdzlh/geovrt/errs"
	"github.com/wgdzlh/geovrt/utils"
)

// GeoTransform is the affine pixel/line to ground mapping
//
//	X = gt[0] + pixel*gt[1] + line*gt[2]
//	Y = gt[3] + pixel*gt[4] + line*gt[5]
type GeoTransform [6]float64

var Identity = GeoTransform{0, 1, 0, 0, 0, 1}

func (gt GeoTransform) Apply(pixel, line float64) (x, y float64) {
	x = gt[0] + pixel*gt[1] + line*gt[2]
	y = gt[3] + pixel*gt[4] + line*gt[5]
	return
}

// Invert returns the ground to pixel/line transform; ok is false for a
// degenerate transform.
func (gt GeoTransform) Invert() (inv GeoTransform, ok bool) {
	det := gt[1]*gt[5] - gt[2]*gt[4]
	if det == 0 || math.IsNaN(det) {
		return
	}
	inv[1] = gt[5] / det
	inv[2] = -gt[2] / det
	inv[4] = -gt[4] / det
	inv[5] = gt[1] / det
	inv[0] = -(inv[1]*gt[0] + inv[2]*gt[3])
	inv[3] = -(inv[4]*gt[0] + inv[5]*gt[3])
	return inv, true
}

func (gt GeoTransform) IsIdentity() bool {
	return gt == Identity
}

// Cropped moves the origin to pixel (x, y).
func (gt GeoTransform) Cropped(x, y float64) GeoTransform {
	gt[0], gt[3] = gt.Apply(x, y)
	return gt
}

// Scaled makes every new pixel cover fx x fy old pixels.
func (gt GeoTransform) Scaled(fx, fy float64) GeoTransform {
	gt[1] *= fx
	gt[4] *= fx
	gt[2] *= fy
	gt[5] *= fy
	return gt
}

// String is the escaped tuple form used in single-line metadata, e.g.
// "(0|1|0|0|0|1)".
func (gt GeoTransform) String() string {
	return "(" + utils.FormatFloats(gt[:], "|") + ")"
}

// ParseGeoTransform accepts "(a|b|c|d|e|f)" or its unescaped comma form.
// Anything but six numbers is malformed.
func ParseGeoTransform(s string) (gt GeoTransform, err error) {
	body := strings.TrimSpace(utils.UnescapeMetadata(s))
	body = strings.TrimSuffix(strings.TrimPrefix(body, "("), ")")
	body = strings.TrimSuffix(strings.TrimPrefix(body, "["), "]")
	vs, err := utils.ParseFloats(body, ",")
	if err != nil {
		return gt, errs.Malformed(stage, KeyGeoTransform, err)
	}
	if len(vs) != 6 {
		return gt, errs.Malformed(stage, KeyGeoTransform, fmt.Errorf("%d values, want 6", len(vs)))
	}
	copy(gt[:], vs)
	return
}
