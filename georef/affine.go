package georef

import (
	"fmt"

	"github.com/wgdzlh/geovrt/errs"
)

type AffineModel struct {
	gt, inv GeoTransform
}

func NewAffine(gt GeoTransform) (*AffineModel, error) {
	inv, ok := gt.Invert()
	if !ok {
		return nil, fmt.Errorf("%s: %w: degenerate geotransform %s", stage, errs.ErrNoGeoreference, gt)
	}
	return &AffineModel{gt: gt, inv: inv}, nil
}

func (m *AffineModel) Forward(xs, ys []float64) {
	for i := range xs {
		xs[i], ys[i] = m.gt.Apply(xs[i], ys[i])
	}
}

func (m *AffineModel) Inverse(xs, ys []float64) {
	for i := range xs {
		xs[i], ys[i] = m.inv.Apply(xs[i], ys[i])
	}
}
