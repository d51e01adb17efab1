package geovrt

import (
	"errors"

	"github.com/wgdzlh/geovrt/errs"
)

var (
	ErrEmptyTransect = errors.New("transect has no points")
	ErrBadExpression = errors.New("invalid band expression")
	ErrBadResize     = errors.New("invalid resize request")
	ErrNoDomain      = errors.New("no destination domain")

	// shared taxonomy, re-exported for callers of the container
	ErrHistoryUnderflow   = errs.ErrHistoryUnderflow
	ErrOutOfRangeGeometry = errs.ErrOutOfRangeGeometry
	ErrBandNotFound       = errs.ErrBandNotFound
	ErrNoMapperMatched    = errs.ErrNoMapperMatched
	ErrCannotOpen         = errs.ErrCannotOpen
)
