// Package errs holds the error taxonomy shared by all geovrt packages.
package errs

import (
	"errors"
	"fmt"
)

var (
	ErrNotApplicable      = errors.New("format not applicable")
	ErrNoMapperMatched    = errors.New("no mapper matched")
	ErrMapperNotFound     = errors.New("mapper not found")
	ErrCannotOpen         = errors.New("source cannot be opened")
	ErrHistoryUnderflow   = errors.New("history underflow")
	ErrOutOfRangeGeometry = errors.New("window is fully outside the raster")
	ErrCropNotNeeded      = errors.New("window equals the full raster")
	ErrBandNotFound       = errors.New("band not found")
	ErrShapeMismatch      = errors.New("raster shape mismatch")
	ErrNoGeoreference     = errors.New("no georeference")
	ErrUnsupportedSRS     = errors.New("unsupported spatial reference")
	ErrUnknownPixelFunc   = errors.New("unknown pixel function")
)

// MalformedMetadataError reports a metadata field that could not be parsed.
type MalformedMetadataError struct {
	Stage string
	Key   string
	Err   error
}

func (e *MalformedMetadataError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: malformed metadata %q", e.Stage, e.Key)
	}
	return fmt.Sprintf("%s: malformed metadata %q: %v", e.Stage, e.Key, e.Err)
}

func (e *MalformedMetadataError) Unwrap() error { return e.Err }

// Malformed is a shorthand constructor for MalformedMetadataError.
func Malformed(stage, key string, err error) error {
	return &MalformedMetadataError{Stage: stage, Key: key, Err: err}
}

// ConfigurationError reports an invalid domain or extent specification.
type ConfigurationError struct {
	Field string
	Err   error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration %q: %v", e.Field, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// Configuration is a shorthand constructor for ConfigurationError.
func Configuration(field string, format string, args ...any) error {
	return &ConfigurationError{Field: field, Err: fmt.Errorf(format, args...)}
}
