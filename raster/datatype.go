// Package raster holds in-memory pixel arrays and the resampling kernels
// used by the virtual raster read path.
package raster

import (
	"math"
	"strconv"
	"strings"
)

// DataType follows the GDAL numbering so codes can pass through metadata
// unchanged.
type DataType int

const (
	Unknown DataType = iota
	Byte
	UInt16
	Int16
	UInt32
	Int32
	Float32
	Float64
	CInt16
	CInt32
	CFloat32
	CFloat64
)

var typeNames = [...]string{"Unknown", "Byte", "UInt16", "Int16", "UInt32", "Int32",
	"Float32", "Float64", "CInt16", "CInt32", "CFloat32", "CFloat64"}

func (t DataType) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return typeNames[0]
	}
	return typeNames[t]
}

func (t DataType) IsComplex() bool {
	return t >= CInt16 && t <= CFloat64
}

func (t DataType) IsInteger() bool {
	switch t {
	case Byte, UInt16, Int16, UInt32, Int32, CInt16, CInt32:
		return true
	}
	return false
}

// Real returns the component type of a complex type.
func (t DataType) Real() DataType {
	switch t {
	case CInt16:
		return Int16
	case CInt32:
		return Int32
	case CFloat32:
		return Float32
	case CFloat64:
		return Float64
	}
	return t
}

// ParseDataType accepts either a type name or its numeric code.
func ParseDataType(s string) DataType {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		if n > 0 && n < len(typeNames) {
			return DataType(n)
		}
		return Unknown
	}
	for i, name := range typeNames {
		if strings.EqualFold(name, s) {
			return DataType(i)
		}
	}
	return Unknown
}

// Round converts a working value to what an integer type can hold. NaN
// stays NaN so that unmapped pixels remain detectable.
func (t DataType) Round(v float64) float64 {
	if !t.IsInteger() || math.IsNaN(v) {
		return v
	}
	v = math.Round(v)
	lo, hi := t.limits()
	return math.Max(lo, math.Min(hi, v))
}

func (t DataType) limits() (lo, hi float64) {
	switch t.Real() {
	case Byte:
		return 0, math.MaxUint8
	case UInt16:
		return 0, math.MaxUint16
	case Int16:
		return math.MinInt16, math.MaxInt16
	case UInt32:
		return 0, math.MaxUint32
	case Int32:
		return math.MinInt32, math.MaxInt32
	}
	return math.Inf(-1), math.Inf(1)
}
