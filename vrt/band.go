package vrt

import (
	"fmt"
	"strconv"

	"github.com/wgdzlh/geovrt/raster"
	"github.com/wgdzlh/geovrt/utils"
)

// band metadata keys
const (
	KeyName          = "name"
	KeyWKV           = "wkv"
	KeySuffix        = "suffix"
	KeyPixelFunction = "PixelFunctionType"
	KeyDataType      = "dataType"
	KeyExpression    = "expression"
	KeyFillValue     = "_FillValue"
	KeyWavelength    = "wavelength"
	KeySourceType    = "SourceTransferType"
)

// Source maps SrcRect of band Band of Ref onto DstRect of the owning node.
// Zero rectangles cover the whole raster.
type Source struct {
	Ref         Dataset
	Band        int
	DataType    raster.DataType
	ScaleRatio  float64 // 0 means 1
	ScaleOffset float64
	SrcRect     raster.Window
	DstRect     raster.Window
	Resample    raster.Resample
}

func (s Source) scaled() bool {
	return (s.ScaleRatio != 0 && s.ScaleRatio != 1) || s.ScaleOffset != 0
}

func (s Source) apply(a *raster.Array) {
	if !s.scaled() {
		return
	}
	r := s.ScaleRatio
	if r == 0 {
		r = 1
	}
	for i := range a.Re {
		a.Re[i] = a.Re[i]*r + s.ScaleOffset
	}
	if a.Im != nil {
		for i := range a.Im {
			a.Im[i] *= r
		}
	}
}

// Band is one output band. With a pixel function in Meta the sources are
// its ordered inputs; otherwise they are composed in order, later sources
// on top.
type Band struct {
	Sources  []Source
	Meta     map[string]string
	DataType raster.DataType
	// variable name reported by the format, used when Meta has no name
	Fallback string
}

func (b Band) Name() string { return b.Meta[KeyName] }

func (b Band) PixelFunction() string { return b.Meta[KeyPixelFunction] }

func (b Band) clone() Band {
	c := b
	c.Sources = append([]Source(nil), b.Sources...)
	c.Meta = utils.CloneMap(b.Meta)
	return c
}

func (b Band) resolveType() raster.DataType {
	if t := raster.ParseDataType(b.Meta[KeyDataType]); t != raster.Unknown {
		return t
	}
	if b.DataType != raster.Unknown {
		return b.DataType
	}
	if b.PixelFunction() == PFComplexData {
		return raster.CFloat32
	}
	if b.PixelFunction() == "" && len(b.Sources) > 0 && b.Sources[0].DataType != raster.Unknown {
		return b.Sources[0].DataType
	}
	return raster.Float32
}

// bandName picks the name of the band appended as number no.
func bandName(b Band, no int, reexported bool, taken map[string]bool) string {
	name := b.Meta[KeyName]
	if name == "" && b.Fallback != "" {
		name = b.Fallback
		if reexported {
			name = utils.StripTrailingDigits(name, 2)
		}
	}
	if name == "" && b.Meta[KeyWKV] != "" {
		name = b.Meta[KeyWKV]
		if sfx := b.Meta[KeySuffix]; sfx != "" {
			name += "_" + sfx
		}
	}
	if name == "" {
		name = fmt.Sprintf("band_%03d", no)
	}
	if !taken[name] {
		return name
	}
	for i := 1; ; i++ {
		if c := name + "_" + strconv.Itoa(i); !taken[c] {
			return c
		}
	}
}
