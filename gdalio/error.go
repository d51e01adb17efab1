package gdalio

import "errors"

var (
	ErrGdalDriverCreate = errors.New("gdal driver create err")
	ErrGdalDriverOpen   = errors.New("gdal driver open err")
	ErrGdalWrite        = errors.New("gdal raster write err")
	ErrVoidSrid         = errors.New("gdal spatial ref with void srid")
	ErrInvalidSRS       = errors.New("gdal invalid spatial ref definition")
	ErrTransformFailed  = errors.New("gdal coordinate transform failed")
	ErrEmptyRaster      = errors.New("empty raster")
)
