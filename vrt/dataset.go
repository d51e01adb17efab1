package vrt

import (
	"fmt"

	"github.com/wgdzlh/geovrt/errs"
	"github.com/wgdzlh/geovrt/gcp"
	"github.com/wgdzlh/geovrt/georef"
	"github.com/wgdzlh/geovrt/raster"
	"github.com/wgdzlh/geovrt/srs"
)

// metadata domains
const (
	DomainDefault     = ""
	DomainGeolocation = "GEOLOCATION"
	DomainSubdatasets = "SUBDATASETS"
)

// Dataset is anything a band source can point at: an opened file, another
// node, or an array kept in scratch storage.
type Dataset = raster.Reader

// Handle is an externally opened raster.
type Handle interface {
	Dataset
	Metadata(domain string) map[string]string
	BandMetadata(band int) map[string]string
	BandDataType(band int) raster.DataType
	// ok is false when the raster has no geotransform
	GeoTransform() (gt georef.GeoTransform, ok bool)
	Projection() srs.Reference
	GCPs() (gcp.Set, srs.Reference)
	SubDatasets() []SubDataset
}

// SubDataset names an openable part of a container file.
type SubDataset struct {
	Name string
	Desc string
}

// Opener opens sources by name; used for subdatasets and geolocation
// rasters.
type Opener interface {
	Open(name string) (Handle, error)
}

// MemHandle is a Handle over in-memory arrays.
type MemHandle struct {
	raster.MemReader
	Meta     map[string]map[string]string
	BandMeta []map[string]string
	Types    []raster.DataType
	GT       *georef.GeoTransform
	SRS      srs.Reference
	GCPSet   gcp.Set
	GCPSRS   srs.Reference
	Subs     []SubDataset
}

func NewMemHandle(id string, arrays ...*raster.Array) *MemHandle {
	return &MemHandle{MemReader: raster.MemReader{ID: id, Bands: arrays}}
}

func (h *MemHandle) Metadata(domain string) map[string]string {
	md := map[string]string{}
	for k, v := range h.Meta[domain] {
		md[k] = v
	}
	return md
}

func (h *MemHandle) BandMetadata(band int) map[string]string {
	md := map[string]string{}
	if band >= 1 && band <= len(h.BandMeta) {
		for k, v := range h.BandMeta[band-1] {
			md[k] = v
		}
	}
	return md
}

func (h *MemHandle) BandDataType(band int) raster.DataType {
	if band >= 1 && band <= len(h.Types) {
		return h.Types[band-1]
	}
	if band >= 1 && band <= len(h.Bands) && h.Bands[band-1].IsComplex() {
		return raster.CFloat64
	}
	return raster.Float64
}

func (h *MemHandle) GeoTransform() (georef.GeoTransform, bool) {
	if h.GT == nil {
		return georef.Identity, false
	}
	return *h.GT, true
}

func (h *MemHandle) Projection() srs.Reference { return h.SRS }

func (h *MemHandle) GCPs() (gcp.Set, srs.Reference) { return h.GCPSet, h.GCPSRS }

func (h *MemHandle) SubDatasets() []SubDataset { return h.Subs }

// MemOpener resolves names to registered handles.
type MemOpener map[string]Handle

func (m MemOpener) Open(name string) (Handle, error) {
	h, ok := m[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errs.ErrCannotOpen, name)
	}
	return h, nil
}
