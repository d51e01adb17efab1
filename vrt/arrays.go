package vrt

import (
	"context"
	"fmt"
	"runtime"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wgdzlh/geovrt/errs"
	"github.com/wgdzlh/geovrt/georef"
	"github.com/wgdzlh/geovrt/log"
	"github.com/wgdzlh/geovrt/raster"
	"github.com/wgdzlh/geovrt/scratch"
)

// storedArray is a single band dataset persisted in scratch storage. The
// entry is deleted once the dataset is unreachable.
type storedArray struct {
	store         scratch.Store
	key           string
	width, height int
}

func (s *storedArray) Name() string   { return "scratch:" + s.key }
func (s *storedArray) Width() int     { return s.width }
func (s *storedArray) Height() int    { return s.height }
func (s *storedArray) BandCount() int { return 1 }

func (s *storedArray) Read(band int, win raster.Window, outW, outH int, alg raster.Resample) (*raster.Array, error) {
	if band != 1 {
		return nil, fmt.Errorf("%w: %s band %d", errs.ErrBandNotFound, s.Name(), band)
	}
	a, err := scratch.GetArray(context.Background(), s.store, s.key)
	if err != nil {
		return nil, err
	}
	return raster.Extract(a, win, outW, outH, alg), nil
}

func releaseScratch(store scratch.Store, key string) {
	if _, err := store.Delete(context.Background(), key); err != nil {
		log.Warn(logTag+"release scratch entry failed", zap.String("key", key), zap.Error(err))
	}
}

func storeArray(ctx context.Context, store scratch.Store, a *raster.Array) (ds *storedArray, err error) {
	key := uuid.NewString()
	if err = scratch.PutArray(ctx, store, key, a); err != nil {
		return
	}
	ds = &storedArray{store: store, key: key, width: a.Width, height: a.Height}
	runtime.AddCleanup(ds, func(k string) { releaseScratch(store, k) }, key)
	log.Debug(logTag+"array stored", zap.String("key", key), zap.String("driver", string(store.Driver())),
		zap.String("size", humanize.IBytes(uint64(scratch.EncodedSize(a)))))
	return
}

// NewFromArrays builds a node whose bands are the given arrays, one band
// each, persisted in the Env scratch store. metas may be shorter than
// arrays.
func NewFromArrays(width, height int, geo georef.Georef, arrays []*raster.Array, metas []map[string]string, env *Env) (n *Node, err error) {
	n, err = NewEmpty(width, height, geo, nil, env)
	if err != nil {
		return
	}
	bands := make([]Band, len(arrays))
	for i, a := range arrays {
		if a.Width != width || a.Height != height {
			return nil, fmt.Errorf("%w: array %d is %dx%d, want %dx%d", errs.ErrShapeMismatch, i+1, a.Width, a.Height, width, height)
		}
		var ds *storedArray
		if ds, err = storeArray(context.Background(), n.env.Store, a); err != nil {
			return nil, fmt.Errorf("store array %d: %w", i+1, err)
		}
		t := raster.Float64
		if a.IsComplex() {
			t = raster.CFloat64
		}
		var md map[string]string
		if i < len(metas) {
			md = metas[i]
		}
		bands[i] = Band{
			Sources:  []Source{{Ref: ds, Band: 1, DataType: t}},
			Meta:     md,
			DataType: t,
		}
	}
	if len(bands) == 0 {
		return
	}
	c, err := n.AddBands(bands)
	if err != nil {
		return nil, err
	}
	c.parent = nil
	return c, nil
}
