package geovrt

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/wgdzlh/geovrt/domain"
	"github.com/wgdzlh/geovrt/log"
	"github.com/wgdzlh/geovrt/raster"
	"github.com/wgdzlh/geovrt/vrt"
)

const (
	WatermaskEnv  = "MOD44WPATH"
	WatermaskFile = "MOD44W.vrt"
	WatermaskBand = "watermask"
)

// WatermaskOptions select the mask source and the grid it is warped onto.
type WatermaskOptions struct {
	Path     string         // overrides Config.WatermaskPath
	Domain   *domain.Domain // the scene domain when nil
	Mapper   string
	TPS      *bool
	SkipGCPs int
}

func (s *Scene) watermaskPath(p string) string {
	if p == "" {
		p = s.opts.Config.WatermaskPath
	}
	if p == "" {
		p = os.Getenv(WatermaskEnv)
	}
	if p == "" {
		return ""
	}
	if fi, err := os.Stat(p); err == nil && fi.IsDir() {
		p = filepath.Join(p, WatermaskFile)
	}
	return p
}

// Watermask opens the MOD44W land/water mask and warps it onto the scene
// grid with nearest resampling. With no mask source configured the result
// is a scene holding a zero band named watermask.
func (s *Scene) Watermask(opts WatermaskOptions) (m *Scene, err error) {
	dom := opts.Domain
	if dom == nil {
		dom = s.Domain()
	}
	path := s.watermaskPath(opts.Path)
	if path == "" {
		log.Warn(logTag+"no watermask source, returning zeros", zap.String("env", WatermaskEnv))
		return NewFromArray(dom, raster.NewArray(dom.Width(), dom.Height()),
			map[string]string{vrt.KeyName: WatermaskBand}, s.opts)
	}
	o := s.opts
	o.Mapper = opts.Mapper
	if m, err = Open(path, o); err != nil {
		return nil, err
	}
	if err = m.Reproject(dom, ReprojectOptions{Resample: raster.Nearest, TPS: opts.TPS, SkipGCPs: opts.SkipGCPs}); err != nil {
		log.Error(logTag+"watermask reproject failed", zap.String("path", path), zap.Error(err))
		return nil, err
	}
	m.DropHistory()
	return
}
