// Package geovrt opens satellite and model products as lazily evaluated
// virtual rasters. A Scene holds the current raster node, the history of
// the nodes it replaced and the domain operations of its geometry.
package geovrt

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"github.com/wgdzlh/geovrt/config"
	"github.com/wgdzlh/geovrt/domain"
	"github.com/wgdzlh/geovrt/gdalio"
	"github.com/wgdzlh/geovrt/log"
	"github.com/wgdzlh/geovrt/mapper"
	"github.com/wgdzlh/geovrt/metrics"
	"github.com/wgdzlh/geovrt/raster"
	"github.com/wgdzlh/geovrt/srs"
	"github.com/wgdzlh/geovrt/utils"
	"github.com/wgdzlh/geovrt/vrt"
)

const logTag = "Scene:"

// Options configure how a Scene is built. Zero fields get defaults.
type Options struct {
	Config        *config.Config   // config.Default() when nil
	Registry      *mapper.Registry // mapper.Default with Config.Mappers order when nil
	Env           *vrt.Env         // built from Config when nil
	Metrics       *metrics.Metrics
	Opener        vrt.Opener // GDAL when nil
	Mapper        string     // run only this handler
	MapperOptions map[string]string
}

func (o Options) resolve() (r Options, err error) {
	r = o
	if r.Config == nil {
		r.Config = config.Default()
	}
	if r.Opener == nil {
		r.Opener = gdalio.Opener{Encoding: r.Config.MetadataEncoding}
	}
	if r.Env == nil {
		if r.Env, err = NewEnv(context.Background(), r.Config, r.Metrics, r.Opener); err != nil {
			return
		}
	}
	if r.Registry == nil {
		r.Registry = mapper.Default(r.Metrics)
		if len(r.Config.Mappers) > 0 {
			if err = r.Registry.Reorder(r.Config.Mappers); err != nil {
				return
			}
		}
	}
	r.MapperOptions = utils.CloneMap(o.MapperOptions)
	if _, ok := r.MapperOptions[mapper.OptGCPCount]; !ok {
		r.MapperOptions[mapper.OptGCPCount] = strconv.Itoa(r.Config.GCPCount)
	}
	return
}

// Scene is a raster with undo history. It is owned by one goroutine; the
// nodes it hands out are immutable and may be shared.
type Scene struct {
	node    *vrt.Node
	history []*vrt.Node
	source  string
	mapper  string
	opts    Options // resolved
}

// Open resolves source through the mapper registry.
func Open(source string, opts Options) (s *Scene, err error) {
	o, err := opts.resolve()
	if err != nil {
		return
	}
	n, used, err := o.Registry.Open(source, o.Opener, o.Mapper, o.MapperOptions, o.Env)
	if err != nil {
		log.Error(logTag+"open failed", zap.String("source", source), zap.String("mapper", o.Mapper), zap.Error(err))
		return nil, err
	}
	s = &Scene{node: n.Cloned(), source: source, mapper: used, opts: o}
	log.Info(logTag+"opened", zap.String("source", source), zap.String("mapper", used),
		zap.Int("width", n.Width()), zap.Int("height", n.Height()), zap.Int("bands", n.BandCount()))
	return
}

// New is an empty scene on the grid of dom.
func New(dom *domain.Domain, opts Options) (s *Scene, err error) {
	if dom == nil {
		return nil, ErrNoDomain
	}
	o, err := opts.resolve()
	if err != nil {
		return
	}
	n, err := vrt.NewEmpty(dom.Width(), dom.Height(), dom.Georef(), nil, o.Env)
	if err != nil {
		return
	}
	return &Scene{node: n.WithPrefs(dom.Prefs()), opts: o}, nil
}

// NewFromArray is a scene on the grid of dom with arr as its first band.
func NewFromArray(dom *domain.Domain, arr *raster.Array, meta map[string]string, opts Options) (s *Scene, err error) {
	if s, err = New(dom, opts); err != nil {
		return
	}
	if err = s.AddBand(arr, meta); err != nil {
		return nil, err
	}
	s.DropHistory()
	return
}

func (s *Scene) push(n *vrt.Node) {
	s.history = append(s.history, s.node)
	s.node = n
}

// Undo goes back steps operations.
func (s *Scene) Undo(steps int) error {
	if steps < 1 || steps > len(s.history) {
		return fmt.Errorf("%w: %d steps requested, %d available", ErrHistoryUnderflow, steps, len(s.history))
	}
	k := len(s.history) - steps
	s.node = s.history[k]
	clear(s.history[k:])
	s.history = s.history[:k]
	log.Debug(logTag+"undo", zap.Int("steps", steps), zap.Int("left", k))
	return nil
}

// HistoryLen is the number of operations Undo can revert.
func (s *Scene) HistoryLen() int { return len(s.history) }

// DropHistory forgets every previous state so that nothing but the current
// node keeps their resources alive.
func (s *Scene) DropHistory() {
	clear(s.history)
	s.history = nil
	s.node = s.node.Cloned()
}

func (s *Scene) Node() *vrt.Node { return s.node }

func (s *Scene) Source() string { return s.source }

// Name is the source file name without directory and extension.
func (s *Scene) Name() string { return utils.GetFilenameWithoutExt(s.source) }

// MapperName is the handler that built the scene, empty for scenes made
// from a domain.
func (s *Scene) MapperName() string { return s.mapper }

func (s *Scene) Warnings() []vrt.Warning { return s.node.Warnings() }

func (s *Scene) Domain() *domain.Domain { return domain.FromNode(s.node) }

func (s *Scene) Width() int { return s.node.Width() }

func (s *Scene) Height() int { return s.node.Height() }

func (s *Scene) Shape() (width, height int) { return s.node.Width(), s.node.Height() }

func (s *Scene) SRS() srs.Reference { return s.node.SRS() }

func (s *Scene) Corners() ([4]orb.Point, error) { return s.Domain().Corners() }

func (s *Scene) PixelSizeMeters() (dx, dy float64, err error) { return s.Domain().PixelSizeMeters() }

func (s *Scene) Transform(points []orb.Point, dir domain.Direction) ([]orb.Point, error) {
	return s.Domain().Transform(points, dir)
}

func (s *Scene) Border() (orb.Ring, error) { return s.Domain().Border(BorderPoints) }

func (s *Scene) BorderWKT() (string, error) { return s.Domain().BorderWKT(BorderPoints) }

func (s *Scene) Bound() (orb.Bound, error) { return s.Domain().Bound() }

func (s *Scene) GeolocationGrids(step int) (lon, lat *raster.Array, err error) {
	return s.Domain().GeolocationGrids(step)
}

// Export writes the current raster to path with GDAL.
func (s *Scene) Export(path string, opts gdalio.ExportOptions) error {
	if err := gdalio.Export(s.node, path, opts); err != nil {
		log.Error(logTag+"export failed", zap.String("source", s.source), zap.String("path", path), zap.Error(err))
		return err
	}
	return nil
}

func (s *Scene) String() string {
	line := strings.Repeat("-", 40) + "\n"
	var b strings.Builder
	b.WriteString(line)
	b.WriteString(s.source + "\n")
	b.WriteString(line)
	b.WriteString("Mapper: " + s.mapper + "\n")
	b.WriteString(line)
	b.WriteString(s.ListBands())
	b.WriteString(line)
	b.WriteString(s.Domain().String())
	return b.String()
}
