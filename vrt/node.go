// Package vrt is the virtual raster graph. A Node describes a raster
// (size, bands, active georeference) whose pixels are produced on read from
// the band sources; every transformation returns a new child node and
// leaves the receiver untouched.
package vrt

import (
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/wgdzlh/geovrt/errs"
	"github.com/wgdzlh/geovrt/geoloc"
	"github.com/wgdzlh/geovrt/georef"
	"github.com/wgdzlh/geovrt/log"
	"github.com/wgdzlh/geovrt/metrics"
	"github.com/wgdzlh/geovrt/raster"
	"github.com/wgdzlh/geovrt/scratch"
	"github.com/wgdzlh/geovrt/srs"
	"github.com/wgdzlh/geovrt/utils"
)

const logTag = "VRT:"

// Prefs are the warp preferences stored on a node.
type Prefs struct {
	TPS  *bool
	Skip int // 0 means unset
}

type Warning string

const (
	WarnImaginaryLost    Warning = "imaginary part dropped by averaging resample"
	WarnAverageAsNearest Warning = "average resample warps as nearest neighbour"
)

type cacheKey struct {
	node uuid.UUID
	band int
}

// Env carries what nodes share: scratch storage for array-backed bands,
// the pixel function registry, an optional read cache, metrics and the
// opener for geolocation rasters.
type Env struct {
	Store   scratch.Store
	Funcs   *PixelFuncs
	Cache   *lru.Cache[cacheKey, *raster.Array]
	Metrics *metrics.Metrics
	Opener  Opener
}

// NewEnv builds an Env. cacheSize 0 disables the read cache.
func NewEnv(store scratch.Store, cacheSize int, m *metrics.Metrics, opener Opener) (env *Env, err error) {
	if store == nil {
		store = scratch.NewMemory()
	}
	env = &Env{Store: store, Funcs: NewPixelFuncs(), Metrics: m, Opener: opener}
	if cacheSize > 0 {
		if env.Cache, err = lru.New[cacheKey, *raster.Array](cacheSize); err != nil {
			return nil, err
		}
	}
	return
}

var defaultEnv = sync.OnceValue(func() *Env {
	env, _ := NewEnv(nil, 0, nil, nil)
	return env
})

// DefaultEnv is a process wide Env with memory scratch and no cache.
func DefaultEnv() *Env { return defaultEnv() }

func (e *Env) openReader(name string) (raster.Reader, error) {
	if e.Opener == nil {
		return nil, fmt.Errorf("%w: %s (no opener)", errs.ErrCannotOpen, name)
	}
	return e.Opener.Open(name)
}

type Node struct {
	id         uuid.UUID
	width      int
	height     int
	bands      []Band
	geo        georef.Georef
	parent     *Node
	meta       map[string]string
	prefs      Prefs
	warnings   []Warning
	env        *Env
	reexported bool
}

func newNode(width, height int, geo georef.Georef, meta map[string]string, env *Env) *Node {
	if env == nil {
		env = DefaultEnv()
	}
	if geo.SRS == nil {
		geo.SRS = srs.WGS84
	}
	return &Node{
		id:     uuid.New(),
		width:  width,
		height: height,
		geo:    geo,
		meta:   utils.CloneMap(meta),
		env:    env,
	}
}

func checkSize(width, height int) error {
	if width <= 0 || height <= 0 {
		return errs.Configuration("size", "raster size %dx%d must be positive", width, height)
	}
	return nil
}

// NewEmpty creates a band-less node with the given geometry.
func NewEmpty(width, height int, geo georef.Georef, meta map[string]string, env *Env) (*Node, error) {
	if err := checkSize(width, height); err != nil {
		return nil, err
	}
	return newNode(width, height, geo, meta, env), nil
}

// NewFromHandle copies the geometry, georeference and global metadata of h.
// No bands are added. The georeference is taken from, in order, a
// non-identity geotransform, the GCPs, the GEOLOCATION metadata domain.
func NewFromHandle(h Handle, env *Env) (n *Node, err error) {
	if err = checkSize(h.Width(), h.Height()); err != nil {
		return
	}
	if env == nil {
		env = DefaultEnv()
	}
	geo, err := handleGeoref(h, env)
	if err != nil {
		return
	}
	n = newNode(h.Width(), h.Height(), geo, h.Metadata(DomainDefault), env)
	log.Debug(logTag+"node from handle", zap.String("source", h.Name()), zap.Stringer("georef", geo.Active))
	return
}

func orWGS84(ref srs.Reference) srs.Reference {
	if ref == nil {
		return srs.WGS84
	}
	return ref
}

func handleGeoref(h Handle, env *Env) (geo georef.Georef, err error) {
	proj := h.Projection()
	if gt, ok := h.GeoTransform(); ok && !gt.IsIdentity() {
		return georef.Affine(gt, orWGS84(proj)), nil
	}
	if set, ref := h.GCPs(); len(set) > 0 {
		return georef.GCPs(set, orWGS84(ref)), nil
	}
	grid, err := geoloc.FromMetadata(h.Metadata(DomainGeolocation), env.openReader)
	if err != nil {
		return
	}
	if grid != nil {
		ref := srs.WGS84
		if grid.SRS != "" {
			if r, e := srs.Parse(grid.SRS); e == nil {
				ref = r
			}
		}
		return georef.Grid(grid, ref), nil
	}
	return georef.Affine(georef.Identity, orWGS84(proj)), nil
}

// derive copies n under a new id. The parent is kept.
func (n *Node) derive() *Node {
	c := *n
	c.id = uuid.New()
	c.bands = make([]Band, len(n.bands))
	for i, b := range n.bands {
		c.bands[i] = b.clone()
	}
	c.meta = utils.CloneMap(n.meta)
	c.geo = n.geo.Clone()
	c.warnings = slices.Clone(n.warnings)
	return &c
}

func (n *Node) child() *Node {
	c := n.derive()
	c.parent = n
	return c
}

func (n *Node) ID() uuid.UUID { return n.id }

func (n *Node) Name() string { return "vrt:" + n.id.String() }

func (n *Node) Width() int { return n.width }

func (n *Node) Height() int { return n.height }

func (n *Node) BandCount() int { return len(n.bands) }

func (n *Node) Parent() *Node { return n.parent }

func (n *Node) Env() *Env { return n.env }

func (n *Node) Georef() georef.Georef { return n.geo.Clone() }

func (n *Node) SRS() srs.Reference { return n.geo.SRS }

func (n *Node) Prefs() Prefs { return n.prefs }

func (n *Node) ReExported() bool { return n.reexported }

func (n *Node) Warnings() []Warning { return slices.Clone(n.warnings) }

// Metadata returns a copy of the global metadata.
func (n *Node) Metadata() map[string]string { return utils.CloneMap(n.meta) }

// Band returns a copy of band i (1-based).
func (n *Node) Band(i int) (b Band, err error) {
	if i < 1 || i > len(n.bands) {
		err = fmt.Errorf("%w: %d of %d", errs.ErrBandNotFound, i, len(n.bands))
		return
	}
	return n.bands[i-1].clone(), nil
}

// Bands returns copies of all bands in order.
func (n *Node) Bands() []Band {
	out := make([]Band, len(n.bands))
	for i, b := range n.bands {
		out[i] = b.clone()
	}
	return out
}

func (n *Node) BandNames() []string {
	names := make([]string, len(n.bands))
	for i, b := range n.bands {
		names[i] = b.Name()
	}
	return names
}

// Model builds the pixel/line <-> ground transform of the active georeference
// with the node's stored preferences.
func (n *Node) Model() (georef.Model, error) {
	return n.geo.Model(n.modelOptions())
}

func (n *Node) modelOptions() georef.ModelOptions {
	opts := georef.ModelOptions{Skip: n.prefs.Skip}
	if n.prefs.TPS != nil {
		opts.TPS = *n.prefs.TPS
	}
	return opts
}

// AddBands returns a child with bands appended. Missing names are
// synthesized and made unique within the node.
func (n *Node) AddBands(bands []Band) (c *Node, err error) {
	for i, b := range bands {
		if len(b.Sources) == 0 {
			return nil, fmt.Errorf("%s band %d has no source", logTag, i+1)
		}
		if pf := b.PixelFunction(); pf != "" {
			if _, ok := n.env.Funcs.Get(pf); !ok {
				return nil, fmt.Errorf("%w: %s", errs.ErrUnknownPixelFunc, pf)
			}
		}
	}
	c = n.child()
	taken := make(map[string]bool, len(c.bands)+len(bands))
	for _, b := range c.bands {
		taken[b.Name()] = true
	}
	for _, b := range bands {
		b = b.clone()
		if b.Meta == nil {
			b.Meta = map[string]string{}
		}
		name := bandName(b, len(c.bands)+1, n.reexported, taken)
		b.Meta[KeyName] = name
		taken[name] = true
		b.DataType = b.resolveType()
		c.bands = append(c.bands, b)
	}
	return
}

// DeleteBands returns a child without the listed 1-based bands.
func (n *Node) DeleteBands(indices []int) (c *Node, err error) {
	drop := make(map[int]bool, len(indices))
	for _, i := range indices {
		if i < 1 || i > len(n.bands) {
			return nil, fmt.Errorf("%w: %d of %d", errs.ErrBandNotFound, i, len(n.bands))
		}
		drop[i] = true
	}
	c = n.child()
	c.bands = c.bands[:0]
	for i, b := range n.bands {
		if !drop[i+1] {
			c.bands = append(c.bands, b.clone())
		}
	}
	return
}

// Ancestor walks steps parents back.
func (n *Node) Ancestor(steps int) (*Node, error) {
	if steps < 0 {
		return nil, fmt.Errorf("%w: negative steps %d", errs.ErrHistoryUnderflow, steps)
	}
	cur := n
	for i := 0; i < steps; i++ {
		if cur.parent == nil {
			return nil, fmt.Errorf("%w: %d steps requested, %d available", errs.ErrHistoryUnderflow, steps, i)
		}
		cur = cur.parent
	}
	return cur, nil
}

// Depth counts the ancestors of n.
func (n *Node) Depth() (d int) {
	for cur := n.parent; cur != nil; cur = cur.parent {
		d++
	}
	return
}

// Cloned is a deep copy without a parent. Band sources keep pointing at
// the same datasets.
func (n *Node) Cloned() *Node {
	c := n.derive()
	c.parent = nil
	return c
}

// WithReExported marks the node's data as written by this library, which
// changes how fallback band names are synthesized.
func (n *Node) WithReExported(v bool) *Node {
	c := n.derive()
	c.reexported = v
	return c
}

func (n *Node) WithPrefs(p Prefs) *Node {
	c := n.derive()
	c.prefs = p
	return c
}

// WithMetadata merges md into the global metadata. Empty values delete.
func (n *Node) WithMetadata(md map[string]string) *Node {
	c := n.derive()
	merge(c.meta, md)
	return c
}

// WithBandMetadata merges md into the metadata of band i.
func (n *Node) WithBandMetadata(i int, md map[string]string) (c *Node, err error) {
	if i < 1 || i > len(n.bands) {
		return nil, fmt.Errorf("%w: %d of %d", errs.ErrBandNotFound, i, len(n.bands))
	}
	c = n.derive()
	merge(c.bands[i-1].Meta, md)
	return
}

func merge(dst, src map[string]string) {
	for k, v := range src {
		if v == "" {
			delete(dst, k)
			continue
		}
		dst[k] = v
	}
}

// WithGeoref replaces the georeference without touching the bands.
func (n *Node) WithGeoref(geo georef.Georef) *Node {
	c := n.derive()
	if geo.SRS == nil {
		geo.SRS = n.geo.SRS
	}
	c.geo = geo.Clone()
	return c
}
