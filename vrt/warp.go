package vrt

import (
	"fmt"
	"math"
	"sync"

	"go.uber.org/zap"

	"github.com/wgdzlh/geovrt/errs"
	"github.com/wgdzlh/geovrt/gcp"
	"github.com/wgdzlh/geovrt/georef"
	"github.com/wgdzlh/geovrt/log"
	"github.com/wgdzlh/geovrt/raster"
	"github.com/wgdzlh/geovrt/srs"
)

// WarpOptions describe the destination grid of Warped. GCPs take
// precedence over GeoTransform.
type WarpOptions struct {
	SRS          srs.Reference // defaults to the source reference
	GCPs         gcp.Set
	GeoTransform *georef.GeoTransform
	Width        int
	Height       int
	Resample     raster.Resample
	TPS          *bool
	SkipGCPs     int
	WorkingType  raster.DataType // Unknown keeps the band types
	// stored preferences of the destination
	DstPrefs     Prefs
}

// chooseTPS: explicit > destination > source > false.
func chooseTPS(explicit *bool, dst, src Prefs) bool {
	for _, p := range []*bool{explicit, dst.TPS, src.TPS} {
		if p != nil {
			return *p
		}
	}
	return false
}

// chooseSkip: explicit > destination > source > 1.
func chooseSkip(explicit int, dst, src Prefs) int {
	for _, k := range []int{explicit, dst.Skip, src.Skip} {
		if k > 0 {
			return k
		}
	}
	return 1
}

func (o WarpOptions) georef(ref srs.Reference) (geo georef.Georef, err error) {
	switch {
	case len(o.GCPs) > 0:
		geo = georef.GCPs(o.GCPs.Clone(), ref)
	case o.GeoTransform != nil:
		geo = georef.Affine(*o.GeoTransform, ref)
	default:
		err = fmt.Errorf("warp destination: %w", errs.ErrNoGeoreference)
	}
	return
}

// warpPlan holds, per destination pixel, the source pixel/line it samples.
// The coordinates are computed on first read.
type warpPlan struct {
	once     sync.Once
	width    int
	height   int
	dstModel georef.Model
	toSrc    srs.Transformer
	srcModel georef.Model
	xs, ys   []float64
	err      error
	node     *Node
}

func (p *warpPlan) build() {
	n := p.width * p.height
	p.xs, p.ys = make([]float64, n), make([]float64, n)
	for j := 0; j < p.height; j++ {
		for i := 0; i < p.width; i++ {
			p.xs[j*p.width+i] = float64(i) + 0.5
			p.ys[j*p.width+i] = float64(j) + 0.5
		}
	}
	p.dstModel.Forward(p.xs, p.ys)
	if p.err = p.toSrc.Transform(p.xs, p.ys); p.err != nil {
		return
	}
	p.srcModel.Inverse(p.xs, p.ys)
	p.node.env.Metrics.WarpPlan()
	log.Debug(logTag+"warp plan built", zap.Stringer("source", p.node.id), zap.Int("width", p.width), zap.Int("height", p.height))
}

// warped is the dataset behind the bands of a warped node.
type warped struct {
	src   *Node
	plan  *warpPlan
	alg   raster.Resample
	wtype raster.DataType
}

func (w *warped) Name() string   { return "warp:" + w.src.id.String() }
func (w *warped) Width() int     { return w.plan.width }
func (w *warped) Height() int    { return w.plan.height }
func (w *warped) BandCount() int { return w.src.BandCount() }

func (w *warped) Read(band int, win raster.Window, outW, outH int, alg raster.Resample) (out *raster.Array, err error) {
	w.plan.once.Do(w.plan.build)
	if w.plan.err != nil {
		return nil, w.plan.err
	}
	out = raster.Filled(win.W, win.H, math.NaN())
	if from, ok := w.plan.sourceWindow(win, w.src.width, w.src.height); ok {
		var a *raster.Array
		if a, err = w.src.Read(band, from, from.W, from.H, raster.Nearest); err != nil {
			return nil, err
		}
		w.sample(out, a, win, from)
	}
	if outW != win.W || outH != win.H {
		out = raster.Extract(out, raster.Full(win.W, win.H), outW, outH, alg)
	}
	return
}

// sample fills out, the destination window win, from a, the source
// window from.
func (w *warped) sample(out, a *raster.Array, win, from raster.Window) {
	if a.Im != nil {
		out.Im = raster.Filled(win.W, win.H, math.NaN()).Re
	}
	ox, oy := float64(from.X), float64(from.Y)
	for j := 0; j < win.H; j++ {
		y := win.Y + j
		if y < 0 || y >= w.plan.height {
			continue
		}
		for i := 0; i < win.W; i++ {
			x := win.X + i
			if x < 0 || x >= w.plan.width {
				continue
			}
			k := j*win.W + i
			sx, sy := w.plan.xs[y*w.plan.width+x]-ox, w.plan.ys[y*w.plan.width+x]-oy
			out.Re[k] = w.wtype.Round(raster.Sample(a.Re, a.Width, a.Height, sx, sy, w.alg))
			if out.Im != nil {
				out.Im[k] = w.wtype.Round(raster.Sample(a.Im, a.Width, a.Height, sx, sy, w.alg))
			}
		}
	}
}

// sourceWindow is the part of the srcW x srcH source that the destination
// window win samples, widened by the kernel margin. ok is false when win
// samples nothing inside the source.
func (p *warpPlan) sourceWindow(win raster.Window, srcW, srcH int) (from raster.Window, ok bool) {
	x0, y0 := math.Inf(1), math.Inf(1)
	x1, y1 := math.Inf(-1), math.Inf(-1)
	for y := max(win.Y, 0); y < min(win.Y+win.H, p.height); y++ {
		for x := max(win.X, 0); x < min(win.X+win.W, p.width); x++ {
			sx, sy := p.xs[y*p.width+x], p.ys[y*p.width+x]
			if math.IsNaN(sx) || math.IsNaN(sy) || math.IsInf(sx, 0) || math.IsInf(sy, 0) {
				continue
			}
			x0, x1 = math.Min(x0, sx), math.Max(x1, sx)
			y0, y1 = math.Min(y0, sy), math.Max(y1, sy)
		}
	}
	lx, ly := math.Max(math.Floor(x0)-readMargin, 0), math.Max(math.Floor(y0)-readMargin, 0)
	hx, hy := math.Min(math.Ceil(x1)+readMargin, float64(srcW)), math.Min(math.Ceil(y1)+readMargin, float64(srcH))
	if hx <= lx || hy <= ly {
		return
	}
	return raster.Window{X: int(lx), Y: int(ly), W: int(hx - lx), H: int(hy - ly)}, true
}

// Warped reprojects n onto the destination grid in opts. Destination
// pixels that do not map into n read as NaN.
func (n *Node) Warped(opts WarpOptions) (c *Node, err error) {
	if err = checkSize(opts.Width, opts.Height); err != nil {
		return
	}
	ref := opts.SRS
	if ref == nil {
		ref = n.geo.SRS
	}
	dstGeo, err := opts.georef(ref)
	if err != nil {
		return
	}
	tps := chooseTPS(opts.TPS, opts.DstPrefs, n.prefs)
	skip := chooseSkip(opts.SkipGCPs, opts.DstPrefs, n.prefs)
	mo := georef.ModelOptions{TPS: tps, Skip: skip}
	srcModel, err := n.geo.Model(mo)
	if err != nil {
		return nil, fmt.Errorf("warp source: %w", err)
	}
	dstModel, err := dstGeo.Model(mo)
	if err != nil {
		return nil, fmt.Errorf("warp destination: %w", err)
	}
	toSrc, err := srs.NewTransformer(ref, n.geo.SRS)
	if err != nil {
		return
	}
	ds := &warped{
		src: n,
		plan: &warpPlan{
			width:    opts.Width,
			height:   opts.Height,
			dstModel: dstModel,
			toSrc:    toSrc,
			srcModel: srcModel,
			node:     n,
		},
		alg:   opts.Resample,
		wtype: opts.WorkingType,
	}

	c = n.child()
	c.width, c.height = opts.Width, opts.Height
	c.geo = dstGeo
	c.prefs = Prefs{TPS: &tps, Skip: skip}
	for i, b := range n.bands {
		nb := b.clone()
		delete(nb.Meta, KeyPixelFunction)
		nb.Sources = []Source{{Ref: ds, Band: i + 1, DataType: b.DataType}}
		if opts.WorkingType != raster.Unknown && !b.DataType.IsComplex() {
			nb.DataType = opts.WorkingType
		}
		c.bands[i] = nb
	}
	if opts.Resample.Averaging() {
		c.warnings = append(c.warnings, WarnAverageAsNearest)
		log.Warn(logTag+"average resample is not supported by warp, using nearest", zap.Stringer("source", n.id))
	}
	log.Info(logTag+"warped", zap.Stringer("source", n.id), zap.Int("width", opts.Width), zap.Int("height", opts.Height),
		zap.Bool("tps", tps), zap.Int("skip", skip), zap.Stringer("resample", opts.Resample))
	return
}
