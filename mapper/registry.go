// Package mapper turns opened sources into raster nodes. Handlers recognize
// one product family each and describe its bands; the Registry tries them
// in order with a generic handler last.
package mapper

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/wgdzlh/geovrt/errs"
	"github.com/wgdzlh/geovrt/log"
	"github.com/wgdzlh/geovrt/metrics"
	"github.com/wgdzlh/geovrt/utils"
	"github.com/wgdzlh/geovrt/vrt"
)

const logTag = "Registry:"

// names of the shipped handlers
const (
	NameGeneric   = "generic"
	NameNCEPWind  = "ncep_wind"
	NameOBPGL2    = "obpg_l2"
	NameRadarsat2 = "radarsat2"
	// reported when every handler declined and the bands were copied as is
	NameTrivial = "trivial"
)

// KeyTime holds the acquisition time in RFC 3339.
const KeyTime = "time"

// OptGCPCount is the number of GCPs per axis sampled from geolocation grids.
const OptGCPCount = "GCP_COUNT"

// Request is what a handler sees of a source. Meta is a private copy of the
// default domain metadata of Handle.
type Request struct {
	Source  string
	Handle  vrt.Handle // nil when the source could not be opened
	Meta    map[string]string
	Options map[string]string
	Opener  vrt.Opener
	Env     *vrt.Env
}

func (r Request) intOption(key string, def int) int {
	if v, err := strconv.Atoi(r.Options[key]); err == nil && v > 0 {
		return v
	}
	return def
}

func (r Request) open(name string) (vrt.Handle, error) {
	if r.Opener == nil {
		return nil, fmt.Errorf("%w: %s (no opener)", errs.ErrCannotOpen, name)
	}
	return r.Opener.Open(name)
}

// Handler builds a node for req or returns errs.ErrNotApplicable.
type Handler func(req Request) (*vrt.Node, error)

type Registry struct {
	mu           sync.RWMutex
	names        []string
	handlers     map[string]Handler
	fallback     string
	fallbackFunc Handler
	metrics      *metrics.Metrics
}

// NewRegistry returns an empty registry. m may be nil.
func NewRegistry(m *metrics.Metrics) *Registry {
	return &Registry{handlers: map[string]Handler{}, metrics: m}
}

// Default returns a registry with the shipped handlers and generic as the
// fallback.
func Default(m *metrics.Metrics) *Registry {
	r := NewRegistry(m)
	r.Register(NameNCEPWind, NCEPWind)
	r.Register(NameOBPGL2, OBPGL2)
	r.Register(NameRadarsat2, Radarsat2)
	r.RegisterFallback(NameGeneric, Generic)
	return r
}

// Register appends h to the dispatch order, replacing a handler of the same
// name in place.
func (r *Registry) Register(name string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.handlers[name]; !ok {
		r.names = append(r.names, name)
	}
	r.handlers[name] = h
}

// RegisterFallback sets the handler tried after all others.
func (r *Registry) RegisterFallback(name string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback, r.fallbackFunc = name, h
}

// Reorder moves the named handlers to the front of the dispatch order.
func (r *Registry) Reorder(names []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	front := make([]string, 0, len(r.names))
	for _, name := range names {
		if _, ok := r.handlers[name]; !ok {
			return fmt.Errorf("%w: %s", errs.ErrMapperNotFound, name)
		}
		if !slices.Contains(front, name) {
			front = append(front, name)
		}
	}
	for _, name := range r.names {
		if !slices.Contains(front, name) {
			front = append(front, name)
		}
	}
	r.names = front
	return nil
}

// Names lists handlers in dispatch order, fallback last.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := slices.Clone(r.names)
	if r.fallbackFunc != nil {
		out = append(out, r.fallback)
	}
	return out
}

func (r *Registry) lookup(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if h, ok := r.handlers[name]; ok {
		return h, true
	}
	if r.fallbackFunc != nil && name == r.fallback {
		return r.fallbackFunc, true
	}
	return nil, false
}

func (r *Registry) try(name string, h Handler, req Request) (n *vrt.Node, err error) {
	req.Meta = utils.CloneMap(req.Meta)
	n, err = h(req)
	switch {
	case err == nil:
		r.metrics.MapperAttempt(name, "ok")
	case errors.Is(err, errs.ErrNotApplicable):
		r.metrics.MapperAttempt(name, "not_applicable")
	default:
		r.metrics.MapperAttempt(name, "error")
	}
	return
}

// Resolve builds the node for req. A non-empty name runs only that
// handler. Otherwise handlers are tried in order until one accepts; when
// none does the bands of req.Handle are copied one to one.
func (r *Registry) Resolve(req Request, name string) (n *vrt.Node, used string, err error) {
	if name != "" {
		h, ok := r.lookup(name)
		if !ok {
			return nil, "", fmt.Errorf("%w: %s", errs.ErrMapperNotFound, name)
		}
		if n, err = r.try(name, h, req); err != nil {
			if errors.Is(err, errs.ErrNotApplicable) {
				return nil, "", fmt.Errorf("%w: %s does not apply to %s", errs.ErrNoMapperMatched, name, req.Source)
			}
			return nil, "", fmt.Errorf("mapper %s: %w", name, err)
		}
		return n, name, nil
	}
	for _, name = range r.Names() {
		h, _ := r.lookup(name)
		n, err = r.try(name, h, req)
		if err == nil {
			log.Info(logTag+"source resolved", zap.String("source", req.Source), zap.String("mapper", name))
			return n, name, nil
		}
		if !errors.Is(err, errs.ErrNotApplicable) {
			return nil, "", fmt.Errorf("mapper %s: %w", name, err)
		}
		log.Debug(logTag+"mapper not applicable", zap.String("source", req.Source), zap.String("mapper", name))
	}
	if req.Handle == nil {
		return nil, "", fmt.Errorf("%w: %s", errs.ErrCannotOpen, req.Source)
	}
	if req.Handle.BandCount() == 0 {
		return nil, "", fmt.Errorf("%w: %s has no bands", errs.ErrNoMapperMatched, req.Source)
	}
	if n, err = Trivial(req); err != nil {
		return nil, "", err
	}
	log.Warn(logTag+"no mapper matched, bands copied as is", zap.String("source", req.Source))
	return n, NameTrivial, nil
}

// Open opens source with opener and resolves it. A source the opener
// rejects is still offered to the handlers without a handle.
func (r *Registry) Open(source string, opener vrt.Opener, name string, opts map[string]string, env *vrt.Env) (n *vrt.Node, used string, err error) {
	req := Request{Source: source, Options: opts, Opener: opener, Env: env}
	if opener != nil {
		h, openErr := opener.Open(source)
		if openErr != nil {
			log.Warn(logTag+"open failed", zap.String("source", source), zap.Error(openErr))
		} else {
			req.Handle = h
			req.Meta = h.Metadata(vrt.DomainDefault)
		}
	}
	return r.Resolve(req, name)
}

// Trivial copies every band of req.Handle with its metadata.
func Trivial(req Request) (n *vrt.Node, err error) {
	if req.Handle == nil {
		return nil, errs.ErrNotApplicable
	}
	n, err = vrt.NewFromHandle(req.Handle, req.Env)
	if err != nil {
		return
	}
	bands := make([]vrt.Band, req.Handle.BandCount())
	for i := range bands {
		bands[i] = handleBand(req.Handle, i+1)
	}
	return n.AddBands(bands)
}

func handleBand(h vrt.Handle, i int) vrt.Band {
	t := h.BandDataType(i)
	md := h.BandMetadata(i)
	delete(md, vrt.KeyPixelFunction)
	return vrt.Band{
		Sources:  []vrt.Source{{Ref: h, Band: i, DataType: t}},
		Meta:     md,
		DataType: t,
	}
}
