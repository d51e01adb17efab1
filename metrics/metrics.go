// Package metrics exposes prometheus counters for the raster read path and
// mapper dispatch. A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "geovrt"

type Metrics struct {
	BandReads      *prometheus.CounterVec
	PixelFuncEvals *prometheus.CounterVec
	MapperAttempts *prometheus.CounterVec
	WarpPlans      prometheus.Counter
	CacheHits      prometheus.Counter
}

// New creates the collectors and registers them with reg when it is not
// nil.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		BandReads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "band_reads_total",
			Help:      "Band reads by source kind.",
		}, []string{"kind"}),
		PixelFuncEvals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pixel_function_evaluations_total",
			Help:      "Pixel function evaluations by function name.",
		}, []string{"function"}),
		MapperAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mapper_attempts_total",
			Help:      "Mapper dispatch attempts by mapper and result.",
		}, []string{"mapper", "result"}),
		WarpPlans: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "warp_plans_total",
			Help:      "Warp coordinate plans computed.",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "read_cache_hits_total",
			Help:      "Band reads served from the read cache.",
		}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.BandReads, m.PixelFuncEvals, m.MapperAttempts, m.WarpPlans, m.CacheHits} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) BandRead(kind string) {
	if m != nil {
		m.BandReads.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) PixelFunc(name string) {
	if m != nil {
		m.PixelFuncEvals.WithLabelValues(name).Inc()
	}
}

func (m *Metrics) MapperAttempt(mapper, result string) {
	if m != nil {
		m.MapperAttempts.WithLabelValues(mapper, result).Inc()
	}
}

func (m *Metrics) WarpPlan() {
	if m != nil {
		m.WarpPlans.Inc()
	}
}

func (m *Metrics) CacheHit() {
	if m != nil {
		m.CacheHits.Inc()
	}
}
