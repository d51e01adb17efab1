package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func gathered(t *testing.T, reg *prometheus.Registry, name string) float64 {
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	var sum float64
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			sum += m.GetCounter().GetValue()
		}
	}
	return sum
}

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	if err != nil {
		t.Fatal(err)
	}
	m.BandRead("source")
	m.BandRead("source")
	m.PixelFunc("UVToMagnitude")
	m.MapperAttempt("generic", "matched")
	m.WarpPlan()
	if v := gathered(t, reg, "geovrt_band_reads_total"); v != 2 {
		t.Fatalf("band reads = %v", v)
	}
	if v := gathered(t, reg, "geovrt_warp_plans_total"); v != 1 {
		t.Fatalf("warp plans = %v", v)
	}
	if _, err = New(reg); err == nil {
		t.Fatal("duplicate registration accepted")
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.BandRead("x")
	m.PixelFunc("x")
	m.MapperAttempt("x", "y")
	m.WarpPlan()
	m.CacheHit()
}
