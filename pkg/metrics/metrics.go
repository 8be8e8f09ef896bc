// Package metrics defines the stats surface an Index reports through and
// a Prometheus-backed implementation of it.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector captures counters, gauges and histograms. A lookup path calls
// this on every scan it performs; it must never block or allocate on the
// hot path beyond what the underlying client does.
type Collector interface {
	IncCounter(name string, labels map[string]string, delta float64)
	SetGauge(name string, labels map[string]string, value float64)
	ObserveHistogram(name string, labels map[string]string, value float64)
}

const namespace = "lsmkv"

// Names used by pkg/lookup when reporting per-source scan activity.
const (
	CounterScanTxW   = "scan_txw_total"
	CounterScanCache = "scan_cache_total"
	CounterScanMem   = "scan_mem_total"
	CounterScanRun   = "scan_run_total"
	CounterUpserts   = "upserts_applied_total"
	CounterRestarts  = "lookup_restarts_total"
	HistogramLatency = "lookup_latency_seconds"
)

// PromCollector backs Collector with the real Prometheus client, following
// the registry-per-instance pattern: callers own a *prometheus.Registry and
// decide how (or whether) to expose it over HTTP.
type PromCollector struct {
	reg        *prometheus.Registry
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
}

// NewPromCollector builds a collector with the fixed set of lookup-path
// metrics pre-registered under one source_tag-labeled family per counter.
func NewPromCollector(reg *prometheus.Registry) *PromCollector {
	c := &PromCollector{
		reg:        reg,
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}

	for _, name := range []string{CounterScanTxW, CounterScanCache, CounterScanMem, CounterScanRun, CounterUpserts, CounterRestarts} {
		cv := prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      name + " observed during point lookups",
		}, []string{"source_tag"})
		c.counters[name] = cv
		reg.MustRegister(cv)
	}

	hv := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      HistogramLatency,
		Help:      "point lookup wall time in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{})
	c.histograms[HistogramLatency] = hv
	reg.MustRegister(hv)

	return c
}

func (c *PromCollector) IncCounter(name string, labels map[string]string, delta float64) {
	cv, ok := c.counters[name]
	if !ok {
		return
	}
	cv.With(promLabels(labels, "source_tag")).Add(delta)
}

func (c *PromCollector) SetGauge(name string, labels map[string]string, value float64) {
	gv, ok := c.gauges[name]
	if !ok {
		return
	}
	gv.With(promLabels(labels)).Set(value)
}

func (c *PromCollector) ObserveHistogram(name string, labels map[string]string, value float64) {
	hv, ok := c.histograms[name]
	if !ok {
		return
	}
	hv.With(prometheus.Labels{}).Observe(value)
}

func promLabels(labels map[string]string, keys ...string) prometheus.Labels {
	out := make(prometheus.Labels, len(keys))
	for _, k := range keys {
		out[k] = labels[k]
	}
	return out
}

// Handler exposes the collector's registry over /metrics.
func (c *PromCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}

// NopCollector discards everything; used where no Collector is configured.
type NopCollector struct{}

func (NopCollector) IncCounter(string, map[string]string, float64)      {}
func (NopCollector) SetGauge(string, map[string]string, float64)       {}
func (NopCollector) ObserveHistogram(string, map[string]string, float64) {}
