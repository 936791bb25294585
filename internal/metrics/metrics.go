// Package metrics exposes Prometheus counters for price edits and exports.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/davidluisklein/wire-price-change/pkg/pricedit"
)

const namespace = "pricedit"

// Recorder implements pricedit.Recorder on a private registry.
type Recorder struct {
	registry *prometheus.Registry

	exports       *prometheus.CounterVec
	exportErrors  *prometheus.CounterVec
	engineRuns    *prometheus.CounterVec
	priceUpdates  prometheus.Counter
	sessionsOpen  prometheus.Gauge
	requestsTotal *prometheus.CounterVec
}

var _ pricedit.Recorder = (*Recorder)(nil)

// New creates a Recorder with Go runtime and process collectors attached.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exports_total",
			Help:      "Completed sheet exports by tier and staleness.",
		}, []string{"tier", "stale"}),
		exportErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "export_failures_total",
			Help:      "Exports where every tier failed.",
		}, []string{"sheet"}),
		engineRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "engine_runs_total",
			Help:      "External recalculation runs by engine and result.",
		}, []string{"engine", "result"}),
		priceUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "price_updates_total",
			Help:      "Successful writes of the price cells.",
		}),
		sessionsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_open",
			Help:      "Workbook sessions currently held by the server.",
		}),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern and status code.",
		}, []string{"route", "code"}),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.exports,
		r.exportErrors,
		r.engineRuns,
		r.priceUpdates,
		r.sessionsOpen,
		r.requestsTotal,
	)
	return r
}

// ExportCompleted counts a finished export.
func (r *Recorder) ExportCompleted(tier pricedit.Tier, stale bool) {
	r.exports.WithLabelValues(string(tier), boolLabel(stale)).Inc()
}

// ExportFailed counts an export that produced nothing.
func (r *Recorder) ExportFailed(sheet string) {
	r.exportErrors.WithLabelValues(sheet).Inc()
}

// EngineRun counts one external recalculation attempt.
func (r *Recorder) EngineRun(engine string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.engineRuns.WithLabelValues(engine, result).Inc()
}

// PricesUpdated counts a successful price write.
func (r *Recorder) PricesUpdated() {
	r.priceUpdates.Inc()
}

// SessionOpened increments the open session gauge.
func (r *Recorder) SessionOpened() { r.sessionsOpen.Inc() }

// SessionClosed decrements the open session gauge.
func (r *Recorder) SessionClosed() { r.sessionsOpen.Dec() }

// Request counts an HTTP request served by route.
func (r *Recorder) Request(route string, code int) {
	r.requestsTotal.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
