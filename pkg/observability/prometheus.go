package observability

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// =============================================================================
// Prometheus Hooks
// =============================================================================

const namespace = "pdaviz"

// Prometheus implements every hook interface on top of Prometheus collectors.
type Prometheus struct {
	gatherer prometheus.Gatherer

	FetchTotal     *prometheus.CounterVec
	FetchDuration  *prometheus.HistogramVec
	FetchStale     *prometheus.CounterVec
	LayoutDuration *prometheus.HistogramVec
	SubLayouts     prometheus.Counter
	RenderDuration *prometheus.HistogramVec
	RenderBytes    *prometheus.HistogramVec
	CacheTotal     *prometheus.CounterVec
	HTTPTotal      *prometheus.CounterVec
	HTTPDuration   *prometheus.HistogramVec
	HTTPErrors     *prometheus.CounterVec
	ServeTotal     *prometheus.CounterVec
	ServeDuration  *prometheus.HistogramVec
	WSClients      prometheus.Gauge
	WSMessages     *prometheus.CounterVec
}

// NewPrometheus registers the pdaviz collectors with reg. A nil reg uses a
// fresh registry, which keeps tests isolated from the global one.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}
	f := promauto.With(reg)

	return &Prometheus{
		gatherer: gatherer,
		FetchTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "matcher",
			Name:      "fetch_total",
			Help:      "Matcher fetches by kind and status",
		}, []string{"kind", "status"}),
		FetchDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "matcher",
			Name:      "fetch_duration_seconds",
			Help:      "Matcher fetch latency in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"kind"}),
		FetchStale: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "matcher",
			Name:      "stale_total",
			Help:      "Responses dropped because a newer request superseded them",
		}, []string{"kind"}),
		LayoutDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "layout",
			Name:      "duration_seconds",
			Help:      "Layout run time in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"mode", "status"}),
		SubLayouts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "layout",
			Name:      "sub_layouts_total",
			Help:      "Bounded sub-layouts run for high fan-out states",
		}),
		RenderDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "render",
			Name:      "duration_seconds",
			Help:      "Render time in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"format", "status"}),
		RenderBytes: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "render",
			Name:      "bytes",
			Help:      "Size of rendered artifacts",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 8),
		}, []string{"format"}),
		CacheTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "operations_total",
			Help:      "Cache operations by key type and result",
		}, []string{"key_type", "result"}),
		HTTPTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "responses_total",
			Help:      "Outgoing HTTP responses by host and status code",
		}, []string{"host", "code"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "Outgoing HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"host"}),
		HTTPErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "errors_total",
			Help:      "Outgoing HTTP requests that failed before a response",
		}, []string{"host"}),
		ServeTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "requests_total",
			Help:      "Served requests by route and status code",
		}, []string{"route", "code"}),
		ServeDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "request_duration_seconds",
			Help:      "Served request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		WSClients: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "websocket_clients",
			Help:      "Connected websocket clients",
		}),
		WSMessages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "websocket_messages_total",
			Help:      "Websocket pushes by message type and result",
		}, []string{"type", "result"}),
	}
}

// Install registers p for every hook family.
func (p *Prometheus) Install() {
	SetPipelineHooks(p)
	SetCacheHooks(p)
	SetHTTPHooks(p)
	SetServerHooks(p)
}

// Handler serves the collectors in the Prometheus text format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.gatherer, promhttp.HandlerOpts{})
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (p *Prometheus) OnFetchStart(context.Context, string) {}

func (p *Prometheus) OnFetchComplete(_ context.Context, kind string, d time.Duration, err error) {
	p.FetchTotal.WithLabelValues(kind, status(err)).Inc()
	p.FetchDuration.WithLabelValues(kind).Observe(d.Seconds())
}

func (p *Prometheus) OnFetchStale(_ context.Context, kind string) {
	p.FetchStale.WithLabelValues(kind).Inc()
}

func (p *Prometheus) OnLayoutComplete(_ context.Context, mode string, _, subLayouts int, d time.Duration, err error) {
	p.LayoutDuration.WithLabelValues(mode, status(err)).Observe(d.Seconds())
	p.SubLayouts.Add(float64(subLayouts))
}

func (p *Prometheus) OnRenderComplete(_ context.Context, format string, size int, d time.Duration, err error) {
	p.RenderDuration.WithLabelValues(format, status(err)).Observe(d.Seconds())
	if err == nil {
		p.RenderBytes.WithLabelValues(format).Observe(float64(size))
	}
}

func (p *Prometheus) OnCacheHit(_ context.Context, keyType string) {
	p.CacheTotal.WithLabelValues(keyType, "hit").Inc()
}

func (p *Prometheus) OnCacheMiss(_ context.Context, keyType string) {
	p.CacheTotal.WithLabelValues(keyType, "miss").Inc()
}

func (p *Prometheus) OnCacheSet(_ context.Context, keyType string, _ int) {
	p.CacheTotal.WithLabelValues(keyType, "set").Inc()
}

func (p *Prometheus) OnRequest(context.Context, string, string, string) {}

func (p *Prometheus) OnResponse(_ context.Context, _, host, _ string, code int, d time.Duration) {
	p.HTTPTotal.WithLabelValues(host, strconv.Itoa(code)).Inc()
	p.HTTPDuration.WithLabelValues(host).Observe(d.Seconds())
}

func (p *Prometheus) OnError(_ context.Context, _, host, _ string, _ error) {
	p.HTTPErrors.WithLabelValues(host).Inc()
}

func (p *Prometheus) OnServe(_ context.Context, route string, code int, d time.Duration) {
	p.ServeTotal.WithLabelValues(route, strconv.Itoa(code)).Inc()
	p.ServeDuration.WithLabelValues(route).Observe(d.Seconds())
}

func (p *Prometheus) OnClients(n int) {
	p.WSClients.Set(float64(n))
}

func (p *Prometheus) OnPush(msgType string, dropped bool) {
	result := "sent"
	if dropped {
		result = "dropped"
	}
	p.WSMessages.WithLabelValues(msgType, result).Inc()
}

var (
	_ PipelineHooks = (*Prometheus)(nil)
	_ CacheHooks    = (*Prometheus)(nil)
	_ HTTPHooks     = (*Prometheus)(nil)
	_ ServerHooks   = (*Prometheus)(nil)
)
