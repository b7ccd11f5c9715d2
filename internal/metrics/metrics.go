package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kestrelworks/inkwell/internal/version"
)

type ServerMetrics struct {
	reg     *prometheus.Registry
	handler http.Handler

	inflight       prometheus.Gauge
	reqTotal       *prometheus.CounterVec
	reqDur         *prometheus.HistogramVec
	respBytes      *prometheus.HistogramVec
	httpPanicTotal prometheus.Counter
	errorsTotal    *prometheus.CounterVec
	buildInfo      *prometheus.GaugeVec

	ratelimitDeniedTotal prometheus.Counter

	profilingActive prometheus.Gauge

	// content cache metrics
	refreshTotal        *prometheus.CounterVec
	loadDuration        prometheus.Histogram
	postsLoaded         prometheus.Gauge
	seriesLoaded        prometheus.Gauge
	loadIssues          prometheus.Gauge
	contentLoadedTs     prometheus.Gauge
	contentFingerprint  *prometheus.GaugeVec

	// git gateway metrics
	gitRequestsTotal *prometheus.CounterVec
	gitTimeoutsTotal prometheus.Counter
	gitRejectedTotal *prometheus.CounterVec

	// webhook metrics
	webhookDeliveries *prometheus.CounterVec
}

// New returns a fresh registry + standard collectors + HTTP metrics
// safe labels only (method, route, code) to avoid path/cardinality explosions
func New() *ServerMetrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &ServerMetrics{
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Current number of in-flight HTTP requests",
		}),
		reqTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests by method, route, and status",
		}, []string{"method", "route", "status"}),
		reqDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Request latency by method and route",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"method", "route"}),
		respBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "Response size by method and route",
			Buckets: []float64{256, 1024, 4096, 16384, 65536, 262144, 1048576, 4194304, 16777216, 52428800},
		}, []string{"method", "route"}),
		httpPanicTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "http_panic_total",
			Help: "Total number of recovered httpserver panics",
		}),
		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Total 5xx HTTP server errors by method and route (SLI)",
		}, []string{"method", "route"}),
		buildInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "build_info",
			Help: "Build metadata (value is always 1)",
		}, []string{"app", "component", "version", "commit", "build_date", "vcs_dirty", "go_version"}),
		ratelimitDeniedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "http_requests_rate_limited_total",
			Help: "Total requests rejected by rate limiter",
		}),
		profilingActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "profiling_active",
			Help: "Whether continuous profiling is active (1) or disabled/failed (0)",
		}),
		refreshTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "content_refresh_total",
			Help: "Total content cache refreshes by result",
		}, []string{"result"}),
		loadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "content_load_duration_seconds",
			Help:    "Time to walk the content tree and build a snapshot",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		postsLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "content_posts_loaded",
			Help: "Posts in the active snapshot (all visibilities)",
		}),
		seriesLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "content_series_loaded",
			Help: "Series in the active snapshot",
		}),
		loadIssues: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "content_load_issues",
			Help: "Units skipped or truncated while building the active snapshot",
		}),
		contentLoadedTs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "content_loaded_timestamp_seconds",
			Help: "Unix timestamp of when the active snapshot was loaded",
		}),
		contentFingerprint: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "content_fingerprint_info",
			Help: "Active content fingerprint (label carries identity, value is always 1)",
		}, []string{"sha256"}),
		gitRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "git_requests_total",
			Help: "Total git smart HTTP requests by operation and status",
		}, []string{"op", "status"}),
		gitTimeoutsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "git_backend_timeouts_total",
			Help: "Total git backend processes killed after the completion timeout",
		}),
		gitRejectedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "git_requests_rejected_total",
			Help: "Total git requests rejected before spawning a backend, by reason",
		}, []string{"reason"}),
		webhookDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "webhook_deliveries_total",
			Help: "Total webhook delivery attempts by outcome",
		}, []string{"outcome"}),
	}
	reg.MustRegister(
		m.inflight,
		m.reqTotal,
		m.reqDur,
		m.respBytes,
		m.httpPanicTotal,
		m.errorsTotal,
		m.buildInfo,
		m.ratelimitDeniedTotal,
		m.profilingActive,
		m.refreshTotal,
		m.loadDuration,
		m.postsLoaded,
		m.seriesLoaded,
		m.loadIssues,
		m.contentLoadedTs,
		m.contentFingerprint,
		m.gitRequestsTotal,
		m.gitTimeoutsTotal,
		m.gitRejectedTotal,
		m.webhookDeliveries,
	)

	m.handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
	m.reg = reg
	return m
}

func (m *ServerMetrics) Handler() http.Handler {
	return m.handler
}

func (m *ServerMetrics) IncHttpPanic() {
	m.httpPanicTotal.Inc()
}

// set once at startup.
func (m *ServerMetrics) SetBuildInfoFromVersion(app, component string, vi version.Info) {
	dirty := "unknown"
	if vi.VCSDirty != nil {
		dirty = strconv.FormatBool(*vi.VCSDirty)
	}
	m.buildInfo.With(prometheus.Labels{
		"app":        app,
		"component":  component,
		"version":    vi.Version,
		"commit":     vi.Commit,
		"build_date": vi.BuildDate,
		"go_version": vi.GoVersion,
		"vcs_dirty":  dirty,
	}).Set(1)
}

func (m *ServerMetrics) IncRateLimitDenied() {
	m.ratelimitDeniedTotal.Inc()
}

func (m *ServerMetrics) SetProfilingActive(active bool) {
	if active {
		m.profilingActive.Set(1)
	} else {
		m.profilingActive.Set(0)
	}
}

func (m *ServerMetrics) IncRefresh(ok bool) {
	if ok {
		m.refreshTotal.WithLabelValues("ok").Inc()
	} else {
		m.refreshTotal.WithLabelValues("error").Inc()
	}
}

func (m *ServerMetrics) ObserveLoadDuration(d time.Duration) {
	m.loadDuration.Observe(d.Seconds())
}

func (m *ServerMetrics) SetSnapshotStats(posts, series, issues int, loadedAt time.Time, fingerprint string) {
	m.postsLoaded.Set(float64(posts))
	m.seriesLoaded.Set(float64(series))
	m.loadIssues.Set(float64(issues))
	m.contentLoadedTs.Set(float64(loadedAt.Unix()))
	m.contentFingerprint.Reset() // clear previous label value
	m.contentFingerprint.WithLabelValues(fingerprint).Set(1)
}

func (m *ServerMetrics) IncGitRequest(op string, status int) {
	m.gitRequestsTotal.WithLabelValues(op, strconv.Itoa(status)).Inc()
}

func (m *ServerMetrics) IncGitTimeout() {
	m.gitTimeoutsTotal.Inc()
}

func (m *ServerMetrics) IncGitRejected(reason string) {
	m.gitRejectedTotal.WithLabelValues(reason).Inc()
}

func (m *ServerMetrics) IncWebhookDelivery(ok bool) {
	if ok {
		m.webhookDeliveries.WithLabelValues("ok").Inc()
	} else {
		m.webhookDeliveries.WithLabelValues("error").Inc()
	}
}
