package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tracking_service",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tracking_service",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tracking_service",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	listingRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tracking_service",
			Subsystem: "purchases",
			Name:      "listing_requests_total",
			Help:      "Total number of purchase listing pages served.",
		},
		[]string{"search"},
	)

	snapshotComputes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tracking_service",
			Subsystem: "stepper",
			Name:      "snapshot_computes_total",
			Help:      "Total number of stepper snapshots reconciled (cache misses).",
		},
	)

	trackingLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tracking_service",
			Subsystem: "tracking",
			Name:      "lookups_total",
			Help:      "Total number of tracking lookups by resolution source.",
		},
		[]string{"source"},
	)

	syncRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tracking_service",
			Subsystem: "sync",
			Name:      "runs_total",
			Help:      "Total number of document sync runs.",
		},
		[]string{"success"},
	)

	syncDocuments = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tracking_service",
			Subsystem: "sync",
			Name:      "documents_total",
			Help:      "Total number of documents imported from the upstream API.",
		},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		listingRequests,
		snapshotComputes,
		trackingLookups,
		syncRuns,
		syncDocuments,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	})
}

// RecordListing counts one served listing page.
func RecordListing(search bool) {
	listingRequests.WithLabelValues(strconv.FormatBool(search)).Inc()
}

// RecordSnapshotCompute counts one reconciled stepper snapshot.
func RecordSnapshotCompute() {
	snapshotComputes.Inc()
}

// RecordTrackingLookup counts one tracking lookup; source is "local",
// "legacy" or "miss".
func RecordTrackingLookup(source string) {
	if source == "" {
		source = "unknown"
	}
	trackingLookups.WithLabelValues(source).Inc()
}

// RecordSync counts one sync run and the documents it imported.
func RecordSync(documents int, success bool) {
	syncRuns.WithLabelValues(strconv.FormatBool(success)).Inc()
	if documents > 0 {
		syncDocuments.Add(float64(documents))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// canonicalPath collapses client-scoped routes so client IDs and folios do
// not explode the label cardinality.
func canonicalPath(raw string) string {
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	if parts[0] != "api" || len(parts) < 2 {
		return "/" + parts[0]
	}
	if parts[1] != "clients" {
		return "/api/" + parts[1]
	}
	switch {
	case len(parts) == 3:
		return "/api/clients/:client"
	case len(parts) == 4 && parts[3] == "documents":
		return "/api/clients/:client/documents"
	case len(parts) == 4:
		return "/api/clients/:folio/:type"
	case len(parts) == 6 && parts[5] == "tracking":
		return "/api/clients/:client/documents/:number/tracking"
	default:
		return "/api/clients"
	}
}
