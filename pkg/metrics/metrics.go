package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "noqbot"

// Outcome labels that are not error codes.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	reservationOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reservations",
			Name:      "outcomes_total",
			Help:      "Reservation engine outcomes by operation and result code.",
		},
		[]string{"operation", "result"},
	)

	slotProvisioned = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "slots",
			Name:      "provisioned_days_total",
			Help:      "Slot days handled by provisioning, split into created and skipped.",
		},
		[]string{"result"},
	)

	eventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Booking events handed to the broker.",
		},
		[]string{"event_type", "result"},
	)

	eventPublishDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "publish_duration_seconds",
			Help:      "Duration of broker publish calls.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"event_type"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		reservationOutcomes,
		slotProvisioned,
		eventsPublished,
		eventPublishDuration,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordReservation counts one engine outcome. result is either ResultSuccess
// or the error code returned to the caller.
func RecordReservation(operation, result string) {
	reservationOutcomes.WithLabelValues(operation, result).Inc()
}

func RecordProvisioned(created, skipped int) {
	slotProvisioned.WithLabelValues("created").Add(float64(created))
	slotProvisioned.WithLabelValues("skipped").Add(float64(skipped))
}

func RecordEventPublish(eventType string, duration time.Duration, err error) {
	if eventType == "" {
		eventType = "unknown"
	}
	result := ResultSuccess
	if err != nil {
		result = ResultFailure
	}
	eventsPublished.WithLabelValues(eventType, result).Inc()
	eventPublishDuration.WithLabelValues(eventType).Observe(duration.Seconds())
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(metricsPath string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == metricsPath {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		path := CanonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// CanonicalPath collapses ids out of request paths to keep label
// cardinality bounded.
func CanonicalPath(raw string) string {
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")

	// api/v1/clients/:clientId/<resource>/:id/<action>
	if len(parts) < 3 || parts[0] != "api" || parts[2] != "clients" {
		return "/" + parts[0]
	}

	out := []string{"", "api", parts[1], "clients"}
	if len(parts) > 3 {
		out = append(out, ":clientId")
	}
	if len(parts) > 4 {
		out = append(out, parts[4])
	}
	if len(parts) > 5 {
		out = append(out, ":id")
	}
	if len(parts) > 6 {
		out = append(out, parts[6])
	}
	return strings.Join(out, "/")
}
