package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "storefront",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "storefront",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	ordersPlaced = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "orders",
			Name:      "placed_total",
			Help:      "Total number of order rows created at checkout.",
		},
	)

	checkouts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "orders",
			Name:      "checkouts_total",
			Help:      "Total number of completed checkouts.",
		},
	)

	orderEmails = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "orders",
			Name:      "confirmation_emails_total",
			Help:      "Order confirmation emails by result.",
		},
		[]string{"result"},
	)

	registrations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "accounts",
			Name:      "registrations_total",
			Help:      "Accounts registered by role.",
		},
		[]string{"role"},
	)

	logins = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "accounts",
			Name:      "logins_total",
			Help:      "Login attempts by result.",
		},
		[]string{"result"},
	)

	sessionsSwept = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "sessions",
			Name:      "swept_total",
			Help:      "Expired sessions removed by the janitor.",
		},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		ordersPlaced,
		checkouts,
		orderEmails,
		registrations,
		logins,
		sessionsSwept,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
// Installed with mux.Router.Use, the matched route template becomes the path label.
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
		path := canonicalPath(r)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	})
}

// RecordCheckout records a completed checkout of n order rows.
func RecordCheckout(n int) {
	checkouts.Inc()
	ordersPlaced.Add(float64(n))
}

// RecordOrderEmail records the outcome of a confirmation email.
func RecordOrderEmail(sent bool) {
	result := "sent"
	if !sent {
		result = "failed"
	}
	orderEmails.WithLabelValues(result).Inc()
}

func RecordRegistration(role string) {
	if role == "" {
		role = "unknown"
	}
	registrations.WithLabelValues(role).Inc()
}

func RecordLogin(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	logins.WithLabelValues(result).Inc()
}

func RecordSessionsSwept(n int) {
	if n > 0 {
		sessionsSwept.Add(float64(n))
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

// canonicalPath prefers the matched mux route template so ids do not
// explode label cardinality.
func canonicalPath(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	raw := r.URL.Path
	if raw == "" || raw == "/" {
		return "/"
	}
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	if parts[0] == "uploads" {
		return "/uploads"
	}
	return "/" + parts[0]
}
