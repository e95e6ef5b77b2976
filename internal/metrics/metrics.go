package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2},
		},
		[]string{"method", "endpoint"},
	)

	Normalizations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "normalizations_total",
			Help: "Score normalizations by method and result (ok or a config error reason)",
		},
		[]string{"method", "result"},
	)

	IndexOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "content_index_operations_total",
			Help: "Content indexer calls by operation and result",
		},
		[]string{"op", "result"},
	)
)

var registerOnce sync.Once

// Register adds every collector to reg once per process.
func Register(reg prometheus.Registerer) {
	registerOnce.Do(func() {
		reg.MustRegister(RequestCounter, RequestDuration, Normalizations, IndexOperations)
	})
}

func ObserveNormalization(method, result string) {
	Normalizations.WithLabelValues(method, result).Inc()
}

func ObserveIndex(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	IndexOperations.WithLabelValues(op, result).Inc()
}

// Middleware records count and latency per matched chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		endpoint := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			endpoint = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		RequestCounter.WithLabelValues(r.Method, endpoint, strconv.Itoa(status)).Inc()
		RequestDuration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
	})
}

func Handler() http.Handler { return promhttp.Handler() }
