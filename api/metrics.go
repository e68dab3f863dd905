package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/warp/cantina/canteen"
)

// Metrics holds the Prometheus collectors exposed on /metrics. Each Metrics
// owns its registry, so tests can build routers side by side.
type Metrics struct {
	registry  *prometheus.Registry
	requests  *prometheus.HistogramVec
	workflows *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cantina",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		workflows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cantina",
			Name:      "workflow_total",
			Help:      "Sale, cancel and recharge outcomes by result code.",
		}, []string{"workflow", "outcome"}),
	}
	m.registry.MustRegister(
		m.requests,
		m.workflows,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records request latency under the matched route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unknown"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
	})
}

// ObserveWorkflow counts one workflow outcome ("ok" or the error code).
func (m *Metrics) ObserveWorkflow(workflow string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = canteen.Code(err)
	}
	m.workflows.WithLabelValues(workflow, outcome).Inc()
}
