/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     zap request log (method, path, status, duration, request id)
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the point-of-sale frontend
  5. Metrics:    Prometheus latency histogram per route
  6. Actor:      Operator identity from the configured header

ROUTE GROUPS:
  /sales, /recharges    Workflows
  /students, /products  Maintenance
  /reports/*            JSON and CSV reports
  /scenarios/*          Demo data (only when enabled)
  /healthz, /metrics    Ops

SECURITY NOTE:
  Authentication happens upstream. The session proxy sets the actor header;
  this service trusts it.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(requestLogger(h.log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   h.corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", h.actorHeader},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: false,
	}))
	r.Use(h.metrics.Middleware)
	r.Use(actorMiddleware(h.actorHeader))

	r.Get("/healthz", h.Health)
	r.Method(http.MethodGet, "/metrics", h.metrics.Handler())

	// Workflow routes
	r.Route("/sales", func(r chi.Router) {
		r.Post("/", h.PostSale)
		r.Post("/cancel", h.CancelSale)
		r.Get("/{id}", h.GetSale)
	})
	r.Post("/recharges", h.Recharge)

	// Student routes
	r.Route("/students", func(r chi.Router) {
		r.Get("/", h.ListStudents)
		r.Post("/", h.CreateStudent)
		r.Put("/", h.UpdateStudent)
	})

	// Product routes
	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.ListProducts)
		r.Post("/", h.CreateProduct)
	})

	// Report routes
	r.Route("/reports", func(r chi.Router) {
		r.Get("/sales", h.SalesReport)
		r.Get("/recharges", h.RechargesReport)
		r.Get("/balances", h.BalancesReport)
	})

	// Scenario routes
	if h.demoEnabled {
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})
	}

	return r
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

// requestLogger logs each request once it completes. 5xx are errors.
func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
				zap.Int("bytes_out", ww.BytesWritten()),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			}
			switch {
			case status >= http.StatusInternalServerError:
				log.Error("http_request", fields...)
			case r.URL.Path == "/metrics" || r.URL.Path == "/healthz":
				log.Debug("http_request", fields...)
			default:
				log.Info("http_request", fields...)
			}
		})
	}
}

type ctxKey int

const actorKey ctxKey = iota

// actorMiddleware stores the operator id from header in the request context.
func actorMiddleware(header string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if actor := strings.TrimSpace(r.Header.Get(header)); actor != "" {
				r = r.WithContext(context.WithValue(r.Context(), actorKey, actor))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// actorFrom returns the operator recorded by actorMiddleware, or fallback
// (the body's usuario_criou) when the header was absent.
func actorFrom(r *http.Request, fallback string) string {
	if actor, ok := r.Context().Value(actorKey).(string); ok {
		return actor
	}
	return strings.TrimSpace(fallback)
}
