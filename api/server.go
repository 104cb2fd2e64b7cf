/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:     Unique ID per request for tracing
  2. RealIP:        Client address behind proxies
  3. requestLogger: One logrus line per request
  4. crashOnPanic:  A panic is a broken engine invariant: log and exit
  5. CORS:          Cross-origin requests for the frontend
  6. RequireCaller: (under /api) caller identity resolution

PANICS:
  chi's Recoverer is not used. A panic inside a store callback means an
  engine invariant no longer holds, so the process logs at fatal and exits.

ROUTE GROUPS:
  /api/*      Engine operations (caller required)
  /metrics    Prometheus scrape endpoint
  /healthz    Liveness

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, resolver CallerResolver, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.Log))
	r.Use(crashOnPanic(h.Log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", CallerHeader},
		AllowCredentials: true,
	}))

	r.Get("/healthz", h.Healthz)
	r.Handle("/metrics", promhttp.Handler())

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(RequireCaller(resolver))

		r.Route("/users", func(r chi.Router) {
			r.Post("/", h.Register)
			r.Get("/me/role", h.GetRole)
			r.Get("/me/registered", h.IsRegistered)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/actions", h.RestrictedAction)
			r.Post("/wallets/{identity}/credit", h.CreditWallet)
		})
		r.Get("/audit", h.ListAudit)

		r.Route("/savings/goals", func(r chi.Router) {
			r.Get("/", h.ListGoals)
			r.Post("/", h.SetGoal)
			r.Post("/{index}/progress", h.UpdateProgress)
		})

		r.Route("/staking", func(r chi.Router) {
			r.Post("/sessions", h.OpenStake)
			r.Get("/summary", h.StakingSummary)
		})

		r.Route("/wallet", func(r chi.Router) {
			r.Post("/", h.CreateWallet)
			r.Get("/balance", h.GetBalance)
		})

		r.Route("/badges", func(r chi.Router) {
			r.Get("/", h.ListBadges)
			r.Post("/", h.AwardBadge)
		})

		r.Route("/leaderboard", func(r chi.Router) {
			r.Get("/", h.GetLeaderboard)
			r.Post("/score", h.UpdateScore)
		})
	})

	return r
}

func requestLogger(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.WithFields(logrus.Fields{
				"request_id": middleware.GetReqID(r.Context()),
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     ww.Status(),
				"bytes":      ww.BytesWritten(),
				"duration":   time.Since(start).String(),
			}).Info("request")
		})
	}
}

func crashOnPanic(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					log.WithFields(logrus.Fields{
						"request_id": middleware.GetReqID(r.Context()),
						"panic":      rec,
					}).Fatal("invariant violation while serving request")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
