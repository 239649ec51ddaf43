// Package app assembles the HTTP router from configuration and handlers.
package app

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fairyhunter13/resume-match-engine/internal/adapter/httpserver"
	"github.com/fairyhunter13/resume-match-engine/internal/adapter/observability"
	"github.com/fairyhunter13/resume-match-engine/internal/config"
)

// ParseOrigins splits a comma separated origin list.
func ParseOrigins(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		out = []string{"*"}
	}
	return out
}

// BuildRouter wires middleware and routes around the handler set.
func BuildRouter(cfg config.Config, srv *httpserver.Server) http.Handler {
	r := chi.NewRouter()

	r.Use(httpserver.Recoverer())
	r.Use(httpserver.RequestID())
	r.Use(httpserver.TimeoutMiddleware(60 * time.Second))
	r.Use(httpserver.TraceMiddleware)
	r.Use(httpserver.AccessLog())
	r.Use(observability.HTTPMetricsMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   ParseOrigins(cfg.CORSAllowOrigins),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", srv.ReadyzHandler())
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		if cfg.RateLimitPerMin > 0 {
			r.Use(httprate.LimitByIP(cfg.RateLimitPerMin, 1*time.Minute))
		}
		r.Post("/v1/resumes", srv.ResumeUploadHandler())
		r.Post("/v1/postings", srv.PostingUploadHandler())
		r.Post("/v1/match/candidates", srv.MatchCandidatesHandler())
		r.Post("/v1/match/jobs", srv.MatchJobsHandler())
		r.Post("/v1/match/recompute", srv.RecomputeHandler())
	})

	r.Get("/v1/match/resume/{id}", srv.MatchesByResumeHandler())
	r.Get("/v1/match/posting/{id}", srv.MatchesByPostingHandler())

	return httpserver.SecurityHeaders(r)
}
