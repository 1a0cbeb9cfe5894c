// Package httpapi exposes the discovery pipeline's external interface:
// starting and inspecting discovery runs, and listing, reading, validating,
// and re-enriching persisted competitors.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/sells-group/competitor-intel/internal/config"
	"github.com/sells-group/competitor-intel/internal/enrichment"
	"github.com/sells-group/competitor-intel/internal/store"
)

// Deps bundles every collaborator the HTTP handlers call through.
type Deps struct {
	Store     store.Store
	Temporal  client.Client
	Worker    config.WorkerConfig
	Enricher  *enrichment.Enricher
	AllowlistOrigins []string
}

// NewRouter builds the chi router for the discovery and competitor
// endpoints, with CORS and request logging matching the rest of the
// pipeline's zap-based logging.
func NewRouter(deps Deps) http.Handler {
	h := &handler{deps: deps}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(zapLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(90 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.AllowlistOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Route("/discovery/runs", func(r chi.Router) {
		r.Post("/", h.createRun)
		r.Get("/", h.listRuns)
		r.Get("/{runID}", h.getRun)
	})

	r.Route("/competitors", func(r chi.Router) {
		r.Get("/", h.listCompetitors)
		r.Get("/{competitorID}", h.getCompetitor)
		r.Patch("/{competitorID}/validate", h.validateCompetitor)
		r.Post("/{competitorID}/enrich", h.enrichCompetitor)
	})

	return r
}

func zapLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
