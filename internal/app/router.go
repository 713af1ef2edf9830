package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/falconrep/falconrep/internal/auth"
	"github.com/falconrep/falconrep/internal/billing"
	"github.com/falconrep/falconrep/internal/catalog"
	"github.com/falconrep/falconrep/internal/customers"
	"github.com/falconrep/falconrep/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	AuthHandler      *auth.Handler
	CatalogHandler   *catalog.Handler
	CustomersHandler *customers.Handler
	BillingHandler   *billing.Handler
	JobHandler       *jobs.Handler
	Pool             *pgxpool.Pool
	Redis            *redis.Client
	ImageDir         string
}

// NewRouter constructs the chi.Router for the local node API.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		status := "ok"
		code := http.StatusOK
		if err := params.Pool.Ping(req.Context()); err != nil {
			status = "database unreachable"
			code = http.StatusServiceUnavailable
		} else if err := params.Redis.Ping(req.Context()).Err(); err != nil {
			status = "redis unreachable"
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_, _ = w.Write([]byte(`{"status":"` + status + `"}`))
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)
	r.Route("/catalog", params.CatalogHandler.MountRoutes)
	params.CustomersHandler.MountRoutes(r)
	r.Route("/billing", params.BillingHandler.MountRoutes)
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
		params.JobHandler.MountTriggers(r)
	}

	if params.ImageDir != "" {
		fileServer := http.StripPrefix("/images/", http.FileServer(http.Dir(params.ImageDir)))
		r.Handle("/images/*", imageCacheHandler(fileServer))
	}

	return r
}

// imageCacheHandler wraps the cached-photo file server with Cache-Control
// headers so repeated catalog browsing does not refetch from disk.
func imageCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
