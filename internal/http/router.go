package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"videoworker/internal/http/handlers"
	"videoworker/internal/infra"
	"videoworker/internal/middleware"
)

// RouterOptions carries the request policies of the API surface.
type RouterOptions struct {
	RateLimitPerMin int
	CORSOrigins     []string
	Logger          infra.Logger
}

func NewRouter(app *handlers.App, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(opts.Logger),
		middleware.CORS(opts.CORSOrigins),
	)

	r.Get("/v1/healthz", app.Health)
	r.Method(http.MethodGet, "/metrics", app.Metrics())

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(opts.RateLimitPerMin, time.Minute))
		r.Post("/v1/run", app.Run)
	})

	return r
}
