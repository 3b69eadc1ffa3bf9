package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sakif/snippetshare/internal/auth"
	"github.com/sakif/snippetshare/internal/docs"
	"github.com/sakif/snippetshare/internal/handler"
	"github.com/sakif/snippetshare/internal/metrics"
	"github.com/sakif/snippetshare/internal/middleware"
)

// Routes is everything the router needs. Server.New fills it from the
// configuration; the router tests fill it with in-memory dependencies.
type Routes struct {
	Auth     *handler.AuthHandler
	Snippets *handler.SnippetHandler
	Users    *handler.UserHandler
	Contact  *handler.ContactHandler
	Health   *handler.HealthHandler
	Docs     *docs.Handler

	Guard    *auth.Guard
	Metrics  *metrics.Metrics
	Registry *prometheus.Registry

	// AuthLimiter throttles /auth per client IP. nil disables it.
	AuthLimiter *middleware.RateLimiter
	CORSOrigins []string
	Logger      *slog.Logger
}

// NewRouter builds the HTTP handler.
//
// ROUTE STRUCTURE:
//
//	POST   /auth/register                          register
//	POST   /auth/login                             email + password → token pair
//	POST   /auth/login/refresh                     refresh → access
//	POST   /auth/logout                            (auth) revoke tokens
//	GET    /auth/user, PUT, PATCH                  (auth) own profile
//	POST   /auth/password-reset                    email a reset link
//	POST   /auth/password-reset/validate_token     check a reset token
//	POST   /auth/password-reset/confirm            set a new password
//	GET    /auth/github/login, /auth/github/callback
//	GET    /snippets, GET /snippets/{id}, GET /snippets/{id}/highlight  (optional auth)
//	POST   /snippets, PUT/PATCH/DELETE /snippets/{id}                   (auth)
//	GET    /users, GET /users/{id}                 (auth)
//	POST   /contact
//	GET    /api/schema, /api/schema.json, /api/docs
//	GET    /healthz, /readyz, /metrics
//
// MIDDLEWARE ORDER MATTERS:
// RequestID first so every later log line can carry it, RealIP before
// anything that looks at the client address (logging, rate limiting),
// Recoverer inside Logger so a panic is still logged as a 500.
func NewRouter(rt Routes) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(rt.Logger))
	r.Use(middleware.Metrics(rt.Metrics))
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.StripSlashes)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   rt.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Location", "Retry-After", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           int((12 * time.Hour).Seconds()),
	}))

	r.NotFound(handler.NotFound)
	r.MethodNotAllowed(handler.MethodNotAllowed)

	r.Route("/auth", func(r chi.Router) {
		if rt.AuthLimiter != nil {
			r.Use(rt.AuthLimiter.Middleware)
		}

		r.Post("/register", rt.Auth.HandleRegister)
		r.Post("/login", rt.Auth.HandleLogin)
		r.Post("/login/refresh", rt.Auth.HandleRefresh)
		r.Post("/password-reset", rt.Auth.HandlePasswordReset)
		r.Post("/password-reset/validate_token", rt.Auth.HandlePasswordResetValidate)
		r.Post("/password-reset/confirm", rt.Auth.HandlePasswordResetConfirm)
		r.Get("/github/login", rt.Auth.HandleGitHubLogin)
		r.Get("/github/callback", rt.Auth.HandleGitHubCallback)

		r.Group(func(r chi.Router) {
			r.Use(rt.Guard.RequireAuth)
			r.Post("/logout", rt.Auth.HandleLogout)
			r.Get("/user", rt.Auth.HandleProfile)
			r.Put("/user", rt.Auth.HandleUpdateProfile)
			r.Patch("/user", rt.Auth.HandleUpdateProfile)
		})
	})

	r.Route("/snippets", func(r chi.Router) {
		// Reads work for everyone; a valid token narrows them to the
		// caller's own snippets.
		r.Group(func(r chi.Router) {
			r.Use(rt.Guard.OptionalAuth)
			r.Get("/", rt.Snippets.HandleList)
			r.Get("/{id}", rt.Snippets.HandleGet)
			r.Get("/{id}/highlight", rt.Snippets.HandleHighlight)
		})

		r.Group(func(r chi.Router) {
			r.Use(rt.Guard.RequireAuth)
			r.Post("/", rt.Snippets.HandleCreate)
			r.Put("/{id}", rt.Snippets.HandleUpdate)
			r.Patch("/{id}", rt.Snippets.HandleUpdate)
			r.Delete("/{id}", rt.Snippets.HandleDelete)
		})
	})

	r.Route("/users", func(r chi.Router) {
		r.Use(rt.Guard.RequireAuth)
		r.Get("/", rt.Users.HandleList)
		r.Get("/{id}", rt.Users.HandleGet)
	})

	r.Post("/contact", rt.Contact.HandleSubmit)

	r.Get("/api/schema", rt.Docs.HandleSchemaYAML)
	r.Get("/api/schema.json", rt.Docs.HandleSchemaJSON)
	r.Get("/api/docs", rt.Docs.HandleUI)

	r.Get("/healthz", rt.Health.HandleLive)
	r.Get("/readyz", rt.Health.HandleReady)
	if rt.Registry != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(rt.Registry))
	}

	return r
}
