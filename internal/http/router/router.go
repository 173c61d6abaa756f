// Package router arma el árbol de rutas HTTP y sus middleware chains.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/crewgate/crewgate/internal/domain/types"
	authctrl "github.com/crewgate/crewgate/internal/http/controllers/auth"
	healthctrl "github.com/crewgate/crewgate/internal/http/controllers/health"
	maintctrl "github.com/crewgate/crewgate/internal/http/controllers/maintenance"
	secctrl "github.com/crewgate/crewgate/internal/http/controllers/security"
	sessctrl "github.com/crewgate/crewgate/internal/http/controllers/session"
	httperrors "github.com/crewgate/crewgate/internal/http/errors"
	mw "github.com/crewgate/crewgate/internal/http/middlewares"
	securitysvc "github.com/crewgate/crewgate/internal/http/services/security"
	jwtx "github.com/crewgate/crewgate/internal/jwt"
	"github.com/crewgate/crewgate/internal/rate"
	"github.com/crewgate/crewgate/internal/security/threat"
	"github.com/crewgate/crewgate/internal/store"
)

// Deps contiene todo lo que el router necesita para armar las rutas.
type Deps struct {
	Auth        *authctrl.Controllers
	Sessions    *sessctrl.Controller
	Security    *secctrl.Controllers
	Health      *healthctrl.Controller
	Maintenance *maintctrl.Controller

	Issuer   *jwtx.Issuer
	Store    store.Store
	Detector *threat.Detector
	Recorder *securitysvc.RecorderService

	AuthLimiter rate.Limiter
	APILimiter  rate.Limiter
	AuthLimit   int
	APILimit    int

	CronSecret string
	Registry   *prometheus.Registry
}

// New arma el router completo.
//
// Orden del chain global: recover primero (nada escapa), request id y
// logging antes que cualquier rechazo para que todo request quede loggeado,
// CORS y threat detection antes de tocar handlers.
func New(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(mw.WithRecover())
	r.Use(mw.WithRequestID())
	r.Use(mw.WithLogging())
	r.Use(mw.WithSecurityHeaders())
	r.Use(mw.WithCORS(deps.Detector, deps.Recorder))
	r.Use(mw.WithThreatDetection(deps.Detector, deps.Recorder))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrRouteNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
	})

	// Infraestructura: sin rate limit (el health check del orquestador no
	// debe competir con el tráfico) y sin auth.
	r.Get("/healthz", deps.Health.Healthz)
	r.Get("/readyz", deps.Health.Readyz)
	if deps.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	requireAuth := mw.RequireAuth(deps.Issuer, deps.Store.Blacklist())

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Use(mw.WithNoStore())
			r.Use(mw.WithRateLimit(mw.RateLimitConfig{
				Limiter:  deps.AuthLimiter,
				Class:    rate.ClassAuth,
				Limit:    int64(deps.AuthLimit),
				Recorder: deps.Recorder,
			}))

			r.Post("/login", deps.Auth.Login.Login)
			// Alias que conserva el frontend legado; mismo handler, el
			// gate MFA corre cuando el usuario lo tiene enrolado.
			r.Post("/login-with-mfa", deps.Auth.Login.Login)
			r.Post("/request-magic-link", deps.Auth.MagicLink.Request)
			r.Post("/magic-login", deps.Auth.MagicLink.Consume)
			r.Post("/refresh", deps.Auth.Refresh.Refresh)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Post("/logout", deps.Auth.Logout.Logout)
				r.Get("/me", deps.Auth.Me.Me)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(mw.WithRateLimit(mw.RateLimitConfig{
				Limiter:  deps.APILimiter,
				Class:    rate.ClassAPI,
				Limit:    int64(deps.APILimit),
				Recorder: deps.Recorder,
			}))

			r.Route("/sessions", func(r chi.Router) {
				r.Use(requireAuth)
				r.Get("/", deps.Sessions.List)
				r.Get("/{id}", deps.Sessions.Get)
				r.Delete("/{id}", deps.Sessions.Terminate)
			})

			// La superficie de security es de operadores: manager o admin.
			r.Route("/security", func(r chi.Router) {
				r.Use(requireAuth)
				r.Use(mw.RequireRole(types.RoleManager))

				r.Post("/events", deps.Security.Events.Report)
				r.Get("/events", deps.Security.Events.List)
				r.Get("/events/{id}", deps.Security.Events.Get)
				r.Post("/events/{id}/escalate", deps.Security.Incidents.Escalate)
				// Variante con event_id en el body, la que usa el panel.
				r.Post("/escalate", deps.Security.Incidents.Escalate)

				r.Get("/incidents", deps.Security.Incidents.List)
				r.Get("/incidents/{id}", deps.Security.Incidents.Get)
				r.Post("/incidents/{id}/transition", deps.Security.Incidents.Transition)
			})

			r.Route("/cron", func(r chi.Router) {
				r.Use(mw.RequireCronSecret(deps.CronSecret))
				r.Post("/sweep", deps.Maintenance.Sweep)
			})
		})
	})

	return r
}
