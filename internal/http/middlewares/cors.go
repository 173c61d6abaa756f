package middlewares

import (
	"net/http"
	"strings"

	"github.com/crewgate/crewgate/internal/domain/types"
	"github.com/crewgate/crewgate/internal/http/errors"
	securitysvc "github.com/crewgate/crewgate/internal/http/services/security"
	"github.com/crewgate/crewgate/internal/observability/logger"
	"github.com/crewgate/crewgate/internal/security/threat"
)

// WithCORS maneja CORS contra las listas del detector. Un Origin permitido
// recibe los headers; uno secundario (trusted) pasa sin headers pero deja
// registrada la violación; uno desconocido genera el evento y se rechaza.
func WithCORS(det *threat.Detector, rec *securitysvc.RecorderService) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := strings.TrimRight(strings.TrimSpace(r.Header.Get("Origin")), "/")

			// Vary headers para caches/proxies
			w.Header().Add("Vary", "Origin")
			w.Header().Add("Vary", "Access-Control-Request-Method")
			w.Header().Add("Vary", "Access-Control-Request-Headers")

			verdict := det.CheckOrigin(origin)
			switch verdict {
			case threat.OriginNone:
				next.ServeHTTP(w, r)
				return

			case threat.OriginAllowed:
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Credentials", "true")
				h.Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,HEAD,OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
				h.Set("Access-Control-Expose-Headers", "X-Request-ID, X-RateLimit-Remaining, X-RateLimit-Limit, X-RateLimit-Reset, Retry-After, WWW-Authenticate")
				h.Set("Access-Control-Max-Age", "600") // preflight cache 10 min

			case threat.OriginTrusted, threat.OriginViolation:
				ip := ClientIP(r)
				logger.From(r.Context()).Warn("cors violation",
					logger.Component("cors"),
					logger.String("origin", origin),
					logger.ClientIP(ip),
					logger.Bool("trusted", verdict == threat.OriginTrusted),
				)
				rec.Record(r.Context(), securitysvc.EventInput{
					Type:      types.EventCORSViolation,
					UserID:    GetUserID(r.Context()),
					IPAddress: ip,
					UserAgent: r.UserAgent(),
					Details: map[string]any{
						"origin": origin,
						"path":   r.URL.Path,
						"method": r.Method,
					},
					Tags: []string{string(threat.TagCORSViolation)},
				})
				if verdict == threat.OriginViolation {
					errors.WriteError(w, errors.ErrOriginForbidden)
					return
				}
			}

			// Preflight request
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
