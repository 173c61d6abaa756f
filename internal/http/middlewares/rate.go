package middlewares

import (
	"net/http"
	"strconv"
	"time"

	"github.com/crewgate/crewgate/internal/domain/types"
	"github.com/crewgate/crewgate/internal/http/errors"
	securitysvc "github.com/crewgate/crewgate/internal/http/services/security"
	"github.com/crewgate/crewgate/internal/metrics"
	"github.com/crewgate/crewgate/internal/observability/logger"
	"github.com/crewgate/crewgate/internal/rate"
)

// RateLimitConfig configura el middleware de rate limiting para una clase
// de endpoints.
type RateLimitConfig struct {
	Limiter rate.Limiter
	// Class prefija las keys: el abuso de /api/auth/* no consume la cuota
	// de /api/security/*.
	Class string
	// Limit es el máximo de la ventana, para marcar abuso sostenido.
	Limit     int64
	Recorder  *securitysvc.RecorderService
	Whitelist []string // Paths excluidos (ej: /healthz)
}

// WithRateLimit crea un middleware de rate limiting por IP de cliente.
// Exceder el límite responde 429 con Retry-After y registra un security
// event rate_limit_violation.
func WithRateLimit(cfg RateLimitConfig) Middleware {
	if cfg.Limiter == nil {
		// Sin limiter, no hacemos nada
		return func(next http.Handler) http.Handler { return next }
	}

	whitelistSet := make(map[string]struct{})
	for _, p := range cfg.Whitelist {
		whitelistSet[p] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := whitelistSet[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			ip := ClientIP(r)
			key := rate.Key(cfg.Class, ip)
			res, err := cfg.Limiter.Allow(r.Context(), key)
			if err != nil {
				// Limiter caído: dejamos pasar. El rate limit protege
				// capacidad, no autenticación; acá no aplica fail closed.
				logger.From(r.Context()).Warn("rate limiter unavailable",
					logger.Component("rate"),
					logger.Err(err),
				)
				next.ServeHTTP(w, r)
				return
			}

			if !res.Allowed {
				if res.RetryAfter > 0 {
					w.Header().Set("Retry-After", strconv.Itoa(int(res.RetryAfter.Seconds())))
				}
				if res.WindowTTL > 0 {
					resetAt := time.Now().Add(res.WindowTTL).Unix()
					w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt, 10))
				}
				metrics.RateLimitRejections.WithLabelValues(cfg.Class).Inc()

				if cfg.Recorder != nil {
					details := map[string]any{
						"path":   r.URL.Path,
						"method": r.Method,
						"class":  cfg.Class,
						"hits":   res.CurrentHits,
					}
					// Seguir martillando muy por encima del límite ya no
					// es un cliente impaciente.
					if cfg.Limit > 0 && res.CurrentHits >= 3*cfg.Limit {
						details["potential_attack"] = true
					}
					cfg.Recorder.Record(r.Context(), securitysvc.EventInput{
						Type:      types.EventRateLimitViolation,
						UserID:    GetUserID(r.Context()),
						IPAddress: ip,
						UserAgent: r.UserAgent(),
						Details:   details,
					})
				}

				errors.WriteError(w, errors.ErrRateLimitExceeded)
				return
			}

			// Headers informativos
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
			if res.WindowTTL > 0 {
				resetAt := time.Now().Add(res.WindowTTL).Unix()
				w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt, 10))
			}

			next.ServeHTTP(w, r)
		})
	}
}
