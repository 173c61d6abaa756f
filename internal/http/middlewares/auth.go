package middlewares

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/crewgate/crewgate/internal/domain/repository"
	"github.com/crewgate/crewgate/internal/domain/types"
	httperrors "github.com/crewgate/crewgate/internal/http/errors"
	jwtx "github.com/crewgate/crewgate/internal/jwt"
	"github.com/crewgate/crewgate/internal/metrics"
	"github.com/crewgate/crewgate/internal/observability/logger"
	tokens "github.com/crewgate/crewgate/internal/security/token"
)

// RequireAuth valida Authorization: Bearer <JWT> y guarda las claims en el
// contexto. La validación tiene dos pasos: firma y expiración del token, y
// consulta del denylist de tokens revocados.
//
// Si el denylist no responde, el request se RECHAZA (fail closed): un
// timeout del store nunca convierte un token revocado en uno válido.
func RequireAuth(issuer *jwtx.Issuer, blacklist repository.BlacklistRepository) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ah := strings.TrimSpace(r.Header.Get("Authorization"))
			if ah == "" || !strings.HasPrefix(strings.ToLower(ah), "bearer ") {
				w.Header().Set("WWW-Authenticate", `Bearer realm="api", error="invalid_token", error_description="missing bearer token"`)
				httperrors.WriteError(w, httperrors.ErrTokenMissing)
				return
			}
			raw := strings.TrimSpace(ah[len("Bearer "):])

			claims, err := issuer.Parse(raw)
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="api", error="invalid_token"`)
				if errors.Is(err, jwtx.ErrTokenExpired) {
					httperrors.WriteError(w, httperrors.ErrTokenExpired)
					return
				}
				httperrors.WriteError(w, httperrors.ErrTokenInvalid)
				return
			}

			revoked, err := blacklist.IsRevoked(r.Context(), tokens.SHA256Hex(raw))
			if err != nil {
				logger.From(r.Context()).Error("token denylist check failed",
					logger.Component("auth"),
					logger.Err(err),
				)
				httperrors.WriteError(w, httperrors.ErrServiceUnavailable)
				return
			}
			if revoked {
				w.Header().Set("WWW-Authenticate", `Bearer realm="api", error="invalid_token", error_description="token revoked"`)
				httperrors.WriteError(w, httperrors.ErrTokenRevoked)
				return
			}

			metrics.TokenValidationLatency.Observe(float64(time.Since(start).Milliseconds()))

			ctx := WithClaims(r.Context(), claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole verifica que el usuario autenticado tenga al menos el rol
// mínimo. Debe usarse después de RequireAuth.
func RequireRole(min types.Role) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetClaims(r.Context())
			if claims == nil {
				httperrors.WriteError(w, httperrors.ErrUnauthorized)
				return
			}
			if !claims.Role.AtLeast(min) {
				logger.From(r.Context()).Warn("role check failed",
					logger.Component("auth"),
					logger.UserID(claims.UserID),
					logger.String("role", string(claims.Role)),
					logger.String("required", string(min)),
				)
				httperrors.WriteError(w, httperrors.ErrRoleNotAllowed)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireCronSecret autoriza los endpoints de mantenimiento con un secreto
// compartido en el header X-Cron-Secret.
func RequireCronSecret(secret string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" || r.Header.Get("X-Cron-Secret") != secret {
				httperrors.WriteError(w, httperrors.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
