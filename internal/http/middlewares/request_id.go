package middlewares

import (
	"net/http"
	"strings"

	"github.com/crewgate/crewgate/internal/ids"
)

const requestIDHeader = "X-Request-ID"

// maxInboundRequestIDLen acota el ID que propone el cliente. Más largo que
// esto se descarta y se genera uno propio, para que un header arbitrario no
// termine inflando cada línea de log del request.
const maxInboundRequestIDLen = 64

// WithRequestID propaga el X-Request-ID que trae el cliente o genera un
// ULID nuevo. El ID se expone en el header de respuesta y se inyecta en el
// contexto, de donde lo toma el logger.
func WithRequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rid := strings.TrimSpace(r.Header.Get(requestIDHeader))
			if rid == "" || len(rid) > maxInboundRequestIDLen {
				rid = ids.New()
			}

			w.Header().Set(requestIDHeader, rid)

			ctx := setRequestID(r.Context(), rid)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
