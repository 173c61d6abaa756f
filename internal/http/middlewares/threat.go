package middlewares

import (
	"net/http"

	"github.com/crewgate/crewgate/internal/domain/types"
	"github.com/crewgate/crewgate/internal/http/errors"
	securitysvc "github.com/crewgate/crewgate/internal/http/services/security"
	"github.com/crewgate/crewgate/internal/observability/logger"
	"github.com/crewgate/crewgate/internal/security/threat"
)

// WithThreatDetection inspecciona cada request buscando firmas de inyección
// SQL y XSS. Un match registra un security event y rechaza el request con
// 400. El registro del evento nunca frena la respuesta: si el recorder
// falla, el request igual se rechaza.
func WithThreatDetection(det *threat.Detector, rec *securitysvc.RecorderService) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tags := det.Inspect(r)
			if len(tags) == 0 {
				next.ServeHTTP(w, r)
				return
			}

			ip := ClientIP(r)
			log := logger.From(r.Context()).With(
				logger.Component("threat"),
				logger.ClientIP(ip),
				logger.ThreatTags(threat.Strings(tags)),
			)
			log.Warn("malicious payload detected", logger.Path(r.URL.Path))

			for _, tag := range tags {
				rec.Record(r.Context(), securitysvc.EventInput{
					Type:      eventTypeForTag(tag),
					UserID:    GetUserID(r.Context()),
					IPAddress: ip,
					UserAgent: r.UserAgent(),
					Details: map[string]any{
						"path":   r.URL.Path,
						"method": r.Method,
					},
					Tags: threat.Strings(tags),
				})
			}

			errors.WriteError(w, errors.ErrSuspiciousPayload)
		})
	}
}

func eventTypeForTag(tag threat.Tag) types.EventType {
	switch tag {
	case threat.TagSQLInjection:
		return types.EventSQLInjectionAttempt
	case threat.TagXSS:
		return types.EventXSSAttempt
	default:
		return types.EventCORSViolation
	}
}
