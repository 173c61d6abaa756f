package types

// EventType identifica la clase de un security event.
type EventType string

const (
	EventSQLInjectionAttempt EventType = "sql_injection_attempt"
	EventXSSAttempt          EventType = "xss_attempt"
	EventCORSViolation       EventType = "cors_violation"
	EventRateLimitViolation  EventType = "rate_limit_violation"
	EventAuthorizationFail   EventType = "authorization_failure"
	EventLoginFailure        EventType = "login_failure"
	EventMFAFailure          EventType = "mfa_failure"
	EventAccountLockout      EventType = "account_lockout"
	EventTokenReplay         EventType = "token_replay"
)

// Valid indica si el tipo es uno de los conocidos.
func (t EventType) Valid() bool {
	switch t {
	case EventSQLInjectionAttempt, EventXSSAttempt, EventCORSViolation,
		EventRateLimitViolation, EventAuthorizationFail, EventLoginFailure,
		EventMFAFailure, EventAccountLockout, EventTokenReplay:
		return true
	}
	return false
}

// DefaultSeverity retorna la severidad por defecto para el tipo de evento.
// Intentos de inyección son high; violaciones de CORS/authz y fallos de
// login son medium.
func (t EventType) DefaultSeverity() Severity {
	switch t {
	case EventSQLInjectionAttempt, EventXSSAttempt, EventTokenReplay:
		return SeverityHigh
	case EventCORSViolation, EventAuthorizationFail, EventLoginFailure, EventMFAFailure:
		return SeverityMedium
	case EventRateLimitViolation, EventAccountLockout:
		return SeverityMedium
	}
	return SeverityLow
}
