package repository

import (
	"context"
	"time"
)

// LockoutRecord lleva la cuenta de fallos consecutivos por identidad
// (email o IP) y el instante hasta el que la cuenta queda bloqueada.
type LockoutRecord struct {
	Identity    string
	Failures    int
	LockedUntil *time.Time
	UpdatedAt   time.Time
}

// LockoutRepository define el estado persistido del lockout progresivo.
type LockoutRepository interface {
	// Get obtiene el registro de una identidad. Retorna ErrNotFound si la
	// identidad no tiene fallos registrados.
	Get(ctx context.Context, identity string) (*LockoutRecord, error)

	// IncrementFailures incrementa el contador atómicamente (upsert con
	// failures = failures + 1). Retorna el registro resultante; el delay se
	// decide sobre el contador retornado, nunca sobre una lectura previa.
	IncrementFailures(ctx context.Context, identity string) (*LockoutRecord, error)

	// SetLock fija locked_until para la identidad.
	SetLock(ctx context.Context, identity string, until time.Time) error

	// Reset pone el contador en cero y limpia locked_until. Idempotente.
	Reset(ctx context.Context, identity string) error
}

// MFAFailure es un registro de un intento MFA fallido (mfa_failure_log).
type MFAFailure struct {
	ID        string
	UserID    string
	IPAddress string
	Reason    string
	CreatedAt time.Time
}

// MFAFailureRepository registra intentos MFA fallidos para forense.
type MFAFailureRepository interface {
	Append(ctx context.Context, f MFAFailure) error
}
