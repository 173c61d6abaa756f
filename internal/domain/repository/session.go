package repository

import (
	"context"
	"time"
)

// Session representa una sesión de dispositivo autenticada.
//
// Invariante: IsActive == true ⇔ TerminatedAt == nil && TerminationReason == nil.
// Los writers deben setear los tres campos en una sola operación; la tabla
// además lo refuerza con un CHECK constraint. Las sesiones nunca se borran
// (continuidad de auditoría), solo las elimina el retention sweep.
type Session struct {
	ID                string
	UserID            string
	IPAddress         string
	UserAgent         string
	DeviceFingerprint string

	CreatedAt    time.Time
	LastActivity time.Time
	ExpiresAt    time.Time

	IsActive          bool
	TerminatedAt      *time.Time
	TerminationReason *string
}

// Valid verifica el invariante activo/terminado de la sesión.
func (s *Session) Valid() bool {
	if s.IsActive {
		return s.TerminatedAt == nil && s.TerminationReason == nil
	}
	return s.TerminatedAt != nil && s.TerminationReason != nil
}

// CreateSessionInput contiene los datos para crear una nueva sesión.
type CreateSessionInput struct {
	ID                string
	UserID            string
	IPAddress         string
	UserAgent         string
	DeviceFingerprint string
	ExpiresAt         time.Time
}

// SessionRepository define operaciones para gestionar sesiones.
type SessionRepository interface {
	// Create crea una nueva sesión activa.
	Create(ctx context.Context, input CreateSessionInput) (*Session, error)

	// Get obtiene una sesión por id. Retorna ErrNotFound si no existe.
	Get(ctx context.Context, id string) (*Session, error)

	// Terminate marca la sesión como terminada, seteando is_active,
	// terminated_at y termination_reason atómicamente. Terminar una sesión
	// ya terminada es un no-op.
	Terminate(ctx context.Context, id, reason string) error

	// TerminateAllByUser termina todas las sesiones activas de un usuario.
	// Retorna el número de sesiones terminadas.
	TerminateAllByUser(ctx context.Context, userID, reason string) (int, error)

	// Touch actualiza last_activity.
	Touch(ctx context.Context, id string, at time.Time) error

	// ListByUser retorna las sesiones de un usuario, más recientes primero.
	ListByUser(ctx context.Context, userID string) ([]Session, error)

	// DeleteTerminatedBefore elimina sesiones terminadas antes del corte
	// (retention sweep). Retorna el número de sesiones eliminadas.
	DeleteTerminatedBefore(ctx context.Context, cutoff time.Time) (int, error)
}
