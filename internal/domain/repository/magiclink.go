package repository

import (
	"context"
	"time"
)

// MagicLink representa una credencial passwordless de un solo uso.
// Transiciona exactamente una vez de unused a used; cualquier segundo
// intento de canje falla.
type MagicLink struct {
	ID        string
	Email     string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time

	Used   bool
	UsedAt *time.Time
	UsedIP *string
}

// CreateMagicLinkInput contiene los datos para crear un magic link.
type CreateMagicLinkInput struct {
	Email string
	Token string
	TTL   time.Duration
}

// MagicLinkRepository define operaciones sobre magic links.
type MagicLinkRepository interface {
	// Create crea un nuevo magic link sin usar.
	Create(ctx context.Context, input CreateMagicLinkInput) (*MagicLink, error)

	// Consume canjea el link con semántica check-and-set: en la misma
	// operación que lo lee setea used=true, used_at y used_ip. Si dos
	// requests compiten por el mismo token, el primero gana y el segundo
	// recibe ErrTokenUsed. Retorna ErrNotFound si el token no existe y
	// ErrTokenExpired si ya venció.
	Consume(ctx context.Context, token, ip string) (*MagicLink, error)

	// DeleteExpired elimina links vencidos o ya usados (retention sweep).
	DeleteExpired(ctx context.Context, cutoff time.Time) (int, error)
}
