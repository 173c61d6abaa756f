package repository

import (
	"context"
	"time"
)

// RefreshToken representa un refresh token persistido. Solo se guarda el
// hash sha256 del token; el valor crudo se entrega una única vez al emitirlo.
type RefreshToken struct {
	ID         string
	UserID     string
	TokenHash  string
	DeviceInfo string
	IssuedAt   time.Time
	ExpiresAt  time.Time
	RevokedAt  *time.Time
}

// CreateRefreshTokenInput contiene los datos para crear un refresh token.
type CreateRefreshTokenInput struct {
	UserID     string
	TokenHash  string
	DeviceInfo string
	TTL        time.Duration
}

// RefreshTokenRepository define operaciones sobre refresh tokens.
type RefreshTokenRepository interface {
	// Create crea un nuevo refresh token. Retorna el ID del token creado.
	Create(ctx context.Context, input CreateRefreshTokenInput) (string, error)

	// GetByHash busca un token por su hash. Retorna ErrNotFound si no existe.
	GetByHash(ctx context.Context, tokenHash string) (*RefreshToken, error)

	// Rotate revoca el token viejo e inserta el nuevo en una sola unidad
	// atómica. Falla con ErrNotFound si oldHash no existe, ErrTokenRevoked
	// si ya fue revocado y ErrTokenExpired si expiró. Dos rotaciones
	// concurrentes del mismo hash: exactamente una gana.
	Rotate(ctx context.Context, oldHash string, next CreateRefreshTokenInput) (*RefreshToken, error)

	// Revoke revoca un token por hash. Idempotente.
	Revoke(ctx context.Context, tokenHash string) error

	// RevokeAllByUser revoca todos los tokens vigentes de un usuario.
	// Retorna el número de tokens revocados.
	RevokeAllByUser(ctx context.Context, userID string) (int, error)

	// DeleteExpired elimina tokens expirados o revocados (retention sweep).
	DeleteExpired(ctx context.Context, cutoff time.Time) (int, error)
}
