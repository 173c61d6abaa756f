package repository

import (
	"context"
	"time"
)

// BlacklistEntry representa un token de acceso revocado. Guarda el hash del
// token y su expiración original, de modo que el sweep pueda podar la tabla
// sin riesgo: una entrada expirada protege un token que ya no valida por exp.
type BlacklistEntry struct {
	TokenHash string
	Reason    string
	ExpiresAt time.Time
	RevokedAt time.Time
}

// BlacklistRepository define el denylist de tokens revocados.
// IsRevoked corre en cada request autenticado: la implementación debe ser
// una búsqueda indexada O(1), nunca un scan.
type BlacklistRepository interface {
	// Add inserta una entrada. Idempotente: agregar un hash ya presente
	// es un no-op, no un error.
	Add(ctx context.Context, entry BlacklistEntry) error

	// IsRevoked verifica si el hash está en el denylist.
	IsRevoked(ctx context.Context, tokenHash string) (bool, error)

	// DeleteExpired poda entradas cuya expiración ya pasó.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}
