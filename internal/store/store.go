// Package store define el agregado de repositorios del core de seguridad.
//
// Adapters disponibles:
//   - pg: PostgreSQL via pgxpool (producción)
//   - memory: in-process (desarrollo y tests)
package store

import (
	"context"

	"github.com/crewgate/crewgate/internal/domain/repository"
)

// Store agrupa todos los repositorios sobre un mismo backend.
type Store interface {
	Users() repository.UserStore
	Sessions() repository.SessionRepository
	RefreshTokens() repository.RefreshTokenRepository
	Blacklist() repository.BlacklistRepository
	MagicLinks() repository.MagicLinkRepository
	Events() repository.SecurityEventRepository
	Incidents() repository.IncidentRepository
	Audit() repository.AuditRepository
	Lockouts() repository.LockoutRepository
	MFAFailures() repository.MFAFailureRepository

	// Ping verifica la conexión al backend.
	Ping(ctx context.Context) error

	// Close libera recursos del backend.
	Close()
}
