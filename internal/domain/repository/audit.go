package repository

import (
	"context"
	"time"
)

// AuditEntry es un registro append-only de quién hizo qué sobre qué recurso.
// La aplicación nunca lo muta ni lo borra; la retención es operacional.
type AuditEntry struct {
	ID         string
	Action     string
	ActorID    *string
	Resource   string
	ResourceID string
	IPAddress  string
	Before     map[string]any
	After      map[string]any
	CreatedAt  time.Time
}

// AuditRepository define el append del audit log.
type AuditRepository interface {
	// Append escribe una entrada. No hay update ni delete.
	Append(ctx context.Context, entry AuditEntry) error
}
