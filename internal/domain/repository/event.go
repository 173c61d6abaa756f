package repository

import (
	"context"
	"time"

	"github.com/crewgate/crewgate/internal/domain/types"
)

// SecurityEvent es el registro inmutable de una detección. EventID es único
// y funciona como clave de idempotencia para la escalación.
type SecurityEvent struct {
	EventID   string
	Type      types.EventType
	Severity  types.Severity
	UserID    *string
	IPAddress string
	UserAgent string
	Details   map[string]any
	Tags      []string
	CreatedAt time.Time
}

// SecurityEventFilter define filtros para listar eventos.
type SecurityEventFilter struct {
	Type     *types.EventType
	Severity *types.Severity
	Since    *time.Time
	Limit    int
}

// SecurityEventRepository define operaciones sobre security events.
// Los eventos nunca se mutan después de insertados.
type SecurityEventRepository interface {
	// Insert persiste un evento. Retorna ErrConflict si el event_id ya existe.
	Insert(ctx context.Context, ev SecurityEvent) error

	// Get busca un evento por id. Retorna ErrNotFound si no existe.
	Get(ctx context.Context, eventID string) (*SecurityEvent, error)

	// List retorna eventos filtrados, más recientes primero.
	List(ctx context.Context, filter SecurityEventFilter) ([]SecurityEvent, error)
}
