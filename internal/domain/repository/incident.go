package repository

import (
	"context"
	"time"

	"github.com/crewgate/crewgate/internal/domain/types"
)

// Incident es el seguimiento con estado de un SecurityEvent escalado.
// Relación 1:1 con el evento, forzada por unicidad sobre EventID.
type Incident struct {
	ID      string
	EventID string
	State   types.IncidentState

	// ManualOverride marca incidentes creados desde eventos low/medium,
	// que por política no son escalables sin intervención humana.
	ManualOverride bool

	AckNotes       *string
	AckBy          *string
	AckAt          *time.Time
	ResolutionText *string
	ResolvedBy     *string
	ResolvedAt     *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IncidentUpdate contiene los campos mutables de una transición de estado.
type IncidentUpdate struct {
	State types.IncidentState
	Notes *string
	Actor string
}

// IncidentRepository define operaciones sobre incidentes.
type IncidentRepository interface {
	// CreateForEvent crea el incidente para un evento con semántica
	// insert-or-fail: si ya existe un incidente para ese event_id retorna
	// ErrConflict junto con el incidente existente. Dos escalaciones
	// concurrentes del mismo evento: exactamente una inserta.
	CreateForEvent(ctx context.Context, inc Incident) (*Incident, error)

	// Get busca un incidente por id. Retorna ErrNotFound si no existe.
	Get(ctx context.Context, id string) (*Incident, error)

	// GetByEventID busca el incidente asociado a un evento.
	GetByEventID(ctx context.Context, eventID string) (*Incident, error)

	// Transition aplica una transición de estado validada. Retorna
	// ErrInvalidTransition si la máquina de estados no la permite.
	// Transicionar al estado actual es un no-op que retorna el incidente
	// sin cambios.
	Transition(ctx context.Context, id string, upd IncidentUpdate) (*Incident, error)

	// List retorna incidentes, más recientes primero.
	List(ctx context.Context, limit int) ([]Incident, error)
}
